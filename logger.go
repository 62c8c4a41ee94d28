package nvmds

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with nvmds-specific context.
// This provides structured logging with consistent field names across
// the reclaim, pht, and tgraph packages.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses a default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithTID adds a thread-id field to the logger.
func (l *Logger) WithTID(tid int) *Logger {
	return &Logger{
		Logger: l.Logger.With("tid", tid),
	}
}

// LogRetire logs a reclamation retire event.
func (l *Logger) LogRetire(ctx context.Context, tid int, epoch uint64) {
	l.DebugContext(ctx, "retired pointer",
		"tid", tid,
		"epoch", epoch,
	)
}

// LogReclaim logs a batch of pointers freed by the reclaimer.
func (l *Logger) LogReclaim(ctx context.Context, tid int, freed int) {
	if freed == 0 {
		return
	}
	l.DebugContext(ctx, "reclaimed retired pointers",
		"tid", tid,
		"freed", freed,
	)
}

// LogCASRetry logs a failed CAS attempt on the PHT hot path.
func (l *Logger) LogCASRetry(ctx context.Context, op string, bucket uint64) {
	l.DebugContext(ctx, "cas retry",
		"op", op,
		"bucket", bucket,
	)
}

// LogRecover logs a region recovery (root re-attach) event.
func (l *Logger) LogRecover(ctx context.Context, path string, idxSize uint64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "recover failed",
			"path", path,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "recovered persistent region",
		"path", path,
		"idx_size", idxSize,
	)
}

// LogSnapshotExport logs a PHT snapshot export to a blob store.
func (l *Logger) LogSnapshotExport(ctx context.Context, name string, bytes int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot export failed",
			"name", name,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "snapshot exported",
		"name", name,
		"bytes", bytes,
	)
}

// LogVertexRemoved logs a successful TGraph RemoveVertex commit.
func (l *Logger) LogVertexRemoved(ctx context.Context, vid uint32, edgesRemoved int) {
	l.DebugContext(ctx, "vertex removed",
		"vid", vid,
		"edges_removed", edgesRemoved,
	)
}

// LogEdgeAdded logs a successful TGraph AddEdge commit.
func (l *Logger) LogEdgeAdded(ctx context.Context, src, dst uint32, err error) {
	if err != nil {
		l.DebugContext(ctx, "add edge failed",
			"src", src,
			"dst", dst,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "edge added",
		"src", src,
		"dst", dst,
	)
}
