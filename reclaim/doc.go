// Package reclaim implements epoch-based safe memory reclamation (SMR) for
// lock-free data structures that unlink nodes while other threads may still
// hold a reference to them.
//
// # Protocol
//
// Every thread that walks a lock-free structure brackets its traversal with
// StartOp/EndOp:
//
//	dom.StartOp(tid)
//	defer dom.EndOp(tid)
//	// ... read node pointers published by concurrent writers ...
//
// A thread that physically unlinks a node calls Retire instead of freeing it
// directly:
//
//	dom.Retire(node, tid)
//
// A retired pointer is only handed back to the Go garbage collector once
// every thread still inside an operation started it in an epoch strictly
// after the one in which the pointer was retired — i.e. once no in-flight operation
// could still be holding a reference obtained before the retire. "Freeing"
// in this package means dropping the last retained Go reference so the
// garbage collector is free to reclaim it; reclaim never calls into
// unsafe.Pointer or manual allocator frees, since the structure built on
// top of it (pht; tgraph does not use this package) keeps its nodes as ordinary Go values backed by
// a persistent arena, not off-heap memory the GC doesn't know about.
//
// # Guarantees
//
// Reclamation timing is best-effort: a slow thread can delay reclamation of
// everything retired after it started its operation, but Retire never
// returns a pointer to the free pool while any reservation could still
// observe it. Correctness (no premature free) is unconditional; promptness
// is not.
package reclaim
