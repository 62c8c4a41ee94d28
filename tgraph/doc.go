// Package tgraph implements a transient, lock-based concurrent directed
// graph.
//
// Vertices live in a fixed-size, cache-line-padded slot array (padded so
// adjacent slots never share a line, not aligned to line boundaries); each
// slot owns a mutex and a monotonic sequence number bumped on every
// mutation to that vertex or an edge incident to it. Edges are
// bidirectionally indexed: a relation is owned by its source's adjacency
// set and referenced from its destination's incoming set. Any operation
// touching more than one vertex acquires their locks in ascending id order
// and releases in descending order. RemoveVertex, which collects its
// neighbor set under v's lock alone, validates that set against v's
// sequence number after acquiring every lock, retrying from scratch on a
// mismatch. AddVertex locks a randomly sampled candidate set plus v and
// checks under those locks which candidates are present; it does no
// sequence-number validation.
package tgraph
