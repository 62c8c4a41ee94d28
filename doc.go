// Package nvmds provides the building blocks for benchmarking concurrent data
// structures under a shared reclamation scheme: an epoch-based safe memory
// reclaimer, a persistent lock-free hash table, and a concurrent transient
// graph.
//
// # Components
//
// The reclaim subpackage implements epoch-based safe memory reclamation
// shared by any lock-free structure that needs to free retired nodes without
// a use-after-free race:
//
//	dom := reclaim.NewDomain[myNode](threadCount)
//	dom.StartOp(tid)
//	defer dom.EndOp(tid)
//
// The pht subpackage implements a persistent, lock-free, chained hash table
// with Harris-style mark-on-delete bucket chains and explicit persist-fence
// ordering around every mutation, backed by a memory-mapped persistent
// region from pht/pmem:
//
//	region, _ := pmem.Open("/mnt/pmem0/table.db", 1<<30)
//	table, _ := pht.New(region, pht.WithThreadCount(8))
//	table.Put(tid, key, val)
//
// The tgraph subpackage implements a concurrent transient directed graph
// using per-vertex mutexes and a monotonic sequence number protocol for
// lock-free-feeling reads and validated multi-vertex mutations:
//
//	g, _ := tgraph.New(tgraph.Config{NumVertices: 1 << 16})
//	g.AddEdge(src, dst, weight)
//
// # Scope
//
// This module supplies the core data structures only. Workload generation,
// thread pinning, CLI argument parsing, and result recording belong to an
// external harness; nvmds never parses flags and never owns a main package.
package nvmds
