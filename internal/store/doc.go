// Package store provides SQLite-backed storage for workspace structure,
// relation data and attribute dependency edges.
//
// The store holds:
//   - Collections, link types and their attribute slots
//   - Documents and link instances (the relation data cascades traverse)
//   - Dependency edges (which attribute is computed from which)
//
// *Store satisfies both consumer interfaces of the cascade builder:
// edges are read with EdgesBySource, relations are resolved with
// LinkInstancesFor and DocumentsFor.
//
// # Edge Identity
//
// Every edge row carries a content-addressed id (ir.EdgeID). Inserts use
// ON CONFLICT(id) DO NOTHING, so writing the same edge twice is a no-op and
// callers never have to check for duplicates first.
//
// # Deterministic Query Results
//
//   - Edge reads are ordered by seq (insertion order)
//   - Record reads are ordered by id COLLATE BINARY
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Deleting a collection removes its documents, link
//     types and link instances
package store
