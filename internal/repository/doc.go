// Package repository defines the data access interfaces for identigraph.
//
// This package provides the graph store abstraction used by upstream fetchers
// and the crawl service. The actual implementation is in the sqlite
// subpackage.
//
// # Store Interface
//
// Store exposes create-or-update for vertices keyed by natural key, connect
// for edges between already materialized vertices, and lookups by natural
// key. Repository adds transactions, statistics and Close.
//
// # Fact Helpers
//
// A single upstream fact usually touches two vertices and one or two edges.
// SaveProof, SaveHold, SaveResolve and SaveHoldAndResolve perform those writes
// inside one Atomic call so a fact is recorded entirely or not at all.
//
// # SQLite Implementation
//
// The sqlite implementation keeps vertices and edges in relational tables with
// unique indexes on the natural keys. Every upsert is a single
// INSERT ... ON CONFLICT statement, so concurrent writers of the same key
// converge on one row.
package repository
