// Package domain defines the core domain types for the identigraph identity graph.
//
// This package contains the vertices, edges and enumerations that describe how
// identities on different platforms are linked to each other, plus the Target
// type that drives a crawl.
//
// # Vertices
//
// Identity is a handle on one platform (a wallet address, a Twitter handle, a
// domain name). Its natural key is (platform, identity), with the identity
// string normalized per platform.
//
// Contract is an on-chain contract or collection, keyed by (chain, address).
//
// # Edges
//
// Proof asserts two identities belong to the same owner, as attested by a
// DataSource.
//
// Hold asserts the from identity owns or controls the to entity (an NFT token,
// a domain-as-identity).
//
// Resolve asserts a name resolves to an address (forward) or an address
// reverse-resolves to a name (reverse). Forward and reverse resolution are
// always stored as two separate directed edges.
//
// # Targets
//
// Target is the transient unit of crawl work: an identity on a platform, or an
// NFT/domain reference. Targets are never persisted.
//
// # Design Principles
//
// - No database or external dependencies
// - Nullable attributes are pointers: nil means "not supplied", a pointer to
// the zero value is an explicit retraction
package domain
