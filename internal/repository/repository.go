package repository

import (
	"context"
	"errors"

	"identigraph/internal/domain"
)

// ErrVertexNotFound is returned when a lookup misses or an edge endpoint has
// not been materialized yet
var ErrVertexNotFound = errors.New("vertex not found")

// EdgeFilter selects edges by endpoint and source. Empty fields match anything.
type EdgeFilter struct {
	From   string
	To     string
	Source domain.DataSource
}

// Stats holds vertex and edge counts
type Stats struct {
	Identities int `json:"identities" yaml:"identities"`
	Contracts  int `json:"contracts" yaml:"contracts"`
	Proofs     int `json:"proofs" yaml:"proofs"`
	Holds      int `json:"holds" yaml:"holds"`
	Resolves   int `json:"resolves" yaml:"resolves"`
}

// Store is the set of graph operations available both on the repository and
// inside a transaction.
//
// CreateOrUpdate* upsert by natural key and return the stored vertex with its
// UUID. Nil optional fields leave the stored value untouched; non-nil fields
// overwrite it, including empty strings.
//
// Connect* require both endpoints to have been upserted first and return
// ErrVertexNotFound otherwise. Connecting the same natural key twice refreshes
// the existing edge instead of creating a duplicate.
type Store interface {
	CreateOrUpdateIdentity(ctx context.Context, identity *domain.Identity) (*domain.Identity, error)
	CreateOrUpdateContract(ctx context.Context, contract *domain.Contract) (*domain.Contract, error)

	ConnectProof(ctx context.Context, from, to *domain.Identity, proof *domain.Proof) (*domain.Proof, error)
	ConnectHold(ctx context.Context, from *domain.Identity, to domain.Vertex, hold *domain.Hold) (*domain.Hold, error)
	ConnectResolve(ctx context.Context, from, to domain.Vertex, resolve *domain.Resolve) (*domain.Resolve, error)

	FindIdentity(ctx context.Context, platform domain.Platform, identity string) (*domain.Identity, error)
	FindContract(ctx context.Context, chain domain.Chain, address string) (*domain.Contract, error)
	FindProofs(ctx context.Context, filter EdgeFilter) ([]*domain.Proof, error)
	FindHolds(ctx context.Context, filter EdgeFilter) ([]*domain.Hold, error)
	FindResolves(ctx context.Context, filter EdgeFilter) ([]*domain.Resolve, error)
}

// Repository defines the interface for identity graph persistence
type Repository interface {
	Store

	// Atomic runs fn in a single transaction. If fn returns an error nothing
	// it wrote is kept.
	Atomic(ctx context.Context, fn func(Store) error) error

	Stats(ctx context.Context) (Stats, error)

	// Close releases resources
	Close() error
}
