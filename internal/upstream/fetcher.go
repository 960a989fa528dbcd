package upstream

import (
	"context"
	"time"

	"identigraph/internal/domain"
)

// DefaultTimeout bounds a single upstream call
const DefaultTimeout = 5 * time.Second

// Ability describes which platforms a fetcher can produce from an input platform
type Ability struct {
	Input  domain.Platform   `json:"input" yaml:"input"`
	Output []domain.Platform `json:"output" yaml:"output"`
}

// FetcherConfig holds configuration for a fetcher instance
type FetcherConfig struct {
	// Enabled determines if the fetcher is dispatched to
	Enabled bool `json:"enabled"`
	// RateLimit is the sustained requests per second, 0 for unlimited
	RateLimit float64 `json:"rate_limit,omitempty"`
}

// Fetcher defines the interface for upstream data source integrations.
//
// Fetch must be a no-op returning (nil, nil) when CanFetch(target) is false.
// Facts are persisted before Fetch returns; the returned targets are the
// newly discovered neighbours for the next crawl round.
type Fetcher interface {
	// Source returns the unique identifier for this fetcher
	Source() domain.DataSource

	// CanFetch reports whether the fetcher knows how to query target
	CanFetch(target domain.Target) bool

	// Fetch queries the upstream, persists facts and returns next targets
	Fetch(ctx context.Context, target domain.Target) ([]domain.Target, error)

	// Ability documents the platform fan-out of this fetcher
	Ability() []Ability
}
