package upstream

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"identigraph/internal/domain"
)

// Registry manages all registered fetchers and their configuration
type Registry struct {
	mu       sync.RWMutex
	fetchers map[domain.DataSource]Fetcher
	configs  map[domain.DataSource]FetcherConfig
	order    []domain.DataSource
	logger   *zap.Logger
}

// NewRegistry creates a new fetcher registry
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		fetchers: make(map[domain.DataSource]Fetcher),
		configs:  make(map[domain.DataSource]FetcherConfig),
		logger:   logger,
	}
}

// Register adds a fetcher to the registry
func (r *Registry) Register(fetcher Fetcher, config FetcherConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	source := fetcher.Source()
	if _, exists := r.fetchers[source]; exists {
		return fmt.Errorf("fetcher %s already registered", source)
	}

	r.fetchers[source] = fetcher
	r.configs[source] = config
	r.order = append(r.order, source)
	r.logger.Info("registered fetcher",
		zap.String("source", string(source)),
		zap.Bool("enabled", config.Enabled),
		zap.Float64("rate_limit", config.RateLimit))

	return nil
}

// Get returns the fetcher for source
func (r *Registry) Get(source domain.DataSource) (Fetcher, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.fetchers[source]
	return f, ok
}

// Enabled returns enabled fetchers in registration order
func (r *Registry) Enabled() []Fetcher {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Fetcher
	for _, source := range r.order {
		if r.configs[source].Enabled {
			out = append(out, r.fetchers[source])
		}
	}
	return out
}

// Capable returns the enabled fetchers that can handle target
func (r *Registry) Capable(target domain.Target) []Fetcher {
	var out []Fetcher
	for _, f := range r.Enabled() {
		if f.CanFetch(target) {
			out = append(out, f)
		}
	}
	return out
}

// ListFetchers returns information about registered fetchers
func (r *Registry) ListFetchers() []FetcherInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]FetcherInfo, 0, len(r.order))
	for _, source := range r.order {
		config := r.configs[source]
		infos = append(infos, FetcherInfo{
			Source:    source,
			Enabled:   config.Enabled,
			RateLimit: config.RateLimit,
			Ability:   r.fetchers[source].Ability(),
		})
	}
	return infos
}

// Abilities merges the abilities of all enabled fetchers by input platform
func (r *Registry) Abilities() []Ability {
	merged := make(map[domain.Platform]map[domain.Platform]bool)
	for _, f := range r.Enabled() {
		for _, a := range f.Ability() {
			if merged[a.Input] == nil {
				merged[a.Input] = make(map[domain.Platform]bool)
			}
			for _, out := range a.Output {
				merged[a.Input][out] = true
			}
		}
	}

	abilities := make([]Ability, 0, len(merged))
	for input, outputs := range merged {
		a := Ability{Input: input}
		for out := range outputs {
			a.Output = append(a.Output, out)
		}
		sort.Slice(a.Output, func(i, j int) bool { return a.Output[i] < a.Output[j] })
		abilities = append(abilities, a)
	}
	sort.Slice(abilities, func(i, j int) bool { return abilities[i].Input < abilities[j].Input })
	return abilities
}

// FetcherInfo provides read-only information about a fetcher
type FetcherInfo struct {
	Source    domain.DataSource `json:"source"`
	Enabled   bool              `json:"enabled"`
	RateLimit float64           `json:"rate_limit,omitempty"`
	Ability   []Ability         `json:"ability"`
}
