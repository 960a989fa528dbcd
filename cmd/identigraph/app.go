package main

import (
	"fmt"

	"go.uber.org/zap"

	"identigraph/internal/config"
	"identigraph/internal/domain"
	"identigraph/internal/logger"
	"identigraph/internal/repository/sqlite"
	"identigraph/internal/service"
	"identigraph/internal/upstream"
)

// rootFlags are the persistent flags shared by every command
type rootFlags struct {
	configPath string
	dbPath     string
	logLevel   string
}

// app holds the components built from configuration for one command run
type app struct {
	cfg      *config.Config
	cfgPath  string
	logger   *zap.Logger
	repo     *sqlite.Repository
	registry *upstream.Registry
	events   *service.EventBus
	crawler  *service.CrawlService
}

// loadConfig reads the config file and applies command-line overrides
func loadConfig(flags *rootFlags) (*config.Config, string, error) {
	var (
		cfg  *config.Config
		path string
		err  error
	)
	if flags.configPath != "" {
		cfg, path, err = config.LoadFromPath(flags.configPath)
	} else {
		cfg, path, err = config.Load()
	}
	if err != nil {
		return nil, path, err
	}

	if flags.dbPath != "" {
		cfg.Database.Path = flags.dbPath
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	return cfg, path, nil
}

// newApp wires config, logger, store, fetchers and crawl engine
func newApp(flags *rootFlags) (*app, error) {
	cfg, path, err := loadConfig(flags)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	if path != "" {
		log.Debug("config loaded", zap.String("path", path))
	}

	repo, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("open database: %w", err)
	}
	log.Info("database opened", zap.String("path", cfg.Database.Path))

	registry, err := buildRegistry(cfg, repo, log)
	if err != nil {
		repo.Close()
		log.Sync()
		return nil, err
	}

	events := service.NewEventBus()
	crawler := service.NewCrawlService(registry, repo, events, log, service.CrawlOptions{
		MaxRounds:   cfg.Crawl.MaxRounds,
		MaxVisited:  cfg.Crawl.MaxVisited,
		Concurrency: cfg.Crawl.Concurrency,
		Timeout:     cfg.Crawl.Timeout.Duration(),
	})

	return &app{
		cfg:      cfg,
		cfgPath:  path,
		logger:   log,
		repo:     repo,
		registry: registry,
		events:   events,
		crawler:  crawler,
	}, nil
}

func (a *app) Close() {
	if err := a.repo.Close(); err != nil {
		a.logger.Warn("failed to close database", zap.Error(err))
	}
	a.logger.Sync()
}

// buildRegistry registers every fetcher with its configured options.
// Disabled fetchers are registered too so they show up in "ability".
func buildRegistry(cfg *config.Config, repo *sqlite.Repository, log *zap.Logger) (*upstream.Registry, error) {
	registry := upstream.NewRegistry(log.Named("upstream"))
	ups := cfg.Upstreams

	opts := func(u config.UpstreamConfig) upstream.Options {
		return upstream.Options{
			BaseURL:   u.URL,
			Timeout:   u.Timeout.Duration(),
			RateLimit: u.RateLimit,
			Burst:     u.Burst,
			Logger:    log.Named("upstream"),
		}
	}
	fetcherConfig := func(u config.UpstreamConfig) upstream.FetcherConfig {
		return upstream.FetcherConfig{Enabled: u.Enabled, RateLimit: u.RateLimit}
	}

	entries := []struct {
		fetcher upstream.Fetcher
		config  config.UpstreamConfig
	}{
		{upstream.NewProofClient(repo, opts(ups.NextID)), ups.NextID},
		{upstream.NewSybilList(repo, opts(ups.SybilList), ups.SybilListTTL.Duration()), ups.SybilList},
		{upstream.NewENSReverse(repo, opts(ups.ENSReverse)), ups.ENSReverse},
		{upstream.NewTheGraph(repo, opts(ups.TheGraph)), ups.TheGraph},
		{upstream.NewSpaceID(repo, opts(ups.SpaceID)), ups.SpaceID},
		{upstream.NewDotBit(repo, opts(ups.DotBit)), ups.DotBit},
		{upstream.NewRSS3(repo, opts(ups.RSS3)), ups.RSS3},
	}
	for _, e := range entries {
		if err := registry.Register(e.fetcher, fetcherConfig(e.config)); err != nil {
			return nil, fmt.Errorf("register %s: %w", e.fetcher.Source(), err)
		}
	}
	return registry, nil
}

// parseTargets parses command-line seeds
func parseTargets(args []string) ([]domain.Target, error) {
	targets := make([]domain.Target, 0, len(args))
	for _, arg := range args {
		t, err := domain.ParseTarget(arg)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, nil
}
