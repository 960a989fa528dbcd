package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"identigraph/internal/config"
	"identigraph/internal/domain"
	"identigraph/internal/repository/sqlite"
	"identigraph/internal/service"
	"identigraph/internal/upstream"
)

// writeConfig saves cfg to a temp file and returns its path
func writeConfig(t *testing.T, cfg *config.Config) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "identigraph.yaml")
	require.NoError(t, cfg.Save(path))
	return path
}

// offlineConfig disables every upstream so no command reaches the network
func offlineConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Database.Path = filepath.Join(t.TempDir(), "graph.db")
	cfg.Log.Level = "error"
	for _, u := range []*config.UpstreamConfig{
		&cfg.Upstreams.NextID, &cfg.Upstreams.SybilList, &cfg.Upstreams.ENSReverse,
		&cfg.Upstreams.TheGraph, &cfg.Upstreams.SpaceID, &cfg.Upstreams.DotBit, &cfg.Upstreams.RSS3,
	} {
		u.Enabled = false
	}
	return cfg
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestBuildRegistryHonoursEnabled(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Upstreams.SpaceID.Enabled = false
	cfg.Upstreams.RSS3.Enabled = true

	repo, err := sqlite.New(":memory:")
	require.NoError(t, err)
	defer repo.Close()

	registry, err := buildRegistry(cfg, repo, zap.NewNop())
	require.NoError(t, err)

	infos := registry.ListFetchers()
	assert.Len(t, infos, 7)

	enabled := make(map[domain.DataSource]bool)
	for _, info := range infos {
		enabled[info.Source] = info.Enabled
	}
	assert.True(t, enabled[domain.DataSourceNextID])
	assert.True(t, enabled[domain.DataSourceRSS3])
	assert.False(t, enabled[domain.DataSourceSpaceID])
	assert.False(t, enabled[domain.DataSourceDotbit])

	_, ok := registry.Get(domain.DataSourceSpaceID)
	assert.True(t, ok, "disabled fetchers stay registered")

	for _, f := range registry.Enabled() {
		assert.NotEqual(t, domain.DataSourceSpaceID, f.Source())
	}
}

func TestParseTargets(t *testing.T) {
	targets, err := parseTargets([]string{"ethereum:0xABC", "twitter:alice", "vitalik.eth"})
	require.NoError(t, err)
	require.Len(t, targets, 3)
	assert.Equal(t, domain.PlatformTwitter, targets[1].Platform)
	assert.True(t, targets[2].IsNFT())

	_, err = parseTargets([]string{"twitter:alice", ""})
	assert.Error(t, err)

	targets, err = parseTargets(nil)
	require.NoError(t, err)
	assert.Empty(t, targets)
}

func TestCrawlCommandRequiresSeeds(t *testing.T) {
	_, err := runCommand(t, "crawl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no seeds")
}

func TestCrawlCommandRejectsUnknownFormat(t *testing.T) {
	_, err := runCommand(t, "crawl", "twitter:alice", "--format", "xml")
	assert.Error(t, err)
}

func TestCrawlCommandOffline(t *testing.T) {
	cfg := offlineConfig(t)
	path := writeConfig(t, cfg)

	out, err := runCommand(t, "crawl", "--config", path, "twitter:alice")
	require.NoError(t, err)

	var report map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "converged", report["stop_reason"])
	assert.EqualValues(t, 1, report["rounds"])

	_, err = os.Stat(cfg.Database.Path)
	assert.NoError(t, err, "database file is created")
}

func TestCrawlCommandSeedsFile(t *testing.T) {
	cfg := offlineConfig(t)
	path := writeConfig(t, cfg)

	seeds := filepath.Join(t.TempDir(), "seeds.yaml")
	require.NoError(t, os.WriteFile(seeds, []byte("seeds:\n  - twitter:alice\n"), 0644))
	report := filepath.Join(t.TempDir(), "report.yaml")

	out, err := runCommand(t, "crawl", "--config", path, "--seeds-file", seeds, "-f", "yaml", "-o", report)
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(report)
	require.NoError(t, err)
	assert.Contains(t, string(data), "converged")
}

func TestAbilityCommand(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Database.Path = filepath.Join(t.TempDir(), "unused.db")
	path := writeConfig(t, cfg)

	out, err := runCommand(t, "ability", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "SOURCE")
	assert.Contains(t, out, string(domain.DataSourceNextID))
	assert.Contains(t, out, string(domain.DataSourceDotbit))

	_, err = os.Stat(cfg.Database.Path)
	assert.True(t, os.IsNotExist(err), "ability does not touch the configured database")

	out, err = runCommand(t, "ability", "--config", path, "--json")
	require.NoError(t, err)

	var payload struct {
		Fetchers  []upstream.FetcherInfo `json:"fetchers"`
		Abilities []upstream.Ability     `json:"abilities"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	assert.Len(t, payload.Fetchers, 7)
	assert.NotEmpty(t, payload.Abilities)
}

type nopCrawler struct{}

func (nopCrawler) Crawl(ctx context.Context, seed domain.Target) (*service.CrawlReport, error) {
	return &service.CrawlReport{Seed: seed}, nil
}

func TestRefreshReloader(t *testing.T) {
	scheduler := service.NewRefreshScheduler(context.Background(), nopCrawler{}, nil)
	r := &refreshReloader{scheduler: scheduler, logger: zap.NewNop()}

	cfg := offlineConfig(t)
	cfg.Refresh.Enabled = true
	cfg.Refresh.Seeds = []string{"twitter:alice"}
	path := writeConfig(t, cfg)

	require.NoError(t, r.apply(cfg.Refresh))
	assert.Equal(t, 1, scheduler.Entries())

	cfg.Refresh.Schedule = "@every 1h"
	require.NoError(t, cfg.Save(path))
	r.reload(path)
	assert.Equal(t, 1, scheduler.Entries(), "reload replaces the job")

	require.NoError(t, os.WriteFile(path, []byte("refresh:\n  enabled: true\n  schedule: bogus\n  seeds: [\"twitter:alice\"]\n"), 0644))
	r.reload(path)
	assert.Equal(t, 1, scheduler.Entries(), "a bad schedule keeps the current job")

	cfg.Refresh.Enabled = false
	require.NoError(t, cfg.Save(path))
	r.reload(path)
	assert.Equal(t, 0, scheduler.Entries())
}

// blockingCrawler holds each crawl until ctx is done
type blockingCrawler struct {
	started  chan string
	finished atomic.Int32
}

func (c *blockingCrawler) Crawl(ctx context.Context, seed domain.Target) (*service.CrawlReport, error) {
	c.started <- seed.Key()
	<-ctx.Done()
	time.Sleep(20 * time.Millisecond)
	c.finished.Add(1)
	return &service.CrawlReport{Seed: seed}, nil
}

func TestRefreshRunNowIsAwaited(t *testing.T) {
	crawler := &blockingCrawler{started: make(chan string, 1)}
	scheduler := service.NewRefreshScheduler(context.Background(), crawler, nil)
	r := &refreshReloader{scheduler: scheduler, logger: zap.NewNop()}

	var runs sync.WaitGroup
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	assert.False(t, r.runNow(ctx, &runs), "nothing to run while refresh is disabled")

	require.NoError(t, r.apply(config.RefreshConfig{
		Enabled:  true,
		Schedule: "@every 1h",
		Seeds:    []string{"twitter:alice"},
	}))
	require.True(t, r.runNow(ctx, &runs))

	select {
	case key := <-crawler.started:
		assert.Equal(t, "twitter:alice", key)
	case <-time.After(time.Second):
		t.Fatal("run-now crawl did not start")
	}

	cancel()
	runs.Wait()
	assert.Equal(t, int32(1), crawler.finished.Load(), "wait returns only after the crawl finished")
}
