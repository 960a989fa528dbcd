package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Version != 1 {
		t.Errorf("Version = %d, want 1", cfg.Version)
	}
	if cfg.Database.Path == "" {
		t.Error("Database.Path should not be empty")
	}
	if cfg.Crawl.MaxRounds != 8 || cfg.Crawl.MaxVisited != 500 {
		t.Errorf("Crawl = %+v, want max_rounds=8 max_visited=500", cfg.Crawl)
	}
	if cfg.Crawl.Timeout.Duration() != 2*time.Minute {
		t.Errorf("Crawl.Timeout = %s, want 2m", cfg.Crawl.Timeout.Duration())
	}

	want := []string{"nextid", "sybil_list", "ens_reverse", "the_graph", "space_id"}
	got := cfg.EnabledUpstreams()
	if len(got) != len(want) {
		t.Fatalf("EnabledUpstreams() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("EnabledUpstreams()[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFromPathKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
database:
  path: /var/lib/identigraph/graph.db
crawl:
  max_rounds: 3
  timeout: 45s
upstreams:
  rss3:
    enabled: true
    rate_limit: 2.5
  sybil_list:
    enabled: false
`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, got, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error: %v", err)
	}
	if got != path {
		t.Errorf("path = %s, want %s", got, path)
	}

	if cfg.Database.Path != "/var/lib/identigraph/graph.db" {
		t.Errorf("Database.Path = %s", cfg.Database.Path)
	}
	if cfg.Crawl.MaxRounds != 3 {
		t.Errorf("Crawl.MaxRounds = %d, want 3", cfg.Crawl.MaxRounds)
	}
	if cfg.Crawl.MaxVisited != 500 {
		t.Errorf("Crawl.MaxVisited = %d, want default 500", cfg.Crawl.MaxVisited)
	}
	if cfg.Crawl.Timeout.Duration() != 45*time.Second {
		t.Errorf("Crawl.Timeout = %s, want 45s", cfg.Crawl.Timeout.Duration())
	}
	if !cfg.Upstreams.RSS3.Enabled || cfg.Upstreams.RSS3.RateLimit != 2.5 {
		t.Errorf("RSS3 = %+v, want enabled with rate 2.5", cfg.Upstreams.RSS3)
	}
	if cfg.Upstreams.RSS3.Timeout.Duration() != 5*time.Second {
		t.Errorf("RSS3.Timeout = %s, want default 5s", cfg.Upstreams.RSS3.Timeout.Duration())
	}
	if cfg.Upstreams.SybilList.Enabled {
		t.Error("SybilList should be disabled by the file")
	}
	if !cfg.Upstreams.NextID.Enabled {
		t.Error("NextID should stay enabled by default")
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("crawl:\n  max_rounds: 3\n"), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("IDENTIGRAPH_CRAWL_MAX_ROUNDS", "5")
	t.Setenv("IDENTIGRAPH_DATABASE_PATH", "/tmp/env.db")
	t.Setenv("IDENTIGRAPH_UPSTREAM_THE_GRAPH_URL", "http://localhost:8000/subgraphs/ens")
	t.Setenv("IDENTIGRAPH_UPSTREAM_NEXTID_TIMEOUT", "750ms")
	t.Setenv("IDENTIGRAPH_REFRESH_SEEDS", "ethereum:0xabc,twitter:alice")

	cfg, _, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error: %v", err)
	}

	if cfg.Crawl.MaxRounds != 5 {
		t.Errorf("Crawl.MaxRounds = %d, want 5 (env wins over file)", cfg.Crawl.MaxRounds)
	}
	if cfg.Database.Path != "/tmp/env.db" {
		t.Errorf("Database.Path = %s, want /tmp/env.db", cfg.Database.Path)
	}
	if cfg.Upstreams.TheGraph.URL != "http://localhost:8000/subgraphs/ens" {
		t.Errorf("TheGraph.URL = %s", cfg.Upstreams.TheGraph.URL)
	}
	if cfg.Upstreams.NextID.Timeout.Duration() != 750*time.Millisecond {
		t.Errorf("NextID.Timeout = %s, want 750ms", cfg.Upstreams.NextID.Timeout.Duration())
	}
	if len(cfg.Refresh.Seeds) != 2 || cfg.Refresh.Seeds[1] != "twitter:alice" {
		t.Errorf("Refresh.Seeds = %v", cfg.Refresh.Seeds)
	}
}

func TestValidate(t *testing.T) {
	t.Run("bad encoding", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Log.Encoding = "xml"
		if err := cfg.Validate(); err == nil {
			t.Error("expected error for unknown encoding")
		}
	})

	t.Run("refresh without seeds", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Refresh.Enabled = true
		if err := cfg.Validate(); err == nil {
			t.Error("expected error for refresh without seeds")
		}
	})

	t.Run("negative rate limit", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Upstreams.SpaceID.RateLimit = -1
		if err := cfg.Validate(); err == nil {
			t.Error("expected error for negative rate limit")
		}
	})
}

func TestSaveAndLoad(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Refresh.Enabled = true
	cfg.Refresh.Seeds = []string{"ethereum:0xabc"}
	cfg.Upstreams.DotBit.Enabled = true

	if err := cfg.Save(configPath); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	loaded, _, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath() error: %v", err)
	}
	if !loaded.Refresh.Enabled || len(loaded.Refresh.Seeds) != 1 {
		t.Errorf("Refresh = %+v", loaded.Refresh)
	}
	if !loaded.Upstreams.DotBit.Enabled {
		t.Error("DotBit should be enabled")
	}
	if loaded.Upstreams.SybilListTTL.Duration() != 30*time.Minute {
		t.Errorf("SybilListTTL = %s, want 30m", loaded.Upstreams.SybilListTTL.Duration())
	}
}

func TestFindConfigPath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ConfigFileName)
	if err := DefaultConfig().Save(configPath); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	explicit := filepath.Join(t.TempDir(), "explicit.yaml")
	if err := DefaultConfig().Save(explicit); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvConfigPath, explicit)
	if found := FindConfigPath(); found != explicit {
		t.Errorf("FindConfigPath() = %s, want explicit %s", found, explicit)
	}

	oldWd, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(oldWd)

	// Explicit path doesn't exist, should fall back to the working directory
	t.Setenv(EnvConfigPath, "/nonexistent/path.yaml")
	found := FindConfigPath()
	if filepath.Base(found) != ConfigFileName {
		t.Errorf("FindConfigPath() = %s, want working directory config", found)
	}
}

func TestDuration(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("90s")); err != nil {
		t.Fatalf("UnmarshalText() error: %v", err)
	}
	if d.Duration() != 90*time.Second {
		t.Errorf("Duration() = %s, want 1m30s", d.Duration())
	}

	marshaled, err := d.MarshalYAML()
	if err != nil {
		t.Fatalf("MarshalYAML() error: %v", err)
	}
	if marshaled != "1m30s" {
		t.Errorf("MarshalYAML() = %v, want 1m30s", marshaled)
	}

	if err := d.UnmarshalText([]byte("soon")); err == nil {
		t.Error("expected error for invalid duration")
	}
}
