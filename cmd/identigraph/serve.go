package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"identigraph/internal/config"
	"identigraph/internal/domain"
	"identigraph/internal/hub"
	"identigraph/internal/service"
	"identigraph/internal/watcher"
)

type serveFlags struct {
	runNow bool
	watch  bool
}

func newServeCmd(root *rootFlags) *cobra.Command {
	flags := &serveFlags{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Re-crawl configured seeds on a schedule and expose metrics",
		Long: `Run as a long-lived process. Seeds listed under refresh.seeds are
re-crawled on refresh.schedule so that new and retracted facts reach the
graph. Prometheus metrics are served on metrics.addr at /metrics and crawl
progress is streamed as server-sent events at /events.

With --watch, edits to the refresh section of the config file take effect
without a restart.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), root, flags)
		},
	}

	cmd.Flags().BoolVar(&flags.runNow, "run-now", false, "crawl all refresh seeds once at startup")
	cmd.Flags().BoolVar(&flags.watch, "watch", false, "reload refresh settings when the config file changes")
	return cmd
}

func runServe(ctx context.Context, root *rootFlags, flags *serveFlags) error {
	a, err := newApp(root)
	if err != nil {
		return err
	}
	defer a.Close()
	log := a.logger
	log.Info("starting identigraph", zap.Strings("upstreams", a.cfg.EnabledUpstreams()))
	log.Debug("config summary", zap.String("summary", a.cfg.Summary()))

	// Forward crawl events to the debug log
	eventChan := make(chan service.Event, 100)
	a.events.Subscribe(eventChan)
	defer a.events.Unsubscribe(eventChan)
	go func() {
		for {
			select {
			case event := <-eventChan:
				log.Debug("crawl event",
					zap.String("type", string(event.Type)),
					zap.String("crawl_id", event.CrawlID),
					zap.Any("payload", event.Payload))
			case <-ctx.Done():
				return
			}
		}
	}()

	scheduler := service.NewRefreshScheduler(ctx, a.crawler, log)
	scheduler.OnReport(func(r *service.CrawlReport) {
		log.Info("refresh crawl report",
			zap.String("seed", r.Seed.Key()),
			zap.String("stop_reason", string(r.StopReason)),
			zap.Int("visited", len(r.Targets)),
			zap.Int("identities", r.Stats.Identities))
	})

	refresh := &refreshReloader{scheduler: scheduler, logger: log}
	if err := refresh.apply(a.cfg.Refresh); err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Background crawls must finish before the database closes
	var runs sync.WaitGroup
	defer runs.Wait()
	if flags.runNow {
		refresh.runNow(ctx, &runs)
	}

	if flags.watch {
		if a.cfgPath == "" {
			log.Warn("--watch ignored: no config file in use")
		} else {
			w := watcher.New(a.cfgPath, func() { refresh.reload(a.cfgPath) }, log.Named("watcher"))
			go func() {
				if err := w.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Error("config watcher stopped", zap.Error(err))
				}
			}()
		}
	}

	var server *http.Server
	if a.cfg.Metrics.Enabled {
		events := hub.New(log.Named("hub"))
		go events.Run(ctx, a.events)

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.Handle("/events", events)
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ok"))
		})
		server = &http.Server{
			Addr:              a.cfg.Metrics.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			log.Info("metrics server listening", zap.String("addr", server.Addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server error", zap.Error(err))
			}
		}()
	}

	<-ctx.Done()
	log.Info("shutting down")

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("metrics server shutdown error", zap.Error(err))
		}
	}
	return nil
}

// refreshReloader keeps the scheduler's single refresh job in line with the
// refresh section of the config
type refreshReloader struct {
	mu        sync.Mutex
	scheduler *service.RefreshScheduler
	entry     cron.EntryID
	scheduled bool
	seeds     []domain.Target
	logger    *zap.Logger
}

// apply replaces the current refresh job. On error the old job is kept.
func (r *refreshReloader) apply(cfg config.RefreshConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		id    cron.EntryID
		seeds []domain.Target
	)
	if cfg.Enabled {
		var err error
		if seeds, err = parseTargets(cfg.Seeds); err != nil {
			return fmt.Errorf("refresh seeds: %w", err)
		}
		if id, err = r.scheduler.Schedule(cfg.Schedule, seeds); err != nil {
			return err
		}
	} else {
		r.logger.Info("refresh disabled")
	}

	if r.scheduled {
		r.scheduler.Unschedule(r.entry)
	}
	r.entry, r.scheduled, r.seeds = id, cfg.Enabled, seeds
	return nil
}

// runNow crawls the current seeds once in the background, tracked by wg.
// It reports whether a run was started.
func (r *refreshReloader) runNow(ctx context.Context, wg *sync.WaitGroup) bool {
	r.mu.Lock()
	seeds := r.seeds
	r.mu.Unlock()
	if len(seeds) == 0 {
		return false
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		r.scheduler.RunOnce(ctx, seeds)
	}()
	return true
}

func (r *refreshReloader) reload(path string) {
	cfg, _, err := config.LoadFromPath(path)
	if err == nil {
		err = r.apply(cfg.Refresh)
	}
	if err != nil {
		r.logger.Error("config reload failed, keeping current refresh job", zap.Error(err))
		return
	}
	r.logger.Info("refresh settings reloaded",
		zap.Bool("enabled", cfg.Refresh.Enabled),
		zap.String("schedule", cfg.Refresh.Schedule),
		zap.Int("seeds", len(cfg.Refresh.Seeds)))
}
