package service

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"identigraph/internal/domain"
)

// Crawler runs a single crawl from a seed
type Crawler interface {
	Crawl(ctx context.Context, seed domain.Target) (*CrawlReport, error)
}

// cronParser accepts both 5-field and 6-field (leading seconds) specs and
// descriptors such as "@every 30m"
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// RefreshScheduler re-crawls a fixed set of seeds on a cron schedule so that
// retracted and newly asserted facts reach the graph
type RefreshScheduler struct {
	cron     *cron.Cron
	crawler  Crawler
	logger   *zap.Logger
	baseCtx  context.Context
	onReport func(*CrawlReport)
}

// NewRefreshScheduler creates a scheduler. Jobs run with baseCtx.
func NewRefreshScheduler(baseCtx context.Context, crawler Crawler, logger *zap.Logger) *RefreshScheduler {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("refresh")
	return &RefreshScheduler{
		cron: cron.New(
			cron.WithParser(cronParser),
			cron.WithChain(cron.SkipIfStillRunning(cronLogger{logger.Sugar()})),
		),
		crawler: crawler,
		logger:  logger,
		baseCtx: baseCtx,
	}
}

// OnReport registers a callback invoked after every scheduled crawl
func (r *RefreshScheduler) OnReport(fn func(*CrawlReport)) {
	r.onReport = fn
}

// Schedule registers a job that crawls seeds on spec. An overlapping run is
// skipped rather than queued.
func (r *RefreshScheduler) Schedule(spec string, seeds []domain.Target) (cron.EntryID, error) {
	if len(seeds) == 0 {
		return 0, fmt.Errorf("schedule %q: no seeds", spec)
	}
	id, err := r.cron.AddFunc(spec, func() {
		r.RunOnce(r.baseCtx, seeds)
	})
	if err != nil {
		return 0, fmt.Errorf("schedule %q: %w", spec, err)
	}
	r.logger.Info("refresh scheduled", zap.String("spec", spec), zap.Int("seeds", len(seeds)))
	return id, nil
}

// Unschedule removes a job added by Schedule
func (r *RefreshScheduler) Unschedule(id cron.EntryID) {
	r.cron.Remove(id)
	r.logger.Info("refresh unscheduled", zap.Int("entry", int(id)))
}

// Entries returns the number of scheduled jobs
func (r *RefreshScheduler) Entries() int {
	return len(r.cron.Entries())
}

// RunOnce crawls each seed in turn. Seeds run sequentially so they share the
// fetchers' rate limits. Failed crawls are logged and do not stop the batch.
func (r *RefreshScheduler) RunOnce(ctx context.Context, seeds []domain.Target) []*CrawlReport {
	reports := make([]*CrawlReport, 0, len(seeds))
	for _, seed := range seeds {
		if ctx.Err() != nil {
			break
		}
		report, err := r.crawler.Crawl(ctx, seed)
		if err != nil {
			r.logger.Error("refresh crawl failed", zap.String("seed", seed.Key()), zap.Error(err))
		}
		if report == nil {
			continue
		}
		reports = append(reports, report)
		if r.onReport != nil {
			r.onReport(report)
		}
	}
	return reports
}

func (r *RefreshScheduler) Start() {
	r.logger.Info("refresh scheduler started")
	r.cron.Start()
}

// Stop stops scheduling and waits for a running job to finish
func (r *RefreshScheduler) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.logger.Info("refresh scheduler stopped")
}

// cronLogger adapts zap to cron.Logger
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
