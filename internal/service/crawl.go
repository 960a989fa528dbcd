package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"identigraph/internal/domain"
	"identigraph/internal/repository"
	"identigraph/internal/upstream"
)

// ErrStorage is returned by Crawl when at least one fact could not be
// persisted. The crawl itself still runs to completion.
var ErrStorage = errors.New("crawl finished with storage errors")

// ErrInvalidSeed is returned for seeds that cannot be dispatched
var ErrInvalidSeed = errors.New("invalid seed target")

// Safety valve defaults
const (
	DefaultMaxRounds   = 8
	DefaultMaxVisited  = 500
	DefaultConcurrency = 8
	DefaultCrawlTime   = 2 * time.Minute
)

// TargetState is the lifecycle of a target within one crawl
type TargetState string

const (
	TargetPending         TargetState = "pending"
	TargetDispatched      TargetState = "dispatched"
	TargetCompleted       TargetState = "completed"
	TargetPartiallyFailed TargetState = "partially_failed"
	TargetFailed          TargetState = "failed"
)

// StopReason explains why a crawl stopped dispatching rounds
type StopReason string

const (
	StopConverged  StopReason = "converged"
	StopMaxRounds  StopReason = "max_rounds"
	StopMaxVisited StopReason = "max_visited"
	StopDeadline   StopReason = "deadline"
	StopCanceled   StopReason = "canceled"
)

// CrawlOptions bounds a crawl. Zero values select the defaults.
type CrawlOptions struct {
	MaxRounds   int
	MaxVisited  int
	Concurrency int
	Timeout     time.Duration
}

func (o CrawlOptions) withDefaults() CrawlOptions {
	if o.MaxRounds <= 0 {
		o.MaxRounds = DefaultMaxRounds
	}
	if o.MaxVisited <= 0 {
		o.MaxVisited = DefaultMaxVisited
	}
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultCrawlTime
	}
	return o
}

// FetchError is a failed fetch as recorded in a report
type FetchError struct {
	Source  domain.DataSource `json:"source"`
	Kind    upstream.Kind     `json:"kind"`
	Message string            `json:"message"`
}

// TargetReport is the outcome of one visited target
type TargetReport struct {
	Target     domain.Target       `json:"target"`
	Round      int                 `json:"round"`
	State      TargetState         `json:"state"`
	Fetchers   []domain.DataSource `json:"fetchers,omitempty"`
	Discovered int                 `json:"discovered"`
	Errors     []FetchError        `json:"errors,omitempty"`
}

// CrawlReport summarizes a finished crawl
type CrawlReport struct {
	ID            string           `json:"id"`
	Seed          domain.Target    `json:"seed"`
	StartedAt     time.Time        `json:"started_at"`
	FinishedAt    time.Time        `json:"finished_at"`
	Rounds        int              `json:"rounds"`
	StopReason    StopReason       `json:"stop_reason"`
	Targets       []*TargetReport  `json:"targets"`
	StorageErrors int              `json:"storage_errors"`
	Stats         repository.Stats `json:"stats"`
}

// Target returns the report entry for key, or nil
func (r *CrawlReport) Target(key string) *TargetReport {
	for _, t := range r.Targets {
		if t.Target.Key() == key {
			return t
		}
	}
	return nil
}

// CountByState returns how many targets ended in state
func (r *CrawlReport) CountByState(state TargetState) int {
	n := 0
	for _, t := range r.Targets {
		if t.State == state {
			n++
		}
	}
	return n
}

// FetcherSet selects the fetchers able to handle a target
type FetcherSet interface {
	Capable(target domain.Target) []upstream.Fetcher
}

// StatsReader reports graph size after a crawl
type StatsReader interface {
	Stats(ctx context.Context) (repository.Stats, error)
}

// CrawlService expands a seed identity into the graph round by round
type CrawlService struct {
	fetchers FetcherSet
	stats    StatsReader
	eventBus *EventBus
	logger   *zap.Logger
	opts     CrawlOptions
}

// NewCrawlService creates a crawl service. stats, eventBus and logger may be nil.
func NewCrawlService(fetchers FetcherSet, stats StatsReader, eventBus *EventBus, logger *zap.Logger, opts CrawlOptions) *CrawlService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CrawlService{
		fetchers: fetchers,
		stats:    stats,
		eventBus: eventBus,
		logger:   logger.Named("crawl"),
		opts:     opts.withDefaults(),
	}
}

// fetchOutcome is written by exactly one fetch goroutine
type fetchOutcome struct {
	source domain.DataSource
	next   []domain.Target
	err    error
}

// Crawl runs breadth-first rounds from seed until no new targets appear or a
// safety valve trips. Each target is dispatched at most once per crawl.
// Fetch failures are recorded in the report and never stop the crawl; the
// returned error wraps ErrStorage if any fact failed to persist.
func (s *CrawlService) Crawl(ctx context.Context, seed domain.Target) (*CrawlReport, error) {
	seed = seed.Normalize()
	if !dispatchable(seed) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSeed, seed)
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	report := &CrawlReport{
		ID:        uuid.NewString(),
		Seed:      seed,
		StartedAt: time.Now().UTC(),
	}
	log := s.logger.With(zap.String("crawl_id", report.ID), zap.String("seed", seed.Key()))
	log.Info("crawl started")
	s.publish(report.ID, EventCrawlStarted, map[string]any{"seed": seed.Key()})

	visited := map[string]*TargetReport{}
	admit := func(t domain.Target, round int) *TargetReport {
		tr := &TargetReport{Target: t, Round: round, State: TargetPending}
		visited[t.Key()] = tr
		report.Targets = append(report.Targets, tr)
		return tr
	}

	frontier := []*TargetReport{admit(seed, 1)}
	var firstStorageErr error

	for len(frontier) > 0 {
		if report.Rounds >= s.opts.MaxRounds {
			report.StopReason = StopMaxRounds
			break
		}
		if err := ctx.Err(); err != nil {
			report.StopReason = StopDeadline
			if errors.Is(err, context.Canceled) {
				report.StopReason = StopCanceled
			}
			break
		}

		report.Rounds++
		round := report.Rounds
		log.Debug("round started", zap.Int("round", round), zap.Int("frontier", len(frontier)))
		s.publish(report.ID, EventRoundStarted, map[string]any{"round": round, "frontier": len(frontier)})

		outcomes := s.runRound(ctx, report.ID, frontier)

		var next []*TargetReport
		capped := false
		for i, tr := range frontier {
			failed := 0
			for _, o := range outcomes[i] {
				if o.err != nil {
					if upstream.IsNoResult(o.err) {
						log.Debug("no result", zap.String("source", string(o.source)), zap.String("target", tr.Target.Key()))
					} else {
						failed++
						tr.Errors = append(tr.Errors, FetchError{
							Source:  o.source,
							Kind:    upstream.KindOf(o.err),
							Message: o.err.Error(),
						})
						log.Warn("fetch failed",
							zap.String("source", string(o.source)),
							zap.String("target", tr.Target.Key()),
							zap.String("kind", string(upstream.KindOf(o.err))),
							zap.Error(o.err))
						if errors.Is(o.err, upstream.ErrStorage) {
							report.StorageErrors++
							if firstStorageErr == nil {
								firstStorageErr = o.err
							}
						}
					}
				}

				for _, t := range o.next {
					t = t.Normalize()
					if !dispatchable(t) {
						continue
					}
					if _, seen := visited[t.Key()]; seen {
						continue
					}
					if len(visited) >= s.opts.MaxVisited {
						capped = true
						continue
					}
					tr.Discovered++
					next = append(next, admit(t, round+1))
				}
			}
			tr.State = targetState(failed, len(outcomes[i]))
			crawlTargetsTotal.WithLabelValues(string(tr.State)).Inc()
			s.publish(report.ID, EventTargetCompleted, map[string]any{
				"target":     tr.Target.Key(),
				"state":      tr.State,
				"discovered": tr.Discovered,
			})
		}

		frontier = next
		if capped {
			report.StopReason = StopMaxVisited
			break
		}
	}
	if report.StopReason == "" {
		report.StopReason = StopConverged
	}

	// Reads after the deadline must still succeed
	if s.stats != nil {
		stats, err := s.stats.Stats(context.WithoutCancel(ctx))
		if err != nil {
			log.Warn("failed to read graph stats", zap.Error(err))
		} else {
			report.Stats = stats
		}
	}

	report.FinishedAt = time.Now().UTC()
	crawlsTotal.WithLabelValues(string(report.StopReason)).Inc()
	crawlRounds.Observe(float64(report.Rounds))
	crawlDuration.Observe(report.FinishedAt.Sub(report.StartedAt).Seconds())

	log.Info("crawl finished",
		zap.String("stop_reason", string(report.StopReason)),
		zap.Int("rounds", report.Rounds),
		zap.Int("visited", len(report.Targets)),
		zap.Int("partially_failed", report.CountByState(TargetPartiallyFailed)),
		zap.Int("failed", report.CountByState(TargetFailed)),
		zap.Int("storage_errors", report.StorageErrors))
	s.publish(report.ID, EventCrawlFinished, map[string]any{
		"stop_reason": report.StopReason,
		"rounds":      report.Rounds,
		"visited":     len(report.Targets),
	})

	if firstStorageErr != nil {
		return report, fmt.Errorf("%w (%d failed): %w", ErrStorage, report.StorageErrors, firstStorageErr)
	}
	return report, nil
}

// runRound fetches every (target, capable fetcher) pair of the frontier
// concurrently and waits for all of them. Fetches do not observe the crawl
// deadline; each call is bounded by its fetcher's own timeout.
func (s *CrawlService) runRound(ctx context.Context, crawlID string, frontier []*TargetReport) [][]fetchOutcome {
	fetchCtx := context.WithoutCancel(ctx)
	outcomes := make([][]fetchOutcome, len(frontier))

	g := new(errgroup.Group)
	g.SetLimit(s.opts.Concurrency)

	for i, tr := range frontier {
		fetchers := s.fetchers.Capable(tr.Target)
		outcomes[i] = make([]fetchOutcome, len(fetchers))
		tr.State = TargetDispatched
		for _, f := range fetchers {
			tr.Fetchers = append(tr.Fetchers, f.Source())
		}
		s.publish(crawlID, EventTargetDispatched, map[string]any{
			"target":   tr.Target.Key(),
			"fetchers": tr.Fetchers,
		})

		for j, f := range fetchers {
			slot := &outcomes[i][j]
			target := tr.Target
			g.Go(func() error {
				next, err := f.Fetch(fetchCtx, target)
				*slot = fetchOutcome{source: f.Source(), next: next, err: err}
				return nil
			})
		}
	}

	_ = g.Wait()
	return outcomes
}

func (s *CrawlService) publish(crawlID string, eventType EventType, payload any) {
	s.eventBus.Publish(Event{Type: eventType, CrawlID: crawlID, Payload: payload})
}

// targetState folds fetch outcomes into a final state. A target is failed
// only when every capable fetcher errored.
func targetState(failed, total int) TargetState {
	switch {
	case failed == 0:
		return TargetCompleted
	case failed == total:
		return TargetFailed
	default:
		return TargetPartiallyFailed
	}
}

// dispatchable reports whether a target carries enough to be fetched
func dispatchable(t domain.Target) bool {
	switch t.Kind {
	case domain.TargetKindIdentity:
		return t.Platform != "" && t.Platform != domain.PlatformUnknown && t.Identity != ""
	case domain.TargetKindNFT:
		return t.Chain != "" && t.Category != "" && t.NFTID != ""
	default:
		return false
	}
}
