// Package orchestrator drives a planned batch of download targets
// through the executor, one at a time, and aggregates the outcomes.
// A target's failure never stops the batch.
package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gtfsrt-io/rtfetch/internal/fetcher"
	"github.com/gtfsrt-io/rtfetch/internal/planner"
)

// Executor realizes one target. Satisfied by *fetcher.Fetcher.
type Executor interface {
	Fetch(ctx context.Context, target planner.Target) fetcher.Outcome
}

// Observer receives per-target progress. All methods are called from
// the orchestration goroutine, strictly sequentially.
type Observer interface {
	TargetStarted(index, total int, target planner.Target)
	TargetFinished(index, total int, outcome fetcher.Outcome)
}

// FeedCounts accumulates per-feed outcome tallies.
type FeedCounts struct {
	Downloaded int
	Skipped    int
	Failed     int
}

// Failure records one failed target for the summary.
type Failure struct {
	Target planner.Target
	Kind   fetcher.FailureKind
	Err    error
}

// Summary is the aggregated result of one orchestration pass.
type Summary struct {
	RunID           uuid.UUID
	Counts          map[string]*FeedCounts // keyed by Target.FeedKey()
	FeedOrder       []string               // keys in first-seen (plan) order
	Failures        []Failure
	BytesDownloaded int64
	Started         time.Time
	Finished        time.Time
}

func newSummary() *Summary {
	return &Summary{
		RunID:   uuid.New(),
		Counts:  make(map[string]*FeedCounts),
		Started: time.Now(),
	}
}

func (s *Summary) counts(key string) *FeedCounts {
	c, ok := s.Counts[key]
	if !ok {
		c = &FeedCounts{}
		s.Counts[key] = c
		s.FeedOrder = append(s.FeedOrder, key)
	}
	return c
}

// TotalDownloaded sums downloads across all feeds.
func (s *Summary) TotalDownloaded() int {
	n := 0
	for _, c := range s.Counts {
		n += c.Downloaded
	}
	return n
}

// TotalSkipped sums skips across all feeds.
func (s *Summary) TotalSkipped() int {
	n := 0
	for _, c := range s.Counts {
		n += c.Skipped
	}
	return n
}

// Orchestrator runs batches sequentially. The summary is owned by the
// running pass and never touched concurrently.
type Orchestrator struct {
	exec     Executor
	logger   *slog.Logger
	observer Observer
}

// New builds an Orchestrator. observer may be nil.
func New(exec Executor, logger *slog.Logger, observer Observer) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{exec: exec, logger: logger, observer: observer}
}

// Run executes every target in plan order. An empty batch is valid and
// yields a zero summary. The only error Run itself returns is context
// cancellation; per-target failures are recorded in the summary.
func (o *Orchestrator) Run(ctx context.Context, targets []planner.Target) (*Summary, error) {
	summary := newSummary()
	logger := o.logger.With(slog.String("run_id", summary.RunID.String()))
	logger.Info("Starting download pass.", slog.Int("targets", len(targets)))

	total := len(targets)
	for i, target := range targets {
		select {
		case <-ctx.Done():
			logger.Warn("Download pass cancelled.", slog.Int("completed", i))
			summary.Finished = time.Now()
			return summary, ctx.Err()
		default:
		}

		if o.observer != nil {
			o.observer.TargetStarted(i, total, target)
		}
		outcome := o.exec.Fetch(ctx, target)
		o.record(summary, outcome)
		if o.observer != nil {
			o.observer.TargetFinished(i, total, outcome)
		}
	}

	summary.Finished = time.Now()
	logger.Info("Download pass complete.",
		slog.Int("downloaded", summary.TotalDownloaded()),
		slog.Int("skipped", summary.TotalSkipped()),
		slog.Int("failed", len(summary.Failures)),
		slog.Int64("bytes", summary.BytesDownloaded),
	)
	return summary, nil
}

func (o *Orchestrator) record(summary *Summary, outcome fetcher.Outcome) {
	c := summary.counts(outcome.Target.FeedKey())
	switch outcome.Status {
	case fetcher.StatusDownloaded:
		c.Downloaded++
		summary.BytesDownloaded += outcome.Bytes
	case fetcher.StatusSkipped:
		c.Skipped++
	case fetcher.StatusFailed:
		c.Failed++
		summary.Failures = append(summary.Failures, Failure{
			Target: outcome.Target,
			Kind:   outcome.Failure,
			Err:    outcome.Err,
		})
	}
}
