package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/grid-frequency-etl/internal/domain"
	"github.com/couchcryptid/grid-frequency-etl/internal/extract"
	"github.com/couchcryptid/grid-frequency-etl/internal/fetch"
	"github.com/couchcryptid/grid-frequency-etl/internal/observability"
	"github.com/couchcryptid/grid-frequency-etl/internal/report"
	"github.com/couchcryptid/grid-frequency-etl/internal/weekly"
)

// Stage names, in the order Run executes them.
const (
	StageFetch     = "fetch"
	StageExtract   = "extract"
	StageAggregate = "aggregate"
	StageCount     = "count"
	StageReport    = "report"
)

// Stages lists every stage in execution order.
var Stages = []string{StageFetch, StageExtract, StageAggregate, StageCount, StageReport}

// ErrUnknownStage is returned by RunStage for a name not in Stages.
var ErrUnknownStage = errors.New("unknown stage")

// Fetcher downloads monthly archives.
type Fetcher interface {
	Run(ctx context.Context, from, to domain.Month) (fetch.Report, error)
}

// Extractor unpacks archives into daily files.
type Extractor interface {
	Run(ctx context.Context) (extract.Report, error)
}

// Aggregator builds weekly series from daily files.
type Aggregator interface {
	Run(ctx context.Context) (weekly.Report, error)
}

// Counter writes the weekly summary.
type Counter interface {
	Run(ctx context.Context) ([]domain.WeeklySummary, error)
}

// Reporter renders the summary.
type Reporter interface {
	Run(ctx context.Context) ([]report.YearSeries, error)
}

// Status is a snapshot of pipeline progress.
type Status struct {
	Running   bool      `json:"running"`
	Stage     string    `json:"stage,omitempty"`
	Completed []string  `json:"completed"`
	StartedAt time.Time `json:"started_at,omitzero"`
	LastError string    `json:"last_error,omitempty"`
}

// Pipeline runs the stages in fixed order. Each stage reads only what the
// previous stages left on disk, so any stage can also run on its own.
type Pipeline struct {
	fetcher    Fetcher
	extractor  Extractor
	aggregator Aggregator
	counter    Counter
	reporter   Reporter
	from, to   domain.Month
	logger     *slog.Logger
	metrics    *observability.Metrics
	ready      atomic.Bool

	mu     sync.Mutex
	status Status
}

// New creates a Pipeline. from and to bound the months fetched.
func New(f Fetcher, e Extractor, a Aggregator, c Counter, r Reporter, from, to domain.Month, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		fetcher:    f,
		extractor:  e,
		aggregator: a,
		counter:    c,
		reporter:   r,
		from:       from,
		to:         to,
		logger:     logger,
		metrics:    metrics,
		status:     Status{Completed: []string{}},
	}
}

// CheckReadiness returns nil once a full run has completed.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a run yet")
	}
	return nil
}

// Status returns a copy of the current progress.
func (p *Pipeline) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.status
	s.Completed = append([]string(nil), p.status.Completed...)
	return s
}

// Run executes every stage in order and stops at the first error. Outputs of
// completed stages stay on disk.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "from", p.from.String(), "to", p.to.String())
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	p.update(func(s *Status) {
		s.Running = true
		s.Completed = []string{}
		s.StartedAt = domain.Now()
		s.LastError = ""
	})
	defer p.update(func(s *Status) {
		s.Running = false
		s.Stage = ""
	})

	start := domain.Now()
	for _, name := range Stages {
		if err := p.RunStage(ctx, name); err != nil {
			return err
		}
	}
	p.ready.Store(true)
	p.logger.Info("pipeline finished", "duration", domain.Now().Sub(start).String())
	return nil
}

// RunStage executes a single stage by name.
func (p *Pipeline) RunStage(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	run, ok := p.stage(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownStage, name)
	}

	p.update(func(s *Status) { s.Stage = name })
	p.logger.Info("stage started", "stage", name)
	start := domain.Now()

	attrs, err := run(ctx)
	elapsed := domain.Now().Sub(start)
	p.metrics.StageDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	if err != nil {
		p.logger.Error("stage failed", "stage", name, "error", err, "duration", elapsed.String())
		p.update(func(s *Status) { s.LastError = fmt.Sprintf("%s: %v", name, err) })
		return fmt.Errorf("%s stage: %w", name, err)
	}

	p.logger.Info("stage finished", append([]any{"stage", name, "duration", elapsed.String()}, attrs...)...)
	p.update(func(s *Status) { s.Completed = append(s.Completed, name) })
	return nil
}

// stage returns the runner for name. Runners return log attributes
// summarizing their outcome.
func (p *Pipeline) stage(name string) (func(context.Context) ([]any, error), bool) {
	switch name {
	case StageFetch:
		return func(ctx context.Context) ([]any, error) {
			r, err := p.fetcher.Run(ctx, p.from, p.to)
			return []any{"fetched", len(r.Fetched), "skipped", len(r.Skipped), "failed", len(r.Failed)}, err
		}, true
	case StageExtract:
		return func(ctx context.Context) ([]any, error) {
			r, err := p.extractor.Run(ctx)
			return []any{"archives", len(r.Extracted), "skipped", len(r.Skipped), "files", r.Files}, err
		}, true
	case StageAggregate:
		return func(ctx context.Context) ([]any, error) {
			r, err := p.aggregator.Run(ctx)
			return []any{"processed", len(r.Processed), "malformed", len(r.Malformed), "weeks_written", len(r.Written)}, err
		}, true
	case StageCount:
		return func(ctx context.Context) ([]any, error) {
			rows, err := p.counter.Run(ctx)
			return []any{"weeks", len(rows)}, err
		}, true
	case StageReport:
		return func(ctx context.Context) ([]any, error) {
			years, err := p.reporter.Run(ctx)
			return []any{"years", len(years)}, err
		}, true
	}
	return nil, false
}

func (p *Pipeline) update(fn func(*Status)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(&p.status)
}
