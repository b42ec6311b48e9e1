package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/grid-frequency-etl/internal/domain"
	"github.com/couchcryptid/grid-frequency-etl/internal/extract"
	"github.com/couchcryptid/grid-frequency-etl/internal/fetch"
	"github.com/couchcryptid/grid-frequency-etl/internal/observability"
	"github.com/couchcryptid/grid-frequency-etl/internal/pipeline"
	"github.com/couchcryptid/grid-frequency-etl/internal/report"
	"github.com/couchcryptid/grid-frequency-etl/internal/weekly"
)

// --- mocks ---

type calls struct {
	order []string
	fail  map[string]error
}

func (c *calls) record(name string) error {
	c.order = append(c.order, name)
	return c.fail[name]
}

type mockFetcher struct {
	c        *calls
	from, to domain.Month
}

func (m *mockFetcher) Run(_ context.Context, from, to domain.Month) (fetch.Report, error) {
	m.from, m.to = from, to
	return fetch.Report{Fetched: []domain.Month{from}}, m.c.record(pipeline.StageFetch)
}

type mockExtractor struct{ c *calls }

func (m *mockExtractor) Run(context.Context) (extract.Report, error) {
	return extract.Report{Files: 3}, m.c.record(pipeline.StageExtract)
}

type mockAggregator struct{ c *calls }

func (m *mockAggregator) Run(context.Context) (weekly.Report, error) {
	return weekly.Report{}, m.c.record(pipeline.StageAggregate)
}

type mockCounter struct{ c *calls }

func (m *mockCounter) Run(context.Context) ([]domain.WeeklySummary, error) {
	return []domain.WeeklySummary{{Year: 2024, Week: 1}}, m.c.record(pipeline.StageCount)
}

type mockReporter struct{ c *calls }

func (m *mockReporter) Run(context.Context) ([]report.YearSeries, error) {
	return nil, m.c.record(pipeline.StageReport)
}

func newTestPipeline(c *calls) (*pipeline.Pipeline, *mockFetcher, *observability.Metrics) {
	metrics := observability.NewMetricsForTesting()
	f := &mockFetcher{c: c}
	p := pipeline.New(f, &mockExtractor{c}, &mockAggregator{c}, &mockCounter{c}, &mockReporter{c},
		domain.Month{Year: 2024, Month: time.January}, domain.Month{Year: 2024, Month: time.March},
		slog.New(slog.NewTextHandler(io.Discard, nil)), metrics)
	return p, f, metrics
}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	fakeClock := clockwork.NewFakeClockAt(time.Date(2025, time.October, 19, 6, 0, 0, 0, time.UTC))
	domain.SetClock(fakeClock)
	t.Cleanup(func() { domain.SetClock(clockwork.NewRealClock()) })

	c := &calls{}
	p, f, metrics := newTestPipeline(c)

	require.Error(t, p.CheckReadiness(context.Background()))
	require.NoError(t, p.Run(context.Background()))

	if diff := cmp.Diff(pipeline.Stages, c.order); diff != "" {
		t.Errorf("stage order mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, domain.Month{Year: 2024, Month: time.January}, f.from)
	assert.Equal(t, domain.Month{Year: 2024, Month: time.March}, f.to)
	assert.NoError(t, p.CheckReadiness(context.Background()))

	status := p.Status()
	assert.False(t, status.Running)
	assert.Empty(t, status.Stage)
	assert.Equal(t, pipeline.Stages, status.Completed)
	assert.Equal(t, fakeClock.Now(), status.StartedAt)
	assert.Empty(t, status.LastError)

	assert.InDelta(t, 0, testutil.ToFloat64(metrics.PipelineRunning), 0)
	assert.Equal(t, len(pipeline.Stages), testutil.CollectAndCount(metrics.StageDuration))
}

func TestPipeline_Run_StopsAtFirstFailure(t *testing.T) {
	boom := errors.New("disk full")
	c := &calls{fail: map[string]error{pipeline.StageAggregate: boom}}
	p, _, _ := newTestPipeline(c)

	err := p.Run(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "aggregate stage")

	assert.Equal(t, []string{pipeline.StageFetch, pipeline.StageExtract, pipeline.StageAggregate}, c.order)
	assert.Error(t, p.CheckReadiness(context.Background()))

	status := p.Status()
	assert.Equal(t, []string{pipeline.StageFetch, pipeline.StageExtract}, status.Completed)
	assert.Equal(t, "aggregate: disk full", status.LastError)
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	c := &calls{}
	p, _, _ := newTestPipeline(c)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, c.order)
}

func TestPipeline_RunStage(t *testing.T) {
	c := &calls{}
	p, _, _ := newTestPipeline(c)

	require.NoError(t, p.RunStage(context.Background(), pipeline.StageCount))
	assert.Equal(t, []string{pipeline.StageCount}, c.order)
	assert.Error(t, p.CheckReadiness(context.Background()), "a single stage is not a full run")

	err := p.RunStage(context.Background(), "plot")
	assert.ErrorIs(t, err, pipeline.ErrUnknownStage)
}
