// Package weekly turns daily frequency files into one complete, gap-filled,
// one-second series per ISO week.
package weekly

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/couchcryptid/grid-frequency-etl/internal/domain"
	"github.com/couchcryptid/grid-frequency-etl/internal/observability"
)

// Report summarizes an aggregation run.
type Report struct {
	Processed []string
	Skipped   []string
	Malformed []string
	Written   []domain.WeekKey
	Existing  []domain.WeekKey
	Empty     []domain.WeekKey
}

// Aggregator streams daily files in name order through an Accumulator and
// writes each finished week.
type Aggregator struct {
	dailyDir  string
	weeklyDir string
	loc       domain.Localizer
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// New creates an Aggregator.
func New(dailyDir, weeklyDir string, loc domain.Localizer, logger *slog.Logger, metrics *observability.Metrics) *Aggregator {
	return &Aggregator{
		dailyDir:  dailyDir,
		weeklyDir: weeklyDir,
		loc:       loc,
		logger:    logger,
		metrics:   metrics,
	}
}

// Run aggregates every daily file whose week has no output yet. Samples that
// a daily file contributes to an adjacent week (the source and target
// timezones differ) are carried into that week. The last week is written even
// when incomplete. A week without a single Value reading is never written.
// Unreadable or malformed daily files are logged and skipped.
func (a *Aggregator) Run(ctx context.Context) (Report, error) {
	var report Report
	if err := os.MkdirAll(a.weeklyDir, 0o755); err != nil {
		return report, fmt.Errorf("create weekly dir: %w", err)
	}

	files, err := filepath.Glob(filepath.Join(a.dailyDir, "*.csv"))
	if err != nil {
		return report, fmt.Errorf("list daily files: %w", err)
	}
	sort.Strings(files)

	acc := NewAccumulator(func(key domain.WeekKey, chunks []Chunk) error {
		return a.finalize(key, chunks, &report)
	})

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		name := filepath.Base(path)

		week, err := domain.WeekOfDate(strings.TrimSuffix(name, ".csv"))
		if err != nil {
			a.logger.Warn("skipping daily file without a date name", "file", name)
			a.metrics.DailyFiles.WithLabelValues("skipped").Inc()
			report.Skipped = append(report.Skipped, name)
			continue
		}
		if a.exists(week) {
			a.logger.Debug("weekly output exists, skipping daily file", "file", name, "week", week.String())
			a.metrics.DailyFiles.WithLabelValues("skipped").Inc()
			report.Skipped = append(report.Skipped, name)
			continue
		}

		daily, err := ReadDaily(path, a.loc)
		if err != nil {
			msg := "daily file unreadable, skipping"
			if errors.Is(err, ErrMalformedDaily) {
				msg = "daily file malformed, skipping"
			}
			a.logger.Warn(msg, "file", name, "error", err)
			a.metrics.DailyFiles.WithLabelValues("malformed").Inc()
			report.Malformed = append(report.Malformed, name)
			continue
		}

		keys, chunks := Partition(daily.Columns, daily.Samples)
		for i := range chunks {
			if err := acc.Add(keys[i], chunks[i]); err != nil {
				return report, err
			}
		}
		a.metrics.DailyFiles.WithLabelValues("processed").Inc()
		report.Processed = append(report.Processed, name)
	}

	if err := acc.Close(); err != nil {
		return report, err
	}
	return report, nil
}

func (a *Aggregator) exists(key domain.WeekKey) bool {
	_, err := os.Stat(filepath.Join(a.weeklyDir, key.FileName()))
	return err == nil
}

func (a *Aggregator) finalize(key domain.WeekKey, chunks []Chunk, report *Report) error {
	if a.exists(key) {
		a.logger.Info("weekly file exists, discarding carried samples", "week", key.String())
		a.metrics.WeeksFinalized.WithLabelValues("exists").Inc()
		report.Existing = append(report.Existing, key)
		return nil
	}

	series := BuildSeries(key, chunks)
	if !series.Observed() {
		a.logger.Warn("week has no Value readings, not writing", "week", key.String())
		a.metrics.WeeksFinalized.WithLabelValues("empty").Inc()
		report.Empty = append(report.Empty, key)
		return nil
	}
	filled := series.FillGaps()

	path, err := WriteSeries(a.weeklyDir, series)
	if err != nil {
		return fmt.Errorf("write week %s: %w", key, err)
	}
	a.logger.Info("weekly file written", "week", key.String(), "path", path, "gap_filled_seconds", filled)
	a.metrics.WeeksFinalized.WithLabelValues("written").Inc()
	a.metrics.GapFilledSeconds.Add(float64(filled))
	report.Written = append(report.Written, key)
	return nil
}
