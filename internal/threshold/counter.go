// Package threshold counts, per weekly series, the minutes spent outside the
// nominal frequency band and writes the weekly summary.
package threshold

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/couchcryptid/grid-frequency-etl/internal/domain"
	"github.com/couchcryptid/grid-frequency-etl/internal/observability"
)

// SummaryHeader is the header row of the summary CSV.
var SummaryHeader = []string{"year", "week", "minutes_outside_nominal"}

// Publisher receives the summary rows after they are written to disk.
type Publisher interface {
	PublishSummaries(ctx context.Context, rows []domain.WeeklySummary) error
}

// Counter scans weekly files and produces the summary.
type Counter struct {
	weeklyDir   string
	summaryPath string
	band        domain.Band
	publisher   Publisher
	logger      *slog.Logger
	metrics     *observability.Metrics
}

// Option configures a Counter.
type Option func(*Counter)

// WithPublisher makes the Counter hand every summary to p.
func WithPublisher(p Publisher) Option {
	return func(c *Counter) { c.publisher = p }
}

// New creates a Counter reading weeks from weeklyDir.
func New(weeklyDir, summaryPath string, band domain.Band, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Counter {
	c := &Counter{
		weeklyDir:   weeklyDir,
		summaryPath: summaryPath,
		band:        band,
		logger:      logger,
		metrics:     metrics,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run counts every weekly file in name order, replaces the summary file and
// publishes the rows when a Publisher is set.
func (c *Counter) Run(ctx context.Context) ([]domain.WeeklySummary, error) {
	files, err := filepath.Glob(filepath.Join(c.weeklyDir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("list weekly files: %w", err)
	}
	sort.Strings(files)

	rows := make([]domain.WeeklySummary, 0, len(files))
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := filepath.Base(path)
		key, err := domain.ParseWeekKey(strings.TrimSuffix(name, ".csv"))
		if err != nil {
			c.logger.Warn("skipping file that is not a weekly series", "file", name)
			continue
		}

		n, err := CountFile(path, c.band)
		if err != nil {
			return nil, err
		}
		row := domain.WeeklySummary{Year: key.Year, Week: key.Week, MinutesOutsideNominal: Minutes(n)}
		c.logger.Debug("week counted", "week", key.String(), "seconds_outside", n)
		rows = append(rows, row)
	}

	if err := WriteSummary(c.summaryPath, rows); err != nil {
		return nil, err
	}
	c.metrics.SummaryRows.Set(float64(len(rows)))
	c.logger.Info("summary written", "path", c.summaryPath, "weeks", len(rows))

	if c.publisher != nil && len(rows) > 0 {
		if err := c.publisher.PublishSummaries(ctx, rows); err != nil {
			return rows, fmt.Errorf("publish summary: %w", err)
		}
	}
	return rows, nil
}

// Minutes converts a count of one-second samples to minutes.
func Minutes(seconds int) float64 {
	return float64(seconds) / 60
}

// CountFile streams a weekly CSV and counts Value readings outside band.
func CountFile(path string, band domain.Band) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	n, err := Count(bufio.NewReader(f), band)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	return n, nil
}

// Count counts Value readings outside band. Empty cells do not count.
func Count(r io.Reader, band domain.Band) (int, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return 0, fmt.Errorf("read header: %w", err)
	}
	col := -1
	for i, h := range header {
		if h == domain.ValueColumn {
			col = i
			break
		}
	}
	if col < 0 {
		return 0, fmt.Errorf("no %s column in %v", domain.ValueColumn, header)
	}

	n := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return 0, err
		}
		if rec[col] == "" {
			continue
		}
		v, err := strconv.ParseFloat(rec[col], 64)
		if err != nil {
			return 0, fmt.Errorf("parse %s %q: %w", domain.ValueColumn, rec[col], err)
		}
		if band.Outside(v) {
			n++
		}
	}
}

// FormatMinutes renders minutes the way the summary stores them: shortest
// representation, always with a fractional part.
func FormatMinutes(m float64) string {
	s := strconv.FormatFloat(m, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
