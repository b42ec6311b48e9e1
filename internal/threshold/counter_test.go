package threshold_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/grid-frequency-etl/internal/domain"
	"github.com/couchcryptid/grid-frequency-etl/internal/observability"
	"github.com/couchcryptid/grid-frequency-etl/internal/threshold"
	"github.com/couchcryptid/grid-frequency-etl/internal/weekly"
)

type recordingPublisher struct {
	rows []domain.WeeklySummary
	err  error
}

func (p *recordingPublisher) PublishSummaries(_ context.Context, rows []domain.WeeklySummary) error {
	p.rows = append(p.rows, rows...)
	return p.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCount_AlternatingValues(t *testing.T) {
	var b strings.Builder
	b.WriteString("Time,Value\n")
	outside := 0
	for i := 0; i < 600; i++ {
		v := 50.0
		if i%2 == 1 {
			v = 49.85
			if i%4 == 1 {
				v = 50.15
			}
			outside++
		}
		fmt.Fprintf(&b, "2024-01-01 00:%02d:%02d,%g\n", i/60, i%60, v)
	}
	b.WriteString("2024-01-01 00:10:00,\n")

	n, err := threshold.Count(strings.NewReader(b.String()), domain.NominalBand())
	require.NoError(t, err)
	assert.Equal(t, outside, n)
	assert.InDelta(t, 5.0, threshold.Minutes(n), 0)
}

func TestCount_BoundsAreInside(t *testing.T) {
	in := "Time,Value\nA,49.9\nB,50.1\nC,49.89999\nD,50.10001\n"
	n, err := threshold.Count(strings.NewReader(in), domain.NominalBand())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestCount_Errors(t *testing.T) {
	_, err := threshold.Count(strings.NewReader("Time,Hz\nA,50\n"), domain.NominalBand())
	require.Error(t, err)

	_, err = threshold.Count(strings.NewReader("Time,Value\nA,fifty\n"), domain.NominalBand())
	require.Error(t, err)
}

func TestFormatMinutes(t *testing.T) {
	tests := []struct {
		in       float64
		expected string
	}{
		{0, "0.0"},
		{10080, "10080.0"},
		{2.5, "2.5"},
		{1.0 / 60, "0.016666666666666666"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, threshold.FormatMinutes(tt.in))
	}
}

func TestEncodeSummary(t *testing.T) {
	var buf bytes.Buffer
	err := threshold.EncodeSummary(&buf, []domain.WeeklySummary{
		{Year: 2023, Week: 52, MinutesOutsideNominal: 12.5},
		{Year: 2024, Week: 1, MinutesOutsideNominal: 0},
	})
	require.NoError(t, err)
	assert.Equal(t, "year,week,minutes_outside_nominal\n2023,52,12.5\n2024,1,0.0\n", buf.String())
}

func writeWeek(t *testing.T, dir string, key domain.WeekKey, values map[int]float64) {
	t.Helper()
	col := make([]float64, domain.SecondsPerWeek)
	for i := range col {
		col[i] = 50
	}
	for i, v := range values {
		col[i] = v
	}
	s := weekly.Series{Key: key, Columns: []string{domain.ValueColumn}, Values: [][]float64{col}}
	_, err := weekly.WriteSeries(dir, s)
	require.NoError(t, err)
}

func TestCounter_Run(t *testing.T) {
	weeklyDir := t.TempDir()
	summary := filepath.Join(t.TempDir(), "out", "summary.csv")

	writeWeek(t, weeklyDir, domain.WeekKey{Year: 2024, Week: 2}, map[int]float64{0: 49.8, 1: 50.2, 2: 50.1})
	writeWeek(t, weeklyDir, domain.WeekKey{Year: 2023, Week: 52}, nil)
	require.NoError(t, os.WriteFile(filepath.Join(weeklyDir, "notes.csv"), []byte("x"), 0o644))

	metrics := observability.NewMetricsForTesting()
	pub := &recordingPublisher{}
	c := threshold.New(weeklyDir, summary, domain.NominalBand(), discardLogger(), metrics, threshold.WithPublisher(pub))

	rows, err := c.Run(context.Background())
	require.NoError(t, err)

	expected := []domain.WeeklySummary{
		{Year: 2023, Week: 52, MinutesOutsideNominal: 0},
		{Year: 2024, Week: 2, MinutesOutsideNominal: 2.0 / 60},
	}
	if diff := cmp.Diff(expected, rows); diff != "" {
		t.Errorf("summary rows mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, expected, pub.rows)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.SummaryRows), 0)

	read, err := threshold.ReadSummary(summary)
	require.NoError(t, err)
	assert.Equal(t, expected, read)
}

func TestCounter_Run_PublishError(t *testing.T) {
	weeklyDir := t.TempDir()
	summary := filepath.Join(t.TempDir(), "summary.csv")
	writeWeek(t, weeklyDir, domain.WeekKey{Year: 2024, Week: 2}, nil)

	pub := &recordingPublisher{err: errors.New("broker down")}
	c := threshold.New(weeklyDir, summary, domain.NominalBand(), discardLogger(),
		observability.NewMetricsForTesting(), threshold.WithPublisher(pub))

	_, err := c.Run(context.Background())
	require.Error(t, err)
	_, statErr := os.Stat(summary)
	assert.NoError(t, statErr, "summary stays on disk when publishing fails")
}

// Daily files through the aggregator and the counter.
func runEndToEnd(t *testing.T, daily map[string]string) string {
	t.Helper()
	dailyDir, weeklyDir := t.TempDir(), t.TempDir()
	for name, content := range daily {
		require.NoError(t, os.WriteFile(filepath.Join(dailyDir, name), []byte(content), 0o644))
	}

	loc := domain.Localizer{Source: time.UTC, Target: time.UTC}
	metrics := observability.NewMetricsForTesting()
	_, err := weekly.New(dailyDir, weeklyDir, loc, discardLogger(), metrics).Run(context.Background())
	require.NoError(t, err)

	summary := filepath.Join(t.TempDir(), "summary.csv")
	_, err = threshold.New(weeklyDir, summary, domain.NominalBand(), discardLogger(), metrics).Run(context.Background())
	require.NoError(t, err)

	data, err := os.ReadFile(summary)
	require.NoError(t, err)
	return string(data)
}

func constantDay(date string, value float64) string {
	var b strings.Builder
	b.WriteString("Time,Value\n")
	for s := 0; s < 24*3600; s++ {
		fmt.Fprintf(&b, "%s %02d:%02d:%02d.000,%.2f\n", date, s/3600, s/60%60, s%60, value)
	}
	return b.String()
}

func TestEndToEnd_ConstantNominalWeek(t *testing.T) {
	got := runEndToEnd(t, map[string]string{
		"2024-01-01.csv": constantDay("2024-01-01", 50.00),
		"2024-01-02.csv": constantDay("2024-01-02", 50.00),
	})
	assert.Equal(t, "year,week,minutes_outside_nominal\n2024,1,0.0\n", got)
}

func TestEndToEnd_SingleOutOfBandSample(t *testing.T) {
	got := runEndToEnd(t, map[string]string{
		"2024-01-01.csv": "Time,Value\n2024-01-01 00:00:00.000,49.5\n",
	})
	assert.Equal(t, "year,week,minutes_outside_nominal\n2024,1,10080.0\n", got)
}
