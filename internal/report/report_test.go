package report_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/couchcryptid/grid-frequency-etl/internal/report"
)

const summaryCSV = `year,week,minutes_outside_nominal
2024,2,3.5
2023,52,1.0
2024,1,0.5
2023,51,2.0
`

func writeSummary(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "summary.csv")
	require.NoError(t, os.WriteFile(path, []byte(summaryCSV), 0o644))
	return path
}

func TestByYear(t *testing.T) {
	df, err := report.Load(writeSummary(t))
	require.NoError(t, err)

	years, err := report.ByYear(df)
	require.NoError(t, err)

	expected := []report.YearSeries{
		{Year: 2023, Weeks: []int{51, 52}, Minutes: []float64{2, 1}, Cumulative: []float64{2, 3}},
		{Year: 2024, Weeks: []int{1, 2}, Minutes: []float64{0.5, 3.5}, Cumulative: []float64{0.5, 4}},
	}
	if diff := cmp.Diff(expected, years); diff != "" {
		t.Errorf("year series mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := report.Load(filepath.Join(t.TempDir(), "absent.csv"))
	require.Error(t, err)
}

func TestRenderChart(t *testing.T) {
	var buf bytes.Buffer
	err := report.RenderChart(&buf, []report.YearSeries{
		{Year: 2023, Weeks: []int{1}, Minutes: []float64{4}, Cumulative: []float64{4}},
	})
	require.NoError(t, err)

	html := buf.String()
	assert.Contains(t, html, "Cumulative Minutes Outside Nominal Frequency Range by Year")
	assert.Contains(t, html, "Week Number")
	assert.Contains(t, html, `"2023"`)
}

func TestReporter_Run(t *testing.T) {
	out := t.TempDir()
	chart := filepath.Join(out, "chart", "minutes.html")
	workbook := filepath.Join(out, "minutes.xlsx")

	r := report.New(writeSummary(t), chart, workbook, slog.New(slog.NewTextHandler(io.Discard, nil)))
	years, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, years, 2)

	info, err := os.Stat(chart)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	f, err := excelize.OpenFile(workbook)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"2023", "2024"}, f.GetSheetList())
	rows, err := f.GetRows("2024")
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"week", "minutes_outside_nominal", "cumulative_minutes"},
		{"1", "0.5", "0.5"},
		{"2", "3.5", "4"},
	}, rows)
}

func TestReporter_Run_WithoutWorkbook(t *testing.T) {
	out := t.TempDir()
	r := report.New(writeSummary(t), filepath.Join(out, "chart.html"), "", slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := r.Run(context.Background())
	require.NoError(t, err)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "chart.html", entries[0].Name())
}
