// Package report renders the weekly summary as cumulative minutes outside the
// nominal band per year.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"gonum.org/v1/gonum/floats"
)

const (
	yearCol    = "year"
	weekCol    = "week"
	minutesCol = "minutes_outside_nominal"
)

// YearSeries is one year of the summary ordered by week, with the running
// total of minutes.
type YearSeries struct {
	Year       int
	Weeks      []int
	Minutes    []float64
	Cumulative []float64
}

// Reporter writes the chart and the workbook from the summary CSV.
type Reporter struct {
	summaryPath  string
	chartPath    string
	workbookPath string
	logger       *slog.Logger
}

// New creates a Reporter. An empty workbookPath disables the workbook.
func New(summaryPath, chartPath, workbookPath string, logger *slog.Logger) *Reporter {
	return &Reporter{
		summaryPath:  summaryPath,
		chartPath:    chartPath,
		workbookPath: workbookPath,
		logger:       logger,
	}
}

// Run loads the summary and writes the outputs.
func (r *Reporter) Run(ctx context.Context) ([]YearSeries, error) {
	df, err := Load(r.summaryPath)
	if err != nil {
		return nil, err
	}
	years, err := ByYear(df)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := writeChart(r.chartPath, years); err != nil {
		return nil, err
	}
	r.logger.Info("chart written", "path", r.chartPath, "years", len(years))

	if r.workbookPath != "" {
		if err := WriteWorkbook(r.workbookPath, years); err != nil {
			return nil, err
		}
		r.logger.Info("workbook written", "path", r.workbookPath)
	}
	return years, nil
}

// Load reads the summary CSV into a DataFrame.
func Load(path string) (dataframe.DataFrame, error) {
	f, err := os.Open(path)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("open summary: %w", err)
	}
	defer f.Close()

	df := dataframe.ReadCSV(f, dataframe.WithTypes(map[string]series.Type{
		yearCol:    series.Int,
		weekCol:    series.Int,
		minutesCol: series.Float,
	}))
	if df.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("load summary %s: %w", path, df.Err)
	}
	return df, nil
}

// ByYear groups the summary by year, sorts each year by week and computes the
// cumulative minutes, restarting every year. Years are returned in order.
func ByYear(df dataframe.DataFrame) ([]YearSeries, error) {
	all, err := df.Col(yearCol).Int()
	if err != nil {
		return nil, fmt.Errorf("read %s column: %w", yearCol, err)
	}
	seen := make(map[int]bool)
	var years []int
	for _, y := range all {
		if !seen[y] {
			seen[y] = true
			years = append(years, y)
		}
	}
	sort.Ints(years)

	out := make([]YearSeries, 0, len(years))
	for _, y := range years {
		sub := df.
			Filter(dataframe.F{Colname: yearCol, Comparator: series.Eq, Comparando: y}).
			Arrange(dataframe.Sort(weekCol))
		if sub.Err != nil {
			return nil, fmt.Errorf("select year %d: %w", y, sub.Err)
		}
		weeks, err := sub.Col(weekCol).Int()
		if err != nil {
			return nil, fmt.Errorf("read %s column: %w", weekCol, err)
		}
		minutes := sub.Col(minutesCol).Float()
		out = append(out, YearSeries{
			Year:       y,
			Weeks:      weeks,
			Minutes:    minutes,
			Cumulative: floats.CumSum(make([]float64, len(minutes)), minutes),
		})
	}
	return out, nil
}

func writeChart(path string, years []YearSeries) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create chart dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create chart: %w", err)
	}
	if err := RenderChart(f, years); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close chart: %w", err)
	}
	return nil
}
