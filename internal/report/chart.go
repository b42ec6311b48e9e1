package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

const chartTitle = "Cumulative Minutes Outside Nominal Frequency Range by Year"

// RenderChart writes an HTML page with one cumulative line per year on a
// shared week axis.
func RenderChart(w io.Writer, years []YearSeries) error {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: chartTitle, Width: "1200px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: chartTitle}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Week Number", Type: "value", Min: 1, Max: 53}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Cumulative Minutes", Type: "value"}),
	)

	for _, y := range years {
		points := make([]opts.LineData, len(y.Weeks))
		for i, week := range y.Weeks {
			points[i] = opts.LineData{Value: []any{week, y.Cumulative[i]}}
		}
		line.AddSeries(strconv.Itoa(y.Year), points)
	}

	if err := line.Render(w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}
