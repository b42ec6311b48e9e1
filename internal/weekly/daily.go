package weekly

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/couchcryptid/grid-frequency-etl/internal/domain"
)

// ErrMalformedDaily marks a daily file that cannot be aggregated: missing
// columns or no row with a numeric Value. Such files are skipped, not fatal.
var ErrMalformedDaily = errors.New("malformed daily file")

// timeLayouts are tried in order. Fractional seconds are accepted by every
// layout when parsing.
var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
}

// Daily is one daily file resampled to one-second resolution in the target
// timezone, in time order.
type Daily struct {
	Columns []string
	Samples []domain.Sample
}

// ReadDaily parses a daily CSV file. See ParseDaily.
func ReadDaily(path string, loc domain.Localizer) (Daily, error) {
	f, err := os.Open(path)
	if err != nil {
		return Daily{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	d, err := ParseDaily(f, loc)
	if err != nil {
		return Daily{}, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// ParseDaily reads a CSV with a Time column and one or more numeric columns,
// Value among them. Timestamps without an offset are localized with loc;
// every timestamp is converted to loc.Target. Readings sharing a floored
// second are averaged column by column, ignoring missing values. Rows with an
// unparseable timestamp are dropped. A file without a single numeric Value
// reading is malformed.
func ParseDaily(r io.Reader, loc domain.Localizer) (Daily, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return Daily{}, fmt.Errorf("empty file: %w", ErrMalformedDaily)
	}
	if err != nil {
		return Daily{}, fmt.Errorf("read header: %w", err)
	}

	timeIdx, valueCols, err := layoutColumns(header)
	if err != nil {
		return Daily{}, err
	}
	columns := make([]string, len(valueCols))
	for i, c := range valueCols {
		columns[i] = cleanHeader(header[c])
	}

	buckets := make(map[int64][][]float64)
	valued := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Daily{}, fmt.Errorf("read row: %w", err)
		}
		if timeIdx >= len(rec) {
			continue
		}
		ts, ok := parseTimestamp(strings.TrimSpace(rec[timeIdx]), loc)
		if !ok {
			continue
		}

		sec := ts.Unix()
		vals, seen := buckets[sec]
		if !seen {
			vals = make([][]float64, len(valueCols))
		}
		for i, c := range valueCols {
			if c >= len(rec) {
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[c]), 64)
			if err != nil || math.IsNaN(v) {
				continue
			}
			vals[i] = append(vals[i], v)
			if i == 0 {
				valued++
			}
		}
		buckets[sec] = vals
	}

	if len(buckets) == 0 {
		return Daily{}, fmt.Errorf("no parseable rows: %w", ErrMalformedDaily)
	}
	if valued == 0 {
		return Daily{}, fmt.Errorf("no numeric %s readings: %w", domain.ValueColumn, ErrMalformedDaily)
	}

	secs := make([]int64, 0, len(buckets))
	for s := range buckets {
		secs = append(secs, s)
	}
	sort.Slice(secs, func(i, j int) bool { return secs[i] < secs[j] })

	samples := make([]domain.Sample, len(secs))
	for i, s := range secs {
		samples[i] = domain.Sample{
			Time:   time.Unix(s, 0).In(loc.Target),
			Values: means(buckets[s]),
		}
	}
	return Daily{Columns: columns, Samples: samples}, nil
}

// layoutColumns locates Time and the value columns, Value first.
func layoutColumns(header []string) (int, []int, error) {
	timeIdx, valueIdx := -1, -1
	var others []int
	for i, h := range header {
		switch cleanHeader(h) {
		case domain.TimeColumn:
			timeIdx = i
		case domain.ValueColumn:
			valueIdx = i
		default:
			others = append(others, i)
		}
	}
	if timeIdx < 0 || valueIdx < 0 {
		return 0, nil, fmt.Errorf("need %s and %s columns, got %v: %w",
			domain.TimeColumn, domain.ValueColumn, header, ErrMalformedDaily)
	}
	return timeIdx, append([]int{valueIdx}, others...), nil
}

func cleanHeader(h string) string {
	return strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
}

func parseTimestamp(s string, loc domain.Localizer) (time.Time, bool) {
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if strings.Contains(layout, "Z07:00") {
			return t.In(loc.Target), true
		}
		return loc.Localize(t)
	}
	return time.Time{}, false
}

// means averages each column; a column with no readings is NaN.
func means(cols [][]float64) []float64 {
	out := make([]float64, len(cols))
	for i, vals := range cols {
		m, err := stats.Mean(vals)
		if err != nil {
			m = math.NaN()
		}
		out[i] = m
	}
	return out
}
