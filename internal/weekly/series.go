package weekly

import (
	"math"

	"github.com/couchcryptid/grid-frequency-etl/internal/domain"
)

// Series is a complete weekly series: one value per wall-clock second for
// every column. Values[c][i] belongs to slot i of column c.
type Series struct {
	Key     domain.WeekKey
	Columns []string
	Values  [][]float64
}

// BuildSeries joins chunks against the full week grid. The column set is that
// of the first chunk; later chunks are matched by column name. Samples that
// share a wall-clock slot are averaged. Gaps are not filled.
func BuildSeries(key domain.WeekKey, chunks []Chunk) Series {
	var columns []string
	if len(chunks) > 0 {
		columns = chunks[0].Columns
	}
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		index[c] = i
	}

	sums := make([][]float64, len(columns))
	counts := make([][]uint16, len(columns))
	for c := range columns {
		sums[c] = make([]float64, domain.SecondsPerWeek)
		counts[c] = make([]uint16, domain.SecondsPerWeek)
	}

	for _, ch := range chunks {
		mapping := make([]int, len(ch.Columns))
		for i, name := range ch.Columns {
			if c, ok := index[name]; ok {
				mapping[i] = c
			} else {
				mapping[i] = -1
			}
		}
		for _, s := range ch.Samples {
			slot := key.Slot(s.Time)
			if slot < 0 {
				continue
			}
			for i, v := range s.Values {
				if i >= len(mapping) || mapping[i] < 0 || math.IsNaN(v) {
					continue
				}
				sums[mapping[i]][slot] += v
				counts[mapping[i]][slot]++
			}
		}
	}

	values := make([][]float64, len(columns))
	for c := range columns {
		col := sums[c]
		for i, n := range counts[c] {
			if n == 0 {
				col[i] = math.NaN()
			} else {
				col[i] /= float64(n)
			}
		}
		values[c] = col
	}
	return Series{Key: key, Columns: columns, Values: values}
}

// Observed reports whether the Value column holds at least one reading.
func (s Series) Observed() bool {
	if len(s.Values) == 0 {
		return false
	}
	for _, v := range s.Values[0] {
		if !math.IsNaN(v) {
			return true
		}
	}
	return false
}

// FillGaps fills every column of s in place and returns the number of slots
// filled in the Value column.
func (s Series) FillGaps() int {
	filled := 0
	for c, col := range s.Values {
		n := FillGaps(col)
		if c == 0 {
			filled = n
		}
	}
	return filled
}

// FillGaps replaces NaNs with the nearest earlier value, then any leading NaNs
// with the nearest later value. It returns the number of values replaced. A
// column with no values at all is left as is.
func FillGaps(col []float64) int {
	filled := 0
	last := math.NaN()
	firstKnown := -1
	for i, v := range col {
		if !math.IsNaN(v) {
			last = v
			if firstKnown < 0 {
				firstKnown = i
			}
			continue
		}
		if !math.IsNaN(last) {
			col[i] = last
			filled++
		}
	}
	if firstKnown <= 0 {
		return filled
	}
	for i := 0; i < firstKnown; i++ {
		col[i] = col[firstKnown]
		filled++
	}
	return filled
}
