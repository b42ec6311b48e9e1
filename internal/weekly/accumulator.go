package weekly

import (
	"github.com/couchcryptid/grid-frequency-etl/internal/domain"
)

// Chunk is a run of consecutive samples from one daily file that fall in the
// same ISO week.
type Chunk struct {
	Columns []string
	Samples []domain.Sample
}

// FinalizeFunc turns the buffered chunks of a week into output.
type FinalizeFunc func(key domain.WeekKey, chunks []Chunk) error

// Accumulator buffers chunks for the one week currently open. Adding a chunk
// for a different week finalizes the open week first; Close finalizes whatever
// is still open. A week with no chunks is never opened, so never finalized.
type Accumulator struct {
	finalize FinalizeFunc
	open     bool
	key      domain.WeekKey
	chunks   []Chunk
}

// NewAccumulator creates an Accumulator that hands completed weeks to finalize.
func NewAccumulator(finalize FinalizeFunc) *Accumulator {
	return &Accumulator{finalize: finalize}
}

// Add buffers chunk under key.
func (a *Accumulator) Add(key domain.WeekKey, chunk Chunk) error {
	if len(chunk.Samples) == 0 {
		return nil
	}
	if a.open && a.key != key {
		if err := a.flush(); err != nil {
			return err
		}
	}
	a.open = true
	a.key = key
	a.chunks = append(a.chunks, chunk)
	return nil
}

// Close finalizes the open week, if any.
func (a *Accumulator) Close() error {
	if !a.open {
		return nil
	}
	return a.flush()
}

// Open returns the key of the open week.
func (a *Accumulator) Open() (domain.WeekKey, bool) {
	return a.key, a.open
}

func (a *Accumulator) flush() error {
	key, chunks := a.key, a.chunks
	a.open = false
	a.key = domain.WeekKey{}
	a.chunks = nil
	return a.finalize(key, chunks)
}

// Partition splits time-ordered samples into per-week chunks, in order.
func Partition(columns []string, samples []domain.Sample) ([]domain.WeekKey, []Chunk) {
	var keys []domain.WeekKey
	var chunks []Chunk
	start := 0
	for i := 1; i <= len(samples); i++ {
		if i < len(samples) && domain.WeekOf(samples[i].Time) == domain.WeekOf(samples[start].Time) {
			continue
		}
		keys = append(keys, domain.WeekOf(samples[start].Time))
		chunks = append(chunks, Chunk{Columns: columns, Samples: samples[start:i]})
		start = i
	}
	return keys, chunks
}
