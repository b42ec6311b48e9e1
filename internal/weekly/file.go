package weekly

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/grid-frequency-etl/internal/domain"
)

// WriteSeries writes s to dir as <YYYY-Wnn>.csv with a Time column of
// wall-clock labels followed by the value columns. The file appears
// atomically; an existing file is never overwritten.
func WriteSeries(dir string, s Series) (string, error) {
	path := filepath.Join(dir, s.Key.FileName())
	if _, err := os.Stat(path); err == nil {
		return path, fmt.Errorf("%s: %w", path, os.ErrExist)
	}

	tmp, err := os.CreateTemp(dir, "."+s.Key.String()+"-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	bw := bufio.NewWriterSize(tmp, 1<<20)
	if err := encodeSeries(bw, s); err != nil {
		tmp.Close()
		return "", err
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("flush %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return "", fmt.Errorf("chmod %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("rename to %s: %w", path, err)
	}
	return path, nil
}

func encodeSeries(w io.Writer, s Series) error {
	cw := csv.NewWriter(w)
	row := make([]string, len(s.Columns)+1)
	row[0] = domain.TimeColumn
	copy(row[1:], s.Columns)
	if err := cw.Write(row); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i := 0; i < domain.SecondsPerWeek; i++ {
		row[0] = s.Key.SlotLabel(i)
		for c, col := range s.Values {
			row[c+1] = formatValue(col[i])
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatValue(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ReadSeries loads a weekly file written by WriteSeries. The week is taken
// from the file name. Empty cells are read back as NaN.
func ReadSeries(path string) (Series, error) {
	key, err := domain.ParseWeekKey(strings.TrimSuffix(filepath.Base(path), ".csv"))
	if err != nil {
		return Series{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return Series{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	cr := csv.NewReader(bufio.NewReader(f))
	cr.ReuseRecord = true
	header, err := cr.Read()
	if err != nil {
		return Series{}, fmt.Errorf("%s: read header: %w", path, err)
	}
	if len(header) < 2 || header[0] != domain.TimeColumn {
		return Series{}, fmt.Errorf("%s: unexpected header %v", path, header)
	}

	s := Series{Key: key, Columns: append([]string(nil), header[1:]...)}
	s.Values = make([][]float64, len(s.Columns))
	for c := range s.Values {
		s.Values[c] = make([]float64, domain.SecondsPerWeek)
		for i := range s.Values[c] {
			s.Values[c][i] = math.NaN()
		}
	}

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Series{}, fmt.Errorf("%s: %w", path, err)
		}
		label, err := time.Parse(domain.WallClockLayout, rec[0])
		if err != nil {
			return Series{}, fmt.Errorf("%s: %w", path, err)
		}
		slot := key.Slot(label)
		if slot < 0 {
			return Series{}, fmt.Errorf("%s: label %s outside %s", path, rec[0], key)
		}
		for c := range s.Columns {
			if rec[c+1] == "" {
				continue
			}
			v, err := strconv.ParseFloat(rec[c+1], 64)
			if err != nil {
				return Series{}, fmt.Errorf("%s: %s: %w", path, rec[0], err)
			}
			s.Values[c][slot] = v
		}
	}
	return s, nil
}
