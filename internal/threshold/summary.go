package threshold

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/couchcryptid/grid-frequency-etl/internal/domain"
)

// WriteSummary replaces the summary CSV at path with rows.
func WriteSummary(path string, rows []domain.WeeklySummary) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create summary dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".summary-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := EncodeSummary(tmp, rows); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename to %s: %w", path, err)
	}
	return nil
}

// EncodeSummary writes the header and one line per row.
func EncodeSummary(w io.Writer, rows []domain.WeeklySummary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(SummaryHeader); err != nil {
		return fmt.Errorf("write summary header: %w", err)
	}
	for _, r := range rows {
		rec := []string{strconv.Itoa(r.Year), strconv.Itoa(r.Week), FormatMinutes(r.MinutesOutsideNominal)}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write summary row %s: %w", r.Key(), err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadSummary loads a summary CSV written by WriteSummary.
func ReadSummary(path string) ([]domain.WeeklySummary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = len(SummaryHeader)
	if _, err := cr.Read(); err != nil {
		return nil, fmt.Errorf("%s: read header: %w", path, err)
	}
	var rows []domain.WeeklySummary
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		year, err := strconv.Atoi(rec[0])
		if err != nil {
			return nil, fmt.Errorf("%s: year %q: %w", path, rec[0], err)
		}
		week, err := strconv.Atoi(rec[1])
		if err != nil {
			return nil, fmt.Errorf("%s: week %q: %w", path, rec[1], err)
		}
		minutes, err := strconv.ParseFloat(rec[2], 64)
		if err != nil {
			return nil, fmt.Errorf("%s: minutes %q: %w", path, rec[2], err)
		}
		rows = append(rows, domain.WeeklySummary{Year: year, Week: week, MinutesOutsideNominal: minutes})
	}
}
