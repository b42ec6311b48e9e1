// Command validate checks the integrity of pipeline outputs: every weekly
// series is complete and contiguous, and the summary agrees with a fresh
// recount of the weekly files.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -weekly-dir data/weekly_csv \
//	  -summary data/minutes_outside_nominal_per_week.csv
package main

import (
	"bufio"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/couchcryptid/grid-frequency-etl/internal/domain"
	"github.com/couchcryptid/grid-frequency-etl/internal/threshold"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// weekFile is a weekly series found on disk.
type weekFile struct {
	key  domain.WeekKey
	path string
}

func main() {
	weeklyDir := flag.String("weekly-dir", "data/weekly_csv", "directory containing weekly series")
	summary := flag.String("summary", "data/minutes_outside_nominal_per_week.csv", "path to the weekly summary CSV")
	flag.Parse()

	if code := run(*weeklyDir, *summary); code != 0 {
		os.Exit(code)
	}
}

func run(weeklyDir, summaryPath string) int {
	fmt.Println("=== Grid Frequency Output Validation ===")
	fmt.Println()

	weeks, naming := discoverWeeks(weeklyDir)
	if weeks == nil && !naming.passed() {
		fmt.Fprintf(os.Stderr, "FATAL: %s\n", naming.errors[0])
		return 1
	}

	rows, err := threshold.ReadSummary(summaryPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load summary: %v\n", err)
		return 1
	}

	phases := []*phase{
		naming,
		validateSeries(weeks),
		validateSummaryOrder(rows),
		validateRecount(weeks, rows),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Weeks: %d weekly files, %d summary rows\n", len(weeks), len(rows))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Discovery ──

func discoverWeeks(dir string) ([]weekFile, *phase) {
	p := &phase{name: "Weekly file naming"}
	files, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		p.errorf("list %s: %v", dir, err)
		return nil, p
	}
	sort.Strings(files)

	weeks := make([]weekFile, 0, len(files))
	for _, path := range files {
		name := filepath.Base(path)
		key, err := domain.ParseWeekKey(strings.TrimSuffix(name, ".csv"))
		if err != nil {
			p.errorf("%s: %v", name, err)
			continue
		}
		weeks = append(weeks, weekFile{key: key, path: path})
	}
	return weeks, p
}

// ── Phase: weekly series ──

func validateSeries(weeks []weekFile) *phase {
	p := &phase{name: "Weekly series complete and contiguous"}
	for _, w := range weeks {
		if err := checkSeries(w); err != nil {
			p.errorf("%s: %v", w.key, err)
		}
	}
	return p
}

// checkSeries streams a weekly file and stops at the first defect.
func checkSeries(w weekFile) error {
	f, err := os.Open(w.path)
	if err != nil {
		return err
	}
	defer f.Close()

	cr := csv.NewReader(bufio.NewReader(f))
	cr.ReuseRecord = true
	header, err := cr.Read()
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	if header[0] != domain.TimeColumn {
		return fmt.Errorf("first column is %q, want %q", header[0], domain.TimeColumn)
	}
	valueCol := -1
	for i, h := range header {
		if h == domain.ValueColumn {
			valueCol = i
		}
	}
	if valueCol < 0 {
		return fmt.Errorf("no %s column", domain.ValueColumn)
	}

	n := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if n >= domain.SecondsPerWeek {
			return fmt.Errorf("more than %d rows", domain.SecondsPerWeek)
		}
		if want := w.key.SlotLabel(n); rec[0] != want {
			return fmt.Errorf("row %d: label %s, want %s", n+1, rec[0], want)
		}
		if rec[valueCol] == "" {
			return fmt.Errorf("row %d (%s): missing %s", n+1, rec[0], domain.ValueColumn)
		}
		n++
	}
	if n != domain.SecondsPerWeek {
		return fmt.Errorf("%d rows, want %d", n, domain.SecondsPerWeek)
	}
	return nil
}

// ── Phase: summary order ──

func validateSummaryOrder(rows []domain.WeeklySummary) *phase {
	p := &phase{name: "Summary rows ordered by week"}
	for i := 1; i < len(rows); i++ {
		if !rows[i-1].Key().Less(rows[i].Key()) {
			p.errorf("row %d (%s) does not follow %s", i+1, rows[i].Key(), rows[i-1].Key())
		}
	}
	return p
}

// ── Phase: recount ──

func validateRecount(weeks []weekFile, rows []domain.WeeklySummary) *phase {
	p := &phase{name: "Summary matches recount"}

	byKey := make(map[domain.WeekKey]float64, len(rows))
	for _, r := range rows {
		byKey[r.Key()] = r.MinutesOutsideNominal
	}

	band := domain.NominalBand()
	for _, w := range weeks {
		got, ok := byKey[w.key]
		if !ok {
			p.errorf("%s: weekly file has no summary row", w.key)
			continue
		}
		delete(byKey, w.key)

		n, err := threshold.CountFile(w.path, band)
		if err != nil {
			p.errorf("%s: recount: %v", w.key, err)
			continue
		}
		if want := threshold.Minutes(n); got != want {
			p.errorf("%s: summary %s, recount %s", w.key, threshold.FormatMinutes(got), threshold.FormatMinutes(want))
		}
	}
	for key := range byKey {
		p.errorf("%s: summary row has no weekly file", key)
	}
	return p
}
