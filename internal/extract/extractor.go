// Package extract unpacks raw archives into a flat directory of daily CSVs.
package extract

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/couchcryptid/grid-frequency-etl/internal/adapter/archive"
	"github.com/couchcryptid/grid-frequency-etl/internal/observability"
)

var (
	yearMonthRe = regexp.MustCompile(`(\d{4}-\d{2})`)
	dateRe      = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})`)
)

// Report summarizes an extraction run.
type Report struct {
	Extracted []string
	Skipped   []string
	Files     int
}

// Extractor moves the daily CSVs of every new archive into the output directory.
type Extractor struct {
	rawDir  string
	outDir  string
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates an Extractor reading archives from rawDir.
func New(rawDir, outDir string, logger *slog.Logger, metrics *observability.Metrics) *Extractor {
	return &Extractor{
		rawDir:  rawDir,
		outDir:  outDir,
		logger:  logger,
		metrics: metrics,
	}
}

// Run extracts zip archives, then 7z archives, each in name order. Archives
// whose month already has daily files are skipped.
func (e *Extractor) Run(ctx context.Context) (Report, error) {
	var report Report
	if err := os.MkdirAll(e.outDir, 0o755); err != nil {
		return report, fmt.Errorf("create output dir: %w", err)
	}

	for _, ext := range archive.Extensions {
		archives, err := filepath.Glob(filepath.Join(e.rawDir, "*"+ext))
		if err != nil {
			return report, fmt.Errorf("list %s archives: %w", ext, err)
		}
		for _, src := range archives {
			if err := ctx.Err(); err != nil {
				return report, err
			}

			should, err := ShouldExtract(filepath.Base(src), e.outDir)
			if err != nil {
				return report, err
			}
			if !should {
				e.logger.Info("daily files already present, skipping archive", "archive", filepath.Base(src))
				report.Skipped = append(report.Skipped, filepath.Base(src))
				continue
			}

			n, err := e.extractArchive(src)
			if err != nil {
				return report, err
			}
			report.Extracted = append(report.Extracted, filepath.Base(src))
			report.Files += n
		}
	}
	return report, nil
}

// extractArchive unpacks src into a scratch directory next to the output and
// moves its CSV files out under standardized names. The scratch directory is
// always removed.
func (e *Extractor) extractArchive(src string) (int, error) {
	name := filepath.Base(src)
	scratch := filepath.Join(e.outDir, "temp_"+strings.TrimSuffix(name, filepath.Ext(name)))
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return 0, fmt.Errorf("create scratch dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			e.logger.Warn("remove scratch dir failed", "dir", scratch, "error", err)
		}
	}()

	e.logger.Info("extracting archive", "archive", name)
	if _, err := archive.ExtractAll(src, scratch); err != nil {
		return 0, err
	}
	if err := NormalizePermissions(scratch); err != nil {
		return 0, err
	}

	var csvs []string
	err := filepath.WalkDir(scratch, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".csv") {
			csvs = append(csvs, path)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("walk %s: %w", scratch, err)
	}

	for _, path := range csvs {
		target, ok := StandardName(filepath.Base(path))
		if ok {
			e.metrics.FilesExtracted.WithLabelValues("renamed").Inc()
		} else {
			e.logger.Warn("could not standardize filename", "file", target, "archive", name)
			e.metrics.FilesExtracted.WithLabelValues("kept_name").Inc()
		}
		if err := os.Rename(path, filepath.Join(e.outDir, target)); err != nil {
			return 0, fmt.Errorf("move %s: %w", path, err)
		}
	}

	e.logger.Info("archive extracted", "archive", name, "files", len(csvs))
	return len(csvs), nil
}

// ShouldExtract reports whether an archive still needs extracting: true when
// its name carries no YYYY-MM, or when no daily file of that month exists.
func ShouldExtract(archiveName, outDir string) (bool, error) {
	m := yearMonthRe.FindString(archiveName)
	if m == "" {
		return true, nil
	}
	existing, err := filepath.Glob(filepath.Join(outDir, m+"-*.csv"))
	if err != nil {
		return false, fmt.Errorf("list daily files for %s: %w", m, err)
	}
	return len(existing) == 0, nil
}

// StandardName returns "YYYY-MM-DD.csv" for the first date in original, or
// original itself and false when it holds no date.
func StandardName(original string) (string, bool) {
	date := dateRe.FindString(original)
	if date == "" {
		return original, false
	}
	return date + ".csv", true
}

// NormalizePermissions makes everything under dir readable and owner-writable:
// directories become 0755 and files 0644.
func NormalizePermissions(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == dir {
			return nil
		}
		mode := fs.FileMode(0o644)
		if d.IsDir() {
			mode = 0o755
		}
		if err := os.Chmod(path, mode); err != nil {
			return fmt.Errorf("chmod %s: %w", path, err)
		}
		return nil
	})
}
