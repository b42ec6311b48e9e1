// Package fetch downloads monthly frequency archives into the raw directory.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/grid-frequency-etl/internal/domain"
	"github.com/couchcryptid/grid-frequency-etl/internal/observability"
)

// ErrNoCandidate is returned by FetchMonth when no candidate URL answered 200.
var ErrNoCandidate = errors.New("no candidate url succeeded")

// Downloader performs one GET and streams a successful body into dst.
type Downloader interface {
	Download(ctx context.Context, url string, dst io.Writer) (int64, error)
}

// Report summarizes a fetch run.
type Report struct {
	Fetched []domain.Month
	Skipped []domain.Month
	Failed  []domain.Month
}

// Fetcher resolves candidate URLs per month and saves the first archive found.
type Fetcher struct {
	downloader Downloader
	rawDir     string
	baseURL    string
	templates  []string
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// New creates a Fetcher. templates are tried in order; they may use the
// {base}, {year} and {month} placeholders.
func New(d Downloader, rawDir, baseURL string, templates []string, logger *slog.Logger, metrics *observability.Metrics) *Fetcher {
	return &Fetcher{
		downloader: d,
		rawDir:     rawDir,
		baseURL:    baseURL,
		templates:  templates,
		logger:     logger,
		metrics:    metrics,
	}
}

// CandidateURLs expands every template for m, in order.
func (f *Fetcher) CandidateURLs(m domain.Month) []string {
	r := strings.NewReplacer(
		"{base}", f.baseURL,
		"{year}", fmt.Sprintf("%04d", m.Year),
		"{month}", fmt.Sprintf("%02d", int(m.Month)),
	)
	urls := make([]string, len(f.templates))
	for i, t := range f.templates {
		urls[i] = r.Replace(t)
	}
	return urls
}

// Run fetches every month in [from, to]. An archive already in the raw
// directory for a month is authoritative: the month is skipped and never
// re-downloaded, so delete the archive to refresh it. Months with no reachable
// archive are reported and skipped; only local I/O errors abort the run.
func (f *Fetcher) Run(ctx context.Context, from, to domain.Month) (Report, error) {
	var report Report
	if err := os.MkdirAll(f.rawDir, 0o755); err != nil {
		return report, fmt.Errorf("create raw dir: %w", err)
	}

	for _, m := range domain.MonthRange(from, to) {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if existing := f.existingArchive(m); existing != "" {
			f.logger.Info("archive already present, skipping", "month", m.Tag(), "path", existing)
			f.metrics.MonthsFetched.WithLabelValues("skipped").Inc()
			report.Skipped = append(report.Skipped, m)
			continue
		}

		dst, err := f.FetchMonth(ctx, m)
		switch {
		case errors.Is(err, ErrNoCandidate):
			f.logger.Warn("month not fetched", "month", m.Tag())
			f.metrics.MonthsFetched.WithLabelValues("failed").Inc()
			report.Failed = append(report.Failed, m)
		case err != nil:
			return report, err
		default:
			f.logger.Info("archive saved", "month", m.Tag(), "path", dst)
			f.metrics.MonthsFetched.WithLabelValues("fetched").Inc()
			report.Fetched = append(report.Fetched, m)
		}
	}
	return report, nil
}

// FetchMonth tries each candidate URL for m until one succeeds and returns the
// path written. Transport failures and non-200 responses move on to the next
// candidate without retrying.
func (f *Fetcher) FetchMonth(ctx context.Context, m domain.Month) (string, error) {
	for _, u := range f.CandidateURLs(m) {
		dst := filepath.Join(f.rawDir, m.Tag()+extension(u))
		f.logger.Info("downloading archive", "month", m.Tag(), "url", u)

		ok, err := f.download(ctx, u, dst)
		if err != nil {
			return "", err
		}
		if ok {
			return dst, nil
		}
	}
	return "", fmt.Errorf("month %s: %w", m.Tag(), ErrNoCandidate)
}

// download streams u into dst via a .part file. It returns false for remote
// failures and an error only for local I/O problems.
func (f *Fetcher) download(ctx context.Context, u, dst string) (bool, error) {
	part := dst + ".part"
	file, err := os.Create(part)
	if err != nil {
		return false, fmt.Errorf("create %s: %w", part, err)
	}

	_, dlErr := f.downloader.Download(ctx, u, file)
	closeErr := file.Close()

	if dlErr != nil {
		f.logger.Warn("download failed", "url", u, "error", dlErr)
		if err := os.Remove(part); err != nil {
			return false, fmt.Errorf("remove partial download: %w", err)
		}
		return false, nil
	}
	if closeErr != nil {
		return false, fmt.Errorf("close %s: %w", part, closeErr)
	}
	if err := os.Rename(part, dst); err != nil {
		return false, fmt.Errorf("rename %s: %w", part, err)
	}
	return true, nil
}

func (f *Fetcher) existingArchive(m domain.Month) string {
	for _, u := range f.CandidateURLs(m) {
		p := filepath.Join(f.rawDir, m.Tag()+extension(u))
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// extension returns the file extension of the URL path, e.g. ".7z".
func extension(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil {
		return path.Ext(u.Path)
	}
	return path.Ext(rawURL)
}
