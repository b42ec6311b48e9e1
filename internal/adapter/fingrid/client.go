package fingrid

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/grid-frequency-etl/internal/observability"
)

// StatusError reports a response other than 200 OK.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("archive request %s: status %d", e.URL, e.Status)
}

// Client downloads archives from the Fingrid open data file host.
// It implements fetch.Downloader.
type Client struct {
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an archive client. timeout bounds each request,
// including reading the body.
func NewClient(timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		metrics: metrics,
		logger:  logger,
	}
}

// Download issues a single GET for url and streams a 200 response body into
// dst. Any other status is returned as a *StatusError without touching dst.
func (c *Client) Download(ctx context.Context, url string, dst io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.FetchAttempts.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("archive request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.FetchAttempts.WithLabelValues("status").Inc()
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return 0, &StatusError{URL: url, Status: resp.StatusCode}
	}

	n, err := io.Copy(dst, resp.Body)
	if err != nil {
		c.metrics.FetchAttempts.WithLabelValues("error").Inc()
		return n, fmt.Errorf("read archive body: %w", err)
	}

	c.metrics.FetchAttempts.WithLabelValues("ok").Inc()
	c.metrics.FetchedBytes.Add(float64(n))
	c.logger.Debug("archive downloaded", "url", url, "bytes", n, "duration", time.Since(start))
	return n, nil
}
