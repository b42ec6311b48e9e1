//go:build fingrid

package fingrid

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests hit the real Fingrid file host.
// Run with: go test -tags=fingrid ./internal/adapter/fingrid/ -v -count=1

func TestSmoke_DownloadArchive(t *testing.T) {
	c := testClient(2 * time.Minute)

	var buf bytes.Buffer
	n, err := c.Download(context.Background(), "https://data.fingrid.fi/files/339/2024/2024-01.7z", &buf)
	require.NoError(t, err)

	assert.Greater(t, n, int64(1<<20), "a month of 10 Hz data is several megabytes")
	assert.Equal(t, []byte{'7', 'z', 0xbc, 0xaf, 0x27, 0x1c}, buf.Bytes()[:6], "7z signature")
}

func TestSmoke_MissingArchive(t *testing.T) {
	c := testClient(30 * time.Second)

	var buf bytes.Buffer
	_, err := c.Download(context.Background(), "https://data.fingrid.fi/files/339/1990/1990-01.7z", &buf)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
}
