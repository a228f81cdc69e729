package fetcher

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/tripfetch/tripfetch/internal/domain"
)

// Options configures the Fetcher.
type Options struct {
	// Timeout is the total-operation timeout for one download attempt.
	// Default: 600s
	Timeout time.Duration

	// VerifyTLS enables certificate verification. The public dataset
	// endpoint is fetched best-effort, so this defaults to off.
	VerifyTLS bool

	// ChunkSize is the copy buffer size used when streaming the body
	// to disk. Default: 1024
	ChunkSize int
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		Timeout:   600 * time.Second,
		ChunkSize: 1024,
	}
}

// Fetcher performs single download attempts. Retry lives in the caller,
// wrapped around Fetch via Retry.
type Fetcher struct {
	client *http.Client
	opts   Options
}

func New(opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 600 * time.Second
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 1024
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: !opts.VerifyTLS},
	}

	return &Fetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
		},
		opts: opts,
	}
}

// Fetch performs one GET of the item's URL and streams the body to the
// item's archive path. Failures map onto the outcome taxonomy: 404 is
// domain.ErrNotFound, connection/timeout/non-200 statuses are
// domain.ErrConnection, anything filesystem-side surfaces as-is.
func (f *Fetcher) Fetch(ctx context.Context, item domain.Item) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, item.URL, nil)
	if err != nil {
		return "", fmt.Errorf("create request for %s: %w", item.Name, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrConnection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("%w: %s", domain.ErrNotFound, item.Name)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: unexpected status %d for %s", domain.ErrConnection, resp.StatusCode, item.Name)
	}

	out, err := os.Create(item.ArchivePath)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", item.ArchivePath, err)
	}

	buf := make([]byte, f.opts.ChunkSize)
	if _, err := io.CopyBuffer(out, resp.Body, buf); err != nil {
		out.Close()
		return "", fmt.Errorf("%w: stream interrupted for %s: %v", domain.ErrConnection, item.Name, err)
	}

	if err := out.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", item.ArchivePath, err)
	}

	return item.ArchivePath, nil
}
