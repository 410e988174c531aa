package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

type GetOptions struct {
	// MaxSize caps the response size in bytes. Zero means no cap.
	MaxSize int
	Timeout time.Duration
	// Cache allows a previously fetched copy newer than CacheTTL to
	// be returned without hitting the network.
	Cache    bool
	CacheTTL time.Duration
}

// Downloader fetches feed archives. Implementations decide whether
// and where to cache.
type Downloader interface {
	Get(ctx context.Context, url string, headers map[string]string, options GetOptions) ([]byte, error)
}

// HTTPGet fetches url without caching. The cache-aware Downloaders
// call it on miss, and custom implementations can too.
func HTTPGet(ctx context.Context, url string, headers map[string]string, options GetOptions) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for k, v := range headers {
		req.Header.Add(k, v)
	}

	client := &http.Client{Timeout: options.Timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("downloading %s: status %d", url, resp.StatusCode)
	}

	// Read one byte past the cap so a response at exactly MaxSize
	// can be told apart from one that blew through it.
	var reader io.Reader = resp.Body
	if options.MaxSize > 0 {
		reader = io.LimitReader(resp.Body, int64(options.MaxSize)+1)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if options.MaxSize > 0 && len(body) > options.MaxSize {
		return nil, fmt.Errorf("response from %s exceeds %d bytes", url, options.MaxSize)
	}

	return body, nil
}
