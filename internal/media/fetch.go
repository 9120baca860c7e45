// ABOUTME: HTTP fetcher for sample source URLs
// ABOUTME: Whole-body in-memory fetch with size and time bounds, no retries
package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"
)

const (
	// maxSampleBytes bounds a fetched clip; soundboard samples are short.
	maxSampleBytes = 32 << 20

	fetchTimeout = 30 * time.Second
)

// fetcher downloads sample bodies. Failed fetches are not retried; the
// engine surfaces the error and the caller retries by loading again.
type fetcher struct {
	client   *http.Client
	maxBytes int64
}

func newFetcher() *fetcher {
	return &fetcher{
		client:   &http.Client{Timeout: fetchTimeout},
		maxBytes: maxSampleBytes,
	}
}

// Fetch downloads the URL into memory and returns the body plus the last
// URL path element, which carries the extension decoders dispatch on.
func (f *fetcher) Fetch(ctx context.Context, rawurl string) ([]byte, string, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return nil, "", fmt.Errorf("invalid sample URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, "", fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawurl, nil)
	if err != nil {
		return nil, "", fmt.Errorf("fetch failed: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetch failed: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("fetch failed: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, "", fmt.Errorf("sample exceeds %d byte limit", f.maxBytes)
	}

	return data, path.Base(u.Path), nil
}
