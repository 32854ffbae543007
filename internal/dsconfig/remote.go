package dsconfig

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RemoteSource retrieves the remote data-source configuration document.
type RemoteSource interface {
	Fetch(ctx context.Context) ([]byte, error)
}

const (
	remoteFetchTimeout   = 5 * time.Second
	bootstrapFetchTries  = 3
	maxRemoteDocumentLen = 1 << 20
)

// HTTPRemote fetches the configuration document over HTTP.
type HTTPRemote struct {
	url    string
	client *http.Client
}

// NewHTTPRemote constructs a remote source for the given document URL.
func NewHTTPRemote(url string, client *http.Client) *HTTPRemote {
	if client == nil {
		client = &http.Client{Timeout: remoteFetchTimeout}
	}
	return &HTTPRemote{url: url, client: client}
}

// Fetch retrieves the document bytes, bypassing intermediary caches.
func (r *HTTPRemote) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build data-config request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch data-config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch data-config: HTTP %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteDocumentLen))
	if err != nil {
		return nil, fmt.Errorf("read data-config body: %w", err)
	}
	return data, nil
}

// fetchWithRetry attempts the bootstrap fetch a bounded number of times with
// exponential backoff. The document is best-effort; callers skip the layer on
// persistent failure.
func fetchWithRetry(ctx context.Context, remote RemoteSource) ([]byte, error) {
	backoffCfg := backoff.NewExponentialBackOff()
	backoffCfg.InitialInterval = 200 * time.Millisecond

	var lastErr error
	for attempt := 0; attempt < bootstrapFetchTries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoffCfg.NextBackOff()):
			}
		}
		data, err := remote.Fetch(ctx)
		if err == nil {
			return data, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
