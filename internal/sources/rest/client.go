// Package rest implements the reference backend collaborator over HTTP.
package rest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/coalesced/showgate/config"
	"github.com/coalesced/showgate/errs"
	"github.com/coalesced/showgate/internal/schema"
)

const (
	maxResponseLen = 1 << 20
	requestTries   = 3
)

// Client issues show queries against the backend API. Responses are returned
// as raw JSON objects; normalization happens downstream.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithClientLogger attaches a logger for request diagnostics.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient constructs a Client from backend settings.
func NewClient(cfg config.BackendSettings, opts ...ClientOption) *Client {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  slog.Default(),
	}
	if cfg.RatePerSec > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Shows fetches the show list. Pagination parameters are translated to the
// backend's limit/offset contract; an explicit limit/offset pair passes
// through untouched.
func (c *Client) Shows(ctx context.Context, params schema.ListParams) ([]map[string]any, error) {
	query := url.Values{}
	page := schema.NormalizePage(params)
	if page.Limit != nil {
		query.Set("limit", strconv.Itoa(*page.Limit))
	}
	if page.Offset != nil {
		query.Set("offset", strconv.Itoa(*page.Offset))
	}

	body, err := c.getJSON(ctx, "/shows", query)
	if err != nil {
		return nil, err
	}
	return unwrapItems(body, c.logger), nil
}

// Show fetches a single show payload by id.
func (c *Client) Show(ctx context.Context, id string) (map[string]any, error) {
	body, err := c.getJSON(ctx, "/shows/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	var record map[string]any
	if err := json.Unmarshal(body, &record); err != nil {
		return nil, errs.New(errs.SourceBackend, errs.CodeDecode,
			errs.WithMessage("show payload is not a JSON object"),
			errs.WithCause(err))
	}
	return record, nil
}

// getJSON performs a rate-limited GET with bounded retries on transient
// failures. Every attempt of one logical request shares its request id.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, errs.New(errs.SourceBackend, errs.CodeTimeout, errs.WithCause(err))
		}
	}

	requestID := uuid.NewString()
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	backoffCfg := backoff.NewExponentialBackOff()
	backoffCfg.InitialInterval = 100 * time.Millisecond

	var lastErr error
	for attempt := 0; attempt < requestTries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, errs.New(errs.SourceBackend, errs.CodeTimeout,
					errs.WithRequestID(requestID), errs.WithCause(ctx.Err()))
			case <-time.After(backoffCfg.NextBackOff()):
			}
		}
		body, retryable, err := c.attempt(ctx, endpoint, requestID)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
		c.logger.Debug("backend request retry",
			"path", path, "attempt", attempt+1, "request_id", requestID, "error", err)
	}
	return nil, lastErr
}

func (c *Client) attempt(ctx context.Context, endpoint, requestID string) (body []byte, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, false, errs.New(errs.SourceBackend, errs.CodeInvalid,
			errs.WithRequestID(requestID), errs.WithCause(err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	resp, err := c.http.Do(req)
	if err != nil {
		code := errs.CodeNetwork
		if errors.Is(err, context.DeadlineExceeded) {
			code = errs.CodeTimeout
		}
		return nil, true, errs.New(errs.SourceBackend, code,
			errs.WithRequestID(requestID), errs.WithCause(err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseLen))
	if err != nil {
		return nil, true, errs.New(errs.SourceBackend, errs.CodeNetwork,
			errs.WithRequestID(requestID), errs.WithCause(err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		transient := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return nil, transient, errs.New(errs.SourceBackend, errs.HTTPStatus(resp.StatusCode),
			errs.WithHTTP(resp.StatusCode),
			errs.WithRequestID(requestID),
			errs.WithMessage(strings.TrimSpace(string(data))))
	}
	return data, false, nil
}

// listEnvelope is the paginated response shape. Bare arrays are also accepted.
type listEnvelope struct {
	Items []json.RawMessage `json:"items"`
}

// unwrapItems extracts the record objects from either response shape. Shapes
// that carry no recognizable records yield nil rather than an error.
func unwrapItems(body []byte, logger *slog.Logger) []map[string]any {
	var raws []json.RawMessage
	if err := json.Unmarshal(body, &raws); err != nil {
		var envelope listEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil || envelope.Items == nil {
			logger.Debug("backend list response has no recognizable shape")
			return nil
		}
		raws = envelope.Items
	}

	items := make([]map[string]any, 0, len(raws))
	for _, raw := range raws {
		var record map[string]any
		if err := json.Unmarshal(raw, &record); err != nil {
			continue
		}
		items = append(items, record)
	}
	return items
}
