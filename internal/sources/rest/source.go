package rest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/coalesced/showgate/internal/query"
	"github.com/coalesced/showgate/internal/schema"
)

// Source adapts Client into the non-blocking collaborator contract. Each
// distinct query key carries its own async state: the first observation starts
// a fetch and reports loading; later observations return the cached snapshot
// until a refetch is requested.
type Source struct {
	client *Client
	logger *slog.Logger

	mu      sync.Mutex
	lists   map[string]*entry[[]map[string]any]
	details map[string]*entry[map[string]any]
}

// NewSource wraps the client in cached async state.
func NewSource(client *Client, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		client:  client,
		logger:  logger,
		lists:   make(map[string]*entry[[]map[string]any]),
		details: make(map[string]*entry[map[string]any]),
	}
}

// Shows reports the current list state for the given pagination parameters.
func (s *Source) Shows(_ context.Context, params schema.ListParams) query.State[[]map[string]any] {
	key := listKey(params)

	s.mu.Lock()
	e, ok := s.lists[key]
	if !ok {
		e = newEntry(s.logger, "list "+key, func(ctx context.Context) ([]map[string]any, error) {
			return s.client.Shows(ctx, params)
		})
		s.lists[key] = e
	}
	s.mu.Unlock()

	return e.snapshot()
}

// Show reports the current detail state for the given id.
func (s *Source) Show(_ context.Context, id string) query.State[map[string]any] {
	s.mu.Lock()
	e, ok := s.details[id]
	if !ok {
		e = newEntry(s.logger, "detail "+id, func(ctx context.Context) (map[string]any, error) {
			return s.client.Show(ctx, id)
		})
		s.details[id] = e
	}
	s.mu.Unlock()

	return e.snapshot()
}

func listKey(params schema.ListParams) string {
	page := schema.NormalizePage(params)
	limit, offset := -1, -1
	if page.Limit != nil {
		limit = *page.Limit
	}
	if page.Offset != nil {
		offset = *page.Offset
	}
	return fmt.Sprintf("limit=%d offset=%d", limit, offset)
}

// entry tracks one query's lifecycle. At most one fetch per entry is in
// flight; a refetch requested mid-flight is ignored.
type entry[T any] struct {
	mu       sync.Mutex
	state    query.State[T]
	inFlight bool

	fetch  func(context.Context) (T, error)
	logger *slog.Logger
	label  string
}

func newEntry[T any](logger *slog.Logger, label string, fetch func(context.Context) (T, error)) *entry[T] {
	e := &entry[T]{fetch: fetch, logger: logger, label: label}
	e.state.Loading = true
	e.state.Fetching = true
	e.state.Refetch = e.refetch
	e.start()
	return e
}

func (e *entry[T]) snapshot() query.State[T] {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *entry[T]) refetch() {
	e.mu.Lock()
	if e.inFlight {
		e.mu.Unlock()
		return
	}
	e.state.Fetching = true
	e.mu.Unlock()
	e.start()
}

func (e *entry[T]) start() {
	e.mu.Lock()
	if e.inFlight {
		e.mu.Unlock()
		return
	}
	e.inFlight = true
	e.mu.Unlock()

	go func() {
		data, err := e.fetch(context.Background())

		e.mu.Lock()
		defer e.mu.Unlock()
		e.inFlight = false
		e.state.Loading = false
		e.state.Fetching = false
		if err != nil {
			// Stale data survives a failed refresh; the facade decides
			// whether the error is user-visible.
			e.state.Err = err
			e.logger.Debug("backend fetch failed", "query", e.label, "error", err)
			return
		}
		e.state.Data = data
		e.state.Err = nil
	}()
}
