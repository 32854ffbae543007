package rest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/coalesced/showgate/config"
	"github.com/coalesced/showgate/errs"
	"github.com/coalesced/showgate/internal/schema"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := NewClient(config.BackendSettings{BaseURL: server.URL})
	return client, server
}

func TestShowsBareArray(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":"1","name":"One"},{"id":"2"}]`))
	}))

	items, err := client.Shows(context.Background(), schema.ListParams{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 || items[0]["id"] != "1" {
		t.Fatalf("unexpected items: %+v", items)
	}
}

func TestShowsEnvelope(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items":[{"id":"7"}],"total":40,"page":2,"pageSize":20}`))
	}))

	items, err := client.Shows(context.Background(), schema.ListParams{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 || items[0]["id"] != "7" {
		t.Fatalf("envelope not unwrapped: %+v", items)
	}
}

func TestShowsUnrecognizedShape(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"unexpected":true}`))
	}))

	items, err := client.Shows(context.Background(), schema.ListParams{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if items != nil {
		t.Fatalf("unrecognized shapes must yield no data: %+v", items)
	}
}

func TestShowsDropsNonObjectItems(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":"1"},"garbage",42,{"id":"2"}]`))
	}))

	items, err := client.Shows(context.Background(), schema.ListParams{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("non-object items should be dropped: %+v", items)
	}
}

func TestShowsPaginationQuery(t *testing.T) {
	var gotQuery string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`[]`))
	}))

	if _, err := client.Shows(context.Background(), schema.ListParams{Page: 3, PageSize: 20}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotQuery != "limit=20&offset=40" {
		t.Fatalf("pagination query: %q", gotQuery)
	}
}

func TestShowsRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	var requestIDs []string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestIDs = append(requestIDs, r.Header.Get("X-Request-ID"))
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`[{"id":"1"}]`))
	}))

	items, err := client.Shows(context.Background(), schema.ListParams{})
	if err != nil {
		t.Fatalf("transient failures should be retried: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("unexpected items: %+v", items)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
	for i := 1; i < len(requestIDs); i++ {
		if requestIDs[i] != requestIDs[0] || requestIDs[0] == "" {
			t.Fatalf("request id must be stable across retries: %v", requestIDs)
		}
	}
}

func TestShowNotFoundIsTerminal(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "no such show", http.StatusNotFound)
	}))

	_, err := client.Show(context.Background(), "404")
	if !errs.IsNotFound(err) {
		t.Fatalf("expected not_found, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("client errors must not be retried: %d attempts", calls.Load())
	}
}

func TestShowDecodesObject(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"9","venue":"Hall B"}`))
	}))

	record, err := client.Show(context.Background(), "9")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record["venue"] != "Hall B" {
		t.Fatalf("unexpected record: %+v", record)
	}
}

func TestShowNonObjectPayload(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[1,2,3]`))
	}))

	_, err := client.Show(context.Background(), "9")
	if errs.CodeOf(err) != errs.CodeDecode {
		t.Fatalf("expected decode error, got %v", err)
	}
}
