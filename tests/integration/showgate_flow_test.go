package integration

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/coalesced/showgate/config"
	"github.com/coalesced/showgate/internal/dsconfig"
	"github.com/coalesced/showgate/internal/query"
	"github.com/coalesced/showgate/internal/schema"
	httpserver "github.com/coalesced/showgate/internal/server/http"
	"github.com/coalesced/showgate/internal/sources/chain"
	"github.com/coalesced/showgate/internal/sources/rest"
)

// remoteConfigServer serves a mutable data-source configuration document.
type remoteConfigServer struct {
	mu  sync.Mutex
	doc string
}

func (s *remoteConfigServer) Set(doc string) {
	s.mu.Lock()
	s.doc = doc
	s.mu.Unlock()
}

func (s *remoteConfigServer) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	doc := s.doc
	s.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(doc))
}

func backendHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/shows", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"items":[
			{"id":"1","name":"Backend One","venue":"Backend Hall"},
			{"id":"2","name":"Backend Two"},
			{"id":"999","name":"Backend Only"}
		],"total":3}`))
	})
	mux.HandleFunc("/shows/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/shows/")
		if id != "1" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"id":"1","description":"Backend detail blurb","metadata_uri":"ipfs://backend-1"}`))
	})
	return mux
}

type fixture struct {
	store   *dsconfig.Store
	facade  *query.Facade
	handler http.Handler
	remote  *remoteConfigServer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	remote := &remoteConfigServer{doc: `{"dataSources":{"listSourceChoice":"hybrid","detailSourceChoice":"hybrid"}}`}
	remoteSrv := httptest.NewServer(remote)
	t.Cleanup(remoteSrv.Close)

	backendSrv := httptest.NewServer(backendHandler())
	t.Cleanup(backendSrv.Close)

	store := dsconfig.NewStore(dsconfig.DefaultConfig(),
		dsconfig.WithRemote(dsconfig.NewHTTPRemote(remoteSrv.URL, nil)),
		dsconfig.WithOverrides(dsconfig.NewMemoryOverrideStore()))
	store.Bootstrap(context.Background())

	contract := chain.NewSource(chain.Options{Shows: 3}, nil)
	client := rest.NewClient(config.BackendSettings{BaseURL: backendSrv.URL})
	backend := rest.NewSource(client, nil)

	facade := query.NewFacade(store, contract, backend)
	return &fixture{
		store:   store,
		facade:  facade,
		handler: httpserver.NewHandler(facade, store, nil),
		remote:  remote,
	}
}

func awaitShows(t *testing.T, f *fixture) query.Result[[]schema.Show] {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		res := f.facade.Shows(context.Background(), schema.ListParams{})
		if !res.Loading && !res.Fetching {
			return res
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("list query never settled")
	return query.Result[[]schema.Show]{}
}

func TestHybridFlowEndToEnd(t *testing.T) {
	f := newFixture(t)

	cfg := f.store.Snapshot()
	require.Equal(t, dsconfig.SourceHybrid, cfg.ListSource, "remote document should win over defaults")

	res := awaitShows(t, f)
	require.NoError(t, res.Err)
	require.Equal(t, dsconfig.SourceHybrid, res.Provenance)

	// The contract enumerates ids 1..3; the backend-only id 999 must not appear.
	require.Len(t, res.Data, 3)
	byID := map[string]schema.Show{}
	for _, record := range res.Data {
		byID[record.ID] = record
	}
	require.NotContains(t, byID, "999")

	// Coalesce default: matched backend fields replace contract fields.
	require.Equal(t, "Backend One", byID["1"].Name)
	require.Equal(t, "Backend Hall", byID["1"].Location)
	// Unmatched contract record passes through untouched.
	require.Equal(t, "Synthetic Show #3", byID["3"].Name)
}

func TestDetailHybridMergesAliasedFields(t *testing.T) {
	f := newFixture(t)

	deadline := time.Now().Add(3 * time.Second)
	var res query.Result[*schema.Show]
	for time.Now().Before(deadline) {
		res = f.facade.Show(context.Background(), "1")
		if !res.Loading && !res.Fetching {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.NoError(t, res.Err)
	require.NotNil(t, res.Data)
	require.Equal(t, "Backend detail blurb", res.Data.Description)
	require.Equal(t, "ipfs://backend-1", res.Data.MetadataURI, "metadata_uri alias should normalize")
}

func TestOverrideSurvivesPollAndReset(t *testing.T) {
	f := newFixture(t)

	// Operator override forces the list view to contract-only.
	choice := dsconfig.SourceContract
	f.store.SetAndPersist(dsconfig.Partial{ListSource: &choice})
	require.Equal(t, dsconfig.SourceContract, f.store.Snapshot().ListSource)

	// A remote change arrives; the override must still win after the poll.
	f.remote.Set(`{"dataSources":{"listSourceChoice":"backend","detailSourceChoice":"backend"}}`)
	changed, err := f.store.PollOnce(context.Background())
	require.NoError(t, err)
	require.True(t, changed)
	snapshot := f.store.Snapshot()
	require.Equal(t, dsconfig.SourceContract, snapshot.ListSource, "override outranks remote")
	require.Equal(t, dsconfig.SourceBackend, snapshot.DetailSource, "non-overridden field follows remote")

	// Clearing the override re-resolves the cascade without it.
	f.store.ResetOverride(context.Background())
	require.Equal(t, dsconfig.SourceBackend, f.store.Snapshot().ListSource)
}

func TestPollerAppliesRemoteChanges(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	poller := dsconfig.NewPoller(f.store, 20*time.Millisecond, nil, nil)
	go poller.Run(ctx)

	f.remote.Set(`{"dataSources":{"listSourceChoice":"contract","detailSourceChoice":"contract"}}`)

	require.Eventually(t, func() bool {
		return f.store.Snapshot().ListSource == dsconfig.SourceContract
	}, 3*time.Second, 20*time.Millisecond, "poller should pick up the remote change")
}

func TestHTTPControlSurface(t *testing.T) {
	f := newFixture(t)

	// Switch the list view over HTTP and persist it.
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/config/datasource",
		strings.NewReader(`{"listSourceChoice":"backend","persist":true}`)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, dsconfig.SourceBackend, f.store.Snapshot().ListSource)

	// The list endpoint reflects the new provenance once settled.
	require.Eventually(t, func() bool {
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/shows", nil))
		var payload struct {
			Provenance string           `json:"provenance"`
			Loading    bool             `json:"loading"`
			Data       []map[string]any `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
		return !payload.Loading && payload.Provenance == "backend" && len(payload.Data) == 3
	}, 3*time.Second, 20*time.Millisecond)

	// Dropping the override over HTTP restores the remote choice.
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/config/datasource/override", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, dsconfig.SourceHybrid, f.store.Snapshot().ListSource)
}
