// Package httpserver exposes HTTP handlers for the unified show views and the
// data-source control surface.
package httpserver

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/coalesced/showgate/errs"
	"github.com/coalesced/showgate/internal/dsconfig"
	"github.com/coalesced/showgate/internal/query"
	"github.com/coalesced/showgate/internal/schema"
	"github.com/coalesced/showgate/internal/telemetry"
)

const (
	maxJSONBodyBytes int64 = 1 << 20 // 1 MiB

	showsPath        = "/shows"
	showDetailPrefix = showsPath + "/"

	datasourcePath         = "/config/datasource"
	datasourceOverridePath = datasourcePath + "/override"
)

type handlerFunc func(http.ResponseWriter, *http.Request)

type httpServer struct {
	facade  *query.Facade
	store   *dsconfig.Store
	metrics *telemetry.Metrics
}

// NewHandler creates the HTTP handler for show queries and data-source
// control operations. metrics may be nil.
func NewHandler(facade *query.Facade, store *dsconfig.Store, metrics *telemetry.Metrics) http.Handler {
	server := &httpServer{facade: facade, store: store, metrics: metrics}
	mux := http.NewServeMux()

	mux.Handle(showsPath, server.methodHandlers(map[string]handlerFunc{
		http.MethodGet: server.listShows,
	}))
	mux.Handle(showDetailPrefix, server.methodHandlers(map[string]handlerFunc{
		http.MethodGet: server.getShow,
	}))

	mux.Handle(datasourcePath, server.methodHandlers(map[string]handlerFunc{
		http.MethodGet: server.getDatasource,
		http.MethodPut: server.updateDatasource,
	}))
	mux.Handle(datasourceOverridePath, server.methodHandlers(map[string]handlerFunc{
		http.MethodDelete: server.resetOverride,
	}))

	return withCORS(mux)
}

func (s *httpServer) methodHandlers(handlers map[string]handlerFunc) http.Handler {
	allowed := allowedMethods(handlers)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := handlers[r.Method]; ok {
			handler(w, r)
			return
		}
		methodNotAllowed(w, allowed...)
	})
}

func allowedMethods(handlers map[string]handlerFunc) []string {
	if len(handlers) == 0 {
		return nil
	}
	allowed := make([]string, 0, len(handlers))
	for method := range handlers {
		allowed = append(allowed, method)
	}
	sort.Strings(allowed)
	return allowed
}

// resultPayload is the wire shape of a unified query result.
type resultPayload struct {
	Provenance string `json:"provenance"`
	Loading    bool   `json:"loading"`
	Fetching   bool   `json:"fetching"`
	Data       any    `json:"data"`
	Error      string `json:"error,omitempty"`
}

func (s *httpServer) listShows(w http.ResponseWriter, r *http.Request) {
	params, err := listParamsFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res := s.facade.Shows(r.Context(), params)
	s.metrics.Query("shows", string(res.Provenance))

	payload := resultPayload{
		Provenance: string(res.Provenance),
		Loading:    res.Loading,
		Fetching:   res.Fetching,
		Data:       res.Data,
	}
	if res.Err != nil {
		payload.Error = res.Err.Error()
	}
	writeJSON(w, statusForResult(res.Data != nil, res.Loading, res.Err, http.StatusOK), payload)
}

func (s *httpServer) getShow(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, showDetailPrefix), "/")
	if id == "" {
		writeError(w, http.StatusNotFound, "show id required")
		return
	}

	res := s.facade.Show(r.Context(), id)
	s.metrics.Query("show", string(res.Provenance))

	payload := resultPayload{
		Provenance: string(res.Provenance),
		Loading:    res.Loading,
		Fetching:   res.Fetching,
		Data:       res.Data,
	}
	if res.Err != nil {
		payload.Error = res.Err.Error()
	}
	writeJSON(w, statusForResult(res.Data != nil, res.Loading, res.Err, http.StatusNotFound), payload)
}

// statusForResult maps a settled empty result onto an HTTP status. Results
// that carry data, or are still loading, are always 200.
func statusForResult(hasData, loading bool, err error, emptyStatus int) int {
	if hasData || loading {
		return http.StatusOK
	}
	if err == nil {
		return emptyStatus
	}
	switch errs.CodeOf(err) {
	case errs.CodeNotFound:
		return http.StatusNotFound
	case errs.CodeInvalid:
		return http.StatusBadRequest
	case errs.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func listParamsFromQuery(r *http.Request) (schema.ListParams, error) {
	var params schema.ListParams
	q := r.URL.Query()

	read := func(name string) (int, bool, error) {
		raw := strings.TrimSpace(q.Get(name))
		if raw == "" {
			return 0, false, nil
		}
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			return 0, false, errs.New(errs.SourceBackend, errs.CodeInvalid,
				errs.WithMessage(name+" must be a non-negative integer"))
		}
		return value, true, nil
	}

	var err error
	if params.Page, _, err = read("page"); err != nil {
		return params, err
	}
	if params.PageSize, _, err = read("pageSize"); err != nil {
		return params, err
	}
	if value, ok, err := read("limit"); err != nil {
		return params, err
	} else if ok {
		params.Limit = &value
	}
	if value, ok, err := read("offset"); err != nil {
		return params, err
	} else if ok {
		params.Offset = &value
	}
	return params, nil
}

// datasourcePayload is the PUT body for the data-source config. Source
// choices arrive as raw strings so invalid values can be rejected rather
// than silently ignored.
type datasourcePayload struct {
	ListSource   *string               `json:"listSourceChoice"`
	DetailSource *string               `json:"detailSourceChoice"`
	MergePolicy  *dsconfig.MergePolicy `json:"mergePolicy"`
	Persist      bool                  `json:"persist"`
}

func (s *httpServer) getDatasource(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Snapshot())
}

func (s *httpServer) updateDatasource(w http.ResponseWriter, r *http.Request) {
	limitRequestBody(w, r)
	payload, err := decodeDatasourcePayload(r)
	if err != nil {
		writeDecodeError(w, err)
		return
	}

	patch := dsconfig.Partial{MergePolicy: payload.MergePolicy}
	if payload.ListSource != nil {
		choice := dsconfig.ParseSourceChoice(*payload.ListSource, "")
		if choice == "" {
			writeError(w, http.StatusBadRequest, "invalid listSourceChoice")
			return
		}
		patch.ListSource = &choice
	}
	if payload.DetailSource != nil {
		choice := dsconfig.ParseSourceChoice(*payload.DetailSource, "")
		if choice == "" {
			writeError(w, http.StatusBadRequest, "invalid detailSourceChoice")
			return
		}
		patch.DetailSource = &choice
	}
	if patch.IsZero() {
		writeError(w, http.StatusBadRequest, "empty config patch")
		return
	}

	if payload.Persist {
		s.store.SetAndPersist(patch)
	} else {
		s.store.Set(patch)
	}
	writeJSON(w, http.StatusOK, s.store.Snapshot())
}

func (s *httpServer) resetOverride(w http.ResponseWriter, r *http.Request) {
	s.store.ResetOverride(r.Context())
	writeJSON(w, http.StatusOK, s.store.Snapshot())
}

func decodeDatasourcePayload(r *http.Request) (datasourcePayload, error) {
	defer func() {
		_ = r.Body.Close()
	}()
	var payload datasourcePayload
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(&payload); err != nil {
		return payload, err
	}
	return payload, nil
}

func limitRequestBody(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
}

func writeDecodeError(w http.ResponseWriter, err error) {
	if isRequestTooLarge(err) {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}

func isRequestTooLarge(err error) bool {
	var maxBytesErr *http.MaxBytesError
	return errors.As(err, &maxBytesErr)
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"status": "error", "error": message})
}

func withCORS(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
