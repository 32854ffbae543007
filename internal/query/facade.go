package query

import (
	"context"

	"github.com/coalesced/showgate/internal/dsconfig"
	"github.com/coalesced/showgate/internal/merge"
	"github.com/coalesced/showgate/internal/normalize"
	"github.com/coalesced/showgate/internal/schema"
)

// Result is the facade's unified output. Provenance reflects which branch
// produced Data; in hybrid mode Data may be a partial merge while one side is
// still loading. Callers must treat Data as read-only.
type Result[T any] struct {
	Provenance dsconfig.SourceChoice
	Data       T
	Loading    bool
	Fetching   bool
	Err        error
	Refetch    func()
}

// Facade recomputes unified results from the configuration store and the two
// source collaborators. It owns no state of its own: every call reads the
// latest config and source snapshots.
type Facade struct {
	store      *dsconfig.Store
	contract   ContractSource
	backend    BackendSource
	normalizer normalize.Normalizer
}

// Option customises facade construction.
type Option func(*Facade)

// WithNormalizer attaches a normalizer carrying diagnostics hooks. Without it
// backend payloads normalize silently.
func WithNormalizer(n normalize.Normalizer) Option {
	return func(f *Facade) { f.normalizer = n }
}

// NewFacade constructs the unified query facade.
func NewFacade(store *dsconfig.Store, contract ContractSource, backend BackendSource, opts ...Option) *Facade {
	f := &Facade{store: store, contract: contract, backend: backend}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Shows resolves the unified show list for the configured list source.
func (f *Facade) Shows(ctx context.Context, params schema.ListParams) Result[[]schema.Show] {
	cfg := f.store.Snapshot()

	switch cfg.ListSource {
	case dsconfig.SourceContract:
		st := f.contract.AllShows(ctx)
		return Result[[]schema.Show]{
			Provenance: dsconfig.SourceContract,
			Data:       st.Data,
			Loading:    st.Loading,
			Fetching:   st.Fetching || st.Loading,
			Err:        surfaceErr(st.Data != nil, st.Err),
			Refetch:    refetchAll(st.Refetch),
		}

	case dsconfig.SourceBackend:
		st := f.backend.Shows(ctx, params)
		return Result[[]schema.Show]{
			Provenance: dsconfig.SourceBackend,
			Data:       f.normalizeItems(st.Data),
			Loading:    st.Loading,
			Fetching:   st.Fetching || st.Loading,
			Err:        surfaceErr(st.Data != nil, st.Err),
			Refetch:    refetchAll(st.Refetch),
		}

	default:
		return f.hybridShows(ctx, params, cfg.MergePolicy)
	}
}

// hybridShows queries both sources unconditionally and reconciles them. The
// contract enumeration is authoritative for which ids appear; backend-only
// records are omitted.
func (f *Facade) hybridShows(ctx context.Context, params schema.ListParams, policy dsconfig.MergePolicy) Result[[]schema.Show] {
	cst := f.contract.AllShows(ctx)
	bst := f.backend.Shows(ctx, params)

	index := f.indexBackend(bst.Data)

	var merged []schema.Show
	if cst.Data != nil {
		merged = make([]schema.Show, 0, len(cst.Data))
		for i := range cst.Data {
			record := merge.Record(&cst.Data[i], index[cst.Data[i].ID], merge.ScopeList, policy)
			merged = append(merged, *record)
		}
	}

	return Result[[]schema.Show]{
		Provenance: dsconfig.SourceHybrid,
		Data:       merged,
		Loading:    cst.Loading && bst.Loading,
		Fetching:   cst.Loading || cst.Fetching || bst.Loading || bst.Fetching,
		Err:        surfaceErr(merged != nil, cst.Err, bst.Err),
		Refetch:    refetchAll(cst.Refetch, bst.Refetch),
	}
}

// Show resolves the unified detail record for the configured detail source.
func (f *Facade) Show(ctx context.Context, id string) Result[*schema.Show] {
	cfg := f.store.Snapshot()

	switch cfg.DetailSource {
	case dsconfig.SourceContract:
		st := f.contract.Show(ctx, id)
		return Result[*schema.Show]{
			Provenance: dsconfig.SourceContract,
			Data:       st.Data,
			Loading:    st.Loading,
			Fetching:   st.Fetching || st.Loading,
			Err:        surfaceErr(st.Data != nil, st.Err),
			Refetch:    refetchAll(st.Refetch),
		}

	case dsconfig.SourceBackend:
		st := f.backend.Show(ctx, id)
		var record *schema.Show
		if st.Data != nil {
			record, _ = f.normalizer.Record(st.Data)
		}
		return Result[*schema.Show]{
			Provenance: dsconfig.SourceBackend,
			Data:       record,
			Loading:    st.Loading,
			Fetching:   st.Fetching || st.Loading,
			Err:        surfaceErr(record != nil, st.Err),
			Refetch:    refetchAll(st.Refetch),
		}

	default:
		return f.hybridShow(ctx, id, cfg.MergePolicy)
	}
}

// hybridShow merges the detail record from both sources. When the contract
// side has no record the normalized backend record stands alone; when neither
// side produced data the result carries no record.
func (f *Facade) hybridShow(ctx context.Context, id string, policy dsconfig.MergePolicy) Result[*schema.Show] {
	cst := f.contract.Show(ctx, id)
	bst := f.backend.Show(ctx, id)

	var backendRecord *schema.Show
	if bst.Data != nil {
		backendRecord, _ = f.normalizer.Record(bst.Data)
	}

	var data *schema.Show
	switch {
	case cst.Data != nil:
		data = merge.Record(cst.Data, backendRecord, merge.ScopeDetail, policy)
	case backendRecord != nil:
		data = backendRecord
	}

	return Result[*schema.Show]{
		Provenance: dsconfig.SourceHybrid,
		Data:       data,
		Loading:    cst.Loading && bst.Loading,
		Fetching:   cst.Loading || cst.Fetching || bst.Loading || bst.Fetching,
		Err:        surfaceErr(data != nil, cst.Err, bst.Err),
		Refetch:    refetchAll(cst.Refetch, bst.Refetch),
	}
}

// normalizeItems converts raw backend payloads to canonical records, dropping
// items that are not objects. A nil input stays nil so "not yet loaded" is
// distinguishable from "loaded empty".
func (f *Facade) normalizeItems(items []map[string]any) []schema.Show {
	if items == nil {
		return nil
	}
	out := make([]schema.Show, 0, len(items))
	for _, item := range items {
		if record, ok := f.normalizer.Record(item); ok {
			out = append(out, *record)
		}
	}
	return out
}

// indexBackend builds the hybrid lookup table keyed by normalized id.
func (f *Facade) indexBackend(items []map[string]any) map[string]*schema.Show {
	index := make(map[string]*schema.Show, len(items))
	for _, item := range items {
		if record, ok := f.normalizer.Record(item); ok {
			index[record.ID] = record
		}
	}
	return index
}

// surfaceErr applies the data-first error policy: an error is visible only
// when no usable data exists.
func surfaceErr(hasData bool, errs ...error) error {
	if hasData {
		return nil
	}
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// refetchAll fans a refetch out to every active source.
func refetchAll(fns ...func()) func() {
	return func() {
		for _, fn := range fns {
			if fn != nil {
				fn()
			}
		}
	}
}
