package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coalesced/showgate/internal/dsconfig"
	"github.com/coalesced/showgate/internal/normalize"
	"github.com/coalesced/showgate/internal/schema"
)

type stubContract struct {
	list   State[[]schema.Show]
	detail State[*schema.Show]
}

func (s *stubContract) AllShows(context.Context) State[[]schema.Show] { return s.list }

func (s *stubContract) Show(context.Context, string) State[*schema.Show] { return s.detail }

type stubBackend struct {
	list   State[[]map[string]any]
	detail State[map[string]any]

	lastParams schema.ListParams
}

func (s *stubBackend) Shows(_ context.Context, params schema.ListParams) State[[]map[string]any] {
	s.lastParams = params
	return s.list
}

func (s *stubBackend) Show(context.Context, string) State[map[string]any] { return s.detail }

func storeWith(list, detail dsconfig.SourceChoice) *dsconfig.Store {
	store := dsconfig.NewStore(dsconfig.DefaultConfig())
	store.Set(dsconfig.Partial{ListSource: &list, DetailSource: &detail})
	return store
}

func contractRecord(id, name string) schema.Show {
	return schema.Show{
		ID:          id,
		Name:        name,
		Description: "contract blurb",
		Location:    "Hall A",
		StartTime:   time.Unix(1735689600, 0),
		TicketPrice: decimal.NewFromInt(2500),
		Organizer:   "0xabc",
		IsActive:    true,
		Status:      1,
	}
}

func TestShowsContractMode(t *testing.T) {
	contract := &stubContract{list: State[[]schema.Show]{Data: []schema.Show{contractRecord("1", "One")}}}
	facade := NewFacade(storeWith(dsconfig.SourceContract, dsconfig.SourceContract), contract, &stubBackend{})

	res := facade.Shows(context.Background(), schema.ListParams{})
	if res.Provenance != dsconfig.SourceContract {
		t.Fatalf("provenance: %s", res.Provenance)
	}
	if len(res.Data) != 1 || res.Data[0].ID != "1" {
		t.Fatalf("contract records should pass through: %+v", res.Data)
	}
}

func TestShowsBackendModeNormalizes(t *testing.T) {
	backend := &stubBackend{list: State[[]map[string]any]{Data: []map[string]any{
		{"id": "3", "venue": "Hall C", "price": "1200"},
	}}}
	facade := NewFacade(storeWith(dsconfig.SourceBackend, dsconfig.SourceContract), &stubContract{}, backend)

	res := facade.Shows(context.Background(), schema.ListParams{Page: 2, PageSize: 10})
	if res.Provenance != dsconfig.SourceBackend {
		t.Fatalf("provenance: %s", res.Provenance)
	}
	if len(res.Data) != 1 {
		t.Fatalf("expected one normalized record: %+v", res.Data)
	}
	if res.Data[0].Location != "Hall C" || res.Data[0].TicketPrice.String() != "1200" {
		t.Fatalf("backend record not normalized: %+v", res.Data[0])
	}
	if backend.lastParams.Page != 2 || backend.lastParams.PageSize != 10 {
		t.Fatalf("pagination should reach the backend source: %+v", backend.lastParams)
	}
}

func TestHybridContractIdsAreAuthoritative(t *testing.T) {
	contract := &stubContract{list: State[[]schema.Show]{Data: []schema.Show{
		contractRecord("1", "One"),
		contractRecord("2", "Two"),
	}}}
	backend := &stubBackend{list: State[[]map[string]any]{Data: []map[string]any{
		{"id": "2", "name": "Two (backend)"},
		{"id": "3", "name": "Three (backend)"},
	}}}
	facade := NewFacade(storeWith(dsconfig.SourceHybrid, dsconfig.SourceContract), contract, backend)

	res := facade.Shows(context.Background(), schema.ListParams{})
	if res.Provenance != dsconfig.SourceHybrid {
		t.Fatalf("provenance: %s", res.Provenance)
	}
	if len(res.Data) != 2 {
		t.Fatalf("hybrid list must contain exactly the contract ids: %+v", res.Data)
	}
	ids := map[string]bool{}
	for _, record := range res.Data {
		ids[record.ID] = true
	}
	if !ids["1"] || !ids["2"] || ids["3"] {
		t.Fatalf("backend-only id leaked into the hybrid list: %v", ids)
	}
	// Coalesce default: the matched backend name wins.
	for _, record := range res.Data {
		if record.ID == "2" && record.Name != "Two (backend)" {
			t.Fatalf("matched backend fields should merge: %+v", record)
		}
		if record.ID == "1" && record.Name != "One" {
			t.Fatalf("unmatched contract record should survive verbatim: %+v", record)
		}
	}
}

func TestHybridLoadingAndFetching(t *testing.T) {
	contract := &stubContract{list: State[[]schema.Show]{Loading: true}}
	backend := &stubBackend{list: State[[]map[string]any]{Loading: true}}
	facade := NewFacade(storeWith(dsconfig.SourceHybrid, dsconfig.SourceContract), contract, backend)

	res := facade.Shows(context.Background(), schema.ListParams{})
	if !res.Loading || !res.Fetching {
		t.Fatalf("both sides loading should report loading: %+v", res)
	}

	// One side finished: partial data, no longer loading, still fetching.
	contract.list = State[[]schema.Show]{Data: []schema.Show{contractRecord("1", "One")}}
	res = facade.Shows(context.Background(), schema.ListParams{})
	if res.Loading {
		t.Fatalf("partial completion should clear loading")
	}
	if !res.Fetching {
		t.Fatalf("fetching must cover the still-loading side")
	}
	if len(res.Data) != 1 {
		t.Fatalf("partial merge should expose contract data: %+v", res.Data)
	}
}

func TestErrorOnlySurfacesWithoutData(t *testing.T) {
	backendErr := errors.New("backend down")
	contract := &stubContract{list: State[[]schema.Show]{Data: []schema.Show{contractRecord("1", "One")}}}
	backend := &stubBackend{list: State[[]map[string]any]{Err: backendErr}}
	facade := NewFacade(storeWith(dsconfig.SourceHybrid, dsconfig.SourceContract), contract, backend)

	res := facade.Shows(context.Background(), schema.ListParams{})
	if res.Err != nil {
		t.Fatalf("error must stay hidden while merged data exists: %v", res.Err)
	}

	contract.list = State[[]schema.Show]{Err: errors.New("contract down")}
	res = facade.Shows(context.Background(), schema.ListParams{})
	if res.Err == nil {
		t.Fatalf("error should surface once no data exists")
	}
}

func TestDetailContractMode(t *testing.T) {
	record := contractRecord("5", "Five")
	contract := &stubContract{detail: State[*schema.Show]{Data: &record}}
	facade := NewFacade(storeWith(dsconfig.SourceContract, dsconfig.SourceContract), contract, &stubBackend{})

	res := facade.Show(context.Background(), "5")
	if res.Provenance != dsconfig.SourceContract || res.Data == nil || res.Data.ID != "5" {
		t.Fatalf("contract detail passthrough failed: %+v", res)
	}
}

func TestDetailHybridMergesBackendFields(t *testing.T) {
	record := contractRecord("5", "Five")
	record.Description = ""
	contract := &stubContract{detail: State[*schema.Show]{Data: &record}}
	backend := &stubBackend{detail: State[map[string]any]{Data: map[string]any{
		"id":          "5",
		"description": "Backend blurb",
		"metadataURI": "ipfs://backend",
	}}}
	facade := NewFacade(storeWith(dsconfig.SourceContract, dsconfig.SourceHybrid), contract, backend)

	res := facade.Show(context.Background(), "5")
	if res.Provenance != dsconfig.SourceHybrid {
		t.Fatalf("provenance: %s", res.Provenance)
	}
	if res.Data.Description != "Backend blurb" {
		t.Fatalf("backend detail field should merge: %+v", res.Data)
	}
	if res.Data.MetadataURI != "ipfs://backend" {
		t.Fatalf("metadata should merge in detail scope: %+v", res.Data)
	}
}

func TestDetailHybridBackendOnlyFallback(t *testing.T) {
	backend := &stubBackend{detail: State[map[string]any]{Data: map[string]any{
		"id":   "9",
		"name": "Backend Only",
	}}}
	facade := NewFacade(storeWith(dsconfig.SourceContract, dsconfig.SourceHybrid), &stubContract{}, backend)

	res := facade.Show(context.Background(), "9")
	if res.Provenance != dsconfig.SourceHybrid {
		t.Fatalf("provenance: %s", res.Provenance)
	}
	if res.Data == nil || res.Data.Name != "Backend Only" {
		t.Fatalf("backend-only fallback missing: %+v", res.Data)
	}
}

func TestDetailHybridNeitherSide(t *testing.T) {
	facade := NewFacade(storeWith(dsconfig.SourceContract, dsconfig.SourceHybrid), &stubContract{}, &stubBackend{})
	res := facade.Show(context.Background(), "404")
	if res.Data != nil {
		t.Fatalf("no source data should yield no record: %+v", res.Data)
	}
}

func TestRefetchFansOutInHybrid(t *testing.T) {
	var contractRefetches, backendRefetches int
	contract := &stubContract{list: State[[]schema.Show]{Refetch: func() { contractRefetches++ }}}
	backend := &stubBackend{list: State[[]map[string]any]{Refetch: func() { backendRefetches++ }}}
	facade := NewFacade(storeWith(dsconfig.SourceHybrid, dsconfig.SourceContract), contract, backend)

	facade.Shows(context.Background(), schema.ListParams{}).Refetch()
	if contractRefetches != 1 || backendRefetches != 1 {
		t.Fatalf("hybrid refetch should reach both sources: contract=%d backend=%d", contractRefetches, backendRefetches)
	}
}

func TestModeSwitchTakesEffectImmediately(t *testing.T) {
	contract := &stubContract{list: State[[]schema.Show]{Data: []schema.Show{contractRecord("1", "One")}}}
	backend := &stubBackend{list: State[[]map[string]any]{Data: []map[string]any{{"id": "2", "name": "Two"}}}}

	store := storeWith(dsconfig.SourceContract, dsconfig.SourceContract)
	facade := NewFacade(store, contract, backend)

	if res := facade.Shows(context.Background(), schema.ListParams{}); res.Data[0].ID != "1" {
		t.Fatalf("expected contract data first: %+v", res.Data)
	}

	choice := dsconfig.SourceBackend
	store.Set(dsconfig.Partial{ListSource: &choice})
	if res := facade.Shows(context.Background(), schema.ListParams{}); res.Data[0].ID != "2" {
		t.Fatalf("facade should follow the live config: %+v", res.Data)
	}
}

func TestInjectedNormalizerHookObservesTimeFallbacks(t *testing.T) {
	backend := &stubBackend{list: State[[]map[string]any]{Data: []map[string]any{
		{"id": "7", "startTime": "not a timestamp"},
	}}}
	var fallbacks int
	facade := NewFacade(storeWith(dsconfig.SourceBackend, dsconfig.SourceContract), &stubContract{}, backend,
		WithNormalizer(normalize.Normalizer{TimeFallback: func(any) { fallbacks++ }}))

	res := facade.Shows(context.Background(), schema.ListParams{})
	if len(res.Data) != 1 {
		t.Fatalf("record with a bad timestamp should still normalize: %+v", res.Data)
	}
	if fallbacks != 1 {
		t.Fatalf("time fallback hook should fire once, got %d", fallbacks)
	}
}
