// Package query exposes the unified read facade: one coherent show record (or
// list) assembled from the contract and backend sources according to the live
// data-source configuration.
package query

import (
	"context"

	"github.com/coalesced/showgate/internal/schema"
)

// State is the latest snapshot a source collaborator exposes for one logical
// query: the data (zero value while unavailable), first-load and background
// activity flags, the last error, and a refetch trigger.
type State[T any] struct {
	Data     T
	Loading  bool
	Fetching bool
	Err      error
	Refetch  func()
}

// ContractSource reads show records from the on-chain contract. Snapshots are
// non-blocking; implementations fetch in the background and report progress
// through the state flags.
type ContractSource interface {
	AllShows(ctx context.Context) State[[]schema.Show]
	Show(ctx context.Context, id string) State[*schema.Show]
}

// BackendSource reads loosely-shaped show payloads from the REST backend.
// Items are raw objects; the facade normalizes them into canonical records.
type BackendSource interface {
	Shows(ctx context.Context, params schema.ListParams) State[[]map[string]any]
	Show(ctx context.Context, id string) State[map[string]any]
}
