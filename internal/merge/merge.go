// Package merge reconciles contract and backend show records field by field
// according to the live merge policy. All functions are pure: identical inputs
// always produce identical output.
package merge

import (
	"github.com/coalesced/showgate/internal/dsconfig"
	"github.com/coalesced/showgate/internal/schema"
)

// Scope selects which per-field override table applies.
type Scope string

const (
	// ScopeList reconciles the list-view field set.
	ScopeList Scope = "list"
	// ScopeDetail reconciles the full detail field set.
	ScopeDetail Scope = "detail"
)

// Mergeable field names, as addressed by merge-policy override tables.
const (
	FieldName        = "name"
	FieldDescription = "description"
	FieldLocation    = "location"
	FieldTicketPrice = "ticketPrice"
	FieldMaxTickets  = "maxTickets"
	FieldSoldTickets = "soldTickets"
	FieldOrganizer   = "organizer"
	FieldIsActive    = "isActive"
	FieldStatus      = "status"
	FieldMetadataURI = "metadataURI"
)

// Field reconciles a single field value pair under the policy. A nil value
// marks an absent side; empty strings count as defined but empty, which only
// the coalesce mode accepts from the backend.
func Field(name string, scope Scope, contractVal, backendVal any, policy dsconfig.MergePolicy) any {
	switch modeFor(name, scope, policy) {
	case dsconfig.ModePreferContract:
		if definedNonEmpty(contractVal) {
			return contractVal
		}
		return backendVal
	case dsconfig.ModePreferBackend:
		if definedNonEmpty(backendVal) {
			return backendVal
		}
		return contractVal
	default:
		if backendVal != nil {
			return backendVal
		}
		return contractVal
	}
}

// Record combines one canonical record from each source. The contract record
// anchors the result: id and start time pass through unmodified, and a nil
// backend record degrades every field to the contract value.
func Record(contract, backend *schema.Show, scope Scope, policy dsconfig.MergePolicy) *schema.Show {
	if contract == nil {
		return nil
	}
	out := contract.Clone()
	if backend == nil {
		return out
	}

	out.Name = pick(FieldName, scope, contract.Name, backend.Name, policy)
	out.Description = pick(FieldDescription, scope, contract.Description, backend.Description, policy)
	out.Location = pick(FieldLocation, scope, contract.Location, backend.Location, policy)

	if scope == ScopeDetail {
		out.TicketPrice = pick(FieldTicketPrice, scope, contract.TicketPrice, backend.TicketPrice, policy)
		out.MaxTickets = pick(FieldMaxTickets, scope, contract.MaxTickets, backend.MaxTickets, policy)
		out.SoldTickets = pick(FieldSoldTickets, scope, contract.SoldTickets, backend.SoldTickets, policy)
		out.Organizer = pick(FieldOrganizer, scope, contract.Organizer, backend.Organizer, policy)
		out.IsActive = pick(FieldIsActive, scope, contract.IsActive, backend.IsActive, policy)
		out.Status = pick(FieldStatus, scope, contract.Status, backend.Status, policy)
		out.MetadataURI = pick(FieldMetadataURI, scope, contract.MetadataURI, backend.MetadataURI, policy)
	}
	return out
}

// pick routes a typed field pair through Field and recovers the static type.
func pick[T any](name string, scope Scope, contractVal, backendVal T, policy dsconfig.MergePolicy) T {
	merged := Field(name, scope, contractVal, backendVal, policy)
	if v, ok := merged.(T); ok {
		return v
	}
	return contractVal
}

// modeFor resolves the effective merge mode: the scope's per-field override
// when present and valid, else the policy default, else coalesce.
func modeFor(name string, scope Scope, policy dsconfig.MergePolicy) dsconfig.FieldMergeMode {
	var overrides map[string]dsconfig.FieldMergeMode
	switch scope {
	case ScopeList:
		overrides = policy.ListFields
	case ScopeDetail:
		overrides = policy.DetailFields
	}
	if raw, ok := overrides[name]; ok {
		if mode := dsconfig.ParseFieldMergeMode(string(raw), ""); mode != "" {
			return mode
		}
	}
	return dsconfig.ParseFieldMergeMode(string(policy.DefaultMode), dsconfig.ModeCoalesce)
}

func definedNonEmpty(v any) bool {
	if v == nil {
		return false
	}
	if s, ok := v.(string); ok && s == "" {
		return false
	}
	return true
}
