// Package dsconfig manages the live data-source policy: which source backs
// each view and how fields from the two sources are merged.
package dsconfig

import "strings"

// SourceChoice selects which data source(s) back a logical view.
type SourceChoice string

const (
	// SourceContract serves the view from the on-chain contract only.
	SourceContract SourceChoice = "contract"
	// SourceBackend serves the view from the REST backend only.
	SourceBackend SourceChoice = "backend"
	// SourceHybrid queries both sources and reconciles them field by field.
	SourceHybrid SourceChoice = "hybrid"
)

// ParseSourceChoice canonicalises a raw choice value. Unknown or empty input
// returns the fallback.
func ParseSourceChoice(raw string, fallback SourceChoice) SourceChoice {
	switch SourceChoice(strings.ToLower(strings.TrimSpace(raw))) {
	case SourceContract:
		return SourceContract
	case SourceBackend:
		return SourceBackend
	case SourceHybrid:
		return SourceHybrid
	default:
		return fallback
	}
}

// FieldMergeMode governs how a single field is reconciled across sources.
type FieldMergeMode string

const (
	// ModePreferContract uses the contract value unless it is absent or empty.
	ModePreferContract FieldMergeMode = "preferContract"
	// ModePreferBackend uses the backend value unless it is absent or empty.
	ModePreferBackend FieldMergeMode = "preferBackend"
	// ModeCoalesce uses any defined backend value, empty included, with the
	// contract value as the safety net.
	ModeCoalesce FieldMergeMode = "coalesce"
)

// ParseFieldMergeMode canonicalises a raw merge mode. Unknown or empty input
// returns the fallback.
func ParseFieldMergeMode(raw string, fallback FieldMergeMode) FieldMergeMode {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "prefercontract":
		return ModePreferContract
	case "preferbackend":
		return ModePreferBackend
	case "coalesce":
		return ModeCoalesce
	default:
		return fallback
	}
}

// MergePolicy is the declarative per-field reconciliation table. A field
// without an explicit override uses DefaultMode.
type MergePolicy struct {
	DefaultMode  FieldMergeMode            `json:"defaultMode,omitempty"`
	ListFields   map[string]FieldMergeMode `json:"listFields,omitempty"`
	DetailFields map[string]FieldMergeMode `json:"detailFields,omitempty"`
}

// Clone returns a deep copy of the merge policy.
func (p MergePolicy) Clone() MergePolicy {
	out := MergePolicy{DefaultMode: p.DefaultMode, ListFields: nil, DetailFields: nil}
	if p.ListFields != nil {
		out.ListFields = make(map[string]FieldMergeMode, len(p.ListFields))
		for k, v := range p.ListFields {
			out.ListFields[k] = v
		}
	}
	if p.DetailFields != nil {
		out.DetailFields = make(map[string]FieldMergeMode, len(p.DetailFields))
		for k, v := range p.DetailFields {
			out.DetailFields[k] = v
		}
	}
	return out
}

// overlay layers an incoming policy over the current one. Omitted pieces of
// the incoming policy keep their current values.
func (p MergePolicy) overlay(next MergePolicy) MergePolicy {
	out := p.Clone()
	if next.DefaultMode != "" {
		out.DefaultMode = ParseFieldMergeMode(string(next.DefaultMode), p.DefaultMode)
	}
	if next.ListFields != nil {
		out.ListFields = canonicalFieldModes(next.ListFields)
	}
	if next.DetailFields != nil {
		out.DetailFields = canonicalFieldModes(next.DetailFields)
	}
	return out
}

func canonicalFieldModes(raw map[string]FieldMergeMode) map[string]FieldMergeMode {
	out := make(map[string]FieldMergeMode, len(raw))
	for field, mode := range raw {
		parsed := ParseFieldMergeMode(string(mode), "")
		if parsed == "" {
			continue
		}
		out[field] = parsed
	}
	return out
}

// Config is the single process-wide data-source configuration value.
type Config struct {
	ListSource   SourceChoice `json:"listSourceChoice"`
	DetailSource SourceChoice `json:"detailSourceChoice"`
	MergePolicy  MergePolicy  `json:"mergePolicy"`
}

// DefaultConfig returns the compiled-in configuration: both views served from
// the contract, coalesce as the default merge mode.
func DefaultConfig() Config {
	return Config{
		ListSource:   SourceContract,
		DetailSource: SourceContract,
		MergePolicy:  MergePolicy{DefaultMode: ModeCoalesce, ListFields: map[string]FieldMergeMode{}, DetailFields: map[string]FieldMergeMode{}},
	}
}

// Clone returns a deep copy of the configuration value.
func (c Config) Clone() Config {
	out := c
	out.MergePolicy = c.MergePolicy.Clone()
	return out
}

// Partial patches a subset of the configuration; nil fields keep their prior
// value.
type Partial struct {
	ListSource   *SourceChoice `json:"listSourceChoice,omitempty"`
	DetailSource *SourceChoice `json:"detailSourceChoice,omitempty"`
	MergePolicy  *MergePolicy  `json:"mergePolicy,omitempty"`
}

// IsZero reports whether the patch carries no fields.
func (p Partial) IsZero() bool {
	return p.ListSource == nil && p.DetailSource == nil && p.MergePolicy == nil
}

// apply shallow-merges the patch over the configuration. Source choices are
// validated against the current value; the merge policy patch is overlaid
// piecewise.
func (c Config) apply(p Partial) Config {
	out := c.Clone()
	if p.ListSource != nil {
		out.ListSource = ParseSourceChoice(string(*p.ListSource), c.ListSource)
	}
	if p.DetailSource != nil {
		out.DetailSource = ParseSourceChoice(string(*p.DetailSource), c.DetailSource)
	}
	if p.MergePolicy != nil {
		out.MergePolicy = c.MergePolicy.overlay(*p.MergePolicy)
	}
	return out
}

// merge layers patch q over patch p, producing the combined patch.
func mergePartial(p, q Partial) Partial {
	out := p
	if q.ListSource != nil {
		out.ListSource = q.ListSource
	}
	if q.DetailSource != nil {
		out.DetailSource = q.DetailSource
	}
	if q.MergePolicy != nil {
		out.MergePolicy = q.MergePolicy
	}
	return out
}
