// Package schema defines the canonical show record shared by every data source.
package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// ZeroAddress is the placeholder organizer address used when no source supplies one.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// UntitledName marks a show whose sources never supplied a name.
const UntitledName = "(untitled)"

// PlaceholderLocation marks a show whose sources never supplied a location.
const PlaceholderLocation = "-"

// Show is the canonical, source-agnostic representation of a show.
//
// Records produced by the contract client and records normalized from backend
// payloads both carry this shape, which is what makes field-level merging
// possible. Monetary and ticket counters use arbitrary-precision decimals in
// the smallest currency unit.
type Show struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Location    string          `json:"location"`
	StartTime   time.Time       `json:"startTime"`
	TicketPrice decimal.Decimal `json:"ticketPrice"`
	MaxTickets  decimal.Decimal `json:"maxTickets"`
	SoldTickets decimal.Decimal `json:"soldTickets"`
	Organizer   string          `json:"organizer"`
	IsActive    bool            `json:"isActive"`
	Status      int             `json:"status"`
	MetadataURI string          `json:"metadataURI,omitempty"`

	// Raw retains the original source payload for diagnostics only. It must
	// never participate in equality or merge decisions.
	Raw map[string]any `json:"-"`
}

// Clone returns a copy of the show record. The diagnostic payload reference is
// shared, not copied; it carries no ownership semantics.
func (s *Show) Clone() *Show {
	if s == nil {
		return nil
	}
	out := *s
	return &out
}
