// Package normalize converts loosely-shaped backend payloads into canonical
// show records. It tolerates schema drift across backend deployments: every
// field resolves through an ordered alias list and degrades to a deterministic
// default instead of failing.
package normalize

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coalesced/showgate/internal/schema"
)

// A Normalizer converts backend payloads into canonical records. The zero
// value is ready to use; hooks attach per instance so callers own their
// diagnostics wiring.
type Normalizer struct {
	// TimeFallback, when set, is invoked with the raw value whenever a
	// timestamp is present but unparseable and degrades to the current
	// instant. An absent timestamp does not fire it.
	TimeFallback func(raw any)
}

// fieldKeys lists the payload keys tried, in order, for each canonical field.
// A dotted key walks one level into a nested object.
var fieldKeys = map[string][]string{
	"id":          {"id"},
	"name":        {"name"},
	"description": {"description"},
	"location":    {"location", "venue"},
	"startTime":   {"startTime", "eventTime"},
	"ticketPrice": {"ticketPrice", "price"},
	"maxTickets":  {"maxTickets", "totalTickets"},
	"soldTickets": {"soldTickets", "ticketsSold"},
	"organizer":   {"organizer", "owner"},
	"isActive":    {"isActive"},
	"status":      {"status"},
	"metadataURI": {"metadataURI", "metadata_uri", "ipfs", "meta.uri"},
}

// Normalize converts an arbitrary backend payload into the canonical record
// shape with no diagnostics hook attached.
func Normalize(payload any) (*schema.Show, bool) {
	return Normalizer{}.Record(payload)
}

// Record converts an arbitrary backend payload into the canonical record
// shape. It reports false only when the payload is not an object; malformed
// field values degrade to defaults and never fail.
func (n Normalizer) Record(payload any) (*schema.Show, bool) {
	obj, ok := payload.(map[string]any)
	if !ok || obj == nil {
		return nil, false
	}

	isActive := true
	if v, ok := obj["isActive"]; ok {
		isActive = toBool(v)
	}
	status := 1
	if !isActive {
		status = 0
	}
	if v, ok := obj["status"]; ok && v != nil {
		status = toStatus(v)
	}
	startTime := n.toTime(lookup(obj, "startTime"))

	show := &schema.Show{
		ID:          toID(lookup(obj, "id")),
		Name:        toString(lookup(obj, "name"), schema.UntitledName),
		Description: toString(lookup(obj, "description"), ""),
		Location:    toString(lookup(obj, "location"), schema.PlaceholderLocation),
		StartTime:   startTime,
		TicketPrice: toAmount(lookup(obj, "ticketPrice")),
		MaxTickets:  toAmount(lookup(obj, "maxTickets")),
		SoldTickets: toAmount(lookup(obj, "soldTickets")),
		Organizer:   toString(lookup(obj, "organizer"), schema.ZeroAddress),
		IsActive:    isActive,
		Status:      status,
		MetadataURI: toString(lookup(obj, "metadataURI"), ""),
		Raw:         obj,
	}
	return show, true
}

// lookup resolves a canonical field against the alias table, returning the
// first truthy candidate: defined, non-empty, non-zero, not false.
func lookup(obj map[string]any, field string) any {
	for _, key := range fieldKeys[field] {
		var v any
		var ok bool
		if prefix, rest, nested := strings.Cut(key, "."); nested {
			if inner, innerOK := obj[prefix].(map[string]any); innerOK {
				v, ok = inner[rest]
			}
		} else {
			v, ok = obj[key]
		}
		if !ok || v == nil {
			continue
		}
		if truthy(v) {
			return v
		}
	}
	return nil
}

func truthy(v any) bool {
	switch t := v.(type) {
	case string:
		return t != ""
	case bool:
		return t
	case float64:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	default:
		return true
	}
}

func toString(v any, fallback string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return fallback
}

// toID renders the record identifier as a string, matching the contract's
// integer ids.
func toID(v any) string {
	switch t := v.(type) {
	case string:
		if t != "" {
			return t
		}
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	}
	return "0"
}

// toAmount parses ticket-counter and price values into arbitrary-precision
// integers (smallest currency unit). Non-parseable input yields zero.
func toAmount(v any) decimal.Decimal {
	switch t := v.(type) {
	case decimal.Decimal:
		return t.Floor()
	case float64:
		return decimal.NewFromFloat(math.Floor(t))
	case int:
		return decimal.NewFromInt(int64(t))
	case int64:
		return decimal.NewFromInt(t)
	case string:
		trimmed := strings.TrimSpace(t)
		if trimmed == "" {
			return decimal.Zero
		}
		d, err := decimal.NewFromString(trimmed)
		if err != nil {
			return decimal.Zero
		}
		return d.Floor()
	default:
		return decimal.Zero
	}
}

func digitsOnly(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// toTime parses instants, unix seconds (number or digit string) and ISO
// strings. Unparseable input degrades to the current time.
func (n Normalizer) toTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case float64:
		return time.Unix(int64(t), 0)
	case int:
		return time.Unix(int64(t), 0)
	case int64:
		return time.Unix(t, 0)
	case string:
		trimmed := strings.TrimSpace(t)
		if digitsOnly(trimmed) {
			if secs, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
				return time.Unix(secs, 0)
			}
		}
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if parsed, err := time.Parse(layout, trimmed); err == nil {
				return parsed
			}
		}
	}
	if v != nil && n.TimeFallback != nil {
		n.TimeFallback(v)
	}
	return time.Now()
}

func toBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t == 1
	case int:
		return t == 1
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "1", "true":
			return true
		case "0", "false":
			return false
		}
		return true
	default:
		return true
	}
}

func toStatus(v any) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case int:
		return t
	case int64:
		return int(t)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return n
		}
	}
	return 0
}
