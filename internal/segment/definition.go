// Package segment implements rule-defined audiences: declarative
// definitions, full membership rebuilds with an atomic swap, and the Redis
// queue that feeds asynchronous rebuilds.
package segment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rohanmehra24/unify-segment/internal/domain"
)

// RecencySentinelDays stands in for "no recency requirement": a missing
// days_since_last_event becomes a 100-year window, so evaluation always runs
// the same spend-floor-plus-recency predicate with no special casing.
const RecencySentinelDays = 36500

// Definition is the audience rule, stored as data. A profile qualifies iff
// total_spend >= MinTotalSpend and it has at least one event newer than
// DaysSinceLastEvent days. Zero-event profiles never qualify.
type Definition struct {
	MinTotalSpend      domain.Cents `json:"min_total_spend"`
	DaysSinceLastEvent int          `json:"days_since_last_event"`
}

type rawDefinition struct {
	MinTotalSpend      *domain.Cents `json:"min_total_spend"`
	DaysSinceLastEvent *int          `json:"days_since_last_event"`
}

// ParseDefinition decodes and validates a definition payload. Missing fields
// take the documented defaults (spend floor 0, recency sentinel); unknown
// fields, non-object payloads, and negative values are rejected with
// ErrValidation. A nil payload yields the all-defaults rule.
func ParseDefinition(raw json.RawMessage) (Definition, error) {
	def := Definition{MinTotalSpend: 0, DaysSinceLastEvent: RecencySentinelDays}
	if len(raw) == 0 {
		return def, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	dec.DisallowUnknownFields()

	var parsed rawDefinition
	if err := dec.Decode(&parsed); err != nil {
		return Definition{}, fmt.Errorf("%w: malformed audience definition: %v", domain.ErrValidation, err)
	}
	if dec.More() {
		return Definition{}, fmt.Errorf("%w: trailing data after audience definition", domain.ErrValidation)
	}

	if parsed.MinTotalSpend != nil {
		if *parsed.MinTotalSpend < 0 {
			return Definition{}, fmt.Errorf("%w: min_total_spend must be >= 0", domain.ErrValidation)
		}
		def.MinTotalSpend = *parsed.MinTotalSpend
	}
	if parsed.DaysSinceLastEvent != nil {
		if *parsed.DaysSinceLastEvent < 0 {
			return Definition{}, fmt.Errorf("%w: days_since_last_event must be >= 0", domain.ErrValidation)
		}
		def.DaysSinceLastEvent = *parsed.DaysSinceLastEvent
	}
	return def, nil
}

// JSON renders the canonical stored form with defaults materialized.
func (d Definition) JSON() json.RawMessage {
	data, _ := json.Marshal(d)
	return data
}

// WindowStart returns the earliest occurred_at that still satisfies the
// recency predicate, evaluated against now.
func (d Definition) WindowStart(now time.Time) time.Time {
	return now.AddDate(0, 0, -d.DaysSinceLastEvent)
}
