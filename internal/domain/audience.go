package domain

import (
	"encoding/json"
	"time"
)

// Audience is a named, rule-defined segment. Definition holds the canonical
// JSON form of the rule (defaults materialized at creation time).
type Audience struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Definition  json.RawMessage `json:"definition"`
	LastBuiltAt *time.Time      `json:"last_built_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// AudienceMember is the profile summary attached to an audience membership
// row, shaped for adapter-layer formatting (JSON list, CSV export).
type AudienceMember struct {
	ProfileID         string    `json:"profile_id"`
	Email             *string   `json:"email,omitempty"`
	UserID            *string   `json:"user_id,omitempty"`
	PrimaryIdentifier string    `json:"primary_identifier"`
	TotalOrders       int       `json:"total_orders"`
	TotalSpend        Cents     `json:"total_spend"`
	AddedAt           time.Time `json:"added_at"`
}
