package domain

import (
	"time"
)

// IdentifierKind names the external identifier columns a profile can be
// looked up by.
type IdentifierKind string

const (
	IdentifierUserID      IdentifierKind = "user_id"
	IdentifierEmail       IdentifierKind = "email"
	IdentifierAnonymousID IdentifierKind = "anonymous_id"
)

// IdentifierSet carries the candidate identifiers of an inbound identify or
// track call. Empty strings mean "not supplied".
type IdentifierSet struct {
	Email       string `json:"email,omitempty"`
	UserID      string `json:"user_id,omitempty"`
	AnonymousID string `json:"anonymous_id,omitempty"`
}

// Empty reports whether no identifier at all was supplied.
func (s IdentifierSet) Empty() bool {
	return s.Email == "" && s.UserID == "" && s.AnonymousID == ""
}

// Primary returns the first non-empty identifier in precedence order
// user_id > email > anonymous_id. ok is false when the set is empty.
func (s IdentifierSet) Primary() (kind IdentifierKind, value string, ok bool) {
	switch {
	case s.UserID != "":
		return IdentifierUserID, s.UserID, true
	case s.Email != "":
		return IdentifierEmail, s.Email, true
	case s.AnonymousID != "":
		return IdentifierAnonymousID, s.AnonymousID, true
	}
	return "", "", false
}

// Profile is the unified customer record. email and user_id are unique when
// present; anonymous_id is not. primary_identifier is fixed at creation.
type Profile struct {
	ID                string     `json:"id"`
	Email             *string    `json:"email,omitempty"`
	UserID            *string    `json:"user_id,omitempty"`
	AnonymousID       *string    `json:"anonymous_id,omitempty"`
	PrimaryIdentifier string     `json:"primary_identifier"`
	Traits            Traits     `json:"traits"`
	TotalOrders       int        `json:"total_orders"`
	TotalSpend        Cents      `json:"total_spend"`
	FirstSeenAt       time.Time  `json:"first_seen_at"`
	LastSeenAt        time.Time  `json:"last_seen_at"`
}

// Identifier returns the profile's value for the given kind, or nil.
func (p *Profile) Identifier(kind IdentifierKind) *string {
	switch kind {
	case IdentifierUserID:
		return p.UserID
	case IdentifierEmail:
		return p.Email
	case IdentifierAnonymousID:
		return p.AnonymousID
	}
	return nil
}

// ProfilePatch describes an incremental update applied to one profile row.
// Identifier fills only take effect where the current value is null; existing
// non-null identifiers are never overwritten. Traits merge shallowly. SeenAt
// advances last_seen_at monotonically (GREATEST of current and new).
type ProfilePatch struct {
	FillEmail       *string
	FillUserID      *string
	FillAnonymousID *string
	Traits          Traits
	SeenAt          time.Time
	AddOrders       int
	AddSpend        Cents
}
