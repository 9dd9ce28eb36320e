// Package unify implements the identify/track pipeline: deterministic
// identity resolution onto profiles, event appends, and incremental
// aggregate maintenance, all inside a single store transaction per call.
package unify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rohanmehra24/unify-segment/internal/domain"
)

// Tx is the transactional store surface the resolver operates on. Lookup
// methods return (nil, nil) when no row matches; mutation errors wrap the
// domain sentinels.
type Tx interface {
	ProfileByIdentifier(ctx context.Context, kind domain.IdentifierKind, value string) (*domain.Profile, error)
	InsertProfile(ctx context.Context, p *domain.Profile) error
	UpdateProfile(ctx context.Context, id string, patch domain.ProfilePatch) (*domain.Profile, error)
	InsertEvent(ctx context.Context, ev *domain.Event) error
}

// Store runs a function inside one transaction. The whole resolve → append →
// aggregate sequence commits or rolls back as a unit.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Resolver maps an inbound identifier set to exactly one profile, creating
// one when nothing matches. Lookup precedence is fixed:
// user_id > email > anonymous_id.
type Resolver struct {
	logger *slog.Logger
	newID  func() string
}

// NewResolver creates a resolver. newID generates profile ids.
func NewResolver(logger *slog.Logger, newID func() string) *Resolver {
	return &Resolver{logger: logger, newID: newID}
}

// lookupOrder is the exact identifier precedence for resolution and for
// primary_identifier selection at creation.
var lookupOrder = []domain.IdentifierKind{
	domain.IdentifierUserID,
	domain.IdentifierEmail,
	domain.IdentifierAnonymousID,
}

// Resolve locates or creates the profile for ids, merging traits and
// advancing last_seen_at to seenAt. It returns the up-to-date profile and
// whether it was created. A duplicate-create race surfaces as
// ErrUniquenessConflict, which aborts the enclosing transaction; the caller
// re-runs the whole operation, and the retry finds the winner via lookup.
func (r *Resolver) Resolve(ctx context.Context, tx Tx, ids domain.IdentifierSet, traits domain.Traits, seenAt time.Time) (*domain.Profile, bool, error) {
	if ids.Empty() {
		return nil, false, domain.ErrMissingIdentifier
	}

	matched, err := r.lookup(ctx, tx, ids)
	if err != nil {
		return nil, false, err
	}

	if matched == nil {
		profile, err := r.create(ctx, tx, ids, traits, seenAt)
		if err != nil {
			return nil, false, err
		}
		return profile, true, nil
	}

	patch := domain.ProfilePatch{Traits: traits, SeenAt: seenAt}
	if patch.FillEmail, err = r.fillValue(ctx, tx, matched, domain.IdentifierEmail, ids.Email); err != nil {
		return nil, false, err
	}
	if patch.FillUserID, err = r.fillValue(ctx, tx, matched, domain.IdentifierUserID, ids.UserID); err != nil {
		return nil, false, err
	}
	if patch.FillAnonymousID, err = r.fillValue(ctx, tx, matched, domain.IdentifierAnonymousID, ids.AnonymousID); err != nil {
		return nil, false, err
	}

	updated, err := tx.UpdateProfile(ctx, matched.ID, patch)
	if err != nil {
		return nil, false, err
	}
	return updated, false, nil
}

func (r *Resolver) lookup(ctx context.Context, tx Tx, ids domain.IdentifierSet) (*domain.Profile, error) {
	values := map[domain.IdentifierKind]string{
		domain.IdentifierUserID:      ids.UserID,
		domain.IdentifierEmail:       ids.Email,
		domain.IdentifierAnonymousID: ids.AnonymousID,
	}
	for _, kind := range lookupOrder {
		value := values[kind]
		if value == "" {
			continue
		}
		profile, err := tx.ProfileByIdentifier(ctx, kind, value)
		if err != nil {
			return nil, err
		}
		if profile != nil {
			return profile, nil
		}
	}
	return nil, nil
}

func (r *Resolver) create(ctx context.Context, tx Tx, ids domain.IdentifierSet, traits domain.Traits, seenAt time.Time) (*domain.Profile, error) {
	_, primary, _ := ids.Primary()

	profile := &domain.Profile{
		ID:                r.newID(),
		PrimaryIdentifier: primary,
		Traits:            traits,
		FirstSeenAt:       seenAt,
		LastSeenAt:        seenAt,
	}
	if ids.Email != "" {
		profile.Email = &ids.Email
	}
	if ids.UserID != "" {
		profile.UserID = &ids.UserID
	}
	if ids.AnonymousID != "" {
		profile.AnonymousID = &ids.AnonymousID
	}
	if profile.Traits == nil {
		profile.Traits = domain.Traits{}
	}

	if err := tx.InsertProfile(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// fillValue decides whether a newly supplied identifier may be backfilled
// onto the matched profile. Existing non-null values are never overwritten,
// and a value already owned by a different profile is skipped and flagged:
// colliding profiles are never merged. A failed ownership pre-check aborts
// the transaction rather than dropping the fill.
func (r *Resolver) fillValue(ctx context.Context, tx Tx, matched *domain.Profile, kind domain.IdentifierKind, value string) (*string, error) {
	if value == "" || matched.Identifier(kind) != nil {
		return nil, nil
	}

	owner, err := tx.ProfileByIdentifier(ctx, kind, value)
	if err != nil {
		return nil, fmt.Errorf("backfill pre-check for %s: %w", kind, err)
	}
	if owner != nil && owner.ID != matched.ID {
		r.logger.Warn("identifier collision, keeping profiles separate",
			"kind", string(kind),
			"matched_profile_id", matched.ID,
			"owner_profile_id", owner.ID,
		)
		return nil, nil
	}
	return &value, nil
}
