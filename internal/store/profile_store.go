package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rohanmehra24/unify-segment/internal/domain"
)

const profileColumns = `id, email, user_id, anonymous_id, primary_identifier,
	traits, total_orders, total_spend_cents, first_seen_at, last_seen_at`

// identifierColumn whitelists the lookup columns; kind never reaches the SQL
// text unchecked.
func identifierColumn(kind domain.IdentifierKind) (string, error) {
	switch kind {
	case domain.IdentifierEmail:
		return "email", nil
	case domain.IdentifierUserID:
		return "user_id", nil
	case domain.IdentifierAnonymousID:
		return "anonymous_id", nil
	}
	return "", fmt.Errorf("unknown identifier kind %q", kind)
}

// ProfileByIdentifier looks a profile up by one external identifier.
// Returns (nil, nil) when nothing matches. anonymous_id is not unique;
// the earliest profile referencing it wins.
func (t *Tx) ProfileByIdentifier(ctx context.Context, kind domain.IdentifierKind, value string) (*domain.Profile, error) {
	return profileByIdentifier(ctx, t.q, kind, value)
}

func profileByIdentifier(ctx context.Context, q querier, kind domain.IdentifierKind, value string) (*domain.Profile, error) {
	column, err := identifierColumn(kind)
	if err != nil {
		return nil, err
	}

	row := q.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM profiles
		WHERE %s = $1
		ORDER BY first_seen_at, id
		LIMIT 1
	`, profileColumns, column), value)

	profile, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying profile by %s: %w", column, err)
	}
	return profile, nil
}

// InsertProfile creates the profile row. A duplicate email/user_id surfaces
// as ErrUniquenessConflict for the pipeline's retry-as-lookup path.
func (t *Tx) InsertProfile(ctx context.Context, p *domain.Profile) error {
	traitsJSON, err := p.Traits.JSON()
	if err != nil {
		return fmt.Errorf("encoding traits: %w", err)
	}

	_, err = t.q.Exec(ctx, `
		INSERT INTO profiles (id, email, user_id, anonymous_id, primary_identifier,
			traits, first_seen_at, last_seen_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, p.ID, p.Email, p.UserID, p.AnonymousID, p.PrimaryIdentifier,
		traitsJSON, p.FirstSeenAt, p.LastSeenAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("inserting profile: %w", domain.ErrUniquenessConflict)
		}
		return fmt.Errorf("inserting profile: %w", err)
	}
	return nil
}

// UpdateProfile applies the patch as one UPDATE, so concurrent aggregate
// writes serialize on the row: identifier fills only land on null columns,
// traits merge shallowly, last_seen_at only moves forward, and order/spend
// deltas add in place.
func (t *Tx) UpdateProfile(ctx context.Context, id string, patch domain.ProfilePatch) (*domain.Profile, error) {
	traitsJSON, err := patch.Traits.JSON()
	if err != nil {
		return nil, fmt.Errorf("encoding traits: %w", err)
	}

	var seenAt *time.Time
	if !patch.SeenAt.IsZero() {
		seenAt = &patch.SeenAt
	}

	row := t.q.QueryRow(ctx, fmt.Sprintf(`
		UPDATE profiles SET
			email = COALESCE(email, $2),
			user_id = COALESCE(user_id, $3),
			anonymous_id = COALESCE(anonymous_id, $4),
			traits = traits || $5::jsonb,
			total_orders = total_orders + $6,
			total_spend_cents = total_spend_cents + $7,
			last_seen_at = GREATEST(last_seen_at, COALESCE($8::timestamptz, last_seen_at))
		WHERE id = $1
		RETURNING %s
	`, profileColumns), id, patch.FillEmail, patch.FillUserID, patch.FillAnonymousID,
		traitsJSON, patch.AddOrders, int64(patch.AddSpend), seenAt)

	profile, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("updating profile %s: %w", id, domain.ErrNotFound)
		}
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("updating profile %s: %w", id, domain.ErrUniquenessConflict)
		}
		return nil, fmt.Errorf("updating profile %s: %w", id, err)
	}
	return profile, nil
}

// GetProfile fetches one profile by internal id.
func (s *PostgresStore) GetProfile(ctx context.Context, id string) (*domain.Profile, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("profile %s: %w", id, domain.ErrNotFound)
	}

	row := s.pool.QueryRow(ctx, fmt.Sprintf(
		`SELECT %s FROM profiles WHERE id = $1`, profileColumns), id)

	profile, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("profile %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("querying profile: %w", err)
	}
	return profile, nil
}

func scanProfile(row pgx.Row) (*domain.Profile, error) {
	var p domain.Profile
	var traitsRaw []byte
	var spendCents int64

	err := row.Scan(&p.ID, &p.Email, &p.UserID, &p.AnonymousID, &p.PrimaryIdentifier,
		&traitsRaw, &p.TotalOrders, &spendCents, &p.FirstSeenAt, &p.LastSeenAt)
	if err != nil {
		return nil, err
	}

	traits, err := domain.DecodeTraits(traitsRaw)
	if err != nil {
		return nil, fmt.Errorf("decoding stored traits: %w", err)
	}
	p.Traits = traits
	p.TotalSpend = domain.Cents(spendCents)
	return &p, nil
}
