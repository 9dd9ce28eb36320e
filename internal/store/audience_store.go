package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rohanmehra24/unify-segment/internal/domain"
)

// CreateAudience persists a new audience with its canonical definition JSON.
func (s *PostgresStore) CreateAudience(ctx context.Context, name string, definition json.RawMessage) (*domain.Audience, error) {
	var aud domain.Audience
	err := s.pool.QueryRow(ctx, `
		INSERT INTO audiences (id, name, definition)
		VALUES ($1, $2, $3)
		RETURNING id, name, definition, last_built_at, created_at
	`, uuid.NewString(), name, []byte(definition)).Scan(
		&aud.ID, &aud.Name, &aud.Definition, &aud.LastBuiltAt, &aud.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting audience: %w", err)
	}
	return &aud, nil
}

func (s *PostgresStore) GetAudience(ctx context.Context, id string) (*domain.Audience, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("audience %s: %w", id, domain.ErrNotFound)
	}

	var aud domain.Audience
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, definition, last_built_at, created_at
		FROM audiences WHERE id = $1
	`, id).Scan(&aud.ID, &aud.Name, &aud.Definition, &aud.LastBuiltAt, &aud.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("audience %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("querying audience: %w", err)
	}
	return &aud, nil
}

func (s *PostgresStore) ListAudiences(ctx context.Context) ([]domain.Audience, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, definition, last_built_at, created_at
		FROM audiences
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying audiences: %w", err)
	}
	defer rows.Close()

	var audiences []domain.Audience
	for rows.Next() {
		var aud domain.Audience
		if err := rows.Scan(&aud.ID, &aud.Name, &aud.Definition, &aud.LastBuiltAt, &aud.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning audience: %w", err)
		}
		audiences = append(audiences, aud)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading audiences: %w", err)
	}

	if audiences == nil {
		audiences = []domain.Audience{}
	}
	return audiences, nil
}

// QualifyingProfileIDs computes an audience's member set in one consistent
// read: profiles at or above the spend floor with at least one event inside
// the recency window. Profiles with no events never qualify, whatever their
// spend.
func (s *PostgresStore) QualifyingProfileIDs(ctx context.Context, minSpend domain.Cents, since time.Time) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.id
		FROM profiles p
		WHERE p.total_spend_cents >= $1
		  AND EXISTS (
			SELECT 1 FROM events e
			WHERE e.profile_id = p.id AND e.occurred_at >= $2
		  )
		ORDER BY p.id
	`, int64(minSpend), since)
	if err != nil {
		return nil, fmt.Errorf("querying qualifying profiles: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning profile id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading qualifying profiles: %w", err)
	}
	return ids, nil
}

// ReplaceMembers swaps the audience's membership set in one transaction
// (delete-then-insert) and stamps last_built_at. Concurrent readers see
// either the old set or the new one, never a partial mix.
func (s *PostgresStore) ReplaceMembers(ctx context.Context, audienceID string, profileIDs []string, builtAt time.Time) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %v", domain.ErrStoreUnavailable, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM audience_members WHERE audience_id = $1`, audienceID,
	); err != nil {
		return fmt.Errorf("clearing members: %w", err)
	}

	if len(profileIDs) > 0 {
		batch := &pgx.Batch{}
		for _, profileID := range profileIDs {
			batch.Queue(`
				INSERT INTO audience_members (audience_id, profile_id, added_at)
				VALUES ($1, $2, $3)
			`, audienceID, profileID, builtAt)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("inserting members: %w", err)
		}
	}

	tag, err := tx.Exec(ctx,
		`UPDATE audiences SET last_built_at = $2 WHERE id = $1`, audienceID, builtAt,
	)
	if err != nil {
		return fmt.Errorf("stamping last_built_at: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("audience %s: %w", audienceID, domain.ErrNotFound)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing member swap: %w", err)
	}
	return nil
}

// ListMembers returns the audience's current members with profile summaries,
// ordered by profile id for a stable export.
func (s *PostgresStore) ListMembers(ctx context.Context, audienceID string) ([]domain.AudienceMember, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.id, p.email, p.user_id, p.primary_identifier,
			   p.total_orders, p.total_spend_cents, m.added_at
		FROM audience_members m
		JOIN profiles p ON p.id = m.profile_id
		WHERE m.audience_id = $1
		ORDER BY p.id
	`, audienceID)
	if err != nil {
		return nil, fmt.Errorf("querying members: %w", err)
	}
	defer rows.Close()

	var members []domain.AudienceMember
	for rows.Next() {
		var m domain.AudienceMember
		var spendCents int64
		if err := rows.Scan(&m.ProfileID, &m.Email, &m.UserID, &m.PrimaryIdentifier,
			&m.TotalOrders, &spendCents, &m.AddedAt); err != nil {
			return nil, fmt.Errorf("scanning member: %w", err)
		}
		m.TotalSpend = domain.Cents(spendCents)
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading members: %w", err)
	}

	if members == nil {
		members = []domain.AudienceMember{}
	}
	return members, nil
}
