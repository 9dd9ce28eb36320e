package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rohanmehra24/unify-segment/internal/domain"
)

// InsertEvent appends one immutable event. There is no update or delete
// path anywhere in this package.
func (t *Tx) InsertEvent(ctx context.Context, ev *domain.Event) error {
	propsJSON, err := ev.Properties.JSON()
	if err != nil {
		return fmt.Errorf("encoding properties: %w", err)
	}

	_, err = t.q.Exec(ctx, `
		INSERT INTO events (id, profile_id, event_type, properties, occurred_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, ev.ID, ev.ProfileID, ev.EventType, propsJSON, ev.OccurredAt, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}
	return nil
}

// LastEventAt returns the newest occurred_at among a profile's events, or
// nil when the profile has none.
func (s *PostgresStore) LastEventAt(ctx context.Context, profileID string) (*time.Time, error) {
	if _, err := uuid.Parse(profileID); err != nil {
		return nil, fmt.Errorf("profile %s: %w", profileID, domain.ErrNotFound)
	}

	var last *time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT MAX(occurred_at) FROM events WHERE profile_id = $1`, profileID,
	).Scan(&last)
	if err != nil {
		return nil, fmt.Errorf("querying last event time: %w", err)
	}
	return last, nil
}

// EventsForProfile lists a profile's events newest first. before resumes a
// previous page; occurred_at ties break on id so the walk is deterministic
// and restartable.
func (s *PostgresStore) EventsForProfile(ctx context.Context, profileID string, limit int, before *domain.EventCursor) ([]domain.Event, error) {
	if _, err := uuid.Parse(profileID); err != nil {
		return nil, fmt.Errorf("profile %s: %w", profileID, domain.ErrNotFound)
	}
	if limit <= 0 {
		limit = 50
	}

	var cursorAt *time.Time
	var cursorID *string
	if before != nil {
		cursorAt = &before.OccurredAt
		cursorID = &before.ID
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, profile_id, event_type, properties, occurred_at, created_at
		FROM events
		WHERE profile_id = $1
		  AND ($2::timestamptz IS NULL OR (occurred_at, id) < ($2, $3::uuid))
		ORDER BY occurred_at DESC, id DESC
		LIMIT $4
	`, profileID, cursorAt, cursorID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var ev domain.Event
		var propsRaw []byte
		if err := rows.Scan(&ev.ID, &ev.ProfileID, &ev.EventType, &propsRaw, &ev.OccurredAt, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		props, err := domain.DecodeTraits(propsRaw)
		if err != nil {
			return nil, fmt.Errorf("decoding stored properties: %w", err)
		}
		ev.Properties = props
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading events: %w", err)
	}

	if events == nil {
		events = []domain.Event{}
	}
	return events, nil
}
