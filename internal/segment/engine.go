package segment

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rohanmehra24/unify-segment/internal/domain"
)

// Store is the persistence surface the engine reads and swaps membership
// through. QualifyingProfileIDs must be one consistent read;
// ReplaceMembers must swap the set atomically.
type Store interface {
	CreateAudience(ctx context.Context, name string, definition json.RawMessage) (*domain.Audience, error)
	GetAudience(ctx context.Context, id string) (*domain.Audience, error)
	ListAudiences(ctx context.Context) ([]domain.Audience, error)
	QualifyingProfileIDs(ctx context.Context, minSpend domain.Cents, since time.Time) ([]string, error)
	ReplaceMembers(ctx context.Context, audienceID string, profileIDs []string, builtAt time.Time) error
	ListMembers(ctx context.Context, audienceID string) ([]domain.AudienceMember, error)
}

// Engine evaluates audience definitions and owns membership rebuilds.
type Engine struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

func NewEngine(store Store, logger *slog.Logger) *Engine {
	return &Engine{store: store, logger: logger, now: time.Now}
}

// Create validates the definition, materializes its defaults, and persists
// the audience.
func (e *Engine) Create(ctx context.Context, name string, rawDefinition json.RawMessage) (*domain.Audience, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("creating audience: %w: name is required", domain.ErrValidation)
	}

	def, err := ParseDefinition(rawDefinition)
	if err != nil {
		return nil, fmt.Errorf("creating audience: %w", err)
	}

	aud, err := e.store.CreateAudience(ctx, name, def.JSON())
	if err != nil {
		return nil, fmt.Errorf("creating audience: %w", err)
	}

	e.logger.Info("audience created",
		"audience_id", aud.ID,
		"name", aud.Name,
		"min_total_spend", def.MinTotalSpend.String(),
		"days_since_last_event", def.DaysSinceLastEvent,
	)
	return aud, nil
}

func (e *Engine) Get(ctx context.Context, id string) (*domain.Audience, error) {
	return e.store.GetAudience(ctx, id)
}

func (e *Engine) List(ctx context.Context) ([]domain.Audience, error) {
	return e.store.ListAudiences(ctx)
}

// Rebuild recomputes the audience's full member set from the current
// profile and event data and replaces the previous membership atomically.
// No lock is held over the computation: ingestion proceeding during a
// rebuild may or may not land in this build, but the swap itself is
// all-or-nothing. Rebuilding twice over unchanged data yields the same set.
// Returns the member count.
func (e *Engine) Rebuild(ctx context.Context, audienceID string) (int, error) {
	aud, err := e.store.GetAudience(ctx, audienceID)
	if err != nil {
		return 0, fmt.Errorf("rebuilding audience: %w", err)
	}

	def, err := ParseDefinition(aud.Definition)
	if err != nil {
		return 0, fmt.Errorf("rebuilding audience %s: stored definition: %w", aud.ID, err)
	}

	builtAt := e.now()
	since := def.WindowStart(builtAt)

	memberIDs, err := e.store.QualifyingProfileIDs(ctx, def.MinTotalSpend, since)
	if err != nil {
		return 0, fmt.Errorf("rebuilding audience %s: %w", aud.ID, err)
	}

	if err := e.store.ReplaceMembers(ctx, aud.ID, memberIDs, builtAt); err != nil {
		return 0, fmt.Errorf("rebuilding audience %s: %w", aud.ID, err)
	}

	e.logger.Info("audience rebuilt",
		"audience_id", aud.ID,
		"name", aud.Name,
		"member_count", len(memberIDs),
	)
	return len(memberIDs), nil
}

// Members lists the audience's current membership. Unknown audiences
// surface ErrNotFound rather than an empty list.
func (e *Engine) Members(ctx context.Context, audienceID string) ([]domain.AudienceMember, error) {
	if _, err := e.store.GetAudience(ctx, audienceID); err != nil {
		return nil, fmt.Errorf("listing members: %w", err)
	}

	members, err := e.store.ListMembers(ctx, audienceID)
	if err != nil {
		return nil, fmt.Errorf("listing members: %w", err)
	}
	return members, nil
}
