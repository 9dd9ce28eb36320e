package unify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rohanmehra24/unify-segment/internal/domain"
	"github.com/rohanmehra24/unify-segment/internal/metrics"
)

// maxResolveAttempts bounds the conflict-retry loop. A duplicate-create race
// normally recovers on the second attempt (the retry finds the winner via
// lookup); anything beyond that is surfaced to the caller.
const maxResolveAttempts = 3

// Service is the entry point for identify and track calls.
type Service struct {
	store   Store
	metrics *metrics.Metrics
	logger  *slog.Logger

	resolver *Resolver
	now      func() time.Time
}

// NewService wires the pipeline over a transactional store.
func NewService(store Store, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		metrics:  m,
		logger:   logger,
		resolver: NewResolver(logger, uuid.NewString),
		now:      time.Now,
	}
}

// IdentifyInput is a trait-update request. ObservedAt defaults to now.
type IdentifyInput struct {
	Identifiers domain.IdentifierSet
	Traits      domain.Traits
	ObservedAt  time.Time
}

// TrackInput is an event-tracking request. OccurredAt defaults to ingestion
// time. AllowAnonymous permits appending the event without a profile when no
// identifier was supplied.
type TrackInput struct {
	Identifiers    domain.IdentifierSet
	EventType      string
	Properties     domain.Properties
	OccurredAt     time.Time
	AllowAnonymous bool
}

// Identify resolves the identifiers onto one profile, merging traits and
// advancing last_seen_at. A fully anonymous trait update is rejected with
// ErrMissingIdentifier.
func (s *Service) Identify(ctx context.Context, in IdentifyInput) (*domain.Profile, error) {
	if in.Identifiers.Empty() {
		return nil, fmt.Errorf("identify: %w", domain.ErrMissingIdentifier)
	}

	seenAt := in.ObservedAt
	if seenAt.IsZero() {
		seenAt = s.now()
	}

	var profile *domain.Profile
	err := s.withConflictRetry(ctx, func(tx Tx) error {
		resolved, created, err := s.resolver.Resolve(ctx, tx, in.Identifiers, in.Traits, seenAt)
		if err != nil {
			return err
		}
		if created {
			s.metrics.ProfilesCreated.Inc()
		}
		profile = resolved
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("identify: %w", err)
	}
	return profile, nil
}

// Track appends an event and updates the matched profile's aggregates in the
// same transaction. With AllowAnonymous set and no identifier supplied, the
// event is appended without a profile and no aggregates are touched.
func (s *Service) Track(ctx context.Context, in TrackInput) (*domain.Event, *domain.Profile, error) {
	if strings.TrimSpace(in.EventType) == "" {
		return nil, nil, fmt.Errorf("track: %w: event_type is required", domain.ErrValidation)
	}
	if in.Identifiers.Empty() && !in.AllowAnonymous {
		return nil, nil, fmt.Errorf("track: %w", domain.ErrMissingIdentifier)
	}

	ingestedAt := s.now()
	occurredAt := in.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = ingestedAt
	}

	properties := in.Properties
	if properties == nil {
		properties = domain.Properties{}
	}

	event := &domain.Event{
		ID:         uuid.NewString(),
		EventType:  in.EventType,
		Properties: properties,
		OccurredAt: occurredAt,
		CreatedAt:  ingestedAt,
	}

	var profile *domain.Profile
	err := s.withConflictRetry(ctx, func(tx Tx) error {
		profile = nil

		if !in.Identifiers.Empty() {
			resolved, created, err := s.resolver.Resolve(ctx, tx, in.Identifiers, nil, occurredAt)
			if err != nil {
				return err
			}
			if created {
				s.metrics.ProfilesCreated.Inc()
			}
			profile = resolved
			event.ProfileID = &resolved.ID
		}

		if err := tx.InsertEvent(ctx, event); err != nil {
			return err
		}

		if profile == nil {
			return nil
		}

		if amount, ok := purchaseAmount(event.EventType, event.Properties); ok {
			updated, err := tx.UpdateProfile(ctx, profile.ID, domain.ProfilePatch{
				AddOrders: 1,
				AddSpend:  amount,
				SeenAt:    occurredAt,
			})
			if err != nil {
				return err
			}
			profile = updated
			s.metrics.PurchasesApplied.Inc()
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("track: %w", err)
	}

	s.metrics.EventsIngested.Inc()
	return event, profile, nil
}

// withConflictRetry runs fn in its own transaction, re-running the whole
// operation when a uniqueness conflict aborts it. Retried resolutions find
// the racing winner via lookup, so the retry is transparent on success.
func (s *Service) withConflictRetry(ctx context.Context, fn func(tx Tx) error) error {
	var lastErr error
	for attempt := 1; attempt <= maxResolveAttempts; attempt++ {
		lastErr = s.store.InTx(ctx, fn)
		if lastErr == nil {
			return nil
		}
		if !errors.Is(lastErr, domain.ErrUniquenessConflict) {
			return lastErr
		}

		s.metrics.ConflictRetries.Inc()
		s.logger.Info("uniqueness conflict, re-resolving as lookup", "attempt", attempt)
	}
	return lastErr
}

// purchaseAmount reports whether the event credits the purchase aggregates,
// and with how much. The event type matches "purchase" case-insensitively
// and the amount property must be a positive number; anything else makes the
// event a plain non-purchase for aggregate purposes.
func purchaseAmount(eventType string, props domain.Properties) (domain.Cents, bool) {
	if !strings.EqualFold(eventType, domain.PurchaseEventType) {
		return 0, false
	}

	raw, ok := props["amount"]
	if !ok {
		return 0, false
	}

	var amount domain.Cents
	var err error
	switch v := raw.(type) {
	case json.Number:
		amount, err = domain.ParseCents(v.String())
	case float64:
		amount, err = domain.ParseCents(strconv.FormatFloat(v, 'f', -1, 64))
	default:
		return 0, false
	}
	if err != nil || amount <= 0 {
		return 0, false
	}
	return amount, true
}
