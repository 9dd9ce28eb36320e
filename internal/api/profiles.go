package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rohanmehra24/unify-segment/internal/domain"
)

// ProfileReader is the read-only profile/event surface of the store.
type ProfileReader interface {
	GetProfile(ctx context.Context, id string) (*domain.Profile, error)
	EventsForProfile(ctx context.Context, profileID string, limit int, before *domain.EventCursor) ([]domain.Event, error)
	LastEventAt(ctx context.Context, profileID string) (*time.Time, error)
}

type ProfileHandler struct {
	store ProfileReader
}

func NewProfileHandler(store ProfileReader) *ProfileHandler {
	return &ProfileHandler{store: store}
}

type profileResponse struct {
	*domain.Profile
	LastEventAt *time.Time `json:"last_event_at,omitempty"`
}

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	profile, err := h.store.GetProfile(r.Context(), id)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	lastEventAt, err := h.store.LastEventAt(r.Context(), id)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, profileResponse{Profile: profile, LastEventAt: lastEventAt})
}

type profileEventsResponse struct {
	Events     []domain.Event      `json:"events"`
	NextCursor *domain.EventCursor `json:"next_cursor,omitempty"`
}

// Events lists a profile's events newest first. Pass limit plus the
// before_occurred_at/before_id pair from next_cursor to resume.
func (h *ProfileHandler) Events(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}

	var before *domain.EventCursor
	if at := r.URL.Query().Get("before_occurred_at"); at != "" {
		occurredAt, err := time.Parse(time.RFC3339Nano, at)
		if err != nil {
			respondError(w, http.StatusBadRequest, "before_occurred_at must be RFC 3339")
			return
		}
		beforeID := r.URL.Query().Get("before_id")
		if beforeID == "" {
			respondError(w, http.StatusBadRequest, "before_id is required with before_occurred_at")
			return
		}
		before = &domain.EventCursor{OccurredAt: occurredAt, ID: beforeID}
	}

	events, err := h.store.EventsForProfile(r.Context(), id, limit, before)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	resp := profileEventsResponse{Events: events}
	if len(events) == limit {
		last := events[len(events)-1]
		resp.NextCursor = &domain.EventCursor{OccurredAt: last.OccurredAt, ID: last.ID}
	}

	respondJSON(w, http.StatusOK, resp)
}
