package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rohanmehra24/unify-segment/internal/domain"
	"github.com/rohanmehra24/unify-segment/internal/unify"
	ws "github.com/rohanmehra24/unify-segment/internal/websocket"
)

// Pipeline is the identify/track surface of unify.Service.
type Pipeline interface {
	Identify(ctx context.Context, in unify.IdentifyInput) (*domain.Profile, error)
	Track(ctx context.Context, in unify.TrackInput) (*domain.Event, *domain.Profile, error)
}

type IngestHandler struct {
	pipeline Pipeline
	hub      *ws.Hub
}

func NewIngestHandler(pipeline Pipeline, hub *ws.Hub) *IngestHandler {
	return &IngestHandler{pipeline: pipeline, hub: hub}
}

type identifyRequest struct {
	Identifiers domain.IdentifierSet `json:"identifiers"`
	Traits      json.RawMessage      `json:"traits,omitempty"`
	ObservedAt  *time.Time           `json:"observed_at,omitempty"`
}

func (h *IngestHandler) Identify(w http.ResponseWriter, r *http.Request) {
	var req identifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	traits, err := domain.DecodeTraits(req.Traits)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	in := unify.IdentifyInput{Identifiers: req.Identifiers, Traits: traits}
	if req.ObservedAt != nil {
		in.ObservedAt = *req.ObservedAt
	}

	profile, err := h.pipeline.Identify(r.Context(), in)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	h.hub.Broadcast(ws.Activity{
		Type:      ws.ActivityProfileIdentified,
		ProfileID: profile.ID,
		Timestamp: time.Now(),
	})

	respondJSON(w, http.StatusOK, profile)
}

type trackRequest struct {
	Identifiers    domain.IdentifierSet `json:"identifiers"`
	EventType      string               `json:"event_type"`
	Properties     json.RawMessage      `json:"properties,omitempty"`
	OccurredAt     *time.Time           `json:"occurred_at,omitempty"`
	AllowAnonymous bool                 `json:"allow_anonymous,omitempty"`
}

type trackResponse struct {
	Event   *domain.Event   `json:"event"`
	Profile *domain.Profile `json:"profile,omitempty"`
}

func (h *IngestHandler) Track(w http.ResponseWriter, r *http.Request) {
	var req trackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	properties, err := domain.DecodeTraits(req.Properties)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	in := unify.TrackInput{
		Identifiers:    req.Identifiers,
		EventType:      req.EventType,
		Properties:     properties,
		AllowAnonymous: req.AllowAnonymous,
	}
	if req.OccurredAt != nil {
		in.OccurredAt = *req.OccurredAt
	}

	event, profile, err := h.pipeline.Track(r.Context(), in)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	activity := ws.Activity{
		Type:      ws.ActivityEventTracked,
		EventType: event.EventType,
		Timestamp: time.Now(),
	}
	if profile != nil {
		activity.ProfileID = profile.ID
	}
	h.hub.Broadcast(activity)

	respondJSON(w, http.StatusCreated, trackResponse{Event: event, Profile: profile})
}
