package api

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rohanmehra24/unify-segment/internal/domain"
)

// AudienceService is the audience surface of segment.Engine.
type AudienceService interface {
	Create(ctx context.Context, name string, definition json.RawMessage) (*domain.Audience, error)
	Get(ctx context.Context, id string) (*domain.Audience, error)
	List(ctx context.Context) ([]domain.Audience, error)
	Rebuild(ctx context.Context, audienceID string) (int, error)
	Members(ctx context.Context, audienceID string) ([]domain.AudienceMember, error)
}

// RebuildEnqueuer queues an asynchronous rebuild.
type RebuildEnqueuer interface {
	Enqueue(ctx context.Context, audienceID string) error
}

type AudienceHandler struct {
	engine AudienceService
	queue  RebuildEnqueuer
	logger *slog.Logger
}

func NewAudienceHandler(engine AudienceService, queue RebuildEnqueuer, logger *slog.Logger) *AudienceHandler {
	return &AudienceHandler{engine: engine, queue: queue, logger: logger}
}

type createAudienceRequest struct {
	Name       string          `json:"name"`
	Definition json.RawMessage `json:"definition,omitempty"`
}

func (h *AudienceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAudienceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	aud, err := h.engine.Create(r.Context(), req.Name, req.Definition)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, aud)
}

func (h *AudienceHandler) List(w http.ResponseWriter, r *http.Request) {
	audiences, err := h.engine.List(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, audiences)
}

func (h *AudienceHandler) Get(w http.ResponseWriter, r *http.Request) {
	aud, err := h.engine.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, aud)
}

type rebuildResponse struct {
	AudienceID  string `json:"audience_id"`
	MemberCount int    `json:"member_count"`
}

// Rebuild recomputes membership synchronously, or queues the rebuild when
// called with ?async=true.
func (h *AudienceHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if r.URL.Query().Get("async") == "true" {
		// Verify the audience exists before queuing so an unknown id still 404s.
		if _, err := h.engine.Get(r.Context(), id); err != nil {
			respondDomainError(w, err)
			return
		}
		if err := h.queue.Enqueue(r.Context(), id); err != nil {
			respondError(w, http.StatusServiceUnavailable, "failed to queue rebuild")
			return
		}
		respondJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "audience_id": id})
		return
	}

	count, err := h.engine.Rebuild(r.Context(), id)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, rebuildResponse{AudienceID: id, MemberCount: count})
}

// Members returns the audience's membership as JSON, or CSV when requested
// with ?format=csv or Accept: text/csv.
func (h *AudienceHandler) Members(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	members, err := h.engine.Members(r.Context(), id)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	if wantsCSV(r) {
		h.writeMembersCSV(w, id, members)
		return
	}
	respondJSON(w, http.StatusOK, members)
}

func wantsCSV(r *http.Request) bool {
	if r.URL.Query().Get("format") == "csv" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/csv")
}

func (h *AudienceHandler) writeMembersCSV(w http.ResponseWriter, audienceID string, members []domain.AudienceMember) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="audience_`+audienceID+`.csv"`)

	cw := csv.NewWriter(w)
	cw.Write([]string{"profile_id", "email", "user_id", "primary_identifier", "total_orders", "total_spend", "added_at"})

	for _, m := range members {
		email, userID := "", ""
		if m.Email != nil {
			email = *m.Email
		}
		if m.UserID != nil {
			userID = *m.UserID
		}
		cw.Write([]string{
			m.ProfileID,
			email,
			userID,
			m.PrimaryIdentifier,
			strconv.Itoa(m.TotalOrders),
			m.TotalSpend.String(),
			m.AddedAt.Format(time.RFC3339),
		})
	}
	cw.Flush()
	// csv.Writer errors are sticky; one check after Flush covers every row.
	if err := cw.Error(); err != nil {
		h.logger.Warn("audience csv export truncated",
			"audience_id", audienceID,
			"error", err,
		)
	}
}
