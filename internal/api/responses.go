package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rohanmehra24/unify-segment/internal/domain"
)

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}

// respondDomainError maps the pipeline's error taxonomy onto HTTP statuses.
// Server-side failures get a generic message; client errors echo the reason.
func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrMissingIdentifier):
		respondError(w, http.StatusBadRequest, "at least one of email, user_id, anonymous_id is required")
	case errors.Is(err, domain.ErrValidation):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrUniquenessConflict):
		respondError(w, http.StatusConflict, "identifier conflict, retry the request")
	case errors.Is(err, domain.ErrStoreUnavailable):
		respondError(w, http.StatusServiceUnavailable, "store unavailable, retry later")
	default:
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}
