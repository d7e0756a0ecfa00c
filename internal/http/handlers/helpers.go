package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"parkmeter/internal/bridge"
	"parkmeter/internal/repo"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// statusForError maps ledger and bridge failures onto HTTP statuses. The
// split tells the caller whether to fix the input or retry later.
func statusForError(err error) int {
	switch {
	case errors.Is(err, repo.ErrEmptyPlate):
		return http.StatusBadRequest
	case errors.Is(err, repo.ErrDuplicateSession):
		return http.StatusConflict
	case errors.Is(err, repo.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, repo.ErrSessionClosed):
		return http.StatusGone
	case errors.Is(err, bridge.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, bridge.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
