package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"parkmeter/internal/models"
)

// SessionsAPI is what the parking handlers need from the sessions service.
type SessionsAPI interface {
	OpenSession(ctx context.Context, req models.OpenRequest) (*models.ParkingSession, error)
	CloseSession(ctx context.Context, req models.CloseRequest) (*models.CloseResult, error)
	ListActive(ctx context.Context) ([]models.ParkingSession, error)
	ListSessions(ctx context.Context) ([]models.ParkingSession, error)
	ListAudit(ctx context.Context) ([]models.AuditEntry, error)
}

// NewParkingStartHandler returns POST /parking/start handler. Replies 201
// on an acknowledged open, 202 when the open was queued for replay.
func NewParkingStartHandler(svc SessionsAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.OpenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}

		session, err := svc.OpenSession(r.Context(), req)
		if err != nil {
			writeError(w, statusForError(err), err.Error())
			return
		}

		status := http.StatusCreated
		if !session.Synced {
			status = http.StatusAccepted
		}
		writeJSON(w, status, session)
	}
}

// NewParkingFinishHandler returns POST /parking/finish handler. Replies 200
// with the finalized amount, 202 when the close was queued for replay.
func NewParkingFinishHandler(svc SessionsAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.CloseRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		if req.SessionID == "" {
			writeError(w, http.StatusBadRequest, "session id required")
			return
		}

		result, err := svc.CloseSession(r.Context(), req)
		if err != nil {
			writeError(w, statusForError(err), err.Error())
			return
		}

		status := http.StatusOK
		if !result.Synced {
			status = http.StatusAccepted
		}
		writeJSON(w, status, result)
	}
}

// NewActiveSessionsHandler returns GET /parking/active handler.
func NewActiveSessionsHandler(svc SessionsAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessions, err := svc.ListActive(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to fetch active sessions")
			return
		}
		if sessions == nil {
			sessions = []models.ParkingSession{}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"sessions": sessions,
		})
	}
}

// NewSessionHistoryHandler returns GET /parking/sessions handler listing
// the full ledger, closed sessions included.
func NewSessionHistoryHandler(svc SessionsAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessions, err := svc.ListSessions(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to fetch session history")
			return
		}
		if sessions == nil {
			sessions = []models.ParkingSession{}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"sessions": sessions,
		})
	}
}

// NewAuditListHandler returns GET /parking/audit handler.
func NewAuditListHandler(svc SessionsAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := svc.ListAudit(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to fetch audit log")
			return
		}
		if entries == nil {
			entries = []models.AuditEntry{}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"entries": entries,
		})
	}
}
