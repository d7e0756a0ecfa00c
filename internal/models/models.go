package models

import "time"

// Session status values as stored in the sessions table.
const (
	StatusActive = "active"
	StatusClosed = "closed"
)

// Audit actions recorded in the audit log.
const (
	AuditActionOpen  = "OPEN"
	AuditActionClose = "CLOSE"
)

// Queued write operations.
const (
	OpOpen  = "open"
	OpClose = "close"
)

// ParkingSession is one metered occupancy of a slot by a plate.
type ParkingSession struct {
	ID           string     `json:"id"`
	LicensePlate string     `json:"license_plate"`
	Latitude     float64    `json:"latitude"`
	Longitude    float64    `json:"longitude"`
	Address      string     `json:"address,omitempty"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      *time.Time `json:"end_time,omitempty"`
	Status       string     `json:"status"`
	RateCents    int64      `json:"rate_cents"`
	AmountCents  int64      `json:"amount_cents"`
	CreatedBy    string     `json:"created_by"`
	EndedBy      *string    `json:"ended_by,omitempty"`
	Synced       bool       `json:"synced"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// AuditEntry is an append-only record of a state-changing action.
type AuditEntry struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	SessionID string    `json:"session_id"`
	ActorID   string    `json:"actor_id"`
	CreatedAt time.Time `json:"created_at"`
}

// QueuedWrite is a durable envelope for a mutation awaiting remote acknowledgement.
type QueuedWrite struct {
	ID        string    `json:"id"`
	Op        string    `json:"op"`
	Payload   []byte    `json:"payload"`
	Synced    bool      `json:"synced"`
	CreatedAt time.Time `json:"created_at"`
}

// OpenRequest carries an open-session mutation across the bridge.
// ID and StartTime are set by the originating node so an offline replay
// applies the mutation exactly as the operator issued it.
type OpenRequest struct {
	ID           string    `json:"id,omitempty"`
	LicensePlate string    `json:"license_plate"`
	UserID       string    `json:"user_id"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	Address      string    `json:"address,omitempty"`
	StartTime    time.Time `json:"start_time,omitempty"`
}

// CloseRequest carries a close-session mutation across the bridge.
// EndTime, when set, is the instant the operator closed the session; billing
// is frozen at that instant even if the request is replayed later.
type CloseRequest struct {
	SessionID string    `json:"id"`
	UserID    string    `json:"user_id"`
	EndTime   time.Time `json:"end_time,omitempty"`
}

// CloseResult is the finalized charge returned by a close. Synced is false
// when the close was only applied locally and awaits replay.
type CloseResult struct {
	SessionID   string `json:"id"`
	AmountCents int64  `json:"amount_cents"`
	Synced      bool   `json:"synced"`
}

// Snapshot is the scheduler's published view of the active sessions.
type Snapshot struct {
	TakenAt       time.Time        `json:"taken_at"`
	Sessions      []ParkingSession `json:"sessions"`
	QuotaExceeded bool             `json:"quota_exceeded"`
}
