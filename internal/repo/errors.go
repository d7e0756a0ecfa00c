package repo

import "errors"

// Ledger failure sentinels, shared by the local ledger and the HTTP bridge
// so callers classify failures the same way in both deployments. Matched
// with errors.Is; none of these are retried.
var (
	// ErrEmptyPlate rejects an open with no license plate.
	ErrEmptyPlate = errors.New("license plate required")

	// ErrDuplicateSession rejects an open while the plate already has an
	// active session.
	ErrDuplicateSession = errors.New("active session already exists for plate")

	// ErrSessionNotFound rejects an operation on an unknown session id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionClosed rejects a close on an already closed session.
	ErrSessionClosed = errors.New("session already closed")
)
