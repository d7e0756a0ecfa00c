package bridge

import (
	"context"
	"errors"

	"parkmeter/internal/models"
)

// Failure classes at the bridge boundary. Everything else that comes back
// is a ledger domain error passed through unchanged.
var (
	// ErrRateLimited is an explicit quota rejection from the remote
	// authority. Callers back off exponentially; the request is never
	// silently dropped.
	ErrRateLimited = errors.New("remote authority rate limited the request")

	// ErrUnavailable covers network failures, timeouts and server errors.
	// Mutations are queued for replay; reads retain stale data.
	ErrUnavailable = errors.New("remote authority unavailable")
)

// Bridge is the request/response channel to the parking ledger authority.
// The local implementation calls the in-process ledger; the HTTP one calls
// a remote instance. Callers depend only on the failure classification
// above, never on a transport.
type Bridge interface {
	OpenSession(ctx context.Context, req models.OpenRequest) (*models.ParkingSession, error)
	CloseSession(ctx context.Context, req models.CloseRequest) (*models.CloseResult, error)
	ListActive(ctx context.Context) ([]models.ParkingSession, error)
}

// ConnectivityProbe reports whether the remote authority looks reachable.
// Injected so tests can substitute a deterministic fake.
type ConnectivityProbe interface {
	Online(ctx context.Context) bool
}
