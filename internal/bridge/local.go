package bridge

import (
	"context"

	"parkmeter/internal/models"
)

// Ledger is the subset of the ledger service the local bridge forwards to.
type Ledger interface {
	Open(ctx context.Context, req models.OpenRequest) (*models.ParkingSession, error)
	Close(ctx context.Context, req models.CloseRequest) (*models.CloseResult, error)
	ListActive(ctx context.Context) ([]models.ParkingSession, error)
}

// Local serves bridge calls from the in-process ledger. Used by
// single-node deployments where this instance is the authority.
type Local struct {
	ledger Ledger
}

// NewLocal builds the local bridge.
func NewLocal(ledger Ledger) *Local {
	return &Local{ledger: ledger}
}

// OpenSession forwards to the ledger.
func (l *Local) OpenSession(ctx context.Context, req models.OpenRequest) (*models.ParkingSession, error) {
	return l.ledger.Open(ctx, req)
}

// CloseSession forwards to the ledger.
func (l *Local) CloseSession(ctx context.Context, req models.CloseRequest) (*models.CloseResult, error) {
	return l.ledger.Close(ctx, req)
}

// ListActive forwards to the ledger.
func (l *Local) ListActive(ctx context.Context) ([]models.ParkingSession, error) {
	return l.ledger.ListActive(ctx)
}

// AlwaysOnline is the connectivity probe for the local bridge.
type AlwaysOnline struct{}

// Online reports true: the in-process ledger is always reachable.
func (AlwaysOnline) Online(context.Context) bool { return true }
