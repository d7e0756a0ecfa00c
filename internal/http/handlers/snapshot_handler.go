package handlers

import (
	"context"
	"net/http"

	"parkmeter/internal/models"
)

// SnapshotSource is the scheduler's published view.
type SnapshotSource interface {
	Snapshot() models.Snapshot
}

// SnapshotCache is the shared snapshot cache, used as a cold-start
// fallback before the first poll completes. May be absent.
type SnapshotCache interface {
	Load(ctx context.Context) (*models.Snapshot, error)
}

// NewSnapshotHandler returns GET /parking/snapshot handler serving the last
// published snapshot. Before the first poll it falls back to the cached
// snapshot of another node. Stale data with the quota flag set beats no
// data.
func NewSnapshotHandler(src SnapshotSource, cache SnapshotCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := src.Snapshot()
		if snap.TakenAt.IsZero() && cache != nil {
			if cached, err := cache.Load(r.Context()); err == nil && cached != nil {
				snap = *cached
			}
		}
		if snap.Sessions == nil {
			snap.Sessions = []models.ParkingSession{}
		}
		writeJSON(w, http.StatusOK, snap)
	}
}
