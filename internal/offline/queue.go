package offline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"parkmeter/internal/bridge"
	"parkmeter/internal/models"
	"parkmeter/internal/repo"
)

// Store is the durable queue backing. Satisfied by repo.QueueRepo.
type Store interface {
	List(ctx context.Context) ([]models.QueuedWrite, error)
	Remove(ctx context.Context, id string) error
}

// Acker marks a local session as acknowledged by the remote authority.
// Satisfied by the ledger service.
type Acker interface {
	MarkSynced(ctx context.Context, sessionID string) error
}

// Queue replays writes captured while disconnected. Writes go out oldest
// first so an open always reaches the authority before the close of the
// same session, and a failed write halts the drain rather than being
// skipped.
type Queue struct {
	store  Store
	bridge bridge.Bridge
	acker  Acker
	logger *zap.Logger

	mu       sync.Mutex
	draining bool
}

// NewQueue builds the replay queue.
func NewQueue(store Store, br bridge.Bridge, acker Acker, logger *zap.Logger) *Queue {
	return &Queue{store: store, bridge: br, acker: acker, logger: logger}
}

// Drain replays queued writes in FIFO order. At most one drain runs at a
// time; overlapping calls return immediately. A write leaves the queue only
// after the bridge confirms application.
func (q *Queue) Drain(ctx context.Context) error {
	q.mu.Lock()
	if q.draining {
		q.mu.Unlock()
		return nil
	}
	q.draining = true
	q.mu.Unlock()
	defer func() {
		q.mu.Lock()
		q.draining = false
		q.mu.Unlock()
	}()

	writes, err := q.store.List(ctx)
	if err != nil {
		return err
	}

	for _, w := range writes {
		sessionID, err := q.replay(ctx, w)
		if err != nil {
			q.logger.Warn("queue drain halted",
				zap.String("write_id", w.ID),
				zap.String("op", w.Op),
				zap.Error(err),
			)
			return err
		}
		if sessionID != "" {
			if err := q.acker.MarkSynced(ctx, sessionID); err != nil {
				q.logger.Warn("failed to mark session synced", zap.String("session_id", sessionID), zap.Error(err))
			}
		}
		if err := q.store.Remove(ctx, w.ID); err != nil {
			return err
		}
		q.logger.Info("queued write replayed", zap.String("write_id", w.ID), zap.String("op", w.Op))
	}
	return nil
}

// replay applies one write and returns the affected session id.
func (q *Queue) replay(ctx context.Context, w models.QueuedWrite) (string, error) {
	switch w.Op {
	case models.OpOpen:
		var req models.OpenRequest
		if err := json.Unmarshal(w.Payload, &req); err != nil {
			return "", fmt.Errorf("decode open payload: %w", err)
		}
		if _, err := q.bridge.OpenSession(ctx, req); err != nil {
			return "", err
		}
		return req.ID, nil
	case models.OpClose:
		var req models.CloseRequest
		if err := json.Unmarshal(w.Payload, &req); err != nil {
			return "", fmt.Errorf("decode close payload: %w", err)
		}
		if _, err := q.bridge.CloseSession(ctx, req); err != nil {
			// Already closed remotely means the write took effect; the
			// replay is satisfied, not failed.
			if errors.Is(err, repo.ErrSessionClosed) {
				return req.SessionID, nil
			}
			return "", err
		}
		return req.SessionID, nil
	default:
		return "", fmt.Errorf("unknown queued op %q", w.Op)
	}
}

// Pending reports whether any writes await replay.
func (q *Queue) Pending(ctx context.Context) (bool, error) {
	writes, err := q.store.List(ctx)
	if err != nil {
		return false, err
	}
	return len(writes) > 0, nil
}
