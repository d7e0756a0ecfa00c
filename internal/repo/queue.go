package repo

import (
	"context"

	"parkmeter/internal/db"
	"parkmeter/internal/models"
)

// QueueRepo persists writes captured while the remote authority was
// unreachable.
type QueueRepo struct{ q db.Querier }

// NewQueueRepo returns repository bound to q.
func NewQueueRepo(q db.Querier) *QueueRepo { return &QueueRepo{q: q} }

// Enqueue appends a write envelope.
func (r *QueueRepo) Enqueue(ctx context.Context, w models.QueuedWrite) error {
	_, err := r.q.Exec(ctx, `
		insert into write_queue (id, op, payload, synced, created_at)
		values ($1,$2,$3,$4,$5)
	`, w.ID, w.Op, w.Payload, w.Synced, w.CreatedAt)
	return err
}

// List returns queued writes oldest first. Replay order is causal order:
// an open always precedes the close of the same session.
func (r *QueueRepo) List(ctx context.Context) ([]models.QueuedWrite, error) {
	rows, err := r.q.Query(ctx, `
		select id, op, payload, synced, created_at
		from write_queue
		order by created_at asc, id asc
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.QueuedWrite
	for rows.Next() {
		var w models.QueuedWrite
		if err := rows.Scan(&w.ID, &w.Op, &w.Payload, &w.Synced, &w.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// Remove deletes a write after the remote authority confirmed application.
func (r *QueueRepo) Remove(ctx context.Context, id string) error {
	_, err := r.q.Exec(ctx, `delete from write_queue where id=$1`, id)
	return err
}
