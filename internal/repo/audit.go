package repo

import (
	"context"

	"parkmeter/internal/db"
	"parkmeter/internal/models"
)

// AuditRepo persists the append-only audit log. Entries are never updated
// or deleted.
type AuditRepo struct{ q db.Querier }

// NewAuditRepo returns repository bound to q.
func NewAuditRepo(q db.Querier) *AuditRepo { return &AuditRepo{q: q} }

// Append stores one audit entry.
func (r *AuditRepo) Append(ctx context.Context, e models.AuditEntry) error {
	_, err := r.q.Exec(ctx, `
		insert into audit_log (id, action, session_id, actor_id, created_at)
		values ($1,$2,$3,$4,$5)
	`, e.ID, e.Action, e.SessionID, e.ActorID, e.CreatedAt)
	return err
}

// List returns all audit entries in chronological order.
func (r *AuditRepo) List(ctx context.Context) ([]models.AuditEntry, error) {
	rows, err := r.q.Query(ctx, `
		select id, action, session_id, actor_id, created_at
		from audit_log
		order by created_at asc
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		if err := rows.Scan(&e.ID, &e.Action, &e.SessionID, &e.ActorID, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
