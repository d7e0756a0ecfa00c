package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"parkmeter/internal/db"
	"parkmeter/internal/models"
)

const sessionColumns = `id, license_plate, latitude, longitude, address, start_time, end_time, status, rate_cents, amount_cents, created_by, ended_by, synced, created_at, updated_at`

// SessionsRepo persists parking sessions. Construct it over the pool for
// plain reads or over a pgx.Tx to join a transaction.
type SessionsRepo struct{ q db.Querier }

// NewSessionsRepo returns repository bound to q.
func NewSessionsRepo(q db.Querier) *SessionsRepo { return &SessionsRepo{q: q} }

// Insert stores a new session row.
func (r *SessionsRepo) Insert(ctx context.Context, s models.ParkingSession) error {
	_, err := r.q.Exec(ctx, `
		insert into parking_sessions (id, license_plate, latitude, longitude, address, start_time, end_time, status, rate_cents, amount_cents, created_by, ended_by, synced)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, s.ID, s.LicensePlate, s.Latitude, s.Longitude, s.Address, s.StartTime, s.EndTime, s.Status, s.RateCents, s.AmountCents, s.CreatedBy, s.EndedBy, s.Synced)
	return err
}

// Upsert stores or replaces a session row by id. Used when mirroring the
// remote authority's view into the local store.
func (r *SessionsRepo) Upsert(ctx context.Context, s models.ParkingSession) error {
	_, err := r.q.Exec(ctx, `
		insert into parking_sessions (id, license_plate, latitude, longitude, address, start_time, end_time, status, rate_cents, amount_cents, created_by, ended_by, synced)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		on conflict (id) do update set
			end_time = excluded.end_time,
			status = excluded.status,
			amount_cents = excluded.amount_cents,
			ended_by = excluded.ended_by,
			synced = excluded.synced,
			updated_at = now()
	`, s.ID, s.LicensePlate, s.Latitude, s.Longitude, s.Address, s.StartTime, s.EndTime, s.Status, s.RateCents, s.AmountCents, s.CreatedBy, s.EndedBy, s.Synced)
	return err
}

// GetByID returns the session or (nil, nil) when absent.
func (r *SessionsRepo) GetByID(ctx context.Context, id string) (*models.ParkingSession, error) {
	row := r.q.QueryRow(ctx, `select `+sessionColumns+` from parking_sessions where id=$1`, id)
	return scanSession(row)
}

// GetByIDForUpdate locks the session row for the remainder of the enclosing
// transaction. Concurrent closes serialize on this lock.
func (r *SessionsRepo) GetByIDForUpdate(ctx context.Context, id string) (*models.ParkingSession, error) {
	row := r.q.QueryRow(ctx, `select `+sessionColumns+` from parking_sessions where id=$1 for update`, id)
	return scanSession(row)
}

// FindActiveByPlate returns the active session for a normalized plate, or
// (nil, nil) when the plate is free.
func (r *SessionsRepo) FindActiveByPlate(ctx context.Context, plate string) (*models.ParkingSession, error) {
	row := r.q.QueryRow(ctx, `
		select `+sessionColumns+` from parking_sessions
		where license_plate=$1 and status=$2
	`, plate, models.StatusActive)
	return scanSession(row)
}

// ListActive returns active sessions ordered by start time for stable
// presentation.
func (r *SessionsRepo) ListActive(ctx context.Context) ([]models.ParkingSession, error) {
	rows, err := r.q.Query(ctx, `
		select `+sessionColumns+` from parking_sessions
		where status=$1
		order by start_time asc
	`, models.StatusActive)
	if err != nil {
		return nil, err
	}
	return scanSessions(rows)
}

// List returns every session, newest first.
func (r *SessionsRepo) List(ctx context.Context) ([]models.ParkingSession, error) {
	rows, err := r.q.Query(ctx, `
		select ` + sessionColumns + ` from parking_sessions
		order by start_time desc
	`)
	if err != nil {
		return nil, err
	}
	return scanSessions(rows)
}

// Close finalizes a session row. Idempotency is enforced by the ledger, not
// here.
func (r *SessionsRepo) Close(ctx context.Context, id string, endTime time.Time, endedBy string, amountCents int64, synced bool) error {
	_, err := r.q.Exec(ctx, `
		update parking_sessions
		set status=$2, end_time=$3, ended_by=$4, amount_cents=$5, synced=$6, updated_at=now()
		where id=$1
	`, id, models.StatusClosed, endTime, endedBy, amountCents, synced)
	return err
}

// MarkSynced records remote acknowledgement of the session's current state.
func (r *SessionsRepo) MarkSynced(ctx context.Context, id string) error {
	_, err := r.q.Exec(ctx, `update parking_sessions set synced=true, updated_at=now() where id=$1`, id)
	return err
}

// Delete removes a session row. Not exercised by normal flow; sessions are
// the permanent billing record. Kept for administrative purges.
func (r *SessionsRepo) Delete(ctx context.Context, id string) error {
	_, err := r.q.Exec(ctx, `delete from parking_sessions where id=$1`, id)
	return err
}

func scanSession(row pgx.Row) (*models.ParkingSession, error) {
	var s models.ParkingSession
	err := row.Scan(&s.ID, &s.LicensePlate, &s.Latitude, &s.Longitude, &s.Address, &s.StartTime, &s.EndTime, &s.Status, &s.RateCents, &s.AmountCents, &s.CreatedBy, &s.EndedBy, &s.Synced, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func scanSessions(rows pgx.Rows) ([]models.ParkingSession, error) {
	defer rows.Close()
	var out []models.ParkingSession
	for rows.Next() {
		var s models.ParkingSession
		if err := rows.Scan(&s.ID, &s.LicensePlate, &s.Latitude, &s.Longitude, &s.Address, &s.StartTime, &s.EndTime, &s.Status, &s.RateCents, &s.AmountCents, &s.CreatedBy, &s.EndedBy, &s.Synced, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
