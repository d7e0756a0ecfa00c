package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"parkmeter/internal/billing"
	"parkmeter/internal/db"
	"parkmeter/internal/models"
	"parkmeter/internal/repo"
)

// LedgerService is the transactional state machine over the session store.
// It is the only writer: every session mutation lands together with its
// audit entry in one transaction.
type LedgerService struct {
	pool      db.Pool
	rateCents int64
	logger    *zap.Logger

	plateLocks   *keyedMutex
	sessionLocks *keyedMutex

	now func() time.Time
}

// NewLedgerService builds the ledger over a postgres pool. rateCents is the
// current tariff, snapshotted into each new session.
func NewLedgerService(pool db.Pool, rateCents int64, logger *zap.Logger) *LedgerService {
	return &LedgerService{
		pool:         pool,
		rateCents:    rateCents,
		logger:       logger,
		plateLocks:   newKeyedMutex(),
		sessionLocks: newKeyedMutex(),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// NormalizePlate uppercases a plate and strips all whitespace.
func NormalizePlate(plate string) string {
	return strings.ToUpper(strings.Join(strings.Fields(plate), ""))
}

// Open creates an active session for the plate and audits it. Fails with
// repo.ErrEmptyPlate on a blank plate and repo.ErrDuplicateSession when the
// plate is already parked.
func (s *LedgerService) Open(ctx context.Context, req models.OpenRequest) (*models.ParkingSession, error) {
	return s.open(ctx, req, true, false)
}

// OpenQueued creates a local pending session while the remote authority is
// unreachable: the session (synced=false), its audit entry and the queued
// write are committed atomically, so a crash cannot strand a session
// without its replay envelope.
func (s *LedgerService) OpenQueued(ctx context.Context, req models.OpenRequest) (*models.ParkingSession, error) {
	return s.open(ctx, req, false, true)
}

func (s *LedgerService) open(ctx context.Context, req models.OpenRequest, synced, enqueue bool) (*models.ParkingSession, error) {
	plate := NormalizePlate(req.LicensePlate)
	if plate == "" {
		return nil, repo.ErrEmptyPlate
	}

	unlock := s.plateLocks.lock(plate)
	defer unlock()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	sessions := repo.NewSessionsRepo(tx)
	existing, err := sessions.FindActiveByPlate(ctx, plate)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, repo.ErrDuplicateSession
	}

	now := s.now()
	start := req.StartTime
	if start.IsZero() {
		start = now
	}
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}

	session := models.ParkingSession{
		ID:           id,
		LicensePlate: plate,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		Address:      req.Address,
		StartTime:    start.UTC(),
		Status:       models.StatusActive,
		RateCents:    s.rateCents,
		AmountCents:  0,
		CreatedBy:    req.UserID,
		Synced:       synced,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := sessions.Insert(ctx, session); err != nil {
		return nil, err
	}

	if err := repo.NewAuditRepo(tx).Append(ctx, models.AuditEntry{
		ID:        uuid.NewString(),
		Action:    models.AuditActionOpen,
		SessionID: session.ID,
		ActorID:   req.UserID,
		CreatedAt: now,
	}); err != nil {
		return nil, err
	}

	if enqueue {
		req.ID = session.ID
		req.LicensePlate = plate
		req.StartTime = session.StartTime
		if err := s.enqueue(ctx, tx, models.OpOpen, req, now); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.logger.Info("session opened",
		zap.String("session_id", session.ID),
		zap.String("license_plate", plate),
		zap.Bool("synced", synced),
	)
	return &session, nil
}

// Close finalizes an active session at its end time and audits it. Fails
// with repo.ErrSessionNotFound for an unknown id and repo.ErrSessionClosed
// when the session is already terminal; a repeated close never double-charges
// or double-audits.
func (s *LedgerService) Close(ctx context.Context, req models.CloseRequest) (*models.CloseResult, error) {
	return s.close(ctx, req, true, false)
}

// CloseQueued finalizes locally and captures the close for replay, in one
// transaction. Billing is frozen at the local end time; the replay carries
// that instant so the remote authority charges the same amount.
func (s *LedgerService) CloseQueued(ctx context.Context, req models.CloseRequest) (*models.CloseResult, error) {
	return s.close(ctx, req, false, true)
}

func (s *LedgerService) close(ctx context.Context, req models.CloseRequest, synced, enqueue bool) (*models.CloseResult, error) {
	unlock := s.sessionLocks.lock(req.SessionID)
	defer unlock()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	sessions := repo.NewSessionsRepo(tx)
	session, err := sessions.GetByIDForUpdate(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, repo.ErrSessionNotFound
	}
	if session.Status == models.StatusClosed {
		return nil, repo.ErrSessionClosed
	}

	now := s.now()
	end := req.EndTime
	if end.IsZero() {
		end = now
	}
	end = end.UTC()
	if end.Before(session.StartTime) {
		end = session.StartTime
	}

	amount := billing.Finalize(*session, end)
	if err := sessions.Close(ctx, session.ID, end, req.UserID, amount, synced); err != nil {
		return nil, err
	}

	if err := repo.NewAuditRepo(tx).Append(ctx, models.AuditEntry{
		ID:        uuid.NewString(),
		Action:    models.AuditActionClose,
		SessionID: session.ID,
		ActorID:   req.UserID,
		CreatedAt: now,
	}); err != nil {
		return nil, err
	}

	if enqueue {
		req.EndTime = end
		if err := s.enqueue(ctx, tx, models.OpClose, req, now); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.logger.Info("session closed",
		zap.String("session_id", session.ID),
		zap.Int64("amount_cents", amount),
		zap.Bool("synced", synced),
	)
	return &models.CloseResult{SessionID: session.ID, AmountCents: amount, Synced: synced}, nil
}

// MirrorClose applies a close already finalized by the remote authority to
// the local mirror. No audit entry is written here; the authority owns the
// audit trail for the mutation. A session unknown locally is ignored.
func (s *LedgerService) MirrorClose(ctx context.Context, result models.CloseResult, endedBy string, endTime time.Time) error {
	unlock := s.sessionLocks.lock(result.SessionID)
	defer unlock()

	sessions := repo.NewSessionsRepo(s.pool)
	session, err := sessions.GetByID(ctx, result.SessionID)
	if err != nil || session == nil {
		return err
	}
	if session.Status == models.StatusClosed {
		return nil
	}
	return sessions.Close(ctx, result.SessionID, endTime.UTC(), endedBy, result.AmountCents, true)
}

func (s *LedgerService) enqueue(ctx context.Context, q db.Querier, op string, payload any, now time.Time) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return repo.NewQueueRepo(q).Enqueue(ctx, models.QueuedWrite{
		ID:        uuid.NewString(),
		Op:        op,
		Payload:   data,
		Synced:    false,
		CreatedAt: now,
	})
}

// ListActive returns active sessions ordered by start time.
func (s *LedgerService) ListActive(ctx context.Context) ([]models.ParkingSession, error) {
	return repo.NewSessionsRepo(s.pool).ListActive(ctx)
}

// ListSessions returns the full session history, newest first. Closed
// sessions stay in the ledger as the permanent billing record.
func (s *LedgerService) ListSessions(ctx context.Context) ([]models.ParkingSession, error) {
	return repo.NewSessionsRepo(s.pool).List(ctx)
}

// ListAudit returns the full audit trail, oldest first.
func (s *LedgerService) ListAudit(ctx context.Context) ([]models.AuditEntry, error) {
	return repo.NewAuditRepo(s.pool).List(ctx)
}

// MarkSynced records that the remote authority acknowledged the session's
// current state.
func (s *LedgerService) MarkSynced(ctx context.Context, sessionID string) error {
	return repo.NewSessionsRepo(s.pool).MarkSynced(ctx, sessionID)
}

// Mirror reconciles the local store with the remote authority's active
// snapshot. Remote rows land synced; local pending rows are left alone
// until their queued writes replay, and closed rows are terminal even
// when a stale snapshot still lists them as active.
func (s *LedgerService) Mirror(ctx context.Context, remote []models.ParkingSession) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	sessions := repo.NewSessionsRepo(tx)
	for _, session := range remote {
		local, err := sessions.GetByID(ctx, session.ID)
		if err != nil {
			return err
		}
		if local != nil && (!local.Synced || local.Status == models.StatusClosed) {
			continue
		}
		session.Synced = true
		if err := sessions.Upsert(ctx, session); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}
