package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"parkmeter/internal/bridge"
	"parkmeter/internal/models"
	"parkmeter/internal/repo"
)

// Kicker resets the sync scheduler after a successful mutation. Satisfied
// by scheduler.Scheduler.
type Kicker interface {
	Kick()
}

// SessionsService is the mutation entry point for callers. It routes opens
// and closes through the bridge, captures them in the offline queue when
// the authority is unreachable, and nudges the scheduler after success.
type SessionsService struct {
	ledger *LedgerService
	bridge bridge.Bridge
	probe  bridge.ConnectivityProbe
	kicker Kicker
	remote bool
	logger *zap.Logger

	now func() time.Time
}

// NewSessionsService builds the service. remote is true when the bridge
// points at another node; false when this instance is the authority.
func NewSessionsService(ledger *LedgerService, br bridge.Bridge, probe bridge.ConnectivityProbe, kicker Kicker, remote bool, logger *zap.Logger) *SessionsService {
	return &SessionsService{
		ledger: ledger,
		bridge: br,
		probe:  probe,
		kicker: kicker,
		remote: remote,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// OpenSession opens a parking session. The returned session has
// Synced=false when it was captured for later replay instead of reaching
// the authority.
func (s *SessionsService) OpenSession(ctx context.Context, req models.OpenRequest) (*models.ParkingSession, error) {
	if NormalizePlate(req.LicensePlate) == "" {
		return nil, repo.ErrEmptyPlate
	}

	if !s.remote {
		session, err := s.bridge.OpenSession(ctx, req)
		if err != nil {
			return nil, err
		}
		s.kick()
		return session, nil
	}

	// The originating node fixes the id and start instant so the local
	// mirror, the queue payload and the authority all agree on them.
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.StartTime.IsZero() {
		req.StartTime = s.now()
	}

	if !s.probe.Online(ctx) {
		return s.ledger.OpenQueued(ctx, req)
	}

	session, err := s.bridge.OpenSession(ctx, req)
	switch {
	case err == nil:
		if mirrorErr := s.ledger.Mirror(ctx, []models.ParkingSession{*session}); mirrorErr != nil {
			s.logger.Warn("failed to mirror opened session", zap.String("session_id", session.ID), zap.Error(mirrorErr))
		}
		s.kick()
		return session, nil
	case errors.Is(err, bridge.ErrUnavailable), errors.Is(err, bridge.ErrRateLimited):
		s.logger.Warn("open did not reach authority, queueing", zap.String("session_id", req.ID), zap.Error(err))
		return s.ledger.OpenQueued(ctx, req)
	default:
		return nil, err
	}
}

// CloseSession closes a parking session. The result carries Synced=false
// when the close was captured for later replay.
func (s *SessionsService) CloseSession(ctx context.Context, req models.CloseRequest) (*models.CloseResult, error) {
	if !s.remote {
		result, err := s.bridge.CloseSession(ctx, req)
		if err != nil {
			return nil, err
		}
		s.kick()
		return result, nil
	}

	// Freeze billing at the operator's action instant, not at whatever
	// later time the request lands or replays.
	if req.EndTime.IsZero() {
		req.EndTime = s.now()
	}

	if !s.probe.Online(ctx) {
		return s.ledger.CloseQueued(ctx, req)
	}

	result, err := s.bridge.CloseSession(ctx, req)
	switch {
	case err == nil:
		if mirrorErr := s.ledger.MirrorClose(ctx, *result, req.UserID, req.EndTime); mirrorErr != nil {
			s.logger.Warn("failed to mirror closed session", zap.String("session_id", req.SessionID), zap.Error(mirrorErr))
		}
		s.kick()
		return result, nil
	case errors.Is(err, bridge.ErrUnavailable), errors.Is(err, bridge.ErrRateLimited):
		s.logger.Warn("close did not reach authority, queueing", zap.String("session_id", req.SessionID), zap.Error(err))
		return s.ledger.CloseQueued(ctx, req)
	default:
		return nil, err
	}
}

// ListActive returns the active sessions from the local store.
func (s *SessionsService) ListActive(ctx context.Context) ([]models.ParkingSession, error) {
	return s.ledger.ListActive(ctx)
}

// ListSessions returns the local session history, newest first.
func (s *SessionsService) ListSessions(ctx context.Context) ([]models.ParkingSession, error) {
	return s.ledger.ListSessions(ctx)
}

// ListAudit returns the local audit trail.
func (s *SessionsService) ListAudit(ctx context.Context) ([]models.AuditEntry, error) {
	return s.ledger.ListAudit(ctx)
}

func (s *SessionsService) kick() {
	if s.kicker != nil {
		s.kicker.Kick()
	}
}
