package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"go.uber.org/zap"

	"parkmeter/internal/bridge"
	"parkmeter/internal/models"
	"parkmeter/internal/repo"
)

type fakeBridge struct {
	openFn  func(context.Context, models.OpenRequest) (*models.ParkingSession, error)
	closeFn func(context.Context, models.CloseRequest) (*models.CloseResult, error)

	opens  []models.OpenRequest
	closes []models.CloseRequest
}

func (b *fakeBridge) OpenSession(ctx context.Context, req models.OpenRequest) (*models.ParkingSession, error) {
	b.opens = append(b.opens, req)
	return b.openFn(ctx, req)
}

func (b *fakeBridge) CloseSession(ctx context.Context, req models.CloseRequest) (*models.CloseResult, error) {
	b.closes = append(b.closes, req)
	return b.closeFn(ctx, req)
}

func (b *fakeBridge) ListActive(ctx context.Context) ([]models.ParkingSession, error) {
	return nil, nil
}

type fakeProbe struct{ online bool }

func (p fakeProbe) Online(context.Context) bool { return p.online }

type fakeKicker struct{ kicks int }

func (k *fakeKicker) Kick() { k.kicks++ }

func TestOpenSessionLocalModeForwardsToBridge(t *testing.T) {
	ledger, _ := newTestLedger(t)
	want := &models.ParkingSession{ID: "s-1", LicensePlate: "ABC123", Status: models.StatusActive, Synced: true}
	br := &fakeBridge{openFn: func(context.Context, models.OpenRequest) (*models.ParkingSession, error) {
		return want, nil
	}}
	kicker := &fakeKicker{}
	svc := NewSessionsService(ledger, br, bridge.AlwaysOnline{}, kicker, false, zap.NewNop())

	session, err := svc.OpenSession(context.Background(), models.OpenRequest{LicensePlate: "ABC123", UserID: "u1"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if session != want {
		t.Fatalf("session not forwarded from bridge")
	}
	if kicker.kicks != 1 {
		t.Fatalf("kicks = %d, want 1", kicker.kicks)
	}
}

func TestOpenSessionEmptyPlateNeverReachesBridge(t *testing.T) {
	ledger, _ := newTestLedger(t)
	br := &fakeBridge{openFn: func(context.Context, models.OpenRequest) (*models.ParkingSession, error) {
		t.Fatal("bridge must not be called")
		return nil, nil
	}}
	svc := NewSessionsService(ledger, br, bridge.AlwaysOnline{}, nil, false, zap.NewNop())

	_, err := svc.OpenSession(context.Background(), models.OpenRequest{LicensePlate: "  "})
	if !errors.Is(err, repo.ErrEmptyPlate) {
		t.Fatalf("expected ErrEmptyPlate, got %v", err)
	}
}

func anyArgs(n int) []interface{} {
	args := make([]interface{}, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func expectQueuedOpen(mock pgxmock.PgxPoolIface, plate string) {
	mock.ExpectBegin()
	mock.ExpectQuery(`from parking_sessions\s+where license_plate=\$1 and status=\$2`).
		WithArgs(plate, models.StatusActive).
		WillReturnRows(pgxmock.NewRows(sessionColumns()))
	mock.ExpectExec(`insert into parking_sessions`).
		WithArgs(anyArgs(13)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`insert into audit_log`).
		WithArgs(anyArgs(5)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`insert into write_queue`).
		WithArgs(anyArgs(5)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
}

func TestOpenSessionOfflineQueuesLocally(t *testing.T) {
	ledger, mock := newTestLedger(t)
	expectQueuedOpen(mock, "ABC123")

	br := &fakeBridge{openFn: func(context.Context, models.OpenRequest) (*models.ParkingSession, error) {
		t.Fatal("bridge must not be called while offline")
		return nil, nil
	}}
	kicker := &fakeKicker{}
	svc := NewSessionsService(ledger, br, fakeProbe{online: false}, kicker, true, zap.NewNop())

	session, err := svc.OpenSession(context.Background(), models.OpenRequest{LicensePlate: "ABC123", UserID: "u1"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if session.Synced {
		t.Fatalf("offline open must be pending")
	}
	if session.ID == "" {
		t.Fatalf("originating node must fix the session id")
	}
	if kicker.kicks != 0 {
		t.Fatalf("queued open must not kick the scheduler")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestOpenSessionUnavailableAuthorityFallsBackToQueue(t *testing.T) {
	ledger, mock := newTestLedger(t)
	expectQueuedOpen(mock, "ABC123")

	br := &fakeBridge{openFn: func(context.Context, models.OpenRequest) (*models.ParkingSession, error) {
		return nil, bridge.ErrUnavailable
	}}
	svc := NewSessionsService(ledger, br, fakeProbe{online: true}, nil, true, zap.NewNop())

	session, err := svc.OpenSession(context.Background(), models.OpenRequest{LicensePlate: "ABC123", UserID: "u1"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if session.Synced {
		t.Fatalf("failed open must be pending")
	}
	if len(br.opens) != 1 {
		t.Fatalf("bridge calls = %d, want 1", len(br.opens))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestOpenSessionAuthorityConflictSurfaces(t *testing.T) {
	ledger, _ := newTestLedger(t)
	br := &fakeBridge{openFn: func(context.Context, models.OpenRequest) (*models.ParkingSession, error) {
		return nil, repo.ErrDuplicateSession
	}}
	svc := NewSessionsService(ledger, br, fakeProbe{online: true}, nil, true, zap.NewNop())

	_, err := svc.OpenSession(context.Background(), models.OpenRequest{LicensePlate: "ABC123", UserID: "u1"})
	if !errors.Is(err, repo.ErrDuplicateSession) {
		t.Fatalf("expected ErrDuplicateSession, got %v", err)
	}
}

func TestOpenSessionRemoteSuccessMirrorsAndKicks(t *testing.T) {
	ledger, mock := newTestLedger(t)
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	remote := &models.ParkingSession{
		ID: "s-1", LicensePlate: "ABC123", StartTime: start,
		Status: models.StatusActive, RateCents: testRateCents, CreatedBy: "u1",
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`from parking_sessions where id=\$1`).
		WithArgs("s-1").
		WillReturnRows(pgxmock.NewRows(sessionColumns()))
	mock.ExpectExec(`insert into parking_sessions`).
		WithArgs(anyArgs(13)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	br := &fakeBridge{openFn: func(context.Context, models.OpenRequest) (*models.ParkingSession, error) {
		return remote, nil
	}}
	kicker := &fakeKicker{}
	svc := NewSessionsService(ledger, br, fakeProbe{online: true}, kicker, true, zap.NewNop())

	session, err := svc.OpenSession(context.Background(), models.OpenRequest{LicensePlate: "ABC123", UserID: "u1"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if session != remote {
		t.Fatalf("authority response not returned")
	}
	if kicker.kicks != 1 {
		t.Fatalf("kicks = %d, want 1", kicker.kicks)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCloseSessionOfflineFreezesEndTime(t *testing.T) {
	ledger, mock := newTestLedger(t)
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	now := start.Add(30 * time.Minute)
	ledger.now = func() time.Time { return now }

	mock.ExpectBegin()
	mock.ExpectQuery(`from parking_sessions where id=\$1 for update`).
		WithArgs("s-1").
		WillReturnRows(pgxmock.NewRows(sessionColumns()).
			AddRow("s-1", "ABC123", 0.0, 0.0, "", start, (*time.Time)(nil), models.StatusActive,
				int64(testRateCents), int64(0), "u1", (*string)(nil), false, start, start))
	mock.ExpectExec(`update parking_sessions`).
		WithArgs("s-1", models.StatusClosed, now, "u1", int64(testRateCents), false).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`insert into audit_log`).
		WithArgs(anyArgs(5)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`insert into write_queue`).
		WithArgs(anyArgs(5)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	br := &fakeBridge{closeFn: func(context.Context, models.CloseRequest) (*models.CloseResult, error) {
		t.Fatal("bridge must not be called while offline")
		return nil, nil
	}}
	svc := NewSessionsService(ledger, br, fakeProbe{online: false}, nil, true, zap.NewNop())
	svc.now = func() time.Time { return now }

	result, err := svc.CloseSession(context.Background(), models.CloseRequest{SessionID: "s-1", UserID: "u1"})
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if result.Synced {
		t.Fatalf("offline close must be pending")
	}
	if result.AmountCents != testRateCents {
		t.Fatalf("amount = %d, want %d", result.AmountCents, testRateCents)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCloseSessionRemoteSuccessMirrorsClose(t *testing.T) {
	ledger, mock := newTestLedger(t)
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	now := start.Add(time.Hour)

	// MirrorClose loads the local row and finalizes it with the authority's
	// amount, keeping both stores on the same number.
	mock.ExpectQuery(`from parking_sessions where id=\$1`).
		WithArgs("s-1").
		WillReturnRows(pgxmock.NewRows(sessionColumns()).
			AddRow("s-1", "ABC123", 0.0, 0.0, "", start, (*time.Time)(nil), models.StatusActive,
				int64(testRateCents), int64(0), "u1", (*string)(nil), true, start, start))
	mock.ExpectExec(`update parking_sessions`).
		WithArgs("s-1", models.StatusClosed, now, "u1", int64(testRateCents), true).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	br := &fakeBridge{closeFn: func(context.Context, models.CloseRequest) (*models.CloseResult, error) {
		return &models.CloseResult{SessionID: "s-1", AmountCents: testRateCents, Synced: true}, nil
	}}
	kicker := &fakeKicker{}
	svc := NewSessionsService(ledger, br, fakeProbe{online: true}, kicker, true, zap.NewNop())
	svc.now = func() time.Time { return now }

	result, err := svc.CloseSession(context.Background(), models.CloseRequest{SessionID: "s-1", UserID: "u1"})
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if !result.Synced {
		t.Fatalf("authority close must be synced")
	}
	if kicker.kicks != 1 {
		t.Fatalf("kicks = %d, want 1", kicker.kicks)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
