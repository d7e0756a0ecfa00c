package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"parkmeter/internal/bridge"
	"parkmeter/internal/models"
)

// Widest backoff is 16x the base interval.
const maxBackoffFactor = 16

// Mirror reconciles the local store with a fetched snapshot. Optional.
type Mirror interface {
	Mirror(ctx context.Context, sessions []models.ParkingSession) error
}

// Drainer replays the offline write queue. Optional; invoked after a
// successful refresh, since a completed read proves connectivity. The
// drain only runs while writes actually await replay.
type Drainer interface {
	Pending(ctx context.Context) (bool, error)
	Drain(ctx context.Context) error
}

// Scheduler polls the ledger through the bridge on an adaptive cadence and
// publishes the latest active-session snapshot. One refresh in flight at a
// time; a rate-limit rejection widens the interval, success resets it.
type Scheduler struct {
	bridge  bridge.Bridge
	base    time.Duration
	logger  *zap.Logger
	mirror  Mirror
	drainer Drainer

	mu       sync.Mutex
	interval time.Duration
	snapshot models.Snapshot
	subs     []func(models.Snapshot)

	kick chan struct{}
	now  func() time.Time
}

// New builds a scheduler with base interval. mirror and drainer may be nil.
func New(br bridge.Bridge, base time.Duration, mirror Mirror, drainer Drainer, logger *zap.Logger) *Scheduler {
	if base <= 0 {
		base = 15 * time.Second
	}
	return &Scheduler{
		bridge:   br,
		base:     base,
		logger:   logger,
		mirror:   mirror,
		drainer:  drainer,
		interval: base,
		kick:     make(chan struct{}, 1),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Subscribe registers a callback invoked with each published snapshot.
// Register before Run; callbacks receive a copy they may retain.
func (s *Scheduler) Subscribe(fn func(models.Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// Run drives the polling loop until ctx is cancelled. Cancellation stops
// the pending sleep without waiting for it to elapse.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		s.RefreshOnce(ctx)

		timer := time.NewTimer(s.Interval())
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-s.kick:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// Kick schedules an immediate refresh at the base interval. Called after a
// successful mutation: its round trip proved connectivity, so a fresh read
// is valuable right away.
func (s *Scheduler) Kick() {
	s.mu.Lock()
	s.interval = s.base
	s.mu.Unlock()

	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// RefreshOnce performs a single poll and applies the backoff rules.
func (s *Scheduler) RefreshOnce(ctx context.Context) {
	sessions, err := s.bridge.ListActive(ctx)
	switch {
	case err == nil:
		s.publish(ctx, sessions)
	case errors.Is(err, bridge.ErrRateLimited):
		s.backoff()
	default:
		// Transient failure: keep the interval and the stale snapshot.
		s.logger.Warn("refresh failed", zap.Error(err))
	}
}

func (s *Scheduler) publish(ctx context.Context, sessions []models.ParkingSession) {
	snap := models.Snapshot{
		TakenAt:  s.now(),
		Sessions: sessions,
	}

	s.mu.Lock()
	s.interval = s.base
	s.snapshot = snap
	subs := make([]func(models.Snapshot), len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	if s.mirror != nil {
		if err := s.mirror.Mirror(ctx, sessions); err != nil {
			s.logger.Warn("failed to mirror snapshot", zap.Error(err))
		}
	}

	for _, fn := range subs {
		fn(copySnapshot(snap))
	}

	if s.drainer != nil {
		pending, err := s.drainer.Pending(ctx)
		if err != nil {
			s.logger.Warn("failed to check queue backlog", zap.Error(err))
			return
		}
		if pending {
			if err := s.drainer.Drain(ctx); err != nil {
				s.logger.Warn("queue drain after refresh failed", zap.Error(err))
			}
		}
	}
}

func (s *Scheduler) backoff() {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.interval * 2
	if max := s.base * maxBackoffFactor; next > max {
		next = max
	}
	s.interval = next
	s.snapshot.QuotaExceeded = true
	s.logger.Warn("rate limited, widening poll interval", zap.Duration("interval", next))
}

// Interval returns the current poll interval.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// QuotaExceeded reports whether the last rejection was a quota signal that
// has not yet been cleared by a successful poll.
func (s *Scheduler) QuotaExceeded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot.QuotaExceeded
}

// Snapshot returns a copy of the last published snapshot. Stale by at most
// one poll interval.
func (s *Scheduler) Snapshot() models.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copySnapshot(s.snapshot)
}

func copySnapshot(snap models.Snapshot) models.Snapshot {
	out := snap
	out.Sessions = make([]models.ParkingSession, len(snap.Sessions))
	copy(out.Sessions, snap.Sessions)
	return out
}
