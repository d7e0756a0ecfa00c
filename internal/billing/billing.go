package billing

import (
	"time"

	"parkmeter/internal/models"
)

const hour = time.Hour

// Elapsed returns the duration between start and now. A now before start
// yields zero rather than a negative duration.
func Elapsed(start, now time.Time) time.Duration {
	d := now.Sub(start)
	if d < 0 {
		return 0
	}
	return d
}

// BillableHours rounds a parked duration up to whole hours with a minimum
// of one hour. Any session bills at least one hour, including one of zero
// duration.
func BillableHours(d time.Duration) int64 {
	if d <= 0 {
		return 1
	}
	hours := int64(d / hour)
	if d%hour != 0 {
		hours++
	}
	if hours < 1 {
		hours = 1
	}
	return hours
}

// Amount returns the charge in cents for the given billable hours. Money
// stays in integer minor units end to end.
func Amount(billableHours, rateCents int64) int64 {
	return billableHours * rateCents
}

// LiveEstimate computes the running charge of an active session as of now.
// Pure; safe to recompute on every polling tick.
func LiveEstimate(s models.ParkingSession, now time.Time) int64 {
	return Amount(BillableHours(Elapsed(s.StartTime, now)), s.RateCents)
}

// Finalize computes the frozen charge of a session closed at endTime. The
// amount is evaluated at endTime, never at a later recomputation time.
func Finalize(s models.ParkingSession, endTime time.Time) int64 {
	return Amount(BillableHours(Elapsed(s.StartTime, endTime)), s.RateCents)
}
