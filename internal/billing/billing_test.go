package billing

import (
	"testing"
	"time"

	"parkmeter/internal/models"
)

const rateCents = 150000

func TestBillableHoursRoundsUpWithFloorOfOne(t *testing.T) {
	cases := []struct {
		name string
		d    time.Duration
		want int64
	}{
		{"zero", 0, 1},
		{"one second", time.Second, 1},
		{"just under an hour", time.Hour - time.Millisecond, 1},
		{"exactly an hour", time.Hour, 1},
		{"just over an hour", time.Hour + time.Millisecond, 2},
		{"two hours", 2 * time.Hour, 2},
		{"negative clock skew", -time.Minute, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := BillableHours(tc.d); got != tc.want {
				t.Fatalf("BillableHours(%v) = %d, want %d", tc.d, got, tc.want)
			}
		})
	}
}

func TestRoundingLaw(t *testing.T) {
	// Anything in (0, 1h] bills one hour, (1h, 2h] bills two.
	for _, d := range []time.Duration{time.Millisecond, 30 * time.Minute, time.Hour} {
		if got := Amount(BillableHours(d), rateCents); got != 1*rateCents {
			t.Fatalf("duration %v billed %d cents, want %d", d, got, 1*rateCents)
		}
	}
	for _, d := range []time.Duration{time.Hour + time.Millisecond, 90 * time.Minute, 2 * time.Hour} {
		if got := Amount(BillableHours(d), rateCents); got != 2*rateCents {
			t.Fatalf("duration %v billed %d cents, want %d", d, got, 2*rateCents)
		}
	}
}

func TestLiveEstimateStepsOnlyAtHourBoundaries(t *testing.T) {
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s := models.ParkingSession{StartTime: start, RateCents: rateCents, Status: models.StatusActive}

	prev := int64(0)
	for minutes := 0; minutes <= 300; minutes++ {
		now := start.Add(time.Duration(minutes) * time.Minute)
		got := LiveEstimate(s, now)

		// Constant within each hour window, exactly one tariff step past
		// each boundary.
		hours := int64(minutes/60) + 1
		if minutes > 0 && minutes%60 == 0 {
			hours = int64(minutes / 60)
		}
		if want := hours * rateCents; got != want {
			t.Fatalf("at +%dm estimate = %d, want %d", minutes, got, want)
		}
		if got < prev {
			t.Fatalf("estimate decreased from %d to %d at +%dm", prev, got, minutes)
		}
		if got != prev && got-prev != rateCents {
			t.Fatalf("estimate jumped by %d at +%dm, steps must be one tariff unit", got-prev, minutes)
		}
		prev = got
	}
}

func TestScenarioFiftyNineAndSixtyOneMinutes(t *testing.T) {
	start := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	s := models.ParkingSession{StartTime: start, RateCents: rateCents}

	if got := LiveEstimate(s, start.Add(59*time.Minute)); got != 1*rateCents {
		t.Fatalf("at 59m estimate = %d, want %d", got, 1*rateCents)
	}
	if got := LiveEstimate(s, start.Add(61*time.Minute)); got != 2*rateCents {
		t.Fatalf("at 61m estimate = %d, want %d", got, 2*rateCents)
	}
	if got := Finalize(s, start.Add(61*time.Minute)); got != 2*rateCents {
		t.Fatalf("finalize at 61m = %d, want %d", got, 2*rateCents)
	}
}

func TestElapsedClampsNegative(t *testing.T) {
	now := time.Now().UTC()
	if got := Elapsed(now.Add(time.Minute), now); got != 0 {
		t.Fatalf("Elapsed clamped = %v, want 0", got)
	}
}
