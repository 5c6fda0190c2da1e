package timegate

import (
	"testing"
	"time"
)

func TestEvaluate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time {
		v := now.Add(d)
		return &v
	}

	tests := []struct {
		name      string
		unlockAt  *time.Time
		wantOpen  bool
		wantCount Countdown
	}{
		{name: "no gate", unlockAt: nil, wantOpen: true},
		{name: "exactly at unlock", unlockAt: at(0), wantOpen: true},
		{name: "past unlock", unlockAt: at(-time.Minute), wantOpen: true},
		{name: "one day ahead", unlockAt: at(24 * time.Hour), wantCount: Countdown{Days: 1}},
		{name: "just under a day truncates", unlockAt: at(24*time.Hour - time.Second), wantCount: Countdown{Hours: 23, Minutes: 59}},
		{name: "mixed", unlockAt: at(49*time.Hour + 30*time.Minute + 59*time.Second), wantCount: Countdown{Days: 2, Hours: 1, Minutes: 30}},
		{name: "seconds only", unlockAt: at(30 * time.Second), wantCount: Countdown{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gate := Evaluate(now, tc.unlockAt)
			if gate.Open != tc.wantOpen {
				t.Fatalf("open = %v, want %v", gate.Open, tc.wantOpen)
			}
			if gate.Open {
				if gate.Remaining != 0 {
					t.Fatalf("open gate should carry no remaining time, got %v", gate.Remaining)
				}
				return
			}
			if want := tc.unlockAt.Sub(now); gate.Remaining != want {
				t.Fatalf("remaining = %v, want %v", gate.Remaining, want)
			}
			if gate.Countdown != tc.wantCount {
				t.Fatalf("countdown = %+v, want %+v", gate.Countdown, tc.wantCount)
			}
		})
	}
}

func TestEvaluateIsMonotonic(t *testing.T) {
	unlock := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	start := unlock.Add(-3 * time.Hour)

	opened := false
	for now := start; now.Before(unlock.Add(3 * time.Hour)); now = now.Add(7 * time.Minute) {
		gate := Evaluate(now, &unlock)
		if opened && !gate.Open {
			t.Fatalf("gate relocked at %v after opening", now)
		}
		if gate.Open != !now.Before(unlock) {
			t.Fatalf("gate open=%v at %v, unlock %v", gate.Open, now, unlock)
		}
		opened = opened || gate.Open
	}
	if !opened {
		t.Fatal("gate never opened")
	}
}

func TestCountdownString(t *testing.T) {
	if got := (Countdown{Days: 1, Hours: 2, Minutes: 3}).String(); got != "1d 2h 3m" {
		t.Fatalf("got %q", got)
	}
}
