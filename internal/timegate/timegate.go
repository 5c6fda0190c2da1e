// Package timegate decides whether bound content may be shown yet.
//
// Evaluate is a pure function of the current time and an optional unlock
// timestamp. Callers evaluate on every read; results must not be cached
// beyond the caller's own refresh interval.
package timegate

import (
	"fmt"
	"time"
)

// Countdown is the remaining lock time split for display. Every component
// is truncated, so a gate 23h59m away reports 0 days.
type Countdown struct {
	Days    int `json:"days"`
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
}

func (c Countdown) String() string {
	return fmt.Sprintf("%dd %dh %dm", c.Days, c.Hours, c.Minutes)
}

// Gate is the outcome of an evaluation.
type Gate struct {
	Open      bool
	Remaining time.Duration
	Countdown Countdown
}

// Evaluate returns Open when unlockAt is nil or not after now; otherwise
// Locked with the exact remaining duration and its truncated countdown.
func Evaluate(now time.Time, unlockAt *time.Time) Gate {
	if unlockAt == nil || !now.Before(*unlockAt) {
		return Gate{Open: true}
	}
	remaining := unlockAt.Sub(now)
	return Gate{
		Open:      false,
		Remaining: remaining,
		Countdown: Split(remaining),
	}
}

// Split truncates d into whole days, hours and minutes.
func Split(d time.Duration) Countdown {
	if d <= 0 {
		return Countdown{}
	}
	const day = 24 * time.Hour
	return Countdown{
		Days:    int(d / day),
		Hours:   int((d % day) / time.Hour),
		Minutes: int((d % time.Hour) / time.Minute),
	}
}
