package tempgroup

import (
	"time"
)

// GroupTimer is one pending reversion. The subject key lives outside the
// struct: the durable image is a JSON object keyed by subject, each value
// carrying only the expiry instant and the group to restore.
type GroupTimer struct {
	ExpiryTime    time.Time `json:"ExpiryTime"`
	OriginalGroup string    `json:"OriginalGroup"`
}

// Expired reports whether the timer's deadline has passed at the given
// instant.
func (t GroupTimer) Expired(now time.Time) bool {
	return !now.Before(t.ExpiryTime)
}

// Remaining returns the delay left until the deadline, floored at zero.
func (t GroupTimer) Remaining(now time.Time) time.Duration {
	d := t.ExpiryTime.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// TimerSnapshot is the full in-memory image of pending reversions, keyed by
// subject. Keys are unique; insertion order is irrelevant.
type TimerSnapshot map[string]GroupTimer

// Clone returns an independent copy so callers can iterate without holding
// the store lock.
func (s TimerSnapshot) Clone() TimerSnapshot {
	out := make(TimerSnapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
