// Package cooldown rate-limits an expensive gated operation behind a single
// persisted timestamp.
//
// The gate is a pure check-then-commit primitive: TryAcquire only inspects
// state, and the caller must invoke Record after — and only after — the
// gated action actually completed. Calling Record on failure would silently
// reset the cooldown and let a broken action be hammered for free.
package cooldown

import "time"

// TimestampStore is the persistence the gate runs against. The game engine
// implements it on top of the score document's last-summary field.
type TimestampStore interface {
	// LastSummaryAt returns the stored timestamp; false when none is set.
	LastSummaryAt() (time.Time, bool)
	// SetLastSummaryAt overwrites and persists the timestamp.
	SetLastSummaryAt(t time.Time) error
}

// Decision is the outcome of TryAcquire.
type Decision struct {
	Allowed bool
	// Remaining is how long until the gate opens; zero when Allowed.
	Remaining time.Duration
}

// Gate guards one operation with a fixed cooldown duration.
type Gate struct {
	store    TimestampStore
	cooldown time.Duration
}

// New creates a Gate over the given store.
func New(store TimestampStore, cooldown time.Duration) *Gate {
	return &Gate{store: store, cooldown: cooldown}
}

// TryAcquire reports whether the gated operation may run at now. A denied
// decision carries the remaining wait for a user-facing countdown.
func (g *Gate) TryAcquire(now time.Time) Decision {
	last, ok := g.store.LastSummaryAt()
	if !ok {
		return Decision{Allowed: true}
	}

	end := last.Add(g.cooldown)
	if now.Before(end) {
		return Decision{Remaining: end.Sub(now)}
	}
	return Decision{Allowed: true}
}

// Record commits now as the start of a new cooldown period.
func (g *Gate) Record(now time.Time) error {
	return g.store.SetLastSummaryAt(now)
}
