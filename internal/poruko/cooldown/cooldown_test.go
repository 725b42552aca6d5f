package cooldown

import (
	"testing"
	"time"
)

// memStore is an in-memory TimestampStore for gate tests.
type memStore struct {
	t   time.Time
	set bool
}

func (m *memStore) LastSummaryAt() (time.Time, bool) { return m.t, m.set }
func (m *memStore) SetLastSummaryAt(t time.Time) error {
	m.t, m.set = t, true
	return nil
}

func TestGateAllowsWhenNoTimestampStored(t *testing.T) {
	g := New(&memStore{}, 2*time.Hour)

	d := g.TryAcquire(time.Now())
	if !d.Allowed {
		t.Error("fresh gate denied")
	}
	if d.Remaining != 0 {
		t.Errorf("Remaining = %v, want 0", d.Remaining)
	}
}

func TestGateDeniesInsideCooldownWithRemaining(t *testing.T) {
	store := &memStore{}
	g := New(store, 2*time.Hour)
	base := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)

	if d := g.TryAcquire(base); !d.Allowed {
		t.Fatal("initial acquire denied")
	}
	if err := g.Record(base); err != nil {
		t.Fatal(err)
	}

	d := g.TryAcquire(base.Add(59 * time.Minute))
	if d.Allowed {
		t.Fatal("acquire allowed inside cooldown")
	}
	if d.Remaining != 61*time.Minute {
		t.Errorf("Remaining = %v, want 61m", d.Remaining)
	}
}

func TestGateReopensAfterCooldown(t *testing.T) {
	store := &memStore{}
	g := New(store, 2*time.Hour)
	base := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)

	if err := g.Record(base); err != nil {
		t.Fatal(err)
	}

	if d := g.TryAcquire(base.Add(121 * time.Minute)); !d.Allowed {
		t.Errorf("acquire denied after cooldown elapsed, remaining %v", d.Remaining)
	}
}

func TestRecordRestartsCooldown(t *testing.T) {
	store := &memStore{}
	g := New(store, time.Hour)
	base := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)

	if err := g.Record(base); err != nil {
		t.Fatal(err)
	}
	if err := g.Record(base.Add(90 * time.Minute)); err != nil {
		t.Fatal(err)
	}

	if d := g.TryAcquire(base.Add(2 * time.Hour)); d.Allowed {
		t.Error("acquire allowed; second Record should have restarted the cooldown")
	}
}
