package history

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestLog(t *testing.T, retention time.Duration) *Log {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "history.json"), retention)
}

func TestRecentTextWithinWindow(t *testing.T) {
	l := newTestLog(t, 3*time.Hour)
	base := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

	if err := l.Append("!room:x", "Ana", "buenos días", base); err != nil {
		t.Fatal(err)
	}
	if err := l.Append("!room:x", "Bruno", "qué tal", base.Add(10*time.Minute)); err != nil {
		t.Fatal(err)
	}

	got := l.RecentText("!room:x", 2*time.Hour, base.Add(time.Hour))
	want := "Ana: buenos días\nBruno: qué tal"
	if got != want {
		t.Errorf("RecentText = %q, want %q", got, want)
	}
}

func TestRecentTextFiltersByQueryWindow(t *testing.T) {
	l := newTestLog(t, 3*time.Hour)
	base := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

	if err := l.Append("!room:x", "Ana", "antigua", base); err != nil {
		t.Fatal(err)
	}
	if err := l.Append("!room:x", "Bruno", "reciente", base.Add(150*time.Minute)); err != nil {
		t.Fatal(err)
	}

	// At base+170m a 2h window starts at base+50m: only Bruno qualifies,
	// even though Ana's entry is still retained (horizon is 3h).
	got := l.RecentText("!room:x", 2*time.Hour, base.Add(170*time.Minute))
	if strings.Contains(got, "antigua") {
		t.Errorf("entry outside query window included: %q", got)
	}
	if !strings.Contains(got, "reciente") {
		t.Errorf("entry inside query window missing: %q", got)
	}
}

func TestAppendPrunesPastRetentionHorizon(t *testing.T) {
	l := newTestLog(t, 3*time.Hour)
	base := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

	if err := l.Append("!room:x", "Ana", "temprano", base); err != nil {
		t.Fatal(err)
	}
	// Four hours later a new append prunes the first entry.
	if err := l.Append("!room:x", "Bruno", "tarde", base.Add(4*time.Hour)); err != nil {
		t.Fatal(err)
	}

	got := l.RecentText("!room:x", 3*time.Hour, base.Add(4*time.Hour))
	if strings.Contains(got, "temprano") {
		t.Errorf("pruned entry still present: %q", got)
	}
	if !strings.Contains(got, "tarde") {
		t.Errorf("fresh entry missing: %q", got)
	}
}

func TestRecentTextSentinels(t *testing.T) {
	l := newTestLog(t, 3*time.Hour)
	now := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

	if got := l.RecentText("!unknown:x", time.Hour, now); got != NoRecentActivity {
		t.Errorf("unknown conversation = %q, want sentinel", got)
	}

	if err := l.Append("!room:x", "Ana", "hola", now); err != nil {
		t.Fatal(err)
	}
	if got := l.RecentText("!room:x", time.Hour, now.Add(2*time.Hour)); got != NoRecentActivity {
		t.Errorf("empty window = %q, want sentinel", got)
	}
}

func TestRecentTextClampsWindowToRetention(t *testing.T) {
	l := newTestLog(t, 2*time.Hour)
	base := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

	if err := l.Append("!room:x", "Ana", "hola", base); err != nil {
		t.Fatal(err)
	}

	// A 6h window cannot see past the 2h horizon.
	if got := l.RecentText("!room:x", 6*time.Hour, base.Add(3*time.Hour)); got != NoRecentActivity {
		t.Errorf("clamped window = %q, want sentinel", got)
	}
}

func TestConversationsAreIsolated(t *testing.T) {
	l := newTestLog(t, 3*time.Hour)
	now := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

	if err := l.Append("!a:x", "Ana", "privado de a", now); err != nil {
		t.Fatal(err)
	}
	if err := l.Append("!b:x", "Bruno", "privado de b", now); err != nil {
		t.Fatal(err)
	}

	if got := l.RecentText("!a:x", time.Hour, now); strings.Contains(got, "privado de b") {
		t.Errorf("conversation leak: %q", got)
	}
}

func TestAppendSurvivesReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.json")
	now := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

	l := New(path, 3*time.Hour)
	if err := l.Append("!room:x", "Ana", "persistida", now); err != nil {
		t.Fatal(err)
	}

	reopened := New(path, 3*time.Hour)
	if got := reopened.RecentText("!room:x", time.Hour, now); !strings.Contains(got, "persistida") {
		t.Errorf("entry lost across reopen: %q", got)
	}
}
