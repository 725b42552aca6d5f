// Package history keeps a rolling short-term memory of group conversation.
//
// Messages are appended per conversation and pruned on every write once they
// age past the retention horizon, so the backing file stays bounded without a
// background sweep. Pruning on write costs a full document rewrite per
// message, which is fine at human chat rates.
package history

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bdobrica/poruko/internal/poruko/docstore"
)

// NoRecentActivity is returned by RecentText when a conversation has no
// messages inside the query window. It doubles as the transcript handed to
// the summarizer, which is instructed to joke about quiet rooms.
const NoRecentActivity = "No ha habido conversación reciente."

// Entry is one captured chat message. Entries are never mutated after
// creation; they only age out.
type Entry struct {
	Author string    `json:"author"`
	Text   string    `json:"text"`
	Time   time.Time `json:"time"`
}

// Log is the per-process retention log, one ordered entry sequence per
// conversation, persisted through docstore with the same atomic-rename
// discipline as the score document.
type Log struct {
	store     *docstore.Store[map[string][]Entry]
	retention time.Duration
}

// New creates a Log persisting at path with the given retention horizon.
func New(path string, retention time.Duration) *Log {
	return &Log{
		store: docstore.New(path, func() map[string][]Entry {
			return map[string][]Entry{}
		}),
		retention: retention,
	}
}

// Append records a message and immediately prunes entries in the same
// conversation older than the retention horizon, then persists the document.
func (l *Log) Append(conversationID, author, text string, now time.Time) error {
	doc := l.store.Load()

	entries := append(doc[conversationID], Entry{
		Author: author,
		Text:   text,
		Time:   now,
	})

	cutoff := now.Add(-l.retention)
	kept := entries[:0]
	for _, e := range entries {
		if e.Time.After(cutoff) {
			kept = append(kept, e)
		}
	}
	doc[conversationID] = kept

	if err := l.store.Save(doc); err != nil {
		return fmt.Errorf("history: persist: %w", err)
	}
	return nil
}

// RecentText renders the conversation's entries newer than now-window as
// "author: text" lines in arrival order. Windows wider than the retention
// horizon are clamped: older material has already been pruned and silently
// widening the window would only pretend otherwise.
func (l *Log) RecentText(conversationID string, window time.Duration, now time.Time) string {
	if window > l.retention {
		slog.Debug("history: query window clamped to retention horizon",
			"window", window, "retention", l.retention)
		window = l.retention
	}

	doc := l.store.Load()
	entries, ok := doc[conversationID]
	if !ok {
		return NoRecentActivity
	}

	cutoff := now.Add(-window)
	var lines []string
	for _, e := range entries {
		if e.Time.After(cutoff) {
			lines = append(lines, e.Author+": "+e.Text)
		}
	}
	if len(lines) == 0 {
		return NoRecentActivity
	}
	return strings.Join(lines, "\n")
}
