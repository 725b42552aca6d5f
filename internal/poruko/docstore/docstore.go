// Package docstore provides a crash-safe JSON document store backed by a
// single file.
//
// The same abstraction serves every persisted document in Poruko (the score
// document, the conversation history, the GIF index): a whole document is
// loaded, mutated in memory, and written back atomically via a temp file and
// rename. The target path therefore always holds either the previous complete
// document or the new one, never a fragment.
//
// Load never fails: an absent or unreadable file yields the default document,
// favouring availability over durability. Save errors are returned so callers
// can log them and carry on — persistence is best-effort.
package docstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// Store persists a document of type T at a fixed path.
//
// Store is not safe for concurrent use from multiple goroutines; Poruko
// handles one inbound event at a time, so each document has a single logical
// writer. Multiple processes writing the same path are out of scope.
type Store[T any] struct {
	path     string
	defaults func() T
}

// New creates a Store for the document at path. defaults produces a fresh
// document used when the file is absent or unreadable, and as the base that
// decoded JSON is layered over — fields missing from an old file keep their
// default values, which is how schema additions stay backward compatible.
func New[T any](path string, defaults func() T) *Store[T] {
	return &Store[T]{path: path, defaults: defaults}
}

// Path returns the backing file path.
func (s *Store[T]) Path() string { return s.path }

// Load reads and decodes the document. It never returns an error: an absent
// file yields the default document silently, and a malformed file yields the
// default document with a warning logged.
func (s *Store[T]) Load() T {
	doc := s.defaults()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("docstore: unreadable file, using defaults", "path", s.path, "err", err)
		}
		return doc
	}

	if err := json.Unmarshal(raw, &doc); err != nil {
		slog.Warn("docstore: malformed document, using defaults", "path", s.path, "err", err)
		return s.defaults()
	}
	return doc
}

// Save writes the document atomically: it serializes to a temp file in the
// same directory, syncs it, then renames it over the target path.
func (s *Store[T]) Save(doc T) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("docstore: marshal %s: %w", s.path, err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("docstore: create temp in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("docstore: write %s: %w", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("docstore: sync %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("docstore: close %s: %w", tmpPath, err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("docstore: rename %s over %s: %w", tmpPath, s.path, err)
	}
	return nil
}
