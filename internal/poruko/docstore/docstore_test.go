package docstore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type testDoc struct {
	Name    string            `json:"name"`
	Count   int               `json:"count"`
	Entries map[string]string `json:"entries"`
	// Added after v1 documents were already on disk; Load must default it.
	Flavour string `json:"flavour"`
}

func defaultTestDoc() testDoc {
	return testDoc{
		Name:    "fresh",
		Entries: map[string]string{},
		Flavour: "vanilla",
	}
}

func TestLoadAbsentFileReturnsDefaults(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "missing.json"), defaultTestDoc)

	doc := store.Load()
	if doc.Name != "fresh" {
		t.Errorf("Name = %q, want %q", doc.Name, "fresh")
	}
	if doc.Entries == nil {
		t.Error("Entries is nil, want initialized map")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "doc.json"), defaultTestDoc)

	doc := store.Load()
	doc.Name = "saved"
	doc.Count = 7
	doc.Entries["k"] = "v"

	if err := store.Save(doc); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got := store.Load()
	if got.Name != "saved" || got.Count != 7 || got.Entries["k"] != "v" {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestLoadMalformedFileReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	// Simulates a file truncated mid-write by a non-atomic writer.
	if err := os.WriteFile(path, []byte(`{"name": "par`), 0o644); err != nil {
		t.Fatal(err)
	}

	store := New(path, defaultTestDoc)
	doc := store.Load()
	if doc.Name != "fresh" {
		t.Errorf("Name = %q, want defaults after malformed read", doc.Name)
	}
}

func TestLoadFillsMissingFieldsFromDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	// Old-schema document without the flavour field.
	if err := os.WriteFile(path, []byte(`{"name": "old", "count": 3}`), 0o644); err != nil {
		t.Fatal(err)
	}

	store := New(path, defaultTestDoc)
	doc := store.Load()
	if doc.Name != "old" {
		t.Errorf("Name = %q, want %q", doc.Name, "old")
	}
	if doc.Flavour != "vanilla" {
		t.Errorf("Flavour = %q, want default %q for missing field", doc.Flavour, "vanilla")
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := New(filepath.Join(dir, "doc.json"), defaultTestDoc)

	for i := 0; i < 5; i++ {
		if err := store.Save(defaultTestDoc()); err != nil {
			t.Fatalf("Save #%d: %v", i, err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Errorf("temp file %q left behind", e.Name())
		}
	}
	if len(entries) != 1 {
		t.Errorf("got %d directory entries, want 1", len(entries))
	}
}

func TestSaveKeepsPreviousDocumentOnFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.json")
	store := New(path, defaultTestDoc)

	doc := defaultTestDoc()
	doc.Name = "first"
	if err := store.Save(doc); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Make the directory read-only so the temp file cannot be created.
	if err := os.Chmod(dir, 0o555); err != nil {
		t.Fatal(err)
	}
	defer os.Chmod(dir, 0o755)

	doc.Name = "second"
	if err := store.Save(doc); err == nil {
		t.Skip("running as root, directory permissions not enforced")
	}

	os.Chmod(dir, 0o755)
	got := store.Load()
	if got.Name != "first" {
		t.Errorf("Name = %q, want previous document %q after failed save", got.Name, "first")
	}
}
