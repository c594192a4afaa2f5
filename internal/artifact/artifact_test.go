package artifact

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/sydlexius/daily3albums/internal/issue"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testIssue(date string) *issue.Issue {
	return &issue.Issue{
		SchemaVersion: issue.SchemaVersion,
		Date:          date,
		RunID:         "run-" + date,
		ThemeOfDay:    "shoegaze",
		Slots: []issue.Slot{
			{Index: 0, Label: "Headliner", Theme: "shoegaze", ThemeKey: "shoegaze",
				Picks: []issue.Pick{{Position: 1, Title: "Loveless", Artist: "My Bloody Valentine", AlbumKey: "rg-1"}}},
		},
	}
}

func readJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("parsing %s: %v", path, err)
	}
}

func TestWriteDaily(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, testLogger())

	if err := w.WriteDaily(testIssue("2026-08-26")); err != nil {
		t.Fatalf("WriteDaily: %v", err)
	}

	var today issue.Issue
	readJSON(t, filepath.Join(dir, "today.json"), &today)
	if today.Date != "2026-08-26" {
		t.Errorf("today.json date = %q", today.Date)
	}

	var archived issue.Issue
	readJSON(t, filepath.Join(dir, "archive", "2026-08-26.json"), &archived)
	if archived.RunID != "run-2026-08-26" {
		t.Errorf("archive run id = %q", archived.RunID)
	}

	var idx indexDoc
	readJSON(t, filepath.Join(dir, "index.json"), &idx)
	if len(idx.Entries) != 1 || idx.Entries[0].Path != "archive/2026-08-26.json" {
		t.Errorf("index = %+v", idx)
	}
}

func TestWriteDailyIndexSortedAndDeduped(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, testLogger())

	for _, date := range []string{"2026-08-24", "2026-08-26", "2026-08-25", "2026-08-26"} {
		if err := w.WriteDaily(testIssue(date)); err != nil {
			t.Fatalf("WriteDaily(%s): %v", date, err)
		}
	}

	var idx indexDoc
	readJSON(t, filepath.Join(dir, "index.json"), &idx)
	want := []string{"2026-08-26", "2026-08-25", "2026-08-24"}
	if len(idx.Entries) != len(want) {
		t.Fatalf("entries = %d, want %d", len(idx.Entries), len(want))
	}
	for i, date := range want {
		if idx.Entries[i].Date != date {
			t.Errorf("entry %d = %q, want %q", i, idx.Entries[i].Date, date)
		}
	}
}

func TestWriteDailyRebuildsCorruptIndex(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, testLogger())

	if err := w.WriteDaily(testIssue("2026-08-24")); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "index.json"), []byte("{corrupt"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := w.WriteDaily(testIssue("2026-08-25")); err != nil {
		t.Fatalf("WriteDaily after corruption: %v", err)
	}

	var idx indexDoc
	readJSON(t, filepath.Join(dir, "index.json"), &idx)
	if len(idx.Entries) != 2 {
		t.Errorf("rebuilt index has %d entries, want 2 (got %+v)", len(idx.Entries), idx.Entries)
	}
	if _, err := os.Stat(filepath.Join(dir, "quarantine", "index.json")); err != nil {
		t.Errorf("corrupt index not quarantined: %v", err)
	}
}

func TestWriteJSONAtomicLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")
	if err := WriteJSONAtomic(path, map[string]int{"a": 1}); err != nil {
		t.Fatalf("WriteJSONAtomic: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "out.json" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("directory contents = %v, want only out.json", names)
	}

	// Overwrite must replace, not append.
	if err := WriteJSONAtomic(path, map[string]int{"b": 2}); err != nil {
		t.Fatal(err)
	}
	var got map[string]int
	readJSON(t, path, &got)
	if got["b"] != 2 || len(got) != 1 {
		t.Errorf("got %v", got)
	}
}
