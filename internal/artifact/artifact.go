// Package artifact persists issues as static JSON: a "today" snapshot, a
// per-date archival copy, and an append-only index. Every write goes through
// write-temp-then-rename so readers never observe a partial file.
package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sydlexius/daily3albums/internal/issue"
)

const (
	todayFile      = "today.json"
	indexFile      = "index.json"
	archiveDirName = "archive"
	quarantineDir  = "quarantine"
)

// IndexEntry is one archived day in the index.
type IndexEntry struct {
	Date       string `json:"date"`
	RunID      string `json:"run_id"`
	ThemeOfDay string `json:"theme_of_day"`
	Path       string `json:"path"`
}

// indexDoc is the on-disk index shape.
type indexDoc struct {
	SchemaVersion int          `json:"output_schema_version"`
	Entries       []IndexEntry `json:"entries"`
}

// Writer persists issues under a single output directory.
type Writer struct {
	outputDir string
	logger    *slog.Logger
}

// NewWriter creates a Writer rooted at outputDir.
func NewWriter(outputDir string, logger *slog.Logger) *Writer {
	return &Writer{
		outputDir: outputDir,
		logger:    logger.With(slog.String("component", "artifact")),
	}
}

// ArchiveDir returns the directory holding per-date archives.
func (w *Writer) ArchiveDir() string {
	return filepath.Join(w.outputDir, archiveDirName)
}

// WriteDaily persists the issue: archive copy first, then the today snapshot,
// then the index entry. Ordering matters — if the run dies midway, the
// archive (the source of truth for history) is the piece most likely to have
// landed.
func (w *Writer) WriteDaily(iss *issue.Issue) error {
	archivePath := filepath.Join(w.ArchiveDir(), iss.Date+".json")
	if err := WriteJSONAtomic(archivePath, iss); err != nil {
		return fmt.Errorf("writing archive: %w", err)
	}
	if err := WriteJSONAtomic(filepath.Join(w.outputDir, todayFile), iss); err != nil {
		return fmt.Errorf("writing today snapshot: %w", err)
	}
	if err := w.appendIndex(IndexEntry{
		Date:       iss.Date,
		RunID:      iss.RunID,
		ThemeOfDay: iss.ThemeOfDay,
		Path:       filepath.ToSlash(filepath.Join(archiveDirName, iss.Date+".json")),
	}); err != nil {
		return fmt.Errorf("updating index: %w", err)
	}

	w.logger.Info("artifacts written",
		slog.String("date", iss.Date), slog.String("dir", w.outputDir))
	return nil
}

// appendIndex loads the index, replaces any entry for the same date, and
// rewrites it sorted by date descending. A corrupt index is quarantined and
// rebuilt from the archive directory instead of failing the run.
func (w *Writer) appendIndex(entry IndexEntry) error {
	doc, err := w.loadIndex()
	if err != nil {
		w.logger.Warn("index unreadable, rebuilding from archive", slog.Any("error", err))
		if qErr := w.quarantineIndex(); qErr != nil {
			return qErr
		}
		doc = w.rebuildIndex()
	}

	kept := doc.Entries[:0]
	for _, e := range doc.Entries {
		if e.Date != entry.Date {
			kept = append(kept, e)
		}
	}
	doc.Entries = append(kept, entry)
	sort.Slice(doc.Entries, func(i, j int) bool {
		return doc.Entries[i].Date > doc.Entries[j].Date
	})
	doc.SchemaVersion = issue.SchemaVersion

	return WriteJSONAtomic(filepath.Join(w.outputDir, indexFile), doc)
}

func (w *Writer) loadIndex() (*indexDoc, error) {
	data, err := os.ReadFile(filepath.Join(w.outputDir, indexFile))
	if errors.Is(err, fs.ErrNotExist) {
		return &indexDoc{SchemaVersion: issue.SchemaVersion}, nil
	}
	if err != nil {
		return nil, err
	}
	var doc indexDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// quarantineIndex moves a corrupt index aside for inspection.
func (w *Writer) quarantineIndex() error {
	dir := filepath.Join(w.outputDir, quarantineDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	src := filepath.Join(w.outputDir, indexFile)
	dst := filepath.Join(dir, indexFile)
	if err := os.Rename(src, dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	w.logger.Warn("quarantined corrupt index", slog.String("path", dst))
	return nil
}

// rebuildIndex reconstructs the index by scanning archived issues. Files
// that fail to parse are skipped.
func (w *Writer) rebuildIndex() *indexDoc {
	doc := &indexDoc{SchemaVersion: issue.SchemaVersion}

	entries, err := os.ReadDir(w.ArchiveDir())
	if err != nil {
		return doc
	}
	for _, de := range entries {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(w.ArchiveDir(), name))
		if err != nil {
			continue
		}
		var iss issue.Issue
		if err := json.Unmarshal(data, &iss); err != nil || iss.Date == "" {
			continue
		}
		doc.Entries = append(doc.Entries, IndexEntry{
			Date:       iss.Date,
			RunID:      iss.RunID,
			ThemeOfDay: iss.ThemeOfDay,
			Path:       filepath.ToSlash(filepath.Join(archiveDirName, name)),
		})
	}
	return doc
}

// WriteJSONAtomic marshals v with indentation and writes it via a temp file
// and rename in the destination directory, creating the directory if needed.
func WriteJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", filepath.Base(path), err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
