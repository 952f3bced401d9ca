package log

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"voxelterrain.ai/internal/sim/world/terrain/gen"
	"voxelterrain.ai/internal/sim/world/terrain/store"
)

func readEntries(t *testing.T, path string) []GenerationEntry {
	t.Helper()
	var out []GenerationEntry
	if err := ReadGenLog(path, func(e GenerationEntry) error {
		out = append(out, e)
		return nil
	}); err != nil {
		t.Fatalf("ReadGenLog: %v", err)
	}
	return out
}

func TestGenLoggerWritesChunkEntries(t *testing.T) {
	dir := t.TempDir()
	l := NewGenLogger(dir, nil)
	fixed := time.Date(2026, 3, 1, 13, 30, 0, 0, time.UTC)
	l.w.now = func() time.Time { return fixed }

	s := store.NewChunkStore(store.WorldGen{}, gen.Constant(0))
	s.SetObserver(l)
	s.GetOrGenChunk(0, 0)
	s.GetOrGenChunk(-1, 3)
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	entries := readEntries(t, filepath.Join(dir, "gen", "gen-2026-03-01-13.jsonl.zst"))
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	e := entries[1]
	if e.CX != -1 || e.CZ != 3 || e.MinHeight != 20 || e.MaxHeight != 20 || e.UnixMS != fixed.UnixMilli() {
		t.Fatalf("unexpected entry: %+v", e)
	}
	if e.Counts["DIRT"] != 2*store.ChunkSize*store.ChunkSize {
		t.Fatalf("unexpected counts: %v", e.Counts)
	}
}

func TestJSONLZstdWriterRotatesHourly(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, "gen")
	now := time.Date(2026, 3, 1, 13, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return now }
	if err := w.Write(map[string]int{"a": 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if err := w.Write(map[string]int{"a": 2}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	for _, name := range []string{"gen-2026-03-01-13.jsonl.zst", "gen-2026-03-01-14.jsonl.zst"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
	}
}

func TestListLogFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"gen-2026-03-01-14.jsonl.zst", "gen-2026-03-01-13.jsonl.zst", "other-2026-03-01-13.jsonl.zst", "gen-notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	files, err := ListLogFiles(dir, "gen")
	if err != nil {
		t.Fatalf("ListLogFiles: %v", err)
	}
	if len(files) != 2 || filepath.Base(files[0]) != "gen-2026-03-01-13.jsonl.zst" {
		t.Fatalf("files=%v", files)
	}
	if _, err := ListLogFiles(filepath.Join(dir, "missing"), "gen"); err == nil {
		t.Fatalf("expected error for missing dir")
	}
}

func TestReadGenLogRejectsGarbage(t *testing.T) {
	p := filepath.Join(t.TempDir(), "gen-x.jsonl.zst")
	w := NewJSONLZstdWriter(filepath.Dir(p), "gen")
	w.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	if err := w.Write("not an entry"); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = w.Close()
	err := ReadGenLog(filepath.Join(filepath.Dir(p), "gen-2026-01-01-00.jsonl.zst"), func(GenerationEntry) error { return nil })
	if err == nil {
		t.Fatalf("expected unmarshal error")
	}
}

func TestJSONLZstdWriterRejectsWriteAfterClose(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, "gen")
	now := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return now }
	if err := w.Write(map[string]int{"a": 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	now = now.Add(time.Hour)
	if err := w.Write(map[string]int{"a": 2}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "gen-2026-03-01-14.jsonl.zst")); !os.IsNotExist(err) {
		t.Fatalf("write after close reopened a file: %v", err)
	}
}
