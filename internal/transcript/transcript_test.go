package transcript

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/arclabs561/webpipe/internal/logging"
	"github.com/arclabs561/webpipe/internal/storage"
)

func TestIsTranscriptName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"eval-run.transcript.jsonl", true},
		{"my-transcript-dump.jsonl", true},
		{"eval-run.transcript.jsonl.gz", true},
		{"transcript.jsonl", true},
		{"eval-run.jsonl", false},
		{"notes.transcript.txt", false},
		{"transcript.json", false},
	}
	for _, tt := range tests {
		if got := IsTranscriptName(tt.name); got != tt.want {
			t.Errorf("IsTranscriptName(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func setupStore(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.OpenFresh(filepath.Join(t.TempDir(), "out.sqlite3"), logging.Discard())
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

const (
	evLine   = `{"kind":"webpipe_eval_transcript_event","run_kind":"judge","stage":"judge","seq":1}`
	junkKind = `{"kind":"something_else","stage":"judge"}`
)

func TestIngestSkipsHostileLines(t *testing.T) {
	db := setupStore(t)
	root := t.TempDir()

	writeFile(t, filepath.Join(root, "run.transcript.jsonl"),
		evLine+"\n"+
			"\n"+
			"not json at all\n"+
			`["a","list"]`+"\n"+
			junkKind+"\n"+
			evLine+"\n")

	stats, err := Ingest(db, root, logging.Discard())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if stats.FilesIngested != 1 {
		t.Errorf("files = %d, want 1", stats.FilesIngested)
	}
	if stats.EventsIngested != 2 {
		t.Errorf("events = %d, want 2", stats.EventsIngested)
	}
	if stats.LinesSkipped != 3 {
		t.Errorf("skipped = %d, want 3", stats.LinesSkipped)
	}
}

func TestIngestRecordsFileProvenance(t *testing.T) {
	db := setupStore(t)
	root := t.TempDir()
	path := filepath.Join(root, "nested", ".hidden", "a.transcript.jsonl")
	writeFile(t, path, evLine+"\n")

	if _, err := Ingest(db, root, logging.Discard()); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	var bytes int64
	err := db.QueryRow("SELECT bytes FROM webpipe_transcript_files WHERE path = ?", path).Scan(&bytes)
	if err != nil {
		t.Fatalf("file row missing: %v", err)
	}
	if bytes != int64(len(evLine)+1) {
		t.Errorf("bytes = %d, want %d", bytes, len(evLine)+1)
	}
}

func TestIngestGzippedTranscript(t *testing.T) {
	db := setupStore(t)
	root := t.TempDir()
	path := filepath.Join(root, "run.transcript.jsonl.gz")

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	gz := gzip.NewWriter(f)
	if _, err := gz.Write([]byte(evLine + "\n" + evLine + "\n")); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	stats, err := Ingest(db, root, logging.Discard())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if stats.EventsIngested != 2 {
		t.Errorf("events = %d, want 2", stats.EventsIngested)
	}
}

func TestIngestLatin1Line(t *testing.T) {
	db := setupStore(t)
	root := t.TempDir()
	path := filepath.Join(root, "legacy.transcript.jsonl")

	// 0xE9 is "é" in Latin-1 but not valid UTF-8 on its own.
	line := []byte(`{"kind":"webpipe_eval_transcript_event","stage":"caf` + "\xe9" + `"}` + "\n")
	if err := os.WriteFile(path, line, 0o644); err != nil {
		t.Fatal(err)
	}

	stats, err := Ingest(db, root, logging.Discard())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if stats.EventsIngested != 1 {
		t.Errorf("events = %d, want 1", stats.EventsIngested)
	}

	var stage string
	err = db.QueryRow("SELECT stage FROM webpipe_transcript_events WHERE src_path = ?", path).Scan(&stage)
	if err != nil {
		t.Fatal(err)
	}
	if stage != "café" {
		t.Errorf("stage = %q, want %q", stage, "café")
	}
}

func TestIngestEmptyRoot(t *testing.T) {
	db := setupStore(t)

	stats, err := Ingest(db, t.TempDir(), logging.Discard())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if stats.FilesIngested != 0 || stats.EventsIngested != 0 {
		t.Errorf("stats = %+v, want all zero", stats)
	}
}
