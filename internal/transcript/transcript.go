// Package transcript scans a webpipe tree for eval transcript files and
// loads their events into the store.
//
// Transcripts are JSONL: one event object per line, tagged with a kind
// discriminator. Lines that are blank, undecodable, or carry a foreign
// kind are skipped rather than failing the file, since harness runs
// routinely interleave transcripts with unrelated log output.
package transcript

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/text/encoding/charmap"

	"github.com/arclabs561/webpipe/internal/extract"
	"github.com/arclabs561/webpipe/internal/logging"
	"github.com/arclabs561/webpipe/internal/storage"
)

// Scanner lines can carry full judge prompts; give them generous headroom.
const maxLineBytes = 16 * 1024 * 1024

// Stats reports what an ingest pass touched.
type Stats struct {
	FilesIngested  int64
	EventsIngested int64
	LinesSkipped   int64
}

// IsTranscriptName reports whether a file name looks like an eval
// transcript. The canonical form is `*.transcript.jsonl`, but some
// commands and tests use custom names, so any .jsonl whose name
// mentions "transcript" qualifies. Gzipped transcripts keep the same
// naming with a .gz suffix.
func IsTranscriptName(name string) bool {
	base := strings.TrimSuffix(name, ".gz")
	if strings.HasSuffix(base, ".transcript.jsonl") {
		return true
	}
	return strings.Contains(base, "transcript") && strings.HasSuffix(base, ".jsonl")
}

// Ingest walks root for transcript files and inserts one provenance row
// per file plus one event row per recognized line. Files are processed
// in lexicographic path order so repeated exports visit them the same
// way.
func Ingest(db *storage.DB, root string, log *logging.Logger) (Stats, error) {
	var stats Stats

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees shouldn't sink the whole export.
			log.Warn("skipping unreadable path", map[string]interface{}{
				"path":  path,
				"error": err.Error(),
			})
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if IsTranscriptName(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("walking %s: %w", root, err)
	}
	sort.Strings(files)

	for _, path := range files {
		st, err := os.Stat(path)
		if err != nil {
			continue
		}
		if err := db.UpsertTranscriptFile(path, st.ModTime().Unix(), st.Size()); err != nil {
			return stats, fmt.Errorf("recording transcript file %s: %w", path, err)
		}
		stats.FilesIngested++

		events, skipped, err := ingestFile(db, path, log)
		if err != nil {
			return stats, err
		}
		stats.EventsIngested += events
		stats.LinesSkipped += skipped
	}

	log.Info("transcripts ingested", map[string]interface{}{
		"files":  stats.FilesIngested,
		"events": stats.EventsIngested,
	})
	return stats, nil
}

func ingestFile(db *storage.DB, path string, log *logging.Logger) (events, skipped int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		log.Warn("cannot open transcript", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
		return 0, 0, nil
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, gerr := gzip.NewReader(f)
		if gerr != nil {
			log.Warn("cannot decompress transcript", map[string]interface{}{
				"path":  path,
				"error": gerr.Error(),
			})
			return 0, 0, nil
		}
		defer gz.Close()
		r = gz
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	for sc.Scan() {
		line := strings.TrimSpace(decodeLine(sc.Bytes()))
		if line == "" {
			continue
		}
		var raw interface{}
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			skipped++
			continue
		}
		ev, ok := raw.(map[string]interface{})
		if !ok {
			skipped++
			continue
		}
		if kind, _ := ev["kind"].(string); kind != extract.EventKind {
			skipped++
			continue
		}
		row := extract.EventFromRecord(ev)
		if err := db.InsertTranscriptEvent(path, row); err != nil {
			return events, skipped, fmt.Errorf("inserting event from %s: %w", path, err)
		}
		events++
	}
	if err := sc.Err(); err != nil {
		log.Warn("transcript read aborted", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
	}
	return events, skipped, nil
}

// decodeLine returns the line as UTF-8, treating non-UTF-8 bytes as
// Latin-1 rather than dropping the line. Old harness builds wrote raw
// fetched bytes into a few fields.
func decodeLine(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(decoded)
}
