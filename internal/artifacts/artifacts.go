// Package artifacts ingests the JSON run summaries the eval harness
// drops under .generated/. Only configuration, counts, and controlled
// judgments are stored; prose fields never leave the artifact.
package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/arclabs561/webpipe/internal/storage"
)

// generatedDirName is where the harness writes its run summaries,
// relative to the webpipe root.
const generatedDirName = ".generated"

// globArtifacts resolves each pattern under dir and returns the union,
// deduplicated and in sorted order so repeated exports see the same
// sequence.
func globArtifacts(dir string, patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	for _, pat := range patterns {
		matches, err := filepath.Glob(filepath.Join(dir, pat))
		if err != nil {
			return nil, fmt.Errorf("bad artifact pattern %q: %w", pat, err)
		}
		for _, m := range matches {
			if abs, err := filepath.Abs(m); err == nil {
				m = abs
			}
			seen[m] = true
		}
	}
	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

// recordArtifactFile writes the provenance row for an artifact. Files
// that vanished between glob and stat are silently dropped.
func recordArtifactFile(db *storage.DB, path string, kind *string, schemaVersion, generatedAt *int64) error {
	st, err := os.Stat(path)
	if err != nil {
		return nil
	}
	return db.UpsertArtifactFile(&storage.ArtifactFile{
		Path:              path,
		Kind:              kind,
		SchemaVersion:     schemaVersion,
		GeneratedAtEpochS: generatedAt,
		MtimeEpochS:       st.ModTime().Unix(),
		Bytes:             st.Size(),
	})
}

// runKey returns the artifact path relative to the webpipe root, which
// stays stable across checkouts. Falls back to the absolute path when
// the artifact sits outside the root.
func runKey(root, path string) string {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		absRoot = root
	}
	rel, err := filepath.Rel(absRoot, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}
