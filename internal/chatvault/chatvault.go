// Package chatvault shells out to the chatvault binary for Cursor
// tool-use telemetry and loads the aggregate into the store. Only tool
// names, counts, and opaque provenance ids cross the boundary.
package chatvault

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/arclabs561/webpipe/internal/jsonval"
	"github.com/arclabs561/webpipe/internal/logging"
	"github.com/arclabs561/webpipe/internal/storage"
)

// Default tool-name filters. Prefixes select the web-research tools we
// care about; exclusions drop smoke and opt-in test traffic.
var (
	DefaultIncludePrefixes   = []string{"web_", "tavily", "firecrawl", "brave"}
	DefaultExcludeSubstrings = []string{"smoke", "live_", "_opt_in"}
)

// Options configures one aggregate-tool-calls invocation.
type Options struct {
	Bin               string
	MaxKeys           int64
	Top               int64
	IncludePrefixes   []string
	ExcludeSubstrings []string
}

// Available reports whether the configured binary exists on disk.
func Available(bin string) bool {
	st, err := os.Stat(bin)
	return err == nil && !st.IsDir()
}

// Run invokes `chatvault aggregate-tool-calls` and returns the parsed
// payload. The result goes through a file rather than stdout, which
// chatvault truncates on large aggregates.
func Run(ctx context.Context, opts Options, log *logging.Logger) (map[string]interface{}, error) {
	tmpDir, err := os.MkdirTemp("", "webpipe-self-opt-")
	if err != nil {
		return nil, fmt.Errorf("creating scratch dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	outPath := filepath.Join(tmpDir, "chatvault_aggregate_tool_calls.json")
	args := []string{
		"aggregate-tool-calls",
		"--max-keys", strconv.FormatInt(opts.MaxKeys, 10),
		"--top", strconv.FormatInt(opts.Top, 10),
		"--verbose",
		"--output-path", outPath,
		"--return-inline=false",
	}
	for _, p := range opts.IncludePrefixes {
		args = append(args, "--include-prefix", p)
	}
	for _, s := range opts.ExcludeSubstrings {
		args = append(args, "--exclude-substring", s)
	}

	log.Debug("running chatvault", map[string]interface{}{
		"bin":      opts.Bin,
		"max_keys": opts.MaxKeys,
		"top":      opts.Top,
	})

	cmd := exec.CommandContext(ctx, opts.Bin, args...)
	// The command prints a small summary to stdout; ignore it.
	cmd.Stdout = io.Discard
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return nil, fmt.Errorf("chatvault aggregate-tool-calls: %w: %s", err, stderr.String())
		}
		return nil, fmt.Errorf("chatvault aggregate-tool-calls: %w", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("reading chatvault output: %w", err)
	}
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding chatvault output: %w", err)
	}
	payload, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("chatvault output is not a JSON object")
	}
	return payload, nil
}

// IngestToolCounts writes the payload's top_tools into the store.
// Returns the number of tool rows written.
func IngestToolCounts(db *storage.DB, payload map[string]interface{}, maxKeys int64) (int64, error) {
	generatedAt := time.Now().UTC().Format(time.RFC3339)

	var sourceDBPath *string
	if src := jsonval.Obj(payload["source"]); src != nil {
		sourceDBPath = jsonval.Str(src["db_path"])
	}

	filtersJSON := "{}"
	if f := jsonval.Obj(payload["filters"]); f != nil {
		if b, err := json.Marshal(f); err == nil {
			filtersJSON = string(b)
		}
	}

	var written int64
	for _, t := range jsonval.List(payload["top_tools"]) {
		tool := jsonval.Obj(t)
		if tool == nil {
			continue
		}
		name := jsonval.Str(tool["name"])
		count := jsonval.Int(tool["count"])
		if name == nil || count == nil {
			continue
		}

		first := jsonval.Obj(tool["first_seen"])
		last := jsonval.Obj(tool["last_seen"])

		err := db.UpsertCursorToolCount(&storage.CursorToolCount{
			Name:               *name,
			Count:              *count,
			FirstRowID:         jsonval.Int(first["rowid"]),
			LastRowID:          jsonval.Int(last["rowid"]),
			FirstTraceID:       jsonval.Str(first["trace_id"]),
			LastTraceID:        jsonval.Str(last["trace_id"]),
			FirstBlobPrefixHex: blobPrefixFromIDMeta(first["id_meta"]),
			LastBlobPrefixHex:  blobPrefixFromIDMeta(last["id_meta"]),
			SourceDBPath:       sourceDBPath,
			MaxKeys:            maxKeys,
			FiltersJSON:        filtersJSON,
			GeneratedAtUTC:     generatedAt,
		})
		if err != nil {
			return written, fmt.Errorf("upserting tool count %q: %w", *name, err)
		}
		written++
	}
	return written, nil
}

// blobPrefixFromIDMeta pulls the cursor blob prefix out of an id_meta
// object. Only cursor_blob ids carry one.
func blobPrefixFromIDMeta(v interface{}) *string {
	meta := jsonval.Obj(v)
	if meta == nil {
		return nil
	}
	if kind := jsonval.Str(meta["kind"]); kind == nil || *kind != "cursor_blob" {
		return nil
	}
	return jsonval.Str(meta["cursor_blob_prefix_hex"])
}
