// Package report derives small, actionable JSON reports from an
// exported store. Reports carry counts, rates, and controlled strings
// only; nothing from a fetched page or a judge's prose ever appears.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/arclabs561/webpipe/internal/storage"
)

// Report payload kinds.
const (
	VLMReportKind          = "webpipe_self_opt_vlm_report"
	CriticReportKind       = "webpipe_self_opt_critic_report"
	JudgeMusingsReportKind = "webpipe_self_opt_judge_musings_report"
	JudgeContextReportKind = "webpipe_self_opt_judge_context_report"
)

const reportSchemaVersion = 1

// nowUTC returns the report timestamp. Swapped out in tests.
var nowUTC = func() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// writeJSON writes a payload as indented JSON, creating parent
// directories as needed.
func writeJSON(path string, payload interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating report dir: %w", err)
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing report %s: %w", path, err)
	}
	return nil
}

// eventFilter builds the WHERE clause for transcript-event reports. The
// optional substring restricts aggregation to transcripts whose source
// path contains it.
func eventFilter(stage, srcSubstring string) (string, []interface{}) {
	where := "stage = ?"
	args := []interface{}{stage}
	if s := strings.TrimSpace(srcSubstring); s != "" {
		where += " AND instr(src_path, ?) > 0"
		args = append(args, s)
	}
	return where, args
}

// countWhere runs a single count(*) with the given filter.
func countWhere(db *storage.DB, table, where string, args []interface{}) (int64, error) {
	var n int64
	err := db.QueryRow("SELECT count(*) FROM "+table+" WHERE "+where, args...).Scan(&n)
	return n, err
}

// decodeStrList parses a stored JSON list column, keeping only
// non-blank strings.
func decodeStrList(s *string) []string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	var raw []interface{}
	if err := json.Unmarshal([]byte(*s), &raw); err != nil {
		return nil
	}
	var out []string
	for _, v := range raw {
		str, ok := v.(string)
		if !ok || strings.TrimSpace(str) == "" {
			continue
		}
		out = append(out, strings.TrimSpace(str))
	}
	return out
}
