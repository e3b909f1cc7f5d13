package report

import (
	"fmt"
	"sort"

	"github.com/arclabs561/webpipe/internal/logging"
	"github.com/arclabs561/webpipe/internal/storage"
)

const topCriticIssues = 20

// IssueCount is one normalized critic issue with its occurrence count.
type IssueCount struct {
	Issue string `json:"issue"`
	Count int64  `json:"count"`
}

type CriticTotals struct {
	CriticEvents       int64 `json:"critic_events"`
	CriticMarkdownOK   int64 `json:"critic_markdown_ok"`
	CriticStructuredOK int64 `json:"critic_structured_ok"`
	UnknownIssueCount  int64 `json:"unknown_issue_count"`
}

type CriticReport struct {
	SchemaVersion  int          `json:"schema_version"`
	Kind           string       `json:"kind"`
	GeneratedAtUTC string       `json:"generated_at_utc"`
	Totals         CriticTotals `json:"totals"`
	TopIssueCounts []IssueCount `json:"top_issue_counts"`
}

// WriteCritic summarizes critic transcript events: pass rates plus the
// most frequent normalized issues.
func WriteCritic(db *storage.DB, outPath, srcSubstring string, log *logging.Logger) error {
	payload, err := buildCriticReport(db, srcSubstring)
	if err != nil {
		return err
	}
	if err := writeJSON(outPath, payload); err != nil {
		return err
	}
	log.Info("critic report written", map[string]interface{}{
		"path":   outPath,
		"events": payload.Totals.CriticEvents,
	})
	return nil
}

func buildCriticReport(db *storage.DB, srcSubstring string) (*CriticReport, error) {
	where, args := eventFilter("critic", srcSubstring)

	total, err := countWhere(db, "webpipe_transcript_events", where, args)
	if err != nil {
		return nil, fmt.Errorf("counting critic events: %w", err)
	}
	okMarkdown, err := countWhere(db, "webpipe_transcript_events", where+" AND critic_markdown_ok = 1", args)
	if err != nil {
		return nil, err
	}
	okStructured, err := countWhere(db, "webpipe_transcript_events", where+" AND critic_structured_ok = 1", args)
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(
		"SELECT critic_issues_norm_json, critic_issues_unknown_count FROM webpipe_transcript_events WHERE "+where,
		args...)
	if err != nil {
		return nil, fmt.Errorf("querying critic issues: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	var unknownTotal int64
	for rows.Next() {
		var normJSON *string
		var unknown *int64
		if err := rows.Scan(&normJSON, &unknown); err != nil {
			return nil, err
		}
		if unknown != nil {
			unknownTotal += *unknown
		}
		for _, issue := range decodeStrList(normJSON) {
			counts[issue]++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	top := make([]IssueCount, 0, len(counts))
	for issue, n := range counts {
		top = append(top, IssueCount{Issue: issue, Count: n})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Count != top[j].Count {
			return top[i].Count > top[j].Count
		}
		return top[i].Issue < top[j].Issue
	})
	if len(top) > topCriticIssues {
		top = top[:topCriticIssues]
	}

	return &CriticReport{
		SchemaVersion:  reportSchemaVersion,
		Kind:           CriticReportKind,
		GeneratedAtUTC: nowUTC(),
		Totals: CriticTotals{
			CriticEvents:       total,
			CriticMarkdownOK:   okMarkdown,
			CriticStructuredOK: okStructured,
			UnknownIssueCount:  unknownTotal,
		},
		TopIssueCounts: top,
	}, nil
}
