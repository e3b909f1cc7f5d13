package report

import (
	"fmt"

	"github.com/arclabs561/webpipe/internal/logging"
	"github.com/arclabs561/webpipe/internal/storage"
)

const worstCaseLimit = 10

// ContextCase identifies one judge call whose context looked thin. The
// call id is opaque; no prompt or evidence text appears.
type ContextCase struct {
	CallID            *string  `json:"call_id"`
	OverallScore      *float64 `json:"overall_score"`
	ObservedURLCount  *int64   `json:"observed_url_count"`
	WarningsCount     *int64   `json:"warnings_count"`
	EvidenceChars     *int64   `json:"evidence_chars"`
	EvidenceTruncated *int64   `json:"evidence_truncated"`
}

type JudgeContextTotals struct {
	JudgeEvents            int64 `json:"judge_events"`
	JudgeEventsWithContext int64 `json:"judge_events_with_context"`
	EvidenceTruncated      int64 `json:"evidence_truncated"`
	ObservedURLCountLE0    int64 `json:"observed_url_count_le_0"`
	EvidenceCharsLT400     int64 `json:"evidence_chars_lt_400"`
}

// EvidenceBuckets is a coarse histogram of evidence sizes.
type EvidenceBuckets struct {
	Under400 int64 `json:"<400"`
	To799    int64 `json:"400-799"`
	To1499   int64 `json:"800-1499"`
	From1500 int64 `json:"1500+"`
}

type JudgeContextReport struct {
	SchemaVersion        int                `json:"schema_version"`
	Kind                 string             `json:"kind"`
	GeneratedAtUTC       string             `json:"generated_at_utc"`
	Totals               JudgeContextTotals `json:"totals"`
	EvidenceCharsBuckets EvidenceBuckets    `json:"evidence_chars_buckets"`
	WorstByEvidenceChars []ContextCase      `json:"worst_by_evidence_chars"`
	WorstByScore         []ContextCase      `json:"worst_by_score"`
}

// WriteJudgeContext reports whether judges had enough context to work
// with: truncation rates, evidence-size buckets, and the worst cases by
// evidence size and by score.
func WriteJudgeContext(db *storage.DB, outPath, srcSubstring string, log *logging.Logger) error {
	payload, err := buildJudgeContextReport(db, srcSubstring)
	if err != nil {
		return err
	}
	if err := writeJSON(outPath, payload); err != nil {
		return err
	}
	log.Info("judge context report written", map[string]interface{}{
		"path":   outPath,
		"events": payload.Totals.JudgeEvents,
	})
	return nil
}

func buildJudgeContextReport(db *storage.DB, srcSubstring string) (*JudgeContextReport, error) {
	where, args := eventFilter("judge", srcSubstring)

	total, err := countWhere(db, "webpipe_transcript_events", where, args)
	if err != nil {
		return nil, fmt.Errorf("counting judge events: %w", err)
	}
	hasCtx, err := countWhere(db, "webpipe_transcript_events",
		where+" AND judge_ctx_evidence_chars IS NOT NULL", args)
	if err != nil {
		return nil, err
	}
	truncated, err := countWhere(db, "webpipe_transcript_events",
		where+" AND judge_ctx_evidence_truncated = 1", args)
	if err != nil {
		return nil, err
	}
	lowURLs, err := countWhere(db, "webpipe_transcript_events",
		where+" AND judge_ctx_observed_url_count IS NOT NULL AND judge_ctx_observed_url_count <= 0", args)
	if err != nil {
		return nil, err
	}
	lowEvidence, err := countWhere(db, "webpipe_transcript_events",
		where+" AND judge_ctx_evidence_chars IS NOT NULL AND judge_ctx_evidence_chars < 400", args)
	if err != nil {
		return nil, err
	}

	var buckets EvidenceBuckets
	rows, err := db.Query(
		"SELECT judge_ctx_evidence_chars FROM webpipe_transcript_events WHERE "+where+
			" AND judge_ctx_evidence_chars IS NOT NULL",
		args...)
	if err != nil {
		return nil, fmt.Errorf("querying evidence sizes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var n int64
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		switch {
		case n < 400:
			buckets.Under400++
		case n < 800:
			buckets.To799++
		case n < 1500:
			buckets.To1499++
		default:
			buckets.From1500++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	smallest, err := queryContextCases(db,
		where+" AND judge_ctx_evidence_chars IS NOT NULL",
		"judge_ctx_evidence_chars ASC", args)
	if err != nil {
		return nil, err
	}
	lowestScore, err := queryContextCases(db,
		where+" AND llm_overall_score IS NOT NULL",
		"llm_overall_score ASC", args)
	if err != nil {
		return nil, err
	}

	return &JudgeContextReport{
		SchemaVersion:  reportSchemaVersion,
		Kind:           JudgeContextReportKind,
		GeneratedAtUTC: nowUTC(),
		Totals: JudgeContextTotals{
			JudgeEvents:            total,
			JudgeEventsWithContext: hasCtx,
			EvidenceTruncated:      truncated,
			ObservedURLCountLE0:    lowURLs,
			EvidenceCharsLT400:     lowEvidence,
		},
		EvidenceCharsBuckets: buckets,
		WorstByEvidenceChars: smallest,
		WorstByScore:         lowestScore,
	}, nil
}

func queryContextCases(db *storage.DB, where, orderBy string, args []interface{}) ([]ContextCase, error) {
	rows, err := db.Query(fmt.Sprintf(`
		SELECT call_id, llm_overall_score, judge_ctx_observed_url_count,
		       judge_ctx_warnings_count, judge_ctx_evidence_chars, judge_ctx_evidence_truncated
		FROM webpipe_transcript_events
		WHERE %s ORDER BY %s LIMIT %d
	`, where, orderBy, worstCaseLimit), args...)
	if err != nil {
		return nil, fmt.Errorf("querying worst cases: %w", err)
	}
	defer rows.Close()

	cases := []ContextCase{}
	for rows.Next() {
		var c ContextCase
		err := rows.Scan(&c.CallID, &c.OverallScore, &c.ObservedURLCount,
			&c.WarningsCount, &c.EvidenceChars, &c.EvidenceTruncated)
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	return cases, rows.Err()
}
