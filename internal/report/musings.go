package report

import (
	"fmt"
	"sort"

	"github.com/arclabs561/webpipe/internal/logging"
	"github.com/arclabs561/webpipe/internal/storage"
)

const topMusingDimensions = 20

// DimensionCount is one musing dimension with its occurrence count.
type DimensionCount struct {
	Dimension string `json:"dimension"`
	Count     int64  `json:"count"`
}

type JudgeMusingsTotals struct {
	JudgeEvents           int64 `json:"judge_events"`
	JudgeEventsWithMusing int64 `json:"judge_events_with_musings"`
	UnknownDimensionCount int64 `json:"unknown_dimension_count"`
}

type JudgeMusingsReport struct {
	SchemaVersion     int                `json:"schema_version"`
	Kind              string             `json:"kind"`
	GeneratedAtUTC    string             `json:"generated_at_utc"`
	Totals            JudgeMusingsTotals `json:"totals"`
	TopDimensionCount []DimensionCount   `json:"top_dimension_counts"`
}

// WriteJudgeMusings summarizes which dimensions judges muse about.
// Dimensions are short categorical labels; the musing bodies never
// reach the store.
func WriteJudgeMusings(db *storage.DB, outPath, srcSubstring string, log *logging.Logger) error {
	payload, err := buildJudgeMusingsReport(db, srcSubstring)
	if err != nil {
		return err
	}
	if err := writeJSON(outPath, payload); err != nil {
		return err
	}
	log.Info("judge musings report written", map[string]interface{}{
		"path":   outPath,
		"events": payload.Totals.JudgeEvents,
	})
	return nil
}

func buildJudgeMusingsReport(db *storage.DB, srcSubstring string) (*JudgeMusingsReport, error) {
	where, args := eventFilter("judge", srcSubstring)

	total, err := countWhere(db, "webpipe_transcript_events", where, args)
	if err != nil {
		return nil, fmt.Errorf("counting judge events: %w", err)
	}
	withMusings, err := countWhere(db, "webpipe_transcript_events",
		where+" AND judge_musing_dimensions_json IS NOT NULL", args)
	if err != nil {
		return nil, err
	}

	var unknownTotal int64
	err = db.QueryRow(
		"SELECT coalesce(sum(judge_musing_dimensions_unknown_count), 0) FROM webpipe_transcript_events WHERE "+where,
		args...).Scan(&unknownTotal)
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(
		"SELECT judge_musing_dimensions_json FROM webpipe_transcript_events WHERE "+where+
			" AND judge_musing_dimensions_json IS NOT NULL",
		args...)
	if err != nil {
		return nil, fmt.Errorf("querying musing dimensions: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var dimsJSON *string
		if err := rows.Scan(&dimsJSON); err != nil {
			return nil, err
		}
		for _, dim := range decodeStrList(dimsJSON) {
			counts[dim]++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	top := make([]DimensionCount, 0, len(counts))
	for dim, n := range counts {
		top = append(top, DimensionCount{Dimension: dim, Count: n})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Count != top[j].Count {
			return top[i].Count > top[j].Count
		}
		return top[i].Dimension < top[j].Dimension
	})
	if len(top) > topMusingDimensions {
		top = top[:topMusingDimensions]
	}

	return &JudgeMusingsReport{
		SchemaVersion:  reportSchemaVersion,
		Kind:           JudgeMusingsReportKind,
		GeneratedAtUTC: nowUTC(),
		Totals: JudgeMusingsTotals{
			JudgeEvents:           total,
			JudgeEventsWithMusing: withMusings,
			UnknownDimensionCount: unknownTotal,
		},
		TopDimensionCount: top,
	}, nil
}
