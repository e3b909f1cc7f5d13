package report

import (
	"fmt"
	"sort"

	"github.com/arclabs561/webpipe/internal/logging"
	"github.com/arclabs561/webpipe/internal/storage"
)

const topFixesPerProfile = 10

// FixCount is one consensus fix with its occurrence count.
type FixCount struct {
	Fix   string `json:"fix"`
	Count int64  `json:"count"`
}

// ModelMixEntry counts inputs judged under one model/temperature pair.
type ModelMixEntry struct {
	ModelTemp string `json:"model_temp"`
	Count     int64  `json:"count"`
}

// VLMProfileRow aggregates VLM critique results for one goal profile.
type VLMProfileRow struct {
	GoalProfile       string          `json:"goal_profile"`
	Runs              int64           `json:"runs"`
	Inputs            int64           `json:"inputs"`
	AvgScore0To10     *float64        `json:"avg_score_0_10"`
	P0Total           int64           `json:"p0_total"`
	P1Total           int64           `json:"p1_total"`
	P2Total           int64           `json:"p2_total"`
	P0PerInput        *float64        `json:"p0_per_input"`
	P1PerInput        *float64        `json:"p1_per_input"`
	TopConsensusFixes []FixCount      `json:"top_consensus_fixes"`
	ModelMix          []ModelMixEntry `json:"model_mix"`
}

// VLMReport ranks goal profiles worst-first so the top of the report is
// where attention should go.
type VLMReport struct {
	SchemaVersion  int             `json:"schema_version"`
	Kind           string          `json:"kind"`
	GeneratedAtUTC string          `json:"generated_at_utc"`
	Totals         VLMTotals       `json:"totals"`
	ByGoalProfile  []VLMProfileRow `json:"by_goal_profile"`
}

type VLMTotals struct {
	VLMRuns   int64 `json:"vlm_runs"`
	VLMInputs int64 `json:"vlm_inputs"`
}

type vlmProfileAgg struct {
	runs      map[string]bool
	inputs    int64
	sumScore  float64
	scoreN    int64
	p0        int64
	p1        int64
	p2        int64
	fixCounts map[string]int64
	models    map[string]int64
}

// WriteVLM builds the per-goal-profile VLM report and writes it to
// outPath.
func WriteVLM(db *storage.DB, outPath string, log *logging.Logger) error {
	payload, err := buildVLMReport(db)
	if err != nil {
		return err
	}
	if err := writeJSON(outPath, payload); err != nil {
		return err
	}
	log.Info("vlm report written", map[string]interface{}{
		"path":     outPath,
		"profiles": len(payload.ByGoalProfile),
	})
	return nil
}

func buildVLMReport(db *storage.DB) (*VLMReport, error) {
	totalRuns, err := countWhere(db, "webpipe_eval_vlm_runs", "1=1", nil)
	if err != nil {
		return nil, fmt.Errorf("counting vlm runs: %w", err)
	}
	totalInputs, err := countWhere(db, "webpipe_eval_vlm_per_input", "1=1", nil)
	if err != nil {
		return nil, fmt.Errorf("counting vlm inputs: %w", err)
	}

	rows, err := db.Query(`
		SELECT r.run_key, r.goal_profiles_json, r.model, r.temperature,
		       i.score_0_10, i.p0_count, i.p1_count, i.p2_count,
		       i.consensus_fixes_json
		FROM webpipe_eval_vlm_runs r
		JOIN webpipe_eval_vlm_per_input i ON i.run_key = r.run_key
	`)
	if err != nil {
		return nil, fmt.Errorf("querying vlm inputs: %w", err)
	}
	defer rows.Close()

	byProfile := make(map[string]*vlmProfileAgg)
	for rows.Next() {
		var runKey string
		var profilesJSON, model, fixesJSON *string
		var temp, score *float64
		var p0, p1, p2 int64
		if err := rows.Scan(&runKey, &profilesJSON, &model, &temp, &score, &p0, &p1, &p2, &fixesJSON); err != nil {
			return nil, err
		}

		profiles := decodeStrList(profilesJSON)
		if len(profiles) == 0 {
			profiles = []string{"<no_goal_profile>"}
		}
		fixes := decodeStrList(fixesJSON)

		for _, prof := range profiles {
			agg := byProfile[prof]
			if agg == nil {
				agg = &vlmProfileAgg{
					runs:      make(map[string]bool),
					fixCounts: make(map[string]int64),
					models:    make(map[string]int64),
				}
				byProfile[prof] = agg
			}
			agg.runs[runKey] = true
			agg.inputs++
			if score != nil {
				agg.sumScore += *score
				agg.scoreN++
			}
			agg.p0 += p0
			agg.p1 += p1
			agg.p2 += p2
			for _, f := range fixes {
				agg.fixCounts[f]++
			}
			agg.models[modelTempKey(model, temp)]++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	profRows := make([]VLMProfileRow, 0, len(byProfile))
	for prof, agg := range byProfile {
		row := VLMProfileRow{
			GoalProfile:       prof,
			Runs:              int64(len(agg.runs)),
			Inputs:            agg.inputs,
			P0Total:           agg.p0,
			P1Total:           agg.p1,
			P2Total:           agg.p2,
			TopConsensusFixes: topCounts(agg.fixCounts, topFixesPerProfile),
			ModelMix:          modelMix(agg.models),
		}
		if agg.scoreN > 0 {
			avg := agg.sumScore / float64(agg.scoreN)
			row.AvgScore0To10 = &avg
		}
		if agg.inputs > 0 {
			d0 := float64(agg.p0) / float64(agg.inputs)
			d1 := float64(agg.p1) / float64(agg.inputs)
			row.P0PerInput = &d0
			row.P1PerInput = &d1
		}
		profRows = append(profRows, row)
	}

	// Worst first: P0 density, then P1 density, then average score
	// descending, with profile name as the tiebreak.
	sort.Slice(profRows, func(i, j int) bool {
		a, b := profRows[i], profRows[j]
		if d := deref(a.P0PerInput) - deref(b.P0PerInput); d != 0 {
			return d > 0
		}
		if d := deref(a.P1PerInput) - deref(b.P1PerInput); d != 0 {
			return d > 0
		}
		if d := deref(a.AvgScore0To10) - deref(b.AvgScore0To10); d != 0 {
			return d > 0
		}
		return a.GoalProfile < b.GoalProfile
	})

	return &VLMReport{
		SchemaVersion:  reportSchemaVersion,
		Kind:           VLMReportKind,
		GeneratedAtUTC: nowUTC(),
		Totals:         VLMTotals{VLMRuns: totalRuns, VLMInputs: totalInputs},
		ByGoalProfile:  profRows,
	}, nil
}

func modelTempKey(model *string, temp *float64) string {
	m := "<unknown_model>"
	if model != nil {
		m = *model
	}
	t := "na"
	if temp != nil {
		t = trimFloat(*temp)
	}
	return m + "@" + t
}

func trimFloat(f float64) string {
	return fmt.Sprintf("%g", f)
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

// topCounts returns the k highest counts, ties broken by name.
func topCounts(counts map[string]int64, k int) []FixCount {
	out := make([]FixCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, FixCount{Fix: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Fix < out[j].Fix
	})
	if len(out) > k {
		out = out[:k]
	}
	return out
}

func modelMix(models map[string]int64) []ModelMixEntry {
	out := make([]ModelMixEntry, 0, len(models))
	for name, n := range models {
		out = append(out, ModelMixEntry{ModelTemp: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].ModelTemp < out[j].ModelTemp
	})
	return out
}
