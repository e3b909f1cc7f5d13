package artifacts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/arclabs561/webpipe/internal/jsonval"
	"github.com/arclabs561/webpipe/internal/logging"
	"github.com/arclabs561/webpipe/internal/storage"
	"github.com/arclabs561/webpipe/internal/vocab"
)

// JudgeSwarmKind tags a judge-swarm run summary.
const JudgeSwarmKind = "webpipe_eval_judge_swarm"

// Judge-swarm artifacts have existed under a few filename conventions
// over time; explicit patterns keep the scan bounded.
var judgeSwarmPatterns = []string{
	"webpipe-eval-judge-swarm-*.json",
	"judge-swarm-*.json",
	"tmp-eval-judge-swarm.json",
	"tmp-live-swarm*.json",
}

// IngestJudgeSwarm loads judge-swarm run summaries from the .generated
// directory. Returns the number of runs ingested.
func IngestJudgeSwarm(db *storage.DB, root string, log *logging.Logger) (int64, error) {
	genDir := filepath.Join(root, generatedDirName)
	if st, err := os.Stat(genDir); err != nil || !st.IsDir() {
		return 0, nil
	}

	paths, err := globArtifacts(genDir, judgeSwarmPatterns)
	if err != nil {
		return 0, err
	}

	var runs int64
	for _, p := range paths {
		obj := readArtifactObject(p, log)
		if obj == nil {
			continue
		}

		kind := jsonval.Str(obj["kind"])
		schemaVersion := jsonval.Int(obj["schema_version"])
		generatedAt := jsonval.Int(obj["generated_at_epoch_s"])

		// Older artifacts omitted kind/schema_version; infer from shape
		// so historical runs remain analyzable.
		if kind == nil {
			if jsonval.Obj(obj["inputs"]) != nil && jsonval.List(obj["judge_reports"]) != nil {
				k := JudgeSwarmKind
				kind = &k
			}
		}
		if schemaVersion == nil && kind != nil && *kind == JudgeSwarmKind {
			v := int64(1)
			schemaVersion = &v
		}
		if err := recordArtifactFile(db, p, kind, schemaVersion, generatedAt); err != nil {
			return runs, fmt.Errorf("recording artifact %s: %w", p, err)
		}
		if kind == nil || *kind != JudgeSwarmKind {
			continue
		}

		key := runKey(root, p)
		if err := ingestJudgeSwarmRun(db, key, generatedAt, obj); err != nil {
			return runs, fmt.Errorf("ingesting judge swarm %s: %w", key, err)
		}
		runs++
	}

	log.Info("judge swarm runs ingested", map[string]interface{}{"runs": runs})
	return runs, nil
}

func ingestJudgeSwarmRun(db *storage.DB, key string, generatedAt *int64, obj map[string]interface{}) error {
	inputs := jsonval.Obj(obj["inputs"])
	run := &storage.JudgeSwarmRun{
		RunKey:            key,
		GeneratedAtEpochS: generatedAt,
		LLMBackend:        jsonval.Str(inputs["llm_backend"]),
		LLMModelEffective: jsonval.Str(inputs["llm_model_effective"]),
		JSONMode:          jsonval.Bool(inputs["json_mode"]),
		Provider:          jsonval.Str(inputs["provider"]),
		AutoMode:          jsonval.Str(inputs["auto_mode"]),
		SelectionMode:     jsonval.Str(inputs["selection_mode"]),
		FetchBackend:      jsonval.Str(inputs["fetch_backend"]),
		TrialSet:          jsonval.Str(inputs["trial_set"]),
		MaxQueries:        jsonval.Int(inputs["max_queries"]),
		Seed:              jsonval.Int(inputs["seed"]),
	}
	if err := db.UpsertJudgeSwarmRun(run); err != nil {
		return err
	}

	// Re-ingest replaces the child rows wholesale so a rerun never
	// accumulates duplicates.
	if err := db.ReplaceJudgeSwarmRunChildren(key); err != nil {
		return err
	}

	if meta := jsonval.Obj(obj["meta"]); meta != nil {
		failures := vocab.NormalizeIssueList(meta["top_systemic_failures"])
		if err := db.UpsertJudgeMeta(&storage.JudgeMeta{
			RunKey:                         key,
			OverallAssessment:              jsonval.Str(meta["overall_assessment"]),
			CrossJudgeAgreement:            jsonval.Str(meta["cross_judge_agreement"]),
			TopSystemicFailuresJSON:        failures.RawJSON,
			TopSystemicFailuresNormJSON:    failures.NormJSON,
			TopSystemicFailuresUnknown:     &failures.Unknown,
			Top3FixesJSON:                  jsonval.MarshalStrList(meta["top_3_fixes"]),
			RecommendedNextExperimentsJSON: jsonval.MarshalStrList(meta["recommended_next_experiments"]),
			TopDimensionsJSON:              jsonval.MarshalStrList(meta["top_dimensions"]),
			TopMusingsJSON:                 jsonval.MarshalStrList(meta["top_musings"]),
		}); err != nil {
			return err
		}
	}

	for _, jr := range jsonval.List(obj["judge_reports"]) {
		report := jsonval.Obj(jr)
		if report == nil {
			continue
		}
		if err := ingestJudgeReport(db, key, report); err != nil {
			return err
		}
	}
	return nil
}

func ingestJudgeReport(db *storage.DB, key string, report map[string]interface{}) error {
	judgeID := jsonval.Str(report["judge_id"])
	totals := jsonval.Obj(report["totals"])
	overall := jsonval.Obj(report["overall"])
	modes := vocab.NormalizeIssueList(overall["top_failure_modes"])

	err := db.InsertJudgeAgentReport(&storage.JudgeAgentReport{
		RunKey:                 key,
		JudgeID:                judgeID,
		TotalsQueries:          jsonval.Int(totals["queries"]),
		TotalsTrials:           jsonval.Int(totals["trials"]),
		TotalsLLMOK:            jsonval.Int(totals["llm_ok"]),
		TotalsLLMFailed:        jsonval.Int(totals["llm_failed"]),
		TotalsLLMParseFailed:   jsonval.Int(totals["llm_parse_failed"]),
		HitExpectedURLAnyTrial: jsonval.Int(totals["hit_expected_url_any_trial"]),
		OverallConfidence:      jsonval.Float(overall["confidence"]),
		TopFailureModesJSON:    modes.RawJSON,
		TopFailureModesNorm:    modes.NormJSON,
		TopFailureModesUnknown: &modes.Unknown,
	})
	if err != nil {
		return err
	}

	for _, pq := range jsonval.List(report["per_query"]) {
		query := jsonval.Obj(pq)
		if query == nil {
			continue
		}
		queryID := jsonval.Str(query["query_id"])
		for _, tr := range jsonval.List(query["trials"]) {
			trial := jsonval.Obj(tr)
			if trial == nil {
				continue
			}
			judge := jsonval.Obj(trial["judge"])
			issues := vocab.NormalizeIssueList(judge["issues"])

			var observedURLCount, warningsCount *int64
			if urls := jsonval.List(trial["observed_urls"]); urls != nil {
				n := int64(len(urls))
				observedURLCount = &n
			}
			if warns := jsonval.List(trial["warnings"]); warns != nil {
				n := int64(len(warns))
				warningsCount = &n
			}

			err := db.InsertJudgeTrial(&storage.JudgeTrial{
				RunKey:             key,
				JudgeID:            judgeID,
				QueryID:            queryID,
				TrialID:            jsonval.Str(trial["trial_id"]),
				Agentic:            jsonval.Bool(trial["agentic"]),
				AgenticSelector:    jsonval.Str(trial["agentic_selector"]),
				FetchBackend:       jsonval.Str(trial["fetch_backend"]),
				URLSelectionMode:   jsonval.Str(trial["url_selection_mode"]),
				ElapsedMs:          jsonval.Int(trial["elapsed_ms"]),
				OK:                 jsonval.Bool(trial["ok"]),
				ObservedURLCount:   observedURLCount,
				WarningsCount:      warningsCount,
				JudgeTextTruncated: jsonval.Bool(trial["judge_text_truncated"]),
				JudgeOverallScore:  jsonval.Float(judge["overall_score"]),
				JudgeAnswerable:    jsonval.Bool(judge["answerable"]),
				JudgeRelevant:      jsonval.Bool(judge["relevant"]),
				JudgeConfidence:    jsonval.Float(judge["confidence"]),
				JudgeIssuesJSON:    issues.RawJSON,
				JudgeIssuesNorm:    issues.NormJSON,
				JudgeIssuesUnknown: &issues.Unknown,
				HitExpectedURL:     jsonval.Bool(trial["hit_expected_url"]),
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// readArtifactObject parses a JSON artifact into a map. Undecodable or
// non-object payloads are skipped with a warning.
func readArtifactObject(path string, log *logging.Logger) map[string]interface{} {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn("cannot read artifact", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
		return nil
	}
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		log.Warn("artifact is not valid JSON", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
		return nil
	}
	obj, ok := raw.(map[string]interface{})
	if !ok {
		return nil
	}
	return obj
}
