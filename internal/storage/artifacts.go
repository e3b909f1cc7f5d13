package storage

// ArtifactFile is the provenance row for one discovered eval artifact.
type ArtifactFile struct {
	Path              string
	Kind              *string
	SchemaVersion     *int64
	GeneratedAtEpochS *int64
	MtimeEpochS       int64
	Bytes             int64
}

// UpsertArtifactFile records artifact-file provenance, keyed by path.
func (db *DB) UpsertArtifactFile(f *ArtifactFile) error {
	_, err := db.Exec(`
		INSERT OR REPLACE INTO webpipe_eval_artifact_files(
		  path, kind, schema_version, generated_at_epoch_s, mtime_epoch_s, bytes
		) VALUES (?, ?, ?, ?, ?, ?)
	`, f.Path, f.Kind, f.SchemaVersion, f.GeneratedAtEpochS, f.MtimeEpochS, f.Bytes)
	return err
}

// JudgeSwarmRun is the top-level configuration of one judge-swarm artifact.
// RunKey is the artifact path relative to the webpipe root, which makes
// re-ingestion of an unchanged file set idempotent.
type JudgeSwarmRun struct {
	RunKey            string
	GeneratedAtEpochS *int64
	LLMBackend        *string
	LLMModelEffective *string
	JSONMode          *int64
	Provider          *string
	AutoMode          *string
	SelectionMode     *string
	FetchBackend      *string
	TrialSet          *string
	MaxQueries        *int64
	Seed              *int64
}

// UpsertJudgeSwarmRun writes the run row, replacing any previous row with
// the same key.
func (db *DB) UpsertJudgeSwarmRun(r *JudgeSwarmRun) error {
	_, err := db.Exec(`
		INSERT OR REPLACE INTO webpipe_eval_judge_swarm_runs(
		  run_key, generated_at_epoch_s, llm_backend, llm_model_effective, json_mode,
		  provider, auto_mode, selection_mode, fetch_backend, trial_set, max_queries, seed
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.RunKey, r.GeneratedAtEpochS, r.LLMBackend, r.LLMModelEffective, r.JSONMode,
		r.Provider, r.AutoMode, r.SelectionMode, r.FetchBackend, r.TrialSet, r.MaxQueries, r.Seed)
	return err
}

// JudgeMeta is the optional meta-judge summary attached to a run.
type JudgeMeta struct {
	RunKey                        string
	OverallAssessment             *string
	CrossJudgeAgreement           *string
	TopSystemicFailuresJSON       *string
	TopSystemicFailuresNormJSON   *string
	TopSystemicFailuresUnknown    *int64
	Top3FixesJSON                 *string
	RecommendedNextExperimentsJSON *string
	TopDimensionsJSON             *string
	TopMusingsJSON                *string
}

// UpsertJudgeMeta writes the meta-judge summary row.
func (db *DB) UpsertJudgeMeta(m *JudgeMeta) error {
	_, err := db.Exec(`
		INSERT OR REPLACE INTO webpipe_eval_judge_meta(
		  run_key, overall_assessment, cross_judge_agreement,
		  top_systemic_failures_json, top_systemic_failures_norm_json, top_systemic_failures_unknown_count,
		  top_3_fixes_json, recommended_next_experiments_json,
		  top_dimensions_json, top_musings_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.RunKey, m.OverallAssessment, m.CrossJudgeAgreement,
		m.TopSystemicFailuresJSON, m.TopSystemicFailuresNormJSON, m.TopSystemicFailuresUnknown,
		m.Top3FixesJSON, m.RecommendedNextExperimentsJSON,
		m.TopDimensionsJSON, m.TopMusingsJSON)
	return err
}

// JudgeAgentReport holds one judge agent's totals within a run.
type JudgeAgentReport struct {
	RunKey                 string
	JudgeID                *string
	TotalsQueries          *int64
	TotalsTrials           *int64
	TotalsLLMOK            *int64
	TotalsLLMFailed        *int64
	TotalsLLMParseFailed   *int64
	HitExpectedURLAnyTrial *int64
	OverallConfidence      *float64
	TopFailureModesJSON    *string
	TopFailureModesNorm    *string
	TopFailureModesUnknown *int64
}

// InsertJudgeAgentReport appends one agent report. Reports are not keyed:
// the parent run is replaced wholesale, and ReplaceJudgeSwarmRunChildren
// clears children first.
func (db *DB) InsertJudgeAgentReport(r *JudgeAgentReport) error {
	_, err := db.Exec(`
		INSERT INTO webpipe_eval_judge_agent_reports(
		  run_key, judge_id,
		  totals_queries, totals_trials, totals_llm_ok, totals_llm_failed, totals_llm_parse_failed,
		  hit_expected_url_any_trial, overall_confidence,
		  top_failure_modes_json, top_failure_modes_norm_json, top_failure_modes_unknown_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.RunKey, r.JudgeID,
		r.TotalsQueries, r.TotalsTrials, r.TotalsLLMOK, r.TotalsLLMFailed, r.TotalsLLMParseFailed,
		r.HitExpectedURLAnyTrial, r.OverallConfidence,
		r.TopFailureModesJSON, r.TopFailureModesNorm, r.TopFailureModesUnknown)
	return err
}

// JudgeTrial is one trial outcome under a judge agent. Counts (observed
// URLs, warnings) derive from list lengths; list contents never land here.
type JudgeTrial struct {
	RunKey             string
	JudgeID            *string
	QueryID            *string
	TrialID            *string
	Agentic            *int64
	AgenticSelector    *string
	FetchBackend       *string
	URLSelectionMode   *string
	ElapsedMs          *int64
	OK                 *int64
	ObservedURLCount   *int64
	WarningsCount      *int64
	JudgeTextTruncated *int64
	JudgeOverallScore  *float64
	JudgeAnswerable    *int64
	JudgeRelevant      *int64
	JudgeConfidence    *float64
	JudgeIssuesJSON    *string
	JudgeIssuesNorm    *string
	JudgeIssuesUnknown *int64
	HitExpectedURL     *int64
}

// InsertJudgeTrial appends one trial row.
func (db *DB) InsertJudgeTrial(t *JudgeTrial) error {
	_, err := db.Exec(`
		INSERT INTO webpipe_eval_judge_trials(
		  run_key, judge_id, query_id, trial_id,
		  agentic, agentic_selector, fetch_backend, url_selection_mode,
		  elapsed_ms, ok, observed_url_count, warnings_count, judge_text_truncated,
		  judge_overall_score, judge_answerable, judge_relevant, judge_confidence,
		  judge_issues_json, judge_issues_norm_json, judge_issues_unknown_count,
		  hit_expected_url
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.RunKey, t.JudgeID, t.QueryID, t.TrialID,
		t.Agentic, t.AgenticSelector, t.FetchBackend, t.URLSelectionMode,
		t.ElapsedMs, t.OK, t.ObservedURLCount, t.WarningsCount, t.JudgeTextTruncated,
		t.JudgeOverallScore, t.JudgeAnswerable, t.JudgeRelevant, t.JudgeConfidence,
		t.JudgeIssuesJSON, t.JudgeIssuesNorm, t.JudgeIssuesUnknown,
		t.HitExpectedURL)
	return err
}

// ReplaceJudgeSwarmRunChildren deletes agent reports and trials for a run
// key before re-insertion, keeping artifact re-ingestion idempotent even
// though child rows carry autoincrement ids.
func (db *DB) ReplaceJudgeSwarmRunChildren(runKey string) error {
	if _, err := db.Exec(
		"DELETE FROM webpipe_eval_judge_agent_reports WHERE run_key = ?", runKey); err != nil {
		return err
	}
	_, err := db.Exec(
		"DELETE FROM webpipe_eval_judge_trials WHERE run_key = ?", runKey)
	return err
}

// VLMRun is one vision-model eval run summary.
type VLMRun struct {
	RunKey                string
	GeneratedAtEpochS     *int64
	Model                 *string
	Temperature           *float64
	Trials                *int64
	Images                *int64
	TotalsRuns            *int64
	TotalsParsedOK        *int64
	GoalsCount            *int64
	GoalProfilesJSON      *string
	OutDir                *string
	TranscriptJSONL       *string
	TranscriptEvents      *int64
	TranscriptVLMEvents   *int64
	TranscriptVLMSchemaOK *int64
	Top3FixesJSON         *string
}

// UpsertVLMRun writes the run summary row, replacing by key.
func (db *DB) UpsertVLMRun(r *VLMRun) error {
	_, err := db.Exec(`
		INSERT OR REPLACE INTO webpipe_eval_vlm_runs(
		  run_key, generated_at_epoch_s, model, temperature, trials, images,
		  totals_runs, totals_parsed_ok, goals_count, goal_profiles_json,
		  out_dir, transcript_jsonl,
		  transcript_events, transcript_vlm_events, transcript_vlm_schema_ok,
		  top_3_fixes_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.RunKey, r.GeneratedAtEpochS, r.Model, r.Temperature, r.Trials, r.Images,
		r.TotalsRuns, r.TotalsParsedOK, r.GoalsCount, r.GoalProfilesJSON,
		r.OutDir, r.TranscriptJSONL,
		r.TranscriptEvents, r.TranscriptVLMEvents, r.TranscriptVLMSchemaOK,
		r.Top3FixesJSON)
	return err
}

// VLMPerInput is one evaluated input under a VLM run.
type VLMPerInput struct {
	RunKey             string
	ImageIndex         *int64
	ImagePath          *string
	ParsedOK           *int64
	Score0To10         *float64
	IssuesCount        *int64
	P0Count            int64
	P1Count            int64
	P2Count            int64
	ConsensusFixesJSON *string
	Top3FixesJSON      *string
}

// InsertVLMPerInput appends one per-input row.
func (db *DB) InsertVLMPerInput(r *VLMPerInput) error {
	_, err := db.Exec(`
		INSERT INTO webpipe_eval_vlm_per_input(
		  run_key, image_index, image_path, parsed_ok, score_0_10,
		  issues_count, p0_count, p1_count, p2_count,
		  consensus_fixes_json, top_3_fixes_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.RunKey, r.ImageIndex, r.ImagePath, r.ParsedOK, r.Score0To10,
		r.IssuesCount, r.P0Count, r.P1Count, r.P2Count,
		r.ConsensusFixesJSON, r.Top3FixesJSON)
	return err
}

// ReplaceVLMRunChildren deletes per-input rows for a run key before
// re-insertion.
func (db *DB) ReplaceVLMRunChildren(runKey string) error {
	_, err := db.Exec(
		"DELETE FROM webpipe_eval_vlm_per_input WHERE run_key = ?", runKey)
	return err
}
