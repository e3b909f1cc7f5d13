package storage

import "database/sql"

// schemaStatements creates every table for a fresh export. The store is
// rebuilt from scratch each run, so there are no migrations: the schema is
// whatever this export wrote.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS meta (
	  k TEXT PRIMARY KEY,
	  v TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS cursor_tool_counts (
	  name TEXT PRIMARY KEY,
	  count INTEGER NOT NULL,
	  first_rowid INTEGER,
	  last_rowid INTEGER,
	  first_trace_id TEXT,
	  last_trace_id TEXT,
	  first_blob_prefix_hex TEXT,
	  last_blob_prefix_hex TEXT,
	  source_db_path TEXT,
	  max_keys INTEGER,
	  filters_json TEXT,
	  generated_at_utc TEXT
	)`,

	`CREATE TABLE IF NOT EXISTS webpipe_transcript_files (
	  path TEXT PRIMARY KEY,
	  mtime_epoch_s INTEGER,
	  bytes INTEGER
	)`,

	`CREATE TABLE IF NOT EXISTS webpipe_transcript_events (
	  id INTEGER PRIMARY KEY AUTOINCREMENT,
	  src_path TEXT NOT NULL,
	  seq INTEGER,
	  generated_at_epoch_s INTEGER,
	  run_kind TEXT,
	  stage TEXT,
	  call_id TEXT,
	  tool_name TEXT,
	  tool_elapsed_ms INTEGER,
	  tool_ok INTEGER,
	  tool_provider TEXT,
	  tool_fetch_backend TEXT,
	  tool_warning_count INTEGER,
	  tool_cache_hit INTEGER,
	  tool_args_truncated INTEGER,
	  tool_result_truncated INTEGER,
	  tool_args_json_ok INTEGER,
	  tool_result_json_ok INTEGER,
	  tool_args_sha256 TEXT,
	  tool_result_sha256 TEXT,
	  wse_requested_provider TEXT,
	  wse_auto_mode TEXT,
	  wse_selection_mode TEXT,
	  wse_fetch_backend TEXT,
	  wse_agentic INTEGER,
	  wse_agentic_selector TEXT,
	  wse_url_selection_mode TEXT,
	  wse_max_urls INTEGER,
	  wse_max_chars INTEGER,
	  wse_top_chunks INTEGER,
	  wse_max_chunk_chars INTEGER,
	  wse_include_text INTEGER,
	  wse_include_links INTEGER,
	  wse_cache_read INTEGER,
	  wse_cache_write INTEGER,
	  wse_no_network INTEGER,
	  wse_results_count INTEGER,
	  wse_top_chunks_count INTEGER,
	  attempt INTEGER,
	  llm_backend TEXT,
	  llm_model_effective TEXT,
	  llm_json_mode INTEGER,
	  llm_timeout_ms INTEGER,
	  llm_timing_ms INTEGER,
	  llm_error_present INTEGER,
	  llm_parse_ok INTEGER,
	  llm_schema_ok INTEGER,
	  prompt_system_chars INTEGER,
	  prompt_user_chars INTEGER,
	  prompt_truncated INTEGER,
	  prompt_system_sha256 TEXT,
	  prompt_user_sha256 TEXT,
	  response_raw_chars INTEGER,
	  response_raw_truncated INTEGER,
	  response_raw_sha256 TEXT,
	  llm_overall_score REAL,
	  judge_ctx_observed_url_count INTEGER,
	  judge_ctx_warnings_count INTEGER,
	  judge_ctx_evidence_chars INTEGER,
	  judge_ctx_evidence_truncated INTEGER,
	  judge_musings_count INTEGER,
	  judge_musing_dimensions_json TEXT,
	  judge_musing_dimensions_unknown_count INTEGER,
	  vlm_profile TEXT,
	  vlm_goal_profiles_json TEXT,
	  vlm_score_0_10 REAL,
	  vlm_verdict TEXT,
	  vlm_issues_count INTEGER,
	  vlm_p0_count INTEGER,
	  vlm_p1_count INTEGER,
	  vlm_p2_count INTEGER,
	  vlm_top_3_fixes_json TEXT,
	  critic_issues_json TEXT,
	  critic_issues_norm_json TEXT,
	  critic_issues_unknown_count INTEGER,
	  critic_markdown_ok INTEGER,
	  critic_structured_ok INTEGER,
	  FOREIGN KEY (src_path) REFERENCES webpipe_transcript_files(path)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_webpipe_transcript_events_stage
	  ON webpipe_transcript_events(run_kind, stage)`,
	`CREATE INDEX IF NOT EXISTS idx_webpipe_transcript_events_tool
	  ON webpipe_transcript_events(tool_name)`,

	`CREATE TABLE IF NOT EXISTS webpipe_eval_artifact_files (
	  path TEXT PRIMARY KEY,
	  kind TEXT,
	  schema_version INTEGER,
	  generated_at_epoch_s INTEGER,
	  mtime_epoch_s INTEGER,
	  bytes INTEGER
	)`,

	`CREATE TABLE IF NOT EXISTS webpipe_eval_judge_swarm_runs (
	  run_key TEXT PRIMARY KEY,
	  generated_at_epoch_s INTEGER,
	  llm_backend TEXT,
	  llm_model_effective TEXT,
	  json_mode INTEGER,
	  provider TEXT,
	  auto_mode TEXT,
	  selection_mode TEXT,
	  fetch_backend TEXT,
	  trial_set TEXT,
	  max_queries INTEGER,
	  seed INTEGER
	)`,

	`CREATE TABLE IF NOT EXISTS webpipe_eval_judge_meta (
	  run_key TEXT PRIMARY KEY,
	  overall_assessment TEXT,
	  cross_judge_agreement TEXT,
	  top_systemic_failures_json TEXT,
	  top_systemic_failures_norm_json TEXT,
	  top_systemic_failures_unknown_count INTEGER,
	  top_3_fixes_json TEXT,
	  recommended_next_experiments_json TEXT,
	  top_dimensions_json TEXT,
	  top_musings_json TEXT,
	  FOREIGN KEY (run_key) REFERENCES webpipe_eval_judge_swarm_runs(run_key)
	)`,

	`CREATE TABLE IF NOT EXISTS webpipe_eval_judge_agent_reports (
	  id INTEGER PRIMARY KEY AUTOINCREMENT,
	  run_key TEXT NOT NULL,
	  judge_id TEXT,
	  totals_queries INTEGER,
	  totals_trials INTEGER,
	  totals_llm_ok INTEGER,
	  totals_llm_failed INTEGER,
	  totals_llm_parse_failed INTEGER,
	  hit_expected_url_any_trial INTEGER,
	  overall_confidence REAL,
	  top_failure_modes_json TEXT,
	  top_failure_modes_norm_json TEXT,
	  top_failure_modes_unknown_count INTEGER,
	  FOREIGN KEY (run_key) REFERENCES webpipe_eval_judge_swarm_runs(run_key)
	)`,

	`CREATE TABLE IF NOT EXISTS webpipe_eval_judge_trials (
	  id INTEGER PRIMARY KEY AUTOINCREMENT,
	  run_key TEXT NOT NULL,
	  judge_id TEXT,
	  query_id TEXT,
	  trial_id TEXT,
	  agentic INTEGER,
	  agentic_selector TEXT,
	  fetch_backend TEXT,
	  url_selection_mode TEXT,
	  elapsed_ms INTEGER,
	  ok INTEGER,
	  observed_url_count INTEGER,
	  warnings_count INTEGER,
	  judge_text_truncated INTEGER,
	  judge_overall_score REAL,
	  judge_answerable INTEGER,
	  judge_relevant INTEGER,
	  judge_confidence REAL,
	  judge_issues_json TEXT,
	  judge_issues_norm_json TEXT,
	  judge_issues_unknown_count INTEGER,
	  hit_expected_url INTEGER,
	  FOREIGN KEY (run_key) REFERENCES webpipe_eval_judge_swarm_runs(run_key)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_webpipe_eval_judge_trials_score
	  ON webpipe_eval_judge_trials(judge_overall_score)`,
	`CREATE INDEX IF NOT EXISTS idx_webpipe_eval_judge_trials_cfg
	  ON webpipe_eval_judge_trials(agentic, agentic_selector, url_selection_mode, fetch_backend)`,

	`CREATE TABLE IF NOT EXISTS webpipe_eval_vlm_runs (
	  run_key TEXT PRIMARY KEY,
	  generated_at_epoch_s INTEGER,
	  model TEXT,
	  temperature REAL,
	  trials INTEGER,
	  images INTEGER,
	  totals_runs INTEGER,
	  totals_parsed_ok INTEGER,
	  goals_count INTEGER,
	  goal_profiles_json TEXT,
	  out_dir TEXT,
	  transcript_jsonl TEXT,
	  transcript_events INTEGER,
	  transcript_vlm_events INTEGER,
	  transcript_vlm_schema_ok INTEGER,
	  top_3_fixes_json TEXT
	)`,

	`CREATE TABLE IF NOT EXISTS webpipe_eval_vlm_per_input (
	  id INTEGER PRIMARY KEY AUTOINCREMENT,
	  run_key TEXT NOT NULL,
	  image_index INTEGER,
	  image_path TEXT,
	  parsed_ok INTEGER,
	  score_0_10 REAL,
	  issues_count INTEGER,
	  p0_count INTEGER,
	  p1_count INTEGER,
	  p2_count INTEGER,
	  consensus_fixes_json TEXT,
	  top_3_fixes_json TEXT,
	  FOREIGN KEY (run_key) REFERENCES webpipe_eval_vlm_runs(run_key)
	)`,
}

func (db *DB) initializeSchema() error {
	return db.WithTx(func(tx *sql.Tx) error {
		for _, stmt := range schemaStatements {
			if _, err := tx.Exec(stmt); err != nil {
				return err
			}
		}
		db.logger.Debug("store schema initialized", map[string]interface{}{
			"path": db.dbPath,
		})
		return nil
	})
}
