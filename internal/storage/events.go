package storage

import (
	"github.com/arclabs561/webpipe/internal/extract"
)

// UpsertTranscriptFile records file provenance for one discovered
// transcript, refreshed on every run regardless of event count.
func (db *DB) UpsertTranscriptFile(path string, mtimeEpochS, bytes int64) error {
	_, err := db.Exec(`
		INSERT OR REPLACE INTO webpipe_transcript_files(path, mtime_epoch_s, bytes)
		VALUES (?, ?, ?)
	`, path, mtimeEpochS, bytes)
	return err
}

// InsertTranscriptEvent appends one extracted event row. Rows are
// append-only; a re-run rebuilds the whole store rather than patching.
func (db *DB) InsertTranscriptEvent(srcPath string, row *extract.EventRow) error {
	_, err := db.Exec(`
		INSERT INTO webpipe_transcript_events(
		  src_path, seq, generated_at_epoch_s, run_kind, stage, call_id,
		  tool_name, tool_elapsed_ms, tool_ok, tool_provider, tool_fetch_backend,
		  tool_warning_count, tool_cache_hit,
		  tool_args_truncated, tool_result_truncated, tool_args_json_ok, tool_result_json_ok,
		  tool_args_sha256, tool_result_sha256,
		  wse_requested_provider, wse_auto_mode, wse_selection_mode, wse_fetch_backend,
		  wse_agentic, wse_agentic_selector, wse_url_selection_mode,
		  wse_max_urls, wse_max_chars, wse_top_chunks, wse_max_chunk_chars,
		  wse_include_text, wse_include_links, wse_cache_read, wse_cache_write, wse_no_network,
		  wse_results_count, wse_top_chunks_count,
		  attempt, llm_backend, llm_model_effective, llm_json_mode, llm_timeout_ms,
		  llm_timing_ms, llm_error_present, llm_parse_ok, llm_schema_ok,
		  prompt_system_chars, prompt_user_chars, prompt_truncated,
		  prompt_system_sha256, prompt_user_sha256,
		  response_raw_chars, response_raw_truncated, response_raw_sha256,
		  llm_overall_score,
		  judge_ctx_observed_url_count, judge_ctx_warnings_count,
		  judge_ctx_evidence_chars, judge_ctx_evidence_truncated,
		  judge_musings_count, judge_musing_dimensions_json, judge_musing_dimensions_unknown_count,
		  vlm_profile, vlm_goal_profiles_json,
		  vlm_score_0_10, vlm_verdict, vlm_issues_count,
		  vlm_p0_count, vlm_p1_count, vlm_p2_count,
		  vlm_top_3_fixes_json,
		  critic_issues_json, critic_issues_norm_json, critic_issues_unknown_count,
		  critic_markdown_ok, critic_structured_ok
		) VALUES (
		  ?, ?, ?, ?, ?, ?,
		  ?, ?, ?, ?, ?,
		  ?, ?,
		  ?, ?, ?, ?,
		  ?, ?,
		  ?, ?, ?, ?,
		  ?, ?, ?,
		  ?, ?, ?, ?,
		  ?, ?, ?, ?, ?,
		  ?, ?,
		  ?, ?, ?, ?, ?,
		  ?, ?, ?, ?,
		  ?, ?, ?,
		  ?, ?,
		  ?, ?, ?,
		  ?,
		  ?, ?,
		  ?, ?,
		  ?, ?, ?,
		  ?, ?,
		  ?, ?, ?,
		  ?, ?, ?,
		  ?,
		  ?, ?, ?,
		  ?, ?
		)
	`,
		srcPath, row.Seq, row.GeneratedAtEpochS, row.RunKind, row.Stage, row.CallID,
		row.ToolName, row.ToolElapsedMs, row.ToolOK, row.ToolProvider, row.ToolFetchBackend,
		row.ToolWarningCount, row.ToolCacheHit,
		row.ToolArgsTruncated, row.ToolResultTruncated, row.ToolArgsJSONOK, row.ToolResultJSONOK,
		row.ToolArgsSHA256, row.ToolResultSHA256,
		row.WSERequestedProvider, row.WSEAutoMode, row.WSESelectionMode, row.WSEFetchBackend,
		row.WSEAgentic, row.WSEAgenticSelector, row.WSEURLSelectionMode,
		row.WSEMaxURLs, row.WSEMaxChars, row.WSETopChunks, row.WSEMaxChunkChars,
		row.WSEIncludeText, row.WSEIncludeLinks, row.WSECacheRead, row.WSECacheWrite, row.WSENoNetwork,
		row.WSEResultsCount, row.WSETopChunksCount,
		row.Attempt, row.LLMBackend, row.LLMModelEffective, row.LLMJSONMode, row.LLMTimeoutMs,
		row.LLMTimingMs, row.LLMErrorPresent, row.LLMParseOK, row.LLMSchemaOK,
		row.PromptSystemChars, row.PromptUserChars, row.PromptTruncated,
		row.PromptSystemSHA256, row.PromptUserSHA256,
		row.ResponseRawChars, row.ResponseRawTrunc, row.ResponseRawSHA256,
		row.LLMOverallScore,
		row.JudgeCtxObservedURLCount, row.JudgeCtxWarningsCount,
		row.JudgeCtxEvidenceChars, row.JudgeCtxEvidenceTruncated,
		row.JudgeMusingsCount, row.JudgeMusingDimensionsJSON, row.JudgeMusingDimensionsUnk,
		row.VLMProfile, row.VLMGoalProfilesJSON,
		row.VLMScore0To10, row.VLMVerdict, row.VLMIssuesCount,
		row.VLMP0Count, row.VLMP1Count, row.VLMP2Count,
		row.VLMTop3FixesJSON,
		row.CriticIssuesJSON, row.CriticIssuesNormJSON, row.CriticIssuesUnknown,
		row.CriticMarkdownOK, row.CriticStructuredOK,
	)
	return err
}
