// Package extract converts one raw transcript record into a bounded,
// privacy-safe event row.
//
// The privacy policy: free text (tool args and results, prompts, model
// responses) is represented only by a char count, a truncation flag, and a
// one-way SHA-256 digest. Already-bounded structured summaries are pulled
// apart field by field instead. Fields that do not apply to a record's
// stage are left absent, not zero-filled.
package extract

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/arclabs561/webpipe/internal/jsonval"
	"github.com/arclabs561/webpipe/internal/schemacheck"
	"github.com/arclabs561/webpipe/internal/vocab"
)

// EventKind is the discriminator value for transcript events.
const EventKind = "webpipe_eval_transcript_event"

// maxMusingDimensionChars caps stored musing-dimension tags; oversized tags
// count as unknown instead of being truncated into a new category.
const maxMusingDimensionChars = 32

// EventRow is one flat, privacy-safe row per transcript event. Pointer
// fields are nil when the source field is absent or ill-typed, which maps
// to NULL in storage.
type EventRow struct {
	RunKind           *string
	Stage             *string
	CallID            *string
	Seq               *int64
	GeneratedAtEpochS *int64

	// tool stage
	ToolName            *string
	ToolElapsedMs       *int64
	ToolOK              *int64
	ToolProvider        *string
	ToolFetchBackend    *string
	ToolWarningCount    *int64
	ToolCacheHit        *int64
	ToolArgsTruncated   *int64
	ToolResultTruncated *int64
	ToolArgsJSONOK      *int64
	ToolResultJSONOK    *int64
	ToolArgsSHA256      *string
	ToolResultSHA256    *string

	// web_search_extract argument knobs (scalar/boolean only)
	WSERequestedProvider *string
	WSEAutoMode          *string
	WSESelectionMode     *string
	WSEFetchBackend      *string
	WSEAgentic           *int64
	WSEAgenticSelector   *string
	WSEURLSelectionMode  *string
	WSEMaxURLs           *int64
	WSEMaxChars          *int64
	WSETopChunks         *int64
	WSEMaxChunkChars     *int64
	WSEIncludeText       *int64
	WSEIncludeLinks      *int64
	WSECacheRead         *int64
	WSECacheWrite        *int64
	WSENoNetwork         *int64
	WSEResultsCount      *int64
	WSETopChunksCount    *int64

	// judge stage (LLM)
	Attempt            *int64
	LLMBackend         *string
	LLMModelEffective  *string
	LLMJSONMode        *int64
	LLMTimeoutMs       *int64
	LLMTimingMs        *int64
	LLMErrorPresent    *int64
	LLMParseOK         *int64
	LLMSchemaOK        *int64
	PromptSystemChars  *int64
	PromptUserChars    *int64
	PromptTruncated    *int64
	PromptSystemSHA256 *string
	PromptUserSHA256   *string
	ResponseRawChars   *int64
	ResponseRawTrunc   *int64
	ResponseRawSHA256  *string
	LLMOverallScore    *float64

	// judge context completeness
	JudgeCtxObservedURLCount  *int64
	JudgeCtxWarningsCount     *int64
	JudgeCtxEvidenceChars     *int64
	JudgeCtxEvidenceTruncated *int64

	// judge musings (dimension tags only)
	JudgeMusingsCount         *int64
	JudgeMusingDimensionsJSON *string
	JudgeMusingDimensionsUnk  *int64

	// vision-model critique
	VLMProfile          *string
	VLMGoalProfilesJSON *string
	VLMScore0To10       *float64
	VLMVerdict          *string
	VLMIssuesCount      *int64
	VLMP0Count          *int64
	VLMP1Count          *int64
	VLMP2Count          *int64
	VLMTop3FixesJSON    *string

	// deterministic critic
	CriticIssuesJSON     *string
	CriticIssuesNormJSON *string
	CriticIssuesUnknown  *int64
	CriticMarkdownOK     *int64
	CriticStructuredOK   *int64
}

// EventFromRecord extracts a row from one decoded transcript record. The
// caller has already checked the kind discriminator. Malformed nested JSON
// degrades to absent fields; it never fails the record.
func EventFromRecord(ev map[string]interface{}) *EventRow {
	row := &EventRow{
		RunKind:           jsonval.Str(ev["run_kind"]),
		Stage:             jsonval.Str(ev["stage"]),
		CallID:            jsonval.Str(ev["call_id"]),
		Seq:               jsonval.Int(ev["seq"]),
		GeneratedAtEpochS: jsonval.Int(ev["generated_at_epoch_s"]),
		Attempt:           jsonval.Int(ev["attempt"]),
		LLMTimingMs:       jsonval.Int(ev["timing_ms"]),
	}

	stage := ""
	if row.Stage != nil {
		stage = *row.Stage
	}

	extractTool(row, jsonval.Obj(ev["tool"]))
	extractLLM(row, jsonval.Obj(ev["llm"]))
	extractPrompt(row, jsonval.Obj(ev["prompt"]))
	extractResponse(row, stage, ev)

	return row
}

func extractTool(row *EventRow, tool map[string]interface{}) {
	if tool == nil {
		return
	}
	row.ToolName = jsonval.Str(tool["name"])
	row.ToolElapsedMs = jsonval.Int(tool["elapsed_ms"])

	// Args are wrapped as {text, truncated}; results are increasingly a
	// structured result_summary to avoid JSON truncation of large payloads.
	argsText, argsTrunc, _ := truncField(tool["args"])
	resText, resTrunc, _ := truncField(tool["result"])
	row.ToolArgsTruncated = argsTrunc
	row.ToolResultTruncated = resTrunc
	row.ToolArgsSHA256 = hashText(argsText)
	row.ToolResultSHA256 = hashText(resText)

	argsJSON, argsOK := tryParseJSON(argsText)
	resJSON, resOK := tryParseJSON(resText)
	row.ToolArgsJSONOK = argsOK
	row.ToolResultJSONOK = resOK

	if row.ToolName != nil && *row.ToolName == "web_search_extract" {
		// Prefer result_summary when present (parseable and bounded).
		hadSummary := false
		if rs := jsonval.Obj(tool["result_summary"]); rs != nil {
			hadSummary = true
			row.WSEResultsCount = jsonval.Int(rs["results_count"])
			row.WSETopChunksCount = jsonval.Int(rs["top_chunks_count"])
			row.ToolOK = jsonval.Bool(rs["ok"])
			row.ToolProvider = jsonval.Str(rs["provider"])
			row.ToolFetchBackend = jsonval.Str(rs["fetch_backend"])
		}
		if argsJSON != nil {
			extractSearchKnobs(row, argsJSON)
		}
		if resJSON != nil && !hadSummary {
			extractSearchResultMeta(row, resJSON)
		}
		return
	}

	if resJSON != nil {
		row.ToolOK = jsonval.Bool(resJSON["ok"])
	}
}

// extractSearchKnobs captures the web_search_extract argument knobs that
// matter for analysis. All scalar or boolean.
func extractSearchKnobs(row *EventRow, args map[string]interface{}) {
	row.WSERequestedProvider = jsonval.Str(args["provider"])
	row.WSEAutoMode = jsonval.Str(args["auto_mode"])
	row.WSESelectionMode = jsonval.Str(args["selection_mode"])
	row.WSEFetchBackend = jsonval.Str(args["fetch_backend"])
	row.WSEAgentic = jsonval.Bool(args["agentic"])
	row.WSEAgenticSelector = jsonval.Str(args["agentic_selector"])
	row.WSEURLSelectionMode = jsonval.Str(args["url_selection_mode"])
	row.WSEMaxURLs = jsonval.Int(args["max_urls"])
	row.WSEMaxChars = jsonval.Int(args["max_chars"])
	row.WSETopChunks = jsonval.Int(args["top_chunks"])
	row.WSEMaxChunkChars = jsonval.Int(args["max_chunk_chars"])
	row.WSEIncludeText = jsonval.Bool(args["include_text"])
	row.WSEIncludeLinks = jsonval.Bool(args["include_links"])
	row.WSECacheRead = jsonval.Bool(args["cache_read"])
	row.WSECacheWrite = jsonval.Bool(args["cache_write"])
	row.WSENoNetwork = jsonval.Bool(args["no_network"])
}

// extractSearchResultMeta pulls privacy-safe metadata from a fully parsed
// web_search_extract result body: counts only, never list contents.
func extractSearchResultMeta(row *EventRow, res map[string]interface{}) {
	row.ToolOK = jsonval.Bool(res["ok"])
	row.ToolProvider = jsonval.Str(res["provider"])
	row.ToolFetchBackend = jsonval.Str(res["fetch_backend"])

	if warnings := jsonval.List(res["warnings"]); warnings != nil {
		n := int64(0)
		for _, w := range warnings {
			switch w.(type) {
			case string, map[string]interface{}:
				n++
			}
		}
		row.ToolWarningCount = &n
	}

	if src := jsonval.Str(res["fetch_source"]); src != nil {
		hit := int64(0)
		if *src == "cache" {
			hit = 1
		}
		row.ToolCacheHit = &hit
	}

	if rs := jsonval.List(res["results"]); rs != nil {
		n := int64(len(rs))
		row.WSEResultsCount = &n
	}
	if tc := jsonval.List(res["top_chunks"]); tc != nil {
		n := int64(len(tc))
		row.WSETopChunksCount = &n
	}
}

func extractLLM(row *EventRow, llm map[string]interface{}) {
	if llm == nil {
		return
	}
	row.LLMBackend = jsonval.Str(llm["backend"])
	row.LLMModelEffective = jsonval.Str(llm["model_effective"])
	row.LLMJSONMode = jsonval.Bool(llm["json_mode"])
	row.LLMTimeoutMs = jsonval.Int(llm["timeout_ms"])
}

func extractPrompt(row *EventRow, prompt map[string]interface{}) {
	if prompt == nil {
		return
	}
	sysText, sysTrunc, sysChars := truncField(prompt["system"])
	usrText, usrTrunc, usrChars := truncField(prompt["user"])
	row.PromptSystemChars = sysChars
	row.PromptUserChars = usrChars
	row.PromptSystemSHA256 = hashText(sysText)
	row.PromptUserSHA256 = hashText(usrText)

	// Truncated if either field was, unless an explicit flag overrides.
	if pt := jsonval.Bool(prompt["prompt_truncated"]); pt != nil {
		row.PromptTruncated = pt
	} else if boolVal(sysTrunc) || boolVal(usrTrunc) {
		one := int64(1)
		row.PromptTruncated = &one
	} else if isZero(sysTrunc) && isZero(usrTrunc) {
		zero := int64(0)
		row.PromptTruncated = &zero
	}

	// VLM prompt metadata (small and aggregatable).
	row.VLMProfile = jsonval.Str(prompt["profile"])
	row.VLMGoalProfilesJSON = jsonval.MarshalStrList(prompt["goal_profiles"])
}

func extractResponse(row *EventRow, stage string, ev map[string]interface{}) {
	resp := jsonval.Obj(ev["response"])
	if resp == nil {
		return
	}

	errPresent := int64(0)
	if s := jsonval.Str(resp["error"]); s != nil && strings.TrimSpace(*s) != "" {
		errPresent = 1
	}
	row.LLMErrorPresent = &errPresent

	parsed := resp["parsed"]
	parseOK := int64(0)
	if parsed != nil {
		parseOK = 1
	}
	row.LLMParseOK = &parseOK

	// Score extraction is independent of schema validity: a malformed but
	// scored response stays representable.
	if obj := jsonval.Obj(parsed); obj != nil {
		row.LLMOverallScore = jsonval.Float(obj["overall_score"])
	}
	row.LLMSchemaOK = schemacheck.ForStage(stage, parsed).Column()

	switch stage {
	case "judge":
		if ctx := jsonval.Obj(ev["context"]); ctx != nil {
			row.JudgeCtxObservedURLCount = jsonval.Int(ctx["observed_url_count"])
			row.JudgeCtxWarningsCount = jsonval.Int(ctx["warnings_count"])
			row.JudgeCtxEvidenceChars = jsonval.Int(ctx["evidence_chars"])
			row.JudgeCtxEvidenceTruncated = jsonval.Bool(ctx["evidence_truncated"])
		}
		if obj := jsonval.Obj(parsed); obj != nil {
			extractMusings(row, obj["musings"])
		}
	case "critic":
		if obj := jsonval.Obj(parsed); obj != nil {
			res := vocab.NormalizeCriticIssueList(obj["issues"])
			row.CriticIssuesJSON = res.RawJSON
			row.CriticIssuesNormJSON = res.NormJSON
			row.CriticIssuesUnknown = &res.Unknown
			row.CriticMarkdownOK = jsonval.Bool(obj["markdown_ok"])
			row.CriticStructuredOK = jsonval.Bool(obj["structured_ok"])
		}
	case "vlm_openrouter":
		if obj := jsonval.Obj(parsed); obj != nil {
			extractVLMCritique(row, obj)
		}
	}

	rawText, rawTrunc, rawChars := truncField(resp["raw"])
	row.ResponseRawChars = rawChars
	row.ResponseRawTrunc = rawTrunc
	row.ResponseRawSHA256 = hashText(rawText)
}

// extractMusings stores dimension tags only; musing notes may contain
// page-specific text and are never persisted.
func extractMusings(row *EventRow, v interface{}) {
	if v == nil {
		return
	}
	mus := jsonval.List(v)
	count := int64(0)
	dims := []string{}
	unk := int64(0)
	if mus != nil {
		count = int64(len(mus))
		seen := make(map[string]bool)
		for _, it := range mus {
			obj := jsonval.Obj(it)
			if obj == nil {
				unk++
				continue
			}
			d := jsonval.Str(obj["dimension"])
			if d == nil {
				unk++
				continue
			}
			dd := strings.TrimSpace(*d)
			if dd == "" || utf8.RuneCountInString(dd) > maxMusingDimensionChars {
				unk++
				continue
			}
			if !seen[dd] {
				seen[dd] = true
				dims = append(dims, dd)
			}
		}
	}
	row.JudgeMusingsCount = &count
	if b, err := json.Marshal(dims); err == nil {
		s := string(b)
		row.JudgeMusingDimensionsJSON = &s
	}
	row.JudgeMusingDimensionsUnk = &unk
}

func extractVLMCritique(row *EventRow, parsed map[string]interface{}) {
	row.VLMScore0To10 = jsonval.Float(parsed["score_0_10"])
	if v := jsonval.Str(parsed["verdict"]); v != nil {
		if t := strings.TrimSpace(*v); t != "" {
			row.VLMVerdict = &t
		}
	}
	if issues := jsonval.List(parsed["issues"]); issues != nil {
		n := int64(len(issues))
		row.VLMIssuesCount = &n
		p0, p1, p2 := SeverityCounts(issues)
		row.VLMP0Count = &p0
		row.VLMP1Count = &p1
		row.VLMP2Count = &p2
	}
	row.VLMTop3FixesJSON = jsonval.MarshalStrList(parsed["top_3_fixes"])
}

// SeverityCounts tallies P0/P1/P2 severities over a critique issue list.
// Entries that are not objects or carry no recognizable severity are
// ignored; they still count toward the issue total.
func SeverityCounts(issues []interface{}) (p0, p1, p2 int64) {
	for _, it := range issues {
		obj := jsonval.Obj(it)
		if obj == nil {
			continue
		}
		sev := jsonval.Str(obj["severity"])
		if sev == nil {
			continue
		}
		switch strings.ToUpper(strings.TrimSpace(*sev)) {
		case "P0":
			p0++
		case "P1":
			p1++
		case "P2":
			p2++
		}
	}
	return p0, p1, p2
}

// truncField parses a tx_trunc/json_trunc wrapper {text, truncated}.
// Bare strings occur in older transcripts and count as untruncated.
// Returns (text, truncated, chars); all absent for other shapes.
func truncField(v interface{}) (*string, *int64, *int64) {
	if s, ok := v.(string); ok {
		zero := int64(0)
		n := int64(utf8.RuneCountInString(s))
		return &s, &zero, &n
	}
	obj := jsonval.Obj(v)
	if obj == nil {
		return nil, nil, nil
	}
	truncated := jsonval.Bool(obj["truncated"])
	text := jsonval.Str(obj["text"])
	if text == nil {
		return nil, truncated, nil
	}
	n := int64(utf8.RuneCountInString(*text))
	return text, truncated, &n
}

// hashText returns the hex SHA-256 of the text, or nil when absent. The
// digest is the only trace of the content that reaches storage.
func hashText(s *string) *string {
	if s == nil {
		return nil
	}
	sum := sha256.Sum256([]byte(*s))
	h := hex.EncodeToString(sum[:])
	return &h
}

// tryParseJSON attempts to decode text as a JSON object. The second result
// reports whether decoding succeeded at all, independent of whether the
// value was an object: nil when there was no text, 1 on any successful
// parse, 0 on failure.
func tryParseJSON(text *string) (map[string]interface{}, *int64) {
	if text == nil {
		return nil, nil
	}
	var v interface{}
	if err := json.Unmarshal([]byte(*text), &v); err != nil {
		zero := int64(0)
		return nil, &zero
	}
	one := int64(1)
	return jsonval.Obj(v), &one
}

func boolVal(v *int64) bool {
	return v != nil && *v == 1
}

func isZero(v *int64) bool {
	return v != nil && *v == 0
}
