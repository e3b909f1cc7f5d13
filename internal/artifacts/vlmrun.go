package artifacts

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/arclabs561/webpipe/internal/extract"
	"github.com/arclabs561/webpipe/internal/jsonval"
	"github.com/arclabs561/webpipe/internal/logging"
	"github.com/arclabs561/webpipe/internal/schemacheck"
	"github.com/arclabs561/webpipe/internal/storage"
)

// VLMRunKind tags a VLM run summary.
const VLMRunKind = "webpipe_eval_vlm_run"

// The default layout is .generated/webpipe-eval-vlm-run-<epoch>/summary.json,
// but some callers write a flat file; accept both.
var vlmRunPatterns = []string{
	"webpipe-eval-vlm-run-*/summary.json",
	"webpipe-eval-vlm-run-*.json",
	"webpipe-eval-vlm-*.json",
}

// IngestVLMRuns loads VLM run summaries from the .generated directory.
// Returns the number of run summaries ingested.
func IngestVLMRuns(db *storage.DB, root string, log *logging.Logger) (int64, error) {
	genDir := filepath.Join(root, generatedDirName)
	if st, err := os.Stat(genDir); err != nil || !st.IsDir() {
		return 0, nil
	}

	paths, err := globArtifacts(genDir, vlmRunPatterns)
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
		if kind == nil || *kind != VLMRunKind {
			continue
		}
		if sv := jsonval.Int(obj["schema_version"]); sv != nil && *sv != 1 {
			continue
		}

		if err := ingestVLMRun(db, root, p, obj); err != nil {
			return runs, fmt.Errorf("ingesting vlm run %s: %w", runKey(root, p), err)
		}
		runs++
	}

	log.Info("vlm runs ingested", map[string]interface{}{"runs": runs})
	return runs, nil
}

func ingestVLMRun(db *storage.DB, root, path string, obj map[string]interface{}) error {
	generatedAt := jsonval.Int(obj["generated_at_epoch_s"])
	key := runKey(root, path)

	inputs := jsonval.Obj(obj["inputs"])
	totals := jsonval.Obj(obj["totals"])
	outputs := jsonval.Obj(obj["outputs"])

	var goalsCount *int64
	if goals := jsonval.List(inputs["goals"]); goals != nil {
		n := int64(len(goals))
		goalsCount = &n
	}

	run := &storage.VLMRun{
		RunKey:            key,
		GeneratedAtEpochS: generatedAt,
		Model:             jsonval.Str(inputs["model"]),
		Temperature:       jsonval.Float(inputs["temperature"]),
		Trials:            jsonval.Int(inputs["trials"]),
		Images:            jsonval.Int(totals["images"]),
		TotalsRuns:        jsonval.Int(totals["runs"]),
		TotalsParsedOK:    jsonval.Int(totals["parsed_ok"]),
		GoalsCount:        goalsCount,
		GoalProfilesJSON:  jsonval.MarshalStrList(inputs["goal_profiles"]),
		OutDir:            jsonval.Str(outputs["out_dir"]),
		TranscriptJSONL:   jsonval.Str(outputs["transcript_jsonl"]),
		Top3FixesJSON:     jsonval.MarshalStrList(obj["top_3_fixes"]),
	}

	// If the run's transcript is still on disk, fold in a few cheap
	// counts so the run row is self-describing.
	if run.TranscriptJSONL != nil && strings.TrimSpace(*run.TranscriptJSONL) != "" {
		tp := *run.TranscriptJSONL
		if !filepath.IsAbs(tp) {
			tp = filepath.Join(root, tp)
		}
		if counts := scanVLMTranscript(tp); counts != nil {
			run.TranscriptEvents = &counts.total
			run.TranscriptVLMEvents = &counts.vlm
			run.TranscriptVLMSchemaOK = &counts.vlmSchemaOK
		}
	}

	kind := VLMRunKind
	sv := int64(1)
	if err := recordArtifactFile(db, path, &kind, &sv, generatedAt); err != nil {
		return err
	}
	if err := db.UpsertVLMRun(run); err != nil {
		return err
	}
	if err := db.ReplaceVLMRunChildren(key); err != nil {
		return err
	}

	for _, it := range jsonval.List(obj["per_input"]) {
		input := jsonval.Obj(it)
		if input == nil {
			continue
		}
		if err := ingestVLMPerInput(db, key, input); err != nil {
			return err
		}
	}
	return nil
}

func ingestVLMPerInput(db *storage.DB, key string, input map[string]interface{}) error {
	issues := jsonval.List(input["issues"])
	var issuesCount *int64
	if issues != nil {
		n := int64(len(issues))
		issuesCount = &n
	}
	p0, p1, p2 := extract.SeverityCounts(issues)

	var consensusFixes *string
	if trials := jsonval.Obj(input["trials"]); trials != nil {
		consensusFixes = jsonval.MarshalStrList(trials["consensus_fixes"])
	}

	return db.InsertVLMPerInput(&storage.VLMPerInput{
		RunKey:             key,
		ImageIndex:         jsonval.Int(input["image_index"]),
		ImagePath:          jsonval.Str(input["image_path"]),
		ParsedOK:           jsonval.Bool(input["parsed_ok"]),
		Score0To10:         jsonval.Float(input["score_0_10"]),
		IssuesCount:        issuesCount,
		P0Count:            p0,
		P1Count:            p1,
		P2Count:            p2,
		ConsensusFixesJSON: consensusFixes,
		Top3FixesJSON:      jsonval.MarshalStrList(input["top_3_fixes"]),
	})
}

type vlmTranscriptCounts struct {
	total       int64
	vlm         int64
	vlmSchemaOK int64
}

// scanVLMTranscript counts events in a run's transcript without
// ingesting them. Returns nil when the transcript is absent.
func scanVLMTranscript(path string) *vlmTranscriptCounts {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var counts vlmTranscriptCounts
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		counts.total++
		var raw interface{}
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			continue
		}
		ev := jsonval.Obj(raw)
		if ev == nil {
			continue
		}
		if kind, _ := ev["kind"].(string); kind != extract.EventKind {
			continue
		}
		if stage := jsonval.Str(ev["stage"]); stage == nil || *stage != "vlm_openrouter" {
			continue
		}
		counts.vlm++
		resp := jsonval.Obj(ev["response"])
		if resp == nil {
			continue
		}
		if schemacheck.ForStage("vlm_openrouter", resp["parsed"]) == schemacheck.Valid {
			counts.vlmSchemaOK++
		}
	}
	return &counts
}
