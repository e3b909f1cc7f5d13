package artifacts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/arclabs561/webpipe/internal/logging"
	"github.com/arclabs561/webpipe/internal/storage"
)

func setupStore(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.OpenFresh(filepath.Join(t.TempDir(), "out.sqlite3"), logging.Discard())
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func writeArtifact(t *testing.T, root, name, content string) string {
	t.Helper()
	path := filepath.Join(root, generatedDirName, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const judgeSwarmFixture = `{
  "kind": "webpipe_eval_judge_swarm",
  "schema_version": 1,
  "generated_at_epoch_s": 1700000000,
  "inputs": {"llm_backend": "ollama", "llm_model_effective": "qwen3:8b", "json_mode": true, "max_queries": 12},
  "meta": {
    "overall_assessment": "mixed",
    "cross_judge_agreement": "moderate",
    "top_systemic_failures": ["truncated evidence", "completely novel failure"],
    "top_3_fixes": ["raise evidence budget", "retry on parse failure"]
  },
  "judge_reports": [
    {
      "judge_id": "judge-a",
      "totals": {"queries": 12, "trials": 24, "llm_ok": 22, "llm_failed": 1, "llm_parse_failed": 1},
      "overall": {"confidence": 0.7, "top_failure_modes": ["off-topic results"]},
      "per_query": [
        {
          "query_id": "q1",
          "trials": [
            {
              "trial_id": "t1", "ok": true, "elapsed_ms": 900,
              "observed_urls": ["a", "b"], "warnings": [],
              "judge": {"overall_score": 6, "relevant": true, "answerable": false,
                        "confidence": 0.8, "issues": ["too short", "too short"]}
            },
            {"trial_id": "t2", "ok": false, "judge": {"issues": "not a list"}}
          ]
        }
      ]
    }
  ]
}`

func TestIngestJudgeSwarm(t *testing.T) {
	db := setupStore(t)
	root := t.TempDir()
	writeArtifact(t, root, "webpipe-eval-judge-swarm-1.json", judgeSwarmFixture)

	runs, err := IngestJudgeSwarm(db, root, logging.Discard())
	if err != nil {
		t.Fatalf("IngestJudgeSwarm: %v", err)
	}
	if runs != 1 {
		t.Fatalf("runs = %d, want 1", runs)
	}

	var backend string
	var maxQueries int64
	err = db.QueryRow(
		"SELECT llm_backend, max_queries FROM webpipe_eval_judge_swarm_runs",
	).Scan(&backend, &maxQueries)
	if err != nil {
		t.Fatal(err)
	}
	if backend != "ollama" || maxQueries != 12 {
		t.Errorf("run row = (%s, %d), want (ollama, 12)", backend, maxQueries)
	}

	var norm string
	var unknown int64
	err = db.QueryRow(
		"SELECT top_systemic_failures_norm_json, top_systemic_failures_unknown_count FROM webpipe_eval_judge_meta",
	).Scan(&norm, &unknown)
	if err != nil {
		t.Fatal(err)
	}
	if norm != `["truncated"]` || unknown != 1 {
		t.Errorf("meta failures = (%s, %d), want ([\"truncated\"], 1)", norm, unknown)
	}

	var trials int
	if err := db.QueryRow("SELECT count(*) FROM webpipe_eval_judge_trials").Scan(&trials); err != nil {
		t.Fatal(err)
	}
	if trials != 2 {
		t.Errorf("trials = %d, want 2", trials)
	}

	var urlCount int64
	var issuesNorm string
	err = db.QueryRow(
		"SELECT observed_url_count, judge_issues_norm_json FROM webpipe_eval_judge_trials WHERE trial_id='t1'",
	).Scan(&urlCount, &issuesNorm)
	if err != nil {
		t.Fatal(err)
	}
	if urlCount != 2 || issuesNorm != `["too_short"]` {
		t.Errorf("trial t1 = (%d, %s)", urlCount, issuesNorm)
	}
}

func TestIngestJudgeSwarmInfersKindFromShape(t *testing.T) {
	db := setupStore(t)
	root := t.TempDir()
	writeArtifact(t, root, "judge-swarm-legacy.json",
		`{"inputs": {"llm_backend": "openai"}, "judge_reports": []}`)

	runs, err := IngestJudgeSwarm(db, root, logging.Discard())
	if err != nil {
		t.Fatalf("IngestJudgeSwarm: %v", err)
	}
	if runs != 1 {
		t.Fatalf("runs = %d, want 1", runs)
	}

	var kind string
	var sv int64
	err = db.QueryRow("SELECT kind, schema_version FROM webpipe_eval_artifact_files").Scan(&kind, &sv)
	if err != nil {
		t.Fatal(err)
	}
	if kind != JudgeSwarmKind || sv != 1 {
		t.Errorf("inferred (%s, %d), want (%s, 1)", kind, sv, JudgeSwarmKind)
	}
}

func TestIngestJudgeSwarmSkipsForeignKind(t *testing.T) {
	db := setupStore(t)
	root := t.TempDir()
	writeArtifact(t, root, "judge-swarm-other.json", `{"kind": "something_else"}`)

	runs, err := IngestJudgeSwarm(db, root, logging.Discard())
	if err != nil {
		t.Fatalf("IngestJudgeSwarm: %v", err)
	}
	if runs != 0 {
		t.Errorf("runs = %d, want 0", runs)
	}

	// Provenance row is still written so the scan is auditable.
	var files int
	if err := db.QueryRow("SELECT count(*) FROM webpipe_eval_artifact_files").Scan(&files); err != nil {
		t.Fatal(err)
	}
	if files != 1 {
		t.Errorf("artifact files = %d, want 1", files)
	}
}

func TestIngestJudgeSwarmRerunReplacesChildren(t *testing.T) {
	db := setupStore(t)
	root := t.TempDir()
	writeArtifact(t, root, "webpipe-eval-judge-swarm-1.json", judgeSwarmFixture)

	for i := 0; i < 2; i++ {
		if _, err := IngestJudgeSwarm(db, root, logging.Discard()); err != nil {
			t.Fatalf("pass %d: %v", i, err)
		}
	}

	var runs, reports, trials int
	if err := db.QueryRow("SELECT count(*) FROM webpipe_eval_judge_swarm_runs").Scan(&runs); err != nil {
		t.Fatal(err)
	}
	if err := db.QueryRow("SELECT count(*) FROM webpipe_eval_judge_agent_reports").Scan(&reports); err != nil {
		t.Fatal(err)
	}
	if err := db.QueryRow("SELECT count(*) FROM webpipe_eval_judge_trials").Scan(&trials); err != nil {
		t.Fatal(err)
	}
	if runs != 1 || reports != 1 || trials != 2 {
		t.Errorf("after rerun: runs=%d reports=%d trials=%d, want 1/1/2", runs, reports, trials)
	}
}

const vlmRunFixture = `{
  "kind": "webpipe_eval_vlm_run",
  "schema_version": 1,
  "generated_at_epoch_s": 1700000100,
  "inputs": {"model": "gpt-4o-mini", "temperature": 0.2, "trials": 3,
             "goals": ["g1", "g2"], "goal_profiles": ["research", "news"]},
  "totals": {"images": 4, "runs": 12, "parsed_ok": 11},
  "outputs": {"out_dir": ".generated/webpipe-eval-vlm-run-1"},
  "top_3_fixes": ["tighter crops"],
  "per_input": [
    {
      "image_index": 0, "image_path": "shots/a.png", "parsed_ok": true, "score_0_10": 7,
      "issues": [{"severity": "P0"}, {"severity": "p1"}, {"severity": "note"}],
      "trials": {"consensus_fixes": ["fix contrast"]}
    }
  ]
}`

func TestIngestVLMRuns(t *testing.T) {
	db := setupStore(t)
	root := t.TempDir()
	writeArtifact(t, root, filepath.Join("webpipe-eval-vlm-run-1", "summary.json"), vlmRunFixture)
	writeArtifact(t, root, "webpipe-eval-vlm-run-2.json", `{"kind": "webpipe_eval_vlm_run", "schema_version": 2}`)

	runs, err := IngestVLMRuns(db, root, logging.Discard())
	if err != nil {
		t.Fatalf("IngestVLMRuns: %v", err)
	}
	if runs != 1 {
		t.Fatalf("runs = %d, want 1 (schema_version 2 must be skipped)", runs)
	}

	var model string
	var goalsCount int64
	err = db.QueryRow("SELECT model, goals_count FROM webpipe_eval_vlm_runs").Scan(&model, &goalsCount)
	if err != nil {
		t.Fatal(err)
	}
	if model != "gpt-4o-mini" || goalsCount != 2 {
		t.Errorf("run row = (%s, %d), want (gpt-4o-mini, 2)", model, goalsCount)
	}

	var p0, p1, p2, issues int64
	err = db.QueryRow(
		"SELECT p0_count, p1_count, p2_count, issues_count FROM webpipe_eval_vlm_per_input",
	).Scan(&p0, &p1, &p2, &issues)
	if err != nil {
		t.Fatal(err)
	}
	if p0 != 1 || p1 != 1 || p2 != 0 || issues != 3 {
		t.Errorf("severities = (%d, %d, %d) issues = %d, want (1, 1, 0) 3", p0, p1, p2, issues)
	}
}

func TestIngestVLMRunCountsTranscript(t *testing.T) {
	db := setupStore(t)
	root := t.TempDir()

	transcript := filepath.Join(generatedDirName, "vlm.transcript.jsonl")
	writeArtifact(t, root, "vlm.transcript.jsonl",
		`{"kind":"webpipe_eval_transcript_event","stage":"vlm_openrouter","response":{"parsed":{"overall":"ok","score_0_10":8,"verdict":"pass","strengths":[],"issues":[],"top_3_fixes":[]}}}`+"\n"+
			`{"kind":"webpipe_eval_transcript_event","stage":"vlm_openrouter","response":{"parsed":{"overall":"bad"}}}`+"\n"+
			`{"kind":"webpipe_eval_transcript_event","stage":"judge"}`+"\n")

	writeArtifact(t, root, "webpipe-eval-vlm-run-3.json",
		`{"kind": "webpipe_eval_vlm_run", "outputs": {"transcript_jsonl": "`+transcript+`"}}`)

	if _, err := IngestVLMRuns(db, root, logging.Discard()); err != nil {
		t.Fatalf("IngestVLMRuns: %v", err)
	}

	var total, vlm, ok int64
	err := db.QueryRow(
		"SELECT transcript_events, transcript_vlm_events, transcript_vlm_schema_ok FROM webpipe_eval_vlm_runs",
	).Scan(&total, &vlm, &ok)
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 || vlm != 2 || ok != 1 {
		t.Errorf("counts = (%d, %d, %d), want (3, 2, 1)", total, vlm, ok)
	}
}

func TestRunKeyOutsideRoot(t *testing.T) {
	if got := runKey("/a/b", "/elsewhere/x.json"); got != "/elsewhere/x.json" {
		t.Errorf("runKey escaped root, got %q", got)
	}
	if got := runKey("/a/b", "/a/b/.generated/x.json"); got != filepath.Join(generatedDirName, "x.json") {
		t.Errorf("runKey inside root = %q", got)
	}
}
