package schemacheck

import (
	"encoding/json"
	"testing"
)

func parse(t *testing.T, s string) interface{} {
	t.Helper()
	var v interface{}
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return v
}

func TestForStage(t *testing.T) {
	validJudge := `{"overall_score":7.5,"relevant":true,"answerable":true,"confidence":0.8,"issues":[]}`

	tests := []struct {
		name   string
		stage  string
		parsed interface{}
		want   Result
	}{
		{"nil payload", "judge", nil, Inapplicable},
		{"non-mapping payload", "judge", []interface{}{}, Invalid},
		{"scalar payload", "judge", "text", Invalid},
		{"undeclared stage", "task_solve", map[string]interface{}{}, Inapplicable},
		{"valid judge", "judge", nil, Valid}, // parsed filled below
		{"judge missing key", "judge", parseHere(`{"overall_score":1,"relevant":true,"answerable":true,"confidence":0.5}`), Invalid},
		{"judge issues wrong type", "judge", parseHere(`{"overall_score":1,"relevant":true,"answerable":true,"confidence":0.5,"issues":"none"}`), Invalid},
		{"valid judge_overall", "judge_overall", parseHere(`{"overall_assessment":"ok","top_failure_modes":[],"recommended_defaults":{},"confidence":0.9}`), Valid},
		{"judge_overall defaults wrong type", "judge_overall", parseHere(`{"overall_assessment":"ok","top_failure_modes":[],"recommended_defaults":[],"confidence":0.9}`), Invalid},
		{"valid vlm", "vlm_openrouter", parseHere(`{"overall":"fine","score_0_10":6,"verdict":"pass","strengths":[],"issues":[],"top_3_fixes":[]}`), Valid},
		{"vlm strengths wrong type", "vlm_openrouter", parseHere(`{"overall":"fine","score_0_10":6,"verdict":"pass","strengths":{},"issues":[],"top_3_fixes":[]}`), Invalid},
		{"valid critic", "critic", parseHere(`{"issues":[],"structured_ok":true,"markdown_ok":true,"results_count":3,"top_chunks_count":2}`), Valid},
		{"critic issues wrong type", "critic", parseHere(`{"issues":{},"structured_ok":true,"markdown_ok":true,"results_count":3,"top_chunks_count":2}`), Invalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed := tt.parsed
			if tt.name == "valid judge" {
				parsed = parse(t, validJudge)
			}
			if got := ForStage(tt.stage, parsed); got != tt.want {
				t.Errorf("ForStage(%q, ...) = %v, want %v", tt.stage, got, tt.want)
			}
		})
	}
}

func parseHere(s string) interface{} {
	var v interface{}
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		panic(err)
	}
	return v
}

func TestColumnPreservesTriState(t *testing.T) {
	if c := Valid.Column(); c == nil || *c != 1 {
		t.Errorf("Valid.Column() = %v, want 1", c)
	}
	if c := Invalid.Column(); c == nil || *c != 0 {
		t.Errorf("Invalid.Column() = %v, want 0", c)
	}
	if c := Inapplicable.Column(); c != nil {
		t.Errorf("Inapplicable.Column() = %v, want nil", *c)
	}
}
