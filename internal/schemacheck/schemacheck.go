// Package schemacheck validates parsed stage payloads against per-stage
// structural schemas.
package schemacheck

import "github.com/arclabs561/webpipe/internal/jsonval"

// Result is the tri-state outcome of a schema check. Inapplicable means no
// schema is declared for the stage (or nothing was parsed) and is distinct
// from Invalid: absence of knowledge is not evidence of malformation.
type Result int

const (
	// Inapplicable - no parsed payload, or no schema declared for the stage
	Inapplicable Result = iota
	// Invalid - payload present but fails the stage schema
	Invalid
	// Valid - payload satisfies the stage schema
	Valid
)

// Column maps the result onto a nullable 0/1 store column, preserving the
// tri-state in storage.
func (r Result) Column() *int64 {
	switch r {
	case Valid:
		n := int64(1)
		return &n
	case Invalid:
		n := int64(0)
		return &n
	default:
		return nil
	}
}

// stageSchema declares required keys plus required container types of
// sub-fields for one stage.
type stageSchema struct {
	required []string
	listKeys []string
	objKeys  []string
}

var stageSchemas = map[string]stageSchema{
	"judge": {
		required: []string{"overall_score", "relevant", "answerable", "confidence", "issues"},
		listKeys: []string{"issues"},
	},
	"judge_overall": {
		required: []string{"overall_assessment", "top_failure_modes", "recommended_defaults", "confidence"},
		listKeys: []string{"top_failure_modes"},
		objKeys:  []string{"recommended_defaults"},
	},
	"vlm_openrouter": {
		required: []string{"overall", "score_0_10", "verdict", "strengths", "issues", "top_3_fixes"},
		listKeys: []string{"strengths", "issues", "top_3_fixes"},
	},
	"critic": {
		required: []string{"issues", "structured_ok", "markdown_ok", "results_count", "top_chunks_count"},
		listKeys: []string{"issues"},
	},
}

// ForStage checks a parsed payload against the schema declared for stage.
// A nil payload is Inapplicable; a non-mapping payload is Invalid; stages
// without a declared schema (meta, task_solve, ...) are Inapplicable.
func ForStage(stage string, parsed interface{}) Result {
	if parsed == nil {
		return Inapplicable
	}
	obj := jsonval.Obj(parsed)
	if obj == nil {
		return Invalid
	}
	schema, ok := stageSchemas[stage]
	if !ok {
		return Inapplicable
	}
	for _, k := range schema.required {
		if _, present := obj[k]; !present {
			return Invalid
		}
	}
	for _, k := range schema.listKeys {
		if jsonval.List(obj[k]) == nil {
			return Invalid
		}
	}
	for _, k := range schema.objKeys {
		if jsonval.Obj(obj[k]) == nil {
			return Invalid
		}
	}
	return Valid
}
