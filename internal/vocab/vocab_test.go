package vocab

import (
	"encoding/json"
	"testing"
)

func toList(xs ...string) []interface{} {
	out := make([]interface{}, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}

func TestNormalizeIssueCascade(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		// Specific signals win over generic ones.
		{"did not hit the expected URL (truncated page)", "did_not_hit_expected_url", true},
		{"Result was truncated", "truncated", true},
		{"invalid json in response", "truncated", true},
		{"answer unfinished", "truncated", true},
		{"completely off-topic", "off_topic", true},
		{"unrelated content", "off_topic", true},
		{"low-signal gunk", "low_signal", true},
		{"mostly nav and toc", "boilerplate", true},
		{"app shell only", "boilerplate", true},
		{"too short", "too_short", true},
		{"excessive brevity", "too_short", true},
		{"missing key facts", "missing_key_facts", true},
		{"missing several results", "missing_key_facts", true},
		{"missing the explanations", "missing_key_facts", true},
		// Exact fallback for already-normalized strings.
		{"off_topic", "off_topic", true},
		{"OFF TOPIC", "off_topic", true},
		// No safe mapping.
		{"", "", false},
		{"   ", "", false},
		{"something entirely different", "", false},
	}
	for _, tt := range tests {
		got, ok := NormalizeIssue(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("NormalizeIssue(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestNormalizeCriticIssueIsStrict(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"missing_urls", "missing_urls", true},
		{"  missing_urls  ", "missing_urls", true},
		{"Missing URLs", "missing_urls", true},
		{"low_signal", "low_signal", true},
		// Heuristics must never apply: substrings of vocab entries miss.
		{"result was truncated", "", false},
		{"missing", "", false},
		{"markdown missing", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := NormalizeCriticIssue(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("NormalizeCriticIssue(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestNormalizeIssueListSortedDeduped(t *testing.T) {
	res := NormalizeIssueList(toList("truncated", "too short", "Result was truncated"))
	if res.RawJSON == nil || res.NormJSON == nil {
		t.Fatal("expected raw and norm JSON for a valid list")
	}
	if *res.NormJSON != `["too_short","truncated"]` {
		t.Errorf("norm = %s, want sorted deduplicated list", *res.NormJSON)
	}
	if res.Unknown != 0 {
		t.Errorf("unknown = %d, want 0", res.Unknown)
	}
	// Raw preserves input order.
	var raw []string
	if err := json.Unmarshal([]byte(*res.RawJSON), &raw); err != nil {
		t.Fatalf("raw not JSON: %v", err)
	}
	if len(raw) != 3 || raw[0] != "truncated" || raw[1] != "too short" {
		t.Errorf("raw = %v, want input order preserved", raw)
	}
}

func TestNormalizeIssueListInvariant(t *testing.T) {
	// len(norm) + unknown == deduplicated input size, where dedup keys are
	// the mapped category for knowns and the folded raw for unknowns.
	tests := []struct {
		name  string
		input []interface{}
	}{
		{"all known", toList("truncated", "off topic")},
		{"duplicates collapse", toList("truncated", "Result was truncated", "truncated")},
		{"unknowns counted once", toList("mystery issue", "Mystery   Issue", "other mystery")},
		{"mixed", toList("truncated", "nope", "too short", "nope again")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NormalizeIssueList(tt.input)
			if res.NormJSON == nil {
				t.Fatal("expected norm JSON")
			}
			var norm []string
			if err := json.Unmarshal([]byte(*res.NormJSON), &norm); err != nil {
				t.Fatalf("norm not JSON: %v", err)
			}

			deduped := make(map[string]bool)
			for _, v := range tt.input {
				s := v.(string)
				if n, ok := NormalizeIssue(s); ok {
					deduped["known:"+n] = true
				} else {
					deduped["unknown:"+foldKey(s)] = true
				}
			}
			if len(norm)+int(res.Unknown) != len(deduped) {
				t.Errorf("len(norm)=%d + unknown=%d != deduped=%d", len(norm), res.Unknown, len(deduped))
			}
		})
	}
}

func TestNormalizeListRejectsNonStringLists(t *testing.T) {
	inputs := []interface{}{
		nil,
		"not a list",
		[]interface{}{"ok", 3.0},
		map[string]interface{}{},
	}
	for _, in := range inputs {
		res := NormalizeIssueList(in)
		if res.RawJSON != nil || res.NormJSON != nil || res.Unknown != 0 {
			t.Errorf("NormalizeIssueList(%v) should be absent, got %+v", in, res)
		}
		cres := NormalizeCriticIssueList(in)
		if cres.RawJSON != nil || cres.NormJSON != nil || cres.Unknown != 0 {
			t.Errorf("NormalizeCriticIssueList(%v) should be absent, got %+v", in, cres)
		}
	}
}

func TestCriticListDriftSurfacesAsUnknown(t *testing.T) {
	res := NormalizeCriticIssueList(toList("missing_urls", "brand_new_issue"))
	if res.Unknown != 1 {
		t.Errorf("unknown = %d, want 1", res.Unknown)
	}
	if *res.NormJSON != `["missing_urls"]` {
		t.Errorf("norm = %s", *res.NormJSON)
	}
}
