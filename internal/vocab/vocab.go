// Package vocab maps free-form judge and critic strings into controlled
// vocabularies. Strings that do not map are counted as unknown rather than
// dropped, so upstream drift stays visible in aggregates.
package vocab

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/arclabs561/webpipe/internal/jsonval"
)

// IssueVocab is the controlled vocabulary for judge issue strings.
var IssueVocab = []string{
	"missing_key_facts",
	"too_short",
	"boilerplate",
	"low_signal",
	"off_topic",
	"truncated",
	"did_not_hit_expected_url",
}

// CriticIssueVocab is the controlled vocabulary for deterministic critic
// issues. The critic emits these verbatim, so matching stays strict.
var CriticIssueVocab = []string{
	"missing_structured_content",
	"missing_or_bad_kind",
	"unexpected_kind",
	"tool_failed",
	"missing_urls",
	"empty_top_chunks",
	"low_signal",
	"warnings_present",
	"missing_markdown",
	"markdown_is_json",
	"markdown_missing_request_section",
	"markdown_missing_summary_section",
}

var (
	issueSet       = toSet(IssueVocab)
	criticIssueSet = toSet(CriticIssueVocab)
)

func toSet(xs []string) map[string]bool {
	m := make(map[string]bool, len(xs))
	for _, x := range xs {
		m[x] = true
	}
	return m
}

// heuristicRule maps folded free-form text to a category when match returns
// true. Rules run in declaration order: most specific signal first, so
// "expected URL" outranks the generic "truncated" and "low signal" buckets.
type heuristicRule struct {
	category string
	match    func(t string) bool
}

func containsAny(subs ...string) func(string) bool {
	return func(t string) bool {
		for _, s := range subs {
			if strings.Contains(t, s) {
				return true
			}
		}
		return false
	}
}

var issueRules = []heuristicRule{
	{"did_not_hit_expected_url", containsAny("expected url", "did not hit expected", "reach the expected")},
	{"truncated", containsAny("trunc", "invalid json", "unfinished", "incomplete")},
	{"off_topic", containsAny("off topic", "unrelated")},
	{"low_signal", containsAny("low signal", "gunk")},
	{"boilerplate", containsAny("boilerplate", "nav", "toc", "app shell")},
	{"too_short", containsAny("too short", "brevity")},
	{"missing_key_facts", func(t string) bool {
		if strings.Contains(t, "missing key") {
			return true
		}
		return strings.Contains(t, "missing") &&
			containsAny("facts", "results", "explanations")(t)
	}},
}

// NormalizeIssue maps a free-form judge string into IssueVocab.
// Returns ("", false) when no safe mapping exists.
func NormalizeIssue(s string) (string, bool) {
	t := strings.ToLower(strings.TrimSpace(s))
	if t == "" {
		return "", false
	}
	// Separator-normalize before the substring cascade.
	t = strings.ReplaceAll(t, "_", " ")
	t = strings.ReplaceAll(t, "-", " ")

	for _, r := range issueRules {
		if r.match(t) {
			return r.category, true
		}
	}

	// Exact-match fallback for already-normalized strings.
	k := strings.ReplaceAll(t, " ", "_")
	if issueSet[k] {
		return k, true
	}
	return "", false
}

// NormalizeCriticIssue maps a critic string into CriticIssueVocab.
// Exact match after case/whitespace fold only: the critic is deterministic,
// so anything else is drift and must surface as unknown.
func NormalizeCriticIssue(s string) (string, bool) {
	t := strings.TrimSpace(s)
	if t == "" {
		return "", false
	}
	if criticIssueSet[t] {
		return t, true
	}
	tl := strings.ReplaceAll(strings.ToLower(t), " ", "_")
	if criticIssueSet[tl] {
		return tl, true
	}
	return "", false
}

// ListResult is the outcome of normalizing one issue list.
type ListResult struct {
	RawJSON  *string // original list, compact JSON, input order
	NormJSON *string // normalized list, sorted + deduplicated
	Unknown  int64   // distinct unmapped entries
}

// NormalizeIssueList normalizes an arbitrary JSON value expected to be a
// list of strings, using the generic heuristic cascade. Non-list or
// mixed-type input yields an absent result with unknown 0.
//
// Dedup happens on the membership-test key: mapped category for knowns,
// folded raw string for unknowns. So len(norm) + unknown equals the size of
// the deduplicated input.
func NormalizeIssueList(v interface{}) ListResult {
	return normalizeList(v, NormalizeIssue)
}

// NormalizeCriticIssueList is NormalizeIssueList with strict critic matching.
func NormalizeCriticIssueList(v interface{}) ListResult {
	return normalizeList(v, NormalizeCriticIssue)
}

func normalizeList(v interface{}, norm func(string) (string, bool)) ListResult {
	xs := jsonval.StrList(v)
	if xs == nil {
		return ListResult{}
	}

	raw, err := json.Marshal(xs)
	if err != nil {
		return ListResult{}
	}
	rawJSON := string(raw)

	known := make(map[string]bool)
	unknown := make(map[string]bool)
	for _, s := range xs {
		if n, ok := norm(s); ok {
			known[n] = true
			continue
		}
		unknown[foldKey(s)] = true
	}

	cats := make([]string, 0, len(known))
	for c := range known {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	normBytes, err := json.Marshal(cats)
	if err != nil {
		return ListResult{}
	}
	normJSON := string(normBytes)

	return ListResult{
		RawJSON:  &rawJSON,
		NormJSON: &normJSON,
		Unknown:  int64(len(unknown)),
	}
}

func foldKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
