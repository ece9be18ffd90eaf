// Package environment infers a categorical deployment environment from
// free-text workflow names. Environments are encoded as bracketed
// prefixes by convention (e.g. "[LIVE] DNA Extraction v2"), but plenty
// of workflows carry the keyword elsewhere in the name, so the scan
// falls back to the full name when no prefix is present.
package environment

import "strings"

// Label is a categorical environment tag derived from a workflow name.
type Label string

// Known environment labels. Names with an unrecognized bracket prefix
// produce the lower-cased prefix itself as the label.
const (
	Live         Label = "live"
	Test         Label = "test"
	UAT          Label = "uat"
	QAUAT        Label = "qa/uat"
	QA           Label = "qa"
	Experimental Label = "experimental"
	Archived     Label = "archived"
	Failed       Label = "failed"

	// Unlabeled marks names with no prefix and no keyword match.
	Unlabeled Label = "unlabeled"

	// Unknown marks records with no workflow name at all.
	Unknown Label = "unknown"
)

// keywordRule maps a search keyword to the label it implies.
type keywordRule struct {
	keyword string
	label   Label
}

// keywordRules is scanned in order and the first keyword found as a
// substring wins. The order is load-bearing: "uat" sits before "qa/uat"
// and "qa", and "uat" is a substring of a "[QA/UAT]" prefix, so that
// prefix classifies as "uat" and the qa/uat label is unreachable
// through it. That matches the billing convention this tool audits
// against; do not reorder without a billing sign-off.
var keywordRules = []keywordRule{
	{"live", Live},
	{"success", Live},
	{"testing", Test},
	{"test", Test},
	{"uat", UAT},
	{"qa/uat", QAUAT},
	{"qa", QA},
	{"experimental", Experimental},
	{"archive", Archived},
	{"archived", Archived},
	{"fail", Failed},
}

// Infer derives the environment label for a workflow name.
//
// The bracket prefix, when present at the start of the name, is the
// preferred search space; otherwise the whole lower-cased name is
// scanned. A prefix that matches no keyword is returned verbatim as an
// uninterpreted label. An absent name yields Unknown.
func Infer(workflowName string) Label {
	text := strings.TrimSpace(workflowName)
	if text == "" {
		return Unknown
	}

	candidate := bracketPrefix(text)

	searchSpace := candidate
	if searchSpace == "" {
		searchSpace = strings.ToLower(text)
	}

	for _, rule := range keywordRules {
		if strings.Contains(searchSpace, rule.keyword) {
			return rule.label
		}
	}

	if candidate != "" {
		return Label(candidate)
	}

	return Unlabeled
}

// bracketPrefix extracts the interior of a leading "[...]" prefix,
// trimmed and lower-cased. Returns "" when the name has no such prefix.
func bracketPrefix(text string) string {
	if !strings.HasPrefix(text, "[") {
		return ""
	}

	end := strings.IndexByte(text, ']')
	if end < 0 {
		return ""
	}

	return strings.ToLower(strings.TrimSpace(text[1:end]))
}
