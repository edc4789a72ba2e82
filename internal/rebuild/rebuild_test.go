package rebuild

import (
	"strings"
	"testing"

	"github.com/mirrorpen/mirrorpen/internal/rewrite"
	"github.com/mirrorpen/mirrorpen/pkg/textseg"
)

// ── ValidateReplacements ──────────────────────────────────────────────────────

func validSet(indices ...int) map[int]bool {
	m := make(map[int]bool, len(indices))
	for _, i := range indices {
		m[i] = true
	}
	return m
}

// TestValidate_PassThrough checks that well-formed replacements survive in
// order.
func TestValidate_PassThrough(t *testing.T) {
	reps := []rewrite.Replacement{
		{Index: 0, Text: "甲。"},
		{Index: 2, Text: "乙。"},
	}
	valid, rejected := ValidateReplacements(reps, validSet(0, 1, 2))
	if len(rejected) != 0 {
		t.Fatalf("expected no rejections, got %v", rejected)
	}
	if len(valid) != 2 || valid[0].Index != 0 || valid[1].Index != 2 {
		t.Errorf("unexpected valid set: %v", valid)
	}
}

// TestValidate_UnknownIndex checks rejection of indices outside the batch.
func TestValidate_UnknownIndex(t *testing.T) {
	reps := []rewrite.Replacement{{Index: 7, Text: "外来句。"}}
	valid, rejected := ValidateReplacements(reps, validSet(0, 1))
	if len(valid) != 0 {
		t.Errorf("expected no valid replacements, got %v", valid)
	}
	if len(rejected) != 1 || rejected[0].Reason != RejectUnknownIndex {
		t.Errorf("expected unknown_index rejection, got %v", rejected)
	}
}

// TestValidate_DuplicateIndex checks that the first occurrence wins and the
// duplicate is rejected.
func TestValidate_DuplicateIndex(t *testing.T) {
	reps := []rewrite.Replacement{
		{Index: 1, Text: "第一版。"},
		{Index: 1, Text: "第二版。"},
	}
	valid, rejected := ValidateReplacements(reps, validSet(1))
	if len(valid) != 1 || valid[0].Text != "第一版。" {
		t.Errorf("expected first occurrence kept, got %v", valid)
	}
	if len(rejected) != 1 || rejected[0].Reason != RejectDuplicateIndex {
		t.Errorf("expected duplicate_index rejection, got %v", rejected)
	}
}

// TestValidate_SeparatorContamination checks rejection of replacement text
// carrying a paragraph separator.
func TestValidate_SeparatorContamination(t *testing.T) {
	reps := []rewrite.Replacement{{Index: 0, Text: "第一段。\n\n第二段。"}}
	valid, rejected := ValidateReplacements(reps, validSet(0))
	if len(valid) != 0 {
		t.Errorf("expected contaminated replacement dropped, got %v", valid)
	}
	if len(rejected) != 1 || rejected[0].Reason != RejectSeparatorText {
		t.Errorf("expected separator_text rejection, got %v", rejected)
	}
}

// TestValidate_NeverReturnsOutOfSet is the soundness property: no output
// index outside the valid set, no output index twice.
func TestValidate_NeverReturnsOutOfSet(t *testing.T) {
	reps := []rewrite.Replacement{
		{Index: 0, Text: "a"}, {Index: 0, Text: "b"}, {Index: 3, Text: "c"},
		{Index: 1, Text: "d\n\ne"}, {Index: 2, Text: "f"}, {Index: 2, Text: "g"},
	}
	set := validSet(0, 1, 2)
	valid, _ := ValidateReplacements(reps, set)
	seen := map[int]bool{}
	for _, r := range valid {
		if !set[r.Index] {
			t.Errorf("index %d outside valid set", r.Index)
		}
		if seen[r.Index] {
			t.Errorf("index %d returned twice", r.Index)
		}
		seen[r.Index] = true
	}
}

// ── RebuildText ───────────────────────────────────────────────────────────────

// TestRebuild_ThreeSentenceScenario checks the canonical CJK replacement
// case.
func TestRebuild_ThreeSentenceScenario(t *testing.T) {
	tokens := textseg.Tokenize("第一句话。第二句话！第三句话？")
	got := RebuildText(tokens, []rewrite.Replacement{{Index: 1, Text: "替换句。"}})
	want := "第一句话。替换句。第三句话？"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

// TestRebuild_NoReplacementsIsIdentity checks the round-trip property
// against the normalized input, including separators.
func TestRebuild_NoReplacementsIsIdentity(t *testing.T) {
	input := "第一段第一句。第一段第二句。\n\n第二段唯一一句。"
	tokens := textseg.Tokenize(input)
	got := RebuildText(tokens, nil)
	if got != textseg.Normalize(input) {
		t.Errorf("round trip mismatch:\n got %q\nwant %q", got, textseg.Normalize(input))
	}
	if !strings.Contains(got, "\n\n") {
		t.Error("paragraph separator lost during rebuild")
	}
}

// TestRebuild_SeparatorsNeverReplaced checks that a replacement index can
// never alter a separator token.
func TestRebuild_SeparatorsNeverReplaced(t *testing.T) {
	tokens := textseg.Tokenize("一句。\n\n二句。")
	// Separator tokens carry index -1; try to hit it.
	got := RebuildText(tokens, []rewrite.Replacement{{Index: -1, Text: "XXX"}})
	if strings.Contains(got, "XXX") {
		t.Errorf("separator token was replaced: %q", got)
	}
}

// TestRebuild_PreservesOrder checks that replacements never reorder tokens.
func TestRebuild_PreservesOrder(t *testing.T) {
	tokens := textseg.Tokenize("甲。乙。丙。")
	got := RebuildText(tokens, []rewrite.Replacement{
		{Index: 2, Text: "三。"},
		{Index: 0, Text: "一。"},
	})
	if got != "一。乙。三。" {
		t.Errorf("got %q, want %q", got, "一。乙。三。")
	}
}
