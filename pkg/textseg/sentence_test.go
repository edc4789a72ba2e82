package textseg

import (
	"strings"
	"testing"
)

func TestSplitSentences_EastAsian(t *testing.T) {
	got := SplitSentences("第一句话。第二句话！第三句话？")
	if len(got) != 3 {
		t.Fatalf("got %d sentences, want 3: %#v", len(got), got)
	}
	wantTexts := []string{"第一句话。", "第二句话！", "第三句话？"}
	for i, s := range got {
		if s.Index != i {
			t.Errorf("sentence %d has index %d", i, s.Index)
		}
		if s.Text != wantTexts[i] {
			t.Errorf("sentence %d = %q, want %q", i, s.Text, wantTexts[i])
		}
	}
}

func TestSplitSentences_SkipsHeadings(t *testing.T) {
	got := SplitSentences("# Introduction\n这是正文。")
	if len(got) != 1 {
		t.Fatalf("got %d sentences, want 1: %#v", len(got), got)
	}
	if got[0].Text != "这是正文。" {
		t.Errorf("sentence = %q", got[0].Text)
	}
}

func TestSplitSentences_SkipsShortFragments(t *testing.T) {
	got := SplitSentences("完整的一句话。A")
	if len(got) != 1 {
		t.Fatalf("got %d sentences, want 1 (fragment dropped): %#v", len(got), got)
	}
}

func TestSplitSentences_DecimalNotSplit(t *testing.T) {
	got := SplitSentences("The rate was 35.7% in total. Another sentence here.")
	if len(got) != 2 {
		t.Fatalf("got %d sentences, want 2: %#v", len(got), got)
	}
	if !strings.Contains(got[0].Text, "35.7%") {
		t.Errorf("decimal was split apart: %q", got[0].Text)
	}
}

func TestSplitSentences_Empty(t *testing.T) {
	if got := SplitSentences(""); len(got) != 0 {
		t.Errorf("got %d sentences for empty input", len(got))
	}
}

func TestSplitSpans_RoundTrip(t *testing.T) {
	inputs := []string{
		"第一句话。第二句话！尾巴",
		"no enders at all",
		"A。中间正常的句子。B",
	}
	for _, in := range inputs {
		spans := splitSpans(in)
		if got := strings.Join(spans, ""); got != in {
			t.Errorf("splitSpans(%q) does not round-trip: %q", in, got)
		}
		for _, sp := range spans {
			if sp == "" {
				t.Errorf("splitSpans(%q) emitted empty span", in)
			}
		}
	}
}
