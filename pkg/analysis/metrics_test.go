package analysis

import (
	"math"
	"strings"
	"testing"
)

func TestCalculateMetrics_Deterministic(t *testing.T) {
	a := NewAnalyzer(Config{})
	text := "因此本文提出新方法。然而实验结果有限！此外还有改进空间？"
	m1 := a.CalculateMetrics(text)
	m2 := a.CalculateMetrics(text)

	if m1.SentenceCount != m2.SentenceCount || m1.TemplateHits != m2.TemplateHits {
		t.Error("metrics are not deterministic")
	}
	if m1.SentenceCount != 3 {
		t.Errorf("sentence count = %d, want 3", m1.SentenceCount)
	}
}

func TestCalculateMetrics_Connectors(t *testing.T) {
	a := NewAnalyzer(Config{})
	m := a.CalculateMetrics("因此如此。然而并非。此外补充。尤其重要。")

	for _, cat := range []string{"causal", "adversative", "additive", "emphatic"} {
		if m.Connectors[cat] != 1 {
			t.Errorf("connector %s = %d, want 1", cat, m.Connectors[cat])
		}
	}
}

func TestCalculateMetrics_HeadingsExcludedFromBody(t *testing.T) {
	a := NewAnalyzer(Config{})
	withHeading := a.CalculateMetrics("# 很长很长的标题标题标题\n正文短句。")
	without := a.CalculateMetrics("正文短句。")

	if withHeading.BodyChars != without.BodyChars {
		t.Errorf("body chars = %d, want %d (heading excluded)", withHeading.BodyChars, without.BodyChars)
	}
	if withHeading.RawChars <= without.RawChars {
		t.Error("raw chars should include the heading")
	}
}

func TestCalculateMetrics_PunctuationDensity(t *testing.T) {
	a := NewAnalyzer(Config{})
	m := a.CalculateMetrics("一，二，三。")

	if m.Punctuation["comma"] <= 0 {
		t.Error("comma density should be positive")
	}
	// 2 commas over 6 body runes.
	want := 2.0 * 1000 / 6
	if got := m.Punctuation["comma"]; math.Abs(got-want) > 1e-9 {
		t.Errorf("comma density = %v, want %v", got, want)
	}
}

func TestCalculateMetrics_Empty(t *testing.T) {
	m := NewAnalyzer(Config{}).CalculateMetrics("")
	if m.SentenceCount != 0 || m.BodyChars != 0 || m.TemplateDensity != 0 {
		t.Errorf("empty text fingerprint not zero: %+v", m)
	}
}

func TestPercentile_LinearInterpolation(t *testing.T) {
	vals := []float64{10, 20, 30, 40}
	if got := percentile(vals, 0.5); got != 25 {
		t.Errorf("median = %v, want 25", got)
	}
	if got := percentile(vals, 0.9); math.Abs(got-37) > 1e-9 {
		t.Errorf("p90 = %v, want 37", got)
	}
	if got := percentile(vals, 1.0); got != 40 {
		t.Errorf("p100 = %v, want 40", got)
	}
}

func TestCalculateMetrics_LongSentenceRate(t *testing.T) {
	a := NewAnalyzer(Config{LongSentenceThreshold: 10})
	text := "短句子呀。" + strings.Repeat("长", 30) + "。"
	m := a.CalculateMetrics(text)

	if m.Sentences.LongRate != 0.5 {
		t.Errorf("long rate = %v, want 0.5", m.Sentences.LongRate)
	}
}
