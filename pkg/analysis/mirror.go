package analysis

import "math"

// Distance weights for the mirror score. They sum to 1.0.
const (
	weightSentence    = 0.40
	weightConnectors  = 0.25
	weightPunctuation = 0.15
	weightTemplates   = 0.20
)

// MirrorScore reports how closely two texts track a sample's statistical
// style fingerprint, on a 0–100 scale where 100 is an identical fingerprint.
type MirrorScore struct {
	// DraftToSample is the similarity of the original draft to the sample.
	DraftToSample float64

	// StandardToSample is the similarity of the rewritten output to the
	// sample.
	StandardToSample float64

	// Improvement is StandardToSample − DraftToSample. Positive means the
	// rewrite moved the draft toward the sample's style.
	Improvement float64
}

// GenerateMirrorScore fingerprints the three texts and scores draft and
// standard (the rewritten output) against the sample. Identical inputs
// score 100 with an improvement of 0.
func (a *Analyzer) GenerateMirrorScore(sample, draft, standard string) MirrorScore {
	sampleM := a.CalculateMetrics(sample)
	draftM := a.CalculateMetrics(draft)
	standardM := a.CalculateMetrics(standard)

	ds := similarity(draftM, sampleM)
	ss := similarity(standardM, sampleM)
	return MirrorScore{
		DraftToSample:    ds,
		StandardToSample: ss,
		Improvement:      ss - ds,
	}
}

// similarity converts the weighted fingerprint distance between text and
// sample into a 0–100 score via (1 − distance) × 100.
func similarity(text, sample DetailedMetrics) float64 {
	d := weightSentence*sentenceDistance(text.Sentences, sample.Sentences) +
		weightConnectors*connectorDistance(text, sample) +
		weightPunctuation*punctuationDistance(text, sample) +
		weightTemplates*relativeDiff(text.TemplateDensity, sample.TemplateDensity)
	return (1 - d) * 100
}

// relativeDiff normalises |a−b| into [0,1] by the larger magnitude.
// Two zeros are identical, distance 0.
func relativeDiff(a, b float64) float64 {
	den := math.Max(math.Abs(a), math.Abs(b))
	if den == 0 {
		return 0
	}
	return math.Min(math.Abs(a-b)/den, 1)
}

// sentenceDistance blends the mean, the 90th percentile, and the long-rate
// of the two length distributions.
func sentenceDistance(a, b SentenceStats) float64 {
	return (relativeDiff(a.Mean, b.Mean) +
		relativeDiff(a.P90, b.P90) +
		math.Abs(a.LongRate-b.LongRate)) / 3
}

// connectorDistance compares per-category connector rates per sentence, so
// texts of different lengths remain comparable.
func connectorDistance(a, b DetailedMetrics) float64 {
	categories := [...]string{"causal", "adversative", "additive", "emphatic"}
	sum := 0.0
	for _, cat := range categories {
		sum += relativeDiff(perSentence(a, cat), perSentence(b, cat))
	}
	return sum / float64(len(categories))
}

func perSentence(m DetailedMetrics, category string) float64 {
	if m.SentenceCount == 0 {
		return 0
	}
	return float64(m.Connectors[category]) / float64(m.SentenceCount)
}

// punctuationDistance averages the per-class density differences across the
// union of classes present in either fingerprint.
func punctuationDistance(a, b DetailedMetrics) float64 {
	classes := map[string]bool{}
	for c := range a.Punctuation {
		classes[c] = true
	}
	for c := range b.Punctuation {
		classes[c] = true
	}
	if len(classes) == 0 {
		return 0
	}
	sum := 0.0
	for c := range classes {
		sum += relativeDiff(a.Punctuation[c], b.Punctuation[c])
	}
	return sum / float64(len(classes))
}
