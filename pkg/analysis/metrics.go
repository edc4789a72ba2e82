// Package analysis computes the deterministic, non-LLM half of mirrorpen's
// audit: statistical style fingerprints ([DetailedMetrics]), sample-similarity
// mirror scores, and fidelity guardrails that catch factual tokens (numbers,
// acronyms) lost during rewriting.
//
// Everything here is pure computation over strings — no network calls, no
// randomness — so the same text always yields the same report. The sentence
// boundaries used for localisation come from [textseg.SplitSentences], the
// same splitter the rewrite pipeline uses, so alerts point at the sentences
// the pipeline actually processed.
package analysis

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/mirrorpen/mirrorpen/pkg/textseg"
)

// Config holds the analysis engine's tunable thresholds. The zero value is
// usable; zero fields take the defaults below.
type Config struct {
	// LongSentenceThreshold is the rune length above which a sentence counts
	// as "long" in the distribution stats. Default: 60.
	LongSentenceThreshold int

	// MaxAlerts caps the number of fidelity alerts per category pair.
	// Default: 10.
	MaxAlerts int

	// SuggestionThreshold is the minimum Jaro-Winkler similarity for a
	// surviving acronym to be offered as the likely mutation of a lost one.
	// Default: 0.78.
	SuggestionThreshold float64
}

func (c Config) withDefaults() Config {
	if c.LongSentenceThreshold <= 0 {
		c.LongSentenceThreshold = 60
	}
	if c.MaxAlerts <= 0 {
		c.MaxAlerts = 10
	}
	if c.SuggestionThreshold <= 0 {
		c.SuggestionThreshold = 0.78
	}
	return c
}

// Analyzer computes metrics, mirror scores, and fidelity guardrails.
// Read-only after construction and safe for concurrent use.
type Analyzer struct {
	cfg Config
}

// NewAnalyzer returns an Analyzer with cfg applied over the defaults.
func NewAnalyzer(cfg Config) *Analyzer {
	return &Analyzer{cfg: cfg.withDefaults()}
}

// SentenceStats summarises the sentence-length distribution of a text.
// Lengths are in runes.
type SentenceStats struct {
	Mean   float64
	Median float64
	P90    float64

	// LongRate is the fraction (0–1) of sentences over the configured
	// length threshold.
	LongRate float64
}

// DetailedMetrics is the statistical style fingerprint of one text.
type DetailedMetrics struct {
	// SentenceCount is the number of sentences found by the statistical
	// splitter (headings and short fragments excluded).
	SentenceCount int

	// BodyChars is the rune count of the text with heading lines removed;
	// it is the denominator for all per-1000-character densities.
	BodyChars int

	// RawChars is the rune count of the full text, headings included.
	RawChars int

	Sentences SentenceStats

	// Punctuation maps mark class ("comma", "period", "semicolon", "colon",
	// "question", "exclamation", "paren", "quote", "dash") to occurrences
	// per 1000 body characters.
	Punctuation map[string]float64

	// Connectors maps category ("causal", "adversative", "additive",
	// "emphatic") to raw occurrence counts.
	Connectors map[string]int

	// TemplateHits is the number of boilerplate-phrase occurrences and
	// TemplateDensity the same count per 1000 body characters.
	TemplateHits    int
	TemplateDensity float64
}

// punctuationClasses maps each tracked mark to its class. Both East-Asian
// and Latin forms are folded into the same class so that mixed-script texts
// fingerprint consistently.
var punctuationClasses = map[rune]string{
	'，': "comma", ',': "comma", '、': "comma",
	'。': "period", '.': "period",
	'；': "semicolon", ';': "semicolon",
	'：': "colon", ':': "colon",
	'？': "question", '?': "question",
	'！': "exclamation", '!': "exclamation",
	'（': "paren", '）': "paren", '(': "paren", ')': "paren",
	'“': "quote", '”': "quote", '"': "quote",
	'—': "dash", '–': "dash",
}

// connectorCategories holds bilingual connective-word lists by rhetorical
/// category. Matching is plain substring search: Chinese connectors have no
// word boundaries, and for the Latin entries the lists only contain words
// long enough for false positives to stay negligible.
var connectorCategories = map[string][]string{
	"causal":      {"因此", "所以", "由于", "因而", "从而", "故而", "therefore", "thus", "hence", "consequently", "because"},
	"adversative": {"然而", "但是", "不过", "尽管", "虽然", "反而", "however", "nevertheless", "whereas", "although", "in contrast"},
	"additive":    {"此外", "而且", "并且", "同时", "另外", "以及", "moreover", "furthermore", "in addition", "additionally", "besides"},
	"emphatic":    {"尤其", "特别是", "显然", "必须", "值得注意", "重要的是", "notably", "especially", "indeed", "particularly", "importantly"},
}

// templatePhrases lists boilerplate academic phrasing whose density is part
// of the fingerprint. Over-templated output is the classic failure mode of
// LLM restyling, so the mirror score penalises drift in this dimension.
var templatePhrases = []string{
	"综上所述", "本文", "随着", "近年来", "在一定程度上", "据统计", "众所周知",
	"不难发现", "由此可见", "总的来说", "研究表明",
	"in this paper", "it is worth noting", "as mentioned above", "in recent years",
	"plays an important role", "more and more", "to some extent", "it can be seen that",
}

// CalculateMetrics computes the [DetailedMetrics] fingerprint of text.
// Pure and deterministic; an empty text yields a zero-valued fingerprint.
func (a *Analyzer) CalculateMetrics(text string) DetailedMetrics {
	m := DetailedMetrics{
		RawChars:    utf8.RuneCountInString(text),
		Punctuation: map[string]float64{},
		Connectors:  map[string]int{},
	}

	body := stripHeadings(text)
	m.BodyChars = utf8.RuneCountInString(body)

	sentences := textseg.SplitSentences(text)
	m.SentenceCount = len(sentences)
	m.Sentences = a.sentenceStats(sentences)

	if m.BodyChars > 0 {
		counts := map[string]int{}
		for _, r := range body {
			if class, ok := punctuationClasses[r]; ok {
				counts[class]++
			}
		}
		for class, n := range counts {
			m.Punctuation[class] = float64(n) * 1000 / float64(m.BodyChars)
		}
	}

	lower := strings.ToLower(body)
	for category, words := range connectorCategories {
		total := 0
		for _, w := range words {
			total += strings.Count(lower, w)
		}
		m.Connectors[category] = total
	}

	for _, phrase := range templatePhrases {
		m.TemplateHits += strings.Count(lower, phrase)
	}
	if m.BodyChars > 0 {
		m.TemplateDensity = float64(m.TemplateHits) * 1000 / float64(m.BodyChars)
	}

	return m
}

// sentenceStats computes the length distribution of sentences.
func (a *Analyzer) sentenceStats(sentences []textseg.Sentence) SentenceStats {
	if len(sentences) == 0 {
		return SentenceStats{}
	}

	lengths := make([]float64, len(sentences))
	long := 0
	sum := 0.0
	for i, s := range sentences {
		n := utf8.RuneCountInString(s.Text)
		lengths[i] = float64(n)
		sum += float64(n)
		if n > a.cfg.LongSentenceThreshold {
			long++
		}
	}
	sort.Float64s(lengths)

	return SentenceStats{
		Mean:     sum / float64(len(lengths)),
		Median:   percentile(lengths, 0.5),
		P90:      percentile(lengths, 0.9),
		LongRate: float64(long) / float64(len(lengths)),
	}
}

// percentile returns the p-th percentile (0–1) of sorted values using
// linear interpolation between the two nearest ranks.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p * float64(len(sorted)-1)
	lo := int(rank)
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

// TopConnectors returns up to n connective words that actually occur in
// text, most frequent first. Ties break lexicographically so the result is
// deterministic. Used to seed default style guides when no extraction
// service is available.
func TopConnectors(text string, n int) []string {
	lower := strings.ToLower(text)

	type hit struct {
		word  string
		count int
	}
	var hits []hit
	for _, words := range connectorCategories {
		for _, w := range words {
			if c := strings.Count(lower, w); c > 0 {
				hits = append(hits, hit{word: w, count: c})
			}
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].count != hits[j].count {
			return hits[i].count > hits[j].count
		}
		return hits[i].word < hits[j].word
	})

	if n > len(hits) {
		n = len(hits)
	}
	out := make([]string, 0, n)
	for _, h := range hits[:n] {
		out = append(out, h.word)
	}
	return out
}

// stripHeadings removes heading lines so they do not inflate density
// denominators.
func stripHeadings(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if !strings.HasPrefix(strings.TrimSpace(line), "#") {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
