package textseg

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// sentenceEnders is the set of sentence-final punctuation marks recognised
// by the splitter. Both East-Asian and Latin forms are included because
// academic drafts routinely mix the two scripts.
var sentenceEnders = map[rune]bool{
	'。': true,
	'！': true,
	'？': true,
	'…': true,
	'!': true,
	'?': true,
}

// isSentenceEnd reports whether the rune at position i in runes terminates a
// sentence. An ASCII full stop only counts when it is not part of a decimal
// number and is followed by whitespace, a closing quote, or the end of the
// text, so that "35.7%" and "v2.1" survive as single sentences.
func isSentenceEnd(runes []rune, i int) bool {
	r := runes[i]
	if sentenceEnders[r] {
		return true
	}
	if r != '.' {
		return false
	}
	if i > 0 && unicode.IsDigit(runes[i-1]) && i+1 < len(runes) && unicode.IsDigit(runes[i+1]) {
		return false
	}
	if i+1 == len(runes) {
		return true
	}
	next := runes[i+1]
	return next == ' ' || next == '\n' || next == '"' || next == '”' || next == '）' || next == ')'
}

// isHeadingLine reports whether line is a markup heading. Heading lines are
// excluded from sentence statistics and are never sub-divided by the
// tokenizer.
func isHeadingLine(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "#")
}

// SplitSentences splits text into indexed sentences on sentence-final
// punctuation, retaining the punctuation with the preceding segment.
// Heading lines and fragments shorter than two runes are skipped; indices
// are assigned sequentially from zero over the surviving sentences.
//
// This is the statistical split shared by the analysis engine and the
// fidelity guardrails. The tokenizer uses the span-preserving variant
// [splitSpans] internally but cuts at the same boundaries, so a sentence
// index computed here locates the same text the pipeline rewrote.
func SplitSentences(text string) []Sentence {
	var out []Sentence
	for _, line := range strings.Split(text, "\n") {
		if isHeadingLine(line) {
			continue
		}
		for _, seg := range splitAtEnders(line) {
			seg = strings.TrimSpace(seg)
			if utf8.RuneCountInString(seg) < 2 {
				continue
			}
			out = append(out, Sentence{Index: len(out), Text: seg})
		}
	}
	return out
}

// splitAtEnders cuts text immediately after every sentence-final mark.
// The concatenation of the returned segments equals text exactly.
func splitAtEnders(text string) []string {
	runes := []rune(text)
	var segs []string
	start := 0
	for i := range runes {
		if isSentenceEnd(runes, i) {
			segs = append(segs, string(runes[start:i+1]))
			start = i + 1
		}
	}
	if start < len(runes) {
		segs = append(segs, string(runes[start:]))
	}
	return segs
}

// splitSpans is the structural sentence split used by the tokenizer. It cuts
// paragraph text at the same boundaries as [SplitSentences] but preserves
// every byte: fragments whose trimmed length is under two runes are merged
// into the preceding span instead of being dropped, and surrounding
// whitespace stays attached. The concatenation of the returned spans equals
// the input exactly, which is what gives [Tokenize] its round-trip identity.
func splitSpans(text string) []string {
	segs := splitAtEnders(text)
	var spans []string
	for _, seg := range segs {
		if len(spans) > 0 && utf8.RuneCountInString(strings.TrimSpace(seg)) < 2 {
			spans[len(spans)-1] += seg
			continue
		}
		spans = append(spans, seg)
	}
	// A leading short fragment had no predecessor; fold it forward.
	if len(spans) >= 2 && utf8.RuneCountInString(strings.TrimSpace(spans[0])) < 2 {
		spans[1] = spans[0] + spans[1]
		spans = spans[1:]
	}
	return spans
}
