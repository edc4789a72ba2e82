package textseg

import (
	"strings"
	"unicode/utf8"
)

// paragraphSeparator is the literal text of every separator token.
const paragraphSeparator = "\n\n"

// Config holds the tokenizer's size thresholds. The zero value is usable;
// zero fields are replaced with the defaults below.
type Config struct {
	// MaxSentenceChars is the rune length above which a sentence is
	// secondarily split on clause punctuation. Default: 400.
	MaxSentenceChars int

	// TargetClauseChars is the rune length a clause may reach before it is
	// force-split at the nearest preferred boundary. Default: 280.
	TargetClauseChars int

	// BoundaryLookback is how many runes before the cut position the
	// force-splitter searches for a preferred boundary (punctuation or
	// space) before falling back to a hard cut. Default: 80.
	BoundaryLookback int
}

func (c Config) withDefaults() Config {
	if c.MaxSentenceChars <= 0 {
		c.MaxSentenceChars = 400
	}
	if c.TargetClauseChars <= 0 {
		c.TargetClauseChars = 280
	}
	if c.BoundaryLookback <= 0 {
		c.BoundaryLookback = 80
	}
	return c
}

// Tokenizer converts document text into a [Token] stream. It is stateless
// apart from its configuration and safe for concurrent use.
type Tokenizer struct {
	cfg Config
}

// NewTokenizer returns a Tokenizer with cfg applied over the defaults.
func NewTokenizer(cfg Config) *Tokenizer {
	return &Tokenizer{cfg: cfg.withDefaults()}
}

// Tokenize tokenizes text with the default configuration.
func Tokenize(text string) []Token {
	return NewTokenizer(Config{}).Tokenize(text)
}

// Tokenize normalises text and converts it into an ordered token stream:
//
//   - Paragraphs (blank-line separated) are processed in order, with a
//     separator token emitted between consecutive paragraphs but not after
//     the last one.
//   - A heading paragraph becomes a single sentence token, never
//     sub-divided.
//   - Other paragraphs are split into sentence spans; spans longer than
//     MaxSentenceChars are split on clause punctuation, and clauses still
//     over TargetClauseChars are force-split at the nearest preferred
//     boundary within the lookback window (hard cut as a last resort).
//   - Sentence indices are assigned sequentially from zero across the whole
//     call.
//
// Concatenating the Text of every returned token reproduces
// Normalize(text) exactly. Splitting is lossless: cuts happen at substring
// boundaries and leave no gaps. The empty string yields an empty stream.
func (t *Tokenizer) Tokenize(text string) []Token {
	normalized := Normalize(text)
	if normalized == "" {
		return nil
	}

	var tokens []Token
	nextIndex := 0
	emit := func(s string) {
		tokens = append(tokens, Token{Kind: KindSentence, Index: nextIndex, Text: s})
		nextIndex++
	}

	paragraphs := strings.Split(normalized, paragraphSeparator)
	for pi, para := range paragraphs {
		if pi > 0 {
			tokens = append(tokens, Token{Kind: KindSeparator, Index: -1, Text: paragraphSeparator})
		}
		if para == "" {
			continue
		}
		if isHeadingLine(para) {
			emit(para)
			continue
		}
		for _, span := range splitSpans(para) {
			for _, piece := range t.splitOversized(span) {
				emit(piece)
			}
		}
	}
	return tokens
}

// splitOversized returns span unchanged when it fits within
// MaxSentenceChars; otherwise it splits on clause punctuation and
// force-splits any clause that still exceeds TargetClauseChars. The
// concatenation of the returned pieces equals span.
func (t *Tokenizer) splitOversized(span string) []string {
	if utf8.RuneCountInString(span) <= t.cfg.MaxSentenceChars {
		return []string{span}
	}
	var pieces []string
	for _, clause := range splitClauses(span) {
		if utf8.RuneCountInString(clause) <= t.cfg.TargetClauseChars {
			pieces = append(pieces, clause)
			continue
		}
		pieces = append(pieces, t.forceSplit(clause)...)
	}
	return pieces
}

// clauseBreakers is the clause-level punctuation used for secondary
// splitting of oversized sentences. Cuts happen after the mark.
var clauseBreakers = map[rune]bool{
	'，': true,
	'、': true,
	'；': true,
	',': true,
	';': true,
}

// splitClauses cuts text after every clause-level punctuation mark.
// Concatenation of the result equals text.
func splitClauses(text string) []string {
	runes := []rune(text)
	var out []string
	start := 0
	for i, r := range runes {
		if clauseBreakers[r] {
			out = append(out, string(runes[start:i+1]))
			start = i + 1
		}
	}
	if start < len(runes) {
		out = append(out, string(runes[start:]))
	}
	return out
}

// preferredBoundary reports whether a force-split may cut after r.
func preferredBoundary(r rune) bool {
	return clauseBreakers[r] || sentenceEnders[r] || r == ' ' || r == '\n' || r == '：' || r == ':'
}

// forceSplit cuts clause into pieces of at most TargetClauseChars runes.
// Each cut position snaps backward to the nearest preferred boundary within
// BoundaryLookback runes; when none exists the cut is a hard one at exactly
// the target size. Concatenation of the pieces equals clause.
func (t *Tokenizer) forceSplit(clause string) []string {
	runes := []rune(clause)
	var pieces []string
	for len(runes) > t.cfg.TargetClauseChars {
		cut := t.cfg.TargetClauseChars
		for back := 0; back < t.cfg.BoundaryLookback && cut-back-1 > 0; back++ {
			if preferredBoundary(runes[cut-back-1]) {
				cut -= back
				break
			}
		}
		pieces = append(pieces, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		pieces = append(pieces, string(runes))
	}
	return pieces
}
