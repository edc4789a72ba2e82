// Package rewrite defines the rewriting-service collaborators of the
// style-transfer pipeline: sentence-level batch rewriting and whole-chunk
// rewriting at graded intensities.
//
// The interfaces here are the seams the batch scheduler and workflow operate
// against. The production implementation is [LLMService]; tests use the mock
// subpackage.
package rewrite

import (
	"context"
	"fmt"
)

// SentenceInput is a single sentence submitted for rewriting, addressed by
// its document-global token index.
type SentenceInput struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// Replacement is a rewritten sentence keyed by the index of the original
// token it replaces. Replacement text must never contain a paragraph
// separator; reconstruction rejects contaminated replacements.
type Replacement struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// StyleGuide is the stylistic fingerprint extracted once per run from the
// sample document. It is immutable for the duration of a run and shared
// read-only across all chunk and batch operations.
type StyleGuide struct {
	// AverageSentenceLength is the mean sentence length of the sample, in
	// characters.
	AverageSentenceLength float64 `json:"average_sentence_length"`

	// LexicalComplexity is a 0–1 estimate of vocabulary sophistication.
	LexicalComplexity float64 `json:"lexical_complexity"`

	// PassiveVoicePercentage is the share of sample sentences using passive
	// constructions, in [0, 100].
	PassiveVoicePercentage float64 `json:"passive_voice_percentage"`

	// CommonTransitions lists the connective phrases the sample favours.
	CommonTransitions []string `json:"common_transitions"`

	// Tone is a short free-text description (e.g. "formal academic").
	Tone string `json:"tone"`

	// Structure is a short free-text description of paragraph organisation.
	Structure string `json:"structure"`
}

// Request carries one batch of sentences plus the contextual material the
// rewriting service needs: the run-wide style guide, the truncated global
// document context, and small windows of neighbouring-chunk text for local
// continuity across chunk boundaries.
type Request struct {
	Sentences     []SentenceInput
	Style         StyleGuide
	GlobalContext string
	ContextBefore string
	ContextAfter  string
}

// Result is a successfully parsed rewriting-service response. Replacements
// may cover fewer sentences than were submitted; uncovered sentences keep
// their original text.
type Result struct {
	Replacements []Replacement
}

// Service rewrites batches of sentences in the sample's style.
//
// A response that cannot be parsed into a [Result] is a batch failure and
// must be returned as a [*ParseError] (wrapped or direct) — never as an
// empty Result: the scheduler's retry and degradation path depends on
// distinguishing "no changes" from "unusable response".
type Service interface {
	Rewrite(ctx context.Context, req Request) (*Result, error)
}

// Intensity selects how aggressively a chunk rewrite may restructure text
// in full-text mode.
type Intensity string

const (
	// IntensityConservative limits edits to word choice and connectives.
	IntensityConservative Intensity = "conservative"
	// IntensityStandard allows sentence-level restructuring.
	IntensityStandard Intensity = "standard"
	// IntensityEnhanced allows reordering and merging within a paragraph.
	IntensityEnhanced Intensity = "enhanced"
)

// ChunkRequest carries one whole chunk for full-text rewriting.
type ChunkRequest struct {
	// Title is the chunk's section title, used for contextual prompting.
	Title string

	// Text is the chunk content to rewrite.
	Text string

	Style         StyleGuide
	GlobalContext string
	Intensity     Intensity
}

// ChunkService rewrites whole chunks at a given intensity. Used by the
// full-text workflow mode, which produces all three intensity variants.
type ChunkService interface {
	RewriteChunk(ctx context.Context, req ChunkRequest) (string, error)
}

// ParseError reports a rewriting-service response that could not be parsed
// as the expected JSON shape. Raw preserves the unparseable model output for
// diagnostics.
type ParseError struct {
	Raw string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("rewrite: unparseable service response (%d bytes)", len(e.Raw))
}
