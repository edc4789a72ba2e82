// Package textseg provides the text segmentation foundation of mirrorpen:
// whitespace normalisation, locale-aware sentence splitting, and the typed
// token stream consumed by the rewrite pipeline.
//
// A tokenized document is a flat sequence of [Token] values. Sentence tokens
// carry a document-wide ascending index and are the only units ever sent to
// the rewriting service; separator tokens are literal paragraph boundaries
// that pass through the pipeline untouched. Concatenating the Text of every
// token in order reproduces the normalised input exactly, so a rewrite that
// replaces no sentences is the identity transformation.
//
// All functions in this package are pure and safe for concurrent use.
package textseg

// Kind distinguishes the two token variants.
type Kind int

const (
	// KindSentence is a rewritable sentence unit with a valid Index.
	KindSentence Kind = iota

	// KindSeparator is an immutable paragraph boundary. Its Index is -1 and
	// its Text is literal inter-paragraph whitespace (typically "\n\n").
	KindSeparator
)

// String returns the human-readable name of the kind.
func (k Kind) String() string {
	switch k {
	case KindSentence:
		return "sentence"
	case KindSeparator:
		return "separator"
	default:
		return "unknown"
	}
}

// Token is one element of a tokenized document.
type Token struct {
	// Kind selects the variant.
	Kind Kind

	// Index is the document-wide sentence ordinal, assigned sequentially
	// from 0 across one Tokenize call. It is -1 for separator tokens.
	Index int

	// Text is the literal token text. Never empty.
	Text string
}

// Sentence is an indexed sentence produced by [SplitSentences]. It is the
// statistical view of a text shared by the tokenizer and the analysis
// engine so that fidelity alerts localise to the same boundaries the
// rewrite pipeline uses.
type Sentence struct {
	Index int
	Text  string
}
