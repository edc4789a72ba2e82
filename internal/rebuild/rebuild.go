// Package rebuild validates rewriting-service replacements and reconstructs
// document text from the token stream.
//
// Validation and reconstruction are deliberately separate from the scheduler:
// validation runs per batch against the indices actually submitted in that
// batch, while reconstruction runs once per chunk over the accumulated
// replacement set.
package rebuild

import (
	"strings"

	"github.com/mirrorpen/mirrorpen/internal/rewrite"
	"github.com/mirrorpen/mirrorpen/pkg/textseg"
)

// paragraphSeparator is the separator-token literal. Replacement text that
// contains it would corrupt the sentence/separator distinction on rebuild.
const paragraphSeparator = "\n\n"

// RejectReason classifies why a replacement was dropped by validation.
type RejectReason string

const (
	// RejectUnknownIndex marks a replacement whose index was not among the
	// indices submitted in the batch.
	RejectUnknownIndex RejectReason = "unknown_index"

	// RejectDuplicateIndex marks a replacement whose index was already
	// accepted earlier in the same batch.
	RejectDuplicateIndex RejectReason = "duplicate_index"

	// RejectSeparatorText marks a replacement whose text contains a
	// paragraph separator.
	RejectSeparatorText RejectReason = "separator_text"
)

// Rejection pairs a dropped replacement with the reason it was dropped.
type Rejection struct {
	Replacement rewrite.Replacement
	Reason      RejectReason
}

// ValidateReplacements filters reps against the set of indices actually
// submitted in the batch. A replacement is dropped when its index is outside
// validSet, duplicates an already-accepted index, or its text contains a
// paragraph separator. Everything else passes through unchanged, in input
// order.
func ValidateReplacements(reps []rewrite.Replacement, validSet map[int]bool) (valid []rewrite.Replacement, rejected []Rejection) {
	seen := make(map[int]bool, len(reps))
	for _, r := range reps {
		switch {
		case !validSet[r.Index]:
			rejected = append(rejected, Rejection{Replacement: r, Reason: RejectUnknownIndex})
		case seen[r.Index]:
			rejected = append(rejected, Rejection{Replacement: r, Reason: RejectDuplicateIndex})
		case strings.Contains(r.Text, paragraphSeparator):
			rejected = append(rejected, Rejection{Replacement: r, Reason: RejectSeparatorText})
		default:
			seen[r.Index] = true
			valid = append(valid, r)
		}
	}
	return valid, rejected
}

// RebuildText reconstructs document text from tokens, substituting
// replacement text for sentence tokens whose index appears in reps.
// Separator tokens are emitted verbatim; sentence tokens without a
// replacement keep their original text. Token count and order are never
// altered.
func RebuildText(tokens []textseg.Token, reps []rewrite.Replacement) string {
	byIndex := make(map[int]string, len(reps))
	for _, r := range reps {
		byIndex[r.Index] = r.Text
	}

	var sb strings.Builder
	for _, tok := range tokens {
		if tok.Kind == textseg.KindSentence {
			if text, ok := byIndex[tok.Index]; ok {
				sb.WriteString(text)
				continue
			}
		}
		sb.WriteString(tok.Text)
	}
	return sb.String()
}
