package textseg

import "strings"

// Normalize unifies line-break styles and whitespace in raw document text:
//
//   - CRLF and lone CR become LF.
//   - Runs of three or more newlines collapse to exactly two (one blank
//     line, the paragraph boundary the tokenizer relies on).
//   - Runs of horizontal whitespace (spaces, tabs, ideographic spaces)
//     collapse to a single ASCII space.
//   - Leading and trailing whitespace is trimmed.
//
// Every downstream component operates on normalised text; the round-trip
// identity of [Tokenize] is stated relative to the output of Normalize.
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var b strings.Builder
	b.Grow(len(text))

	newlines := 0
	space := false
	for _, r := range text {
		switch {
		case r == '\n':
			// Flush a pending horizontal run; it is swallowed by the break.
			space = false
			newlines++
			if newlines <= 2 {
				b.WriteByte('\n')
			}
		case r == ' ' || r == '\t' || r == ' ' || r == '　':
			space = true
		default:
			newlines = 0
			if space {
				b.WriteByte(' ')
				space = false
			}
			b.WriteRune(r)
		}
	}

	return strings.Trim(b.String(), " \n")
}
