package textseg

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func joinTokens(tokens []Token) string {
	var b strings.Builder
	for _, tok := range tokens {
		b.WriteString(tok.Text)
	}
	return b.String()
}

func TestTokenize_SingleParagraph(t *testing.T) {
	tokens := Tokenize("第一句话。第二句话！第三句话？")
	if len(tokens) != 3 {
		t.Fatalf("got %d tokens, want 3: %#v", len(tokens), tokens)
	}
	for i, tok := range tokens {
		if tok.Kind != KindSentence {
			t.Errorf("token %d kind = %v, want sentence", i, tok.Kind)
		}
		if tok.Index != i {
			t.Errorf("token %d index = %d, want %d", i, tok.Index, i)
		}
	}
}

func TestTokenize_TwoParagraphs(t *testing.T) {
	tokens := Tokenize("第一段。\n\n第二段。")
	if len(tokens) != 3 {
		t.Fatalf("got %d tokens, want 3: %#v", len(tokens), tokens)
	}
	if tokens[1].Kind != KindSeparator || tokens[1].Text != "\n\n" {
		t.Errorf("middle token = %#v, want separator \"\\n\\n\"", tokens[1])
	}
	if tokens[1].Index != -1 {
		t.Errorf("separator index = %d, want -1", tokens[1].Index)
	}
	if tokens[0].Index != 0 || tokens[2].Index != 1 {
		t.Errorf("sentence indices = %d, %d, want 0, 1", tokens[0].Index, tokens[2].Index)
	}
}

func TestTokenize_NoTrailingSeparator(t *testing.T) {
	tokens := Tokenize("一段。\n\n二段。")
	if last := tokens[len(tokens)-1]; last.Kind == KindSeparator {
		t.Error("token stream ends with a separator")
	}
}

func TestTokenize_HeadingNotSplit(t *testing.T) {
	tokens := Tokenize("# 摘要。引言？\n\n正文第一句。")
	if tokens[0].Kind != KindSentence || tokens[0].Text != "# 摘要。引言？" {
		t.Errorf("heading token = %#v, want intact heading", tokens[0])
	}
}

func TestTokenize_RoundTrip(t *testing.T) {
	inputs := []string{
		"",
		"单独一句。",
		"第一句话。第二句话！第三句话？",
		"# Heading\n\n第一段第一句。第一段第二句。\n\n第二段。",
		"No enders here, just a fragment of text",
		"Mixed 脚本 text. 中文句子。Short tail",
	}
	for _, in := range inputs {
		tokens := Tokenize(in)
		if got, want := joinTokens(tokens), Normalize(in); got != want {
			t.Errorf("round-trip failed for %q:\n got %q\nwant %q", in, got, want)
		}
	}
}

func TestTokenize_IndicesStrictlyIncreasing(t *testing.T) {
	tokens := Tokenize("一。二二。\n\n三三三。四四。五五五五。")
	next := 0
	for _, tok := range tokens {
		if tok.Kind != KindSentence {
			continue
		}
		if tok.Index != next {
			t.Fatalf("sentence index %d, want %d (no gaps)", tok.Index, next)
		}
		next++
	}
	if next == 0 {
		t.Fatal("no sentence tokens produced")
	}
}

func TestTokenize_NeverEmitsEmptyTokens(t *testing.T) {
	for _, in := range []string{"。。。", "a. b. c.", "x\n\ny"} {
		for _, tok := range Tokenize(in) {
			if tok.Text == "" {
				t.Errorf("empty token for input %q", in)
			}
		}
	}
}

func TestTokenize_OversizedSentenceSplit(t *testing.T) {
	long := strings.Repeat("很长的子句，", 100) + "结尾。" // far beyond 400 runes
	tokens := NewTokenizer(Config{MaxSentenceChars: 50, TargetClauseChars: 30}).Tokenize(long)

	if len(tokens) < 2 {
		t.Fatalf("oversized sentence was not split: %d tokens", len(tokens))
	}
	if got, want := joinTokens(tokens), Normalize(long); got != want {
		t.Error("oversized split lost content")
	}
}

func TestTokenize_ForceSplitHardCut(t *testing.T) {
	// No clause punctuation, no spaces: the splitter must hard-cut.
	long := strings.Repeat("字", 900)
	tk := NewTokenizer(Config{MaxSentenceChars: 400, TargetClauseChars: 280, BoundaryLookback: 80})
	tokens := tk.Tokenize(long)

	if len(tokens) < 3 {
		t.Fatalf("got %d tokens, want >= 3", len(tokens))
	}
	for _, tok := range tokens {
		if n := utf8.RuneCountInString(tok.Text); n > 280 {
			t.Errorf("piece of %d runes exceeds target", n)
		}
	}
	if joinTokens(tokens) != long {
		t.Error("hard cut lost content")
	}
}

func TestTokenize_Empty(t *testing.T) {
	if tokens := Tokenize(""); tokens != nil {
		t.Errorf("Tokenize(\"\") = %#v, want nil", tokens)
	}
}
