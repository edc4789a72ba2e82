package styleguide

import (
	"context"
	"errors"
	"testing"

	"github.com/mirrorpen/mirrorpen/internal/rewrite"
	"github.com/mirrorpen/mirrorpen/pkg/provider/llm"
	llmmock "github.com/mirrorpen/mirrorpen/pkg/provider/llm/mock"
)

// TestBuild_Success checks that a summary reply is extracted.
func TestBuild_Success(t *testing.T) {
	p := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: `{"summary":"一篇关于神经机器翻译的论文。"}`,
		},
	}
	b := NewLLMContextBuilder(p)

	got, err := b.Build(context.Background(), sampleDoc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "一篇关于神经机器翻译的论文。" {
		t.Errorf("unexpected summary: %q", got)
	}
}

// TestBuild_ProseWrappedResponse checks defensive unwrapping.
func TestBuild_ProseWrappedResponse(t *testing.T) {
	p := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: `Here you go: {"summary":"论文摘要。"} Enjoy!`,
		},
	}
	b := NewLLMContextBuilder(p)

	got, err := b.Build(context.Background(), sampleDoc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "论文摘要。" {
		t.Errorf("unexpected summary: %q", got)
	}
}

// TestBuild_EmptySummaryIsHardFailure checks that a blank summary is a parse
// failure, not an empty context.
func TestBuild_EmptySummaryIsHardFailure(t *testing.T) {
	p := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: `{"summary":""}`},
	}
	b := NewLLMContextBuilder(p)

	_, err := b.Build(context.Background(), sampleDoc)
	var perr *rewrite.ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *rewrite.ParseError, got %v", err)
	}
}

// TestTruncateContext checks the no-LLM fallback.
func TestTruncateContext(t *testing.T) {
	doc := "这是文档的开头部分，后面还有很多内容。"
	got := TruncateContext(doc, 5)
	if got != "这是文档的" {
		t.Errorf("unexpected truncation: %q", got)
	}

	// Zero max falls back to the 500-rune default and keeps short docs whole.
	if got := TruncateContext(doc, 0); got != doc {
		t.Errorf("expected whole document, got %q", got)
	}
}
