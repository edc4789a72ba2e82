package styleguide

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mirrorpen/mirrorpen/internal/rewrite"
	"github.com/mirrorpen/mirrorpen/pkg/provider/llm"
)

// contextSystemPrompt instructs the model to condense a document into a short
// context paragraph for use in downstream rewrite prompts.
const contextSystemPrompt = `You are a document summariser.

Your task: condense the document provided by the user into a single short paragraph (at most 500 characters) capturing its topic, goal, and key terminology. The summary is injected into later prompts as background context, so keep domain terms verbatim.

Respond with ONLY a JSON object in this exact format (no markdown, no prose):
{
  "summary": "<the context paragraph>"
}`

// ContextBuilder produces the truncated global document context shared by
// all rewrite batches of a run.
type ContextBuilder interface {
	Build(ctx context.Context, document string) (string, error)
}

// contextResponse is the expected JSON shape of a summariser reply.
type contextResponse struct {
	Summary string `json:"summary"`
}

// LLMContextBuilder implements [ContextBuilder] by asking an [llm.Provider]
// to summarise the document. Parse mismatches are hard failures returned as
// [*rewrite.ParseError]; the caller may substitute [TruncateContext].
type LLMContextBuilder struct {
	llm            llm.Provider
	temperature    float64
	maxSampleChars int
}

var _ ContextBuilder = (*LLMContextBuilder)(nil)

// NewLLMContextBuilder returns an [LLMContextBuilder] backed by the given
// provider.
func NewLLMContextBuilder(provider llm.Provider) *LLMContextBuilder {
	return &LLMContextBuilder{
		llm:            provider,
		temperature:    defaultTemperature,
		maxSampleChars: 6000,
	}
}

// Build implements [ContextBuilder].
func (b *LLMContextBuilder) Build(ctx context.Context, document string) (string, error) {
	req := llm.CompletionRequest{
		SystemPrompt: contextSystemPrompt,
		Temperature:  b.temperature,
		Messages: []llm.Message{
			{Role: "user", Content: truncateRunes(document, b.maxSampleChars)},
		},
	}

	resp, err := b.llm.Complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("styleguide: build context: %w", err)
	}

	payload, ok := extractJSON(resp.Content)
	if !ok {
		return "", &rewrite.ParseError{Raw: resp.Content}
	}

	var r contextResponse
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return "", &rewrite.ParseError{Raw: resp.Content}
	}
	if r.Summary == "" {
		return "", &rewrite.ParseError{Raw: resp.Content}
	}

	return r.Summary, nil
}

// TruncateContext is the no-LLM fallback: the first maxChars runes of the
// document stand in for a summary. Crude, but deterministic and always
// available.
func TruncateContext(document string, maxChars int) string {
	if maxChars <= 0 {
		maxChars = 500
	}
	return truncateRunes(document, maxChars)
}
