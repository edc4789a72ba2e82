package rewrite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mirrorpen/mirrorpen/pkg/provider/llm"
)

const (
	defaultTemperature = 0.2
)

// sentenceSystemPrompt instructs the model to rewrite numbered sentences in
// the sample's style and reply with bare JSON. The style guide is appended at
// call time.
const sentenceSystemPrompt = `You are an academic style-transfer assistant.

Your task: rewrite the numbered sentences below so they match the target writing style, while preserving every factual claim, number, citation, and acronym exactly.

Rules:
- Rewrite each sentence independently; do not merge or split sentences.
- Keep the meaning identical. Never add or drop facts.
- Never include blank lines or paragraph breaks inside a rewritten sentence.
- If a sentence already matches the target style, you may omit it from the replacements.

Target style:
%s

Respond with ONLY a JSON object in this exact format (no markdown, no prose):
{
  "replacements": [
    {"index": <sentence index>, "text": "<rewritten sentence>"}
  ]
}`

// chunkSystemPrompt instructs the model to rewrite a whole section at a given
// intensity. The intensity instructions and style guide are appended at call
// time.
const chunkSystemPrompt = `You are an academic style-transfer assistant.

Your task: rewrite the section below so it matches the target writing style, while preserving every factual claim, number, citation, and acronym exactly.

Edit intensity: %s

Target style:
%s

Respond with ONLY a JSON object in this exact format (no markdown, no prose):
{
  "text": "<rewritten section>"
}`

var intensityInstructions = map[Intensity]string{
	IntensityConservative: "conservative — change only word choice and connective phrases; keep every sentence boundary where it is.",
	IntensityStandard:     "standard — you may restructure individual sentences, but keep paragraph boundaries and ordering.",
	IntensityEnhanced:     "enhanced — you may reorder and merge sentences within a paragraph for flow, but never across paragraphs.",
}

// sentenceResponse is the expected JSON shape of a sentence-batch reply.
type sentenceResponse struct {
	Replacements []Replacement `json:"replacements"`
}

// chunkResponse is the expected JSON shape of a chunk-rewrite reply.
type chunkResponse struct {
	Text string `json:"text"`
}

// Option is a functional option for configuring an [LLMService].
type Option func(*LLMService)

// WithTemperature sets the LLM sampling temperature. Lower values produce
// more reproducible rewrites. Default: 0.2.
func WithTemperature(temp float64) Option {
	return func(s *LLMService) {
		s.temperature = temp
	}
}

// WithMaxTokens caps the completion length of each request. Zero (the
// default) uses the provider default.
func WithMaxTokens(n int) Option {
	return func(s *LLMService) {
		s.maxTokens = n
	}
}

// LLMService implements [Service] and [ChunkService] on top of an
// [llm.Provider]. It is safe for concurrent use.
//
// Model selection follows the one-provider-per-model pattern: to rewrite
// with a specific model, construct the [llm.Provider] with that model
// configured rather than overriding per-request.
type LLMService struct {
	llm         llm.Provider
	temperature float64
	maxTokens   int
}

// Ensure LLMService satisfies both service interfaces at compile time.
var (
	_ Service      = (*LLMService)(nil)
	_ ChunkService = (*LLMService)(nil)
)

// NewLLMService returns an [LLMService] backed by the given provider.
func NewLLMService(provider llm.Provider, opts ...Option) *LLMService {
	s := &LLMService{
		llm:         provider,
		temperature: defaultTemperature,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Rewrite implements [Service]. The response is defensively unwrapped (code
// fences stripped, then the substring between the first '{' and the last '}'
// extracted) before parsing; anything that still fails to parse, or whose
// top-level shape does not match, is returned as a [*ParseError] so the
// caller's retry path engages.
func (s *LLMService) Rewrite(ctx context.Context, req Request) (*Result, error) {
	if len(req.Sentences) == 0 {
		return &Result{}, nil
	}

	creq := llm.CompletionRequest{
		SystemPrompt: fmt.Sprintf(sentenceSystemPrompt, formatStyle(req.Style)),
		Temperature:  s.temperature,
		MaxTokens:    s.maxTokens,
		Messages: []llm.Message{
			{Role: "user", Content: buildSentenceMessage(req)},
		},
	}

	resp, err := s.llm.Complete(ctx, creq)
	if err != nil {
		return nil, fmt.Errorf("rewrite: complete: %w", err)
	}

	payload, ok := extractJSON(resp.Content)
	if !ok {
		return nil, &ParseError{Raw: resp.Content}
	}

	var r sentenceResponse
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return nil, &ParseError{Raw: resp.Content}
	}
	if r.Replacements == nil {
		// A response without the replacements key is a shape mismatch, not
		// an empty edit set.
		if !strings.Contains(payload, `"replacements"`) {
			return nil, &ParseError{Raw: resp.Content}
		}
		r.Replacements = []Replacement{}
	}

	return &Result{Replacements: r.Replacements}, nil
}

// RewriteChunk implements [ChunkService].
func (s *LLMService) RewriteChunk(ctx context.Context, req ChunkRequest) (string, error) {
	instr, ok := intensityInstructions[req.Intensity]
	if !ok {
		instr = intensityInstructions[IntensityStandard]
	}

	creq := llm.CompletionRequest{
		SystemPrompt: fmt.Sprintf(chunkSystemPrompt, instr, formatStyle(req.Style)),
		Temperature:  s.temperature,
		MaxTokens:    s.maxTokens,
		Messages: []llm.Message{
			{Role: "user", Content: buildChunkMessage(req)},
		},
	}

	resp, err := s.llm.Complete(ctx, creq)
	if err != nil {
		return "", fmt.Errorf("rewrite: complete chunk: %w", err)
	}

	payload, ok := extractJSON(resp.Content)
	if !ok {
		return "", &ParseError{Raw: resp.Content}
	}

	var r chunkResponse
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return "", &ParseError{Raw: resp.Content}
	}
	if r.Text == "" {
		return "", &ParseError{Raw: resp.Content}
	}

	return r.Text, nil
}

// buildSentenceMessage assembles the user message for a sentence batch:
// numbered sentences preceded by the contextual material.
func buildSentenceMessage(req Request) string {
	var sb strings.Builder

	if req.GlobalContext != "" {
		sb.WriteString("Document context:\n")
		sb.WriteString(req.GlobalContext)
		sb.WriteString("\n\n")
	}
	if req.ContextBefore != "" {
		sb.WriteString("Preceding text:\n")
		sb.WriteString(req.ContextBefore)
		sb.WriteString("\n\n")
	}
	if req.ContextAfter != "" {
		sb.WriteString("Following text:\n")
		sb.WriteString(req.ContextAfter)
		sb.WriteString("\n\n")
	}

	sb.WriteString("Sentences to rewrite:\n")
	for _, s := range req.Sentences {
		fmt.Fprintf(&sb, "[%d] %s\n", s.Index, s.Text)
	}
	return sb.String()
}

// buildChunkMessage assembles the user message for a whole-chunk rewrite.
func buildChunkMessage(req ChunkRequest) string {
	var sb strings.Builder
	if req.GlobalContext != "" {
		sb.WriteString("Document context:\n")
		sb.WriteString(req.GlobalContext)
		sb.WriteString("\n\n")
	}
	if req.Title != "" {
		fmt.Fprintf(&sb, "Section: %s\n\n", req.Title)
	}
	sb.WriteString("Section text:\n")
	sb.WriteString(req.Text)
	return sb.String()
}

// formatStyle renders the style guide as prompt text.
func formatStyle(g StyleGuide) string {
	var sb strings.Builder
	if g.Tone != "" {
		fmt.Fprintf(&sb, "- Tone: %s\n", g.Tone)
	}
	if g.Structure != "" {
		fmt.Fprintf(&sb, "- Structure: %s\n", g.Structure)
	}
	if g.AverageSentenceLength > 0 {
		fmt.Fprintf(&sb, "- Average sentence length: %.0f characters\n", g.AverageSentenceLength)
	}
	if g.LexicalComplexity > 0 {
		fmt.Fprintf(&sb, "- Lexical complexity: %.2f (0–1)\n", g.LexicalComplexity)
	}
	if g.PassiveVoicePercentage > 0 {
		fmt.Fprintf(&sb, "- Passive voice: %.0f%% of sentences\n", g.PassiveVoicePercentage)
	}
	if len(g.CommonTransitions) > 0 {
		fmt.Fprintf(&sb, "- Preferred transitions: %s\n", strings.Join(g.CommonTransitions, ", "))
	}
	if sb.Len() == 0 {
		return "- Formal academic prose.\n"
	}
	return sb.String()
}

// extractJSON strips optional markdown code fences and then extracts the
// substring between the first '{' and the last '}'. Models routinely wrap
// JSON in prose or fencing; parsing must not depend on a clean reply.
func extractJSON(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			s = after
			break
		}
	}
	if before, ok := strings.CutSuffix(s, "```"); ok {
		s = before
	}

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}
