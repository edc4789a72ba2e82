// Package workflow runs a complete style-transfer pass: style and context
// extraction from the sample, chunked rewriting of the draft, reconstruction,
// and the local analysis audit. It is the top-level boundary of the pipeline:
// provider failures degrade into a partial result, they do not escape as
// errors. The only errors Run returns are missing input and context
// cancellation.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mirrorpen/mirrorpen/internal/batch"
	"github.com/mirrorpen/mirrorpen/internal/observe"
	"github.com/mirrorpen/mirrorpen/internal/rebuild"
	"github.com/mirrorpen/mirrorpen/internal/rewrite"
	"github.com/mirrorpen/mirrorpen/internal/styleguide"
	"github.com/mirrorpen/mirrorpen/pkg/analysis"
	"github.com/mirrorpen/mirrorpen/pkg/chunk"
	"github.com/mirrorpen/mirrorpen/pkg/textseg"
)

// ErrNoContent is returned by [Runner.Run] when the draft is empty after
// normalization. An empty sample is tolerated; an empty draft is not.
var ErrNoContent = errors.New("workflow: draft has no content")

// Mode selects the rewriting strategy.
type Mode string

const (
	// ModeSentenceEdit rewrites sentence by sentence through the adaptive
	// batch scheduler. Only the standard variant is produced.
	ModeSentenceEdit Mode = "sentence-edit"

	// ModeFullText rewrites whole chunks at three intensities, producing
	// all three output variants.
	ModeFullText Mode = "full-text"
)

// Progress stage names, as delivered to the [ProgressFunc].
const (
	StageStyle    = "style-extraction"
	StageContext  = "context-extraction"
	StageChunk    = "chunk"
	StageBatch    = "batch"
	StageAnalysis = "analysis"
)

// Progress is one progress event. Current and Total are meaningful for the
// chunk and batch stages; Partial, when non-empty, is the output accumulated
// so far and allows incremental rendering.
type Progress struct {
	Stage   string
	Current int
	Total   int
	Partial string
}

// ProgressFunc receives progress events during a run. It is called from the
// run's own goroutine and must not block for long.
type ProgressFunc func(Progress)

// Status is the run outcome marker. A run with any failed sentence, failed
// chunk, or substituted upstream extraction is partial, never silently
// complete.
type Status string

const (
	StatusComplete Status = "complete"
	StatusPartial  Status = "partial"
)

// Result is the final output of one run.
type Result struct {
	// Conservative, Standard, Enhanced are the rewritten variants. In
	// sentence-edit mode only Standard is populated.
	Conservative string
	Standard     string
	Enhanced     string

	// Report is the local analysis audit of the standard variant, nil when
	// analysis was skipped.
	Report analysis.Report

	Status  Status
	Message string

	// FailedSentences counts sentences that kept their original text after
	// every rewrite attempt failed. Sentence-edit mode only.
	FailedSentences int

	// FailedChunks counts chunks preserved verbatim after chunk-level
	// rewriting failed. Full-text mode only.
	FailedChunks int

	// Chunks is the number of chunks the draft was split into.
	Chunks int
}

// Config tunes a [Runner]. The zero value is usable.
type Config struct {
	// Mode selects sentence-edit (default) or full-text rewriting.
	Mode Mode

	// StrictUpstream makes style- and context-extraction failures abort the
	// run. When false (default) a local default style guide and a truncated
	// document excerpt are substituted and the run is marked partial.
	StrictUpstream bool

	// ContextWindowLines is how many trailing/leading lines of the
	// neighboring chunks accompany each chunk for continuity. Default: 3.
	ContextWindowLines int

	// MaxContextChars bounds the substituted document context when the
	// context extraction fails. Default: 500.
	MaxContextChars int

	// Batch tunes the per-chunk scheduler.
	Batch batch.Config

	// Chunk tunes the document segmenter.
	Chunk chunk.Config

	// Tokenizer tunes the sentence tokenizer.
	Tokenizer textseg.Config

	// Analysis tunes the local analysis engine.
	Analysis analysis.Config
}

func (c Config) withDefaults() Config {
	if c.Mode == "" {
		c.Mode = ModeSentenceEdit
	}
	if c.ContextWindowLines <= 0 {
		c.ContextWindowLines = 3
	}
	if c.MaxContextChars <= 0 {
		c.MaxContextChars = 500
	}
	return c
}

// Services are the external collaborators a run depends on. Rewriter is
// required in sentence-edit mode, ChunkRewriter in full-text mode; the
// extraction services are always required.
type Services struct {
	Rewriter      rewrite.Service
	ChunkRewriter rewrite.ChunkService
	Styles        styleguide.Extractor
	Context       styleguide.ContextBuilder
}

// Runner executes style-transfer runs. Safe for concurrent use as long as
// the injected services are.
type Runner struct {
	cfg       Config
	services  Services
	segmenter *chunk.Segmenter
	tokenizer *textseg.Tokenizer
	analyzer  *analysis.Analyzer
	log       *slog.Logger
	metrics   *observe.Metrics
	batchOpts []batch.Option
}

// Option configures a [Runner].
type Option func(*Runner)

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(log *slog.Logger) Option {
	return func(r *Runner) { r.log = log }
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithBatchOptions appends options passed to every per-chunk scheduler.
// Tests use this to remove the inter-batch delay.
func WithBatchOptions(opts ...batch.Option) Option {
	return func(r *Runner) { r.batchOpts = append(r.batchOpts, opts...) }
}

// NewRunner validates that the services required by cfg.Mode are present and
// returns a ready runner.
func NewRunner(cfg Config, services Services, opts ...Option) (*Runner, error) {
	cfg = cfg.withDefaults()
	switch cfg.Mode {
	case ModeSentenceEdit:
		if services.Rewriter == nil {
			return nil, errors.New("workflow: sentence-edit mode requires a rewrite service")
		}
	case ModeFullText:
		if services.ChunkRewriter == nil {
			return nil, errors.New("workflow: full-text mode requires a chunk rewrite service")
		}
	default:
		return nil, fmt.Errorf("workflow: unknown mode %q", cfg.Mode)
	}
	if services.Styles == nil {
		return nil, errors.New("workflow: style extractor is required")
	}
	if services.Context == nil {
		return nil, errors.New("workflow: context builder is required")
	}

	r := &Runner{
		cfg:       cfg,
		services:  services,
		segmenter: chunk.NewSegmenter(cfg.Chunk),
		tokenizer: textseg.NewTokenizer(cfg.Tokenizer),
		analyzer:  analysis.NewAnalyzer(cfg.Analysis),
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.metrics == nil {
		r.metrics = observe.DefaultMetrics()
	}
	return r, nil
}

// Run performs one style-transfer pass of draft toward sample's style.
//
// sample may be empty, in which case a style guide is synthesized from the
// draft itself and the analysis report degrades to fidelity-only. draft must
// carry content after normalization.
func (r *Runner) Run(ctx context.Context, sample, draft string, progress ProgressFunc) (*Result, error) {
	start := time.Now()
	draft = textseg.Normalize(draft)
	if draft == "" {
		return nil, ErrNoContent
	}
	sample = textseg.Normalize(sample)

	r.metrics.ActiveRuns.Add(ctx, 1)
	defer r.metrics.ActiveRuns.Add(ctx, -1)
	defer func() {
		r.metrics.RunDuration.Record(ctx, time.Since(start).Seconds())
	}()

	report := func(p Progress) {
		if progress != nil {
			progress(p)
		}
	}

	var notes []string
	degraded := false

	report(Progress{Stage: StageStyle})
	guide, note, err := r.styleGuide(ctx, sample)
	if err != nil {
		return nil, err
	}
	if note != "" {
		notes = append(notes, note)
		degraded = degraded || sample != ""
	}

	report(Progress{Stage: StageContext})
	globalCtx, note, err := r.documentContext(ctx, draft)
	if err != nil {
		return nil, err
	}
	if note != "" {
		notes = append(notes, note)
		degraded = true
	}

	chunks := r.segmenter.Split(draft)
	res := &Result{Chunks: len(chunks)}

	switch r.cfg.Mode {
	case ModeFullText:
		err = r.runFullText(ctx, chunks, guide, globalCtx, res, report)
	default:
		err = r.runSentenceEdit(ctx, chunks, guide, globalCtx, res, report)
	}
	if err != nil {
		return nil, err
	}

	report(Progress{Stage: StageAnalysis})
	res.Report = r.analyzer.Audit(sample, draft, res.Standard)

	res.Status = StatusComplete
	if degraded || res.FailedSentences > 0 || res.FailedChunks > 0 {
		res.Status = StatusPartial
	}
	res.Message = buildMessage(res, notes)

	r.log.InfoContext(ctx, "run finished",
		slog.String("mode", string(r.cfg.Mode)),
		slog.String("status", string(res.Status)),
		slog.Int("chunks", res.Chunks),
		slog.Int("failed_sentences", res.FailedSentences),
		slog.Int("failed_chunks", res.FailedChunks),
		slog.Duration("elapsed", time.Since(start)))
	return res, nil
}

// styleGuide extracts the style guide from the sample, substituting a local
// default on failure unless StrictUpstream is set. The returned note is
// non-empty when a substitution happened.
func (r *Runner) styleGuide(ctx context.Context, sample string) (rewrite.StyleGuide, string, error) {
	if sample == "" {
		return styleguide.Default(sample), "no sample provided, style guide synthesized locally", nil
	}
	guide, err := r.services.Styles.Extract(ctx, sample)
	if err == nil {
		return guide, "", nil
	}
	if ctx.Err() != nil {
		return rewrite.StyleGuide{}, "", fmt.Errorf("workflow: style extraction: %w", ctx.Err())
	}
	if r.cfg.StrictUpstream {
		return rewrite.StyleGuide{}, "", fmt.Errorf("workflow: style extraction: %w", err)
	}
	r.log.WarnContext(ctx, "style extraction failed, using local default",
		slog.Any("error", err))
	return styleguide.Default(sample), "style guide substituted with local default", nil
}

// documentContext summarizes the draft for prompt context, substituting a
// truncated excerpt on failure unless StrictUpstream is set.
func (r *Runner) documentContext(ctx context.Context, draft string) (string, string, error) {
	summary, err := r.services.Context.Build(ctx, draft)
	if err == nil {
		return summary, "", nil
	}
	if ctx.Err() != nil {
		return "", "", fmt.Errorf("workflow: context extraction: %w", ctx.Err())
	}
	if r.cfg.StrictUpstream {
		return "", "", fmt.Errorf("workflow: context extraction: %w", err)
	}
	r.log.WarnContext(ctx, "context extraction failed, using truncated excerpt",
		slog.Any("error", err))
	return styleguide.TruncateContext(draft, r.cfg.MaxContextChars),
		"document context substituted with truncated excerpt", nil
}

func (r *Runner) runSentenceEdit(ctx context.Context, chunks []chunk.Chunk, guide rewrite.StyleGuide, globalCtx string, res *Result, report func(Progress)) error {
	outputs := make([]string, 0, len(chunks))
	for i, ch := range chunks {
		report(Progress{Stage: StageChunk, Current: i + 1, Total: len(chunks)})

		tokens := r.tokenizer.Tokenize(ch.Content)
		cc := batch.ChunkContext{
			Style:         guide,
			GlobalContext: globalCtx,
			ContextBefore: r.neighborBefore(chunks, i),
			ContextAfter:  r.neighborAfter(chunks, i),
		}

		// Each chunk gets a fresh scheduler: batch sizing never carries
		// over between chunks.
		opts := append([]batch.Option{
			batch.WithLogger(r.log.With(slog.String("chunk", ch.RawTitle))),
			batch.WithMetrics(r.metrics),
		}, r.batchOpts...)
		sched := batch.NewScheduler(r.cfg.Batch, r.services.Rewriter, opts...)

		bres, err := sched.ProcessChunk(ctx, tokens, cc, func(done, total int) {
			report(Progress{Stage: StageBatch, Current: done, Total: total})
		})
		if err != nil {
			return fmt.Errorf("workflow: chunk %d: %w", i+1, err)
		}

		outputs = append(outputs, rebuild.RebuildText(tokens, bres.Replacements))
		res.FailedSentences += len(bres.FailedIndices)
		report(Progress{Stage: StageChunk, Current: i + 1, Total: len(chunks),
			Partial: strings.Join(outputs, "\n\n")})
	}
	res.Standard = strings.Join(outputs, "\n\n")
	return nil
}

var intensities = []rewrite.Intensity{
	rewrite.IntensityConservative,
	rewrite.IntensityStandard,
	rewrite.IntensityEnhanced,
}

func (r *Runner) runFullText(ctx context.Context, chunks []chunk.Chunk, guide rewrite.StyleGuide, globalCtx string, res *Result, report func(Progress)) error {
	variants := make(map[rewrite.Intensity][]string, len(intensities))
	for i, ch := range chunks {
		report(Progress{Stage: StageChunk, Current: i + 1, Total: len(chunks)})

		chunkFailed := false
		for _, intensity := range intensities {
			out, err := r.rewriteChunk(ctx, ch, guide, globalCtx, intensity)
			if err != nil {
				if ctx.Err() != nil {
					return fmt.Errorf("workflow: chunk %d: %w", i+1, ctx.Err())
				}
				r.log.WarnContext(ctx, "chunk rewrite failed, preserving original",
					slog.String("chunk", ch.RawTitle),
					slog.String("intensity", string(intensity)),
					slog.Any("error", err))
				out = ch.Content
				chunkFailed = true
			}
			variants[intensity] = append(variants[intensity], out)
		}
		if chunkFailed {
			res.FailedChunks++
			r.metrics.ChunksFailed.Add(ctx, 1)
		}
		report(Progress{Stage: StageChunk, Current: i + 1, Total: len(chunks),
			Partial: strings.Join(variants[rewrite.IntensityStandard], "\n\n")})
	}
	res.Conservative = strings.Join(variants[rewrite.IntensityConservative], "\n\n")
	res.Standard = strings.Join(variants[rewrite.IntensityStandard], "\n\n")
	res.Enhanced = strings.Join(variants[rewrite.IntensityEnhanced], "\n\n")
	return nil
}

// rewriteChunk submits one chunk at one intensity, retrying once before
// giving up.
func (r *Runner) rewriteChunk(ctx context.Context, ch chunk.Chunk, guide rewrite.StyleGuide, globalCtx string, intensity rewrite.Intensity) (string, error) {
	req := rewrite.ChunkRequest{
		Title:         ch.Title,
		Text:          ch.Content,
		Style:         guide,
		GlobalContext: globalCtx,
		Intensity:     intensity,
	}
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		out, err := r.services.ChunkRewriter.RewriteChunk(ctx, req)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return "", lastErr
}

func (r *Runner) neighborBefore(chunks []chunk.Chunk, i int) string {
	if i == 0 {
		return ""
	}
	return tailLines(chunks[i-1].Content, r.cfg.ContextWindowLines)
}

func (r *Runner) neighborAfter(chunks []chunk.Chunk, i int) string {
	if i+1 >= len(chunks) {
		return ""
	}
	return headLines(chunks[i+1].Content, r.cfg.ContextWindowLines)
}

func tailLines(text string, n int) string {
	lines := strings.Split(text, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

func headLines(text string, n int) string {
	lines := strings.Split(text, "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, "\n")
}

func buildMessage(res *Result, notes []string) string {
	var parts []string
	if res.Status == StatusComplete {
		parts = append(parts, fmt.Sprintf("all %d chunks rewritten", res.Chunks))
	} else {
		parts = append(parts, fmt.Sprintf("%d chunks processed", res.Chunks))
		if res.FailedChunks > 0 {
			parts = append(parts, fmt.Sprintf("%d chunks preserved verbatim", res.FailedChunks))
		}
		if res.FailedSentences > 0 {
			parts = append(parts, fmt.Sprintf("%d sentences kept their original text", res.FailedSentences))
		}
	}
	parts = append(parts, notes...)
	return strings.Join(parts, "; ")
}
