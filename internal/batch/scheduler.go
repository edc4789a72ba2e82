package batch

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/mirrorpen/mirrorpen/internal/observe"
	"github.com/mirrorpen/mirrorpen/internal/rebuild"
	"github.com/mirrorpen/mirrorpen/internal/rewrite"
	"github.com/mirrorpen/mirrorpen/pkg/textseg"
)

// Config holds the scheduler's sizing and pacing parameters. The zero value
// is usable; [Config.withDefaults] fills every unset field.
type Config struct {
	// InitialBatchSize is the chain size every chunk starts at.
	InitialBatchSize int

	// MaxBatchSize caps growth above the top of the chain.
	MaxBatchSize int

	// DegradationChain lists the allowed batch sizes in descending order.
	// Degradation steps down the chain, growth steps back up.
	DegradationChain []int

	// FastThreshold is the latency below which a call counts toward a grow
	// step.
	FastThreshold time.Duration

	// SlowThreshold is the latency at or above which a successful call still
	// degrades the chain one step.
	SlowThreshold time.Duration

	// FastCallsToGrow is how many consecutive fast calls earn a grow step.
	FastCallsToGrow int

	// MaxRetries bounds the halving retries for one failing batch.
	MaxRetries int

	// InterBatchDelay is the pause between consecutive submissions.
	InterBatchDelay time.Duration

	// RequestTimeout bounds each individual submission.
	RequestTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.InitialBatchSize <= 0 {
		c.InitialBatchSize = 20
	}
	if c.MaxBatchSize <= 0 {
		c.MaxBatchSize = 25
	}
	if len(c.DegradationChain) == 0 {
		c.DegradationChain = []int{20, 10, 5, 1}
	}
	if c.FastThreshold <= 0 {
		c.FastThreshold = 15 * time.Second
	}
	if c.SlowThreshold <= 0 {
		c.SlowThreshold = 40 * time.Second
	}
	if c.FastCallsToGrow <= 0 {
		c.FastCallsToGrow = 3
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 2
	}
	if c.InterBatchDelay <= 0 {
		c.InterBatchDelay = 300 * time.Millisecond
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 90 * time.Second
	}
	return c
}

// ProgressFunc is called after every resolved sentence count change with the
// number of sentences settled so far (rewritten or recorded as failed) and
// the chunk's sentence total.
type ProgressFunc func(processed, total int)

// ChunkContext carries the per-chunk prompt context handed to every
// submission the scheduler makes.
type ChunkContext struct {
	Style         rewrite.StyleGuide
	GlobalContext string
	ContextBefore string
	ContextAfter  string
}

// ChunkResult is the outcome of scheduling one chunk.
type ChunkResult struct {
	// Replacements holds every validated replacement, in ascending sentence
	// index order.
	Replacements []rewrite.Replacement

	// FailedIndices lists sentence indices whose every attempt failed. Those
	// sentences keep their original text.
	FailedIndices []int

	// Batches is the number of submissions made, fallback singles included.
	Batches int

	// Retries is the number of halving retry submissions made.
	Retries int
}

// Scheduler submits a chunk's sentences to a rewrite service in adaptive
// batches, driving the [Transition] machine. It is not safe for concurrent
// use; create one per chunk or serialize calls.
type Scheduler struct {
	cfg     Config
	svc     rewrite.Service
	log     *slog.Logger
	metrics *observe.Metrics

	sleep func(context.Context, time.Duration) error
	clock func() time.Time
}

// Option configures a [Scheduler].
type Option func(*Scheduler)

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(log *slog.Logger) Option {
	return func(s *Scheduler) { s.log = log }
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithSleep replaces the inter-batch pause. Tests inject a no-op.
func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(s *Scheduler) { s.sleep = fn }
}

// WithClock replaces the latency clock. Tests inject a fake to exercise the
// sizing thresholds without real waiting.
func WithClock(fn func() time.Time) Option {
	return func(s *Scheduler) { s.clock = fn }
}

// NewScheduler returns a scheduler over svc with cfg's unset fields
// defaulted.
func NewScheduler(cfg Config, svc rewrite.Service, opts ...Option) *Scheduler {
	s := &Scheduler{
		cfg:   cfg.withDefaults(),
		svc:   svc,
		log:   slog.Default(),
		clock: time.Now,
	}
	s.sleep = func(ctx context.Context, d time.Duration) error {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			return nil
		}
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// ProcessChunk submits every sentence token of one chunk exactly once,
// batch-sized by the degradation chain, and returns the validated
// replacements together with the indices that could not be rewritten.
//
// Submissions are always in ascending index order. A failing batch is halved
// and its first half retried; the remainder is deferred to single-sentence
// fallback. Sentences that fail even as singles are recorded in
// FailedIndices and keep their original text during reconstruction. The only
// error return is context cancellation; provider failures degrade, they do
// not abort.
func (s *Scheduler) ProcessChunk(ctx context.Context, tokens []textseg.Token, cc ChunkContext, progress ProgressFunc) (*ChunkResult, error) {
	sentences := sentenceInputs(tokens)
	total := len(sentences)
	res := &ChunkResult{}
	report := func(settled int) {
		if progress != nil {
			progress(settled, total)
		}
	}

	state := NewState(s.cfg)
	pos := 0      // next unsubmitted position in sentences
	settled := 0  // sentences resolved either way
	var retrying []rewrite.SentenceInput // current halved retry batch
	var deferred []rewrite.SentenceInput // queue for single fallback, ascending

	for state.Kind != KindDone {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("chunk scheduling aborted: %w", err)
		}

		switch state.Kind {
		case KindFresh:
			if pos >= total {
				state = Transition(s.cfg, state, Event{Kind: EventDrained})
				continue
			}
			n := min(state.BatchSize, total-pos)
			attempt := sentences[pos : pos+n]
			valid, latency, err := s.submit(ctx, attempt, cc, res)
			if err != nil {
				if ctx.Err() != nil {
					return res, fmt.Errorf("chunk scheduling aborted: %w", ctx.Err())
				}
				pos += n
				if n == 1 {
					res.FailedIndices = append(res.FailedIndices, attempt[0].Index)
					if s.metrics != nil {
						s.metrics.SentencesFailed.Add(ctx, 1)
					}
					settled++
					report(settled)
				} else {
					half := (n + 1) / 2
					retrying = cloneInputs(attempt[:half])
					deferred = append(deferred, attempt[half:]...)
					s.log.WarnContext(ctx, "batch failed, retrying first half",
						slog.Int("batch_size", n), slog.Int("retry_size", half))
				}
				state = Transition(s.cfg, state, Event{Kind: EventFailure, Remaining: n})
			} else {
				res.Replacements = append(res.Replacements, valid...)
				pos += n
				settled += n
				report(settled)
				state = Transition(s.cfg, state, Event{Kind: EventSuccess, Latency: latency})
			}

		case KindRetrying:
			res.Retries++
			if s.metrics != nil {
				s.metrics.BatchRetries.Add(ctx, 1)
			}
			n := len(retrying)
			valid, _, err := s.submit(ctx, retrying, cc, res)
			if err != nil {
				if ctx.Err() != nil {
					return res, fmt.Errorf("chunk scheduling aborted: %w", ctx.Err())
				}
				next := Transition(s.cfg, state, Event{Kind: EventFailure, Remaining: n})
				if next.Kind == KindSingleFallback {
					// Retries exhausted: everything left goes through one by
					// one.
					deferred = append(cloneInputs(retrying), deferred...)
					retrying = nil
				} else {
					half := (n + 1) / 2
					deferred = append(cloneInputs(retrying[half:]), deferred...)
					retrying = retrying[:half]
				}
				state = next
			} else {
				res.Replacements = append(res.Replacements, valid...)
				settled += n
				report(settled)
				retrying = nil
				state = Transition(s.cfg, state, Event{Kind: EventSuccess})
			}

		case KindSingleFallback:
			if len(deferred) == 0 {
				state = Transition(s.cfg, state, Event{Kind: EventDrained})
				continue
			}
			one := deferred[:1]
			deferred = deferred[1:]
			valid, _, err := s.submit(ctx, one, cc, res)
			if err != nil {
				if ctx.Err() != nil {
					return res, fmt.Errorf("chunk scheduling aborted: %w", ctx.Err())
				}
				res.FailedIndices = append(res.FailedIndices, one[0].Index)
				if s.metrics != nil {
					s.metrics.SentencesFailed.Add(ctx, 1)
				}
				s.log.WarnContext(ctx, "sentence kept verbatim after final attempt",
					slog.Int("sentence_index", one[0].Index), slog.Any("error", err))
			} else {
				res.Replacements = append(res.Replacements, valid...)
			}
			settled++
			report(settled)
			state = Transition(s.cfg, state, Event{Kind: eventFor(err)})
		}

		if state.Kind != KindDone {
			if err := s.sleep(ctx, s.cfg.InterBatchDelay); err != nil {
				return res, fmt.Errorf("chunk scheduling aborted: %w", err)
			}
		}
	}

	slices.SortFunc(res.Replacements, func(a, b rewrite.Replacement) int {
		return a.Index - b.Index
	})
	slices.Sort(res.FailedIndices)
	return res, nil
}

// submit sends one batch through the rewrite service with a bounded timeout
// and validates the response against the batch's own index set.
func (s *Scheduler) submit(ctx context.Context, sentences []rewrite.SentenceInput, cc ChunkContext, res *ChunkResult) ([]rewrite.Replacement, time.Duration, error) {
	res.Batches++
	rctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	start := s.clock()
	out, err := s.svc.Rewrite(rctx, rewrite.Request{
		Sentences:     sentences,
		Style:         cc.Style,
		GlobalContext: cc.GlobalContext,
		ContextBefore: cc.ContextBefore,
		ContextAfter:  cc.ContextAfter,
	})
	latency := s.clock().Sub(start)
	if s.metrics != nil {
		s.metrics.RecordBatch(ctx, len(sentences), latency.Seconds())
	}
	if err != nil {
		s.log.WarnContext(ctx, "rewrite submission failed",
			slog.Int("batch_size", len(sentences)),
			slog.Duration("latency", latency),
			slog.Any("error", err))
		return nil, latency, err
	}

	validSet := make(map[int]bool, len(sentences))
	for _, in := range sentences {
		validSet[in.Index] = true
	}
	valid, rejected := rebuild.ValidateReplacements(out.Replacements, validSet)
	for _, rej := range rejected {
		s.log.WarnContext(ctx, "replacement rejected",
			slog.Int("sentence_index", rej.Replacement.Index),
			slog.String("reason", string(rej.Reason)))
		if s.metrics != nil {
			s.metrics.RecordRejectedReplacement(ctx, string(rej.Reason))
		}
	}
	return valid, latency, nil
}

func eventFor(err error) EventKind {
	if err != nil {
		return EventFailure
	}
	return EventSuccess
}

// sentenceInputs projects the chunk's sentence tokens, in order, dropping
// separators.
func sentenceInputs(tokens []textseg.Token) []rewrite.SentenceInput {
	out := make([]rewrite.SentenceInput, 0, len(tokens))
	for _, tok := range tokens {
		if tok.Kind != textseg.KindSentence {
			continue
		}
		out = append(out, rewrite.SentenceInput{Index: tok.Index, Text: tok.Text})
	}
	return out
}

func cloneInputs(in []rewrite.SentenceInput) []rewrite.SentenceInput {
	out := make([]rewrite.SentenceInput, len(in))
	copy(out, in)
	return out
}

