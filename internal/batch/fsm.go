// Package batch implements the adaptive batch scheduler that drives
// sentence-level rewriting for one chunk at a time: latency-based batch
// sizing over an explicit degradation chain, bounded halving retries, and a
// single-sentence fallback that guarantees every token is attempted exactly
// once.
//
// The control flow is an explicit finite-state machine. [Transition] is a
// pure function over ([Config], [State], [Event]), so the degradation
// chain's termination is testable in isolation from network I/O; the
// [Scheduler] merely drives the machine and performs the I/O it prescribes.
package batch

import "time"

// Kind identifies a scheduler state.
type Kind int

const (
	// KindFresh is the steady state: submit the next batch at the current
	// chain size.
	KindFresh Kind = iota

	// KindRetrying means the last batch failed and a halved portion of it is
	// being retried; the deferred remainder waits for single fallback.
	KindRetrying

	// KindSingleFallback means deferred or retry-exhausted sentences are
	// being submitted one at a time.
	KindSingleFallback

	// KindDone means every sentence token has been attempted.
	KindDone
)

func (k Kind) String() string {
	switch k {
	case KindFresh:
		return "fresh"
	case KindRetrying:
		return "retrying"
	case KindSingleFallback:
		return "single-fallback"
	case KindDone:
		return "done"
	default:
		return "unknown"
	}
}

// State is the scheduler's control state between submissions. The zero value
// is not meaningful; use [NewState].
type State struct {
	Kind Kind

	// BatchSize is the chain size the next fresh batch will use.
	BatchSize int

	// Retries is the number of retry attempts consumed for the currently
	// failing batch. Meaningful only while Kind is KindRetrying.
	Retries int

	// FastCalls counts consecutive sub-fast-threshold calls toward a chain
	// grow step. Reset by any slow, non-fast, or failed call.
	FastCalls int
}

// NewState returns the starting state for one chunk: fresh, at the
// configured initial batch size. Batch sizing never carries over between
// chunks.
func NewState(cfg Config) State {
	return State{Kind: KindFresh, BatchSize: cfg.InitialBatchSize}
}

// EventKind identifies what just happened to the in-flight submission.
type EventKind int

const (
	// EventSuccess means the submission returned a usable response.
	EventSuccess EventKind = iota

	// EventFailure means the submission failed (transport error, timeout, or
	// unparseable response — all equivalent here).
	EventFailure

	// EventDrained means the queue feeding the current mode is empty: in
	// fresh mode there are no tokens left, in single fallback the deferred
	// queue is exhausted.
	EventDrained
)

// Event is one observation fed to [Transition].
type Event struct {
	Kind EventKind

	// Latency is the wall-clock duration of the submission. Meaningful only
	// for EventSuccess.
	Latency time.Duration

	// Remaining is the sentence count of the failing submission. Meaningful
	// only for EventFailure: a one-sentence submission has no halves left to
	// retry, regardless of the nominal batch size.
	Remaining int
}

// Transition is the pure state-transition function of the scheduler.
//
// Sizing rules (fresh successes only): a call slower than SlowThreshold
// degrades one chain step and resets the fast counter; a call faster than
// FastThreshold increments it, and FastCallsToGrow consecutive fast calls
// grow one chain step; anything in between just resets the counter.
//
// Failure rules: a failing multi-sentence batch enters retrying; each retry
// resubmits half of the previous attempt, up to MaxRetries, after which the
// remaining sentences fall through to single fallback and the chain degrades
// one step. A failing single-sentence batch is terminal for that sentence
// (the scheduler records it) and the machine stays in its current mode.
func Transition(cfg Config, s State, ev Event) State {
	switch s.Kind {
	case KindFresh:
		switch ev.Kind {
		case EventDrained:
			return State{Kind: KindDone, BatchSize: s.BatchSize}
		case EventFailure:
			if ev.Remaining <= 1 {
				// Single sentence failed outright: recorded by the caller,
				// no retry ladder to climb.
				return State{Kind: KindFresh, BatchSize: s.BatchSize}
			}
			return State{Kind: KindRetrying, BatchSize: s.BatchSize, Retries: 1}
		default: // EventSuccess
			return sized(cfg, s, ev.Latency)
		}

	case KindRetrying:
		switch ev.Kind {
		case EventSuccess:
			// The halved retry succeeded; the deferred remainder still goes
			// through single fallback.
			return State{Kind: KindSingleFallback, BatchSize: s.BatchSize}
		case EventFailure:
			if s.Retries >= cfg.MaxRetries || ev.Remaining <= 1 {
				return State{Kind: KindSingleFallback, BatchSize: degrade(cfg, s.BatchSize)}
			}
			return State{Kind: KindRetrying, BatchSize: s.BatchSize, Retries: s.Retries + 1}
		default: // EventDrained cannot occur mid-retry; treat as fallback entry.
			return State{Kind: KindSingleFallback, BatchSize: s.BatchSize}
		}

	case KindSingleFallback:
		if ev.Kind == EventDrained {
			return State{Kind: KindFresh, BatchSize: s.BatchSize}
		}
		// Individual successes and failures are recorded by the caller and
		// do not change the machine.
		return s

	default: // KindDone
		return s
	}
}

// sized applies the latency-based sizing rules to a successful fresh call.
func sized(cfg Config, s State, latency time.Duration) State {
	next := State{Kind: KindFresh, BatchSize: s.BatchSize}

	switch {
	case latency >= cfg.SlowThreshold:
		next.BatchSize = degrade(cfg, s.BatchSize)
	case latency < cfg.FastThreshold:
		next.FastCalls = s.FastCalls + 1
		if next.FastCalls >= cfg.FastCallsToGrow {
			next.BatchSize = grow(cfg, s.BatchSize)
			next.FastCalls = 0
		}
	}
	return next
}

// degrade returns the next smaller value in the degradation chain, or the
// smallest chain value if size is already at (or below) the bottom.
func degrade(cfg Config, size int) int {
	for _, v := range cfg.DegradationChain {
		if v < size {
			return v
		}
	}
	return cfg.DegradationChain[len(cfg.DegradationChain)-1]
}

// grow returns the next larger chain value, capped at MaxBatchSize.
func grow(cfg Config, size int) int {
	next := size
	for i := len(cfg.DegradationChain) - 1; i >= 0; i-- {
		if cfg.DegradationChain[i] > size {
			next = cfg.DegradationChain[i]
			break
		}
	}
	if next > cfg.MaxBatchSize {
		next = cfg.MaxBatchSize
	}
	return next
}
