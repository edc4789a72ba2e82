// Package mock provides test doubles for the rewrite service interfaces.
//
// Use [Service] to script batch outcomes without a live LLM backend and to
// inspect the requests the scheduler actually sent.
package mock

import (
	"context"
	"sync"

	"github.com/mirrorpen/mirrorpen/internal/rewrite"
)

// RewriteCall records a single invocation of Rewrite.
type RewriteCall struct {
	// Ctx is the context passed to Rewrite.
	Ctx context.Context
	// Req is the request passed to Rewrite.
	Req rewrite.Request
}

// ChunkCall records a single invocation of RewriteChunk.
type ChunkCall struct {
	Ctx context.Context
	Req rewrite.ChunkRequest
}

// Service is a mock implementation of [rewrite.Service] and
// [rewrite.ChunkService]. Zero values for response fields cause methods to
// return empty results and nil errors. Set the Func fields for per-call
// behaviour (e.g. fail the first N calls, then succeed).
type Service struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// RewriteFunc, if non-nil, is invoked by Rewrite instead of returning the
	// static Result/Err pair.
	RewriteFunc func(ctx context.Context, req rewrite.Request) (*rewrite.Result, error)

	// Result is returned by Rewrite. Nil yields an empty result.
	Result *rewrite.Result

	// Err, if non-nil, is returned as the error from Rewrite.
	Err error

	// ChunkFunc, if non-nil, is invoked by RewriteChunk instead of returning
	// the static ChunkText/ChunkErr pair.
	ChunkFunc func(ctx context.Context, req rewrite.ChunkRequest) (string, error)

	// ChunkText is returned by RewriteChunk.
	ChunkText string

	// ChunkErr, if non-nil, is returned as the error from RewriteChunk.
	ChunkErr error

	// --- Call records (read after test) ---

	// RewriteCalls records every invocation of Rewrite in order.
	RewriteCalls []RewriteCall

	// ChunkCalls records every invocation of RewriteChunk in order.
	ChunkCalls []ChunkCall
}

// Rewrite records the call and returns the scripted outcome.
func (s *Service) Rewrite(ctx context.Context, req rewrite.Request) (*rewrite.Result, error) {
	s.mu.Lock()
	s.RewriteCalls = append(s.RewriteCalls, RewriteCall{Ctx: ctx, Req: req})
	fn := s.RewriteFunc
	res, err := s.Result, s.Err
	s.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	if res == nil {
		return &rewrite.Result{}, nil
	}
	return res, nil
}

// RewriteChunk records the call and returns the scripted outcome.
func (s *Service) RewriteChunk(ctx context.Context, req rewrite.ChunkRequest) (string, error) {
	s.mu.Lock()
	s.ChunkCalls = append(s.ChunkCalls, ChunkCall{Ctx: ctx, Req: req})
	fn := s.ChunkFunc
	text, err := s.ChunkText, s.ChunkErr
	s.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return text, err
}

// Reset clears all recorded calls. Thread-safe.
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.RewriteCalls = nil
	s.ChunkCalls = nil
}

// Compile-time interface checks.
var (
	_ rewrite.Service      = (*Service)(nil)
	_ rewrite.ChunkService = (*Service)(nil)
)
