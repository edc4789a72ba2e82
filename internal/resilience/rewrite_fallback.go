package resilience

import (
	"context"

	"github.com/mirrorpen/mirrorpen/internal/rewrite"
)

// RewriteFallback implements [rewrite.Service] and [rewrite.ChunkService] with
// automatic failover across multiple rewrite backends. It sits beneath the
// batch scheduler's retry/degradation loop: the scheduler sees one service,
// and a dead backend is bypassed before a batch is ever counted as failed.
//
// Parse errors trip the breaker like any other failure — a backend that
// answers with garbage is as unhealthy as one that does not answer.
type RewriteFallback struct {
	group *FallbackGroup[rewriteBackend]
}

// rewriteBackend is the pair of interfaces one backend must satisfy.
type rewriteBackend interface {
	rewrite.Service
	rewrite.ChunkService
}

// Compile-time interface assertions.
var (
	_ rewrite.Service      = (*RewriteFallback)(nil)
	_ rewrite.ChunkService = (*RewriteFallback)(nil)
)

// NewRewriteFallback creates a [RewriteFallback] with primary as the
// preferred backend. The backend must implement both service interfaces, as
// [rewrite.LLMService] does.
func NewRewriteFallback[T rewriteBackend](primary T, primaryName string, cfg FallbackConfig) *RewriteFallback {
	return &RewriteFallback{
		group: NewFallbackGroup[rewriteBackend](primary, primaryName, cfg),
	}
}

// AddFallback registers an additional rewrite backend.
func (f *RewriteFallback) AddFallback(name string, backend rewriteBackend) {
	f.group.AddFallback(name, backend)
}

// Rewrite submits the batch to the first healthy backend.
func (f *RewriteFallback) Rewrite(ctx context.Context, req rewrite.Request) (*rewrite.Result, error) {
	return ExecuteWithResult(f.group, func(b rewriteBackend) (*rewrite.Result, error) {
		return b.Rewrite(ctx, req)
	})
}

// RewriteChunk submits the chunk to the first healthy backend.
func (f *RewriteFallback) RewriteChunk(ctx context.Context, req rewrite.ChunkRequest) (string, error) {
	return ExecuteWithResult(f.group, func(b rewriteBackend) (string, error) {
		return b.RewriteChunk(ctx, req)
	})
}
