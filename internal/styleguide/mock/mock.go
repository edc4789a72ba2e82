// Package mock provides test doubles for the style-extraction collaborators.
package mock

import (
	"context"
	"sync"

	"github.com/mirrorpen/mirrorpen/internal/rewrite"
	"github.com/mirrorpen/mirrorpen/internal/styleguide"
)

// Extractor is a mock implementation of [styleguide.Extractor].
type Extractor struct {
	mu sync.Mutex

	// Guide is returned by Extract.
	Guide rewrite.StyleGuide

	// Err, if non-nil, is returned as the error from Extract.
	Err error

	// Samples records the sample passed to each Extract call in order.
	Samples []string
}

// Extract records the call and returns the scripted outcome.
func (e *Extractor) Extract(ctx context.Context, sample string) (rewrite.StyleGuide, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Samples = append(e.Samples, sample)
	return e.Guide, e.Err
}

// ContextBuilder is a mock implementation of [styleguide.ContextBuilder].
type ContextBuilder struct {
	mu sync.Mutex

	// Context is returned by Build.
	Context string

	// Err, if non-nil, is returned as the error from Build.
	Err error

	// Documents records the document passed to each Build call in order.
	Documents []string
}

// Build records the call and returns the scripted outcome.
func (b *ContextBuilder) Build(ctx context.Context, document string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Documents = append(b.Documents, document)
	return b.Context, b.Err
}

// Compile-time interface checks.
var (
	_ styleguide.Extractor      = (*Extractor)(nil)
	_ styleguide.ContextBuilder = (*ContextBuilder)(nil)
)
