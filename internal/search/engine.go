// Package search ranks tenant-scoped equipment records by semantic
// closeness to a free-text query.
//
// Two Engine implementations share one contract: LinearEngine scans the
// store directly (correctness-first, no index), ChromemEngine keeps an
// embedded chromem-go index in sync with the store for larger corpora.
package search

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for search operations.
var (
	// ErrInvalidQuery indicates an empty query string.
	ErrInvalidQuery = errors.New("query cannot be empty")

	// ErrInvalidLimit indicates a non-positive max results value.
	ErrInvalidLimit = errors.New("max results must be positive")

	// ErrEmbeddingFailed indicates the query could not be embedded.
	ErrEmbeddingFailed = errors.New("failed to generate query embedding")
)

// Default search parameters, matching the public search contract.
const (
	DefaultMaxResults    = 10
	DefaultMinSimilarity = 0.8
)

// Result is one ranked search hit.
type Result struct {
	ID              string  `json:"id"`
	TenantID        string  `json:"tenantId"`
	Name            string  `json:"name"`
	Description     string  `json:"description"`
	SimilarityScore float32 `json:"similarityScore"`
}

// Options bound a single search call.
type Options struct {
	// MaxResults caps the number of hits returned. Must be positive.
	MaxResults int

	// MinSimilarity is the strictly-greater-than cosine similarity floor.
	MinSimilarity float32
}

// DefaultOptions returns the standard search bounds.
func DefaultOptions() Options {
	return Options{
		MaxResults:    DefaultMaxResults,
		MinSimilarity: DefaultMinSimilarity,
	}
}

// Validate checks the option bounds.
func (o Options) Validate() error {
	if o.MaxResults <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidLimit, o.MaxResults)
	}
	return nil
}

// Engine performs tenant-scoped similarity search.
//
// Results are ordered by descending similarity with a deterministic
// tie-break on record ID, contain only hits strictly above MinSimilarity,
// and never include records that have not been vectorized yet.
type Engine interface {
	Search(ctx context.Context, tenantID, query string, opts Options) ([]Result, error)
}
