package search

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/inventoryd/internal/embeddings"
	"github.com/fyrsmithlabs/inventoryd/internal/equipment"
	"github.com/fyrsmithlabs/inventoryd/internal/tenant"
)

var linearTracer = otel.Tracer("inventoryd.search.linear")

// LinearEngine ranks records by scanning the tenant's partition in full.
//
// No index is maintained: every search embeds the query, fetches the
// tenant's vectorized records from the store, and computes cosine
// similarity in-process. Correctness, not scale, is the contract.
type LinearEngine struct {
	store    equipment.Store
	provider embeddings.Provider
	logger   *zap.Logger
}

// NewLinearEngine creates a linear-scan search engine.
func NewLinearEngine(store equipment.Store, provider embeddings.Provider, logger *zap.Logger) (*LinearEngine, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if provider == nil {
		return nil, fmt.Errorf("embedding provider is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LinearEngine{store: store, provider: provider, logger: logger}, nil
}

// Search implements Engine.
func (e *LinearEngine) Search(ctx context.Context, tenantID, query string, opts Options) ([]Result, error) {
	ctx, span := linearTracer.Start(ctx, "LinearEngine.Search")
	defer span.End()

	span.SetAttributes(
		attribute.String("tenant_id", tenantID),
		attribute.Int("max_results", opts.MaxResults),
	)

	if err := tenant.Validate(tenantID); err != nil {
		return nil, err
	}
	if query == "" {
		return nil, ErrInvalidQuery
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	queryVec, err := e.provider.EmbedQuery(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	// Records still waiting for vectorization are omitted, never an error.
	candidates, err := e.store.Query(ctx, tenantID, func(r *equipment.Record) bool {
		return r.Vectorized()
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("querying store: %w", err)
	}

	results := make([]Result, 0, len(candidates))
	for _, rec := range candidates {
		score := CosineSimilarity(queryVec, rec.Embedding)
		if score > opts.MinSimilarity {
			results = append(results, Result{
				ID:              rec.ID,
				TenantID:        rec.TenantID,
				Name:            rec.Name,
				Description:     rec.Description,
				SimilarityScore: score,
			})
		}
	}

	sortResults(results)
	if len(results) > opts.MaxResults {
		results = results[:opts.MaxResults]
	}

	span.SetAttributes(attribute.Int("result_count", len(results)))
	span.SetStatus(codes.Ok, "success")

	e.logger.Debug("linear search complete",
		zap.String("tenant_id", tenantID),
		zap.Int("candidates", len(candidates)),
		zap.Int("results", len(results)),
	)
	return results, nil
}

// sortResults orders hits by descending similarity, tie-broken by ID so
// identical inputs always rank identically.
func sortResults(results []Result) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].SimilarityScore != results[j].SimilarityScore {
			return results[i].SimilarityScore > results[j].SimilarityScore
		}
		return results[i].ID < results[j].ID
	})
}

// CosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched dimensions or zero vectors score 0.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
