package search

import (
	"context"
	"fmt"
	"math"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/inventoryd/internal/embeddings"
	"github.com/fyrsmithlabs/inventoryd/internal/equipment"
	"github.com/fyrsmithlabs/inventoryd/internal/tenant"
)

var chromemTracer = otel.Tracer("inventoryd.search.chromem")

// ChromemConfig holds configuration for the chromem-backed engine.
type ChromemConfig struct {
	// Path is the directory for persistent storage. Empty keeps the index
	// in memory only; it is rebuilt from the store on startup.
	Path string

	// Compress enables gzip compression for stored data.
	Compress bool
}

// ChromemEngine serves the search contract from an embedded chromem-go
// index instead of scanning the store.
//
// One collection is kept per tenant, so a query can never touch another
// tenant's vectors. The engine subscribes to the store's change feed and
// mirrors vectorized records into the index; records without embeddings are
// simply absent from it.
type ChromemEngine struct {
	db       *chromem.DB
	store    equipment.Store
	provider embeddings.Provider
	logger   *zap.Logger

	mu      sync.Mutex
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// NewChromemEngine creates a chromem-backed search engine.
func NewChromemEngine(cfg ChromemConfig, store equipment.Store, provider embeddings.Provider, logger *zap.Logger) (*ChromemEngine, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if provider == nil {
		return nil, fmt.Errorf("embedding provider is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var db *chromem.DB
	var err error
	if cfg.Path != "" {
		db, err = chromem.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("creating chromem DB: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	return &ChromemEngine{
		db:       db,
		store:    store,
		provider: provider,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// collectionName returns the per-tenant collection. Tenant IDs are already
// validated against a safe character set.
func collectionName(tenantID string) string {
	return fmt.Sprintf("tenant_%s_equipment", tenantID)
}

// embeddingFunc adapts the provider for chromem's query-embedding hook.
func (e *ChromemEngine) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		vec, err := e.provider.EmbedQuery(ctx, text)
		if err != nil {
			return nil, err
		}
		return normalize(vec), nil
	}
}

// Start backfills the index for the given tenants and begins mirroring the
// store's change feed. Returns immediately; mirroring runs in a goroutine.
func (e *ChromemEngine) Start(ctx context.Context, tenants []string) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = true
	e.mu.Unlock()

	for _, tenantID := range tenants {
		if err := e.backfill(ctx, tenantID); err != nil {
			// The mirror goroutine never launched; leave the engine stopped
			// so Stop does not wait on it.
			e.mu.Lock()
			e.running = false
			e.mu.Unlock()
			return fmt.Errorf("backfilling tenant %s: %w", tenantID, err)
		}
	}

	changes := e.store.Subscribe()
	go e.mirror(changes)
	return nil
}

// Stop halts change-feed mirroring and waits for it to finish.
func (e *ChromemEngine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.mu.Unlock()

	close(e.stopCh)
	<-e.doneCh
}

func (e *ChromemEngine) mirror(changes <-chan equipment.Change) {
	defer close(e.doneCh)

	for {
		select {
		case <-e.stopCh:
			return
		case ch, ok := <-changes:
			if !ok {
				return
			}
			if err := e.apply(context.Background(), ch); err != nil {
				e.logger.Warn("failed to mirror store change into index",
					zap.String("tenant_id", ch.TenantID),
					zap.String("id", ch.ID),
					zap.Error(err),
				)
			}
		}
	}
}

func (e *ChromemEngine) apply(ctx context.Context, ch equipment.Change) error {
	switch ch.Kind {
	case equipment.ChangeDelete:
		return e.Remove(ctx, ch.TenantID, ch.ID)
	case equipment.ChangePut:
		rec, err := e.store.Get(ctx, ch.TenantID, ch.ID)
		if err != nil {
			return err
		}
		if !rec.Vectorized() {
			// Not enriched yet; drop any stale entry so the index never
			// serves an outdated embedding.
			return e.Remove(ctx, ch.TenantID, ch.ID)
		}
		return e.Index(ctx, rec)
	default:
		return nil
	}
}

// backfill loads every vectorized record of the tenant into the index.
func (e *ChromemEngine) backfill(ctx context.Context, tenantID string) error {
	recs, err := e.store.Query(ctx, tenantID, func(r *equipment.Record) bool {
		return r.Vectorized()
	})
	if err != nil {
		return err
	}
	for _, rec := range recs {
		if err := e.Index(ctx, rec); err != nil {
			return err
		}
	}
	e.logger.Info("backfilled search index",
		zap.String("tenant_id", tenantID),
		zap.Int("records", len(recs)),
	)
	return nil
}

// Index upserts a vectorized record into the tenant's collection.
func (e *ChromemEngine) Index(ctx context.Context, rec *equipment.Record) error {
	if !rec.Vectorized() {
		return fmt.Errorf("record %s has no embedding", rec.ID)
	}

	collection, err := e.db.GetOrCreateCollection(collectionName(rec.TenantID), nil, e.embeddingFunc())
	if err != nil {
		return fmt.Errorf("getting collection: %w", err)
	}

	// chromem has no in-place update; delete then re-add.
	if err := collection.Delete(ctx, nil, nil, rec.ID); err != nil {
		return fmt.Errorf("removing stale entry: %w", err)
	}

	doc := chromem.Document{
		ID:      rec.ID,
		Content: rec.EmbeddingText(),
		Metadata: map[string]string{
			"tenant_id":   rec.TenantID,
			"name":        rec.Name,
			"description": rec.Description,
		},
		Embedding: normalize(rec.Embedding),
	}
	if err := collection.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("adding document: %w", err)
	}
	return nil
}

// Remove drops a record from the tenant's collection if present.
func (e *ChromemEngine) Remove(ctx context.Context, tenantID, id string) error {
	collection := e.db.GetCollection(collectionName(tenantID), e.embeddingFunc())
	if collection == nil {
		return nil
	}
	return collection.Delete(ctx, nil, nil, id)
}

// Search implements Engine.
func (e *ChromemEngine) Search(ctx context.Context, tenantID, query string, opts Options) ([]Result, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemEngine.Search")
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

	collection := e.db.GetCollection(collectionName(tenantID), e.embeddingFunc())
	if collection == nil {
		return []Result{}, nil
	}

	// chromem requires nResults <= document count.
	docCount := collection.Count()
	if docCount == 0 {
		return []Result{}, nil
	}
	k := opts.MaxResults
	if k > docCount {
		k = docCount
	}

	queryVec, err := e.provider.EmbedQuery(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	hits, err := collection.QueryEmbedding(ctx, normalize(queryVec), k, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying index: %w", err)
	}

	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		if hit.Similarity > opts.MinSimilarity {
			results = append(results, Result{
				ID:              hit.ID,
				TenantID:        tenantID,
				Name:            hit.Metadata["name"],
				Description:     hit.Metadata["description"],
				SimilarityScore: hit.Similarity,
			})
		}
	}
	sortResults(results)

	span.SetAttributes(attribute.Int("result_count", len(results)))
	span.SetStatus(codes.Ok, "success")
	return results, nil
}

// normalize scales a vector to unit length (chromem expects normalized
// embeddings for cosine similarity).
func normalize(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return v
	}
	norm := float32(1 / math.Sqrt(sumSq))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x * norm
	}
	return out
}
