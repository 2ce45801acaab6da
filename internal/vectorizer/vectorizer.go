// Package vectorizer enriches stored equipment records with embeddings.
//
// The worker reacts to the store's change feed and periodically sweeps the
// known tenants, processing only records whose embedding is absent. Re-runs
// are idempotent: a record that already carries an embedding is skipped, so
// at-least-once event delivery is safe.
package vectorizer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/inventoryd/internal/embeddings"
	"github.com/fyrsmithlabs/inventoryd/internal/equipment"
)

// Config holds vectorizer configuration.
type Config struct {
	// SweepInterval is how often all known tenants are rescanned for
	// records the change feed may have missed. Default: 1 minute.
	SweepInterval time.Duration

	// RatePerSecond bounds embedding API calls. Default: 5.
	RatePerSecond float64
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Minute
	}
	if c.RatePerSecond <= 0 {
		c.RatePerSecond = 5
	}
}

// Vectorizer populates embeddings for records that lack one.
//
// It only ever sets the Embedding and SearchableText fields of a record
// that has none, never mutating other fields. The embedding call runs
// against a snapshot, so before writing back the worker re-reads the record
// and commits onto the fresh copy, and only if the record still lacks an
// embedding and its text still matches what was embedded. A CRUD write that
// landed while the call was in flight wins; the changed record comes back
// through the change feed or the next sweep.
type Vectorizer struct {
	store    equipment.Store
	provider embeddings.Provider
	logger   *zap.Logger
	config   Config
	limiter  *rate.Limiter

	mu      sync.Mutex
	tenants map[string]struct{}
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates a vectorizer.
func New(store equipment.Store, provider embeddings.Provider, config Config, logger *zap.Logger) (*Vectorizer, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if provider == nil {
		return nil, fmt.Errorf("embedding provider is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()

	return &Vectorizer{
		store:    store,
		provider: provider,
		logger:   logger,
		config:   config,
		limiter:  rate.NewLimiter(rate.Limit(config.RatePerSecond), 1),
		tenants:  make(map[string]struct{}),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins consuming the store's change feed. Returns immediately;
// processing happens in a goroutine.
func (v *Vectorizer) Start(ctx context.Context) {
	v.mu.Lock()
	if v.running {
		v.mu.Unlock()
		return
	}
	v.running = true
	v.mu.Unlock()

	v.logger.Info("starting vectorizer",
		zap.Duration("sweep_interval", v.config.SweepInterval),
		zap.Float64("rate_per_second", v.config.RatePerSecond),
	)

	changes := v.store.Subscribe()
	go v.run(ctx, changes)
}

// Stop halts the worker and waits for it to finish.
func (v *Vectorizer) Stop() {
	v.mu.Lock()
	if !v.running {
		v.mu.Unlock()
		return
	}
	v.running = false
	v.mu.Unlock()

	close(v.stopCh)
	<-v.doneCh
}

func (v *Vectorizer) run(ctx context.Context, changes <-chan equipment.Change) {
	defer close(v.doneCh)

	ticker := time.NewTicker(v.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-v.stopCh:
			return
		case ch, ok := <-changes:
			if !ok {
				return
			}
			if ch.Kind != equipment.ChangePut {
				continue
			}
			v.trackTenant(ch.TenantID)
			if err := v.processRecord(ctx, ch.TenantID, ch.ID); err != nil {
				v.logger.Error("failed to vectorize record",
					zap.String("tenant_id", ch.TenantID),
					zap.String("id", ch.ID),
					zap.Error(err),
				)
			}
		case <-ticker.C:
			// The change feed drops events under backpressure; the sweep
			// catches anything missed.
			v.sweep(ctx)
		}
	}
}

func (v *Vectorizer) trackTenant(tenantID string) {
	v.mu.Lock()
	v.tenants[tenantID] = struct{}{}
	v.mu.Unlock()
}

func (v *Vectorizer) knownTenants() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]string, 0, len(v.tenants))
	for t := range v.tenants {
		out = append(out, t)
	}
	return out
}

// sweep re-scans all known tenants for unvectorized records.
func (v *Vectorizer) sweep(ctx context.Context) {
	for _, tenantID := range v.knownTenants() {
		pending, err := v.store.Query(ctx, tenantID, func(r *equipment.Record) bool {
			return !r.Vectorized()
		})
		if err != nil {
			v.logger.Error("sweep query failed",
				zap.String("tenant_id", tenantID),
				zap.Error(err),
			)
			continue
		}
		if len(pending) == 0 {
			continue
		}
		if err := v.enrichBatch(ctx, pending); err != nil {
			v.logger.Error("sweep enrichment had failures",
				zap.String("tenant_id", tenantID),
				zap.Error(err),
			)
		}
	}
}

// processRecord enriches a single record if it still lacks an embedding.
func (v *Vectorizer) processRecord(ctx context.Context, tenantID, id string) error {
	rec, err := v.store.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if rec.Vectorized() {
		return nil
	}
	return v.enrich(ctx, rec)
}

// enrichBatch embeds a set of pending records through one EmbedDocuments
// call. When the batch call fails it falls back to per-record embedding, so
// one bad record never blocks the rest.
func (v *Vectorizer) enrichBatch(ctx context.Context, pending []*equipment.Record) error {
	if err := v.limiter.Wait(ctx); err != nil {
		return err
	}

	texts := make([]string, len(pending))
	for i, rec := range pending {
		texts[i] = rec.EmbeddingText()
	}

	vectors, err := v.provider.EmbedDocuments(ctx, texts)
	if err != nil || len(vectors) != len(pending) {
		var firstErr error
		for _, rec := range pending {
			if err := v.enrich(ctx, rec); err != nil {
				v.logger.Error("failed to vectorize record",
					zap.String("tenant_id", rec.TenantID),
					zap.String("id", rec.ID),
					zap.Error(err),
				)
				if firstErr == nil {
					firstErr = err
				}
			}
		}
		return firstErr
	}

	var firstErr error
	for i, rec := range pending {
		if err := v.commit(ctx, rec.TenantID, rec.ID, texts[i], vectors[i]); err != nil {
			v.logger.Error("failed to store embedding",
				zap.String("tenant_id", rec.TenantID),
				zap.String("id", rec.ID),
				zap.Error(err),
			)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (v *Vectorizer) enrich(ctx context.Context, rec *equipment.Record) error {
	if err := v.limiter.Wait(ctx); err != nil {
		return err
	}

	text := rec.EmbeddingText()
	vector, err := v.provider.EmbedQuery(ctx, text)
	if err != nil {
		return fmt.Errorf("generating embedding: %w", err)
	}
	return v.commit(ctx, rec.TenantID, rec.ID, text, vector)
}

// commit attaches the embedding onto a freshly read copy of the record. The
// write is skipped when the record was deleted, already enriched, or its
// text changed while the embedding call was in flight.
func (v *Vectorizer) commit(ctx context.Context, tenantID, id, text string, vector []float32) error {
	rec, err := v.store.Get(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, equipment.ErrNotFound) {
			return nil
		}
		return err
	}
	if rec.Vectorized() || rec.EmbeddingText() != text {
		return nil
	}

	rec.Embedding = vector
	rec.SearchableText = text
	if err := v.store.Put(ctx, rec); err != nil {
		return fmt.Errorf("storing embedding: %w", err)
	}

	v.logger.Info("vectorized equipment record",
		zap.String("tenant_id", tenantID),
		zap.String("id", id),
		zap.Int("dimensions", len(vector)),
	)
	return nil
}

// SweepTenant immediately processes all unvectorized records for a tenant.
// Used at startup and by tests; the background loop uses the same path.
func (v *Vectorizer) SweepTenant(ctx context.Context, tenantID string) error {
	v.trackTenant(tenantID)
	pending, err := v.store.Query(ctx, tenantID, func(r *equipment.Record) bool {
		return !r.Vectorized()
	})
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}
	return v.enrichBatch(ctx, pending)
}
