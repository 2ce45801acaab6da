package equipment

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// MemoryStoreConfig holds configuration for the in-memory store.
type MemoryStoreConfig struct {
	// Path is an optional snapshot file. When set, the store loads the
	// snapshot at startup and rewrites it after every mutation.
	Path string

	// ChangeBuffer is the change-feed channel capacity. Default: 256.
	ChangeBuffer int
}

// ApplyDefaults sets default values for unset fields.
func (c *MemoryStoreConfig) ApplyDefaults() {
	if c.ChangeBuffer <= 0 {
		c.ChangeBuffer = 256
	}
}

// MemoryStore is the reference Store implementation: a tenant-partitioned
// map with per-store locking and optional JSON snapshot persistence.
//
// It is the system of record for local deployments and tests. The change
// feed mirrors a document database change feed: every committed Put and
// Delete is published to subscribers.
type MemoryStore struct {
	config MemoryStoreConfig
	logger *zap.Logger

	mu      sync.RWMutex
	tenants map[string]map[string]*Record

	subMu  sync.Mutex
	subs   []chan Change
	closed bool
}

// NewMemoryStore creates a MemoryStore, loading the snapshot if one exists.
func NewMemoryStore(config MemoryStoreConfig, logger *zap.Logger) (*MemoryStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()

	s := &MemoryStore{
		config:  config,
		logger:  logger,
		tenants: make(map[string]map[string]*Record),
	}

	if config.Path != "" {
		if err := s.load(); err != nil {
			return nil, fmt.Errorf("loading snapshot: %w", err)
		}
	}

	return s, nil
}

func (s *MemoryStore) Get(ctx context.Context, tenantID, id string) (*Record, error) {
	if tenantID == "" {
		return nil, ErrTenantRequired
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.tenants[tenantID][id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec.Clone(), nil
}

func (s *MemoryStore) GetAll(ctx context.Context, tenantID string) ([]*Record, error) {
	return s.Query(ctx, tenantID, nil)
}

func (s *MemoryStore) Put(ctx context.Context, rec *Record) error {
	if rec == nil {
		return fmt.Errorf("%w: nil record", ErrInvalidRecord)
	}
	if err := rec.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	part, ok := s.tenants[rec.TenantID]
	if !ok {
		part = make(map[string]*Record)
		s.tenants[rec.TenantID] = part
	}
	part[rec.ID] = rec.Clone()
	err := s.persistLocked()
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.publish(Change{Kind: ChangePut, TenantID: rec.TenantID, ID: rec.ID})
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, tenantID, id string) error {
	if tenantID == "" {
		return ErrTenantRequired
	}

	s.mu.Lock()
	part := s.tenants[tenantID]
	if _, ok := part[id]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(part, id)
	err := s.persistLocked()
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.publish(Change{Kind: ChangeDelete, TenantID: tenantID, ID: id})
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, tenantID string, pred func(*Record) bool) ([]*Record, error) {
	if tenantID == "" {
		return nil, ErrTenantRequired
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	part := s.tenants[tenantID]
	out := make([]*Record, 0, len(part))
	for _, rec := range part {
		if pred == nil || pred(rec) {
			out = append(out, rec.Clone())
		}
	}
	// Map iteration order is random; keep results reproducible.
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) Tenants(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.tenants))
	for tenantID, part := range s.tenants {
		if len(part) > 0 {
			out = append(out, tenantID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryStore) Subscribe() <-chan Change {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	ch := make(chan Change, s.config.ChangeBuffer)
	if s.closed {
		close(ch)
		return ch
	}
	s.subs = append(s.subs, ch)
	return ch
}

// publish delivers a change to all subscribers without blocking. A full
// subscriber buffer drops the event; the vectorizer rescans on its sweep
// interval so dropped events are eventually covered.
func (s *MemoryStore) publish(ch Change) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	if s.closed {
		return
	}
	for _, sub := range s.subs {
		select {
		case sub <- ch:
		default:
			s.logger.Warn("change feed subscriber is full, dropping event",
				zap.String("tenant_id", ch.TenantID),
				zap.String("id", ch.ID),
			)
		}
	}
}

func (s *MemoryStore) Close() error {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	for _, sub := range s.subs {
		close(sub)
	}
	s.subs = nil
	return nil
}

// snapshot is the on-disk shape of the store.
type snapshot struct {
	Tenants map[string][]*Record `json:"tenants"`
}

func (s *MemoryStore) load() error {
	data, err := os.ReadFile(s.config.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("parsing snapshot %s: %w", s.config.Path, err)
	}

	for tenantID, recs := range snap.Tenants {
		part := make(map[string]*Record, len(recs))
		for _, rec := range recs {
			part[rec.ID] = rec
		}
		s.tenants[tenantID] = part
	}

	s.logger.Info("loaded store snapshot",
		zap.String("path", s.config.Path),
		zap.Int("tenants", len(snap.Tenants)),
	)
	return nil
}

// persistLocked writes the snapshot. Callers must hold s.mu.
func (s *MemoryStore) persistLocked() error {
	if s.config.Path == "" {
		return nil
	}

	snap := snapshot{Tenants: make(map[string][]*Record, len(s.tenants))}
	for tenantID, part := range s.tenants {
		recs := make([]*Record, 0, len(part))
		for _, rec := range part {
			recs = append(recs, rec)
		}
		sort.Slice(recs, func(i, j int) bool { return recs[i].ID < recs[j].ID })
		snap.Tenants[tenantID] = recs
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	tmp := s.config.Path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.config.Path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.config.Path)
}
