package equipment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// timeNow is a variable for testing purposes (allows mocking time).
var timeNow = time.Now

// Service implements the CRUD surface over the Store. It owns ID assignment,
// field defaulting, and the tenant/ID match checks for updates.
type Service struct {
	store  Store
	logger *zap.Logger
}

// NewService creates an equipment service.
func NewService(store Store, logger *zap.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}, nil
}

// Create stores a new record for the tenant. The ID is always server
// generated; any caller-supplied ID is ignored. Status defaults to
// "Available" and PurchaseDate to the current time when unset.
func (s *Service) Create(ctx context.Context, tenantID string, rec *Record) (*Record, error) {
	if tenantID == "" {
		return nil, ErrTenantRequired
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: nil record", ErrInvalidRecord)
	}

	created := rec.Clone()
	created.ID = uuid.NewString()
	created.TenantID = tenantID
	if created.Status == "" {
		created.Status = StatusAvailable
	}
	if created.PurchaseDate.IsZero() {
		created.PurchaseDate = timeNow().UTC()
	}
	if created.Attributes == nil {
		created.Attributes = map[string]string{}
	}
	// New records are never pre-vectorized.
	created.Embedding = nil
	created.SearchableText = ""

	if err := s.store.Put(ctx, created); err != nil {
		return nil, fmt.Errorf("storing equipment: %w", err)
	}

	s.logger.Info("created equipment",
		zap.String("tenant_id", tenantID),
		zap.String("id", created.ID),
		zap.String("name", created.Name),
	)
	return created, nil
}

// Get returns a single record within the tenant.
func (s *Service) Get(ctx context.Context, tenantID, id string) (*Record, error) {
	return s.store.Get(ctx, tenantID, id)
}

// List returns every record belonging to the tenant.
func (s *Service) List(ctx context.Context, tenantID string) ([]*Record, error) {
	return s.store.GetAll(ctx, tenantID)
}

// Update replaces the record in place. The addressed (tenantID, id) must
// match the payload; ID and TenantID are never changed. When the name or
// description changes the embedding is cleared so the vectorizer re-enriches
// the record.
func (s *Service) Update(ctx context.Context, tenantID, id string, rec *Record) (*Record, error) {
	if tenantID == "" {
		return nil, ErrTenantRequired
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: nil record", ErrInvalidRecord)
	}
	if rec.ID != "" && rec.ID != id {
		return nil, ErrIDMismatch
	}
	if rec.TenantID != "" && rec.TenantID != tenantID {
		return nil, ErrTenantMismatch
	}

	existing, err := s.store.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	updated := rec.Clone()
	updated.ID = existing.ID
	updated.TenantID = existing.TenantID
	if updated.Status == "" {
		updated.Status = existing.Status
	}
	if updated.PurchaseDate.IsZero() {
		updated.PurchaseDate = existing.PurchaseDate
	}
	if updated.Attributes == nil {
		updated.Attributes = map[string]string{}
	}

	if updated.Name == existing.Name && updated.Description == existing.Description {
		updated.Embedding = existing.Embedding
		updated.SearchableText = existing.SearchableText
	} else {
		updated.Embedding = nil
		updated.SearchableText = ""
	}

	if err := s.store.Put(ctx, updated); err != nil {
		return nil, fmt.Errorf("storing equipment: %w", err)
	}

	s.logger.Info("updated equipment",
		zap.String("tenant_id", tenantID),
		zap.String("id", id),
	)
	return updated, nil
}

// Delete removes the record from the tenant's partition.
func (s *Service) Delete(ctx context.Context, tenantID, id string) error {
	if err := s.store.Delete(ctx, tenantID, id); err != nil {
		return err
	}
	s.logger.Info("deleted equipment",
		zap.String("tenant_id", tenantID),
		zap.String("id", id),
	)
	return nil
}
