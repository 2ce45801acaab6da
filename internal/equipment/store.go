package equipment

import (
	"context"
)

// ChangeKind describes the kind of store mutation behind a change event.
type ChangeKind string

const (
	ChangePut    ChangeKind = "put"
	ChangeDelete ChangeKind = "delete"
)

// Change is emitted on the store's change feed after a mutation commits.
// The vectorizer consumes these to enrich records that lack embeddings.
type Change struct {
	Kind     ChangeKind
	TenantID string
	ID       string
}

// Store is the tenant-partitioned document store for equipment records.
//
// Tenant isolation is absolute: no method may ever return a record belonging
// to a different tenant. Writes are atomic per record; a write to one record
// does not corrupt concurrent reads or writes of another.
type Store interface {
	// Get returns the record with the given ID within the tenant.
	// Returns ErrNotFound if the record does not exist.
	Get(ctx context.Context, tenantID, id string) (*Record, error)

	// GetAll returns every record belonging to the tenant.
	GetAll(ctx context.Context, tenantID string) ([]*Record, error)

	// Put inserts or replaces the record keyed by (TenantID, ID).
	Put(ctx context.Context, rec *Record) error

	// Delete removes the record. Returns ErrNotFound if it does not exist.
	Delete(ctx context.Context, tenantID, id string) error

	// Query returns the tenant's records matching the predicate.
	Query(ctx context.Context, tenantID string, pred func(*Record) bool) ([]*Record, error)

	// Tenants lists every tenant that has at least one record.
	Tenants(ctx context.Context) ([]string, error)

	// Subscribe returns a channel of change events. The channel is closed
	// when the store shuts down. Slow consumers may miss events; consumers
	// that need completeness should rescan via Query.
	Subscribe() <-chan Change

	// Close releases store resources and closes the change feed.
	Close() error
}
