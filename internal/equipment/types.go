// Package equipment provides the tenant-scoped equipment inventory domain:
// the record model, the document store contract, and the CRUD service.
package equipment

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for equipment operations.
var (
	// ErrNotFound is returned when a record does not exist within the tenant.
	ErrNotFound = errors.New("equipment not found")

	// ErrTenantRequired is returned when a tenant identifier is missing.
	ErrTenantRequired = errors.New("tenant ID is required")

	// ErrTenantMismatch is returned when the tenant in the payload does not
	// match the tenant the caller is operating under.
	ErrTenantMismatch = errors.New("tenant ID mismatch")

	// ErrIDMismatch is returned when the record ID in the payload does not
	// match the ID addressed by the caller.
	ErrIDMismatch = errors.New("equipment ID mismatch")

	// ErrInvalidRecord indicates a record that fails validation.
	ErrInvalidRecord = errors.New("invalid equipment record")
)

// StatusAvailable is the default status assigned to new records.
const StatusAvailable = "Available"

// Record is a single piece of equipment owned by a tenant.
//
// Identity is (TenantID, ID). ID is server-generated and immutable; TenantID
// is fixed at creation and must equal the partition the record is stored
// under. Embedding is nil until the vectorizer enriches the record.
type Record struct {
	ID                  string            `json:"id"`
	TenantID            string            `json:"tenantId"`
	Name                string            `json:"name"`
	Description         string            `json:"description"`
	Category            string            `json:"category"`
	Status              string            `json:"status"`
	Attributes          map[string]string `json:"attributes"`
	LastMaintenanceDate *time.Time        `json:"lastMaintenanceDate,omitempty"`
	PurchaseDate        time.Time         `json:"purchaseDate"`
	SerialNumber        string            `json:"serialNumber,omitempty"`
	Embedding           []float32         `json:"embedding,omitempty"`
	SearchableText      string            `json:"searchableText,omitempty"`
}

// Validate checks the invariants every stored record must satisfy.
func (r *Record) Validate() error {
	if r.TenantID == "" {
		return ErrTenantRequired
	}
	if r.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidRecord)
	}
	if r.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidRecord)
	}
	return nil
}

// Vectorized reports whether the record carries an embedding.
func (r *Record) Vectorized() bool {
	return len(r.Embedding) > 0
}

// EmbeddingText builds the text that is embedded for semantic search.
func (r *Record) EmbeddingText() string {
	return fmt.Sprintf("Equipment: %s\n Request Details: %s", r.Name, r.Description)
}

// Clone returns a deep copy of the record. The store hands out clones so
// callers can never mutate stored state in place.
func (r *Record) Clone() *Record {
	cp := *r
	if r.Attributes != nil {
		cp.Attributes = make(map[string]string, len(r.Attributes))
		for k, v := range r.Attributes {
			cp.Attributes[k] = v
		}
	}
	if r.LastMaintenanceDate != nil {
		t := *r.LastMaintenanceDate
		cp.LastMaintenanceDate = &t
	}
	if r.Embedding != nil {
		cp.Embedding = make([]float32, len(r.Embedding))
		copy(cp.Embedding, r.Embedding)
	}
	return &cp
}
