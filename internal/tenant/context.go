// Package tenant carries the tenant identity through request contexts.
//
// Every inventory operation is partitioned by tenant. Handlers resolve the
// tenant from the request and place it in the context; lower layers extract
// it and fail closed when it is missing.
package tenant

import (
	"context"
	"errors"
	"regexp"
)

// Tenant error types - fail closed security model.
var (
	// ErrMissingTenant is returned when tenant info is missing from context.
	ErrMissingTenant = errors.New("tenant ID missing from context")

	// ErrInvalidTenant is returned when a tenant identifier is invalid.
	ErrInvalidTenant = errors.New("invalid tenant identifier")
)

// validTenantID restricts tenant identifiers to a safe character set so they
// can be embedded in collection names and file paths.
var validTenantID = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]{0,63}$`)

// Validate checks that the tenant identifier is present and well formed.
func Validate(tenantID string) error {
	if tenantID == "" {
		return ErrMissingTenant
	}
	if !validTenantID.MatchString(tenantID) {
		return ErrInvalidTenant
	}
	return nil
}

// tenantContextKey is the context key for the tenant ID.
type tenantContextKey struct{}

// ContextWithTenant adds a tenant ID to a context.
func ContextWithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantContextKey{}, tenantID)
}

// FromContext extracts the tenant ID from a context.
// Returns ErrMissingTenant if not present - fail closed.
func FromContext(ctx context.Context) (string, error) {
	val := ctx.Value(tenantContextKey{})
	tenantID, ok := val.(string)
	if !ok || tenantID == "" {
		return "", ErrMissingTenant
	}
	return tenantID, nil
}
