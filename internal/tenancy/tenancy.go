// Package tenancy carries the tenant/workspace pair used to namespace rate
// limiting, budgets, and memory storage. The orchestrator threads the tenant
// through context so collaborators invoked from concurrently dispatched steps
// observe the correct value.
package tenancy

import (
	"context"
	"strings"
)

// Tenant identifies an isolation scope for rate limiting and memory namespaces.
type Tenant struct {
	ID        string
	Workspace string
}

// Default is used when no tenant has been placed on the context.
var Default = Tenant{ID: "default", Workspace: "main"}

// Key returns the bucket/namespace key in tenant:workspace form.
func (t Tenant) Key() string {
	id := strings.TrimSpace(t.ID)
	if id == "" {
		id = Default.ID
	}
	ws := strings.TrimSpace(t.Workspace)
	if ws == "" {
		ws = Default.Workspace
	}
	return id + ":" + ws
}

type contextKey struct{}

// WithTenant annotates context with the tenant.
func WithTenant(ctx context.Context, tenant Tenant) context.Context {
	return context.WithValue(ctx, contextKey{}, tenant)
}

// FromContext returns the tenant on the context, or Default when absent.
func FromContext(ctx context.Context) Tenant {
	if ctx == nil {
		return Default
	}
	if t, ok := ctx.Value(contextKey{}).(Tenant); ok {
		return t
	}
	return Default
}
