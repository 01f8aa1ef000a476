package fault

import "context"

type ctxKey int

const (
	correlationKey ctxKey = iota
	tenantKey
)

// WithCorrelationID stores the per-request correlation id. Faults raised with
// RaiseCtx pick it up.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey, id)
}

// CorrelationID returns the correlation id stored in ctx.
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey).(string)
	return id
}

// WithTenantID stores the tenant for the current request.
func WithTenantID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, tenantKey, id)
}

// TenantID returns the tenant stored in ctx.
func TenantID(ctx context.Context) string {
	id, _ := ctx.Value(tenantKey).(string)
	return id
}
