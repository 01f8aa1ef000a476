// Package logfields holds the canonical slog attribute keys.
package logfields

const (
	ErrorID       = "error_id"
	Fingerprint   = "fingerprint"
	CorrelationID = "correlation_id"
	TenantID      = "tenant_id"
	Severity      = "severity"
	Channel       = "channel"
	Component     = "component"
)
