package domain

import "time"

// Occurrence is one persisted record of an error happening. It is immutable
// once written.
type Occurrence struct {
	ID              string         `json:"id" db:"id"`
	Fingerprint     string         `json:"fingerprint" db:"fingerprint"`
	ErrorID         string         `json:"errorId" db:"error_id"`
	Group           Group          `json:"group" db:"error_group"`
	Severity        Severity       `json:"severity" db:"severity"`
	TenantID        string         `json:"tenantId" db:"tenant_id"`
	CorrelationID   string         `json:"correlationId" db:"correlation_id"`
	RedactedContext map[string]any `json:"redactedContext" db:"-"`
	CreatedAt       time.Time      `json:"createdAt" db:"created_at"`
	ExpiresAt       time.Time      `json:"expiresAt" db:"expires_at"`
}

// OccurrenceFilter narrows occurrence queries.
type OccurrenceFilter struct {
	Fingerprint string
	ErrorID     string
	TenantID    string
	Limit       int
}

// RetentionPolicy decides how long an occurrence is kept, by severity and
// optionally overridden per group.
type RetentionPolicy struct {
	Default   map[Severity]time.Duration
	Overrides map[Group]map[Severity]time.Duration
}

// DefaultRetentionPolicy keeps minor occurrences for days and critical ones
// for a year.
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{
		Default: map[Severity]time.Duration{
			SeverityMinor:    7 * 24 * time.Hour,
			SeverityMajor:    30 * 24 * time.Hour,
			SeverityCritical: 365 * 24 * time.Hour,
		},
	}
}

// TTL returns the retention for a definition.
func (p RetentionPolicy) TTL(group Group, sev Severity) time.Duration {
	if byGroup, ok := p.Overrides[group]; ok {
		if d, ok := byGroup[sev]; ok && d > 0 {
			return d
		}
	}
	if d, ok := p.Default[sev]; ok && d > 0 {
		return d
	}
	return DefaultRetentionPolicy().Default[sev]
}
