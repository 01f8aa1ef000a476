package domain

import "time"

// FingerprintState is the shared dedup state for one fingerprint.
type FingerprintState struct {
	Fingerprint               string
	LastAlertedAt             time.Time
	OccurrenceCountSinceAlert int64
	CooldownUntil             time.Time
}

// Observation is the result of atomically applying one occurrence to a
// FingerprintState.
type Observation struct {
	// Alert is true for exactly one caller per cooldown window.
	Alert bool
	// Suppressed is the number of occurrences swallowed since the previous
	// alert. Only meaningful when Alert is true.
	Suppressed int64
}

// DigestBucket accumulates minor occurrences for one fingerprint until the
// next flush.
type DigestBucket struct {
	Fingerprint string      `json:"fingerprint"`
	WindowStart time.Time   `json:"windowStart"`
	Count       int64       `json:"count"`
	Sample      *Occurrence `json:"sample,omitempty"`
}

// AlertKind distinguishes immediate alerts from digests.
type AlertKind string

const (
	AlertImmediate AlertKind = "immediate"
	AlertDigest    AlertKind = "digest"
)

// AlertMessage is what a channel delivers.
type AlertMessage struct {
	Kind        AlertKind   `json:"kind"`
	Severity    Severity    `json:"severity"`
	ErrorID     string      `json:"errorId"`
	Fingerprint string      `json:"fingerprint"`
	TenantID    string      `json:"tenantId,omitempty"`
	RunbookRef  string      `json:"runbookRef,omitempty"`
	Suppressed  int64       `json:"suppressed,omitempty"`
	Count       int64       `json:"count,omitempty"`
	WindowStart time.Time   `json:"windowStart,omitzero"`
	Sample      *Occurrence `json:"sample,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
}
