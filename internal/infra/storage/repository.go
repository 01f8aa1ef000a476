package storage

import (
	"context"
	"errors"
	"time"

	"github.com/vietddude/faultline/internal/core/domain"
)

var (
	// ErrLeaderHeld is returned when another instance holds the leader lock
	ErrLeaderHeld = errors.New("leader lock held by another instance")
)

// OccurrenceSink is the append-only record of occurrences
type OccurrenceSink interface {
	// Append persists one occurrence
	Append(ctx context.Context, occ domain.Occurrence) error
}

// OccurrenceRepository adds queries and retention on top of the sink
type OccurrenceRepository interface {
	OccurrenceSink

	// List returns the most recent occurrences matching filter, newest first
	List(ctx context.Context, filter domain.OccurrenceFilter) ([]domain.Occurrence, error)

	// DeleteExpired removes occurrences whose retention ended before t
	DeleteExpired(ctx context.Context, t time.Time) (int64, error)

	// Health checks the backing store
	Health(ctx context.Context) error
}

// FingerprintStateStore holds the shared dedup state per fingerprint.
// Observe must be atomic across every process sharing the store.
type FingerprintStateStore interface {
	// Observe applies one occurrence. Exactly one caller per cooldown window
	// sees Alert == true.
	Observe(ctx context.Context, fingerprint string, now time.Time, cooldown, ttl time.Duration) (domain.Observation, error)

	// State returns the state as of now, if any
	State(ctx context.Context, fingerprint string, now time.Time) (domain.FingerprintState, bool, error)
}

// DigestStore holds digest buckets for minor occurrences
type DigestStore interface {
	// AddToDigest increments the bucket for occ.Fingerprint, creating it and
	// recording occ as its sample when absent
	AddToDigest(ctx context.Context, occ domain.Occurrence, now time.Time) error

	// DrainDigests atomically fetches and resets every non-empty bucket
	DrainDigests(ctx context.Context) ([]domain.DigestBucket, error)

	// Requeue credits a drained bucket back into the current window
	Requeue(ctx context.Context, bucket domain.DigestBucket) error

	// ClaimFlush records now as the last flush time unless the previous
	// flush was less than minGap before now. At most one caller per window
	// gets true.
	ClaimFlush(ctx context.Context, now time.Time, minGap time.Duration) (bool, error)
}

// LeaderLock provides mutual exclusion across instances
type LeaderLock interface {
	AcquireLeader(ctx context.Context, name, owner string, ttl time.Duration) (bool, error)
	ReleaseLeader(ctx context.Context, name, owner string) error
}

// StateStore is the full shared-state surface used by the router and the
// digest aggregator
type StateStore interface {
	FingerprintStateStore
	DigestStore
	LeaderLock

	// Ping checks the backing store
	Ping(ctx context.Context) error
}
