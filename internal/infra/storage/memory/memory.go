package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vietddude/faultline/internal/core/domain"
	"github.com/vietddude/faultline/internal/infra/storage"
)

// MemoryStorage keeps occurrences and shared alerting state in process. It
// has the same semantics as the Redis and SQL backends for single-process
// deployments and tests.
type MemoryStorage struct {
	occurrences []domain.Occurrence
	states      map[string]*stateEntry
	buckets     map[string]*domain.DigestBucket
	leaders     map[string]leaderEntry
	lastFlush   time.Time
	mu          sync.RWMutex
}

type stateEntry struct {
	state     domain.FingerprintState
	expiresAt time.Time
}

type leaderEntry struct {
	owner     string
	expiresAt time.Time
}

var (
	_ storage.OccurrenceRepository = (*OccurrenceRepo)(nil)
	_ storage.StateStore           = (*StateStore)(nil)
)

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		states:  make(map[string]*stateEntry),
		buckets: make(map[string]*domain.DigestBucket),
		leaders: make(map[string]leaderEntry),
	}
}

// -----------------------------------------------------------------------------
// Occurrence Repository
// -----------------------------------------------------------------------------

type OccurrenceRepo struct {
	store *MemoryStorage
}

func NewOccurrenceRepo(store *MemoryStorage) *OccurrenceRepo {
	return &OccurrenceRepo{store: store}
}

func (r *OccurrenceRepo) Append(ctx context.Context, occ domain.Occurrence) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.occurrences = append(r.store.occurrences, occ)
	return nil
}

func (r *OccurrenceRepo) List(ctx context.Context, filter domain.OccurrenceFilter) ([]domain.Occurrence, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []domain.Occurrence
	for i := len(r.store.occurrences) - 1; i >= 0; i-- {
		o := r.store.occurrences[i]
		if filter.Fingerprint != "" && o.Fingerprint != filter.Fingerprint {
			continue
		}
		if filter.ErrorID != "" && o.ErrorID != filter.ErrorID {
			continue
		}
		if filter.TenantID != "" && o.TenantID != filter.TenantID {
			continue
		}
		out = append(out, o)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (r *OccurrenceRepo) DeleteExpired(ctx context.Context, t time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	kept := r.store.occurrences[:0]
	var deleted int64
	for _, o := range r.store.occurrences {
		if !o.ExpiresAt.IsZero() && o.ExpiresAt.Before(t) {
			deleted++
			continue
		}
		kept = append(kept, o)
	}
	r.store.occurrences = kept
	return deleted, nil
}

func (r *OccurrenceRepo) Health(ctx context.Context) error {
	return nil
}

// -----------------------------------------------------------------------------
// State Store
// -----------------------------------------------------------------------------

type StateStore struct {
	store *MemoryStorage
}

func NewStateStore(store *MemoryStorage) *StateStore {
	return &StateStore{store: store}
}

func (s *StateStore) Observe(ctx context.Context, fingerprint string, now time.Time, cooldown, ttl time.Duration) (domain.Observation, error) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	entry, ok := s.store.states[fingerprint]
	if !ok || !now.Before(entry.expiresAt) {
		entry = &stateEntry{state: domain.FingerprintState{Fingerprint: fingerprint}}
		s.store.states[fingerprint] = entry
	}
	entry.expiresAt = now.Add(ttl)

	if now.Before(entry.state.CooldownUntil) {
		entry.state.OccurrenceCountSinceAlert++
		return domain.Observation{}, nil
	}

	suppressed := entry.state.OccurrenceCountSinceAlert
	entry.state.LastAlertedAt = now
	entry.state.CooldownUntil = now.Add(cooldown)
	entry.state.OccurrenceCountSinceAlert = 0
	return domain.Observation{Alert: true, Suppressed: suppressed}, nil
}

func (s *StateStore) State(ctx context.Context, fingerprint string, now time.Time) (domain.FingerprintState, bool, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()

	entry, ok := s.store.states[fingerprint]
	if !ok || !now.Before(entry.expiresAt) {
		return domain.FingerprintState{}, false, nil
	}
	return entry.state, true, nil
}

func (s *StateStore) AddToDigest(ctx context.Context, occ domain.Occurrence, now time.Time) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	b, ok := s.store.buckets[occ.Fingerprint]
	if !ok {
		sample := occ
		b = &domain.DigestBucket{Fingerprint: occ.Fingerprint, WindowStart: now, Sample: &sample}
		s.store.buckets[occ.Fingerprint] = b
	}
	b.Count++
	return nil
}

func (s *StateStore) DrainDigests(ctx context.Context) ([]domain.DigestBucket, error) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	out := make([]domain.DigestBucket, 0, len(s.store.buckets))
	for fp, b := range s.store.buckets {
		if b.Count > 0 {
			out = append(out, *b)
		}
		delete(s.store.buckets, fp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Fingerprint < out[j].Fingerprint })
	return out, nil
}

func (s *StateStore) Requeue(ctx context.Context, bucket domain.DigestBucket) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	b, ok := s.store.buckets[bucket.Fingerprint]
	if !ok {
		cp := bucket
		s.store.buckets[bucket.Fingerprint] = &cp
		return nil
	}
	b.Count += bucket.Count
	if bucket.WindowStart.Before(b.WindowStart) {
		b.WindowStart = bucket.WindowStart
	}
	if b.Sample == nil {
		b.Sample = bucket.Sample
	}
	return nil
}

func (s *StateStore) ClaimFlush(ctx context.Context, now time.Time, minGap time.Duration) (bool, error) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	if !s.store.lastFlush.IsZero() && now.Sub(s.store.lastFlush) < minGap {
		return false, nil
	}
	s.store.lastFlush = now
	return true, nil
}

func (s *StateStore) AcquireLeader(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	now := time.Now()
	if cur, ok := s.store.leaders[name]; ok && cur.owner != owner && now.Before(cur.expiresAt) {
		return false, nil
	}
	s.store.leaders[name] = leaderEntry{owner: owner, expiresAt: now.Add(ttl)}
	return true, nil
}

func (s *StateStore) ReleaseLeader(ctx context.Context, name, owner string) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	if cur, ok := s.store.leaders[name]; ok && cur.owner == owner {
		delete(s.store.leaders, name)
	}
	return nil
}

func (s *StateStore) Ping(ctx context.Context) error {
	return nil
}
