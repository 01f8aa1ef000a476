package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/vietddude/faultline/internal/core/domain"
	"github.com/vietddude/faultline/internal/infra/storage"
)

var _ storage.StateStore = (*StateStore)(nil)

// StateStore keeps FingerprintState and DigestBucket values in Redis. Every
// mutation is a single Lua script, so concurrent instances never observe a
// half-applied update.
type StateStore struct {
	*Client
}

// NewStateStore creates a Redis-backed state store.
func NewStateStore(client *Client) *StateStore {
	return &StateStore{Client: client}
}

// Observe applies one occurrence to the fingerprint state.
func (s *StateStore) Observe(
	ctx context.Context,
	fingerprint string,
	now time.Time,
	cooldown, ttl time.Duration,
) (domain.Observation, error) {
	res, err := observeScript.Run(ctx, s.rdb,
		[]string{s.stateKey(fingerprint)},
		now.UnixMilli(), now.Add(cooldown).UnixMilli(), ttl.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return domain.Observation{}, fmt.Errorf("observe failed: %w", err)
	}
	if len(res) != 2 {
		return domain.Observation{}, fmt.Errorf("observe returned %d values", len(res))
	}

	if res[0] == 1 {
		return domain.Observation{Alert: true, Suppressed: res[1]}, nil
	}
	return domain.Observation{}, nil
}

// State reads the fingerprint state. Expiry is enforced by the key TTL, so
// now is unused.
func (s *StateStore) State(ctx context.Context, fingerprint string, _ time.Time) (domain.FingerprintState, bool, error) {
	fields, err := s.rdb.HGetAll(ctx, s.stateKey(fingerprint)).Result()
	if err != nil {
		return domain.FingerprintState{}, false, fmt.Errorf("hgetall failed: %w", err)
	}
	if len(fields) == 0 {
		return domain.FingerprintState{}, false, nil
	}

	count, _ := strconv.ParseInt(fields["count"], 10, 64)
	return domain.FingerprintState{
		Fingerprint:               fingerprint,
		LastAlertedAt:             parseMillis(fields["last_alerted_at"]),
		CooldownUntil:             parseMillis(fields["cooldown_until"]),
		OccurrenceCountSinceAlert: count,
	}, true, nil
}

// AddToDigest increments the bucket for occ's fingerprint.
func (s *StateStore) AddToDigest(ctx context.Context, occ domain.Occurrence, now time.Time) error {
	sample, err := json.Marshal(occ)
	if err != nil {
		return fmt.Errorf("failed to marshal sample: %w", err)
	}

	err = addDigestScript.Run(ctx, s.rdb,
		[]string{s.bucketKey(occ.Fingerprint), s.bucketIndexKey()},
		occ.Fingerprint, now.UnixMilli(), sample,
	).Err()
	if err != nil {
		return fmt.Errorf("add to digest failed: %w", err)
	}
	return nil
}

// DrainDigests fetches and resets every bucket. An increment racing with the
// drain lands either in the drained bucket or in a fresh one, never both.
func (s *StateStore) DrainDigests(ctx context.Context) ([]domain.DigestBucket, error) {
	fingerprints, err := s.rdb.SMembers(ctx, s.bucketIndexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("smembers failed: %w", err)
	}
	sort.Strings(fingerprints)

	out := make([]domain.DigestBucket, 0, len(fingerprints))
	for _, fp := range fingerprints {
		flat, err := drainDigestScript.Run(ctx, s.rdb,
			[]string{s.bucketKey(fp), s.bucketIndexKey()}, fp,
		).StringSlice()
		if err != nil {
			return out, fmt.Errorf("drain %s failed: %w", fp, err)
		}

		bucket, ok := parseBucket(fp, flat)
		if ok {
			out = append(out, bucket)
		}
	}
	return out, nil
}

// Requeue credits a drained bucket back.
func (s *StateStore) Requeue(ctx context.Context, bucket domain.DigestBucket) error {
	var sample []byte
	if bucket.Sample != nil {
		var err error
		if sample, err = json.Marshal(bucket.Sample); err != nil {
			return fmt.Errorf("failed to marshal sample: %w", err)
		}
	}

	err := requeueDigestScript.Run(ctx, s.rdb,
		[]string{s.bucketKey(bucket.Fingerprint), s.bucketIndexKey()},
		bucket.Fingerprint, bucket.Count, bucket.WindowStart.UnixMilli(), string(sample),
	).Err()
	if err != nil {
		return fmt.Errorf("requeue failed: %w", err)
	}
	return nil
}

// ClaimFlush records now as the last digest flush unless one happened less
// than minGap ago.
func (s *StateStore) ClaimFlush(ctx context.Context, now time.Time, minGap time.Duration) (bool, error) {
	n, err := claimFlushScript.Run(ctx, s.rdb,
		[]string{s.lastFlushKey()},
		now.UnixMilli(), minGap.Milliseconds(),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("claim flush failed: %w", err)
	}
	return n == 1, nil
}

func parseBucket(fp string, flat []string) (domain.DigestBucket, bool) {
	fields := make(map[string]string, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		fields[flat[i]] = flat[i+1]
	}

	count, _ := strconv.ParseInt(fields["count"], 10, 64)
	if count <= 0 {
		return domain.DigestBucket{}, false
	}

	b := domain.DigestBucket{
		Fingerprint: fp,
		Count:       count,
		WindowStart: parseMillis(fields["window_start"]),
	}
	if raw := fields["sample"]; raw != "" {
		var occ domain.Occurrence
		if err := json.Unmarshal([]byte(raw), &occ); err == nil {
			b.Sample = &occ
		}
	}
	return b, true
}

func parseMillis(s string) time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
