package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/faultline/internal/core/domain"
)

func openStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(context.Background(), Config{Path: filepath.Join(t.TempDir(), "occurrences.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func occurrence(i int, fp string, created time.Time, ttl time.Duration) domain.Occurrence {
	return domain.Occurrence{
		ID:              fmt.Sprintf("occ-%03d", i),
		Fingerprint:     fp,
		ErrorID:         "EMAIL-003",
		Group:           domain.GroupEmail,
		Severity:        domain.SeverityMinor,
		TenantID:        "t-1",
		CorrelationID:   fmt.Sprintf("req-%d", i),
		RedactedContext: map[string]any{"attempt": float64(i), "nested": map[string]any{"queue": "mail"}},
		CreatedAt:       created,
		ExpiresAt:       created.Add(ttl),
	}
}

func TestAppendAndList(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	for i := range 3 {
		require.NoError(t, s.Append(ctx, occurrence(i, "fp-a", base.Add(time.Duration(i)*time.Minute), time.Hour)))
	}
	require.NoError(t, s.Append(ctx, occurrence(9, "fp-b", base, time.Hour)))

	got, err := s.List(ctx, domain.OccurrenceFilter{Fingerprint: "fp-a"})
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "occ-002", got[0].ID)
	assert.Equal(t, base.Add(2*time.Minute), got[0].CreatedAt)
	assert.Equal(t, domain.SeverityMinor, got[0].Severity)
	assert.Equal(t, float64(2), got[0].RedactedContext["attempt"])
	assert.Equal(t, map[string]any{"queue": "mail"}, got[0].RedactedContext["nested"])

	limited, err := s.List(ctx, domain.OccurrenceFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	byTenant, err := s.List(ctx, domain.OccurrenceFilter{TenantID: "t-1", ErrorID: "EMAIL-003"})
	require.NoError(t, err)
	assert.Len(t, byTenant, 4)
}

func TestDuplicateIDRejected(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	occ := occurrence(1, "fp-a", time.Now(), time.Hour)

	require.NoError(t, s.Append(ctx, occ))
	assert.Error(t, s.Append(ctx, occ))
}

func TestDeleteExpired(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, s.Append(ctx, occurrence(1, "fp-a", base, time.Hour)))
	require.NoError(t, s.Append(ctx, occurrence(2, "fp-a", base, 48*time.Hour)))

	n, err := s.DeleteExpired(ctx, base.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	left, err := s.List(ctx, domain.OccurrenceFilter{})
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "occ-002", left[0].ID)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "occurrences.db")
	ctx := context.Background()

	s, err := Open(ctx, Config{Path: path})
	require.NoError(t, err)
	require.NoError(t, s.Append(ctx, occurrence(1, "fp-a", time.Now(), time.Hour)))
	require.NoError(t, s.Close())

	s, err = Open(ctx, Config{Path: path})
	require.NoError(t, err)
	defer s.Close()

	got, err := s.List(ctx, domain.OccurrenceFilter{})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.NoError(t, s.Health(ctx))
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(context.Background(), Config{})
	assert.Error(t, err)
}
