package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/faultline/internal/core/domain"
	"github.com/vietddude/faultline/internal/infra/storage/memory"
)

type countingExpirer struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (c *countingExpirer) DeleteExpired(ctx context.Context, t time.Time) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return 0, c.err
}

func (c *countingExpirer) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestPruneDeletesExpired(t *testing.T) {
	repo := memory.NewOccurrenceRepo(memory.NewMemoryStorage())
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.Append(ctx, domain.Occurrence{ID: "old", CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)}))
	require.NoError(t, repo.Append(ctx, domain.Occurrence{ID: "fresh", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}))

	p := NewPruner(PrunerConfig{}, repo)
	n, err := p.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	left, err := repo.List(ctx, domain.OccurrenceFilter{})
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "fresh", left[0].ID)
}

func TestPruneError(t *testing.T) {
	p := NewPruner(PrunerConfig{}, &countingExpirer{err: errors.New("db down")})
	_, err := p.Prune(context.Background())
	assert.Error(t, err)
}

func TestPrunerRunsImmediatelyAndStops(t *testing.T) {
	repo := &countingExpirer{}
	p := NewPruner(PrunerConfig{Interval: time.Hour}, repo)

	require.NoError(t, p.Start(context.Background()))
	assert.Eventually(t, func() bool { return repo.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.NoError(t, p.Stop())
}
