package router

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/faultline/internal/catalog"
	"github.com/vietddude/faultline/internal/core/domain"
	"github.com/vietddude/faultline/internal/infra/storage/memory"
	"github.com/vietddude/faultline/internal/retry"
)

// =============================================================================
// Fakes
// =============================================================================

type recordingChannel struct {
	name string
	fail error

	mu       sync.Mutex
	attempts int
	messages []domain.AlertMessage
}

func (c *recordingChannel) Name() string { return c.name }

func (c *recordingChannel) Deliver(ctx context.Context, msg domain.AlertMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts++
	if c.fail != nil {
		return c.fail
	}
	c.messages = append(c.messages, msg)
	return nil
}

func (c *recordingChannel) delivered() []domain.AlertMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.AlertMessage(nil), c.messages...)
}

type brokenStates struct{}

func (brokenStates) Observe(context.Context, string, time.Time, time.Duration, time.Duration) (domain.Observation, error) {
	return domain.Observation{}, errors.New("redis down")
}

func (brokenStates) State(context.Context, string, time.Time) (domain.FingerprintState, bool, error) {
	return domain.FingerprintState{}, false, errors.New("redis down")
}

type fixture struct {
	router *Router
	store  *memory.StateStore
	paging *recordingChannel
	chat   *recordingChannel
	defs   map[string]domain.ErrorDefinition
	now    time.Time
}

func newFixture(t *testing.T, workers int) *fixture {
	t.Helper()

	cat, err := catalog.New([]domain.ErrorDefinition{
		{ID: "DB-001", Severity: domain.SeverityCritical, RetryStrategy: domain.RetrySafe, HTTPStatus: 503, RunbookRef: "rb/db-001"},
		{ID: "SEARCH-002", Severity: domain.SeverityMajor},
		{ID: "EMAIL-003", Severity: domain.SeverityMinor},
	}, nil)
	require.NoError(t, err)

	f := &fixture{
		store:  memory.NewStateStore(memory.NewMemoryStorage()),
		paging: &recordingChannel{name: "paging"},
		chat:   &recordingChannel{name: "chat"},
		defs:   map[string]domain.ErrorDefinition{},
		now:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	for _, d := range cat.All() {
		f.defs[d.ID] = d
	}

	retrier := retry.New(cat, retry.Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond})
	f.router = New(Config{Cooldown: 15 * time.Minute}, f.store, f.store, f.paging, f.chat, retrier, NewDispatcher(workers, 16))
	f.router.SetClock(func() time.Time { return f.now })
	return f
}

func (f *fixture) input(id, fp string) Input {
	return Input{
		Definition: f.defs[id],
		Occurrence: domain.Occurrence{ID: fmt.Sprintf("occ-%s-%d", fp, f.now.UnixNano()), Fingerprint: fp, ErrorID: id, TenantID: "t-1"},
	}
}

// =============================================================================
// Tests
// =============================================================================

func TestCriticalBurstAlertsOnce(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	for i := range 20 {
		d, err := f.router.Route(ctx, f.input("DB-001", "fp-db"))
		require.NoError(t, err)
		if i == 0 {
			assert.Equal(t, ActionPage, d.Action)
			assert.Equal(t, StateCold, d.From)
			assert.Equal(t, StateAlerting, d.To)
		} else {
			assert.Equal(t, ActionSuppress, d.Action)
		}
		f.now = f.now.Add(10 * time.Second)
	}

	require.Len(t, f.paging.delivered(), 1)
	assert.Empty(t, f.chat.delivered())
	first := f.paging.delivered()[0]
	assert.Equal(t, domain.AlertImmediate, first.Kind)
	assert.Equal(t, "rb/db-001", first.RunbookRef)
	assert.Zero(t, first.Suppressed)
}

func TestRealertAfterCooldownCarriesSuppressedCount(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	for range 5 {
		_, err := f.router.Route(ctx, f.input("DB-001", "fp-db"))
		require.NoError(t, err)
	}

	state, _, err := f.router.State(ctx, "fp-db", domain.SeverityCritical)
	require.NoError(t, err)
	assert.Equal(t, StateAlerting, state)

	f.now = f.now.Add(15 * time.Minute)
	state, _, err = f.router.State(ctx, "fp-db", domain.SeverityCritical)
	require.NoError(t, err)
	assert.Equal(t, StateCold, state)

	d, err := f.router.Route(ctx, f.input("DB-001", "fp-db"))
	require.NoError(t, err)
	assert.Equal(t, ActionPage, d.Action)
	assert.Equal(t, int64(4), d.Suppressed)

	msgs := f.paging.delivered()
	require.Len(t, msgs, 2)
	assert.Equal(t, int64(4), msgs[1].Suppressed)
	assert.Contains(t, msgs[1].Text(), "Repeated 4 times since last alert")
}

func TestMajorGoesToChat(t *testing.T) {
	f := newFixture(t, 0)

	d, err := f.router.Route(context.Background(), f.input("SEARCH-002", "fp-search"))
	require.NoError(t, err)
	assert.Equal(t, ActionChat, d.Action)
	assert.Len(t, f.chat.delivered(), 1)
	assert.Empty(t, f.paging.delivered())
}

func TestFingerprintsAreIndependent(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	_, err := f.router.Route(ctx, f.input("DB-001", "fp-a"))
	require.NoError(t, err)
	_, err = f.router.Route(ctx, f.input("DB-001", "fp-b"))
	require.NoError(t, err)

	assert.Len(t, f.paging.delivered(), 2)
}

func TestMinorNeverAlertsDirectly(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	for range 10 {
		d, err := f.router.Route(ctx, f.input("EMAIL-003", "fp-mail"))
		require.NoError(t, err)
		assert.Equal(t, ActionDigest, d.Action)
		assert.Equal(t, StateDigesting, d.To)
	}

	assert.Empty(t, f.paging.delivered())
	assert.Empty(t, f.chat.delivered())

	buckets, err := f.store.DrainDigests(ctx)
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	assert.Equal(t, int64(10), buckets[0].Count)
	assert.Equal(t, f.now, buckets[0].WindowStart)
}

func TestDeliveryFailureFallsBackToDigest(t *testing.T) {
	f := newFixture(t, 0)
	f.paging.fail = errors.New("pager unreachable")

	var failures []*DeliveryError
	f.router.OnDeliveryFailure = func(ctx context.Context, err *DeliveryError, occ domain.Occurrence) {
		failures = append(failures, err)
		assert.Equal(t, "fp-db", occ.Fingerprint)
	}

	d, err := f.router.Route(context.Background(), f.input("DB-001", "fp-db"))
	require.NoError(t, err)
	assert.Equal(t, ActionPage, d.Action)

	assert.Equal(t, 3, f.paging.attempts)
	require.Len(t, failures, 1)
	assert.Equal(t, "paging", failures[0].Channel)
	assert.ErrorContains(t, failures[0], "pager unreachable")

	buckets, err := f.store.DrainDigests(context.Background())
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	assert.Equal(t, "fp-db", buckets[0].Fingerprint)
	assert.Equal(t, int64(1), buckets[0].Count)
}

func TestConcurrentBurstWithAsyncDelivery(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.router.Route(ctx, f.input("DB-001", "fp-burst"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.NoError(t, f.router.Close(ctx))
	assert.Len(t, f.paging.delivered(), 1)
}

func TestStateStoreFailureFailsOpen(t *testing.T) {
	f := newFixture(t, 0)
	retrier := retry.New(mustCatalog(t), retry.Config{MaxAttempts: 1})
	r := New(Config{}, brokenStates{}, f.store, f.paging, f.chat, retrier, nil)

	for range 2 {
		d, err := r.Route(context.Background(), f.input("DB-001", "fp"))
		require.NoError(t, err)
		assert.Equal(t, ActionPage, d.Action)
	}
	assert.Len(t, f.paging.delivered(), 2)
}

func TestStateOf(t *testing.T) {
	now := time.Now()
	st := domain.FingerprintState{CooldownUntil: now.Add(time.Minute)}

	assert.Equal(t, StateDigesting, StateOf(domain.SeverityMinor, st, true, now))
	assert.Equal(t, StateAlerting, StateOf(domain.SeverityMajor, st, true, now))
	assert.Equal(t, StateCold, StateOf(domain.SeverityCritical, st, true, now.Add(time.Minute)))
	assert.Equal(t, StateCold, StateOf(domain.SeverityCritical, st, false, now))
}

func mustCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New(nil, nil)
	require.NoError(t, err)
	return cat
}
