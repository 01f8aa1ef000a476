package fault

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRaise(t *testing.T) {
	fields := Fields{"contactId": 42}
	e := Raise("DB-001", fields)
	fields["contactId"] = 43

	assert.Equal(t, "DB-001", e.ID)
	assert.Equal(t, 42, e.Context["contactId"])
	assert.False(t, e.OccurredAt.IsZero())
	assert.Equal(t, "DB-001", e.Error())
}

func TestWrapChain(t *testing.T) {
	root := errors.New("connection refused")
	inner := Wrap(root, "DB-001", "query contacts").With("table", "contacts")
	outer := fmt.Errorf("list contacts: %w", inner)

	assert.ErrorIs(t, outer, root)
	assert.Equal(t, "DB-001: query contacts: connection refused", inner.Error())

	got, ok := As(outer)
	require.True(t, ok)
	assert.Same(t, inner, got)
	assert.Equal(t, "DB-001", ID(outer))
	assert.Equal(t, "", ID(root))
}

func TestCollectFieldsAccumulatesOutward(t *testing.T) {
	inner := New("DB-002", "upsert").WithFields(Fields{"dealId": "d-1", "attempt": 1})
	outer := Wrap(inner, "BILLING-001", "charge").WithFields(Fields{"tenantId": "t-9", "attempt": 3})

	fields := CollectFields(fmt.Errorf("handler: %w", outer))
	assert.Equal(t, "d-1", fields["dealId"])
	assert.Equal(t, "t-9", fields["tenantId"])
	assert.Equal(t, 3, fields["attempt"])
}

func TestAddContext(t *testing.T) {
	e := New("QUEUE-001", "publish")
	err := AddContext(fmt.Errorf("wrap: %w", e), "queue", "emails")
	assert.Equal(t, "emails", e.Context["queue"])
	assert.Error(t, err)

	plain := errors.New("plain")
	assert.Same(t, plain, AddContext(plain, "k", "v"))
}

func TestRaiseCtxThreadsRequestIDs(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "req-123")
	ctx = WithTenantID(ctx, "tenant-a")

	e := RaiseCtx(ctx, "SEARCH-001", Fields{"query": "abc"})
	assert.Equal(t, "req-123", e.Context.String(KeyCorrelationID))
	assert.Equal(t, "tenant-a", e.Context.String(KeyTenantID))

	explicit := RaiseCtx(ctx, "SEARCH-001", Fields{KeyTenantID: "tenant-b"})
	assert.Equal(t, "tenant-b", explicit.Context.String(KeyTenantID))

	bare := RaiseCtx(context.Background(), "SEARCH-001", nil)
	assert.Empty(t, bare.Context.String(KeyCorrelationID))
}

func TestFieldsString(t *testing.T) {
	f := Fields{"n": 7, "s": "x", "nil": nil}
	assert.Equal(t, "7", f.String("n"))
	assert.Equal(t, "x", f.String("s"))
	assert.Equal(t, "", f.String("nil"))
	assert.Equal(t, "", f.String("missing"))
}
