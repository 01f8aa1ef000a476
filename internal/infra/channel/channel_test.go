package channel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/faultline/internal/core/domain"
)

func testMessage() domain.AlertMessage {
	return domain.AlertMessage{
		Kind:        domain.AlertImmediate,
		Severity:    domain.SeverityCritical,
		ErrorID:     "DB-001",
		Fingerprint: "fp-1",
		CreatedAt:   time.Now(),
	}
}

func TestWebhookDeliver(t *testing.T) {
	var got webhookPayload
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ch := NewWebhook("paging", srv.URL, map[string]string{"Authorization": "Token abc"}, time.Second)
	require.NoError(t, ch.Deliver(context.Background(), testMessage()))

	assert.Equal(t, "Token abc", auth)
	assert.Equal(t, "DB-001", got.Alert.ErrorID)
	assert.Contains(t, got.Text, "[CRITICAL] DB-001")
}

func TestWebhookNon2xxFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhook("chat", srv.URL, nil, time.Second).Deliver(context.Background(), testMessage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "upstream down")
}

type countingChannel struct {
	calls atomic.Int64
}

func (c *countingChannel) Name() string { return "counting" }

func (c *countingChannel) Deliver(context.Context, domain.AlertMessage) error {
	c.calls.Add(1)
	return nil
}

func TestRateLimited(t *testing.T) {
	inner := &countingChannel{}
	ch := RateLimited(inner, 1, 2)
	assert.Equal(t, "counting", ch.Name())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	require.NoError(t, ch.Deliver(ctx, testMessage()))
	require.NoError(t, ch.Deliver(ctx, testMessage()))
	// burst exhausted; next token is a minute away
	require.Error(t, ch.Deliver(ctx, testMessage()))
	assert.Equal(t, int64(2), inner.calls.Load())
}

func TestNew(t *testing.T) {
	ch, err := New("dev", Config{})
	require.NoError(t, err)
	assert.IsType(t, &LogChannel{}, ch)
	require.NoError(t, ch.Deliver(context.Background(), testMessage()))
	require.NoError(t, Close(ch))

	ch, err = New("chat", Config{Type: "webhook", URL: "http://localhost:1", RatePerMinute: 30})
	require.NoError(t, err)
	assert.Equal(t, "chat", ch.Name())

	_, err = New("chat", Config{Type: "webhook"})
	require.Error(t, err)

	_, err = New("x", Config{Type: "carrier-pigeon"})
	require.Error(t, err)
}
