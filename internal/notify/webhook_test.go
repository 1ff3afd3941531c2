package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookSink_SignsPayload(t *testing.T) {
	var (
		gotBody      []byte
		gotSignature string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSignature = r.Header.Get(SignatureHeader)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	sink := NewWebhookSink(WebhookConfig{URLs: []string{server.URL}, Secret: "s3cret"}, nil)
	msg := testMessage("d1")
	msg.StartAt = time.Date(2026, 3, 10, 6, 0, 0, 0, time.UTC)

	require.NoError(t, sink.Deliver(context.Background(), msg))

	assert.Equal(t, Sign(gotBody, "s3cret"), gotSignature)
	var payload WebhookPayload
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	assert.Equal(t, "d1", payload.DefenseID)
	assert.Equal(t, "2026-03-10T06:00:00Z", payload.StartAt)
	assert.Equal(t, []string{"u-candidate", "u-panel"}, payload.Recipients)
}

func TestWebhookSink_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sink := NewWebhookSink(WebhookConfig{
		URLs:        []string{server.URL},
		MaxAttempts: 3,
		Backoff:     time.Millisecond,
		MaxFailures: 10,
	}, nil)

	require.NoError(t, sink.Deliver(context.Background(), testMessage("d1")))
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, BreakerClosed, sink.BreakerState(server.URL))
}

func TestWebhookSink_SucceedsWhenAnyEndpointAccepts(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer good.Close()

	sink := NewWebhookSink(WebhookConfig{
		URLs:        []string{bad.URL, good.URL},
		MaxAttempts: 1,
		Backoff:     time.Millisecond,
	}, nil)

	assert.NoError(t, sink.Deliver(context.Background(), testMessage("d1")))
}

func TestWebhookSink_BreakerOpensAfterFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	sink := NewWebhookSink(WebhookConfig{
		URLs:         []string{server.URL},
		MaxAttempts:  5,
		Backoff:      time.Millisecond,
		MaxFailures:  2,
		ResetTimeout: time.Hour,
	}, nil)

	err := sink.Deliver(context.Background(), testMessage("d1"))
	require.Error(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, BreakerOpen, sink.BreakerState(server.URL))

	err = sink.Deliver(context.Background(), testMessage("d2"))
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(2), calls.Load())
}

func TestWebhookSink_NoEndpoints(t *testing.T) {
	sink := NewWebhookSink(WebhookConfig{}, nil)
	assert.NoError(t, sink.Deliver(context.Background(), testMessage("d1")))
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(1, time.Minute)
	cb.now = func() time.Time { return now }

	cb.RecordFailure()
	assert.Equal(t, BreakerOpen, cb.State())
	assert.False(t, cb.Allow())

	now = now.Add(time.Minute)
	assert.True(t, cb.Allow())
	assert.Equal(t, BreakerHalfOpen, cb.State())

	cb.RecordFailure()
	assert.Equal(t, BreakerOpen, cb.State())

	now = now.Add(time.Minute)
	require.True(t, cb.Allow())
	cb.RecordSuccess()
	assert.Equal(t, BreakerClosed, cb.State())
	assert.Equal(t, "closed", cb.State().String())
}
