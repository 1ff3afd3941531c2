package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type recordingSink struct {
	name string
	err  error

	mu       sync.Mutex
	messages []Message
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Deliver(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return s.err
}

func (s *recordingSink) received() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...)
}

type blockingSink struct {
	release chan struct{}
	started chan struct{}
	once    sync.Once
}

func newBlockingSink() *blockingSink {
	return &blockingSink{release: make(chan struct{}), started: make(chan struct{})}
}

func (s *blockingSink) Name() string { return "blocking" }

func (s *blockingSink) Deliver(ctx context.Context, _ Message) error {
	s.once.Do(func() { close(s.started) })
	select {
	case <-s.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type panicSink struct{}

func (panicSink) Name() string { return "panic" }

func (panicSink) Deliver(context.Context, Message) error { panic("boom") }

func testMessage(id string) Message {
	return Message{
		Type:       "defense.scheduled",
		Recipients: []string{"u-candidate", "u-panel"},
		DefenseID:  id,
		Title:      "Thesis defense",
	}
}

func TestDispatcher_DeliversToEverySink(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	first := &recordingSink{name: "first"}
	second := &recordingSink{name: "second"}
	reg := prometheus.NewRegistry()
	d := NewDispatcher(Config{Workers: 2, QueueSize: 8}, nil, reg, first, second)

	require.NoError(t, d.Start(context.Background()))
	for _, id := range []string{"d1", "d2", "d3"} {
		require.NoError(t, d.Notify(context.Background(), testMessage(id)))
	}
	require.NoError(t, d.Stop(context.Background()))

	assert.Len(t, first.received(), 3)
	assert.Len(t, second.received(), 3)
	for _, msg := range first.received() {
		assert.False(t, msg.OccurredAt.IsZero())
	}
	assert.Equal(t, 3.0, testutil.ToFloat64(d.metrics.enqueued))
	assert.Equal(t, 3.0, testutil.ToFloat64(d.metrics.deliveries.WithLabelValues("first", "ok")))
}

func TestDispatcher_NotifyWithoutRecipientsIsNoop(t *testing.T) {
	d := NewDispatcher(Config{}, nil, nil)

	err := d.Notify(context.Background(), Message{Type: "defense.cancelled"})

	assert.NoError(t, err)
	assert.Equal(t, 0, d.QueueLength())
}

func TestDispatcher_NotRunning(t *testing.T) {
	d := NewDispatcher(Config{Workers: 1, QueueSize: 1}, nil, nil)

	err := d.Notify(context.Background(), testMessage("d1"))

	assert.ErrorIs(t, err, ErrNotRunning)
	assert.Equal(t, 1.0, testutil.ToFloat64(d.metrics.dropped.WithLabelValues("not_running")))
}

func TestDispatcher_DropsWhenQueueFull(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	sink := newBlockingSink()
	d := NewDispatcher(Config{Workers: 1, QueueSize: 1}, nil, nil, sink)
	require.NoError(t, d.Start(context.Background()))

	require.NoError(t, d.Notify(context.Background(), testMessage("d1")))
	<-sink.started
	require.NoError(t, d.Notify(context.Background(), testMessage("d2")))

	err := d.Notify(context.Background(), testMessage("d3"))
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, 1.0, testutil.ToFloat64(d.metrics.dropped.WithLabelValues("queue_full")))

	close(sink.release)
	require.NoError(t, d.Stop(context.Background()))
	assert.Equal(t, 0, d.QueueLength())
}

func TestDispatcher_StopTimeoutCancelsDeliveries(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	sink := newBlockingSink()
	d := NewDispatcher(Config{Workers: 1, QueueSize: 4}, nil, nil, sink)
	require.NoError(t, d.Start(context.Background()))
	require.NoError(t, d.Notify(context.Background(), testMessage("d1")))
	<-sink.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := d.Stop(ctx)

	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.ErrorIs(t, d.Notify(context.Background(), testMessage("d2")), ErrNotRunning)
}

func TestDispatcher_SinkFailuresAreIsolated(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	failing := &recordingSink{name: "failing", err: errors.New("smtp down")}
	healthy := &recordingSink{name: "healthy"}
	d := NewDispatcher(Config{Workers: 1, QueueSize: 4}, nil, nil, panicSink{}, failing, healthy)

	require.NoError(t, d.Start(context.Background()))
	require.NoError(t, d.Notify(context.Background(), testMessage("d1")))
	require.NoError(t, d.Stop(context.Background()))

	assert.Len(t, healthy.received(), 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(d.metrics.deliveries.WithLabelValues("panic", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(d.metrics.deliveries.WithLabelValues("failing", "error")))
}

func TestDispatcher_StartTwice(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	d := NewDispatcher(Config{Workers: 1}, nil, nil)
	require.NoError(t, d.Start(context.Background()))
	assert.Error(t, d.Start(context.Background()))
	require.NoError(t, d.Stop(context.Background()))
	require.NoError(t, d.Stop(context.Background()))
}
