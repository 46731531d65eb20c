package sse

import (
	"bytes"
	"context"
	"testing"
	"time"

	infralogger "github.com/jonesrussell/seo-pinger/infrastructure/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startBroker(t *testing.T, opts ...BrokerOption) Broker {
	t.Helper()

	b := NewBroker(infralogger.NewNop(), opts...)
	require.NoError(t, b.Start(context.Background()))
	t.Cleanup(func() { _ = b.Stop() })

	return b
}

func receive(t *testing.T, events <-chan Event) Event {
	t.Helper()

	select {
	case ev, ok := <-events:
		require.True(t, ok, "event channel closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
		return Event{}
	}
}

func TestBroker_PublishBeforeStart(t *testing.T) {
	t.Parallel()

	b := NewBroker(infralogger.NewNop())
	err := b.Publish(context.Background(), Event{Type: EventTypeBatchLog})

	require.ErrorIs(t, err, ErrBrokerNotRunning)
}

func TestBroker_PublishSubscribe(t *testing.T) {
	t.Parallel()

	b := startBroker(t)
	ctx := context.Background()

	events, cleanup, err := b.Subscribe(ctx)
	require.NoError(t, err)
	defer cleanup()

	require.NoError(t, b.Publish(ctx, NewBatchLogEvent(BatchLogData{BatchID: "b1", EntryID: "e1", Message: "Pinging Google..."})))

	ev := receive(t, events)
	assert.Equal(t, EventTypeBatchLog, ev.Type)
	assert.Equal(t, "e1", ev.ID)
}

func TestBroker_BatchFilter(t *testing.T) {
	t.Parallel()

	b := startBroker(t)
	ctx := context.Background()

	events, cleanup, err := b.Subscribe(ctx, WithBatchFilter("wanted"))
	require.NoError(t, err)
	defer cleanup()

	require.NoError(t, b.Publish(ctx, NewBatchItemEvent(BatchItemData{BatchID: "other", ItemID: "x"})))
	require.NoError(t, b.Publish(ctx, NewBatchItemEvent(BatchItemData{BatchID: "wanted", ItemID: "y"})))

	ev := receive(t, events)
	data, ok := ev.Data.(BatchItemData)
	require.True(t, ok)
	assert.Equal(t, "y", data.ItemID)
}

func TestBroker_MaxClients(t *testing.T) {
	t.Parallel()

	b := startBroker(t, WithMaxClients(1))
	ctx := context.Background()

	_, cleanup, err := b.Subscribe(ctx)
	require.NoError(t, err)
	defer cleanup()

	_, _, err = b.Subscribe(ctx)
	require.ErrorIs(t, err, ErrTooManyClients)
	assert.Equal(t, 1, b.ClientCount())
}

func TestBroker_CleanupRemovesClient(t *testing.T) {
	t.Parallel()

	b := startBroker(t)

	events, cleanup, err := b.Subscribe(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, b.ClientCount())

	cleanup()

	assert.Equal(t, 0, b.ClientCount())
	_, ok := <-events
	assert.False(t, ok)
}

func TestBroker_ContextCancelClosesChannel(t *testing.T) {
	t.Parallel()

	b := startBroker(t)
	ctx, cancel := context.WithCancel(context.Background())

	events, cleanup, err := b.Subscribe(ctx)
	require.NoError(t, err)
	defer cleanup()

	cancel()

	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed after context cancel")
	}
}

// runningWithoutLoop marks b as running but never drains its buffer.
func runningWithoutLoop(t *testing.T, opts ...BrokerOption) *broker {
	t.Helper()

	b, ok := NewBroker(infralogger.NewNop(), opts...).(*broker)
	require.True(t, ok)
	b.ctx, b.cancel = context.WithCancel(context.Background())
	t.Cleanup(b.cancel)
	return b
}

func TestBroker_PublishWaitsForBufferSpace(t *testing.T) {
	t.Parallel()

	b := runningWithoutLoop(t, WithEventBufferSize(1))
	require.NoError(t, b.Publish(context.Background(), Event{Type: EventTypeBatchLog}))

	go func() {
		time.Sleep(50 * time.Millisecond)
		<-b.publish
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, b.Publish(ctx, Event{Type: EventTypeBatchCompleted}))

	queued := <-b.publish
	assert.Equal(t, EventTypeBatchCompleted, queued.Type)
}

func TestBroker_PublishDropsWhenContextExpires(t *testing.T) {
	t.Parallel()

	b := runningWithoutLoop(t, WithEventBufferSize(1))
	require.NoError(t, b.Publish(context.Background(), Event{Type: EventTypeBatchLog}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := b.Publish(ctx, Event{Type: EventTypeBatchItem})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWriteEvent_Format(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := WriteEvent(&buf, Event{Type: "batch:progress", ID: "42", Data: map[string]int{"progress": 50}})
	require.NoError(t, err)

	assert.Equal(t, "event: batch:progress\nid: 42\ndata: {\"progress\":50}\n\n", buf.String())
}
