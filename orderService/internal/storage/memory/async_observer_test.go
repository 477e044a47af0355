package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nastyazhadan/spot-order-trigger/orderService/internal/domain/models"
)

type slowObserver struct {
	recordingObserver
	delay   time.Duration
	release chan struct{}
}

func (s *slowObserver) wait() {
	if s.release != nil {
		<-s.release
	}
	time.Sleep(s.delay)
}

func (s *slowObserver) OrderInserted(ctx context.Context, order models.Order) {
	s.wait()
	s.recordingObserver.OrderInserted(ctx, order)
}

func (s *slowObserver) OrderTransitioned(ctx context.Context, order models.Order, from models.Status) {
	s.wait()
	s.recordingObserver.OrderTransitioned(ctx, order, from)
}

type countingDrops struct {
	mu    sync.Mutex
	sinks []string
}

func (c *countingDrops) RecordSinkFailure(sink string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sinks = append(c.sinks, sink)
}

func (c *countingDrops) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sinks)
}

func TestAsyncObserverDoesNotBlockTransitions(t *testing.T) {
	ctx := context.Background()
	slow := &slowObserver{delay: 300 * time.Millisecond}
	async := NewAsyncObserver("journal", slow, 16, nil)
	store := NewOrderStore(WithObserver(async))

	order := newOrder()
	started := time.Now()

	_, err := store.Insert(ctx, order)
	require.NoError(t, err)
	_, err = store.TryTransition(ctx, order.ID, models.StatusActive, models.StatusExecuting, nil)
	require.NoError(t, err)

	assert.Less(t, time.Since(started), 100*time.Millisecond)

	closeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, async.Close(closeCtx))

	slow.mu.Lock()
	defer slow.mu.Unlock()
	require.Len(t, slow.inserted, 1)
	require.Len(t, slow.transitions, 1)
	assert.Equal(t, uint64(2), slow.transitions[0].Version)
}

func TestAsyncObserverKeepsOrder(t *testing.T) {
	ctx := context.Background()
	recorder := &recordingObserver{}
	async := NewAsyncObserver("events", recorder, 16, nil)
	store := NewOrderStore(WithObserver(async))

	order := newOrder()
	_, err := store.Insert(ctx, order)
	require.NoError(t, err)
	for _, step := range [][2]models.Status{
		{models.StatusActive, models.StatusExecuting},
		{models.StatusExecuting, models.StatusActive},
		{models.StatusActive, models.StatusCancelled},
	} {
		_, err := store.TryTransition(ctx, order.ID, step[0], step[1], nil)
		require.NoError(t, err)
	}

	require.NoError(t, async.Close(ctx))

	require.Len(t, recorder.transitions, 3)
	for i, transitioned := range recorder.transitions {
		assert.Equal(t, uint64(i+2), transitioned.Version)
	}
}

func TestAsyncObserverDropsWhenFull(t *testing.T) {
	ctx := context.Background()
	slow := &slowObserver{release: make(chan struct{})}
	drops := &countingDrops{}
	async := NewAsyncObserver("journal", slow, 1, drops)

	for range 5 {
		async.OrderInserted(ctx, newOrder())
	}

	// at most one notification is held by the worker and one sits in the buffer
	assert.GreaterOrEqual(t, drops.count(), 3)

	close(slow.release)
	require.NoError(t, async.Close(ctx))
	assert.Equal(t, 5-drops.count(), len(slow.inserted))
}

func TestAsyncObserverAfterClose(t *testing.T) {
	ctx := context.Background()
	recorder := &recordingObserver{}
	drops := &countingDrops{}
	async := NewAsyncObserver("events", recorder, 4, drops)

	require.NoError(t, async.Close(ctx))
	require.NoError(t, async.Close(ctx))

	async.OrderInserted(ctx, newOrder())

	assert.Equal(t, 1, drops.count())
	assert.Empty(t, recorder.inserted)
}

func TestAsyncObserverCloseHonoursDeadline(t *testing.T) {
	slow := &slowObserver{release: make(chan struct{})}
	defer close(slow.release)

	async := NewAsyncObserver("journal", slow, 4, nil)
	async.OrderInserted(context.Background(), newOrder())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, async.Close(ctx), context.DeadlineExceeded)
}
