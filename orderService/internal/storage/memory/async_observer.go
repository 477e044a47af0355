package memory

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/nastyazhadan/spot-order-trigger/orderService/internal/domain/models"
	zapLogger "github.com/nastyazhadan/spot-order-trigger/shared/interceptors/logger/zap"
)

const defaultObserverBuffer = 1024

type DropRecorder interface {
	RecordSinkFailure(sink string)
}

type notification struct {
	ctx      context.Context
	order    models.Order
	from     models.Status
	inserted bool
}

// AsyncObserver moves delivery to a slow sink onto its own goroutine. The
// store only pays for a non-blocking channel send; when the buffer is full
// the notification is dropped and counted. Delivery order per sink is kept.
type AsyncObserver struct {
	name  string
	next  Observer
	drops DropRecorder

	mu     sync.RWMutex
	closed bool
	queue  chan notification
	done   chan struct{}
}

func NewAsyncObserver(name string, next Observer, buffer int, drops DropRecorder) *AsyncObserver {
	if buffer <= 0 {
		buffer = defaultObserverBuffer
	}

	observer := &AsyncObserver{
		name:  name,
		next:  next,
		drops: drops,
		queue: make(chan notification, buffer),
		done:  make(chan struct{}),
	}
	go observer.run()

	return observer
}

func (a *AsyncObserver) OrderInserted(ctx context.Context, order models.Order) {
	a.enqueue(notification{ctx: context.WithoutCancel(ctx), order: order, inserted: true})
}

func (a *AsyncObserver) OrderTransitioned(ctx context.Context, order models.Order, from models.Status) {
	a.enqueue(notification{ctx: context.WithoutCancel(ctx), order: order, from: from})
}

func (a *AsyncObserver) enqueue(n notification) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		a.drop(n, "observer closed")
		return
	}

	select {
	case a.queue <- n:
	default:
		a.drop(n, "observer buffer full")
	}
}

func (a *AsyncObserver) drop(n notification, reason string) {
	if a.drops != nil {
		a.drops.RecordSinkFailure(a.name)
	}
	zapLogger.Warn(n.ctx, "order notification dropped",
		zap.String("sink", a.name),
		zap.String("reason", reason),
		zap.String("order_id", n.order.ID.String()),
		zap.Uint64("version", n.order.Version),
	)
}

func (a *AsyncObserver) run() {
	defer close(a.done)

	for n := range a.queue {
		if n.inserted {
			a.next.OrderInserted(n.ctx, n.order)
			continue
		}
		a.next.OrderTransitioned(n.ctx, n.order, n.from)
	}
}

// Close stops accepting notifications and waits until the queued ones are
// delivered or ctx ends. It is safe to call more than once.
func (a *AsyncObserver) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("AsyncObserver.Close %s: %d notifications undelivered: %w", a.name, len(a.queue), ctx.Err())
	}
}
