package execution

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/nastyazhadan/spot-order-trigger/orderService/internal/domain/models"
)

// AttemptTracker counts transient swap failures per order. It also observes
// the store so that an order resolved by anyone, a user cancel included,
// stops being tracked.
type AttemptTracker struct {
	mu       sync.Mutex
	attempts map[uuid.UUID]int
}

func NewAttemptTracker() *AttemptTracker {
	return &AttemptTracker{
		attempts: make(map[uuid.UUID]int),
	}
}

func (a *AttemptTracker) Record(id uuid.UUID) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.attempts[id]++
	return a.attempts[id]
}

func (a *AttemptTracker) Forget(id uuid.UUID) {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.attempts, id)
}

func (a *AttemptTracker) Count(id uuid.UUID) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.attempts[id]
}

func (a *AttemptTracker) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return len(a.attempts)
}

func (a *AttemptTracker) OrderInserted(context.Context, models.Order) {}

func (a *AttemptTracker) OrderTransitioned(_ context.Context, order models.Order, _ models.Status) {
	if order.Status.Terminal() {
		a.Forget(order.ID)
	}
}
