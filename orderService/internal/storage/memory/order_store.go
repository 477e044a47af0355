package memory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nastyazhadan/spot-order-trigger/orderService/internal/domain/models"
	repositoryErrors "github.com/nastyazhadan/spot-order-trigger/shared/errors/repository"
)

// Observer is notified after a change has been committed. Calls happen
// outside the store lock, so notifications for one order may arrive out of
// order; Order.Version tells them apart.
type Observer interface {
	OrderInserted(ctx context.Context, order models.Order)
	OrderTransitioned(ctx context.Context, order models.Order, from models.Status)
}

type Option func(*OrderStore)

func WithObserver(observer Observer) Option {
	return func(s *OrderStore) {
		if observer != nil {
			s.observers = append(s.observers, observer)
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *OrderStore) {
		s.now = now
	}
}

type OrderStore struct {
	mu       sync.RWMutex
	orders   map[uuid.UUID]*models.Order
	sequence []uuid.UUID

	observers []Observer
	now       func() time.Time
}

func NewOrderStore(options ...Option) *OrderStore {
	store := &OrderStore{
		orders:   make(map[uuid.UUID]*models.Order, 1024),
		sequence: make([]uuid.UUID, 0, 1024),
		now:      func() time.Time { return time.Now().UTC() },
	}

	for _, option := range options {
		option(store)
	}

	return store
}

func (s *OrderStore) Insert(ctx context.Context, order models.Order) (models.Order, error) {
	const op = "OrderStore.Insert"

	if err := ctx.Err(); err != nil {
		return models.Order{}, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = order.CreatedAt
	order.Status = models.StatusActive
	order.Version = 1
	order.ResolvedAt = nil
	order.FailureReason = ""
	order.SwapReference = ""

	stored := cloneOrder(order)

	s.mu.Lock()
	if _, found := s.orders[order.ID]; found {
		s.mu.Unlock()
		return models.Order{}, fmt.Errorf("%s: %w", op, repositoryErrors.ErrOrderAlreadyExists)
	}
	s.orders[order.ID] = &stored
	s.sequence = append(s.sequence, order.ID)
	s.mu.Unlock()

	for _, observer := range s.observers {
		observer.OrderInserted(ctx, cloneOrder(stored))
	}

	return cloneOrder(stored), nil
}

func (s *OrderStore) Get(ctx context.Context, id uuid.UUID) (models.Order, error) {
	const op = "OrderStore.Get"

	if err := ctx.Err(); err != nil {
		return models.Order{}, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.RLock()
	order, found := s.orders[id]
	var result models.Order
	if found {
		result = cloneOrder(*order)
	}
	s.mu.RUnlock()

	if !found {
		return models.Order{}, fmt.Errorf("%s: %w", op, repositoryErrors.ErrOrderNotFound)
	}

	return result, nil
}

// List returns matching orders ordered by creation time. The read lock is
// held only while copying.
func (s *OrderStore) List(ctx context.Context, filter models.Filter) ([]models.Order, error) {
	const op = "OrderStore.List"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.RLock()
	result := make([]models.Order, 0, len(s.sequence))
	for _, id := range s.sequence {
		order := s.orders[id]
		if filter.Match(*order) {
			result = append(result, cloneOrder(*order))
		}
	}
	s.mu.RUnlock()

	slices.SortStableFunc(result, func(a, b models.Order) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	return result, nil
}

// TryTransition moves the order from one status to another only if it is
// still in the expected status. mutate runs on a copy and is committed
// together with the status change; it cannot change ID or Status.
func (s *OrderStore) TryTransition(
	ctx context.Context,
	id uuid.UUID,
	from, to models.Status,
	mutate func(*models.Order),
) (models.Order, error) {
	const op = "OrderStore.TryTransition"

	if err := ctx.Err(); err != nil {
		return models.Order{}, fmt.Errorf("%s: %w", op, err)
	}

	if !models.CanTransition(from, to) {
		return models.Order{}, fmt.Errorf("%s: %s -> %s: %w", op, from, to, repositoryErrors.ErrIllegalTransition)
	}

	s.mu.Lock()
	current, found := s.orders[id]
	if !found {
		s.mu.Unlock()
		return models.Order{}, fmt.Errorf("%s: %w", op, repositoryErrors.ErrOrderNotFound)
	}

	if current.Status != from {
		actual := current.Status
		s.mu.Unlock()
		return models.Order{}, fmt.Errorf("%s: expected %s, found %s: %w", op, from, actual, repositoryErrors.ErrStateConflict)
	}

	updated := cloneOrder(*current)
	if mutate != nil {
		mutate(&updated)
	}

	now := s.now()
	updated.ID = current.ID
	updated.Status = to
	updated.Version = current.Version + 1
	updated.UpdatedAt = now
	if to.Terminal() {
		if updated.ResolvedAt == nil {
			updated.ResolvedAt = &now
		}
	} else {
		updated.ResolvedAt = nil
	}

	*current = updated
	s.mu.Unlock()

	for _, observer := range s.observers {
		observer.OrderTransitioned(ctx, cloneOrder(updated), from)
	}

	return cloneOrder(updated), nil
}

// Cancel moves an Active order to Cancelled. Orders that are executing or
// already resolved yield ErrAlreadyTerminalOrExecuting.
func (s *OrderStore) Cancel(ctx context.Context, id uuid.UUID) (models.Order, error) {
	const op = "OrderStore.Cancel"

	order, err := s.TryTransition(ctx, id, models.StatusActive, models.StatusCancelled, nil)
	if err != nil {
		if errors.Is(err, repositoryErrors.ErrStateConflict) {
			return models.Order{}, fmt.Errorf("%s: %w", op, repositoryErrors.ErrAlreadyTerminalOrExecuting)
		}

		return models.Order{}, fmt.Errorf("%s: %w", op, err)
	}

	return order, nil
}

func (s *OrderStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.orders)
}

func cloneOrder(order models.Order) models.Order {
	if order.Expiry != nil {
		expiry := *order.Expiry
		order.Expiry = &expiry
	}
	if order.ResolvedAt != nil {
		resolvedAt := *order.ResolvedAt
		order.ResolvedAt = &resolvedAt
	}
	return order
}
