package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nastyazhadan/spot-order-trigger/orderService/internal/domain/models"
	repositoryErrors "github.com/nastyazhadan/spot-order-trigger/shared/errors/repository"
)

func newOrder() models.Order {
	return models.Order{
		ID:          uuid.New(),
		Owner:       gofakeit.BitcoinAddress(),
		Kind:        models.KindSell,
		SourceToken: "A",
		TargetToken: "B",
		Amount:      decimal.NewFromFloat(gofakeit.Float64Range(0.1, 100)),
		PriceTarget: decimal.NewFromInt(20),
		Slippage:    decimal.NewFromFloat(0.5),
	}
}

type recordingObserver struct {
	mu          sync.Mutex
	inserted    []models.Order
	transitions []models.Order
}

func (r *recordingObserver) OrderInserted(_ context.Context, order models.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inserted = append(r.inserted, order)
}

func (r *recordingObserver) OrderTransitioned(_ context.Context, order models.Order, _ models.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, order)
}

func TestInsertAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewOrderStore()

	order := newOrder()
	order.Status = models.StatusCompleted

	inserted, err := store.Insert(ctx, order)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, inserted.Status)
	assert.Equal(t, uint64(1), inserted.Version)
	assert.False(t, inserted.CreatedAt.IsZero())

	got, err := store.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, inserted, got)

	_, err = store.Insert(ctx, order)
	assert.ErrorIs(t, err, repositoryErrors.ErrOrderAlreadyExists)

	_, err = store.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, repositoryErrors.ErrOrderNotFound)
}

func TestGetReturnsSnapshot(t *testing.T) {
	ctx := context.Background()
	store := NewOrderStore()

	order := newOrder()
	expiry := time.Now().Add(time.Hour)
	order.Expiry = &expiry

	_, err := store.Insert(ctx, order)
	require.NoError(t, err)

	snapshot, err := store.Get(ctx, order.ID)
	require.NoError(t, err)
	*snapshot.Expiry = time.Time{}
	snapshot.Status = models.StatusFailed

	again, err := store.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, again.Status)
	assert.True(t, again.Expiry.Equal(expiry))
}

func TestListOrderingAndFilter(t *testing.T) {
	ctx := context.Background()
	store := NewOrderStore()

	base := time.Now().UTC()
	owner := gofakeit.Username()

	late := newOrder()
	late.Owner = owner
	late.CreatedAt = base.Add(2 * time.Second)

	early := newOrder()
	early.Owner = owner
	early.CreatedAt = base

	other := newOrder()
	other.CreatedAt = base.Add(time.Second)

	for _, order := range []models.Order{late, early, other} {
		_, err := store.Insert(ctx, order)
		require.NoError(t, err)
	}

	all, err := store.List(ctx, models.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, early.ID, all[0].ID)
	assert.Equal(t, other.ID, all[1].ID)
	assert.Equal(t, late.ID, all[2].ID)

	mine, err := store.List(ctx, models.Filter{Owner: owner})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, early.ID, mine[0].ID)

	_, err = store.Cancel(ctx, other.ID)
	require.NoError(t, err)

	active, err := store.List(ctx, models.Filter{Status: models.StatusActive})
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestTryTransition(t *testing.T) {
	tests := []struct {
		name        string
		prepare     []models.Status
		from        models.Status
		to          models.Status
		expectedErr error
	}{
		{
			name: "active -> executing",
			from: models.StatusActive,
			to:   models.StatusExecuting,
		},
		{
			name:    "executing -> completed",
			prepare: []models.Status{models.StatusExecuting},
			from:    models.StatusExecuting,
			to:      models.StatusCompleted,
		},
		{
			name:    "executing -> active при повторной попытке",
			prepare: []models.Status{models.StatusExecuting},
			from:    models.StatusExecuting,
			to:      models.StatusActive,
		},
		{
			name: "active -> failed по истечении срока",
			from: models.StatusActive,
			to:   models.StatusFailed,
		},
		{
			name:        "ошибка - ожидаемый статус не совпадает",
			from:        models.StatusExecuting,
			to:          models.StatusCompleted,
			expectedErr: repositoryErrors.ErrStateConflict,
		},
		{
			name:        "ошибка - выход из терминального статуса",
			prepare:     []models.Status{models.StatusCancelled},
			from:        models.StatusCancelled,
			to:          models.StatusActive,
			expectedErr: repositoryErrors.ErrIllegalTransition,
		},
		{
			name:        "ошибка - active -> completed в обход executing",
			from:        models.StatusActive,
			to:          models.StatusCompleted,
			expectedErr: repositoryErrors.ErrIllegalTransition,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			ctx := context.Background()
			store := NewOrderStore()

			order := newOrder()
			_, err := store.Insert(ctx, order)
			require.NoError(t, err)

			current := models.StatusActive
			for _, next := range test.prepare {
				_, err := store.TryTransition(ctx, order.ID, current, next, nil)
				require.NoError(t, err)
				current = next
			}

			mutated := false
			result, err := store.TryTransition(ctx, order.ID, test.from, test.to, func(o *models.Order) {
				mutated = true
				o.FailureReason = "marker"
				o.Status = models.StatusUnspecified
			})

			if test.expectedErr != nil {
				require.ErrorIs(t, err, test.expectedErr)
				assert.False(t, mutated)

				stored, getErr := store.Get(ctx, order.ID)
				require.NoError(t, getErr)
				assert.Equal(t, current, stored.Status)
				assert.Empty(t, stored.FailureReason)
				return
			}

			require.NoError(t, err)
			assert.True(t, mutated)
			assert.Equal(t, test.to, result.Status)
			assert.Equal(t, "marker", result.FailureReason)
			assert.Equal(t, uint64(len(test.prepare)+2), result.Version)
			assert.Equal(t, test.to.Terminal(), result.ResolvedAt != nil)
		})
	}
}

func TestTryTransitionNotFound(t *testing.T) {
	store := NewOrderStore()

	_, err := store.TryTransition(context.Background(), uuid.New(), models.StatusActive, models.StatusExecuting, nil)
	assert.ErrorIs(t, err, repositoryErrors.ErrOrderNotFound)
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	store := NewOrderStore()

	order := newOrder()
	_, err := store.Insert(ctx, order)
	require.NoError(t, err)

	cancelled, err := store.Cancel(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.ResolvedAt)

	_, err = store.Cancel(ctx, order.ID)
	assert.ErrorIs(t, err, repositoryErrors.ErrAlreadyTerminalOrExecuting)

	_, err = store.Cancel(ctx, uuid.New())
	assert.ErrorIs(t, err, repositoryErrors.ErrOrderNotFound)
}

func TestCancelAfterClaim(t *testing.T) {
	ctx := context.Background()
	store := NewOrderStore()

	order := newOrder()
	_, err := store.Insert(ctx, order)
	require.NoError(t, err)

	_, err = store.TryTransition(ctx, order.ID, models.StatusActive, models.StatusExecuting, nil)
	require.NoError(t, err)

	_, err = store.Cancel(ctx, order.ID)
	require.ErrorIs(t, err, repositoryErrors.ErrAlreadyTerminalOrExecuting)

	completed, err := store.TryTransition(ctx, order.ID, models.StatusExecuting, models.StatusCompleted, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, completed.Status)
}

func TestCancelRacesClaim(t *testing.T) {
	ctx := context.Background()

	for range 50 {
		store := NewOrderStore()
		order := newOrder()
		_, err := store.Insert(ctx, order)
		require.NoError(t, err)

		var (
			wg      sync.WaitGroup
			winners atomic.Int32
		)

		for i := range 8 {
			wg.Add(1)
			go func(claim bool) {
				defer wg.Done()

				var err error
				if claim {
					_, err = store.TryTransition(ctx, order.ID, models.StatusActive, models.StatusExecuting, nil)
				} else {
					_, err = store.Cancel(ctx, order.ID)
				}
				if err == nil {
					winners.Add(1)
				}
			}(i%2 == 0)
		}
		wg.Wait()

		assert.Equal(t, int32(1), winners.Load())

		stored, err := store.Get(ctx, order.ID)
		require.NoError(t, err)
		assert.Contains(t, []models.Status{models.StatusExecuting, models.StatusCancelled}, stored.Status)
		assert.Equal(t, uint64(2), stored.Version)
	}
}

func TestObserversNotified(t *testing.T) {
	ctx := context.Background()
	observer := &recordingObserver{}
	store := NewOrderStore(WithObserver(observer))

	order := newOrder()
	_, err := store.Insert(ctx, order)
	require.NoError(t, err)

	_, err = store.TryTransition(ctx, order.ID, models.StatusActive, models.StatusExecuting, nil)
	require.NoError(t, err)

	_, err = store.TryTransition(ctx, order.ID, models.StatusActive, models.StatusExecuting, nil)
	require.Error(t, err)

	require.Len(t, observer.inserted, 1)
	require.Len(t, observer.transitions, 1)
	assert.Equal(t, models.StatusExecuting, observer.transitions[0].Status)
	assert.Equal(t, uint64(2), observer.transitions[0].Version)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := NewOrderStore()
	_, err := store.Insert(ctx, newOrder())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, store.Len())
}
