package order

import (
	"context"
	"errors"
	"testing"
	"time"

	fakeValue "github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nastyazhadan/spot-order-trigger/orderService/internal/domain/models"
	"github.com/nastyazhadan/spot-order-trigger/orderService/internal/services/mocks"
	repositoryErrors "github.com/nastyazhadan/spot-order-trigger/shared/errors/repository"
	serviceErrors "github.com/nastyazhadan/spot-order-trigger/shared/errors/service"
)

var defaultSlippage = decimal.RequireFromString("0.5")

func validRequest() CreateOrderRequest {
	return CreateOrderRequest{
		Owner:       fakeValue.BitcoinAddress(),
		Kind:        models.KindSell,
		SourceToken: "So11111111111111111111111111111111111111112",
		TargetToken: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		Amount:      decimal.NewFromFloat(fakeValue.Float64Range(0.1, 100)),
		PriceTarget: decimal.NewFromFloat(fakeValue.Float64Range(1, 1000)),
	}
}

func echoInsert(_ context.Context, order models.Order) models.Order {
	order.Status = models.StatusActive
	order.Version = 1
	return order
}

func TestCreateOrder(t *testing.T) {
	fakeValue.Seed(time.Now().UnixNano())

	future := time.Now().Add(time.Hour)
	past := time.Now().Add(-time.Hour)
	customSlippage := decimal.NewFromInt(2)
	zero := decimal.Zero
	tooHigh := decimal.NewFromInt(101)

	tests := []struct {
		name           string
		request        func() CreateOrderRequest
		setupMocks     func(*mocks.MockOrderStore, *mocks.MockRateLimiter)
		expectedErr    error
		expectedErrMsg string
		checkResult    func(t *testing.T, order models.Order)
	}{
		{
			name:    "успешное создание ордера",
			request: validRequest,
			setupMocks: func(store *mocks.MockOrderStore, limiter *mocks.MockRateLimiter) {
				limiter.On("Allow", mock.Anything, mock.AnythingOfType("string")).Return(true, nil)
				store.On("Insert", mock.Anything, mock.AnythingOfType("models.Order")).
					Return(func(ctx context.Context, order models.Order) models.Order { return echoInsert(ctx, order) }, nil)
			},
			checkResult: func(t *testing.T, order models.Order) {
				assert.NotEqual(t, uuid.Nil, order.ID)
				assert.Equal(t, models.StatusActive, order.Status)
				assert.True(t, order.Slippage.Equal(defaultSlippage))
			},
		},
		{
			name: "пользовательский slippage и срок",
			request: func() CreateOrderRequest {
				request := validRequest()
				request.Slippage = &customSlippage
				request.Expiry = &future
				return request
			},
			setupMocks: func(store *mocks.MockOrderStore, limiter *mocks.MockRateLimiter) {
				limiter.On("Allow", mock.Anything, mock.AnythingOfType("string")).Return(true, nil)
				store.On("Insert", mock.Anything, mock.MatchedBy(func(order models.Order) bool {
					return order.Slippage.Equal(customSlippage) && order.Expiry != nil
				})).Return(func(ctx context.Context, order models.Order) models.Order { return echoInsert(ctx, order) }, nil)
			},
			checkResult: func(t *testing.T, order models.Order) {
				assert.True(t, order.Slippage.Equal(customSlippage))
			},
		},
		{
			name: "ошибка - одинаковые токены",
			request: func() CreateOrderRequest {
				request := validRequest()
				request.TargetToken = request.SourceToken
				return request
			},
			setupMocks:  func(*mocks.MockOrderStore, *mocks.MockRateLimiter) {},
			expectedErr: serviceErrors.ErrValidation,
		},
		{
			name: "ошибка - нулевое количество",
			request: func() CreateOrderRequest {
				request := validRequest()
				request.Amount = decimal.Zero
				return request
			},
			setupMocks:     func(*mocks.MockOrderStore, *mocks.MockRateLimiter) {},
			expectedErr:    serviceErrors.ErrValidation,
			expectedErrMsg: "amount must be positive",
		},
		{
			name: "ошибка - отрицательная цена",
			request: func() CreateOrderRequest {
				request := validRequest()
				request.PriceTarget = decimal.NewFromInt(-1)
				return request
			},
			setupMocks:     func(*mocks.MockOrderStore, *mocks.MockRateLimiter) {},
			expectedErr:    serviceErrors.ErrValidation,
			expectedErrMsg: "price_target must be positive",
		},
		{
			name: "ошибка - пустой владелец",
			request: func() CreateOrderRequest {
				request := validRequest()
				request.Owner = "   "
				return request
			},
			setupMocks:     func(*mocks.MockOrderStore, *mocks.MockRateLimiter) {},
			expectedErr:    serviceErrors.ErrValidation,
			expectedErrMsg: "owner",
		},
		{
			name: "ошибка - неизвестный тип",
			request: func() CreateOrderRequest {
				request := validRequest()
				request.Kind = models.KindUnspecified
				return request
			},
			setupMocks:  func(*mocks.MockOrderStore, *mocks.MockRateLimiter) {},
			expectedErr: serviceErrors.ErrValidation,
		},
		{
			name: "ошибка - тип вне диапазона",
			request: func() CreateOrderRequest {
				request := validRequest()
				request.Kind = models.Kind(7)
				return request
			},
			setupMocks:     func(*mocks.MockOrderStore, *mocks.MockRateLimiter) {},
			expectedErr:    serviceErrors.ErrValidation,
			expectedErrMsg: "kind",
		},
		{
			name: "ошибка - нулевой slippage",
			request: func() CreateOrderRequest {
				request := validRequest()
				request.Slippage = &zero
				return request
			},
			setupMocks:  func(*mocks.MockOrderStore, *mocks.MockRateLimiter) {},
			expectedErr: serviceErrors.ErrValidation,
		},
		{
			name: "ошибка - slippage больше 100",
			request: func() CreateOrderRequest {
				request := validRequest()
				request.Slippage = &tooHigh
				return request
			},
			setupMocks:  func(*mocks.MockOrderStore, *mocks.MockRateLimiter) {},
			expectedErr: serviceErrors.ErrValidation,
		},
		{
			name: "ошибка - срок в прошлом",
			request: func() CreateOrderRequest {
				request := validRequest()
				request.Expiry = &past
				return request
			},
			setupMocks:     func(*mocks.MockOrderStore, *mocks.MockRateLimiter) {},
			expectedErr:    serviceErrors.ErrValidation,
			expectedErrMsg: "expiry",
		},
		{
			name:    "ошибка - превышен лимит запросов",
			request: validRequest,
			setupMocks: func(store *mocks.MockOrderStore, limiter *mocks.MockRateLimiter) {
				limiter.On("Allow", mock.Anything, mock.AnythingOfType("string")).Return(false, nil)
			},
			expectedErr: serviceErrors.ErrRateLimitExceeded,
		},
		{
			name:    "ошибка - лимитер недоступен",
			request: validRequest,
			setupMocks: func(store *mocks.MockOrderStore, limiter *mocks.MockRateLimiter) {
				limiter.On("Allow", mock.Anything, mock.AnythingOfType("string")).Return(false, errors.New("redis down"))
			},
			expectedErrMsg: "Service.CreateOrder: redis down",
		},
		{
			name:    "ошибка - ордер уже существует",
			request: validRequest,
			setupMocks: func(store *mocks.MockOrderStore, limiter *mocks.MockRateLimiter) {
				limiter.On("Allow", mock.Anything, mock.AnythingOfType("string")).Return(true, nil)
				store.On("Insert", mock.Anything, mock.AnythingOfType("models.Order")).
					Return(models.Order{}, repositoryErrors.ErrOrderAlreadyExists)
			},
			expectedErr: serviceErrors.ErrOrderAlreadyExists,
		},
		{
			name:    "ошибка - неизвестная ошибка хранилища",
			request: validRequest,
			setupMocks: func(store *mocks.MockOrderStore, limiter *mocks.MockRateLimiter) {
				limiter.On("Allow", mock.Anything, mock.AnythingOfType("string")).Return(true, nil)
				store.On("Insert", mock.Anything, mock.AnythingOfType("models.Order")).
					Return(models.Order{}, errors.New("internal error"))
			},
			expectedErrMsg: "Service.CreateOrder: internal error",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			mockStore := new(mocks.MockOrderStore)
			mockLimiter := new(mocks.MockRateLimiter)

			test.setupMocks(mockStore, mockLimiter)

			service := NewService(mockStore, mockLimiter, new(mocks.MockPriceOracle), defaultSlippage)

			order, err := service.CreateOrder(context.Background(), test.request())

			if test.expectedErr != nil || test.expectedErrMsg != "" {
				require.Error(t, err)

				if test.expectedErr != nil {
					assert.ErrorIs(t, err, test.expectedErr)
				}
				if test.expectedErrMsg != "" {
					assert.ErrorContains(t, err, test.expectedErrMsg)
				}
			} else {
				require.NoError(t, err)
			}

			if test.checkResult != nil {
				test.checkResult(t, order)
			}

			mockStore.AssertExpectations(t)
			mockLimiter.AssertExpectations(t)
		})
	}
}

func TestCreateOrderWithoutRateLimiter(t *testing.T) {
	mockStore := new(mocks.MockOrderStore)
	mockStore.On("Insert", mock.Anything, mock.AnythingOfType("models.Order")).
		Return(func(ctx context.Context, order models.Order) models.Order { return echoInsert(ctx, order) }, nil)

	service := NewService(mockStore, nil, nil, defaultSlippage)

	_, err := service.CreateOrder(context.Background(), validRequest())
	require.NoError(t, err)
	mockStore.AssertExpectations(t)
}

func TestCancelOrder(t *testing.T) {
	orderID := uuid.New()

	tests := []struct {
		name        string
		setupMocks  func(*mocks.MockOrderStore)
		expectedErr error
	}{
		{
			name: "успешная отмена",
			setupMocks: func(store *mocks.MockOrderStore) {
				store.On("Cancel", mock.Anything, orderID).
					Return(models.Order{ID: orderID, Status: models.StatusCancelled}, nil)
			},
		},
		{
			name: "ошибка - ордер не найден",
			setupMocks: func(store *mocks.MockOrderStore) {
				store.On("Cancel", mock.Anything, orderID).
					Return(models.Order{}, repositoryErrors.ErrOrderNotFound)
			},
			expectedErr: serviceErrors.ErrOrderNotFound,
		},
		{
			name: "ошибка - ордер уже исполняется",
			setupMocks: func(store *mocks.MockOrderStore) {
				store.On("Cancel", mock.Anything, orderID).
					Return(models.Order{}, repositoryErrors.ErrAlreadyTerminalOrExecuting)
			},
			expectedErr: serviceErrors.ErrAlreadyTerminalOrExecuting,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			mockStore := new(mocks.MockOrderStore)
			test.setupMocks(mockStore)

			service := NewService(mockStore, nil, nil, defaultSlippage)

			order, err := service.CancelOrder(context.Background(), orderID)
			if test.expectedErr != nil {
				assert.ErrorIs(t, err, test.expectedErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, models.StatusCancelled, order.Status)
			}

			mockStore.AssertExpectations(t)
		})
	}
}

func TestGetAndListOrders(t *testing.T) {
	orderID := uuid.New()
	owner := fakeValue.BitcoinAddress()

	mockStore := new(mocks.MockOrderStore)
	mockStore.On("Get", mock.Anything, orderID).Return(models.Order{ID: orderID, Owner: owner}, nil)
	mockStore.On("Get", mock.Anything, uuid.Nil).Return(models.Order{}, repositoryErrors.ErrOrderNotFound)
	mockStore.On("List", mock.Anything, models.Filter{Owner: owner}).Return([]models.Order{{ID: orderID, Owner: owner}}, nil)
	mockStore.On("List", mock.Anything, models.Filter{}).Return(nil, errors.New("internal error"))

	service := NewService(mockStore, nil, nil, defaultSlippage)
	ctx := context.Background()

	order, err := service.GetOrder(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, owner, order.Owner)

	_, err = service.GetOrder(ctx, uuid.Nil)
	assert.ErrorIs(t, err, serviceErrors.ErrOrderNotFound)

	orders, err := service.ListOrders(ctx, " "+owner+" ")
	require.NoError(t, err)
	assert.Len(t, orders, 1)

	_, err = service.ListOrders(ctx, "")
	assert.ErrorContains(t, err, "Service.ListOrders: internal error")

	mockStore.AssertExpectations(t)
}

func TestGetPrices(t *testing.T) {
	mockOracle := new(mocks.MockPriceOracle)
	mockOracle.On("GetPrices", mock.Anything, []string{"A", "B"}).
		Return(models.PriceSnapshot{"A": {PriceUSD: decimal.NewFromInt(2)}}, nil).Once()
	mockOracle.On("GetPrices", mock.Anything, []string{"C"}).
		Return(nil, errors.New("timeout")).Once()

	service := NewService(new(mocks.MockOrderStore), nil, mockOracle, defaultSlippage)
	ctx := context.Background()

	snapshot, err := service.GetPrices(ctx, []string{"A", " ", "B"})
	require.NoError(t, err)
	assert.Len(t, snapshot, 1)

	_, err = service.GetPrices(ctx, []string{"C"})
	assert.ErrorIs(t, err, serviceErrors.ErrOracleUnavailable)

	_, err = service.GetPrices(ctx, nil)
	assert.ErrorIs(t, err, serviceErrors.ErrValidation)

	mockOracle.AssertExpectations(t)
}
