package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/nastyazhadan/spot-order-trigger/orderService/internal/domain/models"
)

type MockSwapExecutor struct {
	mock.Mock
}

func (m *MockSwapExecutor) Swap(ctx context.Context, request models.SwapRequest) (models.SwapResult, error) {
	args := m.Called(ctx, request)
	return args.Get(0).(models.SwapResult), args.Error(1)
}

type MockPriceOracle struct {
	mock.Mock
}

func (m *MockPriceOracle) GetPrices(ctx context.Context, tokens []string) (models.PriceSnapshot, error) {
	args := m.Called(ctx, tokens)
	if snapshot := args.Get(0); snapshot != nil {
		return snapshot.(models.PriceSnapshot), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockOrderStore struct {
	mock.Mock
}

func (m *MockOrderStore) Insert(ctx context.Context, order models.Order) (models.Order, error) {
	args := m.Called(ctx, order)
	if fn, ok := args.Get(0).(func(context.Context, models.Order) models.Order); ok {
		return fn(ctx, order), args.Error(1)
	}
	return args.Get(0).(models.Order), args.Error(1)
}

func (m *MockOrderStore) Get(ctx context.Context, id uuid.UUID) (models.Order, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(models.Order), args.Error(1)
}

func (m *MockOrderStore) List(ctx context.Context, filter models.Filter) ([]models.Order, error) {
	args := m.Called(ctx, filter)
	if orders := args.Get(0); orders != nil {
		return orders.([]models.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockOrderStore) Cancel(ctx context.Context, id uuid.UUID) (models.Order, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(models.Order), args.Error(1)
}

type MockRateLimiter struct {
	mock.Mock
}

func (m *MockRateLimiter) Allow(ctx context.Context, owner string) (bool, error) {
	args := m.Called(ctx, owner)
	return args.Bool(0), args.Error(1)
}
