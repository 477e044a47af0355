package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/nastyazhadan/spot-order-trigger/orderService/internal/domain/models"
	svcOrder "github.com/nastyazhadan/spot-order-trigger/orderService/internal/services/order"
)

type Order struct {
	mock.Mock
}

func (m *Order) CreateOrder(ctx context.Context, request svcOrder.CreateOrderRequest) (models.Order, error) {
	args := m.Called(ctx, request)
	return args.Get(0).(models.Order), args.Error(1)
}

func (m *Order) CancelOrder(ctx context.Context, id uuid.UUID) (models.Order, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(models.Order), args.Error(1)
}

func (m *Order) GetOrder(ctx context.Context, id uuid.UUID) (models.Order, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(models.Order), args.Error(1)
}

func (m *Order) ListOrders(ctx context.Context, owner string) ([]models.Order, error) {
	args := m.Called(ctx, owner)
	if orders := args.Get(0); orders != nil {
		return orders.([]models.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Order) GetPrices(ctx context.Context, tokens []string) (models.PriceSnapshot, error) {
	args := m.Called(ctx, tokens)
	if snapshot := args.Get(0); snapshot != nil {
		return snapshot.(models.PriceSnapshot), args.Error(1)
	}
	return nil, args.Error(1)
}
