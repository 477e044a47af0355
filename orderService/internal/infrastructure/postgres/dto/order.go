package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nastyazhadan/spot-order-trigger/orderService/internal/domain/models"
)

type Order struct {
	ID            uuid.UUID  `db:"id"`
	Owner         string     `db:"owner"`
	Kind          int16      `db:"kind"`
	SourceToken   string     `db:"source_token"`
	TargetToken   string     `db:"target_token"`
	Amount        string     `db:"amount"`
	PriceTarget   string     `db:"price_target"`
	Slippage      string     `db:"slippage"`
	Expiry        *time.Time `db:"expiry"`
	Status        int16      `db:"status"`
	Version       int64      `db:"version"`
	FailureReason string     `db:"failure_reason"`
	SwapReference string     `db:"swap_reference"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
	ResolvedAt    *time.Time `db:"resolved_at"`
}

// ToDomain fails only if a numeric column holds something decimal cannot parse.
func (o Order) ToDomain() (models.Order, error) {
	amount, err := decimal.NewFromString(o.Amount)
	if err != nil {
		return models.Order{}, err
	}
	priceTarget, err := decimal.NewFromString(o.PriceTarget)
	if err != nil {
		return models.Order{}, err
	}
	slippage, err := decimal.NewFromString(o.Slippage)
	if err != nil {
		return models.Order{}, err
	}

	return models.Order{
		ID:            o.ID,
		Owner:         o.Owner,
		Kind:          models.Kind(o.Kind),
		SourceToken:   o.SourceToken,
		TargetToken:   o.TargetToken,
		Amount:        amount,
		PriceTarget:   priceTarget,
		Slippage:      slippage,
		Expiry:        o.Expiry,
		Status:        models.Status(o.Status),
		Version:       uint64(o.Version),
		FailureReason: o.FailureReason,
		SwapReference: o.SwapReference,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
		ResolvedAt:    o.ResolvedAt,
	}, nil
}

func FromDomain(order models.Order) Order {
	return Order{
		ID:            order.ID,
		Owner:         order.Owner,
		Kind:          int16(order.Kind),
		SourceToken:   order.SourceToken,
		TargetToken:   order.TargetToken,
		Amount:        order.Amount.String(),
		PriceTarget:   order.PriceTarget.String(),
		Slippage:      order.Slippage.String(),
		Expiry:        order.Expiry,
		Status:        int16(order.Status),
		Version:       int64(order.Version),
		FailureReason: order.FailureReason,
		SwapReference: order.SwapReference,
		CreatedAt:     order.CreatedAt,
		UpdatedAt:     order.UpdatedAt,
		ResolvedAt:    order.ResolvedAt,
	}
}
