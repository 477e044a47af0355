package mapper

import (
	"sort"
	"time"

	"github.com/nastyazhadan/spot-order-trigger/orderService/internal/domain/models"
)

type OrderResponse struct {
	ID            string     `json:"id"`
	Owner         string     `json:"owner"`
	Kind          string     `json:"kind"`
	SourceToken   string     `json:"source_token"`
	TargetToken   string     `json:"target_token"`
	Amount        string     `json:"amount"`
	PriceTarget   string     `json:"price_target"`
	Slippage      string     `json:"slippage"`
	Expiry        *time.Time `json:"expiry,omitempty"`
	Status        string     `json:"status"`
	Version       uint64     `json:"version"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
	FailureReason string     `json:"failure_reason,omitempty"`
	SwapReference string     `json:"swap_reference,omitempty"`
}

type PriceResponse struct {
	Token      string    `json:"token"`
	PriceUSD   string    `json:"price_usd"`
	ObservedAt time.Time `json:"observed_at"`
	Source     string    `json:"source"`
}

func OrderToResponse(order models.Order) OrderResponse {
	return OrderResponse{
		ID:            order.ID.String(),
		Owner:         order.Owner,
		Kind:          order.Kind.String(),
		SourceToken:   order.SourceToken,
		TargetToken:   order.TargetToken,
		Amount:        order.Amount.String(),
		PriceTarget:   order.PriceTarget.String(),
		Slippage:      order.Slippage.String(),
		Expiry:        order.Expiry,
		Status:        order.Status.String(),
		Version:       order.Version,
		CreatedAt:     order.CreatedAt,
		UpdatedAt:     order.UpdatedAt,
		ResolvedAt:    order.ResolvedAt,
		FailureReason: order.FailureReason,
		SwapReference: order.SwapReference,
	}
}

func OrdersToResponse(orders []models.Order) []OrderResponse {
	result := make([]OrderResponse, 0, len(orders))
	for _, order := range orders {
		result = append(result, OrderToResponse(order))
	}
	return result
}

// SnapshotToResponse lists resolved prices sorted by token.
func SnapshotToResponse(snapshot models.PriceSnapshot) []PriceResponse {
	result := make([]PriceResponse, 0, len(snapshot))
	for token, quote := range snapshot {
		result = append(result, PriceResponse{
			Token:      token,
			PriceUSD:   quote.PriceUSD.String(),
			ObservedAt: quote.ObservedAt,
			Source:     quote.Source,
		})
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Token < result[j].Token
	})

	return result
}
