package inbound

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nastyazhadan/spot-order-trigger/orderService/internal/domain/models"
	svcOrder "github.com/nastyazhadan/spot-order-trigger/orderService/internal/services/order"
	serviceErrors "github.com/nastyazhadan/spot-order-trigger/shared/errors/service"
)

// CreateOrderBody is the JSON body of POST /api/v1/orders. Decimals accept
// both JSON numbers and strings; strings avoid float rounding on the client.
type CreateOrderBody struct {
	Owner       string           `json:"owner"`
	Kind        string           `json:"kind"`
	SourceToken string           `json:"source_token"`
	TargetToken string           `json:"target_token"`
	Amount      decimal.Decimal  `json:"amount"`
	PriceTarget decimal.Decimal  `json:"price_target"`
	Slippage    *decimal.Decimal `json:"slippage,omitempty"`
	Expiry      *time.Time       `json:"expiry,omitempty"`
}

func (b CreateOrderBody) ToRequest() (svcOrder.CreateOrderRequest, error) {
	kind, ok := models.ParseKind(strings.TrimSpace(b.Kind))
	if !ok {
		return svcOrder.CreateOrderRequest{}, serviceErrors.NewValidationError("kind", "must be one of buy, sell, stop_loss")
	}

	return svcOrder.CreateOrderRequest{
		Owner:       b.Owner,
		Kind:        kind,
		SourceToken: b.SourceToken,
		TargetToken: b.TargetToken,
		Amount:      b.Amount,
		PriceTarget: b.PriceTarget,
		Slippage:    b.Slippage,
		Expiry:      b.Expiry,
	}, nil
}

// ParseTokens splits a comma separated query value, dropping blanks.
func ParseTokens(raw string) []string {
	parts := strings.Split(raw, ",")
	tokens := make([]string, 0, len(parts))
	for _, part := range parts {
		if token := strings.TrimSpace(part); token != "" {
			tokens = append(tokens, token)
		}
	}
	return tokens
}
