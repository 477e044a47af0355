package swap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"

	"github.com/nastyazhadan/spot-order-trigger/orderService/internal/domain/models"
	"github.com/nastyazhadan/spot-order-trigger/shared/client/breaker"
	"github.com/nastyazhadan/spot-order-trigger/shared/client/httpclient"
	"github.com/nastyazhadan/spot-order-trigger/shared/config"
	serviceErrors "github.com/nastyazhadan/spot-order-trigger/shared/errors/service"
)

var basisPoints = decimal.NewFromInt(100)

// GatewayExecutor submits swaps to an external gateway that owns the wallet
// keys and transaction signing.
type GatewayExecutor struct {
	client         *httpclient.Client
	endpoint       string
	circuitBreaker *gobreaker.CircuitBreaker[models.SwapResult]
}

type gatewayRequest struct {
	OrderID     string `json:"order_id"`
	Owner       string `json:"owner"`
	InputMint   string `json:"input_mint"`
	OutputMint  string `json:"output_mint"`
	Amount      string `json:"amount"`
	SlippageBps int64  `json:"slippage_bps"`
}

type gatewayResponse struct {
	Signature string `json:"signature"`
}

func NewGatewayExecutor(client *httpclient.Client, baseURL string, cfg config.CircuitBreakerConfig) *GatewayExecutor {
	return &GatewayExecutor{
		client:   client,
		endpoint: strings.TrimRight(baseURL, "/") + "/swap",
		// Rejected swaps are the caller's fault and must not open the breaker.
		circuitBreaker: breaker.New[models.SwapResult]("swap.gateway", cfg, func(err error) bool {
			return !httpclient.IsRetryable(err)
		}),
	}
}

func (g *GatewayExecutor) Swap(ctx context.Context, request models.SwapRequest) (models.SwapResult, error) {
	const op = "GatewayExecutor.Swap"

	result, err := g.circuitBreaker.Execute(func() (models.SwapResult, error) {
		var response gatewayResponse
		err := g.client.PostJSON(ctx, g.endpoint, gatewayRequest{
			OrderID:     request.OrderID,
			Owner:       request.Owner,
			InputMint:   request.SourceToken,
			OutputMint:  request.TargetToken,
			Amount:      request.Amount.String(),
			SlippageBps: request.Slippage.Mul(basisPoints).IntPart(),
		}, &response)
		if err != nil {
			return models.SwapResult{}, err
		}
		if response.Signature == "" {
			return models.SwapResult{}, httpclient.WrapNonRetryable(errors.New("gateway returned no signature"))
		}

		return models.SwapResult{Reference: response.Signature}, nil
	})
	if err != nil {
		return models.SwapResult{}, fmt.Errorf("%s: %w", op, classify(err))
	}

	return result, nil
}

func classify(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %w", serviceErrors.ErrSwapTransient, err)
	}

	if httpclient.IsRetryable(err) {
		return fmt.Errorf("%w: %w", serviceErrors.ErrSwapTransient, err)
	}

	return fmt.Errorf("%w: %w", serviceErrors.ErrSwapPermanent, err)
}
