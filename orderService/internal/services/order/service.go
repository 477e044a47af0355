package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nastyazhadan/spot-order-trigger/orderService/internal/domain/models"
	repositoryErrors "github.com/nastyazhadan/spot-order-trigger/shared/errors/repository"
	serviceErrors "github.com/nastyazhadan/spot-order-trigger/shared/errors/service"
	zapLogger "github.com/nastyazhadan/spot-order-trigger/shared/interceptors/logger/zap"
)

var maxSlippage = decimal.NewFromInt(100)

type Store interface {
	Insert(ctx context.Context, order models.Order) (models.Order, error)
	Get(ctx context.Context, id uuid.UUID) (models.Order, error)
	List(ctx context.Context, filter models.Filter) ([]models.Order, error)
	Cancel(ctx context.Context, id uuid.UUID) (models.Order, error)
}

type RateLimiter interface {
	Allow(ctx context.Context, owner string) (bool, error)
}

type PriceOracle interface {
	GetPrices(ctx context.Context, tokens []string) (models.PriceSnapshot, error)
}

type CreateOrderRequest struct {
	Owner       string
	Kind        models.Kind
	SourceToken string
	TargetToken string
	Amount      decimal.Decimal
	PriceTarget decimal.Decimal
	// Slippage is a percentage; nil selects the service default.
	Slippage *decimal.Decimal
	Expiry   *time.Time
}

type Service struct {
	store       Store
	rateLimiter RateLimiter
	oracle      PriceOracle

	defaultSlippage decimal.Decimal
	now             func() time.Time
}

func NewService(store Store, limiter RateLimiter, oracle PriceOracle, defaultSlippage decimal.Decimal) *Service {
	return &Service{
		store:           store,
		rateLimiter:     limiter,
		oracle:          oracle,
		defaultSlippage: defaultSlippage,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) CreateOrder(ctx context.Context, request CreateOrderRequest) (models.Order, error) {
	const op = "Service.CreateOrder"

	request.Owner = strings.TrimSpace(request.Owner)
	request.SourceToken = strings.TrimSpace(request.SourceToken)
	request.TargetToken = strings.TrimSpace(request.TargetToken)

	if err := s.validate(request); err != nil {
		return models.Order{}, fmt.Errorf("%s: %w", op, err)
	}

	ctx = zapLogger.ContextWithOwner(ctx, request.Owner)

	if err := s.checkRateLimit(ctx, request.Owner); err != nil {
		return models.Order{}, fmt.Errorf("%s: %w", op, err)
	}

	slippage := s.defaultSlippage
	if request.Slippage != nil {
		slippage = *request.Slippage
	}

	order, err := s.store.Insert(ctx, models.Order{
		ID:          uuid.New(),
		Owner:       request.Owner,
		Kind:        request.Kind,
		SourceToken: request.SourceToken,
		TargetToken: request.TargetToken,
		Amount:      request.Amount,
		PriceTarget: request.PriceTarget,
		Slippage:    slippage,
		Expiry:      request.Expiry,
		CreatedAt:   s.now(),
	})
	if err != nil {
		if errors.Is(err, repositoryErrors.ErrOrderAlreadyExists) {
			return models.Order{}, fmt.Errorf("%s: %w", op, serviceErrors.ErrOrderAlreadyExists)
		}

		return models.Order{}, fmt.Errorf("%s: %w", op, err)
	}

	zapLogger.Info(zapLogger.ContextWithOrderID(ctx, order.ID.String()), "order created",
		zap.String("kind", order.Kind.String()),
		zap.String("pair", order.SourceToken+"/"+order.TargetToken),
		zap.String("price_target", order.PriceTarget.String()),
	)

	return order, nil
}

func (s *Service) CancelOrder(ctx context.Context, id uuid.UUID) (models.Order, error) {
	const op = "Service.CancelOrder"

	order, err := s.store.Cancel(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, repositoryErrors.ErrOrderNotFound):
			return models.Order{}, fmt.Errorf("%s: %w", op, serviceErrors.ErrOrderNotFound)
		case errors.Is(err, repositoryErrors.ErrAlreadyTerminalOrExecuting):
			return models.Order{}, fmt.Errorf("%s: %w", op, serviceErrors.ErrAlreadyTerminalOrExecuting)
		}

		return models.Order{}, fmt.Errorf("%s: %w", op, err)
	}

	zapLogger.Info(zapLogger.ContextWithOrderID(ctx, id.String()), "order cancelled")

	return order, nil
}

func (s *Service) GetOrder(ctx context.Context, id uuid.UUID) (models.Order, error) {
	const op = "Service.GetOrder"

	order, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repositoryErrors.ErrOrderNotFound) {
			return models.Order{}, fmt.Errorf("%s: %w", op, serviceErrors.ErrOrderNotFound)
		}

		return models.Order{}, fmt.Errorf("%s: %w", op, err)
	}

	return order, nil
}

// ListOrders returns every order, or only the owner's when owner is set,
// in creation order.
func (s *Service) ListOrders(ctx context.Context, owner string) ([]models.Order, error) {
	const op = "Service.ListOrders"

	orders, err := s.store.List(ctx, models.Filter{Owner: strings.TrimSpace(owner)})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return orders, nil
}

func (s *Service) GetPrices(ctx context.Context, tokens []string) (models.PriceSnapshot, error) {
	const op = "Service.GetPrices"

	cleaned := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if token = strings.TrimSpace(token); token != "" {
			cleaned = append(cleaned, token)
		}
	}
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("%s: %w", op, serviceErrors.NewValidationError("tokens", "must not be empty"))
	}

	snapshot, err := s.oracle.GetPrices(ctx, cleaned)
	if err != nil {
		if errors.Is(err, serviceErrors.ErrOracleUnavailable) {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		return nil, fmt.Errorf("%s: %w: %w", op, serviceErrors.ErrOracleUnavailable, err)
	}

	return snapshot, nil
}

func (s *Service) validate(request CreateOrderRequest) error {
	switch {
	case request.Owner == "":
		return serviceErrors.NewValidationError("owner", "must not be empty")
	case request.Kind == models.KindUnspecified, request.Kind > models.KindStopLoss:
		return serviceErrors.NewValidationError("kind", "must be buy, sell or stop_loss")
	case request.SourceToken == "":
		return serviceErrors.NewValidationError("source_token", "must not be empty")
	case request.TargetToken == "":
		return serviceErrors.NewValidationError("target_token", "must not be empty")
	case request.SourceToken == request.TargetToken:
		return serviceErrors.NewValidationError("target_token", "must differ from source_token")
	case !request.Amount.IsPositive():
		return serviceErrors.NewValidationError("amount", "must be positive")
	case !request.PriceTarget.IsPositive():
		return serviceErrors.NewValidationError("price_target", "must be positive")
	}

	if request.Slippage != nil {
		if !request.Slippage.IsPositive() || request.Slippage.GreaterThan(maxSlippage) {
			return serviceErrors.NewValidationError("slippage", "must be in (0, 100]")
		}
	}

	if request.Expiry != nil && !request.Expiry.After(s.now()) {
		return serviceErrors.NewValidationError("expiry", "must be in the future")
	}

	return nil
}

func (s *Service) checkRateLimit(ctx context.Context, owner string) error {
	if s.rateLimiter == nil {
		return nil
	}

	allowed, err := s.rateLimiter.Allow(ctx, owner)
	if err != nil {
		return err
	}
	if !allowed {
		return serviceErrors.ErrRateLimitExceeded
	}

	return nil
}
