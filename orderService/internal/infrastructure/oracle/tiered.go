package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/nastyazhadan/spot-order-trigger/orderService/internal/domain/models"
	"github.com/nastyazhadan/spot-order-trigger/shared/client/breaker"
	"github.com/nastyazhadan/spot-order-trigger/shared/config"
	serviceErrors "github.com/nastyazhadan/spot-order-trigger/shared/errors/service"
	zapLogger "github.com/nastyazhadan/spot-order-trigger/shared/interceptors/logger/zap"
)

type PriceSource interface {
	Name() string
	Fetch(ctx context.Context, tokens []string) (models.PriceSnapshot, error)
}

type guardedSource struct {
	source         PriceSource
	circuitBreaker *gobreaker.CircuitBreaker[models.PriceSnapshot]
}

// TieredOracle asks its sources in order, each one only for the tokens the
// previous sources left unresolved.
type TieredOracle struct {
	sources []guardedSource
	maxAge  time.Duration
	now     func() time.Time
}

func NewTieredOracle(cfg config.CircuitBreakerConfig, maxAge time.Duration, sources ...PriceSource) *TieredOracle {
	guarded := make([]guardedSource, 0, len(sources))
	for _, source := range sources {
		guarded = append(guarded, guardedSource{
			source:         source,
			circuitBreaker: breaker.New[models.PriceSnapshot]("prices."+source.Name(), cfg, nil),
		})
	}

	return &TieredOracle{
		sources: guarded,
		maxAge:  maxAge,
		now:     time.Now,
	}
}

// GetPrices returns whatever could be resolved. It fails with
// ErrOracleUnavailable only when no token got a fresh price.
func (o *TieredOracle) GetPrices(ctx context.Context, tokens []string) (models.PriceSnapshot, error) {
	const op = "TieredOracle.GetPrices"

	result := make(models.PriceSnapshot, len(tokens))
	remaining := tokens
	var errs []error

	for _, guarded := range o.sources {
		if len(remaining) == 0 {
			break
		}

		snapshot, err := guarded.circuitBreaker.Execute(func() (models.PriceSnapshot, error) {
			return guarded.source.Fetch(ctx, remaining)
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", guarded.source.Name(), err))
			zapLogger.Warn(ctx, "price source failed, falling back",
				zap.String("source", guarded.source.Name()),
				zap.Int("tokens", len(remaining)),
				zap.Error(err),
			)
			continue
		}

		now := o.now()
		for _, token := range remaining {
			quote, found := snapshot[token]
			if !found || o.stale(quote, now) {
				continue
			}
			result[token] = quote
		}

		remaining = unresolved(remaining, result)
	}

	if len(result) == 0 && len(tokens) > 0 {
		if len(errs) == 0 {
			errs = append(errs, errors.New("no source returned a fresh price"))
		}
		return nil, fmt.Errorf("%s: %w: %w", op, serviceErrors.ErrOracleUnavailable, errors.Join(errs...))
	}

	return result, nil
}

func (o *TieredOracle) stale(quote models.PriceQuote, now time.Time) bool {
	return o.maxAge > 0 && now.Sub(quote.ObservedAt) > o.maxAge
}

func unresolved(tokens []string, resolved models.PriceSnapshot) []string {
	left := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if _, found := resolved[token]; !found {
			left = append(left, token)
		}
	}
	return left
}
