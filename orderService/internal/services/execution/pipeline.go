package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/nastyazhadan/spot-order-trigger/orderService/internal/domain/models"
	"github.com/nastyazhadan/spot-order-trigger/orderService/internal/metrics"
	serviceErrors "github.com/nastyazhadan/spot-order-trigger/shared/errors/service"
	zapLogger "github.com/nastyazhadan/spot-order-trigger/shared/interceptors/logger/zap"
)

const ExpiredReason = "expired"

type Store interface {
	TryTransition(
		ctx context.Context,
		id uuid.UUID,
		from, to models.Status,
		mutate func(*models.Order),
	) (models.Order, error)
}

type SwapExecutor interface {
	Swap(ctx context.Context, request models.SwapRequest) (models.SwapResult, error)
}

type Outcome uint8

const (
	OutcomeSkipped Outcome = iota
	OutcomeCompleted
	OutcomeRetry
	OutcomeFailed
	OutcomeExpired
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeRetry:
		return "retry"
	case OutcomeFailed:
		return "failed"
	case OutcomeExpired:
		return "expired"
	default:
		return "skipped"
	}
}

type Config struct {
	SwapTimeout time.Duration
	MaxAttempts int
	// Attempts is shared with the store as an observer; a private tracker is
	// used when nil.
	Attempts *AttemptTracker
}

type Pipeline struct {
	store    Store
	executor SwapExecutor
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	config   Config
	attempts *AttemptTracker
}

func NewPipeline(store Store, executor SwapExecutor, m *metrics.Metrics, config Config) *Pipeline {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	if config.Attempts == nil {
		config.Attempts = NewAttemptTracker()
	}

	return &Pipeline{
		store:    store,
		executor: executor,
		metrics:  m,
		tracer:   otel.Tracer("orderService/execution"),
		config:   config,
		attempts: config.Attempts,
	}
}

// Run drives one triggered or expired order to its next status. Errors are
// logged and never returned: a failing order must not affect its siblings.
func (p *Pipeline) Run(ctx context.Context, order models.Order, decision models.Decision) Outcome {
	ctx = zapLogger.ContextWithOrderID(ctx, order.ID.String())
	ctx, span := p.tracer.Start(ctx, "Pipeline.Run", trace.WithAttributes(
		attribute.String("order.id", order.ID.String()),
		attribute.String("order.kind", order.Kind.String()),
		attribute.String("decision", decision.String()),
	))
	defer span.End()

	p.metrics.PipelineStarted()
	defer p.metrics.PipelineFinished()

	var outcome Outcome
	switch decision {
	case models.DecisionExpired:
		outcome = p.expire(ctx, order)
	case models.DecisionTriggered:
		outcome = p.execute(ctx, order)
	default:
		outcome = OutcomeSkipped
	}

	span.SetAttributes(attribute.String("outcome", outcome.String()))
	return outcome
}

func (p *Pipeline) expire(ctx context.Context, order models.Order) Outcome {
	_, err := p.store.TryTransition(ctx, order.ID, models.StatusActive, models.StatusFailed, func(o *models.Order) {
		o.FailureReason = ExpiredReason
	})
	if err != nil {
		zapLogger.Debug(ctx, "expire skipped, order already moved", zap.Error(err))
		return OutcomeSkipped
	}

	p.attempts.Forget(order.ID)
	zapLogger.Info(ctx, "order expired")

	return OutcomeExpired
}

func (p *Pipeline) execute(ctx context.Context, order models.Order) Outcome {
	claimed, err := p.store.TryTransition(ctx, order.ID, models.StatusActive, models.StatusExecuting, nil)
	if err != nil {
		zapLogger.Debug(ctx, "claim skipped, order already moved", zap.Error(err))
		return OutcomeSkipped
	}

	// The order is ours until the next transition; finish it even if the
	// caller is shutting down.
	detached := context.WithoutCancel(ctx)

	result, elapsed, swapErr := p.swap(detached, claimed)
	if swapErr == nil {
		return p.complete(detached, claimed, result, elapsed)
	}

	span := trace.SpanFromContext(ctx)
	span.RecordError(swapErr)
	span.SetStatus(codes.Error, swapErr.Error())

	if errors.Is(swapErr, serviceErrors.ErrSwapPermanent) {
		return p.fail(detached, claimed, swapErr.Error(), elapsed)
	}

	attempt := p.attempts.Record(claimed.ID)
	if attempt >= p.config.MaxAttempts {
		reason := fmt.Sprintf("swap failed after %d attempts: %v", attempt, swapErr)
		return p.fail(detached, claimed, reason, elapsed)
	}

	if _, err := p.store.TryTransition(detached, claimed.ID, models.StatusExecuting, models.StatusActive, nil); err != nil {
		zapLogger.Error(detached, "failed to release order for retry", zap.Error(err))
		return OutcomeSkipped
	}

	p.metrics.RecordSwap(OutcomeRetry.String(), elapsed)
	zapLogger.Warn(detached, "swap failed, order returned to active",
		zap.Int("attempt", attempt),
		zap.Int("max_attempts", p.config.MaxAttempts),
		zap.Error(swapErr),
	)

	return OutcomeRetry
}

func (p *Pipeline) swap(ctx context.Context, order models.Order) (models.SwapResult, time.Duration, error) {
	swapCtx, cancel := context.WithTimeout(ctx, p.config.SwapTimeout)
	defer cancel()

	request := models.SwapRequest{
		OrderID:     order.ID.String(),
		Owner:       order.Owner,
		SourceToken: order.SourceToken,
		TargetToken: order.TargetToken,
		Amount:      order.Amount,
		Slippage:    order.Slippage,
	}

	started := time.Now()
	result, err := p.executor.Swap(swapCtx, request)
	elapsed := time.Since(started)

	// A reported success stands even if the deadline passed meanwhile: the
	// swap has happened and must not run again.
	if err != nil && swapCtx.Err() != nil && !errors.Is(err, serviceErrors.ErrSwapPermanent) {
		err = fmt.Errorf("%w: %w", serviceErrors.ErrSwapTransient, err)
	}

	return result, elapsed, err
}

func (p *Pipeline) complete(ctx context.Context, order models.Order, result models.SwapResult, elapsed time.Duration) Outcome {
	_, err := p.store.TryTransition(ctx, order.ID, models.StatusExecuting, models.StatusCompleted, func(o *models.Order) {
		o.SwapReference = result.Reference
		o.FailureReason = ""
	})
	if err != nil {
		zapLogger.Error(ctx, "swap succeeded but completion was not recorded",
			zap.String("swap_reference", result.Reference),
			zap.Error(err),
		)
		return OutcomeSkipped
	}

	p.attempts.Forget(order.ID)
	p.metrics.RecordSwap(OutcomeCompleted.String(), elapsed)
	zapLogger.Info(ctx, "order completed",
		zap.String("swap_reference", result.Reference),
		zap.Duration("swap_duration", elapsed),
	)

	return OutcomeCompleted
}

func (p *Pipeline) fail(ctx context.Context, order models.Order, reason string, elapsed time.Duration) Outcome {
	_, err := p.store.TryTransition(ctx, order.ID, models.StatusExecuting, models.StatusFailed, func(o *models.Order) {
		o.FailureReason = reason
	})
	if err != nil {
		zapLogger.Error(ctx, "failed to record swap failure", zap.String("reason", reason), zap.Error(err))
		return OutcomeSkipped
	}

	p.attempts.Forget(order.ID)
	p.metrics.RecordSwap(OutcomeFailed.String(), elapsed)
	zapLogger.Warn(ctx, "order failed", zap.String("reason", reason))

	return OutcomeFailed
}

func (p *Pipeline) Attempts(id uuid.UUID) int {
	return p.attempts.Count(id)
}
