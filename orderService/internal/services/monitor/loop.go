package monitor

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/nastyazhadan/spot-order-trigger/orderService/internal/domain/models"
	"github.com/nastyazhadan/spot-order-trigger/orderService/internal/metrics"
	"github.com/nastyazhadan/spot-order-trigger/orderService/internal/services/execution"
	"github.com/nastyazhadan/spot-order-trigger/orderService/internal/services/trigger"
	zapLogger "github.com/nastyazhadan/spot-order-trigger/shared/interceptors/logger/zap"
)

type OrderLister interface {
	List(ctx context.Context, filter models.Filter) ([]models.Order, error)
}

type PriceOracle interface {
	GetPrices(ctx context.Context, tokens []string) (models.PriceSnapshot, error)
}

type Executor interface {
	Run(ctx context.Context, order models.Order, decision models.Decision) execution.Outcome
}

type Config struct {
	TickInterval       time.Duration
	StartupDelay       time.Duration
	MaxConcurrentSwaps int64
}

type TickReport struct {
	Active     int
	Tokens     int
	Resolved   int
	Triggered  int
	Expired    int
	Dispatched int
	OracleErr  error
}

type Loop struct {
	orders   OrderLister
	oracle   PriceOracle
	executor Executor
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	config   Config
	now      func() time.Time

	slots    *semaphore.Weighted
	inFlight sync.WaitGroup
	lastTick atomic.Int64
	started  atomic.Int64
}

// stallFactor is how many tick intervals may pass without a completed tick
// before the loop reports itself unhealthy.
const stallFactor = 3

var errNotStarted = errors.New("monitor: loop not started")

func NewLoop(orders OrderLister, oracle PriceOracle, executor Executor, m *metrics.Metrics, config Config) *Loop {
	if config.MaxConcurrentSwaps <= 0 {
		config.MaxConcurrentSwaps = 1
	}

	return &Loop{
		orders:   orders,
		oracle:   oracle,
		executor: executor,
		metrics:  m,
		tracer:   otel.Tracer("orderService/monitor"),
		config:   config,
		now:      time.Now,
		slots:    semaphore.NewWeighted(config.MaxConcurrentSwaps),
	}
}

// Run ticks until ctx is cancelled. It does not wait for dispatched
// pipelines; call Drain for that.
func (l *Loop) Run(ctx context.Context) {
	l.started.Store(l.now().UnixNano())

	zapLogger.Info(ctx, "monitor loop started",
		zap.Duration("tick_interval", l.config.TickInterval),
		zap.Int64("max_concurrent_swaps", l.config.MaxConcurrentSwaps),
	)

	if l.config.StartupDelay > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(l.config.StartupDelay):
		}
	}

	ticker := time.NewTicker(l.config.TickInterval)
	defer ticker.Stop()

	for {
		l.Tick(ctx)

		select {
		case <-ctx.Done():
			zapLogger.Info(ctx, "monitor loop stopped")
			return
		case <-ticker.C:
		}
	}
}

// Tick runs one evaluation cycle. Dispatched pipelines keep running after it
// returns.
func (l *Loop) Tick(ctx context.Context) TickReport {
	started := time.Now()
	ctx, span := l.tracer.Start(ctx, "Loop.Tick")
	defer span.End()

	var report TickReport
	defer func() {
		l.lastTick.Store(l.now().UnixNano())
		l.metrics.RecordTick(time.Since(started))
		span.SetAttributes(
			attribute.Int("orders.active", report.Active),
			attribute.Int("orders.dispatched", report.Dispatched),
		)
	}()

	active, err := l.orders.List(ctx, models.Filter{Status: models.StatusActive})
	if err != nil {
		zapLogger.Error(ctx, "failed to list active orders", zap.Error(err))
		return report
	}

	report.Active = len(active)
	if len(active) == 0 {
		return report
	}

	tokens := referencedTokens(active)
	report.Tokens = len(tokens)

	snapshot, err := l.oracle.GetPrices(ctx, tokens)
	if err != nil {
		report.OracleErr = err
		l.metrics.RecordOracleFailure()
		span.RecordError(err)
		zapLogger.Warn(ctx, "price oracle failed, unresolved orders skipped this tick",
			zap.Int("tokens", len(tokens)),
			zap.Error(err),
		)
	}

	now := l.now()
	for _, order := range active {
		decision, resolved := trigger.EvaluateSnapshot(order, snapshot, now)
		if !resolved {
			continue
		}
		report.Resolved++
		l.metrics.RecordDecision(decision)

		switch decision {
		case models.DecisionTriggered:
			report.Triggered++
		case models.DecisionExpired:
			report.Expired++
		default:
			zapLogger.Debug(zapLogger.ContextWithOrderID(ctx, order.ID.String()), "order waiting",
				zap.String("kind", order.Kind.String()),
				zap.String("price_target", order.PriceTarget.String()),
			)
			continue
		}

		if !l.dispatch(ctx, order, decision) {
			break
		}
		report.Dispatched++
	}

	if report.Dispatched > 0 {
		zapLogger.Info(ctx, "tick dispatched orders",
			zap.Int("active", report.Active),
			zap.Int("triggered", report.Triggered),
			zap.Int("expired", report.Expired),
		)
	}

	return report
}

// dispatch blocks until a slot is free. It returns false if ctx ends first.
func (l *Loop) dispatch(ctx context.Context, order models.Order, decision models.Decision) bool {
	if err := l.slots.Acquire(ctx, 1); err != nil {
		return false
	}

	l.inFlight.Add(1)
	go func() {
		defer l.inFlight.Done()
		defer l.slots.Release(1)

		l.executor.Run(ctx, order, decision)
	}()

	return true
}

// Drain waits for in-flight pipelines up to grace. It reports whether all of
// them finished; orders left behind stay Executing.
func (l *Loop) Drain(grace time.Duration) bool {
	done := make(chan struct{})
	go func() {
		l.inFlight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(grace):
		zapLogger.Warn(context.Background(), "shutdown grace elapsed with pipelines in flight",
			zap.Duration("grace", grace),
		)
		return false
	}
}

// LastTick is the completion time of the latest tick, zero before the first.
func (l *Loop) LastTick() time.Time {
	nanos := l.lastTick.Load()
	if nanos == 0 {
		return time.Time{}
	}
	return time.Unix(0, nanos)
}

func (l *Loop) Interval() time.Duration {
	return l.config.TickInterval
}

// Check fails when no tick completed within stallFactor intervals. Before
// the first tick the startup delay is added to that allowance.
func (l *Loop) Check(_ context.Context) error {
	startedNanos := l.started.Load()
	if startedNanos == 0 {
		return errNotStarted
	}

	now := l.now()
	allowance := stallFactor * l.config.TickInterval

	last := l.LastTick()
	if last.IsZero() {
		if waited := now.Sub(time.Unix(0, startedNanos)); waited > l.config.StartupDelay+allowance {
			return fmt.Errorf("monitor: no tick completed %s after start", waited.Truncate(time.Second))
		}
		return nil
	}

	if since := now.Sub(last); since > allowance {
		return fmt.Errorf("monitor: last tick completed %s ago", since.Truncate(time.Second))
	}

	return nil
}

func referencedTokens(orders []models.Order) []string {
	seen := make(map[string]struct{}, len(orders))
	tokens := make([]string, 0, len(orders))

	for _, order := range orders {
		token := order.ReferenceToken()
		if _, found := seen[token]; found {
			continue
		}
		seen[token] = struct{}{}
		tokens = append(tokens, token)
	}

	slices.Sort(tokens)
	return tokens
}
