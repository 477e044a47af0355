package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/nastyazhadan/spot-order-trigger/orderService/internal/domain/models"
	"github.com/nastyazhadan/spot-order-trigger/orderService/internal/infrastructure/postgres/dto"
	repositoryErrors "github.com/nastyazhadan/spot-order-trigger/shared/errors/repository"
	zapLogger "github.com/nastyazhadan/spot-order-trigger/shared/interceptors/logger/zap"
)

const (
	sinkName     = "postgres"
	writeTimeout = 2 * time.Second

	orderColumns = `id, owner, kind, source_token, target_token,
		amount::text AS amount, price_target::text AS price_target, slippage::text AS slippage,
		expiry, status, version, failure_reason, swap_reference, created_at, updated_at, resolved_at`
)

type FailureRecorder interface {
	RecordSinkFailure(sink string)
}

// OrderJournal mirrors committed order changes into postgres. The in-memory
// store stays authoritative: journal writes are best effort and never block
// a transition from being applied.
type OrderJournal struct {
	pool     *pgxpool.Pool
	failures FailureRecorder
}

func NewOrderJournal(pool *pgxpool.Pool, failures FailureRecorder) *OrderJournal {
	return &OrderJournal{
		pool:     pool,
		failures: failures,
	}
}

func (j *OrderJournal) OrderInserted(ctx context.Context, order models.Order) {
	j.record(ctx, order)
}

func (j *OrderJournal) OrderTransitioned(ctx context.Context, order models.Order, _ models.Status) {
	j.record(ctx, order)
}

func (j *OrderJournal) record(ctx context.Context, order models.Order) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	if err := j.Upsert(writeCtx, order); err != nil {
		if j.failures != nil {
			j.failures.RecordSinkFailure(sinkName)
		}
		zapLogger.Warn(ctx, "order journal write failed",
			zap.String("order_id", order.ID.String()),
			zap.Uint64("version", order.Version),
			zap.Error(err),
		)
	}
}

// Upsert writes the order unless the journal already holds the same or a
// newer version of it, so late notifications cannot roll a row back.
func (j *OrderJournal) Upsert(ctx context.Context, order models.Order) error {
	const op = "infrastructure.OrderJournal.Upsert"

	orderDTO := dto.FromDomain(order)

	_, err := j.pool.Exec(ctx,
		`INSERT INTO orders (id, owner, kind, source_token, target_token, amount, price_target, slippage,
		                     expiry, status, version, failure_reason, swap_reference, created_at, updated_at, resolved_at)
		 VALUES ($1, $2, $3, $4, $5, $6::text::numeric, $7::text::numeric, $8::text::numeric,
		         $9, $10, $11, $12, $13, $14, $15, $16)
		 ON CONFLICT (id) DO UPDATE SET
		     status         = EXCLUDED.status,
		     version        = EXCLUDED.version,
		     failure_reason = EXCLUDED.failure_reason,
		     swap_reference = EXCLUDED.swap_reference,
		     updated_at     = EXCLUDED.updated_at,
		     resolved_at    = EXCLUDED.resolved_at
		 WHERE orders.version < EXCLUDED.version`,
		orderDTO.ID,
		orderDTO.Owner,
		orderDTO.Kind,
		orderDTO.SourceToken,
		orderDTO.TargetToken,
		orderDTO.Amount,
		orderDTO.PriceTarget,
		orderDTO.Slippage,
		orderDTO.Expiry,
		orderDTO.Status,
		orderDTO.Version,
		orderDTO.FailureReason,
		orderDTO.SwapReference,
		orderDTO.CreatedAt,
		orderDTO.UpdatedAt,
		orderDTO.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("%s: exec: %w", op, err)
	}

	return nil
}

func (j *OrderJournal) Get(ctx context.Context, id uuid.UUID) (models.Order, error) {
	const op = "infrastructure.OrderJournal.Get"

	rows, err := j.pool.Query(ctx,
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE id = $1
		 LIMIT 1`,
		id,
	)
	if err != nil {
		return models.Order{}, fmt.Errorf("%s: query: %w", op, err)
	}

	orderDTO, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[dto.Order])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Order{}, fmt.Errorf("%s: %w", op, repositoryErrors.ErrOrderNotFound)
		}

		return models.Order{}, fmt.Errorf("%s: collect: %w", op, err)
	}

	order, err := orderDTO.ToDomain()
	if err != nil {
		return models.Order{}, fmt.Errorf("%s: decode: %w", op, err)
	}

	return order, nil
}

// ListExecuting returns orders the journal last saw mid-swap. After a restart
// nothing resumes them; they are reported for manual reconciliation.
func (j *OrderJournal) ListExecuting(ctx context.Context) ([]models.Order, error) {
	const op = "infrastructure.OrderJournal.ListExecuting"

	rows, err := j.pool.Query(ctx,
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE status = $1
		 ORDER BY created_at`,
		int16(models.StatusExecuting),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: query: %w", op, err)
	}

	orderDTOs, err := pgx.CollectRows(rows, pgx.RowToStructByName[dto.Order])
	if err != nil {
		return nil, fmt.Errorf("%s: collect: %w", op, err)
	}

	orders := make([]models.Order, 0, len(orderDTOs))
	for _, orderDTO := range orderDTOs {
		order, err := orderDTO.ToDomain()
		if err != nil {
			return nil, fmt.Errorf("%s: decode %s: %w", op, orderDTO.ID, err)
		}
		orders = append(orders, order)
	}

	return orders, nil
}

func (j *OrderJournal) Ping(ctx context.Context) error {
	if err := j.pool.Ping(ctx); err != nil {
		return fmt.Errorf("infrastructure.OrderJournal.Ping: %w", err)
	}
	return nil
}

// ReportUnreconciled logs every order the previous process left executing.
func (j *OrderJournal) ReportUnreconciled(ctx context.Context) error {
	orders, err := j.ListExecuting(ctx)
	if err != nil {
		return err
	}

	for _, order := range orders {
		zapLogger.Warn(ctx, "order left executing by previous run, reconcile manually",
			zap.String("order_id", order.ID.String()),
			zap.String("owner", order.Owner),
			zap.Time("updated_at", order.UpdatedAt),
		)
	}

	return nil
}
