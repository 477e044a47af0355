package swap

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nastyazhadan/spot-order-trigger/orderService/internal/domain/models"
	zapLogger "github.com/nastyazhadan/spot-order-trigger/shared/interceptors/logger/zap"
)

type Fill struct {
	Reference string
	Request   models.SwapRequest
	At        time.Time
}

// PaperExecutor simulates swaps without touching a chain.
type PaperExecutor struct {
	latency time.Duration

	mu       sync.Mutex
	fills    []Fill
	failures []error
}

func NewPaperExecutor(latency time.Duration) *PaperExecutor {
	return &PaperExecutor{latency: latency}
}

// FailNext makes the next len(errs) swaps fail with the given errors in order.
func (p *PaperExecutor) FailNext(errs ...error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.failures = append(p.failures, errs...)
}

func (p *PaperExecutor) Swap(ctx context.Context, request models.SwapRequest) (models.SwapResult, error) {
	const op = "PaperExecutor.Swap"

	if p.latency > 0 {
		select {
		case <-ctx.Done():
			return models.SwapResult{}, fmt.Errorf("%s: %w", op, ctx.Err())
		case <-time.After(p.latency):
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.failures) > 0 {
		err := p.failures[0]
		p.failures = p.failures[1:]
		return models.SwapResult{}, fmt.Errorf("%s: %w", op, err)
	}

	reference := "paper-" + uuid.NewString()
	p.fills = append(p.fills, Fill{Reference: reference, Request: request, At: time.Now().UTC()})

	zapLogger.Info(ctx, "paper swap filled",
		zap.String("swap_reference", reference),
		zap.String("pair", request.SourceToken+"/"+request.TargetToken),
		zap.String("amount", request.Amount.String()),
	)

	return models.SwapResult{Reference: reference}, nil
}

func (p *PaperExecutor) Fills() []Fill {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]Fill(nil), p.fills...)
}
