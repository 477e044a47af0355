package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInitTracerWithoutEndpoint(t *testing.T) {
	ctx := context.Background()

	shutdown, err := InitTracer(ctx, TracerConfig{ServiceName: "order-trigger-test"})
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(ctx, "span")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	require.NoError(t, shutdown(ctx))
}
