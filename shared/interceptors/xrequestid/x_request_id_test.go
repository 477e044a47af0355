package xrequestid

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	zapLogger "github.com/nastyazhadan/spot-order-trigger/shared/interceptors/logger/zap"
)

func TestHTTPKeepsIncomingID(t *testing.T) {
	var seen string
	handler := HTTP(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = zapLogger.RequestIDFromContext(r.Context())
	}))

	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.Header.Set(HeaderKey, "abc-123")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", recorder.Header().Get(HeaderKey))
}

func TestHTTPGeneratesID(t *testing.T) {
	var seen string
	handler := HTTP(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = zapLogger.RequestIDFromContext(r.Context())
	}))

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotEmpty(t, seen)
	assert.Equal(t, seen, recorder.Header().Get(HeaderKey))
}

func TestServerReadsMetadata(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(metadataKey, "grpc-id"))

	var seen string
	_, err := Server(ctx, nil, &grpc.UnaryServerInfo{}, func(ctx context.Context, _ any) (any, error) {
		seen = zapLogger.RequestIDFromContext(ctx)
		return nil, nil
	})

	require.NoError(t, err)
	assert.Equal(t, "grpc-id", seen)
}
