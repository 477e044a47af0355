package xrequestid

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	zapLogger "github.com/nastyazhadan/spot-order-trigger/shared/interceptors/logger/zap"
)

const (
	metadataKey = "x-request-id"
	HeaderKey   = "X-Request-Id"
)

// HTTP takes the request id from the incoming header or generates one,
// echoes it back and stores it in the request context.
func HTTP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(HeaderKey)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		w.Header().Set(HeaderKey, requestID)
		ctx := zapLogger.ContextWithRequestID(r.Context(), requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func Server(
	ctx context.Context,
	request any,
	_ *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (any, error) {
	requestID := ""

	if meta, found := metadata.FromIncomingContext(ctx); found {
		if values := meta.Get(metadataKey); len(values) > 0 {
			requestID = values[0]
		}
	}

	if requestID == "" {
		requestID = uuid.New().String()
	}

	return handler(zapLogger.ContextWithRequestID(ctx, requestID), request)
}
