package recovery

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	zapLogger "github.com/nastyazhadan/spot-order-trigger/shared/interceptors/logger/zap"
)

// GRPCHandler plugs into the go-grpc-middleware recovery interceptor.
func GRPCHandler(ctx context.Context, p any) error {
	zapLogger.Error(ctx, "panic recovered in gRPC handler",
		zap.String("panic", fmt.Sprintf("%v", p)),
		zap.ByteString("stack", debug.Stack()),
	)

	return status.Errorf(codes.Internal, "internal error")
}

func HTTP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				if p == http.ErrAbortHandler {
					panic(p)
				}

				zapLogger.Error(r.Context(), "panic recovered in HTTP handler",
					zap.String("panic", fmt.Sprintf("%v", p)),
					zap.String("path", r.URL.Path),
					zap.ByteString("stack", debug.Stack()),
				)

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":"internal error"}`))
			}
		}()

		next.ServeHTTP(w, r)
	})
}
