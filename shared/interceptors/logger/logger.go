package logger

import (
	"context"
	"net/http"
	"path"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	zapLogger "github.com/nastyazhadan/spot-order-trigger/shared/interceptors/logger/zap"
)

func UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		request any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		method := path.Base(info.FullMethod)
		startTime := time.Now()

		response, err := handler(ctx, request)

		duration := time.Since(startTime)
		if err != nil {
			responseStatus, _ := status.FromError(err)
			zapLogger.Warn(ctx, "gRPC call failed",
				zap.String("method", method),
				zap.String("code", responseStatus.Code().String()),
				zap.Duration("took", duration),
				zap.Error(err),
			)
		} else {
			zapLogger.Debug(ctx, "gRPC call finished",
				zap.String("method", method),
				zap.Duration("took", duration),
			)
		}

		return response, err
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// HTTP writes one access log line per request. Server errors log at Warn,
// everything else at Info.
func HTTP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		startTime := time.Now()

		next.ServeHTTP(recorder, r)

		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", recorder.status),
			zap.Duration("took", time.Since(startTime)),
		}

		if recorder.status >= http.StatusInternalServerError {
			zapLogger.Warn(r.Context(), "HTTP request failed", fields...)
			return
		}
		zapLogger.Info(r.Context(), "HTTP request", fields...)
	})
}
