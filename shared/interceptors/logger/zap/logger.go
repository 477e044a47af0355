package zap

import (
	"context"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type contextKey string

const (
	RequestIDKey contextKey = "x-request-id"
	OrderIDKey   contextKey = "order_id"
	OwnerKey     contextKey = "owner"
)

var (
	globalLogger *logger
	initOnce     sync.Once
	dynamicLevel zap.AtomicLevel
)

type logger struct {
	zapLogger *zap.Logger
}

func Init(levelStr string, asJSON bool) error {
	initOnce.Do(func() {
		dynamicLevel = zap.NewAtomicLevelAt(parseLevel(levelStr))

		encoderCfg := buildEncoderConfig()

		var encoder zapcore.Encoder
		if asJSON {
			encoder = zapcore.NewJSONEncoder(encoderCfg)
		} else {
			encoder = zapcore.NewConsoleEncoder(encoderCfg)
		}

		core := zapcore.NewCore(
			encoder,
			zapcore.AddSync(os.Stdout),
			dynamicLevel,
		)

		globalLogger = &logger{zapLogger: zap.New(core, zap.AddCaller(), zap.AddCallerSkip(2))}
	})

	return nil
}

func buildEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}
}

func SetLevel(levelStr string) {
	if dynamicLevel == (zap.AtomicLevel{}) {
		return
	}
	dynamicLevel.SetLevel(parseLevel(levelStr))
}

func SetNopLogger() {
	globalLogger = &logger{zapLogger: zap.NewNop()}
}

// Logger returns the underlying zap logger without the caller skip used by
// the package helpers. Never nil.
func Logger() *zap.Logger {
	if globalLogger == nil {
		return zap.NewNop()
	}
	return globalLogger.zapLogger.WithOptions(zap.AddCallerSkip(-2))
}

func Sync() error {
	if globalLogger != nil {
		return globalLogger.zapLogger.Sync()
	}
	return nil
}

func With(fields ...zap.Field) *logger {
	if globalLogger == nil {
		return &logger{zapLogger: zap.NewNop()}
	}
	return &logger{zapLogger: globalLogger.zapLogger.With(fields...)}
}

func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if value, found := ctx.Value(RequestIDKey).(string); found {
		return value
	}
	return ""
}

func ContextWithOrderID(ctx context.Context, orderID string) context.Context {
	return context.WithValue(ctx, OrderIDKey, orderID)
}

func ContextWithOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, OwnerKey, owner)
}

func Debug(ctx context.Context, message string, fields ...zap.Field) {
	if globalLogger != nil {
		globalLogger.Debug(ctx, message, fields...)
	}
}

func Info(ctx context.Context, message string, fields ...zap.Field) {
	if globalLogger != nil {
		globalLogger.Info(ctx, message, fields...)
	}
}

func Warn(ctx context.Context, message string, fields ...zap.Field) {
	if globalLogger != nil {
		globalLogger.Warn(ctx, message, fields...)
	}
}

func Error(ctx context.Context, message string, fields ...zap.Field) {
	if globalLogger != nil {
		globalLogger.Error(ctx, message, fields...)
	}
}

func Fatal(ctx context.Context, message string, fields ...zap.Field) {
	if globalLogger != nil {
		globalLogger.Fatal(ctx, message, fields...)
	}
}

func (l *logger) Debug(ctx context.Context, message string, fields ...zap.Field) {
	l.zapLogger.Debug(message, append(fieldsFromContext(ctx), fields...)...)
}

func (l *logger) Info(ctx context.Context, message string, fields ...zap.Field) {
	l.zapLogger.Info(message, append(fieldsFromContext(ctx), fields...)...)
}

func (l *logger) Warn(ctx context.Context, message string, fields ...zap.Field) {
	l.zapLogger.Warn(message, append(fieldsFromContext(ctx), fields...)...)
}

func (l *logger) Error(ctx context.Context, message string, fields ...zap.Field) {
	l.zapLogger.Error(message, append(fieldsFromContext(ctx), fields...)...)
}

func (l *logger) Fatal(ctx context.Context, message string, fields ...zap.Field) {
	l.zapLogger.Fatal(message, append(fieldsFromContext(ctx), fields...)...)
}

func fieldsFromContext(ctx context.Context) []zap.Field {
	var fields []zap.Field

	for _, key := range []contextKey{RequestIDKey, OrderIDKey, OwnerKey} {
		if value, found := ctx.Value(key).(string); found && value != "" {
			fields = append(fields, zap.String(string(key), value))
		}
	}

	return fields
}

func parseLevel(levelString string) zapcore.Level {
	switch strings.ToLower(levelString) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
