package order

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/IBM/sarama"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/nastyazhadan/spot-order-trigger/orderService/internal/grpc/admin"
	httpOrder "github.com/nastyazhadan/spot-order-trigger/orderService/internal/http/order"
	"github.com/nastyazhadan/spot-order-trigger/orderService/internal/infrastructure/kafka"
	"github.com/nastyazhadan/spot-order-trigger/orderService/internal/metrics"
	"github.com/nastyazhadan/spot-order-trigger/orderService/migrations"
	"github.com/nastyazhadan/spot-order-trigger/shared/config"
	postgres "github.com/nastyazhadan/spot-order-trigger/shared/infra/db"
	redisClient "github.com/nastyazhadan/spot-order-trigger/shared/infra/redis"
	"github.com/nastyazhadan/spot-order-trigger/shared/infra/telemetry"
	zapLogger "github.com/nastyazhadan/spot-order-trigger/shared/interceptors/logger/zap"
)

const (
	readHeaderTimeout = 5 * time.Second
	stopTimeoutSlack  = 10 * time.Second
)

func Run(ctx context.Context, cfg config.OrderConfig) {
	app := fx.New(
		fx.StopTimeout(cfg.Monitor.ShutdownGrace+stopTimeoutSlack),
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zapLogger.Logger()}
		}),
		fx.Provide(
			func() context.Context {
				return ctx
			},
			func() config.OrderConfig {
				return cfg
			}),
		fx.Provide(
			provideRegistry,
			provideMetrics,
			provideDBPool,
			provideRedisClient,
			provideSyncProducer,
			provideContainer,
			provideHTTPServer,
			provideAdminServer,
		),
		fx.Invoke(
			registerLogger,
			registerTracer,
			reportUnreconciled,
			drainObservers,
			startMonitor,
			startAdminServer,
			startHTTPServer,
		),
	)

	app.Run()
}

func registerLogger(lifeCycle fx.Lifecycle, cfg config.OrderConfig) error {
	if err := zapLogger.Init(cfg.LogLevel, cfg.LogFormat == "json"); err != nil {
		return err
	}

	lifeCycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			_ = zapLogger.Sync()

			return nil
		},
	})

	return nil
}

func registerTracer(ctx context.Context, lifeCycle fx.Lifecycle, cfg config.OrderConfig) error {
	shutdown, err := telemetry.InitTracer(ctx, telemetry.TracerConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
	})
	if err != nil {
		return fmt.Errorf("telemetry.InitTracer: %w", err)
	}

	lifeCycle.Append(fx.Hook{
		OnStop: shutdown,
	})

	return nil
}

func provideRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return registry
}

func provideMetrics(registry *prometheus.Registry) *metrics.Metrics {
	return metrics.New(registry)
}

// provideDBPool returns nil when no postgres uri is configured; the order
// journal is disabled then.
func provideDBPool(ctx context.Context, lifeCycle fx.Lifecycle, cfg config.OrderConfig) (*pgxpool.Pool, error) {
	if !cfg.Postgres.Enabled() {
		return nil, nil
	}

	pool, err := postgres.SetupDB(ctx, cfg.Postgres.URI, migrations.Migrations)
	if err != nil {
		return nil, fmt.Errorf("postgres.SetupDB: %w", err)
	}

	lifeCycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			pool.Close()
			return nil
		},
	})

	return pool, nil
}

func provideRedisClient(ctx context.Context, lifeCycle fx.Lifecycle, cfg config.OrderConfig) (*goredis.Client, error) {
	if !cfg.Redis.Enabled() {
		return nil, nil
	}

	client, err := redisClient.NewClient(ctx, cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("redisClient.NewClient: %w", err)
	}

	lifeCycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})

	return client, nil
}

func provideSyncProducer(lifeCycle fx.Lifecycle, cfg config.OrderConfig) (sarama.SyncProducer, error) {
	if !cfg.Kafka.Enabled() {
		return nil, nil
	}

	producer, err := kafka.NewSyncProducer(cfg.Kafka)
	if err != nil {
		return nil, fmt.Errorf("kafka.NewSyncProducer: %w", err)
	}

	lifeCycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return producer.Close()
		},
	})

	return producer, nil
}

func provideContainer(
	cfg config.OrderConfig,
	m *metrics.Metrics,
	pool *pgxpool.Pool,
	redis *goredis.Client,
	producer sarama.SyncProducer,
) *DiContainer {
	return NewDIContainer(cfg, m, pool, redis, producer)
}

func provideHTTPServer(cfg config.OrderConfig, container *DiContainer, registry *prometheus.Registry) *http.Server {
	loop := container.MonitorLoop()

	handler := httpOrder.NewHandler(container.OrderService(), httpOrder.Options{
		AllowedOrigins: cfg.CORSOrigins,
		Gatherer:       registry,
		Health:         loop.Check,
	})

	return &http.Server{
		Addr:              cfg.Address,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

func provideAdminServer(container *DiContainer) *grpc.Server {
	return admin.NewServer(container.MonitorLoop().Check)
}

// reportUnreconciled logs orders a previous run left mid-swap. Nothing is
// resumed from the journal.
func reportUnreconciled(ctx context.Context, cfg config.OrderConfig, container *DiContainer) {
	journal := container.OrderJournal()
	if journal == nil {
		return
	}

	checkCtx, cancel := context.WithTimeout(ctx, cfg.CheckTimeout)
	defer cancel()

	if err := journal.ReportUnreconciled(checkCtx); err != nil {
		zapLogger.Warn(ctx, "order journal reconciliation check failed", zap.Error(err))
	}
}

// drainObservers is registered before the monitor so that on stop it runs
// after the last pipeline finished and before postgres and kafka close.
func drainObservers(lifeCycle fx.Lifecycle, container *DiContainer) {
	observers := container.AsyncObservers()

	lifeCycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			var errs []error
			for _, observer := range observers {
				if err := observer.Close(ctx); err != nil {
					errs = append(errs, err)
				}
			}

			return errors.Join(errs...)
		},
	})
}

func startMonitor(lifeCycle fx.Lifecycle, cfg config.OrderConfig, container *DiContainer) {
	loop := container.MonitorLoop()

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lifeCycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				defer close(done)
				loop.Run(runCtx)
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			<-done

			if !loop.Drain(cfg.Monitor.ShutdownGrace) {
				zapLogger.Warn(ctx, "pipelines still executing at shutdown, their orders stay executing")
			}

			return nil
		},
	})
}

func startAdminServer(lifeCycle fx.Lifecycle, cfg config.OrderConfig, server *grpc.Server) {
	lifeCycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			listener, err := net.Listen("tcp", cfg.AdminAddress)
			if err != nil {
				return fmt.Errorf("net.Listen: %w", err)
			}

			zapLogger.Info(ctx, fmt.Sprintf("Starting admin gRPC server on %s", listener.Addr()))
			go func() {
				if err := server.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
					zapLogger.Error(context.Background(), "admin gRPC server error", zap.Error(err))
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			stopped := make(chan struct{})
			go func() {
				server.GracefulStop()
				close(stopped)
			}()

			select {
			case <-stopped:
			case <-ctx.Done():
				server.Stop()
			}

			return nil
		},
	})
}

func startHTTPServer(lifeCycle fx.Lifecycle, server *http.Server) {
	lifeCycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			listener, err := net.Listen("tcp", server.Addr)
			if err != nil {
				return fmt.Errorf("net.Listen: %w", err)
			}

			zapLogger.Info(ctx, fmt.Sprintf("Starting HTTP order server on %s", listener.Addr()))
			go func() {
				if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
					zapLogger.Error(context.Background(), "HTTP order server error", zap.Error(err))
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			return server.Shutdown(ctx)
		},
	})
}
