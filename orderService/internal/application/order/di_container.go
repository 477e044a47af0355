package order

import (
	"sync"

	"github.com/IBM/sarama"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/nastyazhadan/spot-order-trigger/orderService/internal/infrastructure/kafka"
	"github.com/nastyazhadan/spot-order-trigger/orderService/internal/infrastructure/oracle"
	"github.com/nastyazhadan/spot-order-trigger/orderService/internal/infrastructure/postgres"
	repoRedis "github.com/nastyazhadan/spot-order-trigger/orderService/internal/infrastructure/redis"
	"github.com/nastyazhadan/spot-order-trigger/orderService/internal/infrastructure/swap"
	"github.com/nastyazhadan/spot-order-trigger/orderService/internal/metrics"
	"github.com/nastyazhadan/spot-order-trigger/orderService/internal/services/execution"
	"github.com/nastyazhadan/spot-order-trigger/orderService/internal/services/monitor"
	svcOrder "github.com/nastyazhadan/spot-order-trigger/orderService/internal/services/order"
	"github.com/nastyazhadan/spot-order-trigger/orderService/internal/storage/memory"
	"github.com/nastyazhadan/spot-order-trigger/shared/client/httpclient"
	"github.com/nastyazhadan/spot-order-trigger/shared/config"
)

const (
	swapModePaper   = "paper"
	swapModeGateway = "gateway"

	createRateLimitPrefix = "rate:order:create:"
	coinGeckoKeyHeader    = "x-cg-demo-api-key"
)

// DiContainer builds the object graph lazily. Optional backends (postgres,
// redis, kafka) are nil when they are not configured and the components that
// depend on them are left out.
type DiContainer struct {
	orderConfig config.OrderConfig
	metrics     *metrics.Metrics

	dbPool      *pgxpool.Pool
	redisClient *goredis.Client
	producer    sarama.SyncProducer

	orderStore     *memory.OrderStore
	orderStoreOnce sync.Once
	asyncObservers []*memory.AsyncObserver

	attemptTracker     *execution.AttemptTracker
	attemptTrackerOnce sync.Once

	orderJournal     *postgres.OrderJournal
	orderJournalOnce sync.Once

	eventPublisher     *kafka.EventPublisher
	eventPublisherOnce sync.Once

	priceOracle     *oracle.TieredOracle
	priceOracleOnce sync.Once

	swapExecutor     execution.SwapExecutor
	swapExecutorOnce sync.Once

	pipeline     *execution.Pipeline
	pipelineOnce sync.Once

	monitorLoop     *monitor.Loop
	monitorLoopOnce sync.Once

	createRateLimiter     svcOrder.RateLimiter
	createRateLimiterOnce sync.Once

	orderService     *svcOrder.Service
	orderServiceOnce sync.Once
}

func NewDIContainer(
	orderConfig config.OrderConfig,
	m *metrics.Metrics,
	dbPool *pgxpool.Pool,
	redisClient *goredis.Client,
	producer sarama.SyncProducer,
) *DiContainer {
	if m == nil {
		panic("metrics is nil")
	}

	return &DiContainer{
		orderConfig: orderConfig,
		metrics:     m,
		dbPool:      dbPool,
		redisClient: redisClient,
		producer:    producer,
	}
}

func (d *DiContainer) OrderStore() *memory.OrderStore {
	d.orderStoreOnce.Do(func() {
		options := []memory.Option{
			memory.WithObserver(d.metrics),
			memory.WithObserver(d.AttemptTracker()),
		}

		// Network sinks get their own goroutine so a slow write never delays a swap.
		if journal := d.OrderJournal(); journal != nil {
			options = append(options, memory.WithObserver(d.async("postgres", journal)))
		}
		if publisher := d.EventPublisher(); publisher != nil {
			options = append(options, memory.WithObserver(d.async("kafka", publisher)))
		}

		d.orderStore = memory.NewOrderStore(options...)
	})

	return d.orderStore
}

func (d *DiContainer) async(name string, observer memory.Observer) *memory.AsyncObserver {
	wrapped := memory.NewAsyncObserver(name, observer, d.orderConfig.ObserverBuffer, d.metrics)
	d.asyncObservers = append(d.asyncObservers, wrapped)

	return wrapped
}

// AsyncObservers are the queued sinks to drain on shutdown, after the last
// transition and before their backends close.
func (d *DiContainer) AsyncObservers() []*memory.AsyncObserver {
	d.OrderStore()

	return d.asyncObservers
}

func (d *DiContainer) AttemptTracker() *execution.AttemptTracker {
	d.attemptTrackerOnce.Do(func() {
		d.attemptTracker = execution.NewAttemptTracker()
	})

	return d.attemptTracker
}

func (d *DiContainer) OrderJournal() *postgres.OrderJournal {
	d.orderJournalOnce.Do(func() {
		if d.dbPool != nil {
			d.orderJournal = postgres.NewOrderJournal(d.dbPool, d.metrics)
		}
	})

	return d.orderJournal
}

func (d *DiContainer) EventPublisher() *kafka.EventPublisher {
	d.eventPublisherOnce.Do(func() {
		if d.producer != nil {
			d.eventPublisher = kafka.NewEventPublisher(d.producer, d.orderConfig.Kafka.Topic, d.metrics)
		}
	})

	return d.eventPublisher
}

func (d *DiContainer) PriceOracle() *oracle.TieredOracle {
	d.priceOracleOnce.Do(func() {
		prices := d.orderConfig.Prices

		jupiterClient := httpclient.New(httpclient.Config{
			Timeout:       prices.Timeout,
			RatePerSecond: prices.RatePerSecond,
		})

		coinGeckoHeaders := map[string]string{}
		if prices.CoinGeckoAPIKey != "" {
			coinGeckoHeaders[coinGeckoKeyHeader] = prices.CoinGeckoAPIKey
		}
		coinGeckoClient := httpclient.New(httpclient.Config{
			Timeout:       prices.Timeout,
			RatePerSecond: prices.RatePerSecond,
			Headers:       coinGeckoHeaders,
		})

		d.priceOracle = oracle.NewTieredOracle(
			prices.CircuitBreaker,
			prices.MaxAge,
			oracle.NewJupiterSource(jupiterClient, prices.JupiterURL),
			oracle.NewCoinGeckoSource(coinGeckoClient, prices.CoinGeckoURL),
		)
	})

	return d.priceOracle
}

func (d *DiContainer) SwapExecutor() execution.SwapExecutor {
	d.swapExecutorOnce.Do(func() {
		cfg := d.orderConfig.Swap

		switch cfg.Mode {
		case swapModeGateway:
			client := httpclient.New(httpclient.Config{
				Timeout:       d.orderConfig.Monitor.SwapTimeout,
				RatePerSecond: cfg.RatePerSecond,
			})
			d.swapExecutor = swap.NewGatewayExecutor(client, cfg.GatewayURL, cfg.CircuitBreaker)
		default:
			d.swapExecutor = swap.NewPaperExecutor(cfg.PaperLatency)
		}
	})

	return d.swapExecutor
}

func (d *DiContainer) Pipeline() *execution.Pipeline {
	d.pipelineOnce.Do(func() {
		d.pipeline = execution.NewPipeline(d.OrderStore(), d.SwapExecutor(), d.metrics, execution.Config{
			SwapTimeout: d.orderConfig.Monitor.SwapTimeout,
			MaxAttempts: d.orderConfig.Monitor.MaxAttempts,
			Attempts:    d.AttemptTracker(),
		})
	})

	return d.pipeline
}

func (d *DiContainer) MonitorLoop() *monitor.Loop {
	d.monitorLoopOnce.Do(func() {
		d.monitorLoop = monitor.NewLoop(d.OrderStore(), d.PriceOracle(), d.Pipeline(), d.metrics, monitor.Config{
			TickInterval:       d.orderConfig.Monitor.TickInterval,
			StartupDelay:       d.orderConfig.Monitor.StartupDelay,
			MaxConcurrentSwaps: d.orderConfig.Monitor.MaxConcurrentSwaps,
		})
	})

	return d.monitorLoop
}

// CreateRateLimiter is nil without redis; the service then skips the check.
func (d *DiContainer) CreateRateLimiter() svcOrder.RateLimiter {
	d.createRateLimiterOnce.Do(func() {
		if d.redisClient != nil {
			d.createRateLimiter = repoRedis.NewOrderRateLimiter(
				d.redisClient,
				d.orderConfig.Redis.CreateLimit,
				d.orderConfig.Redis.Window,
				createRateLimitPrefix,
			)
		}
	})

	return d.createRateLimiter
}

func (d *DiContainer) OrderService() *svcOrder.Service {
	d.orderServiceOnce.Do(func() {
		d.orderService = svcOrder.NewService(
			d.OrderStore(),
			d.CreateRateLimiter(),
			d.PriceOracle(),
			decimal.NewFromFloat(d.orderConfig.DefaultSlippage),
		)
	})

	return d.orderService
}
