//go:build integration

package suite

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	pgContainer "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/nastyazhadan/spot-order-trigger/orderService/internal/domain/models"
	httpOrder "github.com/nastyazhadan/spot-order-trigger/orderService/internal/http/order"
	"github.com/nastyazhadan/spot-order-trigger/orderService/internal/infrastructure/postgres"
	"github.com/nastyazhadan/spot-order-trigger/orderService/internal/infrastructure/swap"
	"github.com/nastyazhadan/spot-order-trigger/orderService/internal/metrics"
	"github.com/nastyazhadan/spot-order-trigger/orderService/internal/services/execution"
	"github.com/nastyazhadan/spot-order-trigger/orderService/internal/services/monitor"
	svcOrder "github.com/nastyazhadan/spot-order-trigger/orderService/internal/services/order"
	"github.com/nastyazhadan/spot-order-trigger/orderService/internal/storage/memory"
	"github.com/nastyazhadan/spot-order-trigger/orderService/migrations"
	migrate "github.com/nastyazhadan/spot-order-trigger/shared/infra/db/migrator"
)

const (
	dbUser     = "test_user"
	dbPassword = "test_password"
	dbName     = "order_test_db"

	LongTimeout    = 2 * time.Minute
	StartupTimeout = 30 * time.Second
	DrainTimeout   = 5 * time.Second
)

// StaticOracle serves whatever prices the test sets.
type StaticOracle struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
	err    error
}

func (o *StaticOracle) GetPrices(_ context.Context, tokens []string) (models.PriceSnapshot, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.err != nil {
		return nil, o.err
	}

	snapshot := make(models.PriceSnapshot, len(tokens))
	for _, token := range tokens {
		if price, found := o.prices[token]; found {
			snapshot[token] = models.PriceQuote{PriceUSD: price, ObservedAt: time.Now().UTC(), Source: "static"}
		}
	}

	return snapshot, nil
}

type Suite struct {
	Test     *testing.T
	Server   *httptest.Server
	Pool     *pgxpool.Pool
	Journal  *postgres.OrderJournal
	Store    *memory.OrderStore
	Loop     *monitor.Loop
	Executor *swap.PaperExecutor
	Oracle   *StaticOracle
}

func New(test *testing.T) (context.Context, *Suite) {
	test.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), LongTimeout)
	test.Cleanup(cancel)

	container, err := pgContainer.Run(ctx,
		"postgres:17.0-alpine3.20",
		pgContainer.WithDatabase(dbName),
		pgContainer.WithUsername(dbUser),
		pgContainer.WithPassword(dbPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(StartupTimeout),
		),
	)
	if err != nil {
		test.Fatalf("failed to start postgres container: %v", err)
	}
	test.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			test.Logf("failed to terminate postgres container: %v", err)
		}
	})

	connection, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		test.Fatalf("failed to get connection string: %v", err)
	}

	pool, err := pgxpool.New(ctx, connection)
	if err != nil {
		test.Fatalf("failed to create pgxpool: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		test.Fatalf("failed to ping postgres: %v", err)
	}
	test.Cleanup(pool.Close)

	sqlDB := stdlib.OpenDBFromPool(pool)
	test.Cleanup(func() {
		_ = sqlDB.Close()
	})

	if err := migrate.NewMigrator(sqlDB, migrations.Migrations).Up(ctx); err != nil {
		test.Fatalf("failed to run migrations: %v", err)
	}

	m := metrics.New(prometheus.NewRegistry())
	journal := postgres.NewOrderJournal(pool, m)
	store := memory.NewOrderStore(memory.WithObserver(m), memory.WithObserver(journal))
	oracle := &StaticOracle{prices: map[string]decimal.Decimal{}}
	executor := swap.NewPaperExecutor(0)

	pipeline := execution.NewPipeline(store, executor, m, execution.Config{
		SwapTimeout: 5 * time.Second,
		MaxAttempts: 3,
	})
	loop := monitor.NewLoop(store, oracle, pipeline, m, monitor.Config{
		TickInterval:       time.Second,
		MaxConcurrentSwaps: 4,
	})
	service := svcOrder.NewService(store, nil, oracle, decimal.RequireFromString("0.5"))

	server := httptest.NewServer(httpOrder.NewHandler(service, httpOrder.Options{}))
	test.Cleanup(server.Close)

	return ctx, &Suite{
		Test:     test,
		Server:   server,
		Pool:     pool,
		Journal:  journal,
		Store:    store,
		Loop:     loop,
		Executor: executor,
		Oracle:   oracle,
	}
}

func (s *Suite) SetPrice(token, price string) {
	s.Oracle.mu.Lock()
	defer s.Oracle.mu.Unlock()

	s.Oracle.prices[token] = decimal.RequireFromString(price)
	s.Oracle.err = nil
}

func (s *Suite) SetOracleError(err error) {
	s.Oracle.mu.Lock()
	defer s.Oracle.mu.Unlock()

	s.Oracle.err = err
}

// TickAndDrain runs one monitor tick and waits for the pipelines it started.
func (s *Suite) TickAndDrain(ctx context.Context) monitor.TickReport {
	s.Test.Helper()

	report := s.Loop.Tick(ctx)
	if !s.Loop.Drain(DrainTimeout) {
		s.Test.Fatalf("pipelines did not finish within %s", DrainTimeout)
	}

	return report
}

func (s *Suite) Post(path string, body any) *http.Response {
	s.Test.Helper()

	payload, err := json.Marshal(body)
	if err != nil {
		s.Test.Fatalf("failed to encode body: %v", err)
	}

	response, err := http.Post(s.Server.URL+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		s.Test.Fatalf("POST %s: %v", path, err)
	}
	s.Test.Cleanup(func() {
		_ = response.Body.Close()
	})

	return response
}

func (s *Suite) Get(path string) *http.Response {
	s.Test.Helper()

	response, err := http.Get(s.Server.URL + path)
	if err != nil {
		s.Test.Fatalf("GET %s: %v", path, err)
	}
	s.Test.Cleanup(func() {
		_ = response.Body.Close()
	})

	return response
}

func (s *Suite) Decode(response *http.Response, target any) {
	s.Test.Helper()

	if err := json.NewDecoder(response.Body).Decode(target); err != nil {
		s.Test.Fatalf("failed to decode response: %v", err)
	}
}

func (s *Suite) JournalOrder(ctx context.Context, id string) models.Order {
	s.Test.Helper()

	orderID, err := uuid.Parse(id)
	if err != nil {
		s.Test.Fatalf("invalid order id %q: %v", id, err)
	}

	order, err := s.Journal.Get(ctx, orderID)
	if err != nil {
		s.Test.Fatalf("failed to read journal: %v", err)
	}

	return order
}

func (s *Suite) CountOrders(ctx context.Context) int {
	s.Test.Helper()

	var count int
	if err := s.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM orders").Scan(&count); err != nil {
		s.Test.Fatalf("failed to count orders: %v", err)
	}

	return count
}

func ValidCreateRequest(owner string) map[string]any {
	return map[string]any{
		"owner":        owner,
		"kind":         "sell",
		"source_token": "USDC",
		"target_token": "SOL",
		"amount":       "2.5",
		"price_target": "150",
	}
}
