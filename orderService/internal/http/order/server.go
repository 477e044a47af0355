package order

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/nastyazhadan/spot-order-trigger/orderService/internal/domain/models"
	svcOrder "github.com/nastyazhadan/spot-order-trigger/orderService/internal/services/order"
	logInterceptor "github.com/nastyazhadan/spot-order-trigger/shared/interceptors/logger"
	"github.com/nastyazhadan/spot-order-trigger/shared/interceptors/recovery"
	"github.com/nastyazhadan/spot-order-trigger/shared/interceptors/xrequestid"
)

type Order interface {
	CreateOrder(ctx context.Context, request svcOrder.CreateOrderRequest) (models.Order, error)
	CancelOrder(ctx context.Context, id uuid.UUID) (models.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (models.Order, error)
	ListOrders(ctx context.Context, owner string) ([]models.Order, error)
	GetPrices(ctx context.Context, tokens []string) (models.PriceSnapshot, error)
}

const apiPrefix = "/api/v1"

// HealthChecker returns nil while the service is able to do its work.
type HealthChecker func(ctx context.Context) error

type Options struct {
	AllowedOrigins []string
	Gatherer       prometheus.Gatherer
	Health         HealthChecker
}

type serverAPI struct {
	svc    Order
	health HealthChecker
}

func Register(router *mux.Router, svc Order, health HealthChecker) {
	server := &serverAPI{
		svc:    svc,
		health: health,
	}

	// Routes hang off the root router: a mux subrouter answers a known path
	// with the wrong method by 404 instead of 405.
	router.HandleFunc(apiPrefix+"/orders", server.createOrder).Methods(http.MethodPost)
	router.HandleFunc(apiPrefix+"/orders", server.listOrders).Methods(http.MethodGet)
	router.HandleFunc(apiPrefix+"/orders/{id}", server.getOrder).Methods(http.MethodGet)
	router.HandleFunc(apiPrefix+"/orders/{id}/cancel", server.cancelOrder).Methods(http.MethodPost)
	router.HandleFunc(apiPrefix+"/prices", server.getPrices).Methods(http.MethodGet)

	router.HandleFunc("/health", server.checkHealth).Methods(http.MethodGet)
}

// NewHandler builds the full HTTP surface: API routes, health and metrics,
// wrapped in request id, access log, panic recovery and CORS middleware.
func NewHandler(svc Order, options Options) http.Handler {
	router := mux.NewRouter()
	Register(router, svc, options.Health)

	if options.Gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(options.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	router.Use(xrequestid.HTTP, logInterceptor.HTTP, recovery.HTTP)

	origins := options.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", xrequestid.HeaderKey},
		ExposedHeaders: []string{xrequestid.HeaderKey},
	}).Handler(router)
}
