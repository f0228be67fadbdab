package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/bistro-backend/api/controllers"
	inventorycontrollers "github.com/angelmondragon/bistro-backend/api/controllers/inventory"
	ordercontrollers "github.com/angelmondragon/bistro-backend/api/controllers/orders"
	"github.com/angelmondragon/bistro-backend/api/middleware"
	"github.com/angelmondragon/bistro-backend/internal/inventory"
	"github.com/angelmondragon/bistro-backend/internal/orders"
	"github.com/angelmondragon/bistro-backend/pkg/config"
	"github.com/angelmondragon/bistro-backend/pkg/db"
	"github.com/angelmondragon/bistro-backend/pkg/logger"
	"github.com/angelmondragon/bistro-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	metricsHandler http.Handler,
	stockService inventory.Service,
	stockQueries inventory.QueryService,
	orderHooks orders.StockHooks,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
		middleware.Actor(logg),
	)

	// a nil *redis.Client must not reach an interface as a typed nil
	readiness := map[string]controllers.Pinger{"database": dbP, "redis": nil}
	var idempotencyStore redis.IdempotencyStore
	if redisClient != nil {
		readiness["redis"] = redisClient
		idempotencyStore = redisClient
	}
	idempotent := middleware.Idempotency(idempotencyStore, logg, middleware.DefaultIdempotencyTTL)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/api/v1/inventory", func(r chi.Router) {
		r.With(idempotent).Post("/daily-reset", inventorycontrollers.DailyReset(stockService, logg))
		r.Get("/low-stock", inventorycontrollers.LowStock(stockQueries, logg))
		r.Get("/out-of-stock", inventorycontrollers.OutOfStock(stockQueries, logg))
		r.Route("/items/{itemId}", func(r chi.Router) {
			r.Get("/", inventorycontrollers.GetItem(stockQueries, logg))
			r.Get("/history", inventorycontrollers.History(stockQueries, logg))
			r.With(idempotent).Post("/add", inventorycontrollers.AddStock(stockService, logg))
			r.With(idempotent).Post("/remove", inventorycontrollers.RemoveStock(stockService, logg))
			r.Patch("/type", inventorycontrollers.SetInventoryType(stockService, logg))
		})
	})

	// called by the order subsystem when an order is confirmed or cancelled
	r.Route("/api/v1/orders/{orderId}", func(r chi.Router) {
		r.Use(idempotent)
		r.Post("/confirm", ordercontrollers.ConfirmOrder(orderHooks, logg))
		r.Post("/cancel", ordercontrollers.CancelOrder(orderHooks, logg))
	})

	return r
}
