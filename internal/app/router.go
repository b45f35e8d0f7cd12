package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/stockroom-erp/stockroom/internal/auth"
	"github.com/stockroom-erp/stockroom/internal/catalog/categories"
	"github.com/stockroom-erp/stockroom/internal/catalog/products"
	"github.com/stockroom-erp/stockroom/internal/catalog/warehouses"
	"github.com/stockroom-erp/stockroom/internal/dashboard"
	"github.com/stockroom-erp/stockroom/internal/observability"
	"github.com/stockroom-erp/stockroom/internal/operations"
	"github.com/stockroom-erp/stockroom/internal/stock"
	"github.com/stockroom-erp/stockroom/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	TokenStore        *auth.TokenStore
	AuthHandler       *auth.Handler
	ProductHandler    *products.Handler
	CategoryHandler   *categories.Handler
	WarehouseHandler  *warehouses.Handler
	StockHandler      *stock.Handler
	OperationsHandler *operations.Handler
	DashboardHandler  *dashboard.Handler
	JobHandler        *jobs.Handler

	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router for the API.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		params.AuthHandler.MountPublicRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(params.TokenStore))

			adminOnly := auth.RequireRole(auth.RoleAdmin)

			params.AuthHandler.MountProtectedRoutes(r)
			params.ProductHandler.MountRoutes(r, adminOnly)
			params.CategoryHandler.MountRoutes(r, adminOnly)
			params.WarehouseHandler.MountRoutes(r, adminOnly)
			params.StockHandler.MountRoutes(r)
			params.OperationsHandler.MountRoutes(r)
			params.DashboardHandler.MountRoutes(r)
		})
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
