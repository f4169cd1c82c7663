package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lensportal/lensportal-backend/api/controllers"
	"github.com/lensportal/lensportal-backend/api/middleware"
	"github.com/lensportal/lensportal-backend/internal/catalog"
	"github.com/lensportal/lensportal-backend/internal/pricehistory"
	"github.com/lensportal/lensportal-backend/internal/pricing"
	"github.com/lensportal/lensportal-backend/internal/registrations"
	"github.com/lensportal/lensportal-backend/internal/users"
	pkgAuth "github.com/lensportal/lensportal-backend/pkg/auth"
	"github.com/lensportal/lensportal-backend/pkg/auth/session"
	"github.com/lensportal/lensportal-backend/pkg/config"
	"github.com/lensportal/lensportal-backend/pkg/db"
	"github.com/lensportal/lensportal-backend/pkg/logger"
	"github.com/lensportal/lensportal-backend/pkg/metrics"
	pkgredis "github.com/lensportal/lensportal-backend/pkg/redis"
)

// Store is the slice of Redis the HTTP layer needs.
type Store interface {
	pkgredis.IdempotencyStore
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	Ping(ctx context.Context) error
}

type requestObserver interface {
	ObserveRequest(route, method string, status int, duration time.Duration)
}

type Deps struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          db.Pinger
	Store       Store
	Verifier    pkgAuth.Verifier
	Revocations session.RevocationChecker
	HTTPMetrics requestObserver
	Gatherer    prometheus.Gatherer

	Registrations registrations.Service
	Users         users.Service
	Catalog       catalog.Service
	Pricing       pricing.Service
	PriceHistory  pricehistory.Service
}

func NewRouter(deps Deps) http.Handler {
	cfg, logg := deps.Config, deps.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)
	if deps.HTTPMetrics != nil {
		r.Use(middleware.Metrics(deps.HTTPMetrics))
	}

	var redisPinger controllers.Pinger
	if deps.Store != nil {
		redisPinger = deps.Store
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, redisPinger))
	})
	r.Handle("/metrics", metrics.Handler(deps.Gatherer))

	r.Route("/api", func(r chi.Router) {
		if cfg.FeatureFlags.PublicRegistration {
			r.Group(func(r chi.Router) {
				if deps.Store != nil {
					r.Use(middleware.RateLimit(middleware.RegistrationPolicy(cfg.RegistrationRateLimit), deps.Store, logg))
				}
				r.Post("/registrations", controllers.SubmitRegistration(deps.Registrations, logg))
			})
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(deps.Verifier, deps.Revocations, logg))
			if deps.Store != nil {
				r.Use(middleware.Idempotency(deps.Store, logg))
			}

			r.Get("/me", controllers.Me(deps.Users, logg))
			r.Get("/categories", controllers.ListCategories(deps.Catalog, logg))
			r.Get("/products", controllers.ListProducts(deps.Catalog, logg))
			r.Get("/products/{productId}", controllers.GetProduct(deps.Catalog, logg))

			r.Route("/client-prices", func(r chi.Router) {
				r.Get("/", controllers.ListClientPrices(deps.Pricing, logg))
				r.Post("/", controllers.SetClientPrice(deps.Pricing, logg))
				r.Get("/summary", controllers.ClientPriceSummary(deps.Pricing, logg))
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireAdmin(logg))
					r.Post("/bulk-adjust", controllers.BulkAdjustClientPrices(deps.Pricing, logg))
					r.Delete("/{priceId}", controllers.DeleteClientPrice(deps.Pricing, logg))
				})
			})
			r.Get("/price-history", controllers.ListPriceHistory(deps.PriceHistory, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin(logg))

				r.Post("/categories", controllers.CreateCategory(deps.Catalog, logg))
				r.Put("/categories/{categoryId}", controllers.UpdateCategory(deps.Catalog, logg))
				r.Delete("/categories/{categoryId}", controllers.DeleteCategory(deps.Catalog, logg))
				r.Post("/products", controllers.CreateProduct(deps.Catalog, logg))
				r.Put("/products/{productId}", controllers.UpdateProduct(deps.Catalog, logg))
				r.Delete("/products/{productId}", controllers.DeleteProduct(deps.Catalog, logg))

				r.Get("/auth/clients", controllers.AdminListClients(deps.Users, logg))
				r.Post("/auth/clients", controllers.AdminPreAuthorizeClient(deps.Users, logg))

				r.Route("/admin", func(r chi.Router) {
					r.Get("/registrations", controllers.AdminListRegistrations(deps.Registrations, logg))
					r.Post("/approve-registration", controllers.AdminApproveRegistration(deps.Registrations, logg))
					r.Post("/reject-registration", controllers.AdminRejectRegistration(deps.Registrations, logg))
					r.Post("/users/{userId}/suspend", controllers.AdminSuspendUser(deps.Users, logg))
					r.Post("/users/{userId}/reactivate", controllers.AdminReactivateUser(deps.Users, logg))
				})
			})
		})
	})

	return r
}
