package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/lensportal/lensportal-backend/api/routes"
	"github.com/lensportal/lensportal-backend/internal/catalog"
	"github.com/lensportal/lensportal-backend/internal/pricehistory"
	"github.com/lensportal/lensportal-backend/internal/pricing"
	"github.com/lensportal/lensportal-backend/internal/registrations"
	"github.com/lensportal/lensportal-backend/internal/users"
	pkgAuth "github.com/lensportal/lensportal-backend/pkg/auth"
	"github.com/lensportal/lensportal-backend/pkg/auth/session"
	"github.com/lensportal/lensportal-backend/pkg/cache"
	"github.com/lensportal/lensportal-backend/pkg/config"
	"github.com/lensportal/lensportal-backend/pkg/db"
	"github.com/lensportal/lensportal-backend/pkg/identity"
	"github.com/lensportal/lensportal-backend/pkg/instance"
	"github.com/lensportal/lensportal-backend/pkg/logger"
	"github.com/lensportal/lensportal-backend/pkg/mailer"
	"github.com/lensportal/lensportal-backend/pkg/metrics"
	"github.com/lensportal/lensportal-backend/pkg/migrate"
	"github.com/lensportal/lensportal-backend/pkg/outbox"
	"github.com/lensportal/lensportal-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	exitOnError(logg, "failed to load config", err)

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	exitOnError(logg, "failed to bootstrap database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	exitOnError(logg, "failed to run dev migrations", migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient))

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	exitOnError(logg, "failed to bootstrap redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	revocations, err := session.NewRevocations(redisClient, cfg.Auth.RevocationTTL)
	exitOnError(logg, "failed to create revocation store", err)

	idp, verifier := identityStack(cfg, logg)

	var sender mailer.Sender
	if smtp, err := mailer.NewSMTP(cfg.SMTP); err == nil {
		sender = smtp
	} else {
		logg.Warn(context.Background(), "smtp not configured; approvals will report email warnings")
	}

	var queryCache *cache.Cache
	if cfg.Cache.Enabled {
		queryCache = cache.New(redisClient, cfg.Cache.StaleTime, logg)
	}

	domainMetrics := metrics.NewDomainMetrics(prometheus.DefaultRegisterer)
	httpMetrics := metrics.NewHTTPMetrics(prometheus.DefaultRegisterer)

	conn := dbClient.DB()
	events := outbox.NewService(outbox.NewRepository(conn), logg)
	profiles := users.NewRepository(conn)
	historyRepo := pricehistory.NewRepository(conn)

	history, err := pricehistory.NewRecorder(historyRepo)
	exitOnError(logg, "failed to create price history recorder", err)
	historyService, err := pricehistory.NewService(historyRepo)
	exitOnError(logg, "failed to create price history service", err)

	provisioner := users.NewProvisioner(users.ProvisionerParams{
		Identity:            idp,
		Mailer:              sender,
		DefaultDiscountTier: decimal.NewFromFloat(cfg.Pricing.DefaultDiscountTier),
		Logger:              logg,
	})

	usersService, err := users.NewService(users.ServiceParams{
		Repository:  profiles,
		DB:          dbClient,
		Provisioner: provisioner,
		Identity:    idp,
		Revocations: revocations,
		Events:      events,
		Metrics:     domainMetrics,
		Logger:      logg,
	})
	exitOnError(logg, "failed to create users service", err)

	registrationService, err := registrations.NewService(registrations.ServiceParams{
		Repository:  registrations.NewRepository(conn),
		Profiles:    profiles,
		DB:          dbClient,
		Provisioner: provisioner,
		Events:      events,
		Metrics:     domainMetrics,
		Logger:      logg,
	})
	exitOnError(logg, "failed to create registration service", err)

	catalogService, err := catalog.NewService(catalog.NewRepository(conn), dbClient, history, events, queryCache, domainMetrics, logg)
	exitOnError(logg, "failed to create catalog service", err)

	pricingService, err := pricing.NewService(pricing.NewRepository(conn), dbClient, profiles, history, events, domainMetrics, logg)
	exitOnError(logg, "failed to create pricing service", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":       cfg.App.Env,
		"addr":      addr,
		"auth_mode": cfg.Auth.Mode,
		"instance":  instance.ID(),
	})

	server := &http.Server{
		Addr:         addr,
		ReadTimeout:  cfg.App.ReadTimeout,
		WriteTimeout: cfg.App.WriteTimeout,
		Handler: routes.NewRouter(routes.Deps{
			Config:        cfg,
			Logger:        logg,
			DB:            dbClient,
			Store:         redisClient,
			Verifier:      verifier,
			Revocations:   revocations,
			HTTPMetrics:   httpMetrics,
			Gatherer:      prometheus.DefaultGatherer,
			Registrations: registrationService,
			Users:         usersService,
			Catalog:       catalogService,
			Pricing:       pricingService,
			PriceHistory:  historyService,
		}),
	}

	serverErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
		logg.Info(ctx, "api server shutting down gracefully")
	}
}

// identityStack returns the identity provider used for account provisioning and
// the verifier used for bearer tokens. In jwt mode the provider is optional.
func identityStack(cfg *config.Config, logg *logger.Logger) (identity.Provider, pkgAuth.Verifier) {
	ctx := context.Background()
	firebase, err := identity.NewFirebase(ctx, cfg.GCP, cfg.Firebase, logg)
	if cfg.Auth.UsesFirebase() {
		exitOnError(logg, "failed to bootstrap firebase", err)
		return firebase, firebase
	}

	verifier, vErr := pkgAuth.NewJWTVerifier(cfg.JWT)
	exitOnError(logg, "failed to create jwt verifier", vErr)
	if err != nil {
		logg.Warn(logg.WithField(ctx, "error", err.Error()), "identity provider unavailable; provisioning is disabled")
		return nil, verifier
	}
	return firebase, verifier
}

func exitOnError(logg *logger.Logger, msg string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), msg, err)
	os.Exit(1)
}
