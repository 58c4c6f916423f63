// Package app wires the catalog API server.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/kart-storefront/internal/domain/product"
	"github.com/xenking/kart-storefront/internal/handler"
	"github.com/xenking/kart-storefront/internal/storage/postgres"
	redisstore "github.com/xenking/kart-storefront/internal/storage/redis"
	"github.com/xenking/kart-storefront/pkg/health"
	"github.com/xenking/kart-storefront/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	products := product.NewIndex(postgres.NewProductRepository(pool))
	if err := products.Rebuild(ctx); err != nil {
		return errors.Wrap(err, "build slug filter")
	}
	go products.Run(ctx, cfg.SlugFilter.Refresh)

	healthSvc := health.New()
	healthSvc.Add(health.Check{
		Name:    "postgres",
		Kind:    health.Readiness,
		Timeout: 5 * time.Second,
		Func:    health.PingCheck("postgres", pool.Ping),
	})
	healthSvc.Add(health.Check{
		Name: "slug_filter",
		Kind: health.Readiness,
		Func: health.FreshnessCheck("slug filter", 5*cfg.SlugFilter.Refresh, products.RebuiltAt),
	})
	healthSvc.Add(health.Check{
		Name: "goroutines",
		Func: health.GoroutineCountCheck(10000),
	})

	limiter, closeLimiter := newLimiter(ctx, healthSvc, cfg.RateLimit)
	defer closeLimiter()

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	h := handler.NewHandler(handler.HandlerConfig{ImageBaseURL: cfg.ImageBaseURL}, products)

	api := chi.NewRouter()
	api.Use(
		httpmiddleware.RateLimit(httpmiddleware.RateLimitConfig{
			Limiter: limiter,
			Max:     cfg.RateLimit.Max,
			Window:  cfg.RateLimit.Window,
		}),
		httpmiddleware.LogRequests(),
	)
	api.Mount("/", h.Routes())

	mux := chi.NewRouter()
	mux.Get("/livez", healthSvc.LiveEndpoint)
	mux.Get("/readyz", healthSvc.ReadyEndpoint)
	mux.Mount("/api", api)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				ExposeHeaders:    []string{httpmiddleware.RequestIDHeader},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.Instrument("kart-catalog", m),
		),
	}

	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// newLimiter picks the Redis-backed limiter when configured and registers its
// readiness check.
func newLimiter(ctx context.Context, h *health.Health, cfg RateLimitConfig) (httpmiddleware.Limiter, func()) {
	if cfg.RedisAddr == "" {
		l := httpmiddleware.NewWindowLimiter(cfg.Max, cfg.Window)
		go l.Run(ctx)
		return l, func() {}
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	h.Add(health.Check{
		Name: "redis",
		Kind: health.Readiness,
		Func: health.PingCheck("redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}),
	})
	closeFn := func() {
		if err := client.Close(); err != nil {
			zctx.From(ctx).Warn("Close redis", zap.Error(err))
		}
	}
	return redisstore.NewRateLimiter(client, cfg.Max, cfg.Window), closeFn
}
