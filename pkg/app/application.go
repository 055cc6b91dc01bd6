package app

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"studiobook/pkg/config"
	"studiobook/pkg/contracts"
	"studiobook/pkg/middleware"

	"github.com/julienschmidt/httprouter"
)

const (
	idempotencyPrefix = "studiobook:idem:"
	rateLimitPrefix   = "studiobook:rate:"
)

// stopper is implemented by middleware stores that run a cleanup goroutine.
type stopper interface {
	Stop()
}

type Application struct {
	cfg            *config.Config
	server         *http.Server
	stoppers       []stopper
	onShutdown     []func(ctx context.Context)
	healthHandler  http.Handler
	appHttpHandler http.Handler
}

func NewApplication(cfg *config.Config) *Application {
	return &Application{cfg: cfg}
}

// SetApp registers every handler on one router behind the full middleware
// stack. The health handler gets its own router with logging and recovery only.
func (a *Application) SetApp(health contracts.Handler, handlers ...contracts.Handler) {
	a.setHealthHandler(health)
	a.setAppHandler(handlers)
	a.setAppServer()
}

// OnShutdown registers fn to run after the HTTP server has stopped.
func (a *Application) OnShutdown(fn func(ctx context.Context)) {
	a.onShutdown = append(a.onShutdown, fn)
}

func (a *Application) setHealthHandler(health contracts.Handler) {
	healthRouter := httprouter.New()
	health.RegisterRoutes(healthRouter)

	var healthHTTPHandler http.Handler = healthRouter
	healthHTTPHandler = middleware.RequestLogging(a.cfg.Log)(healthHTTPHandler)
	healthHTTPHandler = middleware.Recovery(a.cfg.Log)(healthHTTPHandler)
	a.healthHandler = healthHTTPHandler
	a.cfg.Log.Info("Health endpoints configured with minimal middleware (Recovery + Logging only)")
}

func (a *Application) setAppHandler(handlers []contracts.Handler) {
	appRouter := httprouter.New()
	for _, h := range handlers {
		h.RegisterRoutes(appRouter)
	}

	store, limiter := a.middlewareBackends()

	var appHttpHandler http.Handler = appRouter
	appHttpHandler = middleware.Idempotency(store, a.cfg.Log)(appHttpHandler)
	appHttpHandler = middleware.RequestTimeout(a.cfg.RequestTimeout, a.cfg.Log)(appHttpHandler)
	appHttpHandler = middleware.RateLimit(limiter, nil, a.cfg.Log)(appHttpHandler)
	appHttpHandler = middleware.ContentTypeValidation(a.cfg.Log)(appHttpHandler)
	appHttpHandler = middleware.MaxBodySize(int64(a.cfg.MaxRequestSize))(appHttpHandler)
	appHttpHandler = middleware.RequestLogging(a.cfg.Log)(appHttpHandler)
	appHttpHandler = middleware.Recovery(a.cfg.Log)(appHttpHandler)
	a.appHttpHandler = appHttpHandler
	a.cfg.Log.Info("Application endpoints configured with full security middleware stack")
}

// middlewareBackends shares idempotency and rate limit state through Redis
// when a Redis client is connected, and keeps it in process otherwise.
func (a *Application) middlewareBackends() (middleware.IdempotencyStore, middleware.Limiter) {
	if a.cfg.Client != nil && a.cfg.Client.Redis != nil {
		rdb := a.cfg.Client.Redis.Client
		a.cfg.Log.Info("Idempotency and rate limiting backed by Redis")
		return middleware.NewRedisIdempotencyStore(rdb, idempotencyPrefix, a.cfg.IdempotencyTTL),
			middleware.NewRedisLimiter(rdb, rateLimitPrefix, a.cfg.RateLimitRequests, a.cfg.RateLimitWindow)
	}

	store := middleware.NewInMemoryIdempotencyStore(a.cfg.IdempotencyTTL)
	limiter := middleware.NewSlidingWindowLimiter(a.cfg.RateLimitRequests, a.cfg.RateLimitWindow)
	a.stoppers = append(a.stoppers, store, limiter)
	return store, limiter
}

func (a *Application) setAppServer() {
	mux := http.NewServeMux()
	mux.Handle("/health", a.healthHandler)
	mux.Handle("/ready", a.healthHandler)
	mux.Handle("/", a.appHttpHandler)

	a.server = &http.Server{
		Addr:         ":" + a.cfg.Port,
		Handler:      mux,
		ReadTimeout:  a.cfg.ReadTimeout,
		WriteTimeout: a.cfg.WriteTimeout,
		IdleTimeout:  a.cfg.IdleTimeout,
	}

	a.cfg.Log.Info("HTTP server configured", "port", a.cfg.Port)
}

func (a *Application) Run() {
	serverErrors := make(chan error, 1)

	go func() {
		a.cfg.Log.Info("Starting HTTP server", "address", a.server.Addr)
		serverErrors <- a.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		a.cfg.Log.Fatal("HTTP server failed", "error", err)

	case sig := <-shutdown:
		a.cfg.Log.Info("Shutdown signal received", "signal", sig)
		a.gracefulShutdown()
	}
}

func (a *Application) gracefulShutdown() {
	a.cfg.Log.Info("Starting graceful shutdown...")

	a.cfg.Log.Info("Stopping background workers...")
	for _, s := range a.stoppers {
		s.Stop()
	}
	a.cfg.Log.Info("Background workers stopped")

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.cfg.Log.Error("Server shutdown failed", "error", err)
		if err := a.server.Close(); err != nil {
			a.cfg.Log.Fatal("Could not stop server gracefully", "error", err)
		}
	}

	for _, fn := range a.onShutdown {
		fn(ctx)
	}

	a.cfg.Log.Info("Server stopped gracefully")
}
