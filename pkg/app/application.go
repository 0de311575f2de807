package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"rentcore/pkg/config"
	"rentcore/pkg/contracts"
	httputil "rentcore/pkg/http"
	"rentcore/pkg/middleware"

	"github.com/julienschmidt/httprouter"
)

type namedWorker struct {
	name   string
	worker contracts.Worker
}

type Application struct {
	cfg              *config.Config
	server           *http.Server
	idempotencyStore *middleware.InMemoryIdempotencyStore
	rateLimiter      *middleware.ClientRateLimiter
	healthHandler    http.Handler
	appHTTPHandler   http.Handler
	workers          []namedWorker
	closers          []func()
}

func NewApplication(cfg *config.Config) *Application {
	return &Application{cfg: cfg}
}

// SetApp mounts the handlers behind the full middleware stack and prepares the
// HTTP server.
func (a *Application) SetApp(appHandlers ...contracts.Handler) {
	a.setHealthHandler()
	a.setAppHandler(appHandlers)
	a.setAppServer()
}

// AddWorker registers a loop that starts with the server and stops before it.
func (a *Application) AddWorker(name string, worker contracts.Worker) {
	a.workers = append(a.workers, namedWorker{name: name, worker: worker})
}

// OnShutdown registers fn to run after the server and workers have stopped.
func (a *Application) OnShutdown(fn func()) {
	a.closers = append(a.closers, fn)
}

// Handler returns the fully wrapped application handler.
func (a *Application) Handler() http.Handler {
	return a.server.Handler
}

func (a *Application) setHealthHandler() {
	var db httputil.Pinger
	if a.cfg.UsesMongo() {
		db = a.cfg.Client
	}

	healthRouter := httprouter.New()
	httputil.NewHealthHandler(db, a.cfg.Log).RegisterRoutes(healthRouter)

	var h http.Handler = healthRouter
	h = middleware.RequestLogging(a.cfg.Log)(h)
	h = middleware.Recovery(a.cfg.Log)(h)
	a.healthHandler = h
	a.cfg.Log.Info("Health endpoints configured with minimal middleware (Recovery + Logging only)")
}

func (a *Application) setAppHandler(appHandlers []contracts.Handler) {
	appRouter := httprouter.New()
	for _, h := range appHandlers {
		h.RegisterRoutes(appRouter)
	}

	a.idempotencyStore = middleware.NewInMemoryIdempotencyStore(a.cfg.IdempotencyTTL)
	a.rateLimiter = middleware.NewClientRateLimiter(
		a.cfg.RateLimitRequests,
		a.cfg.RateLimitWindow,
		middleware.DefaultClientExtractor,
		a.cfg.Log,
	)

	var h http.Handler = appRouter
	h = middleware.Idempotency(a.idempotencyStore, middleware.IdempotencyKeyHeader)(h)
	h = middleware.RequestTimeout(a.cfg.RequestTimeout, a.cfg.Log)(h)
	h = middleware.ClientRateLimit(a.rateLimiter)(h)
	h = middleware.ContentTypeValidation(a.cfg.Log)(h)
	h = middleware.MaxRequestSize(int64(a.cfg.MaxRequestSize))(h)
	h = middleware.RequestLogging(a.cfg.Log)(h)
	h = middleware.Recovery(a.cfg.Log)(h)
	a.appHTTPHandler = h
	a.cfg.Log.Info("Application endpoints configured with full middleware stack")
}

func (a *Application) setAppServer() {
	mux := http.NewServeMux()
	mux.Handle("/health", a.healthHandler)
	mux.Handle("/ready", a.healthHandler)
	mux.Handle("/", a.appHTTPHandler)

	a.server = &http.Server{
		Addr:         ":" + a.cfg.Port,
		Handler:      mux,
		ReadTimeout:  a.cfg.ReadTimeout,
		WriteTimeout: a.cfg.WriteTimeout,
		IdleTimeout:  a.cfg.IdleTimeout,
	}

	a.cfg.Log.Info("HTTP server configured", "port", a.cfg.Port)
}

// Run serves until SIGINT or SIGTERM, then shuts everything down in order:
// workers, HTTP server, middleware janitors, registered closers.
func (a *Application) Run() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	for _, w := range a.workers {
		wg.Add(1)
		go func(w namedWorker) {
			defer wg.Done()
			a.cfg.Log.Info("Starting background worker", "worker", w.name)
			w.worker.Run(ctx)
			a.cfg.Log.Info("Background worker exited", "worker", w.name)
		}(w)
	}

	serverErrors := make(chan error, 1)
	go func() {
		a.cfg.Log.Info("Starting HTTP server", "address", a.server.Addr)
		serverErrors <- a.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			cancel()
			wg.Wait()
			a.cfg.Log.Fatal("HTTP server failed", "error", err)
		}

	case sig := <-shutdown:
		a.cfg.Log.Info("Shutdown signal received", "signal", sig)
	}

	cancel()
	a.gracefulShutdown(&wg)
}

func (a *Application) gracefulShutdown(workers *sync.WaitGroup) {
	a.cfg.Log.Info("Starting graceful shutdown...")

	a.cfg.Log.Info("Stopping background workers...")
	workers.Wait()
	a.idempotencyStore.Stop()
	a.rateLimiter.Stop()
	a.cfg.Log.Info("Background workers stopped")

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.cfg.Log.Error("Server shutdown failed", "error", err)
		if err := a.server.Close(); err != nil {
			a.cfg.Log.Error("Could not stop server gracefully", "error", err)
		}
	}

	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}

	a.cfg.Log.Info("Server stopped gracefully")
}
