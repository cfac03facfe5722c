// Package app wires the admission-control subsystem together with an
// explicit init-at-boot / close-at-shutdown lifecycle. The store client
// and the violation buffer are process-wide singletons constructed here
// once, never re-created per request.
package app

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"care-gateway/internal/audit"
	"care-gateway/internal/common/logging"
	"care-gateway/internal/config"
	"care-gateway/internal/handlers"
	"care-gateway/internal/middleware"
	"care-gateway/internal/ratelimit"
	"care-gateway/internal/redis"
	"care-gateway/internal/server"
)

type App struct {
	Config      *config.Config
	Logger      logging.Logger
	RedisClient *redis.Client
	Local       *ratelimit.LocalCounter
	Limiter     *ratelimit.Limiter
	Recorder    *audit.Recorder
	Flusher     *audit.Flusher
	Router      *mux.Router
	Server      *server.Server

	flushSink   audit.Sink
	sweepCancel context.CancelFunc
}

// New creates an App from validated configuration and an audit sink.
func New(cfg *config.Config, sink audit.Sink) *App {
	return &App{
		Config:    cfg,
		Logger:    logging.GetGlobalLogger(),
		Recorder:  audit.NewRecorder(cfg.ViolationBufferSizeInt()),
		flushSink: sink,
	}
}

// Initialize constructs every component in dependency order. Category
// config problems are fatal here, never silently defaulted.
func (app *App) Initialize() error {
	if err := ratelimit.ValidateConfigs(); err != nil {
		return err
	}

	if err := app.initializeRedis(); err != nil {
		return err
	}

	sweepCtx, cancel := context.WithCancel(context.Background())
	app.sweepCancel = cancel

	app.Local = ratelimit.NewLocalCounter()
	app.Local.StartSweep(sweepCtx)

	var store ratelimit.Counter
	if app.RedisClient != nil {
		store = app.RedisClient
	}
	app.Limiter = ratelimit.NewLimiter(store, app.Local, app.Logger)

	app.Flusher = audit.NewFlusher(
		app.Recorder,
		app.flushSink,
		app.Config.OrgID,
		app.Config.AuditFlushIntervalDuration(),
		app.Logger,
	)
	if err := app.Flusher.Start(); err != nil {
		return err
	}

	app.Router = app.buildRouter()
	app.Server = server.New(app.Router, app.Config.Port)

	return nil
}

// Shutdown tears the subsystem down in reverse order: stop admitting,
// flush buffered violations, then release the store client.
func (app *App) Shutdown(ctx context.Context) {
	if app.Server != nil {
		if err := app.Server.Shutdown(ctx); err != nil {
			app.Logger.Error("server shutdown failed", err)
		}
	}

	if app.Flusher != nil {
		app.Flusher.Stop(ctx)
	}

	if app.sweepCancel != nil {
		app.sweepCancel()
	}

	if app.RedisClient != nil {
		if err := app.RedisClient.Close(); err != nil {
			app.Logger.Error("redis close failed", err)
		}
	}
}

func (app *App) initializeRedis() error {
	if app.Config.RedisAddress == "" {
		app.Logger.Warn("Redis: Not configured, rate limiting runs on the per-process fallback counter")
		return nil
	}

	client, err := redis.NewClient(&redis.Config{
		Address:  app.Config.RedisAddress,
		Password: app.Config.RedisPassword,
		DB:       app.Config.RedisDBInt(),
		PoolSize: app.Config.RedisPoolSizeInt(),
	})
	if err != nil {
		return err
	}

	app.RedisClient = client
	app.Logger.Info("Redis: Connected", logging.String("address", app.Config.RedisAddress))
	return nil
}

func (app *App) buildRouter() *mux.Router {
	h := handlers.New(app.Limiter, app.Recorder, app.Logger)

	router := mux.NewRouter()
	router.Use(middleware.LoggingMiddleware)

	if app.Config.RateLimitEnabled {
		gate := middleware.NewGate(app.Limiter, app.Recorder, app.Logger)
		router.Use(gate.Middleware)
	} else {
		app.Logger.Warn("Rate limiting disabled by configuration")
	}

	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
	router.HandleFunc("/api/health", h.HealthCheck).Methods("GET")

	admin := router.PathPrefix("/api/admin").Subrouter()
	admin.HandleFunc("/violations", h.GetViolationSummary).Methods("GET")
	admin.HandleFunc("/ratelimits/{key}", h.ResetRateLimit).Methods("DELETE")
	admin.HandleFunc("/ratelimits", h.ClearRateLimits).Methods("DELETE")

	return router
}

// Handler returns the wired router; the surrounding service mounts its
// domain handlers behind the same gate.
func (app *App) Handler() http.Handler {
	return app.Router
}
