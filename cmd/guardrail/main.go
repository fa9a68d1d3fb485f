package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carecircle/guardrail/internal/ai"
	"github.com/carecircle/guardrail/internal/audit"
	"github.com/carecircle/guardrail/internal/chat"
	"github.com/carecircle/guardrail/internal/kurrentdb"
	"github.com/carecircle/guardrail/internal/safety"
	"github.com/carecircle/guardrail/internal/shared/auth"
	"github.com/carecircle/guardrail/internal/shared/config"
	"github.com/carecircle/guardrail/internal/shared/database"
	"github.com/carecircle/guardrail/internal/shared/logging"
	"github.com/carecircle/guardrail/internal/shared/metrics"
	secmiddleware "github.com/carecircle/guardrail/internal/shared/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// App holds all application dependencies
type App struct {
	Config    *config.Config
	Log       *zap.Logger
	DB        *database.DB
	Kurrent   *kurrentdb.Client
	Registry  *safety.Registry
	Resources *safety.ResourceTable
	Model     ai.Completer
	AuditLog  *audit.Logger
	// AuditReader is nil when the configured sink cannot be queried
	AuditReader audit.Reader

	closers []func() error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.Server.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("guardrail service stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx := context.Background()

	app, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      newRouter(app),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.AI.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan struct{})
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info("shutting down server")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("server shutdown error", zap.Error(err))
		}
		// flush queued audit entries before the sinks close
		if err := app.AuditLog.Close(ctx); err != nil {
			log.Error("audit queue not fully drained", zap.Error(err))
		}
		close(done)
	}()

	log.Info("guardrail service starting",
		zap.String("env", cfg.Server.Env),
		zap.Int("port", cfg.Server.Port),
		zap.String("ai_provider", cfg.AI.Provider),
		zap.String("audit_sink", cfg.Audit.Sink),
		zap.String("registry_version", app.Registry.Version()),
		zap.Bool("auth_enforced", cfg.IsProduction()))

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	<-done
	log.Info("server stopped")
	return nil
}

// newApp connects the stores selected by cfg and builds the safety core
func newApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	app := &App{Config: cfg, Log: log, Resources: safety.DefaultResources()}

	registry := safety.DefaultRegistry()
	if cfg.Safety.RegistryPath != "" {
		loaded, err := safety.LoadRegistryFile(cfg.Safety.RegistryPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load pattern registry: %w", err)
		}
		registry = loaded
	}
	for _, code := range registry.ResponseCodes() {
		if !safety.HasResponse(code) {
			log.Warn("response code has no static crisis response, emergency response will be used",
				zap.String("response_code", code))
		}
	}
	app.Registry = registry

	model, err := newCompleter(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	app.Model = model
	if g, ok := model.(*ai.GeminiCompleter); ok {
		app.closers = append(app.closers, g.Close)
	}

	sink, err := app.openSink(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.AuditLog = audit.NewLogger(sink, log, audit.LoggerConfig{
		QueueSize:    cfg.Audit.QueueSize,
		Workers:      cfg.Audit.Workers,
		WriteTimeout: cfg.Audit.WriteTimeout,
	})

	return app, nil
}

func newCompleter(ctx context.Context, cfg *config.Config, log *zap.Logger) (ai.Completer, error) {
	if cfg.AI.Provider == config.AIProviderGemini {
		return ai.NewGeminiCompleter(ctx, ai.GeminiConfig{
			APIKey:    cfg.AI.APIKey,
			ModelName: cfg.AI.Model,
		}, log)
	}
	return ai.NewClient(cfg.AI.URL, cfg.AI.Timeout, log), nil
}

// openSink connects the durable audit store. A store that cannot be reached
// degrades to local logging only so the chat path stays available.
func (a *App) openSink(ctx context.Context) (audit.Sink, error) {
	cfg := a.Config

	switch cfg.Audit.Sink {
	case config.AuditSinkPostgres:
		db, err := database.New(ctx, cfg.Database, a.Log)
		if err != nil {
			a.Log.Warn("database not available, audit entries will only be logged locally", zap.Error(err))
			return audit.NopSink{}, nil
		}
		a.DB = db
		a.closers = append(a.closers, func() error { db.Close(); return nil })

		if err := database.Migrate(ctx, db.Pool, a.Log); err != nil {
			return nil, fmt.Errorf("migration failed: %w", err)
		}

		sink := audit.NewPostgresSink(db.Pool)
		if err := sink.Initialize(ctx); err != nil {
			return nil, fmt.Errorf("audit initialization failed: %w", err)
		}
		a.AuditReader = sink
		return sink, nil

	case config.AuditSinkKurrentDB:
		client, err := kurrentdb.NewClient(cfg.KurrentDB, a.Log)
		if err == nil {
			err = client.Connect(ctx)
		}
		if err != nil {
			a.Log.Warn("kurrentdb not available, audit entries will only be logged locally", zap.Error(err))
			return audit.NopSink{}, nil
		}
		a.Kurrent = client
		a.closers = append(a.closers, client.Close)

		sink := audit.NewKurrentSink(client.DB())
		if err := sink.Initialize(ctx); err != nil {
			return nil, fmt.Errorf("audit initialization failed: %w", err)
		}
		a.AuditReader = sink
		return sink, nil

	case config.AuditSinkJSONL:
		sink, err := audit.NewJSONLSink(cfg.Audit.JSONLPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit file: %w", err)
		}
		a.closers = append(a.closers, sink.Close)
		return sink, nil
	}

	return audit.NopSink{}, nil
}

// Close releases stores in reverse order of opening
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Log.Warn("failed to close resource", zap.Error(err))
		}
	}
	a.closers = nil
}

func newRouter(app *App) http.Handler {
	cfg := app.Config

	gate := safety.NewGate(
		safety.NewClassifier(app.Registry),
		safety.NewCrisisResolver(app.Resources, cfg.Safety.DefaultCountry),
		safety.DefaultDisclaimers(),
	)
	pipeline := chat.NewPipeline(gate, safety.DefaultEnforcer(), app.Model, app.AuditLog, app.Log, cfg.AI.Timeout)
	devMode := !cfg.IsProduction()

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(secmiddleware.RequestLogger(app.Log))
	r.Use(middleware.Recoverer)
	r.Use(secmiddleware.SecurityHeaders)
	r.Use(metrics.Middleware)
	r.Use(secmiddleware.CORS(secmiddleware.DefaultCORSConfig()))

	r.Get("/health", healthHandler)
	r.Get("/ready", readyHandler(app))
	r.Handle("/metrics", metrics.Handler())

	limiter := secmiddleware.NewIPRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(secmiddleware.BodyLimit(64 * 1024))
		if cfg.IsProduction() {
			r.Use(auth.Middleware(cfg.Auth))
		}

		r.With(limiter.Middleware).Mount("/chat", chat.NewHandler(pipeline, devMode).Routes())
		r.Mount("/", safety.NewHandler(safety.NewClassifier(app.Registry), app.Resources).Routes())
		r.Mount("/ai", ai.NewHandler(cfg.AI.Provider, app.Model).Routes())

		if app.AuditReader != nil {
			r.Mount("/audit/safety", audit.NewHandler(app.AuditReader, devMode).Routes())
		}
	})

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

func readyHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"server":   "ready",
			"registry": app.Registry.Version(),
		}

		ready := true
		check := func(name string, configured bool, probe func() error) {
			switch {
			case !configured:
				checks[name] = "not configured"
			case probe() != nil:
				checks[name] = "not ready"
				ready = false
			default:
				checks[name] = "ready"
			}
		}

		check("database", app.DB != nil, func() error { return app.DB.Health(r.Context()) })
		check("kurrentdb", app.Kurrent != nil, func() error { return app.Kurrent.HealthCheck(r.Context()) })

		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"status": map[bool]string{true: "ready", false: "not ready"}[ready],
			"checks": checks,
		})
	}
}
