package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"agentflow-runner/pkg/clients/fetch"
	"agentflow-runner/pkg/config"
	"agentflow-runner/pkg/db"
	"agentflow-runner/pkg/httpapi"
	"agentflow-runner/pkg/metrics"
	"agentflow-runner/services/nodes"
	"agentflow-runner/services/proxy"
	"agentflow-runner/services/storage"
	"agentflow-runner/services/workflow"
)

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the workflow API server",
		Long: `Serve exposes the workflow and adapter proxy routes under /api/v1,
Prometheus metrics on /metrics and a liveness probe on /healthz.

Workflows are stored in PostgreSQL when DATABASE_URL is set, otherwise
in memory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default: $ADDR or :8080)")
	return cmd
}

func serve(ctx context.Context, cfg config.Config) error {
	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	})
	slog.SetDefault(slog.New(logHandler))

	store, closeStore, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	handler, err := newHandler(cfg, store, prometheus.NewRegistry())
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)

	go func() {
		slog.Info("Starting server", "addr", cfg.Addr)
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		slog.Error("Server error", "error", err)
		return err

	case sig := <-shutdown:
		slog.Info("Shutdown signal received", "signal", sig)

		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("Could not stop server gracefully", "error", err)
			srv.Close()
		}
	}
	return nil
}

// openStorage connects to PostgreSQL and applies the schema, or falls back
// to in-memory storage when no database is configured.
func openStorage(ctx context.Context, cfg config.Config) (storage.Storage, func(), error) {
	if cfg.DatabaseURL == "" {
		slog.Warn("DATABASE_URL is not set, workflows are kept in memory")
		return storage.NewMemory(), func() {}, nil
	}

	pool, err := db.Connect(ctx, db.DefaultConfig(cfg.DatabaseURL))
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		return nil, nil, err
	}
	if err := db.Migrate(ctx, pool); err != nil {
		pool.Close()
		slog.Error("Failed to migrate database", "error", err)
		return nil, nil, err
	}

	pgStore, err := storage.NewInstance(pool)
	if err != nil {
		pool.Close()
		slog.Error("Failed to create store instance", "error", err)
		return nil, nil, err
	}
	return pgStore, pool.Close, nil
}

// newHandler assembles the router with every service, middleware and CORS.
func newHandler(cfg config.Config, store storage.Storage, reg *prometheus.Registry) (http.Handler, error) {
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New("agentflow", reg)

	providers, err := newProviders(cfg)
	if err != nil {
		return nil, err
	}
	fetcher := fetch.NewHTTPClient(&http.Client{Timeout: cfg.AdapterTimeout})

	executor := workflow.NewExecutor(
		nodes.Adapters{LLM: providers, Search: providers, HTTP: fetcher},
		workflow.WithDefaults(nodeDefaults(cfg)),
		workflow.WithRecorder(m),
	)

	workflowService, err := workflow.NewService(store, executor, cfg.ExecutionTimeout)
	if err != nil {
		slog.Error("Failed to create workflow service", "error", err)
		return nil, err
	}
	proxyService, err := proxy.NewService(providers, fetcher)
	if err != nil {
		slog.Error("Failed to create proxy service", "error", err)
		return nil, err
	}

	// setup router
	mainRouter := mux.NewRouter()
	mainRouter.Use(httpapi.RequestID, m.Middleware)

	mainRouter.Handle("/metrics", m.Handler()).Methods("GET")
	mainRouter.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpapi.WriteJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")

	apiRouter := mainRouter.PathPrefix("/api/v1").Subrouter()
	workflowService.LoadRoutes(apiRouter)
	proxyService.LoadRoutes(apiRouter)

	corsHandler := handlers.CORS(
		handlers.AllowedOrigins(cfg.CORSOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", httpapi.RequestIDHeader}),
		handlers.AllowCredentials(),
	)(mainRouter)

	return corsHandler, nil
}
