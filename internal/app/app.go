package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"tremor/internal/causal"
	"tremor/internal/config"
	"tremor/internal/exporter"
	"tremor/internal/infrastructure"
	"tremor/internal/marketdata"
	"tremor/internal/propagation"
	"tremor/internal/signals"
	"tremor/internal/store"
	transporthttp "tremor/internal/transport/http"
)

// Application holds the assembled service.
type Application struct {
	Config    *config.Config
	Logger    *slog.Logger
	Store     *store.Store
	Graph     *causal.Graph
	Baselines *causal.Baselines
	Server    *http.Server
}

// NewApplication loads configuration and builds every component. A missing
// causal graph is not fatal: the service starts degraded and reports it via
// the health endpoint.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	graph := causal.NewGraph(logger)
	if err := loadGraph(graph, cfg, logger); err != nil {
		logger.Warn("causal graph unavailable, starting degraded",
			slog.String("error", err.Error()))
	}

	baselines := causal.NewBaselines(logger)
	if err := baselines.Load(cfg.Paths.BaselinesFile); err != nil {
		logger.Warn("baselines unavailable, expected responses disabled",
			slog.String("path", cfg.Paths.BaselinesFile),
			slog.String("error", err.Error()))
	}

	st := store.New(cfg.Paths.StoreFile)
	if err := st.Restore(); err != nil {
		return nil, fmt.Errorf("failed to restore store snapshot: %w", err)
	}

	provider := marketdata.NewYahooClient(cfg.Market, logger)
	factory := signals.NewFactory(st, cfg.Causal, logger)
	monitor := propagation.NewMonitor(st, graph, baselines, provider,
		cfg.Causal.PropagationBufferWeeks, cfg.Causal.CheckConcurrency, logger)
	engine := causal.NewEventStudyEngine(st, provider, cfg.Causal.MinEventsForStudy, logger)

	router := transporthttp.NewRouter(transporthttp.Deps{
		Config:   cfg,
		Store:    st,
		Factory:  factory,
		Monitor:  monitor,
		Graph:    graph,
		Engine:   engine,
		Exporter: exporter.NewStudyExporter(),
		Metrics:  transporthttp.NewMetrics(),
		Logger:   logger,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Application{
		Config:    cfg,
		Logger:    logger,
		Store:     st,
		Graph:     graph,
		Baselines: baselines,
		Server:    server,
	}, nil
}

// loadGraph prefers the GraphML network file and falls back to the Granger
// results CSV when the network file is absent.
func loadGraph(graph *causal.Graph, cfg *config.Config, logger *slog.Logger) error {
	if _, err := os.Stat(cfg.Paths.NetworkFile); err == nil {
		return graph.Load(cfg.Paths.NetworkFile)
	}
	if _, err := os.Stat(cfg.Paths.GrangerFile); err == nil {
		logger.Info("network file missing, loading Granger results instead",
			slog.String("path", cfg.Paths.GrangerFile))
		return graph.Load(cfg.Paths.GrangerFile)
	}
	return fmt.Errorf("neither %s nor %s exists", cfg.Paths.NetworkFile, cfg.Paths.GrangerFile)
}

// Run starts the HTTP server and blocks until an interrupt arrives, then
// shuts down gracefully and persists the store.
func (a *Application) Run() error {
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("server listening",
			slog.String("addr", a.Server.Addr),
			slog.Int("graph_nodes", len(a.Graph.Nodes())))
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		a.Logger.Info("received shutdown signal", slog.String("signal", sig.String()))
	}

	return a.Stop()
}

// Stop shuts the server down within the configured timeout and writes the
// store snapshot.
func (a *Application) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()

	var firstErr error
	if err := a.Server.Shutdown(ctx); err != nil {
		a.Logger.Error("server shutdown failed", slog.String("error", err.Error()))
		firstErr = err
	}

	if err := a.Store.Persist(); err != nil {
		a.Logger.Error("store snapshot failed", slog.String("error", err.Error()))
		if firstErr == nil {
			firstErr = err
		}
	}

	if err := infrastructure.CloseLogFile(); err != nil && firstErr == nil {
		firstErr = err
	}

	a.Logger.Info("shutdown complete", slog.Duration("grace", a.Config.Server.ShutdownTimeout))
	return firstErr
}
