package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	apiconfig "legal_simulation/pkg/api/config"
	"legal_simulation/pkg/api/simulation"
	"legal_simulation/pkg/core/bootstrap"
	"legal_simulation/pkg/core/config"
	"legal_simulation/pkg/core/logging"
	"legal_simulation/pkg/core/prompt"
	"legal_simulation/pkg/core/telemetry"
)

var version = "dev"

func main() {
	// Load environment variables
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "[FATAL] %v\n", err)
		os.Exit(1)
	}
	logging.Init(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)
	logger := logging.New("api")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		logger.Error("telemetry init failed", "error", err)
		os.Exit(1)
	}
	defer shutdownTelemetry(context.Background())

	// Prompt library: embedded defaults, overridden by resources/prompts when present.
	prompts := prompt.Defaults()
	if err := prompt.LoadFromDirectory(prompts, "resources"); err != nil {
		logger.Debug("using embedded prompt library", "reason", err)
	} else {
		logger.Info("prompt library loaded", "dir", "resources/prompts")
	}

	agentMgr, err := bootstrap.NewManager(cfg)
	if err != nil {
		logger.Error("agent manager init failed", "error", err)
		os.Exit(1)
	}

	st, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		// The API still runs trials without persistence.
		logger.Warn("document store unavailable", "backend", cfg.Store, "error", err)
		st = nil
	} else if st != nil {
		defer st.Close(context.Background())
	}

	reports, err := bootstrap.OpenReports(ctx, cfg)
	if err != nil {
		logger.Warn("report archive unavailable", "type", cfg.ReportStorage, "error", err)
		reports = nil
	}

	mux := http.NewServeMux()
	apiconfig.NewHandler(agentMgr).Register(mux)
	simulation.NewHandler(simulation.Deps{
		Source:         agentMgr,
		Prompts:        prompts,
		Research:       bootstrap.NewResearcher(cfg, agentMgr, prompts),
		Store:          st,
		Reports:        reports,
		MaxSimulations: cfg.MaxAPISimulations,
		Parallelism:    cfg.Parallelism,
		TrialTimeout:   cfg.TrialTimeout,
	}).Register(mux)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown", "error", err)
		}
	}()

	logger.Info("API server starting",
		slog.Int("port", cfg.Port),
		slog.String("provider", agentMgr.GetActiveProvider()),
		slog.String("store", cfg.Store),
		slog.Bool("store_connected", st != nil),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}
