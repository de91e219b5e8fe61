package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/lootledger/lootledger/internal/collector"
	"github.com/lootledger/lootledger/internal/config"
	"github.com/lootledger/lootledger/internal/priceapi"
	"github.com/lootledger/lootledger/internal/pricesync"
	"github.com/lootledger/lootledger/internal/store"
	"github.com/lootledger/lootledger/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/tracker.yaml", "path to config file")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	// Optional .env for ${VAR} expansion in the config file.
	godotenv.Load()

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %q\n", *logLevel)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	logger.Info("starting tracker",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"source", cfg.Source.Path,
		"database", cfg.Database.Path,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	st, err := store.Open(cfg.Database.Path, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	clientID, err := st.ClientID(ctx)
	if err != nil {
		logger.Error("failed to load client id", "error", err)
		os.Exit(1)
	}

	apiClient := priceapi.NewClient(
		cfg.PriceAPI.BaseURL,
		priceapi.WithLogger(logger),
		priceapi.WithTimeout(cfg.PriceAPI.Timeout),
		priceapi.WithRetries(cfg.PriceAPI.MaxRetries, time.Second),
	)

	col := collector.New(*cfg, st, logger)
	if err := col.Start(ctx); err != nil {
		logger.Error("failed to start collector", "error", err)
		os.Exit(1)
	}
	defer stopComponent("collector", col.Stop, logger)

	poller := pricesync.NewPoller(pricesync.PollerConfig{
		Interval:        cfg.Sync.PollInterval,
		Concurrency:     cfg.Sync.Concurrency,
		Timeout:         cfg.PriceAPI.Timeout,
		MinContributors: cfg.Sync.MinContributors,
		LookbackWindow:  cfg.Sync.LookbackWindow,
	}, apiClient, st, logger)
	if err := poller.Start(ctx); err != nil {
		logger.Error("failed to start price poller", "error", err)
		os.Exit(1)
	}
	defer stopComponent("price poller", poller.Stop, logger)

	submitter := pricesync.NewSubmitter(pricesync.SubmitterConfig{
		Interval:  cfg.Sync.SubmitInterval,
		BatchSize: 32,
		Timeout:   cfg.PriceAPI.Timeout,
		KeepFor:   24 * time.Hour,
	}, clientID, apiClient, st, logger)
	if err := submitter.Start(ctx); err != nil {
		logger.Error("failed to start price submitter", "error", err)
		os.Exit(1)
	}
	defer stopComponent("price submitter", submitter.Stop, logger)

	healthServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Health.Port),
		Handler: healthHandler(cfg.Health.Path, st, col, poller, submitter),
	}
	go func() {
		logger.Info("starting health server", "port", cfg.Health.Port)
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("health server error", "error", err)
		}
	}()

	logger.Info("tracker running",
		"instance_id", cfg.Instance.ID,
		"health_url", fmt.Sprintf("http://localhost:%d%s", cfg.Health.Port, cfg.Health.Path),
	)

	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	healthServer.Shutdown(shutdownCtx)

	logger.Info("tracker stopped")
}

// stopComponent runs a Stop with its own timeout. Deferred stops run in
// reverse start order, so the collector goes down last.
func stopComponent(name string, stop func(context.Context) error, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := stop(ctx); err != nil {
		logger.Error("component stop failed", "component", name, "error", err)
	}
}

// healthHandler reports store reachability and pipeline counters.
func healthHandler(path string, st *store.Store, col *collector.Collector, poller *pricesync.Poller, submitter *pricesync.Submitter) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]any),
		}

		if err := st.Ping(ctx); err != nil {
			health.Status = "unhealthy"
			health.Components["store"] = map[string]string{
				"status": "disconnected",
				"error":  err.Error(),
			}
		} else {
			health.Components["store"] = "connected"
		}

		stats := col.Stats()
		health.Components["pipeline"] = map[string]any{
			"lines_seen":   stats.LinesSeen,
			"unrecognized": stats.Unrecognized,
			"tail_offset":  stats.Tailer.Offset,
			"buffer_depth": stats.Buffer.Count,
			"flushes":      stats.Writer.Flushes,
			"runs_started": stats.Segmenter.RunsStarted,
			"runs_ended":   stats.Segmenter.RunsEnded,
		}
		if stats.OpenRun != nil {
			health.Components["open_run"] = map[string]any{
				"zone":       stats.OpenRun.ZoneName,
				"started_at": stats.OpenRun.StartedAt,
			}
		}
		health.Components["price_sync"] = map[string]any{
			"fetched":   poller.Stats().Fetched,
			"submitted": submitter.Stats().Submitted,
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	return mux
}
