package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"carbroker/internal/broker"
	"carbroker/internal/bus"
	"carbroker/internal/config"
	"carbroker/internal/handler"
	"carbroker/internal/store"
)

func main() {
	healthcheck := flag.Bool("healthcheck", false, "Run health check against running server")
	flag.Parse()

	// Handle -healthcheck flag: HTTP GET to localhost:PORT/healthz, exit 0/1.
	if *healthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		resp, err := http.Get(fmt.Sprintf("http://localhost:%s/healthz", port))
		if err != nil || resp.StatusCode != http.StatusOK {
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up slog logger with configured level.
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Message channel: in-process by default, AMQP when configured.
	var msgBus bus.Bus
	if cfg.AMQPURL != "" {
		amqpBus, err := bus.DialAMQP(cfg.AMQPURL, logger)
		if err != nil {
			logger.Error("failed to connect to AMQP", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer func() { _ = amqpBus.Close() }()
		msgBus = amqpBus
		logger.Info("using AMQP bus")
	} else {
		msgBus = bus.NewInProc()
	}

	// Broker-owned state.
	listings := store.NewListingStore()
	ledger := store.NewLedger()
	acceptance := store.NewAcceptanceStore()

	// Broker actor with cancellable context; agents share the context.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bk := broker.New(msgBus, listings, ledger, cfg.Commission, cfg.BrokerPollInterval, logger)
	go bk.Run(ctx)

	// HTTP surface.
	marketH := handler.NewMarketHandler(ctx, msgBus, listings, ledger,
		cfg.MinRounds, cfg.BrokerContactTimeout, cfg.ResponseTimeout, logger)
	manualH := handler.NewManualHandler(ctx, msgBus, acceptance,
		handler.NewRegistry(), cfg.ManualQueryTimeout, logger)
	router := handler.NewRouter(marketH, manualH, logger)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	// Start HTTP server in a goroutine.
	go func() {
		logger.Info("server starting", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Wait for SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown signal received", slog.String("signal", sig.String()))

	// Graceful shutdown: stop HTTP server, cancel context (stops the
	// broker and agent goroutines).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
	cancel()

	logger.Info("server stopped")
}
