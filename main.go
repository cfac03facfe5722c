package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"care-gateway/internal/app"
	"care-gateway/internal/audit"
	"care-gateway/internal/common/logging"
	"care-gateway/internal/config"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logging.InitGlobalLogger()
	defer logging.MustSync()

	// The audit sink is supplied by the surrounding system. The default
	// stands in as a structured log record until one is wired up.
	sink := func(ctx context.Context, entry audit.Entry) error {
		logging.Info("audit record",
			logging.String("action", entry.Action),
			logging.String("resource", entry.Resource),
			logging.String("resource_id", entry.ResourceID),
			logging.String("ip", entry.IPAddress),
			logging.Field{Key: "details", Value: entry.Details},
		)
		return nil
	}

	application := app.New(cfg, sink)
	if err := application.Initialize(); err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}

	errCh := application.Server.Start()
	logging.Info("Server started", logging.String("port", cfg.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logging.Error("Server failed", err)
	case sig := <-quit:
		logging.Info("Shutting down", logging.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	application.Shutdown(ctx)

	logging.Info("Server exited")
}
