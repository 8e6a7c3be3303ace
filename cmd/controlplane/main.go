package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"market-dashboard/src/config"
	"market-dashboard/src/controlplane"
	"market-dashboard/src/logger"
	"market-dashboard/src/metrics"
)

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	configPath := flag.String("config", "../../config/controlplane.yaml", "path to config file")
	flag.Parse()

	conf, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	appLogger := logger.NewLogger(conf.MConfig, conf.Name)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	db, err := setupDatabase(ctx, conf.MConfig, appLogger)
	cancel()
	if err != nil {
		os.Exit(1)
	}
	defer db.Close()

	srv := controlplane.NewServer(conf.MConfig, db, metrics.New("controlplane"), logger.NewLogger(conf.MConfig, "ControlPlane"))
	go func() {
		if err := srv.Start(); err != nil {
			appLogger.Critical("Server failed: %v", err)
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	appLogger.Info("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server shutdown: %v", err)
	}
	appLogger.Info("Shutdown complete.")
}
