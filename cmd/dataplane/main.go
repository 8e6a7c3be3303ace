package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"market-dashboard/src/config"
	"market-dashboard/src/gateway"
	"market-dashboard/src/logger"
	"market-dashboard/src/metrics"
)

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	configPath := flag.String("config", "../../config/default.yaml", "path to config file")
	flag.Parse()

	conf, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	appLogger := logger.NewLogger(conf.MConfig, conf.Name)
	collector := metrics.New("dataplane")

	gw := gateway.NewGateway(conf.MConfig, collector, logger.NewLogger(conf.MConfig, "Gateway"))
	feeds, err := setupFeeds(conf.MConfig, gw, collector, appLogger)
	if err != nil {
		os.Exit(1)
	}

	// Lifecycle Management
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := gw.Start(); err != nil {
			appLogger.Critical("Gateway failed: %v", err)
		}
	}()
	if err := feeds.Start(ctx); err != nil {
		appLogger.Critical("Failed to start feeds: %v", err)
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	appLogger.Info("Waiting for feeds to stop...")
	feeds.Stop()
	if err := gw.Stop(); err != nil {
		appLogger.Error("Gateway shutdown: %v", err)
	}
	appLogger.Info("Shutdown complete.")
}
