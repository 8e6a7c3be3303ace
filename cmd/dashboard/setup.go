package main

import (
	"market-dashboard/src/interfaces"
	"market-dashboard/src/logger"
	"market-dashboard/src/metrics"
	"market-dashboard/src/models"
	"market-dashboard/src/network"
	"market-dashboard/src/server"
	"market-dashboard/src/session"
	"market-dashboard/src/stream"
)

// -----------------------------------------------------------------------------

// setupSession builds the live stream client
func setupSession(config *models.MConfig, collector *metrics.Collector) (*session.Session, error) {
	dialer := stream.NewWebSocketDialer(config.Stream)
	return session.NewSession(config, dialer, logger.NewLogger(config, "Session"), collector)
}

// -----------------------------------------------------------------------------

// setupReferenceClient initializes the reference-data REST client
func setupReferenceClient(config *models.MConfig) interfaces.IReferenceClient {
	return network.NewReferenceClient(config, logger.NewLogger(config, "ReferenceClient"))
}

// -----------------------------------------------------------------------------

// setupServer initializes the dashboard HTTP and viewer server
func setupServer(config *models.MConfig, sess *session.Session, ref interfaces.IReferenceClient, collector *metrics.Collector) *server.DashboardServer {
	return server.NewDashboardServer(config, sess, ref, collector, logger.NewLogger(config, "DashboardServer"))
}
