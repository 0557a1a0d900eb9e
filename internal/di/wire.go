//go:build wireinject
// +build wireinject

package di

import (
	"SwingScan/pkg/config"
	"SwingScan/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideProviderCache,

		// Repositories
		ProvideAlertArchive,
		ProvideAlertSink,
		ProvidePolygonStream,

		// Pipeline
		ProvideStore,
		ProvideAggregator,
		ProvideHub,
		ProvideOrchestrator,
		ProvideIngressGuard,

		// Sources
		ProvideCollector,
		ProvideKafkaConsumer,
		ProvideKafkaAggregatesHandler,

		// HTTP + application
		ProvideHTTPHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
