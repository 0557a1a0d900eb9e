package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"SwingScan/internal/domain/repository"
	"SwingScan/internal/hub"
	mid "SwingScan/internal/middleware"
	"SwingScan/internal/pipeline"
	"SwingScan/internal/state"
	"SwingScan/internal/usecase"
	pkgch "SwingScan/pkg/clickhouse"
	"SwingScan/pkg/config"
	xhttp "SwingScan/pkg/http"
	pkgkafka "SwingScan/pkg/kafka"
	applogger "SwingScan/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg       *config.Config
	logger    *applogger.Logger
	store     *state.Store
	orch      *pipeline.Orchestrator
	guard     *mid.IngressGuard
	hub       *hub.Hub
	collector *usecase.AggregateCollector
	consumer  *pkgkafka.Consumer
	kh        pkgkafka.MessageHandler
	chClient  *pkgch.Client
	sink      repository.AlertSink

	httpServer  *xhttp.Server
	httpHandler xhttp.Handler
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	logger *applogger.Logger,
	store *state.Store,
	orch *pipeline.Orchestrator,
	guard *mid.IngressGuard,
	h *hub.Hub,
	collector *usecase.AggregateCollector,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	chClient *pkgch.Client,
	sink repository.AlertSink,
	handler xhttp.Handler,
) *App {
	return &App{
		cfg:         cfg,
		logger:      logger,
		store:       store,
		orch:        orch,
		guard:       guard,
		hub:         h,
		collector:   collector,
		consumer:    consumer,
		kh:          kh,
		chClient:    chClient,
		sink:        sink,
		httpHandler: handler,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := a.logger

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithLogger(a.logger),
	)

	// Pipeline workers and idle-symbol sweeper
	a.orch.Start(ctx)
	a.store.StartSweeper(ctx, a.cfg.Detection.SweepInterval, func(evicted, remaining int) {
		if evicted > 0 {
			l.Info("idle symbols evicted",
				applogger.Int("evicted", evicted),
				applogger.Int("remaining", remaining),
			)
		}
	})

	// Market source: WebSocket collector or Kafka consumer
	if a.collector != nil {
		go func() {
			if err := a.collector.Start(ctx); err != nil {
				l.Error("collector error", applogger.Error(err))
			}
		}()
		l.Info("collector started", applogger.Strings("symbols", a.cfg.Polygon.Symbols))
	}
	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	if err := a.httpServer.Start(); err != nil {
		l.Error("http server start error", applogger.Error(err))
		return err
	}

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	l.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services: sources first, then the
// pipeline so in-flight evaluations complete, then outputs.
func (a *App) shutdown(ctx context.Context) error {
	l := a.logger

	if a.collector != nil {
		if err := a.collector.Shutdown(ctx); err != nil {
			l.Warn("collector stop error", applogger.Error(err))
		}
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	if a.guard != nil {
		a.guard.Stop()
	}

	a.orch.Stop()
	a.hub.Close()

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		l.Error("http shutdown error", applogger.Error(err))
	}

	if a.sink != nil {
		if err := a.sink.Close(); err != nil {
			l.Warn("alert sink close error", applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	l.Info("shutdown complete")
	l.RemoveCollector()
	return nil
}
