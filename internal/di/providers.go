package di

import (
	"context"
	"fmt"
	"time"

	"SwingScan/internal/domain/repository"
	"SwingScan/internal/domain/service"
	"SwingScan/internal/handler/api"
	"SwingScan/internal/hub"
	mid "SwingScan/internal/middleware"
	"SwingScan/internal/pipeline"
	"SwingScan/internal/providers"
	internalrepo "SwingScan/internal/repository"
	"SwingScan/internal/scoring"
	icache "SwingScan/internal/service/cache"
	"SwingScan/internal/service/polygon"
	"SwingScan/internal/service/ratelimit"
	"SwingScan/internal/state"
	"SwingScan/internal/usecase"
	pkgch "SwingScan/pkg/clickhouse"
	"SwingScan/pkg/config"
	xhttp "SwingScan/pkg/http"
	pkgkafka "SwingScan/pkg/kafka"
	applogger "SwingScan/pkg/logger"
	"SwingScan/pkg/metrics"
	"SwingScan/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	level := "info"
	format := "json"
	if cfg.Environment == "development" {
		level = "debug"
		format = "console"
	}
	return applogger.New(&applogger.Config{Level: level, Format: format, Output: "stdout"})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideStore creates the per-symbol state store.
func ProvideStore(cfg *config.Config) *state.Store {
	return state.NewStore(
		cfg.Detection.EMASmoothing,
		cfg.Detection.InactivityHorizon,
		cfg.Detection.RegressionTolerance,
	)
}

// ProvideProviderCache picks Redis when configured, in-process TTL otherwise.
func ProvideProviderCache(cfg *config.Config) icache.BytesCache {
	r := cfg.Providers.Cache.Redis
	if r.Enabled {
		return icache.NewRedisCache(icache.RedisConfig{
			Addr:     r.Addr,
			Password: r.Password,
			DB:       r.DB,
		})
	}
	return icache.NewTTLCache()
}

// ProvideAggregator builds the signal provider clients and the aggregator.
func ProvideAggregator(cfg *config.Config, c icache.BytesCache, m repository.Metrics, l *applogger.Logger) *scoring.Aggregator {
	base := providers.NewHTTPServiceBase(cfg, c)
	var (
		vt   service.VolumeAwareSource = providers.NewHTTPTechnicalSource(cfg, base)
		cat  service.SignalSource      = providers.NewHTTPCatalystSource(base)
		sq   service.SignalSource      = providers.NewHTTPShortSqueezeSource(base)
		fund service.SignalSource      = providers.NewHTTPFundamentalSource(base)
		risk service.RiskChecker       = providers.NewHTTPRiskChecker(base)
	)
	return scoring.NewAggregator(cfg, vt, cat, sq, fund, risk, m, l)
}

// ProvideHub creates the alert broadcast hub.
func ProvideHub(cfg *config.Config, m repository.Metrics, l *applogger.Logger) *hub.Hub {
	return hub.New(cfg.Alerts.RingBufferSize, cfg.Alerts.ViewerQueueSize, m, l)
}

// ProvideClickHouseClient creates a ClickHouse client when the archive is
// enabled, nil otherwise.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithAddress(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db := cfg.ClickHouse.Database
	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS " + db,
		"CREATE TABLE IF NOT EXISTS " + db + ".swing_alerts (id String, created_at DateTime, symbol String, total_score Float64, catalyst_type String, message String, breakdown String) ENGINE=MergeTree ORDER BY (created_at, symbol)",
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideAlertArchive creates the ClickHouse archive repository.
func ProvideAlertArchive(chClient *pkgch.Client, cfg *config.Config) repository.AlertArchive {
	if chClient == nil {
		return nil
	}
	return internalrepo.NewClickHouseAlertArchive(chClient.DB(), cfg.ClickHouse.Database+".swing_alerts")
}

// ProvideKafkaProducer creates a Kafka producer for the alert sink, nil
// when no alerts topic is configured.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if len(cfg.Kafka.Brokers) == 0 || cfg.Kafka.AlertsTopic == "" {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideAlertSink creates the Kafka alert sink.
func ProvideAlertSink(producer *pkgkafka.Producer, cfg *config.Config) repository.AlertSink {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaAlertSink(producer, cfg.Kafka.AlertsTopic)
}

// ProvideOrchestrator assembles the full pipeline.
func ProvideOrchestrator(
	cfg *config.Config,
	store *state.Store,
	scorer *scoring.Aggregator,
	h *hub.Hub,
	sink repository.AlertSink,
	archive repository.AlertArchive,
	m repository.Metrics,
	l *applogger.Logger,
) *pipeline.Orchestrator {
	admission := pipeline.NewAdmissionFilter(store, cfg.Detection.MinVolumeToConsider, cfg.Detection.PerSymbolCooldown)
	dedup := pipeline.NewDeduplicator(cfg.Alerts.DeduplicationWindow, cfg.Alerts.OverrideMode, cfg.Alerts.OverrideMargin)
	limiter := ratelimit.New()
	return pipeline.NewOrchestrator(cfg, store, admission, scorer, dedup, limiter, h, sink, archive, m, l)
}

// ProvideIngressGuard places the validation/throttle guard in front of the
// pipeline.
func ProvideIngressGuard(orch *pipeline.Orchestrator, m repository.Metrics, cfg *config.Config) *mid.IngressGuard {
	opts := []mid.GuardOption{mid.WithBufferSize(2000)}
	if cfg.Detection.IngressMaxRPS > 0 {
		opts = append(opts, mid.WithMaxRPS(cfg.Detection.IngressMaxRPS))
	}
	return mid.NewIngressGuard(orch, m, opts...)
}

// ProvidePolygonStream creates the Polygon WebSocket stream.
func ProvidePolygonStream(cfg *config.Config) repository.MarketStream {
	return polygon.New(
		cfg.Polygon.APIKey,
		cfg.Polygon.WebSocketURL,
		cfg.Polygon.Symbols,
		cfg.Polygon.ReconnectDelay,
		cfg.Polygon.MaxBackoff,
		cfg.Polygon.PingInterval,
	)
}

// ProvideCollector creates the stream collector when the WebSocket source
// is selected.
func ProvideCollector(cfg *config.Config, stream repository.MarketStream, orch *pipeline.Orchestrator, m repository.Metrics, guard *mid.IngressGuard) *usecase.AggregateCollector {
	if cfg.Source.Type != "websocket" {
		return nil
	}
	return usecase.NewAggregateCollector(stream, orch, m, guard)
}

// ProvideKafkaConsumer creates a Kafka consumer when the Kafka source is
// selected.
func ProvideKafkaConsumer(cfg *config.Config, m repository.Metrics, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if cfg.Source.Type != "kafka" {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.MetricsHook{
		Observe: func(topic string, seconds float64, failed bool) {
			m.RecordLatency("kafka_consume", seconds)
			if failed {
				m.RecordError("kafka_consume")
			}
		},
	})
	return consumer, nil
}

// ProvideKafkaAggregatesHandler registers the handler for the inbound
// aggregates topic.
func ProvideKafkaAggregatesHandler(guard *mid.IngressGuard, m repository.Metrics, cfg *config.Config) *usecase.KafkaAggregatesHandler {
	return usecase.NewKafkaAggregatesHandler(cfg.Kafka.Topic, guard, m)
}

// ProvideHTTPHandler creates the alert API handler.
func ProvideHTTPHandler(l *applogger.Logger, orch *pipeline.Orchestrator, h *hub.Hub, archive repository.AlertArchive, collector *usecase.AggregateCollector) xhttp.Handler {
	return api.NewAlertsEchoHandler(l, orch, h, archive, collector)
}

// logPublisher adapts the Kafka producer to the log collector's publisher.
type logPublisher struct {
	producer *pkgkafka.Producer
}

func (p *logPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, nil, payload)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	store *state.Store,
	orch *pipeline.Orchestrator,
	guard *mid.IngressGuard,
	h *hub.Hub,
	collector *usecase.AggregateCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaAggregatesHandler,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
	sink repository.AlertSink,
	handler xhttp.Handler,
) *server.App {
	if producer != nil && cfg.Environment != "development" {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          "logs.aggregated",
			Publisher:      &logPublisher{producer: producer},
		})
	}
	return server.New(cfg, l, store, orch, guard, h, collector, consumer, kh, chClient, sink, handler)
}
