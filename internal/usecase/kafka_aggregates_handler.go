package usecase

import (
	"context"
	"encoding/json"

	"SwingScan/internal/domain/models"
	domrepo "SwingScan/internal/domain/repository"
	mid "SwingScan/internal/middleware"
	pkgkafka "SwingScan/pkg/kafka"
)

// KafkaAggregatesHandler consumes minute aggregates from Kafka and feeds
// them into the pipeline through the ingress guard, as an alternative to
// the WebSocket source.
type KafkaAggregatesHandler struct {
	topic   string
	guard   *mid.IngressGuard
	metrics domrepo.Metrics
}

func NewKafkaAggregatesHandler(topic string, guard *mid.IngressGuard, metrics domrepo.Metrics) *KafkaAggregatesHandler {
	return &KafkaAggregatesHandler{topic: topic, guard: guard, metrics: metrics}
}

func (h *KafkaAggregatesHandler) Topic() string { return h.topic }

// incoming message schema: {symbol, t, c, v}
func (h *KafkaAggregatesHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Symbol string  `json:"symbol"`
		T      int64   `json:"t"`
		C      float64 `json:"c"`
		V      float64 `json:"v"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if m.T > 1e11 { // ms
		m.T = m.T / 1000
	}

	return h.guard.Process(ctx, &models.Aggregate{
		Symbol:    m.Symbol,
		Timestamp: m.T,
		Close:     m.C,
		Volume:    m.V,
	})
}

var _ pkgkafka.MessageHandler = (*KafkaAggregatesHandler)(nil)
