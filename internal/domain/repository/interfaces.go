package repository

import (
	"context"
	"time"

	"SwingScan/internal/domain/models"
)

type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Aggregate, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// AlertSink publishes accepted alerts to an external transport (Kafka).
type AlertSink interface {
	Publish(ctx context.Context, a *models.Alert) error
	Close() error
}

// AlertArchive persists accepted alerts for queries past the in-memory
// replay buffer.
type AlertArchive interface {
	Insert(ctx context.Context, a *models.Alert) error
	Recent(ctx context.Context, limit int, since time.Time) ([]*models.Alert, error)
	Health(ctx context.Context) error
	Close() error
}

type Metrics interface {
	RecordMessage(symbol string)
	RecordAdmission(symbol string)
	RecordAlert(symbol string)
	RecordSuppression(kind string)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
	SetViewerCount(n int)
	SetTrackedSymbols(n int)
}
