package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

// ConsumerHook runs around message handling. BeforeHandle may rewrite the
// context, message, or payload; a non-nil error skips the handler and goes
// straight to OnError and offset commit.
type ConsumerHook interface {
	BeforeHandle(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error)
	AfterHandle(ctx context.Context, topic string, km kafka.Message, data []byte, err error)
	OnError(ctx context.Context, topic string, km kafka.Message, data []byte, err error)
}

// NoopHook is the default hook.
type NoopHook struct{}

func (NoopHook) BeforeHandle(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
	return ctx, km, data, nil
}

func (NoopHook) AfterHandle(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {
}

func (NoopHook) OnError(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {
}

type ctxKey string

const ctxHandleStart ctxKey = "kafka_handle_start"

// MetricsHook times message handling and reports each outcome through an
// injected callback, keeping this package free of a metrics dependency.
type MetricsHook struct {
	Observe func(topic string, seconds float64, failed bool)
}

func (h MetricsHook) BeforeHandle(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
	return context.WithValue(ctx, ctxHandleStart, time.Now()), km, data, nil
}

func (h MetricsHook) AfterHandle(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {
	if h.Observe == nil {
		return
	}
	var seconds float64
	if start, ok := ctx.Value(ctxHandleStart).(time.Time); ok {
		seconds = time.Since(start).Seconds()
	}
	h.Observe(topic, seconds, err != nil)
}

func (h MetricsHook) OnError(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {
}
