package usecase

import (
	"context"
	"time"

	"SwingScan/internal/domain/models"
	drepo "SwingScan/internal/domain/repository"
	mid "SwingScan/internal/middleware"
	"SwingScan/internal/pipeline"
)

// AggregateCollector connects the market stream to the pipeline through
// the ingress guard and keeps the stream alive across read failures.
type AggregateCollector struct {
	stream     drepo.MarketStream
	orch       *pipeline.Orchestrator
	metrics    drepo.Metrics
	guard      *mid.IngressGuard
	retryDelay time.Duration
}

// NewAggregateCollector creates a new AggregateCollector instance.
func NewAggregateCollector(stream drepo.MarketStream, orch *pipeline.Orchestrator, metrics drepo.Metrics, guard *mid.IngressGuard) *AggregateCollector {
	return &AggregateCollector{stream: stream, orch: orch, metrics: metrics, guard: guard, retryDelay: time.Second}
}

// IsConnected returns true if the market stream is connected.
func (c *AggregateCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *AggregateCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	if c.guard != nil {
		c.guard.Start(ctx)
	}
	aggCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, aggCh, errCh)
	return nil
}

func (c *AggregateCollector) consume(ctx context.Context, aggCh <-chan *models.Aggregate, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errCh:
			if err != nil {
				c.metrics.RecordError("stream")
			}
			var ok bool
			if aggCh, errCh, ok = c.reestablish(ctx); !ok {
				return
			}
		case a, ok := <-aggCh:
			if !ok {
				if aggCh, errCh, ok = c.reestablish(ctx); !ok {
					return
				}
				continue
			}
			if a == nil {
				continue
			}
			if c.guard != nil {
				_ = c.guard.Process(ctx, a)
			} else {
				_ = c.orch.Process(ctx, a)
			}
		}
	}
}

// reestablish retries the stream until it comes back or ctx is
// cancelled. The stream's own Reconnect paces its dial attempts;
// retryDelay only keeps a stream that fails instantly from spinning.
func (c *AggregateCollector) reestablish(ctx context.Context) (<-chan *models.Aggregate, <-chan error, bool) {
	for {
		if ctx.Err() != nil {
			return nil, nil, false
		}
		if err := c.stream.Reconnect(ctx); err == nil {
			aggCh, errCh := c.stream.Read(ctx)
			return aggCh, errCh, true
		}
		c.metrics.RecordError("stream_reconnect")
		select {
		case <-ctx.Done():
			return nil, nil, false
		case <-time.After(c.retryDelay):
		}
	}
}

// Shutdown stops the guard and closes the stream.
func (c *AggregateCollector) Shutdown(ctx context.Context) error {
	if c.guard != nil {
		c.guard.Stop()
	}
	return c.stream.Close()
}
