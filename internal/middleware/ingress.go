package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"SwingScan/internal/domain/models"
	domrepo "SwingScan/internal/domain/repository"
	"SwingScan/pkg/util"
)

// Proc is the minimal processor interface the guard forwards to.
type Proc interface {
	Process(ctx context.Context, a *models.Aggregate) error
}

// IngressGuard sits between the market stream and the pipeline. It drops
// malformed messages, throttles per-symbol bursts, and buffers when the
// downstream is momentarily unavailable.
type IngressGuard struct {
	proc      Proc
	metrics   domrepo.Metrics
	maxRPS    int
	bufSize   int
	bufCh     chan *models.Aggregate
	stopCh    chan struct{}
	started   bool
	mu        sync.Mutex
	lastSeen  map[string]time.Time // per-symbol last accepted time
	lastPrune time.Time
}

// Throttle entries older than a second cannot suppress anything, so the
// map is swept on this cadence to stay bounded under a churning symbol
// universe.
const throttlePruneInterval = time.Minute

type GuardOption func(*IngressGuard)

// WithMaxRPS sets the max accepted messages per second per symbol.
func WithMaxRPS(n int) GuardOption {
	return func(g *IngressGuard) {
		if n > 0 {
			g.maxRPS = n
		}
	}
}

// WithBufferSize sets the retry buffer size for downstream outages.
func WithBufferSize(n int) GuardOption {
	return func(g *IngressGuard) {
		if n > 0 {
			g.bufSize = n
		}
	}
}

// NewIngressGuard creates a new guard in front of proc.
func NewIngressGuard(proc Proc, metrics domrepo.Metrics, opts ...GuardOption) *IngressGuard {
	g := &IngressGuard{
		proc:      proc,
		metrics:   metrics,
		maxRPS:    20,
		bufSize:   1000,
		bufCh:     make(chan *models.Aggregate, 1000),
		stopCh:    make(chan struct{}),
		lastSeen:  make(map[string]time.Time),
		lastPrune: time.Now(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.bufSize != cap(g.bufCh) {
		g.bufCh = make(chan *models.Aggregate, g.bufSize)
	}
	return g
}

// Start launches background flushing of buffered messages.
func (g *IngressGuard) Start(ctx context.Context) {
	g.mu.Lock()
	if g.started {
		g.mu.Unlock()
		return
	}
	g.started = true
	g.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-g.stopCh:
				return
			case a := <-g.bufCh:
				if a == nil {
					continue
				}
				if err := g.proc.Process(ctx, a); err != nil {
					if backoff < 2*time.Second {
						backoff *= 2
					}
					g.metrics.RecordError("ingress_flush")
					time.Sleep(backoff)
					// requeue if space; drop otherwise
					select {
					case g.bufCh <- a:
					default:
						g.metrics.RecordError("ingress_buffer_drop")
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop stops the background flushing.
func (g *IngressGuard) Stop() {
	g.mu.Lock()
	if !g.started {
		g.mu.Unlock()
		return
	}
	g.started = false
	g.mu.Unlock()
	close(g.stopCh)
}

// Process validates, throttles, and forwards one message, buffering on
// downstream errors. A malformed message is counted and dropped without
// touching symbol state.
func (g *IngressGuard) Process(ctx context.Context, a *models.Aggregate) error {
	start := time.Now()
	a.Symbol = util.NormalizeSymbol(a.Symbol)
	if err := validateAggregate(a); err != nil {
		g.metrics.RecordError("ingress_validate")
		return err
	}
	if !g.allow(a.Symbol, start) {
		g.metrics.RecordSuppression("ingress_throttle")
		return nil
	}

	if err := g.proc.Process(ctx, a); err != nil {
		g.metrics.RecordError("ingress_process")
		select {
		case g.bufCh <- a:
		default:
			g.metrics.RecordError("ingress_buffer_full")
		}
		return fmt.Errorf("ingress downstream: %w", err)
	}
	g.metrics.RecordLatency("ingress_process", time.Since(start).Seconds())
	return nil
}

func validateAggregate(a *models.Aggregate) error {
	if a == nil {
		return fmt.Errorf("aggregate nil")
	}
	if a.Symbol == "" {
		return fmt.Errorf("symbol empty")
	}
	if a.Timestamp <= 0 {
		return fmt.Errorf("timestamp invalid")
	}
	if a.Close < 0 || a.Volume < 0 {
		return fmt.Errorf("negative price/volume")
	}
	return nil
}

func (g *IngressGuard) allow(symbol string, now time.Time) bool {
	if g.maxRPS <= 0 {
		return true
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if now.Sub(g.lastPrune) >= throttlePruneInterval {
		for sym, seen := range g.lastSeen {
			if now.Sub(seen) >= time.Second {
				delete(g.lastSeen, sym)
			}
		}
		g.lastPrune = now
	}
	last := g.lastSeen[symbol]
	if last.IsZero() {
		g.lastSeen[symbol] = now
		return true
	}
	if now.Sub(last) < time.Second/time.Duration(g.maxRPS) {
		return false
	}
	g.lastSeen[symbol] = now
	return true
}
