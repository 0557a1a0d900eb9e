package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"SwingScan/internal/domain/models"
)

type nopMetrics struct{}

func (nopMetrics) RecordMessage(string)            {}
func (nopMetrics) RecordAdmission(string)          {}
func (nopMetrics) RecordAlert(string)              {}
func (nopMetrics) RecordSuppression(string)        {}
func (nopMetrics) RecordError(string)              {}
func (nopMetrics) RecordLastPrice(string, float64) {}
func (nopMetrics) RecordLatency(string, float64)   {}
func (nopMetrics) SetViewerCount(int)              {}
func (nopMetrics) SetTrackedSymbols(int)           {}

type captureProc struct {
	mu   sync.Mutex
	got  []*models.Aggregate
	fail bool
}

func (p *captureProc) Process(ctx context.Context, a *models.Aggregate) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("downstream unavailable")
	}
	p.got = append(p.got, a)
	return nil
}

func (p *captureProc) seen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.got)
}

func TestIngressDropsMalformed(t *testing.T) {
	proc := &captureProc{}
	g := NewIngressGuard(proc, nopMetrics{})
	ctx := context.Background()

	cases := []*models.Aggregate{
		nil,
		{Symbol: "", Timestamp: 1, Close: 1, Volume: 1},
		{Symbol: "AAPL", Timestamp: 0, Close: 1, Volume: 1},
		{Symbol: "AAPL", Timestamp: 1, Close: -1, Volume: 1},
		{Symbol: "AAPL", Timestamp: 1, Close: 1, Volume: -1},
	}
	for _, a := range cases {
		if err := g.Process(ctx, a); err == nil {
			t.Fatalf("expected validation error for %+v", a)
		}
	}
	if proc.seen() != 0 {
		t.Fatalf("malformed messages must not reach downstream")
	}
}

func TestIngressNormalizesSymbol(t *testing.T) {
	proc := &captureProc{}
	g := NewIngressGuard(proc, nopMetrics{})

	a := &models.Aggregate{Symbol: " nvax ", Timestamp: time.Now().Unix(), Close: 4.2, Volume: 100}
	if err := g.Process(context.Background(), a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if proc.got[0].Symbol != "NVAX" {
		t.Fatalf("symbol not normalized: %q", proc.got[0].Symbol)
	}
}

func TestIngressThrottlesPerSymbol(t *testing.T) {
	proc := &captureProc{}
	g := NewIngressGuard(proc, nopMetrics{}, WithMaxRPS(1))
	ctx := context.Background()
	ts := time.Now().Unix()

	for i := 0; i < 5; i++ {
		_ = g.Process(ctx, &models.Aggregate{Symbol: "AAPL", Timestamp: ts, Close: 1, Volume: 1})
	}
	// Another symbol has its own budget.
	_ = g.Process(ctx, &models.Aggregate{Symbol: "TSLA", Timestamp: ts, Close: 1, Volume: 1})

	if proc.seen() != 2 {
		t.Fatalf("expected 1 AAPL + 1 TSLA accepted, got %d", proc.seen())
	}
}

func TestIngressThrottleMapIsPruned(t *testing.T) {
	proc := &captureProc{}
	g := NewIngressGuard(proc, nopMetrics{}, WithMaxRPS(20))
	now := time.Now()

	g.allow("AAPL", now)
	g.allow("TSLA", now)
	g.allow("NVAX", now)
	if len(g.lastSeen) != 3 {
		t.Fatalf("expected 3 tracked symbols, got %d", len(g.lastSeen))
	}

	// Past the prune interval, stale entries are swept and only the new
	// arrival remains.
	later := now.Add(throttlePruneInterval + time.Second)
	g.allow("SAVA", later)
	if len(g.lastSeen) != 1 {
		t.Fatalf("expected stale throttle entries pruned, got %d", len(g.lastSeen))
	}
	if _, ok := g.lastSeen["SAVA"]; !ok {
		t.Fatalf("fresh entry must survive the prune")
	}
}

func TestIngressBuffersOnDownstreamFailure(t *testing.T) {
	proc := &captureProc{fail: true}
	g := NewIngressGuard(proc, nopMetrics{}, WithBufferSize(10))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g.Start(ctx)
	defer g.Stop()

	a := &models.Aggregate{Symbol: "AAPL", Timestamp: time.Now().Unix(), Close: 1, Volume: 1}
	if err := g.Process(ctx, a); err == nil {
		t.Fatalf("expected downstream error")
	}

	// Recover the downstream; the buffered message flushes.
	proc.mu.Lock()
	proc.fail = false
	proc.mu.Unlock()

	deadline := time.Now().Add(2 * time.Second)
	for proc.seen() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if proc.seen() != 1 {
		t.Fatalf("buffered message was not flushed")
	}
}
