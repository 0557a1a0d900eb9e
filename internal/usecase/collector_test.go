package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"SwingScan/internal/domain/models"
	mid "SwingScan/internal/middleware"
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

type fakeStream struct {
	aggs       chan *models.Aggregate
	errs       chan error
	connected  atomic.Bool
	reconnects atomic.Int64
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		aggs: make(chan *models.Aggregate, 16),
		errs: make(chan error, 1),
	}
}

func (f *fakeStream) Connect(ctx context.Context) error {
	f.connected.Store(true)
	return nil
}
func (f *fakeStream) Subscribe(ctx context.Context) error { return nil }
func (f *fakeStream) Read(ctx context.Context) (<-chan *models.Aggregate, <-chan error) {
	return f.aggs, f.errs
}
func (f *fakeStream) Reconnect(ctx context.Context) error {
	f.reconnects.Add(1)
	return nil
}
func (f *fakeStream) Close() error {
	f.connected.Store(false)
	return nil
}
func (f *fakeStream) IsConnected() bool { return f.connected.Load() }

type sink struct {
	mu  sync.Mutex
	got []*models.Aggregate
}

func (s *sink) Process(ctx context.Context, a *models.Aggregate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, a)
	return nil
}

func (s *sink) seen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

func TestCollectorForwardsThroughGuard(t *testing.T) {
	stream := newFakeStream()
	proc := &sink{}
	guard := mid.NewIngressGuard(proc, nopMetrics{})
	c := NewAggregateCollector(stream, nil, nopMetrics{}, guard)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !c.IsConnected() {
		t.Fatalf("stream should be connected after start")
	}

	stream.aggs <- &models.Aggregate{Symbol: "NVAX", Timestamp: time.Now().Unix(), Close: 4.2, Volume: 100}
	stream.aggs <- &models.Aggregate{Symbol: "SAVA", Timestamp: time.Now().Unix(), Close: 2.1, Volume: 200}

	deadline := time.Now().Add(2 * time.Second)
	for proc.seen() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if proc.seen() != 2 {
		t.Fatalf("expected 2 forwarded messages, got %d", proc.seen())
	}

	if err := c.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if c.IsConnected() {
		t.Fatalf("stream should be closed after shutdown")
	}
}

// flakyStream hands out fresh channels on every Read and can be told to
// refuse a number of reconnect attempts before coming back.
type flakyStream struct {
	mu        sync.Mutex
	failLeft  int
	attempts  int
	reads     int
	aggs      chan *models.Aggregate
	errs      chan error
	connected bool
}

func newFlakyStream(failures int) *flakyStream {
	return &flakyStream{failLeft: failures}
}

func (f *flakyStream) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = true
	return nil
}
func (f *flakyStream) Subscribe(ctx context.Context) error { return nil }
func (f *flakyStream) Read(ctx context.Context) (<-chan *models.Aggregate, <-chan error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	f.aggs = make(chan *models.Aggregate, 16)
	f.errs = make(chan error, 1)
	return f.aggs, f.errs
}
func (f *flakyStream) Reconnect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.failLeft > 0 {
		f.failLeft--
		return errors.New("dial: connection refused")
	}
	f.connected = true
	return nil
}
func (f *flakyStream) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	return nil
}
func (f *flakyStream) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// die simulates the read loop tearing down after a connection error.
func (f *flakyStream) die() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs <- errors.New("read: connection reset")
	close(f.aggs)
}

func (f *flakyStream) reconnectAttempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts
}

func (f *flakyStream) readCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

func (f *flakyStream) send(a *models.Aggregate) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aggs <- a
}

func TestCollectorReconnectsOnStreamError(t *testing.T) {
	stream := newFakeStream()
	proc := &sink{}
	guard := mid.NewIngressGuard(proc, nopMetrics{})
	c := NewAggregateCollector(stream, nil, nopMetrics{}, guard)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	stream.errs <- errors.New("read: connection reset")

	deadline := time.Now().Add(2 * time.Second)
	for stream.reconnects.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if stream.reconnects.Load() == 0 {
		t.Fatalf("collector should reconnect after a stream error")
	}
}

func TestCollectorRetriesUntilReconnectSucceeds(t *testing.T) {
	stream := newFlakyStream(3)
	proc := &sink{}
	guard := mid.NewIngressGuard(proc, nopMetrics{})
	c := NewAggregateCollector(stream, nil, nopMetrics{}, guard)
	c.retryDelay = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	stream.die()

	// three refusals, then the fourth attempt lands and Read is called
	// again for fresh channels
	deadline := time.Now().Add(2 * time.Second)
	for stream.readCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := stream.reconnectAttempts(); got < 4 {
		t.Fatalf("expected reconnect retries past the first failure, got %d attempt(s)", got)
	}
	if stream.readCount() < 2 {
		t.Fatalf("collector never resumed reading after reconnect")
	}

	stream.send(&models.Aggregate{Symbol: "NVAX", Timestamp: time.Now().Unix(), Close: 4.2, Volume: 100})
	deadline = time.Now().Add(2 * time.Second)
	for proc.seen() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if proc.seen() == 0 {
		t.Fatalf("aggregate was not forwarded after the stream recovered")
	}
}

func TestCollectorReconnectsOnClosedAggregateChannel(t *testing.T) {
	stream := newFlakyStream(0)
	proc := &sink{}
	guard := mid.NewIngressGuard(proc, nopMetrics{})
	c := NewAggregateCollector(stream, nil, nopMetrics{}, guard)
	c.retryDelay = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	stream.mu.Lock()
	close(stream.aggs)
	stream.mu.Unlock()

	deadline := time.Now().Add(2 * time.Second)
	for stream.reconnectAttempts() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if stream.reconnectAttempts() == 0 {
		t.Fatalf("collector should treat a closed stream channel as a disconnect")
	}
}
