package polygon

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

// aggServer upgrades one connection, counts pings, and hands the server
// side of the connection back to the test.
func aggServer(t *testing.T, pings *atomic.Int64) (*httptest.Server, chan *websocket.Conn) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	connCh := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.SetPingHandler(func(string) error {
			pings.Add(1)
			return nil
		})
		connCh <- conn
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	return srv, connCh
}

func TestReadDeliversAggregates(t *testing.T) {
	var pings atomic.Int64
	srv, connCh := aggServer(t, &pings)
	defer srv.Close()

	c := New("key", wsURL(srv), []string{"NVAX"}, time.Millisecond, time.Millisecond, time.Hour).(*Client)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := c.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer c.Close()
	if err := c.Subscribe(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	aggs, _ := c.Read(ctx)

	server := <-connCh
	frame := `[{"ev":"status","status":"auth_success"}]`
	if err := server.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Fatalf("write status: %v", err)
	}
	frame = `[{"ev":"A","sym":"NVAX","c":4.2,"v":1500,"e":1756700000000}]`
	if err := server.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Fatalf("write aggregate: %v", err)
	}

	select {
	case a := <-aggs:
		if a.Symbol != "NVAX" || a.Close != 4.2 || a.Volume != 1500 {
			t.Fatalf("unexpected aggregate: %+v", a)
		}
		if a.Timestamp != 1756700000 {
			t.Fatalf("timestamp not normalized to seconds: %d", a.Timestamp)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("aggregate never delivered")
	}
}

func TestPingLoopStopsWithReadLoop(t *testing.T) {
	var pings atomic.Int64
	srv, connCh := aggServer(t, &pings)
	defer srv.Close()

	c := New("key", wsURL(srv), []string{"NVAX"}, time.Millisecond, time.Millisecond, 5*time.Millisecond).(*Client)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := c.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer c.Close()
	if err := c.Subscribe(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	_, errs := c.Read(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for pings.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if pings.Load() == 0 {
		t.Fatalf("no pings observed while connected")
	}

	// Kill the connection server-side; the read loop ends and must take
	// the ping loop down with it.
	server := <-connCh
	_ = server.Close()
	select {
	case <-errs:
	case <-time.After(2 * time.Second):
		t.Fatalf("read loop did not report the closed connection")
	}

	settled := pings.Load()
	time.Sleep(100 * time.Millisecond)
	if got := pings.Load(); got > settled+1 {
		t.Fatalf("ping loop kept running after the read loop exited: %d extra ping(s)", got-settled)
	}
}
