package polygon

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"SwingScan/internal/domain/models"
	drepo "SwingScan/internal/domain/repository"

	"github.com/gorilla/websocket"
)

// Client implements a MarketStream backed by the Polygon aggregates
// WebSocket. Authentication is an explicit message after connect, and
// subscriptions use the "A.<symbol>" channel per symbol ("A.*" for all).
type Client struct {
	apiKey         string
	websocketURL   string
	symbols        []string
	reconnectDelay time.Duration
	maxBackoff     time.Duration
	pingInterval   time.Duration

	mu        sync.Mutex // guards conn, connected, and all writes to conn
	conn      *websocket.Conn
	connected bool
	backoff   time.Duration
}

// New creates a new Polygon MarketStream.
func New(apiKey, websocketURL string, symbols []string, reconnectDelay, maxBackoff, pingInterval time.Duration) drepo.MarketStream {
	return &Client{
		apiKey:         apiKey,
		websocketURL:   websocketURL,
		symbols:        symbols,
		reconnectDelay: reconnectDelay,
		maxBackoff:     maxBackoff,
		pingInterval:   pingInterval,
		backoff:        reconnectDelay,
	}
}

// Connect establishes the WebSocket connection and authenticates.
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.websocketURL, nil)
	if err != nil {
		return fmt.Errorf("polygon connect: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	auth := map[string]string{"action": "auth", "params": c.apiKey}
	if err := conn.WriteJSON(auth); err != nil {
		c.conn = nil
		c.mu.Unlock()
		_ = conn.Close()
		return fmt.Errorf("polygon auth: %w", err)
	}
	c.connected = true
	c.backoff = c.reconnectDelay
	c.mu.Unlock()

	log.Printf("polygon: connected")
	return nil
}

// Subscribe subscribes to per-symbol aggregate channels.
func (c *Client) Subscribe(ctx context.Context) error {
	channels := make([]string, 0, len(c.symbols))
	for _, s := range c.symbols {
		channels = append(channels, "A."+s)
	}
	msg := map[string]string{"action": "subscribe", "params": strings.Join(channels, ",")}
	if err := c.writeJSON(msg); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	log.Printf("polygon: subscribed %s", msg["params"])
	return nil
}

// writeJSON serializes control-frame writers; gorilla permits only one
// concurrent writer per connection.
func (c *Client) writeJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || !c.connected {
		return fmt.Errorf("polygon not connected")
	}
	return c.conn.WriteJSON(v)
}

func (c *Client) ping() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil && c.connected {
		_ = c.conn.WriteMessage(websocket.PingMessage, nil)
	}
}

func (c *Client) current() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

type pgAggregate struct {
	Ev     string  `json:"ev"`
	Sym    string  `json:"sym"`
	Close  float64 `json:"c"`
	Volume float64 `json:"v"`
	End    int64   `json:"e"` // ms
}

// Read streams Aggregate events and errors. The ping loop lives only as
// long as this Read's read loop, so a reconnect does not leave a stray
// pinger writing to the new connection.
func (c *Client) Read(ctx context.Context) (<-chan *models.Aggregate, <-chan error) {
	aggs := make(chan *models.Aggregate, 1024)
	errs := make(chan error, 1)
	done := make(chan struct{})

	// ping loop
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				c.ping()
			}
		}
	}()

	// read loop
	go func() {
		defer close(done)
		defer close(aggs)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				conn := c.current()
				if conn == nil {
					errs <- fmt.Errorf("polygon conn nil")
					return
				}
				_, b, err := conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("polygon read: %w", err)
					return
				}
				var events []pgAggregate
				if err := json.Unmarshal(b, &events); err != nil {
					// status and auth frames are not aggregate arrays
					continue
				}
				for _, e := range events {
					if e.Ev != "A" {
						continue
					}
					agg := &models.Aggregate{
						Symbol:    e.Sym,
						Timestamp: e.End / 1000,
						Close:     e.Close,
						Volume:    e.Volume,
					}
					select {
					case aggs <- agg:
					default:
						// drop on backpressure
					}
				}
			}
		}
	}()

	return aggs, errs
}

// Reconnect closes and reconnects with exponential backoff up to the
// configured ceiling.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()

	c.mu.Lock()
	delay := c.backoff
	c.backoff *= 2
	if c.backoff > c.maxBackoff {
		c.backoff = c.maxBackoff
	}
	c.mu.Unlock()

	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}
