package hub

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"SwingScan/internal/domain/models"
	"SwingScan/internal/domain/repository"
	"SwingScan/pkg/logger"
)

// Viewer is one connected consumer of the alert stream. Its channel is
// closed by the hub on eviction, unregistration, or shutdown; a closed
// channel is the disconnect signal.
type Viewer struct {
	ID          string
	ConnectedAt time.Time
	ch          chan *models.Alert
}

// Alerts returns the viewer's receive channel. It carries the ring replay
// first, then live alerts in publish order.
func (v *Viewer) Alerts() <-chan *models.Alert {
	return v.ch
}

// Hub fans accepted alerts out to every registered viewer and keeps a
// bounded ring of recent alerts for replay. Publish never blocks: a viewer
// whose queue is full is evicted instead of stalling the others.
type Hub struct {
	mu      sync.Mutex
	viewers map[string]*Viewer
	closed  bool

	ring     []*models.Alert
	ringCap  int
	queueCap int

	metrics repository.Metrics
	logger  *logger.Logger
}

func New(ringCap, queueCap int, metrics repository.Metrics, log *logger.Logger) *Hub {
	return &Hub{
		viewers:  make(map[string]*Viewer),
		ring:     make([]*models.Alert, 0, ringCap),
		ringCap:  ringCap,
		queueCap: queueCap,
		metrics:  metrics,
		logger:   log,
	}
}

// Register attaches a new viewer. The current ring contents are queued to
// it immediately, oldest first, so the consumer sees replay before live.
func (h *Hub) Register() *Viewer {
	h.mu.Lock()
	defer h.mu.Unlock()

	v := &Viewer{
		ID:          uuid.NewString(),
		ConnectedAt: time.Now(),
		// Sized to hold a full replay plus the live queue so a freshly
		// registered viewer is never evicted by its own backlog.
		ch: make(chan *models.Alert, h.ringCap+h.queueCap),
	}
	if h.closed {
		close(v.ch)
		return v
	}

	for _, a := range h.ring {
		v.ch <- a
	}
	h.viewers[v.ID] = v
	h.metrics.SetViewerCount(len(h.viewers))
	h.logger.Info("viewer registered",
		logger.String("viewer_id", v.ID),
		logger.Int("replayed", len(h.ring)),
	)
	return v
}

// Unregister detaches a viewer. Safe to call concurrently with Publish and
// idempotent for viewers already evicted.
func (h *Hub) Unregister(v *Viewer) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.viewers[v.ID]; !ok {
		return
	}
	delete(h.viewers, v.ID)
	close(v.ch)
	h.metrics.SetViewerCount(len(h.viewers))
	h.logger.Info("viewer unregistered", logger.String("viewer_id", v.ID))
}

// Publish appends the alert to the ring and delivers it to every viewer.
// Viewers that cannot keep up lose their slot, not the pipeline's time.
func (h *Hub) Publish(a *models.Alert) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	if len(h.ring) == h.ringCap {
		copy(h.ring, h.ring[1:])
		h.ring[len(h.ring)-1] = a
	} else {
		h.ring = append(h.ring, a)
	}

	for id, v := range h.viewers {
		select {
		case v.ch <- a:
		default:
			delete(h.viewers, id)
			close(v.ch)
			h.logger.Warn("viewer evicted, queue full", logger.String("viewer_id", id))
		}
	}
	h.metrics.SetViewerCount(len(h.viewers))
}

// Recent returns up to limit alerts from the ring, newest last, optionally
// filtered to those created after since.
func (h *Hub) Recent(limit int, since time.Time) []*models.Alert {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]*models.Alert, 0, len(h.ring))
	for _, a := range h.ring {
		if !since.IsZero() && !a.CreatedAt.After(since) {
			continue
		}
		out = append(out, a)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

func (h *Hub) ViewerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.viewers)
}

// Close disconnects every viewer and rejects further publishes.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, v := range h.viewers {
		delete(h.viewers, id)
		close(v.ch)
	}
	h.metrics.SetViewerCount(0)
}
