package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"SwingScan/internal/domain/models"
	drepo "SwingScan/internal/domain/repository"
	"SwingScan/internal/hub"
	"SwingScan/internal/pipeline"
	"SwingScan/internal/usecase"
	xhttp "SwingScan/pkg/http"
	xlogger "SwingScan/pkg/logger"
	"SwingScan/pkg/util"
)

// AlertsEchoHandler exposes the alert feed over HTTP and WebSocket.
type AlertsEchoHandler struct {
	logger    *xlogger.Logger
	orch      *pipeline.Orchestrator
	hub       *hub.Hub
	archive   drepo.AlertArchive // optional
	collector *usecase.AggregateCollector
	upgrader  websocket.Upgrader
}

func NewAlertsEchoHandler(logger *xlogger.Logger, orch *pipeline.Orchestrator, h *hub.Hub, archive drepo.AlertArchive, collector *usecase.AggregateCollector) *AlertsEchoHandler {
	return &AlertsEchoHandler{
		logger:    logger,
		orch:      orch,
		hub:       h,
		archive:   archive,
		collector: collector,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (h *AlertsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/alerts", h.RecentAlerts)
	g.POST("/score", h.Score)
	g.POST("/check", h.Check)
	g.GET("/health", h.Health)
	e.GET("/ws/alerts", h.Stream)
}

// RecentAlerts serves recent alerts from the in-memory ring, falling back
// to the archive for windows past the ring.
func (h *AlertsEchoHandler) RecentAlerts(c echo.Context) error {
	req := &models.RecentAlertsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	var since time.Time
	if req.Since != "" {
		t, ok := util.ParseTime(req.Since)
		if !ok {
			return xhttp.BadRequestResponse(c, "since must be RFC3339 or unix seconds")
		}
		since = t
	}

	alerts := h.hub.Recent(req.Limit, since)
	if len(alerts) < req.Limit && h.archive != nil {
		archived, err := h.archive.Recent(c.Request().Context(), req.Limit, since)
		if err != nil {
			h.logger.Warn("alert archive query failed", xlogger.Error(err))
		} else if len(archived) > len(alerts) {
			alerts = archived
		}
	}
	return xhttp.SuccessResponse(c, alerts)
}

// Score runs an on-demand evaluation and returns the breakdown without
// publishing anything.
func (h *AlertsEchoHandler) Score(c echo.Context) error {
	req := &models.ScoreRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	b, _, _, err := h.orch.CheckNow(c.Request().Context(), req.Symbol, req.Volume, false)
	if err != nil {
		h.logger.Error("score evaluation error", xlogger.Error(err), xlogger.String("symbol", req.Symbol))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("evaluation failed").WithError(err))
	}
	return xhttp.SuccessResponse(c, b)
}

// Check runs an on-demand evaluation through the full alert path: a
// qualifying result goes through dedup and the rate cap and, if admitted,
// is broadcast like any streaming alert.
func (h *AlertsEchoHandler) Check(c echo.Context) error {
	req := &models.CheckRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	b, alert, suppressed, err := h.orch.CheckNow(c.Request().Context(), req.Symbol, req.Volume, true)
	if err != nil {
		h.logger.Error("check evaluation error", xlogger.Error(err), xlogger.String("symbol", req.Symbol))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("evaluation failed").WithError(err))
	}
	return xhttp.SuccessResponse(c, echo.Map{
		"breakdown":  b,
		"alert":      alert,
		"suppressed": suppressed,
	})
}

// Health reports stream, pipeline, and archive status.
func (h *AlertsEchoHandler) Health(c echo.Context) error {
	status := echo.Map{
		"status":  "ok",
		"viewers": h.hub.ViewerCount(),
	}
	if h.collector != nil {
		status["stream_connected"] = h.collector.IsConnected()
		if !h.collector.IsConnected() {
			status["status"] = "degraded"
		}
	}
	if h.archive != nil {
		if err := h.archive.Health(c.Request().Context()); err != nil {
			status["archive"] = "unreachable"
			status["status"] = "degraded"
		} else {
			status["archive"] = "ok"
		}
	}
	return xhttp.SuccessResponse(c, status)
}

// Stream upgrades to WebSocket and streams the alert feed: ring replay
// first, live alerts after. The connection closes when the viewer is
// evicted or the hub shuts down.
func (h *AlertsEchoHandler) Stream(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	viewer := h.hub.Register()
	defer h.hub.Unregister(viewer)
	defer conn.Close()

	// Reader drains control frames and unblocks the writer on disconnect.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case alert, ok := <-viewer.Alerts():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "feed closed"),
					time.Now().Add(time.Second))
				return nil
			}
			if err := conn.WriteJSON(alert); err != nil {
				return nil
			}
		case <-done:
			return nil
		}
	}
}
