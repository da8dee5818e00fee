package api

import (
	"net/http"
	"time"

	"github.com/datarhei/ffstats/event"
	"github.com/datarhei/ffstats/glob"
	"github.com/datarhei/ffstats/http/api"
	"github.com/datarhei/ffstats/http/handler/util"
	"github.com/datarhei/ffstats/log"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

// The WebSocketHandler type pushes the stats events to WebSocket clients.
type WebSocketHandler struct {
	events   event.EventSource
	upgrader websocket.Upgrader
	logger   log.Logger
}

// NewWebSocket returns a new WebSocket type
func NewWebSocket(events event.EventSource, logger log.Logger) *WebSocketHandler {
	h := &WebSocketHandler{
		events: events,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger,
	}

	if h.logger == nil {
		h.logger = log.New("")
	}

	return h
}

// Events upgrades the connection and writes every stats event as a JSON
// text message until the client goes away
func (h *WebSocketHandler) Events(c echo.Context) error {
	matcher, err := glob.Compile(util.DefaultQuery(c, "filter", ""))
	if err != nil {
		return api.Err(http.StatusBadRequest, "", "invalid filter: %s", err.Error())
	}

	evts, cancel, err := h.events.Events()
	if err != nil {
		return api.Err(http.StatusNotImplemented, "", "events are not available")
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader already responded with an error
		return nil
	}
	defer conn.Close()

	logger := h.logger.WithField("client", c.RealIP())
	logger.Debug().Log("WebSocket client connected")

	closed := make(chan struct{})

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	// Messages from the client are ignored, reading is required for
	// handling the control messages.
	go func() {
		defer close(closed)

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	evt := api.StatsEvent{}

	for {
		select {
		case <-closed:
			logger.Debug().Log("WebSocket client disconnected")
			return nil
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		case e, ok := <-evts:
			if !ok {
				conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(wsWriteWait))
				return nil
			}

			if !evt.Unmarshal(e) {
				continue
			}

			if !matcher.Match(evt.Source) {
				continue
			}

			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(evt); err != nil {
				logger.Debug().WithError(err).Log("Writing to WebSocket client failed")
				return nil
			}
		}
	}
}
