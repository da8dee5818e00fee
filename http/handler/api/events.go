package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/datarhei/ffstats/encoding/json"
	"github.com/datarhei/ffstats/event"
	"github.com/datarhei/ffstats/glob"
	"github.com/datarhei/ffstats/http/api"
	"github.com/datarhei/ffstats/http/handler/util"

	"github.com/labstack/echo/v4"
)

// The EventsHandler type provides handler functions for streaming the stats events.
type EventsHandler struct {
	events    event.EventSource
	keepalive time.Duration
}

// NewEvents returns a new EventsHandler type
func NewEvents(events event.EventSource) *EventsHandler {
	return &EventsHandler{
		events:    events,
		keepalive: 5 * time.Second,
	}
}

// Events returns a stream of stats events, either as Server-Sent-Events or,
// if the client accepts application/x-json-stream, as JSON lines
func (h *EventsHandler) Events(c echo.Context) error {
	matcher, err := glob.Compile(util.DefaultQuery(c, "filter", ""))
	if err != nil {
		return api.Err(http.StatusBadRequest, "", "invalid filter: %s", err.Error())
	}

	evts, cancel, err := h.events.Events()
	if err != nil {
		return api.Err(http.StatusNotImplemented, "", "events are not available")
	}
	defer cancel()

	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()

	req := c.Request()
	reqctx := req.Context()

	contentType := "text/event-stream"
	accept := req.Header.Get(echo.HeaderAccept)
	if strings.Contains(accept, "application/x-json-stream") {
		contentType = "application/x-json-stream"
	}

	res := c.Response()

	res.Header().Set(echo.HeaderContentType, contentType+"; charset=UTF-8")
	res.Header().Set(echo.HeaderCacheControl, "no-store")
	res.Header().Set(echo.HeaderConnection, "close")
	res.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(res)
	enc.SetIndent("", "")

	sse := contentType == "text/event-stream"

	keepalive := func() {
		if sse {
			res.Write([]byte(":keepalive\n\n"))
		} else {
			res.Write([]byte("{\"name\":\"keepalive\"}\n"))
		}
		res.Flush()
	}

	keepalive()

	evt := api.StatsEvent{}

	for {
		select {
		case <-reqctx.Done():
			return nil
		case <-ticker.C:
			keepalive()
		case e, ok := <-evts:
			if !ok {
				return nil
			}

			if !evt.Unmarshal(e) {
				continue
			}

			if !matcher.Match(evt.Source) {
				continue
			}

			if sse {
				res.Write([]byte("event: " + evt.Name + "\ndata: "))
			}

			if err := enc.Encode(evt); err != nil {
				return err
			}

			if sse {
				res.Write([]byte("\n"))
			}

			res.Flush()
		}
	}
}
