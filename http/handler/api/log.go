package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/datarhei/ffstats/encoding/json"
	"github.com/datarhei/ffstats/http/api"
	"github.com/datarhei/ffstats/http/handler/util"
	"github.com/datarhei/ffstats/log"

	"github.com/labstack/echo/v4"
)

// The LogHandler type provides handler functions for reading the application log
type LogHandler struct {
	buffer    log.BufferWriter
	events    log.ChannelWriter
	keepalive time.Duration
}

// NewLog return a new Log type. You have to provide log buffer. The events
// are optional and required for streaming the log.
func NewLog(buffer log.BufferWriter, events log.ChannelWriter) *LogHandler {
	l := &LogHandler{
		buffer:    buffer,
		events:    events,
		keepalive: 5 * time.Second,
	}

	if l.buffer == nil {
		l.buffer = log.NewBufferWriter(log.Lsilent, 1)
	}

	return l
}

// Log returns the last log lines, either formatted (format=console) or as
// objects (format=raw)
func (p *LogHandler) Log(c echo.Context) error {
	format := util.DefaultQuery(c, "format", "console")

	events := p.buffer.Events()

	if format == "raw" {
		lines := make([]map[string]interface{}, len(events))

		for i, e := range events {
			lines[i] = rawEvent(e)
		}

		return c.JSON(http.StatusOK, lines)
	}

	formatter := log.NewConsoleFormatter(false)

	lines := make([]string, len(events))

	for i, e := range events {
		lines[i] = strings.TrimSpace(formatter.String(e))
	}

	return c.JSON(http.StatusOK, lines)
}

// Stream writes the log events as JSON lines as they are logged, optionally
// filtered by the component (?component=UDP)
func (p *LogHandler) Stream(c echo.Context) error {
	if p.events == nil {
		return api.Err(http.StatusNotImplemented, "", "log streaming is not available")
	}

	component := strings.ToLower(util.DefaultQuery(c, "component", ""))

	evts, cancel := p.events.Subscribe()
	defer cancel()

	ticker := time.NewTicker(p.keepalive)
	defer ticker.Stop()

	reqctx := c.Request().Context()

	res := c.Response()

	res.Header().Set(echo.HeaderContentType, "application/x-json-stream; charset=UTF-8")
	res.Header().Set(echo.HeaderCacheControl, "no-store")
	res.Header().Set(echo.HeaderConnection, "close")
	res.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(res)
	enc.SetIndent("", "")

	res.Write([]byte("{\"event\":\"keepalive\"}\n"))
	res.Flush()

	for {
		select {
		case <-reqctx.Done():
			return nil
		case <-ticker.C:
			res.Write([]byte("{\"event\":\"keepalive\"}\n"))
			res.Flush()
		case e, ok := <-evts:
			if !ok {
				return nil
			}

			if len(component) != 0 && strings.ToLower(e.Component) != component {
				continue
			}

			if err := enc.Encode(rawEvent(&e)); err != nil {
				return err
			}

			res.Flush()
		}
	}
}

func rawEvent(e *log.Event) map[string]interface{} {
	line := map[string]interface{}{}

	for k, v := range e.Data {
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		line[k] = v
	}

	line["ts"] = e.Time
	line["level"] = e.Level.String()
	line["component"] = e.Component

	if len(e.Caller) != 0 {
		line["caller"] = e.Caller
	}

	if len(e.Message) != 0 {
		line["message"] = e.Message
	}

	return line
}
