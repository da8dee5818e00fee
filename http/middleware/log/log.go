// Package log implements a logging middleware
package log

import (
	"net/http"
	"strings"
	"time"

	"github.com/datarhei/ffstats/log"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const progressPrefix = "/api/v1/progress/"

type Config struct {
	// Skipper defines a function to skip middleware.
	Skipper middleware.Skipper
	Logger  log.Logger
}

// DefaultSkipper skips the requests of health checks and metric scrapers.
func DefaultSkipper(c echo.Context) bool {
	path := c.Request().URL.Path

	return path == "/ping" || path == "/metrics"
}

var DefaultConfig = Config{
	Skipper: DefaultSkipper,
	Logger:  log.New("HTTP"),
}

func New() echo.MiddlewareFunc {
	return NewWithConfig(DefaultConfig)
}

// NewWithConfig returns a middleware for logging HTTP requests
func NewWithConfig(config Config) echo.MiddlewareFunc {
	if config.Skipper == nil {
		config.Skipper = DefaultConfig.Skipper
	}

	if config.Logger == nil {
		config.Logger = DefaultConfig.Logger
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if config.Skipper(c) {
				return next(c)
			}

			start := time.Now()

			req := c.Request()
			res := c.Response()

			path := req.URL.Path
			if len(req.URL.RawQuery) != 0 {
				path += "?" + req.URL.RawQuery
			}

			if err := next(c); err != nil {
				c.Error(err)
			}

			fields := log.Fields{
				"client":      c.RealIP(),
				"method":      req.Method,
				"path":        path,
				"proto":       req.Proto,
				"status":      res.Status,
				"status_text": http.StatusText(res.Status),
				"size_bytes":  res.Size,
				"latency_ms":  time.Since(start).Milliseconds(),
				"user_agent":  req.Header.Get("User-Agent"),
			}

			// A progress upload lasts as long as the ffmpeg process
			ingest := strings.HasPrefix(req.URL.Path, progressPrefix)
			if ingest {
				fields["source"] = "http:" + strings.TrimPrefix(req.URL.Path, progressPrefix)
				fields["received_bytes"] = req.ContentLength
			}

			logger := config.Logger.WithFields(fields)

			switch {
			case res.Status >= 500:
				logger.Error().Log("")
			case res.Status >= 400:
				logger.Warn().Log("")
			case ingest:
				logger.Info().Log("Progress upload ended")
			default:
				logger.Debug().Log("")
			}

			return nil
		}
	}
}
