// Package http assembles the HTTP API of ffstats.
package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/datarhei/ffstats/config/store"
	"github.com/datarhei/ffstats/event"
	"github.com/datarhei/ffstats/history"
	"github.com/datarhei/ffstats/http/errorhandler"
	"github.com/datarhei/ffstats/http/handler"
	api "github.com/datarhei/ffstats/http/handler/api"
	httplog "github.com/datarhei/ffstats/http/log"
	"github.com/datarhei/ffstats/http/validator"
	"github.com/datarhei/ffstats/log"
	"github.com/datarhei/ffstats/prometheus"
	"github.com/datarhei/ffstats/source"

	mwlog "github.com/datarhei/ffstats/http/middleware/log"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type Config struct {
	Logger     log.Logger
	LogBuffer  log.BufferWriter
	LogEvents  log.ChannelWriter
	Registry   source.Registry
	History    history.Store
	Events     event.EventSource
	Prometheus prometheus.Reader
	Config     store.Store

	// Name, ID, and CreatedAt identify this instance in /api
	Name      string
	ID        string
	CreatedAt time.Time

	OutTimeMsIsMilliseconds bool
}

type Server interface {
	ServeHTTP(w http.ResponseWriter, r *http.Request)
}

type server struct {
	logger log.Logger

	handler struct {
		about      *api.AboutHandler
		prometheus *handler.PrometheusHandler
		ping       *handler.PingHandler
	}

	v1handler struct {
		log      *api.LogHandler
		sources  *api.SourcesHandler
		progress *api.ProgressHandler
		events   *api.EventsHandler
		ws       *api.WebSocketHandler
		history  *api.HistoryHandler
		config   *api.ConfigHandler
	}

	middleware struct {
		log echo.MiddlewareFunc
	}

	router *echo.Echo
}

func NewServer(config Config) (Server, error) {
	s := &server{
		logger: config.Logger,
	}

	if s.logger == nil {
		s.logger = log.New("HTTP")
	}

	if config.CreatedAt.IsZero() {
		config.CreatedAt = time.Now()
	}

	s.handler.about = api.NewAbout(
		config.Name,
		config.ID,
		config.CreatedAt,
	)

	s.handler.ping = handler.NewPing()

	if config.Prometheus != nil {
		s.handler.prometheus = handler.NewPrometheus(
			config.Prometheus.HTTPHandler(),
		)
	}

	s.v1handler.log = api.NewLog(
		config.LogBuffer,
		config.LogEvents,
	)

	if config.Registry != nil {
		s.v1handler.sources = api.NewSources(
			config.Registry,
		)

		s.v1handler.progress = api.NewProgress(api.ProgressConfig{
			Registry:                config.Registry,
			OutTimeMsIsMilliseconds: config.OutTimeMsIsMilliseconds,
			Logger:                  s.logger.WithComponent("Progress"),
		})
	}

	if config.Events != nil {
		s.v1handler.events = api.NewEvents(
			config.Events,
		)

		s.v1handler.ws = api.NewWebSocket(
			config.Events,
			s.logger.WithComponent("WebSocket"),
		)
	}

	if config.History != nil {
		s.v1handler.history = api.NewHistory(
			config.History,
		)
	}

	if config.Config != nil {
		s.v1handler.config = api.NewConfig(
			config.Config,
		)
	}

	s.middleware.log = mwlog.NewWithConfig(mwlog.Config{
		Logger: s.logger,
	})

	s.router = echo.New()
	s.router.HTTPErrorHandler = errorhandler.HTTPErrorHandler
	s.router.Validator = validator.New()
	s.router.Use(s.middleware.log)
	s.router.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			rows := strings.Split(string(stack), "\n")
			s.logger.Error().WithField("stack", rows).Log("recovered from a panic")
			return nil
		},
	}))

	s.router.HideBanner = true
	s.router.HidePort = true

	s.router.Logger.SetOutput(httplog.NewWrapper(s.logger))

	s.setRoutes()

	return s, nil
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *server) setRoutes() {
	// API router group
	api := s.router.Group("/api")

	api.GET("", s.handler.about.About)

	// Prometheus metrics
	if s.handler.prometheus != nil {
		s.router.GET("/metrics", s.handler.prometheus.Metrics)
	}

	// Health check
	s.router.GET("/ping", s.handler.ping.Ping)

	// APIv1 router group
	v1 := api.Group("/v1")

	s.setRoutesV1(v1)
}

func (s *server) setRoutesV1(v1 *echo.Group) {
	// v1 Sources
	if s.v1handler.sources != nil {
		v1.GET("/sources", s.v1handler.sources.List)
		v1.GET("/sources/:id", s.v1handler.sources.Get)
		v1.DELETE("/sources/:id", s.v1handler.sources.Delete)
	}

	// v1 Progress
	if s.v1handler.progress != nil {
		v1.POST("/progress/:name", s.v1handler.progress.Ingest)
	}

	// v1 Events
	if s.v1handler.events != nil {
		v1.GET("/events", s.v1handler.events.Events)
		v1.GET("/ws", s.v1handler.ws.Events)
	}

	// v1 History
	if s.v1handler.history != nil {
		v1.GET("/history", s.v1handler.history.List)
		v1.GET("/history/:id", s.v1handler.history.Get)
	}

	// v1 Config
	if s.v1handler.config != nil {
		v1.GET("/config", s.v1handler.config.Get)
	}

	// v1 Log
	v1.GET("/log", s.v1handler.log.Log)
	v1.GET("/log/stream", s.v1handler.log.Stream)
}
