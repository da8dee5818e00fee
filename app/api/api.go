package api

import (
	"context"
	"fmt"
	"io"
	golog "log"
	"net"
	gohttp "net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/datarhei/ffstats/app"
	"github.com/datarhei/ffstats/config"
	configstore "github.com/datarhei/ffstats/config/store"
	configvars "github.com/datarhei/ffstats/config/vars"
	"github.com/datarhei/ffstats/event"
	"github.com/datarhei/ffstats/forward"
	"github.com/datarhei/ffstats/history"
	"github.com/datarhei/ffstats/http"
	"github.com/datarhei/ffstats/log"
	"github.com/datarhei/ffstats/prometheus"
	"github.com/datarhei/ffstats/source"
	"github.com/datarhei/ffstats/udp"

	"github.com/google/gops/agent"
	"go.uber.org/automaxprocs/maxprocs"
)

// The API interface is the implementation for the ffstats API.
type API interface {
	// Start starts the API. This is blocking until the app has
	// been ended with Stop() or Destroy(). In this case a nil error
	// is returned. An ErrConfigReload error is returned if a
	// configuration reload has been requested.
	Start(ctx context.Context) error

	// Stop stops the API, some states may be kept intact such
	// that they can be reused after starting the API again.
	Stop()

	// Destroy is the same as Stop() but no state will be kept intact.
	Destroy()

	// Reload the configuration for the API. If there's an error the
	// previously loaded configuration is not altered.
	Reload() error
}

type api struct {
	events     *event.PubSub
	registry   source.Registry
	history    history.Store
	udpserver  udp.Server
	forwarder  forward.Forwarder
	prom       prometheus.Metrics
	mainserver *gohttp.Server

	errorChan chan error

	// cancel ends the contexts of all running requests
	cancel context.CancelFunc

	log struct {
		writer io.Writer
		buffer log.BufferWriter
		events log.ChannelWriter
		logger struct {
			core    log.Logger
			main    log.Logger
			udp     log.Logger
			sources log.Logger
		}
	}

	config struct {
		path   string
		store  configstore.Store
		config *config.Config
	}

	lock   sync.Mutex
	wgStop sync.WaitGroup
	state  string

	undoMaxprocs func()
}

// ErrConfigReload is an error returned to indicate that a reload of
// the configuration has been requested.
var ErrConfigReload = fmt.Errorf("configuration reload")

// New returns a new instance of the API interface
func New(configpath string, logwriter io.Writer) (API, error) {
	a := &api{
		state: "idle",
	}

	a.config.path = configpath
	a.log.writer = logwriter

	if a.log.writer == nil {
		a.log.writer = io.Discard
	}

	a.errorChan = make(chan error, 1)

	if err := a.Reload(); err != nil {
		return nil, err
	}

	return a, nil
}

func (a *api) Reload() error {
	a.lock.Lock()
	defer a.lock.Unlock()

	if a.state == "running" {
		return fmt.Errorf("can't reload config while running")
	}

	if a.errorChan == nil {
		a.errorChan = make(chan error, 1)
	}

	logger := log.New("Core").WithOutput(log.NewConsoleWriter(a.log.writer, log.Lwarn, true))

	store, err := configstore.NewJSON(a.config.path, func() {
		select {
		case a.errorChan <- ErrConfigReload:
		default:
		}
	})
	if err != nil {
		return err
	}

	cfg := store.Get()

	cfg.Merge()

	// db.dir has to exist for the validation to succeed
	if len(cfg.DB.Dir) != 0 {
		if err := os.MkdirAll(cfg.DB.Dir, 0750); err != nil {
			logger.Warn().WithError(err).WithField("path", cfg.DB.Dir).Log("Creating the data directory failed")
		}
	}

	cfg.Validate(false)

	loglevel, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		loglevel = log.Linfo
	}

	output, err := log.NewWriter(a.log.writer, loglevel, cfg.Log.Format)
	if err != nil {
		output = log.NewConsoleWriter(a.log.writer, loglevel, true)
	}

	buffer := log.NewBufferWriter(loglevel, cfg.Log.MaxLines)
	events := log.NewChannelWriter()

	logger = logger.WithOutput(
		log.NewMultiWriter(
			log.NewTopicWriter(output, cfg.Log.Topics),
			buffer,
			events,
		),
	)

	logfields := log.Fields{
		"application": app.Name,
		"version":     app.Version.String(),
		"arch":        app.Arch,
		"compiler":    app.Compiler,
	}

	if len(app.Commit) != 0 && len(app.Branch) != 0 {
		logfields["commit"] = app.Commit
		logfields["branch"] = app.Branch
	}

	if len(app.Build) != 0 {
		logfields["build"] = app.Build
	}

	logger.Info().WithFields(logfields).Log("")

	logger.Info().WithField("path", a.config.path).Log("Read config file")

	configlogger := logger.WithComponent("Config")
	cfg.Messages(func(level string, v configvars.Variable, message string) {
		configlogger = configlogger.WithFields(log.Fields{
			"variable":    v.Name,
			"value":       v.Value,
			"env":         v.EnvName,
			"description": v.Description,
			"override":    v.Merged,
		})
		configlogger.Debug().Log(message)

		switch level {
		case "warn":
			configlogger.Warn().Log(message)
		case "error":
			configlogger.Error().WithField("error", message).Log("")
		default:
			break
		}
	})

	if cfg.HasErrors() {
		logger.Error().WithField("error", "Not all variables are set or are valid. Check the error messages above. Bailing out.").Log("")
		return fmt.Errorf("not all variables are set or valid")
	}

	cfg.LoadedAt = time.Now()

	if err := store.SetActive(cfg); err != nil {
		return err
	}

	if a.log.events != nil {
		a.log.events.Close()
	}

	a.config.store = store
	a.config.config = cfg
	a.log.logger.core = logger
	a.log.buffer = buffer
	a.log.events = events

	return nil
}

func (a *api) start(ctx context.Context) error {
	a.lock.Lock()
	defer a.lock.Unlock()

	if a.errorChan == nil {
		a.errorChan = make(chan error, 1)
	}

	if a.state == "running" {
		return fmt.Errorf("already running")
	}

	a.state = "starting"

	cfg := a.config.store.GetActive()

	serverctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if cfg.Debug.AutoMaxProcs {
		undoMaxprocs, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
			format = strings.TrimPrefix(format, "maxprocs: ")
			a.log.logger.core.Debug().Log(format, args...)
		}))
		if err != nil {
			a.log.logger.core.Warn().Log("%s", err.Error())
		}

		a.undoMaxprocs = undoMaxprocs
	}

	if len(cfg.Debug.AgentAddress) != 0 {
		if err := agent.Listen(agent.Options{
			Addr:                   cfg.Debug.AgentAddress,
			ReuseSocketAddrAndPort: true,
		}); err != nil {
			a.log.logger.core.Error().WithError(err).Log("Starting the gops agent failed")
		}
	}

	if cfg.History.Enable {
		if cfg.History.Persist {
			store, err := history.NewBoltStore(history.BoltConfig{
				Dir:        cfg.DB.Dir,
				MaxEntries: cfg.History.MaxEntries,
				Logger:     a.log.logger.core.WithComponent("History"),
			})
			if err != nil {
				return fmt.Errorf("unable to open the history store: %w", err)
			}

			a.history = store
		} else {
			a.history = history.NewMemoryStore(cfg.History.MaxEntries)
		}
	}

	a.events = event.NewPubSub()

	a.log.logger.sources = a.log.logger.core.WithComponent("Sources")

	registryConfig := source.Config{
		Timeout:     time.Duration(cfg.Sources.Timeout) * time.Second,
		Window:      time.Duration(cfg.Sources.Window) * time.Second,
		Granularity: time.Duration(cfg.Sources.Granularity) * time.Second,
		Events:      a.events,
		History:     a.history,
		Logger:      a.log.logger.sources,
	}

	a.registry = source.New(registryConfig)

	if cfg.UDP.Enable {
		a.log.logger.udp = a.log.logger.core.WithComponent("UDP").WithField("address", cfg.UDP.Address)

		server, err := udp.New(udp.Config{
			Addr:                    cfg.UDP.Address,
			BufferSize:              cfg.UDP.BufferSize,
			DatagramMode:            cfg.UDP.DatagramMode,
			OutTimeMsIsMilliseconds: cfg.Progress.OutTimeMsIsMs,
			Registry:                a.registry,
			Logger:                  a.log.logger.udp,
		})
		if err != nil {
			return fmt.Errorf("unable to create UDP server: %w", err)
		}

		// Bind early in order to fail before anything is running
		if err := server.Listen(); err != nil {
			return fmt.Errorf("unable to listen on %s: %w", cfg.UDP.Address, err)
		}

		a.udpserver = server
	}

	if cfg.Redis.Enable {
		forwarder, err := forward.New(forward.Config{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Channel:  cfg.Redis.Channel,
			Events:   a.events,
			Logger:   a.log.logger.core.WithComponent("Forward"),
		})
		if err != nil {
			return fmt.Errorf("unable to create redis forwarder: %w", err)
		}

		a.forwarder = forwarder
	}

	if cfg.Metrics.Enable {
		prom := prometheus.New()

		prom.Register(prometheus.NewUptimeCollector(cfg.ID, time.Now()))
		prom.Register(prometheus.NewSourcesCollector(a.registry))

		a.prom = prom
	}

	a.log.logger.main = a.log.logger.core.WithComponent("HTTP").WithField("address", cfg.Address)

	serverConfig := http.Config{
		Logger:                  a.log.logger.main,
		LogBuffer:               a.log.buffer,
		LogEvents:               a.log.events,
		Registry:                a.registry,
		History:                 a.history,
		Events:                  a.events,
		Config:                  a.config.store,
		Name:                    cfg.Name,
		ID:                      cfg.ID,
		CreatedAt:               time.Now(),
		OutTimeMsIsMilliseconds: cfg.Progress.OutTimeMsIsMs,
	}

	if a.prom != nil {
		serverConfig.Prometheus = a.prom
	}

	mainserverhandler, err := http.NewServer(serverConfig)
	if err != nil {
		return fmt.Errorf("unable to create server: %w", err)
	}

	sendError := func(err error) {
		select {
		case a.errorChan <- err:
		default:
		}
	}

	a.mainserver = &gohttp.Server{
		Addr:              cfg.Address,
		Handler:           mainserverhandler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		ErrorLog:          golog.New(io.Discard, "", 0),
		BaseContext: func(net.Listener) context.Context {
			return serverctx
		},
	}

	// The progress of a running ffmpeg process is sent as one long request,
	// so there's no read and write timeout.

	wgStart := sync.WaitGroup{}

	if a.udpserver != nil {
		wgStart.Add(1)
		a.wgStop.Add(1)

		go func() {
			logger := a.log.logger.udp

			defer func() {
				logger.Info().Log("Server exited")
				a.wgStop.Done()
			}()

			wgStart.Done()

			logger.Info().Log("Server started")
			err := a.udpserver.Serve()
			if err != nil && err != udp.ErrServerClosed {
				err = fmt.Errorf("UDP server: %w", err)
			} else {
				err = nil
			}

			sendError(err)
		}()
	}

	wgStart.Add(1)
	a.wgStop.Add(1)

	go func() {
		logger := a.log.logger.main

		defer func() {
			logger.Info().Log("Server exited")
			a.wgStop.Done()
		}()

		wgStart.Done()

		logger.Info().Log("Server started")
		err := a.mainserver.ListenAndServe()
		if err != nil && err != gohttp.ErrServerClosed {
			err = fmt.Errorf("HTTP server: %w", err)
		} else {
			err = nil
		}

		sendError(err)
	}()

	// Wait for all servers to be started
	wgStart.Wait()

	a.registry.Start()

	if a.forwarder != nil {
		if err := a.forwarder.Start(); err != nil {
			return fmt.Errorf("unable to start redis forwarder: %w", err)
		}
	}

	a.state = "running"

	return nil
}

func (a *api) Start(ctx context.Context) error {
	if err := a.start(ctx); err != nil {
		a.stop()
		return err
	}

	a.lock.Lock()
	errorChan := a.errorChan
	a.lock.Unlock()

	// Block until there's an error from the servers
	err := <-errorChan

	return err
}

func (a *api) stop() {
	a.lock.Lock()
	defer a.lock.Unlock()

	logger := a.log.logger.core.WithField("action", "shutdown")

	if a.state == "idle" {
		logger.Info().Log("Complete")
		return
	}

	if a.forwarder != nil {
		a.forwarder.Stop()
		a.forwarder = nil
	}

	// Stop the UDP server
	if a.udpserver != nil {
		a.log.logger.udp.Info().Log("Stopping ...")

		a.udpserver.Close()
		a.udpserver = nil
	}

	// Streaming clients have to end before the HTTP server can shut down
	if a.events != nil {
		a.events.Close()
		a.events = nil
	}

	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}

	// Shutdown the HTTP mainserver
	if a.mainserver != nil {
		logger := a.log.logger.main
		logger.Info().Log("Stopping ...")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.mainserver.Shutdown(ctx); err != nil {
			logger.Error().WithError(err).Log("")
		}

		a.mainserver = nil
	}

	// Unregister all collectors
	if a.prom != nil {
		a.prom.UnregisterAll()
		a.prom = nil
	}

	if a.registry != nil {
		a.registry.Stop()
		a.registry = nil
	}

	if a.history != nil {
		if err := a.history.Close(); err != nil {
			logger.Error().WithError(err).Log("Closing the history store failed")
		}
		a.history = nil
	}

	// Stop gops agent
	agent.Close()

	// Wait for all server goroutines to exit
	logger.Info().Log("Waiting for all servers to stop ...")
	a.wgStop.Wait()

	// Drain error channel
	if a.errorChan != nil {
		close(a.errorChan)
		a.errorChan = nil
	}

	a.state = "idle"

	if a.undoMaxprocs != nil {
		a.undoMaxprocs()
		a.undoMaxprocs = nil
	}

	logger.Info().Log("Complete")
}

func (a *api) Stop() {
	a.log.logger.core.Info().Log("Shutdown requested ...")
	a.stop()
}

func (a *api) Destroy() {
	a.log.logger.core.Info().Log("Shutdown requested ...")
	a.stop()

	if a.log.events != nil {
		a.log.events.Close()
		a.log.events = nil
	}
}
