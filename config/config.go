// Package config implements types for handling the configuation for the app.
package config

import (
	"time"

	"github.com/datarhei/ffstats/config/value"
	"github.com/datarhei/ffstats/config/vars"

	haikunator "github.com/atrox/haikunatorgo/v2"
	"github.com/google/uuid"
)

// Version is the current version of the layout of the configuration file.
const Version int64 = 1

// Data is the actual configuration data for the app
type Data struct {
	CreatedAt time.Time `json:"created_at"`
	LoadedAt  time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
	Version   int64     `json:"version" jsonschema:"minimum=1,maximum=1"`
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Log       struct {
		Level    string   `json:"level" enums:"debug,info,warn,error,silent" jsonschema:"enum=debug,enum=info,enum=warn,enum=error,enum=silent"`
		Format   string   `json:"format" enums:"console,json" jsonschema:"enum=console,enum=json"`
		Topics   []string `json:"topics"`
		MaxLines int      `json:"max_lines"`
	} `json:"log"`
	DB struct {
		Dir string `json:"dir"`
	} `json:"db"`
	UDP struct {
		Enable       bool   `json:"enable"`
		Address      string `json:"address"`
		BufferSize   int    `json:"buffer_size"`
		DatagramMode bool   `json:"datagram_mode"`
	} `json:"udp"`
	Progress struct {
		OutTimeMsIsMs bool `json:"out_time_ms_is_ms"`
	} `json:"progress"`
	Sources struct {
		Timeout     int64 `json:"timeout_sec"`     // seconds
		Window      int64 `json:"window_sec"`      // seconds
		Granularity int64 `json:"granularity_sec"` // seconds
	} `json:"sources"`
	History struct {
		Enable     bool `json:"enable"`
		Persist    bool `json:"persist"`
		MaxEntries int  `json:"max_entries"`
	} `json:"history"`
	Metrics struct {
		Enable bool `json:"enable"`
	} `json:"metrics"`
	Redis struct {
		Enable   bool   `json:"enable"`
		Address  string `json:"address"`
		Password string `json:"password"`
		DB       int    `json:"db"`
		Channel  string `json:"channel"`
	} `json:"redis"`
	Debug struct {
		AutoMaxProcs bool   `json:"auto_max_procs"`
		AgentAddress string `json:"agent_address"`
	} `json:"debug"`
}

// Config is a wrapper for Data
type Config struct {
	vars vars.Variables

	Data
}

// New returns a Config which is initialized with its default values
func New() *Config {
	config := &Config{}

	config.init()

	return config
}

// Clone returns a deep copy of the config. The merge state of the
// variables is kept.
func (d *Config) Clone() *Config {
	data := New()

	data.CreatedAt = d.CreatedAt
	data.LoadedAt = d.LoadedAt
	data.UpdatedAt = d.UpdatedAt

	data.Version = d.Version
	data.ID = d.ID
	data.Name = d.Name
	data.Address = d.Address

	data.Log = d.Log
	data.DB = d.DB
	data.UDP = d.UDP
	data.Progress = d.Progress
	data.Sources = d.Sources
	data.History = d.History
	data.Metrics = d.Metrics
	data.Redis = d.Redis
	data.Debug = d.Debug

	data.Log.Topics = copySlice(d.Log.Topics)

	data.vars.Transfer(&d.vars)

	return data
}

func (d *Config) init() {
	d.vars.Register(value.NewInt64(&d.Version, Version), "version", "", nil, "Configuration file layout version", true, false)
	d.vars.Register(value.NewTime(&d.CreatedAt, time.Now()), "created_at", "", nil, "Configuration file creation time", false, false)
	d.vars.Register(value.NewString(&d.ID, uuid.New().String()), "id", "FFSTATS_ID", nil, "ID for this instance", true, false)
	d.vars.Register(value.NewString(&d.Name, haikunator.New().Haikunate()), "name", "FFSTATS_NAME", nil, "A human readable name for this instance", false, false)
	d.vars.Register(value.NewAddress(&d.Address, ":8080"), "address", "FFSTATS_ADDRESS", nil, "HTTP listening address", false, false)

	// Log
	d.vars.Register(value.NewLogLevel(&d.Log.Level, "info"), "log.level", "FFSTATS_LOG_LEVEL", nil, "Loglevel: silent, error, warn, info, debug", false, false)
	d.vars.Register(value.NewEnum(&d.Log.Format, "console", []string{"console", "json"}), "log.format", "FFSTATS_LOG_FORMAT", nil, "Format of the log output: console, json", false, false)
	d.vars.Register(value.NewStringList(&d.Log.Topics, []string{}, ","), "log.topics", "FFSTATS_LOG_TOPICS", nil, "Show only selected log topics", false, false)
	d.vars.Register(value.NewIntRange(&d.Log.MaxLines, 1000, 0, 1000000), "log.max_lines", "FFSTATS_LOG_MAXLINES", []string{"FFSTATS_LOG_MAX_LINES"}, "Number of latest log lines to keep in memory", false, false)

	// DB
	d.vars.Register(value.NewDir(&d.DB.Dir, "./data"), "db.dir", "FFSTATS_DB_DIR", nil, "Directory for holding the operational data", false, false)

	// UDP
	d.vars.Register(value.NewBool(&d.UDP.Enable, true), "udp.enable", "FFSTATS_UDP_ENABLE", nil, "Enable receiving progress reports via UDP", false, false)
	d.vars.Register(value.NewMustAddress(&d.UDP.Address, "0.0.0.0:25527"), "udp.address", "FFSTATS_UDP_ADDRESS", nil, "UDP listening address", false, false)
	d.vars.Register(value.NewIntRange(&d.UDP.BufferSize, 512, 1, 65507), "udp.buffer_size", "FFSTATS_UDP_BUFFER_SIZE", nil, "Size of the read buffer for a datagram in bytes", false, false)
	d.vars.Register(value.NewBool(&d.UDP.DatagramMode, false), "udp.datagram_mode", "FFSTATS_UDP_DATAGRAM_MODE", nil, "Treat each datagram as a complete progress report", false, false)

	// Progress
	d.vars.Register(value.NewBool(&d.Progress.OutTimeMsIsMs, false), "progress.out_time_ms_is_ms", "FFSTATS_PROGRESS_OUT_TIME_MS_IS_MS", nil, "The value of out_time_ms is in milliseconds instead of microseconds", false, false)

	// Sources
	d.vars.Register(value.NewSeconds(&d.Sources.Timeout, 300), "sources.timeout_sec", "FFSTATS_SOURCES_TIMEOUT_SEC", nil, "Seconds after which an idle source is removed, 0 for never", false, false)
	d.vars.Register(value.NewSeconds(&d.Sources.Window, 0), "sources.window_sec", "FFSTATS_SOURCES_WINDOW_SEC", nil, "Seconds to average the rates over, 0 for the rate between two reports", false, false)
	d.vars.Register(value.NewSeconds(&d.Sources.Granularity, 1), "sources.granularity_sec", "FFSTATS_SOURCES_GRANULARITY_SEC", nil, "Granularity of the averaging window in seconds", false, false)

	// History
	d.vars.Register(value.NewBool(&d.History.Enable, true), "history.enable", "FFSTATS_HISTORY_ENABLE", nil, "Keep the final stats of ended sources", false, false)
	d.vars.Register(value.NewBool(&d.History.Persist, true), "history.persist", "FFSTATS_HISTORY_PERSIST", nil, "Persist the history in db.dir", false, false)
	d.vars.Register(value.NewIntRange(&d.History.MaxEntries, 100, 0, 1000000), "history.max_entries", "FFSTATS_HISTORY_MAX_ENTRIES", nil, "Max. number of history entries, 0 for unlimited", false, false)

	// Metrics
	d.vars.Register(value.NewBool(&d.Metrics.Enable, true), "metrics.enable", "FFSTATS_METRICS_ENABLE", nil, "Enable prometheus endpoint /metrics", false, false)

	// Redis
	d.vars.Register(value.NewBool(&d.Redis.Enable, false), "redis.enable", "FFSTATS_REDIS_ENABLE", nil, "Publish the stats events to a Redis channel", false, false)
	d.vars.Register(value.NewMustAddress(&d.Redis.Address, "localhost:6379"), "redis.address", "FFSTATS_REDIS_ADDRESS", nil, "Redis server address", false, false)
	d.vars.Register(value.NewString(&d.Redis.Password, ""), "redis.password", "FFSTATS_REDIS_PASSWORD", nil, "Redis password", false, true)
	d.vars.Register(value.NewIntRange(&d.Redis.DB, 0, 0, 255), "redis.db", "FFSTATS_REDIS_DB", nil, "Redis database", false, false)
	d.vars.Register(value.NewString(&d.Redis.Channel, "ffstats:events"), "redis.channel", "FFSTATS_REDIS_CHANNEL", nil, "Redis channel to publish the events to", false, false)

	// Debug
	d.vars.Register(value.NewBool(&d.Debug.AutoMaxProcs, false), "debug.auto_max_procs", "FFSTATS_DEBUG_AUTO_MAX_PROCS", nil, "Set GOMAXPROCS according to the CPU quota", false, false)
	d.vars.Register(value.NewAddress(&d.Debug.AgentAddress, ""), "debug.agent_address", "FFSTATS_DEBUG_AGENT_ADDRESS", nil, "Listen address of the gops agent, empty to disable", false, false)
}

// Merge merges the values of the known environment variables into the configuration
func (d *Config) Merge() {
	d.vars.Merge()
}

// Validate validates the current state of the Config for completeness and sanity. Errors are
// written to the log. Use resetLogs to indicate to reset the logs prior validation.
func (d *Config) Validate(resetLogs bool) {
	if resetLogs {
		d.vars.ResetLogs()
	}

	if d.Version != Version {
		d.vars.Log("error", "version", "unknown configuration layout version (found version %d, expecting version %d)", d.Version, Version)

		return
	}

	d.vars.Validate()

	// Individual sanity checks

	if d.Sources.Granularity <= 0 {
		d.vars.Log("error", "sources.granularity_sec", "must be greater than 0")
	}

	if d.Sources.Window > 0 && d.Sources.Window < d.Sources.Granularity {
		d.vars.Log("error", "sources.window_sec", "must not be smaller than sources.granularity_sec")
	}

	if d.Redis.Enable && len(d.Redis.Channel) == 0 {
		d.vars.Log("error", "redis.channel", "must not be empty")
	}
}

// Messages calls for each log entry the provided callback. The level has the values 'error', 'warn', or 'info'.
// The name is the name of the configuration value, e.g. 'udp.address'. The message is the log message.
func (d *Config) Messages(logger func(level string, v vars.Variable, message string)) {
	d.vars.Messages(logger)
}

// HasErrors returns whether there are some error messages in the log.
func (d *Config) HasErrors() bool {
	return d.vars.HasErrors()
}

// Overrides returns a list of configuration value names that have been overriden by an environment variable.
func (d *Config) Overrides() []string {
	return d.vars.Overrides()
}

// Variables returns all configuration values with disguised secrets.
func (d *Config) Variables() []vars.Variable {
	return d.vars.List()
}

// Get returns the string representation of the value with the given name.
func (d *Config) Get(name string) (string, error) {
	return d.vars.Get(name)
}

// Set sets the value with the given name from its string representation.
func (d *Config) Set(name, val string) error {
	return d.vars.Set(name, val)
}

func copySlice[T any](src []T) []T {
	dst := make([]T, len(src))
	copy(dst, src)

	return dst
}
