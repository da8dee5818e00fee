// Package log is a small structured logger with four levels. Every message
// carries the component that wrote it and an arbitrary set of fields.
package log

import (
	"fmt"
	"maps"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/datarhei/ffstats/encoding/json"
)

// Level represents a log level
type Level uint

const (
	Lsilent Level = 0
	Lerror  Level = 1
	Lwarn   Level = 2
	Linfo   Level = 3
	Ldebug  Level = 4
)

var levelNames = [...]string{
	Lsilent: "silent",
	Lerror:  "error",
	Lwarn:   "warn",
	Linfo:   "info",
	Ldebug:  "debug",
}

// String returns the upper case name of the level.
func (level Level) String() string {
	if level > Ldebug {
		return "UNKNOWN"
	}

	return strings.ToUpper(levelNames[level])
}

func (level Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(level.String())
}

// ParseLevel translates a level name as found in the config into a Level.
// Unknown names yield Linfo together with an error.
func ParseLevel(name string) (Level, error) {
	name = strings.ToLower(strings.TrimSpace(name))

	for level, n := range levelNames {
		if n == name {
			return Level(level), nil
		}
	}

	return Linfo, fmt.Errorf("unknown log level '%s'", name)
}

type Fields map[string]interface{}

// Logger is an interface that provides means for writing log messages.
//
// There are 4 log levels available (debug, info, warn, error) with increasing
// severity. A message will be written to an output if the log level of the message
// has the same or a higher severity than the output. Otherwise it will be
// discarded.
//
// The component is a string that represents who wrote the message.
type Logger interface {
	// WithOutput sets an output to the Logger. The messages are written to the
	// provided writer.
	WithOutput(w Writer) Logger

	// WithComponent returns a new Logger with the given component.
	WithComponent(component string) Logger

	WithField(key string, value interface{}) Logger
	WithFields(fields Fields) Logger

	WithError(err error) Logger

	// Log writes the message to the output. The message will be formatted
	// according to fmt.Printf() if args are given.
	Log(format string, args ...interface{})

	Debug() Logger
	Info() Logger
	Warn() Logger
	Error() Logger

	// Write implements the io.Writer interface such that it can be used in e.g. the
	// the log/Logger facility. Messages will be printed with debug level.
	Write(p []byte) (int, error)

	Close()
}

type logger struct {
	output    Writer
	component string
}

// New returns a Logger for the given component without an output. Messages
// are discarded until an output is set with WithOutput.
func New(component string) Logger {
	return &logger{
		component: component,
	}
}

func (l *logger) Close() {
	if l.output == nil {
		return
	}

	l.output.Close()
}

func (l *logger) clone() *logger {
	return &logger{
		output:    l.output,
		component: l.component,
	}
}

func (l *logger) WithOutput(w Writer) Logger {
	clone := l.clone()
	clone.output = w

	return clone
}

func (l *logger) WithComponent(component string) Logger {
	clone := l.clone()
	clone.component = component

	return clone
}

func (l *logger) WithField(key string, value interface{}) Logger {
	return newEvent(l).WithField(key, value)
}

func (l *logger) WithFields(f Fields) Logger {
	return newEvent(l).WithFields(f)
}

func (l *logger) WithError(err error) Logger {
	return newEvent(l).WithError(err)
}

func (l *logger) Log(format string, args ...interface{}) {
	newEvent(l).Log(format, args...)
}

func (l *logger) Debug() Logger {
	return newEvent(l).Debug()
}

func (l *logger) Info() Logger {
	return newEvent(l).Info()
}

func (l *logger) Warn() Logger {
	return newEvent(l).Warn()
}

func (l *logger) Error() Logger {
	return newEvent(l).Error()
}

func (l *logger) Write(p []byte) (int, error) {
	return newEvent(l).Write(p)
}

// Event is a single log message with its level, component and fields.
type Event struct {
	logger *logger

	Time      time.Time
	Level     Level
	Component string
	Caller    string
	Message   string

	Data Fields
}

func newEvent(l *logger) *Event {
	return &Event{
		logger:    l,
		Component: l.component,
		Data:      Fields{},
	}
}

func (e *Event) clone() *Event {
	return &Event{
		logger:    e.logger,
		Time:      e.Time,
		Level:     e.Level,
		Component: e.Component,
		Caller:    e.Caller,
		Message:   e.Message,
		Data:      maps.Clone(e.Data),
	}
}

func (e *Event) Close() {
	e.logger.Close()
}

func (e *Event) WithOutput(w Writer) Logger {
	return e.logger.WithOutput(w)
}

func (e *Event) WithComponent(component string) Logger {
	clone := e.clone()
	clone.Component = component

	return clone
}

func (e *Event) WithField(key string, value interface{}) Logger {
	return e.WithFields(Fields{
		key: value,
	})
}

const maxFields = 1024

func (e *Event) WithFields(f Fields) Logger {
	if maxFields-len(e.Data)-len(f) < 0 {
		return e
	}

	clone := e.clone()

	for k, v := range f {
		clone.Data[k] = v
	}

	return clone
}

func (e *Event) WithError(err error) Logger {
	if err == nil {
		return e
	}

	return e.WithField("error", err)
}

func (e *Event) Debug() Logger {
	return e.withLevel(Ldebug)
}

func (e *Event) Info() Logger {
	return e.withLevel(Linfo)
}

func (e *Event) Warn() Logger {
	return e.withLevel(Lwarn)
}

func (e *Event) Error() Logger {
	return e.withLevel(Lerror)
}

func (e *Event) withLevel(level Level) Logger {
	clone := e.clone()
	clone.Level = level

	return clone
}

func (e *Event) Log(format string, args ...interface{}) {
	if e.logger.output == nil {
		return
	}

	_, file, line, _ := runtime.Caller(1)

	n := e.clone()
	n.logger = nil
	n.Time = time.Now()
	n.Caller = fmt.Sprintf("%s:%d", shortCaller(file), line)

	if n.Level == Lsilent {
		n.Level = Ldebug
	}

	if len(format) != 0 {
		if len(args) == 0 {
			n.Message = format
		} else {
			n.Message = fmt.Sprintf(format, args...)
		}
	}

	e.logger.output.Write(n)
}

func (e *Event) Write(p []byte) (int, error) {
	e.Log("%s", strings.TrimSpace(string(p)))

	return len(p), nil
}

// shortCaller keeps the package directory and the file name, e.g.
// "source/source.go".
func shortCaller(file string) string {
	dir, name := filepath.Split(file)

	return filepath.Join(filepath.Base(dir), name)
}
