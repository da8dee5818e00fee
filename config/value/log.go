package value

import (
	"strings"

	"github.com/datarhei/ffstats/log"
)

// log level

type LogLevel string

func NewLogLevel(p *string, val string) *LogLevel {
	*p = val

	return (*LogLevel)(p)
}

func (l *LogLevel) Set(val string) error {
	*l = LogLevel(strings.ToLower(strings.TrimSpace(val)))
	return nil
}

func (l *LogLevel) String() string {
	return string(*l)
}

func (l *LogLevel) Validate() error {
	_, err := log.ParseLevel(string(*l))
	return err
}

func (l *LogLevel) IsEmpty() bool {
	return len(string(*l)) == 0
}
