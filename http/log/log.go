// Package log forwards the output of echo's own logger to a log.Logger.
package log

import (
	"strings"

	"github.com/datarhei/ffstats/encoding/json"
	"github.com/datarhei/ffstats/log"
)

type logwrapper struct {
	logger log.Logger
}

type logentry struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

func NewWrapper(logger log.Logger) *logwrapper {
	return &logwrapper{
		logger: logger,
	}
}

// Write expects the JSON lines that echo writes. Anything else is logged as is.
func (b *logwrapper) Write(p []byte) (int, error) {
	entry := logentry{}
	if err := json.Unmarshal(p, &entry); err != nil || len(entry.Message) == 0 {
		b.logger.Warn().Log("%s", strings.TrimSpace(string(p)))
		return len(p), nil
	}

	logger := b.logger.Warn()
	if strings.EqualFold(entry.Level, "ERROR") {
		logger = b.logger.Error()
	}

	for _, line := range strings.Split(entry.Message, "\n") {
		logger.Log("%s", line)
	}

	return len(p), nil
}
