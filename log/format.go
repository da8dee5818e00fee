package log

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/datarhei/ffstats/encoding/json"
)

type Formatter interface {
	Bytes(e *Event) []byte
	String(e *Event) string
}

type jsonFormatter struct{}

// NewJSONFormatter formats an event as one flat JSON object per line. The
// fields of the event are placed next to ts, level, component, caller and message.
func NewJSONFormatter() Formatter {
	return &jsonFormatter{}
}

func (f *jsonFormatter) Bytes(e *Event) []byte {
	data := make(map[string]interface{}, len(e.Data)+5)

	for k, v := range e.Data {
		if err, ok := v.(error); ok {
			v = err.Error()
		}

		data[k] = v
	}

	data["ts"] = e.Time.UTC().Format(time.RFC3339Nano)
	data["level"] = e.Level.String()
	data["component"] = e.Component

	if len(e.Caller) != 0 {
		data["caller"] = e.Caller
	}

	if len(e.Message) != 0 {
		data["message"] = e.Message
	}

	line, err := json.Marshal(data)
	if err != nil {
		line, _ = json.Marshal(map[string]string{
			"level":   Lerror.String(),
			"message": "failed to encode log event: " + err.Error(),
		})
	}

	return append(line, '\n')
}

func (f *jsonFormatter) String(e *Event) string {
	return string(f.Bytes(e))
}

type consoleFormatter struct {
	color bool
}

func NewConsoleFormatter(useColor bool) Formatter {
	return &consoleFormatter{
		color: useColor,
	}
}

func (f *consoleFormatter) Bytes(e *Event) []byte {
	return []byte(f.String(e))
}

func (f *consoleFormatter) String(e *Event) string {
	datetime := e.Time.UTC().Format(time.RFC3339)
	level := e.Level.String()

	if f.color {
		switch e.Level {
		case Ldebug:
			level = fmt.Sprintf("\033[35m%s\033[0m", level)
		case Linfo:
			level = fmt.Sprintf("\033[34m%s\033[0m", level)
		case Lwarn:
			level = fmt.Sprintf("\033[33m%s\033[0m", level)
		case Lerror:
			level = fmt.Sprintf("\033[31m\033[5m%s\033[0m", level)
		default:
		}
	}

	var sb strings.Builder

	sb.WriteString(f.writeKV("ts", datetime))
	sb.WriteString(" " + f.writeKV("level", level))
	sb.WriteString(" " + f.writeKV("component", strconv.Quote(e.Component)))

	if len(e.Message) != 0 {
		sb.WriteString(" " + f.writeKV("msg", strconv.Quote(e.Message)))
	}

	keys := make([]string, 0, len(e.Data))
	for key := range e.Data {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	for _, key := range keys {
		sb.WriteString(" " + f.writeKV(key, f.value(e.Data[key])))
	}

	sb.WriteString("\n")

	return sb.String()
}

func (f *consoleFormatter) value(value interface{}) string {
	switch val := value.(type) {
	case bool:
		return strconv.FormatBool(val)
	case string:
		return strconv.Quote(val)
	case error:
		return strconv.Quote(val.Error())
	case fmt.Stringer:
		return strconv.Quote(val.String())
	}

	jsonvalue, err := json.Marshal(value)
	if err != nil {
		return strconv.Quote(err.Error())
	}

	return string(jsonvalue)
}

func (f *consoleFormatter) writeKV(key string, value string) string {
	if !f.color {
		return key + "=" + value
	}

	if key == "error" {
		value = "\033[31m" + value + "\033[0m"
	}

	return fmt.Sprintf("\033[90m%s=\033[0m%s", key, value)
}
