package log

import (
	"container/ring"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/lithammer/shortuuid/v4"
	"github.com/mattn/go-isatty"
)

// Writer receives the events of a Logger.
type Writer interface {
	Write(e *Event) error
	Close()
}

// levelWriter formats all events up to its level and writes them to an
// io.Writer. Writes are serialized.
type levelWriter struct {
	lock      sync.Mutex
	writer    io.Writer
	level     Level
	formatter Formatter
}

func (w *levelWriter) Write(e *Event) error {
	if w.level < e.Level || e.Level == Lsilent {
		return nil
	}

	data := w.formatter.Bytes(e)

	w.lock.Lock()
	defer w.lock.Unlock()

	_, err := w.writer.Write(data)

	return err
}

func (w *levelWriter) Close() {}

// NewWriter returns a writer for the given format, "console" or "json".
// Console output is colored if w is a terminal.
func NewWriter(w io.Writer, level Level, format string) (Writer, error) {
	switch format {
	case "console", "":
		return NewConsoleWriter(w, level, true), nil
	case "json":
		return NewJSONWriter(w, level), nil
	}

	return nil, fmt.Errorf("unknown log format '%s'", format)
}

// NewJSONWriter writes events up to the given level as JSON lines.
func NewJSONWriter(w io.Writer, level Level) Writer {
	return &levelWriter{
		writer:    w,
		level:     level,
		formatter: NewJSONFormatter(),
	}
}

// NewConsoleWriter writes events up to the given level in a logfmt like
// format. Colors are only used if w is a terminal.
func NewConsoleWriter(w io.Writer, level Level, useColor bool) Writer {
	return &levelWriter{
		writer:    w,
		level:     level,
		formatter: NewConsoleFormatter(useColor && isTerminal(w)),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

type topicWriter struct {
	writer Writer
	topics map[string]struct{}
}

// NewTopicWriter only passes events whose component is in the list of
// topics. An empty list passes everything.
func NewTopicWriter(writer Writer, topics []string) Writer {
	w := &topicWriter{
		writer: writer,
		topics: make(map[string]struct{}),
	}

	for _, topic := range topics {
		w.topics[strings.ToLower(topic)] = struct{}{}
	}

	return w
}

func (w *topicWriter) Write(e *Event) error {
	if len(w.topics) > 0 {
		if _, ok := w.topics[strings.ToLower(e.Component)]; !ok {
			return nil
		}
	}

	return w.writer.Write(e)
}

func (w *topicWriter) Close() {
	w.writer.Close()
}

type multiWriter struct {
	writer []Writer
}

// NewMultiWriter passes every event to all writers. A failing writer doesn't
// keep the event from the others.
func NewMultiWriter(writer ...Writer) Writer {
	return &multiWriter{
		writer: append([]Writer(nil), writer...),
	}
}

func (w *multiWriter) Write(e *Event) error {
	var errs []error

	for _, writer := range w.writer {
		if err := writer.Write(e); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (w *multiWriter) Close() {
	for _, writer := range w.writer {
		writer.Close()
	}
}

type BufferWriter interface {
	Writer
	Events() []*Event
}

type bufferWriter struct {
	lines *ring.Ring
	lock  sync.RWMutex
	level Level
}

// NewBufferWriter keeps the last n events up to the given level in memory.
func NewBufferWriter(level Level, lines int) BufferWriter {
	b := &bufferWriter{
		level: level,
	}

	if lines > 0 {
		b.lines = ring.New(lines)
	}

	return b
}

func (w *bufferWriter) Write(e *Event) error {
	if w.level < e.Level || e.Level == Lsilent {
		return nil
	}

	w.lock.Lock()
	defer w.lock.Unlock()

	if w.lines != nil {
		w.lines.Value = e.clone()
		w.lines = w.lines.Next()
	}

	return nil
}

func (w *bufferWriter) Close() {
	w.lock.Lock()
	defer w.lock.Unlock()

	w.lines = nil
}

func (w *bufferWriter) Events() []*Event {
	var lines = []*Event{}

	w.lock.RLock()
	defer w.lock.RUnlock()

	if w.lines == nil {
		return lines
	}

	w.lines.Do(func(l interface{}) {
		if l == nil {
			return
		}

		lines = append(lines, l.(*Event).clone())
	})

	return lines
}

// ChannelWriter fans out the events to subscribers, e.g. for streaming the
// log over HTTP.
type ChannelWriter interface {
	Writer

	// Subscribe returns a channel with all future events and a function to
	// unsubscribe. The channel is closed when the writer is closed.
	Subscribe() (<-chan Event, func())
}

type channelWriter struct {
	publisher chan Event
	closed    bool
	lock      sync.Mutex

	subscriber     map[string]chan Event
	subscriberLock sync.Mutex
	drained        bool
}

// NewChannelWriter fans out every event to all subscribers. Slow subscribers
// miss events instead of blocking the logger.
func NewChannelWriter() ChannelWriter {
	w := &channelWriter{
		publisher:  make(chan Event, 1024),
		subscriber: make(map[string]chan Event),
	}

	go w.broadcast()

	return w
}

func (w *channelWriter) Write(e *Event) error {
	event := e.clone()
	event.logger = nil

	w.lock.Lock()
	defer w.lock.Unlock()

	if w.closed {
		return fmt.Errorf("writer is closed")
	}

	select {
	case w.publisher <- *event:
	default:
		return fmt.Errorf("publisher queue full")
	}

	return nil
}

// Close stops the broadcast. The subscriber channels are closed as soon as
// the queued events are delivered.
func (w *channelWriter) Close() {
	w.lock.Lock()
	defer w.lock.Unlock()

	if w.closed {
		return
	}

	w.closed = true
	close(w.publisher)
}

func (w *channelWriter) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 1024)

	var id string

	w.subscriberLock.Lock()
	if w.drained {
		w.subscriberLock.Unlock()
		close(ch)
		return ch, func() {}
	}

	for {
		id = shortuuid.New()
		if _, ok := w.subscriber[id]; !ok {
			w.subscriber[id] = ch
			break
		}
	}
	w.subscriberLock.Unlock()

	unsubscribe := func() {
		w.subscriberLock.Lock()
		delete(w.subscriber, id)
		w.subscriberLock.Unlock()
	}

	return ch, unsubscribe
}

func (w *channelWriter) broadcast() {
	for e := range w.publisher {
		w.subscriberLock.Lock()
		for _, ch := range w.subscriber {
			select {
			case ch <- *e.clone():
			default:
			}
		}
		w.subscriberLock.Unlock()
	}

	w.subscriberLock.Lock()
	for id, ch := range w.subscriber {
		close(ch)
		delete(w.subscriber, id)
	}
	w.drained = true
	w.subscriberLock.Unlock()
}
