package log

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testEvent(component string) *Event {
	return &Event{
		Time:      time.Date(2009, time.November, 10, 23, 0, 0, 0, time.UTC),
		Level:     Linfo,
		Component: component,
		Caller:    "me",
		Message:   "hello world",
		Data:      Fields{"foo": "bar"},
	}
}

func TestJSONWriter(t *testing.T) {
	buffer := bytes.Buffer{}

	writer := NewJSONWriter(&buffer, Linfo)
	writer.Write(testEvent("test"))

	require.JSONEq(t, `{"ts":"2009-11-10T23:00:00Z","level":"INFO","component":"test","caller":"me","message":"hello world","foo":"bar"}`, buffer.String())
}

func TestConsoleWriter(t *testing.T) {
	buffer := bytes.Buffer{}

	writer := NewConsoleWriter(&buffer, Linfo, false)
	writer.Write(testEvent("test"))

	require.Equal(t, `ts=2009-11-10T23:00:00Z level=INFO component="test" msg="hello world" foo="bar"`+"\n", buffer.String())
}

func TestTopicWriter(t *testing.T) {
	bufwriter := NewBufferWriter(Linfo, 10)
	writer1 := NewTopicWriter(bufwriter, []string{})
	writer2 := NewTopicWriter(bufwriter, []string{"foobar"})

	writer1.Write(testEvent("test"))
	writer2.Write(testEvent("test"))

	require.Equal(t, 1, len(bufwriter.Events()))

	writer2.Write(testEvent("FooBar"))

	require.Equal(t, 2, len(bufwriter.Events()))
}

func TestMultiWriter(t *testing.T) {
	bufwriter1 := NewBufferWriter(Linfo, 10)
	bufwriter2 := NewBufferWriter(Linfo, 10)

	writer := NewMultiWriter(bufwriter1, bufwriter2)

	writer.Write(testEvent("test"))

	require.Equal(t, 1, len(bufwriter1.Events()))
	require.Equal(t, 1, len(bufwriter2.Events()))
}

func TestBufferWriterRing(t *testing.T) {
	bufwriter := NewBufferWriter(Linfo, 2)

	for _, c := range []string{"a", "b", "c"} {
		bufwriter.Write(testEvent(c))
	}

	events := bufwriter.Events()
	require.Equal(t, 2, len(events))
	require.Equal(t, "b", events[0].Component)
	require.Equal(t, "c", events[1].Component)

	bufwriter.Close()

	require.Equal(t, 0, len(bufwriter.Events()))
}

func TestChannelWriter(t *testing.T) {
	w := NewChannelWriter()
	defer w.Close()

	ch, unsubscribe := w.Subscribe()
	defer unsubscribe()

	require.NoError(t, w.Write(testEvent("test")))

	select {
	case e := <-ch:
		require.Equal(t, "test", e.Component)
		require.Equal(t, "bar", e.Data["foo"])
	case <-time.After(time.Second):
		require.Fail(t, "no event received")
	}
}

func TestChannelWriterClosed(t *testing.T) {
	w := NewChannelWriter()
	w.Close()

	require.Error(t, w.Write(testEvent("test")))
}

func TestNewWriter(t *testing.T) {
	buffer := bytes.Buffer{}

	w, err := NewWriter(&buffer, Linfo, "json")
	require.NoError(t, err)

	w.Write(testEvent("test"))
	require.Contains(t, buffer.String(), `"component":"test"`)

	buffer.Reset()

	w, err = NewWriter(&buffer, Linfo, "console")
	require.NoError(t, err)

	w.Write(testEvent("test"))
	require.Contains(t, buffer.String(), `component="test"`)

	_, err = NewWriter(&buffer, Linfo, "xml")
	require.Error(t, err)
}

func TestMultiWriterKeepsWriting(t *testing.T) {
	closed := NewChannelWriter()
	closed.Close()

	bufwriter := NewBufferWriter(Linfo, 10)

	writer := NewMultiWriter(closed, bufwriter)

	require.Error(t, writer.Write(testEvent("test")))
	require.Equal(t, 1, len(bufwriter.Events()))
}

func TestChannelWriterCloseSubscribers(t *testing.T) {
	w := NewChannelWriter()

	ch, unsubscribe := w.Subscribe()
	defer unsubscribe()

	w.Close()

	select {
	case _, ok := <-ch:
		require.False(t, ok)
	case <-time.After(time.Second):
		require.Fail(t, "subscriber channel not closed")
	}

	ch, _ = w.Subscribe()
	_, ok := <-ch
	require.False(t, ok)
}

func TestChannelWriterSubscribeWhileClosing(t *testing.T) {
	w := NewChannelWriter()

	chans := make(chan (<-chan Event), 100)
	wg := sync.WaitGroup{}

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			ch, _ := w.Subscribe()
			chans <- ch
		}()
	}

	w.Close()
	wg.Wait()
	close(chans)

	for ch := range chans {
		select {
		case _, ok := <-ch:
			require.False(t, ok)
		case <-time.After(time.Second):
			require.Fail(t, "subscriber channel not closed")
		}
	}
}
