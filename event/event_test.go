package event

import (
	"sync"
	"testing"
	"time"

	"github.com/datarhei/ffstats/ffmpeg/progress"
	"github.com/datarhei/ffstats/stats"

	"github.com/stretchr/testify/require"
)

func testStatsEvent(source string) *StatsEvent {
	return NewStatsEvent(source, progress.Block{
		Data: "frame=10",
		End:  true,
	}, stats.Sample{
		Stats:  stats.Stats{Frame: 10},
		Parsed: stats.ParsedStats{FPS: 25},
	})
}

func TestStatsEventClone(t *testing.T) {
	e := testStatsEvent("udp:127.0.0.1:1234")

	require.Equal(t, StatsEventName, e.Name)

	c := e.Clone().(*StatsEvent)
	require.Equal(t, e, c)
	require.NotSame(t, e, c)

	c.Stats.Frame = 20
	require.Equal(t, uint64(10), e.Stats.Frame)
}

func TestPubSub(t *testing.T) {
	p := NewPubSub()
	defer p.Close()

	ch1, cancel1 := p.Subscribe()
	defer cancel1()

	ch2, cancel2, err := p.Events()
	require.NoError(t, err)
	defer cancel2()

	require.NoError(t, p.Publish(testStatsEvent("a")))

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case e := <-ch:
			require.Equal(t, "a", e.(*StatsEvent).Source)
		case <-time.After(time.Second):
			require.Fail(t, "no event received")
		}
	}
}

func TestPubSubUnsubscribe(t *testing.T) {
	p := NewPubSub()
	defer p.Close()

	ch, cancel := p.Subscribe()
	cancel()
	cancel()

	_, ok := <-ch
	require.False(t, ok)
}

func TestPubSubClose(t *testing.T) {
	p := NewPubSub()

	ch, _ := p.Subscribe()

	p.Close()
	p.Close()

	_, ok := <-ch
	require.False(t, ok)

	require.ErrorIs(t, p.Publish(testStatsEvent("a")), ErrClosed)

	_, _, err := p.Events()
	require.ErrorIs(t, err, ErrClosed)
}

func TestPubSubCloseDelivers(t *testing.T) {
	p := NewPubSub()

	ch, cancel := p.Subscribe()
	defer cancel()

	require.NoError(t, p.Publish(testStatsEvent("a")))

	p.Close()

	e, ok := <-ch
	require.True(t, ok)
	require.Equal(t, "a", e.(*StatsEvent).Source)

	_, ok = <-ch
	require.False(t, ok)
}

func TestPubSubSubscribeWhileClosing(t *testing.T) {
	p := NewPubSub()

	chans := make(chan (<-chan Event), 100)
	wg := sync.WaitGroup{}

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			ch, _ := p.Subscribe()
			chans <- ch
		}()
	}

	p.Close()
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

	ch, cancel := p.Subscribe()
	cancel()

	_, ok := <-ch
	require.False(t, ok)
}
