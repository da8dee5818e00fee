package source

import (
	"testing"
	"time"

	"github.com/datarhei/ffstats/event"
	"github.com/datarhei/ffstats/ffmpeg/progress"
	"github.com/datarhei/ffstats/history"
	"github.com/datarhei/ffstats/stats"

	"github.com/stretchr/testify/require"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time {
	return c.now
}

func (c *testClock) Add(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestRegistry(t *testing.T, config Config) (*registry, *testClock) {
	clock := &testClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}

	r := New(config).(*registry)
	r.clock = clock.Now

	t.Cleanup(r.Stop)

	return r, clock
}

func block(frame, size, outTimeMs uint64, end bool) progress.Block {
	return progress.Block{
		Stats: stats.Stats{
			Frame:     frame,
			TotalSize: size,
			OutTimeMs: outTimeMs,
		},
		Data: "frame=...",
		End:  end,
	}
}

func TestIDs(t *testing.T) {
	require.Equal(t, "udp:127.0.0.1:4000", UDPID("127.0.0.1:4000"))
	require.Equal(t, "http:encoder", HTTPID("encoder"))
}

func TestUpdate(t *testing.T) {
	r, clock := newTestRegistry(t, Config{})

	src := r.Update("http:a", block(0, 0, 0, false))
	require.Equal(t, StateRunning, src.State)
	require.Equal(t, uint64(1), src.Blocks)
	require.Equal(t, stats.ParsedStats{}, src.Parsed)

	clock.Add(time.Second)

	src = r.Update("http:a", block(25, 125000, 1000, false))
	require.Equal(t, uint64(2), src.Blocks)
	require.InDelta(t, 25.0, src.Parsed.FPS, 1e-9)
	require.InDelta(t, 1000.0, src.Parsed.Bitrate, 1e-9)
	require.InDelta(t, 1.0, src.Parsed.Speed, 1e-9)
	require.Equal(t, uint64(125000), src.Last.TotalSize.Value)

	got, err := r.Get("http:a")
	require.NoError(t, err)
	require.Equal(t, src, got)

	_, err = r.Get("http:b")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdatePublishes(t *testing.T) {
	pubsub := event.NewPubSub()
	defer pubsub.Close()

	ch, cancel := pubsub.Subscribe()
	defer cancel()

	r, _ := newTestRegistry(t, Config{Events: pubsub})

	r.Update("udp:127.0.0.1:5000", block(10, 100, 400, false))

	select {
	case e := <-ch:
		evt := e.(*event.StatsEvent)
		require.Equal(t, "ffmpeg_stats", evt.Name)
		require.Equal(t, "udp:127.0.0.1:5000", evt.Source)
		require.Equal(t, "frame=...", evt.Data)
		require.Equal(t, uint64(10), evt.Stats.Frame)
		require.False(t, evt.End)
	case <-time.After(time.Second):
		require.Fail(t, "no event received")
	}
}

func TestEndAddsHistory(t *testing.T) {
	store := history.NewMemoryStore(10)

	r, clock := newTestRegistry(t, Config{History: store})

	r.Update("http:a", block(0, 0, 0, false))
	clock.Add(2 * time.Second)
	src := r.Update("http:a", block(50, 1000, 2000, true))

	require.Equal(t, StateFinished, src.State)

	entries, err := store.List(0)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	require.NotEmpty(t, e.ID)
	require.Equal(t, "http:a", e.Source)
	require.Equal(t, uint64(2), e.Blocks)
	require.Equal(t, uint64(50), e.Stats.Frame)
	require.True(t, e.EndedAt.Equal(clock.now))
	require.True(t, e.CreatedAt.Equal(clock.now.Add(-2*time.Second)))

	// a new block after the end starts over
	clock.Add(time.Second)
	src = r.Update("http:a", block(1, 10, 40, false))
	require.Equal(t, StateRunning, src.State)
	require.Equal(t, uint64(1), src.Blocks)
	require.True(t, src.CreatedAt.Equal(clock.now))
}

func TestList(t *testing.T) {
	r, _ := newTestRegistry(t, Config{})

	r.Update("udp:127.0.0.1:5001", block(1, 1, 1, false))
	r.Update("http:b", block(1, 1, 1, false))
	r.Update("http:a", block(1, 1, 1, false))

	list, err := r.List("")
	require.NoError(t, err)
	require.Len(t, list, 3)
	require.Equal(t, "http:a", list[0].ID)
	require.Equal(t, "http:b", list[1].ID)
	require.Equal(t, "udp:127.0.0.1:5001", list[2].ID)

	list, err = r.List("http:*")
	require.NoError(t, err)
	require.Len(t, list, 2)

	list, err = r.List("none:*")
	require.NoError(t, err)
	require.Empty(t, list)

	list, err = r.List("http:b")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "http:b", list[0].ID)

	list, err = r.List("http:c")
	require.NoError(t, err)
	require.Empty(t, list)

	_, err = r.List("http:[")
	require.Error(t, err)
}

func TestDelete(t *testing.T) {
	r, _ := newTestRegistry(t, Config{})

	r.Update("http:a", block(1, 1, 1, false))

	require.NoError(t, r.Delete("http:a"))
	require.ErrorIs(t, r.Delete("http:a"), ErrNotFound)

	_, err := r.Get("http:a")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCleanup(t *testing.T) {
	r, clock := newTestRegistry(t, Config{Timeout: time.Minute})

	r.Update("http:old", block(1, 1, 1, false))
	clock.Add(30 * time.Second)
	r.Update("http:new", block(1, 1, 1, false))
	clock.Add(40 * time.Second)

	r.cleanup(clock.Now())

	_, err := r.Get("http:old")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = r.Get("http:new")
	require.NoError(t, err)
}

func TestJanitor(t *testing.T) {
	r := New(Config{Timeout: 100 * time.Millisecond}).(*registry)
	defer r.Stop()

	r.Update("http:a", block(1, 1, 1, false))

	r.Start()
	r.Start()

	require.Eventually(t, func() bool {
		_, err := r.Get("http:a")
		return err == ErrNotFound
	}, 2*time.Second, 20*time.Millisecond)
}
