package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTrackerFirstSample(t *testing.T) {
	tracker := NewTracker(TrackerConfig{})

	_, ok := tracker.Last()
	require.False(t, ok)

	at := time.UnixMicro(1_000_000)

	sample := tracker.UpdateAt(Stats{Frame: 30, TotalSize: 1000, OutTimeMs: 1000, DupFrames: 1, DropFrames: 2}, at)

	require.False(t, sample.Restarted)
	require.Equal(t, ParsedStats{DupFrames: 1, DropFrames: 2}, sample.Parsed)
	require.Equal(t, uint64(1_000_000), sample.Last.TotalSize.LastTimeUs)

	last, ok := tracker.Last()
	require.True(t, ok)
	require.Equal(t, sample.Last, last)
}

func TestTrackerRates(t *testing.T) {
	tracker := NewTracker(TrackerConfig{})

	start := time.UnixMicro(10_000_000)

	tracker.UpdateAt(Stats{Frame: 0, TotalSize: 0, OutTimeMs: 0}, start)

	sample := tracker.UpdateAt(Stats{Frame: 60, TotalSize: 250000, OutTimeMs: 2000, DupFrames: 3}, start.Add(2*time.Second))

	require.InDelta(t, 30.0, sample.Parsed.FPS, 1e-9)
	require.InDelta(t, 1.0, sample.Parsed.Speed, 1e-9)
	require.InDelta(t, 1000.0, sample.Parsed.Bitrate, 1e-9) // 250000 bytes in 2s = 1000 kbit/s
	require.Equal(t, uint64(3), sample.Parsed.DupFrames)
	require.NoError(t, sample.Parsed.Validate())

	require.Equal(t, uint64(250000), sample.Last.TotalSize.Value)
	require.Equal(t, uint64(12_000_000), sample.Last.TotalSize.LastTimeUs)
}

func TestTrackerBitrateBetweenSizeChanges(t *testing.T) {
	tracker := NewTracker(TrackerConfig{})

	start := time.UnixMicro(0)

	tracker.UpdateAt(Stats{Frame: 0, TotalSize: 0}, start)

	// the size didn't change, the bitrate and the time of the last change stay
	sample := tracker.UpdateAt(Stats{Frame: 25, TotalSize: 0, OutTimeMs: 1000}, start.Add(time.Second))
	require.Equal(t, 0.0, sample.Parsed.Bitrate)
	require.Equal(t, uint64(0), sample.Last.TotalSize.LastTimeUs)
	require.InDelta(t, 25.0, sample.Parsed.FPS, 1e-9)

	// the size changed after 2s, the bitrate is computed over the full 2s
	sample = tracker.UpdateAt(Stats{Frame: 50, TotalSize: 500000, OutTimeMs: 2000}, start.Add(2*time.Second))
	require.InDelta(t, 2000.0, sample.Parsed.Bitrate, 1e-9)
	require.Equal(t, uint64(2_000_000), sample.Last.TotalSize.LastTimeUs)

	// no change, the last bitrate is kept
	sample = tracker.UpdateAt(Stats{Frame: 75, TotalSize: 500000, OutTimeMs: 3000}, start.Add(3*time.Second))
	require.InDelta(t, 2000.0, sample.Parsed.Bitrate, 1e-9)
	require.InDelta(t, 25.0, sample.Parsed.FPS, 1e-9)
}

func TestTrackerRestart(t *testing.T) {
	tracker := NewTracker(TrackerConfig{})

	start := time.UnixMicro(0)

	tracker.UpdateAt(Stats{Frame: 100, TotalSize: 100000, OutTimeMs: 4000}, start)
	tracker.UpdateAt(Stats{Frame: 200, TotalSize: 200000, OutTimeMs: 8000}, start.Add(4*time.Second))

	sample := tracker.UpdateAt(Stats{Frame: 10, TotalSize: 5000, OutTimeMs: 400, DropFrames: 1}, start.Add(5*time.Second))

	require.True(t, sample.Restarted)
	require.Equal(t, ParsedStats{DropFrames: 1}, sample.Parsed)
	require.Equal(t, uint64(10), sample.Last.Frame)
	require.Equal(t, uint64(5_000_000), sample.Last.TotalSize.LastTimeUs)
}

func TestTrackerSameTimestamp(t *testing.T) {
	tracker := NewTracker(TrackerConfig{})

	at := time.UnixMicro(0)

	tracker.UpdateAt(Stats{Frame: 0}, at)
	tracker.UpdateAt(Stats{Frame: 25, TotalSize: 1000}, at.Add(time.Second))

	sample := tracker.UpdateAt(Stats{Frame: 30, TotalSize: 1000, DupFrames: 4}, at.Add(time.Second))

	require.InDelta(t, 25.0, sample.Parsed.FPS, 1e-9)
	require.Equal(t, uint64(4), sample.Parsed.DupFrames)
	require.NoError(t, sample.Parsed.Validate())
}

func TestTrackerClock(t *testing.T) {
	now := time.UnixMicro(0)

	tracker := NewTracker(TrackerConfig{
		Clock: func() time.Time { return now },
	})

	tracker.Update(Stats{Frame: 0})

	now = now.Add(500 * time.Millisecond)

	sample := tracker.Update(Stats{Frame: 15, OutTimeMs: 1000})

	require.InDelta(t, 30.0, sample.Parsed.FPS, 1e-9)
	require.InDelta(t, 2.0, sample.Parsed.Speed, 1e-9)
	require.Equal(t, sample.Parsed, tracker.Parsed())
}

func TestTrackerReset(t *testing.T) {
	tracker := NewTracker(TrackerConfig{})

	tracker.UpdateAt(Stats{Frame: 10}, time.UnixMicro(0))
	tracker.Reset()

	_, ok := tracker.Last()
	require.False(t, ok)
	require.Equal(t, ParsedStats{}, tracker.Parsed())

	sample := tracker.UpdateAt(Stats{Frame: 1}, time.UnixMicro(1))
	require.False(t, sample.Restarted)
}

func TestTrackerWindow(t *testing.T) {
	tracker := NewTracker(TrackerConfig{
		Window:      200 * time.Millisecond,
		Granularity: 50 * time.Millisecond,
	})
	defer tracker.Stop()

	start := time.Now()

	tracker.UpdateAt(Stats{Frame: 0}, start)

	// before the first slot of the window is complete the rate between the samples is used
	sample := tracker.UpdateAt(Stats{Frame: 10}, start.Add(time.Second))
	require.InDelta(t, 10.0, sample.Parsed.FPS, 1e-9)

	require.Eventually(t, func() bool {
		sample := tracker.UpdateAt(Stats{Frame: 10}, start.Add(2*time.Second))
		return sample.Parsed.FPS > 0 && sample.Parsed.FPS != 10.0
	}, time.Second, 10*time.Millisecond)
}
