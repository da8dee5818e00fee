package stats

import (
	"sync"
	"time"

	"github.com/prep/average"
)

// TrackerConfig is the configuration for a Tracker.
type TrackerConfig struct {
	// Window enables smoothing of the rates over a sliding window. A zero
	// Window reports the rate between the last two samples.
	Window time.Duration

	// Granularity of the sliding window, defaults to one second.
	Granularity time.Duration

	// Clock returns the current time, defaults to time.Now.
	Clock func() time.Time
}

// Sample is the outcome of feeding a Stats snapshot into a Tracker.
type Sample struct {
	Stats  Stats
	Last   LastStats
	Parsed ParsedStats

	// Restarted is set if a counter went backwards and the tracker
	// started over with this sample.
	Restarted bool
}

// Tracker derives ParsedStats from consecutive Stats snapshots.
//
// fps and speed are computed between two samples, the bitrate between two
// changes of the total size. A counter that goes backwards resets the tracker.
type Tracker struct {
	window      time.Duration
	granularity time.Duration
	clock       func() time.Time

	lock        sync.RWMutex
	initialized bool
	sampledAt   time.Time
	last        LastStats
	parsed      ParsedStats
	averager    *averager
}

func NewTracker(config TrackerConfig) *Tracker {
	t := &Tracker{
		window:      config.Window,
		granularity: config.Granularity,
		clock:       config.Clock,
	}

	if t.granularity <= 0 {
		t.granularity = time.Second
	}

	if t.clock == nil {
		t.clock = time.Now
	}

	return t
}

// Update feeds the snapshot s taken now into the tracker.
func (t *Tracker) Update(s Stats) Sample {
	return t.UpdateAt(s, t.clock())
}

// UpdateAt feeds the snapshot s taken at the given time into the tracker.
func (t *Tracker) UpdateAt(s Stats, at time.Time) Sample {
	t.lock.Lock()
	defer t.lock.Unlock()

	if !t.initialized || t.wentBackwards(s) {
		restarted := t.initialized

		t.restart(s, at)

		return Sample{
			Stats:     s,
			Last:      t.last,
			Parsed:    t.parsed,
			Restarted: restarted,
		}
	}

	elapsed := at.Sub(t.sampledAt)

	diffFrame := s.Frame - t.last.Frame
	diffOutTime := s.OutTimeMs - t.last.OutTimeMs
	diffSize := s.TotalSize - t.last.TotalSize.Value

	if elapsed > 0 {
		t.parsed.FPS = float64(diffFrame) / elapsed.Seconds()
		t.parsed.Speed = float64(diffOutTime) / (elapsed.Seconds() * 1000)
		t.sampledAt = at
	}

	if diffSize != 0 {
		nowUs := uint64(at.UnixMicro())

		if nowUs > t.last.TotalSize.LastTimeUs {
			seconds := float64(nowUs-t.last.TotalSize.LastTimeUs) / 1e6
			t.parsed.Bitrate = float64(diffSize) * 8 / 1000 / seconds
		}

		t.last.TotalSize = TotalSize{
			Value:      s.TotalSize,
			LastTimeUs: nowUs,
		}
	}

	if t.averager != nil {
		t.averager.add(diffFrame, diffSize, diffOutTime)
		t.averager.apply(&t.parsed, t.window)
	}

	t.last.Frame = s.Frame
	t.last.OutTimeMs = s.OutTimeMs
	t.last.DupFrames = s.DupFrames
	t.last.DropFrames = s.DropFrames

	t.parsed.DupFrames = s.DupFrames
	t.parsed.DropFrames = s.DropFrames

	return Sample{
		Stats:  s,
		Last:   t.last,
		Parsed: t.parsed,
	}
}

func (t *Tracker) wentBackwards(s Stats) bool {
	return s.Frame < t.last.Frame || s.TotalSize < t.last.TotalSize.Value || s.OutTimeMs < t.last.OutTimeMs
}

func (t *Tracker) restart(s Stats, at time.Time) {
	t.stopAverager()

	t.initialized = true
	t.sampledAt = at
	t.last = NewLastStats(s, at)
	t.parsed = ParsedStats{
		DupFrames:  s.DupFrames,
		DropFrames: s.DropFrames,
	}

	if t.window > 0 {
		a, err := newAverager(t.window, t.granularity)
		if err == nil {
			t.averager = a
		}
	}
}

// Last returns the previous sample. The second return value is false if
// there hasn't been any sample yet.
func (t *Tracker) Last() (LastStats, bool) {
	t.lock.RLock()
	defer t.lock.RUnlock()

	return t.last, t.initialized
}

// Parsed returns the current rates.
func (t *Tracker) Parsed() ParsedStats {
	t.lock.RLock()
	defer t.lock.RUnlock()

	return t.parsed
}

// Reset forgets all samples.
func (t *Tracker) Reset() {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.stopAverager()

	t.initialized = false
	t.sampledAt = time.Time{}
	t.last = LastStats{}
	t.parsed = ParsedStats{}
}

// Stop releases the sliding windows. The tracker can still be used afterwards
// but reports unsmoothed rates until the next restart.
func (t *Tracker) Stop() {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.stopAverager()
}

func (t *Tracker) stopAverager() {
	if t.averager == nil {
		return
	}

	t.averager.stop()
	t.averager = nil
}

type averager struct {
	granularity time.Duration
	fps         *average.SlidingWindow
	bitrate     *average.SlidingWindow
	speed       *average.SlidingWindow
}

func newAverager(window, granularity time.Duration) (*averager, error) {
	a := &averager{
		granularity: granularity,
	}

	var err error

	if a.fps, err = average.New(window, granularity); err != nil {
		return nil, err
	}

	a.bitrate, _ = average.New(window, granularity)
	a.speed, _ = average.New(window, granularity)

	return a, nil
}

func (a *averager) add(frames, bytes, outTimeMs uint64) {
	a.fps.Add(int64(frames))
	a.bitrate.Add(int64(bytes) * 8)
	a.speed.Add(int64(outTimeMs))
}

// apply overwrites the rates with the averages over the window. Nothing is
// changed until the first slot of the window has been completed.
func (a *averager) apply(p *ParsedStats, window time.Duration) {
	if _, n := a.fps.Total(window); n == 0 {
		return
	}

	seconds := a.granularity.Seconds()

	p.FPS = a.fps.Average(window) / seconds
	p.Bitrate = a.bitrate.Average(window) / seconds / 1000
	p.Speed = a.speed.Average(window) / (seconds * 1000)
}

func (a *averager) stop() {
	a.fps.Stop()
	a.bitrate.Stop()
	a.speed.Stop()
}
