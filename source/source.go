// Package source keeps track of every ffmpeg process that reports progress.
package source

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/datarhei/ffstats/event"
	"github.com/datarhei/ffstats/ffmpeg/progress"
	"github.com/datarhei/ffstats/glob"
	"github.com/datarhei/ffstats/history"
	"github.com/datarhei/ffstats/log"
	"github.com/datarhei/ffstats/stats"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("source not found")

type State string

const (
	StateRunning  State = "running"
	StateFinished State = "finished"
)

// Source is a snapshot of a progress producer.
type Source struct {
	ID        string            `json:"id"`
	State     State             `json:"state"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	Blocks    uint64            `json:"blocks"`
	Data      string            `json:"data"`
	Stats     stats.Stats       `json:"stats"`
	Last      stats.LastStats   `json:"last"`
	Parsed    stats.ParsedStats `json:"parsed"`
	Reported  progress.Reported `json:"reported"`
}

// UDPID returns the ID of a source that sends datagrams from the given address.
func UDPID(addr string) string {
	return "udp:" + addr
}

// HTTPID returns the ID of a source that posts its progress under the given name.
func HTTPID(name string) string {
	return "http:" + name
}

type Registry interface {
	// Update feeds a progress block of the source with the given ID. The
	// source is created if it doesn't exist yet.
	Update(id string, block progress.Block) Source

	// Get returns the source with the given ID.
	Get(id string) (Source, error)

	// List returns all sources whose ID matches the pattern, ordered by ID.
	// An empty pattern matches all sources.
	List(pattern string) ([]Source, error)

	// Delete removes the source with the given ID.
	Delete(id string) error

	// Start starts the removal of stale sources.
	Start()

	// Stop stops the removal of stale sources.
	Stop()
}

type Publisher interface {
	Publish(e event.Event) error
}

type Config struct {
	// Timeout after which a source without updates is removed. A zero
	// Timeout keeps the sources forever.
	Timeout time.Duration

	// Window and Granularity of the rate smoothing, see stats.TrackerConfig.
	Window      time.Duration
	Granularity time.Duration

	Events  Publisher
	History history.Store
	Logger  log.Logger
}

type entry struct {
	source  Source
	tracker *stats.Tracker
}

type registry struct {
	timeout     time.Duration
	window      time.Duration
	granularity time.Duration

	events  Publisher
	history history.Store
	logger  log.Logger

	clock func() time.Time

	sources map[string]*entry
	lock    sync.RWMutex

	cancel  context.CancelFunc
	startMu sync.Mutex
}

func New(config Config) Registry {
	r := &registry{
		timeout:     config.Timeout,
		window:      config.Window,
		granularity: config.Granularity,
		events:      config.Events,
		history:     config.History,
		logger:      config.Logger,
		clock:       time.Now,
		sources:     map[string]*entry{},
	}

	if r.logger == nil {
		r.logger = log.New("")
	}

	return r
}

func (r *registry) Update(id string, block progress.Block) Source {
	now := r.clock()

	r.lock.Lock()

	e, ok := r.sources[id]
	if !ok || e.source.State == StateFinished {
		if ok {
			e.tracker.Stop()
		}

		e = &entry{
			source: Source{
				ID:        id,
				State:     StateRunning,
				CreatedAt: now,
			},
			tracker: stats.NewTracker(stats.TrackerConfig{
				Window:      r.window,
				Granularity: r.granularity,
			}),
		}

		r.sources[id] = e

		r.logger.Info().WithField("source", id).Log("New source")
	}

	sample := e.tracker.UpdateAt(block.Stats, now)

	if sample.Restarted {
		r.logger.Info().WithField("source", id).Log("Counters went backwards, restarting")
	}

	e.source.UpdatedAt = now
	e.source.Blocks++
	e.source.Data = block.Data
	e.source.Stats = sample.Stats
	e.source.Last = sample.Last
	e.source.Parsed = sample.Parsed
	e.source.Reported = block.Reported

	if block.End {
		e.source.State = StateFinished
		e.tracker.Stop()
	}

	src := e.source

	r.lock.Unlock()

	if r.events != nil {
		evt := event.NewStatsEvent(id, block, sample)
		evt.Timestamp = now

		if err := r.events.Publish(evt); err != nil {
			r.logger.Warn().WithError(err).WithField("source", id).Log("Publishing event failed")
		}
	}

	if block.End {
		r.logger.Info().WithFields(log.Fields{
			"source": id,
			"frames": src.Stats.Frame,
			"blocks": src.Blocks,
		}).Log("Source finished")

		r.addHistory(src)
	}

	return src
}

func (r *registry) addHistory(src Source) {
	if r.history == nil {
		return
	}

	err := r.history.Add(history.Entry{
		ID:        uuid.New().String(),
		Source:    src.ID,
		CreatedAt: src.CreatedAt,
		EndedAt:   src.UpdatedAt,
		Stats:     src.Stats,
		Last:      src.Last,
		Parsed:    src.Parsed,
		Blocks:    src.Blocks,
	})
	if err != nil {
		r.logger.Error().WithError(err).WithField("source", src.ID).Log("Adding to history failed")
	}
}

func (r *registry) Get(id string) (Source, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	e, ok := r.sources[id]
	if !ok {
		return Source{}, ErrNotFound
	}

	return e.source, nil
}

func (r *registry) List(pattern string) ([]Source, error) {
	if len(pattern) != 0 && !glob.IsPattern(pattern) {
		r.lock.RLock()
		defer r.lock.RUnlock()

		e, ok := r.sources[pattern]
		if !ok {
			return []Source{}, nil
		}

		return []Source{e.source}, nil
	}

	m, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}

	r.lock.RLock()

	list := []Source{}

	for id, e := range r.sources {
		if !m.Match(id) {
			continue
		}

		list = append(list, e.source)
	}

	r.lock.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		return list[i].ID < list[j].ID
	})

	return list, nil
}

func (r *registry) Delete(id string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	e, ok := r.sources[id]
	if !ok {
		return ErrNotFound
	}

	e.tracker.Stop()
	delete(r.sources, id)

	r.logger.Info().WithField("source", id).Log("Removed source")

	return nil
}

func (r *registry) Start() {
	r.startMu.Lock()
	defer r.startMu.Unlock()

	if r.timeout <= 0 || r.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	interval := r.timeout / 2
	if interval > 10*time.Second {
		interval = 10 * time.Second
	}

	go r.janitor(ctx, interval)
}

func (r *registry) Stop() {
	r.startMu.Lock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.startMu.Unlock()

	r.lock.Lock()
	for _, e := range r.sources {
		e.tracker.Stop()
	}
	r.lock.Unlock()
}

func (r *registry) janitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.cleanup(r.clock())
		}
	}
}

// cleanup removes all sources that haven't been updated within the timeout.
func (r *registry) cleanup(now time.Time) {
	r.lock.Lock()
	defer r.lock.Unlock()

	for id, e := range r.sources {
		if now.Sub(e.source.UpdatedAt) < r.timeout {
			continue
		}

		e.tracker.Stop()
		delete(r.sources, id)

		r.logger.Debug().WithFields(log.Fields{
			"source": id,
			"state":  string(e.source.State),
		}).Log("Removed stale source")
	}
}
