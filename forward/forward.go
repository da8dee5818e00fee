// Package forward publishes the stats events to a Redis channel.
package forward

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/datarhei/ffstats/encoding/json"
	"github.com/datarhei/ffstats/event"
	"github.com/datarhei/ffstats/log"

	"github.com/redis/go-redis/v9"
)

type Config struct {
	// Address of the Redis server, e.g. "localhost:6379"
	Address  string
	Password string
	DB       int

	// Channel to publish the events to. Defaults to "ffstats:events".
	Channel string

	// Events is the source of the events to forward.
	Events event.EventSource

	Logger log.Logger
}

type Forwarder interface {
	// Start forwards the events until Stop is called.
	Start() error

	// Stop stops forwarding and closes the connection to Redis.
	Stop()
}

// client is the part of the Redis client that is used.
type client interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Close() error
}

type forwarder struct {
	client  client
	channel string
	events  event.EventSource
	logger  log.Logger

	timeout time.Duration

	lock   sync.Mutex
	cancel event.CancelFunc
	done   chan struct{}
}

func New(config Config) (Forwarder, error) {
	if config.Events == nil {
		return nil, fmt.Errorf("an event source is required")
	}

	c := redis.NewClient(&redis.Options{
		Addr:     config.Address,
		Password: config.Password,
		DB:       config.DB,
	})

	return newForwarder(c, config), nil
}

func newForwarder(c client, config Config) *forwarder {
	f := &forwarder{
		client:  c,
		channel: config.Channel,
		events:  config.Events,
		logger:  config.Logger,
		timeout: 2 * time.Second,
	}

	if len(f.channel) == 0 {
		f.channel = "ffstats:events"
	}

	if f.logger == nil {
		f.logger = log.New("")
	}

	return f
}

func (f *forwarder) Start() error {
	f.lock.Lock()
	defer f.lock.Unlock()

	if f.cancel != nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	err := f.client.Ping(ctx).Err()
	cancel()

	if err != nil {
		// The connection is established lazily, publishing will be retried
		// with every event.
		f.logger.Warn().WithError(err).Log("Redis is not reachable")
	}

	ch, unsubscribe, err := f.events.Events()
	if err != nil {
		return fmt.Errorf("subscribing to events: %w", err)
	}

	f.cancel = unsubscribe
	f.done = make(chan struct{})

	go f.forward(ch, f.done)

	f.logger.Info().WithField("channel", f.channel).Log("Forwarding events")

	return nil
}

func (f *forwarder) forward(ch <-chan event.Event, done chan struct{}) {
	defer close(done)

	for e := range ch {
		evt, ok := e.(*event.StatsEvent)
		if !ok {
			continue
		}

		if err := f.publish(evt); err != nil {
			f.logger.Warn().WithError(err).WithField("source", evt.Source).Log("Publishing event failed")
		}
	}
}

func (f *forwarder) publish(evt *event.StatsEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	if err := f.client.Publish(ctx, f.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish to Redis: %w", err)
	}

	return nil
}

func (f *forwarder) Stop() {
	f.lock.Lock()
	defer f.lock.Unlock()

	if f.cancel != nil {
		f.cancel()
		<-f.done

		f.cancel = nil
		f.done = nil
	}

	if err := f.client.Close(); err != nil {
		f.logger.Warn().WithError(err).Log("Closing connection")
	}
}
