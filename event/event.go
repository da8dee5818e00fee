// Package event distributes events to any number of subscribers.
package event

import (
	"errors"
	"sync"

	"github.com/lithammer/shortuuid/v4"
)

// ErrClosed is returned when publishing to or subscribing on a closed PubSub.
var ErrClosed = errors.New("event: pubsub closed")

// ErrQueueFull is returned if an event had to be dropped.
var ErrQueueFull = errors.New("event: queue full")

type Event interface {
	Clone() Event
}

type CancelFunc func()

// EventSource is the subscriber side of a PubSub.
type EventSource interface {
	Events() (<-chan Event, CancelFunc, error)
}

// PubSub fans out published events to all subscribers. A subscriber that
// doesn't keep up misses events, the publisher never blocks.
type PubSub struct {
	queue  chan Event
	closed bool
	lock   sync.Mutex

	subscriber     map[string]chan Event
	subscriberLock sync.Mutex
	drained        bool

	done chan struct{}
}

func NewPubSub() *PubSub {
	p := &PubSub{
		queue:      make(chan Event, 1024),
		subscriber: make(map[string]chan Event),
		done:       make(chan struct{}),
	}

	go p.broadcast()

	return p
}

// Publish queues a copy of e for all current subscribers.
func (p *PubSub) Publish(e Event) error {
	event := e.Clone()

	p.lock.Lock()
	defer p.lock.Unlock()

	if p.closed {
		return ErrClosed
	}

	select {
	case p.queue <- event:
	default:
		return ErrQueueFull
	}

	return nil
}

// Close stops accepting events. It returns after the queued events have been
// delivered and all subscriber channels have been closed.
func (p *PubSub) Close() {
	p.lock.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.lock.Unlock()

	<-p.done
}

// Subscribe returns a channel with all future events. The channel is closed
// by the CancelFunc or when the PubSub is closed. On a closed PubSub the
// channel is closed right away.
func (p *PubSub) Subscribe() (<-chan Event, CancelFunc) {
	ch := make(chan Event, 1024)

	var id string

	p.subscriberLock.Lock()
	if p.drained {
		p.subscriberLock.Unlock()
		close(ch)
		return ch, func() {}
	}

	for {
		id = shortuuid.New()
		if _, ok := p.subscriber[id]; !ok {
			p.subscriber[id] = ch
			break
		}
	}
	p.subscriberLock.Unlock()

	cancel := func() {
		p.subscriberLock.Lock()
		if c, ok := p.subscriber[id]; ok {
			delete(p.subscriber, id)
			close(c)
		}
		p.subscriberLock.Unlock()
	}

	return ch, cancel
}

// Events implements the EventSource interface.
func (p *PubSub) Events() (<-chan Event, CancelFunc, error) {
	p.lock.Lock()
	closed := p.closed
	p.lock.Unlock()

	if closed {
		return nil, nil, ErrClosed
	}

	ch, cancel := p.Subscribe()

	return ch, cancel, nil
}

func (p *PubSub) broadcast() {
	defer close(p.done)

	for e := range p.queue {
		p.subscriberLock.Lock()
		for _, ch := range p.subscriber {
			select {
			case ch <- e.Clone():
			default:
			}
		}
		p.subscriberLock.Unlock()
	}

	p.subscriberLock.Lock()
	for id, ch := range p.subscriber {
		delete(p.subscriber, id)
		close(ch)
	}
	p.drained = true
	p.subscriberLock.Unlock()
}
