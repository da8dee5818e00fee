// Package udp receives the progress of ffmpeg processes that have been started
// with -progress udp://host:port.
package udp

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/datarhei/ffstats/ffmpeg/progress"
	"github.com/datarhei/ffstats/log"
	"github.com/datarhei/ffstats/source"

	"golang.org/x/time/rate"
)

// ErrServerClosed is returned by ListenAndServe if the server
// has been closed regularly with the Close() function.
var ErrServerClosed = errors.New("udp: server closed")

// Config for a new UDP server
type Config struct {
	// The address the server should listen on, e.g. "0.0.0.0:25527"
	Addr string

	// Size of the read buffer. Longer datagrams are truncated. Defaults to 512.
	BufferSize int

	// DatagramMode treats every datagram as a complete block instead of
	// assembling the blocks from the stream of datagrams of a sender.
	DatagramMode bool

	// OutTimeMsIsMilliseconds, see progress.Config.
	OutTimeMsIsMilliseconds bool

	// Registry receives the blocks.
	Registry source.Registry

	// Logger. Optional.
	Logger log.Logger
}

// Server represents a UDP server
type Server interface {
	// Listen opens the socket.
	Listen() error

	// Serve reads datagrams until the server is closed. Listen is called
	// if it hasn't been called before.
	Serve() error

	// ListenAndServe opens the socket and reads datagrams until the server
	// is closed.
	ListenAndServe() error

	// Addr returns the address the socket is bound to, or nil.
	Addr() net.Addr

	// Close stops the server
	Close()
}

type sender struct {
	parser   progress.Parser
	lastSeen time.Time
}

type server struct {
	addr          string
	bufferSize    int
	datagramMode  bool
	outTimeMsIsMs bool

	registry source.Registry
	logger   log.Logger

	conn   net.PacketConn
	closed bool
	lock   sync.Mutex

	senders     map[string]*sender
	lastCleanup time.Time

	warnLimiter *rate.Limiter
}

const senderTimeout = time.Minute

func New(config Config) (Server, error) {
	if config.Registry == nil {
		return nil, fmt.Errorf("a registry is required")
	}

	s := &server{
		addr:          config.Addr,
		bufferSize:    config.BufferSize,
		datagramMode:  config.DatagramMode,
		outTimeMsIsMs: config.OutTimeMsIsMilliseconds,
		registry:      config.Registry,
		logger:        config.Logger,
		senders:       map[string]*sender{},
		warnLimiter:   rate.NewLimiter(rate.Every(10*time.Second), 3),
	}

	if len(s.addr) == 0 {
		s.addr = "0.0.0.0:25527"
	}

	if s.bufferSize <= 0 {
		s.bufferSize = 512
	}

	if s.logger == nil {
		s.logger = log.New("")
	}

	return s, nil
}

func (s *server) Listen() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.closed {
		return ErrServerClosed
	}

	if s.conn != nil {
		return nil
	}

	conn, err := net.ListenPacket("udp", s.addr)
	if err != nil {
		return err
	}

	s.conn = conn

	s.logger.Info().WithFields(log.Fields{
		"address":       conn.LocalAddr().String(),
		"buffer_size":   s.bufferSize,
		"datagram_mode": s.datagramMode,
	}).Log("Listening")

	return nil
}

func (s *server) ListenAndServe() error {
	if err := s.Listen(); err != nil {
		return err
	}

	return s.Serve()
}

func (s *server) Serve() error {
	if err := s.Listen(); err != nil {
		return err
	}

	s.lock.Lock()
	conn := s.conn
	s.lock.Unlock()

	buf := make([]byte, s.bufferSize)

	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			s.lock.Lock()
			closed := s.closed
			s.lock.Unlock()

			if closed || errors.Is(err, net.ErrClosed) {
				return ErrServerClosed
			}

			return err
		}

		truncated := n == len(buf)
		if truncated {
			s.warn(addr, "Datagram may have been truncated, increase the buffer size")
		}

		s.handle(addr.String(), buf[:n], truncated)
	}
}

// handle passes the datagram to the registry. The last line of a truncated
// datagram is incomplete and is dropped. In stream mode the pending block
// of the sender is dropped as well.
func (s *server) handle(addr string, data []byte, truncated bool) {
	id := source.UDPID(addr)

	if truncated {
		data = data[:bytes.LastIndexByte(data, '\n')+1]
	}

	if s.datagramMode {
		block := progress.ParseDatagram(data, s.outTimeMsIsMs)
		if len(block.Data) == 0 && !block.End {
			s.warnf(addr, "Datagram without progress data (%d skipped lines)", block.Skipped)
			return
		}

		s.registry.Update(id, block)

		return
	}

	now := time.Now()

	snd, ok := s.senders[addr]
	if !ok {
		snd = &sender{
			parser: progress.New(progress.Config{
				OutTimeMsIsMilliseconds: s.outTimeMsIsMs,
				Logger:                  s.logger.WithField("source", id),
			}),
		}
		s.senders[addr] = snd
	}

	snd.lastSeen = now

	snd.parser.Write(data)

	if truncated {
		snd.parser.Reset()
	}

	for _, block := range snd.parser.Blocks() {
		if block.Skipped != 0 {
			s.warnf(addr, "Skipped %d lines of a block", block.Skipped)
		}

		s.registry.Update(id, block)

		if block.End {
			delete(s.senders, addr)
		}
	}

	if now.Sub(s.lastCleanup) > senderTimeout {
		s.cleanup(now)
	}
}

// cleanup forgets about senders that have been quiet for a while.
func (s *server) cleanup(now time.Time) {
	s.lastCleanup = now

	for addr, snd := range s.senders {
		if now.Sub(snd.lastSeen) < senderTimeout {
			continue
		}

		if block, ok := snd.parser.Flush(); ok {
			s.registry.Update(source.UDPID(addr), block)
		}

		delete(s.senders, addr)
	}
}

func (s *server) warn(addr net.Addr, message string) {
	s.warnf(addr.String(), "%s", message)
}

func (s *server) warnf(addr string, format string, args ...interface{}) {
	if !s.warnLimiter.Allow() {
		return
	}

	s.logger.Warn().WithField("client", addr).Log(format, args...)
}

func (s *server) Addr() net.Addr {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.conn == nil {
		return nil
	}

	return s.conn.LocalAddr()
}

func (s *server) Close() {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.closed {
		return
	}

	s.closed = true

	if s.conn != nil {
		s.conn.Close()
	}
}
