// Package progress assembles the key=value blocks that ffmpeg writes with
// the -progress option into stats.
package progress

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/datarhei/ffstats/log"
	"github.com/datarhei/ffstats/stats"
)

// Parser consumes the raw -progress output of a single ffmpeg process.
type Parser interface {
	// Write accepts arbitrary chunks of the output. Incomplete lines are
	// kept until the next call. It never returns an error.
	Write(p []byte) (int, error)

	// Blocks returns the blocks completed since the last call. If an
	// OnBlock callback is configured, the list is always empty.
	Blocks() []Block

	// Flush completes a pending block that hasn't been terminated by a
	// progress line. The second return value is false if there was nothing
	// pending.
	Flush() (Block, bool)

	// Reset drops the incomplete line and the pending block. Completed
	// blocks are kept.
	Reset()
}

// MaxLineLength is the longest line the parser accepts. Longer lines are
// dropped and counted as skipped.
const MaxLineLength = 4096

// Config is the config for the Parser implementation
type Config struct {
	// OutTimeMsIsMilliseconds treats the value of out_time_ms as
	// milliseconds. ffmpeg writes microseconds under that key.
	OutTimeMsIsMilliseconds bool

	// OnBlock is called for every completed block.
	OnBlock func(Block)

	Logger log.Logger
}

// Reported are the rates as ffmpeg computes them itself.
type Reported struct {
	FPS     float64 `json:"fps"`
	Bitrate float64 `json:"bitrate"` // kbit/s
	Speed   float64 `json:"speed"`
}

// Block is one progress report.
type Block struct {
	Stats    stats.Stats
	Reported Reported

	// Data are the lines of the counters that make up Stats, joined by a newline.
	Data string

	// End is set if ffmpeg signaled the end of the process.
	End bool

	// Skipped is the number of lines that couldn't be used.
	Skipped int
}

var statsKeys = map[string]struct{}{
	"frame":       {},
	"total_size":  {},
	"out_time_ms": {},
	"dup_frames":  {},
	"drop_frames": {},
}

type parser struct {
	outTimeMsIsMs bool
	onBlock       func(Block)
	logger        log.Logger

	lock     sync.Mutex
	partial  []byte
	overflow bool
	block    *blockBuilder
	blocks   []Block
}

// New returns a Parser that satisfies the Parser interface
func New(config Config) Parser {
	p := &parser{
		outTimeMsIsMs: config.OutTimeMsIsMilliseconds,
		onBlock:       config.OnBlock,
		logger:        config.Logger,
	}

	if p.logger == nil {
		p.logger = log.New("")
	}

	return p
}

func (p *parser) Write(data []byte) (int, error) {
	var completed []Block

	n := len(data)

	p.lock.Lock()

	for len(data) != 0 {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			p.keep(data)
			break
		}

		line := data[:i]
		data = data[i+1:]

		if p.overflow || len(p.partial)+len(line) > MaxLineLength {
			p.overflow = false
			p.partial = p.partial[:0]
			p.skipLine()
			continue
		}

		if len(p.partial) != 0 {
			p.partial = append(p.partial, line...)
			line = p.partial
		}

		block, ok := p.parseLine(string(line))
		p.partial = p.partial[:0]

		if ok {
			completed = append(completed, block)
		}
	}

	if p.onBlock == nil {
		p.blocks = append(p.blocks, completed...)
	}

	p.lock.Unlock()

	if p.onBlock != nil {
		for _, b := range completed {
			p.onBlock(b)
		}
	}

	return n, nil
}

// keep stores the beginning of a line until its end arrives. A line that
// grows beyond MaxLineLength is dropped up to the next newline.
func (p *parser) keep(data []byte) {
	if p.overflow {
		return
	}

	if len(p.partial)+len(data) > MaxLineLength {
		p.overflow = true
		p.partial = p.partial[:0]
		return
	}

	p.partial = append(p.partial, data...)
}

func (p *parser) skipLine() {
	if p.block == nil {
		p.block = newBlockBuilder(p.outTimeMsIsMs)
	}

	p.block.skip()
}

func (p *parser) parseLine(line string) (Block, bool) {
	if p.block == nil {
		p.block = newBlockBuilder(p.outTimeMsIsMs)
	}

	if done := p.block.add(line); !done {
		return Block{}, false
	}

	block := p.block.build()
	p.block = nil

	p.logger.Debug().WithFields(log.Fields{
		"frame":   block.Stats.Frame,
		"end":     block.End,
		"skipped": block.Skipped,
	}).Log("Block")

	return block, true
}

func (p *parser) Blocks() []Block {
	p.lock.Lock()
	defer p.lock.Unlock()

	blocks := p.blocks
	p.blocks = nil

	return blocks
}

func (p *parser) Flush() (Block, bool) {
	p.lock.Lock()
	defer p.lock.Unlock()

	if p.overflow {
		p.overflow = false
		p.skipLine()
	}

	if len(p.partial) != 0 {
		line := string(p.partial)
		p.partial = p.partial[:0]

		if block, ok := p.parseLine(line); ok {
			return block, true
		}
	}

	if p.block == nil || p.block.empty() {
		p.block = nil
		return Block{}, false
	}

	block := p.block.build()
	p.block = nil

	return block, true
}

func (p *parser) Reset() {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.partial = p.partial[:0]
	p.overflow = false
	p.block = nil
}

// ParseDatagram parses a single datagram as one block, regardless of whether
// it has been terminated by a progress line.
func ParseDatagram(data []byte, outTimeMsIsMs bool) Block {
	b := newBlockBuilder(outTimeMsIsMs)

	for _, line := range strings.Split(string(data), "\n") {
		b.add(line)
	}

	return b.build()
}

type blockBuilder struct {
	outTimeMsIsMs bool

	lines    int
	data     []string
	stats    stats.Stats
	reported Reported
	end      bool
	skipped  int

	outTimeUs    int64
	hasOutTimeUs bool
	outTimeMs    int64
	hasOutTimeMs bool
}

func newBlockBuilder(outTimeMsIsMs bool) *blockBuilder {
	return &blockBuilder{
		outTimeMsIsMs: outTimeMsIsMs,
	}
}

func (b *blockBuilder) empty() bool {
	return b.lines == 0
}

func (b *blockBuilder) skip() {
	b.lines++
	b.skipped++
}

// add parses a line and returns whether it terminated the block.
func (b *blockBuilder) add(line string) bool {
	line = strings.TrimRight(line, "\r")

	if strings.HasSuffix(line, "=end") {
		b.end = true
	}

	if len(strings.TrimSpace(line)) == 0 {
		return false
	}

	b.lines++

	key, value, found := strings.Cut(line, "=")
	if !found {
		b.skipped++
		return false
	}

	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)

	if _, ok := statsKeys[key]; ok {
		b.data = append(b.data, line)
	}

	var err error

	switch key {
	case "progress":
		return true
	case "frame":
		b.stats.Frame, err = parseCounter(value)
	case "total_size":
		b.stats.TotalSize, err = parseCounter(value)
	case "dup_frames":
		b.stats.DupFrames, err = parseCounter(value)
	case "drop_frames":
		b.stats.DropFrames, err = parseCounter(value)
	case "out_time_us":
		b.outTimeUs, err = strconv.ParseInt(value, 10, 64)
		b.hasOutTimeUs = err == nil
	case "out_time_ms":
		b.outTimeMs, err = strconv.ParseInt(value, 10, 64)
		b.hasOutTimeMs = err == nil
	case "fps":
		b.reported.FPS, err = parseRate(value, "")
	case "bitrate":
		b.reported.Bitrate, err = parseRate(value, "kbits/s")
	case "speed":
		b.reported.Speed, err = parseRate(value, "x")
	case "out_time":
	default:
		if !isStreamKey(key) {
			b.skipped++
		}
	}

	if err != nil {
		b.skipped++
	}

	return false
}

func (b *blockBuilder) build() Block {
	s := b.stats

	switch {
	case b.hasOutTimeUs:
		s.OutTimeMs = nonNegative(b.outTimeUs) / 1000
	case b.hasOutTimeMs:
		if b.outTimeMsIsMs {
			s.OutTimeMs = nonNegative(b.outTimeMs)
		} else {
			s.OutTimeMs = nonNegative(b.outTimeMs) / 1000
		}
	}

	return Block{
		Stats:    s,
		Reported: b.reported,
		Data:     strings.Join(b.data, "\n"),
		End:      b.end,
		Skipped:  b.skipped,
	}
}

func parseCounter(value string) (uint64, error) {
	return strconv.ParseUint(value, 10, 64)
}

// parseRate parses a float with an optional unit. N/A is treated as 0.
func parseRate(value, unit string) (float64, error) {
	if value == "N/A" {
		return 0, nil
	}

	value = strings.TrimSpace(strings.TrimSuffix(value, unit))

	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, err
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid rate: %s", value)
	}

	if f < 0 {
		f = 0
	}

	return f, nil
}

// isStreamKey matches the per stream quantizer keys, e.g. stream_0_0_q.
func isStreamKey(key string) bool {
	return strings.HasPrefix(key, "stream_") && strings.HasSuffix(key, "_q")
}

func nonNegative(v int64) uint64 {
	if v < 0 {
		return 0
	}

	return uint64(v)
}
