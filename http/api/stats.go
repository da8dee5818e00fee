package api

import (
	"github.com/datarhei/ffstats/ffmpeg/progress"
	"github.com/datarhei/ffstats/stats"
)

// Stats are the raw counters of the last progress report
type Stats struct {
	Frame      uint64 `json:"frame" jsonschema:"required"`
	TotalSize  uint64 `json:"total_size" jsonschema:"required"`
	OutTimeMs  uint64 `json:"out_time_ms" jsonschema:"required"`
	DupFrames  uint64 `json:"dup_frames" jsonschema:"required"`
	DropFrames uint64 `json:"drop_frames" jsonschema:"required"`
}

func (s *Stats) Unmarshal(x stats.Stats) {
	s.Frame = x.Frame
	s.TotalSize = x.TotalSize
	s.OutTimeMs = x.OutTimeMs
	s.DupFrames = x.DupFrames
	s.DropFrames = x.DropFrames
}

type TotalSize struct {
	Value      uint64 `json:"value" jsonschema:"required"`
	LastTimeUs uint64 `json:"last_time_µs" jsonschema:"required"`
}

// LastStats are the counters the rates are computed against
type LastStats struct {
	Frame      uint64    `json:"frame" jsonschema:"required"`
	TotalSize  TotalSize `json:"total_size" jsonschema:"required"`
	OutTimeMs  uint64    `json:"out_time_ms" jsonschema:"required"`
	DupFrames  uint64    `json:"dup_frames" jsonschema:"required"`
	DropFrames uint64    `json:"drop_frames" jsonschema:"required"`
}

func (l *LastStats) Unmarshal(x stats.LastStats) {
	l.Frame = x.Frame
	l.TotalSize.Value = x.TotalSize.Value
	l.TotalSize.LastTimeUs = x.TotalSize.LastTimeUs
	l.OutTimeMs = x.OutTimeMs
	l.DupFrames = x.DupFrames
	l.DropFrames = x.DropFrames
}

// ParsedStats are the derived rates
type ParsedStats struct {
	FPS        float64 `json:"fps" jsonschema:"required,minimum=0"`
	Bitrate    float64 `json:"bitrate" jsonschema:"required,minimum=0"` // kbit/s
	Speed      float64 `json:"speed" jsonschema:"required,minimum=0"`
	DupFrames  uint64  `json:"dup_frames" jsonschema:"required"`
	DropFrames uint64  `json:"drop_frames" jsonschema:"required"`
}

func (p *ParsedStats) Unmarshal(x stats.ParsedStats) {
	p.FPS = x.FPS
	p.Bitrate = x.Bitrate
	p.Speed = x.Speed
	p.DupFrames = x.DupFrames
	p.DropFrames = x.DropFrames
}

// Reported are the rates as reported by ffmpeg
type Reported struct {
	FPS     float64 `json:"fps" jsonschema:"required"`
	Bitrate float64 `json:"bitrate" jsonschema:"required"` // kbit/s
	Speed   float64 `json:"speed" jsonschema:"required"`
}

func (r *Reported) Unmarshal(x progress.Reported) {
	r.FPS = x.FPS
	r.Bitrate = x.Bitrate
	r.Speed = x.Speed
}
