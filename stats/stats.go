// Package stats holds the progress records of an ffmpeg process and derives
// rates from consecutive samples.
package stats

import (
	"fmt"
	"math"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
)

// Stats is a raw cumulative snapshot of the progress counters.
type Stats struct {
	Frame      uint64 `json:"frame"`
	TotalSize  uint64 `json:"total_size"`  // bytes
	OutTimeMs  uint64 `json:"out_time_ms"` // milliseconds
	DupFrames  uint64 `json:"dup_frames"`
	DropFrames uint64 `json:"drop_frames"`
}

func (s Stats) Clone() Stats {
	return s
}

// TotalSize is a cumulative size together with the time it has last been
// changed. ffmpeg updates the size in chunks, the rate has to be computed
// between two changes and not between two samples.
type TotalSize struct {
	Value      uint64 `json:"value"`         // bytes
	LastTimeUs uint64 `json:"last_time_µs"` // unix microseconds
}

// LastStats is the previous sample as kept by the Tracker.
type LastStats struct {
	Frame      uint64    `json:"frame"`
	TotalSize  TotalSize `json:"total_size"`
	OutTimeMs  uint64    `json:"out_time_ms"`
	DupFrames  uint64    `json:"dup_frames"`
	DropFrames uint64    `json:"drop_frames"`
}

// NewLastStats returns the LastStats for the sample s taken at t.
func NewLastStats(s Stats, t time.Time) LastStats {
	return LastStats{
		Frame: s.Frame,
		TotalSize: TotalSize{
			Value:      s.TotalSize,
			LastTimeUs: uint64(t.UnixMicro()),
		},
		OutTimeMs:  s.OutTimeMs,
		DupFrames:  s.DupFrames,
		DropFrames: s.DropFrames,
	}
}

func (l LastStats) Clone() LastStats {
	return l
}

// Stats returns the counters without the time of the last size change.
func (l LastStats) Stats() Stats {
	return Stats{
		Frame:      l.Frame,
		TotalSize:  l.TotalSize.Value,
		OutTimeMs:  l.OutTimeMs,
		DupFrames:  l.DupFrames,
		DropFrames: l.DropFrames,
	}
}

// ParsedStats are the rates derived from two samples.
type ParsedStats struct {
	FPS        float64 `json:"fps" validate:"gte=0"`
	Bitrate    float64 `json:"bitrate" validate:"gte=0"` // kbit/s
	Speed      float64 `json:"speed" validate:"gte=0"`
	DupFrames  uint64  `json:"dup_frames"`
	DropFrames uint64  `json:"drop_frames"`
}

func (p ParsedStats) Clone() ParsedStats {
	return p
}

var validate = validator.New()

// Validate checks that all rates are finite and not negative.
func (p ParsedStats) Validate() error {
	for name, v := range map[string]float64{"fps": p.FPS, "bitrate": p.Bitrate, "speed": p.Speed} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s must be a finite number", name)
		}
	}

	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("invalid parsed stats: %w", err)
	}

	return nil
}

func (p ParsedStats) String() string {
	bitrate := humanize.SIWithDigits(p.Bitrate*1000, 1, "bit/s")

	return fmt.Sprintf("fps=%.2f bitrate=%s speed=%.3fx dup=%d drop=%d", p.FPS, bitrate, p.Speed, p.DupFrames, p.DropFrames)
}
