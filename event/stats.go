package event

import (
	"time"

	"github.com/datarhei/ffstats/ffmpeg/progress"
	"github.com/datarhei/ffstats/stats"
)

const StatsEventName = "ffmpeg_stats"

// StatsEvent is published for every progress block of a source.
type StatsEvent struct {
	Name      string            `json:"name"`
	Source    string            `json:"source"`
	Data      string            `json:"data"`
	End       bool              `json:"end"`
	Stats     stats.Stats       `json:"stats"`
	Last      stats.LastStats   `json:"last"`
	Parsed    stats.ParsedStats `json:"parsed"`
	Reported  progress.Reported `json:"reported"`
	Timestamp time.Time         `json:"ts"`
}

func NewStatsEvent(source string, block progress.Block, sample stats.Sample) *StatsEvent {
	return &StatsEvent{
		Name:      StatsEventName,
		Source:    source,
		Data:      block.Data,
		End:       block.End,
		Stats:     sample.Stats,
		Last:      sample.Last,
		Parsed:    sample.Parsed,
		Reported:  block.Reported,
		Timestamp: time.Now(),
	}
}

func (e *StatsEvent) Clone() Event {
	return &StatsEvent{
		Name:      e.Name,
		Source:    e.Source,
		Data:      e.Data,
		End:       e.End,
		Stats:     e.Stats.Clone(),
		Last:      e.Last.Clone(),
		Parsed:    e.Parsed.Clone(),
		Reported:  e.Reported,
		Timestamp: e.Timestamp,
	}
}
