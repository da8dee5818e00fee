package api

import (
	"github.com/datarhei/ffstats/event"
)

// StatsEvent is pushed for every progress report of a source
type StatsEvent struct {
	Name      string      `json:"name" jsonschema:"required"`
	Source    string      `json:"source" jsonschema:"required"`
	Data      string      `json:"data"`
	End       bool        `json:"end"`
	Stats     Stats       `json:"stats" jsonschema:"required"`
	Last      LastStats   `json:"last" jsonschema:"required"`
	Parsed    ParsedStats `json:"parsed" jsonschema:"required"`
	Reported  Reported    `json:"reported" jsonschema:"required"`
	Timestamp int64       `json:"ts" jsonschema:"required"` // unix timestamp in milliseconds
}

// Unmarshal returns false if e is not a stats event.
func (s *StatsEvent) Unmarshal(e event.Event) bool {
	evt, ok := e.(*event.StatsEvent)
	if !ok {
		return false
	}

	s.Name = evt.Name
	s.Source = evt.Source
	s.Data = evt.Data
	s.End = evt.End
	s.Stats.Unmarshal(evt.Stats)
	s.Last.Unmarshal(evt.Last)
	s.Parsed.Unmarshal(evt.Parsed)
	s.Reported.Unmarshal(evt.Reported)
	s.Timestamp = evt.Timestamp.UnixMilli()

	return true
}
