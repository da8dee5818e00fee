package api

import (
	"time"

	"github.com/datarhei/ffstats/history"
)

// HistoryEntry is the final state of a source that has ended
type HistoryEntry struct {
	ID        string      `json:"id" jsonschema:"required"`
	Source    string      `json:"source" jsonschema:"required"`
	CreatedAt string      `json:"created_at" jsonschema:"required"` // RFC3339
	EndedAt   string      `json:"ended_at" jsonschema:"required"`   // RFC3339
	Duration  float64     `json:"duration_seconds"`
	Blocks    uint64      `json:"blocks"`
	Stats     Stats       `json:"stats" jsonschema:"required"`
	Last      LastStats   `json:"last" jsonschema:"required"`
	Parsed    ParsedStats `json:"parsed" jsonschema:"required"`
}

func (h *HistoryEntry) Unmarshal(x history.Entry) {
	h.ID = x.ID
	h.Source = x.Source
	h.CreatedAt = x.CreatedAt.Format(time.RFC3339)
	h.EndedAt = x.EndedAt.Format(time.RFC3339)
	h.Duration = x.EndedAt.Sub(x.CreatedAt).Seconds()
	h.Blocks = x.Blocks
	h.Stats.Unmarshal(x.Stats)
	h.Last.Unmarshal(x.Last)
	h.Parsed.Unmarshal(x.Parsed)
}
