package api

import (
	"github.com/datarhei/ffstats/source"
)

// Source is the current state of an ffmpeg process that reports its progress
type Source struct {
	ID        string      `json:"id" jsonschema:"required"`
	State     string      `json:"state" jsonschema:"required,enum=running,enum=finished"`
	CreatedAt int64       `json:"created_at" jsonschema:"required"` // unix timestamp
	UpdatedAt int64       `json:"updated_at" jsonschema:"required"` // unix timestamp
	Blocks    uint64      `json:"blocks" jsonschema:"required"`
	Data      string      `json:"data"`
	Stats     Stats       `json:"stats" jsonschema:"required"`
	Last      LastStats   `json:"last" jsonschema:"required"`
	Parsed    ParsedStats `json:"parsed" jsonschema:"required"`
	Reported  Reported    `json:"reported" jsonschema:"required"`
}

func (s *Source) Unmarshal(x source.Source) {
	s.ID = x.ID
	s.State = string(x.State)
	s.CreatedAt = x.CreatedAt.Unix()
	s.UpdatedAt = x.UpdatedAt.Unix()
	s.Blocks = x.Blocks
	s.Data = x.Data
	s.Stats.Unmarshal(x.Stats)
	s.Last.Unmarshal(x.Last)
	s.Parsed.Unmarshal(x.Parsed)
	s.Reported.Unmarshal(x.Reported)
}

// ProgressResult is the summary of an ingested progress stream
type ProgressResult struct {
	Source string `json:"source" jsonschema:"required"`
	Blocks uint64 `json:"blocks" jsonschema:"required"`
	End    bool   `json:"end"`
}
