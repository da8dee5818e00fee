// Package history keeps the final stats of sources that have ended.
package history

import (
	"errors"
	"time"

	"github.com/datarhei/ffstats/stats"
)

var ErrNotFound = errors.New("history entry not found")

// Entry is the last known state of a source that has ended.
type Entry struct {
	ID        string            `json:"id"`
	Source    string            `json:"source"`
	CreatedAt time.Time         `json:"created_at"`
	EndedAt   time.Time         `json:"ended_at"`
	Stats     stats.Stats       `json:"stats"`
	Last      stats.LastStats   `json:"last"`
	Parsed    stats.ParsedStats `json:"parsed"`
	Blocks    uint64            `json:"blocks"`
}

type Store interface {
	// Add stores the entry. The oldest entries are removed if there are more
	// than the configured maximum.
	Add(e Entry) error

	// List returns up to limit entries, the most recently ended first. A limit
	// of 0 or less returns all entries.
	List(limit int) ([]Entry, error)

	// Get returns the entry with the given ID or ErrNotFound.
	Get(id string) (Entry, error)

	Close() error
}

// key orders the entries by the time they ended. The timestamp has a fixed
// width such that the lexical order is the chronological order.
func key(e Entry) []byte {
	return []byte(e.EndedAt.UTC().Format("2006-01-02T15:04:05.000000000Z") + "|" + e.ID)
}
