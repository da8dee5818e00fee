package history

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/datarhei/ffstats/encoding/json"
	"github.com/datarhei/ffstats/log"

	"go.etcd.io/bbolt"
)

var bucketName = []byte("history")

type BoltConfig struct {
	// Dir is the directory of the history.db file. It is created if it
	// doesn't exist.
	Dir        string
	MaxEntries int
	Logger     log.Logger
}

type boltStore struct {
	db         *bbolt.DB
	maxEntries int
	logger     log.Logger
}

// NewBoltStore opens or creates the history database in the given directory.
func NewBoltStore(config BoltConfig) (Store, error) {
	s := &boltStore{
		maxEntries: config.MaxEntries,
		logger:     config.Logger,
	}

	if s.logger == nil {
		s.logger = log.New("")
	}

	if err := os.MkdirAll(config.Dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	path := filepath.Join(config.Dir, "history.db")

	db, err := bbolt.Open(path, 0600, &bbolt.Options{
		Timeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("bolt: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("bolt: creating bucket: %w", err)
	}

	s.db = db

	s.logger.Debug().WithField("path", path).Log("Opened database")

	return s, nil
}

func (s *boltStore) Add(e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)

		if err := b.Put(key(e), data); err != nil {
			return err
		}

		if s.maxEntries <= 0 {
			return nil
		}

		keys := [][]byte{}

		c := b.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}

		for len(keys) > s.maxEntries {
			if err := b.Delete(keys[0]); err != nil {
				return err
			}
			keys = keys[1:]
		}

		return nil
	})

	if err != nil {
		return fmt.Errorf("bolt: %w", err)
	}

	return nil
}

func (s *boltStore) List(limit int) ([]Entry, error) {
	entries := []Entry{}

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketName).Cursor()

		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(entries) >= limit {
				break
			}

			e := Entry{}
			if err := json.Unmarshal(v, &e); err != nil {
				s.logger.Warn().WithError(err).WithField("key", string(k)).Log("Invalid entry")
				continue
			}

			entries = append(entries, e)
		}

		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("bolt: %w", err)
	}

	return entries, nil
}

func (s *boltStore) Get(id string) (Entry, error) {
	e := Entry{}
	found := false

	suffix := []byte("|" + id)

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketName).Cursor()

		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if !bytes.HasSuffix(k, suffix) {
				continue
			}

			found = true

			return json.Unmarshal(v, &e)
		}

		return nil
	})

	if err != nil {
		return Entry{}, fmt.Errorf("bolt: %w", err)
	}

	if !found {
		return Entry{}, ErrNotFound
	}

	return e, nil
}

func (s *boltStore) Close() error {
	return s.db.Close()
}
