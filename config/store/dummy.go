package store

import (
	"fmt"

	"github.com/datarhei/ffstats/config"
)

type dummyStore struct {
	current *config.Config
	active  *config.Config
}

// NewDummy returns an in-memory store with the default config and the
// current directory as db.dir. It's meant for tests.
func NewDummy() Store {
	cfg := config.New()
	cfg.DB.Dir = "."

	return &dummyStore{
		current: cfg,
		active:  cfg.Clone(),
	}
}

func validated(d *config.Config) (*config.Config, error) {
	d.Validate(true)

	if d.HasErrors() {
		return nil, fmt.Errorf("configuration data has errors after validation")
	}

	return d.Clone(), nil
}

func (c *dummyStore) Get() *config.Config {
	return c.current.Clone()
}

func (c *dummyStore) Set(d *config.Config) error {
	cfg, err := validated(d)
	if err != nil {
		return err
	}

	c.current = cfg

	return nil
}

func (c *dummyStore) GetActive() *config.Config {
	return c.active.Clone()
}

func (c *dummyStore) SetActive(d *config.Config) error {
	cfg, err := validated(d)
	if err != nil {
		return err
	}

	c.active = cfg

	return nil
}

func (c *dummyStore) Reload() error {
	return nil
}
