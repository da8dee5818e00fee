package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/datarhei/ffstats/config"
	"github.com/datarhei/ffstats/encoding/json"
)

type jsonStore struct {
	path string

	data map[string]*config.Config
	lock sync.RWMutex

	reloadFn func()
}

// NewJSON will read the JSON config file from the given path. After successfully reading it in, it will be written
// back to the path. The returned error will be nil if everything went fine. If the path doesn't exist, a default JSON
// config file will be written to that path. The returned Store can be used to retrieve or write the config.
func NewJSON(path string, reloadFn func()) (Store, error) {
	c := &jsonStore{
		data:     make(map[string]*config.Config),
		reloadFn: reloadFn,
	}

	if len(path) != 0 {
		p, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("failed to determine absolute path of '%s': %w", path, err)
		}

		c.path = p
	}

	c.data["base"] = config.New()

	if err := c.load(c.data["base"]); err != nil {
		return nil, fmt.Errorf("failed to read JSON from '%s': %w", c.path, err)
	}

	if err := c.store(c.data["base"]); err != nil {
		return nil, fmt.Errorf("failed to write JSON to '%s': %w", c.path, err)
	}

	return c, nil
}

func (c *jsonStore) Get() *config.Config {
	c.lock.RLock()
	defer c.lock.RUnlock()

	return c.data["base"].Clone()
}

func (c *jsonStore) Set(d *config.Config) error {
	if d.HasErrors() {
		return fmt.Errorf("configuration data has errors after validation")
	}

	data := d.Clone()
	data.UpdatedAt = time.Now()

	if err := c.store(data); err != nil {
		return fmt.Errorf("failed to write JSON to '%s': %w", c.path, err)
	}

	c.lock.Lock()
	c.data["base"] = data
	c.lock.Unlock()

	return nil
}

func (c *jsonStore) GetActive() *config.Config {
	c.lock.RLock()
	defer c.lock.RUnlock()

	if x, ok := c.data["merged"]; ok {
		return x.Clone()
	}

	if x, ok := c.data["base"]; ok {
		return x.Clone()
	}

	return nil
}

func (c *jsonStore) SetActive(d *config.Config) error {
	d.Validate(true)

	if d.HasErrors() {
		return fmt.Errorf("configuration data has errors after validation")
	}

	c.lock.Lock()
	c.data["merged"] = d.Clone()
	c.lock.Unlock()

	return nil
}

func (c *jsonStore) Reload() error {
	if c.reloadFn == nil {
		return nil
	}

	c.reloadFn()

	return nil
}

func (c *jsonStore) load(cfg *config.Config) error {
	if len(c.path) == 0 {
		return nil
	}

	if _, err := os.Stat(c.path); os.IsNotExist(err) {
		return nil
	}

	jsondata, err := os.ReadFile(c.path)
	if err != nil {
		return err
	}

	if len(jsondata) == 0 {
		return nil
	}

	data, err := migrate(jsondata)
	if err != nil {
		return err
	}

	cfg.Data = *data

	cfg.LoadedAt = time.Now()
	cfg.UpdatedAt = cfg.CreatedAt

	return nil
}

func (c *jsonStore) store(data *config.Config) error {
	if len(c.path) == 0 {
		return nil
	}

	jsondata, err := json.MarshalIndent(data, "", "    ")
	if err != nil {
		return err
	}

	return writeFileSafe(c.path, jsondata)
}

// writeFileSafe writes the data to a temporary file in the same directory
// and renames it to path afterwards.
func writeFileSafe(path string, data []byte) error {
	dir := filepath.Dir(path)

	if err := os.MkdirAll(dir, 0740); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}

	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}

	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), path)
}

func migrate(jsondata []byte) (*config.Data, error) {
	version := DataVersion{}

	if err := json.Unmarshal(jsondata, &version); err != nil {
		return nil, json.FormatError(jsondata, err)
	}

	if version.Version != config.Version {
		return nil, fmt.Errorf("unsupported configuration layout version %d", version.Version)
	}

	data := &config.New().Data

	if err := json.Unmarshal(jsondata, data); err != nil {
		return nil, json.FormatError(jsondata, err)
	}

	return data, nil
}
