package api

import (
	"time"

	"github.com/datarhei/ffstats/config"
)

// ConfigVariable is a single configuration value. Secrets are disguised.
type ConfigVariable struct {
	Name        string `json:"name" jsonschema:"required"`
	Value       string `json:"value"`
	EnvName     string `json:"env_name"`
	Description string `json:"description"`
	Merged      bool   `json:"merged"` // set from the environment
}

// Config is the currently active configuration
type Config struct {
	CreatedAt string           `json:"created_at" jsonschema:"required"` // RFC3339
	LoadedAt  string           `json:"loaded_at" jsonschema:"required"`  // RFC3339
	Overrides []string         `json:"overrides" jsonschema:"required"`
	Variables []ConfigVariable `json:"variables" jsonschema:"required"`
}

func (c *Config) Unmarshal(cfg *config.Config) {
	c.CreatedAt = cfg.CreatedAt.Format(time.RFC3339)
	c.LoadedAt = cfg.LoadedAt.Format(time.RFC3339)
	c.Overrides = cfg.Overrides()

	vars := cfg.Variables()

	c.Variables = make([]ConfigVariable, len(vars))

	for i, v := range vars {
		c.Variables[i] = ConfigVariable{
			Name:        v.Name,
			Value:       v.Value,
			EnvName:     v.EnvName,
			Description: v.Description,
			Merged:      v.Merged,
		}
	}
}
