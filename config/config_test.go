package config

import (
	"testing"

	"github.com/datarhei/ffstats/config/vars"

	"github.com/stretchr/testify/require"
)

func TestConfigDefaults(t *testing.T) {
	cfg := New()

	require.Equal(t, Version, cfg.Version)
	require.NotEmpty(t, cfg.ID)
	require.NotEmpty(t, cfg.Name)
	require.Equal(t, ":8080", cfg.Address)
	require.Equal(t, "info", cfg.Log.Level)
	require.Equal(t, 1000, cfg.Log.MaxLines)
	require.True(t, cfg.UDP.Enable)
	require.Equal(t, "0.0.0.0:25527", cfg.UDP.Address)
	require.Equal(t, 512, cfg.UDP.BufferSize)
	require.Equal(t, int64(300), cfg.Sources.Timeout)
	require.Equal(t, int64(1), cfg.Sources.Granularity)
	require.Equal(t, 100, cfg.History.MaxEntries)
	require.Equal(t, "ffstats:events", cfg.Redis.Channel)
}

func TestConfigClone(t *testing.T) {
	config1 := New()

	config1.Log.Topics = []string{"UDP"}
	config1.DB.Dir = "foo"

	config2 := config1.Clone()

	require.Equal(t, config1.Data, config2.Data)

	config1.Log.Topics[0] = "HTTP"
	config1.Set("db.dir", "bar")

	require.Equal(t, []string{"UDP"}, config2.Log.Topics)
	require.Equal(t, "foo", config2.DB.Dir)

	x, err := config2.Get("db.dir")
	require.NoError(t, err)
	require.Equal(t, "foo", x)
}

func TestConfigMerge(t *testing.T) {
	t.Setenv("FFSTATS_UDP_BUFFER_SIZE", "2048")
	t.Setenv("FFSTATS_REDIS_PASSWORD", "secret")

	cfg := New()
	cfg.Merge()

	require.Equal(t, 2048, cfg.UDP.BufferSize)
	require.Equal(t, "secret", cfg.Redis.Password)
	require.ElementsMatch(t, []string{"udp.buffer_size", "redis.password"}, cfg.Overrides())

	clone := cfg.Clone()
	require.ElementsMatch(t, []string{"udp.buffer_size", "redis.password"}, clone.Overrides())

	for _, v := range cfg.Variables() {
		if v.Name == "redis.password" {
			require.Equal(t, "***", v.Value)
			require.True(t, v.Merged)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := New()
	cfg.DB.Dir = t.TempDir()

	cfg.Validate(true)
	require.False(t, cfg.HasErrors())

	cfg.Log.Level = "verbose"
	cfg.UDP.BufferSize = 0
	cfg.Sources.Window = 1
	cfg.Sources.Granularity = 2

	cfg.Validate(true)
	require.True(t, cfg.HasErrors())

	errors := []string{}
	cfg.Messages(func(level string, v vars.Variable, message string) {
		if level == "error" {
			errors = append(errors, v.Name)
		}
	})

	require.ElementsMatch(t, []string{"log.level", "udp.buffer_size", "sources.window_sec"}, errors)
}

func TestConfigValidateVersion(t *testing.T) {
	cfg := New()
	cfg.DB.Dir = t.TempDir()
	cfg.Version = 2

	cfg.Validate(true)
	require.True(t, cfg.HasErrors())
}
