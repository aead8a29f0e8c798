package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadEnvOverridesAllSet(t *testing.T) {
	t.Setenv(EnvConfig, "/custom/config.toml")
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvServerURL, "example.com")

	overrides := ReadEnvOverrides()
	assert.Equal(t, "/custom/config.toml", overrides.ConfigPath)
	assert.Equal(t, "debug", overrides.LogLevel)
	assert.Equal(t, "example.com", overrides.ServerURL)
}

func TestReadEnvOverridesNoneSet(t *testing.T) {
	t.Setenv(EnvConfig, "")
	t.Setenv(EnvLogLevel, "")
	t.Setenv(EnvServerURL, "")

	overrides := ReadEnvOverrides()
	assert.Empty(t, overrides.ConfigPath)
	assert.Empty(t, overrides.LogLevel)
	assert.Empty(t, overrides.ServerURL)
}

func TestApplyEnvOverridesOnlyTouchesSetFields(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.DefaultDomain = "original.example"

	ApplyEnvOverrides(cfg, EnvOverrides{LogLevel: "debug"})

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "original.example", cfg.Server.DefaultDomain, "unset override fields must not clobber existing config")
}
