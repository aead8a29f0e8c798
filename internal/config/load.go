package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/BurntSushi/toml"
)

// Load reads and parses a TOML config file, validates it, and returns the
// resulting Config. Unset fields keep their DefaultConfig value, since
// decoding happens into a config already populated with defaults.
func Load(path string, logger *slog.Logger) (*Config, error) {
	logger.Debug("loading config file", "path", path)

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	logger.Debug("config file parsed successfully", "path", path, "workspace_overrides", len(cfg.Workspaces))

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns a
// Config populated with all default values — the zero-config first-run
// experience.
func LoadOrDefault(path string, logger *slog.Logger) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		logger.Debug("config file not found, using defaults", "path", path)

		return DefaultConfig(), nil
	}

	return Load(path, logger)
}

// Resolve applies the full defaults -> file -> environment -> per-workspace
// chain and returns the effective settings for one workspace (or the
// top-level sections if workspaceID is ""). The config file and environment
// layers are already folded into cfg by Load/ApplyEnvOverrides; Resolve's
// job is only the last layer, merging a workspace's override table over the
// global sections.
func Resolve(cfg *Config, workspaceID string) ResolvedWorkspace {
	resolved := ResolvedWorkspace{
		Server:  cfg.Server,
		Network: cfg.Network,
		Backoff: cfg.Backoff,
		Sync:    cfg.Sync,
	}

	override, ok := cfg.Workspaces[workspaceID]
	if !ok {
		return resolved
	}

	resolved.Backoff = mergeBackoff(cfg.Backoff, override.Backoff)
	resolved.Sync = mergeSync(cfg.Sync, override.Sync)

	return resolved
}

// ResolvedWorkspace is the fully merged view of the settings one workspace's
// services operate with, after the per-workspace override layer.
type ResolvedWorkspace struct {
	Server  ServerConfig
	Network NetworkConfig
	Backoff BackoffConfig
	Sync    SyncConfig
}

func mergeBackoff(global, override BackoffConfig) BackoffConfig {
	merged := global

	if override.Base != "" {
		merged.Base = override.Base
	}
	if override.Max != "" {
		merged.Max = override.Max
	}
	if override.Multiplier != 0 {
		merged.Multiplier = override.Multiplier
	}

	return merged
}

func mergeSync(global, override SyncConfig) SyncConfig {
	merged := global

	if override.PullBatchSize != 0 {
		merged.PullBatchSize = override.PullBatchSize
	}
	if override.ShutdownTimeout != "" {
		merged.ShutdownTimeout = override.ShutdownTimeout
	}
	// Websocket has no "unset" sentinel distinct from false, so an override
	// can turn websocket on but cannot turn it off when the global is true.
	merged.Websocket = override.Websocket || global.Websocket

	return merged
}
