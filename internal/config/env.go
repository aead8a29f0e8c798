package config

import "os"

// Environment variable names for overrides, the third layer of the
// defaults -> file -> environment -> per-workspace chain.
const (
	EnvConfig    = "WORKSPACE_ENGINE_CONFIG"
	EnvAppDir    = "WORKSPACE_ENGINE_APP_DIR"
	EnvLogLevel  = "WORKSPACE_ENGINE_LOG_LEVEL"
	EnvServerURL = "WORKSPACE_ENGINE_SERVER"
)

// EnvOverrides holds values derived from environment variables. These are
// resolved by ReadEnvOverrides and applied by ApplyEnvOverrides; reading and
// applying are split so callers can log what changed before mutating cfg.
type EnvOverrides struct {
	ConfigPath string // WORKSPACE_ENGINE_CONFIG: override config file path
	AppDir     string // WORKSPACE_ENGINE_APP_DIR: override the app root directory
	LogLevel   string // WORKSPACE_ENGINE_LOG_LEVEL: override logging.level
	ServerURL  string // WORKSPACE_ENGINE_SERVER: override server.default_domain
}

// ReadEnvOverrides reads environment variables and returns any overrides
// found. This does not modify the Config; callers apply the relevant fields
// via ApplyEnvOverrides.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath: os.Getenv(EnvConfig),
		AppDir:     os.Getenv(EnvAppDir),
		LogLevel:   os.Getenv(EnvLogLevel),
		ServerURL:  os.Getenv(EnvServerURL),
	}
}

// ApplyEnvOverrides layers env onto cfg in place, the third link in the
// defaults -> file -> environment -> per-workspace chain. Empty fields in
// env leave cfg untouched.
func ApplyEnvOverrides(cfg *Config, env EnvOverrides) {
	if env.LogLevel != "" {
		cfg.Logging.Level = env.LogLevel
	}

	if env.ServerURL != "" {
		cfg.Server.DefaultDomain = env.ServerURL
	}
}
