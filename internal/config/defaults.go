package config

// Default values for configuration options: the "layer 0" of the
// defaults -> file -> environment -> per-workspace override chain, chosen
// to be safe, reasonable starting points that work with no config file.
const (
	defaultClientType     = "desktop"
	defaultClientPlatform = "linux"
	defaultClientVersion  = "dev"

	defaultConnectTimeout = "10s"
	defaultRequestTimeout = "30s"

	defaultBackoffBase       = "1s"
	defaultBackoffMax        = "5m"
	defaultBackoffMultiplier = 2.0

	defaultPullBatchSize   = 200
	defaultShutdownTimeout = "30s"

	defaultCleanupInterval = "10m"
	defaultCleanupDebounce = "1m"
	defaultTempFileMaxAge  = "24h"

	defaultLogLevel  = "info"
	defaultLogFormat = "auto"
)

// DefaultConfig returns a Config populated with all default values. Used
// both as the starting point for TOML decoding (so unset fields retain
// defaults) and as the fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		Server:     defaultServerConfig(),
		Network:    defaultNetworkConfig(),
		Backoff:    defaultBackoffConfig(),
		Sync:       defaultSyncConfig(),
		Cleanup:    defaultCleanupConfig(),
		Logging:    defaultLoggingConfig(),
		Workspaces: make(map[string]WorkspaceConfig),
	}
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		ClientType:     defaultClientType,
		ClientPlatform: defaultClientPlatform,
		ClientVersion:  defaultClientVersion,
	}
}

func defaultNetworkConfig() NetworkConfig {
	return NetworkConfig{
		ConnectTimeout: defaultConnectTimeout,
		RequestTimeout: defaultRequestTimeout,
	}
}

func defaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Base:       defaultBackoffBase,
		Max:        defaultBackoffMax,
		Multiplier: defaultBackoffMultiplier,
	}
}

func defaultSyncConfig() SyncConfig {
	return SyncConfig{
		Websocket:       true,
		PullBatchSize:   defaultPullBatchSize,
		ShutdownTimeout: defaultShutdownTimeout,
	}
}

func defaultCleanupConfig() CleanupConfig {
	return CleanupConfig{
		Interval:       defaultCleanupInterval,
		Debounce:       defaultCleanupDebounce,
		TempFileMaxAge: defaultTempFileMaxAge,
	}
}

func defaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:  defaultLogLevel,
		Format: defaultLogFormat,
	}
}
