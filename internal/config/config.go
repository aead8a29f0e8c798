// Package config implements TOML configuration loading, validation, and
// the defaults -> file -> environment -> per-workspace override resolution
// chain for the workspace engine's app-level static configuration (server
// defaults, backoff tuning, cleanup interval, network timeouts, logging).
// Per-workspace domain settings (role, storage limits) live in appdb, not
// here; this package only covers settings the engine needs before it has
// even opened a database.
package config

// Config is the top-level configuration structure, decoded from one TOML
// file plus environment overrides. Per-workspace sections (keyed by
// workspace id) override the matching global section field by field.
type Config struct {
	Server     ServerConfig               `toml:"server"`
	Network    NetworkConfig              `toml:"network"`
	Backoff    BackoffConfig              `toml:"backoff"`
	Sync       SyncConfig                 `toml:"sync"`
	Cleanup    CleanupConfig              `toml:"cleanup"`
	Logging    LoggingConfig              `toml:"logging"`
	Workspaces map[string]WorkspaceConfig `toml:"workspace"`
}

// ServerConfig describes the default sync server and the client identity
// headers sent on every request (§6's ClientType/ClientPlatform/
// ClientVersion headers).
type ServerConfig struct {
	DefaultDomain  string `toml:"default_domain"`
	ClientType     string `toml:"client_type"`
	ClientPlatform string `toml:"client_platform"`
	ClientVersion  string `toml:"client_version"`
}

// NetworkConfig controls HTTP and WebSocket client behavior.
type NetworkConfig struct {
	ConnectTimeout string `toml:"connect_timeout"`
	RequestTimeout string `toml:"request_timeout"`
	UserAgent      string `toml:"user_agent"`
	ForceHTTP11    bool   `toml:"force_http_11"`
}

// BackoffConfig holds the [backoff] section, merged per workspace by
// Resolve and checked by Validate. The socket session (§4.5) and the file
// transfer state machine (§4.6) do not read it: they use
// socksession.SocketBackoff, socksession.GenericBackoff, or a calculator
// passed to filetransfer.Machine.WithBackoff.
type BackoffConfig struct {
	Base       string  `toml:"base"`
	Max        string  `toml:"max"`
	Multiplier float64 `toml:"multiplier"`
}

// SyncConfig holds the [sync] section, merged per workspace by Resolve and
// checked by Validate. The synchronizer (§4.4) does not read it; its pull
// batch size is the fixed defaultPullLimit in internal/syncengine.
type SyncConfig struct {
	Websocket       bool   `toml:"websocket"`
	PullBatchSize   int    `toml:"pull_batch_size"`
	ShutdownTimeout string `toml:"shutdown_timeout"`
}

// CleanupConfig tunes the periodic app-level cleanup task (§5 "Cleanup").
type CleanupConfig struct {
	Interval       string `toml:"interval"`
	Debounce       string `toml:"debounce"`
	TempFileMaxAge string `toml:"temp_file_max_age"`
}

// LoggingConfig controls log output behavior.
type LoggingConfig struct {
	Level  string `toml:"level"`
	File   string `toml:"file"`
	Format string `toml:"format"`
}

// WorkspaceConfig overrides global sections for one workspace id. Any zero
// field leaves the global value in place; see mergeWorkspaceOverride.
type WorkspaceConfig struct {
	Sync    SyncConfig    `toml:"sync"`
	Backoff BackoffConfig `toml:"backoff"`
}
