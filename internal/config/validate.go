package config

import (
	"errors"
	"fmt"
	"time"
)

// Validation range constants.
const (
	minConnectTimeout   = 1 * time.Second
	minShutdownTimeout  = 5 * time.Second
	minPullBatchSize    = 1
	maxPullBatchSize    = 5000
	minBackoffBase      = 100 * time.Millisecond
	minBackoffMultipler = 1.0
)

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
var validLogFormats = map[string]bool{"auto": true, "text": true, "json": true}

// Validate checks all configuration values and returns all errors found.
// It accumulates every error rather than stopping at the first, so users
// see a complete report and can fix all issues in one pass.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateNetwork(&cfg.Network)...)
	errs = append(errs, validateBackoff(&cfg.Backoff, "backoff")...)
	errs = append(errs, validateSync(&cfg.Sync, "sync")...)
	errs = append(errs, validateCleanup(&cfg.Cleanup)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)

	for id, w := range cfg.Workspaces {
		errs = append(errs, validateBackoff(&w.Backoff, fmt.Sprintf("workspace[%s].backoff", id))...)
		errs = append(errs, validateSync(&w.Sync, fmt.Sprintf("workspace[%s].sync", id))...)
	}

	return errors.Join(errs...)
}

func validateNetwork(n *NetworkConfig) []error {
	var errs []error

	if d, err := parseDurationField("network.connect_timeout", n.ConnectTimeout); err != nil {
		errs = append(errs, err)
	} else if d < minConnectTimeout {
		errs = append(errs, fmt.Errorf("network.connect_timeout: must be at least %s, got %s", minConnectTimeout, d))
	}

	if _, err := parseDurationField("network.request_timeout", n.RequestTimeout); err != nil {
		errs = append(errs, err)
	}

	return errs
}

// validateBackoff validates one BackoffConfig. field is the prefix used in
// error messages ("backoff" for the global section, "workspace[<id>].backoff"
// for an override). A section with every field zero is skipped entirely,
// and individual zero fields are not checked, in either case.
func validateBackoff(b *BackoffConfig, field string) []error {
	var errs []error

	if b.Base == "" && b.Max == "" && b.Multiplier == 0 {
		return nil // unset override: inherits the global section entirely
	}

	base, err := parseDurationField(field+".base", b.Base)
	if err != nil {
		errs = append(errs, err)
	} else if base != 0 && base < minBackoffBase {
		errs = append(errs, fmt.Errorf("%s.base: must be at least %s, got %s", field, minBackoffBase, base))
	}

	max, err := parseDurationField(field+".max", b.Max)
	if err != nil {
		errs = append(errs, err)
	} else if base != 0 && max != 0 && max < base {
		errs = append(errs, fmt.Errorf("%s.max: must be >= base, got max=%s base=%s", field, max, base))
	}

	if b.Multiplier != 0 && b.Multiplier < minBackoffMultipler {
		errs = append(errs, fmt.Errorf("%s.multiplier: must be >= %v, got %v", field, minBackoffMultipler, b.Multiplier))
	}

	return errs
}

func validateSync(s *SyncConfig, field string) []error {
	var errs []error

	if s.PullBatchSize != 0 && (s.PullBatchSize < minPullBatchSize || s.PullBatchSize > maxPullBatchSize) {
		errs = append(errs, fmt.Errorf("%s.pull_batch_size: must be between %d and %d, got %d", field, minPullBatchSize, maxPullBatchSize, s.PullBatchSize))
	}

	if s.ShutdownTimeout != "" {
		if d, err := parseDurationField(field+".shutdown_timeout", s.ShutdownTimeout); err != nil {
			errs = append(errs, err)
		} else if d < minShutdownTimeout {
			errs = append(errs, fmt.Errorf("%s.shutdown_timeout: must be at least %s, got %s", field, minShutdownTimeout, d))
		}
	}

	return errs
}

func validateCleanup(c *CleanupConfig) []error {
	var errs []error

	interval, err := parseDurationField("cleanup.interval", c.Interval)
	if err != nil {
		errs = append(errs, err)
	}

	debounce, err := parseDurationField("cleanup.debounce", c.Debounce)
	if err != nil {
		errs = append(errs, err)
	} else if interval != 0 && debounce >= interval {
		errs = append(errs, fmt.Errorf("cleanup.debounce: must be less than cleanup.interval, got debounce=%s interval=%s", debounce, interval))
	}

	if _, err := parseDurationField("cleanup.temp_file_max_age", c.TempFileMaxAge); err != nil {
		errs = append(errs, err)
	}

	return errs
}

func validateLogging(l *LoggingConfig) []error {
	var errs []error

	if l.Level != "" && !validLogLevels[l.Level] {
		errs = append(errs, fmt.Errorf("logging.level: must be one of debug, info, warn, error; got %q", l.Level))
	}

	if l.Format != "" && !validLogFormats[l.Format] {
		errs = append(errs, fmt.Errorf("logging.format: must be one of auto, text, json; got %q", l.Format))
	}

	return errs
}

func parseDurationField(field, raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", field, raw, err)
	}

	return d, nil
}
