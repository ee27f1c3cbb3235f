package config

import "time"

// Default values for configuration fields.
const (
	DefaultListenAddress     = "127.0.0.1:8080"
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultIdleTimeout       = 120 * time.Second
	DefaultShutdownTimeout   = 30 * time.Second
	DefaultMaxHeaderBytes    = 1 << 20

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultRefreshSchedule = "0 * * * *"
	DefaultTrimSchedule    = "30 3 * * *"
	DefaultUsageRetention  = 30 * 24 * time.Hour
)

// ApplyDefaults fills in zero-valued fields. DataDir is resolved in
// Load, where the home directory lookup can fail.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadHeaderTimeout == 0 {
		cfg.Server.ReadHeaderTimeout = DefaultReadHeaderTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}

	if cfg.Jobs.RefreshSchedule == "" {
		cfg.Jobs.RefreshSchedule = DefaultRefreshSchedule
	}
	if cfg.Jobs.TrimSchedule == "" {
		cfg.Jobs.TrimSchedule = DefaultTrimSchedule
	}
	if cfg.Jobs.UsageRetention == 0 {
		cfg.Jobs.UsageRetention = DefaultUsageRetention
	}
}
