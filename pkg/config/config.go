package config

import "time"

// Config is the root configuration structure.
type Config struct {
	// Server contains HTTP server configuration including listen
	// address and timeouts.
	Server ServerConfig `yaml:"server"`

	// Logging controls the structured logger.
	Logging LoggingConfig `yaml:"logging"`

	// Storage locates the on-disk state and toggles the request
	// snapshot store.
	Storage StorageConfig `yaml:"storage"`

	// Jobs configures the background maintenance schedules.
	Jobs JobsConfig `yaml:"jobs"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Format: "host:port". Default: "127.0.0.1:8080".
	ListenAddress string `yaml:"listen_address"`

	// ReadHeaderTimeout bounds how long reading a request's headers may
	// take. Default: 10s.
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`

	// IdleTimeout is the keep-alive idle limit. Default: 120s.
	//
	// There is deliberately no write timeout: streaming responses stay
	// open for as long as the upstream produces chunks.
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown. Default: 30s.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits request header size. Default: 1MB.
	MaxHeaderBytes int `yaml:"max_header_bytes"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	// Default: "info".
	Level string `yaml:"level"`

	// Format is "json" or "text". Default: "json".
	Format string `yaml:"format"`

	// AddSource includes source file:line in log records.
	AddSource bool `yaml:"add_source"`
}

// StorageConfig locates the on-disk state.
type StorageConfig struct {
	// DataDir is where local.json, usage.json, log.txt and requests.db
	// live. Default: "$HOME/.helios".
	DataDir string `yaml:"data_dir"`

	// RequestLogs enables the per-request SQLite snapshot store.
	// Default: false.
	RequestLogs bool `yaml:"request_logs"`
}

// JobsConfig configures background maintenance.
type JobsConfig struct {
	// RefreshSchedule is the cron spec for the proactive credential
	// refresh sweep. Default: "0 * * * *" (hourly).
	RefreshSchedule string `yaml:"refresh_schedule"`

	// TrimSchedule is the cron spec for trimming usage history and old
	// request snapshots. Default: "30 3 * * *" (daily).
	TrimSchedule string `yaml:"trim_schedule"`

	// UsageRetention is how long usage records and request snapshots
	// are kept. Default: 720h (30 days).
	UsageRetention time.Duration `yaml:"usage_retention"`
}
