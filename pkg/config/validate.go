package config

import (
	"fmt"
	"net"

	"github.com/robfig/cron/v3"
)

// Validate checks the configuration for values that would fail at
// runtime. It returns the first problem found.
func Validate(cfg *Config) error {
	if _, _, err := net.SplitHostPort(cfg.Server.ListenAddress); err != nil {
		return fmt.Errorf("server.listen_address %q: %w", cfg.Server.ListenAddress, err)
	}
	if cfg.Server.ReadHeaderTimeout < 0 || cfg.Server.IdleTimeout < 0 || cfg.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("server timeouts must not be negative")
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q: must be debug, info, warn, or error", cfg.Logging.Level)
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format %q: must be json or text", cfg.Logging.Format)
	}

	std := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := std.Parse(cfg.Jobs.RefreshSchedule); err != nil {
		return fmt.Errorf("jobs.refresh_schedule %q: %w", cfg.Jobs.RefreshSchedule, err)
	}
	if _, err := std.Parse(cfg.Jobs.TrimSchedule); err != nil {
		return fmt.Errorf("jobs.trim_schedule %q: %w", cfg.Jobs.TrimSchedule, err)
	}
	if cfg.Jobs.UsageRetention <= 0 {
		return fmt.Errorf("jobs.usage_retention must be positive")
	}
	return nil
}
