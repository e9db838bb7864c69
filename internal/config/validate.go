package config

import (
	"errors"
	"fmt"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration for errors and inconsistencies.
// Returns nil if valid, or an error describing every problem found.
func Validate(cfg *Config) error {
	var errs []error

	// Engine configuration file is required (unless -print-cmd)
	if cfg.ConfigFile == "" && !cfg.PrintCmd {
		errs = append(errs, ValidationError{
			Field:   "config_file",
			Message: "engine configuration file is required",
		})
	}

	if cfg.Port <= 0 {
		errs = append(errs, ValidationError{
			Field:   "port",
			Message: "must be positive",
		})
	}

	if cfg.NumClients < 1 {
		errs = append(errs, ValidationError{
			Field:   "num_clients",
			Message: "must be at least 1",
		})
	}

	if cfg.StepLength <= 0 {
		errs = append(errs, ValidationError{
			Field:   "step_length",
			Message: "must be positive",
		})
	}

	if cfg.TeleportTime < 0 {
		errs = append(errs, ValidationError{
			Field:   "teleport_time",
			Message: "must not be negative",
		})
	}

	if cfg.LateralResolution < 0 {
		errs = append(errs, ValidationError{
			Field:   "lateral_resolution",
			Message: "must not be negative",
		})
	}

	if cfg.StartRetries < 1 {
		errs = append(errs, ValidationError{
			Field:   "start_retries",
			Message: "must be at least 1",
		})
	}

	if cfg.ConnectAttempts < 1 {
		errs = append(errs, ValidationError{
			Field:   "connect_attempts",
			Message: "must be at least 1",
		})
	}

	if cfg.SettleDelay < 0 {
		errs = append(errs, ValidationError{
			Field:   "settle_delay",
			Message: "must not be negative",
		})
	}

	if cfg.Workers < 1 {
		errs = append(errs, ValidationError{
			Field:   "workers",
			Message: "must be at least 1",
		})
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.LogFormat] {
		errs = append(errs, ValidationError{
			Field:   "log_format",
			Message: fmt.Sprintf("must be 'json' or 'text' (got %q)", cfg.LogFormat),
		})
	}

	if cfg.Workers > 1 && cfg.TUIEnabled {
		errs = append(errs, ValidationError{
			Field:   "tui",
			Message: "dashboard is single-kernel only; disable it when -workers > 1",
		})
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
