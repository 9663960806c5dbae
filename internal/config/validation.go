package config

import (
	"errors"
	"fmt"
	"slices"
)

// LogLevels lists the accepted log levels.
var LogLevels = []string{"trace", "debug", "info", "warn", "error"}

// Validate returns every violation in c, joined.
func (c *Config) Validate() error {
	var errs []error
	if c.Jobs < 0 {
		errs = append(errs, fmt.Errorf("jobs must not be negative, got %d", c.Jobs))
	}
	if c.MaxResolveDepth <= 0 {
		errs = append(errs, fmt.Errorf("max_resolve_depth must be positive, got %d", c.MaxResolveDepth))
	}
	if c.MaxTreeDepth <= 0 {
		errs = append(errs, fmt.Errorf("max_tree_depth must be positive, got %d", c.MaxTreeDepth))
	}
	if c.MaxInputSize <= 0 {
		errs = append(errs, fmt.Errorf("max_input_size must be positive, got %d", c.MaxInputSize))
	}
	if !slices.Contains(LogLevels, c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level must be one of %v, got %q", LogLevels, c.Log.Level))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
