package config

import (
	"errors"
	"fmt"

	"github.com/spf13/pflag"
)

// Flag names bound to configuration fields.
const (
	FlagOutput    = "outputFile"
	FlagDemangle  = "demangle"
	FlagVariables = "variables"
	FlagPretty    = "pretty"
	FlagJobs      = "jobs"
	FlagLogLevel  = "log-level"
	FlagDatabase  = "db"
)

// ApplyFlags copies the flags of fs that were set on the command line into
// cfg. Flags left at their default do not override other layers.
func ApplyFlags(cfg *Config, fs *pflag.FlagSet) error {
	var errs []error
	fs.Visit(func(f *pflag.Flag) {
		var err error
		switch f.Name {
		case FlagOutput:
			cfg.Output, err = fs.GetString(f.Name)
		case FlagDemangle:
			cfg.Demangle, err = fs.GetBool(f.Name)
		case FlagVariables:
			cfg.Variables, err = fs.GetBool(f.Name)
		case FlagPretty:
			cfg.Pretty, err = fs.GetBool(f.Name)
		case FlagJobs:
			cfg.Jobs, err = fs.GetInt(f.Name)
		case FlagLogLevel:
			cfg.Log.Level, err = fs.GetString(f.Name)
		case FlagDatabase:
			cfg.Index.Database, err = fs.GetString(f.Name)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("--%s: %w", f.Name, err))
		}
	})
	return errors.Join(errs...)
}
