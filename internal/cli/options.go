package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/coral-mesh/dwarfdump/internal/config"
	"github.com/coral-mesh/dwarfdump/internal/engine"
	"github.com/coral-mesh/dwarfdump/internal/logging"
)

// loadConfig layers defaults, the config file, the environment and the flags
// set on cmd.
func loadConfig(cmd *cobra.Command, g globalFlags) (*config.Config, error) {
	loader := config.NewLayeredLoader()
	if g.noEnv {
		loader.DisableLayer(config.LayerEnv)
	}
	return loader.Load(g.configPath, cmd.Flags())
}

// newLogger logs to the command's stderr, tagging every line with the
// command name and runID.
func newLogger(cmd *cobra.Command, cfg *config.Config, runID string) zerolog.Logger {
	return logging.NewWithComponent(logging.Config{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Pretty,
		Output: cmd.ErrOrStderr(),
	}, cmd.Name()).With().Str("run_id", runID).Logger()
}

func engineOptions(cfg *config.Config) engine.Options {
	return engine.Options{
		Demangle:         cfg.Demangle,
		ExtractVariables: cfg.Variables,
		Jobs:             cfg.Jobs,
		MaxResolveDepth:  cfg.MaxResolveDepth,
		MaxTreeDepth:     cfg.MaxTreeDepth,
		MaxInputSize:     cfg.MaxInputSize,
	}
}
