// Package cli implements the dwarfdump command line.
package cli

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/coral-mesh/dwarfdump/internal/config"
	"github.com/coral-mesh/dwarfdump/internal/engine"
	dwerrors "github.com/coral-mesh/dwarfdump/internal/errors"
	"github.com/coral-mesh/dwarfdump/internal/safe"
	"github.com/coral-mesh/dwarfdump/pkg/debuginfo"
	"github.com/coral-mesh/dwarfdump/pkg/version"
)

// globalFlags are shared by every command.
type globalFlags struct {
	configPath string
	noEnv      bool
}

// NewRootCmd creates the dwarfdump command. Run without a subcommand it
// extracts the debug information of a binary into a JSON report.
func NewRootCmd() *cobra.Command {
	var (
		g     globalFlags
		input string
	)

	cmd := &cobra.Command{
		Use:   "dwarfdump -i <binary> [-o report.json]",
		Short: "Extract DWARF debug information into a JSON report",
		Long: `Extract the subprograms, inlined methods, variables, line tables and
types described by the DWARF debug information of an ELF, Mach-O, PE or
WebAssembly binary.

The report is written as compact JSON to --outputFile, or as indented JSON to
stdout when no output file is given. Problems with individual entries do not
stop the extraction; they are listed under "parsing_errors".`,
		Version:       version.Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(cmd, g, input)
		},
	}
	cmd.SetVersionTemplate(version.String() + "\n")

	cmd.PersistentFlags().StringVar(&g.configPath, "config", "", "Configuration file (YAML); defaults to $"+config.ConfigPathEnv)
	cmd.PersistentFlags().BoolVar(&g.noEnv, "no-env", false, "Ignore DWARFDUMP_* environment variables")
	cmd.PersistentFlags().String(config.FlagLogLevel, config.DefaultLogLevel, "Log level (trace, debug, info, warn, error)")

	flags := cmd.Flags()
	flags.StringVarP(&input, "inputFile", "i", "", "Binary to read (required)")
	flags.StringP(config.FlagOutput, "o", "", "Write the report to this file instead of stdout")
	flags.BoolP(config.FlagDemangle, "d", false, "Demangle method names")
	flags.BoolP(config.FlagVariables, "v", false, "Extract variables and their types")
	flags.Bool(config.FlagPretty, false, "Indent the report even when writing to a file")
	flags.Int(config.FlagJobs, 0, "Compilation units traversed in parallel (0 uses every CPU)")
	dwerrors.Must(cmd.MarkFlagRequired("inputFile"), "mark inputFile required")

	cmd.AddCommand(
		newLookupCmd(&g),
		newIndexCmd(&g),
		newSchemaCmd(),
		newVersionCmd(),
	)
	return cmd
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

func runDump(cmd *cobra.Command, g globalFlags, input string) error {
	cfg, err := loadConfig(cmd, g)
	if err != nil {
		return err
	}
	runID := uuid.NewString()
	logger := newLogger(cmd, cfg, runID)

	res, err := engine.Extract(cmd.Context(), input, engineOptions(cfg), logger)
	if res == nil {
		return err
	}
	// An interrupted extraction still writes the units it completed.
	if werr := writeReport(cmd, cfg, res.Report, logger); werr != nil {
		return werr
	}
	return err
}

func writeReport(cmd *cobra.Command, cfg *config.Config, report *debuginfo.Report, logger zerolog.Logger) error {
	if cfg.Output == "" {
		return report.Encode(cmd.OutOrStdout(), true)
	}
	f, err := safe.Create(cfg.Output, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := report.Encode(f, cfg.Pretty); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", cfg.Output, err)
	}
	logger.Info().Str("output", cfg.Output).Msg("Report written")
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("dwarfdump version %s\n", version.Version)
			cmd.Printf("Git commit: %s\n", version.GitCommit)
			cmd.Printf("Build date: %s\n", version.BuildDate)
			cmd.Printf("Go version: %s\n", version.GoVersion)
		},
	}
}
