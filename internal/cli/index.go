package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/coral-mesh/dwarfdump/internal/cli/helpers"
	"github.com/coral-mesh/dwarfdump/internal/config"
	"github.com/coral-mesh/dwarfdump/internal/engine"
	dwerrors "github.com/coral-mesh/dwarfdump/internal/errors"
	"github.com/coral-mesh/dwarfdump/internal/object"
	"github.com/coral-mesh/dwarfdump/internal/store"
)

var listFormats = []helpers.OutputFormat{helpers.FormatTable, helpers.FormatJSON, helpers.FormatCSV}

// binaryRow is one indexed binary in --list output.
type binaryRow struct {
	Hash      string `header:"HASH" json:"hash"`
	Path      string `header:"PATH" json:"path"`
	Format    string `header:"FORMAT" json:"format"`
	IndexedAt string `header:"INDEXED AT" json:"indexed_at"`
	Units     int64  `header:"UNITS" json:"units"`
	Types     int64  `header:"TYPES" json:"types"`
	Errors    int64  `header:"ERRORS" json:"errors"`
	RunID     string `header:"RUN" json:"run_id"`
}

type indexOptions struct {
	inputs     []string
	containers []string
	force      bool
	list       bool
	format     string
}

func newIndexCmd(g *globalFlags) *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:   "index -i <binary> [-i <binary>...] [--db index.duckdb]",
		Short: "Store the reports of binaries in a DuckDB index",
		Long: `Extract binaries and store their reports in a DuckDB database, keyed by
the fingerprint of the binary contents. Binaries already present in the index
are skipped unless --force is given.

With --list nothing is extracted; the indexed binaries are printed instead,
optionally narrowed to the paths given with -i and the containers given with
--container. The index can be queried with "dwarfdump lookup --db".`,
		Example: `  dwarfdump index -i ./server -i ./worker --db index.duckdb -v
  dwarfdump index --list --container elf --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.list {
				if err := helpers.ValidateFormat(opts.format, listFormats); err != nil {
					return err
				}
			} else if len(opts.inputs) == 0 {
				return errors.New(`required flag(s) "inputFile" not set`)
			}

			cfg, err := loadConfig(cmd, *g)
			if err != nil {
				return err
			}
			runID := uuid.NewString()
			logger := newLogger(cmd, cfg, runID)
			ctx := cmd.Context()

			s, err := store.Open(ctx, cfg.Index.Database, logger)
			if err != nil {
				return err
			}
			defer dwerrors.DeferClose(logger, s, "Failed to close index")

			if opts.list {
				return listIndexed(ctx, cmd.OutOrStdout(), s, opts)
			}
			for _, input := range opts.inputs {
				if err := indexBinary(ctx, cmd, s, cfg, input, runID, opts.force, logger); err != nil {
					return err
				}
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringArrayVarP(&opts.inputs, "inputFile", "i", nil, "Binary to index (repeatable)")
	flags.String(config.FlagDatabase, config.Default().Index.Database, "DuckDB index file")
	flags.BoolP(config.FlagDemangle, "d", false, "Demangle method names")
	flags.BoolP(config.FlagVariables, "v", false, "Extract variables and their types")
	flags.Int(config.FlagJobs, 0, "Compilation units traversed in parallel (0 uses every CPU)")
	flags.BoolVar(&opts.force, "force", false, "Re-index binaries that are already present")
	flags.BoolVar(&opts.list, "list", false, "List the indexed binaries instead of indexing")
	flags.StringArrayVar(&opts.containers, "container", nil, "With --list, only show binaries of this container format (elf, macho, pe, wasm)")
	helpers.AddFormatFlag(cmd, &opts.format, helpers.FormatTable, listFormats)
	return cmd
}

func indexBinary(ctx context.Context, cmd *cobra.Command, s *store.Store, cfg *config.Config, input, runID string, force bool, logger zerolog.Logger) error {
	bin, err := object.Open(input, cfg.MaxInputSize)
	if err != nil {
		return err
	}
	defer dwerrors.DeferClose(logger, bin, "Failed to unmap binary")

	indexed, err := s.IsIndexed(ctx, bin.Fingerprint())
	if err != nil {
		return err
	}
	if indexed && !force {
		cmd.Printf("%s already indexed as %s\n", input, bin.Fingerprint())
		return nil
	}

	res, err := engine.ExtractBinary(ctx, bin, engineOptions(cfg), logger)
	if err != nil {
		return err
	}
	rec := store.Record{
		Hash:   res.Fingerprint,
		Path:   res.Path,
		Format: string(res.Format),
		RunID:  runID,
	}
	if err := s.SaveReport(ctx, rec, res.Report); err != nil {
		return fmt.Errorf("failed to index %s: %w", input, err)
	}

	if logger.GetLevel() <= zerolog.DebugLevel {
		counts, err := s.RowCounts(ctx, rec.Hash)
		if err != nil {
			return err
		}
		rows := zerolog.Dict()
		for table, n := range counts {
			rows.Int64(table, n)
		}
		logger.Debug().Str("hash", rec.Hash).Dict("rows", rows).Msg("Stored report")
	}

	stats := res.Report.Stats()
	cmd.Printf("Indexed %s as %s (%d units, %d types, %d errors)\n",
		input, res.Fingerprint, stats.Units, stats.Types, stats.Errors)
	return nil
}

func listIndexed(ctx context.Context, w io.Writer, s *store.Store, opts indexOptions) error {
	bins, err := s.Binaries(ctx, store.BinaryFilter{Paths: opts.inputs, Formats: opts.containers})
	if err != nil {
		return err
	}
	rows := make([]binaryRow, len(bins))
	for i, b := range bins {
		rows[i] = binaryRow{
			Hash:      b.Hash,
			Path:      b.Path,
			Format:    b.Format,
			IndexedAt: b.IndexedAt.UTC().Format(time.RFC3339),
			Units:     b.Units,
			Types:     b.Types,
			Errors:    b.Errors,
			RunID:     b.RunID,
		}
	}
	formatter, err := helpers.NewFormatter(helpers.OutputFormat(opts.format))
	if err != nil {
		return err
	}
	return formatter.Format(rows, w)
}
