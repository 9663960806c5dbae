package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/coral-mesh/dwarfdump/internal/cli/helpers"
	"github.com/coral-mesh/dwarfdump/internal/config"
	"github.com/coral-mesh/dwarfdump/internal/engine"
	dwerrors "github.com/coral-mesh/dwarfdump/internal/errors"
	"github.com/coral-mesh/dwarfdump/internal/object"
	"github.com/coral-mesh/dwarfdump/internal/safe"
	"github.com/coral-mesh/dwarfdump/internal/store"
	"github.com/coral-mesh/dwarfdump/pkg/debuginfo"
)

var lookupFormats = []helpers.OutputFormat{helpers.FormatTable, helpers.FormatJSON, helpers.FormatCSV}

// methodRow is one method of the call chain at an address.
type methodRow struct {
	Depth    uint64 `header:"DEPTH" json:"inline_depth"`
	Method   string `header:"METHOD" json:"method_name"`
	Declared string `header:"DECLARED AT" json:"declared_at"`
	CallSite string `header:"CALLED FROM" json:"called_from,omitempty"`
	Range    string `header:"RANGE" json:"range"`
}

type lookupResult struct {
	Address string                    `json:"address"`
	Line    *debuginfo.LineNumberInfo `json:"line"`
	Methods []methodRow               `json:"methods"`
}

func newLookupCmd(g *globalFlags) *cobra.Command {
	var input, address, name, format string

	cmd := &cobra.Command{
		Use:   "lookup -i <binary|report.json> --address <addr>",
		Short: "Show the source line and inlined call chain at an address",
		Long: `Resolve a code address to its source line and to the chain of methods
covering it, from the enclosing subprogram down to the innermost inlined
method.

The input is either a binary, which is extracted on the fly, or a report
previously written by dwarfdump. With --db the binary is looked up in an
index built by "dwarfdump index" instead.`,
		Example: `  dwarfdump lookup -i ./server --address 0x4a2f10
  dwarfdump lookup -i report.json --address 0x4a2f10 --name parseHeader --format json
  dwarfdump lookup -i ./server --db index.duckdb --address 0x4a2f10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := helpers.ValidateFormat(format, lookupFormats); err != nil {
				return err
			}
			addr, err := helpers.ParseAddress(address)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd, *g)
			if err != nil {
				return err
			}
			logger := newLogger(cmd, cfg, uuid.NewString())

			var res *lookupResult
			if cmd.Flags().Changed(config.FlagDatabase) {
				res, err = lookupIndexed(cmd.Context(), cfg, input, addr, name, logger)
			} else {
				res, err = lookupReport(cmd.Context(), cfg, input, addr, name, logger)
			}
			if err != nil {
				return err
			}
			return printLookup(cmd.OutOrStdout(), helpers.OutputFormat(format), res)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&input, "inputFile", "i", "", "Binary or JSON report to read (required)")
	flags.StringVarP(&address, "address", "a", "", "Code address, decimal or 0x-prefixed hex (required)")
	flags.StringVarP(&name, "name", "n", "", "Only show the method with this name or linkage name")
	flags.String(config.FlagDatabase, "", "Look the binary up in this DuckDB index")
	helpers.AddFormatFlag(cmd, &format, helpers.FormatTable, lookupFormats)
	dwerrors.Must(cmd.MarkFlagRequired("inputFile"), "mark inputFile required")
	dwerrors.Must(cmd.MarkFlagRequired("address"), "mark address required")
	return cmd
}

func lookupReport(ctx context.Context, cfg *config.Config, input string, addr uint64, name string, logger zerolog.Logger) (*lookupResult, error) {
	report, err := loadReport(ctx, cfg, input, logger)
	if err != nil {
		return nil, err
	}

	res := &lookupResult{Address: fmt.Sprintf("%#x", addr)}
	if row, ok := report.LineAt(addr); ok {
		res.Line = &row
	}

	var matches []debuginfo.MethodMatch
	if name != "" {
		if m, ok := report.MethodByNameAndAddress(name, addr); ok {
			matches = append(matches, m)
		}
	} else {
		matches = report.MethodsAt(addr)
	}
	for _, m := range matches {
		res.Methods = append(res.Methods, matchRow(m, addr))
	}
	return res, checkFound(res, input)
}

func lookupIndexed(ctx context.Context, cfg *config.Config, input string, addr uint64, name string, logger zerolog.Logger) (*lookupResult, error) {
	bin, err := object.Open(input, cfg.MaxInputSize)
	if err != nil {
		return nil, err
	}
	hash := bin.Fingerprint()
	dwerrors.DeferClose(logger, bin, "Failed to unmap binary")

	s, err := store.Open(ctx, cfg.Index.Database, logger)
	if err != nil {
		return nil, err
	}
	defer dwerrors.DeferClose(logger, s, "Failed to close index")

	indexed, err := s.IsIndexed(ctx, hash)
	if err != nil {
		return nil, err
	}
	if !indexed {
		return nil, fmt.Errorf("%s is not indexed in %s; run \"dwarfdump index\" first", input, cfg.Index.Database)
	}

	res := &lookupResult{Address: fmt.Sprintf("%#x", addr)}
	row, ok, err := s.LineAt(ctx, hash, addr)
	if err != nil {
		return nil, err
	}
	if ok {
		res.Line = &row
	}

	methods, err := s.SubprogramsAt(ctx, hash, addr)
	if err != nil {
		return nil, err
	}
	for _, m := range methods {
		if name != "" && m.Name != name && m.LinkageName != name {
			continue
		}
		r := methodRow{
			Depth:    m.InlineDepth,
			Method:   m.Name,
			Declared: sourceString(m.DeclRange),
			Range:    rangeString(m.Range),
		}
		if m.CallSite != nil {
			r.CallSite = sourceString(*m.CallSite)
		}
		res.Methods = append(res.Methods, r)
	}
	// The deepest method wins, as for reports.
	if name != "" && len(res.Methods) > 1 {
		res.Methods = res.Methods[len(res.Methods)-1:]
	}
	return res, checkFound(res, input)
}

// loadReport decodes input when it is a JSON report and extracts it
// otherwise.
func loadReport(ctx context.Context, cfg *config.Config, input string, logger zerolog.Logger) (*debuginfo.Report, error) {
	f, _, err := safe.Open(input, &safe.FileOptions{MaxSize: cfg.MaxInputSize, AllowSymlinks: true})
	if err != nil {
		return nil, err
	}
	defer dwerrors.DeferClose(logger, f, "Failed to close input")

	br := bufio.NewReader(f)
	if isJSON(br) {
		return debuginfo.Decode(br)
	}
	res, err := engine.Extract(ctx, input, engineOptions(cfg), logger)
	if err != nil {
		return nil, err
	}
	return res.Report, nil
}

// isJSON reports whether the first non-blank byte of r opens a JSON object.
func isJSON(r *bufio.Reader) bool {
	for i := 1; i <= 64; i++ {
		b, err := r.Peek(i)
		if err != nil {
			return false
		}
		switch b[i-1] {
		case ' ', '\t', '\r', '\n':
			continue
		case '{':
			return true
		default:
			return false
		}
	}
	return false
}

func checkFound(res *lookupResult, input string) error {
	if res.Line == nil && len(res.Methods) == 0 {
		return fmt.Errorf("address %s is not covered by %s", res.Address, input)
	}
	return nil
}

func matchRow(m debuginfo.MethodMatch, addr uint64) methodRow {
	if m.Inlined != nil {
		return methodRow{
			Depth:    m.Inlined.InlineDepth,
			Method:   m.Inlined.MethodName,
			Declared: sourceString(m.Inlined.DeclRange),
			CallSite: sourceString(m.Inlined.CallSiteRange),
			Range:    rangeString(coveringRange(m.Inlined.AddressRanges, addr)),
		}
	}
	return methodRow{
		Method:   m.Subprogram.MethodName,
		Declared: sourceString(m.Subprogram.DeclRange),
		Range:    rangeString(coveringRange(m.Subprogram.AddressRanges, addr)),
	}
}

func coveringRange(ranges []debuginfo.AddressRange, addr uint64) debuginfo.AddressRange {
	for _, r := range ranges {
		if r.Contains(addr) {
			return r
		}
	}
	return debuginfo.AddressRange{}
}

func sourceString(r debuginfo.SourceRange) string {
	if r.Column != nil {
		return fmt.Sprintf("%s:%d:%d", r.FilePath, r.Line, *r.Column)
	}
	return fmt.Sprintf("%s:%d", r.FilePath, r.Line)
}

func rangeString(r debuginfo.AddressRange) string {
	return fmt.Sprintf("[%#x, %#x)", r.Start, r.End)
}

func printLookup(w io.Writer, format helpers.OutputFormat, res *lookupResult) error {
	formatter, err := helpers.NewFormatter(format)
	if err != nil {
		return err
	}
	switch format {
	case helpers.FormatJSON:
		if res.Methods == nil {
			res.Methods = []methodRow{}
		}
		return formatter.Format(res, w)
	case helpers.FormatTable:
		line := "unknown"
		if res.Line != nil {
			line = fmt.Sprintf("%s:%d:%d", res.Line.FilePath, res.Line.Line, res.Line.Column)
		}
		if _, err := fmt.Fprintf(w, "Address: %s\nLine:    %s\n\n", res.Address, line); err != nil {
			return err
		}
	}
	if len(res.Methods) == 0 {
		_, err := fmt.Fprintln(w, "No method covers this address.")
		return err
	}
	return formatter.Format(res.Methods, w)
}
