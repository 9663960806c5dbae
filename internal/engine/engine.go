// Package engine runs a complete extraction: every unit is traversed, the
// types their variables use are resolved, and the results are assembled into
// a report.
package engine

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/coral-mesh/dwarfdump/internal/die"
	dwerrors "github.com/coral-mesh/dwarfdump/internal/errors"
	"github.com/coral-mesh/dwarfdump/internal/object"
	"github.com/coral-mesh/dwarfdump/internal/resolve"
	"github.com/coral-mesh/dwarfdump/internal/traverse"
	"github.com/coral-mesh/dwarfdump/internal/typegraph"
	"github.com/coral-mesh/dwarfdump/pkg/debuginfo"
)

// Prefixes of the report-level parsing errors.
const (
	UnitErrorPrefix = "Compilation Unit Parsing Error: "
	TypeErrorPrefix = "Type Parsing Error: "
)

// Options control an extraction.
type Options struct {
	// Demangle rewrites method names in demangled form.
	Demangle bool
	// ExtractVariables collects variables and resolves their types.
	ExtractVariables bool
	// Jobs is the number of units traversed in parallel. Zero uses GOMAXPROCS.
	Jobs int
	// MaxResolveDepth bounds specification and abstract-origin chains.
	MaxResolveDepth int
	// MaxTreeDepth bounds the nesting of entry trees.
	MaxTreeDepth int
	// MaxInputSize bounds the size of the binary Extract opens.
	MaxInputSize int64
}

func (o Options) jobs() int {
	if o.Jobs <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return o.Jobs
}

// Run extracts prog. Per-entry problems end up in the report; only context
// cancellation makes Run fail. A cancelled Run still returns the units
// traversed so far and the types resolved from them, together with the
// context's error.
func Run(ctx context.Context, prog *die.Program, opts Options, logger zerolog.Logger) (*debuginfo.Report, error) {
	start := time.Now()
	r := resolve.New(prog, opts.MaxResolveDepth)
	tr := traverse.New(r, traverse.Options{
		ExtractVariables: opts.ExtractVariables,
		Demangle:         opts.Demangle,
		MaxDepth:         opts.MaxTreeDepth,
	})

	units := prog.Units()
	cus := make([]debuginfo.CompilationUnit, len(units))
	unitErrs := make([]*dwerrors.List, len(units))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.jobs())
	for i, u := range units {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			cu, errs := tr.Unit(u)
			cus[i], unitErrs[i] = cu, errs
			logger.Debug().
				Uint64("unit_offset", u.Offset).
				Int("subprograms", len(cu.Subprograms)).
				Int("errors", errs.Len()).
				Msg("Traversed compilation unit")
			return nil
		})
	}
	runErr := g.Wait()
	if runErr == nil {
		runErr = ctx.Err()
	}

	// unitErrs[i] is nil for a unit that was never traversed.
	report := &debuginfo.Report{CompilationUnits: make([]debuginfo.CompilationUnit, 0, len(units))}
	var all dwerrors.List
	for i, l := range unitErrs {
		if l == nil {
			continue
		}
		report.CompilationUnits = append(report.CompilationUnits, cus[i])
		all.Merge(l)
	}

	nodes, typeErrs, err := typegraph.Resolve(ctx, r, report.VariableTypeIDs())
	if runErr == nil {
		runErr = err
	}
	report.TypeNodes = nodes
	report.ParsingErrors = append(all.Prefixed(UnitErrorPrefix), typeErrs.Prefixed(TypeErrorPrefix)...)
	for _, msg := range report.ParsingErrors {
		logger.Trace().Str("error", msg).Msg("Parsing error")
	}

	if runErr != nil {
		logger.Warn().
			Err(runErr).
			Int("units", len(report.CompilationUnits)).
			Int("total_units", len(units)).
			Int("types", len(report.TypeNodes)).
			Msg("Extraction interrupted")
		return report, runErr
	}

	stats := report.Stats()
	logger.Info().
		Int("units", stats.Units).
		Int("subprograms", stats.Subprograms).
		Int("inlined_methods", stats.InlinedMethods).
		Int("variables", stats.Variables).
		Int("line_rows", stats.LineRows).
		Int("types", stats.Types).
		Int("errors", stats.Errors).
		Dur("elapsed", time.Since(start)).
		Msg("Extraction complete")
	return report, nil
}

// Result is the outcome of Extract.
type Result struct {
	Report      *debuginfo.Report
	Path        string
	Format      object.Format
	Fingerprint string
}

// Extract opens the binary at path and runs the extraction on it.
func Extract(ctx context.Context, path string, opts Options, logger zerolog.Logger) (*Result, error) {
	bin, err := object.Open(path, opts.MaxInputSize)
	if err != nil {
		return nil, err
	}
	defer dwerrors.DeferClose(logger, bin, "Failed to unmap binary")
	return ExtractBinary(ctx, bin, opts, logger)
}

// ExtractBinary runs the extraction on an opened binary. The report holds no
// references into bin, which may be closed afterwards. On cancellation the
// partial result is returned along with the error.
func ExtractBinary(ctx context.Context, bin *object.Binary, opts Options, logger zerolog.Logger) (*Result, error) {
	logger.Debug().
		Str("path", bin.Path()).
		Str("format", string(bin.Format())).
		Str("fingerprint", bin.Fingerprint()).
		Int("size", bin.Size()).
		Msg("Opened binary")

	prog, err := die.Load(bin)
	if err != nil {
		return nil, fmt.Errorf("failed to load debug information from %s: %w", bin.Path(), err)
	}
	report, err := Run(ctx, prog, opts, logger)
	if report == nil {
		return nil, err
	}
	return &Result{
		Report:      report,
		Path:        bin.Path(),
		Format:      bin.Format(),
		Fingerprint: bin.Fingerprint(),
	}, err
}
