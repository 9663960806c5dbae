// Package store indexes extraction reports in DuckDB so that many binaries can
// be queried without re-running the extraction.
//
// Every row carries the fingerprint of the binary it was extracted from.
// Saving a report for a fingerprint replaces whatever was stored for it before.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	dwerrors "github.com/coral-mesh/dwarfdump/internal/errors"
	"github.com/coral-mesh/dwarfdump/internal/retry"
	"github.com/coral-mesh/dwarfdump/pkg/debuginfo"
)

// Store is a DuckDB-backed report index.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
	retry  retry.Config
}

// Open opens the database at dsn and creates the schema if needed.
func Open(ctx context.Context, dsn string, logger zerolog.Logger) (*Store, error) {
	db, err := OpenDB(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open index database: %w", err)
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to create index schema: %w", err)
		}
	}
	return &Store{
		db:     db,
		logger: logger.With().Str("database", dsnName(dsn)).Logger(),
		retry:  retry.Default,
	}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record describes the binary a report was extracted from.
type Record struct {
	Hash   string
	Path   string
	Format string
	RunID  string
}

// SaveReport stores report under rec.Hash in a single transaction, replacing
// any earlier report for the same hash.
func (s *Store) SaveReport(ctx context.Context, rec Record, report *debuginfo.Report) error {
	if rec.Hash == "" {
		return errors.New("binary hash is required")
	}
	rows, err := flatten(rec, report)
	if err != nil {
		return err
	}

	start := time.Now()
	err = retry.Do(ctx, s.retry, func() error {
		return s.save(ctx, rows)
	}, isTransactionConflict)
	if err != nil {
		return fmt.Errorf("failed to index %s: %w", rec.Path, err)
	}

	s.logger.Debug().
		Str("hash", rec.Hash).
		Int("subprograms", len(rows.subprograms)).
		Int("inlined_methods", len(rows.inlined)).
		Int("variables", len(rows.variables)).
		Int("line_rows", len(rows.lines)).
		Int("type_nodes", len(rows.types)).
		Dur("elapsed", time.Since(start)).
		Msg("Indexed report")
	return nil
}

func (s *Store) save(ctx context.Context, rows *rowSet) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer dwerrors.DeferRollback(s.logger, tx)

	hash := rows.binary.Hash
	steps := []struct {
		table  string
		delete func() error
		insert func() error
	}{
		{
			subprogramsTable,
			func() error { return NewTable[subprogramRow](tx, subprogramsTable).DeleteWhere(ctx, "binary_hash", hash) },
			func() error { return NewTable[subprogramRow](tx, subprogramsTable).BatchInsert(ctx, rows.subprograms) },
		},
		{
			inlinedTable,
			func() error { return NewTable[inlinedRow](tx, inlinedTable).DeleteWhere(ctx, "binary_hash", hash) },
			func() error { return NewTable[inlinedRow](tx, inlinedTable).BatchInsert(ctx, rows.inlined) },
		},
		{
			variablesTable,
			func() error { return NewTable[variableRow](tx, variablesTable).DeleteWhere(ctx, "binary_hash", hash) },
			func() error { return NewTable[variableRow](tx, variablesTable).BatchInsert(ctx, rows.variables) },
		},
		{
			lineNumbersTable,
			func() error { return NewTable[lineRow](tx, lineNumbersTable).DeleteWhere(ctx, "binary_hash", hash) },
			func() error { return NewTable[lineRow](tx, lineNumbersTable).BatchInsert(ctx, rows.lines) },
		},
		{
			typeNodesTable,
			func() error { return NewTable[typeNodeRow](tx, typeNodesTable).DeleteWhere(ctx, "binary_hash", hash) },
			func() error { return NewTable[typeNodeRow](tx, typeNodesTable).BatchInsert(ctx, rows.types) },
		},
		{
			parsingErrorsTable,
			func() error { return NewTable[parsingErrorRow](tx, parsingErrorsTable).DeleteWhere(ctx, "binary_hash", hash) },
			func() error { return NewTable[parsingErrorRow](tx, parsingErrorsTable).BatchInsert(ctx, rows.errors) },
		},
	}
	for _, step := range steps {
		if err := step.delete(); err != nil {
			return fmt.Errorf("clear %s: %w", step.table, err)
		}
		if err := step.insert(); err != nil {
			return err
		}
	}
	if err := NewTable[Binary](tx, binariesTable).Upsert(ctx, &rows.binary); err != nil {
		return fmt.Errorf("record binary: %w", err)
	}
	return tx.Commit()
}

// IsIndexed reports whether a report is stored for hash.
func (s *Store) IsIndexed(ctx context.Context, hash string) (bool, error) {
	_, err := s.Binary(ctx, hash)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// Binary returns the record of the binary indexed under hash. It returns
// sql.ErrNoRows when there is none.
func (s *Store) Binary(ctx context.Context, hash string) (*Binary, error) {
	return NewTable[Binary](s.db, binariesTable).Get(ctx, hash)
}

// BinaryFilter narrows Binaries. Empty lists match everything.
type BinaryFilter struct {
	Paths   []string
	Formats []string
}

// Binaries lists the indexed binaries matching f, most recent first.
func (s *Store) Binaries(ctx context.Context, f BinaryFilter) ([]Binary, error) {
	t := NewTable[Binary](s.db, binariesTable)
	b := t.Select().
		In("path", anys(f.Paths)...).
		In("format", anys(f.Formats)...).
		OrderBy("-indexed_at", "path")
	return query(ctx, s, t, b)
}

func anys(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// RowCounts returns the number of rows stored for hash in each table.
func (s *Store) RowCounts(ctx context.Context, hash string) (map[string]int64, error) {
	counts := make(map[string]int64)
	for _, table := range []string{
		subprogramsTable, inlinedTable, variablesTable, lineNumbersTable, typeNodesTable, parsingErrorsTable,
	} {
		q, args := NewQueryBuilder(table).Select("count(*)").Where("binary_hash = ?", hash).MustBuild()
		var n int64
		if err := s.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		counts[table] = n
	}
	return counts, nil
}

// Method is a method whose code covers a looked-up address. InlineDepth is
// zero for the enclosing subprogram.
type Method struct {
	Name        string
	LinkageName string
	InlineDepth uint64
	DeclRange   debuginfo.SourceRange
	CallSite    *debuginfo.SourceRange
	Range       debuginfo.AddressRange
}

// SubprogramsAt returns the subprogram of the binary indexed under hash whose
// code covers addr, followed by the methods inlined into it that cover addr,
// from the outermost to the innermost.
func (s *Store) SubprogramsAt(ctx context.Context, hash string, addr uint64) ([]Method, error) {
	subs := NewTable[subprogramRow](s.db, subprogramsTable)
	hits, err := query(ctx, s, subs, subs.Select().
		Where("binary_hash = ?", hash).
		Covers("range_start", "range_end", addr).
		OrderBy("unit_index", "sub_index").
		Limit(1))
	if err != nil || len(hits) == 0 {
		return nil, err
	}
	sp := hits[0]
	methods := []Method{{
		Name:        sp.MethodName,
		LinkageName: sp.LinkageName,
		DeclRange:   debuginfo.SourceRange{FilePath: sp.DeclFile, Line: sp.DeclLine, Column: sp.DeclColumn},
		Range:       debuginfo.AddressRange{Start: sp.RangeStart, End: sp.RangeEnd},
	}}

	inl := NewTable[inlinedRow](s.db, inlinedTable)
	inlined, err := query(ctx, s, inl, inl.Select().
		Where("binary_hash = ?", hash).
		Where("unit_index = ? AND sub_index = ?", sp.UnitIndex, sp.SubIndex).
		Covers("range_start", "range_end", addr).
		OrderBy("inline_depth", "inline_index"))
	if err != nil {
		return nil, err
	}
	for _, im := range inlined {
		methods = append(methods, Method{
			Name:        im.MethodName,
			InlineDepth: im.InlineDepth,
			DeclRange:   debuginfo.SourceRange{FilePath: im.DeclFile, Line: im.DeclLine, Column: im.DeclColumn},
			CallSite:    &debuginfo.SourceRange{FilePath: im.CallFile, Line: im.CallLine, Column: im.CallColumn},
			Range:       debuginfo.AddressRange{Start: im.RangeStart, End: im.RangeEnd},
		})
	}
	return methods, nil
}

// LineAt looks addr up in the line table of the unit whose subprogram covers
// addr, in the binary indexed under hash.
func (s *Store) LineAt(ctx context.Context, hash string, addr uint64) (debuginfo.LineNumberInfo, bool, error) {
	subs := NewTable[subprogramRow](s.db, subprogramsTable)
	hits, err := query(ctx, s, subs, subs.Select().
		Where("binary_hash = ?", hash).
		Covers("range_start", "range_end", addr).
		OrderBy("unit_index").
		Limit(1))
	if err != nil || len(hits) == 0 {
		return debuginfo.LineNumberInfo{}, false, err
	}

	lines := NewTable[lineRow](s.db, lineNumbersTable)
	rows, err := query(ctx, s, lines, lines.Select().
		Where("binary_hash = ? AND unit_index = ?", hash, hits[0].UnitIndex).
		OrderBy("seq"))
	if err != nil {
		return debuginfo.LineNumberInfo{}, false, err
	}
	cu := debuginfo.CompilationUnit{LineNumberInfo: make([]debuginfo.LineNumberInfo, len(rows))}
	for i, r := range rows {
		cu.LineNumberInfo[i] = debuginfo.LineNumberInfo{Address: r.Address, FilePath: r.FilePath, Line: r.Line, Column: r.Column}
	}
	row, ok := cu.LookUpLineNumberInfo(addr)
	return row, ok, nil
}

func query[T any](ctx context.Context, s *Store, t *Table[T], b *Builder) ([]T, error) {
	if e := s.logger.Trace(); e.Enabled() {
		q, args, err := b.Build()
		if err == nil {
			e.Str("query", InterpolateQuery(q, args)).Msg("Querying index")
		}
	}
	return t.Query(ctx, b)
}

type rowSet struct {
	binary      Binary
	subprograms []subprogramRow
	inlined     []inlinedRow
	variables   []variableRow
	lines       []lineRow
	types       []typeNodeRow
	errors      []parsingErrorRow
}

// flatten converts report into table rows.
func flatten(rec Record, report *debuginfo.Report) (*rowSet, error) {
	rs := &rowSet{binary: Binary{
		Hash:      rec.Hash,
		Path:      rec.Path,
		Format:    rec.Format,
		RunID:     rec.RunID,
		IndexedAt: time.Now().UTC(),
		Units:     int64(len(report.CompilationUnits)),
		Types:     int64(len(report.TypeNodes)),
		Errors:    int64(len(report.ParsingErrors)),
	}}
	hash := rec.Hash

	for ui, cu := range report.CompilationUnits {
		unit := int64(ui)
		for si, sp := range cu.Subprograms {
			sub := int64(si)
			for _, r := range rangesOrZero(sp.AddressRanges) {
				rs.subprograms = append(rs.subprograms, subprogramRow{
					BinaryHash:  hash,
					UnitIndex:   unit,
					SubIndex:    sub,
					MethodName:  sp.MethodName,
					LinkageName: sp.LinkageName,
					DeclFile:    sp.DeclRange.FilePath,
					DeclLine:    sp.DeclRange.Line,
					DeclColumn:  sp.DeclRange.Column,
					RangeStart:  r.Start,
					RangeEnd:    r.End,
				})
			}
			if err := rs.addVariables(hash, unit, sub, subprogramLevel, sp.Variables); err != nil {
				return nil, err
			}
			for ii, im := range sp.InlinedMethods {
				for _, r := range rangesOrZero(im.AddressRanges) {
					rs.inlined = append(rs.inlined, inlinedRow{
						BinaryHash:  hash,
						UnitIndex:   unit,
						SubIndex:    sub,
						InlineIndex: int64(ii),
						MethodName:  im.MethodName,
						InlineDepth: im.InlineDepth,
						CallFile:    im.CallSiteRange.FilePath,
						CallLine:    im.CallSiteRange.Line,
						CallColumn:  im.CallSiteRange.Column,
						DeclFile:    im.DeclRange.FilePath,
						DeclLine:    im.DeclRange.Line,
						DeclColumn:  im.DeclRange.Column,
						RangeStart:  r.Start,
						RangeEnd:    r.End,
					})
				}
				if err := rs.addVariables(hash, unit, sub, int64(ii), im.Variables); err != nil {
					return nil, err
				}
			}
		}
		for i, row := range cu.LineNumberInfo {
			rs.lines = append(rs.lines, lineRow{
				BinaryHash: hash,
				UnitIndex:  unit,
				Seq:        int64(i),
				Address:    row.Address,
				FilePath:   row.FilePath,
				Line:       row.Line,
				Column:     row.Column,
			})
		}
		rs.addErrors(hash, unit, cu.ParsingErrors)
	}
	rs.addErrors(hash, reportLevel, report.ParsingErrors)

	for id, typ := range report.TypeNodes {
		body, err := json.Marshal(typ)
		if err != nil {
			return nil, fmt.Errorf("encode type %s: %w", id, err)
		}
		rs.types = append(rs.types, typeNodeRow{BinaryHash: hash, TypeID: id.String(), Kind: typ.Kind(), Body: string(body)})
	}
	return rs, nil
}

func (rs *rowSet) addVariables(hash string, unit, sub, inline int64, vars []debuginfo.Variable) error {
	for _, v := range vars {
		locs, err := json.Marshal(nonNil(v.RegisterLocations))
		if err != nil {
			return fmt.Errorf("encode locations of %s: %w", v.Name, err)
		}
		ranges, err := json.Marshal(nonNil(v.AddressRanges))
		if err != nil {
			return fmt.Errorf("encode ranges of %s: %w", v.Name, err)
		}
		rs.variables = append(rs.variables, variableRow{
			BinaryHash:        hash,
			UnitIndex:         unit,
			SubIndex:          sub,
			InlineIndex:       inline,
			Name:              v.Name,
			TypeID:            v.TypeID.String(),
			RegisterLocations: string(locs),
			AddressRanges:     string(ranges),
		})
	}
	return nil
}

func (rs *rowSet) addErrors(hash string, unit int64, msgs []string) {
	for i, msg := range msgs {
		rs.errors = append(rs.errors, parsingErrorRow{BinaryHash: hash, UnitIndex: unit, Seq: int64(i), Message: msg})
	}
}

// rangesOrZero keeps methods without code ranges in the index as a single
// empty range, which no address lookup matches.
func rangesOrZero(ranges []debuginfo.AddressRange) []debuginfo.AddressRange {
	if len(ranges) == 0 {
		return []debuginfo.AddressRange{{}}
	}
	return ranges
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func isTransactionConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Conflict on") ||
		strings.Contains(msg, "TransactionContext Error") ||
		strings.Contains(msg, "serialization")
}
