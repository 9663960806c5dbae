package store

import (
	"time"
)

// Table names.
const (
	binariesTable      = "binaries"
	subprogramsTable   = "subprograms"
	inlinedTable       = "inlined_methods"
	variablesTable     = "variables"
	lineNumbersTable   = "line_numbers"
	typeNodesTable     = "type_nodes"
	parsingErrorsTable = "parsing_errors"
)

// Index sentinels for rows that belong to no unit or no inlined method.
const (
	reportLevel     = -1
	subprogramLevel = -1
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS binaries (
		hash       VARCHAR PRIMARY KEY,
		path       VARCHAR NOT NULL,
		format     VARCHAR NOT NULL,
		run_id     VARCHAR NOT NULL,
		indexed_at TIMESTAMP NOT NULL,
		units      BIGINT NOT NULL,
		types      BIGINT NOT NULL,
		errors     BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS subprograms (
		binary_hash  VARCHAR NOT NULL,
		unit_index   BIGINT NOT NULL,
		sub_index    BIGINT NOT NULL,
		method_name  VARCHAR NOT NULL,
		linkage_name VARCHAR NOT NULL,
		decl_file    VARCHAR NOT NULL,
		decl_line    UBIGINT NOT NULL,
		decl_col     UBIGINT,
		range_start  UBIGINT NOT NULL,
		range_end    UBIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS inlined_methods (
		binary_hash  VARCHAR NOT NULL,
		unit_index   BIGINT NOT NULL,
		sub_index    BIGINT NOT NULL,
		inline_index BIGINT NOT NULL,
		method_name  VARCHAR NOT NULL,
		inline_depth UBIGINT NOT NULL,
		call_file    VARCHAR NOT NULL,
		call_line    UBIGINT NOT NULL,
		call_col     UBIGINT,
		decl_file    VARCHAR NOT NULL,
		decl_line    UBIGINT NOT NULL,
		decl_col     UBIGINT,
		range_start  UBIGINT NOT NULL,
		range_end    UBIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS variables (
		binary_hash        VARCHAR NOT NULL,
		unit_index         BIGINT NOT NULL,
		sub_index          BIGINT NOT NULL,
		inline_index       BIGINT NOT NULL,
		var_name           VARCHAR NOT NULL,
		var_type_id        VARCHAR NOT NULL,
		register_locations VARCHAR NOT NULL,
		address_ranges     VARCHAR NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS line_numbers (
		binary_hash VARCHAR NOT NULL,
		unit_index  BIGINT NOT NULL,
		seq         BIGINT NOT NULL,
		address     UBIGINT NOT NULL,
		file_path   VARCHAR NOT NULL,
		line        UBIGINT NOT NULL,
		col         UBIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS type_nodes (
		binary_hash VARCHAR NOT NULL,
		type_id     VARCHAR NOT NULL,
		kind        VARCHAR NOT NULL,
		body        VARCHAR NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS parsing_errors (
		binary_hash VARCHAR NOT NULL,
		unit_index  BIGINT NOT NULL,
		seq         BIGINT NOT NULL,
		message     VARCHAR NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_subprograms_hash ON subprograms (binary_hash)`,
	`CREATE INDEX IF NOT EXISTS idx_inlined_methods_hash ON inlined_methods (binary_hash)`,
}

// Binary records one indexed binary.
type Binary struct {
	Hash      string    `duckdb:"hash,pk"`
	Path      string    `duckdb:"path"`
	Format    string    `duckdb:"format"`
	RunID     string    `duckdb:"run_id"`
	IndexedAt time.Time `duckdb:"indexed_at"`
	Units     int64     `duckdb:"units"`
	Types     int64     `duckdb:"types"`
	Errors    int64     `duckdb:"errors"`
}

// One row per address range of a subprogram.
type subprogramRow struct {
	BinaryHash  string  `duckdb:"binary_hash"`
	UnitIndex   int64   `duckdb:"unit_index"`
	SubIndex    int64   `duckdb:"sub_index"`
	MethodName  string  `duckdb:"method_name"`
	LinkageName string  `duckdb:"linkage_name"`
	DeclFile    string  `duckdb:"decl_file"`
	DeclLine    uint64  `duckdb:"decl_line"`
	DeclColumn  *uint64 `duckdb:"decl_col"`
	RangeStart  uint64  `duckdb:"range_start"`
	RangeEnd    uint64  `duckdb:"range_end"`
}

// One row per address range of an inlined method.
type inlinedRow struct {
	BinaryHash  string  `duckdb:"binary_hash"`
	UnitIndex   int64   `duckdb:"unit_index"`
	SubIndex    int64   `duckdb:"sub_index"`
	InlineIndex int64   `duckdb:"inline_index"`
	MethodName  string  `duckdb:"method_name"`
	InlineDepth uint64  `duckdb:"inline_depth"`
	CallFile    string  `duckdb:"call_file"`
	CallLine    uint64  `duckdb:"call_line"`
	CallColumn  *uint64 `duckdb:"call_col"`
	DeclFile    string  `duckdb:"decl_file"`
	DeclLine    uint64  `duckdb:"decl_line"`
	DeclColumn  *uint64 `duckdb:"decl_col"`
	RangeStart  uint64  `duckdb:"range_start"`
	RangeEnd    uint64  `duckdb:"range_end"`
}

// InlineIndex is -1 for variables of the subprogram itself. Locations and
// ranges hold the JSON encoding used in reports.
type variableRow struct {
	BinaryHash        string `duckdb:"binary_hash"`
	UnitIndex         int64  `duckdb:"unit_index"`
	SubIndex          int64  `duckdb:"sub_index"`
	InlineIndex       int64  `duckdb:"inline_index"`
	Name              string `duckdb:"var_name"`
	TypeID            string `duckdb:"var_type_id"`
	RegisterLocations string `duckdb:"register_locations"`
	AddressRanges     string `duckdb:"address_ranges"`
}

type lineRow struct {
	BinaryHash string `duckdb:"binary_hash"`
	UnitIndex  int64  `duckdb:"unit_index"`
	Seq        int64  `duckdb:"seq"`
	Address    uint64 `duckdb:"address"`
	FilePath   string `duckdb:"file_path"`
	Line       uint64 `duckdb:"line"`
	Column     uint64 `duckdb:"col"`
}

type typeNodeRow struct {
	BinaryHash string `duckdb:"binary_hash"`
	TypeID     string `duckdb:"type_id"`
	Kind       string `duckdb:"kind"`
	Body       string `duckdb:"body"`
}

// UnitIndex is -1 for report-level errors.
type parsingErrorRow struct {
	BinaryHash string `duckdb:"binary_hash"`
	UnitIndex  int64  `duckdb:"unit_index"`
	Seq        int64  `duckdb:"seq"`
	Message    string `duckdb:"message"`
}
