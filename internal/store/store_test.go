package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/dwarfdump/internal/store"
	"github.com/coral-mesh/dwarfdump/internal/testutil"
	"github.com/coral-mesh/dwarfdump/pkg/debuginfo"
)

func col(c uint64) *uint64 { return &c }

func sampleReport() *debuginfo.Report {
	x := debuginfo.Variable{
		Name:   "x",
		TypeID: debuginfo.TypeID{EntryOffset: 42, UnitOffset: 0},
		RegisterLocations: []debuginfo.OperationsList{{
			Operations: debuginfo.Operations{debuginfo.FrameOffset{Offset: -16}},
			Range:      debuginfo.AddressRange{Start: 0x1000, End: 0x1040},
		}},
	}
	return &debuginfo.Report{
		CompilationUnits: []debuginfo.CompilationUnit{{
			Subprograms: []debuginfo.Subprogram{{
				MethodName:    "main",
				LinkageName:   "_ZN4main4mainE",
				DeclRange:     debuginfo.SourceRange{FilePath: "/src/main.rs", Line: 3, Column: col(1)},
				AddressRanges: []debuginfo.AddressRange{{Start: 0x1000, End: 0x1080}, {Start: 0x3000, End: 0x3010}},
				Variables:     []debuginfo.Variable{x},
				InlinedMethods: []debuginfo.InlinedMethod{
					{
						InlineDepth:   1,
						MethodName:    "outer",
						CallSiteRange: debuginfo.SourceRange{FilePath: "/src/main.rs", Line: 5},
						DeclRange:     debuginfo.SourceRange{FilePath: "/src/lib.rs", Line: 10},
						AddressRanges: []debuginfo.AddressRange{{Start: 0x1010, End: 0x1030}},
						Variables:     []debuginfo.Variable{x},
					},
					{
						InlineDepth:   2,
						MethodName:    "inner",
						CallSiteRange: debuginfo.SourceRange{FilePath: "/src/lib.rs", Line: 12, Column: col(9)},
						DeclRange:     debuginfo.SourceRange{FilePath: "/src/lib.rs", Line: 20},
						AddressRanges: []debuginfo.AddressRange{{Start: 0x1018, End: 0x1020}},
					},
				},
			}},
			LineNumberInfo: []debuginfo.LineNumberInfo{
				{Address: 0x1000, FilePath: "/src/main.rs", Line: 3, Column: 1},
				{Address: 0x1080, FilePath: debuginfo.EndSequenceMarker},
			},
			ParsingErrors: []string{"unit problem"},
		}},
		TypeNodes: debuginfo.TypeNodes{
			{EntryOffset: 42, UnitOffset: 0}: debuginfo.I32,
		},
		ParsingErrors: []string{"Type Parsing Error: bad"},
	}
}

func record(hash string) store.Record {
	return store.Record{Hash: hash, Path: "/bin/app", Format: "elf", RunID: "run-1"}
}

func TestSaveReport(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	indexed, err := s.IsIndexed(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, indexed)

	require.NoError(t, s.SaveReport(ctx, record("abc"), sampleReport()))

	indexed, err = s.IsIndexed(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, indexed)

	bin, err := s.Binary(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "/bin/app", bin.Path)
	assert.Equal(t, "elf", bin.Format)
	assert.Equal(t, "run-1", bin.RunID)
	assert.Equal(t, int64(1), bin.Units)
	assert.Equal(t, int64(1), bin.Types)
	assert.Equal(t, int64(1), bin.Errors)
	assert.False(t, bin.IndexedAt.IsZero())

	counts, err := s.RowCounts(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{
		"subprograms":     2,
		"inlined_methods": 2,
		"variables":       2,
		"line_numbers":    2,
		"type_nodes":      1,
		"parsing_errors":  2,
	}, counts)
}

func TestSaveReport_Replaces(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveReport(ctx, record("abc"), sampleReport()))
	require.NoError(t, s.SaveReport(ctx, record("other"), sampleReport()))

	smaller := sampleReport()
	smaller.CompilationUnits[0].Subprograms[0].InlinedMethods = nil
	rec := record("abc")
	rec.RunID = "run-2"
	require.NoError(t, s.SaveReport(ctx, rec, smaller))

	counts, err := s.RowCounts(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, int64(0), counts["inlined_methods"])
	assert.Equal(t, int64(1), counts["variables"])

	counts, err = s.RowCounts(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts["inlined_methods"])

	bin, err := s.Binary(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "run-2", bin.RunID)

	all, err := s.Binaries(ctx, store.BinaryFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	elf, err := s.Binaries(ctx, store.BinaryFilter{Paths: []string{"/bin/app"}, Formats: []string{"elf", "wasm"}})
	require.NoError(t, err)
	assert.Len(t, elf, 2)

	none, err := s.Binaries(ctx, store.BinaryFilter{Formats: []string{"wasm"}})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSaveReport_RequiresHash(t *testing.T) {
	s := testutil.NewTestStore(t)
	assert.Error(t, s.SaveReport(context.Background(), record(""), sampleReport()))
}

func TestSubprogramsAt(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveReport(ctx, record("abc"), sampleReport()))

	methods, err := s.SubprogramsAt(ctx, "abc", 0x101c)
	require.NoError(t, err)
	require.Len(t, methods, 3)
	assert.Equal(t, "main", methods[0].Name)
	assert.Equal(t, "_ZN4main4mainE", methods[0].LinkageName)
	assert.Nil(t, methods[0].CallSite)
	assert.Equal(t, col(1), methods[0].DeclRange.Column)
	assert.Equal(t, debuginfo.AddressRange{Start: 0x1000, End: 0x1080}, methods[0].Range)
	assert.Equal(t, "outer", methods[1].Name)
	assert.Equal(t, uint64(1), methods[1].InlineDepth)
	assert.Equal(t, "inner", methods[2].Name)
	require.NotNil(t, methods[2].CallSite)
	assert.Equal(t, uint64(12), methods[2].CallSite.Line)
	assert.Equal(t, col(9), methods[2].CallSite.Column)
	assert.Nil(t, methods[2].DeclRange.Column)

	methods, err = s.SubprogramsAt(ctx, "abc", 0x3008)
	require.NoError(t, err)
	require.Len(t, methods, 1)
	assert.Equal(t, debuginfo.AddressRange{Start: 0x3000, End: 0x3010}, methods[0].Range)

	for _, addr := range []uint64{0x0fff, 0x1080, 0x5000} {
		methods, err = s.SubprogramsAt(ctx, "abc", addr)
		require.NoError(t, err)
		assert.Empty(t, methods, "address %#x", addr)
	}

	methods, err = s.SubprogramsAt(ctx, "missing", 0x1000)
	require.NoError(t, err)
	assert.Empty(t, methods)
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.duckdb")
	ctx := context.Background()

	s, err := store.Open(ctx, path, testutil.NewTestLogger(t))
	require.NoError(t, err)
	require.NoError(t, s.SaveReport(ctx, record("abc"), sampleReport()))
	require.NoError(t, s.Close())

	s, err = store.Open(ctx, path, testutil.NewTestLogger(t))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	indexed, err := s.IsIndexed(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, indexed)
}

func TestLineAt(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveReport(ctx, record("abc"), sampleReport()))

	row, ok, err := s.LineAt(ctx, "abc", 0x1010)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, debuginfo.LineNumberInfo{Address: 0x1000, FilePath: "/src/main.rs", Line: 3, Column: 1}, row)

	_, ok, err = s.LineAt(ctx, "abc", 0x9000)
	require.NoError(t, err)
	assert.False(t, ok)
}
