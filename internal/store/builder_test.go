package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder(t *testing.T) {
	tests := []struct {
		name     string
		builder  *Builder
		wantSQL  string
		wantArgs []any
	}{
		{
			name:    "select all",
			builder: NewQueryBuilder("subprograms"),
			wantSQL: "SELECT * FROM subprograms",
		},
		{
			name:    "columns",
			builder: NewQueryBuilder("subprograms").Select("method_name", "linkage_name"),
			wantSQL: "SELECT method_name, linkage_name FROM subprograms",
		},
		{
			name:     "covers",
			builder:  NewQueryBuilder("subprograms").Where("binary_hash = ?", "h").Covers("range_start", "range_end", 0x1000),
			wantSQL:  "SELECT * FROM subprograms WHERE binary_hash = ? AND range_start <= ? AND ? < range_end",
			wantArgs: []any{"h", uint64(0x1000), uint64(0x1000)},
		},
		{
			name:     "in",
			builder:  NewQueryBuilder("type_nodes").In("kind", "Struct", "Enum"),
			wantSQL:  "SELECT * FROM type_nodes WHERE kind IN (?, ?)",
			wantArgs: []any{"Struct", "Enum"},
		},
		{
			name:    "empty in",
			builder: NewQueryBuilder("type_nodes").In("kind"),
			wantSQL: "SELECT * FROM type_nodes",
		},
		{
			name:     "order and limit",
			builder:  NewQueryBuilder("inlined_methods").OrderBy("unit_index", "-inline_depth").Limit(5),
			wantSQL:  "SELECT * FROM inlined_methods ORDER BY unit_index, inline_depth DESC LIMIT ?",
			wantArgs: []any{5},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, args, err := tt.builder.Build()
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, q)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestBuilder_BuildTwice(t *testing.T) {
	b := NewQueryBuilder("binaries").Where("hash = ?", "abc").Limit(1)
	_, first, err := b.Build()
	require.NoError(t, err)
	_, second, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestBuilder_MissingTable(t *testing.T) {
	_, _, err := NewQueryBuilder("").Build()
	require.Error(t, err)
	assert.Panics(t, func() { NewQueryBuilder("").MustBuild() })
}
