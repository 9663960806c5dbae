package helpers

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRow struct {
	Name  string `header:"NAME" json:"name"`
	Value int    `header:"VALUE" json:"value"`
	Extra string `json:"-"`
}

func TestNewFormatter(t *testing.T) {
	for _, f := range []OutputFormat{FormatTable, FormatJSON, FormatCSV} {
		got, err := NewFormatter(f)
		require.NoError(t, err)
		assert.NotNil(t, got)
	}
	_, err := NewFormatter("yaml")
	assert.Error(t, err)
}

func TestTableFormatter(t *testing.T) {
	var buf bytes.Buffer
	err := (&TableFormatter{}).Format([]testRow{{"main", 1, "x"}, {"helper_fn", 22, "y"}}, &buf)
	require.NoError(t, err)
	assert.Equal(t, "NAME        VALUE\nmain        1\nhelper_fn   22\n", buf.String())

	buf.Reset()
	require.NoError(t, (&TableFormatter{}).Format([]testRow{}, &buf))
	assert.Empty(t, buf.String())

	assert.Error(t, (&TableFormatter{}).Format(testRow{}, &buf))
}

func TestCSVFormatter(t *testing.T) {
	var buf bytes.Buffer
	err := (&CSVFormatter{}).Format([]*testRow{{Name: "a,b", Value: 1}}, &buf)
	require.NoError(t, err)
	assert.Equal(t, "NAME,VALUE\n\"a,b\",1\n", buf.String())
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&JSONFormatter{}).Format([]testRow{{Name: "<T>", Value: 3}}, &buf))
	assert.Contains(t, buf.String(), `"<T>"`)

	var decoded []testRow
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, []testRow{{Name: "<T>", Value: 3}}, decoded)
}

func TestValidateFormat(t *testing.T) {
	supported := []OutputFormat{FormatTable, FormatJSON}
	assert.NoError(t, ValidateFormat("json", supported))
	err := ValidateFormat("csv", supported)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "table, json")
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{"0x401000", 0x401000, false},
		{"4096", 4096, false},
		{" 0X10 ", 16, false},
		{"0xffffffffffffffff", 1<<64 - 1, false},
		{"main", 0, true},
		{"-1", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseAddress(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}
