package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInterpolateQuery(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	tests := []struct {
		name  string
		query string
		args  []any
		want  string
	}{
		{"string", "SELECT * FROM t WHERE a = ?", []any{"x"}, "SELECT * FROM t WHERE a = 'x'"},
		{"quote", "SELECT * FROM t WHERE a = ?", []any{"O'Brien"}, "SELECT * FROM t WHERE a = 'O''Brien'"},
		{"unsigned", "SELECT * FROM t WHERE a <= ?", []any{uint64(4096)}, "SELECT * FROM t WHERE a <= 4096"},
		{"mixed", "? ? ? ?", []any{int64(-1), true, nil, 1.5}, "-1 true NULL 1.5"},
		{"time", "SELECT ?", []any{ts}, "SELECT '2024-01-02T03:04:05Z'"},
		{"whitespace", "SELECT *\n\tFROM t", nil, "SELECT * FROM t"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InterpolateQuery(tt.query, tt.args))
		})
	}
}
