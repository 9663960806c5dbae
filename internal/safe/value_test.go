package safe

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToInt_Uint64(t *testing.T) {
	tests := []struct {
		name        string
		input       uint64
		want        int
		wantClamped bool
	}{
		{"zero", 0, 0, false},
		{"section size", 12345, 12345, false},
		{"max int", math.MaxInt, math.MaxInt, false},
		{"max int plus one", math.MaxInt + 1, math.MaxInt, true},
		{"max uint64", math.MaxUint64, math.MaxInt, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, clamped := ToInt(tt.input)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantClamped, clamped)
		})
	}
}

func TestToInt_Int64(t *testing.T) {
	tests := []struct {
		name  string
		input int64
		want  int
	}{
		{"zero", 0, 0},
		{"file size", 4 << 30, 4 << 30},
		{"negative", -8, -8},
		{"min int64", math.MinInt64, math.MinInt},
		{"max int64", math.MaxInt64, math.MaxInt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, clamped := ToInt(tt.input)
			assert.Equal(t, tt.want, got)
			assert.False(t, clamped, "int is 64 bits wide on every supported platform")
		})
	}
}

func TestToInt_Uint32(t *testing.T) {
	got, clamped := ToInt(uint32(math.MaxUint32))
	assert.Equal(t, int(math.MaxUint32), got)
	assert.False(t, clamped)
}
