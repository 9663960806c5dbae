package die_test

import (
	"debug/dwarf"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/dwarfdump/internal/die"
	"github.com/coral-mesh/dwarfdump/internal/object"
)

func TestLoad_TestExecutable(t *testing.T) {
	exe, err := os.Executable()
	require.NoError(t, err)

	bin, err := object.Open(exe, 0)
	if errors.Is(err, object.ErrNoDebugInfo) || errors.Is(err, object.ErrUnknownFormat) {
		t.Skipf("test binary carries no usable debug info: %v", err)
	}
	require.NoError(t, err)
	defer func() { _ = bin.Close() }()

	prog, err := die.Load(bin)
	require.NoError(t, err)
	require.NotEmpty(t, prog.Units())

	var subprograms, withLines int
	for _, u := range prog.Units() {
		require.NotNil(t, u.Root)
		got, ok := prog.Unit(u.Offset)
		require.True(t, ok)
		assert.Same(t, u, got)

		if len(u.Lines) > 0 {
			withLines++
		}
		for _, c := range u.Root.Children {
			if c.Tag == dwarf.TagSubprogram {
				subprograms++
			}
		}
	}
	assert.Positive(t, subprograms)
	assert.Positive(t, withLines)
}
