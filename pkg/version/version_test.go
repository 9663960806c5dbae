package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	old := Version
	Version = "1.2.3"
	t.Cleanup(func() { Version = old })

	s := String()
	assert.Contains(t, s, "dwarfdump 1.2.3")
	assert.Contains(t, s, GoVersion)
}
