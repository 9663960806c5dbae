//go:build !unix

package object

import (
	"github.com/coral-mesh/dwarfdump/internal/safe"
)

// mapFile reads path into memory on platforms without mmap support.
func mapFile(path string, opts *safe.FileOptions) ([]byte, func() error, error) {
	data, err := safe.ReadFile(path, opts)
	if err != nil {
		return nil, nil, err
	}
	return data, func() error { return nil }, nil
}
