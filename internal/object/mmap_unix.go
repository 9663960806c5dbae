//go:build unix

package object

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/coral-mesh/dwarfdump/internal/safe"
)

// mapFile maps path read-only. The returned function unmaps it.
func mapFile(path string, opts *safe.FileOptions) ([]byte, func() error, error) {
	f, info, err := safe.Open(path, opts)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = f.Close() }()

	size, clamped := safe.ToInt(info.Size())
	if clamped {
		return nil, nil, fmt.Errorf("file too large to map: %d bytes", info.Size())
	}
	if size == 0 {
		return []byte{}, func() error { return nil }, nil
	}
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return nil, nil, fmt.Errorf("mmap: %w", err)
	}
	return data, func() error { return unix.Munmap(data) }, nil
}
