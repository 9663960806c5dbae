// Package object opens executable containers and exposes their debug sections.
package object

import (
	"debug/dwarf"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/zeebo/xxh3"

	"github.com/coral-mesh/dwarfdump/internal/safe"
)

// DefaultMaxSize bounds the size of a binary Open accepts (4 GiB).
const DefaultMaxSize = 4 << 30

var (
	// ErrUnknownFormat is returned for files that are not a supported container.
	ErrUnknownFormat = errors.New("unknown binary format")
	// ErrNoDebugInfo is returned for binaries without a .debug_info section.
	ErrNoDebugInfo = errors.New("no debug information")
)

// Format names a container format.
type Format string

const (
	FormatELF   Format = "elf"
	FormatMachO Format = "macho"
	FormatPE    Format = "pe"
	FormatWasm  Format = "wasm"
)

// container is the format-specific part of a Binary.
type container interface {
	dwarf() (*dwarf.Data, error)
	// section returns the named debug section, spelled ".debug_*".
	section(name string) ([]byte, error)
	byteOrder() binary.ByteOrder
}

// Binary is an opened executable. The zero value is not usable.
type Binary struct {
	path        string
	format      Format
	fingerprint string
	data        []byte
	unmap       func() error
	c           container
	sections    map[string][]byte
}

// Open maps the file at path and detects its container format.
// A maxSize of zero selects DefaultMaxSize.
func Open(path string, maxSize int64) (*Binary, error) {
	if maxSize == 0 {
		maxSize = DefaultMaxSize
	}
	data, unmap, err := mapFile(path, &safe.FileOptions{MaxSize: maxSize, AllowSymlinks: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open binary %s: %w", path, err)
	}
	b, err := newBinary(path, data)
	if err != nil {
		_ = unmap()
		return nil, err
	}
	b.unmap = unmap
	return b, nil
}

// New detects the container format of data held in memory.
func New(name string, data []byte) (*Binary, error) {
	return newBinary(name, data)
}

func newBinary(path string, data []byte) (*Binary, error) {
	format, c, err := detect(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	b := &Binary{
		path:        path,
		format:      format,
		fingerprint: Fingerprint(data),
		data:        data,
		c:           c,
		sections:    make(map[string][]byte),
	}
	if len(b.Section(".debug_info")) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoDebugInfo)
	}
	return b, nil
}

// Fingerprint returns the content hash used to identify a binary.
func Fingerprint(data []byte) string {
	return fmt.Sprintf("%016x", xxh3.Hash(data))
}

// Path returns the path the binary was opened from.
func (b *Binary) Path() string { return b.path }

// Format returns the detected container format.
func (b *Binary) Format() Format { return b.format }

// Fingerprint returns the xxh3 hash of the file contents.
func (b *Binary) Fingerprint() string { return b.fingerprint }

// Size returns the size of the file in bytes.
func (b *Binary) Size() int { return len(b.data) }

// ByteOrder returns the byte order of the binary.
func (b *Binary) ByteOrder() binary.ByteOrder { return b.c.byteOrder() }

// DWARF returns the decoded debug data.
func (b *Binary) DWARF() (*dwarf.Data, error) {
	d, err := b.c.dwarf()
	if err != nil {
		return nil, fmt.Errorf("failed to load DWARF from %s: %w", b.path, err)
	}
	return d, nil
}

// Section returns the decompressed contents of a debug section, or nil if
// the binary has none. Results are cached.
func (b *Binary) Section(name string) []byte {
	if s, ok := b.sections[name]; ok {
		return s
	}
	s, err := b.c.section(name)
	if err != nil {
		s = nil
	}
	b.sections[name] = s
	return s
}

// Close releases the mapping. Data returned by Section must not be used
// afterwards.
func (b *Binary) Close() error {
	if b.unmap == nil {
		return nil
	}
	unmap := b.unmap
	b.unmap = nil
	b.data = nil
	return unmap()
}

// debugSuffix returns the part of a ".debug_*" name after the dot.
func debugSuffix(name string) string {
	return strings.TrimPrefix(name, ".")
}
