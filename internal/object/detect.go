package object

import (
	"bytes"
	"debug/dwarf"
	"debug/elf"
	"debug/macho"
	"debug/pe"
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	elfMagic  = []byte{0x7f, 'E', 'L', 'F'}
	wasmMagic = []byte{0x00, 'a', 's', 'm'}
	peMagic   = []byte{'M', 'Z'}
)

// Mach-O magic numbers, as read in either byte order.
var machoMagics = map[uint32]bool{
	macho.Magic32:  true,
	macho.Magic64:  true,
	macho.MagicFat: true,
	0xcefaedfe:     true,
	0xcffaedfe:     true,
}

func detect(data []byte) (Format, container, error) {
	switch {
	case bytes.HasPrefix(data, elfMagic):
		f, err := elf.NewFile(bytes.NewReader(data))
		if err != nil {
			return "", nil, fmt.Errorf("failed to parse ELF file: %w", err)
		}
		return FormatELF, elfContainer{f}, nil
	case bytes.HasPrefix(data, wasmMagic):
		c, err := parseWasm(data)
		if err != nil {
			return "", nil, fmt.Errorf("failed to parse WebAssembly module: %w", err)
		}
		return FormatWasm, c, nil
	case len(data) >= 4 && machoMagics[binary.BigEndian.Uint32(data)]:
		f, err := openMachO(data)
		if err != nil {
			return "", nil, fmt.Errorf("failed to parse Mach-O file: %w", err)
		}
		return FormatMachO, machoContainer{f}, nil
	case bytes.HasPrefix(data, peMagic):
		f, err := pe.NewFile(bytes.NewReader(data))
		if err != nil {
			return "", nil, fmt.Errorf("failed to parse PE file: %w", err)
		}
		return FormatPE, peContainer{f}, nil
	}
	return "", nil, ErrUnknownFormat
}

// openMachO opens a thin Mach-O file, or the first architecture of a
// universal one.
func openMachO(data []byte) (*macho.File, error) {
	fat, err := macho.NewFatFile(bytes.NewReader(data))
	if err == nil {
		if len(fat.Arches) == 0 {
			return nil, errors.New("universal binary without architectures")
		}
		return fat.Arches[0].File, nil
	}
	if !errors.Is(err, macho.ErrNotFat) {
		return nil, err
	}
	return macho.NewFile(bytes.NewReader(data))
}

type elfContainer struct{ f *elf.File }

func (c elfContainer) dwarf() (*dwarf.Data, error) { return c.f.DWARF() }
func (c elfContainer) byteOrder() binary.ByteOrder { return c.f.ByteOrder }

func (c elfContainer) section(name string) ([]byte, error) {
	s := c.f.Section(name)
	if s == nil || s.Type == elf.SHT_NOBITS {
		return nil, nil
	}
	return s.Data()
}

type machoContainer struct{ f *macho.File }

func (c machoContainer) dwarf() (*dwarf.Data, error) { return c.f.DWARF() }
func (c machoContainer) byteOrder() binary.ByteOrder { return c.f.ByteOrder }

// section maps ".debug_info" to "__debug_info".
func (c machoContainer) section(name string) ([]byte, error) {
	s := c.f.Section("__" + debugSuffix(name))
	if s == nil {
		return nil, nil
	}
	return s.Data()
}

type peContainer struct{ f *pe.File }

func (c peContainer) dwarf() (*dwarf.Data, error) { return c.f.DWARF() }
func (c peContainer) byteOrder() binary.ByteOrder { return binary.LittleEndian }

func (c peContainer) section(name string) ([]byte, error) {
	s := c.f.Section(name)
	if s == nil {
		return nil, nil
	}
	data, err := s.Data()
	if err != nil {
		return nil, err
	}
	// Raw section data is padded to the file alignment.
	if s.VirtualSize != 0 && s.VirtualSize < uint32(len(data)) {
		data = data[:s.VirtualSize]
	}
	return data, nil
}
