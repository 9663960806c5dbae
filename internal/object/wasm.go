package object

import (
	"debug/dwarf"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/coral-mesh/dwarfdump/internal/safe"
)

const wasmCustomSection = 0

var errWasmTruncated = errors.New("truncated section")

// wasmContainer holds the custom sections of a WebAssembly module. DWARF
// data lives in custom sections named like the ELF ones.
type wasmContainer struct {
	sections map[string][]byte
}

func parseWasm(data []byte) (wasmContainer, error) {
	if len(data) < 8 {
		return wasmContainer{}, errWasmTruncated
	}
	if v := binary.LittleEndian.Uint32(data[4:8]); v != 1 {
		return wasmContainer{}, fmt.Errorf("unsupported version %d", v)
	}
	c := wasmContainer{sections: make(map[string][]byte)}
	rest := data[8:]
	for len(rest) > 0 {
		id := rest[0]
		size, n := binary.Uvarint(rest[1:])
		if n <= 0 {
			return wasmContainer{}, errWasmTruncated
		}
		start := 1 + n
		length, clamped := safe.ToInt(size)
		if clamped || length > len(rest)-start {
			return wasmContainer{}, fmt.Errorf("section %d: %w", id, errWasmTruncated)
		}
		body := rest[start : start+length]
		rest = rest[start+length:]

		if id != wasmCustomSection {
			continue
		}
		nameLen, n := binary.Uvarint(body)
		if n <= 0 {
			return wasmContainer{}, errWasmTruncated
		}
		l, clamped := safe.ToInt(nameLen)
		if clamped || l > len(body)-n {
			return wasmContainer{}, fmt.Errorf("custom section name: %w", errWasmTruncated)
		}
		name := string(body[n : n+l])
		if strings.HasPrefix(name, ".debug_") {
			c.sections[name] = body[n+l:]
		}
	}
	return c, nil
}

func (c wasmContainer) byteOrder() binary.ByteOrder { return binary.LittleEndian }

func (c wasmContainer) section(name string) ([]byte, error) {
	return c.sections[name], nil
}

func (c wasmContainer) dwarf() (*dwarf.Data, error) {
	s := c.sections
	d, err := dwarf.New(s[".debug_abbrev"], s[".debug_aranges"], s[".debug_frame"], s[".debug_info"],
		s[".debug_line"], s[".debug_pubnames"], s[".debug_ranges"], s[".debug_str"])
	if err != nil {
		return nil, err
	}
	for _, name := range []string{".debug_addr", ".debug_line_str", ".debug_str_offsets", ".debug_rnglists"} {
		if len(s[name]) == 0 {
			continue
		}
		if err := d.AddSection(name, s[name]); err != nil {
			return nil, err
		}
	}
	return d, nil
}
