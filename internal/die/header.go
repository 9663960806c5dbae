package die

import (
	"encoding/binary"
	"fmt"
)

// DWARF 5 unit types.
const (
	unitTypeCompile      = 0x01
	unitTypeType         = 0x02
	unitTypePartial      = 0x03
	unitTypeSkeleton     = 0x04
	unitTypeSplitCompile = 0x05
	unitTypeSplitType    = 0x06
)

// ParseHeaders walks the unit headers of a .debug_info section.
func ParseHeaders(info []byte, order binary.ByteOrder) ([]Header, error) {
	var headers []Header
	for off := uint64(0); off < uint64(len(info)); {
		h, err := parseHeader(info, off, order)
		if err != nil {
			return headers, err
		}
		headers = append(headers, h)
		off = h.End()
	}
	return headers, nil
}

func parseHeader(info []byte, off uint64, order binary.ByteOrder) (Header, error) {
	r := sectionReader{data: info, pos: off, order: order}
	h := Header{Offset: off}

	length, err := r.u32()
	if err != nil {
		return h, fmt.Errorf("unit at %#x: %w", off, err)
	}
	h.OffsetSize = 4
	initial := uint64(4)
	unitLen := uint64(length)
	switch {
	case length == 0xffffffff:
		if unitLen, err = r.u64(); err != nil {
			return h, fmt.Errorf("unit at %#x: %w", off, err)
		}
		h.OffsetSize = 8
		initial = 12
	case length >= 0xfffffff0:
		return h, fmt.Errorf("unit at %#x: reserved initial length %#x", off, length)
	}
	h.Length = initial + unitLen
	if h.End() > uint64(len(info)) || h.End() < off {
		return h, fmt.Errorf("unit at %#x: length %#x overruns section", off, unitLen)
	}

	version, err := r.u16()
	if err != nil {
		return h, fmt.Errorf("unit at %#x: %w", off, err)
	}
	h.Version = version
	if version < 2 || version > 5 {
		return h, fmt.Errorf("unit at %#x: unsupported DWARF version %d", off, version)
	}

	if version >= 5 {
		if h.UnitType, err = r.u8(); err != nil {
			return h, fmt.Errorf("unit at %#x: %w", off, err)
		}
		addrSize, err := r.u8()
		if err != nil {
			return h, fmt.Errorf("unit at %#x: %w", off, err)
		}
		h.AddrSize = int(addrSize)
		r.pos += uint64(h.OffsetSize) // debug_abbrev_offset
		switch h.UnitType {
		case unitTypeSkeleton, unitTypeSplitCompile:
			r.pos += 8 // dwo_id
		case unitTypeType, unitTypeSplitType:
			r.pos += 8 + uint64(h.OffsetSize) // type_signature, type_offset
		case unitTypeCompile, unitTypePartial:
		default:
			return h, fmt.Errorf("unit at %#x: unknown unit type %#x", off, h.UnitType)
		}
	} else {
		h.UnitType = unitTypeCompile
		r.pos += uint64(h.OffsetSize) // debug_abbrev_offset
		addrSize, err := r.u8()
		if err != nil {
			return h, fmt.Errorf("unit at %#x: %w", off, err)
		}
		h.AddrSize = int(addrSize)
	}

	h.HeaderSize = r.pos - off
	if h.HeaderSize > h.Length {
		return h, fmt.Errorf("unit at %#x: header larger than unit", off)
	}
	return h, nil
}

// sectionReader reads fixed-size integers from a section.
type sectionReader struct {
	data  []byte
	pos   uint64
	order binary.ByteOrder
}

func (r *sectionReader) take(n uint64) ([]byte, error) {
	if r.pos+n > uint64(len(r.data)) || r.pos+n < r.pos {
		return nil, fmt.Errorf("truncated data at %#x", r.pos)
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *sectionReader) u8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *sectionReader) u16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return r.order.Uint16(b), nil
}

func (r *sectionReader) u32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return r.order.Uint32(b), nil
}

func (r *sectionReader) u64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return r.order.Uint64(b), nil
}

// uint reads an unsigned integer of size bytes.
func (r *sectionReader) uint(size int) (uint64, error) {
	switch size {
	case 1:
		v, err := r.u8()
		return uint64(v), err
	case 2:
		v, err := r.u16()
		return uint64(v), err
	case 4:
		v, err := r.u32()
		return uint64(v), err
	case 8:
		return r.u64()
	default:
		return 0, fmt.Errorf("unsupported integer size %d", size)
	}
}
