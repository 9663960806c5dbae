package die

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/go-delve/delve/pkg/dwarf/godwarf"
	"github.com/go-delve/delve/pkg/dwarf/leb128"
)

// DWARF 5 location list entry kinds.
const (
	lleEndOfList       = 0x00
	lleBaseAddressx    = 0x01
	lleStartxEndx      = 0x02
	lleStartxLength    = 0x03
	lleOffsetPair      = 0x04
	lleDefaultLocation = 0x05
	lleBaseAddress     = 0x06
	lleStartEnd        = 0x07
	lleStartLength     = 0x08
	lleGNUViewPair     = 0x09
)

type locListsContext struct {
	order    binary.ByteOrder
	addrSize int
	base     uint64
	addrs    *godwarf.DebugAddr
}

var errTruncated = errors.New("truncated location list")

// readLocLists decodes the .debug_loclists list starting at off. Addresses
// are made absolute. A default location applies to the whole address space.
func readLocLists(data []byte, off uint64, ctx locListsContext) (entries []LocationEntry, err error) {
	if off >= uint64(len(data)) {
		return nil, fmt.Errorf("location list offset %#x outside .debug_loclists (%d bytes)", off, len(data))
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed location list at %#x: %v", off, r)
		}
	}()

	buf := bytes.NewBuffer(data[off:])
	base := ctx.base
	for {
		kind, err := buf.ReadByte()
		if err != nil {
			return entries, errTruncated
		}

		var low, high uint64
		switch kind {
		case lleEndOfList:
			return entries, nil
		case lleBaseAddressx:
			if base, err = ctx.indexed(buf); err != nil {
				return entries, err
			}
			continue
		case lleBaseAddress:
			if base, err = ctx.address(buf); err != nil {
				return entries, err
			}
			continue
		case lleGNUViewPair:
			uleb(buf)
			uleb(buf)
			continue
		case lleStartxEndx:
			if low, err = ctx.indexed(buf); err != nil {
				return entries, err
			}
			if high, err = ctx.indexed(buf); err != nil {
				return entries, err
			}
		case lleStartxLength:
			if low, err = ctx.indexed(buf); err != nil {
				return entries, err
			}
			high = low + uleb(buf)
		case lleOffsetPair:
			low = base + uleb(buf)
			high = base + uleb(buf)
		case lleDefaultLocation:
			low, high = 0, math.MaxUint64
		case lleStartEnd:
			if low, err = ctx.address(buf); err != nil {
				return entries, err
			}
			if high, err = ctx.address(buf); err != nil {
				return entries, err
			}
		case lleStartLength:
			if low, err = ctx.address(buf); err != nil {
				return entries, err
			}
			high = low + uleb(buf)
		default:
			return entries, fmt.Errorf("unknown location list entry kind %#x", kind)
		}

		n := uleb(buf)
		if uint64(buf.Len()) < n {
			return entries, errTruncated
		}
		expr := make([]byte, n)
		copy(expr, buf.Next(int(n)))
		entries = append(entries, LocationEntry{Low: low, High: high, Expr: expr})
	}
}

func (c locListsContext) address(buf *bytes.Buffer) (uint64, error) {
	if buf.Len() < c.addrSize {
		return 0, errTruncated
	}
	b := buf.Next(c.addrSize)
	switch c.addrSize {
	case 4:
		return uint64(c.order.Uint32(b)), nil
	case 8:
		return c.order.Uint64(b), nil
	default:
		return 0, fmt.Errorf("unsupported address size %d", c.addrSize)
	}
}

func (c locListsContext) indexed(buf *bytes.Buffer) (uint64, error) {
	idx := uleb(buf)
	if c.addrs == nil {
		return 0, errors.New("indexed address without .debug_addr")
	}
	return c.addrs.Get(idx)
}

func uleb(buf *bytes.Buffer) uint64 {
	v, _ := leb128.DecodeUnsigned(buf)
	return v
}
