package die

import (
	"debug/dwarf"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appendAddr(b []byte, size int, v uint64) []byte {
	if size == 4 {
		return binary.LittleEndian.AppendUint32(b, uint32(v))
	}
	return binary.LittleEndian.AppendUint64(b, v)
}

func appendLoc(b []byte, size int, low, high uint64, expr ...byte) []byte {
	b = appendAddr(b, size, low)
	b = appendAddr(b, size, high)
	b = binary.LittleEndian.AppendUint16(b, uint16(len(expr)))
	return append(b, expr...)
}

func locUnit(addrSize int, lowPC uint64, secs *dwarfSections) *Unit {
	root := &Entry{Offset: 11, Tag: dwarf.TagCompileUnit, Attrs: []Attribute{Attr(dwarf.AttrLowpc, AddressValue(lowPC))}}
	return NewUnit(Header{Version: 4, AddrSize: addrSize, OffsetSize: 4}, binary.LittleEndian, root, secs)
}

func TestReadDebugLoc(t *testing.T) {
	tests := []struct {
		name     string
		addrSize int
		build    func(size int) []byte
		off      uint64
		want     []LocationEntry
	}{
		{
			name:     "base selection between two ranges",
			addrSize: 8,
			build: func(size int) []byte {
				b := []byte{0xAA, 0xBB}
				b = appendLoc(b, size, 0x10, 0x20, 0x50)
				b = appendAddr(b, size, ^uint64(0))
				b = appendAddr(b, size, 0x4000)
				b = appendLoc(b, size, 0x00, 0x08, 0x91, 0x70)
				b = appendAddr(b, size, 0)
				return appendAddr(b, size, 0)
			},
			off: 2,
			want: []LocationEntry{
				{Low: 0x1010, High: 0x1020, Expr: []byte{0x50}},
				{Low: 0x4000, High: 0x4008, Expr: []byte{0x91, 0x70}},
			},
		},
		{
			name:     "four byte addresses",
			addrSize: 4,
			build: func(size int) []byte {
				b := appendAddr(nil, size, 0xffffffff)
				b = appendAddr(b, size, 0x2000)
				b = appendLoc(b, size, 0x4, 0xc, 0x9c)
				b = appendAddr(b, size, 0)
				return appendAddr(b, size, 0)
			},
			want: []LocationEntry{{Low: 0x2004, High: 0x200c, Expr: []byte{0x9c}}},
		},
		{
			name:     "empty list",
			addrSize: 8,
			build: func(size int) []byte {
				return appendAddr(appendAddr(nil, size, 0), size, 0)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			secs := &dwarfSections{loc: tt.build(tt.addrSize), order: binary.LittleEndian}
			u := locUnit(tt.addrSize, 0x1000, secs)

			got, err := u.LocationList(u.Root, LocationListValue(tt.off))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadDebugLoc_Malformed(t *testing.T) {
	truncated := appendAddr(appendAddr(nil, 8, 0x10), 8, 0x20)
	truncated = append(truncated, 0x05, 0x00, 0x50)
	secs := &dwarfSections{loc: truncated, order: binary.LittleEndian}
	u := locUnit(8, 0, secs)

	_, err := u.LocationList(u.Root, LocationListValue(0))
	assert.ErrorContains(t, err, "malformed location list")

	_, err = u.LocationList(u.Root, LocationListValue(uint64(len(truncated))))
	assert.ErrorContains(t, err, "outside .debug_loc")
}

// rangesFixture assembles a DWARF 4 unit whose root carries DW_AT_low_pc
// 0x1000 and whose only child is a lexical block with DW_AT_ranges 0.
func rangesFixture(t *testing.T) (*dwarf.Data, []dwarf.Field) {
	t.Helper()
	abbrev := []byte{
		1, 0x11, 1, 0x11, 0x01, 0, 0, // compile_unit, children, low_pc/addr
		2, 0x0b, 0, 0x55, 0x17, 0, 0, // lexical_block, ranges/sec_offset
		0,
	}
	body := []byte{1}
	body = binary.LittleEndian.AppendUint64(body, 0x1000)
	body = append(body, 2)
	body = binary.LittleEndian.AppendUint32(body, 0)
	body = append(body, 0)

	info := binary.LittleEndian.AppendUint32(nil, uint32(2+4+1+len(body)))
	info = binary.LittleEndian.AppendUint16(info, 4)
	info = binary.LittleEndian.AppendUint32(info, 0)
	info = append(info, 8)
	info = append(info, body...)

	var ranges []byte
	for _, v := range []uint64{0x10, 0x20, 0x30, 0x40, 0, 0} {
		ranges = binary.LittleEndian.AppendUint64(ranges, v)
	}

	data, err := dwarf.New(abbrev, nil, nil, info, nil, nil, ranges, nil)
	require.NoError(t, err)
	return data, []dwarf.Field{{Attr: dwarf.AttrLowpc, Val: uint64(0x1000), Class: dwarf.ClassAddress}}
}

func TestRanges_NestedEntry(t *testing.T) {
	data, rootFields := rangesFixture(t)
	secs := &dwarfSections{data: data, order: binary.LittleEndian, roots: map[uint64][]dwarf.Field{0: rootFields}}

	block := &Entry{Offset: 20, Tag: dwarf.TagLexDwarfBlock, Attrs: []Attribute{Attr(dwarf.AttrRanges, RangeListValue(0))}}
	root := &Entry{Offset: 11, Tag: dwarf.TagCompileUnit, Children: []*Entry{block},
		Attrs: []Attribute{Attr(dwarf.AttrLowpc, AddressValue(0x1000))}}
	u := NewUnit(Header{Length: 26, Version: 4, AddrSize: 8, OffsetSize: 4, HeaderSize: 11}, binary.LittleEndian, root, secs)

	got, err := u.Ranges(block, RangeListValue(0))
	require.NoError(t, err)
	assert.Equal(t, []Range{{Low: 0x1010, High: 0x1020}, {Low: 0x1030, High: 0x1040}}, got)

	_, err = u.Ranges(block, UnsignedValue(0))
	assert.ErrorContains(t, err, "not a range list")
}
