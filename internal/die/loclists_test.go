package die

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadLocLists(t *testing.T) {
	var b []byte
	b = append(b, 0xAA) // padding so the list does not start at 0
	b = append(b, lleOffsetPair, 0x10, 0x20, 1, 0x50)
	b = append(b, lleBaseAddress)
	b = binary.LittleEndian.AppendUint64(b, 0x4000)
	b = append(b, lleOffsetPair, 0x00, 0x08, 2, 0x91, 0x70)
	b = append(b, lleStartLength)
	b = binary.LittleEndian.AppendUint64(b, 0x9000)
	b = append(b, 0x10, 1, 0x9c)
	b = append(b, lleStartEnd)
	b = binary.LittleEndian.AppendUint64(b, 0xa000)
	b = binary.LittleEndian.AppendUint64(b, 0xa100)
	b = append(b, 1, 0x30)
	b = append(b, lleDefaultLocation, 1, 0x31)
	b = append(b, lleEndOfList)

	entries, err := readLocLists(b, 1, locListsContext{order: binary.LittleEndian, addrSize: 8, base: 0x1000})
	require.NoError(t, err)
	assert.Equal(t, []LocationEntry{
		{Low: 0x1010, High: 0x1020, Expr: []byte{0x50}},
		{Low: 0x4000, High: 0x4008, Expr: []byte{0x91, 0x70}},
		{Low: 0x9000, High: 0x9010, Expr: []byte{0x9c}},
		{Low: 0xa000, High: 0xa100, Expr: []byte{0x30}},
		{Low: 0, High: math.MaxUint64, Expr: []byte{0x31}},
	}, entries)
}

func TestReadLocLists_Errors(t *testing.T) {
	ctx := locListsContext{order: binary.LittleEndian, addrSize: 8}

	_, err := readLocLists([]byte{lleEndOfList}, 4, ctx)
	assert.Error(t, err, "offset outside the section")

	_, err = readLocLists([]byte{lleOffsetPair, 1, 2, 5, 0x50}, 0, ctx)
	assert.ErrorIs(t, err, errTruncated)

	_, err = readLocLists([]byte{lleStartxEndx, 0, 1, 1, 0x50, lleEndOfList}, 0, ctx)
	assert.ErrorContains(t, err, ".debug_addr")

	_, err = readLocLists([]byte{0x7e}, 0, ctx)
	assert.ErrorContains(t, err, "unknown location list entry kind")
}
