// Package dietest builds debug-entry arenas in memory for tests.
package dietest

import (
	"debug/dwarf"
	"encoding/binary"
	"fmt"

	"github.com/coral-mesh/dwarfdump/internal/die"
)

// entryStride is the distance between offsets handed out to consecutive entries.
const entryStride = 8

// UnitBuilder assembles one unit. Entries receive increasing offsets in
// creation order; references between entries are set with Entry.Set once
// both ends exist.
type UnitBuilder struct {
	header    die.Header
	next      die.Offset
	root      *die.Entry
	sections  *Sections
	lines     []die.LineRow
	files     []string
	lineErr   error
	byteOrder binary.ByteOrder
}

// NewUnit starts a DWARF 4 unit whose header sits at offset in .debug_info.
func NewUnit(offset uint64) *UnitBuilder {
	return &UnitBuilder{
		header: die.Header{
			Offset:     offset,
			Version:    4,
			UnitType:   0x01,
			AddrSize:   8,
			OffsetSize: 4,
			HeaderSize: 11,
		},
		next:      11,
		sections:  &Sections{ranges: map[uint64][]die.Range{}, locs: map[uint64][]die.LocationEntry{}},
		byteOrder: binary.LittleEndian,
	}
}

// Version sets the DWARF version of the unit.
func (b *UnitBuilder) Version(v uint16) *UnitBuilder {
	b.header.Version = v
	return b
}

// Root creates the unit's root entry.
func (b *UnitBuilder) Root(tag dwarf.Tag, attrs ...die.Attribute) *die.Entry {
	b.root = b.newEntry(tag, attrs)
	return b.root
}

// Add creates an entry below parent.
func (b *UnitBuilder) Add(parent *die.Entry, tag dwarf.Tag, attrs ...die.Attribute) *die.Entry {
	e := b.newEntry(tag, attrs)
	parent.Children = append(parent.Children, e)
	return e
}

func (b *UnitBuilder) newEntry(tag dwarf.Tag, attrs []die.Attribute) *die.Entry {
	e := &die.Entry{Offset: b.next, Tag: tag, Attrs: append([]die.Attribute(nil), attrs...)}
	b.next += entryStride
	return e
}

// RangeList registers a range list at off.
func (b *UnitBuilder) RangeList(off uint64, ranges ...die.Range) *UnitBuilder {
	b.sections.ranges[off] = ranges
	return b
}

// LocationList registers a location list at off.
func (b *UnitBuilder) LocationList(off uint64, entries ...die.LocationEntry) *UnitBuilder {
	b.sections.locs[off] = entries
	return b
}

// Files sets the file table.
func (b *UnitBuilder) Files(names ...string) *UnitBuilder {
	b.files = names
	return b
}

// Lines sets the line table.
func (b *UnitBuilder) Lines(rows ...die.LineRow) *UnitBuilder {
	b.lines = rows
	return b
}

// LineError marks the line program as unreadable.
func (b *UnitBuilder) LineError(err error) *UnitBuilder {
	b.lineErr = err
	return b
}

// Build returns the unit. Its length spans every entry handed out.
func (b *UnitBuilder) Build() *die.Unit {
	h := b.header
	h.Length = uint64(b.next)
	u := die.NewUnit(h, b.byteOrder, b.root, b.sections)
	u.Lines = b.lines
	u.Files = b.files
	u.LineErr = b.lineErr
	return u
}

// Program builds a program from units.
func Program(units ...*die.Unit) *die.Program {
	return die.NewProgram(units)
}

// Sections serves range and location lists registered on a UnitBuilder.
type Sections struct {
	ranges map[uint64][]die.Range
	locs   map[uint64][]die.LocationEntry
}

func (s *Sections) Ranges(_ *die.Unit, _ *die.Entry, v die.Value) ([]die.Range, error) {
	if v.Class != die.ClassRangeList {
		return nil, fmt.Errorf("value %s is not a range list", v)
	}
	r, ok := s.ranges[v.Uint]
	if !ok {
		return nil, fmt.Errorf("no range list at %#x", v.Uint)
	}
	return r, nil
}

func (s *Sections) LocationList(_ *die.Unit, _ *die.Entry, v die.Value) ([]die.LocationEntry, error) {
	if v.Class != die.ClassLocationList {
		return nil, fmt.Errorf("value %s is not a location list", v)
	}
	l, ok := s.locs[v.Uint]
	if !ok {
		return nil, fmt.Errorf("no location list at %#x", v.Uint)
	}
	return l, nil
}
