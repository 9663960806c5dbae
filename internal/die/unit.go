package die

import (
	"debug/dwarf"
	"encoding/binary"
	"fmt"
	"sort"
)

// Offset is the offset of an entry relative to the start of its unit header.
type Offset uint64

// Entry is one node of a unit's entry tree.
type Entry struct {
	Offset   Offset
	Tag      dwarf.Tag
	Attrs    []Attribute
	Children []*Entry
}

// Val returns the value of attribute a.
func (e *Entry) Val(a dwarf.Attr) (Value, bool) {
	for _, at := range e.Attrs {
		if at.Attr == a {
			return at.Val, true
		}
	}
	return Value{}, false
}

// Has reports whether the entry carries attribute a.
func (e *Entry) Has(a dwarf.Attr) bool {
	_, ok := e.Val(a)
	return ok
}

// Set adds attribute a or replaces its value.
func (e *Entry) Set(a dwarf.Attr, v Value) {
	for i := range e.Attrs {
		if e.Attrs[i].Attr == a {
			e.Attrs[i].Val = v
			return
		}
	}
	e.Attrs = append(e.Attrs, Attribute{Attr: a, Val: v})
}

// Header describes a unit header in .debug_info.
type Header struct {
	// Offset is the position of the header in .debug_info.
	Offset uint64
	// Length is the size of the unit including its initial length field.
	Length     uint64
	Version    uint16
	UnitType   uint8
	AddrSize   int
	OffsetSize int
	// HeaderSize is the distance from Offset to the unit's first entry.
	HeaderSize uint64
}

// End returns the offset just past the unit.
func (h Header) End() uint64 {
	return h.Offset + h.Length
}

// Range is a half-open address interval.
type Range struct {
	Low, High uint64
}

// LocationEntry is one entry of a location list: the expression Expr
// describes the location for addresses in [Low, High).
type LocationEntry struct {
	Low, High uint64
	Expr      []byte
}

// LineRow is one row of a unit's line table.
type LineRow struct {
	Address     uint64
	File        string
	Line        uint64
	Column      uint64
	EndSequence bool
}

// Sections resolves attribute values that point outside .debug_info.
type Sections interface {
	Ranges(u *Unit, e *Entry, v Value) ([]Range, error)
	LocationList(u *Unit, e *Entry, v Value) ([]LocationEntry, error)
}

// Unit is a compilation unit: its entry tree, line table and file table.
type Unit struct {
	Header
	ByteOrder binary.ByteOrder
	Root      *Entry
	Lines     []LineRow
	// Files is the line program's file table. For DWARF 4 and earlier index
	// 0 means "no file" and is left empty.
	Files []string
	// LineErr records why the line program could not be read, if it could not.
	LineErr error

	entries  map[Offset]*Entry
	sections Sections
}

// NewUnit indexes the entry tree under root. sections may be nil, in which
// case range and location lists cannot be resolved.
func NewUnit(h Header, order binary.ByteOrder, root *Entry, sections Sections) *Unit {
	u := &Unit{
		Header:    h,
		ByteOrder: order,
		Root:      root,
		entries:   make(map[Offset]*Entry),
		sections:  sections,
	}
	if root == nil {
		return u
	}
	stack := []*Entry{root}
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		u.entries[e.Offset] = e
		stack = append(stack, e.Children...)
	}
	return u
}

// Entry returns the entry at the unit-relative offset off.
func (u *Unit) Entry(off Offset) (*Entry, bool) {
	e, ok := u.entries[off]
	return e, ok
}

// Len returns the number of entries in the unit.
func (u *Unit) Len() int {
	return len(u.entries)
}

// Contains reports whether the .debug_info offset off lies inside the unit.
func (u *Unit) Contains(off uint64) bool {
	return off >= u.Offset && off < u.End()
}

// InfoOffset converts a unit-relative offset to a .debug_info offset.
func (u *Unit) InfoOffset(off Offset) uint64 {
	return u.Offset + uint64(off)
}

// FileName returns the path of file index idx from the file table.
func (u *Unit) FileName(idx uint64) (string, bool) {
	if idx == 0 && u.Version <= 4 {
		return "", false
	}
	if idx >= uint64(len(u.Files)) || u.Files[idx] == "" {
		return "", false
	}
	return u.Files[idx], true
}

// Ranges resolves a range-list attribute value of e.
func (u *Unit) Ranges(e *Entry, v Value) ([]Range, error) {
	if u.sections == nil {
		return nil, fmt.Errorf("no range-list section for unit at %#x", u.Offset)
	}
	return u.sections.Ranges(u, e, v)
}

// LocationList resolves a location-list attribute value of e.
func (u *Unit) LocationList(e *Entry, v Value) ([]LocationEntry, error) {
	if u.sections == nil {
		return nil, fmt.Errorf("no location-list section for unit at %#x", u.Offset)
	}
	return u.sections.LocationList(u, e, v)
}

// Program is the set of units of one binary, ordered by offset.
type Program struct {
	units    []*Unit
	byOffset map[uint64]*Unit
}

// NewProgram returns a program over units.
func NewProgram(units []*Unit) *Program {
	sorted := make([]*Unit, len(units))
	copy(sorted, units)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Offset < sorted[j].Offset })

	p := &Program{units: sorted, byOffset: make(map[uint64]*Unit, len(sorted))}
	for _, u := range sorted {
		p.byOffset[u.Offset] = u
	}
	return p
}

// Units returns the units in offset order.
func (p *Program) Units() []*Unit {
	return p.units
}

// Unit returns the unit whose header starts at offset.
func (p *Program) Unit(offset uint64) (*Unit, bool) {
	u, ok := p.byOffset[offset]
	return u, ok
}

// UnitContaining returns the unit spanning the .debug_info offset off.
func (p *Program) UnitContaining(off uint64) (*Unit, bool) {
	i := sort.Search(len(p.units), func(i int) bool { return p.units[i].End() > off })
	if i < len(p.units) && p.units[i].Contains(off) {
		return p.units[i], true
	}
	return nil, false
}
