package die

import (
	"debug/dwarf"
	"encoding/binary"
	"fmt"

	"github.com/go-delve/delve/pkg/dwarf/godwarf"
	"github.com/go-delve/delve/pkg/dwarf/loclist"
)

// dwarfSections resolves range and location lists against the sections of
// a loaded binary.
type dwarfSections struct {
	data     *dwarf.Data
	order    binary.ByteOrder
	loc      []byte
	loclists []byte
	addr     *godwarf.DebugAddrSection
	// roots holds the attributes of each unit's root entry keyed by unit offset.
	roots map[uint64][]dwarf.Field
}

func (s *dwarfSections) Ranges(u *Unit, e *Entry, v Value) ([]Range, error) {
	field := dwarf.Field{Attr: dwarf.AttrRanges}
	switch v.Class {
	case ClassRangeList:
		field.Class = dwarf.ClassRangeListPtr
		field.Val = int64(v.Uint)
	case ClassRangeListIndex:
		field.Class = dwarf.ClassRngList
		field.Val = v.Uint
	default:
		return nil, fmt.Errorf("value %s is not a range list", v)
	}

	// Only the ranges attribute is handed over so that a low/high pair is
	// not reported twice. The root keeps its other attributes because they
	// provide the base address and the range-list base.
	de := &dwarf.Entry{
		Offset: dwarf.Offset(u.InfoOffset(e.Offset)),
		Tag:    e.Tag,
		Field:  []dwarf.Field{field},
	}
	if e == u.Root {
		for _, f := range s.roots[u.Offset] {
			if f.Attr != dwarf.AttrRanges && f.Attr != dwarf.AttrHighpc {
				de.Field = append(de.Field, f)
			}
		}
	}

	pairs, err := s.data.Ranges(de)
	if err != nil {
		return nil, err
	}
	out := make([]Range, len(pairs))
	for i, p := range pairs {
		out[i] = Range{Low: p[0], High: p[1]}
	}
	return out, nil
}

func (s *dwarfSections) LocationList(u *Unit, e *Entry, v Value) ([]LocationEntry, error) {
	switch v.Class {
	case ClassLocationList:
		if u.Version >= 5 {
			return s.readLocLists(u, v.Uint)
		}
		return s.readDebugLoc(u, v.Uint)
	case ClassLocationListIndex:
		off, err := s.locListIndexOffset(u, v.Uint)
		if err != nil {
			return nil, err
		}
		return s.readLocLists(u, off)
	default:
		return nil, fmt.Errorf("value %s is not a location list", v)
	}
}

// readDebugLoc reads a DWARF 2-4 location list from .debug_loc.
func (s *dwarfSections) readDebugLoc(u *Unit, off uint64) (entries []LocationEntry, err error) {
	if off >= uint64(len(s.loc)) {
		return nil, fmt.Errorf("location list offset %#x outside .debug_loc (%d bytes)", off, len(s.loc))
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed location list at %#x: %v", off, r)
		}
	}()

	base := baseAddress(u)
	rdr := loclist.NewDwarf2Reader(s.loc, u.AddrSize)
	rdr.Seek(int(off))
	var le loclist.Entry
	for rdr.Next(&le) {
		if le.BaseAddressSelection() {
			base = le.HighPC
			continue
		}
		entries = append(entries, LocationEntry{Low: base + le.LowPC, High: base + le.HighPC, Expr: le.Instr})
	}
	return entries, nil
}

// locListIndexOffset maps a DW_FORM_loclistx index to a .debug_loclists
// offset through the unit's offset table.
func (s *dwarfSections) locListIndexOffset(u *Unit, idx uint64) (uint64, error) {
	baseVal, ok := u.Root.Val(dwarf.AttrLoclistsBase)
	if !ok {
		return 0, fmt.Errorf("location list index %d without DW_AT_loclists_base", idx)
	}
	base := baseVal.Uint
	r := sectionReader{data: s.loclists, pos: base + idx*uint64(u.OffsetSize), order: s.order}
	rel, err := r.uint(u.OffsetSize)
	if err != nil {
		return 0, fmt.Errorf("location list index %d: %w", idx, err)
	}
	return base + rel, nil
}

func (s *dwarfSections) readLocLists(u *Unit, off uint64) ([]LocationEntry, error) {
	var addrs *godwarf.DebugAddr
	if s.addr != nil {
		var addrBase uint64
		if v, ok := u.Root.Val(dwarf.AttrAddrBase); ok {
			addrBase = v.Uint
		}
		addrs = s.addr.GetSubsection(addrBase)
	}
	return readLocLists(s.loclists, off, locListsContext{
		order:    s.order,
		addrSize: u.AddrSize,
		base:     baseAddress(u),
		addrs:    addrs,
	})
}

// baseAddress is the unit's base address for location lists.
func baseAddress(u *Unit) uint64 {
	if u.Root == nil {
		return 0
	}
	if v, ok := u.Root.Val(dwarf.AttrLowpc); ok {
		if a, ok := v.AsAddress(); ok {
			return a
		}
	}
	return 0
}
