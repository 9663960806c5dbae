package resolve

import (
	"debug/dwarf"
	"errors"
	"fmt"

	"github.com/coral-mesh/dwarfdump/internal/die"
	"github.com/coral-mesh/dwarfdump/internal/location"
	"github.com/coral-mesh/dwarfdump/pkg/debuginfo"
)

// attrMIPSLinkageName is the pre-DWARF 4 vendor spelling of DW_AT_linkage_name.
const attrMIPSLinkageName dwarf.Attr = 0x2007

// Name returns DW_AT_name.
func (r *Resolver) Name(u *die.Unit, e *die.Entry) (string, error) {
	return lookup(r, u, e, "Could not find DW_AT_name", stringAttr(dwarf.AttrName))
}

// LinkageName returns DW_AT_linkage_name.
func (r *Resolver) LinkageName(u *die.Unit, e *die.Entry) (string, error) {
	return lookup(r, u, e, "Could not find DW_AT_linkage_name", stringAttr(dwarf.AttrLinkageName, attrMIPSLinkageName))
}

func stringAttr(attrs ...dwarf.Attr) direct[string] {
	return func(_ *die.Unit, e *die.Entry) (string, bool, error) {
		for _, a := range attrs {
			if v, ok := e.Val(a); ok {
				if s, ok := v.AsString(); ok {
					return s, true, nil
				}
			}
		}
		return "", false, nil
	}
}

// DeclRange returns the declaration position of e.
func (r *Resolver) DeclRange(u *die.Unit, e *die.Entry) (debuginfo.SourceRange, error) {
	return lookup(r, u, e, "Could not find decl range",
		sourceRange(dwarf.AttrDeclFile, dwarf.AttrDeclLine, dwarf.AttrDeclColumn, "declaration range"))
}

// CallSiteRange returns the position of the call an inlined entry stands for.
func (r *Resolver) CallSiteRange(u *die.Unit, e *die.Entry) (debuginfo.SourceRange, error) {
	return lookup(r, u, e, "Could not get call site range",
		sourceRange(dwarf.AttrCallFile, dwarf.AttrCallLine, dwarf.AttrCallColumn, "call site range"))
}

// sourceRange needs a resolvable file and a line. The column is optional.
func sourceRange(fileAttr, lineAttr, colAttr dwarf.Attr, what string) direct[debuginfo.SourceRange] {
	return func(u *die.Unit, e *die.Entry) (debuginfo.SourceRange, bool, error) {
		var sr debuginfo.SourceRange
		idx, ok := unsigned(e, fileAttr)
		if !ok {
			return sr, false, nil
		}
		file, ok := u.FileName(idx)
		if !ok {
			return sr, false, nil
		}
		line, ok := unsigned(e, lineAttr)
		if !ok {
			return sr, false, nil
		}
		if line == 0 {
			return sr, false, Errorf(e.Offset, "The line numbers are 1-based, did not expect to find a 0 for a %s", what)
		}
		sr.FilePath = file
		sr.Line = line
		if col, ok := unsigned(e, colAttr); ok {
			sr.Column = &col
		}
		return sr, true, nil
	}
}

// AddressRanges returns the code ranges of e: its range list together with
// its low/high pc pair. Ranges starting or ending at zero are dropped.
func (r *Resolver) AddressRanges(u *die.Unit, e *die.Entry) ([]debuginfo.AddressRange, error) {
	return lookup(r, u, e, "Could not get ranges", addressRanges)
}

func addressRanges(u *die.Unit, e *die.Entry) ([]debuginfo.AddressRange, bool, error) {
	var ranges []debuginfo.AddressRange
	if v, ok := e.Val(dwarf.AttrRanges); ok && (v.Class == die.ClassRangeList || v.Class == die.ClassRangeListIndex) {
		list, err := u.Ranges(e, v)
		if err != nil {
			return nil, false, &EntryError{Msg: fmt.Sprintf("Could not read range list: %v", err), Offset: e.Offset, Err: ErrInvalid}
		}
		for _, rg := range list {
			ranges = append(ranges, debuginfo.AddressRange{Start: rg.Low, End: rg.High})
		}
	}

	if lv, ok := e.Val(dwarf.AttrLowpc); ok {
		if low, ok := lv.AsAddress(); ok {
			if hv, ok := e.Val(dwarf.AttrHighpc); ok {
				switch hv.Class {
				case die.ClassUnsigned:
					ranges = append(ranges, debuginfo.AddressRange{Start: low, End: low + hv.Uint})
				case die.ClassAddress:
					ranges = append(ranges, debuginfo.AddressRange{Start: low, End: hv.Uint})
				}
			}
		}
	}

	kept := ranges[:0]
	for _, rg := range ranges {
		if rg.Start != 0 && rg.End != 0 {
			kept = append(kept, rg)
		}
	}
	if len(kept) == 0 {
		return nil, false, nil
	}
	return kept, true, nil
}

// TypeID returns the type DW_AT_type designates.
func (r *Resolver) TypeID(u *die.Unit, e *die.Entry) (debuginfo.TypeID, error) {
	return lookup(r, u, e, "Could not parse DW_AT_type", r.typeAttr(dwarf.AttrType))
}

// TypeRef returns the type attribute a of e designates, without fallback.
func (r *Resolver) TypeRef(u *die.Unit, e *die.Entry, a dwarf.Attr) (debuginfo.TypeID, bool) {
	id, ok, _ := r.typeAttr(a)(u, e)
	return id, ok
}

func (r *Resolver) typeAttr(a dwarf.Attr) direct[debuginfo.TypeID] {
	return func(u *die.Unit, e *die.Entry) (debuginfo.TypeID, bool, error) {
		v, ok := e.Val(a)
		if !ok {
			return debuginfo.TypeID{}, false, nil
		}
		tu, te, ok := r.Deref(u, v)
		if !ok {
			return debuginfo.TypeID{}, false, nil
		}
		return debuginfo.TypeID{EntryOffset: uint64(te.Offset), UnitOffset: tu.Offset}, true, nil
	}
}

// Location returns the operation lists describing where the value of e
// lives. A location list yields one list per entry. A single expression and
// a constant value are replicated across defaults. An entry with neither
// falls back to its specification and abstract origin; if none of them
// have one either the result is empty, not an error.
func (r *Resolver) Location(u *die.Unit, e *die.Entry, defaults []debuginfo.AddressRange) ([]debuginfo.OperationsList, error) {
	lists, err := lookup(r, u, e, "Could not read location", locationAttr(defaults))
	if errors.Is(err, ErrNotFound) {
		return []debuginfo.OperationsList{}, nil
	}
	return lists, err
}

func locationAttr(defaults []debuginfo.AddressRange) direct[[]debuginfo.OperationsList] {
	return func(u *die.Unit, e *die.Entry) ([]debuginfo.OperationsList, bool, error) {
		var lists []debuginfo.OperationsList
		enc := Encoding(u)

		if v, ok := e.Val(dwarf.AttrLocation); ok {
			switch v.Class {
			case die.ClassLocationList, die.ClassLocationListIndex:
				entries, err := u.LocationList(e, v)
				if err != nil {
					return nil, false, &EntryError{Msg: fmt.Sprintf("Could not read location list: %v", err), Offset: e.Offset, Err: ErrInvalid}
				}
				for _, le := range entries {
					ops, err := location.Decode(le.Expr, enc)
					if err != nil {
						continue
					}
					lists = append(lists, debuginfo.OperationsList{
						Operations: ops,
						Range:      debuginfo.AddressRange{Start: le.Low, End: le.High},
					})
				}
			case die.ClassExpression, die.ClassBlock:
				if ops, err := location.Decode(v.Bytes, enc); err == nil {
					lists = append(lists, replicate(ops, defaults)...)
				}
			}
		}

		if c, ok := unsigned(e, dwarf.AttrConstValue); ok {
			ops := debuginfo.Operations{debuginfo.UnsignedConstant{Value: c}}
			lists = append(lists, replicate(ops, defaults)...)
		}
		return lists, len(lists) > 0, nil
	}
}

func replicate(ops debuginfo.Operations, ranges []debuginfo.AddressRange) []debuginfo.OperationsList {
	lists := make([]debuginfo.OperationsList, 0, len(ranges))
	for _, rg := range ranges {
		lists = append(lists, debuginfo.OperationsList{Operations: ops, Range: rg})
	}
	return lists
}

// Encoding returns the operand encoding of expressions in u.
func Encoding(u *die.Unit) location.Encoding {
	return location.Encoding{Order: u.ByteOrder, AddrSize: u.AddrSize, OffsetSize: u.OffsetSize}
}

// Unsigned returns attribute a of e as an unsigned constant. There is no
// fallback.
func Unsigned(e *die.Entry, a dwarf.Attr) (uint64, error) {
	if v, ok := unsigned(e, a); ok {
		return v, nil
	}
	return 0, &EntryError{Msg: fmt.Sprintf("Could not parse attr %s as u64", a), Offset: e.Offset, Err: ErrNotFound}
}

func unsigned(e *die.Entry, a dwarf.Attr) (uint64, bool) {
	v, ok := e.Val(a)
	if !ok {
		return 0, false
	}
	return v.AsUnsigned()
}

// DataMemberLocation returns the byte offset of a member. Besides a
// constant it accepts the DWARF 2 form, an expression holding a single
// DW_OP_plus_uconst.
func DataMemberLocation(e *die.Entry) (uint64, error) {
	if v, ok := e.Val(dwarf.AttrDataMemberLoc); ok && (v.Class == die.ClassExpression || v.Class == die.ClassBlock) {
		if off, ok := location.PlusUconst(v.Bytes); ok {
			return off, nil
		}
	}
	return Unsigned(e, dwarf.AttrDataMemberLoc)
}
