package die

import (
	"debug/dwarf"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/go-delve/delve/pkg/dwarf/godwarf"
)

// Source provides the debug sections of a binary.
type Source interface {
	// DWARF returns the decoded debug data.
	DWARF() (*dwarf.Data, error)
	// Section returns the raw, decompressed bytes of the named debug
	// section (".debug_info", ".debug_loc", ...) or nil when absent.
	Section(name string) []byte
	// ByteOrder returns the byte order of the binary.
	ByteOrder() binary.ByteOrder
}

// Load reads every unit of src into an arena. Failure to decode the entry
// stream of a compilation unit is fatal. A unit whose line program cannot be
// read is kept and carries the error in LineErr.
func Load(src Source) (*Program, error) {
	data, err := src.DWARF()
	if err != nil {
		return nil, fmt.Errorf("load debug sections: %w", err)
	}
	order := src.ByteOrder()

	headers, err := ParseHeaders(src.Section(".debug_info"), order)
	if err != nil {
		return nil, fmt.Errorf("parse unit headers: %w", err)
	}

	secs := &dwarfSections{
		data:     data,
		order:    order,
		loc:      src.Section(".debug_loc"),
		loclists: src.Section(".debug_loclists"),
		roots:    make(map[uint64][]dwarf.Field, len(headers)),
	}
	if addr := src.Section(".debug_addr"); len(addr) > 0 {
		secs.addr = godwarf.ParseAddr(addr)
	}

	r := data.Reader()
	units := make([]*Unit, 0, len(headers))
	for _, h := range headers {
		u, err := loadUnit(data, r, h, order, secs)
		if err != nil {
			if h.UnitType != unitTypeCompile && h.UnitType != unitTypePartial {
				// Type and skeleton units carry no code; skip what debug/dwarf
				// does not expose.
				continue
			}
			return nil, err
		}
		units = append(units, u)
	}
	return NewProgram(units), nil
}

func loadUnit(data *dwarf.Data, r *dwarf.Reader, h Header, order binary.ByteOrder, secs *dwarfSections) (*Unit, error) {
	first := h.Offset + h.HeaderSize
	r.Seek(dwarf.Offset(first))
	cu, err := r.Next()
	if err != nil {
		return nil, fmt.Errorf("read unit at %#x: %w", h.Offset, err)
	}
	if cu == nil || uint64(cu.Offset) != first {
		return nil, fmt.Errorf("read unit at %#x: no entry at %#x", h.Offset, first)
	}

	conv := converter{header: h}
	root := conv.entry(cu)
	if cu.Children {
		if err := readChildren(r, root, conv); err != nil {
			return nil, fmt.Errorf("read unit at %#x: %w", h.Offset, err)
		}
	}
	secs.roots[h.Offset] = cu.Field

	u := NewUnit(h, order, root, secs)
	u.Lines, u.Files, u.LineErr = readLines(data, cu)
	return u, nil
}

// readChildren reads the subtree below parent. It keeps an explicit stack
// so that deeply nested trees do not grow the goroutine stack.
func readChildren(r *dwarf.Reader, parent *Entry, conv converter) error {
	stack := []*Entry{parent}
	for len(stack) > 0 {
		de, err := r.Next()
		if err != nil {
			return err
		}
		if de == nil {
			return errors.New("unexpected end of entries")
		}
		if de.Tag == 0 {
			stack = stack[:len(stack)-1]
			continue
		}
		e := conv.entry(de)
		top := stack[len(stack)-1]
		top.Children = append(top.Children, e)
		if de.Children {
			stack = append(stack, e)
		}
	}
	return nil
}

// converter maps debug/dwarf entries onto arena entries of one unit.
type converter struct {
	header Header
}

func (c converter) entry(de *dwarf.Entry) *Entry {
	e := &Entry{
		Offset: Offset(uint64(de.Offset) - c.header.Offset),
		Tag:    de.Tag,
		Attrs:  make([]Attribute, 0, len(de.Field)),
	}
	for _, f := range de.Field {
		if v, ok := c.value(f); ok {
			e.Attrs = append(e.Attrs, Attribute{Attr: f.Attr, Val: v})
		}
	}
	return e
}

func (c converter) value(f dwarf.Field) (Value, bool) {
	switch f.Class {
	case dwarf.ClassAddress:
		if a, ok := asUint(f.Val); ok {
			return AddressValue(a), true
		}
	case dwarf.ClassConstant:
		switch v := f.Val.(type) {
		case int64:
			return SignedValue(v), true
		case uint64:
			return UnsignedValue(v), true
		case []byte:
			return BlockValue(v), true
		}
	case dwarf.ClassBlock:
		if b, ok := f.Val.([]byte); ok {
			return BlockValue(b), true
		}
	case dwarf.ClassExprLoc:
		if b, ok := f.Val.([]byte); ok {
			return ExpressionValue(b), true
		}
	case dwarf.ClassFlag:
		if b, ok := f.Val.(bool); ok {
			return FlagValue(b), true
		}
	case dwarf.ClassString:
		if s, ok := f.Val.(string); ok {
			return StringValue(s), true
		}
	case dwarf.ClassReference:
		if off, ok := asUint(f.Val); ok {
			if off >= c.header.Offset && off < c.header.End() {
				return ReferenceValue(Offset(off - c.header.Offset)), true
			}
			return InfoReferenceValue(off), true
		}
	case dwarf.ClassRangeListPtr:
		if off, ok := asUint(f.Val); ok {
			return RangeListValue(off), true
		}
	case dwarf.ClassRngList:
		if idx, ok := asUint(f.Val); ok {
			return Value{Class: ClassRangeListIndex, Uint: idx}, true
		}
	case dwarf.ClassLocListPtr:
		if off, ok := asUint(f.Val); ok {
			return LocationListValue(off), true
		}
	case dwarf.ClassLocList:
		if idx, ok := asUint(f.Val); ok {
			return Value{Class: ClassLocationListIndex, Uint: idx}, true
		}
	case dwarf.ClassLinePtr, dwarf.ClassAddrPtr, dwarf.ClassStrOffsetsPtr,
		dwarf.ClassRngListsPtr, dwarf.ClassMacPtr:
		if off, ok := asUint(f.Val); ok {
			return Value{Class: ClassSectionOffset, Uint: off}, true
		}
	}
	return Value{}, false
}

func asUint(v any) (uint64, bool) {
	switch x := v.(type) {
	case uint64:
		return x, true
	case int64:
		return uint64(x), true
	case dwarf.Offset:
		return uint64(x), true
	}
	return 0, false
}

func readLines(data *dwarf.Data, cu *dwarf.Entry) ([]LineRow, []string, error) {
	lr, err := data.LineReader(cu)
	if err != nil {
		return nil, nil, fmt.Errorf("read line program: %w", err)
	}
	if lr == nil {
		return nil, nil, nil
	}

	var rows []LineRow
	for {
		var le dwarf.LineEntry
		if err := lr.Next(&le); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return rows, fileNames(lr.Files()), fmt.Errorf("read line program: %w", err)
		}
		row := LineRow{Address: le.Address, EndSequence: le.EndSequence}
		if !le.EndSequence {
			if le.File != nil {
				row.File = le.File.Name
			}
			if le.Line > 0 {
				row.Line = uint64(le.Line)
			}
			if le.Column > 0 {
				row.Column = uint64(le.Column)
			}
		}
		rows = append(rows, row)
	}
	return rows, fileNames(lr.Files()), nil
}

func fileNames(files []*dwarf.LineFile) []string {
	names := make([]string, len(files))
	for i, f := range files {
		if f != nil {
			names[i] = f.Name
		}
	}
	return names
}
