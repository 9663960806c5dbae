package die

import (
	"debug/dwarf"
	"fmt"
)

// Class is the kind of an attribute value.
type Class uint8

const (
	ClassUnknown Class = iota
	// ClassAddress is a target address.
	ClassAddress
	// ClassUnsigned is a non-negative constant.
	ClassUnsigned
	// ClassSigned is a constant whose bit pattern is negative as an int64.
	// Uint holds the same 64 bits.
	ClassSigned
	// ClassString is a string, inline or from a string section.
	ClassString
	// ClassFlag is a boolean flag.
	ClassFlag
	// ClassBlock is an uninterpreted byte block.
	ClassBlock
	// ClassReference is an entry offset within the same unit.
	ClassReference
	// ClassInfoReference is an entry offset in .debug_info, possibly in another unit.
	ClassInfoReference
	// ClassRangeList is an offset into the range-list section.
	ClassRangeList
	// ClassRangeListIndex is an index into the unit's range-list offset table.
	ClassRangeListIndex
	// ClassLocationList is an offset into the location-list section.
	ClassLocationList
	// ClassLocationListIndex is an index into the unit's location-list offset table.
	ClassLocationListIndex
	// ClassExpression is a location expression.
	ClassExpression
	// ClassSectionOffset is an offset into some other section, such as the
	// line program or the address table.
	ClassSectionOffset
)

var classNames = [...]string{
	ClassUnknown:           "unknown",
	ClassAddress:           "address",
	ClassUnsigned:          "unsigned",
	ClassSigned:            "signed",
	ClassString:            "string",
	ClassFlag:              "flag",
	ClassBlock:             "block",
	ClassReference:         "reference",
	ClassInfoReference:     "info-reference",
	ClassRangeList:         "rangelist",
	ClassRangeListIndex:    "rangelist-index",
	ClassLocationList:      "loclist",
	ClassLocationListIndex: "loclist-index",
	ClassExpression:        "exprloc",
	ClassSectionOffset:     "section-offset",
}

func (c Class) String() string {
	if int(c) < len(classNames) {
		return classNames[c]
	}
	return fmt.Sprintf("Class(%d)", uint8(c))
}

// Value is an attribute value. Which field is meaningful depends on Class:
// Uint for addresses, constants, offsets and indexes; Int for signed
// constants; Str for strings; Bytes for blocks and expressions; Flag
// for flags.
type Value struct {
	Class Class
	Uint  uint64
	Int   int64
	Str   string
	Bytes []byte
	Flag  bool
}

func AddressValue(addr uint64) Value      { return Value{Class: ClassAddress, Uint: addr} }
func UnsignedValue(v uint64) Value        { return Value{Class: ClassUnsigned, Uint: v} }
func StringValue(s string) Value          { return Value{Class: ClassString, Str: s} }
func FlagValue(f bool) Value              { return Value{Class: ClassFlag, Flag: f} }
func BlockValue(b []byte) Value           { return Value{Class: ClassBlock, Bytes: b} }
func ExpressionValue(b []byte) Value      { return Value{Class: ClassExpression, Bytes: b} }
func ReferenceValue(off Offset) Value     { return Value{Class: ClassReference, Uint: uint64(off)} }
func InfoReferenceValue(off uint64) Value { return Value{Class: ClassInfoReference, Uint: off} }
func RangeListValue(off uint64) Value     { return Value{Class: ClassRangeList, Uint: off} }
func LocationListValue(off uint64) Value  { return Value{Class: ClassLocationList, Uint: off} }

// SignedValue returns a constant value. Non-negative constants are
// classified as unsigned; negative ones keep their bit pattern in Uint so
// that data8 constants above math.MaxInt64 survive.
func SignedValue(v int64) Value {
	if v >= 0 {
		return UnsignedValue(uint64(v))
	}
	return Value{Class: ClassSigned, Int: v, Uint: uint64(v)}
}

// AsUnsigned returns the value as an unsigned constant. Signed constants
// are returned as their 64-bit pattern.
func (v Value) AsUnsigned() (uint64, bool) {
	switch v.Class {
	case ClassUnsigned, ClassSigned:
		return v.Uint, true
	}
	return 0, false
}

// AsSigned returns the value as a signed constant.
func (v Value) AsSigned() (int64, bool) {
	switch v.Class {
	case ClassSigned:
		return v.Int, true
	case ClassUnsigned:
		return int64(v.Uint), true
	}
	return 0, false
}

// AsAddress returns the value as a target address.
func (v Value) AsAddress() (uint64, bool) {
	if v.Class == ClassAddress {
		return v.Uint, true
	}
	return 0, false
}

// AsString returns the value as a string.
func (v Value) AsString() (string, bool) {
	if v.Class == ClassString {
		return v.Str, true
	}
	return "", false
}

func (v Value) String() string {
	switch v.Class {
	case ClassSigned:
		return fmt.Sprintf("%s(%d)", v.Class, v.Int)
	case ClassString:
		return fmt.Sprintf("%s(%q)", v.Class, v.Str)
	case ClassFlag:
		return fmt.Sprintf("%s(%t)", v.Class, v.Flag)
	case ClassBlock, ClassExpression:
		return fmt.Sprintf("%s(% x)", v.Class, v.Bytes)
	default:
		return fmt.Sprintf("%s(%#x)", v.Class, v.Uint)
	}
}

// Attribute is a named attribute of an entry.
type Attribute struct {
	Attr dwarf.Attr
	Val  Value
}

// Attr is shorthand for building an Attribute.
func Attr(a dwarf.Attr, v Value) Attribute {
	return Attribute{Attr: a, Val: v}
}
