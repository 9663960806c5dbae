package typegraph

import (
	"debug/dwarf"
	"fmt"
	"strconv"

	"github.com/coral-mesh/dwarfdump/internal/die"
	"github.com/coral-mesh/dwarfdump/internal/resolve"
	"github.com/coral-mesh/dwarfdump/pkg/debuginfo"
)

// DW_ATE_* base type encodings.
const (
	encBoolean      = 0x02
	encFloat        = 0x04
	encSigned       = 0x05
	encSignedChar   = 0x06
	encUnsigned     = 0x07
	encUnsignedChar = 0x08
)

var encodingNames = map[uint64]string{
	0x01:            "DW_ATE_address",
	encBoolean:      "DW_ATE_boolean",
	0x03:            "DW_ATE_complex_float",
	encFloat:        "DW_ATE_float",
	encSigned:       "DW_ATE_signed",
	encSignedChar:   "DW_ATE_signed_char",
	encUnsigned:     "DW_ATE_unsigned",
	encUnsignedChar: "DW_ATE_unsigned_char",
	0x10:            "DW_ATE_UTF",
}

type baseKey struct {
	encoding uint64
	size     uint64
}

var primitives = map[baseKey]debuginfo.Primitive{
	{encSigned, 1}:       debuginfo.I8,
	{encSigned, 2}:       debuginfo.I16,
	{encSigned, 4}:       debuginfo.I32,
	{encSigned, 8}:       debuginfo.I64,
	{encSigned, 16}:      debuginfo.I128,
	{encSignedChar, 1}:   debuginfo.I8,
	{encUnsigned, 1}:     debuginfo.U8,
	{encUnsigned, 2}:     debuginfo.U16,
	{encUnsigned, 4}:     debuginfo.U32,
	{encUnsigned, 8}:     debuginfo.U64,
	{encUnsigned, 16}:    debuginfo.U128,
	{encUnsignedChar, 1}: debuginfo.U8,
	{encFloat, 4}:        debuginfo.F32,
	{encFloat, 8}:        debuginfo.F64,
	{encBoolean, 1}:      debuginfo.Bool,
}

// parser parses one type entry and collects the ids it refers to.
type parser struct {
	r    *resolve.Resolver
	u    *die.Unit
	refs []debuginfo.TypeID
}

func (g *Graph) parse(id debuginfo.TypeID) (debuginfo.Type, []debuginfo.TypeID, error) {
	u, e, ok := g.r.TypeEntry(id)
	if !ok {
		return nil, nil, fmt.Errorf("Type %s does not designate a debugging information entry", id)
	}
	p := &parser{r: g.r, u: u}
	t, err := p.entry(e)
	if err != nil {
		return nil, nil, err
	}
	return t, p.refs, nil
}

func (p *parser) entry(e *die.Entry) (debuginfo.Type, error) {
	switch e.Tag {
	case dwarf.TagBaseType:
		return p.primitive(e)
	case dwarf.TagPointerType, dwarf.TagReferenceType, dwarf.TagRvalueReferenceType:
		return p.reference(e)
	case dwarf.TagArrayType:
		return p.array(e)
	case dwarf.TagStructType:
		return p.structure(e)
	case dwarf.TagEnumerationType:
		return p.enum(e)
	}
	return nil, resolve.Errorf(e.Offset, "Found an unsupported type %v", e.Tag)
}

// typeOf resolves the DW_AT_type of e and remembers it for queueing.
func (p *parser) typeOf(e *die.Entry) (debuginfo.TypeID, error) {
	id, err := p.r.TypeID(p.u, e)
	if err != nil {
		return debuginfo.TypeID{}, err
	}
	p.refs = append(p.refs, id)
	return id, nil
}

func (p *parser) primitive(e *die.Entry) (debuginfo.Type, error) {
	enc, hasEnc := unsignedAttr(e, dwarf.AttrEncoding)
	size, hasSize := unsignedAttr(e, dwarf.AttrByteSize)
	if hasEnc && hasSize {
		if prim, ok := primitives[baseKey{enc, size}]; ok {
			return prim, nil
		}
	}
	return nil, resolve.Errorf(e.Offset, "Encoding %s doesn't match byte size %s",
		describeEncoding(enc, hasEnc), describeSize(size, hasSize))
}

func describeEncoding(enc uint64, ok bool) string {
	if !ok {
		return "<none>"
	}
	if name, known := encodingNames[enc]; known {
		return name
	}
	return fmt.Sprintf("DW_ATE_unknown_0x%02x", enc)
}

func describeSize(size uint64, ok bool) string {
	if !ok {
		return "<none>"
	}
	return fmt.Sprint(size)
}

func (p *parser) reference(e *die.Entry) (debuginfo.Type, error) {
	id, err := p.typeOf(e)
	if err != nil {
		return nil, err
	}
	return debuginfo.Reference{ReferentID: id}, nil
}

// array reads the element count from the first subrange that carries one.
// DW_AT_count is preferred; a zero-based DW_AT_upper_bound is accepted too.
func (p *parser) array(e *die.Entry) (debuginfo.Type, error) {
	elem, err := p.typeOf(e)
	if err != nil {
		return nil, err
	}
	arr := debuginfo.Array{ElementTypeID: elem}
	for _, c := range e.Children {
		if c.Tag != dwarf.TagSubrangeType {
			continue
		}
		if n, ok := unsignedAttr(c, dwarf.AttrCount); ok {
			arr.ElementCount = n
			break
		}
		if ub, ok := unsignedAttr(c, dwarf.AttrUpperBound); ok {
			arr.ElementCount = ub + 1
			break
		}
	}
	return arr, nil
}

func (p *parser) structure(e *die.Entry) (debuginfo.Type, error) {
	name, err := p.r.Name(p.u, e)
	if err != nil {
		return nil, err
	}
	size, err := resolve.Unsigned(e, dwarf.AttrByteSize)
	if err != nil {
		return nil, err
	}

	var fields []debuginfo.StructField
	for _, c := range e.Children {
		switch c.Tag {
		case dwarf.TagVariantPart:
			if len(fields) > 0 {
				return nil, resolve.Errorf(e.Offset, "Struct %q mixes members with a variant part", name)
			}
			return p.variantPart(c, size)
		case dwarf.TagMember:
			f, err := p.member(c)
			if err != nil {
				return nil, err
			}
			fields = append(fields, f)
		}
	}
	return debuginfo.Struct{Name: name, Size: size, Fields: fields, IsTupleStruct: tupleFields(fields)}, nil
}

// tupleFields reports whether fields carry the positional names __0, __1,
// ... that rustc gives tuple struct members.
func tupleFields(fields []debuginfo.StructField) bool {
	if len(fields) == 0 {
		return false
	}
	for i, f := range fields {
		if f.Name != "__"+strconv.Itoa(i) {
			return false
		}
	}
	return true
}

func (p *parser) member(e *die.Entry) (debuginfo.StructField, error) {
	name, err := p.r.Name(p.u, e)
	if err != nil {
		return debuginfo.StructField{}, err
	}
	id, err := p.typeOf(e)
	if err != nil {
		return debuginfo.StructField{}, err
	}
	off, err := resolve.DataMemberLocation(e)
	if err != nil {
		return debuginfo.StructField{}, err
	}
	return debuginfo.StructField{Name: name, FieldTypeID: id, Offset: off}, nil
}

func (p *parser) variantPart(e *die.Entry, size uint64) (debuginfo.Type, error) {
	v, ok := e.Val(dwarf.AttrDiscr)
	if !ok {
		return nil, resolve.Errorf(e.Offset, "Failed to find DW_AT_discr value")
	}
	if v.Class != die.ClassReference {
		return nil, resolve.Errorf(e.Offset, "DW_AT_discr is not a reference into the unit")
	}
	discr, ok := p.u.Entry(die.Offset(v.Uint))
	if !ok {
		return nil, resolve.Errorf(e.Offset, "DW_AT_discr refers to a missing entry at offset %d", v.Uint)
	}
	discrType, err := p.typeOf(discr)
	if err != nil {
		return nil, err
	}
	discrOff, err := resolve.DataMemberLocation(discr)
	if err != nil {
		return nil, err
	}

	part := debuginfo.VariantPart{
		Discriminant: debuginfo.Discriminant{TypeID: discrType, Offset: discrOff},
		Size:         size,
	}
	for _, c := range e.Children {
		if c.Tag != dwarf.TagVariant {
			continue
		}
		variant, err := p.variant(c)
		if err != nil {
			return nil, err
		}
		part.Variants = append(part.Variants, variant)
	}
	if len(part.Variants) == 0 {
		return nil, resolve.Errorf(e.Offset, "Could not parse a variant type")
	}
	return part, nil
}

// variant reads a DW_TAG_variant, which wraps exactly one member.
func (p *parser) variant(e *die.Entry) (debuginfo.Variant, error) {
	value, err := resolve.Unsigned(e, dwarf.AttrDiscrValue)
	if err != nil {
		return debuginfo.Variant{}, err
	}
	var (
		out   debuginfo.Variant
		found bool
	)
	for _, c := range e.Children {
		if c.Tag != dwarf.TagMember {
			continue
		}
		if found {
			return debuginfo.Variant{}, resolve.Errorf(e.Offset, "Variant has more than one member")
		}
		f, err := p.member(c)
		if err != nil {
			return debuginfo.Variant{}, err
		}
		out = debuginfo.Variant{DiscrName: f.Name, DiscrValue: value, TypeID: f.FieldTypeID, Offset: f.Offset}
		found = true
	}
	if !found {
		return debuginfo.Variant{}, resolve.Errorf(e.Offset, "Unable to extract variant type")
	}
	return out, nil
}

func (p *parser) enum(e *die.Entry) (debuginfo.Type, error) {
	name, err := p.r.Name(p.u, e)
	if err != nil {
		return nil, err
	}
	out := debuginfo.Enum{Name: name}
	for _, c := range e.Children {
		if c.Tag != dwarf.TagEnumerator {
			continue
		}
		n, err := p.r.Name(p.u, c)
		if err != nil {
			return nil, err
		}
		out.Variants = append(out.Variants, debuginfo.EnumVariant{Name: n})
	}
	return out, nil
}

func unsignedAttr(e *die.Entry, a dwarf.Attr) (uint64, bool) {
	v, ok := e.Val(a)
	if !ok {
		return 0, false
	}
	return v.AsUnsigned()
}
