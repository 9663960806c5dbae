package debuginfo

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// TypeID identifies a type entry by its offset inside its unit and the
// offset of that unit's header in the debug-info section. The pair is
// structural: two runs over the same binary produce the same ids.
type TypeID struct {
	EntryOffset uint64
	UnitOffset  uint64
}

// String returns the "{entry}_{unit}" form used as the JSON key.
func (id TypeID) String() string {
	return strconv.FormatUint(id.EntryOffset, 10) + "_" + strconv.FormatUint(id.UnitOffset, 10)
}

// ParseTypeID parses the "{entry}_{unit}" form.
func ParseTypeID(s string) (TypeID, error) {
	entry, unit, ok := strings.Cut(s, "_")
	if !ok {
		return TypeID{}, fmt.Errorf("invalid type id %q: missing separator", s)
	}
	e, err := strconv.ParseUint(entry, 10, 64)
	if err != nil {
		return TypeID{}, fmt.Errorf("invalid type id %q: %w", s, err)
	}
	u, err := strconv.ParseUint(unit, 10, 64)
	if err != nil {
		return TypeID{}, fmt.Errorf("invalid type id %q: %w", s, err)
	}
	return TypeID{EntryOffset: e, UnitOffset: u}, nil
}

func (id TypeID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *TypeID) UnmarshalText(text []byte) error {
	parsed, err := ParseTypeID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Type is a reconstructed source-language type.
type Type interface {
	// Kind returns the variant name used as the JSON "type" tag.
	Kind() string
	isType()
}

// Primitive is a scalar type identified only by its kind.
type Primitive string

const (
	I8   Primitive = "I8"
	I16  Primitive = "I16"
	I32  Primitive = "I32"
	I64  Primitive = "I64"
	I128 Primitive = "I128"
	U8   Primitive = "U8"
	U16  Primitive = "U16"
	U32  Primitive = "U32"
	U64  Primitive = "U64"
	U128 Primitive = "U128"
	F32  Primitive = "F32"
	F64  Primitive = "F64"
	Bool Primitive = "Bool"
)

var primitives = map[string]Primitive{}

func init() {
	for _, p := range []Primitive{I8, I16, I32, I64, I128, U8, U16, U32, U64, U128, F32, F64, Bool} {
		primitives[string(p)] = p
	}
}

// Reference points at another type.
type Reference struct {
	ReferentID TypeID `json:"referent_id"`
}

// Array is a fixed-size sequence of elements.
type Array struct {
	ElementTypeID TypeID `json:"element_type_id"`
	ElementCount  uint64 `json:"element_count"`
}

// StructField is one member of a Struct.
type StructField struct {
	Name        string `json:"name"`
	FieldTypeID TypeID `json:"field_type_id"`
	Offset      uint64 `json:"offset"`
}

// Struct is a product type with ordered fields.
type Struct struct {
	Name          string        `json:"name"`
	Size          uint64        `json:"size"`
	Fields        []StructField `json:"fields"`
	IsTupleStruct bool          `json:"is_tuple_struct"`
}

// UnitVariant is the payload kind of an enumerator without data.
type UnitVariant struct{}

func (UnitVariant) MarshalJSON() ([]byte, error) {
	return marshalTagged("Unit", struct{}{})
}

func (*UnitVariant) UnmarshalJSON(data []byte) error {
	tag, err := readTag(data)
	if err != nil {
		return err
	}
	if tag != "Unit" {
		return fmt.Errorf("unsupported enum variant type %q", tag)
	}
	return nil
}

// EnumVariant is one enumerator of an Enum.
type EnumVariant struct {
	Name        string      `json:"name"`
	VariantType UnitVariant `json:"variant_type"`
}

// Enum is a C-like enumeration whose variants carry no payload.
type Enum struct {
	Name     string        `json:"name"`
	Variants []EnumVariant `json:"variants"`
}

// Discriminant locates the tag field of a VariantPart.
type Discriminant struct {
	TypeID TypeID `json:"rust_type_id"`
	Offset uint64 `json:"offset"`
}

// Variant is one alternative of a VariantPart, selected when the
// discriminant equals DiscrValue.
type Variant struct {
	DiscrName  string `json:"discr_name"`
	DiscrValue uint64 `json:"discr_value"`
	TypeID     TypeID `json:"rust_type_id"`
	Offset     uint64 `json:"offset"`
}

// VariantPart is a sum type encoded as a discriminant plus variants sharing storage.
type VariantPart struct {
	Discriminant Discriminant `json:"discriminant"`
	Variants     []Variant    `json:"variants"`
	Size         uint64       `json:"size"`
}

func (p Primitive) Kind() string { return string(p) }
func (Reference) Kind() string   { return "Reference" }
func (Array) Kind() string       { return "Array" }
func (Struct) Kind() string      { return "Struct" }
func (Enum) Kind() string        { return "Enum" }
func (VariantPart) Kind() string { return "VariantPart" }

func (Primitive) isType()   {}
func (Reference) isType()   {}
func (Array) isType()       {}
func (Struct) isType()      {}
func (Enum) isType()        {}
func (VariantPart) isType() {}

func (p Primitive) MarshalJSON() ([]byte, error) {
	return marshalTagged(p.Kind(), struct{}{})
}

func (t Reference) MarshalJSON() ([]byte, error) {
	type plain Reference
	return marshalTagged(t.Kind(), plain(t))
}

func (t Array) MarshalJSON() ([]byte, error) {
	type plain Array
	return marshalTagged(t.Kind(), plain(t))
}

func (t Struct) MarshalJSON() ([]byte, error) {
	type plain Struct
	if t.Fields == nil {
		t.Fields = []StructField{}
	}
	return marshalTagged(t.Kind(), plain(t))
}

func (t Enum) MarshalJSON() ([]byte, error) {
	type plain Enum
	if t.Variants == nil {
		t.Variants = []EnumVariant{}
	}
	return marshalTagged(t.Kind(), plain(t))
}

func (t VariantPart) MarshalJSON() ([]byte, error) {
	type plain VariantPart
	if t.Variants == nil {
		t.Variants = []Variant{}
	}
	return marshalTagged(t.Kind(), plain(t))
}

var typeDecoders = map[string]func([]byte) (Type, error){
	"Reference":   decodeType[Reference],
	"Array":       decodeType[Array],
	"Struct":      decodeType[Struct],
	"Enum":        decodeType[Enum],
	"VariantPart": decodeType[VariantPart],
}

func decodeType[T Type](data []byte) (Type, error) {
	v, err := decodeAs[T](data)
	return v, err
}

// UnmarshalType decodes a single tagged type object.
func UnmarshalType(data []byte) (Type, error) {
	tag, err := readTag(data)
	if err != nil {
		return nil, err
	}
	if p, ok := primitives[tag]; ok {
		return p, nil
	}
	decode, ok := typeDecoders[tag]
	if !ok {
		return nil, fmt.Errorf("unknown type kind %q", tag)
	}
	t, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s type: %w", tag, err)
	}
	return t, nil
}

// TypeNodes is the type graph keyed by type id.
type TypeNodes map[TypeID]Type

// UnmarshalJSON decodes every value according to its "type" tag.
func (n *TypeNodes) UnmarshalJSON(data []byte) error {
	var raw map[TypeID]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(TypeNodes, len(raw))
	for id, r := range raw {
		t, err := UnmarshalType(r)
		if err != nil {
			return fmt.Errorf("type node %s: %w", id, err)
		}
		out[id] = t
	}
	*n = out
	return nil
}
