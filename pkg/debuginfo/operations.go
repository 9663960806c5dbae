package debuginfo

import (
	"encoding/json"
	"fmt"
)

// Operation is one primitive of a location expression.
type Operation interface {
	// Kind returns the variant name used as the JSON "type" tag.
	Kind() string
	isOperation()
}

// Register means the value lives in a register.
type Register struct {
	Register uint16 `json:"register"`
}

// FrameOffset addresses memory relative to the frame base.
type FrameOffset struct {
	Offset int64 `json:"offset"`
}

// RegisterOffset addresses memory relative to a register.
type RegisterOffset struct {
	Register uint16 `json:"register"`
	Offset   int64  `json:"offset"`
	BaseType string `json:"base_type"`
}

// Piece describes a part of a value split across several locations.
type Piece struct {
	SizeInBits uint64  `json:"size_in_bits"`
	BitOffset  *uint64 `json:"bit_offset"`
}

// SignedConstant pushes a signed constant.
type SignedConstant struct {
	Value int64 `json:"value"`
}

// UnsignedConstant pushes an unsigned constant.
type UnsignedConstant struct {
	Value uint64 `json:"value"`
}

// StackValue marks the top of the stack as the value itself rather than its address.
type StackValue struct{}

// Minus subtracts the two topmost stack entries.
type Minus struct{}

// Plus adds the two topmost stack entries.
type Plus struct{}

// And is the bitwise and of the two topmost stack entries.
type And struct{}

// Or is the bitwise or of the two topmost stack entries.
type Or struct{}

// Unsupported carries a description of an operation the decoder does not model.
type Unsupported struct {
	Operation string `json:"operation"`
}

func (Register) Kind() string         { return "Register" }
func (FrameOffset) Kind() string      { return "FrameOffset" }
func (RegisterOffset) Kind() string   { return "RegisterOffset" }
func (Piece) Kind() string            { return "Piece" }
func (SignedConstant) Kind() string   { return "SignedConstant" }
func (UnsignedConstant) Kind() string { return "UnsignedConstant" }
func (StackValue) Kind() string       { return "StackValue" }
func (Minus) Kind() string            { return "Minus" }
func (Plus) Kind() string             { return "Plus" }
func (And) Kind() string              { return "And" }
func (Or) Kind() string               { return "Or" }
func (Unsupported) Kind() string      { return "Unsupported" }

func (Register) isOperation()         {}
func (FrameOffset) isOperation()      {}
func (RegisterOffset) isOperation()   {}
func (Piece) isOperation()            {}
func (SignedConstant) isOperation()   {}
func (UnsignedConstant) isOperation() {}
func (StackValue) isOperation()       {}
func (Minus) isOperation()            {}
func (Plus) isOperation()             {}
func (And) isOperation()              {}
func (Or) isOperation()               {}
func (Unsupported) isOperation()      {}

func (o Register) MarshalJSON() ([]byte, error) {
	type plain Register
	return marshalTagged(o.Kind(), plain(o))
}

func (o FrameOffset) MarshalJSON() ([]byte, error) {
	type plain FrameOffset
	return marshalTagged(o.Kind(), plain(o))
}

func (o RegisterOffset) MarshalJSON() ([]byte, error) {
	type plain RegisterOffset
	return marshalTagged(o.Kind(), plain(o))
}

func (o Piece) MarshalJSON() ([]byte, error) {
	type plain Piece
	return marshalTagged(o.Kind(), plain(o))
}

func (o SignedConstant) MarshalJSON() ([]byte, error) {
	type plain SignedConstant
	return marshalTagged(o.Kind(), plain(o))
}

func (o UnsignedConstant) MarshalJSON() ([]byte, error) {
	type plain UnsignedConstant
	return marshalTagged(o.Kind(), plain(o))
}

func (o StackValue) MarshalJSON() ([]byte, error) { return marshalTagged(o.Kind(), struct{}{}) }
func (o Minus) MarshalJSON() ([]byte, error)      { return marshalTagged(o.Kind(), struct{}{}) }
func (o Plus) MarshalJSON() ([]byte, error)       { return marshalTagged(o.Kind(), struct{}{}) }
func (o And) MarshalJSON() ([]byte, error)        { return marshalTagged(o.Kind(), struct{}{}) }
func (o Or) MarshalJSON() ([]byte, error)         { return marshalTagged(o.Kind(), struct{}{}) }

func (o Unsupported) MarshalJSON() ([]byte, error) {
	type plain Unsupported
	return marshalTagged(o.Kind(), plain(o))
}

var operationDecoders = map[string]func([]byte) (Operation, error){
	"Register":         decodeOperation[Register],
	"FrameOffset":      decodeOperation[FrameOffset],
	"RegisterOffset":   decodeOperation[RegisterOffset],
	"Piece":            decodeOperation[Piece],
	"SignedConstant":   decodeOperation[SignedConstant],
	"UnsignedConstant": decodeOperation[UnsignedConstant],
	"StackValue":       decodeOperation[StackValue],
	"Minus":            decodeOperation[Minus],
	"Plus":             decodeOperation[Plus],
	"And":              decodeOperation[And],
	"Or":               decodeOperation[Or],
	"Unsupported":      decodeOperation[Unsupported],
}

func decodeOperation[T Operation](data []byte) (Operation, error) {
	v, err := decodeAs[T](data)
	return v, err
}

// Operations is an ordered operation sequence with tag-aware JSON decoding.
type Operations []Operation

// UnmarshalJSON decodes each element according to its "type" tag.
func (ops *Operations) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Operations, 0, len(raw))
	for _, r := range raw {
		tag, err := readTag(r)
		if err != nil {
			return err
		}
		decode, ok := operationDecoders[tag]
		if !ok {
			return fmt.Errorf("unknown operation type %q", tag)
		}
		op, err := decode(r)
		if err != nil {
			return fmt.Errorf("decode %s operation: %w", tag, err)
		}
		out = append(out, op)
	}
	*ops = out
	return nil
}

// OperationsList is the operation sequence that applies within one address range.
type OperationsList struct {
	Operations Operations   `json:"operations"`
	Range      AddressRange `json:"range"`
}
