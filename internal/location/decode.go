// Package location decodes DWARF location expressions into the operation
// sequences of the report.
package location

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/go-delve/delve/pkg/dwarf/leb128"
	"github.com/go-delve/delve/pkg/dwarf/op"

	"github.com/coral-mesh/dwarfdump/pkg/debuginfo"
)

// Encoding carries the unit properties that operand sizes depend on.
type Encoding struct {
	Order      binary.ByteOrder
	AddrSize   int
	OffsetSize int
}

// ErrTruncated is returned when an operand runs past the end of the expression.
var ErrTruncated = errors.New("truncated location expression")

// Decode translates expr into operations. Opcodes without a dedicated
// operation become Unsupported carrying a description. An opcode the
// decoder does not know at all ends the sequence, since its operands cannot
// be skipped.
func Decode(expr []byte, enc Encoding) (debuginfo.Operations, error) {
	d := decoder{buf: bytes.NewBuffer(expr), enc: enc}
	ops := debuginfo.Operations{}
	for d.buf.Len() > 0 {
		b, _ := d.buf.ReadByte()
		o, known, err := d.next(op.Opcode(b))
		if err != nil {
			return ops, fmt.Errorf("%s: %w", opcodeName(op.Opcode(b)), err)
		}
		ops = append(ops, o)
		if !known {
			break
		}
	}
	return ops, nil
}

type decoder struct {
	buf *bytes.Buffer
	enc Encoding
}

func (d *decoder) next(code op.Opcode) (debuginfo.Operation, bool, error) {
	switch {
	case code >= op.DW_OP_lit0 && code <= op.DW_OP_lit31:
		return debuginfo.UnsignedConstant{Value: uint64(code - op.DW_OP_lit0)}, true, nil
	case code >= op.DW_OP_reg0 && code <= op.DW_OP_reg31:
		return debuginfo.Register{Register: uint16(code - op.DW_OP_reg0)}, true, nil
	case code >= op.DW_OP_breg0 && code <= op.DW_OP_breg31:
		off, err := d.sleb()
		if err != nil {
			return nil, true, err
		}
		return debuginfo.RegisterOffset{Register: uint16(code - op.DW_OP_breg0), Offset: off, BaseType: baseType(0)}, true, nil
	}

	switch code {
	case op.DW_OP_const1u, op.DW_OP_const2u, op.DW_OP_const4u, op.DW_OP_const8u:
		v, err := d.fixed(constSize(code))
		if err != nil {
			return nil, true, err
		}
		return debuginfo.UnsignedConstant{Value: v}, true, nil
	case op.DW_OP_const1s, op.DW_OP_const2s, op.DW_OP_const4s, op.DW_OP_const8s:
		size := constSize(code)
		v, err := d.fixed(size)
		if err != nil {
			return nil, true, err
		}
		return debuginfo.SignedConstant{Value: signExtend(v, size)}, true, nil
	case op.DW_OP_constu:
		v, err := d.uleb()
		if err != nil {
			return nil, true, err
		}
		return debuginfo.UnsignedConstant{Value: v}, true, nil
	case op.DW_OP_consts:
		v, err := d.sleb()
		if err != nil {
			return nil, true, err
		}
		return debuginfo.SignedConstant{Value: v}, true, nil
	case op.DW_OP_regx:
		r, err := d.uleb()
		if err != nil {
			return nil, true, err
		}
		return debuginfo.Register{Register: uint16(r)}, true, nil
	case op.DW_OP_fbreg:
		off, err := d.sleb()
		if err != nil {
			return nil, true, err
		}
		return debuginfo.FrameOffset{Offset: off}, true, nil
	case op.DW_OP_bregx:
		r, err := d.uleb()
		if err != nil {
			return nil, true, err
		}
		off, err := d.sleb()
		if err != nil {
			return nil, true, err
		}
		return debuginfo.RegisterOffset{Register: uint16(r), Offset: off, BaseType: baseType(0)}, true, nil
	case opRegvalType, opGNURegvalType:
		r, err := d.uleb()
		if err != nil {
			return nil, true, err
		}
		bt, err := d.uleb()
		if err != nil {
			return nil, true, err
		}
		return debuginfo.RegisterOffset{Register: uint16(r), BaseType: baseType(bt)}, true, nil
	case op.DW_OP_piece:
		n, err := d.uleb()
		if err != nil {
			return nil, true, err
		}
		return debuginfo.Piece{SizeInBits: 8 * n}, true, nil
	case opBitPiece:
		size, err := d.uleb()
		if err != nil {
			return nil, true, err
		}
		off, err := d.uleb()
		if err != nil {
			return nil, true, err
		}
		return debuginfo.Piece{SizeInBits: size, BitOffset: &off}, true, nil
	case op.DW_OP_stack_value:
		return debuginfo.StackValue{}, true, nil
	case op.DW_OP_plus:
		return debuginfo.Plus{}, true, nil
	case op.DW_OP_minus:
		return debuginfo.Minus{}, true, nil
	case op.DW_OP_and:
		return debuginfo.And{}, true, nil
	case op.DW_OP_or:
		return debuginfo.Or{}, true, nil
	}

	desc, known, err := d.describe(code)
	if err != nil {
		return nil, true, err
	}
	return debuginfo.Unsupported{Operation: desc}, known, nil
}

func constSize(code op.Opcode) int {
	switch code {
	case op.DW_OP_const1u, op.DW_OP_const1s:
		return 1
	case op.DW_OP_const2u, op.DW_OP_const2s:
		return 2
	case op.DW_OP_const4u, op.DW_OP_const4s:
		return 4
	default:
		return 8
	}
}

func signExtend(v uint64, size int) int64 {
	shift := 64 - 8*uint(size)
	return int64(v<<shift) >> shift
}

func baseType(off uint64) string {
	return fmt.Sprintf("UnitOffset(%d)", off)
}

func (d *decoder) fixed(size int) (uint64, error) {
	if d.buf.Len() < size {
		return 0, ErrTruncated
	}
	b := d.buf.Next(size)
	switch size {
	case 1:
		return uint64(b[0]), nil
	case 2:
		return uint64(d.enc.Order.Uint16(b)), nil
	case 4:
		return uint64(d.enc.Order.Uint32(b)), nil
	case 8:
		return d.enc.Order.Uint64(b), nil
	default:
		return 0, fmt.Errorf("unsupported operand size %d", size)
	}
}

// terminated reports whether the buffer holds a complete LEB128 number.
// delve's decoder panics on a truncated one.
func (d *decoder) terminated() bool {
	for _, b := range d.buf.Bytes() {
		if b&0x80 == 0 {
			return true
		}
	}
	return false
}

func (d *decoder) uleb() (uint64, error) {
	if !d.terminated() {
		return 0, ErrTruncated
	}
	v, _ := leb128.DecodeUnsigned(d.buf)
	return v, nil
}

func (d *decoder) sleb() (int64, error) {
	if !d.terminated() {
		return 0, ErrTruncated
	}
	v, _ := leb128.DecodeSigned(d.buf)
	return v, nil
}

func (d *decoder) block(n uint64) ([]byte, error) {
	if uint64(d.buf.Len()) < n {
		return nil, ErrTruncated
	}
	return d.buf.Next(int(n)), nil
}

// PlusUconst returns the operand of an expression consisting of a single
// DW_OP_plus_uconst, the DWARF 2 encoding of a member offset.
func PlusUconst(expr []byte) (uint64, bool) {
	if len(expr) < 2 || op.Opcode(expr[0]) != op.DW_OP_plus_uconst {
		return 0, false
	}
	d := decoder{buf: bytes.NewBuffer(expr[1:])}
	v, err := d.uleb()
	if err != nil || d.buf.Len() != 0 {
		return 0, false
	}
	return v, true
}
