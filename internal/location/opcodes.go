package location

import (
	"fmt"
	"strings"

	"github.com/go-delve/delve/pkg/dwarf/op"
)

// Opcodes from DWARF 5 and vendor extensions.
const (
	opBitPiece      op.Opcode = 0x9d
	opRegvalType    op.Opcode = 0xa5
	opGNURegvalType op.Opcode = 0xf5
)

// opcodeInfo names an opcode and lists its operands, one letter each:
// 1, 2, 4, 8 fixed unsigned; h fixed signed 16-bit; u ULEB128; s SLEB128;
// a address; o section offset; b ULEB128-sized block; t byte-sized block;
// w WebAssembly location.
type opcodeInfo struct {
	name     string
	operands string
}

var opcodes = map[op.Opcode]opcodeInfo{
	0x03: {"DW_OP_addr", "a"},
	0x06: {"DW_OP_deref", ""},
	0x08: {"DW_OP_const1u", "1"},
	0x09: {"DW_OP_const1s", "1"},
	0x0a: {"DW_OP_const2u", "2"},
	0x0b: {"DW_OP_const2s", "2"},
	0x0c: {"DW_OP_const4u", "4"},
	0x0d: {"DW_OP_const4s", "4"},
	0x0e: {"DW_OP_const8u", "8"},
	0x0f: {"DW_OP_const8s", "8"},
	0x10: {"DW_OP_constu", "u"},
	0x11: {"DW_OP_consts", "s"},
	0x12: {"DW_OP_dup", ""},
	0x13: {"DW_OP_drop", ""},
	0x14: {"DW_OP_over", ""},
	0x15: {"DW_OP_pick", "1"},
	0x16: {"DW_OP_swap", ""},
	0x17: {"DW_OP_rot", ""},
	0x18: {"DW_OP_xderef", ""},
	0x19: {"DW_OP_abs", ""},
	0x1a: {"DW_OP_and", ""},
	0x1b: {"DW_OP_div", ""},
	0x1c: {"DW_OP_minus", ""},
	0x1d: {"DW_OP_mod", ""},
	0x1e: {"DW_OP_mul", ""},
	0x1f: {"DW_OP_neg", ""},
	0x20: {"DW_OP_not", ""},
	0x21: {"DW_OP_or", ""},
	0x22: {"DW_OP_plus", ""},
	0x23: {"DW_OP_plus_uconst", "u"},
	0x24: {"DW_OP_shl", ""},
	0x25: {"DW_OP_shr", ""},
	0x26: {"DW_OP_shra", ""},
	0x27: {"DW_OP_xor", ""},
	0x28: {"DW_OP_bra", "h"},
	0x29: {"DW_OP_eq", ""},
	0x2a: {"DW_OP_ge", ""},
	0x2b: {"DW_OP_gt", ""},
	0x2c: {"DW_OP_le", ""},
	0x2d: {"DW_OP_lt", ""},
	0x2e: {"DW_OP_ne", ""},
	0x2f: {"DW_OP_skip", "h"},
	0x90: {"DW_OP_regx", "u"},
	0x91: {"DW_OP_fbreg", "s"},
	0x92: {"DW_OP_bregx", "us"},
	0x93: {"DW_OP_piece", "u"},
	0x94: {"DW_OP_deref_size", "1"},
	0x95: {"DW_OP_xderef_size", "1"},
	0x96: {"DW_OP_nop", ""},
	0x97: {"DW_OP_push_object_address", ""},
	0x98: {"DW_OP_call2", "2"},
	0x99: {"DW_OP_call4", "4"},
	0x9a: {"DW_OP_call_ref", "o"},
	0x9b: {"DW_OP_form_tls_address", ""},
	0x9c: {"DW_OP_call_frame_cfa", ""},
	0x9d: {"DW_OP_bit_piece", "uu"},
	0x9e: {"DW_OP_implicit_value", "b"},
	0x9f: {"DW_OP_stack_value", ""},
	0xa0: {"DW_OP_implicit_pointer", "os"},
	0xa1: {"DW_OP_addrx", "u"},
	0xa2: {"DW_OP_constx", "u"},
	0xa3: {"DW_OP_entry_value", "b"},
	0xa4: {"DW_OP_const_type", "ut"},
	0xa5: {"DW_OP_regval_type", "uu"},
	0xa6: {"DW_OP_deref_type", "1u"},
	0xa7: {"DW_OP_xderef_type", "1u"},
	0xa8: {"DW_OP_convert", "u"},
	0xa9: {"DW_OP_reinterpret", "u"},
	0xe0: {"DW_OP_GNU_push_tls_address", ""},
	0xed: {"DW_OP_WASM_location", "w"},
	0xf0: {"DW_OP_GNU_uninit", ""},
	0xf1: {"DW_OP_GNU_encoded_addr", ""},
	0xf2: {"DW_OP_GNU_implicit_pointer", "os"},
	0xf3: {"DW_OP_GNU_entry_value", "b"},
	0xf4: {"DW_OP_GNU_const_type", "ut"},
	0xf5: {"DW_OP_GNU_regval_type", "uu"},
	0xf6: {"DW_OP_GNU_deref_type", "1u"},
	0xf7: {"DW_OP_GNU_convert", "u"},
	0xf9: {"DW_OP_GNU_reinterpret", "u"},
	0xfa: {"DW_OP_GNU_parameter_ref", "4"},
	0xfb: {"DW_OP_GNU_addr_index", "u"},
	0xfc: {"DW_OP_GNU_const_index", "u"},
}

func opcodeName(code op.Opcode) string {
	switch {
	case code >= op.DW_OP_lit0 && code <= op.DW_OP_lit31:
		return fmt.Sprintf("DW_OP_lit%d", code-op.DW_OP_lit0)
	case code >= op.DW_OP_reg0 && code <= op.DW_OP_reg31:
		return fmt.Sprintf("DW_OP_reg%d", code-op.DW_OP_reg0)
	case code >= op.DW_OP_breg0 && code <= op.DW_OP_breg31:
		return fmt.Sprintf("DW_OP_breg%d", code-op.DW_OP_breg0)
	}
	if info, ok := opcodes[code]; ok {
		return info.name
	}
	return fmt.Sprintf("DW_OP_unknown_0x%02x", uint8(code))
}

// describe consumes the operands of code and renders it as text. known is
// false for opcodes missing from the table.
func (d *decoder) describe(code op.Opcode) (string, bool, error) {
	info, ok := opcodes[code]
	if !ok {
		return opcodeName(code), false, nil
	}

	var sb strings.Builder
	sb.WriteString(info.name)
	for _, kind := range info.operands {
		s, err := d.operand(kind)
		if err != nil {
			return "", true, err
		}
		sb.WriteByte(' ')
		sb.WriteString(s)
	}
	return sb.String(), true, nil
}

func (d *decoder) operand(kind rune) (string, error) {
	switch kind {
	case '1', '2', '4', '8':
		v, err := d.fixed(int(kind - '0'))
		return fmt.Sprint(v), err
	case 'h':
		v, err := d.fixed(2)
		return fmt.Sprint(int16(v)), err
	case 'u':
		v, err := d.uleb()
		return fmt.Sprint(v), err
	case 's':
		v, err := d.sleb()
		return fmt.Sprint(v), err
	case 'a':
		v, err := d.fixed(d.enc.AddrSize)
		return fmt.Sprintf("%#x", v), err
	case 'o':
		v, err := d.fixed(d.enc.OffsetSize)
		return fmt.Sprintf("%#x", v), err
	case 'b':
		n, err := d.uleb()
		if err != nil {
			return "", err
		}
		b, err := d.block(n)
		return fmt.Sprintf("[% x]", b), err
	case 't':
		n, err := d.fixed(1)
		if err != nil {
			return "", err
		}
		b, err := d.block(n)
		return fmt.Sprintf("[% x]", b), err
	case 'w':
		return d.wasmLocation()
	default:
		return "", fmt.Errorf("unknown operand kind %q", kind)
	}
}

// wasmLocation reads the operands of DW_OP_WASM_location: a kind (local,
// global, operand stack, global with a fixed 32-bit index) and an index.
func (d *decoder) wasmLocation() (string, error) {
	kind, err := d.fixed(1)
	if err != nil {
		return "", err
	}
	var idx uint64
	switch kind {
	case 0, 1, 2:
		idx, err = d.uleb()
	case 3:
		idx, err = d.fixed(4)
	default:
		return "", fmt.Errorf("unknown WebAssembly location kind %d", kind)
	}
	if err != nil {
		return "", err
	}
	names := [...]string{"local", "global", "stack", "global"}
	return fmt.Sprintf("%s %d", names[kind], idx), nil
}
