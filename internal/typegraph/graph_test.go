package typegraph

import (
	"context"
	"debug/dwarf"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/dwarfdump/internal/die"
	"github.com/coral-mesh/dwarfdump/internal/die/dietest"
	"github.com/coral-mesh/dwarfdump/internal/resolve"
	"github.com/coral-mesh/dwarfdump/pkg/debuginfo"
)

func name(s string) die.Attribute {
	return die.Attr(dwarf.AttrName, die.StringValue(s))
}

func typ(e *die.Entry) die.Attribute {
	return die.Attr(dwarf.AttrType, die.ReferenceValue(e.Offset))
}

func uattr(a dwarf.Attr, v uint64) die.Attribute {
	return die.Attr(a, die.UnsignedValue(v))
}

func base(enc, size uint64, n string) []die.Attribute {
	return []die.Attribute{name(n), uattr(dwarf.AttrEncoding, enc), uattr(dwarf.AttrByteSize, size)}
}

func idOf(u *die.Unit, e *die.Entry) debuginfo.TypeID {
	return debuginfo.TypeID{EntryOffset: uint64(e.Offset), UnitOffset: u.Offset}
}

type typeFixture struct {
	unit                  *die.Unit
	u8, i32, ptr, arr     *die.Entry
	color, point, option  *die.Entry
	typedef, unused, disc *die.Entry
}

func newTypeFixture() typeFixture {
	var f typeFixture
	b := dietest.NewUnit(0)
	root := b.Root(dwarf.TagCompileUnit)

	f.u8 = b.Add(root, dwarf.TagBaseType, base(encUnsigned, 1, "u8")...)
	f.i32 = b.Add(root, dwarf.TagBaseType, base(encSigned, 4, "i32")...)
	f.ptr = b.Add(root, dwarf.TagPointerType, name("&u8"), typ(f.u8))
	f.arr = b.Add(root, dwarf.TagArrayType, typ(f.i32))
	b.Add(f.arr, dwarf.TagSubrangeType, uattr(dwarf.AttrCount, 4))

	f.color = b.Add(root, dwarf.TagEnumerationType, name("Color"))
	b.Add(f.color, dwarf.TagEnumerator, name("Red"))
	b.Add(f.color, dwarf.TagEnumerator, name("Green"))

	f.point = b.Add(root, dwarf.TagStructType, name("Point"), uattr(dwarf.AttrByteSize, 12))
	b.Add(f.point, dwarf.TagMember, name("x"), typ(f.i32), uattr(dwarf.AttrDataMemberLoc, 0))
	b.Add(f.point, dwarf.TagMember, name("y"), typ(f.i32), uattr(dwarf.AttrDataMemberLoc, 4))
	b.Add(f.point, dwarf.TagMember, name("color"), typ(f.color), uattr(dwarf.AttrDataMemberLoc, 8))

	f.option = b.Add(root, dwarf.TagStructType, name("Option<&u8>"), uattr(dwarf.AttrByteSize, 8))
	vp := b.Add(f.option, dwarf.TagVariantPart)
	f.disc = b.Add(vp, dwarf.TagMember, typ(f.u8), uattr(dwarf.AttrDataMemberLoc, 0))
	vp.Set(dwarf.AttrDiscr, die.ReferenceValue(f.disc.Offset))
	none := b.Add(vp, dwarf.TagVariant, uattr(dwarf.AttrDiscrValue, 0))
	b.Add(none, dwarf.TagMember, name("None"), typ(f.u8), uattr(dwarf.AttrDataMemberLoc, 0))
	some := b.Add(vp, dwarf.TagVariant, uattr(dwarf.AttrDiscrValue, 1))
	b.Add(some, dwarf.TagMember, name("Some"), typ(f.ptr), uattr(dwarf.AttrDataMemberLoc, 0))

	f.typedef = b.Add(root, dwarf.TagTypedef, name("Alias"), typ(f.u8))
	f.unused = b.Add(root, dwarf.TagBaseType, base(encFloat, 8, "f64")...)

	f.unit = b.Build()
	return f
}

func (f typeFixture) resolver() *resolve.Resolver {
	return resolve.New(dietest.Program(f.unit), 0)
}

func TestResolve_TransitiveClosure(t *testing.T) {
	f := newTypeFixture()
	u := f.unit
	seeds := []debuginfo.TypeID{idOf(u, f.point), idOf(u, f.option), idOf(u, f.arr), idOf(u, f.typedef), idOf(u, f.point)}

	nodes, errs, err := Resolve(context.Background(), f.resolver(), seeds)
	require.NoError(t, err)

	want := []debuginfo.TypeID{
		idOf(u, f.point), idOf(u, f.i32), idOf(u, f.color),
		idOf(u, f.option), idOf(u, f.u8), idOf(u, f.ptr),
		idOf(u, f.arr),
	}
	got := make([]debuginfo.TypeID, 0, len(nodes))
	for id := range nodes {
		got = append(got, id)
	}
	assert.ElementsMatch(t, want, got)
	assert.NotContains(t, nodes, idOf(u, f.unused))

	require.Equal(t, 1, errs.Len())
	assert.Contains(t, errs.Messages()[0], "Found an unsupported type TagTypedef")
	assert.Contains(t, errs.Messages()[0], "[DebuggingInformationEntry at offset")

	assert.Equal(t, debuginfo.I32, nodes[idOf(u, f.i32)])
	assert.Equal(t, debuginfo.U8, nodes[idOf(u, f.u8)])
	assert.Equal(t, debuginfo.Reference{ReferentID: idOf(u, f.u8)}, nodes[idOf(u, f.ptr)])
	assert.Equal(t, debuginfo.Array{ElementTypeID: idOf(u, f.i32), ElementCount: 4}, nodes[idOf(u, f.arr)])
	assert.Equal(t, debuginfo.Enum{Name: "Color", Variants: []debuginfo.EnumVariant{{Name: "Red"}, {Name: "Green"}}}, nodes[idOf(u, f.color)])
	assert.Equal(t, debuginfo.Struct{
		Name: "Point",
		Size: 12,
		Fields: []debuginfo.StructField{
			{Name: "x", FieldTypeID: idOf(u, f.i32), Offset: 0},
			{Name: "y", FieldTypeID: idOf(u, f.i32), Offset: 4},
			{Name: "color", FieldTypeID: idOf(u, f.color), Offset: 8},
		},
	}, nodes[idOf(u, f.point)])
}

func TestResolve_VariantPart(t *testing.T) {
	f := newTypeFixture()
	u := f.unit

	nodes, errs, err := Resolve(context.Background(), f.resolver(), []debuginfo.TypeID{idOf(u, f.option)})
	require.NoError(t, err)
	assert.Zero(t, errs.Len())

	got, ok := nodes[idOf(u, f.option)].(debuginfo.VariantPart)
	require.True(t, ok, "a struct holding a variant part must become a VariantPart")
	assert.Equal(t, debuginfo.VariantPart{
		Discriminant: debuginfo.Discriminant{TypeID: idOf(u, f.u8), Offset: 0},
		Variants: []debuginfo.Variant{
			{DiscrName: "None", DiscrValue: 0, TypeID: idOf(u, f.u8), Offset: 0},
			{DiscrName: "Some", DiscrValue: 1, TypeID: idOf(u, f.ptr), Offset: 0},
		},
		Size: 8,
	}, got)
	assert.Contains(t, nodes, idOf(u, f.ptr))
}

func TestResolve_NicheDiscriminant(t *testing.T) {
	b := dietest.NewUnit(0)
	root := b.Root(dwarf.TagCompileUnit)
	u64 := b.Add(root, dwarf.TagBaseType, base(encUnsigned, 8, "u64")...)
	vec := b.Add(root, dwarf.TagStructType, name("Vec<u8>"), uattr(dwarf.AttrByteSize, 24))
	b.Add(vec, dwarf.TagMember, name("cap"), typ(u64), uattr(dwarf.AttrDataMemberLoc, 0))
	opt := b.Add(root, dwarf.TagStructType, name("Option<Vec<u8>>"), uattr(dwarf.AttrByteSize, 24))
	vp := b.Add(opt, dwarf.TagVariantPart)
	disc := b.Add(vp, dwarf.TagMember, typ(u64), uattr(dwarf.AttrDataMemberLoc, 0))
	vp.Set(dwarf.AttrDiscr, die.ReferenceValue(disc.Offset))
	none := b.Add(vp, dwarf.TagVariant, die.Attr(dwarf.AttrDiscrValue, die.SignedValue(math.MinInt64)))
	b.Add(none, dwarf.TagMember, name("None"), typ(u64), uattr(dwarf.AttrDataMemberLoc, 0))
	some := b.Add(vp, dwarf.TagVariant, uattr(dwarf.AttrDiscrValue, 0))
	b.Add(some, dwarf.TagMember, name("Some"), typ(vec), uattr(dwarf.AttrDataMemberLoc, 0))
	u := b.Build()

	nodes, errs, err := Resolve(context.Background(), resolve.New(dietest.Program(u), 0), []debuginfo.TypeID{idOf(u, opt)})
	require.NoError(t, err)
	assert.Zero(t, errs.Len())

	got, ok := nodes[idOf(u, opt)].(debuginfo.VariantPart)
	require.True(t, ok)
	require.Len(t, got.Variants, 2)
	assert.Equal(t, uint64(0x8000000000000000), got.Variants[0].DiscrValue)
	assert.Contains(t, nodes, idOf(u, vec))
}

func TestStruct_TupleDetection(t *testing.T) {
	tests := []struct {
		name    string
		members []string
		want    bool
	}{
		{"positional members", []string{"__0", "__1", "__2"}, true},
		{"single positional member", []string{"__0"}, true},
		{"named members", []string{"x", "y"}, false},
		{"out of order", []string{"__1", "__0"}, false},
		{"mixed", []string{"__0", "y"}, false},
		{"unit struct", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := dietest.NewUnit(0)
			root := b.Root(dwarf.TagCompileUnit)
			u8 := b.Add(root, dwarf.TagBaseType, base(encUnsigned, 1, "u8")...)
			st := b.Add(root, dwarf.TagStructType, name("S"), uattr(dwarf.AttrByteSize, uint64(len(tt.members))))
			for i, m := range tt.members {
				b.Add(st, dwarf.TagMember, name(m), typ(u8), uattr(dwarf.AttrDataMemberLoc, uint64(i)))
			}
			u := b.Build()

			nodes, errs, err := Resolve(context.Background(), resolve.New(dietest.Program(u), 0), []debuginfo.TypeID{idOf(u, st)})
			require.NoError(t, err)
			assert.Zero(t, errs.Len())
			got, ok := nodes[idOf(u, st)].(debuginfo.Struct)
			require.True(t, ok)
			assert.Equal(t, tt.want, got.IsTupleStruct)
		})
	}
}

func TestPrimitive(t *testing.T) {
	tests := []struct {
		name    string
		attrs   []die.Attribute
		want    debuginfo.Type
		wantErr string
	}{
		{"i8", base(encSigned, 1, "i8"), debuginfo.I8, ""},
		{"i16", base(encSigned, 2, "i16"), debuginfo.I16, ""},
		{"i64", base(encSigned, 8, "i64"), debuginfo.I64, ""},
		{"i128", base(encSigned, 16, "i128"), debuginfo.I128, ""},
		{"u16", base(encUnsigned, 2, "u16"), debuginfo.U16, ""},
		{"u32", base(encUnsigned, 4, "u32"), debuginfo.U32, ""},
		{"u64", base(encUnsigned, 8, "u64"), debuginfo.U64, ""},
		{"u128", base(encUnsigned, 16, "u128"), debuginfo.U128, ""},
		{"f32", base(encFloat, 4, "f32"), debuginfo.F32, ""},
		{"f64", base(encFloat, 8, "f64"), debuginfo.F64, ""},
		{"bool", base(encBoolean, 1, "bool"), debuginfo.Bool, ""},
		{"char", base(encSignedChar, 1, "char"), debuginfo.I8, ""},
		{"unsigned char", base(encUnsignedChar, 1, "unsigned char"), debuginfo.U8, ""},
		{"odd size", base(encSigned, 3, "i24"), nil, "Encoding DW_ATE_signed doesn't match byte size 3"},
		{"utf char", base(0x10, 4, "char"), nil, "Encoding DW_ATE_UTF doesn't match byte size 4"},
		{"no encoding", []die.Attribute{name("x"), uattr(dwarf.AttrByteSize, 4)}, nil, "Encoding <none> doesn't match byte size 4"},
		{"no size", []die.Attribute{name("x"), uattr(dwarf.AttrEncoding, encFloat)}, nil, "Encoding DW_ATE_float doesn't match byte size <none>"},
		{"unknown encoding", base(0x99, 4, "x"), nil, "Encoding DW_ATE_unknown_0x99 doesn't match byte size 4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := dietest.NewUnit(0)
			root := b.Root(dwarf.TagCompileUnit)
			e := b.Add(root, dwarf.TagBaseType, tt.attrs...)
			u := b.Build()

			nodes, errs, err := Resolve(context.Background(), resolve.New(dietest.Program(u), 0), []debuginfo.TypeID{idOf(u, e)})
			require.NoError(t, err)
			if tt.wantErr != "" {
				require.Equal(t, 1, errs.Len())
				assert.Contains(t, errs.Messages()[0], tt.wantErr)
				assert.Empty(t, nodes)
				return
			}
			assert.Zero(t, errs.Len())
			assert.Equal(t, tt.want, nodes[idOf(u, e)])
		})
	}
}

func TestArray_ElementCount(t *testing.T) {
	tests := []struct {
		name      string
		subranges [][]die.Attribute
		want      uint64
	}{
		{"no subrange", nil, 0},
		{"subrange without bounds", [][]die.Attribute{{}}, 0},
		{"count", [][]die.Attribute{{uattr(dwarf.AttrCount, 16)}}, 16},
		{"upper bound", [][]die.Attribute{{uattr(dwarf.AttrUpperBound, 9)}}, 10},
		{"empty upper bound", [][]die.Attribute{{die.Attr(dwarf.AttrUpperBound, die.SignedValue(-1))}}, 0},
		{"first subrange wins", [][]die.Attribute{{uattr(dwarf.AttrCount, 2)}, {uattr(dwarf.AttrCount, 3)}}, 2},
		{"skips subranges without count", [][]die.Attribute{{}, {uattr(dwarf.AttrCount, 7)}}, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := dietest.NewUnit(0)
			root := b.Root(dwarf.TagCompileUnit)
			elem := b.Add(root, dwarf.TagBaseType, base(encUnsigned, 1, "u8")...)
			arr := b.Add(root, dwarf.TagArrayType, typ(elem))
			for _, attrs := range tt.subranges {
				b.Add(arr, dwarf.TagSubrangeType, attrs...)
			}
			u := b.Build()

			nodes, errs, err := Resolve(context.Background(), resolve.New(dietest.Program(u), 0), []debuginfo.TypeID{idOf(u, arr)})
			require.NoError(t, err)
			assert.Zero(t, errs.Len())
			assert.Equal(t, debuginfo.Array{ElementTypeID: idOf(u, elem), ElementCount: tt.want}, nodes[idOf(u, arr)])
			assert.Equal(t, debuginfo.U8, nodes[idOf(u, elem)])
		})
	}
}

func TestResolve_FailedTypeDoesNotQueueItsReferences(t *testing.T) {
	b := dietest.NewUnit(0)
	root := b.Root(dwarf.TagCompileUnit)
	i32 := b.Add(root, dwarf.TagBaseType, base(encSigned, 4, "i32")...)
	broken := b.Add(root, dwarf.TagStructType, name("Broken"), uattr(dwarf.AttrByteSize, 8))
	b.Add(broken, dwarf.TagMember, name("a"), typ(i32), uattr(dwarf.AttrDataMemberLoc, 0))
	b.Add(broken, dwarf.TagMember, name("b"), typ(i32))
	u := b.Build()

	nodes, errs, err := Resolve(context.Background(), resolve.New(dietest.Program(u), 0), []debuginfo.TypeID{idOf(u, broken)})
	require.NoError(t, err)
	assert.Empty(t, nodes)
	require.Equal(t, 1, errs.Len())
	assert.Contains(t, errs.Messages()[0], "Could not parse attr AttrDataMemberLoc as u64")
}

func TestResolve_Errors(t *testing.T) {
	b := dietest.NewUnit(0)
	root := b.Root(dwarf.TagCompileUnit)
	u8 := b.Add(root, dwarf.TagBaseType, base(encUnsigned, 1, "u8")...)
	voidPtr := b.Add(root, dwarf.TagPointerType)

	mixed := b.Add(root, dwarf.TagStructType, name("Mixed"), uattr(dwarf.AttrByteSize, 2))
	b.Add(mixed, dwarf.TagMember, name("a"), typ(u8), uattr(dwarf.AttrDataMemberLoc, 0))
	b.Add(mixed, dwarf.TagVariantPart)

	noDiscr := b.Add(root, dwarf.TagStructType, name("NoDiscr"), uattr(dwarf.AttrByteSize, 1))
	b.Add(noDiscr, dwarf.TagVariantPart)

	noVariants := b.Add(root, dwarf.TagStructType, name("NoVariants"), uattr(dwarf.AttrByteSize, 1))
	vp := b.Add(noVariants, dwarf.TagVariantPart)
	disc := b.Add(vp, dwarf.TagMember, typ(u8), uattr(dwarf.AttrDataMemberLoc, 0))
	vp.Set(dwarf.AttrDiscr, die.ReferenceValue(disc.Offset))

	emptyVariant := b.Add(root, dwarf.TagStructType, name("EmptyVariant"), uattr(dwarf.AttrByteSize, 1))
	vp2 := b.Add(emptyVariant, dwarf.TagVariantPart)
	disc2 := b.Add(vp2, dwarf.TagMember, typ(u8), uattr(dwarf.AttrDataMemberLoc, 0))
	vp2.Set(dwarf.AttrDiscr, die.ReferenceValue(disc2.Offset))
	b.Add(vp2, dwarf.TagVariant, uattr(dwarf.AttrDiscrValue, 0))

	noSize := b.Add(root, dwarf.TagStructType, name("NoSize"))
	u := b.Build()

	tests := []struct {
		name  string
		entry *die.Entry
		want  string
	}{
		{"pointer without referent", voidPtr, "Could not parse DW_AT_type"},
		{"members and variant part", mixed, `Struct "Mixed" mixes members with a variant part`},
		{"variant part without discriminant", noDiscr, "Failed to find DW_AT_discr value"},
		{"variant part without variants", noVariants, "Could not parse a variant type"},
		{"variant without member", emptyVariant, "Unable to extract variant type"},
		{"struct without size", noSize, "Could not parse attr AttrByteSize as u64"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nodes, errs, err := Resolve(context.Background(), resolve.New(dietest.Program(u), 0), []debuginfo.TypeID{idOf(u, tt.entry)})
			require.NoError(t, err)
			assert.Empty(t, nodes)
			require.Equal(t, 1, errs.Len())
			assert.Contains(t, errs.Messages()[0], tt.want)
		})
	}
}

func TestResolve_MissingEntry(t *testing.T) {
	b := dietest.NewUnit(0)
	b.Root(dwarf.TagCompileUnit)
	u := b.Build()

	nodes, errs, err := Resolve(context.Background(), resolve.New(dietest.Program(u), 0), []debuginfo.TypeID{
		{EntryOffset: 999, UnitOffset: 0},
		{EntryOffset: 11, UnitOffset: 4096},
	})
	require.NoError(t, err)
	assert.Empty(t, nodes)
	assert.Equal(t, []string{
		"Type 999_0 does not designate a debugging information entry",
		"Type 11_4096 does not designate a debugging information entry",
	}, errs.Messages())
}

func TestResolve_CrossUnitReference(t *testing.T) {
	b1 := dietest.NewUnit(0)
	root1 := b1.Root(dwarf.TagCompileUnit)
	u64 := b1.Add(root1, dwarf.TagBaseType, base(encUnsigned, 8, "u64")...)
	u1 := b1.Build()

	b2 := dietest.NewUnit(u1.End())
	root2 := b2.Root(dwarf.TagCompileUnit)
	ptr := b2.Add(root2, dwarf.TagPointerType,
		die.Attr(dwarf.AttrType, die.InfoReferenceValue(u1.InfoOffset(u64.Offset))))
	u2 := b2.Build()

	nodes, errs, err := Resolve(context.Background(), resolve.New(dietest.Program(u1, u2), 0), []debuginfo.TypeID{idOf(u2, ptr)})
	require.NoError(t, err)
	assert.Zero(t, errs.Len())
	assert.Equal(t, debuginfo.Reference{ReferentID: idOf(u1, u64)}, nodes[idOf(u2, ptr)])
	assert.Equal(t, debuginfo.U64, nodes[idOf(u1, u64)])
}

func TestGraph_SeedAfterDrain(t *testing.T) {
	f := newTypeFixture()
	g := New(f.resolver())

	g.Seed(idOf(f.unit, f.ptr))
	require.NoError(t, g.Drain(context.Background()))
	assert.Len(t, g.Nodes(), 2)

	g.Seed(idOf(f.unit, f.u8), idOf(f.unit, f.i32))
	assert.Equal(t, 1, g.Pending())
	require.NoError(t, g.Drain(context.Background()))
	assert.Len(t, g.Nodes(), 3)
	assert.Zero(t, g.Errors().Len())
}

func TestGraph_DrainHonoursCancellation(t *testing.T) {
	f := newTypeFixture()
	g := New(f.resolver())
	g.Seed(idOf(f.unit, f.point))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, g.Drain(ctx), context.Canceled)
	assert.Equal(t, 1, g.Pending())
	assert.Empty(t, g.Nodes())
}

func TestGraph_DuplicateInsertPanics(t *testing.T) {
	g := New(nil)
	id := debuginfo.TypeID{EntryOffset: 1}
	g.insert(id, debuginfo.Bool)
	assert.Panics(t, func() { g.insert(id, debuginfo.Bool) })
}
