package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemberForceMemoizesAndDetectsCycles(t *testing.T) {
	calls := 0
	m := NewThunkMember(Thunk{Eval: func() (Value, error) {
		calls++
		return Int(42), nil
	}}, Modifiers{})

	v1, err := m.Force()
	require.NoError(t, err)
	v2, err := m.Force()
	require.NoError(t, err)
	assert.Equal(t, int64(42), v1.Int)
	assert.Equal(t, int64(42), v2.Int)
	assert.Equal(t, 1, calls, "thunk must only evaluate once across repeated Force calls")

	var cyc *Member
	cyc = NewThunkMember(Thunk{Eval: func() (Value, error) { return cyc.Force() }}, Modifiers{})
	_, err = cyc.Force()
	assert.IsType(t, CycleError{}, err, "re-entering an in-flight member must report a cycle")
}

func TestDeletedMemberForceFails(t *testing.T) {
	m := NewDeletedMember()
	assert.True(t, m.IsDeleted())
	_, err := m.Force()
	assert.Error(t, err)
}

func TestObjectPropertyAmendmentAndDelete(t *testing.T) {
	base := NewObject(KindDynamic, "Dynamic")
	base.SetProperty("a", NewComputedMember(Int(1), Modifiers{}))
	base.SetProperty("b", NewComputedMember(Int(2), Modifiers{}))

	child := NewObject(KindDynamic, "Dynamic")
	child.Parent = base
	child.SetProperty("b", NewComputedMember(Int(20), Modifiers{}))
	child.SetProperty("c", NewComputedMember(Int(3), Modifiers{}))

	a, err := child.GetProperty("a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), a.Int)

	b, err := child.GetProperty("b")
	require.NoError(t, err)
	assert.Equal(t, int64(20), b.Int, "child override must shadow the parent's value")

	names := child.MaterializedNames()
	assert.ElementsMatch(t, []string{"a", "b", "c"}, names)

	child.SetProperty("a", NewDeletedMember())
	assert.False(t, child.HasProperty("a"))
	_, err = child.GetProperty("a")
	assert.Error(t, err)
	assert.NotContains(t, child.MaterializedNames(), "a")
}

func TestElementDeleteRenumbers(t *testing.T) {
	base := NewObject(KindDynamic, "Dynamic")
	base.AppendElement(NewComputedMember(String("foo"), Modifiers{}))
	base.AppendElement(NewComputedMember(String("bar"), Modifiers{}))
	base.AppendElement(NewComputedMember(String("baz"), Modifiers{}))

	child := NewObject(KindDynamic, "Dynamic")
	child.Parent = base
	require.NoError(t, child.DeleteElement(1))

	elems := child.MaterializedElements()
	require.Len(t, elems, 2)
	assert.Equal(t, "foo", elems[0].Str)
	assert.Equal(t, "baz", elems[1].Str, "deleting index 1 shifts baz into its place")

	v, err := child.ElementAt(1)
	require.NoError(t, err)
	assert.Equal(t, "baz", v.Str)

	// The parent's own elements are untouched by the child's override.
	assert.Len(t, base.MaterializedElements(), 3)
}

func TestElementOverridePreservesParentSharedMembers(t *testing.T) {
	base := NewObject(KindDynamic, "Dynamic")
	base.AppendElement(NewComputedMember(Int(1), Modifiers{}))
	base.AppendElement(NewComputedMember(Int(2), Modifiers{}))

	child := NewObject(KindDynamic, "Dynamic")
	child.Parent = base
	require.NoError(t, child.SetElement(0, NewComputedMember(Int(100), Modifiers{})))

	childElems := child.MaterializedElements()
	require.Len(t, childElems, 2)
	assert.Equal(t, int64(100), childElems[0].Int)
	assert.Equal(t, int64(2), childElems[1].Int)

	baseElems := base.MaterializedElements()
	assert.Equal(t, int64(1), baseElems[0].Int, "overriding on the child must not mutate the parent's own element")
}

func TestEntryAmendmentAndDelete(t *testing.T) {
	base := NewObject(KindMapping, "Mapping")
	base.SetEntry(String("x"), NewComputedMember(Int(1), Modifiers{}))
	base.SetEntry(String("y"), NewComputedMember(Int(2), Modifiers{}))

	child := NewObject(KindMapping, "Mapping")
	child.Parent = base
	child.SetEntry(String("y"), NewDeletedMember())

	v, err := child.GetEntry(String("x"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.Int)

	_, err = child.GetEntry(String("y"))
	assert.Error(t, err)

	keys := child.MaterializedEntryKeys()
	require.Len(t, keys, 1)
	assert.Equal(t, "x", keys[0].Str)
}

func TestDeclaredTypeWalksParentChain(t *testing.T) {
	base := NewObject(KindTyped, "A")
	base.SetDeclaredType("x", nil)

	child := NewObject(KindTyped, "A")
	child.Parent = base

	typ, ok := child.DeclaredType("x")
	assert.True(t, ok)
	assert.Nil(t, typ)

	_, ok = child.DeclaredType("y")
	assert.False(t, ok)

	var nilObj *Object
	_, ok = nilObj.DeclaredType("x")
	assert.False(t, ok, "DeclaredType must be nil-receiver safe")
}

func TestEqualComparesObjectsStructurally(t *testing.T) {
	a := NewObject(KindDynamic, "Dynamic")
	a.SetProperty("x", NewComputedMember(Int(1), Modifiers{}))
	b := NewObject(KindDynamic, "Dynamic")
	b.SetProperty("x", NewComputedMember(Int(1), Modifiers{}))

	assert.True(t, Equal(FromObject(a), FromObject(b)))

	c := NewObject(KindDynamic, "Dynamic")
	c.SetProperty("x", NewComputedMember(Int(2), Modifiers{}))
	assert.False(t, Equal(FromObject(a), FromObject(c)))
}

func TestEqualFloatNaNNeverEqual(t *testing.T) {
	nan := Float(nanValue())
	assert.False(t, Equal(nan, nan))
}

func nanValue() float64 {
	var zero float64
	return zero / zero
}

func TestDurationConvertToRoundTrips(t *testing.T) {
	d := Duration{Value: 2, Unit: Hours}
	assert.Equal(t, float64(7200), d.Seconds())

	mins := d.ConvertTo(Minutes)
	assert.Equal(t, Minutes, mins.Unit)
	assert.InDelta(t, 120, mins.Value, 1e-9)

	back := mins.ConvertTo(Hours)
	assert.InDelta(t, 2, back.Value, 1e-9)
}

func TestDataSizeConvertToRoundTrips(t *testing.T) {
	d := DataSize{Value: 1, Unit: MiB}
	assert.InDelta(t, 1048576, d.Bytes(), 1e-9)

	kib := d.ConvertTo(KiB)
	assert.InDelta(t, 1024, kib.Value, 1e-9)

	back := kib.ConvertTo(MiB)
	assert.InDelta(t, 1, back.Value, 1e-9)
}
