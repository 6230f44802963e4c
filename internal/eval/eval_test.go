package eval

import (
	"context"
	"testing"
	"time"

	"github.com/pklrun/pkl/internal/parser"
	"github.com/pklrun/pkl/internal/value"
	"github.com/stretchr/testify/require"
)

// noopLoader fails any import/resource access; the scenarios below are
// all self-contained single modules.
type noopLoader struct{}

func (noopLoader) LoadModule(ctx context.Context, uri string, isGlob bool) (value.Value, error) {
	return value.Value{}, errNotSupported{}
}
func (noopLoader) ReadResource(ctx context.Context, uri string, isGlob bool) (value.Value, error) {
	return value.Value{}, errNotSupported{}
}

type errNotSupported struct{}

func (errNotSupported) Error() string { return "not supported in test loader" }

func evalModule(t *testing.T, src string) (*value.Object, *Evaluator) {
	t.Helper()
	m, errs := parser.Parse(src)
	require.Empty(t, errs, "parse errors: %v", errs)
	ev := NewEvaluator(noopLoader{}, time.Time{})
	obj, err := ev.EvaluateModule(context.Background(), "repl:text", m)
	require.NoError(t, err)
	return obj, ev
}

// Scenario 1: lazy amendment + super — a subclass property referencing
// super.x through its parent class's own default value.
func TestSuperAccessThroughClassInstantiation(t *testing.T) {
	src := `
open class A {
  x: Int = 1
}
class B extends A {
  x = super.x + 10
}
out = new B {}.x
`
	obj, _ := evalModule(t, src)
	v, err := obj.GetProperty("out")
	require.NoError(t, err)
	require.Equal(t, value.KindInt, v.Kind)
	require.Equal(t, int64(11), v.Int)
}

// Scenario 2: listing delete renumbering — deleting index 1 of a
// three-element Dynamic listing shifts the third element into its place.
func TestListingDeleteRenumbers(t *testing.T) {
	src := `
src = new Dynamic {
  "foo"
  "bar"
  "baz"
} {
  [1] = delete
}
out = src[1]
`
	obj, _ := evalModule(t, src)
	v, err := obj.GetProperty("out")
	require.NoError(t, err)
	require.Equal(t, value.KindString, v.Kind)
	require.Equal(t, "baz", v.Str)
}

// Scenario 3: cycle detection — a property cycle across three names
// forces a CycleError with the spec's exact banner text.
func TestCycleDetection(t *testing.T) {
	src := `
a = b
b = c
c = a
`
	obj, _ := evalModule(t, src)
	_, err := obj.GetProperty("a")
	require.Error(t, err)
	require.Contains(t, err.Error(), "A stack overflow occurred.")
}

// Scenario 7: toDynamic() erases type — amending a property that a
// Typed class never declared is a TypeError, but the same amendment
// against a toDynamic() copy succeeds.
func TestToDynamicErasesTypeSchema(t *testing.T) {
	srcRejected := `
class A {
  x: Int = 1
}
out = (new A {}) {
  y = 2
}
`
	rejected, _ := evalModule(t, srcRejected)
	_, err := rejected.GetProperty("out")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not defined on class")

	srcAllowed := `
class A {
  x: Int = 1
}
out = (new A {}.toDynamic()) {
  y = 2
}
out2 = out.y
`
	allowed, _ := evalModule(t, srcAllowed)
	v, err := allowed.GetProperty("out2")
	require.NoError(t, err)
	require.Equal(t, int64(2), v.Int)
}

// Amending a Dynamic object with a brand-new property never triggers
// the Typed-schema restriction.
func TestDynamicAmendmentAllowsNewProperties(t *testing.T) {
	src := `
base = new Dynamic { a = 1 }
out = (base) { b = 2 }
outA = out.a
outB = out.b
`
	obj, _ := evalModule(t, src)
	a, err := obj.GetProperty("outA")
	require.NoError(t, err)
	require.Equal(t, int64(1), a.Int)
	b, err := obj.GetProperty("outB")
	require.NoError(t, err)
	require.Equal(t, int64(2), b.Int)
}

// A property amendment that violates its class-declared type produces
// a TypeError rather than silently installing the wrong-typed value.
func TestAmendmentTypeCheckRejectsWrongType(t *testing.T) {
	src := `
class A {
  x: Int = 1
}
out = (new A {}) {
  x = "not an int"
}
v = out.x
`
	obj, _ := evalModule(t, src)
	_, err := obj.GetProperty("v")
	require.Error(t, err)
	require.Contains(t, err.Error(), "does not satisfy its declared type")
}

// y and z both read the lazily evaluated x and see the same value, 2.
// The test checks the values only; it does not count how often x is
// forced.
func TestLazyEvaluationMemoizes(t *testing.T) {
	src := `
x = 1 + 1
y = x
z = x
`
	obj, _ := evalModule(t, src)
	v1, err := obj.GetProperty("y")
	require.NoError(t, err)
	v2, err := obj.GetProperty("z")
	require.NoError(t, err)
	require.Equal(t, v1.Int, v2.Int)
	require.Equal(t, int64(2), v1.Int)
}

// A class method referencing `this.x` resolves against the receiving
// object, not an empty receiver chain.
func TestMethodCallBindsThis(t *testing.T) {
	src := `
class A {
  x: Int = 5
  function doubled(): Int = this.x * 2
}
out = (new A {}).doubled()
`
	obj, _ := evalModule(t, src)
	v, err := obj.GetProperty("out")
	require.NoError(t, err)
	require.Equal(t, value.KindInt, v.Kind)
	require.Equal(t, int64(10), v.Int)
}

// Deleting a property on an amendment removes it from that object while
// leaving unshadowed sibling properties reachable through the chain.
func TestPropertyDeleteTombstonesMember(t *testing.T) {
	src := `
base = new Dynamic { a = 1; b = 2 }
child = (base) { a = delete }
b = child.b
`
	obj, _ := evalModule(t, src)
	b, err := obj.GetProperty("b")
	require.NoError(t, err)
	require.Equal(t, int64(2), b.Int)

	child, err := obj.GetProperty("child")
	require.NoError(t, err)
	require.Equal(t, value.KindObject, child.Kind)
	_, err = child.Obj.GetProperty("a")
	require.Error(t, err)
	require.Contains(t, err.Error(), "does not have a property named")
}

// A member predicate matching more than one element in a single pass must
// delete/replace by each element's original position, not a live sequence
// that shrinks out from under later iterations as earlier matches in the
// same pass land (§4.5 rule 7).
func TestMemberPredicateMultiMatchUsesSnapshotPositions(t *testing.T) {
	src := `
src = new Dynamic { 1; 2; 3; 4 } {
  [[it > 1]] = delete
}
out0 = src[0]
len = src.length
`
	obj, _ := evalModule(t, src)
	out0, err := obj.GetProperty("out0")
	require.NoError(t, err)
	require.Equal(t, int64(1), out0.Int)

	length, err := obj.GetProperty("len")
	require.NoError(t, err)
	require.Equal(t, int64(1), length.Int)
}

// A member predicate that replaces (rather than deletes) more than one
// matching element must install each replacement at its own original
// position, in source order.
func TestMemberPredicateMultiMatchReplace(t *testing.T) {
	src := `
src = new Dynamic { 1; 2; 3; 4 } {
  [[it > 1]] = it * 100
}
out1 = src[1]
out2 = src[2]
out3 = src[3]
`
	obj, _ := evalModule(t, src)
	for name, want := range map[string]int64{"out1": 200, "out2": 300, "out3": 400} {
		v, err := obj.GetProperty(name)
		require.NoError(t, err)
		require.Equal(t, want, v.Int, name)
	}
}
