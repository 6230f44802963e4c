package parser

import (
	"testing"

	"github.com/pklrun/pkl/internal/ast"
	"github.com/stretchr/testify/require"
)

func TestParseSimpleModuleProperties(t *testing.T) {
	m, errs := Parse(`
name = "hello"
count = 1 + 2
`)
	require.Empty(t, errs)
	require.Len(t, m.Entries, 2)

	p0, ok := m.Entries[0].(*ast.ClassPropertyExpr)
	require.True(t, ok)
	require.Equal(t, "name", p0.Name)

	p1, ok := m.Entries[1].(*ast.ClassPropertyExpr)
	require.True(t, ok)
	require.Equal(t, "count", p1.Name)
	_, ok = p1.Expr.(*ast.BinaryOp)
	require.True(t, ok)
}

func TestParseClassWithExtends(t *testing.T) {
	m, errs := Parse(`
open class A {
  x: Int = 1
}
class B extends A {
  y = 2
}
`)
	require.Empty(t, errs)
	require.Len(t, m.Entries, 2)

	a, ok := m.Entries[0].(*ast.Clazz)
	require.True(t, ok)
	require.Equal(t, "A", a.Name)
	require.Contains(t, a.Modifiers, ast.ModOpen)

	b, ok := m.Entries[1].(*ast.Clazz)
	require.True(t, ok)
	require.Equal(t, "B", b.Name)
	require.Equal(t, ast.QualifiedName{"A"}, b.SuperClass)
}

func TestParseDeletePropertyAssignment(t *testing.T) {
	m, errs := Parse(`
base = new Dynamic { a = 1 }
child = (base) { a = delete }
`)
	require.Empty(t, errs)
	require.Len(t, m.Entries, 2)

	childEntry, ok := m.Entries[1].(*ast.ClassPropertyExpr)
	require.True(t, ok)
	amends, ok := childEntry.Expr.(*ast.Amends)
	require.True(t, ok)
	require.Len(t, amends.Body.Members, 1)

	member, ok := amends.Body.Members[0].(*ast.ObjectProperty)
	require.True(t, ok)
	require.Equal(t, "a", member.Name)
	_, isDelete := member.Expr.(*ast.DeleteMarker)
	require.True(t, isDelete, "`a = delete` must produce a DeleteMarker, not an identifier reference")
}

// `delete` used as an ordinary identifier (e.g. a property/method access
// chained off it) must not be treated as the delete sentinel.
func TestDeleteAsOrdinaryIdentifierIsNotASentinel(t *testing.T) {
	m, errs := Parse(`
out = delete.length
`)
	require.Empty(t, errs)
	require.Len(t, m.Entries, 1)

	outEntry, ok := m.Entries[0].(*ast.ClassPropertyExpr)
	require.True(t, ok)
	q, ok := outEntry.Expr.(*ast.QualifiedAccess)
	require.True(t, ok, "`delete.length` must parse as a qualified access, not a DeleteMarker")
	_, isDelete := q.Receiver.(*ast.DeleteMarker)
	require.False(t, isDelete)
	_, isIdent := q.Receiver.(*ast.UnqualifiedAccess)
	require.True(t, isIdent, "delete followed by `.` must resolve to a plain identifier reference")
}

func TestParseSubscriptDeleteEntry(t *testing.T) {
	m, errs := Parse(`
src = new Dynamic { "foo"; "bar" } { [0] = delete }
`)
	require.Empty(t, errs)
	require.Len(t, m.Entries, 1)

	entry, ok := m.Entries[0].(*ast.ClassPropertyExpr)
	require.True(t, ok)
	amends, ok := entry.Expr.(*ast.Amends)
	require.True(t, ok)
	require.Len(t, amends.Body.Members, 1)

	objEntry, ok := amends.Body.Members[0].(*ast.ObjectEntry)
	require.True(t, ok)
	_, isDelete := objEntry.Value.(*ast.DeleteMarker)
	require.True(t, isDelete)
}

func TestParseObjectElements(t *testing.T) {
	m, errs := Parse(`
items = new Listing { 1; 2; 3 }
`)
	require.Empty(t, errs)
	entry, ok := m.Entries[0].(*ast.ClassPropertyExpr)
	require.True(t, ok)
	n, ok := entry.Expr.(*ast.New)
	require.True(t, ok)
	require.Len(t, n.Body.Members, 3)
	for _, mem := range n.Body.Members {
		_, ok := mem.(*ast.ObjectElement)
		require.True(t, ok)
	}
}
