package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpanContains(t *testing.T) {
	outer := Span{CharIndex: 0, Length: 10}
	inner := Span{CharIndex: 2, Length: 4}
	assert.True(t, outer.Contains(inner))
	assert.False(t, inner.Contains(outer))
	assert.Equal(t, uint64(10), outer.End())
}

func TestLineIndexResolve(t *testing.T) {
	src := "abc\ndef\nghi"
	li := NewLineIndex("test.pkl", src)
	pos := li.Resolve(0)
	assert.Equal(t, 1, pos.Line)
	assert.Equal(t, 1, pos.Column)

	pos = li.Resolve(4) // 'd'
	assert.Equal(t, 2, pos.Line)
	assert.Equal(t, 1, pos.Column)

	pos = li.Resolve(9) // 'h'
	assert.Equal(t, 3, pos.Line)
	assert.Equal(t, 2, pos.Column)
}

// Link must give every non-root node exactly one parent, and that
// parent's span must nest the child's — the CST invariant of §3.2.
func TestLinkSetsParentPointers(t *testing.T) {
	left := &IntLit{Base: NewBase(Span{CharIndex: 0, Length: 1}), Digits: "1"}
	right := &IntLit{Base: NewBase(Span{CharIndex: 4, Length: 1}), Digits: "2"}
	bin := &BinaryOp{Base: NewBase(Span{CharIndex: 0, Length: 5}), Op: OpAdd, Left: left, Right: right}
	prop := &ClassPropertyExpr{Base: NewBase(Span{CharIndex: 0, Length: 5}), Name: "x", Expr: bin}
	mod := &Module{Base: NewBase(Span{CharIndex: 0, Length: 5}), Entries: []ModuleEntry{prop}}

	Link(mod)

	require.Nil(t, mod.Parent())
	require.Equal(t, Node(mod), prop.Parent())
	require.Equal(t, Node(prop), bin.Parent())
	require.Equal(t, Node(bin), left.Parent())
	require.Equal(t, Node(bin), right.Parent())

	assert.True(t, prop.Span().Contains(bin.Span()))
	assert.True(t, bin.Span().Contains(left.Span()))
	assert.True(t, bin.Span().Contains(right.Span()))
}

func TestChildrenOfDeleteMarkerIsEmpty(t *testing.T) {
	d := &DeleteMarker{Base: NewBase(Span{})}
	assert.Empty(t, Children(d))
}

func TestQualifiedNameString(t *testing.T) {
	q := QualifiedName{"pkl", "base", "Duration"}
	assert.Equal(t, "pkl.base.Duration", q.String())
}
