package eval

import (
	"testing"

	"github.com/pklrun/pkl/internal/ast"
	"github.com/pklrun/pkl/internal/value"
	"github.com/stretchr/testify/assert"
)

func TestSatisfiesDeclaredPrimitives(t *testing.T) {
	assert.True(t, satisfiesDeclared(value.Int(1), "Int"))
	assert.True(t, satisfiesDeclared(value.Float(1.5), "Number"))
	assert.True(t, satisfiesDeclared(value.Int(1), "Number"))
	assert.False(t, satisfiesDeclared(value.String("x"), "Int"))
	assert.True(t, satisfiesDeclared(value.Null(), "Null"))
	assert.True(t, satisfiesDeclared(value.String("anything"), "Any"))
}

func TestSatisfiesDeclaredNamedClassFallsBackToClassName(t *testing.T) {
	obj := value.NewObject(value.KindTyped, "Person")
	assert.True(t, satisfiesDeclared(value.FromObject(obj), "Person"))
	assert.False(t, satisfiesDeclared(value.FromObject(obj), "Animal"))
}

func TestSatisfiesTypeNullable(t *testing.T) {
	typ := &ast.Nullable{Inner: &ast.Declared{Name: ast.QualifiedName{"Int"}}}
	assert.True(t, satisfiesType(value.Null(), typ))
	assert.True(t, satisfiesType(value.Int(1), typ))
	assert.False(t, satisfiesType(value.String("x"), typ))
}

func TestSatisfiesTypeUnion(t *testing.T) {
	typ := &ast.Union{
		Left:  &ast.Declared{Name: ast.QualifiedName{"Int"}},
		Right: &ast.Declared{Name: ast.QualifiedName{"String"}},
	}
	assert.True(t, satisfiesType(value.Int(1), typ))
	assert.True(t, satisfiesType(value.String("x"), typ))
	assert.False(t, satisfiesType(value.Bool(true), typ))
}

func TestSatisfiesTypeUnknownAndNothing(t *testing.T) {
	assert.True(t, satisfiesType(value.Int(1), &ast.UnknownType{}))
	assert.False(t, satisfiesType(value.Int(1), &ast.NothingType{}))
}

func TestSatisfiesTypeStringConstant(t *testing.T) {
	typ := &ast.StringConstantType{Text: "red"}
	assert.True(t, satisfiesType(value.String("red"), typ))
	assert.False(t, satisfiesType(value.String("blue"), typ))
}
