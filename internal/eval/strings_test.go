package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringInterpolationConcatenatesPartsInOrder(t *testing.T) {
	obj, _ := evalModule(t, `
name = "world"
x = "hello \(name), 1 + 1 = \(1 + 1)"
`)
	v, err := obj.GetProperty("x")
	require.NoError(t, err)
	assert.Equal(t, "hello world, 1 + 1 = 2", v.Str)
}

func TestObjectToStringRendersPropertyList(t *testing.T) {
	obj, _ := evalModule(t, `
a = new Dynamic { x = 1; y = 2 }
s = "\(a)"
`)
	v, err := obj.GetProperty("s")
	require.NoError(t, err)
	assert.Contains(t, v.Str, "x = 1")
	assert.Contains(t, v.Str, "y = 2")
}

func TestToStringOnNonStringFallsBackToValueString(t *testing.T) {
	obj, _ := evalModule(t, `x = "n = \(5)"`)
	v, err := obj.GetProperty("x")
	require.NoError(t, err)
	assert.Equal(t, "n = 5", v.Str)
}
