package eval

import (
	"context"
	"strings"

	"github.com/pklrun/pkl/internal/ast"
	"github.com/pklrun/pkl/internal/value"
)

// evalInterpolated evaluates each interpolated expression, calls
// toString on the result, and concatenates with the literal parts in
// source order (spec §4.4 "String semantics"). Multi-line strings have
// already had their common indentation stripped by the parser, which
// computes it from the closing delimiter's column.
func (e *Evaluator) evalInterpolated(ctx context.Context, n *ast.InterpolatedString, env *Env, recv Receiver) (value.Value, error) {
	var b strings.Builder
	for i, lit := range n.Literals {
		b.WriteString(lit)
		if i < len(n.Parts) {
			v, err := e.Eval(ctx, n.Parts[i], env, recv)
			if err != nil {
				return value.Value{}, err
			}
			b.WriteString(ToString(v))
		}
	}
	return value.String(b.String()), nil
}

// ToString is the native fallback for a value's `toString` method, used
// by string interpolation (spec §4.4).
func ToString(v value.Value) string {
	switch v.Kind {
	case value.KindString:
		return v.Str
	case value.KindObject:
		return objectToString(v.Obj)
	default:
		return v.String()
	}
}

func objectToString(o *value.Object) string {
	if o == nil {
		return "null"
	}
	var b strings.Builder
	b.WriteString("new ")
	b.WriteString(o.ClassName)
	b.WriteString(" {")
	for i, name := range o.MaterializedNames() {
		if i > 0 {
			b.WriteString(";")
		}
		v, err := o.GetProperty(name)
		if err == nil {
			b.WriteString(" ")
			b.WriteString(name)
			b.WriteString(" = ")
			b.WriteString(ToString(v))
		}
	}
	b.WriteString(" }")
	return b.String()
}
