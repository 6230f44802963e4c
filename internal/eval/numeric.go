package eval

import (
	"context"
	"math"
	"strconv"

	"github.com/pklrun/pkl/internal/ast"
	"github.com/pklrun/pkl/internal/perrors"
	"github.com/pklrun/pkl/internal/value"
)

func (e *Evaluator) evalInt(digits string) (value.Value, error) {
	i, err := strconv.ParseInt(digits, 0, 64)
	if err != nil {
		return value.Value{}, perrors.Newf(perrors.Arithmetic, "integer literal out of range: %s", digits)
	}
	return value.Int(i), nil
}

func (e *Evaluator) evalFloat(digits string) (value.Value, error) {
	f, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return value.Value{}, perrors.Newf(perrors.TypeErr, "invalid float literal: %s", digits)
	}
	return value.Float(f), nil
}

func (e *Evaluator) evalUnaryMinus(ctx context.Context, n *ast.UnaryMinus, env *Env, recv Receiver) (value.Value, error) {
	v, err := e.Eval(ctx, n.Expr, env, recv)
	if err != nil {
		return value.Value{}, err
	}
	switch v.Kind {
	case value.KindInt:
		if v.Int == math.MinInt64 {
			return value.Value{}, perrors.New(perrors.Arithmetic, "integer overflow")
		}
		return value.Int(-v.Int), nil
	case value.KindFloat:
		return value.Float(-v.Float), nil
	default:
		return value.Value{}, perrors.Newf(perrors.TypeErr, "cannot negate %s", v.Kind)
	}
}

// evalBinaryOp implements the closed operator set of spec §4.4: integer
// arithmetic on i64 with overflow detection, truncated-toward-zero
// integer division, Euclidean-sign `mod`, IEEE-754 float arithmetic with
// +0.0 == -0.0 and NaN != NaN, int/float promotion, same-dimension
// Duration/DataSize arithmetic, and the short-circuiting/structural
// operators (&&, ||, ??, ==, !=, comparisons, is, as handled via
// TypeCheck/TypeCast nodes).
func (e *Evaluator) evalBinaryOp(ctx context.Context, n *ast.BinaryOp, env *Env, recv Receiver) (value.Value, error) {
	switch n.Op {
	case ast.OpAnd:
		l, err := e.Eval(ctx, n.Left, env, recv)
		if err != nil {
			return value.Value{}, err
		}
		if !truthy(l) {
			return value.Bool(false), nil
		}
		r, err := e.Eval(ctx, n.Right, env, recv)
		if err != nil {
			return value.Value{}, err
		}
		return value.Bool(truthy(r)), nil
	case ast.OpOr:
		l, err := e.Eval(ctx, n.Left, env, recv)
		if err != nil {
			return value.Value{}, err
		}
		if truthy(l) {
			return value.Bool(true), nil
		}
		r, err := e.Eval(ctx, n.Right, env, recv)
		if err != nil {
			return value.Value{}, err
		}
		return value.Bool(truthy(r)), nil
	case ast.OpCoalesce:
		l, err := e.Eval(ctx, n.Left, env, recv)
		if err != nil {
			return value.Value{}, err
		}
		if !l.IsNull() {
			return l, nil
		}
		return e.Eval(ctx, n.Right, env, recv)
	}

	l, err := e.Eval(ctx, n.Left, env, recv)
	if err != nil {
		return value.Value{}, err
	}
	r, err := e.Eval(ctx, n.Right, env, recv)
	if err != nil {
		return value.Value{}, err
	}

	switch n.Op {
	case ast.OpEq:
		return value.Bool(value.Equal(l, r)), nil
	case ast.OpNeq:
		return value.Bool(!value.Equal(l, r)), nil
	case ast.OpLt, ast.OpLe, ast.OpGt, ast.OpGe:
		return e.compare(l, r, n.Op)
	case ast.OpPipe: // |> : pipe l into function r
		if r.Kind != value.KindFunction {
			return value.Value{}, perrors.New(perrors.TypeErr, "right side of |> must be a function")
		}
		return e.callFunction(ctx, r.Fn, []value.Value{l})
	}

	return e.arith(l, r, n.Op)
}

func (e *Evaluator) compare(l, r value.Value, op ast.BinOp) (value.Value, error) {
	lf, lok := numericFloat(l)
	rf, rok := numericFloat(r)
	if !lok || !rok {
		if l.Kind == value.KindString && r.Kind == value.KindString {
			var b bool
			switch op {
			case ast.OpLt:
				b = l.Str < r.Str
			case ast.OpLe:
				b = l.Str <= r.Str
			case ast.OpGt:
				b = l.Str > r.Str
			case ast.OpGe:
				b = l.Str >= r.Str
			}
			return value.Bool(b), nil
		}
		return value.Value{}, perrors.Newf(perrors.TypeErr, "cannot compare %s and %s", l.Kind, r.Kind)
	}
	var b bool
	switch op {
	case ast.OpLt:
		b = lf < rf
	case ast.OpLe:
		b = lf <= rf
	case ast.OpGt:
		b = lf > rf
	case ast.OpGe:
		b = lf >= rf
	}
	return value.Bool(b), nil
}

func numericFloat(v value.Value) (float64, bool) {
	switch v.Kind {
	case value.KindInt:
		return float64(v.Int), true
	case value.KindFloat:
		return v.Float, true
	default:
		return 0, false
	}
}

// arith implements +, -, *, /, intDiv, mod, ** over Int, the same
// except intDiv over Float and mixed Int/Float, + and - over
// same-dimension Duration/DataSize, and + concatenation of Strings, per
// §4.4. Listing operands are not supported.
func (e *Evaluator) arith(l, r value.Value, op ast.BinOp) (value.Value, error) {
	if op == ast.OpAdd && l.Kind == value.KindString && r.Kind == value.KindString {
		return value.String(l.Str + r.Str), nil
	}
	if l.Kind == value.KindDuration && r.Kind == value.KindDuration {
		return e.durationArith(l.Dur, r.Dur, op)
	}
	if l.Kind == value.KindDataSize && r.Kind == value.KindDataSize {
		return e.dataSizeArith(l.Size, r.Size, op)
	}
	if l.Kind == value.KindInt && r.Kind == value.KindInt {
		return e.intArith(l.Int, r.Int, op)
	}
	lf, lok := numericFloat(l)
	rf, rok := numericFloat(r)
	if lok && rok {
		return e.floatArith(lf, rf, op)
	}
	return value.Value{}, perrors.Newf(perrors.TypeErr, "unsupported operands for %s: %s, %s", op, l.Kind, r.Kind)
}

func (e *Evaluator) intArith(l, r int64, op ast.BinOp) (value.Value, error) {
	switch op {
	case ast.OpAdd:
		sum := l + r
		if (r > 0 && sum < l) || (r < 0 && sum > l) {
			return value.Value{}, perrors.New(perrors.Arithmetic, "integer overflow")
		}
		return value.Int(sum), nil
	case ast.OpSub:
		diff := l - r
		if (r < 0 && diff < l) || (r > 0 && diff > l) {
			return value.Value{}, perrors.New(perrors.Arithmetic, "integer overflow")
		}
		return value.Int(diff), nil
	case ast.OpMul:
		if l == 0 || r == 0 {
			return value.Int(0), nil
		}
		prod := l * r
		if prod/r != l {
			return value.Value{}, perrors.New(perrors.Arithmetic, "integer overflow")
		}
		return value.Int(prod), nil
	case ast.OpDiv:
		if r == 0 {
			return value.Value{}, perrors.New(perrors.Arithmetic, "division by zero")
		}
		return value.Float(float64(l) / float64(r)), nil
	case ast.OpIntDiv:
		if r == 0 {
			return value.Value{}, perrors.New(perrors.Arithmetic, "division by zero")
		}
		return value.Int(l / r), nil // truncated toward zero, Go's native behavior
	case ast.OpMod:
		if r == 0 {
			return value.Value{}, perrors.New(perrors.Arithmetic, "division by zero")
		}
		m := l % r
		if m != 0 && (m < 0) != (r < 0) {
			m += r
		}
		return value.Int(m), nil
	case ast.OpPow:
		if r < 0 {
			return value.Float(math.Pow(float64(l), float64(r))), nil
		}
		result := int64(1)
		base := l
		exp := r
		for exp > 0 {
			if exp&1 == 1 {
				next := result * base
				if base != 0 && next/base != result {
					return value.Value{}, perrors.New(perrors.Arithmetic, "integer overflow")
				}
				result = next
			}
			exp >>= 1
			if exp > 0 {
				next := base * base
				if base != 0 && next/base != base {
					return value.Value{}, perrors.New(perrors.Arithmetic, "integer overflow")
				}
				base = next
			}
		}
		return value.Int(result), nil
	default:
		return value.Value{}, perrors.Newf(perrors.TypeErr, "unsupported integer operator %s", op)
	}
}

func (e *Evaluator) floatArith(l, r float64, op ast.BinOp) (value.Value, error) {
	switch op {
	case ast.OpAdd:
		return value.Float(l + r), nil
	case ast.OpSub:
		return value.Float(l - r), nil
	case ast.OpMul:
		return value.Float(l * r), nil
	case ast.OpDiv:
		return value.Float(l / r), nil
	case ast.OpMod:
		return value.Float(math.Mod(l, r)), nil
	case ast.OpPow:
		return value.Float(math.Pow(l, r)), nil
	default:
		return value.Value{}, perrors.Newf(perrors.TypeErr, "unsupported float operator %s", op)
	}
}

func (e *Evaluator) durationArith(l, r value.Duration, op ast.BinOp) (value.Value, error) {
	ls, rs := l.Seconds(), r.Seconds()
	var result float64
	switch op {
	case ast.OpAdd:
		result = ls + rs
	case ast.OpSub:
		result = ls - rs
	default:
		return value.Value{}, perrors.Newf(perrors.TypeErr, "unsupported Duration operator %s", op)
	}
	return value.FromDuration(value.Duration{Value: result, Unit: value.Seconds}.ConvertTo(l.Unit)), nil
}

func (e *Evaluator) dataSizeArith(l, r value.DataSize, op ast.BinOp) (value.Value, error) {
	lb, rb := l.Bytes(), r.Bytes()
	var result float64
	switch op {
	case ast.OpAdd:
		result = lb + rb
	case ast.OpSub:
		result = lb - rb
	default:
		return value.Value{}, perrors.Newf(perrors.TypeErr, "unsupported DataSize operator %s", op)
	}
	return value.FromDataSize(value.DataSize{Value: result, Unit: value.Bytes}.ConvertTo(l.Unit)), nil
}
