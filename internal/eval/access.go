package eval

import (
	"context"

	"github.com/pklrun/pkl/internal/ast"
	"github.com/pklrun/pkl/internal/perrors"
	"github.com/pklrun/pkl/internal/value"
)

// evalUnqualified resolves a bare identifier or zero-arg/positional call
// against, in order: a lexical let/param binding, a property of `this`
// reached via the receiver chain, or a standard-library builtin (spec
// §4.3, §4.6).
func (e *Evaluator) evalUnqualified(ctx context.Context, n *ast.UnqualifiedAccess, env *Env, recv Receiver) (value.Value, error) {
	if n.Args == nil {
		if v, ok := env.Lookup(n.Name); ok {
			return v, nil
		}
		for _, obj := range receiverObjects(recv) {
			if obj != nil && obj.HasProperty(n.Name) {
				return obj.GetProperty(n.Name)
			}
		}
		if v, ok := builtinConstant(n.Name); ok {
			return v, nil
		}
		return value.Value{}, perrors.Newf(perrors.Name, "unresolved reference to `%s`", n.Name)
	}

	args, err := e.evalArgs(ctx, n.Args, env, recv)
	if err != nil {
		return value.Value{}, err
	}
	if v, ok := env.Lookup(n.Name); ok && v.Kind == value.KindFunction {
		return e.callFunction(ctx, v.Fn, args)
	}
	for _, obj := range receiverObjects(recv) {
		if obj != nil && obj.HasProperty(n.Name) {
			m, err := obj.GetProperty(n.Name)
			if err != nil {
				return value.Value{}, err
			}
			if m.Kind == value.KindFunction {
				return e.callFunction(ctx, m.Fn, args)
			}
		}
	}
	return e.callBuiltin(n.Name, args)
}

func receiverObjects(recv Receiver) []*value.Object {
	return recv.chain
}

// evalQualified resolves `recv.name(args?)`, optionally null-propagating
// with `?.` (spec §4.4).
func (e *Evaluator) evalQualified(ctx context.Context, n *ast.QualifiedAccess, env *Env, recv Receiver) (value.Value, error) {
	r, err := e.Eval(ctx, n.Receiver, env, recv)
	if err != nil {
		return value.Value{}, err
	}
	if r.IsNull() {
		if n.IsNullable {
			return value.Null(), nil
		}
		return value.Value{}, perrors.Newf(perrors.TypeErr, "cannot access `%s` on null", n.Name)
	}

	args, err := e.evalArgs(ctx, n.Args, env, recv)
	if err != nil {
		return value.Value{}, err
	}

	if n.Args != nil {
		if m, ok := builtinMethod(r, n.Name, args); ok {
			return m, nil
		}
	}

	if r.Kind == value.KindObject {
		if n.Args == nil {
			return r.Obj.GetProperty(n.Name)
		}
		if !r.Obj.HasProperty(n.Name) {
			return value.Value{}, perrors.Newf(perrors.Name, "method `%s` not found", n.Name)
		}
		m, err := r.Obj.GetProperty(n.Name)
		if err != nil {
			return value.Value{}, err
		}
		if m.Kind != value.KindFunction {
			return value.Value{}, perrors.Newf(perrors.TypeErr, "`%s` is not a method", n.Name)
		}
		return e.callFunction(ctx, m.Fn, args)
	}
	return value.Value{}, perrors.Newf(perrors.TypeErr, "cannot access `%s` on %s", n.Name, r.Kind)
}

func (e *Evaluator) evalArgs(ctx context.Context, exprs []ast.Expr, env *Env, recv Receiver) ([]value.Value, error) {
	if exprs == nil {
		return nil, nil
	}
	out := make([]value.Value, len(exprs))
	for i, a := range exprs {
		v, err := e.Eval(ctx, a, env, recv)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *Evaluator) callFunction(ctx context.Context, fn *value.FunctionVal, args []value.Value) (value.Value, error) {
	env, _ := fn.Env.(*Env)
	for i, p := range fn.Params {
		if i < len(args) {
			env = env.Extend(p, args[i])
		}
	}
	body, ok := fn.Body.(ast.Expr)
	if !ok {
		return value.Value{}, perrors.New(perrors.TypeErr, "malformed function value")
	}
	recv, _ := fn.Recv.(Receiver)
	return e.Eval(ctx, body, env, recv)
}

// evalSubscript evaluates `recv[idx]`: Listing/IntSeq numeric indexing,
// Mapping key lookup, or String/Bytes indexing.
func (e *Evaluator) evalSubscript(ctx context.Context, n *ast.Subscript, env *Env, recv Receiver) (value.Value, error) {
	r, err := e.Eval(ctx, n.Receiver, env, recv)
	if err != nil {
		return value.Value{}, err
	}
	idx, err := e.Eval(ctx, n.Index, env, recv)
	if err != nil {
		return value.Value{}, err
	}
	switch r.Kind {
	case value.KindObject:
		switch r.Obj.Kind {
		case value.KindListing, value.KindDynamic:
			if idx.Kind != value.KindInt {
				return value.Value{}, perrors.New(perrors.TypeErr, "Listing index must be an Int")
			}
			return r.Obj.ElementAt(int(idx.Int))
		case value.KindMapping:
			return r.Obj.GetEntry(idx)
		}
		return value.Value{}, perrors.New(perrors.TypeErr, "value is not subscriptable")
	case value.KindString:
		if idx.Kind != value.KindInt {
			return value.Value{}, perrors.New(perrors.TypeErr, "String index must be an Int")
		}
		runes := []rune(r.Str)
		if idx.Int < 0 || int(idx.Int) >= len(runes) {
			return value.Value{}, perrors.Newf(perrors.TypeErr, "index %d out of range", idx.Int)
		}
		return value.String(string(runes[idx.Int])), nil
	default:
		return value.Value{}, perrors.New(perrors.TypeErr, "value is not subscriptable")
	}
}
