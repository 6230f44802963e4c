package eval

import (
	"context"
	"fmt"
	"time"

	"github.com/pklrun/pkl/internal/ast"
	"github.com/pklrun/pkl/internal/perrors"
	"github.com/pklrun/pkl/internal/value"
)

// ModuleLoader resolves an import URI to its exported module object. The
// concrete implementation (internal/resolve) is injected so this package
// never imports the resolver — it only needs the contract of spec §4.1's
// resolve(uri) -> compiled module pipeline.
type ModuleLoader interface {
	LoadModule(ctx context.Context, uri string, isGlob bool) (value.Value, error)
	ReadResource(ctx context.Context, uri string, isGlob bool) (value.Value, error)
}

// Evaluator is one single-threaded cooperative evaluation instance (spec
// §4.4, §5). Evaluators may run concurrently with each other but never
// share mutable state; the deadline is checked at every expression step
// and at every I/O suspension point.
type Evaluator struct {
	Loader   ModuleLoader
	Deadline time.Time // zero means no deadline
	steps    int64

	closed bool

	// Classes holds every Clazz declaration seen across modules evaluated
	// by this Evaluator, keyed by simple name, so `new ClassName {}` can
	// build the class's default-instance inheritance chain (spec §4.5
	// scenario 1). Cross-module name collisions resolve to whichever
	// module was evaluated last.
	Classes map[string]*ast.Clazz
}

func NewEvaluator(loader ModuleLoader, deadline time.Time) *Evaluator {
	return &Evaluator{Loader: loader, Deadline: deadline}
}

// Close signals cancellation; any in-flight Eval call completes or
// aborts, and every subsequent call fails with "closed" (spec §5,
// scenario 8). Values already returned remain valid.
func (e *Evaluator) Close() {
	e.closed = true
}

func (e *Evaluator) checkBudget() error {
	if e.closed {
		return perrors.New(perrors.IO, "the evaluator has been closed")
	}
	e.steps++
	if !e.Deadline.IsZero() && time.Now().After(e.Deadline) {
		return perrors.New(perrors.Timeout, "evaluation timed out")
	}
	return nil
}

// Eval evaluates expr in lexical environment env with receiver chain
// recv, per the contract in spec §4.4.
func (e *Evaluator) Eval(ctx context.Context, expr ast.Expr, env *Env, recv Receiver) (value.Value, error) {
	if err := e.checkBudget(); err != nil {
		return value.Value{}, err
	}
	select {
	case <-ctx.Done():
		return value.Value{}, perrors.New(perrors.Timeout, "evaluation timed out")
	default:
	}

	switch n := expr.(type) {
	case *ast.This:
		return fromObjectOrNull(recv.This()), nil
	case *ast.Outer:
		return fromObjectOrNull(recv.Outer()), nil
	case *ast.ModuleRef:
		return fromObjectOrNull(recv.Module()), nil
	case *ast.NullLit:
		return value.Null(), nil
	case *ast.BoolLit:
		return value.Bool(n.Value), nil
	case *ast.IntLit:
		return e.evalInt(n.Digits)
	case *ast.FloatLit:
		return e.evalFloat(n.Digits)
	case *ast.StringConstant:
		return value.String(n.Text), nil
	case *ast.InterpolatedString:
		return e.evalInterpolated(ctx, n, env, recv)
	case *ast.Parenthesized:
		return e.Eval(ctx, n.Expr, env, recv)
	case *ast.UnaryMinus:
		return e.evalUnaryMinus(ctx, n, env, recv)
	case *ast.LogicalNot:
		v, err := e.Eval(ctx, n.Expr, env, recv)
		if err != nil {
			return value.Value{}, err
		}
		return value.Bool(!truthy(v)), nil
	case *ast.NonNull:
		v, err := e.Eval(ctx, n.Expr, env, recv)
		if err != nil {
			return value.Value{}, err
		}
		if v.IsNull() {
			return value.Value{}, perrors.New(perrors.TypeErr, "expected non-null value but got null")
		}
		return v, nil
	case *ast.BinaryOp:
		return e.evalBinaryOp(ctx, n, env, recv)
	case *ast.If:
		cond, err := e.Eval(ctx, n.Cond, env, recv)
		if err != nil {
			return value.Value{}, err
		}
		if truthy(cond) {
			return e.Eval(ctx, n.Then, env, recv)
		}
		return e.Eval(ctx, n.Else, env, recv)
	case *ast.Let:
		bound, err := e.Eval(ctx, n.Binding, env, recv)
		if err != nil {
			return value.Value{}, err
		}
		return e.Eval(ctx, n.Body, env.Extend(n.Param.Name, bound), recv)
	case *ast.FunctionLiteral:
		params := make([]string, len(n.Params))
		for i, p := range n.Params {
			params[i] = p.Name
		}
		return value.Value{Kind: value.KindFunction, Fn: &value.FunctionVal{
			Params: params, Body: n.Body, Env: env, Recv: recv,
		}}, nil
	case *ast.Throw:
		v, err := e.Eval(ctx, n.Expr, env, recv)
		if err != nil {
			return value.Value{}, err
		}
		return value.Value{}, perrors.New(perrors.User, v.String())
	case *ast.Trace:
		v, err := e.Eval(ctx, n.Expr, env, recv)
		if err != nil {
			return value.Value{}, err
		}
		fmt.Printf("trace: %s\n", v.String())
		return v, nil
	case *ast.UnqualifiedAccess:
		return e.evalUnqualified(ctx, n, env, recv)
	case *ast.QualifiedAccess:
		return e.evalQualified(ctx, n, env, recv)
	case *ast.SuperAccess:
		parent := recv.This().Parent
		if parent == nil {
			return value.Value{}, perrors.New(perrors.Name, "no superclass member available")
		}
		return e.callOrGet(ctx, parent, n.Name, n.Args, env, recv)
	case *ast.Subscript:
		return e.evalSubscript(ctx, n, env, recv)
	case *ast.New:
		return e.evalNew(ctx, n, env, recv)
	case *ast.Amends:
		base, err := e.Eval(ctx, n.Expr, env, recv)
		if err != nil {
			return value.Value{}, err
		}
		if base.Kind != value.KindObject {
			return value.Value{}, perrors.New(perrors.TypeErr, "amends target must be an object")
		}
		return e.Amend(ctx, base.Obj, n.Body, env, recv)
	case *ast.ImportExpr:
		return e.Loader.LoadModule(ctx, n.Path, n.IsGlob)
	case *ast.Read:
		v, err := e.Eval(ctx, n.Expr, env, recv)
		if err != nil {
			return value.Value{}, err
		}
		return e.Loader.ReadResource(ctx, v.Str, false)
	case *ast.ReadGlob:
		v, err := e.Eval(ctx, n.Expr, env, recv)
		if err != nil {
			return value.Value{}, err
		}
		return e.Loader.ReadResource(ctx, v.Str, true)
	case *ast.ReadNull:
		v, err := e.Eval(ctx, n.Expr, env, recv)
		if err != nil {
			return value.Value{}, err
		}
		res, err := e.Loader.ReadResource(ctx, v.Str, false)
		if err != nil {
			return value.Null(), nil
		}
		return res, nil
	case *ast.TypeCheck:
		v, err := e.Eval(ctx, n.Expr, env, recv)
		if err != nil {
			return value.Value{}, err
		}
		return value.Bool(satisfiesType(v, n.Type)), nil
	case *ast.TypeCast:
		v, err := e.Eval(ctx, n.Expr, env, recv)
		if err != nil {
			return value.Value{}, err
		}
		if !satisfiesType(v, n.Type) {
			return value.Value{}, perrors.New(perrors.TypeErr, "value does not satisfy cast type")
		}
		return v, nil
	default:
		return value.Value{}, perrors.Newf(perrors.TypeErr, "unsupported expression node %T", expr)
	}
}

func fromObjectOrNull(o *value.Object) value.Value {
	if o == nil {
		return value.Null()
	}
	return value.FromObject(o)
}

func truthy(v value.Value) bool {
	return v.Kind == value.KindBool && v.Bool
}

// callOrGet resolves name on obj either as a zero/positional-arg method
// call (when args != nil) or as a property access (when args == nil),
// binding `this` to obj per spec §4.4.
func (e *Evaluator) callOrGet(ctx context.Context, obj *value.Object, name string, args []ast.Expr, env *Env, recv Receiver) (value.Value, error) {
	if args == nil {
		return obj.GetProperty(name)
	}
	if !obj.HasProperty(name) {
		return value.Value{}, perrors.Newf(perrors.Name, "method `%s` not found", name)
	}
	m, err := obj.GetProperty(name)
	if err != nil {
		return value.Value{}, err
	}
	if m.Kind != value.KindFunction {
		return value.Value{}, perrors.Newf(perrors.TypeErr, "`%s` is not a method", name)
	}
	vals, err := e.evalArgs(ctx, args, env, recv)
	if err != nil {
		return value.Value{}, err
	}
	return e.callFunction(ctx, m.Fn, vals)
}
