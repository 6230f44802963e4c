package eval

import (
	"context"

	"github.com/pklrun/pkl/internal/ast"
	"github.com/pklrun/pkl/internal/value"
)

// EvaluateModule materializes a parsed module's top-level entries into a
// KindModule Object: the entry point of spec §2's pipeline between
// "CompiledModule" and the exported value. A module amending/extending
// another module (§3.2's ModuleDecl.Extends/Amends) has that module
// loaded through the injected Loader and installed as Parent, so
// unshadowed top-level properties resolve through the same lazy-amend
// machinery as any other object (§4.5).
func (e *Evaluator) EvaluateModule(ctx context.Context, uri string, m *ast.Module) (*value.Object, error) {
	className := "ModuleClass"
	if m.Decl != nil && len(m.Decl.Name) > 0 {
		className = m.Decl.Name.String()
	}
	obj := value.NewObject(value.KindModule, className)

	if m.Decl != nil {
		var parentURI string
		switch {
		case m.Decl.Amends != nil:
			parentURI = m.Decl.Amends.URL
		case m.Decl.Extends != nil:
			parentURI = m.Decl.Extends.URL
		}
		if parentURI != "" {
			parentVal, err := e.Loader.LoadModule(ctx, parentURI, false)
			if err != nil {
				return nil, err
			}
			if parentVal.Kind == value.KindObject {
				obj.Parent = parentVal.Obj
			}
		}
	}

	// At module scope there is no enclosing object: this and module both
	// resolve to the module object itself, and outer is unavailable.
	obj.Receiver = []*value.Object{obj, obj}
	recv := NewReceiver(obj)
	env := NewRootEnv()

	for _, entry := range m.Entries {
		if c, ok := entry.(*ast.Clazz); ok {
			if e.Classes == nil {
				e.Classes = make(map[string]*ast.Clazz)
			}
			e.Classes[c.Name] = c
		}
	}
	for _, entry := range m.Entries {
		e.installModuleEntry(ctx, obj, entry, env, recv)
	}
	return obj, nil
}

// installModuleEntry installs one top-level ModuleEntry as a lazily
// evaluated property of the module object. Clazz/TypeAlias entries are
// type declarations, not value members, and contribute nothing to the
// module object itself — Clazz entries are recorded in Evaluator.Classes
// by simple name (above), where `new` expressions look them up (§4.3).
func (e *Evaluator) installModuleEntry(ctx context.Context, obj *value.Object, entry ast.ModuleEntry, env *Env, recv Receiver) {
	switch n := entry.(type) {
	case *ast.ClassPropertyExpr:
		if _, isDelete := n.Expr.(*ast.DeleteMarker); isDelete {
			obj.SetProperty(n.Name, value.NewDeletedMember())
			return
		}
		expr := n.Expr
		obj.SetProperty(n.Name, value.NewThunkMember(value.Thunk{Eval: func() (value.Value, error) {
			return e.Eval(ctx, expr, env, recv)
		}}, modsFromAst(n.Modifiers)))

	case *ast.ClassPropertyBody:
		name := n.Name
		bodies := n.Bodies
		obj.SetProperty(name, value.NewThunkMember(value.Thunk{Eval: func() (value.Value, error) {
			return e.materializeBodyChain(ctx, obj, name, bodies, env, recv)
		}}, modsFromAst(n.Modifiers)))

	case *ast.ClassMethod:
		if n.Body == nil {
			return // external/abstract method: no evaluable body to install.
		}
		params := make([]string, len(n.Params))
		for i, p := range n.Params {
			params[i] = p.Name
		}
		fn := &value.FunctionVal{Params: params, Body: n.Body, Env: env, Recv: recv}
		obj.SetProperty(n.Name, value.NewComputedMember(value.Value{Kind: value.KindFunction, Fn: fn}, modsFromAst(n.Modifiers)))

	case *ast.ClassProperty:
		// Declared type with no default (`x: Int`), typically from an
		// `external`/abstract module: nothing to evaluate yet.

	case *ast.Clazz, *ast.TypeAlias:
		// Type-level declarations, not module properties.
	}
}
