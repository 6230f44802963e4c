package eval

import (
	"context"

	"github.com/pklrun/pkl/internal/ast"
	"github.com/pklrun/pkl/internal/perrors"
	"github.com/pklrun/pkl/internal/value"
)

// evalNew constructs a fresh object of the declared kind and applies its
// body (spec §4.5: a `new` expression with no parent is amendment against
// an empty object of the target kind).
func (e *Evaluator) evalNew(ctx context.Context, n *ast.New, env *Env, recv Receiver) (value.Value, error) {
	kind, className := kindForType(n.Type)
	if kind == value.KindTyped {
		if class, ok := e.Classes[className]; ok {
			base, err := e.instantiateClass(ctx, class, env, recv)
			if err != nil {
				return value.Value{}, err
			}
			if n.Body == nil {
				return value.FromObject(base), nil
			}
			return e.Amend(ctx, base, n.Body, env, recv)
		}
	}
	obj := value.NewObject(kind, className)
	if err := e.applyObjectBody(ctx, obj, n.Body, env, recv); err != nil {
		return value.Value{}, err
	}
	return value.FromObject(obj), nil
}

// instantiateClass builds class c's default-instance object: if c
// extends another known class, that class's own default instance
// becomes this level's Parent first, so `super` inside c's own member
// expressions resolves through the amendment chain exactly as it would
// for a literal amendment (spec §4.5 rule 1, scenario 1). Each level's
// member thunks are pushed with that level's own object as `this`,
// matching the single-amendment-level behavior of applyObjectBody.
func (e *Evaluator) instantiateClass(ctx context.Context, c *ast.Clazz, env *Env, recv Receiver) (*value.Object, error) {
	obj := value.NewObject(value.KindTyped, c.Name)
	if len(c.SuperClass) > 0 {
		superName := c.SuperClass[len(c.SuperClass)-1]
		if superClass, ok := e.Classes[superName]; ok {
			parent, err := e.instantiateClass(ctx, superClass, env, recv)
			if err != nil {
				return nil, err
			}
			obj.Parent = parent
		}
	}
	for _, entry := range c.Entries {
		switch n := entry.(type) {
		case *ast.ClassProperty:
			obj.SetDeclaredType(n.Name, n.Type)
		case *ast.ClassPropertyExpr:
			if n.Type != nil {
				obj.SetDeclaredType(n.Name, n.Type)
			}
		}
	}
	memberRecv := recv.Push(obj)
	for _, entry := range c.Entries {
		if me, ok := entry.(ast.ModuleEntry); ok {
			e.installModuleEntry(ctx, obj, me, env, memberRecv)
		}
	}
	return obj, nil
}

// Amend creates a child object that amends base and applies body to it
// (spec §4.5). The child shares base's kind and class; its Parent points
// at base so unshadowed members resolve through the chain lazily.
func (e *Evaluator) Amend(ctx context.Context, base *value.Object, body *ast.ObjectBody, env *Env, recv Receiver) (value.Value, error) {
	child := value.NewObject(base.Kind, base.ClassName)
	child.Parent = base
	if err := e.applyObjectBody(ctx, child, body, env, recv); err != nil {
		return value.Value{}, err
	}
	return value.FromObject(child), nil
}

func kindForType(t ast.Type) (value.ObjectKind, string) {
	d, ok := t.(*ast.Declared)
	if !ok {
		return value.KindDynamic, "Dynamic"
	}
	name := d.Name.String()
	switch name {
	case "Listing":
		return value.KindListing, "Listing"
	case "Mapping":
		return value.KindMapping, "Mapping"
	case "Dynamic":
		return value.KindDynamic, "Dynamic"
	default:
		return value.KindTyped, name
	}
}

func modsFromAst(ms []ast.Modifier) value.Modifiers {
	var m value.Modifiers
	for _, x := range ms {
		switch x {
		case ast.ModHidden:
			m.Hidden = true
		case ast.ModLocal:
			m.Local = true
		case ast.ModFixed:
			m.Fixed = true
		case ast.ModConst:
			m.Const = true
		}
	}
	return m
}

// applyObjectBody splices body's members into obj in source order,
// pushing obj as the new `this` so member thunks close over the object
// they belong to (spec §4.5 "late binding"). Generators (when/for) and
// spreads splice their produced members into obj inline, recursively,
// without pushing a second receiver frame.
func (e *Evaluator) applyObjectBody(ctx context.Context, obj *value.Object, body *ast.ObjectBody, env *Env, recv Receiver) error {
	if body == nil {
		return nil
	}
	memberRecv := recv.Push(obj)
	return e.spliceMembers(ctx, obj, body.Members, env, memberRecv)
}

func (e *Evaluator) spliceMembers(ctx context.Context, obj *value.Object, members []ast.ObjectMember, env *Env, recv Receiver) error {
	for _, m := range members {
		if err := e.spliceMember(ctx, obj, m, env, recv); err != nil {
			return err
		}
	}
	return nil
}

func (e *Evaluator) spliceMember(ctx context.Context, obj *value.Object, m ast.ObjectMember, env *Env, recv Receiver) error {
	switch n := m.(type) {
	case *ast.ObjectProperty:
		if _, isDelete := n.Expr.(*ast.DeleteMarker); isDelete {
			obj.SetProperty(n.Name, value.NewDeletedMember())
			return nil
		}
		// Rule 2: a Typed parent may not gain a property its class never
		// declared, unless the chain has been erased via toDynamic().
		if obj.Parent != nil && obj.Parent.Kind == value.KindTyped && !obj.Parent.HasProperty(n.Name) {
			if _, declared := obj.Parent.DeclaredType(n.Name); !declared {
				return perrors.Newf(perrors.TypeErr, "property `%s` is not defined on class `%s`", n.Name, obj.Parent.ClassName)
			}
		}
		declType, hasType := obj.Parent.DeclaredType(n.Name)
		checkType := hasType && obj.Kind == value.KindTyped
		expr := n.Expr
		thisEnv := env
		obj.SetProperty(n.Name, value.NewThunkMember(value.Thunk{Eval: func() (value.Value, error) {
			v, err := e.Eval(ctx, expr, thisEnv, recv)
			if err != nil {
				return value.Value{}, err
			}
			if checkType && !satisfiesType(v, declType) {
				return value.Value{}, perrors.Newf(perrors.TypeErr, "property `%s` does not satisfy its declared type", n.Name)
			}
			return v, nil
		}}, modsFromAst(n.Modifiers)))
		return nil

	case *ast.ObjectBodyProperty:
		mods := modsFromAst(n.Modifiers)
		bodies := n.Bodies
		name := n.Name
		obj.SetProperty(name, value.NewThunkMember(value.Thunk{Eval: func() (value.Value, error) {
			return e.materializeBodyChain(ctx, obj, name, bodies, env, recv)
		}}, mods))
		return nil

	case *ast.ObjectMethod:
		params := make([]string, len(n.Params))
		for i, p := range n.Params {
			params[i] = p.Name
		}
		fn := &value.FunctionVal{Params: params, Body: n.Body, Env: env, Recv: recv}
		obj.SetProperty(n.Name, value.NewComputedMember(value.Value{Kind: value.KindFunction, Fn: fn}, modsFromAst(n.Modifiers)))
		return nil

	case *ast.ObjectElement:
		expr := n.Expr
		obj.AppendElement(value.NewThunkMember(value.Thunk{Eval: func() (value.Value, error) {
			return e.Eval(ctx, expr, env, recv)
		}}, value.Modifiers{}))
		return nil

	case *ast.ObjectEntry:
		key, err := e.Eval(ctx, n.Key, env, recv)
		if err != nil {
			return err
		}
		_, isDelete := n.Value.(*ast.DeleteMarker)

		// A non-negative Int key against a non-Mapping object is a
		// positional subscript override (spec §4.5 rule 5): the index
		// refers to obj's *renumbered* element sequence, not a map key.
		if key.Kind == value.KindInt && obj.Kind != value.KindMapping {
			if isDelete {
				return obj.DeleteElement(int(key.Int))
			}
			expr := n.Value
			return obj.SetElement(int(key.Int), value.NewThunkMember(value.Thunk{Eval: func() (value.Value, error) {
				return e.Eval(ctx, expr, env, recv)
			}}, value.Modifiers{}))
		}

		if isDelete {
			obj.SetEntry(key, value.NewDeletedMember())
			return nil
		}
		expr := n.Value
		obj.SetEntry(key, value.NewThunkMember(value.Thunk{Eval: func() (value.Value, error) {
			return e.Eval(ctx, expr, env, recv)
		}}, value.Modifiers{}))
		return nil

	case *ast.ObjectEntryBody:
		key, err := e.Eval(ctx, n.Key, env, recv)
		if err != nil {
			return err
		}
		bodies := n.Bodies
		obj.SetEntry(key, value.NewThunkMember(value.Thunk{Eval: func() (value.Value, error) {
			return e.materializeEntryBodyChain(ctx, obj, key, bodies, env, recv)
		}}, value.Modifiers{}))
		return nil

	case *ast.ObjectSpread:
		return e.spliceSpread(ctx, obj, n, env, recv)

	case *ast.WhenGenerator:
		cond, err := e.Eval(ctx, n.Cond, env, recv)
		if err != nil {
			return err
		}
		if truthy(cond) {
			return e.spliceMembers(ctx, obj, n.Then.Members, env, recv)
		}
		if n.Else != nil {
			return e.spliceMembers(ctx, obj, n.Else.Members, env, recv)
		}
		return nil

	case *ast.ForGenerator:
		return e.spliceFor(ctx, obj, n, env, recv)

	case *ast.MemberPredicate:
		return e.splicePredicate(ctx, obj, n, env, recv)

	case *ast.MemberPredicateBody:
		// A predicate-selected entry amended by a body chain; handled the
		// same way as MemberPredicate but producing an amendment chain
		// instead of a single expression.
		return e.splicePredicateBody(ctx, obj, n, env, recv)

	default:
		return perrors.Newf(perrors.TypeErr, "unsupported object member %T", m)
	}
}

// materializeBodyChain resolves `name { ... } { ... }`: the first body
// amends whatever name already resolves to on obj.Parent (or a fresh
// Dynamic object if nothing does), and each subsequent body amends the
// result of the previous one.
func (e *Evaluator) materializeBodyChain(ctx context.Context, obj *value.Object, name string, bodies []*ast.ObjectBody, env *Env, recv Receiver) (value.Value, error) {
	var base value.Value
	if obj.Parent != nil && obj.Parent.HasProperty(name) {
		v, err := obj.Parent.GetProperty(name)
		if err != nil {
			return value.Value{}, err
		}
		base = v
	} else {
		base = value.FromObject(value.NewObject(value.KindDynamic, "Dynamic"))
	}
	for _, b := range bodies {
		if base.Kind != value.KindObject {
			return value.Value{}, perrors.New(perrors.TypeErr, "cannot amend a non-object value with an object body")
		}
		v, err := e.Amend(ctx, base.Obj, b, env, recv)
		if err != nil {
			return value.Value{}, err
		}
		base = v
	}
	return base, nil
}

func (e *Evaluator) materializeEntryBodyChain(ctx context.Context, obj *value.Object, key value.Value, bodies []*ast.ObjectBody, env *Env, recv Receiver) (value.Value, error) {
	var base value.Value
	if obj.Parent != nil {
		if v, err := obj.Parent.GetEntry(key); err == nil {
			base = v
		}
	}
	if base.Kind != value.KindObject {
		base = value.FromObject(value.NewObject(value.KindDynamic, "Dynamic"))
	}
	for _, b := range bodies {
		v, err := e.Amend(ctx, base.Obj, b, env, recv)
		if err != nil {
			return value.Value{}, err
		}
		base = v
	}
	return base, nil
}

// spliceSpread evaluates a `...expr` member and copies its materialized
// properties/elements/entries into obj as already-computed members (spec
// §4.5 rule 7). The spread source has already been fully evaluated, so
// its members are copied eagerly rather than re-thunked.
func (e *Evaluator) spliceSpread(ctx context.Context, obj *value.Object, n *ast.ObjectSpread, env *Env, recv Receiver) error {
	src, err := e.Eval(ctx, n.Expr, env, recv)
	if err != nil {
		return err
	}
	if src.IsNull() {
		if n.IsNullable {
			return nil
		}
		return perrors.New(perrors.TypeErr, "cannot spread null")
	}
	if src.Kind != value.KindObject {
		return perrors.New(perrors.TypeErr, "spread source must be an object")
	}
	o := src.Obj
	switch o.Kind {
	case value.KindListing:
		for _, v := range o.MaterializedElements() {
			obj.AppendElement(value.NewComputedMember(v, value.Modifiers{}))
		}
	case value.KindMapping:
		for _, k := range o.MaterializedEntryKeys() {
			v, err := o.GetEntry(k)
			if err != nil {
				return err
			}
			obj.SetEntry(k, value.NewComputedMember(v, value.Modifiers{}))
		}
	default:
		for _, name := range o.MaterializedNames() {
			v, err := o.GetProperty(name)
			if err != nil {
				return err
			}
			obj.SetProperty(name, value.NewComputedMember(v, value.Modifiers{}))
		}
	}
	return nil
}

// spliceFor evaluates a for-generator's source and splices Body once per
// element, accumulating across iterations (spec §4.5 rule 8).
func (e *Evaluator) spliceFor(ctx context.Context, obj *value.Object, n *ast.ForGenerator, env *Env, recv Receiver) error {
	src, err := e.Eval(ctx, n.Source, env, recv)
	if err != nil {
		return err
	}
	iterate := func(key, elem value.Value) error {
		iterEnv := env
		if n.P2 != "" {
			iterEnv = iterEnv.Extend(n.P1, key)
			iterEnv = iterEnv.Extend(n.P2, elem)
		} else {
			iterEnv = iterEnv.Extend(n.P1, elem)
		}
		return e.spliceMembers(ctx, obj, n.Body.Members, iterEnv, recv)
	}
	switch src.Kind {
	case value.KindObject:
		switch src.Obj.Kind {
		case value.KindListing:
			for i, v := range src.Obj.MaterializedElements() {
				if err := iterate(value.Int(int64(i)), v); err != nil {
					return err
				}
			}
		case value.KindMapping:
			for _, k := range src.Obj.MaterializedEntryKeys() {
				v, err := src.Obj.GetEntry(k)
				if err != nil {
					return err
				}
				if err := iterate(k, v); err != nil {
					return err
				}
			}
		default:
			for _, name := range src.Obj.MaterializedNames() {
				v, err := src.Obj.GetProperty(name)
				if err != nil {
					return err
				}
				if err := iterate(value.String(name), v); err != nil {
					return err
				}
			}
		}
	case value.KindIntSeq:
		s := src.IntSeq
		for i := s.Start; i <= s.End; i += s.Step {
			if err := iterate(value.Int(i), value.Int(i)); err != nil {
				return err
			}
		}
	case value.KindString:
		for i, r := range []rune(src.Str) {
			if err := iterate(value.Int(int64(i)), value.String(string(r))); err != nil {
				return err
			}
		}
	default:
		return perrors.Newf(perrors.TypeErr, "cannot iterate over %s", src.Kind)
	}
	return nil
}

// splicePredicate implements `[[predicate]] = expr`: the predicate is
// evaluated once per existing entry/element inherited from obj.Parent,
// with a lexical `it` bound to the entry key for a Mapping parent and to
// the element value otherwise, and expr is installed as the new value for
// every entry/element where it holds (spec §4.5 rule 6 variant).
func (e *Evaluator) splicePredicate(ctx context.Context, obj *value.Object, n *ast.MemberPredicate, env *Env, recv Receiver) error {
	if obj.Parent == nil {
		return nil
	}
	_, isDelete := n.Expr.(*ast.DeleteMarker)
	switch obj.Parent.Kind {
	case value.KindMapping:
		for _, k := range obj.Parent.MaterializedEntryKeys() {
			predEnv := env.Extend("it", k)
			match, err := e.Eval(ctx, n.Predicate, predEnv, recv)
			if err != nil {
				return err
			}
			if !truthy(match) {
				continue
			}
			if isDelete {
				obj.SetEntry(k, value.NewDeletedMember())
				continue
			}
			expr := n.Expr
			obj.SetEntry(k, value.NewThunkMember(value.Thunk{Eval: func() (value.Value, error) {
				return e.Eval(ctx, expr, predEnv, recv)
			}}, value.Modifiers{}))
		}
	default:
		// Snapshot P's live elements once and pre-materialize obj's own
		// shadow slots against that snapshot, so that matching more than
		// one element in this pass mutates by the snapshot's original
		// positions rather than a live sequence that shrinks out from
		// under later iterations as earlier deletes land (see
		// SetElementAtSnapshotIndex's doc comment).
		snapshot := obj.Parent.MaterializedElements()
		obj.PrepareOwnElementSlots(len(snapshot))
		for i, v := range snapshot {
			predEnv := env.Extend("it", v)
			match, err := e.Eval(ctx, n.Predicate, predEnv, recv)
			if err != nil {
				return err
			}
			if !truthy(match) {
				continue
			}
			if isDelete {
				if err := obj.SetElementAtSnapshotIndex(i, value.NewDeletedMember()); err != nil {
					return err
				}
				continue
			}
			expr := n.Expr
			if err := obj.SetElementAtSnapshotIndex(i, value.NewThunkMember(value.Thunk{Eval: func() (value.Value, error) {
				return e.Eval(ctx, expr, predEnv, recv)
			}}, value.Modifiers{})); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Evaluator) splicePredicateBody(ctx context.Context, obj *value.Object, n *ast.MemberPredicateBody, env *Env, recv Receiver) error {
	if obj.Parent == nil {
		return nil
	}
	key, err := e.Eval(ctx, n.Key, env, recv)
	if err != nil {
		return err
	}
	bodies := n.Bodies
	obj.SetEntry(key, value.NewThunkMember(value.Thunk{Eval: func() (value.Value, error) {
		return e.materializeEntryBodyChain(ctx, obj, key, bodies, env, recv)
	}}, value.Modifiers{}))
	return nil
}
