package ast

// Node is implemented by every CST element. Parent back-references are
// wired by Link after construction (a class-based tree with parent
// pointers, per the chosen variant of the two parallel CST shapes the
// original implementation carried). Go's garbage collector tolerates the
// resulting parent<->child reference cycle; there is no arena indirection
// to manage.
type Node interface {
	Span() Span
	Parent() Node
	setParent(Node)
}

// Base is embedded by every concrete node type and implements the parent/
// span bookkeeping shared by all of them.
type Base struct {
	span   Span
	parent Node
}

func NewBase(span Span) Base { return Base{span: span} }

func (b *Base) Span() Span       { return b.span }
func (b *Base) Parent() Node     { return b.parent }
func (b *Base) setParent(p Node) { b.parent = p }

// Link walks the tree rooted at n, setting each child's parent pointer to
// its immediate container. It must run once after a module is fully built
// (the parser calls it before returning). Every non-root node ends up with
// exactly one parent, satisfying the CST invariant in spec §3.2.
func Link(root Node) {
	link(root, nil)
}

func link(n Node, parent Node) {
	if n == nil {
		return
	}
	n.setParent(parent)
	for _, c := range Children(n) {
		link(c, n)
	}
}

// Children enumerates the immediate child nodes of n in source order. It is
// the single place that knows how to destructure every node variant, used
// by Link, by span-invariant checks, and by any future tree walk.
func Children(n Node) []Node {
	switch v := n.(type) {
	case *Module:
		var out []Node
		if v.Decl != nil {
			out = append(out, v.Decl)
		}
		for _, im := range v.Imports {
			out = append(out, im)
		}
		for _, e := range v.Entries {
			out = append(out, e)
		}
		return out
	case *ModuleDecl:
		var out []Node
		for _, a := range v.Annotations {
			out = append(out, a)
		}
		if v.Extends != nil {
			out = append(out, v.Extends)
		}
		if v.Amends != nil {
			out = append(out, v.Amends)
		}
		return out
	case *Import:
		return nil
	case *Clazz:
		var out []Node
		for _, a := range v.Annotations {
			out = append(out, a)
		}
		for _, e := range v.Entries {
			out = append(out, e)
		}
		return out
	case *TypeAlias:
		if v.Body != nil {
			return []Node{v.Body}
		}
		return nil
	case *ClassProperty:
		if v.Type != nil {
			return []Node{v.Type}
		}
		return nil
	case *ClassPropertyExpr:
		var out []Node
		if v.Type != nil {
			out = append(out, v.Type)
		}
		if v.Expr != nil {
			out = append(out, v.Expr)
		}
		return out
	case *ClassPropertyBody:
		var out []Node
		for _, b := range v.Bodies {
			out = append(out, b)
		}
		return out
	case *ClassMethod:
		var out []Node
		if v.ReturnType != nil {
			out = append(out, v.ReturnType)
		}
		if v.Body != nil {
			out = append(out, v.Body)
		}
		return out
	case *ObjectBody:
		var out []Node
		for _, m := range v.Members {
			out = append(out, m)
		}
		return out
	case *ObjectElement:
		return []Node{v.Expr}
	case *ObjectProperty:
		var out []Node
		if v.Type != nil {
			out = append(out, v.Type)
		}
		out = append(out, v.Expr)
		return out
	case *ObjectBodyProperty:
		var out []Node
		for _, b := range v.Bodies {
			out = append(out, b)
		}
		return out
	case *ObjectMethod:
		var out []Node
		if v.ReturnType != nil {
			out = append(out, v.ReturnType)
		}
		if v.Body != nil {
			out = append(out, v.Body)
		}
		return out
	case *MemberPredicate:
		return []Node{v.Predicate, v.Expr}
	case *MemberPredicateBody:
		var out []Node
		out = append(out, v.Key)
		for _, b := range v.Bodies {
			out = append(out, b)
		}
		return out
	case *ObjectEntry:
		return []Node{v.Key, v.Value}
	case *ObjectEntryBody:
		var out []Node
		out = append(out, v.Key)
		for _, b := range v.Bodies {
			out = append(out, b)
		}
		return out
	case *ObjectSpread:
		return []Node{v.Expr}
	case *WhenGenerator:
		var out []Node
		out = append(out, v.Cond, v.Then)
		if v.Else != nil {
			out = append(out, v.Else)
		}
		return out
	case *ForGenerator:
		return []Node{v.Source, v.Body}
	case *BinaryOp:
		return []Node{v.Left, v.Right}
	case *UnaryMinus:
		return []Node{v.Expr}
	case *LogicalNot:
		return []Node{v.Expr}
	case *If:
		return []Node{v.Cond, v.Then, v.Else}
	case *Let:
		return []Node{v.Binding, v.Body}
	case *FunctionLiteral:
		return []Node{v.Body}
	case *Parenthesized:
		return []Node{v.Expr}
	case *New:
		var out []Node
		if v.Type != nil {
			out = append(out, v.Type)
		}
		out = append(out, v.Body)
		return out
	case *Amends:
		return []Node{v.Expr, v.Body}
	case *NonNull:
		return []Node{v.Expr}
	case *TypeCheck:
		return []Node{v.Expr, v.Type}
	case *TypeCast:
		return []Node{v.Expr, v.Type}
	case *Throw:
		return []Node{v.Expr}
	case *Trace:
		return []Node{v.Expr}
	case *ImportExpr:
		return nil
	case *Read:
		return []Node{v.Expr}
	case *ReadGlob:
		return []Node{v.Expr}
	case *ReadNull:
		return []Node{v.Expr}
	case *UnqualifiedAccess:
		return exprsToNodes(v.Args)
	case *QualifiedAccess:
		out := []Node{v.Receiver}
		return append(out, exprsToNodes(v.Args)...)
	case *SuperAccess:
		return exprsToNodes(v.Args)
	case *SuperSubscript:
		return []Node{v.Index}
	case *Subscript:
		return []Node{v.Receiver, v.Index}
	case *InterpolatedString:
		return v.PartExprs()
	case *Nullable:
		return []Node{v.Inner}
	case *Constrained:
		out := []Node{v.Inner}
		out = append(out, v.Predicates...)
		return out
	case *DefaultUnion:
		return []Node{v.Inner}
	case *Union:
		return []Node{v.Left, v.Right}
	case *FunctionType:
		out := append([]Node{}, v.Args...)
		return append(out, v.Ret)
	case *Declared:
		return v.TypeArgs
	default:
		return nil
	}
}

func exprsToNodes(exprs []Expr) []Node {
	if len(exprs) == 0 {
		return nil
	}
	out := make([]Node, len(exprs))
	for i, e := range exprs {
		out[i] = e
	}
	return out
}
