package ast

// Modifier is one of the closed set of Pkl declaration modifiers.
type Modifier string

const (
	ModExternal Modifier = "external"
	ModAbstract Modifier = "abstract"
	ModOpen     Modifier = "open"
	ModLocal    Modifier = "local"
	ModHidden   Modifier = "hidden"
	ModFixed    Modifier = "fixed"
	ModConst    Modifier = "const"
)

// QualifiedName is a non-empty ordered sequence of identifiers, e.g.
// `pkl.base.Duration`.
type QualifiedName []string

func (q QualifiedName) String() string {
	s := ""
	for i, p := range q {
		if i > 0 {
			s += "."
		}
		s += p
	}
	return s
}

// Module is the root CST node: an optional declaration header, an ordered
// list of imports, and an ordered list of top-level entries.
type Module struct {
	Base
	Decl    *ModuleDecl
	Imports []*Import
	Entries []ModuleEntry
}

// ModuleEntry is satisfied by Clazz, TypeAlias, and the ClassEntry variants
// that may also appear at module scope (ClassProperty/ClassPropertyExpr/
// ClassPropertyBody/ClassMethod).
type ModuleEntry interface {
	Node
	moduleEntry()
}

// ModuleDecl carries the module's own annotations, modifiers, qualified
// name, and optional extends/amends clause.
type ModuleDecl struct {
	Base
	DocComment  string
	Annotations []Node
	Modifiers   []Modifier
	Name        QualifiedName
	Extends     *ExtendsDecl
	Amends      *AmendsDecl
}

type ExtendsDecl struct {
	Base
	URL string
}

func (e *ExtendsDecl) Span() Span       { return e.Base.span }
func (e *ExtendsDecl) Parent() Node     { return e.Base.parent }
func (e *ExtendsDecl) setParent(p Node) { e.Base.setParent(p) }

type AmendsDecl struct {
	Base
	URL string
}

func (a *AmendsDecl) Span() Span       { return a.Base.span }
func (a *AmendsDecl) Parent() Node     { return a.Base.parent }
func (a *AmendsDecl) setParent(p Node) { a.Base.setParent(p) }

// Import is a single import clause.
type Import struct {
	Base
	URI   string
	Glob  bool
	Alias string // empty if unaliased
}

// Clazz is a class declaration.
type Clazz struct {
	Base
	DocComment  string
	Annotations []Node
	Modifiers   []Modifier
	Name        string
	TypeParams  []string
	SuperClass  QualifiedName // nil if none
	Entries     []ClassEntry
}

func (c *Clazz) moduleEntry() {}

// ClassEntry is satisfied by ClassProperty, ClassPropertyExpr,
// ClassPropertyBody, and ClassMethod.
type ClassEntry interface {
	Node
	classEntry()
}

// TypeAlias declares `typealias Name<T> = Type`.
type TypeAlias struct {
	Base
	Name       string
	TypeParams []string
	Body       Type
}

func (t *TypeAlias) moduleEntry() {}

// ClassProperty is a property with a required type annotation and no
// default expression, e.g. `x: Int`.
type ClassProperty struct {
	Base
	Modifiers []Modifier
	Name      string
	Type      Type
}

func (c *ClassProperty) classEntry()  {}
func (c *ClassProperty) moduleEntry() {}

// ClassPropertyExpr is a property with an optional type and a default
// expression, e.g. `x: Int = 1` or `x = 1`.
type ClassPropertyExpr struct {
	Base
	Modifiers []Modifier
	Name      string
	Type      Type // nil if omitted
	Expr      Expr
}

func (c *ClassPropertyExpr) classEntry()  {}
func (c *ClassPropertyExpr) moduleEntry() {}

// ClassPropertyBody is `name { ... } { ... }`: a property defined purely by
// a sequence of object bodies amending one another.
type ClassPropertyBody struct {
	Base
	Modifiers []Modifier
	Name      string
	Bodies    []*ObjectBody
}

func (c *ClassPropertyBody) classEntry()  {}
func (c *ClassPropertyBody) moduleEntry() {}

// ClassMethod declares a method.
type ClassMethod struct {
	Base
	Modifiers  []Modifier
	Name       string
	TypeParams []string
	Params     []Param
	ReturnType Type // nil if omitted
	Body       Expr // nil for `external`/abstract methods
}

func (c *ClassMethod) classEntry()  {}
func (c *ClassMethod) moduleEntry() {}

// Param is a function/method parameter.
type Param struct {
	Name string
	Type Type // nil if untyped
}
