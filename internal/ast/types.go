package ast

// Type is satisfied by every type-expression node variant of §3.2.
type Type interface {
	Node
	typ()
}

type UnknownType struct{ Base }

func (t *UnknownType) typ() {}

type NothingType struct{ Base }

func (t *NothingType) typ() {}

type ModuleType struct{ Base }

func (t *ModuleType) typ() {}

type StringConstantType struct {
	Base
	Text string
}

func (t *StringConstantType) typ() {}

// Declared is a reference to a named type, possibly parameterized, e.g.
// `Mapping<String, Int>`.
type Declared struct {
	Base
	Name     QualifiedName
	TypeArgs []Node // each element is a Type
}

func (t *Declared) typ() {}

type ParenthesizedType struct {
	Base
	Inner Type
}

func (t *ParenthesizedType) typ() {}

type Nullable struct {
	Base
	Inner Type
}

func (t *Nullable) typ() {}

// Constrained is `T(predicate1, predicate2, ...)`.
type Constrained struct {
	Base
	Inner      Type
	Predicates []Node // each element is an Expr
}

func (t *Constrained) typ() {}

// DefaultUnion marks the member of a Union that is the default, written
// `*T`.
type DefaultUnion struct {
	Base
	Inner Type
}

func (t *DefaultUnion) typ() {}

type Union struct {
	Base
	Left  Type
	Right Type
}

func (t *Union) typ() {}

type FunctionType struct {
	Base
	Args []Node // each element is a Type
	Ret  Type
}

func (t *FunctionType) typ() {}
