// Package value implements the Pkl runtime value model (spec §3.3): the
// tagged Value sum, the five object shapes, and the lazy, memoized Member
// slots that back every object's properties/elements/entries.
package value

import (
	"fmt"
	"math"
)

// Kind tags the variant a Value holds. Dispatch is always on this tag —
// there is no virtual method dispatch on Value itself, per the design
// note in spec §9.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindDuration
	KindDataSize
	KindPair
	KindRegex
	KindBytes
	KindIntSeq
	KindFunction
	KindClass
	KindTypeAlias
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "Null"
	case KindBool:
		return "Boolean"
	case KindInt:
		return "Int"
	case KindFloat:
		return "Float"
	case KindString:
		return "String"
	case KindDuration:
		return "Duration"
	case KindDataSize:
		return "DataSize"
	case KindPair:
		return "Pair"
	case KindRegex:
		return "Regex"
	case KindBytes:
		return "Bytes"
	case KindIntSeq:
		return "IntSeq"
	case KindFunction:
		return "Function"
	case KindClass:
		return "Class"
	case KindTypeAlias:
		return "TypeAlias"
	case KindObject:
		return "Object"
	default:
		return "Unknown"
	}
}

// Value is an immutable tagged union over the Pkl runtime values of
// spec §3.3. Exactly one of the typed fields is meaningful for a given
// Kind; Obj is used for KindObject.
type Value struct {
	Kind Kind

	Bool   bool
	Int    int64
	Float  float64
	Str    string
	Bytes  []byte
	Dur    Duration
	Size   DataSize
	Pair   *PairVal
	Regex  *RegexVal
	IntSeq *IntSeqVal
	Fn     *FunctionVal
	Class  *ClassVal
	Alias  *TypeAliasVal
	Obj    *Object
}

func Null() Value                  { return Value{Kind: KindNull} }
func Bool(b bool) Value            { return Value{Kind: KindBool, Bool: b} }
func Int(i int64) Value            { return Value{Kind: KindInt, Int: i} }
func Float(f float64) Value        { return Value{Kind: KindFloat, Float: f} }
func String(s string) Value        { return Value{Kind: KindString, Str: s} }
func BytesVal(b []byte) Value      { return Value{Kind: KindBytes, Bytes: b} }
func FromObject(o *Object) Value   { return Value{Kind: KindObject, Obj: o} }
func FromDuration(d Duration) Value { return Value{Kind: KindDuration, Dur: d} }
func FromDataSize(d DataSize) Value { return Value{Kind: KindDataSize, Size: d} }

func (v Value) IsNull() bool { return v.Kind == KindNull }

// Exportable reports whether v may cross the host API boundary (§6.5).
// IntSeq and Function are never exportable.
func (v Value) Exportable() bool {
	return v.Kind != KindIntSeq && v.Kind != KindFunction
}

// Equal implements PCF-comparison value equality: objects compare
// structurally (same class + same materialized members), not by
// reference; NaN floats are never equal to themselves (§4.4).
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		// int/float cross-kind equality is never implicit in Pkl: == requires
		// matching static types, so a bare Kind mismatch is simply unequal.
		return false
	}
	switch a.Kind {
	case KindNull:
		return true
	case KindBool:
		return a.Bool == b.Bool
	case KindInt:
		return a.Int == b.Int
	case KindFloat:
		if math.IsNaN(a.Float) || math.IsNaN(b.Float) {
			return false
		}
		return a.Float == b.Float
	case KindString:
		return a.Str == b.Str
	case KindBytes:
		if len(a.Bytes) != len(b.Bytes) {
			return false
		}
		for i := range a.Bytes {
			if a.Bytes[i] != b.Bytes[i] {
				return false
			}
		}
		return true
	case KindDuration:
		return a.Dur.Seconds() == b.Dur.Seconds()
	case KindDataSize:
		return a.Size.Bytes() == b.Size.Bytes()
	case KindPair:
		return Equal(a.Pair.First, b.Pair.First) && Equal(a.Pair.Second, b.Pair.Second)
	case KindRegex:
		return a.Regex.Pattern == b.Regex.Pattern
	case KindObject:
		return objectsEqual(a.Obj, b.Obj)
	default:
		return false
	}
}

func objectsEqual(a, b *Object) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.ClassName != b.ClassName || a.Kind != b.Kind {
		return false
	}
	an, bn := a.MaterializedNames(), b.MaterializedNames()
	if len(an) != len(bn) {
		return false
	}
	for i, name := range an {
		if name != bn[i] {
			return false
		}
	}
	for _, name := range an {
		av, aerr := a.GetProperty(name)
		bv, berr := b.GetProperty(name)
		if aerr != nil || berr != nil {
			return false
		}
		if !Equal(av, bv) {
			return false
		}
	}
	ae, be := a.MaterializedElements(), b.MaterializedElements()
	if len(ae) != len(be) {
		return false
	}
	for i := range ae {
		if !Equal(ae[i], be[i]) {
			return false
		}
	}
	ak, bk := a.MaterializedEntryKeys(), b.MaterializedEntryKeys()
	if len(ak) != len(bk) {
		return false
	}
	for _, k := range ak {
		av, aerr := a.GetEntry(k)
		bv, berr := b.GetEntry(k)
		if aerr != nil || berr != nil || !Equal(av, bv) {
			return false
		}
	}
	return true
}

func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindBool:
		return fmt.Sprintf("%t", v.Bool)
	case KindInt:
		return fmt.Sprintf("%d", v.Int)
	case KindFloat:
		return fmt.Sprintf("%v", v.Float)
	case KindString:
		return v.Str
	default:
		return fmt.Sprintf("<%s>", v.Kind)
	}
}

type PairVal struct {
	First  Value
	Second Value
}

type RegexVal struct {
	Pattern string
}

// IntSeqVal is a lazy, non-exportable integer range (§3.3).
type IntSeqVal struct {
	Start, End, Step int64
}

func (s *IntSeqVal) Len() int64 {
	if s.Step == 0 {
		return 0
	}
	n := (s.End - s.Start) / s.Step
	if n < 0 {
		return 0
	}
	return n + 1
}

// FunctionVal is a closure: parameter names plus whatever the evaluator
// needs to re-enter the body with a captured lexical environment. Env is
// declared as `any` here to avoid an import cycle with the evaluator
// package; eval casts it back to its own Env type.
type FunctionVal struct {
	Params []string
	Body   any // ast.Expr
	Env    any // eval.Env
	Recv   any // eval.Receiver, captured so a method body can resolve this/super/outer
}

type ClassVal struct {
	Name string
}

type TypeAliasVal struct {
	Name string
}
