package eval

import (
	"github.com/pklrun/pkl/internal/ast"
	"github.com/pklrun/pkl/internal/value"
)

// satisfiesType implements the `is`/`as` type-check predicate (spec
// §3.2, §4.4) for the subset of the type grammar that is checkable
// without a full class hierarchy: Unknown/Nothing always-match rules,
// nullability, declared base-type names, unions, and constrained types
// (checked against their base type only; the constraint predicates are
// not evaluated).
func satisfiesType(v value.Value, t ast.Type) bool {
	switch n := t.(type) {
	case *ast.UnknownType:
		return true
	case *ast.NothingType:
		return false
	case *ast.Nullable:
		if v.IsNull() {
			return true
		}
		return satisfiesType(v, n.Inner)
	case *ast.DefaultUnion:
		return satisfiesType(v, n.Inner)
	case *ast.Union:
		return satisfiesType(v, n.Left) || satisfiesType(v, n.Right)
	case *ast.ParenthesizedType:
		return satisfiesType(v, n.Inner)
	case *ast.Constrained:
		return satisfiesType(v, n.Inner)
	case *ast.Declared:
		return satisfiesDeclared(v, n.Name.String())
	case *ast.StringConstantType:
		return v.Kind == value.KindString && v.Str == n.Text
	case *ast.ModuleType:
		return v.Kind == value.KindObject && v.Obj != nil && v.Obj.Kind == value.KindModule
	default:
		return true
	}
}

func satisfiesDeclared(v value.Value, name string) bool {
	switch name {
	case "Any":
		return true
	case "Null":
		return v.IsNull()
	case "Boolean":
		return v.Kind == value.KindBool
	case "Int", "Int8", "Int16", "Int32", "UInt", "UInt8", "UInt16", "UInt32":
		return v.Kind == value.KindInt
	case "Float", "Number":
		return v.Kind == value.KindInt || v.Kind == value.KindFloat
	case "String":
		return v.Kind == value.KindString
	case "Duration":
		return v.Kind == value.KindDuration
	case "DataSize":
		return v.Kind == value.KindDataSize
	case "Pair":
		return v.Kind == value.KindPair
	case "Regex":
		return v.Kind == value.KindRegex
	case "Bytes":
		return v.Kind == value.KindBytes
	case "Listing":
		return v.Kind == value.KindObject && v.Obj != nil && v.Obj.Kind == value.KindListing
	case "Mapping":
		return v.Kind == value.KindObject && v.Obj != nil && v.Obj.Kind == value.KindMapping
	case "Dynamic":
		return v.Kind == value.KindObject && v.Obj != nil && v.Obj.Kind == value.KindDynamic
	case "Function":
		return v.Kind == value.KindFunction
	default:
		if v.Kind == value.KindObject && v.Obj != nil {
			return v.Obj.ClassName == name
		}
		return false
	}
}
