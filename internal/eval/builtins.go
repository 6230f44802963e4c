package eval

import (
	"math"
	"strconv"
	"strings"

	"github.com/pklrun/pkl/internal/perrors"
	"github.com/pklrun/pkl/internal/stdlib"
	"github.com/pklrun/pkl/internal/value"
)

// builtinConstant resolves the handful of bare identifiers spec §4.6
// provides without an enclosing module (Math's NaN/Infinity are normally
// reached via the pkl.base Math module, but evaluators that run without
// a loaded base module still need these two to resolve directly).
func builtinConstant(name string) (value.Value, bool) {
	switch name {
	case "NaN":
		return value.Float(math.NaN()), true
	case "Infinity":
		return value.Float(math.Inf(1)), true
	default:
		return value.Value{}, false
	}
}

// callBuiltin dispatches the free-function forms of spec §4.6: the
// Listing/Mapping/Pair/Regex constructors and the numeric min/max
// helpers, all of which forward to internal/stdlib.
func (e *Evaluator) callBuiltin(name string, args []value.Value) (value.Value, error) {
	switch name {
	case "List", "Listing":
		return value.FromObject(stdlib.NewListing(args)), nil
	case "Set":
		seen := make(map[string]bool)
		var out []value.Value
		for _, a := range args {
			k := a.String()
			if !seen[k] {
				seen[k] = true
				out = append(out, a)
			}
		}
		return value.FromObject(stdlib.NewListing(out)), nil
	case "Map", "Mapping":
		if len(args)%2 != 0 {
			return value.Value{}, perrors.New(perrors.TypeErr, "Map(...) requires an even number of arguments")
		}
		keys := make([]value.Value, 0, len(args)/2)
		vals := make([]value.Value, 0, len(args)/2)
		for i := 0; i < len(args); i += 2 {
			keys = append(keys, args[i])
			vals = append(vals, args[i+1])
		}
		obj, err := stdlib.NewMapping(keys, vals)
		if err != nil {
			return value.Value{}, err
		}
		return value.FromObject(obj), nil
	case "Pair":
		if len(args) != 2 {
			return value.Value{}, perrors.New(perrors.TypeErr, "Pair(...) requires exactly 2 arguments")
		}
		return stdlib.NewPair(args[0], args[1]), nil
	case "Regex":
		if len(args) != 1 || args[0].Kind != value.KindString {
			return value.Value{}, perrors.New(perrors.TypeErr, "Regex(...) requires a single String argument")
		}
		return stdlib.CompileRegex(args[0].Str)
	case "IntSeq":
		if len(args) < 2 {
			return value.Value{}, perrors.New(perrors.TypeErr, "IntSeq(...) requires start and end arguments")
		}
		step := int64(1)
		if len(args) == 3 {
			step = args[2].Int
		}
		return value.Value{Kind: value.KindIntSeq, IntSeq: &value.IntSeqVal{Start: args[0].Int, End: args[1].Int, Step: step}}, nil
	case "min":
		if len(args) != 2 {
			return value.Value{}, perrors.New(perrors.TypeErr, "min(...) requires exactly 2 arguments")
		}
		return stdlib.Min(args[0], args[1]), nil
	case "max":
		if len(args) != 2 {
			return value.Value{}, perrors.New(perrors.TypeErr, "max(...) requires exactly 2 arguments")
		}
		return stdlib.Max(args[0], args[1]), nil
	case "trace":
		if len(args) == 1 {
			return args[0], nil
		}
		return value.Null(), nil
	default:
		return value.Value{}, perrors.Newf(perrors.Name, "unresolved reference to `%s`", name)
	}
}

// builtinMethod dispatches the instance-method forms of spec §4.6 for
// String, Listing/Dynamic, Mapping, Pair, Regex, and numeric receivers.
// It returns ok=false for anything not in this native subset, letting
// the caller fall back to a user-defined class method lookup.
func builtinMethod(r value.Value, name string, args []value.Value) (value.Value, bool) {
	switch r.Kind {
	case value.KindString:
		return stringMethod(r.Str, name, args)
	case value.KindObject:
		if name == "toDynamic" && len(args) == 0 {
			return value.FromObject(toDynamic(r.Obj)), true
		}
		switch r.Obj.Kind {
		case value.KindListing, value.KindDynamic:
			return listingMethod(r.Obj, name, args)
		case value.KindMapping:
			return mappingMethod(r.Obj, name, args)
		}
	case value.KindPair:
		switch name {
		case "first":
			return r.Pair.First, true
		case "second":
			return r.Pair.Second, true
		}
	case value.KindRegex:
		switch name {
		case "matches":
			if len(args) == 1 && args[0].Kind == value.KindString {
				ok, err := stdlib.RegexMatches(r.Regex, args[0].Str)
				if err == nil {
					return value.Bool(ok), true
				}
			}
		case "pattern":
			return value.String(r.Regex.Pattern), true
		}
	case value.KindInt, value.KindFloat:
		return numberMethod(r, name, args)
	}
	return value.Value{}, false
}

func stringMethod(s, name string, args []value.Value) (value.Value, bool) {
	switch name {
	case "length":
		return value.Int(int64(len([]rune(s)))), true
	case "isEmpty":
		return value.Bool(s == ""), true
	case "isBlank":
		return value.Bool(strings.TrimSpace(s) == ""), true
	case "reverse":
		r := []rune(s)
		for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
			r[i], r[j] = r[j], r[i]
		}
		return value.String(string(r)), true
	case "toUpperCase":
		return value.String(strings.ToUpper(s)), true
	case "toLowerCase":
		return value.String(strings.ToLower(s)), true
	case "trim":
		return value.String(strings.TrimSpace(s)), true
	case "contains":
		if len(args) == 1 && args[0].Kind == value.KindString {
			return value.Bool(strings.Contains(s, args[0].Str)), true
		}
	case "startsWith":
		if len(args) == 1 && args[0].Kind == value.KindString {
			return value.Bool(strings.HasPrefix(s, args[0].Str)), true
		}
	case "endsWith":
		if len(args) == 1 && args[0].Kind == value.KindString {
			return value.Bool(strings.HasSuffix(s, args[0].Str)), true
		}
	case "replaceAll", "replace":
		if len(args) == 2 && args[0].Kind == value.KindString && args[1].Kind == value.KindString {
			return value.String(strings.ReplaceAll(s, args[0].Str, args[1].Str)), true
		}
	case "split":
		if len(args) == 1 && args[0].Kind == value.KindString {
			parts := strings.Split(s, args[0].Str)
			out := make([]value.Value, len(parts))
			for i, p := range parts {
				out[i] = value.String(p)
			}
			return value.FromObject(stdlib.NewListing(out)), true
		}
	case "toInt":
		if i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			return value.Int(i), true
		}
	case "toFloat":
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return value.Float(f), true
		}
	case "toString":
		return value.String(s), true
	}
	return value.Value{}, false
}

func listingMethod(o *value.Object, name string, args []value.Value) (value.Value, bool) {
	elems := o.MaterializedElements()
	switch name {
	case "length":
		return value.Int(int64(len(elems))), true
	case "isEmpty":
		return value.Bool(len(elems) == 0), true
	case "first":
		if len(elems) > 0 {
			return elems[0], true
		}
	case "last":
		if len(elems) > 0 {
			return elems[len(elems)-1], true
		}
	case "reverse":
		out := make([]value.Value, len(elems))
		for i, v := range elems {
			out[len(elems)-1-i] = v
		}
		return value.FromObject(stdlib.NewListing(out)), true
	case "contains":
		if len(args) == 1 {
			for _, v := range elems {
				if value.Equal(v, args[0]) {
					return value.Bool(true), true
				}
			}
			return value.Bool(false), true
		}
	case "toList":
		return value.FromObject(stdlib.NewListing(elems)), true
	}
	return value.Value{}, false
}

func mappingMethod(o *value.Object, name string, args []value.Value) (value.Value, bool) {
	keys := o.MaterializedEntryKeys()
	switch name {
	case "length":
		return value.Int(int64(len(keys))), true
	case "isEmpty":
		return value.Bool(len(keys) == 0), true
	case "keys":
		return value.FromObject(stdlib.NewListing(keys)), true
	case "values":
		out := make([]value.Value, 0, len(keys))
		for _, k := range keys {
			if v, err := o.GetEntry(k); err == nil {
				out = append(out, v)
			}
		}
		return value.FromObject(stdlib.NewListing(out)), true
	case "containsKey":
		if len(args) == 1 {
			_, err := o.GetEntry(args[0])
			return value.Bool(err == nil), true
		}
	case "getOrNull":
		if len(args) == 1 {
			if v, err := o.GetEntry(args[0]); err == nil {
				return v, true
			}
			return value.Null(), true
		}
	}
	return value.Value{}, false
}

func numberMethod(v value.Value, name string, args []value.Value) (value.Value, bool) {
	f, isFloat := asNumberFloat(v)
	switch name {
	case "isPositive":
		return value.Bool(f > 0), true
	case "isZero":
		return value.Bool(f == 0), true
	case "abs":
		if v.Kind == value.KindInt {
			if v.Int < 0 {
				return value.Int(-v.Int), true
			}
			return v, true
		}
		return value.Float(math.Abs(f)), true
	case "toString":
		return value.String(v.String()), true
	case "toFloat":
		return value.Float(f), true
	case "toInt":
		return value.Int(int64(f)), true
	case "isNaN":
		return value.Bool(isFloat && math.IsNaN(f)), true
	}
	return value.Value{}, false
}

// toDynamic implements spec §4.5 "toDynamic() erases type": it copies o's
// materialized members into a fresh, parentless Dynamic object whose
// schema no longer constrains subsequent amendment (scenario 7). Members
// are copied as already-computed values rather than thunks, since the
// type-erased copy has no reason to re-run o's own lazy evaluation.
func toDynamic(o *value.Object) *value.Object {
	out := value.NewObject(value.KindDynamic, "Dynamic")
	for _, name := range o.MaterializedNames() {
		v, err := o.GetProperty(name)
		if err != nil {
			continue
		}
		out.SetProperty(name, value.NewComputedMember(v, value.Modifiers{}))
	}
	for _, v := range o.MaterializedElements() {
		out.AppendElement(value.NewComputedMember(v, value.Modifiers{}))
	}
	for _, k := range o.MaterializedEntryKeys() {
		v, err := o.GetEntry(k)
		if err != nil {
			continue
		}
		out.SetEntry(k, value.NewComputedMember(v, value.Modifiers{}))
	}
	return out
}

func asNumberFloat(v value.Value) (float64, bool) {
	switch v.Kind {
	case value.KindInt:
		return float64(v.Int), false
	case value.KindFloat:
		return v.Float, true
	default:
		return 0, false
	}
}
