// Package stdlib implements the natively-provided Pkl standard library
// primitives of spec §4.6: Pair construction, Regex compilation and
// full-string matching, Listing and Mapping construction, and numeric
// Min/Max. Duration/DataSize unit conversion lives in internal/value, not
// here. These are plain functions over internal/value, called from
// internal/eval's UnqualifiedAccess dispatch table rather than expressed
// in Pkl source, matching the teacher's internal/core/bytemath.go
// (a native byte-unit conversion table backing higher-level operations).
package stdlib

import (
	"fmt"
	"regexp"

	"github.com/pklrun/pkl/internal/perrors"
	"github.com/pklrun/pkl/internal/value"
)

// NewPair builds a Pair value.
func NewPair(a, b value.Value) value.Value {
	return value.Value{Kind: value.KindPair, Pair: &value.PairVal{First: a, Second: b}}
}

// CompileRegex validates pattern and returns a Regex value, or a
// TypeError if the pattern doesn't compile (mirrors the teacher's
// ErrInvalidRegex code in internal/core/errorfmt.go).
func CompileRegex(pattern string) (value.Value, error) {
	if _, err := regexp.Compile(pattern); err != nil {
		return value.Value{}, perrors.Newf(perrors.TypeErr, "invalid regex pattern: %v", err)
	}
	return value.Value{Kind: value.KindRegex, Regex: &value.RegexVal{Pattern: pattern}}, nil
}

// RegexMatches reports whether s matches re in full.
func RegexMatches(re *value.RegexVal, s string) (bool, error) {
	rx, err := regexp.Compile(re.Pattern)
	if err != nil {
		return false, perrors.Newf(perrors.TypeErr, "invalid regex pattern: %v", err)
	}
	loc := rx.FindStringIndex(s)
	return loc != nil && loc[0] == 0 && loc[1] == len(s), nil
}

// NewListing builds a Listing object from elements in order.
func NewListing(elements []value.Value) *value.Object {
	obj := value.NewObject(value.KindListing, "Listing")
	for _, el := range elements {
		v := el
		obj.AppendElement(value.NewComputedMember(v, value.Modifiers{}))
	}
	return obj
}

// NewMapping builds a Mapping object from ordered key/value pairs.
func NewMapping(keys []value.Value, values []value.Value) (*value.Object, error) {
	if len(keys) != len(values) {
		return nil, fmt.Errorf("mismatched key/value counts")
	}
	obj := value.NewObject(value.KindMapping, "Mapping")
	for i, k := range keys {
		v := values[i]
		obj.SetEntry(k, value.NewComputedMember(v, value.Modifiers{}))
	}
	return obj, nil
}

// Min returns the smaller of a, b under Pkl's numeric ordering (int/int,
// float/float, or mixed promoted to float — see eval's numeric
// semantics for the promotion rule this mirrors).
func Min(a, b value.Value) value.Value {
	if Less(a, b) {
		return a
	}
	return b
}

func Max(a, b value.Value) value.Value {
	if Less(a, b) {
		return b
	}
	return a
}

// Less compares two numeric values, promoting int/float pairs to float.
func Less(a, b value.Value) bool {
	af, aIsFloat := asFloat(a)
	bf, bIsFloat := asFloat(b)
	if aIsFloat && bIsFloat {
		return af < bf
	}
	if a.Kind == value.KindInt && b.Kind == value.KindInt {
		return a.Int < b.Int
	}
	return af < bf
}

func asFloat(v value.Value) (float64, bool) {
	switch v.Kind {
	case value.KindInt:
		return float64(v.Int), true
	case value.KindFloat:
		return v.Float, true
	default:
		return 0, false
	}
}
