// Package render renders a materialized Value tree as PCF (Pkl
// Configuration Format), the canonical textual form of a fully-evaluated
// module (spec §9 GLOSSARY). spec.md's §1 Scope table lists renderers as
// an out-of-scope external collaborator ("any compliant [renderer] works
// as long as it consumes the value model"); this one exists so `pkl
// eval`/`pkl test` have a working default output format to drive end to
// end, and deliberately stays to the subset of PCF the value model can
// produce — it is not a general multi-format (JSON/YAML/plist) engine.
package render

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pklrun/pkl/internal/value"
)

// Module renders a module object's properties as a flat sequence of
// `name = value` lines, in materialized order — the top-level PCF form a
// module evaluates to. Member modifiers are not consulted: properties
// declared hidden are rendered like any other.
func Module(obj *value.Object) (string, error) {
	var b strings.Builder
	for _, name := range obj.MaterializedNames() {
		v, err := obj.GetProperty(name)
		if err != nil {
			return "", err
		}
		rendered, err := Value(v, 0)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "%s = %s\n", name, rendered)
	}
	return b.String(), nil
}

// Value renders a single Value at the given indent depth (number of
// two-space levels already opened by an enclosing `new ... { }` block).
func Value(v value.Value, depth int) (string, error) {
	switch v.Kind {
	case value.KindNull:
		return "null", nil
	case value.KindBool:
		return strconv.FormatBool(v.Bool), nil
	case value.KindInt:
		return strconv.FormatInt(v.Int, 10), nil
	case value.KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64), nil
	case value.KindString:
		return quoteString(v.Str), nil
	case value.KindDuration:
		return fmt.Sprintf("%g.%s", v.Dur.Value, v.Dur.Unit), nil
	case value.KindDataSize:
		return fmt.Sprintf("%g.%s", v.Size.Value, v.Size.Unit), nil
	case value.KindPair:
		first, err := Value(v.Pair.First, depth)
		if err != nil {
			return "", err
		}
		second, err := Value(v.Pair.Second, depth)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Pair(%s, %s)", first, second), nil
	case value.KindRegex:
		return fmt.Sprintf("Regex(%s)", quoteString(v.Regex.Pattern)), nil
	case value.KindObject:
		return renderObject(v.Obj, depth)
	default:
		return fmt.Sprintf("<%s>", v.Kind), nil
	}
}

// quoteString implements PCF's custom string delimiters only for the
// common case (no embedded `"""`/interpolation marker collision): a
// plain double-quoted string with `\`, `"`, newline and tab escaped;
// other control characters are written as they are.
func quoteString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func indent(depth int) string {
	return strings.Repeat("  ", depth)
}

func renderObject(o *value.Object, depth int) (string, error) {
	header := "new " + o.ClassName
	inner := depth + 1
	var b strings.Builder
	b.WriteString(header)
	b.WriteString(" {\n")

	switch o.Kind {
	case value.KindListing:
		for _, v := range o.MaterializedElements() {
			rendered, err := Value(v, inner)
			if err != nil {
				return "", err
			}
			fmt.Fprintf(&b, "%s%s\n", indent(inner), rendered)
		}
	case value.KindMapping:
		keys := append([]value.Value{}, o.MaterializedEntryKeys()...)
		sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
		for _, k := range keys {
			v, err := o.GetEntry(k)
			if err != nil {
				return "", err
			}
			keyRendered, err := Value(k, inner)
			if err != nil {
				return "", err
			}
			valRendered, err := Value(v, inner)
			if err != nil {
				return "", err
			}
			fmt.Fprintf(&b, "%s[%s] = %s\n", indent(inner), keyRendered, valRendered)
		}
	default: // Dynamic, Typed, Module
		for _, name := range o.MaterializedNames() {
			v, err := o.GetProperty(name)
			if err != nil {
				return "", err
			}
			rendered, err := Value(v, inner)
			if err != nil {
				return "", err
			}
			fmt.Fprintf(&b, "%s%s = %s\n", indent(inner), name, rendered)
		}
	}

	b.WriteString(indent(depth))
	b.WriteString("}")
	return b.String(), nil
}
