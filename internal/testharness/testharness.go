// Package testharness implements the pkl:test facts/examples semantics
// of spec §4.8: boolean-fact evaluation, example-vs-expected-file PCF
// comparison with write-on-first-run and an overwrite flag, and the
// unified "Expected"/"Actual" diff rendering pointing at sibling
// `-expected.pcf`/`-actual.pcf` files.
//
// Grounded on the teacher's generateDiff helper (providers/base/
// provider.go, internal/util/util.go): a difflib.UnifiedDiff over
// strings.Split(..., "\n") with a 3-line context, reused here verbatim
// for the expected/actual comparison.
package testharness

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// FactResult is the outcome of one boolean expression inside a `facts`
// list.
type FactResult struct {
	Source    string
	ModuleURI string
	Value     bool // the expression's evaluated boolean, when it evaluated to a Bool
	IsBool    bool // false if the expression evaluated to a non-Boolean value
	Err       error
}

// Passed reports whether this fact succeeded: evaluated without error,
// to a Boolean, and that Boolean was true (§4.8).
func (r FactResult) Passed() bool {
	return r.Err == nil && r.IsBool && r.Value
}

// Render formats a failing fact as "<source> ❌ (<moduleUri>)" per §4.8.
func (r FactResult) Render() string {
	return fmt.Sprintf("%s ❌ (%s)", r.Source, r.ModuleURI)
}

// FactsGroup is one named `facts { ["name"] { ... } }` list and its
// per-expression results.
type FactsGroup struct {
	Name    string
	Results []FactResult
}

func (g FactsGroup) Failed() []FactResult {
	var out []FactResult
	for _, r := range g.Results {
		if !r.Passed() {
			out = append(out, r)
		}
	}
	return out
}

// ExampleResult is the outcome of comparing one named example's rendered
// PCF against its sibling expected file.
type ExampleResult struct {
	Name         string
	ModulePath   string // path of the module amending pkl:test, used to derive sibling file names
	Actual       string
	ExpectedPath string
	ActualPath   string
	// WroteExpected is true if no expected file existed yet and this run
	// created it (first-run semantics, §4.8/scenario 6).
	WroteExpected bool
	// Diff is the unified diff text when Actual != the pre-existing
	// expected file's contents; empty when the example passed or the
	// expected file was just written.
	Diff string
}

func (r ExampleResult) Passed() bool { return r.Diff == "" }

// expectedPath / actualPath derive the sibling `<module>-expected.pcf`
// and `<module>-actual.pcf` file names from a test module's path (§4.8).
func expectedPath(modulePath string) string {
	return siblingPath(modulePath, "-expected.pcf")
}

func actualPath(modulePath string) string {
	return siblingPath(modulePath, "-actual.pcf")
}

func siblingPath(modulePath, suffix string) string {
	ext := filepath.Ext(modulePath)
	base := strings.TrimSuffix(modulePath, ext)
	return base + suffix
}

// CompareExample renders one example's actual PCF text against its
// sibling expected file: if none exists, it is written and the example
// passes; otherwise a byte-for-byte mismatch produces a unified diff and
// (unless overwrite is set) writes the actual file alongside it.
func CompareExample(name, modulePath, actual string, overwrite bool) (ExampleResult, error) {
	res := ExampleResult{
		Name:         name,
		ModulePath:   modulePath,
		Actual:       actual,
		ExpectedPath: expectedPath(modulePath),
		ActualPath:   actualPath(modulePath),
	}

	existing, err := os.ReadFile(res.ExpectedPath)
	if os.IsNotExist(err) || overwrite {
		if err := os.WriteFile(res.ExpectedPath, []byte(actual), 0o644); err != nil {
			return res, fmt.Errorf("writing expected file %s: %w", res.ExpectedPath, err)
		}
		res.WroteExpected = true
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("reading expected file %s: %w", res.ExpectedPath, err)
	}

	if string(existing) == actual {
		return res, nil
	}

	diff := difflib.UnifiedDiff{
		A:        strings.Split(string(existing), "\n"),
		B:        strings.Split(actual, "\n"),
		FromFile: res.ExpectedPath,
		ToFile:   res.ActualPath,
		Context:  3,
	}
	text, derr := difflib.GetUnifiedDiffString(diff)
	if derr != nil {
		text = fmt.Sprintf("--- %s\n+++ %s\n@@ changes @@\n%d bytes -> %d bytes",
			res.ExpectedPath, res.ActualPath, len(existing), len(actual))
	}
	res.Diff = text

	if err := os.WriteFile(res.ActualPath, []byte(actual), 0o644); err != nil {
		return res, fmt.Errorf("writing actual file %s: %w", res.ActualPath, err)
	}
	return res, nil
}

// Report is the outcome of running every facts/examples group of one
// test module.
type Report struct {
	ModuleURI string
	Facts     []FactsGroup
	Examples  []ExampleResult
}

// Passed reports whether every fact and every example succeeded.
func (r Report) Passed() bool {
	for _, g := range r.Facts {
		if len(g.Failed()) > 0 {
			return false
		}
	}
	for _, ex := range r.Examples {
		if !ex.Passed() {
			return false
		}
	}
	return true
}

// Render produces the human-readable summary: failing facts rendered
// per §4.8's exact wording, and example diffs with both sibling file
// paths named.
func (r Report) Render() string {
	var b strings.Builder
	for _, g := range r.Facts {
		for _, f := range g.Failed() {
			b.WriteString(f.Render())
			b.WriteString("\n")
		}
	}
	for _, ex := range r.Examples {
		if ex.Passed() {
			continue
		}
		fmt.Fprintf(&b, "Example %q mismatch:\nExpected: %s\nActual: %s\n%s\n",
			ex.Name, ex.ExpectedPath, ex.ActualPath, ex.Diff)
	}
	return b.String()
}
