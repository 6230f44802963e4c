package scheme

import (
	"sort"

	"github.com/pklrun/pkl/internal/perrors"
	"github.com/pklrun/pkl/internal/resolve"
)

// PklStdlibFactory resolves pkl:name URIs to the built-in standard
// library modules (§6.1). Unlike file:/https:, these modules' members are
// implemented natively in internal/stdlib rather than parsed from Pkl
// source; LoadSource returns a module declaration stub sufficient for the
// parser to produce an empty, importable ast.Module, since member
// resolution for these names is short-circuited natively in
// internal/eval before ever consulting a parsed body.
type PklStdlibFactory struct {
	modules map[string]string
}

// NewPklStdlibFactory registers the closed set of built-in module names
// spec §4.6 implements natively (base, math, test, Project, json, …).
func NewPklStdlibFactory() *PklStdlibFactory {
	names := []string{"base", "math", "test", "Project", "json", "platform", "release"}
	modules := make(map[string]string, len(names))
	for _, n := range names {
		modules["pkl:"+n] = "module pkl." + n + "\n"
	}
	return &PklStdlibFactory{modules: modules}
}

func (PklStdlibFactory) Scheme() string { return "pkl" }

func (f *PklStdlibFactory) Resolve(uri string) (resolve.ResolvedModuleKey, error) {
	if _, ok := f.modules[uri]; !ok {
		return resolve.ResolvedModuleKey{}, perrors.Newf(perrors.Resolve, "unknown standard library module `%s`", uri)
	}
	return resolve.ResolvedModuleKey{NormalizedURI: uri, Scheme: "pkl", Globbable: false}, nil
}

func (f *PklStdlibFactory) LoadSource(key resolve.ResolvedModuleKey) (string, error) {
	src, ok := f.modules[key.NormalizedURI]
	if !ok {
		return "", perrors.Newf(perrors.Resolve, "unknown standard library module `%s`", key.NormalizedURI)
	}
	return src, nil
}

func (PklStdlibFactory) HasElement(resolve.ResolvedModuleKey, string) (bool, error) {
	return false, nil
}

func (PklStdlibFactory) ListElements(resolve.ResolvedModuleKey) ([]string, error) {
	return nil, perrors.Newf(perrors.Resolve, "scheme `pkl` does not support glob import")
}

func (f *PklStdlibFactory) Dependencies(resolve.ResolvedModuleKey) (map[string]resolve.Dependency, error) {
	return nil, nil
}

// Names lists every registered standard library module URI, sorted.
func (f *PklStdlibFactory) Names() []string {
	out := make([]string, 0, len(f.modules))
	for n := range f.modules {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
