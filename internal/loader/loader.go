// Package loader wires the module resolver (internal/resolve), the
// module cache (internal/cache), the parser (internal/parser), and the
// evaluator (internal/eval) into the single resolve(uri) -> compiled
// module pipeline spec §2 describes end to end: the concrete
// eval.ModuleLoader that cmd/pkl constructs one of per evaluation run.
//
// Grounded on the teacher's core/filewalker.go + providers/base/
// provider.go pairing (a lookup/fetch step feeding a parse/analyze
// step, mediated by a cache so repeat lookups are O(1)); here the two
// steps are resolve.Registry.Resolve and parser.Parse/eval.
// EvaluateModule, mediated by cache.ModuleCache's state machine instead
// of the teacher's plain map cache. Glob-import expansion reuses
// internal/importgraph's shell-glob grammar (doublestar.Match plus
// RejectExtendedGlob) so the loader and the import-graph analyzer never
// disagree on what a pattern matches. Each Begin/CompleteCompiled/Fail
// transition the in-memory Cache goes through is optionally mirrored
// into a cache.AuditLog (Loader.Audit) for a durable resolution history.
package loader

import (
	"context"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/pklrun/pkl/internal/cache"
	"github.com/pklrun/pkl/internal/eval"
	"github.com/pklrun/pkl/internal/importgraph"
	"github.com/pklrun/pkl/internal/parser"
	"github.com/pklrun/pkl/internal/perrors"
	"github.com/pklrun/pkl/internal/resolve"
	"github.com/pklrun/pkl/internal/value"
)

// ResourceReader is implemented per resource scheme (env:, prop:, and
// any external reader schemes registered from internal/extreader);
// Loader.ReadResource dispatches on the URI's scheme the same way
// resolve.Registry dispatches module URIs.
type ResourceReader interface {
	Scheme() string
	Read(uri string) (value.Value, error)
	ListElements(dir string) ([]string, error)
}

// Loader is the concrete eval.ModuleLoader: it resolves a URI through
// Registry/Security, parses and compiles it at most once per
// NormalizedURI (memoized in Cache), and recurses into Evaluator for
// nested imports via the same Evaluator instance.
type Loader struct {
	Registry  *resolve.Registry
	Security  *resolve.SecurityManager
	Cache     *cache.ModuleCache
	Resources map[string]ResourceReader

	// Eval is the paired Evaluator; New wires its ModuleLoader back to
	// this Loader so nested imports recurse through the same pipeline.
	Eval *eval.Evaluator

	// TrustOf reports the trust level a scheme carries, used as the
	// importerTrust when resolving an import (spec §4.1's security
	// policy). A nil TrustOf treats every scheme as TrustProject.
	TrustOf func(scheme string) resolve.Trust

	// Audit, if set, receives one record per Begin/CompleteCompiled/Fail
	// transition LoadModule drives the in-memory Cache through, giving a
	// durable resolution history that survives past this process (§4.1's
	// cache-state machine is in-memory only; this is its append-only
	// sqlite sidecar). Left nil, LoadModule behaves exactly as before.
	Audit *cache.AuditLog

	// Store, if set, is the package-record ledger behind a
	// scheme.PackageFactory's Store field; Loader only keeps a reference
	// to it so Close can release its connection alongside Audit's.
	Store *cache.Store
}

// New builds a Loader and its paired Evaluator.
func New(registry *resolve.Registry, security *resolve.SecurityManager, deadline time.Time) *Loader {
	l := &Loader{
		Registry:  registry,
		Security:  security,
		Cache:     cache.NewModuleCache(),
		Resources: make(map[string]ResourceReader),
	}
	l.Eval = eval.NewEvaluator(l, deadline)
	return l
}

// RegisterResourceReader adds a resource scheme handler.
func (l *Loader) RegisterResourceReader(r ResourceReader) {
	l.Resources[r.Scheme()] = r
}

// record appends one resolution-state transition to Audit, if wired.
func (l *Loader) record(uri, state, detail string) {
	if l.Audit == nil {
		return
	}
	_ = l.Audit.Record(uri, state, detail)
}

// Close releases the underlying connections of Audit and Store, if
// wired. Safe to call on a Loader built without them.
func (l *Loader) Close() error {
	var firstErr error
	if l.Audit != nil {
		if err := l.Audit.Close(); err != nil {
			firstErr = err
		}
	}
	if l.Store != nil {
		if err := l.Store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (l *Loader) trustFor(uri string) resolve.Trust {
	if l.TrustOf == nil {
		return resolve.TrustProject
	}
	scheme, err := resolve.SchemeOf(uri)
	if err != nil {
		return resolve.TrustProject
	}
	return l.TrustOf(scheme)
}

func toPerror(err error) *perrors.Error {
	if pe, ok := err.(*perrors.Error); ok {
		return pe
	}
	return perrors.New(perrors.IO, err.Error())
}

// LoadModule implements eval.ModuleLoader: resolve -> parse -> compile,
// each step memoized per normalized URI in Cache, per spec §4.1/§9 "a
// module is parsed and evaluated at most once regardless of how many
// importers reference it".
func (l *Loader) LoadModule(ctx context.Context, uri string, isGlob bool) (value.Value, error) {
	if isGlob {
		return l.loadGlob(ctx, uri)
	}

	key, err := l.Registry.Resolve(l.Security, l.trustFor(uri), uri)
	if err != nil {
		return value.Value{}, err
	}

	entry, began := l.Cache.Begin(key.NormalizedURI)
	if !began {
		if entry.State == cache.InFlight {
			return value.Value{}, perrors.New(perrors.Cycle, "A stack overflow occurred.")
		}
		entry.Wait()
		return l.finishedValue(entry, key.NormalizedURI)
	}
	l.record(key.NormalizedURI, cache.InFlight.String(), "")

	factory, err := l.Registry.FactoryFor(key.Scheme)
	if err != nil {
		l.Cache.Fail(key.NormalizedURI, toPerror(err))
		l.record(key.NormalizedURI, cache.Failed.String(), err.Error())
		return value.Value{}, err
	}
	src, err := factory.LoadSource(key)
	if err != nil {
		perr := toPerror(err)
		l.Cache.Fail(key.NormalizedURI, perr)
		l.record(key.NormalizedURI, cache.Failed.String(), perr.Error())
		return value.Value{}, perr
	}
	m, parseErrs := parser.Parse(src)
	if len(parseErrs) > 0 {
		perr := perrors.Newf(perrors.Parse, "%s", parseErrs[0].Error())
		l.Cache.Fail(key.NormalizedURI, perr)
		l.record(key.NormalizedURI, cache.Failed.String(), perr.Error())
		return value.Value{}, perr
	}
	l.Cache.CompleteParsed(key.NormalizedURI, m)

	obj, err := l.Eval.EvaluateModule(ctx, key.NormalizedURI, m)
	if err != nil {
		perr := toPerror(err)
		l.Cache.Fail(key.NormalizedURI, perr)
		l.record(key.NormalizedURI, cache.Failed.String(), perr.Error())
		return value.Value{}, perr
	}
	v := value.FromObject(obj)
	l.Cache.CompleteCompiled(key.NormalizedURI, v)
	l.record(key.NormalizedURI, cache.Compiled.String(), "")
	return v, nil
}

func (l *Loader) finishedValue(entry *cache.Entry, uri string) (value.Value, error) {
	switch entry.State {
	case cache.Compiled:
		return entry.Compiled, nil
	case cache.Failed:
		return value.Value{}, entry.Err
	default:
		return value.Value{}, perrors.Newf(perrors.Cycle, "module `%s` left in unexpected state %s", uri, entry.State)
	}
}

func dirOf(uri string) string {
	if i := strings.LastIndexByte(uri, '/'); i >= 0 {
		return uri[:i+1]
	}
	return uri
}

func joinPath(dir, rel string) string {
	if strings.HasSuffix(dir, "/") {
		return dir + rel
	}
	return dir + "/" + rel
}

// loadGlob resolves a glob import (import* "*.pkl") to a Mapping from
// matched relative path to loaded module value, per §4.1's glob-import
// semantics, reusing importgraph.RejectExtendedGlob and the same
// doublestar.Match grammar the analyzer uses.
func (l *Loader) loadGlob(ctx context.Context, pattern string) (value.Value, error) {
	if err := importgraph.RejectExtendedGlob(pattern); err != nil {
		return value.Value{}, err
	}
	dir := dirOf(pattern)
	key, err := l.Registry.Resolve(l.Security, l.trustFor(dir), dir)
	if err != nil {
		return value.Value{}, err
	}
	factory, err := l.Registry.FactoryFor(key.Scheme)
	if err != nil {
		return value.Value{}, err
	}
	names, err := factory.ListElements(key)
	if err != nil {
		return value.Value{}, err
	}
	sort.Strings(names)

	mapping := value.NewObject(value.KindMapping, "Mapping")
	for _, name := range names {
		matched, err := doublestar.Match(strings.TrimPrefix(pattern, dir), name)
		if err != nil {
			return value.Value{}, perrors.Newf(perrors.Resolve, "invalid glob pattern `%s`: %v", pattern, err)
		}
		if !matched {
			continue
		}
		v, err := l.LoadModule(ctx, joinPath(dir, name), false)
		if err != nil {
			return value.Value{}, err
		}
		mapping.SetEntry(value.String(name), value.NewComputedMember(v, value.Modifiers{}))
	}
	return value.FromObject(mapping), nil
}

// ReadResource implements eval.ModuleLoader's resource half (§4.2):
// dispatch by scheme to a registered ResourceReader, with the same
// glob-expansion grammar LoadModule uses for modules.
func (l *Loader) ReadResource(ctx context.Context, uri string, isGlob bool) (value.Value, error) {
	scheme, err := resolve.SchemeOf(uri)
	if err != nil {
		return value.Value{}, err
	}
	r, ok := l.Resources[scheme]
	if !ok {
		return value.Value{}, perrors.Newf(perrors.Resolve, "no resource reader registered for scheme `%s`", scheme)
	}
	if !isGlob {
		return r.Read(uri)
	}

	if err := importgraph.RejectExtendedGlob(uri); err != nil {
		return value.Value{}, err
	}
	dir := dirOf(uri)
	names, err := r.ListElements(dir)
	if err != nil {
		return value.Value{}, err
	}
	sort.Strings(names)

	mapping := value.NewObject(value.KindMapping, "Mapping")
	for _, name := range names {
		matched, err := doublestar.Match(strings.TrimPrefix(uri, dir), name)
		if err != nil {
			return value.Value{}, perrors.Newf(perrors.Resolve, "invalid glob pattern `%s`: %v", uri, err)
		}
		if !matched {
			continue
		}
		v, err := r.Read(joinPath(dir, name))
		if err != nil {
			return value.Value{}, err
		}
		mapping.SetEntry(value.String(name), value.NewComputedMember(v, value.Modifiers{}))
	}
	return value.FromObject(mapping), nil
}

// EnvResourceReader serves env: resources from the process environment
// (§4.2/§6.2's externalProperties/environmentVariables surface).
type EnvResourceReader struct{}

func (EnvResourceReader) Scheme() string { return "env" }

func (EnvResourceReader) Read(uri string) (value.Value, error) {
	name := strings.TrimPrefix(uri, "env:")
	name = strings.TrimPrefix(name, "//")
	v, ok := os.LookupEnv(name)
	if !ok {
		return value.Value{}, perrors.Newf(perrors.Resolve, "no environment variable named `%s`", name)
	}
	return value.String(v), nil
}

func (EnvResourceReader) ListElements(string) ([]string, error) {
	return nil, perrors.New(perrors.Resolve, "env: resources are not globbable")
}

// PropResourceReader serves prop: resources from the evaluator's
// externalProperties map (§4.2/§6.2).
type PropResourceReader struct {
	Properties map[string]string
}

func (PropResourceReader) Scheme() string { return "prop" }

func (r PropResourceReader) Read(uri string) (value.Value, error) {
	name := strings.TrimPrefix(uri, "prop:")
	name = strings.TrimPrefix(name, "//")
	v, ok := r.Properties[name]
	if !ok {
		return value.Value{}, perrors.Newf(perrors.Resolve, "no external property named `%s`", name)
	}
	return value.String(v), nil
}

func (PropResourceReader) ListElements(string) ([]string, error) {
	return nil, perrors.New(perrors.Resolve, "prop: resources are not globbable")
}
