// Package resolve implements the module resolver of spec §4.1: a
// scheme-keyed registry of ModuleKeyFactory implementations, a
// SecurityManager enforcing an allow-list/trust policy ahead of any I/O,
// and URI normalization. The registry shape is the teacher's
// internal/registry.Registry (scheme-of-provider lookup keyed by maps
// behind a mutex), generalized from language providers to URI schemes.
package resolve

import (
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/pklrun/pkl/internal/perrors"
)

// Dependency is one entry of a module's §4.1 dependency map: either a
// remote package pinned by checksum, or a local directory substitution.
type Dependency struct {
	Alias    string
	Remote   bool
	URI      string
	Checksum string
	Path     string
}

// ResolvedModuleKey is what a ModuleKeyFactory produces for a URI: enough
// to load source text, list directory-like elements for glob imports, and
// report the module's declared dependencies.
type ResolvedModuleKey struct {
	// NormalizedURI is the canonical, content-addressing form of the
	// requested URI (real-path for file:, with a resolved version/host
	// for package:).
	NormalizedURI string
	Scheme        string
	// Globbable is false for factories that cannot enumerate elements
	// (has_element/list_elements signal "not globbable" per §4.1).
	Globbable bool
}

// Factory is implemented once per URI scheme (file, https, modulepath,
// pkl, package, projectpackage, repl, and user-supplied custom schemes).
type Factory interface {
	Scheme() string
	Resolve(uri string) (ResolvedModuleKey, error)
	LoadSource(key ResolvedModuleKey) (string, error)
	HasElement(key ResolvedModuleKey, rel string) (bool, error)
	ListElements(key ResolvedModuleKey) ([]string, error)
	Dependencies(key ResolvedModuleKey) (map[string]Dependency, error)
}

// Registry dispatches a URI to the Factory registered for its scheme.
// Mirrors the teacher's Registry: a map behind a sync.RWMutex, populated
// by explicit registration rather than a compiled-in default set, so the
// core resolver carries zero scheme-specific knowledge.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// RegisterFactory adds a scheme factory. Re-registering an existing
// scheme is an error, matching the teacher's conflict-checked
// RegisterProvider.
func (r *Registry) RegisterFactory(f Factory) error {
	if f == nil {
		return fmt.Errorf("factory cannot be nil")
	}
	scheme := f.Scheme()
	if scheme == "" {
		return fmt.Errorf("factory must declare a non-empty scheme")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[scheme]; exists {
		return fmt.Errorf("factory for scheme %q already registered", scheme)
	}
	r.factories[scheme] = f
	return nil
}

// FactoryFor returns the factory registered for scheme, or a ResolveError
// ("unknown scheme") if none matches.
func (r *Registry) FactoryFor(scheme string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, exists := r.factories[scheme]
	if !exists {
		return nil, perrors.Newf(perrors.Resolve, "unknown scheme %q", scheme)
	}
	return f, nil
}

// Schemes lists every registered scheme name.
func (r *Registry) Schemes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.factories))
	for s := range r.factories {
		out = append(out, s)
	}
	return out
}

// Resolve picks the factory matching uri's scheme, applies the security
// policy, and delegates to Factory.Resolve.
func (r *Registry) Resolve(sec *SecurityManager, importerTrust Trust, uri string) (ResolvedModuleKey, error) {
	scheme, err := SchemeOf(uri)
	if err != nil {
		return ResolvedModuleKey{}, err
	}
	if sec != nil {
		if err := sec.CheckAllowed(scheme, uri); err != nil {
			return ResolvedModuleKey{}, err
		}
		if err := sec.CheckTrust(importerTrust, scheme); err != nil {
			return ResolvedModuleKey{}, err
		}
	}
	f, err := r.FactoryFor(scheme)
	if err != nil {
		return ResolvedModuleKey{}, err
	}
	key, err := f.Resolve(uri)
	if err != nil {
		return ResolvedModuleKey{}, err
	}
	if sec != nil && scheme == "file" {
		if err := sec.CheckRootDir(key.NormalizedURI); err != nil {
			return ResolvedModuleKey{}, err
		}
	}
	return key, nil
}

// SchemeOf extracts the leading "scheme:" prefix of a module URI. A
// relative URI (no scheme) at the top level is rejected per §7's
// "relative-URI at top level" ResolveError.
func SchemeOf(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", perrors.Newf(perrors.Resolve, "malformed module URI %q: %v", uri, err)
	}
	if u.Scheme == "" {
		return "", perrors.Newf(perrors.Resolve, "relative URI %q is not permitted at the top level", uri)
	}
	return u.Scheme, nil
}

// Trust models the import-trust level compared between importer and
// importee scheme per §4.1's security policy.
type Trust int

const (
	TrustUntrusted Trust = iota
	TrustProject
	TrustStdlib
)

// SecurityManager evaluates the allow-list/trust/rootDir policy ahead of
// any loadSource or list call, per §4.1.
type SecurityManager struct {
	allowedSchemes []*regexp.Regexp
	trustOf        func(scheme string) Trust
	rootDir        string
}

// NewSecurityManager builds a manager from a set of allow-list regex
// patterns (matched against the URI's scheme prefix) and an optional
// rootDir constraining file: resolution. A nil trustOf disables the
// trust check.
func NewSecurityManager(allowPatterns []string, trustOf func(scheme string) Trust, rootDir string) (*SecurityManager, error) {
	sm := &SecurityManager{trustOf: trustOf, rootDir: rootDir}
	for _, p := range allowPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, perrors.Newf(perrors.Resolve, "invalid allow-list pattern %q: %v", p, err)
		}
		sm.allowedSchemes = append(sm.allowedSchemes, re)
	}
	return sm, nil
}

// CheckAllowed denies uri's scheme unless some allow-list pattern
// matches, with the exact wording the renderer relies on. An empty
// allow-list permits every scheme.
func (sm *SecurityManager) CheckAllowed(scheme, uri string) error {
	if len(sm.allowedSchemes) == 0 {
		return nil
	}
	for _, re := range sm.allowedSchemes {
		if re.MatchString(scheme) {
			return nil
		}
	}
	return perrors.Newf(perrors.Resolve, "Refusing to load module `%s`: scheme `%s` is not on the allow-list", uri, scheme)
}

// CheckTrust denies importerTrust importing a scheme whose trust exceeds
// its own (e.g. a project-trust module importing a repl: fragment).
func (sm *SecurityManager) CheckTrust(importerTrust Trust, scheme string) error {
	if sm.trustOf == nil {
		return nil
	}
	importeeTrust := sm.trustOf(scheme)
	if importeeTrust > importerTrust {
		return perrors.Newf(perrors.Resolve, "Refusing to load module with scheme `%s`: insufficient trust", scheme)
	}
	return nil
}

// CheckRootDir enforces that a resolved file: path lies within rootDir,
// after symlink/real-path expansion (§4.1). absPath is already expected
// to be real-path resolved by the file scheme factory.
func (sm *SecurityManager) CheckRootDir(absPath string) error {
	if sm.rootDir == "" {
		return nil
	}
	rel, err := filepath.Rel(sm.rootDir, absPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return perrors.Newf(perrors.Resolve, "Refusing to load module `%s`: outside rootDir", absPath)
	}
	return nil
}
