// Package project implements the PklProject manifest and
// PklProject.deps.json contract of spec §4.1, §6.2, §6.3: dependency-name
// resolution (rewriting `@name/rest.pkl` to a `projectpackage:` URI),
// SHA-256 checksum verification for remote deps, and the evaluator
// settings a project carries (allowedModules, rootDir, timeout, …).
//
// The manifest itself amends pkl:Project and is therefore only fully
// meaningful after evaluation; this package models the bit-exact JSON
// sidecar of §6.3 (the resolved, evaluation-independent form tooling
// actually reads) in the teacher's flat JSON-tagged struct style
// (internal/model.ToolConfig), rather than re-deriving it from a second
// Pkl evaluation pass.
package project

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pklrun/pkl/internal/perrors"
	"github.com/pklrun/pkl/internal/resolve"
)

// SkipChecksumVerification is the special sha256 sentinel of §6.3 that
// disables checksum verification (test-only).
const SkipChecksumVerification = "$skipChecksumVerification"

// PackageMeta is the `package { ... }` section of a PklProject manifest
// (§6.2): the package's own identity when it is itself published.
type PackageMeta struct {
	Name          string `json:"name"`
	Version       string `json:"version"`
	BaseURI       string `json:"baseUri"`
	PackageZipURL string `json:"packageZipUrl"`
}

// Settings is the evaluator-settings section of a PklProject manifest
// (§6.2), consumed when constructing the evaluator's SecurityManager and
// deadline for modules belonging to this project.
type Settings struct {
	AllowedModules       []string          `json:"allowedModules,omitempty"`
	AllowedResources     []string          `json:"allowedResources,omitempty"`
	ExternalProperties   map[string]string `json:"externalProperties,omitempty"`
	EnvironmentVariables map[string]string `json:"environmentVariables,omitempty"`
	ModuleCacheDir       string            `json:"moduleCacheDir,omitempty"`
	RootDir              string            `json:"rootDir,omitempty"`
	TimeoutSeconds       int               `json:"timeoutSeconds,omitempty"`
}

func (s Settings) Timeout() time.Duration {
	if s.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// Manifest is the parsed form of a PklProject file's observable fields
// (§6.2): the package's own metadata (if it publishes one), its named
// dependencies, and evaluator settings.
type Manifest struct {
	Package      *PackageMeta         `json:"package,omitempty"`
	Dependencies map[string]DepSource `json:"dependencies"`
	Settings     Settings             `json:"evaluatorSettings,omitempty"`

	// Dir is the directory the manifest file lives in, used to resolve
	// local dependency paths and to locate the sibling deps.json.
	Dir string `json:"-"`
}

// DepSource is one `dependencies { [name] { uri } }` entry: either a
// direct package URI, or `= import("…/PklProject")` naming another
// project file (modeled here as an ImportPath).
type DepSource struct {
	URI        string `json:"uri,omitempty"`
	ImportPath string `json:"importPath,omitempty"`
}

// ResolvedDependency is one row of PklProject.deps.json's
// resolvedDependencies map (§6.3), bit-exact with the JSON schema.
type ResolvedDependency struct {
	Type      string            `json:"type"` // "remote" or "local"
	URI       string            `json:"uri"`
	Checksums map[string]string `json:"checksums,omitempty"`
	Path      string            `json:"path,omitempty"`
}

// DepsFile is the parsed PklProject.deps.json sidecar (§6.3).
type DepsFile struct {
	SchemaVersion        int                           `json:"schemaVersion"`
	ResolvedDependencies map[string]ResolvedDependency `json:"resolvedDependencies"`
}

// LoadDepsFile reads and validates a PklProject.deps.json at path.
func LoadDepsFile(path string) (*DepsFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, perrors.Newf(perrors.Resolve, "reading %s: %v", path, err)
	}
	var df DepsFile
	if err := json.Unmarshal(b, &df); err != nil {
		return nil, perrors.Newf(perrors.Resolve, "parsing %s: %v", path, err)
	}
	if df.SchemaVersion != 1 {
		return nil, perrors.Newf(perrors.Resolve, "unsupported PklProject.deps.json schemaVersion %d", df.SchemaVersion)
	}
	return &df, nil
}

// Resolver answers the dependency questions a project-aware
// ModuleKeyFactory needs: rewriting `@name/rest.pkl` import URIs to
// `projectpackage://` form, and supplying checksums/local paths for the
// resulting package URIs.
type Resolver struct {
	manifest *Manifest
	deps     *DepsFile
}

// NewResolver builds a Resolver from a manifest and its resolved
// deps.json (which may be nil if the project declares no dependencies).
func NewResolver(manifest *Manifest, deps *DepsFile) *Resolver {
	return &Resolver{manifest: manifest, deps: deps}
}

// Load reads manifestPath (a JSON-shaped PklProject rendering — see
// package doc) and its sibling PklProject.deps.json, if present.
func Load(manifestPath string) (*Resolver, error) {
	b, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, perrors.Newf(perrors.Resolve, "reading %s: %v", manifestPath, err)
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, perrors.Newf(perrors.Resolve, "parsing %s: %v", manifestPath, err)
	}
	m.Dir = filepath.Dir(manifestPath)

	depsPath := filepath.Join(m.Dir, "PklProject.deps.json")
	var deps *DepsFile
	if _, err := os.Stat(depsPath); err == nil {
		deps, err = LoadDepsFile(depsPath)
		if err != nil {
			return nil, err
		}
	}
	return NewResolver(&m, deps), nil
}

// splitAtImport splits the `@name/rest.pkl` form of a project-relative
// import (§4.1's "rewrites the import URI from `@name/rest.pkl`").
func splitAtImport(uri string) (name, rest string, ok bool) {
	if !strings.HasPrefix(uri, "@") {
		return "", "", false
	}
	trimmed := uri[1:]
	i := strings.IndexByte(trimmed, '/')
	if i < 0 {
		return trimmed, "", true
	}
	return trimmed[:i], trimmed[i+1:], true
}

// canonicalURIFor returns the key resolvedDependencies is indexed by:
// the package's own base URI without a version or fragment, e.g.
// "package://example.com/name".
func (r *Resolver) canonicalURIFor(name string) (string, error) {
	src, ok := r.manifest.Dependencies[name]
	if !ok {
		return "", perrors.Newf(perrors.Resolve, "no dependency named `%s` declared in PklProject", name)
	}
	if src.URI != "" {
		return src.URI, nil
	}
	return "", perrors.Newf(perrors.Resolve, "dependency `%s` has no resolvable URI", name)
}

// RewriteURI implements scheme.ProjectPackageFactory's RewriteURI hook:
// it resolves `@name/rest.pkl` to `projectpackage://host/name@version#/rest.pkl`
// by consulting the resolved dependency's canonical URI (§4.1).
func (r *Resolver) RewriteURI(uri string) (string, error) {
	name, rest, ok := splitAtImport(uri)
	if !ok {
		return "", perrors.Newf(perrors.Resolve, "not a project-relative import: %q", uri)
	}
	canonical, err := r.canonicalURIFor(name)
	if err != nil {
		return "", err
	}
	if r.deps == nil {
		return "", perrors.Newf(perrors.Resolve, "no PklProject.deps.json resolved dependency for `%s`", name)
	}
	rd, ok := r.deps.ResolvedDependencies[canonical]
	if !ok {
		return "", perrors.Newf(perrors.Resolve, "missing dependency `%s`: not present in PklProject.deps.json", name)
	}
	target := strings.Replace(rd.URI, "package://", "projectpackage://", 1)
	if rest != "" {
		target += "#/" + rest
	} else {
		target += "#/"
	}
	return target, nil
}

// ChecksumOf adapts Resolver to scheme.PackageFactory.ChecksumOf,
// looking up the declared sha256 for the resolved dependency matching
// packageURI once its projectpackage: scheme has been lowered back to
// package: by the caller.
func (r *Resolver) ChecksumOf(packageURI string) (string, bool) {
	if r.deps == nil {
		return "", false
	}
	lookup := strings.Replace(packageURI, "projectpackage://", "package://", 1)
	for canonical, rd := range r.deps.ResolvedDependencies {
		if rd.URI == lookup || canonical == lookup {
			if sum, ok := rd.Checksums["sha256"]; ok {
				return sum, true
			}
		}
	}
	return "", false
}

// Dependency converts a resolved-dependency entry into the
// resolve.Dependency shape the core resolver understands (§4.1).
func Dependency(name string, rd ResolvedDependency) resolve.Dependency {
	switch rd.Type {
	case "local":
		return resolve.Dependency{Alias: name, Remote: false, URI: rd.URI, Path: rd.Path}
	default:
		return resolve.Dependency{Alias: name, Remote: true, URI: rd.URI, Checksum: rd.Checksums["sha256"]}
	}
}

// Dependencies returns every declared dependency as the
// map[alias]resolve.Dependency shape required by resolve.Factory's
// Dependencies hook.
func (r *Resolver) Dependencies() map[string]resolve.Dependency {
	out := make(map[string]resolve.Dependency)
	if r.deps == nil {
		return out
	}
	for name, src := range r.manifest.Dependencies {
		canonical := src.URI
		if rd, ok := r.deps.ResolvedDependencies[canonical]; ok {
			out[name] = Dependency(name, rd)
		}
	}
	return out
}

// VerifyArchive computes archive's sha256 and compares it against the
// declared checksum for dependency name, producing the exact wording of
// §4.1/scenario 4 on mismatch.
func VerifyArchive(name string, archive []byte, declaredHex string) error {
	if declaredHex == SkipChecksumVerification {
		return nil
	}
	sum := sha256.Sum256(archive)
	got := hex.EncodeToString(sum[:])
	if got != declaredHex {
		return perrors.Newf(perrors.Resolve,
			"Computed checksum did not match declared checksum for dependency `%s`: computed %s, declared %s",
			name, got, declaredHex)
	}
	return nil
}

// Manifest exposes the parsed manifest (e.g. for evaluator-settings wiring).
func (r *Resolver) Manifest() *Manifest { return r.manifest }

// String is a debug rendering, used by `pkl project resolve --json`-less paths.
func (m *Manifest) String() string {
	return fmt.Sprintf("PklProject(dir=%s, deps=%d)", m.Dir, len(m.Dependencies))
}
