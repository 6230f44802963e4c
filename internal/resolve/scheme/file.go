// Package scheme provides the built-in resolve.Factory implementations
// named in spec §4.1/§6.1: file, https, modulepath, pklstdlib (the
// built-in "pkl:" standard library), pkgzip (package:/projectpackage:),
// and repl. Each factory is registered explicitly with a
// resolve.Registry; none are wired in automatically, matching the
// teacher's zero-builtin-providers registry posture.
package scheme

import (
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/pklrun/pkl/internal/perrors"
	"github.com/pklrun/pkl/internal/resolve"
)

// loadGitignore walks up from dir collecting .gitignore files, root-first,
// and compiles them into a single matcher so a closer .gitignore's
// patterns take precedence over a parent's. Returns nil if none exist.
func loadGitignore(dir string) *ignore.GitIgnore {
	var files []string
	for {
		candidate := filepath.Join(dir, ".gitignore")
		if _, err := os.Stat(candidate); err == nil {
			files = append(files, candidate)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	if len(files) == 0 {
		return nil
	}
	for i, j := 0, len(files)-1; i < j; i, j = i+1, j-1 {
		files[i], files[j] = files[j], files[i]
	}
	var gi *ignore.GitIgnore
	var err error
	if len(files) == 1 {
		gi, err = ignore.CompileIgnoreFile(files[0])
	} else {
		gi, err = ignore.CompileIgnoreFileAndLines(files[0], files[1:]...)
	}
	if err != nil {
		return nil
	}
	return gi
}

// FileFactory resolves file: URIs against the local filesystem, with
// real-path (symlink-expanded) normalization per §6.1.
type FileFactory struct{}

func NewFileFactory() *FileFactory { return &FileFactory{} }

func (FileFactory) Scheme() string { return "file" }

func (FileFactory) Resolve(uri string) (resolve.ResolvedModuleKey, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return resolve.ResolvedModuleKey{}, perrors.Newf(perrors.Resolve, "malformed file URI %q: %v", uri, err)
	}
	path := u.Path
	if path == "" {
		path = u.Opaque
	}
	real, err := filepath.EvalSymlinks(path)
	if err != nil {
		// Not found yet (module doesn't exist on disk): normalize the
		// absolute form without requiring the path to already exist.
		abs, aerr := filepath.Abs(path)
		if aerr != nil {
			return resolve.ResolvedModuleKey{}, perrors.Newf(perrors.Resolve, "cannot resolve file URI %q: %v", uri, err)
		}
		real = abs
	}
	return resolve.ResolvedModuleKey{NormalizedURI: real, Scheme: "file", Globbable: true}, nil
}

func (FileFactory) LoadSource(key resolve.ResolvedModuleKey) (string, error) {
	b, err := os.ReadFile(key.NormalizedURI)
	if err != nil {
		return "", perrors.Newf(perrors.Resolve, "module `%s` not found: %v", key.NormalizedURI, err)
	}
	return string(b), nil
}

func (FileFactory) HasElement(key resolve.ResolvedModuleKey, rel string) (bool, error) {
	_, err := os.Stat(filepath.Join(filepath.Dir(key.NormalizedURI), rel))
	return err == nil, nil
}

// ListElements returns the entries of the directory containing
// NormalizedURI, used by glob-import expansion (§4.7). Entries matched by
// a .gitignore found in dir or one of its ancestors are excluded, the
// same as the local package root is never expected to glob-import its own
// build artifacts or vendored trees.
func (FileFactory) ListElements(key resolve.ResolvedModuleKey) ([]string, error) {
	dir := key.NormalizedURI
	if fi, err := os.Stat(dir); err == nil && !fi.IsDir() {
		dir = filepath.Dir(dir)
	}
	gitignore := loadGitignore(dir)
	var out []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == dir {
			return nil
		}
		rel, rerr := filepath.Rel(dir, path)
		if rerr != nil {
			return rerr
		}
		rel = filepath.ToSlash(rel)
		if gitignore != nil && gitignore.MatchesPath(rel) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		out = append(out, rel)
		return nil
	})
	if err != nil {
		return nil, perrors.Newf(perrors.Resolve, "cannot list %q: %v", dir, err)
	}
	sort.Strings(out)
	return out, nil
}

func (FileFactory) Dependencies(resolve.ResolvedModuleKey) (map[string]resolve.Dependency, error) {
	return nil, nil
}

// ModulepathFactory resolves modulepath:/rest against an ordered list of
// search roots, classpath-style.
type ModulepathFactory struct {
	Roots []string
}

func NewModulepathFactory(roots []string) *ModulepathFactory {
	return &ModulepathFactory{Roots: roots}
}

func (ModulepathFactory) Scheme() string { return "modulepath" }

func (f *ModulepathFactory) Resolve(uri string) (resolve.ResolvedModuleKey, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return resolve.ResolvedModuleKey{}, perrors.Newf(perrors.Resolve, "malformed modulepath URI %q: %v", uri, err)
	}
	rel := strings.TrimPrefix(u.Opaque, "/")
	if rel == "" {
		rel = strings.TrimPrefix(u.Path, "/")
	}
	for _, root := range f.Roots {
		candidate := filepath.Join(root, rel)
		if _, err := os.Stat(candidate); err == nil {
			return resolve.ResolvedModuleKey{NormalizedURI: candidate, Scheme: "modulepath", Globbable: true}, nil
		}
	}
	return resolve.ResolvedModuleKey{}, perrors.Newf(perrors.Resolve, "module `%s` not found on modulepath", uri)
}

func (ModulepathFactory) LoadSource(key resolve.ResolvedModuleKey) (string, error) {
	b, err := os.ReadFile(key.NormalizedURI)
	if err != nil {
		return "", perrors.Newf(perrors.Resolve, "module `%s` not found: %v", key.NormalizedURI, err)
	}
	return string(b), nil
}

func (ModulepathFactory) HasElement(key resolve.ResolvedModuleKey, rel string) (bool, error) {
	_, err := os.Stat(filepath.Join(filepath.Dir(key.NormalizedURI), rel))
	return err == nil, nil
}

func (ModulepathFactory) ListElements(key resolve.ResolvedModuleKey) ([]string, error) {
	return FileFactory{}.ListElements(key)
}

func (ModulepathFactory) Dependencies(resolve.ResolvedModuleKey) (map[string]resolve.Dependency, error) {
	return nil, nil
}

// ReplFactory assigns the repl: scheme to text fragments evaluated
// through the REPL/string-eval API (§6.1). Source is supplied at
// Register time via RegisterText, keyed by the fragment's assigned name.
type ReplFactory struct {
	fragments map[string]string
}

func NewReplFactory() *ReplFactory {
	return &ReplFactory{fragments: make(map[string]string)}
}

// RegisterText assigns uri (normally "repl:text" or "repl:<n>") to the
// given source text, making it resolvable as a module.
func (f *ReplFactory) RegisterText(uri, src string) {
	f.fragments[uri] = src
}

func (ReplFactory) Scheme() string { return "repl" }

func (f *ReplFactory) Resolve(uri string) (resolve.ResolvedModuleKey, error) {
	if _, ok := f.fragments[uri]; !ok {
		return resolve.ResolvedModuleKey{}, perrors.Newf(perrors.Resolve, "no repl fragment registered for `%s`", uri)
	}
	return resolve.ResolvedModuleKey{NormalizedURI: uri, Scheme: "repl", Globbable: false}, nil
}

func (f *ReplFactory) LoadSource(key resolve.ResolvedModuleKey) (string, error) {
	src, ok := f.fragments[key.NormalizedURI]
	if !ok {
		return "", perrors.Newf(perrors.Resolve, "no repl fragment registered for `%s`", key.NormalizedURI)
	}
	return src, nil
}

func (ReplFactory) HasElement(resolve.ResolvedModuleKey, string) (bool, error) {
	return false, nil
}

func (ReplFactory) ListElements(key resolve.ResolvedModuleKey) ([]string, error) {
	return nil, fmt.Errorf("repl: scheme is not globbable")
}

func (ReplFactory) Dependencies(resolve.ResolvedModuleKey) (map[string]resolve.Dependency, error) {
	return nil, nil
}
