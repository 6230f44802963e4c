package scheme

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/pklrun/pkl/internal/cache"
	"github.com/pklrun/pkl/internal/perrors"
	"github.com/pklrun/pkl/internal/resolve"
)

// PackageFactory resolves package://host[:port]/name@version#/path URIs
// (§6.1) by fetching a signed ZIP into cacheDir, verifying its SHA-256
// against the checksum supplied by ChecksumOf (normally backed by
// internal/project's PklProject.deps.json) or, failing that, by Store
// (a previously-verified checksum persisted across runs), and serving
// module source out of the extracted archive.
type PackageFactory struct {
	client     *http.Client
	cacheDir   string
	ChecksumOf func(packageURI string) (sha256hex string, ok bool)

	// Store, if set, is consulted for a package's declared checksum
	// whenever ChecksumOf doesn't supply one (e.g. fetching outside a
	// project's PklProject.deps.json), and is updated with every
	// successfully-verified fetch so the next evaluator run - even a
	// fresh process - can trust a package already cached on disk
	// without re-deriving its checksum from a project manifest.
	Store *cache.Store
}

func NewPackageFactory(cacheDir string, client *http.Client) *PackageFactory {
	if client == nil {
		client = http.DefaultClient
	}
	return &PackageFactory{client: client, cacheDir: cacheDir}
}

// checksumOf chains ChecksumOf ahead of Store, so a project-declared
// checksum always wins over a merely-previously-seen one.
func (f *PackageFactory) checksumOf(zipURI string) (string, bool) {
	if f.ChecksumOf != nil {
		if sum, ok := f.ChecksumOf(zipURI); ok {
			return sum, ok
		}
	}
	if f.Store != nil {
		return f.Store.ChecksumOf(zipURI)
	}
	return "", false
}

func (PackageFactory) Scheme() string { return "package" }

// packageRef splits a package: URI into its zip-identifying part
// ("package://host/name@version") and the in-archive fragment path.
func packageRef(uri string) (zipURI, fragment string, err error) {
	u, perr := url.Parse(uri)
	if perr != nil || u.Scheme != "package" {
		return "", "", fmt.Errorf("malformed package URI %q", uri)
	}
	base := "package://" + u.Host + u.Path
	frag := strings.TrimPrefix(u.Fragment, "/")
	return base, frag, nil
}

func (f *PackageFactory) Resolve(uri string) (resolve.ResolvedModuleKey, error) {
	zipURI, _, err := packageRef(uri)
	if err != nil {
		return resolve.ResolvedModuleKey{}, perrors.Newf(perrors.Resolve, "%v", err)
	}
	if err := f.ensureFetched(zipURI); err != nil {
		return resolve.ResolvedModuleKey{}, err
	}
	return resolve.ResolvedModuleKey{NormalizedURI: uri, Scheme: "package", Globbable: true}, nil
}

// ensureFetched downloads and verifies the ZIP backing zipURI into
// cacheDir if not already present, failing with the exact checksum-
// mismatch wording of §4.1 on a digest mismatch.
func (f *PackageFactory) ensureFetched(zipURI string) error {
	dest := f.archivePath(zipURI)
	if _, err := os.Stat(dest); err == nil {
		return nil
	}
	downloadURL := strings.Replace(zipURI, "package://", "https://", 1) + ".zip"
	resp, err := f.client.Get(downloadURL)
	if err != nil {
		return perrors.Newf(perrors.IO, "fetching package `%s`: %v", zipURI, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return perrors.Newf(perrors.Resolve, "package `%s` not found: HTTP %d", zipURI, resp.StatusCode)
	}

	h := sha256.New()
	tmp, err := os.CreateTemp(f.cacheDir, "pkg-*.zip")
	if err != nil {
		return perrors.Newf(perrors.IO, "caching package `%s`: %v", zipURI, err)
	}
	defer tmp.Close()
	if _, err := io.Copy(io.MultiWriter(tmp, h), resp.Body); err != nil {
		return perrors.Newf(perrors.IO, "caching package `%s`: %v", zipURI, err)
	}

	got := hex.EncodeToString(h.Sum(nil))
	if want, ok := f.checksumOf(zipURI); ok && want != "$skipChecksumVerification" {
		if got != want {
			os.Remove(tmp.Name())
			return perrors.Newf(perrors.Resolve,
				"Computed checksum did not match declared checksum for dependency `%s`: computed %s, declared %s",
				zipURI, got, want)
		}
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return perrors.Newf(perrors.IO, "caching package `%s`: %v", zipURI, err)
	}
	if f.Store != nil {
		_ = f.Store.Put(cache.PackageRecord{URI: zipURI, Checksum: got, LocalPath: dest, ResolvedFrom: "remote"})
	}
	return nil
}

func (f *PackageFactory) archivePath(zipURI string) string {
	sum := sha256.Sum256([]byte(zipURI))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:])+".zip")
}

func (f *PackageFactory) LoadSource(key resolve.ResolvedModuleKey) (string, error) {
	zipURI, frag, err := packageRef(key.NormalizedURI)
	if err != nil {
		return "", perrors.Newf(perrors.Resolve, "%v", err)
	}
	r, err := zip.OpenReader(f.archivePath(zipURI))
	if err != nil {
		return "", perrors.Newf(perrors.Resolve, "opening package archive for `%s`: %v", zipURI, err)
	}
	defer r.Close()
	for _, zf := range r.File {
		if zf.Name == frag {
			rc, err := zf.Open()
			if err != nil {
				return "", perrors.Newf(perrors.IO, "reading `%s` from package: %v", frag, err)
			}
			defer rc.Close()
			b, err := io.ReadAll(rc)
			if err != nil {
				return "", perrors.Newf(perrors.IO, "reading `%s` from package: %v", frag, err)
			}
			return string(b), nil
		}
	}
	return "", perrors.Newf(perrors.Resolve, "module `%s` not found in package `%s`", frag, zipURI)
}

func (f *PackageFactory) HasElement(key resolve.ResolvedModuleKey, rel string) (bool, error) {
	els, err := f.ListElements(key)
	if err != nil {
		return false, err
	}
	for _, e := range els {
		if e == rel {
			return true, nil
		}
	}
	return false, nil
}

func (f *PackageFactory) ListElements(key resolve.ResolvedModuleKey) ([]string, error) {
	zipURI, frag, err := packageRef(key.NormalizedURI)
	if err != nil {
		return nil, perrors.Newf(perrors.Resolve, "%v", err)
	}
	r, err := zip.OpenReader(f.archivePath(zipURI))
	if err != nil {
		return nil, perrors.Newf(perrors.Resolve, "opening package archive for `%s`: %v", zipURI, err)
	}
	defer r.Close()
	dir := frag
	if !strings.HasSuffix(dir, "/") {
		dir += "/"
	}
	var out []string
	for _, zf := range r.File {
		if strings.HasPrefix(zf.Name, dir) {
			rel := strings.TrimPrefix(zf.Name, dir)
			if rel != "" && !strings.Contains(rel, "/") {
				out = append(out, rel)
			}
		}
	}
	return out, nil
}

func (f *PackageFactory) Dependencies(key resolve.ResolvedModuleKey) (map[string]resolve.Dependency, error) {
	return nil, nil
}

// ProjectPackageFactory handles projectpackage: URIs by rewriting them
// through RewriteURI (normally internal/project's dependency-name
// lookup) to a package: URI, then delegating to an inner PackageFactory
// (§4.1's "projectpackage: re-labels package: after project deps
// resolution").
type ProjectPackageFactory struct {
	Inner     *PackageFactory
	RewriteURI func(uri string) (string, error)
}

func NewProjectPackageFactory(inner *PackageFactory, rewrite func(string) (string, error)) *ProjectPackageFactory {
	return &ProjectPackageFactory{Inner: inner, RewriteURI: rewrite}
}

func (ProjectPackageFactory) Scheme() string { return "projectpackage" }

func (f *ProjectPackageFactory) Resolve(uri string) (resolve.ResolvedModuleKey, error) {
	rewritten, err := f.RewriteURI(uri)
	if err != nil {
		return resolve.ResolvedModuleKey{}, err
	}
	key, err := f.Inner.Resolve(rewritten)
	if err != nil {
		return resolve.ResolvedModuleKey{}, err
	}
	key.Scheme = "projectpackage"
	return key, nil
}

func (f *ProjectPackageFactory) LoadSource(key resolve.ResolvedModuleKey) (string, error) {
	return f.Inner.LoadSource(key)
}

func (f *ProjectPackageFactory) HasElement(key resolve.ResolvedModuleKey, rel string) (bool, error) {
	return f.Inner.HasElement(key, rel)
}

func (f *ProjectPackageFactory) ListElements(key resolve.ResolvedModuleKey) ([]string, error) {
	return f.Inner.ListElements(key)
}

func (f *ProjectPackageFactory) Dependencies(key resolve.ResolvedModuleKey) (map[string]resolve.Dependency, error) {
	return f.Inner.Dependencies(key)
}
