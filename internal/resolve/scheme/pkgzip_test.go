package scheme

import (
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pklrun/pkl/internal/cache"
)

// writeFixtureArchive pre-seeds cacheDir with the ZIP PackageFactory
// would otherwise have fetched over HTTP, keyed by the same
// sha256(zipURI) naming scheme as archivePath.
func writeFixtureArchive(t *testing.T, cacheDir, zipURI string, files map[string]string) {
	t.Helper()
	sum := sha256.Sum256([]byte(zipURI))
	path := filepath.Join(cacheDir, hex.EncodeToString(sum[:])+".zip")

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

func TestPackageFactoryLoadSourceFromCachedArchive(t *testing.T) {
	cacheDir := t.TempDir()
	zipURI := "package://example.com/foo@1.0.0"
	writeFixtureArchive(t, cacheDir, zipURI, map[string]string{
		"bar.pkl":     "x = 1\n",
		"sub/baz.pkl": "y = 2\n",
	})

	f := NewPackageFactory(cacheDir, nil)
	key, err := f.Resolve(zipURI + "#/bar.pkl")
	require.NoError(t, err)
	assert.True(t, key.Globbable)

	src, err := f.LoadSource(key)
	require.NoError(t, err)
	assert.Equal(t, "x = 1\n", src)
}

func TestPackageFactoryListAndHasElement(t *testing.T) {
	cacheDir := t.TempDir()
	zipURI := "package://example.com/foo@1.0.0"
	writeFixtureArchive(t, cacheDir, zipURI, map[string]string{
		"a.pkl":       "",
		"b.pkl":       "",
		"sub/c.pkl":   "",
	})

	f := NewPackageFactory(cacheDir, nil)
	key, err := f.Resolve(zipURI + "#/")
	require.NoError(t, err)

	els, err := f.ListElements(key)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.pkl", "b.pkl", "sub"}, els)

	has, err := f.HasElement(key, "a.pkl")
	require.NoError(t, err)
	assert.True(t, has)

	has, err = f.HasElement(key, "missing.pkl")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestPackageFactoryLoadSourceMissingMember(t *testing.T) {
	cacheDir := t.TempDir()
	zipURI := "package://example.com/foo@1.0.0"
	writeFixtureArchive(t, cacheDir, zipURI, map[string]string{"bar.pkl": "x = 1\n"})

	f := NewPackageFactory(cacheDir, nil)
	key, err := f.Resolve(zipURI + "#/nope.pkl")
	require.NoError(t, err)

	_, err = f.LoadSource(key)
	require.Error(t, err)
}

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// checksumOf chains ChecksumOf ahead of Store: a project-declared
// checksum always wins over a merely-previously-seen one (§4.1).
func TestPackageFactoryChecksumOfPrefersProjectThenStore(t *testing.T) {
	store, err := cache.OpenStore(":memory:", false)
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Put(cache.PackageRecord{URI: "package://example.com/foo@1.0.0", Checksum: "from-store"}))

	f := NewPackageFactory(t.TempDir(), nil)
	f.Store = store

	sum, ok := f.checksumOf("package://example.com/foo@1.0.0")
	assert.True(t, ok)
	assert.Equal(t, "from-store", sum, "falls back to Store when ChecksumOf is unset")

	f.ChecksumOf = func(string) (string, bool) { return "from-project", true }
	sum, ok = f.checksumOf("package://example.com/foo@1.0.0")
	assert.True(t, ok)
	assert.Equal(t, "from-project", sum, "a project-declared checksum takes precedence over Store")
}

// A verified fetch persists its computed checksum into Store, so a
// later evaluator run (or a second factory sharing the same Store but
// an empty cache directory) can trust the package without needing a
// project's PklProject.deps.json to re-supply the checksum.
func TestPackageFactoryEnsureFetchedPersistsChecksumToStore(t *testing.T) {
	archive := zipBytes(t, map[string]string{"bar.pkl": "x = 1\n"})
	sum := sha256.Sum256(archive)
	wantChecksum := hex.EncodeToString(sum[:])

	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(archive)
	}))
	defer srv.Close()
	host := srv.Listener.Addr().String()
	zipURI := "package://" + host + "/foo@1.0.0"

	store, err := cache.OpenStore(":memory:", false)
	require.NoError(t, err)
	defer store.Close()

	f := NewPackageFactory(t.TempDir(), srv.Client())
	f.Store = store

	key, err := f.Resolve(zipURI + "#/bar.pkl")
	require.NoError(t, err)

	src, err := f.LoadSource(key)
	require.NoError(t, err)
	assert.Equal(t, "x = 1\n", src)

	rec, ok, err := store.Get(zipURI)
	require.NoError(t, err)
	require.True(t, ok, "a verified fetch must persist a PackageRecord")
	assert.Equal(t, wantChecksum, rec.Checksum)
	assert.Equal(t, "remote", rec.ResolvedFrom)
}

func TestProjectPackageFactoryRewritesThenDelegates(t *testing.T) {
	cacheDir := t.TempDir()
	zipURI := "package://example.com/foo@1.0.0"
	writeFixtureArchive(t, cacheDir, zipURI, map[string]string{"bar.pkl": "x = 1\n"})

	inner := NewPackageFactory(cacheDir, nil)
	proj := NewProjectPackageFactory(inner, func(uri string) (string, error) {
		return zipURI + "#/bar.pkl", nil
	})

	key, err := proj.Resolve("projectpackage://whatever")
	require.NoError(t, err)
	assert.Equal(t, "projectpackage", key.Scheme)

	src, err := proj.LoadSource(key)
	require.NoError(t, err)
	assert.Equal(t, "x = 1\n", src)
}
