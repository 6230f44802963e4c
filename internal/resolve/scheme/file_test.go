package scheme

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileFactoryResolveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.pkl")
	require.NoError(t, os.WriteFile(path, []byte("x = 1\n"), 0o644))

	f := NewFileFactory()
	key, err := f.Resolve("file://" + path)
	require.NoError(t, err)
	assert.Equal(t, "file", key.Scheme)

	src, err := f.LoadSource(key)
	require.NoError(t, err)
	assert.Equal(t, "x = 1\n", src)
}

func TestFileFactoryListElements(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.pkl"), []byte(""), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.pkl"), []byte(""), 0o644))

	f := NewFileFactory()
	key, err := f.Resolve("file://" + dir)
	require.NoError(t, err)

	els, err := f.ListElements(key)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.pkl", "b.pkl"}, els)
}

func TestFileFactoryListElementsRespectsGitignore(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".gitignore"), []byte("*.log\nbuild/\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.pkl"), []byte(""), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "debug.log"), []byte(""), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "build"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "build", "out.pkl"), []byte(""), 0o644))

	f := NewFileFactory()
	key, err := f.Resolve("file://" + dir)
	require.NoError(t, err)

	els, err := f.ListElements(key)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{".gitignore", "a.pkl"}, els)
}

func TestFileFactoryLoadSourceMissing(t *testing.T) {
	f := NewFileFactory()
	key, err := f.Resolve("file:///does/not/exist.pkl")
	require.NoError(t, err)
	_, err = f.LoadSource(key)
	require.Error(t, err)
}

func TestReplFactoryRoundTrip(t *testing.T) {
	f := NewReplFactory()
	f.RegisterText("repl:text", "a = 1\n")

	key, err := f.Resolve("repl:text")
	require.NoError(t, err)
	src, err := f.LoadSource(key)
	require.NoError(t, err)
	assert.Equal(t, "a = 1\n", src)

	_, err = f.ListElements(key)
	require.Error(t, err)
}

func TestPklStdlibFactoryResolvesKnownModules(t *testing.T) {
	f := NewPklStdlibFactory()
	key, err := f.Resolve("pkl:base")
	require.NoError(t, err)
	src, err := f.LoadSource(key)
	require.NoError(t, err)
	assert.Contains(t, src, "module pkl.base")

	_, err = f.Resolve("pkl:nope")
	require.Error(t, err)
}
