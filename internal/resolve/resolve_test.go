package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFactory struct {
	scheme string
}

func (s stubFactory) Scheme() string { return s.scheme }
func (s stubFactory) Resolve(uri string) (ResolvedModuleKey, error) {
	return ResolvedModuleKey{NormalizedURI: uri, Scheme: s.scheme}, nil
}
func (s stubFactory) LoadSource(ResolvedModuleKey) (string, error)  { return "ok", nil }
func (s stubFactory) HasElement(ResolvedModuleKey, string) (bool, error) { return false, nil }
func (s stubFactory) ListElements(ResolvedModuleKey) ([]string, error)  { return nil, nil }
func (s stubFactory) Dependencies(ResolvedModuleKey) (map[string]Dependency, error) {
	return nil, nil
}

func TestRegistryRejectsDuplicateScheme(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterFactory(stubFactory{scheme: "file"}))
	err := r.RegisterFactory(stubFactory{scheme: "file"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegistryFactoryForUnknownScheme(t *testing.T) {
	r := NewRegistry()
	_, err := r.FactoryFor("ftp")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown scheme")
}

func TestSchemeOfRejectsRelativeURI(t *testing.T) {
	_, err := SchemeOf("foo/bar.pkl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relative URI")
}

func TestSchemeOfExtractsScheme(t *testing.T) {
	s, err := SchemeOf("file:///tmp/a.pkl")
	require.NoError(t, err)
	assert.Equal(t, "file", s)
}

func TestSecurityManagerAllowList(t *testing.T) {
	sm, err := NewSecurityManager([]string{"^file$", "^https?$"}, nil, "")
	require.NoError(t, err)

	require.NoError(t, sm.CheckAllowed("file", "file:///a.pkl"))
	err = sm.CheckAllowed("ftp", "ftp://host/a.pkl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Refusing to load module")
}

func TestSecurityManagerNoAllowListPermitsEverything(t *testing.T) {
	sm, err := NewSecurityManager(nil, nil, "")
	require.NoError(t, err)
	assert.NoError(t, sm.CheckAllowed("anything", "anything:uri"))
}

func TestSecurityManagerTrust(t *testing.T) {
	trustOf := func(scheme string) Trust {
		if scheme == "repl" {
			return TrustStdlib
		}
		return TrustProject
	}
	sm, err := NewSecurityManager(nil, trustOf, "")
	require.NoError(t, err)

	require.NoError(t, sm.CheckTrust(TrustStdlib, "repl"))
	err = sm.CheckTrust(TrustUntrusted, "repl")
	require.Error(t, err)
}

func TestSecurityManagerRootDirContainment(t *testing.T) {
	sm, err := NewSecurityManager(nil, nil, "/workspace/project")
	require.NoError(t, err)

	require.NoError(t, sm.CheckRootDir("/workspace/project/sub/module.pkl"))
	err = sm.CheckRootDir("/etc/passwd")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside rootDir")
}

func TestRegistryResolveAppliesSecurityBeforeFactory(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterFactory(stubFactory{scheme: "file"}))
	sm, err := NewSecurityManager([]string{"^https$"}, nil, "")
	require.NoError(t, err)

	_, err = r.Resolve(sm, TrustProject, "file:///a.pkl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Refusing to load module")
}

func TestRegistryResolveDelegatesToFactory(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterFactory(stubFactory{scheme: "file"}))

	key, err := r.Resolve(nil, TrustProject, "file:///a.pkl")
	require.NoError(t, err)
	assert.Equal(t, "file", key.Scheme)
}
