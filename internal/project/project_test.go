package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadManifestWithoutDepsFile(t *testing.T) {
	dir := t.TempDir()
	manifestPath := writeFile(t, dir, "PklProject.json", `{
		"dependencies": {},
		"evaluatorSettings": {"timeoutSeconds": 30}
	}`)

	r, err := Load(manifestPath)
	require.NoError(t, err)
	assert.Equal(t, 30, r.Manifest().Settings.TimeoutSeconds)
	assert.Equal(t, int(30), int(r.Manifest().Settings.Timeout().Seconds()))
}

func TestRewriteURIResolvesProjectRelativeImport(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "PklProject.deps.json", `{
		"schemaVersion": 1,
		"resolvedDependencies": {
			"package://example.com/foo": {
				"type": "remote",
				"uri": "package://example.com/foo@1.0.0",
				"checksums": {"sha256": "abc123"}
			}
		}
	}`)
	manifestPath := writeFile(t, dir, "PklProject.json", `{
		"dependencies": {
			"foo": {"uri": "package://example.com/foo"}
		}
	}`)

	r, err := Load(manifestPath)
	require.NoError(t, err)

	target, err := r.RewriteURI("@foo/bar.pkl")
	require.NoError(t, err)
	assert.Equal(t, "projectpackage://example.com/foo@1.0.0#/bar.pkl", target)

	sum, ok := r.ChecksumOf("projectpackage://example.com/foo@1.0.0")
	require.True(t, ok)
	assert.Equal(t, "abc123", sum)
}

func TestRewriteURIUnknownDependencyFails(t *testing.T) {
	dir := t.TempDir()
	manifestPath := writeFile(t, dir, "PklProject.json", `{"dependencies": {}}`)
	r, err := Load(manifestPath)
	require.NoError(t, err)

	_, err = r.RewriteURI("@missing/bar.pkl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no dependency named")
}

func TestVerifyArchiveChecksumMismatch(t *testing.T) {
	err := VerifyArchive("foo", []byte("data"), "deadbeef")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Computed checksum did not match")
}

func TestVerifyArchiveSkipSentinelBypassesCheck(t *testing.T) {
	err := VerifyArchive("foo", []byte("data"), SkipChecksumVerification)
	require.NoError(t, err)
}

func TestLoadDepsFileRejectsUnsupportedSchemaVersion(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "PklProject.deps.json", `{"schemaVersion": 2, "resolvedDependencies": {}}`)
	_, err := LoadDepsFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported")
}
