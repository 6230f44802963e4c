package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorePutAndGet(t *testing.T) {
	s, err := OpenStore(":memory:", false)
	require.NoError(t, err)
	defer s.Close()

	rec := PackageRecord{
		URI:          "package://example.com/widgets@1.0.0",
		Version:      "1.0.0",
		Checksum:     "deadbeef",
		LocalPath:    "/cache/widgets-1.0.0.zip",
		ResolvedFrom: "remote",
	}
	require.NoError(t, s.Put(rec))

	got, ok, err := s.Get(rec.URI)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rec.Checksum, got.Checksum)
}

func TestStoreGetMissing(t *testing.T) {
	s, err := OpenStore(":memory:", false)
	require.NoError(t, err)
	defer s.Close()

	_, ok, err := s.Get("package://example.com/missing@1.0.0")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreChecksumOfAdapter(t *testing.T) {
	s, err := OpenStore(":memory:", false)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Put(PackageRecord{URI: "package://example.com/a@1.0.0", Checksum: "abc123"}))

	sum, ok := s.ChecksumOf("package://example.com/a@1.0.0")
	assert.True(t, ok)
	assert.Equal(t, "abc123", sum)

	_, ok = s.ChecksumOf("package://example.com/unknown@1.0.0")
	assert.False(t, ok)
}
