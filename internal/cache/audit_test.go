package cache

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLogRecordAndLastState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	a, err := OpenAuditLog(path)
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Record("file:///a.pkl", "InFlight", ""))
	require.NoError(t, a.Record("file:///a.pkl", "Compiled", ""))

	state, ok, err := a.LastState("file:///a.pkl")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Compiled", state)
}

func TestAuditLogLastStateMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	a, err := OpenAuditLog(path)
	require.NoError(t, err)
	defer a.Close()

	_, ok, err := a.LastState("file:///nope.pkl")
	require.NoError(t, err)
	assert.False(t, ok)
}
