package scheme

import (
	"testing"

	"github.com/pklrun/pkl/internal/resolve"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPklStdlibFactoryNamesIsSortedAndComplete(t *testing.T) {
	f := NewPklStdlibFactory()
	names := f.Names()
	assert.Equal(t, []string{"pkl:Project", "pkl:base", "pkl:json", "pkl:math", "pkl:platform", "pkl:release", "pkl:test"}, names)
}

func TestPklStdlibFactoryLoadSourceUnknownModuleFails(t *testing.T) {
	f := NewPklStdlibFactory()
	_, err := f.LoadSource(resolve.ResolvedModuleKey{NormalizedURI: "pkl:doesnotexist", Scheme: "pkl"})
	require.Error(t, err)
}

func TestPklStdlibFactoryListElementsUnsupported(t *testing.T) {
	f := NewPklStdlibFactory()
	_, err := f.ListElements(resolve.ResolvedModuleKey{NormalizedURI: "pkl:base", Scheme: "pkl"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not support glob import")
}
