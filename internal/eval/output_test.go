package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputTextReadsModuleOutputProperty(t *testing.T) {
	obj, _ := evalModule(t, `
output {
  text = "hello"
}
`)
	text, err := OutputText(obj)
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
}

func TestOutputTextRejectsNonStringText(t *testing.T) {
	obj, _ := evalModule(t, `
output {
  text = 5
}
`)
	_, err := OutputText(obj)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "String")
}

func TestOutputFilesFlattensMappingEntries(t *testing.T) {
	obj, _ := evalModule(t, `
output {
  files {
    ["a.txt"] = new Dynamic { text = "A" }
    ["b.txt"] = new Dynamic { text = "B" }
  }
}
`)
	files, err := OutputFiles(obj)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a.txt": "A", "b.txt": "B"}, files)
}

func TestOutputFilesRejectsNonMapping(t *testing.T) {
	obj, _ := evalModule(t, `
output {
  files = "not a mapping"
}
`)
	_, err := OutputFiles(obj)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Mapping")
}
