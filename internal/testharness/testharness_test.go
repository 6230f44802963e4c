package testharness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareExampleWritesOnFirstRun(t *testing.T) {
	dir := t.TempDir()
	modulePath := filepath.Join(dir, "sample_test.pkl")

	res, err := CompareExample("basic", modulePath, "out = 1\n", false)
	require.NoError(t, err)
	assert.True(t, res.WroteExpected)
	assert.True(t, res.Passed())

	b, err := os.ReadFile(res.ExpectedPath)
	require.NoError(t, err)
	assert.Equal(t, "out = 1\n", string(b))
}

func TestCompareExampleDetectsMismatchAndWritesActual(t *testing.T) {
	dir := t.TempDir()
	modulePath := filepath.Join(dir, "sample_test.pkl")

	_, err := CompareExample("basic", modulePath, "out = 1\n", false)
	require.NoError(t, err)

	res, err := CompareExample("basic", modulePath, "out = 2\n", false)
	require.NoError(t, err)
	assert.False(t, res.Passed())
	assert.NotEmpty(t, res.Diff)
	assert.Contains(t, res.Diff, res.ExpectedPath)
	assert.Contains(t, res.Diff, res.ActualPath)

	b, err := os.ReadFile(res.ActualPath)
	require.NoError(t, err)
	assert.Equal(t, "out = 2\n", string(b))
}

func TestCompareExampleOverwriteForcesRewrite(t *testing.T) {
	dir := t.TempDir()
	modulePath := filepath.Join(dir, "sample_test.pkl")

	_, err := CompareExample("basic", modulePath, "out = 1\n", false)
	require.NoError(t, err)

	res, err := CompareExample("basic", modulePath, "out = 2\n", true)
	require.NoError(t, err)
	assert.True(t, res.WroteExpected)
	assert.True(t, res.Passed())

	b, err := os.ReadFile(res.ExpectedPath)
	require.NoError(t, err)
	assert.Equal(t, "out = 2\n", string(b))
}

func TestFactResultRenderWording(t *testing.T) {
	r := FactResult{Source: "1 == 2", ModuleURI: "file:///t.pkl", IsBool: true, Value: false}
	assert.Equal(t, "1 == 2 ❌ (file:///t.pkl)", r.Render())
	assert.False(t, r.Passed())
}

func TestReportPassedRequiresAllFactsAndExamples(t *testing.T) {
	dir := t.TempDir()
	modulePath := filepath.Join(dir, "sample_test.pkl")
	ex, err := CompareExample("basic", modulePath, "out = 1\n", false)
	require.NoError(t, err)

	r := Report{
		Facts: []FactsGroup{
			{Name: "math", Results: []FactResult{{IsBool: true, Value: true}}},
		},
		Examples: []ExampleResult{ex},
	}
	assert.True(t, r.Passed())

	r.Facts[0].Results = append(r.Facts[0].Results, FactResult{Source: "false", IsBool: true, Value: false})
	assert.False(t, r.Passed())
}
