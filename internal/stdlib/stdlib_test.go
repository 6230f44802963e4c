package stdlib

import (
	"testing"

	"github.com/pklrun/pkl/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPair(t *testing.T) {
	p := NewPair(value.Int(1), value.String("a"))
	require.Equal(t, value.KindPair, p.Kind)
	assert.Equal(t, int64(1), p.Pair.First.Int)
	assert.Equal(t, "a", p.Pair.Second.Str)
}

func TestCompileRegexRejectsInvalidPattern(t *testing.T) {
	_, err := CompileRegex("(unterminated")
	require.Error(t, err)
}

func TestRegexMatchesRequiresFullMatch(t *testing.T) {
	v, err := CompileRegex("a+b")
	require.NoError(t, err)

	ok, err := RegexMatches(v.Regex, "aaab")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = RegexMatches(v.Regex, "xaaabx")
	require.NoError(t, err)
	assert.False(t, ok, "RegexMatches must require a full-string match, not a substring")
}

func TestNewListingAndMapping(t *testing.T) {
	listing := NewListing([]value.Value{value.Int(1), value.Int(2)})
	assert.Equal(t, value.KindListing, listing.Kind)
	assert.Len(t, listing.MaterializedElements(), 2)

	mapping, err := NewMapping([]value.Value{value.String("a")}, []value.Value{value.Int(1)})
	require.NoError(t, err)
	v, err := mapping.GetEntry(value.String("a"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.Int)

	_, err = NewMapping([]value.Value{value.String("a")}, nil)
	require.Error(t, err)
}

func TestMinMax(t *testing.T) {
	assert.Equal(t, int64(1), Min(value.Int(1), value.Int(2)).Int)
	assert.Equal(t, int64(2), Max(value.Int(1), value.Int(2)).Int)
	assert.InDelta(t, 1.5, Min(value.Float(1.5), value.Int(2)).Float, 1e-9)
}
