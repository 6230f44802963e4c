package importgraph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeResolver models a tiny fixed filesystem of sibling modules for
// exercising glob expansion and cycle detection without a real
// internal/resolve pipeline.
type fakeResolver struct {
	files map[string][]ImportRef // uri -> literal imports
	dirs  map[string][]string    // dir uri -> element names
}

func (f *fakeResolver) ParseImports(_ context.Context, uri string) (string, []ImportRef, error) {
	return uri, f.files[uri], nil
}

func (f *fakeResolver) ListElements(_ context.Context, dir string) ([]string, error) {
	els, ok := f.dirs[dir]
	if !ok {
		return nil, assertErr("not globbable")
	}
	return els, nil
}

type assertErr string

func (e assertErr) Error() string { return string(e) }

func TestWalkGlobImportIsSelfInclusive(t *testing.T) {
	r := &fakeResolver{
		files: map[string][]ImportRef{
			"dir/file1.pkl": {{URI: "*.pkl", IsGlob: true}},
			"dir/file2.pkl": nil,
			"dir/file3.pkl": nil,
		},
		dirs: map[string][]string{
			"dir": {"file1.pkl", "file2.pkl", "file3.pkl"},
		},
	}

	g, err := Walk(context.Background(), r, "dir/file1.pkl")
	require.NoError(t, err)

	root := g.Nodes["dir/file1.pkl"]
	require.NotNil(t, root)
	assert.ElementsMatch(t, []string{"dir/file1.pkl", "dir/file2.pkl", "dir/file3.pkl"}, root.Imports)
	assert.Empty(t, g.Nodes["dir/file2.pkl"].Imports)
	assert.Empty(t, g.Nodes["dir/file3.pkl"].Imports)
}

func TestWalkSingleModuleSelfCycle(t *testing.T) {
	r := &fakeResolver{
		files: map[string][]ImportRef{
			"a.pkl": {{URI: "a.pkl"}},
		},
	}
	g, err := Walk(context.Background(), r, "a.pkl")
	require.NoError(t, err)

	cycles := g.Cycles()
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"a.pkl"}, cycles[0])
}

func TestWalkPairCycle(t *testing.T) {
	r := &fakeResolver{
		files: map[string][]ImportRef{
			"a.pkl": {{URI: "b.pkl"}},
			"b.pkl": {{URI: "a.pkl"}},
		},
	}
	g, err := Walk(context.Background(), r, "a.pkl")
	require.NoError(t, err)

	cycles := g.Cycles()
	require.Len(t, cycles, 1)
	assert.ElementsMatch(t, []string{"a.pkl", "b.pkl"}, cycles[0])
}

func TestWalkAcyclicGraphHasNoCycles(t *testing.T) {
	r := &fakeResolver{
		files: map[string][]ImportRef{
			"a.pkl": {{URI: "b.pkl"}},
			"b.pkl": {{URI: "c.pkl"}},
			"c.pkl": nil,
		},
	}
	g, err := Walk(context.Background(), r, "a.pkl")
	require.NoError(t, err)
	assert.Empty(t, g.Cycles())
}

func TestRejectExtendedGlob(t *testing.T) {
	for _, pattern := range []string{"!(foo)", "+(bar)", "?(baz)", "@(qux)", "*(quux)"} {
		err := RejectExtendedGlob(pattern)
		require.Error(t, err, pattern)
	}
	require.NoError(t, RejectExtendedGlob("*.pkl"))
	require.NoError(t, RejectExtendedGlob("**/*.pkl"))
}

func TestGlobPathSeparatorAware(t *testing.T) {
	r := &fakeResolver{
		files: map[string][]ImportRef{
			"root/file1.pkl": {{URI: "*.pkl", IsGlob: true}},
		},
		dirs: map[string][]string{
			"root": {"file1.pkl", "foo/bar.pkl"},
		},
	}
	g, err := Walk(context.Background(), r, "root/file1.pkl")
	require.NoError(t, err)
	assert.Equal(t, []string{"root/file1.pkl"}, g.Nodes["root/file1.pkl"].Imports)
}
