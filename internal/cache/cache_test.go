package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pklrun/pkl/internal/ast"
	"github.com/pklrun/pkl/internal/perrors"
	"github.com/pklrun/pkl/internal/value"
)

func TestModuleCacheBeginTransitionsToInFlight(t *testing.T) {
	c := NewModuleCache()
	e, started := c.Begin("file:///a.pkl")
	require.True(t, started)
	assert.Equal(t, InFlight, e.State)
}

func TestModuleCacheSecondBeginObservesInFlight(t *testing.T) {
	c := NewModuleCache()
	c.Begin("file:///a.pkl")

	e, started := c.Begin("file:///a.pkl")
	assert.False(t, started)
	assert.Equal(t, InFlight, e.State)
}

func TestModuleCacheCompleteParsedThenCompiled(t *testing.T) {
	c := NewModuleCache()
	c.Begin("file:///a.pkl")
	mod := &ast.Module{}
	c.CompleteParsed("file:///a.pkl", mod)

	e, ok := c.Lookup("file:///a.pkl")
	require.True(t, ok)
	assert.Equal(t, Parsed, e.State)
	assert.Same(t, mod, e.CST)

	c.CompleteCompiled("file:///a.pkl", value.Value{})
	e, _ = c.Lookup("file:///a.pkl")
	assert.Equal(t, Compiled, e.State)
}

func TestModuleCacheFailMemoizesError(t *testing.T) {
	c := NewModuleCache()
	c.Begin("file:///broken.pkl")
	want := perrors.New(perrors.Parse, "unexpected token")
	c.Fail("file:///broken.pkl", want)

	e, ok := c.Lookup("file:///broken.pkl")
	require.True(t, ok)
	assert.Equal(t, Failed, e.State)
	assert.Equal(t, want, e.Err)
}

func TestModuleCacheWaitUnblocksOnCompletion(t *testing.T) {
	c := NewModuleCache()
	e, _ := c.Begin("file:///a.pkl")

	var wg sync.WaitGroup
	wg.Add(1)
	done := make(chan struct{})
	go func() {
		defer wg.Done()
		e.Wait()
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	c.CompleteParsed("file:///a.pkl", &ast.Module{})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not unblock after CompleteParsed")
	}
	wg.Wait()
}

func TestModuleCacheReset(t *testing.T) {
	c := NewModuleCache()
	c.Begin("file:///a.pkl")
	c.Reset()
	_, ok := c.Lookup("file:///a.pkl")
	assert.False(t, ok)
}
