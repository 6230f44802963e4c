package extreader

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pklrun/pkl/internal/wire"
)

func TestNewRequestIDNeverZero(t *testing.T) {
	for i := 0; i < 1000; i++ {
		assert.NotZero(t, newRequestID())
	}
}

func TestNewRequestIDVaries(t *testing.T) {
	seen := map[uint64]bool{}
	for i := 0; i < 32; i++ {
		seen[newRequestID()] = true
	}
	assert.Greater(t, len(seen), 1, "request ids should not collide across 32 draws")
}

func TestRegisterReadersAccumulate(t *testing.T) {
	c := &Client{pending: make(map[uint64]chan wire.ResponseMessage)}
	c.RegisterModuleReader(wire.InitializeModuleReaderResponse{Scheme: "custom", IsGlobbable: true})
	c.RegisterResourceReader(wire.InitializeResourceReaderResponse{Scheme: "customres"})

	readers := c.Readers()
	assert.Len(t, readers, 2)
	assert.True(t, readers[0].IsModule)
	assert.False(t, readers[1].IsModule)
}

func TestCallFailsWhenClosed(t *testing.T) {
	c := &Client{pending: make(map[uint64]chan wire.ResponseMessage), closed: true}
	_, err := c.Call("read", map[string]string{"uri": "custom:///a"})
	assert.Error(t, err)
}
