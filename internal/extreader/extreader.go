// Package extreader implements the external-reader sub-process client
// of spec §5/§6.1: spawning a child process, recording the schemes
// passed to RegisterModuleReader/RegisterResourceReader as
// Initialize*ReaderResponse values, and exchanging request/response
// pairs keyed by a random request id over internal/wire's framed
// transport. Any unexpected message on either side is a ProtocolError
// that closes the transport, per §5.
//
// Grounded on the teacher's mcp/handlers.go request-dispatch shape
// (method name -> registered handler, by-id response matching),
// generalized from an in-process JSON-RPC router to an out-of-process
// child with the same request/response discipline.
package extreader

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"os/exec"
	"sync"

	"github.com/pklrun/pkl/internal/perrors"
	"github.com/pklrun/pkl/internal/wire"
)

// Reader describes one scheme an external-reader process advertised
// during its handshake (§5, §6.1's "user-supplied custom schemes").
type Reader struct {
	Scheme      string
	IsModule    bool // true for a module reader, false for a resource reader
	IsGlobbable bool
	IsLocal     bool
}

// Client manages one external-reader child process: its stdio pipes,
// the set of schemes it advertised, and in-flight request bookkeeping.
type Client struct {
	cmd *exec.Cmd
	w   *wire.Writer
	r   *wire.Reader

	mu      sync.Mutex
	pending map[uint64]chan wire.ResponseMessage
	readers []Reader
	closed  bool
}

// Start spawns command (with args) and starts the loop that routes
// response frames to pending Calls. It reads no handshake messages from
// the child: the Client's schemes are only those recorded through
// RegisterModuleReader and RegisterResourceReader.
func Start(command string, args ...string) (*Client, error) {
	cmd := exec.Command(command, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, perrors.Newf(perrors.IO, "starting external reader %q: %v", command, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, perrors.Newf(perrors.IO, "starting external reader %q: %v", command, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, perrors.Newf(perrors.IO, "starting external reader %q: %v", command, err)
	}

	c := &Client{
		cmd:     cmd,
		w:       wire.NewWriter(stdin),
		r:       wire.NewReader(stdout),
		pending: make(map[uint64]chan wire.ResponseMessage),
	}
	go c.dispatchLoop()
	return c, nil
}

// dispatchLoop reads response frames off the child's stdout and routes
// each to the channel waiting on its ID. A frame with no pending waiter,
// or a decode failure, is a protocol error that closes the transport.
func (c *Client) dispatchLoop() {
	for {
		var resp wire.ResponseMessage
		if err := c.r.ReadFrame(&resp); err != nil {
			c.closeWithError(perrors.Newf(perrors.Protocol, "external reader transport closed: %v", err))
			return
		}
		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		if ok {
			delete(c.pending, resp.ID)
		}
		c.mu.Unlock()
		if !ok {
			c.closeWithError(perrors.Newf(perrors.Protocol, "unexpected response for unknown request id %d", resp.ID))
			return
		}
		ch <- resp
	}
}

func (c *Client) closeWithError(err *perrors.Error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for id, ch := range c.pending {
		ch <- wire.ResponseMessage{ID: id, Error: &wire.ErrorObject{Message: err.Error()}}
		delete(c.pending, id)
	}
}

// newRequestID generates an unpredictable 63-bit request id (§5's
// "random request id"), avoiding zero so it is distinguishable from an
// unset field.
func newRequestID() uint64 {
	var b [8]byte
	_, _ = rand.Read(b[:])
	id := binary.BigEndian.Uint64(b[:]) &^ (1 << 63)
	if id == 0 {
		id = 1
	}
	return id
}

// Call sends a request and blocks for its matching response, or returns
// a ProtocolError if the transport has already been closed.
func (c *Client) Call(method string, params any) (json.RawMessage, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, perrors.New(perrors.Protocol, "external reader transport is closed")
	}
	id := newRequestID()
	ch := make(chan wire.ResponseMessage, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	raw, err := json.Marshal(params)
	if err != nil {
		return nil, perrors.Newf(perrors.Protocol, "encoding request params: %v", err)
	}
	if err := c.w.WriteRequest(wire.RequestMessage{ID: id, Method: method, Params: raw}); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, err
	}

	resp := <-ch
	if resp.Error != nil {
		return nil, perrors.New(perrors.Protocol, resp.Error.Message)
	}
	return resp.Result, nil
}

// Readers lists every scheme recorded through RegisterModuleReader and
// RegisterResourceReader.
func (c *Client) Readers() []Reader {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Reader(nil), c.readers...)
}

// RegisterModuleReader records a module-reader handshake response
// supplied by the caller; nothing in this package calls it.
func (c *Client) RegisterModuleReader(resp wire.InitializeModuleReaderResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readers = append(c.readers, Reader{
		Scheme: resp.Scheme, IsModule: true,
		IsGlobbable: resp.IsGlobbable, IsLocal: resp.IsLocal,
	})
}

// RegisterResourceReader records a resource-reader handshake response.
func (c *Client) RegisterResourceReader(resp wire.InitializeResourceReaderResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readers = append(c.readers, Reader{
		Scheme: resp.Scheme, IsModule: false,
		IsGlobbable: resp.IsGlobbable, IsLocal: resp.IsLocal,
	})
}

// Close terminates the child process and fails every in-flight Call.
func (c *Client) Close() error {
	c.closeWithError(perrors.New(perrors.Protocol, "external reader closed"))
	return c.cmd.Process.Kill()
}
