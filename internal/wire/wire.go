// Package wire implements the message framing that substitutes for
// §6.6's MessagePack binary value encoding and the external-reader
// sub-process transport of §5/§6.6, per the Open Question resolution in
// DESIGN.md: the request/response shapes mirror the teacher's JSON-RPC
// mcp/protocol.go exactly (RequestMessage/ResponseMessage/ErrorObject,
// a `_meta` envelope), length-prefixed over the wire instead of
// msgpack-framed, since no repository in the retrieved corpus imports a
// msgpack codec.
package wire

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"io"

	"github.com/pklrun/pkl/internal/perrors"
)

// ValueCode is the numeric tag identifying an encoded value's shape,
// per §6.6's closed set. Decoders reject unknown codes as a defined
// error rather than attempting a best-effort decode.
type ValueCode int

const (
	CodeObject ValueCode = iota
	CodeList
	CodeSet
	CodeMap
	CodeMapping
	CodeListing
	CodeDuration
	CodeDataSize
	CodePair
	CodeRegex
	CodeBytes
	CodeIntSeq
	CodeClass
	CodeTypeAlias
	CodeFunction
	CodeElement
	CodeEntry
	CodeProperty
)

var codeNames = map[ValueCode]string{
	CodeObject: "OBJECT", CodeList: "LIST", CodeSet: "SET", CodeMap: "MAP",
	CodeMapping: "MAPPING", CodeListing: "LISTING", CodeDuration: "DURATION",
	CodeDataSize: "DATASIZE", CodePair: "PAIR", CodeRegex: "REGEX",
	CodeBytes: "BYTES", CodeIntSeq: "INTSEQ", CodeClass: "CLASS",
	CodeTypeAlias: "TYPEALIAS", CodeFunction: "FUNCTION", CodeElement: "ELEMENT",
	CodeEntry: "ENTRY", CodeProperty: "PROPERTY",
}

func (c ValueCode) String() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return "UNKNOWN"
}

// nonReconstructible is the set of codes whose decoder must produce a
// null placeholder rather than reconstructing the value (§6.6).
var nonReconstructible = map[ValueCode]bool{
	CodeClass: true, CodeTypeAlias: true, CodeIntSeq: true, CodeFunction: true,
}

// EncodedValue is the wire shape of one value: a numeric code followed
// by its payload, matching the "msgpack array starting with a numeric
// code identifier" layout of §6.6 but JSON-encoded per this package's
// framing choice.
type EncodedValue struct {
	Code    ValueCode       `json:"code"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Decode validates ev.Code and reports whether the payload should be
// reconstructed (false for CLASS/TYPEALIAS/INTSEQ/FUNCTION, which decode
// to a null placeholder per §6.6).
func (ev EncodedValue) Decode() (reconstruct bool, err error) {
	if _, known := codeNames[ev.Code]; !known {
		return false, perrors.Newf(perrors.Protocol, "unknown value code %d", ev.Code)
	}
	return !nonReconstructible[ev.Code], nil
}

// Meta is the open-ended `_meta` envelope carried by requests/responses,
// mirroring the teacher's mcp.Meta.
type Meta map[string]any

// RequestMessage is one external-reader request: a method name, its
// params, and a request id. §5 requires ids be unpredictable ("a random
// request id"); id generation itself lives in internal/extreader, which
// owns the id-space per connection.
type RequestMessage struct {
	Meta   Meta            `json:"_meta,omitempty"`
	ID     uint64          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// ResponseMessage is the matching reply, keyed by the same ID.
type ResponseMessage struct {
	Meta   Meta            `json:"_meta,omitempty"`
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ErrorObject    `json:"error,omitempty"`
}

// ErrorObject is a protocol-level error payload.
type ErrorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Writer frames outgoing messages with a 4-byte big-endian length
// prefix, the shape §5 calls a "MessagePack stream"; this package
// substitutes JSON per the package doc's Open Question resolution, but
// keeps the same length-prefixed framing so the transport code reads
// identically either way.
type Writer struct {
	w io.Writer
}

func NewWriter(w io.Writer) *Writer { return &Writer{w: w} }

func (w *Writer) WriteRequest(m RequestMessage) error   { return w.writeFrame(m) }
func (w *Writer) WriteResponse(m ResponseMessage) error { return w.writeFrame(m) }

func (w *Writer) writeFrame(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return perrors.Newf(perrors.Protocol, "encoding message: %v", err)
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	if _, err := w.w.Write(lenBuf[:]); err != nil {
		return perrors.Newf(perrors.Protocol, "writing frame length: %v", err)
	}
	if _, err := w.w.Write(b); err != nil {
		return perrors.Newf(perrors.Protocol, "writing frame body: %v", err)
	}
	return nil
}

// Reader reads length-prefixed frames back off the stream, surfacing
// any malformed frame as a ProtocolError that closes the transport
// (§5's "unexpected messages on either side are a protocol error").
type Reader struct {
	r *bufio.Reader
}

func NewReader(r io.Reader) *Reader { return &Reader{r: bufio.NewReader(r)} }

// ReadFrame reads one length-prefixed JSON frame and unmarshals it into
// dst (a *RequestMessage or *ResponseMessage).
func (r *Reader) ReadFrame(dst any) error {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r.r, lenBuf[:]); err != nil {
		if err == io.EOF {
			return err
		}
		return perrors.Newf(perrors.Protocol, "reading frame length: %v", err)
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	body := make([]byte, n)
	if _, err := io.ReadFull(r.r, body); err != nil {
		return perrors.Newf(perrors.Protocol, "reading frame body: %v", err)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return perrors.Newf(perrors.Protocol, "decoding frame: %v", err)
	}
	return nil
}

// InitializeModuleReaderResponse is the handshake payload a custom
// reader sub-process sends advertising the module schemes it serves
// (§5, §6.1 "user-supplied custom schemes").
type InitializeModuleReaderResponse struct {
	Scheme              string `json:"scheme"`
	HasHierarchicalUris bool   `json:"hasHierarchicalUris"`
	IsGlobbable         bool   `json:"isGlobbable"`
	IsLocal             bool   `json:"isLocal"`
}

// InitializeResourceReaderResponse is the resource-reader analog.
type InitializeResourceReaderResponse struct {
	Scheme      string `json:"scheme"`
	IsGlobbable bool   `json:"isGlobbable"`
	IsLocal     bool   `json:"isLocal"`
}
