package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterReaderRoundTripsRequest(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	req := RequestMessage{ID: 7, Method: "read", Params: []byte(`{"uri":"custom:///a"}`)}
	require.NoError(t, w.WriteRequest(req))

	r := NewReader(&buf)
	var got RequestMessage
	require.NoError(t, r.ReadFrame(&got))
	assert.Equal(t, req.ID, got.ID)
	assert.Equal(t, req.Method, got.Method)
}

func TestReaderRejectsTruncatedFrame(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0, 0, 0, 10, 'x'})
	r := NewReader(buf)
	var got ResponseMessage
	err := r.ReadFrame(&got)
	require.Error(t, err)
}

func TestEncodedValueDecodeRejectsUnknownCode(t *testing.T) {
	ev := EncodedValue{Code: ValueCode(999)}
	_, err := ev.Decode()
	require.Error(t, err)
}

func TestEncodedValueDecodeFlagsNonReconstructible(t *testing.T) {
	for _, code := range []ValueCode{CodeClass, CodeTypeAlias, CodeIntSeq, CodeFunction} {
		reconstruct, err := EncodedValue{Code: code}.Decode()
		require.NoError(t, err)
		assert.False(t, reconstruct, code.String())
	}

	reconstruct, err := EncodedValue{Code: CodeObject}.Decode()
	require.NoError(t, err)
	assert.True(t, reconstruct)
}
