package grpcweb

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeFrame_RoundTrip(t *testing.T) {
	payload := []byte("hello world")
	body := EncodeFrame(payload)

	result, err := ParseResponse(body, nil, "application/grpc-web+proto")
	require.NoError(t, err)
	require.Len(t, result.Messages, 1)
	assert.Equal(t, payload, result.Messages[0])
}

func TestParseResponse_TrailerFrame(t *testing.T) {
	msg := EncodeFrame([]byte("data"))

	trailer := []byte("grpc-status: 0\r\ngrpc-message: OK\r\n")
	trailerFrame := make([]byte, 5+len(trailer))
	trailerFrame[0] = flagTrailer
	putLen(trailerFrame, len(trailer))
	copy(trailerFrame[5:], trailer)

	body := append(append([]byte{}, msg...), trailerFrame...)

	result, err := ParseResponse(body, nil, "application/grpc-web+proto")
	require.NoError(t, err)
	require.Len(t, result.Messages, 1)
	require.NotNil(t, result.GRPCStatus)
	assert.Equal(t, 0, *result.GRPCStatus)
	assert.Equal(t, "OK", result.GRPCMessage)
}

func TestParseResponse_TrailerFallsBackToHeaders(t *testing.T) {
	msg := EncodeFrame([]byte("data"))

	trailer := []byte("some-other-key: x\r\n")
	trailerFrame := make([]byte, 5+len(trailer))
	trailerFrame[0] = flagTrailer
	putLen(trailerFrame, len(trailer))
	copy(trailerFrame[5:], trailer)

	body := append(append([]byte{}, msg...), trailerFrame...)

	headers := http.Header{}
	headers.Set("grpc-status", "7")
	headers.Set("grpc-message", "Permission%20denied")

	result, err := ParseResponse(body, headers, "application/grpc-web+proto")
	require.NoError(t, err)
	require.NotNil(t, result.GRPCStatus)
	assert.Equal(t, 7, *result.GRPCStatus)
	assert.Equal(t, "Permission denied", result.GRPCMessage)
}

func TestParseResponse_CompressedFrameFails(t *testing.T) {
	payload := []byte("x")
	frame := EncodeFrame(payload)
	frame[0] = flagCompressed

	_, err := ParseResponse(frame, nil, "application/grpc-web+proto")
	require.ErrorIs(t, err, ErrCompressedFrame)
}

func TestParseResponse_Base64TextTransport(t *testing.T) {
	raw := EncodeFrame([]byte("hi"))
	encoded := []byte(base64Encode(raw))

	result, err := ParseResponse(encoded, nil, "application/grpc-web-text+proto")
	require.NoError(t, err)
	require.Len(t, result.Messages, 1)
	assert.Equal(t, []byte("hi"), result.Messages[0])
}

func TestParseResponse_TruncatedFrameStopsCleanly(t *testing.T) {
	frame := EncodeFrame([]byte("hello"))
	truncated := frame[:len(frame)-2]

	result, err := ParseResponse(truncated, nil, "application/grpc-web+proto")
	require.NoError(t, err)
	assert.Empty(t, result.Messages)
}

func putLen(buf []byte, n int) {
	buf[1] = byte(n >> 24)
	buf[2] = byte(n >> 16)
	buf[3] = byte(n >> 8)
	buf[4] = byte(n)
}

func base64Encode(b []byte) string {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

	var out []byte

	for i := 0; i < len(b); i += 3 {
		var chunk [3]byte

		n := copy(chunk[:], b[i:min(i+3, len(b))])

		out = append(out,
			alphabet[chunk[0]>>2],
			alphabet[(chunk[0]&0x03)<<4|chunk[1]>>4],
		)

		if n > 1 {
			out = append(out, alphabet[(chunk[1]&0x0f)<<2|chunk[2]>>6])
		} else {
			out = append(out, '=')
		}

		if n > 2 {
			out = append(out, alphabet[chunk[2]&0x3f])
		} else {
			out = append(out, '=')
		}
	}

	return string(out)
}

func min(a, b int) int {
	if a < b {
		return a
	}

	return b
}
