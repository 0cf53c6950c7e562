// Package grpcweb implements just enough of the gRPC-Web wire format (frame
// encoding, frame/trailer decoding, the base64-text transport heuristic) to
// drive the account-bootstrap flow's gRPC-Web calls. It is not a gRPC
// client: no service stubs, no HTTP/2 multiplexing, just the framing layer.
package grpcweb

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// ErrCompressedFrame is returned when a frame has the compressed flag set;
// compression is not supported.
var ErrCompressedFrame = errors.New("grpc-web compressed frame is not supported")

const (
	flagCompressed = 0x01
	flagTrailer    = 0x80
)

// EncodeFrame frames payload p as a single uncompressed gRPC-Web message:
// a zero flag byte, a big-endian uint32 length, then p itself.
func EncodeFrame(p []byte) []byte {
	out := make([]byte, 5+len(p))
	out[0] = 0
	binary.BigEndian.PutUint32(out[1:5], uint32(len(p)))
	copy(out[5:], p)

	return out
}

// ParseResult is the outcome of parsing a gRPC-Web response body.
type ParseResult struct {
	Messages    [][]byte
	Trailers    map[string]string
	GRPCStatus  *int
	GRPCMessage string
}

// ParseResponse parses a raw gRPC-Web response body, given optional
// response headers and a content-type hint.
func ParseResponse(body []byte, headers http.Header, contentType string) (*ParseResult, error) {
	body = maybeDecodeBase64Text(body, contentType)

	result := &ParseResult{
		Trailers: map[string]string{},
	}

	for len(body) >= 5 {
		flag := body[0]
		length := binary.BigEndian.Uint32(body[1:5])

		if uint64(len(body)-5) < uint64(length) {
			break
		}

		payload := body[5 : 5+length]
		body = body[5+length:]

		if flag&flagTrailer != 0 {
			mergeTrailers(result.Trailers, payload)
			continue
		}

		if flag&flagCompressed != 0 {
			return nil, ErrCompressedFrame
		}

		msg := make([]byte, len(payload))
		copy(msg, payload)
		result.Messages = append(result.Messages, msg)
	}

	applyStatusAndMessage(result, headers)

	return result, nil
}

// maybeDecodeBase64Text detects the grpc-web-text transport: either an
// explicit content-type hint, or a body whose leading bytes (up to 1024 of
// them) look exclusively like base64 text.
func maybeDecodeBase64Text(body []byte, contentType string) []byte {
	isText := strings.Contains(strings.ToLower(contentType), "grpc-web-text")

	if !isText && len(body) > 0 {
		probeLen := len(body)
		if probeLen > 1024 {
			probeLen = 1024
		}

		isText = looksLikeBase64(body[:probeLen])
	}

	if !isText {
		return body
	}

	stripped := stripBase64Whitespace(body)

	decoded, err := base64.StdEncoding.DecodeString(string(stripped))
	if err != nil {
		return body
	}

	return decoded
}

func looksLikeBase64(b []byte) bool {
	for _, c := range b {
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		case c == '+' || c == '/' || c == '=' || c == '\r' || c == '\n':
		default:
			return false
		}
	}

	return true
}

func stripBase64Whitespace(b []byte) []byte {
	var out bytes.Buffer

	for _, c := range b {
		if c == '\r' || c == '\n' {
			continue
		}

		out.WriteByte(c)
	}

	return out.Bytes()
}

// mergeTrailers parses a CRLF- or LF-delimited "key: value" trailer block
// into dst, lowercasing keys and URI-decoding grpc-message.
func mergeTrailers(dst map[string]string, payload []byte) {
	text := strings.ReplaceAll(string(payload), "\r\n", "\n")
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		idx := strings.Index(line, ":")
		if idx < 0 {
			continue
		}

		key := strings.ToLower(strings.TrimSpace(line[:idx]))
		value := strings.TrimSpace(line[idx+1:])

		if key == "grpc-message" {
			if decoded, err := url.QueryUnescape(value); err == nil {
				value = decoded
			}
		}

		dst[key] = value
	}
}

// applyStatusAndMessage fills GRPCStatus/GRPCMessage from trailers, falling
// back to HTTP response headers when the trailer frame omitted them.
func applyStatusAndMessage(result *ParseResult, headers http.Header) {
	statusStr, ok := result.Trailers["grpc-status"]
	if !ok && headers != nil {
		statusStr = headers.Get("grpc-status")
		ok = statusStr != ""
	}

	if ok {
		if n, err := strconv.Atoi(statusStr); err == nil {
			result.GRPCStatus = &n
		}
	}

	msg, ok := result.Trailers["grpc-message"]
	if !ok && headers != nil {
		msg = headers.Get("grpc-message")
		if msg != "" {
			if decoded, err := url.QueryUnescape(msg); err == nil {
				msg = decoded
			}

			ok = true
		}
	}

	if ok {
		result.GRPCMessage = msg
	}
}
