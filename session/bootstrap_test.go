package session

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamgate/grok-bridge/grpcweb"
	"github.com/streamgate/grok-bridge/httpclient"
)

func TestRunBootstrap_AllStepsOK(t *testing.T) {
	var paths []string

	doer := httpclient.DoerFunc(func(req *http.Request) (*http.Response, error) {
		paths = append(paths, req.URL.Path)

		return &http.Response{
			StatusCode: 200,
			Header:     http.Header{},
			Body:       io.NopCloser(bytes.NewReader(grpcweb.EncodeFrame([]byte("ok")))),
		}, nil
	})

	c := &Client{BaseURL: "https://upstream", Doer: doer}

	results := c.RunBootstrap(context.Background(), []BootstrapStep{
		{Name: "restore", Path: "auth/restore", Payload: []byte{0x0a, 0x01}, GRPCWeb: true},
		{Name: "profile", Path: "users/me", Payload: []byte(`{}`)},
	}, "sso=1")

	require.Len(t, results, 2)
	assert.True(t, results[0].OK)
	assert.True(t, results[1].OK)
	assert.Equal(t, []string{"/auth/restore", "/users/me"}, paths)
}

func TestRunBootstrap_ShortCircuitsOnGRPCStatus(t *testing.T) {
	calls := 0

	trailer := []byte("grpc-status: 7\r\ngrpc-message: denied")
	trailerFrame := append([]byte{0x80, 0, 0, 0, byte(len(trailer))}, trailer...)

	doer := httpclient.DoerFunc(func(req *http.Request) (*http.Response, error) {
		calls++

		return &http.Response{
			StatusCode: 200,
			Header:     http.Header{},
			Body:       io.NopCloser(bytes.NewReader(trailerFrame)),
		}, nil
	})

	c := &Client{BaseURL: "https://upstream", Doer: doer}

	results := c.RunBootstrap(context.Background(), []BootstrapStep{
		{Name: "restore", Path: "auth/restore", GRPCWeb: true},
		{Name: "profile", Path: "users/me"},
	}, "")

	require.Len(t, results, 1)
	assert.Equal(t, 1, calls)
	assert.False(t, results[0].OK)
	require.NotNil(t, results[0].GRPCStatus)
	assert.Equal(t, 7, *results[0].GRPCStatus)
	assert.Equal(t, "denied", results[0].Error)
}

func TestRunBootstrap_ShortCircuitsOnHTTPStatus(t *testing.T) {
	doer := httpclient.DoerFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: 403,
			Header:     http.Header{},
			Body:       io.NopCloser(bytes.NewReader(nil)),
		}, nil
	})

	c := &Client{BaseURL: "https://upstream", Doer: doer}

	results := c.RunBootstrap(context.Background(), []BootstrapStep{
		{Name: "restore", Path: "auth/restore"},
		{Name: "profile", Path: "users/me"},
	}, "")

	require.Len(t, results, 1)
	assert.False(t, results[0].OK)
	assert.Equal(t, 403, results[0].Status)
}

func TestRunBootstrap_FramesGRPCWebPayload(t *testing.T) {
	var gotBody []byte

	var gotContentType string

	doer := httpclient.DoerFunc(func(req *http.Request) (*http.Response, error) {
		gotBody, _ = io.ReadAll(req.Body)
		gotContentType = req.Header.Get("Content-Type")

		return &http.Response{
			StatusCode: 200,
			Header:     http.Header{},
			Body:       io.NopCloser(bytes.NewReader(nil)),
		}, nil
	})

	c := &Client{BaseURL: "https://upstream", Doer: doer}

	payload := []byte{0x0a, 0x02, 0x68, 0x69}
	c.RunBootstrap(context.Background(), []BootstrapStep{
		{Name: "restore", Path: "auth/restore", Payload: payload, GRPCWeb: true},
	}, "")

	assert.Equal(t, grpcweb.EncodeFrame(payload), gotBody)
	assert.Equal(t, "application/grpc-web+proto", gotContentType)
}
