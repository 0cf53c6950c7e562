package session

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamgate/grok-bridge/httpclient"
)

func fakeDoer(t *testing.T, status int, body string, checkReq func(*http.Request)) httpclient.Doer {
	t.Helper()

	return httpclient.DoerFunc(func(req *http.Request) (*http.Response, error) {
		if checkReq != nil {
			checkReq(req)
		}

		return &http.Response{
			StatusCode: status,
			Header:     http.Header{},
			Body:       io.NopCloser(bytes.NewReader([]byte(body))),
		}, nil
	})
}

func TestClone_PrefersAssistantResponse(t *testing.T) {
	var gotPath string

	doer := fakeDoer(t, 200, `{"conversationId":"conv1","responses":[
		{"responseId":"r1","sender":"user"},
		{"responseId":"r2","sender":"assistant"},
		{"responseId":"r3","sender":"user"}
	]}`, func(req *http.Request) { gotPath = req.URL.Path })

	c := &Client{BaseURL: "https://upstream", Doer: doer}

	res, err := c.Clone(context.Background(), "abc", "session=1")
	require.NoError(t, err)
	assert.Equal(t, "conv1", res.ConversationID)
	assert.Equal(t, "r2", res.LastResponseID)
	assert.Equal(t, "/share_links/abc/clone", gotPath)
}

func TestClone_FallsBackToLastAnySender(t *testing.T) {
	doer := fakeDoer(t, 200, `{"conversationId":"conv1","responses":[
		{"responseId":"r1","sender":"user"},
		{"responseId":"r3","sender":"user"}
	]}`, nil)

	c := &Client{BaseURL: "https://upstream", Doer: doer}

	res, err := c.Clone(context.Background(), "abc", "")
	require.NoError(t, err)
	assert.Equal(t, "r3", res.LastResponseID)
}

func TestContinue_PostsToConversationPath(t *testing.T) {
	var gotPath, gotCookie string

	doer := fakeDoer(t, 200, `{}`, func(req *http.Request) {
		gotPath = req.URL.Path
		gotCookie = req.Header.Get("Cookie")
	})

	c := &Client{BaseURL: "https://upstream", Doer: doer}

	resp, err := c.Continue(context.Background(), "conv1", "session=1", []byte(`{"x":1}`))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "/conversations/conv1/responses", gotPath)
	assert.Equal(t, "session=1", gotCookie)
}

func TestShare_SendsAllowIndexingTrue(t *testing.T) {
	var body []byte

	doer := fakeDoer(t, 200, `{}`, func(req *http.Request) {
		body, _ = io.ReadAll(req.Body)
	})

	c := &Client{BaseURL: "https://upstream", Doer: doer}

	_, err := c.Share(context.Background(), "conv1", "resp1", "")
	require.NoError(t, err)
	assert.Contains(t, string(body), `"allowIndexing":true`)
	assert.Contains(t, string(body), `"responseId":"resp1"`)
}

func TestHeaderBuilder_AppliedToRequest(t *testing.T) {
	var gotHeader string

	doer := fakeDoer(t, 200, `{}`, func(req *http.Request) {
		gotHeader = req.Header.Get("X-Device-Id")
	})

	c := &Client{
		BaseURL: "https://upstream",
		Doer:    doer,
		Headers: httpclient.HeaderBuilderFunc(func(ctx httpclient.Context) http.Header {
			h := http.Header{}
			h.Set("X-Device-Id", "dev-1")

			return h
		}),
	}

	_, err := c.Continue(context.Background(), "conv1", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "dev-1", gotHeader)
}
