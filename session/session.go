// Package session implements the three thin account-flow continuation
// calls (clone, continue, share), each a single POST against a fixed
// upstream path with dynamic headers and a cookie. HTTP I/O goes
// through httpclient.Doer so tests substitute a fake transport instead of
// a real socket.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/streamgate/grok-bridge/httpclient"
)

// Client performs the session continuation operations against a fixed
// upstream base URL.
type Client struct {
	BaseURL string
	Doer    httpclient.Doer
	Headers httpclient.HeaderBuilder
}

// CloneResult is the outcome of a clone call.
type CloneResult struct {
	ConversationID string
	LastResponseID string
}

type cloneResponseEnvelope struct {
	ConversationID string              `json:"conversationId"`
	Responses      []cloneResponseItem `json:"responses"`
}

type cloneResponseItem struct {
	ResponseID string `json:"responseId"`
	Sender     string `json:"sender"`
}

// Clone duplicates a share link into a fresh conversation. lastResponseId
// in the result prefers the last assistant-sender response, falling back
// to the last response of any sender.
func (c *Client) Clone(ctx context.Context, shareLinkID, cookie string) (*CloneResult, error) {
	resp, err := c.post(ctx, fmt.Sprintf("share_links/%s/clone", shareLinkID), nil, cookie)
	if err != nil {
		return nil, err
	}

	var env cloneResponseEnvelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return nil, fmt.Errorf("decode clone response: %w", err)
	}

	lastResponseID := ""

	for _, r := range env.Responses {
		if r.Sender == "assistant" {
			lastResponseID = r.ResponseID
		}
	}

	if lastResponseID == "" {
		for _, r := range env.Responses {
			if r.ResponseID != "" {
				lastResponseID = r.ResponseID
			}
		}
	}

	return &CloneResult{ConversationID: env.ConversationID, LastResponseID: lastResponseID}, nil
}

// Continue posts an opaque payload to continue an existing conversation.
func (c *Client) Continue(ctx context.Context, conversationID, cookie string, payload []byte) (*httpclient.Response, error) {
	return c.post(ctx, fmt.Sprintf("conversations/%s/responses", conversationID), payload, cookie)
}

type shareRequest struct {
	ResponseID    string `json:"responseId"`
	AllowIndexing bool   `json:"allowIndexing"`
}

// Share publishes a conversation response as a share link.
func (c *Client) Share(ctx context.Context, conversationID, responseID, cookie string) (*httpclient.Response, error) {
	body, err := json.Marshal(shareRequest{ResponseID: responseID, AllowIndexing: true})
	if err != nil {
		return nil, fmt.Errorf("encode share request: %w", err)
	}

	return c.post(ctx, fmt.Sprintf("conversations/%s/share", conversationID), body, cookie)
}

func (c *Client) post(ctx context.Context, path string, payload []byte, cookie string) (*httpclient.Response, error) {
	url := c.BaseURL + "/" + path

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	c.applyHeaders(req, path, cookie)

	resp, err := c.Doer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return &httpclient.Response{StatusCode: resp.StatusCode, Headers: resp.Header, Body: body}, nil
}

func (c *Client) applyHeaders(req *http.Request, path, cookie string) {
	if c.Headers != nil {
		for k, vs := range c.Headers.Build(httpclient.Context{Path: path}) {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
	}

	if cookie != "" {
		req.Header.Set("Cookie", cookie)
	}
}
