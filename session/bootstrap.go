package session

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/streamgate/grok-bridge/grpcweb"
)

// StepResult is the outcome of one account-bootstrap step. The flow
// short-circuits on the first step that is not OK, so callers can show the
// failing step verbatim.
type StepResult struct {
	Step       string `json:"step"`
	OK         bool   `json:"ok"`
	Status     int    `json:"status,omitempty"`
	GRPCStatus *int   `json:"grpc_status,omitempty"`
	Error      string `json:"error,omitempty"`
}

// BootstrapStep describes one POST of the account-bootstrap sequence.
// GRPCWeb steps carry a raw proto payload that gets gRPC-Web framed; plain
// steps post the payload as-is.
type BootstrapStep struct {
	Name    string
	Path    string
	Payload []byte
	GRPCWeb bool
}

// RunBootstrap executes steps in order against the upstream base URL,
// stopping at the first failure. The returned slice holds one result per
// executed step.
func (c *Client) RunBootstrap(ctx context.Context, steps []BootstrapStep, cookie string) []StepResult {
	results := make([]StepResult, 0, len(steps))

	for _, step := range steps {
		res := c.runStep(ctx, step, cookie)
		results = append(results, res)

		if !res.OK {
			break
		}
	}

	return results
}

func (c *Client) runStep(ctx context.Context, step BootstrapStep, cookie string) StepResult {
	result := StepResult{Step: step.Name}

	body := step.Payload
	if step.GRPCWeb {
		body = grpcweb.EncodeFrame(step.Payload)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/"+step.Path, bytes.NewReader(body))
	if err != nil {
		result.Error = err.Error()
		return result
	}

	if step.GRPCWeb {
		req.Header.Set("Content-Type", "application/grpc-web+proto")
	} else {
		req.Header.Set("Content-Type", "application/json")
	}

	c.applyHeaders(req, step.Path, cookie)

	resp, err := c.Doer.Do(req)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	defer resp.Body.Close()

	result.Status = resp.StatusCode

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	if step.GRPCWeb {
		parsed, err := grpcweb.ParseResponse(respBody, resp.Header, resp.Header.Get("Content-Type"))
		if err != nil {
			result.Error = err.Error()
			return result
		}

		result.GRPCStatus = parsed.GRPCStatus

		if parsed.GRPCStatus != nil && *parsed.GRPCStatus != 0 {
			result.Error = parsed.GRPCMessage
			return result
		}
	}

	if resp.StatusCode != http.StatusOK {
		result.Error = http.StatusText(resp.StatusCode)
		return result
	}

	result.OK = true

	return result
}
