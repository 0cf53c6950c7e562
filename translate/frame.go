// Package translate implements the NDJSON → OpenAI-compatible SSE
// transformer, the module's core: it consumes upstream line-delimited JSON
// frames and produces a pull-based stream of chat-completion chunks.
package translate

import "encoding/json"

// Frame is one parsed NDJSON line, restricted to the fields this module
// observes.
type Frame struct {
	Result *FrameResult `json:"result"`
	Error  *ErrorInfo   `json:"error"`
}

type ErrorInfo struct {
	Message string `json:"message"`
}

type FrameResult struct {
	Conversation  *Conversation  `json:"conversation"`
	Response      *Response      `json:"response"`
	ModelResponse *ModelResponse `json:"modelResponse"`
	UserResponse  *UserResponse  `json:"userResponse"`
}

// LastResponseID resolves the frame's best-known response id. Upstream has
// carried it in several places over time, so the locations are tried in
// order: the response's own id, the response's modelResponse, the
// result-level modelResponse, the result-level userResponse, then the
// response's userResponse.
func (r *FrameResult) LastResponseID() string {
	if r.Response != nil {
		if r.Response.ResponseID != "" {
			return r.Response.ResponseID
		}

		if mr := r.Response.ModelResponse; mr != nil && mr.ResponseID != "" {
			return mr.ResponseID
		}
	}

	if r.ModelResponse != nil && r.ModelResponse.ResponseID != "" {
		return r.ModelResponse.ResponseID
	}

	if r.UserResponse != nil && r.UserResponse.ResponseID != "" {
		return r.UserResponse.ResponseID
	}

	if r.Response != nil {
		if ur := r.Response.UserResponse; ur != nil && ur.ResponseID != "" {
			return ur.ResponseID
		}
	}

	return ""
}

type Conversation struct {
	ConversationID string `json:"conversationId"`
}

type Response struct {
	Token                            string                            `json:"token"`
	IsThinking                       bool                              `json:"isThinking"`
	MessageTag                       string                            `json:"messageTag"`
	RolloutID                        string                            `json:"rolloutId"`
	ToolUsageCardID                  string                            `json:"toolUsageCardId"`
	ResponseID                       string                            `json:"responseId"`
	UserResponse                     *UserResponse                     `json:"userResponse"`
	ModelResponse                    *ModelResponse                    `json:"modelResponse"`
	ImageAttachmentInfo              json.RawMessage                   `json:"imageAttachmentInfo"`
	StreamingVideoGenerationResponse *StreamingVideoGenerationResponse `json:"streamingVideoGenerationResponse"`
}

type UserResponse struct {
	Model      string `json:"model"`
	ResponseID string `json:"responseId"`
}

type ModelResponse struct {
	Message            string     `json:"message"`
	Model              string     `json:"model"`
	Error              *ErrorInfo `json:"error"`
	GeneratedImageURLs []string   `json:"generatedImageUrls"`
	ResponseID         string     `json:"responseId"`
}

type StreamingVideoGenerationResponse struct {
	Progress          float64 `json:"progress"`
	VideoURL          string  `json:"videoUrl"`
	ThumbnailImageURL string  `json:"thumbnailImageUrl"`
}

// ParseFrame parses one NDJSON line. A parse failure is reported via ok=false
// so the caller can silently skip it.
func ParseFrame(line []byte) (Frame, bool) {
	var f Frame
	if err := json.Unmarshal(line, &f); err != nil {
		return Frame{}, false
	}

	return f, true
}
