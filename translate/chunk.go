package translate

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SSEEvent is one emitted server-sent event. Done marks the terminal
// "data: [DONE]" frame, which carries no Data.
type SSEEvent struct {
	Data []byte
	Done bool
}

// Delta is the OpenAI chat-completion-chunk delta payload.
type Delta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// Choice is one entry in a chat-completion chunk's choices array.
type Choice struct {
	Index        int     `json:"index"`
	Delta        Delta   `json:"delta"`
	FinishReason *string `json:"finish_reason"`
}

// ChatCompletionChunk is the OpenAI-compatible streaming chunk shape this
// module emits.
type ChatCompletionChunk struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
}

func stopReason(reason string) *string {
	return &reason
}

// chunkBuilder stamps every emitted chunk with the same stream id and
// created timestamp, following OpenAI's chunk-stream convention.
type chunkBuilder struct {
	id      string
	created int64
	model   string
}

func newChunkBuilder(now time.Time, model string) *chunkBuilder {
	return &chunkBuilder{
		id:      "chatcmpl-" + uuid.NewString(),
		created: now.Unix(),
		model:   model,
	}
}

func (b *chunkBuilder) setModel(model string) {
	if model != "" {
		b.model = model
	}
}

// content builds a content delta chunk; finishReason is nil while streaming.
func (b *chunkBuilder) content(text string, finishReason *string) *SSEEvent {
	delta := Delta{}
	if text != "" {
		delta = Delta{Role: "assistant", Content: text}
	}

	return b.event(delta, finishReason)
}

func (b *chunkBuilder) event(delta Delta, finishReason *string) *SSEEvent {
	chunk := ChatCompletionChunk{
		ID:      b.id,
		Object:  "chat.completion.chunk",
		Created: b.created,
		Model:   b.model,
		Choices: []Choice{{Index: 0, Delta: delta, FinishReason: finishReason}},
	}

	data, err := json.Marshal(chunk)
	if err != nil {
		data = []byte(`{}`)
	}

	return &SSEEvent{Data: data}
}

func doneEvent() *SSEEvent {
	return &SSEEvent{Done: true}
}
