package translate

import (
	"fmt"
	"io"
	"net/http"

	"github.com/tmaxmax/go-sse"

	"github.com/streamgate/grok-bridge/streams"
)

// WriteStream encodes every event of src onto w as a text/event-stream,
// flushing after each event when w supports it. It is the server-side
// counterpart of go-sse's client-side stream decoding:
// each SSEEvent becomes one sse.Message data frame, and the terminal event
// becomes the literal "[DONE]" sentinel OpenAI clients look for.
func WriteStream(w io.Writer, src streams.Stream[*SSEEvent]) error {
	defer src.Close()

	flusher, _ := w.(http.Flusher)

	for src.Next() {
		ev := src.Current()

		msg := &sse.Message{}

		if ev.Done {
			msg.AppendData("[DONE]")
		} else {
			msg.AppendData(string(ev.Data))
		}

		if _, err := msg.WriteTo(w); err != nil {
			return fmt.Errorf("write sse event: %w", err)
		}

		if flusher != nil {
			flusher.Flush()
		}
	}

	if err := src.Err(); err != nil {
		return fmt.Errorf("consume event stream: %w", err)
	}

	return nil
}
