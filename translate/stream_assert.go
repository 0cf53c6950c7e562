package translate

import "github.com/streamgate/grok-bridge/streams"

var _ streams.Stream[*SSEEvent] = (*Transformer)(nil)
