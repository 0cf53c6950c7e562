package translate

import (
	"strings"
	"time"
)

// Settings is the per-request rendering configuration for one transform.
type Settings struct {
	ShowThinking       bool
	ShowSearch         bool
	FilteredTags       string // CSV
	VideoPosterPreview bool
	FirstTimeout       time.Duration
	ChunkTimeout       time.Duration
	TotalTimeout       time.Duration
}

// cardTags are the tool-card parser's own opening tags. The generic tag
// filter must never match these: filtering them would shred a card
// mid-stream before the parser sees its closing tag.
var cardTags = []string{"<xai:tool_usage_card", "<xai:tool_name"}

// filteredTags parses the FilteredTags CSV into a trimmed, non-empty slice,
// dropping any entry the tool-card parser claims for itself.
func (s Settings) filteredTags() []string {
	if s.FilteredTags == "" {
		return nil
	}

	var out []string

	for _, tag := range strings.Split(s.FilteredTags, ",") {
		tag = strings.TrimSpace(tag)
		if tag == "" || isCardTag(tag) {
			continue
		}

		out = append(out, tag)
	}

	return out
}

func isCardTag(tag string) bool {
	lower := strings.ToLower(tag)

	for _, ct := range cardTags {
		if strings.Contains(lower, ct) {
			return true
		}
	}

	return false
}

// AssetConfig carries the configuration the asset URL rewriter needs.
type AssetConfig struct {
	ProxyBaseURL string
	Origin       string
}

// Meta is the stream-level metadata surfaced via OnMeta, updated only when
// new non-empty information arrives.
type Meta struct {
	ConversationID string
	LastResponseID string
}

func (m *Meta) merge(conversationID, lastResponseID string) bool {
	changed := false

	if conversationID != "" && conversationID != m.ConversationID {
		m.ConversationID = conversationID
		changed = true
	}

	if lastResponseID != "" && lastResponseID != m.LastResponseID {
		m.LastResponseID = lastResponseID
		changed = true
	}

	return changed
}

// FinishInfo is passed to OnFinish exactly once per stream.
type FinishInfo struct {
	Status   int
	Duration time.Duration
	Meta     Meta
}

// Hooks are callbacks a transform invokes synchronously from within Next;
// they must not re-enter the stream.
type Hooks struct {
	OnMeta   func(Meta)
	OnFinish func(FinishInfo)
}
