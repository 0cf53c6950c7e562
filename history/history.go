// Package history derives the deterministic identifiers this module uses to
// key conversation continuations: a stable hash of a message array's
// meaningful (role, text) sequence, and a scope string that buckets requests
// by API key (preferred) or client IP.
package history

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Message is the minimal chat message shape historyHash needs: content is
// either a plain string or a slice of parts carrying a "text" field.
type Message struct {
	Role    string
	Text    string
	Parts   []string
	IsArray bool
}

// Hash computes the stable history hash for messages. When
// excludeLastUser is true and the sequence contains an assistant message,
// the final user part is dropped before hashing, which lets a
// continuation request hash identically to the conversation state it
// continues from.
func Hash(messages []Message, excludeLastUser bool) string {
	var parts []string

	hasAssistant := false

	for _, m := range messages {
		if m.Role == "assistant" {
			hasAssistant = true
		}
	}

	userPartIdx := -1

	for _, m := range messages {
		text := extractText(m)
		if text == "" {
			continue
		}

		switch m.Role {
		case "system":
			parts = append(parts, "system:"+text)
		case "user":
			parts = append(parts, "user:"+text)
			userPartIdx = len(parts) - 1
		}
	}

	if excludeLastUser && hasAssistant && userPartIdx >= 0 {
		parts = append(parts[:userPartIdx], parts[userPartIdx+1:]...)
	}

	if len(parts) == 0 {
		return ""
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "\n")))

	return hex.EncodeToString(sum[:])
}

func extractText(m Message) string {
	if m.IsArray {
		return strings.Join(m.Parts, "")
	}

	return m.Text
}

// Scope derives a bucketing scope from an API key (preferred) or a client
// IP. An empty clientIp falls back to "0.0.0.0".
func Scope(apiKey, clientIP string) string {
	if trimmed := strings.TrimSpace(apiKey); trimmed != "" {
		return "k:" + sha256Hex(trimmed)
	}

	ip := clientIP
	if ip == "" {
		ip = "0.0.0.0"
	}

	return "ip:" + sha256Hex(ip)
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
