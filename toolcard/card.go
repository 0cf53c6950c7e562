package toolcard

import (
	"encoding/json"
	"strings"
)

func decodeObject(raw string) (map[string]any, bool) {
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, false
	}

	return m, true
}

// typeAliases maps case-insensitive raw tool names onto normalised card
// types.
var typeAliases = map[string]string{
	"web_search":    "WebSearch",
	"web-search":    "WebSearch",
	"websearch":     "WebSearch",
	"search_image":  "SearchImage",
	"search_images": "SearchImage",
	"image_search":  "SearchImage",
	"agent_think":   "AgentThink",
	"chatroom_send": "AgentThink",
}

func cardType(toolName string) string {
	key := strings.ToLower(strings.TrimSpace(toolName))
	if alias, ok := typeAliases[key]; ok {
		return alias
	}

	if toolName == "" {
		return "Unknown"
	}

	return toolName
}

var rolloutKeys = map[string]bool{
	"rollout_id": true,
	"rolloutid":  true,
	"rollout-id": true,
	"rollout":    true,
}

// contentKeysFor returns the type-specific preferred content keys, in
// priority order.
func contentKeysFor(cardTypeName string) []string {
	switch cardTypeName {
	case "WebSearch":
		return []string{"query", "queries", "keyword", "keywords", "prompt", "text"}
	case "SearchImage":
		return []string{"query", "prompt", "description", "keywords", "text"}
	case "AgentThink":
		return []string{"thought", "reason", "reasoning", "content", "text", "summary", "plan"}
	default:
		return []string{"content", "text", "query", "prompt", "message"}
	}
}

var metadataKeys = map[string]bool{
	"rollout_id": true,
	"rolloutid":  true,
	"rollout-id": true,
	"rollout":    true,
	"type":       true,
	"tool":       true,
	"tool_name":  true,
	"name":       true,
	"id":         true,
}

// normalizeCard builds a Card from the parsed (or raw, if unparsable) tool
// args.
func normalizeCard(toolName string, args map[string]any, rawArgsText, rolloutFallback string) Card {
	t := cardType(toolName)

	rolloutID := findScalarByKeys(args, rolloutKeys, 0, 6)
	if rolloutID == "" {
		rolloutID = rolloutFallback
	}

	if rolloutID == "" {
		rolloutID = "-"
	}

	content := findFirstByKeyList(args, contentKeysFor(t))
	if content == "" {
		content = firstNonMetadataScalar(args)
	}

	if content == "" && args == nil {
		content = rawArgsText
	}

	content = normalizeContent(content)

	return Card{Type: t, RolloutID: rolloutID, Content: content}
}

// findScalarByKeys DFS-searches args for a key in wanted, returning the
// first scalar value found; only scalars are considered at depth > 0.
func findScalarByKeys(args map[string]any, wanted map[string]bool, depth, maxDepth int) string {
	if args == nil || depth > maxDepth {
		return ""
	}

	for k, v := range args {
		if wanted[strings.ToLower(k)] {
			if s, ok := scalarString(v); ok {
				return s
			}
		}
	}

	for _, v := range args {
		if nested, ok := v.(map[string]any); ok {
			if s := findScalarByKeys(nested, wanted, depth+1, maxDepth); s != "" {
				return s
			}
		}
	}

	return ""
}

// findFirstByKeyList DFS-searches args for each preferred key in priority
// order, depth-bounded the same way the rollout-id lookup is: a higher-
// priority key deep in the payload beats a lower-priority key at the top.
func findFirstByKeyList(args map[string]any, keys []string) string {
	for _, key := range keys {
		if s := findValueByKey(args, key, 0, 6); s != "" {
			return s
		}
	}

	return ""
}

// findValueByKey DFS-searches args for key, returning the first scalar (or,
// failing that, JSON-stringified compound) value found under it.
func findValueByKey(args map[string]any, key string, depth, maxDepth int) string {
	if args == nil || depth > maxDepth {
		return ""
	}

	for k, v := range args {
		if strings.ToLower(k) != key {
			continue
		}

		if s, ok := scalarString(v); ok {
			return s
		}

		if s := stringifyAny(v); s != "" && s != "{}" && s != "null" {
			return s
		}
	}

	for _, v := range args {
		if nested, ok := v.(map[string]any); ok {
			if s := findValueByKey(nested, key, depth+1, maxDepth); s != "" {
				return s
			}
		}
	}

	return ""
}

// firstNonMetadataScalar DFS-searches args for any scalar that is not under
// a metadata key, the last-resort content source.
func firstNonMetadataScalar(args map[string]any) string {
	return firstNonMetadataScalarAt(args, 0, 6)
}

func firstNonMetadataScalarAt(args map[string]any, depth, maxDepth int) string {
	if args == nil || depth > maxDepth {
		return ""
	}

	for k, v := range args {
		if metadataKeys[strings.ToLower(k)] {
			continue
		}

		if s, ok := scalarString(v); ok {
			return s
		}
	}

	for k, v := range args {
		if metadataKeys[strings.ToLower(k)] {
			continue
		}

		if nested, ok := v.(map[string]any); ok {
			if s := firstNonMetadataScalarAt(nested, depth+1, maxDepth); s != "" {
				return s
			}
		}
	}

	return ""
}

func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64, bool:
		return stringifyAny(t), true
	default:
		return "", false
	}
}

func stringifyAny(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}

	return string(b)
}

func normalizeContent(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.TrimSpace(s)
}

// cardLines renders a Card as "[rolloutId][type] line" lines, one per
// non-empty content line. Empty content yields the bare prefix.
func cardLines(c Card) []string {
	prefix := "[" + c.RolloutID + "][" + c.Type + "]"

	if c.Content == "" {
		return []string{prefix}
	}

	var lines []string

	for _, line := range strings.Split(c.Content, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}

		lines = append(lines, prefix+" "+line)
	}

	if len(lines) == 0 {
		return []string{prefix}
	}

	return lines
}
