package translate

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/streamgate/grok-bridge/asset"
	"github.com/streamgate/grok-bridge/toolcard"
)

// AggregateResult is the synthesised non-streaming chat-completion outcome.
type AggregateResult struct {
	Content string
	Meta    Meta
	Model   string
}

// Aggregate consumes an entire NDJSON body in one pass and synthesises a
// single chat-completion message: iterate frames once, accumulate, build
// the final object at the end.
//
// Content precedence: a video/image terminal overrides the latest
// modelResponse message, which overrides the concatenated token parts.
// Tool-card lines extracted from the latest message are prepended as one
// think block.
func Aggregate(lines [][]byte, settings Settings, assetCfg AssetConfig) (*AggregateResult, error) {
	var (
		tokenParts      strings.Builder
		latestMessage   string
		latestToolLines []string
		mergedContent   string
		meta            Meta
		model           string
	)

	emitLines := settings.ShowThinking && settings.ShowSearch
	parser := toolcard.New()

	for _, line := range lines {
		frame, ok := ParseFrame(line)
		if !ok {
			continue
		}

		if frame.Error != nil && frame.Error.Message != "" {
			return nil, &AggregateError{Message: frame.Error.Message}
		}

		res := frame.Result
		if res == nil {
			continue
		}

		if res.Conversation != nil {
			meta.merge(res.Conversation.ConversationID, "")
		}

		meta.merge("", res.LastResponseID())

		grok := res.Response
		if grok == nil {
			continue
		}

		if grok.UserResponse != nil && grok.UserResponse.Model != "" {
			model = grok.UserResponse.Model
		}

		if grok.ModelResponse != nil {
			if grok.ModelResponse.Error != nil && grok.ModelResponse.Error.Message != "" {
				return nil, &AggregateError{Message: grok.ModelResponse.Error.Message}
			}

			if grok.ModelResponse.Message != "" {
				replaced := toolcard.ReplaceToolUsageCardsInText(grok.ModelResponse.Message, toolcard.Options{
					EmitLines:         emitLines,
					RolloutIDFallback: grok.RolloutID,
				})
				latestMessage = strings.TrimSpace(replaced.Text)
				latestToolLines = replaced.Lines
			}

			if urls := generatedImageMarkdown(grok.ModelResponse.GeneratedImageURLs, assetCfg); urls != "" {
				mergedContent = urls
			}
		}

		if v := grok.StreamingVideoGenerationResponse; v != nil && v.VideoURL != "" {
			videoURL := asset.ProxyURL(assetCfg.ProxyBaseURL, assetCfg.Origin, v.VideoURL)

			thumbURL := ""
			if v.ThumbnailImageURL != "" {
				thumbURL = asset.ProxyURL(assetCfg.ProxyBaseURL, assetCfg.Origin, v.ThumbnailImageURL)
			}

			mergedContent = buildVideoHTML(videoURL, thumbURL, settings.VideoPosterPreview)
		}

		if grok.Token != "" {
			token := grok.Token

			for _, tag := range settings.filteredTags() {
				if strings.Contains(token, tag) {
					token = ""
					break
				}
			}

			parsed := parser.Consume(token, toolcard.Options{EmitLines: false, RolloutIDFallback: grok.RolloutID})
			tokenParts.WriteString(parsed.Text)
		}
	}

	content := mergedContent
	if content == "" {
		content = latestMessage
	}

	if content == "" {
		content = tokenParts.String()
	}

	if len(latestToolLines) > 0 {
		block := "<think>\n" + strings.Join(latestToolLines, "\n") + "\n</think>"
		if content == "" {
			content = block
		} else {
			content = block + "\n" + content
		}
	}

	return &AggregateResult{Content: content, Meta: meta, Model: model}, nil
}

// AggregateBody reads an entire NDJSON body and aggregates it.
func AggregateBody(body io.ReadCloser, settings Settings, assetCfg AssetConfig) (*AggregateResult, error) {
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var lines [][]byte

	for scanner.Scan() {
		lines = append(lines, append([]byte(nil), scanner.Bytes()...))
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read upstream body: %w", err)
	}

	return Aggregate(lines, settings, assetCfg)
}

func generatedImageMarkdown(rawURLs []string, assetCfg AssetConfig) string {
	var images []string

	for _, u := range rawURLs {
		if strings.TrimSpace(u) == "" {
			continue
		}

		images = append(images, "![Generated Image]("+asset.ProxyURL(assetCfg.ProxyBaseURL, assetCfg.Origin, u)+")")
	}

	return strings.Join(images, "\n")
}

// AggregateError reports an upstream protocol error surfaced during
// aggregation.
type AggregateError struct {
	Message string
}

func (e *AggregateError) Error() string { return e.Message }
