package translate

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/streamgate/grok-bridge/asset"
	"github.com/streamgate/grok-bridge/internal/clock"
	"github.com/streamgate/grok-bridge/toolcard"
)

// Transformer pulls NDJSON frames from an upstream body and emits
// OpenAI-compatible SSE chat-completion chunks. It implements
// streams.Stream[*SSEEvent]; all per-stream state lives here and is never
// shared across streams.
type Transformer struct {
	ctx      context.Context
	src      *lineSource
	settings Settings
	assetCfg AssetConfig
	hooks    Hooks
	clock    clock.Clock

	tm      *timeoutMachine
	builder *chunkBuilder

	meta  Meta
	model string

	thinkOpen         bool
	videoThinkOpen    bool
	lastVideoProgress float64
	imageMode         bool
	lastRolloutID     string
	toolParser        *toolcard.Parser

	queue        []*SSEEvent
	cur          *SSEEvent
	err          error
	finalStatus  int
	finished     bool
	finishCalled bool
	stopped      bool
	startTime    time.Time
}

// New builds a Transformer over body, starting the background line reader.
func New(ctx context.Context, body io.ReadCloser, model string, settings Settings, assetCfg AssetConfig, hooks Hooks, clk clock.Clock) *Transformer {
	now := clk.Now()

	return &Transformer{
		ctx:         ctx,
		src:         newLineSource(body),
		settings:    settings,
		assetCfg:    assetCfg,
		hooks:       hooks,
		clock:       clk,
		tm:          newTimeoutMachine(settings, now),
		builder:     newChunkBuilder(now, model),
		model:       model,
		toolParser:  toolcard.New(),
		finalStatus: 200,
		startTime:   now,
	}
}

func (t *Transformer) Next() bool {
	for {
		if len(t.queue) > 0 {
			t.cur = t.queue[0]
			t.queue = t.queue[1:]

			return true
		}

		if t.finished {
			return false
		}

		line, done, err := t.tm.next(t.ctx, t.src, t.clock.Now())
		if err != nil {
			t.handleException(err)
			continue
		}

		if done {
			t.handleNormalTermination()
			continue
		}

		frame, ok := ParseFrame(line)
		if !ok {
			continue
		}

		t.tm.markFirst()
		t.handleFrame(frame)
	}
}

func (t *Transformer) Current() *SSEEvent { return t.cur }
func (t *Transformer) Err() error         { return t.err }

// Close releases the upstream reader and reports the stream finished with
// the last known status, in case the consumer abandoned it mid-way.
func (t *Transformer) Close() error {
	t.finishOnce(t.finalStatus)
	t.finished = true

	if t.stopped {
		return nil
	}

	t.stopped = true

	return t.src.Stop()
}

func (t *Transformer) enqueueContent(text string) {
	if text == "" {
		return
	}

	t.queue = append(t.queue, t.builder.content(text, nil))
}

func (t *Transformer) finishOnce(status int) {
	if t.finishCalled {
		return
	}

	t.finishCalled = true
	t.finalStatus = status

	if t.hooks.OnFinish != nil {
		t.hooks.OnFinish(FinishInfo{
			Status:   status,
			Duration: t.clock.Now().Sub(t.startTime),
			Meta:     t.meta,
		})
	}
}

// flushResidual drains the tool-card parser's buffer as trailing text.
func (t *Transformer) flushResidual() string {
	res := t.toolParser.Flush(toolcard.Options{
		EmitLines:            t.settings.ShowThinking && t.settings.ShowSearch,
		EmitIncompleteAsText: true,
		RolloutIDFallback:    t.lastRolloutID,
	})

	return renderLines(res.Lines) + res.Text
}

// closeThinkWrappers emits literal closing tags for any think wrapper still
// open, so every emitted <think> has a matching </think>.
func (t *Transformer) closeThinkWrappers() string {
	var b strings.Builder

	if t.thinkOpen {
		b.WriteString("\n</think>\n")
		t.thinkOpen = false
	}

	if t.videoThinkOpen {
		b.WriteString("视频已生成100%</think>\n")
		t.videoThinkOpen = false
	}

	return b.String()
}

func (t *Transformer) terminate(content, finishReason string, status int) {
	closing := t.flushResidual() + t.closeThinkWrappers()
	t.enqueueContent(closing)

	t.queue = append(t.queue, t.builder.content(content, stopReason(finishReason)))
	t.queue = append(t.queue, doneEvent())

	t.finishOnce(status)
	t.finished = true
}

func (t *Transformer) handleNormalTermination() {
	t.terminate("", "stop", 200)
}

func (t *Transformer) handleException(err error) {
	t.terminate(fmt.Sprintf("处理错误: %s", err.Error()), "error", 500)
}

func (t *Transformer) handleFrameError(msg string) {
	t.terminate("Error: "+msg, "stop", 500)
}

func (t *Transformer) handleFrame(frame Frame) {
	if frame.Error != nil && frame.Error.Message != "" {
		t.handleFrameError(frame.Error.Message)
		return
	}

	res := frame.Result
	if res == nil {
		return
	}

	convID := ""
	if res.Conversation != nil {
		convID = res.Conversation.ConversationID
	}

	grok := res.Response

	if t.meta.merge(convID, res.LastResponseID()) && t.hooks.OnMeta != nil {
		t.hooks.OnMeta(t.meta)
	}

	if grok == nil {
		return
	}

	if grok.UserResponse != nil && grok.UserResponse.Model != "" {
		t.model = grok.UserResponse.Model
		t.builder.setModel(t.model)
	}

	if grok.StreamingVideoGenerationResponse != nil {
		t.handleVideo(grok.StreamingVideoGenerationResponse)
		return
	}

	if len(grok.ImageAttachmentInfo) > 0 && string(grok.ImageAttachmentInfo) != "null" {
		t.imageMode = true
	}

	if t.imageMode {
		t.handleImage(grok)
		return
	}

	t.handleText(grok)
}

func (t *Transformer) handleVideo(v *StreamingVideoGenerationResponse) {
	var out strings.Builder

	if t.settings.ShowThinking && v.Progress > t.lastVideoProgress {
		n := int(v.Progress)

		if !t.videoThinkOpen {
			fmt.Fprintf(&out, "<think>视频已生成%d%%\n", n)
			t.videoThinkOpen = true
		} else if v.Progress < 100 {
			fmt.Fprintf(&out, "视频已生成%d%%\n", n)
		}

		if v.Progress >= 100 && t.videoThinkOpen {
			out.WriteString("视频已生成100%</think>\n")
			t.videoThinkOpen = false
		}

		t.lastVideoProgress = v.Progress
	}

	if v.VideoURL != "" {
		videoURL := asset.ProxyURL(t.assetCfg.ProxyBaseURL, t.assetCfg.Origin, v.VideoURL)

		thumbURL := ""
		if v.ThumbnailImageURL != "" {
			thumbURL = asset.ProxyURL(t.assetCfg.ProxyBaseURL, t.assetCfg.Origin, v.ThumbnailImageURL)
		}

		out.WriteString(buildVideoHTML(videoURL, thumbURL, t.settings.VideoPosterPreview))
	}

	t.enqueueContent(out.String())
}

func buildVideoHTML(videoURL, thumbURL string, posterPreview bool) string {
	if posterPreview && thumbURL != "" {
		return fmt.Sprintf(`<a href="%s" target="_blank"><img src="%s" /></a>`, videoURL, thumbURL)
	}

	poster := ""
	if thumbURL != "" {
		poster = fmt.Sprintf(` poster="%s"`, thumbURL)
	}

	return fmt.Sprintf(`<video controls%s src="%s"></video>`, poster, videoURL)
}

func (t *Transformer) handleImage(grok *Response) {
	var urls []string

	if grok.ModelResponse != nil {
		for _, u := range grok.ModelResponse.GeneratedImageURLs {
			if strings.TrimSpace(u) != "" {
				urls = append(urls, u)
			}
		}
	}

	if len(urls) == 0 {
		if grok.Token != "" {
			t.enqueueContent(grok.Token)
		}

		return
	}

	images := make([]string, 0, len(urls))
	for _, u := range urls {
		proxied := asset.ProxyURL(t.assetCfg.ProxyBaseURL, t.assetCfg.Origin, u)
		images = append(images, fmt.Sprintf("![Generated Image](%s)", proxied))
	}

	closing := t.flushResidual() + t.closeThinkWrappers()
	t.enqueueContent(closing)

	t.queue = append(t.queue, t.builder.content(strings.Join(images, "\n"), stopReason("stop")))
	t.queue = append(t.queue, doneEvent())

	t.finishOnce(200)
	t.finished = true
}

func (t *Transformer) handleText(grok *Response) {
	currentIsThinking := grok.IsThinking

	rollout := grok.RolloutID
	if rollout == "" {
		rollout = grok.ToolUsageCardID
	}

	if rollout != "" {
		t.lastRolloutID = rollout
	}

	token := grok.Token

	for _, tag := range t.settings.filteredTags() {
		if strings.Contains(token, tag) {
			token = ""
			break
		}
	}

	emitLines := t.settings.ShowThinking && t.settings.ShowSearch
	parsed := t.toolParser.Consume(token, toolcard.Options{EmitLines: emitLines, RolloutIDFallback: t.lastRolloutID})

	var out strings.Builder

	if t.settings.ShowThinking {
		if currentIsThinking && !t.thinkOpen {
			out.WriteString("<think>\n")
			t.thinkOpen = true
		}

		if !currentIsThinking && t.thinkOpen {
			out.WriteString("\n</think>\n")
			t.thinkOpen = false
		}
	}

	if t.settings.ShowThinking || !currentIsThinking {
		out.WriteString(renderLines(parsed.Lines))

		body := parsed.Text
		if grok.MessageTag == "header" && body != "" {
			body = "\n\n" + body + "\n\n"
		}

		out.WriteString(body)
	}

	t.enqueueContent(out.String())
}

// renderLines joins tool-card lines, one per line with a trailing newline,
// so they precede whatever body text follows in the same chunk.
func renderLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}

	return strings.Join(lines, "\n") + "\n"
}
