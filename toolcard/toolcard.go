// Package toolcard extracts embedded pseudo-XML tool-usage cards from NDJSON
// token deltas without splitting a card across an emit boundary and without
// dropping the surrounding text. Malformed card payloads are tolerated via
// jsonrepair before falling back to raw text, since model output is
// occasionally malformed JSON.
package toolcard

import (
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// Options controls how a Parser consumes and emits tool-usage cards.
type Options struct {
	EmitLines            bool
	EmitIncompleteAsText bool
	RolloutIDFallback    string
}

// Card is a normalised tool-usage card extracted from the stream.
type Card struct {
	Type      string
	RolloutID string
	Content   string
}

// Result carries everything one Consume/Flush call produced: plain text to
// forward as-is, and the rendered "[rolloutId][type] ..." card lines.
type Result struct {
	Text  string
	Lines []string
}

func (r *Result) append(other Result) {
	r.Text += other.Text
	r.Lines = append(r.Lines, other.Lines...)
}

var (
	reCardStart   = regexp.MustCompile(`(?i)<xai:tool_usage_card`)
	reNameStart   = regexp.MustCompile(`(?i)<xai:tool_name>`)
	reCardEnd     = regexp.MustCompile(`(?i)</xai:tool_usage_card>`)
	reNameEnd     = regexp.MustCompile(`(?i)</xai:tool_name>`)
	reArgsEnd     = regexp.MustCompile(`(?i)</xai:tool_args>`)
	reToolName    = regexp.MustCompile(`(?is)<xai:tool_name>(.*?)</xai:tool_name>`)
	reToolArgs    = regexp.MustCompile(`(?is)<xai:tool_args>\s*<!\[CDATA\[(.*?)\]\]>\s*</xai:tool_args>`)
	reCDATAStrip  = regexp.MustCompile(`(?is)<!\[CDATA\[(.*?)\]\]>`)
	reTrailingXAI = regexp.MustCompile(`(?i)<xai:`)
)

// Parser maintains the single text buffer the consume protocol operates on.
type Parser struct {
	buf strings.Builder
}

// New returns an empty Parser.
func New() *Parser { return &Parser{} }

// Consume appends input to the buffer and repeatedly extracts text and
// tool-usage card fragments. Complete cards become rendered Lines when
// opts.EmitLines is set (and are dropped otherwise); everything around them
// comes back as Text. A partially-received card stays buffered for the next
// call.
func (p *Parser) Consume(input string, opts Options) Result {
	p.buf.WriteString(input)

	var (
		out strings.Builder
		res Result
	)

	buf := p.buf.String()

	for {
		start := earliestCardStart(buf)

		if start < 0 {
			flushIdx := trailingPartialOpenIndex(buf)
			if flushIdx >= 0 {
				out.WriteString(buf[:flushIdx])
				buf = buf[flushIdx:]
			} else {
				out.WriteString(buf)
				buf = ""
			}

			break
		}

		if start > 0 {
			out.WriteString(buf[:start])
			buf = buf[start:]

			continue
		}

		fragment, rest, ok := extractFragment(buf)
		if !ok {
			break
		}

		buf = rest

		card, parsed := parseFragment(fragment, opts.RolloutIDFallback)
		if !parsed {
			out.WriteString(fragment)
			continue
		}

		if opts.EmitLines {
			res.Lines = append(res.Lines, cardLines(card)...)
		}
	}

	p.buf.Reset()
	p.buf.WriteString(buf)

	res.Text = out.String()

	return res
}

// Flush runs one empty consume and, if opts.EmitIncompleteAsText, appends
// and clears the residual buffer as text.
func (p *Parser) Flush(opts Options) Result {
	res := p.Consume("", opts)

	if opts.EmitIncompleteAsText {
		res.Text += p.buf.String()
		p.buf.Reset()
	}

	return res
}

// ReplaceToolUsageCardsInText runs a fresh Parser's Consume followed by a
// Flush with EmitIncompleteAsText forced true, concatenating the results:
// the one-shot form used on complete (non-streamed) message bodies.
func ReplaceToolUsageCardsInText(input string, opts Options) Result {
	p := New()
	res := p.Consume(input, opts)

	flushOpts := opts
	flushOpts.EmitIncompleteAsText = true
	res.append(p.Flush(flushOpts))

	return res
}

// earliestCardStart returns the earliest index of a tool_usage_card or
// tool_name opening tag, or -1 if neither is present.
func earliestCardStart(buf string) int {
	best := -1

	if loc := reCardStart.FindStringIndex(buf); loc != nil {
		best = loc[0]
	}

	if loc := reNameStart.FindStringIndex(buf); loc != nil {
		if best < 0 || loc[0] < best {
			best = loc[0]
		}
	}

	return best
}

// trailingPartialOpenIndex finds the last "<xai:" within the trailing 64
// characters of buf, in case it is the start of a card split across reads.
func trailingPartialOpenIndex(buf string) int {
	tailStart := len(buf) - 64
	if tailStart < 0 {
		tailStart = 0
	}

	tail := buf[tailStart:]

	loc := reTrailingXAI.FindAllStringIndex(tail, -1)
	if len(loc) == 0 {
		return -1
	}

	last := loc[len(loc)-1]

	return tailStart + last[0]
}

// extractFragment attempts to extract one complete card fragment starting
// at buf[0]. ok is false when more input is needed before a decision can be
// made.
func extractFragment(buf string) (fragment, rest string, ok bool) {
	lower := strings.ToLower(buf)

	switch {
	case strings.HasPrefix(lower, "<xai:tool_usage_card"):
		loc := reCardEnd.FindStringIndex(buf)
		if loc == nil {
			return "", buf, false
		}

		return buf[:loc[1]], buf[loc[1]:], true

	case strings.HasPrefix(lower, "<xai:tool_name>"):
		nameEndLoc := reNameEnd.FindStringIndex(buf)
		if nameEndLoc == nil {
			return "", buf, false
		}

		argsEndLoc := reArgsEnd.FindStringIndex(buf[nameEndLoc[1]:])
		if argsEndLoc == nil {
			return "", buf, false
		}

		end := nameEndLoc[1] + argsEndLoc[1]

		rest := buf[end:]
		trimmed := strings.TrimLeft(rest, " \t\r\n")

		if closeLoc := reCardEnd.FindStringIndex(trimmed); closeLoc != nil && closeLoc[0] == 0 {
			consumed := len(rest) - len(trimmed) + closeLoc[1]
			end += consumed
		}

		return buf[:end], buf[end:], true

	default:
		return "", buf, false
	}
}

// parseFragment extracts the tool name and args payload from a fragment,
// JSON-parsing the args when possible (falling back through jsonrepair,
// then raw text) and normalising the result into a Card.
func parseFragment(fragment, rolloutFallback string) (Card, bool) {
	nameMatch := reToolName.FindStringSubmatch(fragment)
	if nameMatch == nil {
		return Card{}, false
	}

	toolName := stripCDATA(strings.TrimSpace(nameMatch[1]))

	var argsRaw string

	if argsMatch := reToolArgs.FindStringSubmatch(fragment); argsMatch != nil {
		argsRaw = argsMatch[1]
	}

	args, rawArgsText := parseArgs(argsRaw)

	return normalizeCard(toolName, args, rawArgsText, rolloutFallback), true
}

func stripCDATA(s string) string {
	if m := reCDATAStrip.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}

	return s
}

// parseArgs JSON-decodes raw, repairing malformed JSON first. When nothing
// parses, the trimmed raw text is kept instead.
func parseArgs(raw string) (map[string]any, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ""
	}

	if m, ok := decodeObject(raw); ok {
		return m, raw
	}

	if repaired, err := jsonrepair.JSONRepair(raw); err == nil {
		if m, ok := decodeObject(repaired); ok {
			return m, raw
		}
	}

	return nil, raw
}
