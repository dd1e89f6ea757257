package bridge

import (
	"context"
	"fmt"
	"strings"

	"github.com/smtp2tg/smtp2tg/internal/message"
)

// MessageLimit is the Telegram hard cap on message length.
const MessageLimit = 4096

// Composer renders a parsed message into a single MarkdownV2 text: enabled
// header lines followed by the first text body inside a preformatted block,
// when one fits under the platform limit.
type Composer struct {
	fields   map[string]bool
	limit    int
	reporter *Reporter
}

// Composed is the result of composing one message.
type Composed struct {
	// Text is the rendered message, never longer than the platform limit.
	Text string

	// BodyConsumed is true when text part 0 was embedded as the body and
	// must be skipped by the attachment collector.
	BodyConsumed bool
}

// NewComposer creates a Composer rendering the given header fields.
// Recognized fields are "subject", "from", and "date"; each is independently
// omittable.
func NewComposer(fields []string, reporter *Reporter) *Composer {
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return &Composer{
		fields:   set,
		limit:    MessageLimit,
		reporter: reporter,
	}
}

// Compose renders msg. A body that would not fit, or that fails validation,
// is omitted; the message is then headers only. HTML bodies are never
// rendered, only counted for the structure diagnostic.
func (c *Composer) Compose(ctx context.Context, msg *message.Message) Composed {
	lines := c.headerLines(msg)
	headerSize := len(strings.Join(lines, "\n")) + 1

	if html, text := msg.HTMLBodyCount(), msg.TextBodyCount(); html != text {
		c.reporter.Report(ctx, fmt.Sprintf(
			"Mismatched message structure: %d HTML parts and %d text parts.", html, text))
	}

	body, consumed := c.pickBody(ctx, msg, headerSize)
	if body != "" {
		lines = append(lines, fence)
		lines = append(lines, bodyLines(body)...)
		lines = append(lines, fence)
	}

	return Composed{
		Text:         strings.Join(lines, "\n"),
		BodyConsumed: consumed,
	}
}

// headerLines builds one line per enabled header field. Subject is preferred;
// when absent, the thread name takes its place.
func (c *Composer) headerLines(msg *message.Message) []string {
	var lines []string

	if c.fields["subject"] {
		switch {
		case msg.Subject != "":
			lines = append(lines, "*Subject:* `"+Escape(msg.Subject)+"`")
		case msg.ThreadName != "":
			lines = append(lines, "*Thread:* `"+Escape(msg.ThreadName)+"`")
		}
	}

	var short []string
	if c.fields["from"] && msg.EnvelopeFrom != "" {
		short = append(short, "*From:* `"+Escape(msg.EnvelopeFrom)+"`")
	}
	if c.fields["date"] && msg.Date != "" {
		short = append(short, "*Date:* "+Escape(msg.Date))
	}
	if len(short) > 0 {
		lines = append(lines, strings.Join(short, " "))
	}

	return lines
}

// pickBody selects the first text body part when it fits strictly under
// limit - headerSize. An over-sized body is dropped whole rather than
// truncated; a body failing validation is dropped and reported.
func (c *Composer) pickBody(ctx context.Context, msg *message.Message, headerSize int) (string, bool) {
	if msg.TextBodyCount() == 0 {
		return "", false
	}

	body, _ := msg.BodyText(0)
	if len(body) >= c.limit-headerSize {
		return "", false
	}
	if err := Validate(body); err != nil {
		c.reporter.Report(ctx, "Dropped a message body that would terminate the preformatted block.")
		return "", false
	}
	return body, true
}

// bodyLines splits the body into lines, preserved verbatim.
func bodyLines(body string) []string {
	return strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n")
}
