package bridge

import (
	"context"

	"github.com/smtp2tg/smtp2tg/internal/message"
)

// defaultFilename is used when an attachment declares no usable filename.
const defaultFilename = "Attachment.txt"

// Attachment is a file to be forwarded: raw bytes plus a display filename.
type Attachment struct {
	Data     []byte
	Filename string
}

// Collector gathers the message parts that were not rendered into the
// composed text: remaining text bodies first, then declared attachments,
// each in extraction order.
type Collector struct {
	reporter *Reporter
}

// NewCollector creates a Collector.
func NewCollector(reporter *Reporter) *Collector {
	return &Collector{reporter: reporter}
}

// Collect returns the ordered attachment list for msg. bodyConsumed marks
// text part 0 as already rendered by the composer.
func (c *Collector) Collect(ctx context.Context, msg *message.Message, bodyConsumed bool) []Attachment {
	var out []Attachment

	start := 0
	if bodyConsumed {
		start = 1
	}
	for i := start; i < msg.TextBodyCount(); i++ {
		part, _ := msg.TextPart(i)
		out = append(out, c.toAttachment(ctx, part))
	}
	for i := 0; i < msg.AttachmentCount(); i++ {
		part, _ := msg.Attachment(i)
		out = append(out, c.toAttachment(ctx, part))
	}

	return out
}

// toAttachment converts a MIME part, recovering the declared filename. A
// malformed Content-Type header is reported and treated as "no filename
// declared", never as a failure.
func (c *Collector) toAttachment(ctx context.Context, part message.Part) Attachment {
	name, err := part.DeclaredFilename()
	if err != nil {
		c.reporter.Report(ctx, "Attachment has a malformed Content-Type header.")
		name = ""
	}
	if name == "" {
		name = defaultFilename
	}
	return Attachment{
		Data:     part.Content,
		Filename: name,
	}
}
