// Package stdout implements a Provider that prints messages to standard
// output. It is selected when no bot token is configured and serves as a
// dry-run backend.
package stdout

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/smtp2tg/smtp2tg/internal/message"
)

// Provider prints parsed messages to stdout in a human-readable format.
type Provider struct {
	// writer is the output destination, defaulting to os.Stdout.
	writer io.Writer
}

// New creates a new stdout Provider that writes to os.Stdout.
func New() *Provider {
	return &Provider{writer: os.Stdout}
}

// NewWithWriter creates a new stdout Provider that writes to the given writer.
// This is useful for testing.
func NewWithWriter(w io.Writer) *Provider {
	return &Provider{writer: w}
}

// Send prints the message in a readable format. It always returns nil.
func (p *Provider) Send(_ context.Context, msg *message.Message) error {
	var b strings.Builder

	b.WriteString("========================================\n")
	b.WriteString(fmt.Sprintf("From: %s\n", msg.EnvelopeFrom))
	b.WriteString(fmt.Sprintf("To: %s\n", strings.Join(msg.EnvelopeTo, ", ")))
	b.WriteString(fmt.Sprintf("Subject: %s\n", msg.Subject))

	if body, ok := msg.BodyText(0); ok {
		b.WriteString("Body:\n")
		b.WriteString(body + "\n")
	}
	for i := 1; i < msg.TextBodyCount(); i++ {
		body, _ := msg.BodyText(i)
		b.WriteString(fmt.Sprintf("Text part %d:\n%s\n", i, body))
	}

	if msg.AttachmentCount() > 0 {
		names := make([]string, 0, msg.AttachmentCount())
		for i := 0; i < msg.AttachmentCount(); i++ {
			part, _ := msg.Attachment(i)
			name, err := part.DeclaredFilename()
			if err != nil || name == "" {
				name = "unnamed"
			}
			names = append(names, fmt.Sprintf("%s (%s)", name, formatSize(len(part.Content))))
		}
		b.WriteString(fmt.Sprintf("Attachments: %s\n", strings.Join(names, ", ")))
	}

	b.WriteString("========================================\n")

	// Write errors are ignored: the dry-run provider conceptually always
	// succeeds.
	fmt.Fprint(p.writer, b.String())

	return nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "stdout"
}

// formatSize formats a byte count into a human-readable string.
func formatSize(bytes int) string {
	const (
		kb = 1024
		mb = kb * 1024
	)

	switch {
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
