// Package parser turns raw RFC 5322 email messages into the message.Message
// model, with MIME multipart support provided by enmime.
package parser

import (
	"bytes"
	"fmt"
	"net/mail"
	"regexp"
	"strings"

	"github.com/jhillyerd/enmime/v2"

	"github.com/smtp2tg/smtp2tg/internal/message"
)

// replyPrefix matches the reply/forward prefixes stripped when deriving a
// thread name from a subject, e.g. "Re: Re: Fwd: news" -> "news".
var replyPrefix = regexp.MustCompile(`(?i)^\s*((re|fwd?|fw)\s*(\[\d+\])?\s*:\s*)+`)

// Parse parses a raw RFC 5322 email message. Header-level From/To addresses
// are filled in as a fallback; the SMTP layer overwrites them with the
// envelope addresses of the transaction when those are present.
func Parse(raw []byte) (*message.Message, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	msg := &message.Message{
		EnvelopeFrom: env.GetHeader("From"),
		EnvelopeTo:   parseAddressList(env.GetHeader("To")),
		Subject:      env.GetHeader("Subject"),
		Date:         env.GetHeader("Date"),
	}
	msg.ThreadName = threadName(msg.Subject, env.GetHeader("Thread-Topic"))

	collectParts(env.Root, msg)
	return msg, nil
}

// collectParts walks the MIME tree depth-first and sorts every leaf part into
// text bodies, HTML bodies, or attachments, preserving document order.
func collectParts(root *enmime.Part, msg *message.Message) {
	if root == nil {
		return
	}

	leaves := root.DepthMatchAll(func(p *enmime.Part) bool {
		return p.FirstChild == nil
	})

	for _, p := range leaves {
		part := message.Part{Content: p.Content, Header: p.Header}

		switch {
		case p.Disposition == "attachment":
			msg.Attachments = append(msg.Attachments, part)
		case p.FileName != "" && !strings.HasPrefix(p.ContentType, "text/"):
			msg.Attachments = append(msg.Attachments, part)
		case p.ContentType == "text/plain" || p.ContentType == "":
			msg.TextParts = append(msg.TextParts, part)
		case p.ContentType == "text/html":
			msg.HTMLParts = append(msg.HTMLParts, part)
		default:
			// Anything else (images, PDFs, ...) is forwarded as a file even
			// without an explicit attachment disposition.
			msg.Attachments = append(msg.Attachments, part)
		}
	}
}

// threadName derives a conversation name: the subject with reply/forward
// prefixes stripped, falling back to the Thread-Topic header.
func threadName(subject, topic string) string {
	name := subject
	if name == "" {
		name = topic
	}
	name = strings.TrimSpace(replyPrefix.ReplaceAllString(name, ""))
	return name
}

// parseAddressList splits a comma-separated address list into individual
// addresses, falling back to a plain comma split when RFC 5322 parsing fails.
func parseAddressList(raw string) []string {
	if raw == "" {
		return nil
	}

	addresses, err := mail.ParseAddressList(raw)
	if err != nil {
		parts := strings.Split(raw, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}

	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		result = append(result, addr.Address)
	}
	return result
}
