// Package message defines the parsed mail message model shared between the
// SMTP layer, the parser, and the delivery backends.
package message

import (
	"mime"
	"net/textproto"
)

// Message represents a parsed email message. Envelope addresses come from the
// SMTP transaction and take precedence over header-level addresses. Body parts
// and attachments keep their extraction order.
type Message struct {
	EnvelopeFrom string
	EnvelopeTo   []string
	Subject      string
	ThreadName   string
	Date         string
	TextParts    []Part
	HTMLParts    []Part
	Attachments  []Part
}

// Part is a single MIME part: its decoded content plus the part headers,
// kept around so a declared filename can be recovered later.
type Part struct {
	Content []byte
	Header  textproto.MIMEHeader
}

// TextBodyCount returns the number of text/plain body parts.
func (m *Message) TextBodyCount() int { return len(m.TextParts) }

// HTMLBodyCount returns the number of text/html body parts.
func (m *Message) HTMLBodyCount() int { return len(m.HTMLParts) }

// AttachmentCount returns the number of attachment parts.
func (m *Message) AttachmentCount() int { return len(m.Attachments) }

// BodyText returns the content of the i-th text body part as a string.
// The second return value is false if the index is out of range.
func (m *Message) BodyText(i int) (string, bool) {
	if i < 0 || i >= len(m.TextParts) {
		return "", false
	}
	return string(m.TextParts[i].Content), true
}

// TextPart returns the i-th text body part.
func (m *Message) TextPart(i int) (Part, bool) {
	if i < 0 || i >= len(m.TextParts) {
		return Part{}, false
	}
	return m.TextParts[i], true
}

// Attachment returns the i-th attachment part.
func (m *Message) Attachment(i int) (Part, bool) {
	if i < 0 || i >= len(m.Attachments) {
		return Part{}, false
	}
	return m.Attachments[i], true
}

// DeclaredFilename recovers the filename declared in the part's Content-Type
// "name" attribute. It returns an empty string when no filename is declared,
// and an error when the Content-Type header is present but malformed.
func (p Part) DeclaredFilename() (string, error) {
	ct := p.Header.Get("Content-Type")
	if ct == "" {
		return "", nil
	}
	_, params, err := mime.ParseMediaType(ct)
	if err != nil {
		return "", err
	}
	return params["name"], nil
}
