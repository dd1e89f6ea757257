package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/smtp2tg/smtp2tg/internal/telegram"
)

// emptyMessageText stands in when a message composed to nothing at all: no
// enabled headers, no usable body, no files. The Bot API rejects empty text.
const emptyMessageText = "Empty message"

// Dispatcher delivers a composed message to each resolved chat. Chats are
// independent: a failed send never blocks the remaining chats.
type Dispatcher struct {
	transport Transport
	reporter  *Reporter
}

// NewDispatcher creates a Dispatcher over the given transport.
func NewDispatcher(transport Transport, reporter *Reporter) *Dispatcher {
	return &Dispatcher{
		transport: transport,
		reporter:  reporter,
	}
}

// Deliver attempts one send per chat. Failures are aggregated and reported
// once via the diagnostic reporter after all chats have been attempted.
// Deliver returns ErrAllDeliveriesFailed only when every chat failed; partial
// failure is a success from the mail sender's point of view.
func (d *Dispatcher) Deliver(ctx context.Context, chats []telegram.ChatID, text string, files []Attachment) error {
	var errs []error
	for _, chat := range chats {
		if err := d.deliverOne(ctx, chat, text, files); err != nil {
			errs = append(errs, fmt.Errorf("chat %d: %w", chat, err))
		}
	}
	if len(errs) == 0 {
		return nil
	}

	d.reporter.Report(ctx, fmt.Sprintf("Sending emails failed:\n%v", errors.Join(errs...)))

	if len(errs) == len(chats) {
		return fmt.Errorf("%w: %w", ErrAllDeliveriesFailed, errors.Join(errs...))
	}
	return nil
}

// deliverOne sends to a single chat: plain text when there are no files, a
// single captioned document for one file, or one media group for several.
// In a media group the composed text is attached as the caption of the last
// item; captions on multi-item batches render on one item only, and this
// gateway pins that item to the final one.
func (d *Dispatcher) deliverOne(ctx context.Context, chat telegram.ChatID, text string, files []Attachment) error {
	switch len(files) {
	case 0:
		if text == "" {
			text = emptyMessageText
		}
		return d.transport.SendText(ctx, chat, text)
	case 1:
		return d.transport.SendDocument(ctx, chat, telegram.Document{
			Data:     files[0].Data,
			Filename: files[0].Filename,
			Caption:  text,
		})
	default:
		docs := make([]telegram.Document, len(files))
		for i, f := range files {
			docs[i] = telegram.Document{
				Data:     f.Data,
				Filename: f.Filename,
			}
		}
		docs[len(docs)-1].Caption = text
		return d.transport.SendDocumentBatch(ctx, chat, docs)
	}
}
