package bridge

import (
	"context"

	"github.com/smtp2tg/smtp2tg/internal/telegram"
)

// Transport is the messaging-platform surface the bridge depends on. The
// telegram.Client satisfies it; tests substitute a fake.
type Transport interface {
	// SendText sends a MarkdownV2-formatted message.
	SendText(ctx context.Context, chat telegram.ChatID, text string) error

	// SendPlainText sends a message with markup interpretation disabled.
	SendPlainText(ctx context.Context, chat telegram.ChatID, text string) error

	// SendDocument sends one document, with its caption if set.
	SendDocument(ctx context.Context, chat telegram.ChatID, doc telegram.Document) error

	// SendDocumentBatch sends all documents as a single media group,
	// preserving order.
	SendDocumentBatch(ctx context.Context, chat telegram.ChatID, docs []telegram.Document) error
}
