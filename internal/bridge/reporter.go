package bridge

import (
	"context"
	"log/slog"

	"github.com/smtp2tg/smtp2tg/internal/telegram"
)

// Reporter delivers diagnostic notices to the default chat. It never returns
// an error: a diagnostic that cannot be delivered is logged locally and
// dropped, so reporting can never cascade into the mail-transfer disposition.
type Reporter struct {
	transport   Transport
	defaultChat telegram.ChatID
}

// NewReporter creates a Reporter sending to the given default chat.
func NewReporter(transport Transport, defaultChat telegram.ChatID) *Reporter {
	return &Reporter{
		transport:   transport,
		defaultChat: defaultChat,
	}
}

// Report sends the diagnostic text to the default chat, wrapped in the same
// preformatted block used for message bodies. Text that would itself break
// the block is sent unformatted instead, so no diagnostic is ever lost to
// markup issues.
func (r *Reporter) Report(ctx context.Context, text string) {
	slog.Warn("bridge diagnostic", "text", text)

	var err error
	if Validate(text) == nil {
		err = r.transport.SendText(ctx, r.defaultChat, fence+"\n"+text+"\n"+fence)
	} else {
		err = r.transport.SendPlainText(ctx, r.defaultChat, text)
	}
	if err != nil {
		// Last resort: the fallback channel itself is failing. Keep the
		// session alive and leave a local trace only.
		slog.Error("failed to deliver diagnostic", "error", err)
	}
}
