// Package bridge implements the mail-to-Telegram translation core: recipient
// resolution, size-bounded message composition, attachment collection, and
// delivery with fallback diagnostics.
package bridge

import (
	"context"

	"github.com/smtp2tg/smtp2tg/internal/message"
	"github.com/smtp2tg/smtp2tg/internal/telegram"
)

// Config holds the bridge settings, validated by the config package and
// immutable after startup.
type Config struct {
	// DefaultChat is the always-present fallback chat, also the diagnostic
	// destination.
	DefaultChat int64

	// Recipients maps local parts (or full addresses) to chats.
	Recipients map[string]int64

	// Domains are the local domains recognized by the address matcher.
	Domains []string

	// Fields are the enabled header fields: subject, from, date.
	Fields []string

	// Policy is the unknown-address policy applied at RCPT time.
	Policy Policy
}

// Bridge translates parsed mail messages into Telegram deliveries. It
// implements the provider interface consumed by the SMTP layer, and holds no
// per-message state: one Bridge serves all sessions concurrently.
type Bridge struct {
	resolver   *Resolver
	composer   *Composer
	collector  *Collector
	dispatcher *Dispatcher
	reporter   *Reporter
}

// New wires up a Bridge over the given transport.
func New(transport Transport, cfg Config) *Bridge {
	recipients := make(map[string]telegram.ChatID, len(cfg.Recipients))
	for name, chat := range cfg.Recipients {
		recipients[name] = telegram.ChatID(chat)
	}
	defaultChat := telegram.ChatID(cfg.DefaultChat)

	reporter := NewReporter(transport, defaultChat)
	matcher := NewMatcher(cfg.Domains)

	return &Bridge{
		resolver:   NewResolver(matcher, recipients, defaultChat, cfg.Policy, reporter),
		composer:   NewComposer(cfg.Fields, reporter),
		collector:  NewCollector(reporter),
		dispatcher: NewDispatcher(transport, reporter),
		reporter:   reporter,
	}
}

// Send delivers one parsed message: resolve recipients, compose the text,
// collect leftover parts, dispatch per chat. It returns an error only when
// every chat delivery failed; anything recoverable is turned into a
// diagnostic instead.
func (b *Bridge) Send(ctx context.Context, msg *message.Message) error {
	chats := b.resolver.ResolveAll(ctx, msg.EnvelopeTo)
	composed := b.composer.Compose(ctx, msg)
	files := b.collector.Collect(ctx, msg, composed.BodyConsumed)
	return b.dispatcher.Deliver(ctx, chats, composed.Text, files)
}

// Name returns the provider name.
func (b *Bridge) Name() string {
	return "telegram"
}

// ReportFailure forwards an ingest failure to the default chat as a
// diagnostic. The SMTP layer calls it for messages that never reach Send,
// such as unparseable mail.
func (b *Bridge) ReportFailure(ctx context.Context, text string) {
	b.reporter.Report(ctx, text)
}

// Accept implements the SMTP recipient policy: under relay everything is
// deliverable, under deny only explicitly configured addresses are.
func (b *Bridge) Accept(addr string) bool {
	if b.resolver.Policy() == PolicyRelay {
		return true
	}
	return b.resolver.Known(addr)
}

// Resolver exposes the recipient resolver, mainly for tests.
func (b *Bridge) Resolver() *Resolver {
	return b.resolver
}
