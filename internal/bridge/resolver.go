package bridge

import (
	"context"

	"github.com/smtp2tg/smtp2tg/internal/telegram"
)

// Policy decides what happens to recipient addresses that resolve to no
// configured entry, at the RCPT stage of the SMTP session.
type Policy string

const (
	// PolicyRelay accepts mail for unknown addresses; it is delivered to the
	// default chat.
	PolicyRelay Policy = "relay"

	// PolicyDeny rejects unknown addresses at RCPT time with "no mailbox".
	PolicyDeny Policy = "deny"
)

// Resolver maps recipient addresses to Telegram chats. The recipient table
// and domain set are fixed at startup and never mutated, so a Resolver is
// safe for concurrent use.
type Resolver struct {
	matcher     *Matcher
	recipients  map[string]telegram.ChatID
	defaultChat telegram.ChatID
	policy      Policy
	reporter    *Reporter
}

// NewResolver creates a Resolver over the given recipient table. The table
// must contain the default chat separately; resolution never fails, every
// address yields a concrete chat.
func NewResolver(matcher *Matcher, recipients map[string]telegram.ChatID, defaultChat telegram.ChatID, policy Policy, reporter *Reporter) *Resolver {
	return &Resolver{
		matcher:     matcher,
		recipients:  recipients,
		defaultChat: defaultChat,
		policy:      policy,
		reporter:    reporter,
	}
}

// Resolve returns the chat configured for the address. Locally addressed
// recipients are looked up by local part; anything else is looked up verbatim,
// which supports operator-configured full-address keys. Unresolved addresses
// fall back to the default chat.
func (r *Resolver) Resolve(addr string) telegram.ChatID {
	key := addr
	if local, ok := r.matcher.LocalPart(addr); ok {
		key = local
	}
	if chat, ok := r.recipients[key]; ok {
		return chat
	}
	return r.defaultChat
}

// ResolveAll resolves every address into a deduplicated chat list. An empty
// address list yields the default chat and raises a diagnostic, since a
// message without any destination usually indicates a misbehaving sender.
func (r *Resolver) ResolveAll(ctx context.Context, addrs []string) []telegram.ChatID {
	if len(addrs) == 0 {
		r.reporter.Report(ctx, "No recipient or envelope address.")
		return []telegram.ChatID{r.defaultChat}
	}

	seen := make(map[telegram.ChatID]struct{}, len(addrs))
	chats := make([]telegram.ChatID, 0, len(addrs))
	for _, addr := range addrs {
		chat := r.Resolve(addr)
		if _, ok := seen[chat]; ok {
			continue
		}
		seen[chat] = struct{}{}
		chats = append(chats, chat)
	}
	return chats
}

// Known reports whether the address resolves to an explicitly configured
// entry. Used by the SMTP layer to reject unknown recipients under the deny
// policy.
func (r *Resolver) Known(addr string) bool {
	key := addr
	if local, ok := r.matcher.LocalPart(addr); ok {
		key = local
	}
	_, ok := r.recipients[key]
	return ok
}

// Policy returns the configured unknown-address policy.
func (r *Resolver) Policy() Policy {
	return r.policy
}
