// Package provider defines the interface for message delivery backends.
package provider

import (
	"context"

	"github.com/smtp2tg/smtp2tg/internal/message"
)

// Provider is the interface that delivery backends must implement. Each
// provider handles forwarding of parsed mail messages to its target (the
// Telegram bridge, or stdout for dry runs).
type Provider interface {
	// Send delivers a parsed message through this provider.
	// It returns an error if the delivery fails.
	Send(ctx context.Context, msg *message.Message) error

	// Name returns the human-readable name of this provider.
	Name() string
}
