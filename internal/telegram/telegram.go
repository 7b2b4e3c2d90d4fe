// Package telegram is the bot-protocol boundary. The rest of the system
// consumes the Client/Instance interfaces; the production implementation
// speaks the Telegram Bot API over long polling.
package telegram

import (
	"context"
	"errors"

	"botfoundry/internal/types"
)

// ErrUnauthorized marks a credential the bot protocol rejected outright
// (bad or revoked token). Any other probe failure is transient.
var ErrUnauthorized = errors.New("telegram: credential rejected")

// Identity describes the bot account behind a credential.
type Identity struct {
	ID       types.UserID
	Username string
}

// Update is one inbound event delivered to an instance.
type Update struct {
	Sender   types.UserID
	Username string
	Text     string
	// Command is set (without the slash) when the message is a command;
	// Args carries the raw argument string after it.
	Command string
	Args    string
}

// IsCommand reports whether the update is a slash command.
func (u Update) IsCommand() bool {
	return u.Command != ""
}

// Responder sends messages on behalf of the instance that received an
// update. Handlers use it both to reply to the sender and to notify
// third parties such as referrers.
type Responder interface {
	Send(user types.UserID, text string) error
}

// Handler processes one inbound update on an instance.
type Handler func(ctx context.Context, u Update, r Responder)

// Instance is a running bot bound to one credential.
type Instance interface {
	Responder
	Identity() Identity
	// Stop ends update delivery and waits for in-flight handling to
	// drain. Idempotent.
	Stop() error
}

// Client validates credentials and starts instances.
type Client interface {
	// Validate probes a candidate credential with one identity call.
	Validate(ctx context.Context, token string) (Identity, error)
	// Start begins long polling with the given handler.
	Start(token string, h Handler) (Instance, error)
}
