// Package onboard implements the bounded clone conversation:
// AwaitingToken → AwaitingInstructions → done, with cancel from any
// non-terminal state.
package onboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"botfoundry/internal/telegram"
	"botfoundry/internal/types"
)

// State is the position of one conversation.
type State int

const (
	// StateAwaitingToken expects the candidate bot credential.
	StateAwaitingToken State = iota
	// StateAwaitingInstructions expects the tenant's instructions.
	StateAwaitingInstructions
)

// Validator probes a candidate bot token with one identity call.
type Validator interface {
	Validate(ctx context.Context, token string) (telegram.Identity, error)
}

// Provisioner creates the tenant once both inputs are collected.
type Provisioner interface {
	Provision(ctx context.Context, owner types.UserID, token, instructions string) error
}

// Result is what the flow wants reported back to the sender.
type Result struct {
	Reply string
	// Done is true when the conversation reached its terminal state,
	// successfully or not.
	Done bool
}

type flow struct {
	state   State
	token   string
	botName string
}

// Manager tracks at most one onboarding conversation per sender.
// Updates from one conversation arrive sequentially, so each flow only
// needs the map lock around its bookkeeping.
type Manager struct {
	mu    sync.Mutex
	flows map[types.UserID]*flow

	validate  Validator
	provision Provisioner
	threshold int
	log       *zap.Logger
}

// New builds a manager. threshold is only used in the success copy.
func New(validate Validator, provision Provisioner, threshold int, log *zap.Logger) *Manager {
	return &Manager{
		flows:     make(map[types.UserID]*flow),
		validate:  validate,
		provision: provision,
		threshold: threshold,
		log:       log,
	}
}

// Active reports whether sender is mid-flow.
func (m *Manager) Active(sender types.UserID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.flows[sender]
	return ok
}

// Begin enters the flow for sender, restarting any stale one.
func (m *Manager) Begin(sender types.UserID) string {
	m.mu.Lock()
	m.flows[sender] = &flow{state: StateAwaitingToken}
	m.mu.Unlock()
	return "🚀 Let's create your AI bot!\n\n" +
		"1. First, send me your Telegram bot token (from @BotFather)\n" +
		"2. Then, I'll ask for your custom instructions.\n\n" +
		"Send your bot token now, or /cancel to abort."
}

// Cancel ends the flow from any state.
func (m *Manager) Cancel(sender types.UserID) string {
	m.mu.Lock()
	delete(m.flows, sender)
	m.mu.Unlock()
	return "Operation cancelled ❌."
}

// Handle feeds one text message into sender's conversation. The caller
// must only invoke it while Active(sender) is true.
func (m *Manager) Handle(ctx context.Context, sender types.UserID, text string) Result {
	m.mu.Lock()
	f, ok := m.flows[sender]
	m.mu.Unlock()
	if !ok {
		return Result{Done: true}
	}

	switch f.state {
	case StateAwaitingToken:
		return m.handleToken(ctx, sender, f, strings.TrimSpace(text))
	case StateAwaitingInstructions:
		return m.handleInstructions(ctx, sender, f, strings.TrimSpace(text))
	}
	return Result{Done: true}
}

func (m *Manager) handleToken(ctx context.Context, sender types.UserID, f *flow, token string) Result {
	id, err := m.validate.Validate(ctx, token)
	if err != nil {
		if errors.Is(err, telegram.ErrUnauthorized) {
			return Result{Reply: "❌ Invalid token. Please send a valid bot token or /cancel."}
		}
		m.log.Error("token probe failed",
			zap.String("sender", sender.String()), zap.Error(err))
		return Result{Reply: "❌ Error validating token. Please try again or /cancel."}
	}

	m.mu.Lock()
	f.token = token
	f.botName = id.Username
	f.state = StateAwaitingInstructions
	m.mu.Unlock()

	return Result{Reply: fmt.Sprintf(
		"✅ Token valid! Your bot @%s will be created.\n\n"+
			"Now send me your custom instructions for the AI (e.g., 'You are a pirate'):",
		id.Username)}
}

func (m *Manager) handleInstructions(ctx context.Context, sender types.UserID, f *flow, instructions string) Result {
	// Terminal either way; the user re-invokes /clone to retry.
	m.mu.Lock()
	delete(m.flows, sender)
	m.mu.Unlock()

	if err := m.provision.Provision(ctx, sender, f.token, instructions); err != nil {
		m.log.Error("tenant provisioning failed",
			zap.String("sender", sender.String()), zap.Error(err))
		return Result{Reply: "❌ Failed to start your bot. Please try /clone again.", Done: true}
	}

	return Result{
		Reply: fmt.Sprintf(
			"🎉 Your AI bot @%s is now live!\n\n"+
				"📝 Instructions: %s\n\n"+
				"⚠️ Your bot will carry a watermark until you share with %d friends.\n"+
				"Use /share to get your referral link and remove it!",
			f.botName, instructions, m.threshold),
		Done: true,
	}
}
