package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"botfoundry/internal/referral"
	"botfoundry/internal/telegram"
	"botfoundry/internal/types"
)

// handler builds the update handler for one instance. master marks the
// master bot; instOwner is the tenant owner for clones (for the master
// it is the bot's own identity and unused by routing).
func (a *App) handler(instOwner types.UserID, master bool) telegram.Handler {
	return func(ctx context.Context, u telegram.Update, r telegram.Responder) {
		reply := a.route(ctx, instOwner, master, u, r)
		if reply == "" {
			return
		}
		if err := r.Send(u.Sender, reply); err != nil {
			a.log.Error("sending reply",
				zap.String("sender", u.Sender.String()), zap.Error(err))
		}
	}
}

// route maps one update to its reply. Unknown commands are ignored, as
// is /clone outside the master.
func (a *App) route(ctx context.Context, instOwner types.UserID, master bool, u telegram.Update, r telegram.Responder) string {
	if u.IsCommand() {
		switch u.Command {
		case "start":
			return a.handleStart(master, u, r)
		case "set_instructions":
			return a.handleSetInstructions(a.recordKey(instOwner, master, u.Sender), u)
		case "clear_instructions":
			return a.handleClearInstructions(a.recordKey(instOwner, master, u.Sender))
		case "share":
			return a.handleShare(u)
		case "clone":
			if master {
				return a.onboarding.Begin(u.Sender)
			}
		case "cancel":
			if master && a.onboarding.Active(u.Sender) {
				return a.onboarding.Cancel(u.Sender)
			}
		}
		return ""
	}

	if master && a.onboarding.Active(u.Sender) {
		return a.onboarding.Handle(ctx, u.Sender, u.Text).Reply
	}
	return a.dispatcher.Dispatch(ctx, a.recordKey(instOwner, master, u.Sender), !master, u.Text)
}

// recordKey resolves whose instruction/referral record an update acts
// on: the tenant owner on clones, the sender themselves on the master.
func (a *App) recordKey(instOwner types.UserID, master bool, sender types.UserID) types.UserID {
	if master {
		return sender
	}
	return instOwner
}

func (a *App) handleStart(master bool, u telegram.Update, r telegram.Responder) string {
	arg := strings.TrimSpace(u.Args)
	if referral.IsCode(arg) {
		return a.handleReferralJoin(arg, u, r)
	}

	if p := a.ledger.Progress(u.Sender); a.ledger.Tracked(u.Sender) && !p.Verified {
		return fmt.Sprintf(
			"📣 Share with %d more people to remove the watermark!\n\n"+
				"Use /share to get your referral link.", p.Remaining)
	}

	if master {
		return "🤖 Hi! I'm your AI assistant. Send me a message, or use /clone to create your own bot with custom instructions!"
	}
	return "🤖 Hi! Send me a message and I'll answer."
}

// handleReferralJoin credits the referrer (at most once per joining
// identity, ever) and notifies them through the receiving instance.
func (a *App) handleReferralJoin(code string, u telegram.Update, r telegram.Responder) string {
	credit, err := a.ledger.Credit(code, u.Sender)
	switch {
	case errors.Is(err, referral.ErrUnknownCode):
		return "🤖 Hello! Use /clone to create your own AI assistant with custom instructions!"
	case errors.Is(err, referral.ErrAlreadyReferred):
		// Joined through a link before; welcome them, credit nobody.
		return referredWelcome
	case err != nil:
		a.log.Error("crediting referral", zap.Error(err))
		return referredWelcome
	}

	a.log.Info("referral credited",
		zap.String("referrer", credit.Referrer.String()),
		zap.String("referred", u.Sender.String()),
		zap.Int("remaining", credit.Remaining))

	if err := r.Send(credit.Referrer, a.referrerNotice(credit, u)); err != nil {
		a.log.Error("notifying referrer",
			zap.String("referrer", credit.Referrer.String()), zap.Error(err))
	}
	return referredWelcome
}

const referredWelcome = "👋 Welcome! You joined through a friend's referral.\n\n" +
	"This bot lets you create AI assistants with custom personalities!\n\n" +
	"Use /clone to create your own AI bot, or just start chatting! 🚀"

func (a *App) referrerNotice(credit referral.Credit, u telegram.Update) string {
	name := u.Username
	if name == "" {
		name = "user_" + u.Sender.String()
	}
	if credit.Unlocked {
		return "✨ Premium Experience Unlocked! ✨\n\n" +
			"✅ The watermark has been removed from your bot.\n" +
			"🌟 Your AI responses will now appear clean & professional.\n\n" +
			"Thank you for sharing the love!"
	}
	return fmt.Sprintf(
		"🎉 @%s joined using your referral link!\n"+
			"📊 You need %d more referrals to remove the watermark.",
		name, credit.Remaining)
}

func (a *App) handleSetInstructions(key types.UserID, u telegram.Update) string {
	text := strings.TrimSpace(u.Args)
	if text != "" {
		a.instructions.Set(key, text)
		return fmt.Sprintf(
			"✅ Custom instructions set! The AI will now follow these guidelines:\n\n"+
				"%s\n\n"+
				"Use /clear_instructions to remove them.", text)
	}

	current, ok := a.instructions.Get(key)
	if !ok {
		return "You haven't set any custom instructions yet.\n\n" +
			"Example: /set_instructions You are a helpful assistant who speaks like a pirate"
	}
	return fmt.Sprintf(
		"📝 Your current instructions:\n\n%s\n\n"+
			"To change: /set_instructions [your new instructions]", current)
}

func (a *App) handleClearInstructions(key types.UserID) string {
	if a.instructions.Clear(key) {
		return "✅ Custom instructions erased!"
	}
	return "You don't have any custom instructions set."
}

func (a *App) handleShare(u telegram.Update) string {
	if !a.registry.Owns(u.Sender) {
		return "⚠️ You need to create your own bot first using /clone to use the referral system!"
	}

	code := a.ledger.GenerateCode(u.Sender)
	link := fmt.Sprintf("https://t.me/%s?start=%s", a.masterID.Username, code)
	p := a.ledger.Progress(u.Sender)

	return fmt.Sprintf(
		"📣 Referral Program\n\n"+
			"🔗 Your unique link: %s\n\n"+
			"📊 Progress: %d/%d referrals\n"+
			"🎯 Remaining: %d more to remove the watermark\n\n"+
			"How it works:\n"+
			"• Share your unique link with friends\n"+
			"• When they join using your link, it counts\n"+
			"• After %d real joins, the watermark disappears!\n\n"+
			"✨ No fake clicks — only real joins count!",
		link, p.Count, a.ledger.Threshold(), p.Remaining, a.ledger.Threshold())
}
