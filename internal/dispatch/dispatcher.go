// Package dispatch turns inbound free-text messages into generated
// replies: prompt composition, quota failover, and the referral
// watermark for unverified tenants.
package dispatch

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"botfoundry/internal/gemini"
	"botfoundry/internal/referral"
	"botfoundry/internal/types"
)

// User-visible failure copy. Short apology plus an actionable next step.
const (
	quotaReply   = "⚠️ Quota exceeded, switching API key... Please try again."
	failureReply = "⚠️ Sorry, I encountered an error processing your request. Please try again."
)

// Generator is the single-call generative surface.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Rotator advances the shared credential pool after quota exhaustion.
type Rotator interface {
	Advance(ctx context.Context) error
}

// ProgressReader exposes referral state for the watermark decision.
type ProgressReader interface {
	Progress(owner types.UserID) referral.Progress
}

// InstructionSource resolves the owning record's instructions.
type InstructionSource interface {
	Get(owner types.UserID) (string, bool)
}

// Dispatcher composes prompts and replies for one inbound message at a
// time. It is stateless and safe for concurrent use from every
// instance.
type Dispatcher struct {
	gen          Generator
	rot          Rotator
	progress     ProgressReader
	instructions InstructionSource
	watermarkTag string
	log          *zap.Logger
}

// New wires a dispatcher.
func New(gen Generator, rot Rotator, progress ProgressReader, instructions InstructionSource, watermarkTag string, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		gen:          gen,
		rot:          rot,
		progress:     progress,
		instructions: instructions,
		watermarkTag: watermarkTag,
		log:          log,
	}
}

// Dispatch handles one text message addressed to the instance whose
// record is keyed by owner. tenant marks tenant instances, which carry
// the watermark until their owner is referral-verified. The returned
// string is always the user-facing reply.
//
// On quota exhaustion the pool is advanced exactly once and the user is
// told to retry; there is no retry loop here, so simultaneous
// exhaustion of every credential cannot become a rotation storm.
func (d *Dispatcher) Dispatch(ctx context.Context, owner types.UserID, tenant bool, message string) string {
	prompt := message
	if instr, ok := d.instructions.Get(owner); ok && instr != "" {
		prompt = instr + "\n\n" + message
	}

	text, err := d.gen.Generate(ctx, prompt)
	if err != nil {
		if gemini.IsQuota(err) {
			if rerr := d.rot.Advance(ctx); rerr != nil {
				d.log.Error("credential rotation failed",
					zap.String("owner", owner.String()), zap.Error(rerr))
			}
			return quotaReply
		}
		d.log.Error("generation failed",
			zap.String("owner", owner.String()), zap.Error(err))
		return failureReply
	}

	if tenant {
		if p := d.progress.Progress(owner); !p.Verified {
			return text + Watermark(d.watermarkTag, p.Remaining)
		}
	}
	return text
}

// Watermark renders the suffix appended to tenant replies until the
// owner is verified.
func Watermark(tag string, remaining int) string {
	return fmt.Sprintf("\n\n┈┈┈┈┈┈┈┈┈┈┈┈┈┈┈┈┈\n🔹 Cloned by %s\n📊 %d referrals needed to remove", tag, remaining)
}
