package telegram

import (
	"context"
	"errors"
	"fmt"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap/zaptest"
)

func TestClassifyAuth(t *testing.T) {
	rejected := &tgbotapi.Error{Code: 401, Message: "Unauthorized"}
	if err := classifyAuth(rejected); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("401 classified as %v, want ErrUnauthorized", err)
	}

	wrapped := fmt.Errorf("probe: %w", rejected)
	if err := classifyAuth(wrapped); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("wrapped 401 classified as %v, want ErrUnauthorized", err)
	}

	transient := errors.New("connection reset")
	if err := classifyAuth(transient); errors.Is(err, ErrUnauthorized) {
		t.Error("transient failure classified as auth rejection")
	}

	tooMany := &tgbotapi.Error{Code: 429, Message: "Too Many Requests"}
	if err := classifyAuth(tooMany); errors.Is(err, ErrUnauthorized) {
		t.Error("429 classified as auth rejection")
	}
}

func TestValidate_HonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewPollClient(1, zaptest.NewLogger(t))
	_, err := c.Validate(ctx, "123:abc")
	if err == nil {
		t.Fatal("expected the probe to fail under a cancelled context")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want it to wrap context.Canceled", err)
	}
	if errors.Is(err, ErrUnauthorized) {
		t.Error("cancellation misclassified as credential rejection")
	}
}

func TestUpdateIsCommand(t *testing.T) {
	if (Update{Text: "hi"}).IsCommand() {
		t.Error("plain text reported as command")
	}
	if !(Update{Text: "/start", Command: "start"}).IsCommand() {
		t.Error("command not recognized")
	}
}
