package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"botfoundry/internal/types"
)

// PollClient is the production Client. Each started instance runs its
// own long-poll loop; updates within one instance are handled
// sequentially, instances are independent.
type PollClient struct {
	timeout int
	log     *zap.Logger
}

// NewPollClient builds a client with the given long-poll timeout in
// seconds.
func NewPollClient(timeoutSeconds int, log *zap.Logger) *PollClient {
	return &PollClient{timeout: timeoutSeconds, log: log}
}

// Validate issues a single getMe probe with the candidate token. The
// probe is bound to ctx and can be cancelled.
func (c *PollClient) Validate(ctx context.Context, token string) (Identity, error) {
	api, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, ctxClient{ctx: ctx, c: http.DefaultClient})
	if err != nil {
		return Identity{}, classifyAuth(err)
	}
	return Identity{
		ID:       types.UserID(api.Self.ID),
		Username: api.Self.UserName,
	}, nil
}

// ctxClient scopes every request issued through it to one context. The
// bot API constructor offers no context parameter of its own.
type ctxClient struct {
	ctx context.Context
	c   *http.Client
}

func (c ctxClient) Do(req *http.Request) (*http.Response, error) {
	return c.c.Do(req.WithContext(c.ctx))
}

// Start connects with token and begins delivering updates to h.
func (c *PollClient) Start(token string, h Handler) (Instance, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, classifyAuth(err)
	}

	inst := &pollInstance{
		api: api,
		id: Identity{
			ID:       types.UserID(api.Self.ID),
			Username: api.Self.UserName,
		},
		done: make(chan struct{}),
		log:  c.log.With(zap.String("bot", api.Self.UserName)),
	}

	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = c.timeout
	updates := api.GetUpdatesChan(cfg)
	go inst.loop(updates, h)

	inst.log.Info("instance polling started")
	return inst, nil
}

// classifyAuth separates a rejected token from transient protocol
// failures, once, at this boundary.
func classifyAuth(err error) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusUnauthorized {
		return fmt.Errorf("%w: %s", ErrUnauthorized, apiErr.Message)
	}
	return err
}

type pollInstance struct {
	api  *tgbotapi.BotAPI
	id   Identity
	done chan struct{}
	stop sync.Once
	log  *zap.Logger
}

func (i *pollInstance) loop(updates tgbotapi.UpdatesChannel, h Handler) {
	defer close(i.done)
	for upd := range updates {
		if upd.Message == nil || upd.Message.From == nil {
			continue
		}
		u := Update{
			Sender:   types.UserID(upd.Message.From.ID),
			Username: upd.Message.From.UserName,
			Text:     upd.Message.Text,
		}
		if upd.Message.IsCommand() {
			u.Command = upd.Message.Command()
			u.Args = upd.Message.CommandArguments()
		}
		h(context.Background(), u, i)
	}
}

func (i *pollInstance) Identity() Identity {
	return i.id
}

func (i *pollInstance) Send(user types.UserID, text string) error {
	msg := tgbotapi.NewMessage(int64(user), text)
	if _, err := i.api.Send(msg); err != nil {
		return fmt.Errorf("telegram: send to %s: %w", user, err)
	}
	return nil
}

func (i *pollInstance) Stop() error {
	i.stop.Do(func() {
		i.api.StopReceivingUpdates()
		<-i.done
		i.log.Info("instance polling stopped")
	})
	return nil
}
