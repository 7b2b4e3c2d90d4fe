// Package app wires the master bot, the tenant registry, and the shared
// generative pool into one running service, and owns the command surface
// every instance exposes.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"botfoundry/internal/config"
	"botfoundry/internal/dispatch"
	"botfoundry/internal/gemini"
	"botfoundry/internal/instruct"
	"botfoundry/internal/onboard"
	"botfoundry/internal/referral"
	"botfoundry/internal/telegram"
	"botfoundry/internal/tenant"
	"botfoundry/internal/types"
)

// App owns every component of the running service.
type App struct {
	cfg *config.Config
	log *zap.Logger

	tg           telegram.Client
	pool         *gemini.Pool
	gen          *gemini.Client
	registry     *tenant.Registry
	ledger       *referral.Ledger
	instructions *instruct.Store
	dispatcher   *dispatch.Dispatcher
	onboarding   *onboard.Manager

	master   telegram.Instance
	masterID telegram.Identity
}

// New wires an App from a bot-protocol client and a configured pool.
func New(cfg *config.Config, tg telegram.Client, pool *gemini.Pool, log *zap.Logger) *App {
	a := &App{
		cfg:          cfg,
		log:          log,
		tg:           tg,
		pool:         pool,
		gen:          gemini.NewClient(pool, log.Named("gemini")),
		ledger:       referral.New(cfg.ReferralThreshold),
		instructions: instruct.New(),
	}

	a.registry = tenant.New(tg, func(owner types.UserID) telegram.Handler {
		return a.handler(owner, false)
	}, log.Named("tenant"))

	a.dispatcher = dispatch.New(
		a.gen, a.pool, a.ledger, a.instructions,
		cfg.WatermarkTag, log.Named("dispatch"))

	a.onboarding = onboard.New(tg, a, cfg.ReferralThreshold, log.Named("onboard"))
	return a
}

// Run starts the master instance and blocks until ctx is cancelled,
// then stops every tenant before returning.
func (a *App) Run(ctx context.Context) error {
	id, err := a.tg.Validate(ctx, a.cfg.TelegramToken)
	if err != nil {
		return fmt.Errorf("app: validate master credential: %w", err)
	}
	a.masterID = id

	master, err := a.tg.Start(a.cfg.TelegramToken, a.handler(id.ID, true))
	if err != nil {
		return fmt.Errorf("app: start master instance: %w", err)
	}
	a.master = master

	a.log.Info("master bot running",
		zap.String("bot", id.Username),
		zap.Int("credential_pool", a.pool.Size()))

	<-ctx.Done()
	a.shutdown()
	return nil
}

// shutdown stops tenants first, then the master, then the pool. Each
// step is best effort.
func (a *App) shutdown() {
	a.log.Info("shutting down all cloned bots")
	a.registry.ShutdownAll(context.Background())
	if a.master != nil {
		if err := a.master.Stop(); err != nil {
			a.log.Error("stopping master instance", zap.Error(err))
		}
	}
	if err := a.pool.Close(); err != nil {
		a.log.Warn("closing generative pool", zap.Error(err))
	}
}

// Provision implements onboard.Provisioner: store instructions, start
// the tenant, and open its referral record.
func (a *App) Provision(ctx context.Context, owner types.UserID, token, instructions string) error {
	a.instructions.Set(owner, instructions)
	if _, err := a.registry.Create(ctx, owner, token); err != nil {
		return err
	}
	a.ledger.Init(owner)
	return nil
}

// Registry exposes the tenant registry for process shutdown paths.
func (a *App) Registry() *tenant.Registry {
	return a.registry
}
