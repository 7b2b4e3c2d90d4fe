package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"botfoundry/internal/app"
	"botfoundry/internal/config"
	"botfoundry/internal/gemini"
	"botfoundry/internal/telegram"
)

var (
	verbose    bool
	configPath string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "botfoundry",
	Short: "botfoundry - self-cloning Telegram AI bot",
	Long: `botfoundry runs a master Telegram bot that can clone itself: users hand
over a bot token plus custom instructions and get their own AI chat bot.
All instances answer through Google Gemini using a shared, rotating pool
of API keys. Tenant replies carry a watermark until the owner collects
enough verified referrals.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		defer func() { _ = logger.Sync() }()
		return run(cmd.Context())
	},
}

func run(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		if errors.Is(err, config.ErrNoGeminiKeys) {
			return fmt.Errorf("no Gemini API keys configured (set GEMINI_API_KEYS or GEMINI_API_KEY_1..): %w", err)
		}
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := gemini.New(ctx, cfg.GeminiAPIKeys, cfg.GeminiModel, logger.Named("gemini"))
	if err != nil {
		return fmt.Errorf("configure generative pool: %w", err)
	}

	tg := telegram.NewPollClient(cfg.PollTimeoutSeconds, logger.Named("telegram"))
	a := app.New(cfg, tg, pool, logger.Named("app"))

	logger.Info("starting botfoundry",
		zap.Int("gemini_keys", pool.Size()),
		zap.String("model", cfg.GeminiModel))
	return a.Run(ctx)
}

func main() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "optional YAML config file (env overrides it)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
