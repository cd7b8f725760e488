package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/iantal/miniapp/internal/bot"
	"github.com/iantal/miniapp/internal/domain"
	"github.com/spf13/cobra"
)

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the Telegram bot that opens the Mini App",
	RunE:  runBot,
}

func init() {
	rootCmd.AddCommand(botCmd)
}

func runBot(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	if cfg.Telegram.BotToken == "" {
		logger.Error("BOT_TOKEN is not set")
		return &domain.ErrConfiguration{Setting: "BOT_TOKEN"}
	}
	if cfg.Telegram.MiniAppURL == "" {
		logger.Warn("MINIAPP_URL is not set, /start will reply with an error")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := bot.NewClient(logger, cfg.Telegram.APIURL, cfg.Telegram.BotToken, cfg.Telegram.PollTimeout)
	if err != nil {
		logger.WithField("error", err).Error("Unable to connect to Telegram")
		return err
	}
	return bot.New(logger, client, cfg.Telegram.MiniAppURL).Run(ctx)
}
