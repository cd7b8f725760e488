package main

import (
	"fmt"
	"os"

	"github.com/iantal/miniapp/internal/config"
	"github.com/iantal/miniapp/internal/util"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "miniapp",
	Short: "Telegram Mini App project backend",
	Long: `Backend for a Telegram Mini App that manages small code projects: scaffolds, file editing,
uploads, zip export and GitHub import/publish. "serve" runs the web process, "bot" runs the Telegram bot.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads the configuration and the logger shared by every command
func setup() (*config.Config, *util.StandardLogger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	return cfg, util.NewLogger(cfg.Log.Level, cfg.Log.Format), nil
}
