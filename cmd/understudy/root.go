package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"github.com/understudybot/understudy/internal/config"
	"github.com/understudybot/understudy/pkg/log"
)

var (
	debug bool
)

var rootCmd = &cobra.Command{
	Use:   "understudy",
	Short: "understudy is a channel-monitoring chat agent",
	Long: `understudy watches IRC channels, remembers who said what, stores factoids
and deferred messages, and quietly covers for a companion bot whenever it
is away.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", config.IsDebug(), "enable debug logging")
}

func setupLogger(ctx context.Context) (context.Context, func()) {
	isDebug := debug || config.IsDebug()
	return log.NewContextWithLogger(ctx, isDebug)
}
