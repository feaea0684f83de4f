package main

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/understudybot/understudy/pkg/log"
	"github.com/understudybot/understudy/pkg/srv"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the understudy services",
	Long:  `Connects to the database and the IRC server and runs the dispatch engine until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		// logger setup
		var flushLog func()
		ctx, flushLog = setupLogger(ctx)
		defer flushLog()

		logger := log.FromCtx(ctx)
		logger.Info().Msg("starting understudy")

		services := NewServices(ctx)

		srv.StartServices(ctx, services)

		srv.ShutdownServices(ctx, services)
		logger.Info().Msg("understudy has been shut down gracefully")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
}
