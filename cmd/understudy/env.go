package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/understudybot/understudy/internal/config"
	"github.com/understudybot/understudy/pkg/env"
	"github.com/understudybot/understudy/pkg/log"
)

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Print the effective configuration as .env content",
	Long: `Resolves the configuration from the environment and any .env file and
prints it in .env format, suitable for seeding a config file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		var flushLog func()
		ctx, flushLog = setupLogger(ctx)
		defer flushLog()

		if err := initEnv(ctx); err != nil {
			log.FromCtx(ctx).Fatal().Err(err).Msg("failed to init env")
		}

		configs := []any{
			config.NewAppConfig(ctx),
			config.NewIRCConfig(ctx),
		}
		if config.MailEnabled() {
			configs = append(configs, config.NewMailConfig(ctx))
		}

		for _, c := range configs {
			content, err := env.MarshalEnv(c)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), content)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(envCmd)
}
