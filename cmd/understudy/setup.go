package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/understudybot/understudy/internal/config"
	"github.com/understudybot/understudy/internal/core"
	"github.com/understudybot/understudy/internal/service/dispatch"
	"github.com/understudybot/understudy/internal/service/notify"
	"github.com/understudybot/understudy/internal/service/presence"
	"github.com/understudybot/understudy/internal/service/titles"
	"github.com/understudybot/understudy/internal/storage/sqlite"
	irctransport "github.com/understudybot/understudy/internal/transport/irc"
	"github.com/understudybot/understudy/pkg/log"
	"github.com/understudybot/understudy/pkg/srv"
)

func NewServices(ctx context.Context) []srv.Service {
	logger := log.FromCtx(ctx)
	services := make([]srv.Service, 0)

	if err := initEnv(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to init env")
	}

	// 1. Configuration
	appCfg := config.NewAppConfig(ctx)
	ircCfg := config.NewIRCConfig(ctx)

	session := core.SessionConfig{
		Nick:           ircCfg.Nick,
		CompanionNick:  ircCfg.CompanionNick,
		Channels:       ircCfg.Channels,
		PositiveMarker: appCfg.PositiveMarker,
		NegativeMarker: appCfg.NegativeMarker,
	}

	// 2. Storage. A connection failure here, after the open retries, is fatal.
	store, err := sqlite.Open(ctx, appCfg.GetDatabasePath())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open knowledge store")
	}
	services = append(services, srv.NewCleanup(store.Close))

	// 3. Notifications
	notifier := notify.New(newSender(ctx), 32)
	services = append(services, notifier)
	notifyFn := notifier.Notify(ctx)

	// 4. Presence tracking + dispatch engine
	tracker := presence.NewTracker(session, notifyFn)

	var client *irctransport.Client
	engine := dispatch.New(session, store, tracker, titles.NewFetcher(), func(a core.Action) {
		client.Apply(a)
	})
	services = append(services, engine)

	// 5. Transport
	client = irctransport.NewClient(ctx, ircCfg, engine, notifyFn)
	services = append(services, client)

	return services
}

func newSender(ctx context.Context) notify.Sender {
	if !config.MailEnabled() {
		log.FromCtx(ctx).Info().Msg("no SMTP endpoint configured, notifications disabled")
		return notify.NopSender{}
	}
	return notify.NewMailer(config.NewMailConfig(ctx))
}

func initEnv(ctx context.Context) error {
	logger := log.FromCtx(ctx)
	envFile := filepath.Join(".", ".env")

	if _, err := os.Stat(envFile); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := godotenv.Load(envFile); err != nil {
		logger.Warn().Err(err).Str("path", envFile).Msg("failed to load .env file")
		return err
	}

	logger.Debug().Str("path", envFile).Msg("loaded .env file")
	return nil
}
