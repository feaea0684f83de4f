package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/understudybot/understudy/pkg/log"
)

type IRCConfig struct {
	Server   string   `env:"UNDERSTUDY_IRC_SERVER" envDefault:"chat.freenode.net:6667"`
	UseTLS   bool     `env:"UNDERSTUDY_IRC_TLS" envDefault:"false"`
	Nick     string   `env:"UNDERSTUDY_NICK,required,notEmpty"`
	Channels []string `env:"UNDERSTUDY_CHANNELS,required,notEmpty" envSeparator:","`

	// CompanionNick enables shadow mode; empty means standalone.
	CompanionNick string `env:"UNDERSTUDY_COMPANION_NICK"`

	NickservPassword string `env:"UNDERSTUDY_NICKSERV_PASSWORD"`
}

func NewIRCConfig(ctx context.Context) *IRCConfig {
	c := &IRCConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse IRC config")
	}
	return c
}
