package config

import (
	"context"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/understudybot/understudy/pkg/log"
)

type MailConfig struct {
	Host     string `env:"UNDERSTUDY_SMTP_HOST,required,notEmpty"`
	Port     int    `env:"UNDERSTUDY_SMTP_PORT" envDefault:"587"`
	User     string `env:"UNDERSTUDY_SMTP_USER,required,notEmpty"`
	Password string `env:"UNDERSTUDY_SMTP_PASSWORD,required,notEmpty"`
	From     string `env:"UNDERSTUDY_SMTP_FROM,required,notEmpty"`
	To       string `env:"UNDERSTUDY_SMTP_TO,required,notEmpty"`
}

// MailEnabled reports whether an SMTP endpoint is configured at all; without
// one, notifications are silently discarded.
func MailEnabled() bool {
	return os.Getenv("UNDERSTUDY_SMTP_HOST") != ""
}

func NewMailConfig(ctx context.Context) *MailConfig {
	c := &MailConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse mail config")
	}
	return c
}
