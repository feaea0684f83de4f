package config

import (
	"context"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/understudybot/understudy/pkg/log"
)

type AppConfig struct {
	RuntimePath string `env:"UNDERSTUDY_RUNTIME_PATH" envDefault:".understudy"`

	// Marker items whose reference counters derive the mood score.
	PositiveMarker string `env:"UNDERSTUDY_POSITIVE_MARKER" envDefault:"botsnack"`
	NegativeMarker string `env:"UNDERSTUDY_NEGATIVE_MARKER" envDefault:"botsmack"`
}

func NewAppConfig(ctx context.Context) *AppConfig {
	c := &AppConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse app config")
	}
	return c
}

func (c AppConfig) GetDatabasePath() string {
	return filepath.Join(c.RuntimePath, "understudy.db")
}
