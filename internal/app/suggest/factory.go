package suggest

import (
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/rmiyoshi/setlist/internal/infra/config"
	"github.com/rmiyoshi/setlist/internal/infra/openai"
)

// NewFromConfig creates the configured suggestion provider.
// A missing credential is reported as ErrNotConfigured so callers can
// surface it immediately instead of retrying.
func NewFromConfig(cfg *config.Config) (Suggester, error) {
	switch cfg.Suggester.Provider {
	case "", "openai":
		settings, err := DecodeOpenAISettings(cfg.Suggester.Settings)
		if err != nil {
			return nil, err
		}
		client, err := openai.New(openai.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})
		if err != nil {
			return nil, errors.WithSecondaryError(ErrNotConfigured, err)
		}
		zlog.Debug().Msgf("created suggestion provider: type=openai model=%s", settings.Model)
		return NewOpenAIProvider(client), nil

	default:
		return nil, errors.Newf("unsupported suggester provider: %s", cfg.Suggester.Provider)
	}
}
