package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"rotation/api"
	"rotation/internal/config"
	"rotation/internal/logger"
	"rotation/internal/pricing"
	"rotation/internal/provider"
	"rotation/internal/repository"
	"rotation/internal/universe"
	spindex_client "rotation/pkg/spindex"
)

// InitializeDependencies wires the price cache, remote sources, and
// services into an ApiHandler, which doubles as the dependency
// bundle for the CLI subcommands.
func InitializeDependencies(cfg *config.Config) (*api.ApiHandler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Data.SQLitePath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	priceRepo, err := repository.NewPriceRepository(cfg.Data.SQLitePath)
	if err != nil {
		return nil, err
	}

	fetcher := provider.NewFetcher(cfg.Data.RateLimitPerMin, buildSources(cfg)...)

	return &api.ApiHandler{
		BaseConfig:      cfg,
		PriceRepository: priceRepo,
		PricingService:  pricing.NewService(priceRepo, fetcher),
		UniverseService: universe.NewService(cfg.Data.Dir, spindex_client.NewClient()),
	}, nil
}

// buildSources orders the remote sources: the configured one first,
// the other as fallback. Alpaca joins only when credentials exist.
func buildSources(cfg *config.Config) []provider.Source {
	yahoo := provider.NewYahooSource()
	hasAlpacaCreds := cfg.Data.Alpaca.APIKey != "" && cfg.Data.Alpaca.APISecret != ""

	if cfg.Data.Source == config.SourceAlpaca {
		if hasAlpacaCreds {
			return []provider.Source{provider.NewAlpacaSource(cfg.Data.Alpaca), yahoo}
		}
		logger.New().Warnw("alpaca source configured without credentials, using yahoo only")
		return []provider.Source{yahoo}
	}

	if hasAlpacaCreds {
		return []provider.Source{yahoo, provider.NewAlpacaSource(cfg.Data.Alpaca)}
	}
	return []provider.Source{yahoo}
}

func CloseDependencies(handler *api.ApiHandler) {
	if handler == nil || handler.PriceRepository == nil {
		return
	}
	if err := handler.PriceRepository.Close(); err != nil {
		logger.New().Errorw("failed to close price cache", "error", err)
	}
}
