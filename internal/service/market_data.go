package service

import (
	"context"
	"errors"

	"app/internal/model"

	"github.com/rs/zerolog"
)

// ErrProviderUnavailable is returned when every market data provider in the
// chain failed for a request.
var ErrProviderUnavailable = errors.New("provider_unavailable")

// MarketDataProvider produces a normalized short-term-rental estimate for a
// coordinate. Provider-specific authentication and request shaping stay
// inside each adapter.
type MarketDataProvider interface {
	Name() string
	Analyze(ctx context.Context, coords model.Coordinates, bedrooms int, bathrooms float64) (*model.MarketData, error)
}

// MarketDataChain tries capability-equivalent providers in order, first
// success wins. A provider is not retried within one request; failure moves
// to the next adapter.
type MarketDataChain struct {
	providers []MarketDataProvider
	logger    zerolog.Logger
}

// NewMarketDataChain creates a chain over the given provider order.
func NewMarketDataChain(providers []MarketDataProvider, logger zerolog.Logger) *MarketDataChain {
	return &MarketDataChain{
		providers: providers,
		logger:    logger.With().Str("service", "MarketDataChain").Logger(),
	}
}

func (c *MarketDataChain) Analyze(ctx context.Context, coords model.Coordinates, bedrooms int, bathrooms float64) (*model.MarketData, error) {
	for _, provider := range c.providers {
		data, err := provider.Analyze(ctx, coords, bedrooms, bathrooms)
		if err != nil {
			c.logger.Warn().Err(err).Str("provider", provider.Name()).Msg("Market data provider failed, trying next")
			continue
		}
		return data, nil
	}
	return nil, ErrProviderUnavailable
}
