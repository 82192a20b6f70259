package service

import (
	"context"
	"time"

	"app/internal/model"
	"app/internal/repository"

	"github.com/rs/zerolog"
)

// PropertyCacheService is a TTL cache of market data results keyed by
// normalized address. Keys arrive pre-normalized by the pipeline; the cache
// trusts its caller and does not re-normalize.
type PropertyCacheService interface {
	// Get returns the cached entry, or (nil, false) on miss or expiry.
	Get(ctx context.Context, addressKey string) (*model.CachedProperty, bool)
	// Put stores the payload with the given TTL, overwriting any entry.
	Put(ctx context.Context, addressKey string, payload *model.MarketData, ttl time.Duration) error
	// StartSweep begins the best-effort periodic removal of expired rows.
	// The sweep is advisory: Get re-validates expiry on every read.
	StartSweep(ctx context.Context, every time.Duration)
}

type propertyCacheService struct {
	repo   repository.PropertyCacheRepository
	now    func() time.Time
	logger zerolog.Logger
}

// NewPropertyCacheService creates a new PropertyCacheService.
func NewPropertyCacheService(repo repository.PropertyCacheRepository, logger zerolog.Logger) PropertyCacheService {
	return &propertyCacheService{
		repo:   repo,
		now:    time.Now,
		logger: logger.With().Str("service", "PropertyCacheService").Logger(),
	}
}

func (s *propertyCacheService) Get(ctx context.Context, addressKey string) (*model.CachedProperty, bool) {
	entry, err := s.repo.Get(ctx, addressKey)
	if err != nil {
		// A broken cache degrades to a miss; the pipeline fetches fresh.
		s.logger.Error().Err(err).Str("address_key", addressKey).Msg("Cache read failed, treating as miss")
		return nil, false
	}
	if entry == nil {
		return nil, false
	}
	// Expired rows behave as absent even when the sweep has not removed
	// them yet.
	if !s.now().Before(entry.ExpiresAt) {
		return nil, false
	}
	return entry, true
}

func (s *propertyCacheService) Put(ctx context.Context, addressKey string, payload *model.MarketData, ttl time.Duration) error {
	now := s.now()
	entry := &model.CachedProperty{
		AddressKey: addressKey,
		Payload:    payload,
		CachedAt:   now,
		ExpiresAt:  now.Add(ttl),
	}
	if err := s.repo.Put(ctx, entry); err != nil {
		s.logger.Error().Err(err).Str("address_key", addressKey).Msg("Failed to store cache entry")
		return err
	}
	return nil
}

func (s *propertyCacheService) StartSweep(ctx context.Context, every time.Duration) {
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				removed, err := s.repo.DeleteExpired(ctx)
				if err != nil {
					s.logger.Warn().Err(err).Msg("Cache sweep failed")
					continue
				}
				if removed > 0 {
					s.logger.Debug().Int64("removed", removed).Msg("Swept expired cache entries")
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}
