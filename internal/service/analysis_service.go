package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"app/internal/model"
	"app/internal/pubsub"
	"app/internal/ratelimit"
	"app/internal/repository"
	"app/internal/util"

	"github.com/rs/zerolog"
)

// Limiter purposes used by the pipeline. The analyze and preview-record
// checks share the caller's canonical network identifier.
const (
	limitPurposeAnalyze       = "analyze"
	limitPurposePreviewRecord = "preview_record"
	limitPurposeRefund        = "refund"
)

// AddressResolver turns an address into coordinates. Satisfied by GeocodeResolver.
type AddressResolver interface {
	Resolve(ctx context.Context, address string) (model.Coordinates, error)
}

// MarketAnalyzer produces a market estimate for coordinates. Satisfied by MarketDataChain.
type MarketAnalyzer interface {
	Analyze(ctx context.Context, coords model.Coordinates, bedrooms int, bathrooms float64) (*model.MarketData, error)
}

// AnalysisService runs the metered analysis pipeline for one request:
// throttle, meter (credit or free preview), cache lookup, and on miss the
// geocode plus market data chain with a cache store. Each inbound request
// is an independent invocation; all external calls run sequentially.
type AnalysisService interface {
	Analyze(ctx context.Context, req model.AnalysisRequest) *model.AnalysisResult
}

type analysisService struct {
	limiter   *ratelimit.Limiter
	credits   CreditService
	previews  PreviewService
	cache     PropertyCacheService
	resolver  AddressResolver
	market    MarketAnalyzer
	analytics pubsub.Publisher
	topic     string
	cacheTTLs map[string]time.Duration
	logger    zerolog.Logger
}

// NewAnalysisService wires the pipeline. cacheTTLs maps a market data source
// to its cache lifetime, which may differ per provider contract; analytics
// may be nil to disable usage events.
func NewAnalysisService(
	limiter *ratelimit.Limiter,
	credits CreditService,
	previews PreviewService,
	cache PropertyCacheService,
	resolver AddressResolver,
	market MarketAnalyzer,
	analytics pubsub.Publisher,
	topic string,
	cacheTTLs map[string]time.Duration,
	logger zerolog.Logger,
) AnalysisService {
	return &analysisService{
		limiter:   limiter,
		credits:   credits,
		previews:  previews,
		cache:     cache,
		resolver:  resolver,
		market:    market,
		analytics: analytics,
		topic:     topic,
		cacheTTLs: cacheTTLs,
		logger:    logger.With().Str("service", "AnalysisService").Logger(),
	}
}

// cacheTTLFor returns the lifetime for a provider's result. Unknown sources
// get the shortest configured lifetime so no contract window is exceeded.
func (s *analysisService) cacheTTLFor(source string) time.Duration {
	if ttl, ok := s.cacheTTLs[source]; ok {
		return ttl
	}
	ttl := time.Hour
	for _, t := range s.cacheTTLs {
		if t < ttl {
			ttl = t
		}
	}
	return ttl
}

func (s *analysisService) Analyze(ctx context.Context, req model.AnalysisRequest) *model.AnalysisResult {
	result := s.analyze(ctx, req)
	s.publishEvent(req, result)
	return result
}

func (s *analysisService) analyze(ctx context.Context, req model.AnalysisRequest) *model.AnalysisResult {
	rl := s.limiter.Check(ctx, limitPurposeAnalyze, req.NetworkID, ratelimit.Standard)
	if !rl.Allowed {
		return &model.AnalysisResult{
			Status:         model.StatusRateLimited,
			RetryInSeconds: ceilSeconds(rl.ResetIn),
		}
	}

	// Meter the request before any external spend.
	deducted := false
	var remaining *int
	if req.AccountID != "" {
		account, err := s.credits.Deduct(ctx, req.AccountID, repository.TransactionDetails{
			Reason:           "property analysis",
			SourceIdentifier: req.NetworkID,
			SubjectAddress:   req.Address,
		})
		switch {
		case err == nil:
			deducted = true
			remaining = intPtr(account.Remaining())
		case errors.Is(err, repository.ErrInsufficientCredits):
			return &model.AnalysisResult{Status: model.StatusInsufficientCredits, CreditsRemaining: intPtr(0)}
		case errors.Is(err, repository.ErrAccountNotFound):
			// A session without a ledger account means the sign-in flow
			// never completed; the caller must authenticate again.
			return &model.AnalysisResult{Status: model.StatusUnauthenticated}
		default:
			return &model.AnalysisResult{Status: model.StatusInternalError}
		}
	} else {
		if status := s.recordPreview(ctx, req); status != "" {
			return &model.AnalysisResult{Status: status}
		}
	}

	key := util.NormalizeAddressKey(req.Address)
	if entry, ok := s.cache.Get(ctx, key); ok {
		// Cache hits are free: return the credit this request deducted.
		// Anonymous previews stay recorded; the grant was used either way.
		if deducted {
			remaining = s.refund(ctx, req, "cache hit refund", remaining)
		}
		return &model.AnalysisResult{
			Status:           model.StatusOK,
			Data:             entry.Payload,
			FromCache:        true,
			CreditsRemaining: remaining,
		}
	}

	coords, err := s.resolver.Resolve(ctx, req.Address)
	if err != nil {
		if deducted {
			remaining = s.refund(ctx, req, "analysis failed: address not resolvable", remaining)
		}
		if errors.Is(err, ErrNotGeocodable) {
			return &model.AnalysisResult{Status: model.StatusAddressNotResolvable, CreditsRemaining: remaining}
		}
		s.logger.Error().Err(err).Msg("Geocode resolution failed unexpectedly")
		return &model.AnalysisResult{Status: model.StatusInternalError, CreditsRemaining: remaining}
	}

	data, err := s.market.Analyze(ctx, coords, req.Bedrooms, req.Bathrooms)
	if err != nil {
		// The whole chain failed: leave no side effect beyond the audit
		// trail. The deduction is returned and nothing is cached.
		if deducted {
			remaining = s.refund(ctx, req, "analysis failed: providers unavailable", remaining)
		}
		if errors.Is(err, ErrProviderUnavailable) {
			return &model.AnalysisResult{Status: model.StatusProviderError, CreditsRemaining: remaining}
		}
		s.logger.Error().Err(err).Msg("Market data chain failed unexpectedly")
		return &model.AnalysisResult{Status: model.StatusInternalError, CreditsRemaining: remaining}
	}

	if err := s.cache.Put(ctx, key, data, s.cacheTTLFor(data.Source)); err != nil {
		// The caller still gets their result; the next request just pays
		// for a fresh fetch.
		s.logger.Warn().Err(err).Str("address_key", key).Msg("Failed to cache analysis result")
	}

	return &model.AnalysisResult{
		Status:           model.StatusOK,
		Data:             data,
		CreditsRemaining: remaining,
	}
}

// recordPreview runs the anonymous metering path. Returns "" when the
// preview was granted, or the terminal status blocking it.
func (s *analysisService) recordPreview(ctx context.Context, req model.AnalysisRequest) model.Status {
	usage, err := s.previews.HasUsed(ctx, req.NetworkID)
	if err != nil {
		return model.StatusInternalError
	}
	if usage.Used {
		return model.StatusPreviewAlreadyUsed
	}

	// Tight per-network limit on the recording operation itself; it
	// carries direct cost exposure.
	rl := s.limiter.Check(ctx, limitPurposePreviewRecord, req.NetworkID, ratelimit.PreviewRecord)
	if !rl.Allowed {
		return model.StatusRateLimited
	}

	err = s.previews.Record(ctx, req.NetworkID, req.Address, req.Fingerprint)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, repository.ErrAlreadyUsed):
		return model.StatusPreviewAlreadyUsed
	case errors.Is(err, repository.ErrDailyCapReached):
		return model.StatusDailyCapReached
	default:
		return model.StatusInternalError
	}
}

// refund returns one credit to the requester's account and reports the new
// remaining balance, falling back to the prior value when the refund could
// not be applied.
func (s *analysisService) refund(ctx context.Context, req model.AnalysisRequest, reason string, prior *int) *int {
	rl := s.limiter.Check(ctx, limitPurposeRefund, req.AccountID, ratelimit.Refund)
	if !rl.Allowed {
		s.logger.Warn().Str("account_id", req.AccountID).Msg("Refund suppressed by rate limit")
		return prior
	}
	account, err := s.credits.Refund(ctx, req.AccountID, repository.TransactionDetails{
		Reason:           reason,
		SourceIdentifier: req.NetworkID,
		SubjectAddress:   req.Address,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("account_id", req.AccountID).Msg("Failed to refund credit")
		return prior
	}
	return intPtr(account.Remaining())
}

// publishEvent emits a best-effort usage event. Analytics must never block
// or fail the primary flow, so errors are logged at debug and dropped.
func (s *analysisService) publishEvent(req model.AnalysisRequest, result *model.AnalysisResult) {
	if s.analytics == nil {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"status":        string(result.Status),
		"from_cache":    result.FromCache,
		"authenticated": req.AccountID != "",
		"network_id":    req.NetworkID,
		"at":            time.Now().UTC(),
	})
	if err != nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := s.analytics.Publish(ctx, s.topic, payload); err != nil {
			s.logger.Debug().Err(err).Msg("Failed to publish analysis event")
		}
	}()
}

func ceilSeconds(d time.Duration) int {
	secs := int(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}

func intPtr(v int) *int {
	return &v
}
