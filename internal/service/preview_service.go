package service

import (
	"context"
	"errors"
	"time"

	"app/internal/model"
	"app/internal/repository"

	"github.com/rs/zerolog"
)

// PreviewUsage reports whether a network identifier spent its free preview.
type PreviewUsage struct {
	Used  bool `json:"used"`
	Count int  `json:"count"`
}

// PreviewService guards the anonymous free-preview path: one preview per
// network identifier, under a site-wide daily cap. Anonymous traffic is the
// most exploitable surface, so both limits are enforced on every record.
type PreviewService interface {
	HasUsed(ctx context.Context, networkID string) (PreviewUsage, error)
	// Record grants the preview or fails with repository.ErrAlreadyUsed /
	// repository.ErrDailyCapReached. Guard outcomes gate a purchase
	// decision and are surfaced verbatim, never swallowed.
	Record(ctx context.Context, networkID, subjectAddress, fingerprint string) error
	// DailyCount returns today's UTC preview total.
	DailyCount(ctx context.Context) (int, error)
}

type previewService struct {
	repo       repository.PreviewRepository
	creditRepo repository.CreditRepository
	dailyCap   int
	now        func() time.Time
	logger     zerolog.Logger
}

// NewPreviewService creates a new PreviewService with the given daily cap.
func NewPreviewService(repo repository.PreviewRepository, creditRepo repository.CreditRepository, dailyCap int, logger zerolog.Logger) PreviewService {
	return &previewService{
		repo:       repo,
		creditRepo: creditRepo,
		dailyCap:   dailyCap,
		now:        time.Now,
		logger:     logger.With().Str("service", "PreviewService").Logger(),
	}
}

func (s *previewService) HasUsed(ctx context.Context, networkID string) (PreviewUsage, error) {
	count, err := s.repo.CountForNetwork(ctx, networkID)
	if err != nil {
		s.logger.Error().Err(err).Str("network_id", networkID).Msg("Failed to count previews")
		return PreviewUsage{}, err
	}
	return PreviewUsage{Used: count >= 1, Count: count}, nil
}

func (s *previewService) Record(ctx context.Context, networkID, subjectAddress, fingerprint string) error {
	dayStart, dayEnd := utcDayBounds(s.now())
	rec := &model.FreePreviewRecord{
		NetworkID:      networkID,
		SubjectAddress: subjectAddress,
		Fingerprint:    fingerprint,
	}
	// The daily cap is evaluated fresh inside the same transaction as the
	// insert; this path is already rate limited upstream, so correctness
	// wins over latency here.
	if err := s.repo.CheckAndRecord(ctx, rec, dayStart, dayEnd, s.dailyCap); err != nil {
		if errors.Is(err, repository.ErrAlreadyUsed) || errors.Is(err, repository.ErrDailyCapReached) {
			return err
		}
		s.logger.Error().Err(err).Str("network_id", networkID).Msg("Failed to record preview")
		return err
	}

	// Audit trail entry for the grant. Telemetry only: a failed write here
	// must not revoke a preview that was already committed.
	if err := s.creditRepo.InsertPreviewTransaction(ctx, repository.TransactionDetails{
		Reason:           "free preview granted",
		SourceIdentifier: networkID,
		SubjectAddress:   subjectAddress,
	}); err != nil {
		s.logger.Warn().Err(err).Str("network_id", networkID).Msg("Failed to write preview audit record")
	}
	return nil
}

func (s *previewService) DailyCount(ctx context.Context) (int, error) {
	dayStart, dayEnd := utcDayBounds(s.now())
	count, err := s.repo.CountInTimeRange(ctx, dayStart, dayEnd)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to count previews for current day")
		return 0, err
	}
	return count, nil
}

func utcDayBounds(now time.Time) (time.Time, time.Time) {
	utc := now.UTC()
	start := time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}
