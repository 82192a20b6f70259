package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"app/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrAlreadyUsed is returned when a network identifier already spent its free preview.
var ErrAlreadyUsed = errors.New("preview_already_used")

// ErrDailyCapReached is returned when the site-wide daily preview budget is exhausted.
var ErrDailyCapReached = errors.New("daily_cap_reached")

// PreviewRepository persists one-shot free preview grants per network identifier.
type PreviewRepository interface {
	// CountForNetwork returns how many previews the network has recorded.
	CountForNetwork(ctx context.Context, networkID string) (int, error)
	// CheckAndRecord atomically re-checks the per-network one-shot limit and
	// the global daily cap, then records the grant. Returns ErrAlreadyUsed
	// or ErrDailyCapReached when a limit blocks the grant.
	CheckAndRecord(ctx context.Context, rec *model.FreePreviewRecord, dayStart, dayEnd time.Time, dailyCap int) error
	// CountInTimeRange counts previews recorded within [start, end).
	CountInTimeRange(ctx context.Context, start, end time.Time) (int, error)
}

type previewRepo struct {
	pool *pgxpool.Pool
}

// NewPreviewRepo creates a new PreviewRepository.
func NewPreviewRepo(pool *pgxpool.Pool) PreviewRepository {
	return &previewRepo{pool: pool}
}

func (r *previewRepo) CountForNetwork(ctx context.Context, networkID string) (int, error) {
	var count int
	const q = `SELECT COUNT(*) FROM free_preview_records WHERE network_id = $1`
	if err := r.pool.QueryRow(ctx, q, networkID).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting previews for network %s: %w", networkID, err)
	}
	return count, nil
}

// CheckAndRecord runs serializable so two concurrent first-use attempts from
// the same network cannot both insert. The residual race window is further
// bounded by the tight per-network record rate limit upstream.
func (r *previewRepo) CheckAndRecord(ctx context.Context, rec *model.FreePreviewRecord, dayStart, dayEnd time.Time, dailyCap int) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("starting transaction for preview record: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var networkCount int
	const networkQ = `SELECT COUNT(*) FROM free_preview_records WHERE network_id = $1`
	if err := tx.QueryRow(ctx, networkQ, rec.NetworkID).Scan(&networkCount); err != nil {
		return fmt.Errorf("counting previews for network %s: %w", rec.NetworkID, err)
	}
	// A network with any record is rejected regardless of the daily cap.
	if networkCount >= 1 {
		return ErrAlreadyUsed
	}

	var dayCount int
	const dayQ = `
		SELECT COUNT(*)
		FROM free_preview_records
		WHERE used_at >= $1
		  AND used_at < $2
	`
	if err := tx.QueryRow(ctx, dayQ, dayStart, dayEnd).Scan(&dayCount); err != nil {
		return fmt.Errorf("counting previews for current day: %w", err)
	}
	if dailyCap > 0 && dayCount >= dailyCap {
		return ErrDailyCapReached
	}

	const insertQ = `
		INSERT INTO free_preview_records (network_id, subject_address, fingerprint)
		VALUES ($1, $2, $3)
		RETURNING used_at
	`
	if err := tx.QueryRow(ctx, insertQ, rec.NetworkID, rec.SubjectAddress, rec.Fingerprint).Scan(&rec.UsedAt); err != nil {
		return fmt.Errorf("recording preview for network %s: %w", rec.NetworkID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing preview record for network %s: %w", rec.NetworkID, err)
	}
	return nil
}

func (r *previewRepo) CountInTimeRange(ctx context.Context, start, end time.Time) (int, error) {
	var count int
	const q = `
		SELECT COUNT(*)
		FROM free_preview_records
		WHERE used_at >= $1
		  AND used_at < $2
	`
	if err := r.pool.QueryRow(ctx, q, start, end).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting previews in time range: %w", err)
	}
	return count, nil
}
