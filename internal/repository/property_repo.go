package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"app/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PropertyCacheRepository stores market data results keyed by normalized
// address. Rows are overwritten on every fresh fetch; freshness is decided
// by the caller against ExpiresAt, never by this layer.
type PropertyCacheRepository interface {
	// Get retrieves the row for a key, expired or not, or nil when absent.
	Get(ctx context.Context, addressKey string) (*model.CachedProperty, error)
	// Put upserts the row, last write wins.
	Put(ctx context.Context, entry *model.CachedProperty) error
	// DeleteExpired physically removes rows past their expiry and reports
	// how many were removed. Advisory only: reads re-validate expiry.
	DeleteExpired(ctx context.Context) (int64, error)
}

type propertyCacheRepo struct {
	pool *pgxpool.Pool
}

// NewPropertyCacheRepo creates a new PropertyCacheRepository.
func NewPropertyCacheRepo(pool *pgxpool.Pool) PropertyCacheRepository {
	return &propertyCacheRepo{pool: pool}
}

func (r *propertyCacheRepo) Get(ctx context.Context, addressKey string) (*model.CachedProperty, error) {
	const q = `
		SELECT address_key, payload, cached_at, expires_at
		FROM cached_properties
		WHERE address_key = $1
	`
	var entry model.CachedProperty
	var rawPayload []byte
	err := r.pool.QueryRow(ctx, q, addressKey).Scan(
		&entry.AddressKey,
		&rawPayload,
		&entry.CachedAt,
		&entry.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting cached property %s: %w", addressKey, err)
	}
	if err := json.Unmarshal(rawPayload, &entry.Payload); err != nil {
		return nil, fmt.Errorf("unmarshaling payload for %s: %w", addressKey, err)
	}
	return &entry, nil
}

func (r *propertyCacheRepo) Put(ctx context.Context, entry *model.CachedProperty) error {
	rawPayload, err := json.Marshal(entry.Payload)
	if err != nil {
		return fmt.Errorf("marshaling payload for %s: %w", entry.AddressKey, err)
	}
	const q = `
		INSERT INTO cached_properties (address_key, payload, cached_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (address_key) DO UPDATE
		SET payload = EXCLUDED.payload,
		    cached_at = EXCLUDED.cached_at,
		    expires_at = EXCLUDED.expires_at
	`
	if _, err := r.pool.Exec(ctx, q, entry.AddressKey, rawPayload, entry.CachedAt, entry.ExpiresAt); err != nil {
		return fmt.Errorf("storing cached property %s: %w", entry.AddressKey, err)
	}
	return nil
}

func (r *propertyCacheRepo) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM cached_properties WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("deleting expired cached properties: %w", err)
	}
	return tag.RowsAffected(), nil
}
