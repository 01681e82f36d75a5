// Package cache is the Postgres-backed metric cache. One row per
// (user_id, cache_key), JSONB payload, TTL expiry. Postgres instead of a
// dedicated cache service keeps the infrastructure to one store and leaves
// cached payloads inspectable with plain SQL.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"devdash/internal/db"
)

type Store struct {
	db         *db.DB
	log        *slog.Logger
	defaultTTL time.Duration
}

func NewStore(log *slog.Logger, dbConn *db.DB, defaultTTL time.Duration) *Store {
	if defaultTTL <= 0 {
		defaultTTL = 24 * time.Hour
	}
	return &Store{
		db:         dbConn,
		log:        log,
		defaultTTL: defaultTTL,
	}
}

// Get returns the cached payload for (userID, key), or ok=false when no row
// exists or the row has expired. An expired row is deleted on the way out
// (lazy eviction); the sweeper handles rows nobody reads.
func (s *Store) Get(ctx context.Context, userID int64, key string) ([]byte, bool, error) {
	var data []byte
	var expiresAt time.Time

	err := s.db.Pool.QueryRow(ctx,
		`SELECT data, expires_at FROM cached_data
		 WHERE user_id = $1 AND cache_key = $2`,
		userID, key,
	).Scan(&data, &expiresAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache_get_failed: %w", err)
	}

	if !expiresAt.After(time.Now()) {
		if _, delErr := s.DeleteOne(ctx, userID, key); delErr != nil {
			s.log.Warn("cache_lazy_evict_failed", "user_id", userID, "cache_key", key, "error", delErr)
		}
		return nil, false, nil
	}

	return data, true, nil
}

// Set upserts the payload for (userID, key) atomically on the
// (user_id, cache_key) uniqueness constraint, so two simultaneous misses
// collapse to a single row (last writer wins). A negative ttl selects the
// configured default; ttl zero writes an already-expired row.
func (s *Store) Set(ctx context.Context, userID int64, key string, payload []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = s.defaultTTL
	}
	expiresAt := time.Now().Add(ttl)

	_, err := s.db.Pool.Exec(ctx,
		`INSERT INTO cached_data (user_id, cache_key, data, expires_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, NOW(), NOW())
		 ON CONFLICT (user_id, cache_key) DO UPDATE SET
			data = EXCLUDED.data,
			expires_at = EXCLUDED.expires_at,
			updated_at = NOW()`,
		userID, key, payload, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("cache_set_failed: %w", err)
	}
	return nil
}

// DeleteOne removes a single record and reports whether one existed.
func (s *Store) DeleteOne(ctx context.Context, userID int64, key string) (bool, error) {
	tag, err := s.db.Pool.Exec(ctx,
		`DELETE FROM cached_data WHERE user_id = $1 AND cache_key = $2`,
		userID, key,
	)
	if err != nil {
		return false, fmt.Errorf("cache_delete_failed: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteAllForUser removes every record for a user. Backs the explicit
// "refresh my data" action; the count is returned for observability.
func (s *Store) DeleteAllForUser(ctx context.Context, userID int64) (int64, error) {
	tag, err := s.db.Pool.Exec(ctx,
		`DELETE FROM cached_data WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return 0, fmt.Errorf("cache_delete_all_failed: %w", err)
	}

	removed := tag.RowsAffected()
	s.log.Info("cache_user_invalidated", "user_id", userID, "removed", removed)
	return removed, nil
}

// SweepExpired removes every expired record across all users. Runs on an
// independent periodic trigger, never on the request path.
func (s *Store) SweepExpired(ctx context.Context) (int64, error) {
	tag, err := s.db.Pool.Exec(ctx,
		`DELETE FROM cached_data WHERE expires_at < NOW()`,
	)
	if err != nil {
		return 0, fmt.Errorf("cache_sweep_failed: %w", err)
	}
	return tag.RowsAffected(), nil
}
