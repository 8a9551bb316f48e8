// internal/store/tiers.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/naalis/influfinder/internal/common/errors"
	"github.com/naalis/influfinder/internal/common/logger"
	"github.com/naalis/influfinder/internal/models"
)

const tierCacheTTL = 10 * time.Minute

// TierStore persists creator tier records in Postgres with a Redis
// read-through cache. Writes are whole-record overwrites; the cache is
// refreshed, never patched. Cache failures degrade to the database.
type TierStore struct {
	db     *sql.DB
	cache  *redis.Client
	logger logger.Logger
}

func NewTierStore(db *sql.DB, cache *redis.Client, log logger.Logger) *TierStore {
	return &TierStore{
		db:     db,
		cache:  cache,
		logger: log.WithFields(map[string]interface{}{"component": "tier-store"}),
	}
}

func tierCacheKey(creatorID string) string {
	return "tier:" + creatorID
}

// Get loads a creator's tier record, consulting the cache first.
func (s *TierStore) Get(ctx context.Context, creatorID string) (*models.TierRecord, error) {
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, tierCacheKey(creatorID)).Bytes()
		if err == nil {
			var rec models.TierRecord
			if err := json.Unmarshal(raw, &rec); err == nil {
				return &rec, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn("tier cache read failed", map[string]interface{}{
				"error":     err,
				"creatorId": creatorID,
			})
		}
	}

	var rec models.TierRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT creator_id, tier_level, tier_progress, karma_score,
			completed_collaborations, updated_at
		FROM creator_tiers WHERE creator_id = $1`, creatorID,
	).Scan(&rec.CreatorID, &rec.Level, &rec.Progress, &rec.KarmaScore,
		&rec.CompletedCollaborations, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("tier record", creatorID)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("tier get", err)
	}

	s.cacheSet(ctx, &rec)
	return &rec, nil
}

// Upsert overwrites the creator's tier record and refreshes the cache.
// The write is idempotent: re-running it with the same inputs converges.
func (s *TierStore) Upsert(ctx context.Context, rec *models.TierRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO creator_tiers (
			creator_id, tier_level, tier_progress, karma_score,
			completed_collaborations, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (creator_id) DO UPDATE SET
			tier_level = EXCLUDED.tier_level,
			tier_progress = EXCLUDED.tier_progress,
			karma_score = EXCLUDED.karma_score,
			completed_collaborations = EXCLUDED.completed_collaborations,
			updated_at = EXCLUDED.updated_at`,
		rec.CreatorID, rec.Level, rec.Progress, rec.KarmaScore,
		rec.CompletedCollaborations, rec.UpdatedAt,
	)
	if err != nil {
		return apperrors.NewInternalError("tier upsert", err)
	}

	s.cacheSet(ctx, rec)
	return nil
}

func (s *TierStore) cacheSet(ctx context.Context, rec *models.TierRecord) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, tierCacheKey(rec.CreatorID), raw, tierCacheTTL).Err(); err != nil {
		s.logger.Warn("tier cache write failed", map[string]interface{}{
			"error":     err,
			"creatorId": rec.CreatorID,
		})
	}
}
