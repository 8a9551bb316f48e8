// internal/engine/tier.go
package engine

import (
	"context"
	"time"

	apperrors "github.com/naalis/influfinder/internal/common/errors"
	"github.com/naalis/influfinder/internal/common/logger"
	"github.com/naalis/influfinder/internal/common/metrics"
	"github.com/naalis/influfinder/internal/models"
	"github.com/naalis/influfinder/internal/notify"
)

// TierForCount derives the full tier record from a completed-collaboration
// count. It is a pure function: repeated or out-of-order invocations
// converge to the same result, which is what makes concurrent completion
// triggers benign.
func TierForCount(completed int) models.TierRecord {
	rec := models.TierRecord{CompletedCollaborations: completed}
	switch {
	case completed <= 0:
		rec.Level = 0
		rec.Progress = 0
		rec.KarmaScore = 0
		rec.CompletedCollaborations = 0
	case completed <= 3:
		rec.Level = 1
		rec.Progress = float64(completed) / 3 * 100
		rec.KarmaScore = completed * 100
	case completed <= 10:
		rec.Level = 2
		rec.Progress = float64(completed-3) / 7 * 100
		rec.KarmaScore = 300 + (completed-3)*50
	case completed <= 25:
		rec.Level = 3
		rec.Progress = float64(completed-10) / 15 * 100
		rec.KarmaScore = 650 + (completed-10)*30
	case completed <= 50:
		rec.Level = 4
		rec.Progress = float64(completed-25) / 25 * 100
		rec.KarmaScore = 1100 + (completed-25)*20
	default:
		rec.Level = 5
		rec.Progress = 100
		rec.KarmaScore = 2000 + (completed-50)*10
	}
	return rec
}

// CompletionCounter recounts a creator's completed collaborations.
type CompletionCounter interface {
	CountCompletedByCreator(ctx context.Context, creatorID string) (int, error)
}

// TierEngine recomputes a creator's tier record from scratch on every
// completion event. There is no incremental counter to drift: the count is
// re-derived from the collaborations table and the record overwritten.
type TierEngine struct {
	completions CompletionCounter
	tiers       TierStore
	notifier    notify.Notifier
	logger      logger.Logger
}

func NewTierEngine(completions CompletionCounter, tiers TierStore, notifier notify.Notifier, log logger.Logger) *TierEngine {
	return &TierEngine{
		completions: completions,
		tiers:       tiers,
		notifier:    notifier,
		logger:      log.WithFields(map[string]interface{}{"engine": "tier"}),
	}
}

// Recompute recounts, re-derives, and overwrites the creator's tier
// record. The write happens even when nothing changed; only the
// tier-upgrade notification depends on the old-vs-new level diff.
func (e *TierEngine) Recompute(ctx context.Context, creatorID string) (*models.TierRecord, error) {
	count, err := e.completions.CountCompletedByCreator(ctx, creatorID)
	if err != nil {
		return nil, err
	}

	rec := TierForCount(count)
	rec.CreatorID = creatorID
	rec.UpdatedAt = time.Now().UTC()

	prevLevel := 0
	if old, err := e.tiers.Get(ctx, creatorID); err == nil {
		prevLevel = old.Level
	} else if !apperrors.IsNotFound(err) {
		return nil, err
	}

	if err := e.tiers.Upsert(ctx, &rec); err != nil {
		return nil, err
	}
	metrics.TierRecomputations.Inc()

	if rec.Level > prevLevel {
		metrics.TierUpgrades.Inc()
		e.notifier.Notify(creatorID, models.EventTierUpgraded, map[string]interface{}{
			"tierName":  models.TierName(rec.Level),
			"tierLevel": rec.Level,
		})
		e.logger.Info("tier upgraded", map[string]interface{}{
			"creatorId": creatorID,
			"from":      prevLevel,
			"to":        rec.Level,
			"completed": count,
		})
	}

	return &rec, nil
}

// GetTier returns the stored tier record, or the zero tier for a creator
// who has never completed a collaboration.
func (e *TierEngine) GetTier(ctx context.Context, creatorID string) (*models.TierRecord, error) {
	rec, err := e.tiers.Get(ctx, creatorID)
	if apperrors.IsNotFound(err) {
		zero := TierForCount(0)
		zero.CreatorID = creatorID
		return &zero, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}
