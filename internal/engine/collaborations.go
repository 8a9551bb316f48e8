// internal/engine/collaborations.go
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

// CollaborationEngine drives the collaboration lifecycle from acceptance to
// completion and fans out the side effects of completing: notifications to
// both parties and a tier recompute for the creator.
type CollaborationEngine struct {
	collabs  CollaborationStore
	tiers    *TierEngine
	notifier notify.Notifier
	logger   logger.Logger
}

func NewCollaborationEngine(collabs CollaborationStore, tiers *TierEngine, notifier notify.Notifier, log logger.Logger) *CollaborationEngine {
	return &CollaborationEngine{
		collabs:  collabs,
		tiers:    tiers,
		notifier: notifier,
		logger:   log.WithFields(map[string]interface{}{"engine": "collaboration"}),
	}
}

// Schedule records the agreed visit date. Re-scheduling is allowed at any
// point before a terminal state; past the scheduled state only the date
// moves, the status stays where it is.
func (e *CollaborationEngine) Schedule(ctx context.Context, collaborationID, actorID string, date time.Time) (*models.Collaboration, error) {
	c, err := e.authorizedParty(ctx, collaborationID, actorID)
	if err != nil {
		return nil, err
	}

	c, err = e.collabs.Schedule(ctx, collaborationID, date, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	metrics.StateTransitions.WithLabelValues("collaboration", string(models.CollaborationScheduled)).Inc()

	e.notifier.Notify(c.OtherParty(actorID), models.EventCollaborationScheduled, map[string]interface{}{
		"collaborationId": c.ID,
		"scheduledDate":   date,
	})
	return c, nil
}

// MarkVisited records that the in-person visit happened.
func (e *CollaborationEngine) MarkVisited(ctx context.Context, collaborationID, actorID string) (*models.Collaboration, error) {
	c, err := e.authorizedParty(ctx, collaborationID, actorID)
	if err != nil {
		return nil, err
	}

	c, err = e.collabs.MarkVisited(ctx, collaborationID, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	metrics.StateTransitions.WithLabelValues("collaboration", string(models.CollaborationVisited)).Inc()

	e.notifier.Notify(c.OtherParty(actorID), models.EventCollaborationVisited, map[string]interface{}{
		"collaborationId": c.ID,
	})
	return c, nil
}

// OnSubmissionCreated persists the submission and advances the
// collaboration to content_submitted in one store transaction: when the
// collaboration turns out to be terminal, the submission never lands.
// Re-submission after a requested revision takes the same path: the
// pointer moves to the latest submission.
func (e *CollaborationEngine) OnSubmissionCreated(ctx context.Context, sub *models.ContentSubmission) (*models.Collaboration, error) {
	c, err := e.collabs.AdvanceOnSubmission(ctx, sub, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	metrics.StateTransitions.WithLabelValues("collaboration", string(models.CollaborationContentSubmitted)).Inc()

	e.notifier.Notify(c.BusinessID, models.EventContentSubmitted, map[string]interface{}{
		"collaborationId": c.ID,
		"submissionId":    sub.ID,
	})
	return c, nil
}

// OnSubmissionScored moves a content_submitted collaboration into
// in_review once AI scoring lands. Scoring a collaboration that has already
// moved on is a no-op.
func (e *CollaborationEngine) OnSubmissionScored(ctx context.Context, collaborationID string) (*models.Collaboration, error) {
	c, err := e.collabs.MarkInReview(ctx, collaborationID, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	metrics.StateTransitions.WithLabelValues("collaboration", string(models.CollaborationInReview)).Inc()
	return c, nil
}

// OnSubmissionApproved completes the collaboration off the back of an
// approved submission. The store guards exactly-once completion, so the
// side effects fire at most once no matter how the approval raced the
// dual-rating path.
func (e *CollaborationEngine) OnSubmissionApproved(ctx context.Context, collaborationID, submissionID string) (*models.Collaboration, error) {
	c, completedNow, err := e.collabs.Complete(ctx, collaborationID, &submissionID, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if completedNow {
		e.afterCompletion(ctx, c)
	}
	return c, nil
}

// Rate records one party's rating. When the second rating lands the store
// flips the collaboration to completed under a row lock, and the completion
// side effects fire here exactly once.
func (e *CollaborationEngine) Rate(ctx context.Context, collaborationID, actorID string, rating int, feedback string) (*models.Collaboration, error) {
	if rating < 1 || rating > 5 {
		return nil, apperrors.NewInvalidArgumentError("rating must be between 1 and 5")
	}

	c, err := e.collabs.Get(ctx, collaborationID)
	if err != nil {
		return nil, err
	}
	role := c.RoleOf(actorID)
	if role == "" {
		return nil, apperrors.NewForbiddenError("not a party to this collaboration")
	}

	c, completedNow, err := e.collabs.SetRating(ctx, collaborationID, role, rating, feedback, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	e.notifier.Notify(c.OtherParty(actorID), models.EventRatingReceived, map[string]interface{}{
		"collaborationId": c.ID,
		"rating":          rating,
	})
	if completedNow {
		e.afterCompletion(ctx, c)
	}
	return c, nil
}

// Cancel terminates the collaboration by mutual fallout. Either party may
// cancel from any non-terminal state.
func (e *CollaborationEngine) Cancel(ctx context.Context, collaborationID, actorID, reason string) (*models.Collaboration, error) {
	return e.terminate(ctx, collaborationID, actorID, models.CollaborationCancelled, reason, models.EventCollaborationCancelled)
}

// Dispute freezes the collaboration for out-of-band resolution. Disputed is
// absorbing; the engine offers no transition out of it.
func (e *CollaborationEngine) Dispute(ctx context.Context, collaborationID, actorID, reason string) (*models.Collaboration, error) {
	if reason == "" {
		return nil, apperrors.NewInvalidArgumentError("dispute reason is required")
	}
	return e.terminate(ctx, collaborationID, actorID, models.CollaborationDisputed, reason, models.EventCollaborationDisputed)
}

func (e *CollaborationEngine) terminate(ctx context.Context, collaborationID, actorID string, status models.CollaborationStatus, reason string, event models.EventType) (*models.Collaboration, error) {
	c, err := e.authorizedParty(ctx, collaborationID, actorID)
	if err != nil {
		return nil, err
	}

	c, err = e.collabs.Terminate(ctx, collaborationID, status, reason, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	metrics.StateTransitions.WithLabelValues("collaboration", string(status)).Inc()

	e.notifier.Notify(c.OtherParty(actorID), event, map[string]interface{}{
		"collaborationId": c.ID,
		"reason":          reason,
	})
	e.logger.Info("collaboration terminated", map[string]interface{}{
		"collaborationId": c.ID,
		"status":          string(status),
		"actorId":         actorID,
	})
	return c, nil
}

// Get returns one collaboration to a party of it.
func (e *CollaborationEngine) Get(ctx context.Context, collaborationID, actorID string) (*models.Collaboration, error) {
	return e.authorizedParty(ctx, collaborationID, actorID)
}

// List returns the collaborations a user participates in under the given
// role, optionally filtered by status.
func (e *CollaborationEngine) List(ctx context.Context, userID string, role models.Role, status models.CollaborationStatus) ([]*models.Collaboration, error) {
	return e.collabs.ListByUser(ctx, userID, role, status)
}

func (e *CollaborationEngine) authorizedParty(ctx context.Context, collaborationID, actorID string) (*models.Collaboration, error) {
	c, err := e.collabs.Get(ctx, collaborationID)
	if err != nil {
		return nil, err
	}
	if c.RoleOf(actorID) == "" {
		return nil, apperrors.NewForbiddenError("not a party to this collaboration")
	}
	return c, nil
}

// afterCompletion runs the one-shot completion side effects. The state
// transition has already committed; failures here are logged, not
// propagated, so a flaky tier write cannot un-complete a collaboration.
func (e *CollaborationEngine) afterCompletion(ctx context.Context, c *models.Collaboration) {
	metrics.StateTransitions.WithLabelValues("collaboration", string(models.CollaborationCompleted)).Inc()

	data := map[string]interface{}{
		"collaborationId": c.ID,
		"agreedFee":       c.AgreedFee,
	}
	e.notifier.Notify(c.CreatorID, models.EventCollaborationCompleted, data)
	e.notifier.Notify(c.BusinessID, models.EventCollaborationCompleted, data)

	if _, err := e.tiers.Recompute(ctx, c.CreatorID); err != nil {
		e.logger.Error("tier recompute failed after completion", map[string]interface{}{
			"error":           err,
			"collaborationId": c.ID,
			"creatorId":       c.CreatorID,
		})
	}
}
