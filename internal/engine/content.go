// internal/engine/content.go
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/naalis/influfinder/internal/common/errors"
	"github.com/naalis/influfinder/internal/common/logger"
	"github.com/naalis/influfinder/internal/common/metrics"
	"github.com/naalis/influfinder/internal/common/validation"
	"github.com/naalis/influfinder/internal/models"
	"github.com/naalis/influfinder/internal/notify"
	"github.com/naalis/influfinder/internal/scoring"
)

// ContentEngine owns content submissions: intake, AI scoring, and the
// business review decision. Submission transitions feed back into the
// collaboration lifecycle through the lifecycle engine's hooks.
type ContentEngine struct {
	subs      SubmissionStore
	collabs   CollaborationStore
	offers    OfferStore
	oracle    scoring.Oracle
	lifecycle *CollaborationEngine
	notifier  notify.Notifier
	logger    logger.Logger
}

func NewContentEngine(subs SubmissionStore, collabs CollaborationStore, offers OfferStore, oracle scoring.Oracle, lifecycle *CollaborationEngine, notifier notify.Notifier, log logger.Logger) *ContentEngine {
	return &ContentEngine{
		subs:      subs,
		collabs:   collabs,
		offers:    offers,
		oracle:    oracle,
		lifecycle: lifecycle,
		notifier:  notifier,
		logger:    log.WithFields(map[string]interface{}{"engine": "content"}),
	}
}

// SubmitContentInput carries a creator's content delivery.
type SubmitContentInput struct {
	CollaborationID string
	CreatorID       string
	ContentURLs     []string
	Captions        map[string]interface{}
	Platform        string
	PlatformPostID  string
}

// Submit files a content submission against an active collaboration. A
// collaboration whose last submission got revision_requested accepts a
// fresh submission through the same path.
func (e *ContentEngine) Submit(ctx context.Context, in SubmitContentInput) (*models.ContentSubmission, error) {
	if len(in.ContentURLs) == 0 {
		return nil, apperrors.NewInvalidArgumentError("at least one content URL is required")
	}
	if in.Platform == "" {
		return nil, apperrors.NewInvalidArgumentError("platform is required")
	}
	if err := validation.ValidateCaptions(in.Captions); err != nil {
		return nil, err
	}

	c, err := e.collabs.Get(ctx, in.CollaborationID)
	if err != nil {
		return nil, err
	}
	if c.CreatorID != in.CreatorID {
		return nil, apperrors.NewForbiddenError("only the collaboration's creator may submit content")
	}
	if c.Status.Terminal() {
		return nil, apperrors.NewInvalidStateError(fmt.Sprintf("cannot submit content to a %s collaboration", c.Status))
	}

	sub := &models.ContentSubmission{
		ID:              uuid.New().String(),
		CollaborationID: c.ID,
		CreatorID:       in.CreatorID,
		Status:          models.SubmissionSubmitted,
		ContentURLs:     in.ContentURLs,
		Captions:        in.Captions,
		Platform:        in.Platform,
		PlatformPostID:  in.PlatformPostID,
		SubmittedAt:     time.Now().UTC(),
	}
	if _, err := e.lifecycle.OnSubmissionCreated(ctx, sub); err != nil {
		return nil, err
	}
	metrics.StateTransitions.WithLabelValues("submission", string(models.SubmissionSubmitted)).Inc()

	e.logger.Info("content submitted", map[string]interface{}{
		"submissionId":    sub.ID,
		"collaborationId": c.ID,
		"platform":        in.Platform,
	})
	return sub, nil
}

// Score runs AI analysis on a submission and records the result. Oracle
// failure or timeout degrades to a zero score instead of surfacing: the
// business review proceeds either way, and the analysis payload says why
// the score is zero.
func (e *ContentEngine) Score(ctx context.Context, submissionID string) (*scoring.Result, error) {
	sub, err := e.subs.Get(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if sub.Status.Terminal() {
		return nil, apperrors.NewInvalidStateError(fmt.Sprintf("cannot score a %s submission", sub.Status))
	}

	c, err := e.collabs.Get(ctx, sub.CollaborationID)
	if err != nil {
		return nil, err
	}
	offer, err := e.offers.Get(ctx, c.OfferID)
	if err != nil {
		return nil, err
	}

	result, err := e.oracle.Analyze(ctx, sub.ContentURLs[0], offer.ContentSpecs(), sub.Platform)
	if err != nil {
		e.logger.Warn("content scoring degraded", map[string]interface{}{
			"error":        err,
			"submissionId": sub.ID,
		})
		result = scoring.Degraded(err)
	}

	if _, err := e.subs.SetScore(ctx, sub.ID, result.Score, result.Analysis, time.Now().UTC()); err != nil {
		return nil, err
	}
	if _, err := e.lifecycle.OnSubmissionScored(ctx, c.ID); err != nil {
		return nil, err
	}
	return result, nil
}

// ScoreSweep scores every submission still awaiting AI analysis, up to
// limit per pass. It is the polling counterpart to Score for deployments
// where nothing calls Score synchronously. Individual failures are logged
// and skipped so one poisoned submission cannot stall the sweep.
func (e *ContentEngine) ScoreSweep(ctx context.Context, limit int) (int, error) {
	pending, err := e.subs.ListUnscored(ctx, limit)
	if err != nil {
		return 0, err
	}

	scored := 0
	for _, sub := range pending {
		if ctx.Err() != nil {
			return scored, ctx.Err()
		}
		if _, err := e.Score(ctx, sub.ID); err != nil {
			e.logger.Warn("sweep scoring failed", map[string]interface{}{
				"error":        err,
				"submissionId": sub.ID,
			})
			continue
		}
		scored++
	}
	return scored, nil
}

// Decide records the business's review verdict on a submission. Approval
// cascades into collaboration completion; rejection and revision requests
// leave the collaboration where it is so the creator can resubmit.
func (e *ContentEngine) Decide(ctx context.Context, submissionID, reviewerID string, decision models.SubmissionStatus, notes string) (*models.ContentSubmission, error) {
	switch decision {
	case models.SubmissionApproved, models.SubmissionRejected, models.SubmissionRevisionRequested:
	default:
		return nil, apperrors.NewInvalidArgumentError("decision must be approved, rejected, or revision_requested")
	}

	sub, err := e.subs.Get(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	c, err := e.collabs.Get(ctx, sub.CollaborationID)
	if err != nil {
		return nil, err
	}
	if reviewerID != c.BusinessID {
		return nil, apperrors.NewForbiddenError("only the collaboration's business may review content")
	}

	sub, err = e.subs.Decide(ctx, submissionID, decision, reviewerID, notes, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	metrics.StateTransitions.WithLabelValues("submission", string(decision)).Inc()

	data := map[string]interface{}{
		"submissionId":    sub.ID,
		"collaborationId": c.ID,
		"notes":           notes,
	}
	switch decision {
	case models.SubmissionApproved:
		if _, err := e.lifecycle.OnSubmissionApproved(ctx, c.ID, sub.ID); err != nil {
			return nil, err
		}
		e.notifier.Notify(sub.CreatorID, models.EventContentApproved, data)
	case models.SubmissionRejected:
		e.notifier.Notify(sub.CreatorID, models.EventContentRejected, data)
	case models.SubmissionRevisionRequested:
		e.notifier.Notify(sub.CreatorID, models.EventContentRevisionRequested, data)
	}

	e.logger.Info("submission decided", map[string]interface{}{
		"submissionId": sub.ID,
		"decision":     string(decision),
	})
	return sub, nil
}

// GetSubmission returns one submission to a party of its collaboration.
func (e *ContentEngine) GetSubmission(ctx context.Context, submissionID, actorID string) (*models.ContentSubmission, error) {
	sub, err := e.subs.Get(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	c, err := e.collabs.Get(ctx, sub.CollaborationID)
	if err != nil {
		return nil, err
	}
	if c.RoleOf(actorID) == "" {
		return nil, apperrors.NewForbiddenError("not a party to this collaboration")
	}
	return sub, nil
}

// ListSubmissions returns a collaboration's submissions, newest first, to a
// party of it.
func (e *ContentEngine) ListSubmissions(ctx context.Context, collaborationID, actorID string) ([]*models.ContentSubmission, error) {
	c, err := e.collabs.Get(ctx, collaborationID)
	if err != nil {
		return nil, err
	}
	if c.RoleOf(actorID) == "" {
		return nil, apperrors.NewForbiddenError("not a party to this collaboration")
	}
	return e.subs.ListByCollaboration(ctx, collaborationID)
}
