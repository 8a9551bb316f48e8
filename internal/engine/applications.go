// internal/engine/applications.go
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/naalis/influfinder/internal/common/errors"
	"github.com/naalis/influfinder/internal/common/logger"
	"github.com/naalis/influfinder/internal/common/metrics"
	"github.com/naalis/influfinder/internal/common/validation"
	"github.com/naalis/influfinder/internal/models"
	"github.com/naalis/influfinder/internal/notify"
)

// ApplicationEngine owns the application review flow: submit, review,
// withdraw. Accepting an application atomically spawns the collaboration.
type ApplicationEngine struct {
	apps     ApplicationStore
	offers   OfferStore
	notifier notify.Notifier
	logger   logger.Logger
}

func NewApplicationEngine(apps ApplicationStore, offers OfferStore, notifier notify.Notifier, log logger.Logger) *ApplicationEngine {
	return &ApplicationEngine{
		apps:     apps,
		offers:   offers,
		notifier: notifier,
		logger:   log.WithFields(map[string]interface{}{"engine": "application"}),
	}
}

// SubmitApplicationInput carries a creator's bid for an offer.
type SubmitApplicationInput struct {
	OfferID      string
	CreatorID    string
	Message      string
	ProposedFee  *float64
	ProposedDate *time.Time
}

// Submit files a new application in the applied state. A creator may hold
// at most one non-withdrawn application per offer; the duplicate loser of a
// concurrent double-submit surfaces as a conflict.
func (e *ApplicationEngine) Submit(ctx context.Context, in SubmitApplicationInput) (*models.Application, error) {
	if in.ProposedFee != nil && *in.ProposedFee <= 0 {
		return nil, apperrors.NewInvalidArgumentError("proposed fee must be positive")
	}

	offer, err := e.offers.Get(ctx, in.OfferID)
	if err != nil {
		return nil, err
	}

	app := &models.Application{
		ID:           uuid.New().String(),
		OfferID:      in.OfferID,
		CreatorID:    in.CreatorID,
		Status:       models.ApplicationApplied,
		Message:      in.Message,
		ProposedFee:  in.ProposedFee,
		ProposedDate: in.ProposedDate,
		AppliedAt:    time.Now().UTC(),
	}
	if err := e.apps.Create(ctx, app); err != nil {
		return nil, err
	}
	metrics.StateTransitions.WithLabelValues("application", string(models.ApplicationApplied)).Inc()

	e.notifier.Notify(offer.BusinessID, models.EventApplicationReceived, map[string]interface{}{
		"applicationId": app.ID,
		"offerId":       offer.ID,
		"offerTitle":    offer.Title,
		"creatorId":     app.CreatorID,
	})
	e.logger.Info("application submitted", map[string]interface{}{
		"applicationId": app.ID,
		"offerId":       in.OfferID,
		"creatorId":     in.CreatorID,
	})
	return app, nil
}

// StartReview moves an applied application to under_review on behalf of the
// offer's business. Calling it on an application already under review is a
// no-op.
func (e *ApplicationEngine) StartReview(ctx context.Context, applicationID, reviewerID string) (*models.Application, error) {
	app, err := e.apps.Get(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	offer, err := e.offers.Get(ctx, app.OfferID)
	if err != nil {
		return nil, err
	}
	if reviewerID != offer.BusinessID {
		return nil, apperrors.NewForbiddenError("only the offer owner may review applications")
	}
	return e.apps.MarkUnderReview(ctx, applicationID, time.Now().UTC())
}

// Review decides an application. decision must be accepted or rejected.
// Acceptance spawns the collaboration in the same database transaction that
// flips the application, so concurrent accepts cannot produce two
// collaborations for one application.
func (e *ApplicationEngine) Review(ctx context.Context, applicationID, reviewerID string, decision models.ApplicationStatus, rejectionReason string) (*models.Application, error) {
	if decision != models.ApplicationAccepted && decision != models.ApplicationRejected {
		return nil, apperrors.NewInvalidArgumentError("decision must be accepted or rejected")
	}

	app, err := e.apps.Get(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	offer, err := e.offers.Get(ctx, app.OfferID)
	if err != nil {
		return nil, err
	}
	if reviewerID != offer.BusinessID {
		return nil, apperrors.NewForbiddenError("only the offer owner may review applications")
	}

	now := time.Now().UTC()

	if decision == models.ApplicationRejected {
		app, err = e.apps.Reject(ctx, applicationID, rejectionReason, now)
		if err != nil {
			return nil, err
		}
		metrics.StateTransitions.WithLabelValues("application", string(models.ApplicationRejected)).Inc()
		e.notifier.Notify(app.CreatorID, models.EventApplicationRejected, map[string]interface{}{
			"applicationId": app.ID,
			"offerTitle":    offer.Title,
			"reason":        rejectionReason,
		})
		return app, nil
	}

	fee := offer.BudgetMin
	if app.ProposedFee != nil {
		fee = *app.ProposedFee
	}
	if fee <= 0 {
		return nil, apperrors.NewInvalidArgumentError("agreed fee must be positive")
	}

	var deliverables map[string]interface{}
	if offer.Requirements != nil {
		if d, ok := offer.Requirements["deliverables"].(map[string]interface{}); ok {
			deliverables = d
		}
	}
	if err := validation.ValidateDeliverables(deliverables); err != nil {
		return nil, err
	}

	collab := &models.Collaboration{
		ID:                 uuid.New().String(),
		OfferID:            offer.ID,
		ApplicationID:      app.ID,
		CreatorID:          app.CreatorID,
		BusinessID:         offer.BusinessID,
		Status:             models.CollaborationAccepted,
		AgreedFee:          fee,
		AgreedDeliverables: deliverables,
		ScheduledDate:      app.ProposedDate,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	app, err = e.apps.AcceptAndSpawn(ctx, applicationID, now, collab)
	if err != nil {
		return nil, err
	}
	metrics.StateTransitions.WithLabelValues("application", string(models.ApplicationAccepted)).Inc()
	metrics.StateTransitions.WithLabelValues("collaboration", string(models.CollaborationAccepted)).Inc()

	e.notifier.Notify(app.CreatorID, models.EventApplicationAccepted, map[string]interface{}{
		"applicationId":   app.ID,
		"collaborationId": collab.ID,
		"offerTitle":      offer.Title,
		"agreedFee":       fee,
	})
	e.logger.Info("application accepted", map[string]interface{}{
		"applicationId":   app.ID,
		"collaborationId": collab.ID,
	})
	return app, nil
}

// Withdraw lets the applying creator retract a pending application, freeing
// the (offer, creator) slot for a later re-apply.
func (e *ApplicationEngine) Withdraw(ctx context.Context, applicationID, creatorID string) (*models.Application, error) {
	app, err := e.apps.Get(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app.CreatorID != creatorID {
		return nil, apperrors.NewForbiddenError("only the applicant may withdraw an application")
	}

	app, err = e.apps.Withdraw(ctx, applicationID, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	metrics.StateTransitions.WithLabelValues("application", string(models.ApplicationWithdrawn)).Inc()

	if offer, oerr := e.offers.Get(ctx, app.OfferID); oerr == nil {
		e.notifier.Notify(offer.BusinessID, models.EventApplicationWithdrawn, map[string]interface{}{
			"applicationId": app.ID,
			"offerTitle":    offer.Title,
			"creatorId":     app.CreatorID,
		})
	}
	return app, nil
}

// GetApplication returns one application to a party of it: the applicant or
// the offer owner.
func (e *ApplicationEngine) GetApplication(ctx context.Context, applicationID, actorID string) (*models.Application, error) {
	app, err := e.apps.Get(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if actorID != app.CreatorID {
		offer, err := e.offers.Get(ctx, app.OfferID)
		if err != nil {
			return nil, err
		}
		if actorID != offer.BusinessID {
			return nil, apperrors.NewForbiddenError("not a party to this application")
		}
	}
	return app, nil
}

// ListApplications returns a creator's own applications, optionally
// filtered by status.
func (e *ApplicationEngine) ListApplications(ctx context.Context, creatorID string, status models.ApplicationStatus) ([]*models.Application, error) {
	return e.apps.ListByCreator(ctx, creatorID, status)
}
