// Package engine implements the collaboration lifecycle core: the
// application review engine, the collaboration lifecycle engine, the
// content review engine, and the tier progression engine. The engines own
// every state transition; storage, notification delivery, and AI scoring
// are injected collaborators.
package engine

import (
	"context"
	"time"

	"github.com/naalis/influfinder/internal/models"
)

// ApplicationStore is the durable store contract for applications.
type ApplicationStore interface {
	Get(ctx context.Context, id string) (*models.Application, error)
	Create(ctx context.Context, app *models.Application) error
	MarkUnderReview(ctx context.Context, id string, at time.Time) (*models.Application, error)
	Reject(ctx context.Context, id, reason string, at time.Time) (*models.Application, error)
	Withdraw(ctx context.Context, id string, at time.Time) (*models.Application, error)
	AcceptAndSpawn(ctx context.Context, id string, at time.Time, collab *models.Collaboration) (*models.Application, error)
	ListByCreator(ctx context.Context, creatorID string, status models.ApplicationStatus) ([]*models.Application, error)
}

// CollaborationStore is the durable store contract for collaborations.
type CollaborationStore interface {
	Get(ctx context.Context, id string) (*models.Collaboration, error)
	Schedule(ctx context.Context, id string, date, at time.Time) (*models.Collaboration, error)
	MarkVisited(ctx context.Context, id string, at time.Time) (*models.Collaboration, error)
	AdvanceOnSubmission(ctx context.Context, sub *models.ContentSubmission, at time.Time) (*models.Collaboration, error)
	MarkInReview(ctx context.Context, id string, at time.Time) (*models.Collaboration, error)
	Complete(ctx context.Context, id string, submissionID *string, at time.Time) (*models.Collaboration, bool, error)
	SetRating(ctx context.Context, id string, role models.Role, rating int, feedback string, at time.Time) (*models.Collaboration, bool, error)
	Terminate(ctx context.Context, id string, status models.CollaborationStatus, reason string, at time.Time) (*models.Collaboration, error)
	CountCompletedByCreator(ctx context.Context, creatorID string) (int, error)
	ListByUser(ctx context.Context, userID string, role models.Role, status models.CollaborationStatus) ([]*models.Collaboration, error)
}

// SubmissionStore is the durable store contract for content submissions.
type SubmissionStore interface {
	Get(ctx context.Context, id string) (*models.ContentSubmission, error)
	SetScore(ctx context.Context, id string, score float64, analysis map[string]interface{}, at time.Time) (*models.ContentSubmission, error)
	Decide(ctx context.Context, id string, decision models.SubmissionStatus, reviewerID, notes string, at time.Time) (*models.ContentSubmission, error)
	ListByCollaboration(ctx context.Context, collabID string) ([]*models.ContentSubmission, error)
	ListUnscored(ctx context.Context, limit int) ([]*models.ContentSubmission, error)
}

// OfferStore reads the externally owned offer catalog.
type OfferStore interface {
	Get(ctx context.Context, id string) (*models.Offer, error)
}

// TierStore persists derived tier records.
type TierStore interface {
	Get(ctx context.Context, creatorID string) (*models.TierRecord, error)
	Upsert(ctx context.Context, rec *models.TierRecord) error
}

// Core bundles the four engines for an embedding caller.
type Core struct {
	Applications   *ApplicationEngine
	Collaborations *CollaborationEngine
	Content        *ContentEngine
	Tiers          *TierEngine
}
