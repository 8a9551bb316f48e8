// internal/store/applications.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/naalis/influfinder/internal/common/errors"
	"github.com/naalis/influfinder/internal/common/metrics"
	"github.com/naalis/influfinder/internal/models"
)

const applicationColumns = `id, offer_id, creator_id, status, message, proposed_fee,
	proposed_date, rejection_reason, applied_at, reviewed_at, responded_at`

// ApplicationStore persists applications. The partial unique index
// idx_applications_offer_creator_active enforces at most one non-withdrawn
// application per (offer, creator) pair at the database level.
type ApplicationStore struct {
	db *sql.DB
}

func NewApplicationStore(db *sql.DB) *ApplicationStore {
	return &ApplicationStore{db: db}
}

func scanApplication(row rowScanner) (*models.Application, error) {
	var (
		app          models.Application
		message      sql.NullString
		proposedFee  sql.NullFloat64
		proposedDate sql.NullTime
		rejection    sql.NullString
		reviewedAt   sql.NullTime
		respondedAt  sql.NullTime
	)
	err := row.Scan(
		&app.ID, &app.OfferID, &app.CreatorID, &app.Status, &message,
		&proposedFee, &proposedDate, &rejection, &app.AppliedAt,
		&reviewedAt, &respondedAt,
	)
	if err != nil {
		return nil, err
	}
	app.Message = message.String
	app.ProposedFee = floatOrNil(proposedFee)
	app.ProposedDate = timeOrNil(proposedDate)
	app.RejectionReason = rejection.String
	app.ReviewedAt = timeOrNil(reviewedAt)
	app.RespondedAt = timeOrNil(respondedAt)
	return &app, nil
}

// Get loads one application by id.
func (s *ApplicationStore) Get(ctx context.Context, id string) (*models.Application, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE id = $1`, id)
	app, err := scanApplication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("application", id)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("application get", err)
	}
	return app, nil
}

// Create inserts a new application. A concurrent duplicate for the same
// (offer, creator) pair loses on the unique index and gets Conflict.
func (s *ApplicationStore) Create(ctx context.Context, app *models.Application) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO applications (
			id, offer_id, creator_id, status, message, proposed_fee,
			proposed_date, rejection_reason, applied_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		app.ID, app.OfferID, app.CreatorID, app.Status, app.Message,
		app.ProposedFee, app.ProposedDate, app.RejectionReason, app.AppliedAt,
	)
	if isUniqueViolation(err) {
		return apperrors.NewConflictError(fmt.Sprintf(
			"active application already exists for offer %s by creator %s",
			app.OfferID, app.CreatorID))
	}
	if err != nil {
		return apperrors.NewInternalError("application insert", err)
	}
	return nil
}

// MarkUnderReview flips applied -> under_review. Calling it again while
// already under review is a no-op.
func (s *ApplicationStore) MarkUnderReview(ctx context.Context, id string, at time.Time) (*models.Application, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE applications SET status = $2, reviewed_at = $3
		WHERE id = $1 AND status = $4
		RETURNING `+applicationColumns,
		id, models.ApplicationUnderReview, at, models.ApplicationApplied,
	)
	app, err := scanApplication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return s.requireStatus(ctx, id, models.ApplicationUnderReview)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("application mark under review", err)
	}
	return app, nil
}

// Reject moves the application to rejected iff it is not yet terminal.
func (s *ApplicationStore) Reject(ctx context.Context, id, reason string, at time.Time) (*models.Application, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE applications
		SET status = $2, rejection_reason = $3, reviewed_at = $4, responded_at = $4
		WHERE id = $1 AND status IN ($5, $6)
		RETURNING `+applicationColumns,
		id, models.ApplicationRejected, reason, at,
		models.ApplicationApplied, models.ApplicationUnderReview,
	)
	app, err := scanApplication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, s.invalidTransition(ctx, id, models.ApplicationRejected)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("application reject", err)
	}
	return app, nil
}

// Withdraw moves the application to withdrawn iff it is not yet terminal.
func (s *ApplicationStore) Withdraw(ctx context.Context, id string, at time.Time) (*models.Application, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE applications
		SET status = $2, responded_at = $3
		WHERE id = $1 AND status IN ($4, $5)
		RETURNING `+applicationColumns,
		id, models.ApplicationWithdrawn, at,
		models.ApplicationApplied, models.ApplicationUnderReview,
	)
	app, err := scanApplication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, s.invalidTransition(ctx, id, models.ApplicationWithdrawn)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("application withdraw", err)
	}
	return app, nil
}

// AcceptAndSpawn flips the application to accepted and inserts the spawned
// collaboration in one transaction. The terminal-status transition is the
// single gate: the first concurrent caller wins, later ones observe zero
// updated rows and get InvalidState, so exactly one collaboration exists
// per accepted application.
func (s *ApplicationStore) AcceptAndSpawn(ctx context.Context, id string, at time.Time, collab *models.Collaboration) (*models.Application, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.NewInternalError("application accept", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		UPDATE applications
		SET status = $2, reviewed_at = $3, responded_at = $3
		WHERE id = $1 AND status IN ($4, $5)
		RETURNING `+applicationColumns,
		id, models.ApplicationAccepted, at,
		models.ApplicationApplied, models.ApplicationUnderReview,
	)
	app, err := scanApplication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, s.invalidTransition(ctx, id, models.ApplicationAccepted)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("application accept", err)
	}

	deliverables, err := marshalJSON(collab.AgreedDeliverables)
	if err != nil {
		return nil, apperrors.NewInternalError("collaboration insert", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO collaborations (
			id, offer_id, application_id, creator_id, business_id, status,
			agreed_fee, agreed_deliverables, scheduled_date, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`,
		collab.ID, collab.OfferID, collab.ApplicationID, collab.CreatorID,
		collab.BusinessID, collab.Status, collab.AgreedFee, deliverables,
		collab.ScheduledDate, collab.CreatedAt,
	)
	if isUniqueViolation(err) {
		return nil, apperrors.NewConflictError(
			fmt.Sprintf("collaboration already exists for application %s", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("collaboration insert", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.NewInternalError("application accept", err)
	}
	return app, nil
}

// ListByCreator returns a creator's applications, optionally filtered by
// status, newest first.
func (s *ApplicationStore) ListByCreator(ctx context.Context, creatorID string, status models.ApplicationStatus) ([]*models.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE creator_id = $1`
	args := []interface{}{creatorID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY applied_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("application list", err)
	}
	defer rows.Close()

	var apps []*models.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("application list", err)
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

// invalidTransition distinguishes a missing row from a terminal one after
// a zero-row CAS.
func (s *ApplicationStore) invalidTransition(ctx context.Context, id string, wanted models.ApplicationStatus) error {
	app, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	metrics.TransitionConflicts.WithLabelValues("application", string(wanted)).Inc()
	return apperrors.NewInvalidStateError(fmt.Sprintf(
		"application %s is %s, cannot transition to %s", id, app.Status, wanted))
}

// requireStatus re-reads after an idempotent CAS found nothing to do.
func (s *ApplicationStore) requireStatus(ctx context.Context, id string, status models.ApplicationStatus) (*models.Application, error) {
	app, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if app.Status != status {
		metrics.TransitionConflicts.WithLabelValues("application", string(status)).Inc()
		return nil, apperrors.NewInvalidStateError(fmt.Sprintf(
			"application %s is %s, cannot transition to %s", id, app.Status, status))
	}
	return app, nil
}
