// internal/store/collaborations.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	apperrors "github.com/naalis/influfinder/internal/common/errors"
	"github.com/naalis/influfinder/internal/common/metrics"
	"github.com/naalis/influfinder/internal/models"
)

const collaborationColumns = `id, offer_id, application_id, creator_id, business_id,
	status, agreed_fee, agreed_deliverables, scheduled_date, visited_date,
	completed_date, submission_id, creator_rating, creator_feedback,
	business_rating, business_feedback, dispute_reason, created_at, updated_at`

// CollaborationStore persists collaborations. Status advances are
// conditional UPDATEs; the dual-rating completion check runs inside a
// row-locked transaction so two concurrent rate calls observe a consistent
// snapshot.
type CollaborationStore struct {
	db *sql.DB
}

func NewCollaborationStore(db *sql.DB) *CollaborationStore {
	return &CollaborationStore{db: db}
}

func scanCollaboration(row rowScanner) (*models.Collaboration, error) {
	var (
		c                models.Collaboration
		deliverables     []byte
		scheduledDate    sql.NullTime
		visitedDate      sql.NullTime
		completedDate    sql.NullTime
		submissionID     sql.NullString
		creatorRating    sql.NullInt64
		creatorFeedback  sql.NullString
		businessRating   sql.NullInt64
		businessFeedback sql.NullString
		disputeReason    sql.NullString
	)
	err := row.Scan(
		&c.ID, &c.OfferID, &c.ApplicationID, &c.CreatorID, &c.BusinessID,
		&c.Status, &c.AgreedFee, &deliverables, &scheduledDate, &visitedDate,
		&completedDate, &submissionID, &creatorRating, &creatorFeedback,
		&businessRating, &businessFeedback, &disputeReason,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if c.AgreedDeliverables, err = unmarshalJSON(deliverables); err != nil {
		return nil, err
	}
	c.ScheduledDate = timeOrNil(scheduledDate)
	c.VisitedDate = timeOrNil(visitedDate)
	c.CompletedDate = timeOrNil(completedDate)
	c.SubmissionID = strOrNil(submissionID)
	c.CreatorRating = intOrNil(creatorRating)
	c.CreatorFeedback = creatorFeedback.String
	c.BusinessRating = intOrNil(businessRating)
	c.BusinessFeedback = businessFeedback.String
	c.DisputeReason = disputeReason.String
	return &c, nil
}

// Get loads one collaboration by id.
func (s *CollaborationStore) Get(ctx context.Context, id string) (*models.Collaboration, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+collaborationColumns+` FROM collaborations WHERE id = $1`, id)
	c, err := scanCollaboration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("collaboration", id)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("collaboration get", err)
	}
	return c, nil
}

// Schedule stores the scheduled date. The status only advances to
// scheduled from accepted/scheduled; a collaboration further along keeps
// its status (no backward transition) but still records the new date.
// Terminal collaborations refuse the write.
func (s *CollaborationStore) Schedule(ctx context.Context, id string, date, at time.Time) (*models.Collaboration, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE collaborations
		SET scheduled_date = $2,
			status = CASE WHEN status IN ($4, $5) THEN $5 ELSE status END,
			updated_at = $3
		WHERE id = $1 AND status NOT IN ($6, $7, $8)
		RETURNING `+collaborationColumns,
		id, date, at,
		models.CollaborationAccepted, models.CollaborationScheduled,
		models.CollaborationCompleted, models.CollaborationCancelled, models.CollaborationDisputed,
	)
	c, err := scanCollaboration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, s.invalidTransition(ctx, id, models.CollaborationScheduled)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("collaboration schedule", err)
	}
	return c, nil
}

// MarkVisited records the visit and advances to visited. The visit record
// is optional in the lifecycle, so this only applies from
// accepted/scheduled.
func (s *CollaborationStore) MarkVisited(ctx context.Context, id string, at time.Time) (*models.Collaboration, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE collaborations
		SET status = $2, visited_date = $3, updated_at = $3
		WHERE id = $1 AND status IN ($4, $5)
		RETURNING `+collaborationColumns,
		id, models.CollaborationVisited, at,
		models.CollaborationAccepted, models.CollaborationScheduled,
	)
	c, err := scanCollaboration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, s.invalidTransition(ctx, id, models.CollaborationVisited)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("collaboration mark visited", err)
	}
	return c, nil
}

// AdvanceOnSubmission inserts the submission and advances its
// collaboration to content_submitted in one transaction. The
// collaboration's status gate decides whether the insert commits: a
// terminal collaboration rolls the whole thing back, so a refused advance
// leaves no submission row behind. A collaboration already in
// content_submitted/in_review just repoints the submission reference.
func (s *CollaborationStore) AdvanceOnSubmission(ctx context.Context, sub *models.ContentSubmission, at time.Time) (*models.Collaboration, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.NewInternalError("collaboration advance on submission", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		UPDATE collaborations
		SET submission_id = $2,
			status = CASE WHEN status IN ($4, $5, $6) THEN $7 ELSE status END,
			updated_at = $3
		WHERE id = $1 AND status NOT IN ($8, $9, $10)
		RETURNING `+collaborationColumns,
		sub.CollaborationID, sub.ID, at,
		models.CollaborationAccepted, models.CollaborationScheduled, models.CollaborationVisited,
		models.CollaborationContentSubmitted,
		models.CollaborationCompleted, models.CollaborationCancelled, models.CollaborationDisputed,
	)
	c, err := scanCollaboration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, s.invalidTransition(ctx, sub.CollaborationID, models.CollaborationContentSubmitted)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("collaboration advance on submission", err)
	}

	captions, err := marshalJSON(sub.Captions)
	if err != nil {
		return nil, apperrors.NewInternalError("submission insert", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO content_submissions (
			id, collaboration_id, creator_id, status, content_urls,
			captions, platform, platform_post_id, submitted_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		sub.ID, sub.CollaborationID, sub.CreatorID, sub.Status,
		pq.Array(sub.ContentURLs), captions, sub.Platform, sub.PlatformPostID,
		sub.SubmittedAt,
	)
	if err != nil {
		return nil, apperrors.NewInternalError("submission insert", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.NewInternalError("collaboration advance on submission", err)
	}
	return c, nil
}

// MarkInReview advances content_submitted -> in_review once scoring has
// run. Any other current status is left untouched.
func (s *CollaborationStore) MarkInReview(ctx context.Context, id string, at time.Time) (*models.Collaboration, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE collaborations
		SET status = $2, updated_at = $3
		WHERE id = $1 AND status = $4
		RETURNING `+collaborationColumns,
		id, models.CollaborationInReview, at, models.CollaborationContentSubmitted,
	)
	c, err := scanCollaboration(row)
	if errors.Is(err, sql.ErrNoRows) {
		// Idempotent: whatever state the row is in stands.
		return s.Get(ctx, id)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("collaboration mark in review", err)
	}
	return c, nil
}

// Complete moves the collaboration to completed. The completed_date IS
// NULL predicate guarantees the completion happens exactly once no matter
// how many triggers fire; completedNow reports whether this call won.
func (s *CollaborationStore) Complete(ctx context.Context, id string, submissionID *string, at time.Time) (*models.Collaboration, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE collaborations
		SET status = $2, completed_date = $3,
			submission_id = COALESCE($4, submission_id),
			updated_at = $3
		WHERE id = $1 AND completed_date IS NULL AND status NOT IN ($5, $6)
		RETURNING `+collaborationColumns,
		id, models.CollaborationCompleted, at, submissionID,
		models.CollaborationCancelled, models.CollaborationDisputed,
	)
	c, err := scanCollaboration(row)
	if errors.Is(err, sql.ErrNoRows) {
		current, err := s.Get(ctx, id)
		if err != nil {
			return nil, false, err
		}
		return current, false, nil
	}
	if err != nil {
		return nil, false, apperrors.NewInternalError("collaboration complete", err)
	}
	return c, true, nil
}

// SetRating upserts one party's rating under a row lock and decides the
// dual-rating completion atomically: completedNow is true only for the
// call that observes both ratings present with completed_date still unset,
// so the completion trigger fires exactly once even when both parties rate
// concurrently.
func (s *CollaborationStore) SetRating(ctx context.Context, id string, role models.Role, rating int, feedback string, at time.Time) (*models.Collaboration, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, apperrors.NewInternalError("collaboration rate", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+collaborationColumns+` FROM collaborations WHERE id = $1 FOR UPDATE`, id)
	c, err := scanCollaboration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, apperrors.NewNotFoundError("collaboration", id)
	}
	if err != nil {
		return nil, false, apperrors.NewInternalError("collaboration rate", err)
	}

	switch role {
	case models.RoleCreator:
		c.CreatorRating = &rating
		c.CreatorFeedback = feedback
	case models.RoleBusiness:
		c.BusinessRating = &rating
		c.BusinessFeedback = feedback
	default:
		return nil, false, apperrors.NewForbiddenError(fmt.Sprintf("unknown role %q", role))
	}

	completedNow := false
	if c.BothRated() && c.CompletedDate == nil &&
		c.Status != models.CollaborationCancelled && c.Status != models.CollaborationDisputed {
		completedNow = true
		c.Status = models.CollaborationCompleted
		c.CompletedDate = &at
	}
	c.UpdatedAt = at

	_, err = tx.ExecContext(ctx, `
		UPDATE collaborations
		SET creator_rating = $2, creator_feedback = $3,
			business_rating = $4, business_feedback = $5,
			status = $6, completed_date = $7, updated_at = $8
		WHERE id = $1`,
		c.ID, c.CreatorRating, c.CreatorFeedback,
		c.BusinessRating, c.BusinessFeedback,
		c.Status, c.CompletedDate, c.UpdatedAt,
	)
	if err != nil {
		return nil, false, apperrors.NewInternalError("collaboration rate", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, false, apperrors.NewInternalError("collaboration rate", err)
	}
	return c, completedNow, nil
}

// Terminate moves the collaboration into one of the absorbing exits
// (cancelled or disputed) from any non-terminal state.
func (s *CollaborationStore) Terminate(ctx context.Context, id string, status models.CollaborationStatus, reason string, at time.Time) (*models.Collaboration, error) {
	if status != models.CollaborationCancelled && status != models.CollaborationDisputed {
		return nil, apperrors.NewInvalidArgumentError(fmt.Sprintf("%s is not an absorbing exit", status))
	}
	row := s.db.QueryRowContext(ctx, `
		UPDATE collaborations
		SET status = $2,
			dispute_reason = CASE WHEN $2 = $5 THEN $3 ELSE dispute_reason END,
			updated_at = $4
		WHERE id = $1 AND status NOT IN ($6, $7, $8)
		RETURNING `+collaborationColumns,
		id, status, reason, at, models.CollaborationDisputed,
		models.CollaborationCompleted, models.CollaborationCancelled, models.CollaborationDisputed,
	)
	c, err := scanCollaboration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, s.invalidTransition(ctx, id, status)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("collaboration terminate", err)
	}
	return c, nil
}

// CountCompletedByCreator recounts a creator's completed collaborations.
// The tier engine recomputes from this count on every completion instead
// of maintaining an incremental counter.
func (s *CollaborationStore) CountCompletedByCreator(ctx context.Context, creatorID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM collaborations
		WHERE creator_id = $1 AND status = $2`,
		creatorID, models.CollaborationCompleted,
	).Scan(&count)
	if err != nil {
		return 0, apperrors.NewInternalError("collaboration count completed", err)
	}
	return count, nil
}

// ListByUser returns the collaborations a user participates in, optionally
// restricted by role and status, newest first.
func (s *CollaborationStore) ListByUser(ctx context.Context, userID string, role models.Role, status models.CollaborationStatus) ([]*models.Collaboration, error) {
	query := `SELECT ` + collaborationColumns + ` FROM collaborations WHERE `
	args := []interface{}{userID}
	switch role {
	case models.RoleCreator:
		query += `creator_id = $1`
	case models.RoleBusiness:
		query += `business_id = $1`
	default:
		query += `(creator_id = $1 OR business_id = $1)`
	}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("collaboration list", err)
	}
	defer rows.Close()

	var out []*models.Collaboration
	for rows.Next() {
		c, err := scanCollaboration(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("collaboration list", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *CollaborationStore) invalidTransition(ctx context.Context, id string, wanted models.CollaborationStatus) error {
	c, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	metrics.TransitionConflicts.WithLabelValues("collaboration", string(wanted)).Inc()
	return apperrors.NewInvalidStateError(fmt.Sprintf(
		"collaboration %s is %s, cannot transition to %s", id, c.Status, wanted))
}
