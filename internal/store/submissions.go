// internal/store/submissions.go
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

const submissionColumns = `id, collaboration_id, creator_id, status, content_urls,
	captions, platform, platform_post_id, ai_score, ai_analysis,
	reviewed_by, reviewer_notes, submitted_at, reviewed_at`

// SubmissionStore persists content submissions. Inserts go through
// CollaborationStore.AdvanceOnSubmission so the collaboration's status gate
// covers them.
type SubmissionStore struct {
	db *sql.DB
}

func NewSubmissionStore(db *sql.DB) *SubmissionStore {
	return &SubmissionStore{db: db}
}

func scanSubmission(row rowScanner) (*models.ContentSubmission, error) {
	var (
		sub        models.ContentSubmission
		captions   []byte
		postID     sql.NullString
		aiScore    sql.NullFloat64
		aiAnalysis []byte
		reviewedBy sql.NullString
		notes      sql.NullString
		reviewedAt sql.NullTime
	)
	err := row.Scan(
		&sub.ID, &sub.CollaborationID, &sub.CreatorID, &sub.Status,
		pq.Array(&sub.ContentURLs), &captions, &sub.Platform, &postID,
		&aiScore, &aiAnalysis, &reviewedBy, &notes,
		&sub.SubmittedAt, &reviewedAt,
	)
	if err != nil {
		return nil, err
	}
	if sub.Captions, err = unmarshalJSON(captions); err != nil {
		return nil, err
	}
	if sub.AIAnalysis, err = unmarshalJSON(aiAnalysis); err != nil {
		return nil, err
	}
	sub.PlatformPostID = postID.String
	sub.AIScore = floatOrNil(aiScore)
	sub.ReviewedBy = strOrNil(reviewedBy)
	sub.ReviewerNotes = notes.String
	sub.ReviewedAt = timeOrNil(reviewedAt)
	return &sub, nil
}

// Get loads one submission by id.
func (s *SubmissionStore) Get(ctx context.Context, id string) (*models.ContentSubmission, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+submissionColumns+` FROM content_submissions WHERE id = $1`, id)
	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("submission", id)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("submission get", err)
	}
	return sub, nil
}

// SetScore stores the oracle verdict and moves the submission to
// under_review. Re-scoring an already reviewed submission is refused.
func (s *SubmissionStore) SetScore(ctx context.Context, id string, score float64, analysis map[string]interface{}, at time.Time) (*models.ContentSubmission, error) {
	analysisJSON, err := marshalJSON(analysis)
	if err != nil {
		return nil, apperrors.NewInternalError("submission set score", err)
	}
	row := s.db.QueryRowContext(ctx, `
		UPDATE content_submissions
		SET ai_score = $2, ai_analysis = $3, status = $4
		WHERE id = $1 AND status IN ($5, $6)
		RETURNING `+submissionColumns,
		id, score, analysisJSON, models.SubmissionUnderReview,
		models.SubmissionSubmitted, models.SubmissionUnderReview,
	)
	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, s.invalidTransition(ctx, id, models.SubmissionUnderReview)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("submission set score", err)
	}
	return sub, nil
}

// Decide records the manual review outcome. Approved and rejected are
// final; a revision_requested submission may be decided again.
func (s *SubmissionStore) Decide(ctx context.Context, id string, decision models.SubmissionStatus, reviewerID, notes string, at time.Time) (*models.ContentSubmission, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE content_submissions
		SET status = $2, reviewed_by = $3, reviewer_notes = $4, reviewed_at = $5
		WHERE id = $1 AND status NOT IN ($6, $7)
		RETURNING `+submissionColumns,
		id, decision, reviewerID, notes, at,
		models.SubmissionApproved, models.SubmissionRejected,
	)
	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, s.invalidTransition(ctx, id, decision)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("submission decide", err)
	}
	return sub, nil
}

// ListByCollaboration returns a collaboration's submissions, newest first.
func (s *SubmissionStore) ListByCollaboration(ctx context.Context, collabID string) ([]*models.ContentSubmission, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+submissionColumns+` FROM content_submissions
		 WHERE collaboration_id = $1 ORDER BY submitted_at DESC`, collabID)
	if err != nil {
		return nil, apperrors.NewInternalError("submission list", err)
	}
	defer rows.Close()

	var out []*models.ContentSubmission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("submission list", err)
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// ListUnscored returns submissions still awaiting AI analysis, oldest
// first, capped at limit. The scoring sweep drains this set.
func (s *SubmissionStore) ListUnscored(ctx context.Context, limit int) ([]*models.ContentSubmission, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+submissionColumns+` FROM content_submissions
		 WHERE status = $1 AND ai_score IS NULL
		 ORDER BY submitted_at ASC LIMIT $2`,
		models.SubmissionSubmitted, limit)
	if err != nil {
		return nil, apperrors.NewInternalError("submission list unscored", err)
	}
	defer rows.Close()

	var out []*models.ContentSubmission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("submission list unscored", err)
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (s *SubmissionStore) invalidTransition(ctx context.Context, id string, wanted models.SubmissionStatus) error {
	sub, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	metrics.TransitionConflicts.WithLabelValues("submission", string(wanted)).Inc()
	return apperrors.NewInvalidStateError(fmt.Sprintf(
		"submission %s is %s, cannot transition to %s", id, sub.Status, wanted))
}
