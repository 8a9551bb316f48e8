package models

import "time"

// SubmissionStatus is the closed set of states a content submission moves
// through: submitted -> under_review -> {approved, rejected,
// revision_requested}. A revision_requested submission stays open so the
// creator can submit a replacement.
type SubmissionStatus string

const (
	SubmissionSubmitted         SubmissionStatus = "submitted"
	SubmissionUnderReview       SubmissionStatus = "under_review"
	SubmissionApproved          SubmissionStatus = "approved"
	SubmissionRejected          SubmissionStatus = "rejected"
	SubmissionRevisionRequested SubmissionStatus = "revision_requested"
)

// Terminal reports whether the review decision is final.
func (s SubmissionStatus) Terminal() bool {
	return s == SubmissionApproved || s == SubmissionRejected
}

// ContentSubmission is creator-delivered proof-of-work for a collaboration.
type ContentSubmission struct {
	ID              string                 `json:"id"`
	CollaborationID string                 `json:"collaborationId"`
	CreatorID       string                 `json:"creatorId"`
	Status          SubmissionStatus       `json:"status"`
	ContentURLs     []string               `json:"contentUrls"`
	Captions        map[string]interface{} `json:"captions,omitempty"`
	Platform        string                 `json:"platform"`
	PlatformPostID  string                 `json:"platformPostId,omitempty"`
	AIScore         *float64               `json:"aiScore,omitempty"`
	AIAnalysis      map[string]interface{} `json:"aiAnalysis,omitempty"`
	ReviewedBy      *string                `json:"reviewedBy,omitempty"`
	ReviewerNotes   string                 `json:"reviewerNotes,omitempty"`
	SubmittedAt     time.Time              `json:"submittedAt"`
	ReviewedAt      *time.Time             `json:"reviewedAt,omitempty"`
}
