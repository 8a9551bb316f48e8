package models

import "time"

// CollaborationStatus is the closed set of states a collaboration moves
// through. The forward path is accepted -> scheduled -> visited ->
// content_submitted -> in_review -> completed; cancelled and disputed are
// absorbing exits reachable from any non-terminal state.
type CollaborationStatus string

const (
	CollaborationAccepted         CollaborationStatus = "accepted"
	CollaborationScheduled        CollaborationStatus = "scheduled"
	CollaborationVisited          CollaborationStatus = "visited"
	CollaborationContentSubmitted CollaborationStatus = "content_submitted"
	CollaborationInReview         CollaborationStatus = "in_review"
	CollaborationCompleted        CollaborationStatus = "completed"
	CollaborationCancelled        CollaborationStatus = "cancelled"
	CollaborationDisputed         CollaborationStatus = "disputed"
)

// Terminal reports whether the lifecycle engine accepts no further
// transitions from s.
func (s CollaborationStatus) Terminal() bool {
	switch s {
	case CollaborationCompleted, CollaborationCancelled, CollaborationDisputed:
		return true
	}
	return false
}

// Role identifies which side of a collaboration an actor is on.
type Role string

const (
	RoleCreator  Role = "creator"
	RoleBusiness Role = "business"
)

// Collaboration is the engagement formed from an accepted application.
// Exactly one collaboration exists per application.
type Collaboration struct {
	ID                 string                 `json:"id"`
	OfferID            string                 `json:"offerId"`
	ApplicationID      string                 `json:"applicationId"`
	CreatorID          string                 `json:"creatorId"`
	BusinessID         string                 `json:"businessId"`
	Status             CollaborationStatus    `json:"status"`
	AgreedFee          float64                `json:"agreedFee"`
	AgreedDeliverables map[string]interface{} `json:"agreedDeliverables,omitempty"`
	ScheduledDate      *time.Time             `json:"scheduledDate,omitempty"`
	VisitedDate        *time.Time             `json:"visitedDate,omitempty"`
	CompletedDate      *time.Time             `json:"completedDate,omitempty"`
	SubmissionID       *string                `json:"submissionId,omitempty"`
	CreatorRating      *int                   `json:"creatorRating,omitempty"`
	CreatorFeedback    string                 `json:"creatorFeedback,omitempty"`
	BusinessRating     *int                   `json:"businessRating,omitempty"`
	BusinessFeedback   string                 `json:"businessFeedback,omitempty"`
	DisputeReason      string                 `json:"disputeReason,omitempty"`
	CreatedAt          time.Time              `json:"createdAt"`
	UpdatedAt          time.Time              `json:"updatedAt"`
}

// RoleOf returns the role userID plays in the collaboration, or "" if the
// user is not a party.
func (c *Collaboration) RoleOf(userID string) Role {
	switch userID {
	case c.CreatorID:
		return RoleCreator
	case c.BusinessID:
		return RoleBusiness
	}
	return ""
}

// OtherParty returns the counterparty of userID, assuming userID is a party.
func (c *Collaboration) OtherParty(userID string) string {
	if userID == c.CreatorID {
		return c.BusinessID
	}
	return c.CreatorID
}

// BothRated reports whether both parties have submitted a rating.
func (c *Collaboration) BothRated() bool {
	return c.CreatorRating != nil && c.BusinessRating != nil
}
