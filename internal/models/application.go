package models

import "time"

// ApplicationStatus is the closed set of states an application moves through.
type ApplicationStatus string

const (
	ApplicationApplied     ApplicationStatus = "applied"
	ApplicationUnderReview ApplicationStatus = "under_review"
	ApplicationAccepted    ApplicationStatus = "accepted"
	ApplicationRejected    ApplicationStatus = "rejected"
	ApplicationWithdrawn   ApplicationStatus = "withdrawn"
)

// Terminal reports whether no further transition is allowed from s.
func (s ApplicationStatus) Terminal() bool {
	switch s {
	case ApplicationAccepted, ApplicationRejected, ApplicationWithdrawn:
		return true
	}
	return false
}

// Active reports whether the application still counts against the
// one-per-(offer, creator) constraint.
func (s ApplicationStatus) Active() bool {
	return s != ApplicationWithdrawn
}

// Application is a creator's bid to fulfill an offer. Applications are
// retained for audit and never deleted.
type Application struct {
	ID              string            `json:"id"`
	OfferID         string            `json:"offerId"`
	CreatorID       string            `json:"creatorId"`
	Status          ApplicationStatus `json:"status"`
	Message         string            `json:"message,omitempty"`
	ProposedFee     *float64          `json:"proposedFee,omitempty"`
	ProposedDate    *time.Time        `json:"proposedDate,omitempty"`
	RejectionReason string            `json:"rejectionReason,omitempty"`
	AppliedAt       time.Time         `json:"appliedAt"`
	ReviewedAt      *time.Time        `json:"reviewedAt,omitempty"`
	RespondedAt     *time.Time        `json:"respondedAt,omitempty"`
}
