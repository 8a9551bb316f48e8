package models

// EventType identifies a notification event raised on a state transition.
type EventType string

const (
	EventApplicationReceived  EventType = "application_received"
	EventApplicationAccepted  EventType = "application_accepted"
	EventApplicationRejected  EventType = "application_rejected"
	EventApplicationWithdrawn EventType = "application_withdrawn"

	EventCollaborationScheduled EventType = "collaboration_scheduled"
	EventCollaborationVisited   EventType = "collaboration_visited"
	EventCollaborationCancelled EventType = "collaboration_cancelled"
	EventCollaborationDisputed  EventType = "collaboration_disputed"
	EventCollaborationCompleted EventType = "collaboration_completed"
	EventRatingReceived         EventType = "rating_received"

	EventContentSubmitted         EventType = "content_submitted"
	EventContentApproved          EventType = "content_approved"
	EventContentRejected          EventType = "content_rejected"
	EventContentRevisionRequested EventType = "content_revision_requested"

	EventTierUpgraded EventType = "tier_upgraded"
)
