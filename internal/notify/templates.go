// internal/notify/templates.go
package notify

import "github.com/naalis/influfinder/internal/models"

type template struct {
	subject      string
	body         string
	highPriority bool // high-priority events also go out over SMS
}

var templates = map[models.EventType]template{
	models.EventApplicationReceived: {
		subject: "New application received",
		body:    "A creator has applied to one of your offers.",
	},
	models.EventApplicationAccepted: {
		subject:      "Application accepted!",
		body:         "Your application was accepted. Time to work out the details.",
		highPriority: true,
	},
	models.EventApplicationRejected: {
		subject: "Application rejected",
		body:    "Your application was rejected. Keep trying with other offers.",
	},
	models.EventApplicationWithdrawn: {
		subject: "Application withdrawn",
		body:    "The creator has withdrawn their application.",
	},
	models.EventCollaborationScheduled: {
		subject: "Collaboration scheduled",
		body:    "The execution date has been confirmed: {{scheduledDate}}.",
	},
	models.EventCollaborationVisited: {
		subject: "Visit confirmed",
		body:    "The visit for your collaboration has been recorded.",
	},
	models.EventCollaborationCancelled: {
		subject:      "Collaboration cancelled",
		body:         "The collaboration was cancelled. Reason: {{reason}}",
		highPriority: true,
	},
	models.EventCollaborationDisputed: {
		subject:      "Collaboration disputed",
		body:         "A dispute was opened on your collaboration. Reason: {{reason}}",
		highPriority: true,
	},
	models.EventCollaborationCompleted: {
		subject: "Collaboration completed",
		body:    "Your collaboration is complete. Thanks for working together!",
	},
	models.EventRatingReceived: {
		subject: "New rating received",
		body:    "Your counterparty rated the collaboration.",
	},
	models.EventContentSubmitted: {
		subject: "Content submitted",
		body:    "The creator has submitted content for review.",
	},
	models.EventContentApproved: {
		subject:      "Content approved",
		body:         "Your content was approved.",
		highPriority: true,
	},
	models.EventContentRejected: {
		subject: "Content rejected",
		body:    "Your content was rejected. Notes: {{notes}}",
	},
	models.EventContentRevisionRequested: {
		subject: "Revision requested",
		body:    "The business asked for changes to your content. Notes: {{notes}}",
	},
	models.EventTierUpgraded: {
		subject:      "You reached {{tierName}}!",
		body:         "Congrats, you are now level {{tierName}}. New offers unlocked.",
		highPriority: true,
	},
}
