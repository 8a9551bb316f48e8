package models

import "time"

// TierRecord is a creator's derived reputation record. It is fully
// determined by the completed-collaboration count and always written as a
// whole; individual fields are never patched.
type TierRecord struct {
	CreatorID               string    `json:"creatorId"`
	Level                   int       `json:"tierLevel"`    // 0-5
	Progress                float64   `json:"tierProgress"` // percent within current tier
	KarmaScore              int       `json:"karmaScore"`
	CompletedCollaborations int       `json:"completedCollaborations"`
	UpdatedAt               time.Time `json:"updatedAt"`
}

var tierNames = []string{"Newbie", "Explorer", "Pro", "Elite", "Master", "Legend"}

// TierName returns the display name for a tier level.
func TierName(level int) string {
	if level < 0 || level >= len(tierNames) {
		return "Unknown"
	}
	return tierNames[level]
}
