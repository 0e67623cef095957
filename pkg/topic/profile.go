package topic

import (
	"fmt"
	"strings"
)

// Profile selects the topic vocabulary of a node API generation.
type Profile uint8

const (
	// ProfileStardust is the block-based node event API (default).
	ProfileStardust Profile = iota

	// ProfileChrysalis is the legacy message-based node event API.
	ProfileChrysalis
)

// String returns the profile name.
func (p Profile) String() string {
	switch p {
	case ProfileStardust:
		return "stardust"
	case ProfileChrysalis:
		return "chrysalis"
	default:
		return "unknown"
	}
}

// ParseProfile parses a profile name (case-insensitive). Empty means stardust.
func ParseProfile(s string) (Profile, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "stardust":
		return ProfileStardust, nil
	case "chrysalis", "legacy":
		return ProfileChrysalis, nil
	default:
		return 0, fmt.Errorf("unknown profile: %s (use: stardust, chrysalis)", s)
	}
}

// Stardust topic literals.
const (
	TopicMilestoneLatest         = "milestone-info/latest"
	TopicMilestoneConfirmed      = "milestone-info/confirmed"
	TopicMilestones              = "milestones"
	TopicBlocks                  = "blocks"
	TopicBlocksTransaction       = "blocks/transaction"
	TopicBlocksTaggedData        = "blocks/tagged-data"
	TopicBlockMetadataReferenced = "block-metadata/referenced"
)

// Chrysalis topic literals.
const (
	LegacyTopicMilestoneLatest    = "milestones/latest"
	LegacyTopicMilestoneConfirmed = "milestones/confirmed"
	LegacyTopicMessages           = "messages"
	LegacyTopicMessagesReferenced = "messages/referenced"
)
