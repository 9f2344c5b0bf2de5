package models

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// Participant is a reactor evaluated at resolution time. Never persisted.
type Participant struct {
	UserID       snowflake.ID `json:"user_id"`
	Messages     int          `json:"messages"`
	VoiceMinutes float64      `json:"voice_minutes"`
	Eligible     bool         `json:"eligible"`
}

// EngagementCounters is the persisted form of one giveaway's tracker.
type EngagementCounters struct {
	Messages     map[snowflake.ID]int       `json:"messages"`
	VoiceMinutes map[snowflake.ID]float64   `json:"voice_minutes"`
	Sessions     map[snowflake.ID]time.Time `json:"sessions"`
	SavedAt      time.Time                  `json:"saved_at"`
}

// Outcome is the result of resolving or cancelling a giveaway.
type Outcome struct {
	GiveawayID   int64          `json:"giveaway_id"`
	GuildID      snowflake.ID   `json:"guild_id"`
	Status       Status         `json:"status"`
	Winners      []snowflake.ID `json:"winners"`
	Participants []Participant  `json:"participants,omitempty"`
	Reason       string         `json:"reason,omitempty"`
	ResolvedAt   time.Time      `json:"resolved_at"`
}

// Member is the subset of guild member info the engine needs.
type Member struct {
	UserID      snowflake.ID `json:"user_id"`
	Username    string       `json:"username"`
	DisplayName string       `json:"display_name"`
	Bot         bool         `json:"bot"`
}

// Announcement is platform-neutral message content. The chat adapter maps it
// onto its own embed type.
type Announcement struct {
	Title       string
	Description string
	Color       int
	ImageURL    string
	Footer      string
}
