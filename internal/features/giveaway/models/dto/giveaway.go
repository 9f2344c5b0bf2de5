package dto

import "time"

// GiveawayResponse is the read API view of a giveaway record.
type GiveawayResponse struct {
	ID                  int64      `json:"id"`
	GuildID             string     `json:"guild_id"`
	HostID              string     `json:"host_id"`
	ChannelID           string     `json:"channel_id,omitempty"`
	MessageID           string     `json:"message_id,omitempty"`
	Prize               string     `json:"prize"`
	ImageURL            string     `json:"image_url,omitempty"`
	WinnerCount         int        `json:"winner_count"`
	MessageRequirement  int        `json:"message_requirement"`
	VoiceRequirementMin float64    `json:"voice_requirement_minutes"`
	Status              string     `json:"status"`
	StartedAt           time.Time  `json:"started_at"`
	EndsAt              time.Time  `json:"ends_at"`
	TimeLeft            string     `json:"time_left"`
	TimeLeftSeconds     int64      `json:"time_left_seconds"`
	HasForcedWinner     bool       `json:"has_forced_winner"`
	Winners             []string   `json:"winners"`
	Rerolls             []string   `json:"rerolls,omitempty"`
	AbortReason         string     `json:"abort_reason,omitempty"`
	ResolvedAt          *time.Time `json:"resolved_at,omitempty"`
}

// GiveawayListResponse wraps a list so the API can grow fields later.
type GiveawayListResponse struct {
	Giveaways []GiveawayResponse `json:"giveaways"`
	Total     int                `json:"total"`
}
