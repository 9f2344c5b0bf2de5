package models

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// Status is the lifecycle state of a giveaway.
type Status string

const (
	StatusAnnounced Status = "announced" // record created, announcement being posted
	StatusCounting  Status = "counting"  // entry window open
	StatusResolving Status = "resolving" // window elapsed, selecting winners
	StatusCompleted Status = "completed" // winners announced
	StatusCancelled Status = "cancelled" // cancelled by an administrator
	StatusAborted   Status = "aborted"   // ended without winners
)

// IsTerminal reports whether no further transition can happen.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusAborted
}

// Abort reasons recorded on aborted giveaways.
const (
	AbortReasonReactionMissing = "entry reaction missing"
	AbortReasonNoEligible      = "no one met requirements"
	AbortReasonFetchFailed     = "could not read entries"
	AbortReasonCancelled       = "cancelled by an administrator"
)

// MessageRef points at the announcement that collects reaction entries.
type MessageRef struct {
	ChannelID snowflake.ID `json:"channel_id"`
	MessageID snowflake.ID `json:"message_id"`
}

func (r MessageRef) IsZero() bool {
	return r.MessageID == 0
}

// Thresholds are the entry requirements. Zero means "not required"; when both
// are set, meeting either one qualifies.
type Thresholds struct {
	Messages     int     `json:"messages"`
	VoiceMinutes float64 `json:"voice_minutes"`
}

// Unset reports whether everyone qualifies.
func (t Thresholds) Unset() bool {
	return t.Messages == 0 && t.VoiceMinutes == 0
}

// Giveaway is one running or resolved giveaway.
type Giveaway struct {
	ID           int64          `json:"id"`
	GuildID      snowflake.ID   `json:"guild_id"`
	HostID       snowflake.ID   `json:"host_id"`
	Prize        string         `json:"prize"`
	ImageURL     string         `json:"image_url,omitempty"`
	WinnerCount  int            `json:"winner_count"`
	Requirements Thresholds     `json:"requirements"`
	Message      MessageRef     `json:"message"`
	StartedAt    time.Time      `json:"started_at"`
	EndsAt       time.Time      `json:"ends_at"`
	ForcedWinner *snowflake.ID  `json:"forced_winner,omitempty"`
	Status       Status         `json:"status"`
	Winners      []snowflake.ID `json:"winners,omitempty"`
	Rerolls      []snowflake.ID `json:"rerolls,omitempty"`
	AbortReason  string         `json:"abort_reason,omitempty"`
	ResolvedAt   *time.Time     `json:"resolved_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

func (g *Giveaway) HasEnded(now time.Time) bool {
	return !now.Before(g.EndsAt)
}

// Remaining is the time left in the entry window, never negative.
func (g *Giveaway) Remaining(now time.Time) time.Duration {
	if g.HasEnded(now) {
		return 0
	}
	return g.EndsAt.Sub(now)
}

func (g *Giveaway) Duration() time.Duration {
	return g.EndsAt.Sub(g.StartedAt)
}

// Clone returns a deep copy so snapshots can be handed out safely.
func (g *Giveaway) Clone() *Giveaway {
	if g == nil {
		return nil
	}
	c := *g
	if g.ForcedWinner != nil {
		fw := *g.ForcedWinner
		c.ForcedWinner = &fw
	}
	if g.ResolvedAt != nil {
		ra := *g.ResolvedAt
		c.ResolvedAt = &ra
	}
	if g.Winners != nil {
		c.Winners = append([]snowflake.ID(nil), g.Winners...)
	}
	if g.Rerolls != nil {
		c.Rerolls = append([]snowflake.ID(nil), g.Rerolls...)
	}
	return &c
}
