package mapper

import (
	"time"

	"github.com/disgoorg/snowflake/v2"

	"github.com/roblox669900-cpu/giveaway-bot/internal/features/giveaway/models"
	"github.com/roblox669900-cpu/giveaway-bot/internal/features/giveaway/models/dto"
	"github.com/roblox669900-cpu/giveaway-bot/internal/utils/duration"
)

// ToGiveawayResponse maps a record to its API view. The forced winner id
// is never exposed, only whether one is set.
func ToGiveawayResponse(g *models.Giveaway, now time.Time) dto.GiveawayResponse {
	resp := dto.GiveawayResponse{
		ID:                  g.ID,
		GuildID:             g.GuildID.String(),
		HostID:              g.HostID.String(),
		Prize:               g.Prize,
		ImageURL:            g.ImageURL,
		WinnerCount:         g.WinnerCount,
		MessageRequirement:  g.Requirements.Messages,
		VoiceRequirementMin: g.Requirements.VoiceMinutes,
		Status:              string(g.Status),
		StartedAt:           g.StartedAt,
		EndsAt:              g.EndsAt,
		HasForcedWinner:     g.ForcedWinner != nil,
		Winners:             ids(g.Winners),
		Rerolls:             ids(g.Rerolls),
		AbortReason:         g.AbortReason,
		ResolvedAt:          g.ResolvedAt,
	}
	if !g.Message.IsZero() {
		resp.ChannelID = g.Message.ChannelID.String()
		resp.MessageID = g.Message.MessageID.String()
	}
	if !g.Status.IsTerminal() {
		left := int64(g.Remaining(now) / time.Second)
		resp.TimeLeftSeconds = left
		resp.TimeLeft = duration.FormatRemaining(left)
	} else {
		resp.TimeLeft = duration.FormatRemaining(0)
	}
	return resp
}

// ToGiveawayList maps records in order.
func ToGiveawayList(gs []*models.Giveaway, now time.Time) dto.GiveawayListResponse {
	out := make([]dto.GiveawayResponse, 0, len(gs))
	for _, g := range gs {
		out = append(out, ToGiveawayResponse(g, now))
	}
	return dto.GiveawayListResponse{Giveaways: out, Total: len(out)}
}

func ids(in []snowflake.ID) []string {
	out := make([]string, 0, len(in))
	for _, id := range in {
		out = append(out, id.String())
	}
	return out
}
