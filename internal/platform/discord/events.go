package discord

import (
	"time"

	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"
	"github.com/rs/zerolog"

	"github.com/roblox669900-cpu/giveaway-bot/internal/features/engagement"
	"github.com/roblox669900-cpu/giveaway-bot/internal/metrics"
)

// EventFeed forwards gateway activity into the engagement registry.
type EventFeed struct {
	trackers *engagement.Registry
	logger   zerolog.Logger
	now      func() time.Time
}

func NewEventFeed(trackers *engagement.Registry, logger zerolog.Logger) *EventFeed {
	return &EventFeed{trackers: trackers, logger: logger, now: time.Now}
}

func (f *EventFeed) OnMessageCreate(event *events.MessageCreate) {
	if event.GuildID == nil || event.Message.Author.Bot {
		return
	}
	f.message(*event.GuildID, event.Message.Author.ID)
}

func (f *EventFeed) message(guildID, userID snowflake.ID) {
	f.trackers.RecordMessage(guildID, userID)
	metrics.RecordEngagementEvent("message")
}

func (f *EventFeed) OnVoiceStateUpdate(event *events.GuildVoiceStateUpdate) {
	if event.Member.User.Bot {
		return
	}
	f.voice(event.VoiceState.GuildID, event.VoiceState.UserID,
		event.OldVoiceState.ChannelID, event.VoiceState.ChannelID)
}

func (f *EventFeed) voice(guildID, userID snowflake.ID, prev, next *snowflake.ID) {
	switch {
	case prev == nil && next != nil:
		metrics.RecordEngagementEvent("voice_join")
	case prev != nil && next == nil:
		metrics.RecordEngagementEvent("voice_leave")
	default:
		return
	}
	f.trackers.RecordVoiceState(guildID, userID, prev, next, f.now())
}

func (f *EventFeed) OnReady(event *events.Ready) {
	f.logger.Info().
		Str("user", event.User.Username).
		Int("guilds", len(event.Guilds)).
		Msg("Gateway ready")
}
