package service

import (
	"context"

	"github.com/disgoorg/snowflake/v2"

	"github.com/roblox669900-cpu/giveaway-bot/internal/features/giveaway/models"
)

// ChatClient is what the engine needs from the chat platform.
type ChatClient interface {
	PostAnnouncement(ctx context.Context, channelID snowflake.ID, a models.Announcement) (models.MessageRef, error)
	AddReaction(ctx context.Context, ref models.MessageRef, emoji string) error
	EditAnnouncement(ctx context.Context, ref models.MessageRef, a models.Announcement) error
	// FetchReactors lists non-bot users who reacted with emoji. It returns
	// ErrMessageMissing or ErrReactionMissing when there is nothing to read.
	FetchReactors(ctx context.Context, ref models.MessageRef, emoji string) ([]snowflake.ID, error)
	// ResolveMember returns ErrMemberNotFound when the user is not in the guild.
	ResolveMember(ctx context.Context, guildID, userID snowflake.ID) (*models.Member, error)
	// VoiceOccupants lists non-bot users currently in any voice channel.
	VoiceOccupants(ctx context.Context, guildID snowflake.ID) ([]snowflake.ID, error)
	SendNotification(ctx context.Context, channelID snowflake.ID, content string) error
}
