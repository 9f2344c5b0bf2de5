// Package discord adapts a disgo client to the giveaway engine: it posts and
// edits announcements, reads reactions and feeds engagement events.
package discord

import (
	"context"
	"errors"
	"net/http"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"golang.org/x/time/rate"

	apperrors "github.com/roblox669900-cpu/giveaway-bot/internal/common/errors"
	"github.com/roblox669900-cpu/giveaway-bot/internal/features/giveaway/models"
	"github.com/roblox669900-cpu/giveaway-bot/internal/features/giveaway/service"
)

const reactionPageSize = 100

var _ service.ChatClient = (*Client)(nil)

// Client implements service.ChatClient over the Discord REST API and the
// gateway caches.
type Client struct {
	bot   *bot.Client
	edits *rate.Limiter
}

func NewClient(client *bot.Client, editRate float64, editBurst int) *Client {
	return &Client{
		bot:   client,
		edits: rate.NewLimiter(rate.Limit(editRate), editBurst),
	}
}

func (c *Client) PostAnnouncement(ctx context.Context, channelID snowflake.ID, a models.Announcement) (models.MessageRef, error) {
	msg, err := c.bot.Rest.CreateMessage(channelID,
		announcementCreate(a),
		rest.WithCtx(ctx))
	if err != nil {
		return models.MessageRef{}, apperrors.NewDiscordAPIError("post announcement", err)
	}
	return models.MessageRef{ChannelID: msg.ChannelID, MessageID: msg.ID}, nil
}

func (c *Client) AddReaction(ctx context.Context, ref models.MessageRef, emoji string) error {
	if err := c.bot.Rest.AddReaction(ref.ChannelID, ref.MessageID, emoji, rest.WithCtx(ctx)); err != nil {
		return classify(err, service.ErrMessageMissing, "add reaction")
	}
	return nil
}

// EditAnnouncement waits for the shared edit limiter so countdown refreshes
// of many giveaways stay under the channel edit limits.
func (c *Client) EditAnnouncement(ctx context.Context, ref models.MessageRef, a models.Announcement) error {
	if err := c.edits.Wait(ctx); err != nil {
		return err
	}
	_, err := c.bot.Rest.UpdateMessage(ref.ChannelID, ref.MessageID,
		announcementUpdate(a),
		rest.WithCtx(ctx))
	if err != nil {
		return classify(err, service.ErrMessageMissing, "edit announcement")
	}
	return nil
}

func (c *Client) FetchReactors(ctx context.Context, ref models.MessageRef, emoji string) ([]snowflake.ID, error) {
	msg, err := c.bot.Rest.GetMessage(ref.ChannelID, ref.MessageID, rest.WithCtx(ctx))
	if err != nil {
		return nil, classify(err, service.ErrMessageMissing, "get message")
	}
	if !hasReaction(msg.Reactions, emoji) {
		return nil, service.ErrReactionMissing
	}

	var (
		ids   []snowflake.ID
		after int
	)
	for {
		users, err := c.bot.Rest.GetReactions(ref.ChannelID, ref.MessageID, emoji,
			discord.MessageReactionTypeNormal, after, reactionPageSize, rest.WithCtx(ctx))
		if err != nil {
			return nil, classify(err, service.ErrReactionMissing, "get reactions")
		}
		ids = append(ids, humanIDs(users)...)
		if len(users) < reactionPageSize {
			return ids, nil
		}
		after = int(users[len(users)-1].ID)
	}
}

func (c *Client) ResolveMember(ctx context.Context, guildID, userID snowflake.ID) (*models.Member, error) {
	if m, ok := c.bot.Caches.Member(guildID, userID); ok {
		return toMember(m), nil
	}
	m, err := c.bot.Rest.GetMember(guildID, userID, rest.WithCtx(ctx))
	if err != nil {
		return nil, classify(err, service.ErrMemberNotFound, "get member")
	}
	return toMember(*m), nil
}

func (c *Client) VoiceOccupants(_ context.Context, guildID snowflake.ID) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	for state := range c.bot.Caches.VoiceStates(guildID) {
		if state.ChannelID == nil {
			continue
		}
		if m, ok := c.bot.Caches.Member(guildID, state.UserID); ok && m.User.Bot {
			continue
		}
		ids = append(ids, state.UserID)
	}
	return ids, nil
}

func (c *Client) SendNotification(ctx context.Context, channelID snowflake.ID, content string) error {
	_, err := c.bot.Rest.CreateMessage(channelID,
		discord.NewMessageCreate().WithContent(content),
		rest.WithCtx(ctx))
	if err != nil {
		return classify(err, service.ErrMessageMissing, "send notification")
	}
	return nil
}

func announcementCreate(a models.Announcement) discord.MessageCreate {
	return discord.NewMessageCreate().WithEmbeds(buildEmbed(a))
}

func announcementUpdate(a models.Announcement) discord.MessageUpdate {
	return discord.NewMessageUpdate().WithEmbeds(buildEmbed(a))
}

func buildEmbed(a models.Announcement) discord.Embed {
	b := discord.NewEmbedBuilder().
		SetTitle(a.Title).
		SetDescription(a.Description).
		SetColor(a.Color)
	if a.ImageURL != "" {
		b.SetImage(a.ImageURL)
	}
	if a.Footer != "" {
		b.SetFooterText(a.Footer)
	}
	return b.Build()
}

// reactionKey renders an emoji the way the reactions endpoint expects it.
func reactionKey(e discord.Emoji) string {
	if e.ID != 0 {
		return e.Name + ":" + e.ID.String()
	}
	return e.Name
}

func hasReaction(reactions []discord.MessageReaction, emoji string) bool {
	for _, r := range reactions {
		if reactionKey(r.Emoji) == emoji && r.Count > 0 {
			return true
		}
	}
	return false
}

func humanIDs(users []discord.User) []snowflake.ID {
	ids := make([]snowflake.ID, 0, len(users))
	for _, u := range users {
		if !u.Bot {
			ids = append(ids, u.ID)
		}
	}
	return ids
}

func toMember(m discord.Member) *models.Member {
	display := m.User.Username
	if m.User.GlobalName != nil {
		display = *m.User.GlobalName
	}
	if m.Nick != nil {
		display = *m.Nick
	}
	return &models.Member{
		UserID:      m.User.ID,
		Username:    m.User.Username,
		DisplayName: display,
		Bot:         m.User.Bot,
	}
}

// classify maps a 404 from Discord to missing and wraps everything else.
func classify(err error, missing error, op string) error {
	var restErr *rest.Error
	if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
		return missing
	}
	return apperrors.NewDiscordAPIError(op, err)
}
