package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/omit"
	"github.com/disgoorg/snowflake/v2"
	"github.com/rs/zerolog"

	apperrors "github.com/roblox669900-cpu/giveaway-bot/internal/common/errors"
	"github.com/roblox669900-cpu/giveaway-bot/internal/features/giveaway/models"
	"github.com/roblox669900-cpu/giveaway-bot/internal/features/giveaway/service"
	"github.com/roblox669900-cpu/giveaway-bot/internal/metrics"
	"github.com/roblox669900-cpu/giveaway-bot/internal/utils/duration"
)

const commandTimeout = 30 * time.Second

// Engine is the part of the giveaway engine driven by slash commands.
type Engine interface {
	Start(ctx context.Context, req service.CreateRequest) (*models.Giveaway, error)
	Cancel(ctx context.Context, guildID snowflake.ID, id int64) (*models.Giveaway, error)
	Reroll(ctx context.Context, guildID snowflake.ID, id int64) (snowflake.ID, error)
	SetForcedWinner(ctx context.Context, guildID snowflake.ID, id int64, userID snowflake.ID) error
	ListActive(ctx context.Context, guildID snowflake.ID) ([]*models.Giveaway, error)
	EntryEmoji() string
}

// Definitions lists the slash commands. Mutating commands default to
// members with Manage Server; ADMIN_IDS are let through at dispatch.
func Definitions() []discord.ApplicationCommandCreate {
	manage := discord.PermissionManageGuild
	guildOnly := []discord.InteractionContextType{discord.InteractionContextTypeGuild}
	idOption := discord.ApplicationCommandOptionInt{
		Name:        "id",
		Description: "Giveaway ID",
		Required:    true,
	}

	return []discord.ApplicationCommandCreate{
		discord.SlashCommandCreate{
			Name:                     "giveaway",
			Description:              "Start a giveaway",
			DefaultMemberPermissions: omit.New(&manage),
			Contexts:                 guildOnly,
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{Name: "duration", Description: "How long it runs, e.g. 10m, 2h, 1d", Required: true},
				discord.ApplicationCommandOptionInt{Name: "winners", Description: "Number of winners", Required: true},
				discord.ApplicationCommandOptionString{Name: "prize", Description: "What is being given away", Required: true},
				discord.ApplicationCommandOptionInt{Name: "messages", Description: "Messages needed to qualify"},
				discord.ApplicationCommandOptionString{Name: "voice", Description: "Voice time needed to qualify, e.g. 30m (0 for none)"},
				discord.ApplicationCommandOptionString{Name: "image", Description: "Image URL for the announcement"},
			},
		},
		discord.SlashCommandCreate{
			Name:                     "reroll",
			Description:              "Draw a new winner for an ended giveaway",
			DefaultMemberPermissions: omit.New(&manage),
			Contexts:                 guildOnly,
			Options:                  []discord.ApplicationCommandOption{idOption},
		},
		discord.SlashCommandCreate{
			Name:                     "setwinner",
			Description:              "Pick the winner of a running giveaway",
			DefaultMemberPermissions: omit.New(&manage),
			Contexts:                 guildOnly,
			Options: []discord.ApplicationCommandOption{
				idOption,
				discord.ApplicationCommandOptionUser{Name: "user", Description: "Member to win", Required: true},
			},
		},
		discord.SlashCommandCreate{
			Name:                     "gcancel",
			Description:              "Cancel a running giveaway",
			DefaultMemberPermissions: omit.New(&manage),
			Contexts:                 guildOnly,
			Options:                  []discord.ApplicationCommandOption{idOption},
		},
		discord.SlashCommandCreate{
			Name:        "glist",
			Description: "List running giveaways",
			Contexts:    guildOnly,
		},
		discord.SlashCommandCreate{
			Name:        "ghelp",
			Description: "How giveaways work",
		},
	}
}

// invocation is a slash command stripped of its transport.
type invocation struct {
	name      string
	guildID   snowflake.ID
	channelID snowflake.ID
	userID    snowflake.ID
	manager   bool
	strings   map[string]string
	ints      map[string]int
	users     map[string]snowflake.ID
}

// Commands dispatches slash commands to the engine.
type Commands struct {
	engine Engine
	admins map[snowflake.ID]struct{}
	logger zerolog.Logger
	now    func() time.Time
}

// NewCommands parses adminIDs; entries that are not snowflakes are
// reported and skipped.
func NewCommands(engine Engine, adminIDs []string, logger zerolog.Logger) *Commands {
	admins := make(map[snowflake.ID]struct{}, len(adminIDs))
	for _, raw := range adminIDs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id, err := snowflake.Parse(raw)
		if err != nil {
			logger.Warn().Str("admin_id", raw).Msg("Ignoring invalid admin id")
			continue
		}
		admins[id] = struct{}{}
	}
	return &Commands{engine: engine, admins: admins, logger: logger, now: time.Now}
}

func (c *Commands) authorized(inv invocation) bool {
	if inv.manager {
		return true
	}
	_, ok := c.admins[inv.userID]
	return ok
}

// OnInteraction handles application command interactions.
func (c *Commands) OnInteraction(event *events.ApplicationCommandInteractionCreate) {
	data := event.SlashCommandInteractionData()
	inv := invocation{
		name:      data.CommandName(),
		channelID: event.Channel().ID(),
		userID:    event.User().ID,
		strings:   map[string]string{},
		ints:      map[string]int{},
		users:     map[string]snowflake.ID{},
	}
	if guildID := event.GuildID(); guildID != nil {
		inv.guildID = *guildID
	}
	if member := event.Member(); member != nil {
		inv.manager = member.Permissions.Has(discord.PermissionManageGuild)
	}
	for _, name := range []string{"duration", "prize", "voice", "image"} {
		if v, ok := data.OptString(name); ok {
			inv.strings[name] = v
		}
	}
	for _, name := range []string{"winners", "messages", "id"} {
		if v, ok := data.OptInt(name); ok {
			inv.ints[name] = v
		}
	}
	if u, ok := data.OptUser("user"); ok {
		inv.users["user"] = u.ID
	}

	// Starting a giveaway and rerolling call Discord before they can answer.
	// Only reroll results are public.
	if err := event.DeferCreateMessage(inv.name != "reroll"); err != nil {
		c.logger.Warn().Err(err).Str("command", inv.name).Msg("Failed to defer interaction")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	content := c.dispatch(ctx, inv)
	_, err := event.Client().Rest.UpdateInteractionResponse(event.ApplicationID(), event.Token(),
		discord.NewMessageUpdate().WithContent(content))
	if err != nil {
		c.logger.Warn().Err(err).Str("command", inv.name).Msg("Failed to answer interaction")
	}
}

// dispatch runs an invocation and returns the text to answer with.
func (c *Commands) dispatch(ctx context.Context, inv invocation) string {
	var (
		r   string
		err error
	)
	switch inv.name {
	case "ghelp":
		r = service.HelpText(c.engine.EntryEmoji())
	case "glist":
		r, err = c.list(ctx, inv)
	case "giveaway", "reroll", "setwinner", "gcancel":
		if !c.authorized(inv) {
			err = apperrors.NewForbiddenError("you need Manage Server to do that")
			break
		}
		r, err = c.mutate(ctx, inv)
	default:
		err = apperrors.NewValidationError("command", "unknown command "+inv.name)
	}

	metrics.RecordCommand(inv.name, err == nil)
	if err != nil {
		c.logger.Info().Err(err).Str("command", inv.name).Str("user", inv.userID.String()).Msg("Command failed")
		return errorText(err)
	}
	return r
}

func (c *Commands) mutate(ctx context.Context, inv invocation) (string, error) {
	id := int64(inv.ints["id"])

	switch inv.name {
	case "giveaway":
		req, err := service.ParseCreateCommand(service.CreateCommand{
			GuildID:   inv.guildID,
			ChannelID: inv.channelID,
			HostID:    inv.userID,
			Duration:  inv.strings["duration"],
			Winners:   inv.ints["winners"],
			Messages:  inv.ints["messages"],
			Voice:     inv.strings["voice"],
			Prize:     inv.strings["prize"],
			ImageURL:  inv.strings["image"],
		})
		if err != nil {
			return "", err
		}
		g, err := c.engine.Start(ctx, req)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("✅ Giveaway %d started.", g.ID), nil

	case "reroll":
		winner, err := c.engine.Reroll(ctx, inv.guildID, id)
		if err != nil {
			return "", err
		}
		return service.RerollMessage(id, winner), nil

	case "setwinner":
		if err := c.engine.SetForcedWinner(ctx, inv.guildID, id, inv.users["user"]); err != nil {
			return "", err
		}
		return fmt.Sprintf("✅ Winner set for giveaway %d.", id), nil

	default:
		if _, err := c.engine.Cancel(ctx, inv.guildID, id); err != nil {
			return "", err
		}
		return fmt.Sprintf("🛑 Giveaway %d cancelled.", id), nil
	}
}

func (c *Commands) list(ctx context.Context, inv invocation) (string, error) {
	active, err := c.engine.ListActive(ctx, inv.guildID)
	if err != nil {
		return "", err
	}
	return listText(active, c.now()), nil
}

func listText(active []*models.Giveaway, now time.Time) string {
	if len(active) == 0 {
		return "No active giveaways."
	}
	var b strings.Builder
	b.WriteString("**Active giveaways**")
	for _, g := range active {
		left := int64(g.Remaining(now) / time.Second)
		fmt.Fprintf(&b, "\n`#%d` **%s** ends in %s (%d winner(s))",
			g.ID, g.Prize, duration.FormatRemaining(left), g.WinnerCount)
	}
	return b.String()
}

// errorText is the user-facing message for a failed command.
func errorText(err error) string {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		return "❌ Something went wrong."
	}
	switch {
	case appErr.Code == apperrors.ErrCodeGiveawayNotFound:
		return "❌ Giveaway not found."
	case appErr.Code == apperrors.ErrCodeNoParticipants:
		return "❌ No one is entered to draw from."
	case appErr.Code == apperrors.ErrCodeInvalidDuration:
		return "❌ Invalid duration. Use a number followed by m, h or d, e.g. 10m."
	case appErr.IsValidation(), appErr.Code == apperrors.ErrCodeForbidden,
		appErr.Code == apperrors.ErrCodeConflict, appErr.Code == apperrors.ErrCodeNotFound:
		return "❌ " + appErr.Message
	case errors.Is(err, context.DeadlineExceeded):
		return "❌ Discord took too long to answer, try again."
	}
	return "❌ Something went wrong."
}
