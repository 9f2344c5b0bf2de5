package discord

import (
	"context"
	"fmt"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/cache"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/rs/zerolog"

	"github.com/roblox669900-cpu/giveaway-bot/internal/common/config"
	"github.com/roblox669900-cpu/giveaway-bot/internal/common/logger"
	"github.com/roblox669900-cpu/giveaway-bot/internal/features/engagement"
)

// Bot owns the gateway connection and its listeners.
type Bot struct {
	client   *bot.Client
	chat     *Client
	feed     *EventFeed
	commands *Commands
	devGuild snowflake.ID
	logger   zerolog.Logger
}

// New builds the disgo client. Commands are dispatched once an engine is
// attached with Attach.
func New(cfg *config.Config, trackers *engagement.Registry) (*Bot, error) {
	log := logger.Component("discord")

	b := &Bot{
		feed:     NewEventFeed(trackers, log),
		commands: NewCommands(nil, cfg.Discord.AdminIDs, log),
		logger:   log,
	}
	if cfg.Discord.GuildID != "" {
		id, err := snowflake.Parse(cfg.Discord.GuildID)
		if err != nil {
			return nil, fmt.Errorf("parse GUILD_ID: %w", err)
		}
		b.devGuild = id
	}

	client, err := disgo.New(cfg.Discord.Token,
		bot.WithGatewayConfigOpts(
			gateway.WithIntents(
				gateway.IntentGuilds,
				gateway.IntentGuildMessages,
				gateway.IntentGuildMembers,
				gateway.IntentGuildMessageReactions,
				gateway.IntentGuildVoiceStates,
			),
		),
		bot.WithCacheConfigOpts(
			cache.WithCaches(cache.FlagGuilds, cache.FlagMembers, cache.FlagChannels, cache.FlagVoiceStates),
		),
		bot.WithEventListenerFunc(b.feed.OnReady),
		bot.WithEventListenerFunc(b.feed.OnMessageCreate),
		bot.WithEventListenerFunc(b.feed.OnVoiceStateUpdate),
		bot.WithEventListenerFunc(b.commands.OnInteraction),
	)
	if err != nil {
		return nil, fmt.Errorf("create discord client: %w", err)
	}

	b.client = client
	b.chat = NewClient(client, cfg.Discord.EditRate, cfg.Discord.EditBurst)
	return b, nil
}

// Chat is the engine's view of Discord.
func (b *Bot) Chat() *Client {
	return b.chat
}

func (b *Bot) Attach(engine Engine) {
	b.commands.engine = engine
}

// Open registers the slash commands and connects to the gateway. Commands
// go to the dev guild when one is configured, globally otherwise.
func (b *Bot) Open(ctx context.Context) error {
	if b.commands.engine == nil {
		return fmt.Errorf("no engine attached")
	}

	var err error
	if b.devGuild != 0 {
		_, err = b.client.Rest.SetGuildCommands(b.client.ApplicationID, b.devGuild, Definitions(), rest.WithCtx(ctx))
	} else {
		_, err = b.client.Rest.SetGlobalCommands(b.client.ApplicationID, Definitions(), rest.WithCtx(ctx))
	}
	if err != nil {
		return fmt.Errorf("register commands: %w", err)
	}
	b.logger.Info().Int("commands", len(Definitions())).Bool("dev_guild", b.devGuild != 0).Msg("Commands registered")

	if err := b.client.OpenGateway(ctx); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}
	return nil
}

func (b *Bot) Close(ctx context.Context) {
	b.client.Close(ctx)
}
