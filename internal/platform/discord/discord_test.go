package discord

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/roblox669900-cpu/giveaway-bot/internal/common/errors"
	"github.com/roblox669900-cpu/giveaway-bot/internal/features/engagement"
	"github.com/roblox669900-cpu/giveaway-bot/internal/features/giveaway/models"
	"github.com/roblox669900-cpu/giveaway-bot/internal/features/giveaway/service"
)

type fakeEngine struct {
	started   []service.CreateRequest
	cancelled []int64
	forced    map[int64]snowflake.ID
	active    []*models.Giveaway
	rerollErr error
}

func (f *fakeEngine) Start(_ context.Context, req service.CreateRequest) (*models.Giveaway, error) {
	f.started = append(f.started, req)
	return &models.Giveaway{ID: int64(len(f.started))}, nil
}

func (f *fakeEngine) Cancel(_ context.Context, _ snowflake.ID, id int64) (*models.Giveaway, error) {
	f.cancelled = append(f.cancelled, id)
	return &models.Giveaway{ID: id, Status: models.StatusCancelled}, nil
}

func (f *fakeEngine) Reroll(_ context.Context, _ snowflake.ID, id int64) (snowflake.ID, error) {
	if f.rerollErr != nil {
		return 0, f.rerollErr
	}
	return 77, nil
}

func (f *fakeEngine) SetForcedWinner(_ context.Context, _ snowflake.ID, id int64, userID snowflake.ID) error {
	if f.forced == nil {
		f.forced = map[int64]snowflake.ID{}
	}
	f.forced[id] = userID
	return nil
}

func (f *fakeEngine) ListActive(_ context.Context, _ snowflake.ID) ([]*models.Giveaway, error) {
	return f.active, nil
}

func (f *fakeEngine) EntryEmoji() string { return "🎉" }

func newCommands(engine Engine, admins ...string) *Commands {
	return NewCommands(engine, admins, zerolog.New(io.Discard))
}

func inv(name string) invocation {
	return invocation{
		name:      name,
		guildID:   1,
		channelID: 2,
		userID:    3,
		manager:   true,
		strings:   map[string]string{},
		ints:      map[string]int{},
		users:     map[string]snowflake.ID{},
	}
}

func TestDispatchGiveaway(t *testing.T) {
	engine := &fakeEngine{}
	c := newCommands(engine)

	in := inv("giveaway")
	in.strings["duration"] = "2h"
	in.strings["prize"] = "Nitro"
	in.strings["voice"] = "30m"
	in.ints["winners"] = 2
	in.ints["messages"] = 10

	out := c.dispatch(context.Background(), in)

	assert.Equal(t, "✅ Giveaway 1 started.", out)
	require.Len(t, engine.started, 1)
	req := engine.started[0]
	assert.Equal(t, 2*time.Hour, req.Duration)
	assert.Equal(t, 2, req.WinnerCount)
	assert.Equal(t, models.Thresholds{Messages: 10, VoiceMinutes: 30}, req.Requirements)
	assert.Equal(t, snowflake.ID(2), req.ChannelID)
	assert.Equal(t, snowflake.ID(3), req.HostID)
}

func TestDispatchGiveawayInvalidDuration(t *testing.T) {
	engine := &fakeEngine{}
	in := inv("giveaway")
	in.strings["duration"] = "10x"
	in.strings["prize"] = "Nitro"
	in.ints["winners"] = 1

	out := newCommands(engine).dispatch(context.Background(), in)

	assert.Contains(t, out, "Invalid duration")
	assert.Empty(t, engine.started)
}

func TestDispatchRequiresManager(t *testing.T) {
	engine := &fakeEngine{}
	in := inv("gcancel")
	in.manager = false
	in.ints["id"] = 4

	out := newCommands(engine).dispatch(context.Background(), in)
	assert.Contains(t, out, "Manage Server")
	assert.Empty(t, engine.cancelled)

	out = newCommands(engine, "3").dispatch(context.Background(), in)
	assert.Equal(t, "🛑 Giveaway 4 cancelled.", out)
	assert.Equal(t, []int64{4}, engine.cancelled)
}

func TestDispatchOpenCommands(t *testing.T) {
	now := time.Now()
	engine := &fakeEngine{active: []*models.Giveaway{
		{ID: 5, Prize: "Nitro", WinnerCount: 1, EndsAt: now.Add(90 * time.Minute)},
	}}
	c := newCommands(engine)
	c.now = func() time.Time { return now }

	in := inv("glist")
	in.manager = false
	assert.Contains(t, c.dispatch(context.Background(), in), "`#5` **Nitro** ends in 1h 30m")

	in.name = "ghelp"
	assert.Contains(t, c.dispatch(context.Background(), in), "React 🎉 to enter")
}

func TestDispatchRerollAndSetWinner(t *testing.T) {
	engine := &fakeEngine{}
	c := newCommands(engine)

	in := inv("reroll")
	in.ints["id"] = 9
	assert.Equal(t, service.RerollMessage(9, 77), c.dispatch(context.Background(), in))

	engine.rerollErr = apperrors.NewGiveawayNotFoundError(9)
	assert.Equal(t, "❌ Giveaway not found.", c.dispatch(context.Background(), in))

	in = inv("setwinner")
	in.ints["id"] = 9
	in.users["user"] = 42
	assert.Equal(t, "✅ Winner set for giveaway 9.", c.dispatch(context.Background(), in))
	assert.Equal(t, snowflake.ID(42), engine.forced[9])
}

func TestDispatchUnknown(t *testing.T) {
	out := newCommands(&fakeEngine{}).dispatch(context.Background(), inv("nope"))
	assert.Contains(t, out, "unknown command")
}

func TestNewCommandsSkipsBadAdminIDs(t *testing.T) {
	c := newCommands(&fakeEngine{}, "12", " 34 ", "abc", "")
	assert.Len(t, c.admins, 2)
	assert.Contains(t, c.admins, snowflake.ID(34))
}

func TestListTextEmpty(t *testing.T) {
	assert.Equal(t, "No active giveaways.", listText(nil, time.Now()))
}

func TestErrorText(t *testing.T) {
	assert.Equal(t, "❌ No one is entered to draw from.", errorText(apperrors.NewNoParticipantsError(1)))
	assert.Equal(t, "❌ Something went wrong.", errorText(errors.New("boom")))
	assert.Equal(t, "❌ Something went wrong.", errorText(apperrors.NewStoreError("x", errors.New("boom"))))
	assert.Contains(t, errorText(apperrors.NewConflictError("giveaway", "it is already being resolved")), "already being resolved")
}

func TestDefinitions(t *testing.T) {
	names := map[string]bool{}
	for _, cmd := range Definitions() {
		names[cmd.CommandName()] = true
	}
	for _, name := range []string{"giveaway", "reroll", "setwinner", "gcancel", "glist", "ghelp"} {
		assert.True(t, names[name], name)
	}
}

func TestEventFeed(t *testing.T) {
	trackers := engagement.NewRegistry()
	tracker := trackers.Open(1, 10)
	other := trackers.Open(2, 20)

	feed := NewEventFeed(trackers, zerolog.New(io.Discard))
	start := time.Now()
	feed.now = func() time.Time { return start }

	feed.message(1, 5)
	feed.message(1, 5)

	ch := snowflake.ID(100)
	feed.voice(1, 5, nil, &ch)
	feed.now = func() time.Time { return start.Add(3 * time.Minute) }
	feed.voice(1, 5, &ch, nil)

	msgs, voice := tracker.Snapshot(5)
	assert.Equal(t, 2, msgs)
	assert.InDelta(t, 3.0, voice, 0.001)

	msgs, voice = other.Snapshot(5)
	assert.Zero(t, msgs)
	assert.Zero(t, voice)
}

func TestEventFeedIgnoresChannelMoves(t *testing.T) {
	trackers := engagement.NewRegistry()
	tracker := trackers.Open(1, 10)
	feed := NewEventFeed(trackers, zerolog.New(io.Discard))
	start := time.Now()
	feed.now = func() time.Time { return start }

	a, b := snowflake.ID(100), snowflake.ID(200)
	feed.voice(1, 5, nil, &a)
	feed.voice(1, 5, &a, &b)
	feed.now = func() time.Time { return start.Add(10 * time.Minute) }
	feed.voice(1, 5, &b, nil)

	_, voice := tracker.Snapshot(5)
	assert.InDelta(t, 10.0, voice, 0.001)
}

func TestBuildEmbed(t *testing.T) {
	e := buildEmbed(models.Announcement{Title: "T", Description: "D", Color: 0xF1C40F, ImageURL: "https://x/y.png", Footer: "F"})
	assert.Equal(t, "T", e.Title)
	assert.Equal(t, "D", e.Description)
	require.NotNil(t, e.Image)
	assert.Equal(t, "https://x/y.png", e.Image.URL)
	require.NotNil(t, e.Footer)
	assert.Equal(t, "F", e.Footer.Text)

	bare := buildEmbed(models.Announcement{Title: "T"})
	assert.Nil(t, bare.Image)
	assert.Nil(t, bare.Footer)
}

func TestAnnouncementMessages(t *testing.T) {
	a := models.Announcement{Title: "T", Description: "D"}

	create := announcementCreate(a)
	require.Len(t, create.Embeds, 1)
	assert.Equal(t, "T", create.Embeds[0].Title)
	assert.Empty(t, create.Content)

	update := announcementUpdate(a)
	require.NotNil(t, update.Embeds)
	require.Len(t, *update.Embeds, 1)
	assert.Equal(t, "D", (*update.Embeds)[0].Description)
	assert.Nil(t, update.Content)
}

func TestReactionHelpers(t *testing.T) {
	reactions := []discord.MessageReaction{
		{Count: 2, Emoji: discord.Emoji{Name: "🎉"}},
		{Count: 1, Emoji: discord.Emoji{Name: "party", ID: 55}},
	}
	assert.True(t, hasReaction(reactions, "🎉"))
	assert.True(t, hasReaction(reactions, "party:55"))
	assert.False(t, hasReaction(reactions, "🔥"))

	ids := humanIDs([]discord.User{{ID: 1}, {ID: 2, Bot: true}, {ID: 3}})
	assert.Equal(t, []snowflake.ID{1, 3}, ids)
}

func TestToMember(t *testing.T) {
	global, nick := "Global", "Nick"
	m := toMember(discord.Member{User: discord.User{ID: 1, Username: "user", GlobalName: &global}})
	assert.Equal(t, "Global", m.DisplayName)

	m = toMember(discord.Member{User: discord.User{ID: 1, Username: "user", GlobalName: &global}, Nick: &nick})
	assert.Equal(t, "Nick", m.DisplayName)
	assert.Equal(t, "user", m.Username)
}

func TestClassify(t *testing.T) {
	notFound := &rest.Error{Response: &http.Response{StatusCode: http.StatusNotFound}}
	assert.ErrorIs(t, classify(notFound, service.ErrMessageMissing, "edit"), service.ErrMessageMissing)

	forbidden := &rest.Error{Response: &http.Response{StatusCode: http.StatusForbidden}}
	err := classify(forbidden, service.ErrMessageMissing, "edit")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeDiscordAPI))

	err = classify(errors.New("dial tcp: timeout"), service.ErrMessageMissing, "edit")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeDiscordAPI))
}
