package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/roblox669900-cpu/giveaway-bot/internal/common/errors"
	"github.com/roblox669900-cpu/giveaway-bot/internal/features/engagement"
	"github.com/roblox669900-cpu/giveaway-bot/internal/features/giveaway/models"
	"github.com/roblox669900-cpu/giveaway-bot/internal/features/giveaway/repository"
	"github.com/roblox669900-cpu/giveaway-bot/internal/features/giveaway/repository/memory"
	"github.com/roblox669900-cpu/giveaway-bot/internal/utils/random"
)

const (
	guildID   = snowflake.ID(1)
	channelID = snowflake.ID(2)
	hostID    = snowflake.ID(3)
	userA     = snowflake.ID(100)
	userB     = snowflake.ID(200)
	userC     = snowflake.ID(300)
)

type harness struct {
	engine   *Engine
	repo     repository.GiveawayRepository
	chat     *fakeChat
	trackers *engagement.Registry
	outcomes chan models.Outcome
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	return newHarnessWithRepo(t, memory.New(), opts...)
}

func newHarnessWithRepo(t *testing.T, repo repository.GiveawayRepository, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		repo:     repo,
		chat:     newFakeChat(),
		trackers: engagement.NewRegistry(),
		outcomes: make(chan models.Outcome, 16),
	}
	base := []Option{
		WithRefreshInterval(10 * time.Millisecond),
		WithRetryBackoff(time.Millisecond, 5*time.Millisecond),
		WithSource(random.NewSeeded(1)),
		WithOutcomeHook(func(o models.Outcome) { h.outcomes <- o }),
	}
	h.engine = NewEngine(h.repo, h.chat, h.trackers, append(base, opts...)...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = h.engine.Shutdown(ctx)
	})
	return h
}

func (h *harness) start(t *testing.T, d time.Duration, winners int, th models.Thresholds) *models.Giveaway {
	t.Helper()
	g, err := h.engine.Start(context.Background(), CreateRequest{
		GuildID:      guildID,
		ChannelID:    channelID,
		HostID:       hostID,
		Duration:     d,
		WinnerCount:  winners,
		Requirements: th,
		Prize:        "X",
	})
	require.NoError(t, err)
	return g
}

func (h *harness) waitOutcome(t *testing.T) models.Outcome {
	t.Helper()
	select {
	case o := <-h.outcomes:
		return o
	case <-time.After(3 * time.Second):
		t.Fatal("giveaway was not resolved")
		return models.Outcome{}
	}
}

func TestScenarioMessageRequirement(t *testing.T) {
	h := newHarness(t)
	g := h.start(t, 80*time.Millisecond, 1, models.Thresholds{Messages: 2})

	assert.Equal(t, int64(1), g.ID)
	assert.Equal(t, models.StatusCounting, g.Status)

	h.trackers.RecordMessage(guildID, userA)
	h.trackers.RecordMessage(guildID, userA)
	h.chat.setReactors(g.Message.MessageID, userA, userB)

	o := h.waitOutcome(t)
	assert.Equal(t, models.StatusCompleted, o.Status)
	assert.Equal(t, []snowflake.ID{userA}, o.Winners)
	require.Len(t, o.Participants, 2)

	sent := h.chat.sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0], "GIVEAWAY ENDED")
	assert.Contains(t, sent[0], Mention(userA))
	assert.NotContains(t, sent[0], Mention(userB))

	_, err := h.repo.GetByID(context.Background(), g.ID)
	assert.ErrorIs(t, err, repository.ErrGiveawayNotFound)

	archived, err := h.repo.GetArchived(context.Background(), g.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, archived.Status)
	assert.Equal(t, []snowflake.ID{userA}, archived.Winners)

	_, open := h.trackers.Get(guildID, g.ID)
	assert.False(t, open)
	assert.Zero(t, h.engine.Running())
}

func TestStartPostsAnnouncementWithReaction(t *testing.T) {
	h := newHarness(t)
	g := h.start(t, time.Hour, 2, models.Thresholds{})

	edits := h.chat.edits(g.Message.MessageID)
	require.NotEmpty(t, edits)
	assert.Contains(t, edits[0].Description, "Giveaway ID:** 1")
	assert.Contains(t, edits[0].Description, "1h")
	assert.Equal(t, []string{DefaultEntryEmoji}, h.chat.reactions[g.Message.MessageID])

	stored, err := h.repo.GetByID(context.Background(), g.ID)
	require.NoError(t, err)
	assert.Equal(t, g.Message, stored.Message)
	assert.Equal(t, 1, h.engine.Running())
}

func TestNoReactionAborts(t *testing.T) {
	h := newHarness(t)
	g := h.start(t, 30*time.Millisecond, 1, models.Thresholds{})
	h.chat.setReactorsErr(g.Message.MessageID, ErrReactionMissing)

	o := h.waitOutcome(t)
	assert.Equal(t, models.StatusAborted, o.Status)
	assert.Empty(t, o.Winners)
	assert.Equal(t, models.AbortReasonReactionMissing, o.Reason)

	sent := h.chat.sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0], "cancelled")

	_, err := h.repo.GetByID(context.Background(), g.ID)
	assert.ErrorIs(t, err, repository.ErrGiveawayNotFound)
}

func TestDeletedMessageAborts(t *testing.T) {
	h := newHarness(t)
	g := h.start(t, 30*time.Millisecond, 1, models.Thresholds{})
	h.chat.setReactorsErr(g.Message.MessageID, fmt.Errorf("fetch: %w", ErrMessageMissing))

	o := h.waitOutcome(t)
	assert.Equal(t, models.StatusAborted, o.Status)
	assert.Equal(t, models.AbortReasonReactionMissing, o.Reason)
}

func TestNoEligibleAborts(t *testing.T) {
	h := newHarness(t)
	g := h.start(t, 30*time.Millisecond, 1, models.Thresholds{Messages: 5, VoiceMinutes: 10})
	h.trackers.RecordMessage(guildID, userA)
	h.chat.setReactors(g.Message.MessageID, userA, userB)

	o := h.waitOutcome(t)
	assert.Equal(t, models.StatusAborted, o.Status)
	assert.Equal(t, models.AbortReasonNoEligible, o.Reason)
	assert.Len(t, o.Participants, 2)

	sent := h.chat.sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0], "No one met the giveaway requirements")
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestAbortIsLoggedWithReason(t *testing.T) {
	var out syncBuffer
	h := newHarness(t, WithLogger(zerolog.New(&out)))
	g := h.start(t, 30*time.Millisecond, 1, models.Thresholds{Messages: 5})
	h.chat.setReactors(g.Message.MessageID, userA)

	o := h.waitOutcome(t)
	assert.Equal(t, models.StatusAborted, o.Status)

	logged := out.String()
	assert.Contains(t, logged, string(apperrors.ErrCodeResolutionAborted))
	assert.Contains(t, logged, models.AbortReasonNoEligible)
}

func TestTransientFetchFailureIsRetried(t *testing.T) {
	h := newHarness(t, WithResolveRetries(3))
	h.chat.fetchFailures = 2
	g := h.start(t, 30*time.Millisecond, 1, models.Thresholds{})
	h.chat.setReactors(g.Message.MessageID, userA)

	o := h.waitOutcome(t)
	assert.Equal(t, models.StatusCompleted, o.Status)
	assert.Equal(t, 3, h.chat.fetchCalls)
}

func TestPersistentFetchFailureAborts(t *testing.T) {
	h := newHarness(t, WithResolveRetries(2))
	h.chat.fetchFailures = 10
	h.start(t, 30*time.Millisecond, 1, models.Thresholds{})

	o := h.waitOutcome(t)
	assert.Equal(t, models.StatusAborted, o.Status)
	assert.Equal(t, models.AbortReasonFetchFailed, o.Reason)
}

func TestRefreshFailureIsSwallowed(t *testing.T) {
	h := newHarness(t)
	h.chat.editErr = errors.New("unknown message")
	g := h.start(t, 100*time.Millisecond, 1, models.Thresholds{})
	h.chat.setReactors(g.Message.MessageID, userA)

	o := h.waitOutcome(t)
	assert.Equal(t, models.StatusCompleted, o.Status)
	assert.Equal(t, []snowflake.ID{userA}, o.Winners)
}

func TestCountdownRefreshesAnnouncement(t *testing.T) {
	h := newHarness(t)
	g := h.start(t, time.Hour, 1, models.Thresholds{})

	require.Eventually(t, func() bool {
		return len(h.chat.edits(g.Message.MessageID)) >= 3
	}, 2*time.Second, 5*time.Millisecond)

	// counters are persisted with each refresh
	_, err := h.repo.LoadCounters(context.Background(), g.ID)
	assert.NoError(t, err)
}

func TestVoicePresencePrimedAtStart(t *testing.T) {
	h := newHarness(t)
	h.chat.voice = []snowflake.ID{userC}
	g := h.start(t, 60*time.Millisecond, 1, models.Thresholds{VoiceMinutes: 0.0005})
	h.chat.setReactors(g.Message.MessageID, userB, userC)

	o := h.waitOutcome(t)
	assert.Equal(t, models.StatusCompleted, o.Status)
	assert.Equal(t, []snowflake.ID{userC}, o.Winners)
}

func TestOpenSessionsCreditedWhenVoiceUnreadable(t *testing.T) {
	h := newHarness(t)
	h.chat.voice = []snowflake.ID{userC}
	g := h.start(t, 60*time.Millisecond, 1, models.Thresholds{VoiceMinutes: 0.0005})
	h.chat.setReactors(g.Message.MessageID, userB, userC)
	h.chat.setVoiceErr(errors.New("cache unavailable"))

	o := h.waitOutcome(t)
	assert.Equal(t, models.StatusCompleted, o.Status)
	assert.Equal(t, []snowflake.ID{userC}, o.Winners)
	require.Len(t, o.Participants, 2)
	for _, p := range o.Participants {
		if p.UserID == userC {
			assert.Greater(t, p.VoiceMinutes, 0.0005)
		}
	}
}

func TestForcedWinnerEligible(t *testing.T) {
	h := newHarness(t)
	h.chat.members[userB] = true
	g := h.start(t, 60*time.Millisecond, 3, models.Thresholds{})
	h.chat.setReactors(g.Message.MessageID, userA, userB, userC)

	require.NoError(t, h.engine.SetForcedWinner(context.Background(), guildID, g.ID, userB))

	o := h.waitOutcome(t)
	assert.Equal(t, []snowflake.ID{userB}, o.Winners)
}

func TestForcedWinnerIneligibleFallsBack(t *testing.T) {
	h := newHarness(t)
	h.chat.members[userB] = true
	g := h.start(t, 60*time.Millisecond, 1, models.Thresholds{Messages: 1})
	h.trackers.RecordMessage(guildID, userA)
	h.chat.setReactors(g.Message.MessageID, userA, userB)

	require.NoError(t, h.engine.SetForcedWinner(context.Background(), guildID, g.ID, userB))

	o := h.waitOutcome(t)
	assert.Equal(t, []snowflake.ID{userA}, o.Winners)
}

func TestForcedWinnerHonouredWhileReactorsLoad(t *testing.T) {
	h := newHarness(t)
	h.chat.members[userB] = true
	h.chat.fetchDelay = 100 * time.Millisecond
	g := h.start(t, 50*time.Millisecond, 1, models.Thresholds{})
	h.chat.setReactors(g.Message.MessageID, userA, userB, userC)

	require.NoError(t, h.engine.SetForcedWinner(context.Background(), guildID, g.ID, userB))

	o := h.waitOutcome(t)
	assert.Equal(t, []snowflake.ID{userB}, o.Winners)
}

func TestForcedWinnerRefusedOnceResolutionBegins(t *testing.T) {
	h := newHarness(t)
	h.chat.members[userB] = true
	h.chat.memberDelay = 120 * time.Millisecond
	h.chat.fetchDelay = 100 * time.Millisecond
	g := h.start(t, 50*time.Millisecond, 1, models.Thresholds{})
	h.chat.setReactors(g.Message.MessageID, userA, userB, userC)

	// the window closes while the member lookup is in flight
	err := h.engine.SetForcedWinner(context.Background(), guildID, g.ID, userB)
	o := h.waitOutcome(t)

	if err == nil {
		assert.Equal(t, []snowflake.ID{userB}, o.Winners, "an accepted override must decide the draw")
		return
	}
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeConflict))
	assert.Equal(t, models.StatusCompleted, o.Status)

	archived, err := h.repo.GetArchived(context.Background(), g.ID)
	require.NoError(t, err)
	assert.Nil(t, archived.ForcedWinner)
}

func TestSetForcedWinnerErrors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	err := h.engine.SetForcedWinner(ctx, guildID, 99, userA)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeGiveawayNotFound))

	g := h.start(t, time.Hour, 1, models.Thresholds{})
	err = h.engine.SetForcedWinner(ctx, guildID, g.ID, userA)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound), "not a guild member")

	h.chat.members[userA] = true
	err = h.engine.SetForcedWinner(ctx, snowflake.ID(999), g.ID, userA)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeGiveawayNotFound), "other guild")
}

func TestCancel(t *testing.T) {
	h := newHarness(t)
	g := h.start(t, time.Hour, 1, models.Thresholds{})

	cancelled, err := h.engine.Cancel(context.Background(), guildID, g.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)

	o := h.waitOutcome(t)
	assert.Equal(t, models.StatusCancelled, o.Status)
	assert.Nil(t, o.Participants)

	_, err = h.repo.GetByID(context.Background(), g.ID)
	assert.ErrorIs(t, err, repository.ErrGiveawayNotFound)
	assert.Zero(t, h.engine.Running())

	_, err = h.engine.Cancel(context.Background(), guildID, g.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeGiveawayNotFound))
}

func TestReroll(t *testing.T) {
	h := newHarness(t)
	g := h.start(t, 30*time.Millisecond, 1, models.Thresholds{Messages: 100})
	h.trackers.RecordMessage(guildID, userA)
	h.chat.setReactors(g.Message.MessageID, userA)

	// nobody qualifies, so the giveaway aborts and cannot be rerolled
	o := h.waitOutcome(t)
	require.Equal(t, models.StatusAborted, o.Status)
	_, err := h.engine.Reroll(context.Background(), guildID, g.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeGiveawayNotFound))

	_, err = h.engine.Reroll(context.Background(), guildID, 42)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeGiveawayNotFound))
}

func TestRerollIgnoresRequirements(t *testing.T) {
	h := newHarness(t)
	g := h.start(t, 30*time.Millisecond, 1, models.Thresholds{Messages: 2})
	h.trackers.RecordMessage(guildID, userA)
	h.trackers.RecordMessage(guildID, userA)
	h.chat.setReactors(g.Message.MessageID, userA)
	require.Equal(t, models.StatusCompleted, h.waitOutcome(t).Status)

	// userB has no messages but rerolls draw from raw reactors
	h.chat.setReactors(g.Message.MessageID, userB)
	winner, err := h.engine.Reroll(context.Background(), guildID, g.ID)
	require.NoError(t, err)
	assert.Equal(t, userB, winner)

	archived, err := h.repo.GetArchived(context.Background(), g.ID)
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{userB}, archived.Rerolls)

	h.chat.setReactors(g.Message.MessageID)
	_, err = h.engine.Reroll(context.Background(), guildID, g.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNoParticipants))

	h.chat.setReactorsErr(g.Message.MessageID, ErrReactionMissing)
	_, err = h.engine.Reroll(context.Background(), guildID, g.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNoParticipants))
}

func TestRerollSameSeedSameWinner(t *testing.T) {
	pick := func(seed uint64) snowflake.ID {
		h := newHarness(t, WithSource(random.NewSeeded(seed)))
		g := h.start(t, 20*time.Millisecond, 1, models.Thresholds{})
		h.chat.setReactors(g.Message.MessageID, userA, userB, userC)
		h.waitOutcome(t)

		w, err := h.engine.Reroll(context.Background(), guildID, g.ID)
		require.NoError(t, err)
		return w
	}
	assert.Equal(t, pick(9), pick(9))
}

func TestConcurrentGiveawaysAreIsolated(t *testing.T) {
	h := newHarness(t)

	first := h.start(t, 80*time.Millisecond, 2, models.Thresholds{Messages: 2})
	h.trackers.RecordMessage(guildID, userA)
	h.trackers.RecordMessage(guildID, userA)

	// starting a second giveaway must not reset the first one's counters,
	// and messages sent before it started do not count towards it
	second := h.start(t, 80*time.Millisecond, 2, models.Thresholds{Messages: 2})
	h.trackers.RecordMessage(guildID, userB)
	h.trackers.RecordMessage(guildID, userB)

	h.chat.setReactors(first.Message.MessageID, userA, userB)
	h.chat.setReactors(second.Message.MessageID, userA, userB)

	results := map[int64]models.Outcome{}
	for i := 0; i < 2; i++ {
		o := h.waitOutcome(t)
		results[o.GiveawayID] = o
	}

	assert.ElementsMatch(t, []snowflake.ID{userA, userB}, results[first.ID].Winners)
	assert.Equal(t, []snowflake.ID{userB}, results[second.ID].Winners)
}

func TestManyConcurrentGiveaways(t *testing.T) {
	h := newHarness(t, WithMaxConcurrentResolutions(2))
	const n = 8

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g := h.start(t, 40*time.Millisecond, 1, models.Thresholds{})
			h.chat.setReactors(g.Message.MessageID, userA)
		}()
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		assert.Equal(t, models.StatusCompleted, h.waitOutcome(t).Status)
	}
}

func TestStartRejectsInvalidInput(t *testing.T) {
	h := newHarness(t)

	_, err := h.engine.Start(context.Background(), CreateRequest{
		GuildID: guildID, ChannelID: channelID, Duration: time.Minute, WinnerCount: 0, Prize: "X",
	})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidWinners))

	list, err := h.repo.ListActive(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list, "nothing is created on invalid input")
}

func TestStartRemovesRecordWhenPostFails(t *testing.T) {
	h := newHarness(t)
	h.chat.postErr = errors.New("missing access")

	_, err := h.engine.Start(context.Background(), CreateRequest{
		GuildID: guildID, ChannelID: channelID, Duration: time.Minute, WinnerCount: 1, Prize: "X",
	})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeDiscordAPI))

	list, err := h.repo.ListActive(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Zero(t, h.trackers.Len())
}

type failingUpdateRepo struct {
	*memory.Store
}

func (r failingUpdateRepo) Update(context.Context, *models.Giveaway) error {
	return errors.New("disk full")
}

func TestStartCleansUpWhenStoreFailsAfterPost(t *testing.T) {
	h := newHarnessWithRepo(t, failingUpdateRepo{Store: memory.New()})

	_, err := h.engine.Start(context.Background(), CreateRequest{
		GuildID: guildID, ChannelID: channelID, Duration: time.Minute, WinnerCount: 1, Prize: "X",
	})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeStore))

	list, err := h.repo.ListActive(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Zero(t, h.trackers.Len())
}

func TestResume(t *testing.T) {
	repo := memory.New()
	chat := newFakeChat()
	ctx := context.Background()

	// a giveaway left behind by a previous process
	now := time.Now()
	g := &models.Giveaway{
		GuildID:      guildID,
		HostID:       hostID,
		Prize:        "X",
		WinnerCount:  1,
		Requirements: models.Thresholds{Messages: 1},
		Message:      models.MessageRef{ChannelID: channelID, MessageID: 555},
		StartedAt:    now.Add(-time.Hour),
		EndsAt:       now.Add(50 * time.Millisecond),
		Status:       models.StatusCounting,
	}
	require.NoError(t, repo.Create(ctx, g))
	require.NoError(t, repo.SaveCounters(ctx, g.ID, models.EngagementCounters{
		Messages: map[snowflake.ID]int{userA: 3},
	}))
	chat.setReactors(555, userA, userB)

	outcomes := make(chan models.Outcome, 1)
	engine := NewEngine(repo, chat, engagement.NewRegistry(),
		WithRefreshInterval(10*time.Millisecond),
		WithOutcomeHook(func(o models.Outcome) { outcomes <- o }),
	)
	defer engine.Shutdown(ctx)

	n, err := engine.Resume(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	select {
	case o := <-outcomes:
		assert.Equal(t, []snowflake.ID{userA}, o.Winners)
	case <-time.After(3 * time.Second):
		t.Fatal("resumed giveaway was not resolved")
	}
}

func TestShutdownKeepsRecordsActive(t *testing.T) {
	repo := memory.New()
	chat := newFakeChat()
	trackers := engagement.NewRegistry()
	engine := NewEngine(repo, chat, trackers, WithRefreshInterval(time.Hour))

	g, err := engine.Start(context.Background(), CreateRequest{
		GuildID: guildID, ChannelID: channelID, Duration: time.Hour, WinnerCount: 1, Prize: "X",
	})
	require.NoError(t, err)
	trackers.RecordMessage(guildID, userA)

	require.NoError(t, engine.Shutdown(context.Background()))

	stored, err := repo.GetByID(context.Background(), g.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCounting, stored.Status)

	counters, err := repo.LoadCounters(context.Background(), g.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, counters.Messages[userA])

	_, err = engine.Start(context.Background(), CreateRequest{
		GuildID: guildID, ChannelID: channelID, Duration: time.Hour, WinnerCount: 1, Prize: "X",
	})
	assert.Error(t, err)
}
