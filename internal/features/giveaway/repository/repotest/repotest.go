// Package repotest holds the behaviour every GiveawayRepository backend
// must share.
package repotest

import (
	"context"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roblox669900-cpu/giveaway-bot/internal/features/giveaway/models"
	"github.com/roblox669900-cpu/giveaway-bot/internal/features/giveaway/repository"
)

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// NewGiveaway returns an unsaved active giveaway.
func NewGiveaway(guildID snowflake.ID) *models.Giveaway {
	return &models.Giveaway{
		GuildID:      guildID,
		HostID:       7,
		Prize:        "Nitro",
		WinnerCount:  1,
		Requirements: models.Thresholds{Messages: 2, VoiceMinutes: 1.5},
		Message:      models.MessageRef{ChannelID: 10, MessageID: 11},
		StartedAt:    base,
		EndsAt:       base.Add(10 * time.Minute),
		Status:       models.StatusCounting,
		CreatedAt:    base,
		UpdatedAt:    base,
	}
}

// Run exercises a backend. newRepo must return an empty repository.
func Run(t *testing.T, newRepo func(t *testing.T) repository.GiveawayRepository) {
	t.Run("SequentialIDs", func(t *testing.T) { testSequentialIDs(t, newRepo(t)) })
	t.Run("GetUpdateRemove", func(t *testing.T) { testGetUpdateRemove(t, newRepo(t)) })
	t.Run("ForcedWinner", func(t *testing.T) { testForcedWinner(t, newRepo(t)) })
	t.Run("BeginResolution", func(t *testing.T) { testBeginResolution(t, newRepo(t)) })
	t.Run("ListActive", func(t *testing.T) { testListActive(t, newRepo(t)) })
	t.Run("Archive", func(t *testing.T) { testArchive(t, newRepo(t)) })
	t.Run("Counters", func(t *testing.T) { testCounters(t, newRepo(t)) })
}

func testSequentialIDs(t *testing.T, repo repository.GiveawayRepository) {
	ctx := context.Background()

	first := NewGiveaway(1)
	require.NoError(t, repo.Create(ctx, first))
	assert.Equal(t, int64(1), first.ID)

	second := NewGiveaway(1)
	require.NoError(t, repo.Create(ctx, second))
	assert.Equal(t, int64(2), second.ID)

	require.NoError(t, repo.Remove(ctx, second.ID))

	third := NewGiveaway(1)
	require.NoError(t, repo.Create(ctx, third))
	assert.Equal(t, int64(3), third.ID, "ids are never reused")
}

func testGetUpdateRemove(t *testing.T, repo repository.GiveawayRepository) {
	ctx := context.Background()

	_, err := repo.GetByID(ctx, 42)
	assert.ErrorIs(t, err, repository.ErrGiveawayNotFound)

	g := NewGiveaway(1)
	require.NoError(t, repo.Create(ctx, g))

	got, err := repo.GetByID(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, "Nitro", got.Prize)
	assert.Equal(t, models.Thresholds{Messages: 2, VoiceMinutes: 1.5}, got.Requirements)
	assert.Equal(t, snowflake.ID(11), got.Message.MessageID)
	assert.True(t, got.EndsAt.Equal(g.EndsAt))

	got.Message.MessageID = 99
	got.Status = models.StatusResolving
	require.NoError(t, repo.Update(ctx, got))

	again, err := repo.GetByID(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(99), again.Message.MessageID)
	assert.Equal(t, models.StatusResolving, again.Status)

	missing := NewGiveaway(1)
	missing.ID = 1000
	assert.ErrorIs(t, repo.Update(ctx, missing), repository.ErrGiveawayNotFound)

	require.NoError(t, repo.Remove(ctx, g.ID))
	_, err = repo.GetByID(ctx, g.ID)
	assert.ErrorIs(t, err, repository.ErrGiveawayNotFound)
	assert.NoError(t, repo.Remove(ctx, g.ID))
}

func testForcedWinner(t *testing.T, repo repository.GiveawayRepository) {
	ctx := context.Background()

	assert.ErrorIs(t, repo.SetForcedWinner(ctx, 5, 77), repository.ErrGiveawayNotFound)

	g := NewGiveaway(1)
	require.NoError(t, repo.Create(ctx, g))
	require.NoError(t, repo.SetForcedWinner(ctx, g.ID, 77))

	got, err := repo.GetByID(ctx, g.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ForcedWinner)
	assert.Equal(t, snowflake.ID(77), *got.ForcedWinner)

	got.Status = models.StatusResolving
	require.NoError(t, repo.Update(ctx, got))
	assert.ErrorIs(t, repo.SetForcedWinner(ctx, g.ID, 78), repository.ErrNotCounting)

	got, err = repo.GetByID(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(77), *got.ForcedWinner, "refused override leaves the record untouched")
}

func testBeginResolution(t *testing.T, repo repository.GiveawayRepository) {
	ctx := context.Background()
	at := base.Add(10 * time.Minute)

	_, err := repo.BeginResolution(ctx, 9, at)
	assert.ErrorIs(t, err, repository.ErrGiveawayNotFound)

	g := NewGiveaway(1)
	require.NoError(t, repo.Create(ctx, g))
	require.NoError(t, repo.SetForcedWinner(ctx, g.ID, 77))

	got, err := repo.BeginResolution(ctx, g.ID, at)
	require.NoError(t, err)
	assert.Equal(t, models.StatusResolving, got.Status)
	require.NotNil(t, got.ForcedWinner)
	assert.Equal(t, snowflake.ID(77), *got.ForcedWinner)

	stored, err := repo.GetByID(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusResolving, stored.Status)
	assert.True(t, stored.UpdatedAt.Equal(at))

	// an interrupted resolution can be started again
	_, err = repo.BeginResolution(ctx, g.ID, at)
	require.NoError(t, err)

	stored.Status = models.StatusCompleted
	require.NoError(t, repo.Update(ctx, stored))
	_, err = repo.BeginResolution(ctx, g.ID, at)
	assert.ErrorIs(t, err, repository.ErrNotCounting)
}

func testListActive(t *testing.T, repo repository.GiveawayRepository) {
	ctx := context.Background()

	list, err := repo.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, NewGiveaway(snowflake.ID(i+1))))
	}
	require.NoError(t, repo.Remove(ctx, 2))

	list, err = repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(1), list[0].ID)
	assert.Equal(t, int64(3), list[1].ID)
}

func testArchive(t *testing.T, repo repository.GiveawayRepository) {
	ctx := context.Background()

	_, err := repo.GetArchived(ctx, 1)
	assert.ErrorIs(t, err, repository.ErrGiveawayNotFound)

	old := NewGiveaway(1)
	require.NoError(t, repo.Create(ctx, old))
	oldResolved := base.Add(time.Hour)
	old.Status = models.StatusCompleted
	old.Winners = []snowflake.ID{5}
	old.ResolvedAt = &oldResolved
	require.NoError(t, repo.Archive(ctx, old))
	require.NoError(t, repo.Remove(ctx, old.ID))

	recent := NewGiveaway(2)
	require.NoError(t, repo.Create(ctx, recent))
	recentResolved := base.Add(48 * time.Hour)
	recent.Status = models.StatusAborted
	recent.AbortReason = models.AbortReasonNoEligible
	recent.ResolvedAt = &recentResolved
	require.NoError(t, repo.Archive(ctx, recent))

	got, err := repo.GetArchived(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.Equal(t, []snowflake.ID{5}, got.Winners)

	got.Rerolls = append(got.Rerolls, 6)
	require.NoError(t, repo.Archive(ctx, got))
	got, err = repo.GetArchived(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{6}, got.Rerolls)

	all, err := repo.ListArchived(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	guild2, err := repo.ListArchived(ctx, 2)
	require.NoError(t, err)
	require.Len(t, guild2, 1)
	assert.Equal(t, recent.ID, guild2[0].ID)

	n, err := repo.PruneArchive(ctx, base.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = repo.GetArchived(ctx, old.ID)
	assert.ErrorIs(t, err, repository.ErrGiveawayNotFound)
	_, err = repo.GetArchived(ctx, recent.ID)
	assert.NoError(t, err)
}

func testCounters(t *testing.T, repo repository.GiveawayRepository) {
	ctx := context.Background()

	g := NewGiveaway(1)
	require.NoError(t, repo.Create(ctx, g))

	_, err := repo.LoadCounters(ctx, g.ID)
	assert.ErrorIs(t, err, repository.ErrCountersNotFound)

	saved := models.EngagementCounters{
		Messages:     map[snowflake.ID]int{100: 3},
		VoiceMinutes: map[snowflake.ID]float64{101: 2.5},
		Sessions:     map[snowflake.ID]time.Time{102: base},
		SavedAt:      base.Add(time.Minute),
	}
	require.NoError(t, repo.SaveCounters(ctx, g.ID, saved))

	got, err := repo.LoadCounters(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Messages[100])
	assert.InDelta(t, 2.5, got.VoiceMinutes[101], 1e-9)
	assert.True(t, got.Sessions[102].Equal(base))

	require.NoError(t, repo.Remove(ctx, g.ID))
	_, err = repo.LoadCounters(ctx, g.ID)
	assert.ErrorIs(t, err, repository.ErrCountersNotFound)
}
