package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roblox669900-cpu/giveaway-bot/internal/features/giveaway/repository"
	"github.com/roblox669900-cpu/giveaway-bot/internal/features/giveaway/repository/repotest"
)

func newTestRepo(t *testing.T) (repository.GiveawayRepository, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisGiveawayRepository(client), mr
}

func TestRepository(t *testing.T) {
	repotest.Run(t, func(t *testing.T) repository.GiveawayRepository {
		repo, _ := newTestRepo(t)
		return repo
	})
}

func TestKeysLayout(t *testing.T) {
	ctx := context.Background()
	repo, mr := newTestRepo(t)

	g := repotest.NewGiveaway(1)
	require.NoError(t, repo.Create(ctx, g))

	assert.True(t, mr.Exists("giveaway:active:1"))
	ok, err := mr.SIsMember("giveaways:active", "1")
	require.NoError(t, err)
	assert.True(t, ok)

	next, err := mr.Get("giveaway:next_id")
	require.NoError(t, err)
	assert.Equal(t, "1", next)

	require.NoError(t, repo.Remove(ctx, g.ID))
	assert.False(t, mr.Exists("giveaway:active:1"))
}

func TestPingFailsWhenServerDown(t *testing.T) {
	repo, mr := newTestRepo(t)
	require.NoError(t, repo.Ping(context.Background()))

	mr.Close()
	assert.Error(t, repo.Ping(context.Background()))
}
