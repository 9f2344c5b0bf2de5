package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roblox669900-cpu/giveaway-bot/internal/features/giveaway/repository"
	"github.com/roblox669900-cpu/giveaway-bot/internal/features/giveaway/repository/repotest"
)

func TestStore(t *testing.T) {
	repotest.Run(t, func(t *testing.T) repository.GiveawayRepository {
		s, err := Open(filepath.Join(t.TempDir(), "giveaways.json"))
		require.NoError(t, err)
		return s
	})
}

func TestMissingFileIsEmpty(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)

	list, err := s.ListActive(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestWritesBackAfterMutation(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "giveaways.json")

	s, err := Open(path)
	require.NoError(t, err)

	g := repotest.NewGiveaway(1)
	require.NoError(t, s.Create(ctx, g))
	require.NoError(t, s.SetForcedWinner(ctx, g.ID, 55))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"next_id": 1`)
	assert.Contains(t, string(data), `"1": {`)

	reopened, err := Open(path)
	require.NoError(t, err)

	got, err := reopened.GetByID(ctx, g.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ForcedWinner)
	assert.EqualValues(t, 55, *got.ForcedWinner)

	next := repotest.NewGiveaway(1)
	require.NoError(t, reopened.Create(ctx, next))
	assert.Equal(t, int64(2), next.ID)
}

func TestFailedWriteRollsBackMemory(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "state")
	require.NoError(t, os.Mkdir(dir, 0o755))

	s, err := Open(filepath.Join(dir, "giveaways.json"))
	require.NoError(t, err)

	kept := repotest.NewGiveaway(1)
	require.NoError(t, s.Create(ctx, kept))

	require.NoError(t, os.RemoveAll(dir))
	assert.Error(t, s.Create(ctx, repotest.NewGiveaway(1)))
	assert.Error(t, s.SetForcedWinner(ctx, kept.ID, 55))

	list, err := s.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Nil(t, list[0].ForcedWinner)

	require.NoError(t, os.Mkdir(dir, 0o755))
	next := repotest.NewGiveaway(1)
	require.NoError(t, s.Create(ctx, next))
	assert.Equal(t, int64(2), next.ID, "the failed create did not consume an id")
}

func TestCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "giveaways.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := Open(path)
	assert.Error(t, err)
}
