package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roblox669900-cpu/giveaway-bot/internal/common/config"
)

func TestOpenBackends(t *testing.T) {
	mr := miniredis.RunT(t)
	dir := t.TempDir()

	for _, backend := range []string{config.StoreMemory, config.StoreFile, config.StoreRedis, config.StoreSQLite} {
		t.Run(backend, func(t *testing.T) {
			cfg := &config.Config{}
			cfg.Store.Backend = backend
			cfg.Store.FilePath = filepath.Join(dir, "giveaways.json")
			cfg.Store.SQLitePath = filepath.Join(dir, "giveaways.db")
			cfg.Redis.Addr = mr.Addr()

			repo, rdb, err := Open(context.Background(), cfg)
			require.NoError(t, err)
			defer repo.Close()

			assert.NoError(t, repo.Ping(context.Background()))
			assert.Equal(t, backend == config.StoreRedis, rdb != nil)
		})
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	cfg := &config.Config{}
	cfg.Store.Backend = "etcd"

	_, _, err := Open(context.Background(), cfg)
	assert.Error(t, err)
}
