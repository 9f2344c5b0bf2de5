// Package store picks the giveaway repository backend from configuration.
package store

import (
	"context"
	"fmt"

	"github.com/roblox669900-cpu/giveaway-bot/internal/common/config"
	"github.com/roblox669900-cpu/giveaway-bot/internal/features/giveaway/repository"
	"github.com/roblox669900-cpu/giveaway-bot/internal/features/giveaway/repository/file"
	"github.com/roblox669900-cpu/giveaway-bot/internal/features/giveaway/repository/memory"
	redisrepo "github.com/roblox669900-cpu/giveaway-bot/internal/features/giveaway/repository/redis"
	sqliterepo "github.com/roblox669900-cpu/giveaway-bot/internal/features/giveaway/repository/sqlite"
	"github.com/roblox669900-cpu/giveaway-bot/internal/platform/redis"
	"github.com/roblox669900-cpu/giveaway-bot/internal/platform/sqlite"
)

// Open builds the repository named by cfg.Store.Backend. The redis client is
// returned as well when the redis backend is used, so callers can share it.
func Open(ctx context.Context, cfg *config.Config) (repository.GiveawayRepository, *redis.Client, error) {
	switch cfg.Store.Backend {
	case config.StoreMemory:
		return memory.New(), nil, nil

	case config.StoreFile:
		s, err := file.Open(cfg.Store.FilePath)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil

	case config.StoreRedis:
		rdb, err := redis.Open(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, nil, err
		}
		return redisrepo.NewRedisGiveawayRepository(rdb.Client), rdb, nil

	case config.StoreSQLite:
		db, err := sqlite.Open(ctx, cfg.Store.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return sqliterepo.NewSQLiteRepository(db), nil, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}
