package redis

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/redis/go-redis/v9"

	"github.com/roblox669900-cpu/giveaway-bot/internal/features/giveaway/models"
	"github.com/roblox669900-cpu/giveaway-bot/internal/features/giveaway/repository"
)

const (
	keyNextID          = "giveaway:next_id"
	keyPrefixActive    = "giveaway:active:"
	keyPrefixArchived  = "giveaway:archive:"
	keyPrefixCounters  = "giveaway:counters:"
	keyActiveGiveaways = "giveaways:active"
	keyArchive         = "giveaways:archive" // zset scored by resolution time
	maxWatchRetries    = 5
)

type redisRepository struct {
	client *redis.Client
}

func NewRedisGiveawayRepository(client *redis.Client) repository.GiveawayRepository {
	return &redisRepository{client: client}
}

func makeActiveKey(id int64) string {
	return keyPrefixActive + strconv.FormatInt(id, 10)
}

func makeArchivedKey(id int64) string {
	return keyPrefixArchived + strconv.FormatInt(id, 10)
}

func makeCountersKey(id int64) string {
	return keyPrefixCounters + strconv.FormatInt(id, 10)
}

func archiveScore(g *models.Giveaway) float64 {
	if g.ResolvedAt != nil {
		return float64(g.ResolvedAt.UnixMilli())
	}
	return float64(g.UpdatedAt.UnixMilli())
}

func (r *redisRepository) Create(ctx context.Context, g *models.Giveaway) error {
	id, err := r.client.Incr(ctx, keyNextID).Result()
	if err != nil {
		return fmt.Errorf("failed to allocate giveaway id: %w", err)
	}
	g.ID = id

	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("failed to marshal giveaway: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, makeActiveKey(id), data, 0)
	pipe.SAdd(ctx, keyActiveGiveaways, id)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *redisRepository) get(ctx context.Context, key string) (*models.Giveaway, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, repository.ErrGiveawayNotFound
	}
	if err != nil {
		return nil, err
	}

	var g models.Giveaway
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("failed to unmarshal giveaway: %w", err)
	}
	return &g, nil
}

func (r *redisRepository) GetByID(ctx context.Context, id int64) (*models.Giveaway, error) {
	return r.get(ctx, makeActiveKey(id))
}

func (r *redisRepository) Update(ctx context.Context, g *models.Giveaway) error {
	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("failed to marshal giveaway: %w", err)
	}

	ok, err := r.client.SetXX(ctx, makeActiveKey(g.ID), data, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return repository.ErrGiveawayNotFound
	}
	return nil
}

// modifyActive applies fn to the stored record inside a WATCH transaction and
// returns the written record.
func (r *redisRepository) modifyActive(ctx context.Context, id int64, fn func(g *models.Giveaway) error) (*models.Giveaway, error) {
	key := makeActiveKey(id)
	var result *models.Giveaway

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return repository.ErrGiveawayNotFound
		}
		if err != nil {
			return err
		}

		var g models.Giveaway
		if err := json.Unmarshal(data, &g); err != nil {
			return fmt.Errorf("failed to unmarshal giveaway: %w", err)
		}
		if err := fn(&g); err != nil {
			return err
		}

		updated, err := json.Marshal(&g)
		if err != nil {
			return fmt.Errorf("failed to marshal giveaway: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, 0)
			return nil
		})
		if err == nil {
			result = &g
		}
		return err
	}

	for i := 0; i < maxWatchRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}
	return nil, fmt.Errorf("failed to update giveaway %d: too much contention", id)
}

func (r *redisRepository) SetForcedWinner(ctx context.Context, id int64, userID snowflake.ID) error {
	_, err := r.modifyActive(ctx, id, func(g *models.Giveaway) error {
		if g.Status != models.StatusCounting {
			return repository.ErrNotCounting
		}
		g.ForcedWinner = &userID
		g.UpdatedAt = time.Now()
		return nil
	})
	return err
}

func (r *redisRepository) BeginResolution(ctx context.Context, id int64, at time.Time) (*models.Giveaway, error) {
	return r.modifyActive(ctx, id, func(g *models.Giveaway) error {
		if g.Status.IsTerminal() {
			return repository.ErrNotCounting
		}
		g.Status = models.StatusResolving
		g.UpdatedAt = at
		return nil
	})
}

func (r *redisRepository) Remove(ctx context.Context, id int64) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, makeActiveKey(id), makeCountersKey(id))
	pipe.SRem(ctx, keyActiveGiveaways, id)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *redisRepository) ListActive(ctx context.Context) ([]*models.Giveaway, error) {
	members, err := r.client.SMembers(ctx, keyActiveGiveaways).Result()
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		keys = append(keys, makeActiveKey(id))
	}
	return r.loadMany(ctx, keys, 0)
}

func (r *redisRepository) loadMany(ctx context.Context, keys []string, guildID snowflake.ID) ([]*models.Giveaway, error) {
	out := make([]*models.Giveaway, 0, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			// key vanished between the index read and MGET
			continue
		}
		var g models.Giveaway
		if err := json.Unmarshal([]byte(s), &g); err != nil {
			return nil, fmt.Errorf("failed to unmarshal giveaway: %w", err)
		}
		if guildID != 0 && g.GuildID != guildID {
			continue
		}
		out = append(out, &g)
	}

	slices.SortFunc(out, func(a, b *models.Giveaway) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (r *redisRepository) Archive(ctx context.Context, g *models.Giveaway) error {
	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("failed to marshal giveaway: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, makeArchivedKey(g.ID), data, 0)
	pipe.ZAdd(ctx, keyArchive, redis.Z{Score: archiveScore(g), Member: g.ID})
	_, err = pipe.Exec(ctx)
	return err
}

func (r *redisRepository) GetArchived(ctx context.Context, id int64) (*models.Giveaway, error) {
	return r.get(ctx, makeArchivedKey(id))
}

func (r *redisRepository) ListArchived(ctx context.Context, guildID snowflake.ID) ([]*models.Giveaway, error) {
	members, err := r.client.ZRange(ctx, keyArchive, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		keys = append(keys, makeArchivedKey(id))
	}
	return r.loadMany(ctx, keys, guildID)
}

func (r *redisRepository) PruneArchive(ctx context.Context, before time.Time) (int, error) {
	members, err := r.client.ZRangeByScore(ctx, keyArchive, &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(before.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, err
	}
	if len(members) == 0 {
		return 0, nil
	}

	pipe := r.client.TxPipeline()
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		pipe.Del(ctx, makeArchivedKey(id))
		pipe.ZRem(ctx, keyArchive, m)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return len(members), nil
}

func (r *redisRepository) SaveCounters(ctx context.Context, id int64, c models.EngagementCounters) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal counters: %w", err)
	}
	return r.client.Set(ctx, makeCountersKey(id), data, 0).Err()
}

func (r *redisRepository) LoadCounters(ctx context.Context, id int64) (*models.EngagementCounters, error) {
	data, err := r.client.Get(ctx, makeCountersKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, repository.ErrCountersNotFound
	}
	if err != nil {
		return nil, err
	}

	var c models.EngagementCounters
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal counters: %w", err)
	}
	return &c, nil
}

func (r *redisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *redisRepository) Close() error {
	return r.client.Close()
}
