// Package sqlite stores giveaways in SQLite. AUTOINCREMENT keeps ids from
// being reused after deletion.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"

	"github.com/roblox669900-cpu/giveaway-bot/internal/features/giveaway/models"
	"github.com/roblox669900-cpu/giveaway-bot/internal/features/giveaway/repository"
)

type sqliteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) repository.GiveawayRepository {
	return &sqliteRepository{db: db}
}

func resolvedAt(g *models.Giveaway) int64 {
	if g.ResolvedAt != nil {
		return g.ResolvedAt.UnixMilli()
	}
	return g.UpdatedAt.UnixMilli()
}

func decode(id int64, data string) (*models.Giveaway, error) {
	var g models.Giveaway
	if err := json.Unmarshal([]byte(data), &g); err != nil {
		return nil, fmt.Errorf("failed to unmarshal giveaway %d: %w", id, err)
	}
	g.ID = id
	return &g, nil
}

func (r *sqliteRepository) Create(ctx context.Context, g *models.Giveaway) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO giveaways (guild_id, data) VALUES (?, '{}')`, g.GuildID.String())
	if err != nil {
		return fmt.Errorf("failed to create giveaway: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read giveaway id: %w", err)
	}
	g.ID = id

	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("failed to marshal giveaway: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE giveaways SET data = ? WHERE id = ?`, string(data), id); err != nil {
		return fmt.Errorf("failed to store giveaway: %w", err)
	}
	return tx.Commit()
}

func (r *sqliteRepository) GetByID(ctx context.Context, id int64) (*models.Giveaway, error) {
	var data string
	err := r.db.QueryRowContext(ctx, `SELECT data FROM giveaways WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrGiveawayNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get giveaway: %w", err)
	}
	return decode(id, data)
}

func (r *sqliteRepository) Update(ctx context.Context, g *models.Giveaway) error {
	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("failed to marshal giveaway: %w", err)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE giveaways SET data = ?, guild_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		string(data), g.GuildID.String(), g.ID)
	if err != nil {
		return fmt.Errorf("failed to update giveaway: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrGiveawayNotFound
	}
	return nil
}

// modifyActive applies fn to the stored record inside one transaction. With
// _txlock=immediate the write lock is held from the read on.
func (r *sqliteRepository) modifyActive(ctx context.Context, id int64, fn func(g *models.Giveaway) error) (*models.Giveaway, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var data string
	err = tx.QueryRowContext(ctx, `SELECT data FROM giveaways WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrGiveawayNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get giveaway: %w", err)
	}

	g, err := decode(id, data)
	if err != nil {
		return nil, err
	}
	if err := fn(g); err != nil {
		return nil, err
	}

	updated, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal giveaway: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE giveaways SET data = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, string(updated), id); err != nil {
		return nil, fmt.Errorf("failed to update giveaway: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit giveaway update: %w", err)
	}
	return g, nil
}

func (r *sqliteRepository) SetForcedWinner(ctx context.Context, id int64, userID snowflake.ID) error {
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

func (r *sqliteRepository) BeginResolution(ctx context.Context, id int64, at time.Time) (*models.Giveaway, error) {
	return r.modifyActive(ctx, id, func(g *models.Giveaway) error {
		if g.Status.IsTerminal() {
			return repository.ErrNotCounting
		}
		g.Status = models.StatusResolving
		g.UpdatedAt = at
		return nil
	})
}

func (r *sqliteRepository) Remove(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM giveaways WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete giveaway: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM engagement_counters WHERE giveaway_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete counters: %w", err)
	}
	return tx.Commit()
}

func (r *sqliteRepository) query(ctx context.Context, q string, args ...any) ([]*models.Giveaway, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list giveaways: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Giveaway, 0)
	for rows.Next() {
		var (
			id   int64
			data string
		)
		if err := rows.Scan(&id, &data); err != nil {
			return nil, err
		}
		g, err := decode(id, data)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *sqliteRepository) ListActive(ctx context.Context) ([]*models.Giveaway, error) {
	return r.query(ctx, `SELECT id, data FROM giveaways ORDER BY id`)
}

func (r *sqliteRepository) Archive(ctx context.Context, g *models.Giveaway) error {
	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("failed to marshal giveaway: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO giveaway_archive (id, guild_id, resolved_at, data) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET guild_id = excluded.guild_id,
			resolved_at = excluded.resolved_at, data = excluded.data`,
		g.ID, g.GuildID.String(), resolvedAt(g), string(data))
	if err != nil {
		return fmt.Errorf("failed to archive giveaway: %w", err)
	}
	return nil
}

func (r *sqliteRepository) GetArchived(ctx context.Context, id int64) (*models.Giveaway, error) {
	var data string
	err := r.db.QueryRowContext(ctx, `SELECT data FROM giveaway_archive WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrGiveawayNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get archived giveaway: %w", err)
	}
	return decode(id, data)
}

func (r *sqliteRepository) ListArchived(ctx context.Context, guildID snowflake.ID) ([]*models.Giveaway, error) {
	if guildID == 0 {
		return r.query(ctx, `SELECT id, data FROM giveaway_archive ORDER BY id`)
	}
	return r.query(ctx, `SELECT id, data FROM giveaway_archive WHERE guild_id = ? ORDER BY id`, guildID.String())
}

func (r *sqliteRepository) PruneArchive(ctx context.Context, before time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM giveaway_archive WHERE resolved_at < ?`, before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to prune archive: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *sqliteRepository) SaveCounters(ctx context.Context, id int64, c models.EngagementCounters) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal counters: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO engagement_counters (giveaway_id, data) VALUES (?, ?)
		ON CONFLICT(giveaway_id) DO UPDATE SET data = excluded.data, saved_at = CURRENT_TIMESTAMP`,
		id, string(data))
	if err != nil {
		return fmt.Errorf("failed to save counters: %w", err)
	}
	return nil
}

func (r *sqliteRepository) LoadCounters(ctx context.Context, id int64) (*models.EngagementCounters, error) {
	var data string
	err := r.db.QueryRowContext(ctx, `SELECT data FROM engagement_counters WHERE giveaway_id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrCountersNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load counters: %w", err)
	}

	var c models.EngagementCounters
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal counters: %w", err)
	}
	return &c, nil
}

func (r *sqliteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *sqliteRepository) Close() error {
	return r.db.Close()
}
