// Package sqlite opens the SQLite database backing the sqlite store.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Pragmas go through the DSN so every pooled connection gets them.
const dsnParams = "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS giveaways (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		guild_id TEXT NOT NULL,
		data TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS giveaway_archive (
		id INTEGER PRIMARY KEY,
		guild_id TEXT NOT NULL,
		resolved_at INTEGER NOT NULL,
		data TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_giveaway_archive_resolved ON giveaway_archive(resolved_at)`,
	`CREATE INDEX IF NOT EXISTS idx_giveaway_archive_guild ON giveaway_archive(guild_id)`,
	`CREATE TABLE IF NOT EXISTS engagement_counters (
		giveaway_id INTEGER PRIMARY KEY,
		data TEXT NOT NULL,
		saved_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", "file:"+path+dsnParams)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(5)

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(initCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	tx, err := db.BeginTx(initCtx, nil)
	if err != nil {
		db.Close()
		return nil, err
	}
	defer tx.Rollback()

	for _, q := range schema {
		if _, err := tx.ExecContext(initCtx, q); err != nil {
			db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
