package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Store backends understood by repository.Open.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
)

type Config struct {
	Debug       bool   `env:"DEBUG" envDefault:"false"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"giveaway-bot"`

	Discord struct {
		Token string `env:"DISCORD_TOKEN,required,notEmpty"`
		// Commands are registered to this guild only when set (dev mode).
		GuildID    string   `env:"GUILD_ID"`
		AdminIDs   []string `env:"ADMIN_IDS" envSeparator:","`
		EntryEmoji string   `env:"ENTRY_EMOJI" envDefault:"🎉"`
		// Countdown edits per second across all giveaways.
		EditRate  float64 `env:"DISCORD_EDIT_RATE" envDefault:"2"`
		EditBurst int     `env:"DISCORD_EDIT_BURST" envDefault:"5"`
	}

	Giveaway struct {
		RefreshInterval          time.Duration `env:"GIVEAWAY_REFRESH_INTERVAL" envDefault:"60s"`
		ResolveRetries           int           `env:"GIVEAWAY_RESOLVE_RETRIES" envDefault:"3"`
		MaxConcurrentResolutions int           `env:"GIVEAWAY_MAX_CONCURRENT_RESOLUTIONS" envDefault:"10"`
		ArchiveRetention         time.Duration `env:"GIVEAWAY_ARCHIVE_RETENTION" envDefault:"720h"`
		PruneSchedule            string        `env:"GIVEAWAY_PRUNE_SCHEDULE" envDefault:"@every 1h"`
	}

	Store struct {
		Backend    string `env:"STORE_BACKEND" envDefault:"memory"`
		FilePath   string `env:"STORE_FILE_PATH" envDefault:"giveaways.json"`
		SQLitePath string `env:"STORE_SQLITE_PATH" envDefault:"giveaways.db"`
	}

	Redis struct {
		Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
		Password string `env:"REDIS_PASSWORD" envDefault:""`
		DB       int    `env:"REDIS_DB" envDefault:"0"`
		// Resolved giveaways are appended to this stream; empty disables it.
		OutcomeStream string `env:"REDIS_OUTCOME_STREAM" envDefault:"giveaway:outcomes"`
	}

	Server struct {
		Enabled bool   `env:"HTTP_ENABLED" envDefault:"true"`
		Port    int    `env:"PORT" envDefault:"8080"`
		Origin  string `env:"ORIGIN" envDefault:"*"`
	}
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	// .env is optional; in production the variables come from the environment
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values env.Parse cannot catch on its own.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case StoreMemory, StoreFile, StoreRedis, StoreSQLite:
	default:
		return fmt.Errorf("invalid STORE_BACKEND %q", c.Store.Backend)
	}
	if c.Giveaway.RefreshInterval <= 0 {
		return fmt.Errorf("GIVEAWAY_REFRESH_INTERVAL must be positive")
	}
	if c.Giveaway.ResolveRetries < 1 {
		return fmt.Errorf("GIVEAWAY_RESOLVE_RETRIES must be at least 1")
	}
	if c.Giveaway.MaxConcurrentResolutions < 1 {
		return fmt.Errorf("GIVEAWAY_MAX_CONCURRENT_RESOLUTIONS must be at least 1")
	}
	if c.Discord.EntryEmoji == "" {
		return fmt.Errorf("ENTRY_EMOJI must not be empty")
	}
	return nil
}
