package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "token")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "🎉", cfg.Discord.EntryEmoji)
	assert.Equal(t, 60*time.Second, cfg.Giveaway.RefreshInterval)
	assert.Equal(t, 3, cfg.Giveaway.ResolveRetries)
	assert.Equal(t, StoreMemory, cfg.Store.Backend)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("ADMIN_IDS", "1,2")
	t.Setenv("STORE_BACKEND", "file")
	t.Setenv("GIVEAWAY_REFRESH_INTERVAL", "15s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "2"}, cfg.Discord.AdminIDs)
	assert.Equal(t, StoreFile, cfg.Store.Backend)
	assert.Equal(t, 15*time.Second, cfg.Giveaway.RefreshInterval)
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("STORE_BACKEND", "mongo")

	_, err := Load()
	assert.ErrorContains(t, err, "STORE_BACKEND")
}

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "")

	_, err := Load()
	assert.Error(t, err)
}
