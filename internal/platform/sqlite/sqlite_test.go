package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenCreatesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	db, err := Open(context.Background(), path)
	require.NoError(t, err)
	defer db.Close()

	for _, table := range []string{"giveaways", "giveaway_archive", "engagement_counters"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		require.NoError(t, err, table)
		assert.Equal(t, table, name)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	db, err := Open(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(context.Background(), path)
	require.NoError(t, err)
	assert.NoError(t, db.Close())
}
