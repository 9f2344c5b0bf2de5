package repository

import (
	"context"
	"errors"
	"time"

	"github.com/disgoorg/snowflake/v2"

	"github.com/roblox669900-cpu/giveaway-bot/internal/features/giveaway/models"
)

var (
	ErrGiveawayNotFound = errors.New("giveaway not found")
	ErrCountersNotFound = errors.New("engagement counters not found")
	// ErrNotCounting is returned when a giveaway no longer accepts changes
	// because its window has closed.
	ErrNotCounting = errors.New("giveaway is no longer counting")
)

// GiveawayRepository stores active giveaways, the archive of resolved ones
// and the engagement counters of open windows.
type GiveawayRepository interface {
	// Create assigns the next sequential id to g and stores it. Ids start at 1
	// and are never reused.
	Create(ctx context.Context, g *models.Giveaway) error
	GetByID(ctx context.Context, id int64) (*models.Giveaway, error)
	Update(ctx context.Context, g *models.Giveaway) error
	// SetForcedWinner fails with ErrNotCounting unless the giveaway is
	// counting.
	SetForcedWinner(ctx context.Context, id int64, userID snowflake.ID) error
	// BeginResolution atomically moves a non-terminal giveaway to resolving and
	// returns the stored record. Terminal records give ErrNotCounting.
	BeginResolution(ctx context.Context, id int64, at time.Time) (*models.Giveaway, error)
	// Remove deletes the active record and its counters. Removing an unknown
	// id is not an error.
	Remove(ctx context.Context, id int64) error
	ListActive(ctx context.Context) ([]*models.Giveaway, error)

	Archive(ctx context.Context, g *models.Giveaway) error
	GetArchived(ctx context.Context, id int64) (*models.Giveaway, error)
	// ListArchived returns archived giveaways of a guild; guild 0 lists all.
	ListArchived(ctx context.Context, guildID snowflake.ID) ([]*models.Giveaway, error)
	// PruneArchive drops archived giveaways resolved before the cutoff.
	PruneArchive(ctx context.Context, before time.Time) (int, error)

	SaveCounters(ctx context.Context, id int64, c models.EngagementCounters) error
	LoadCounters(ctx context.Context, id int64) (*models.EngagementCounters, error)

	Ping(ctx context.Context) error
	Close() error
}

// Archivable reports whether g may be pruned at the cutoff.
func Archivable(g *models.Giveaway, before time.Time) bool {
	resolved := g.UpdatedAt
	if g.ResolvedAt != nil {
		resolved = *g.ResolvedAt
	}
	return resolved.Before(before)
}
