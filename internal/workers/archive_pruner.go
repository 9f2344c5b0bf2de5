package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/roblox669900-cpu/giveaway-bot/internal/metrics"
)

// ArchiveStore is the part of the repository the pruner needs.
type ArchiveStore interface {
	PruneArchive(ctx context.Context, before time.Time) (int, error)
}

const pruneTimeout = time.Minute

// ArchivePruner deletes resolved giveaways older than the retention on a
// cron schedule. Rerolls are only possible while a giveaway is archived.
type ArchivePruner struct {
	store     ArchiveStore
	retention time.Duration
	cron      *cron.Cron
	logger    zerolog.Logger
	now       func() time.Time
}

func NewArchivePruner(store ArchiveStore, schedule string, retention time.Duration, logger zerolog.Logger) (*ArchivePruner, error) {
	if retention <= 0 {
		return nil, fmt.Errorf("archive retention must be positive, got %s", retention)
	}

	p := &ArchivePruner{
		store:     store,
		retention: retention,
		logger:    logger,
		now:       time.Now,
	}
	p.cron = cron.New(cron.WithChain(
		cron.Recover(cron.PrintfLogger(&p.logger)),
		cron.SkipIfStillRunning(cron.DiscardLogger),
	))
	if _, err := p.cron.AddFunc(schedule, p.run); err != nil {
		return nil, fmt.Errorf("invalid prune schedule %q: %w", schedule, err)
	}
	return p, nil
}

func (p *ArchivePruner) Start() {
	p.logger.Info().Dur("retention", p.retention).Msg("Starting archive pruner")
	p.cron.Start()
}

// Stop waits for a running prune to finish or ctx to expire.
func (p *ArchivePruner) Stop(ctx context.Context) {
	select {
	case <-p.cron.Stop().Done():
	case <-ctx.Done():
	}
	p.logger.Info().Msg("Archive pruner stopped")
}

func (p *ArchivePruner) run() {
	ctx, cancel := context.WithTimeout(context.Background(), pruneTimeout)
	defer cancel()
	if _, err := p.PruneOnce(ctx); err != nil {
		p.logger.Error().Err(err).Msg("Archive prune failed")
	}
}

// PruneOnce removes every archived giveaway resolved before now - retention.
func (p *ArchivePruner) PruneOnce(ctx context.Context) (int, error) {
	cutoff := p.now().Add(-p.retention)
	n, err := p.store.PruneArchive(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	metrics.RecordArchivePruned(n)
	if n > 0 {
		p.logger.Info().Int("pruned", n).Time("cutoff", cutoff).Msg("Pruned archived giveaways")
	}
	return n, nil
}
