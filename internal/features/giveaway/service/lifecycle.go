package service

import (
	"context"
	"errors"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/jpillora/backoff"

	apperrors "github.com/roblox669900-cpu/giveaway-bot/internal/common/errors"
	"github.com/roblox669900-cpu/giveaway-bot/internal/features/giveaway/models"
	"github.com/roblox669900-cpu/giveaway-bot/internal/features/giveaway/repository"
	"github.com/roblox669900-cpu/giveaway-bot/internal/features/giveaway/selection"
	"github.com/roblox669900-cpu/giveaway-bot/internal/metrics"
)

// runCountdown refreshes the announcement until the window closes. Refresh
// failures never affect the giveaway.
func (e *Engine) runCountdown(ctx context.Context, lc *lifecycle, id int64) {
	ticker := time.NewTicker(e.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !e.refresh(ctx, lc, id) {
				return
			}
		}
	}
}

func (e *Engine) refresh(ctx context.Context, lc *lifecycle, id int64) bool {
	g, err := e.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrGiveawayNotFound) {
		return false
	}
	if err != nil {
		e.logger.Warn().Err(err).Int64("giveaway_id", id).Msg("Countdown could not load giveaway")
		return true
	}
	if g.Status != models.StatusCounting {
		return false
	}
	now := e.now()
	if g.HasEnded(now) {
		return false
	}

	e.persistCounters(ctx, g)

	lc.displayMu.Lock()
	defer lc.displayMu.Unlock()
	if lc.claimed.Load() {
		return false
	}
	if err := e.chat.EditAnnouncement(ctx, g.Message, RenderAnnouncement(g, now, e.emoji)); err != nil {
		metrics.RecordDisplayFailure()
		e.logger.Warn().
			Err(apperrors.NewDisplayFailureError(id, err)).
			Int64("giveaway_id", id).
			Msg("Countdown refresh failed")
	}
	return true
}

func (e *Engine) runExpiry(ctx context.Context, lc *lifecycle, id int64, endsAt time.Time) {
	timer := time.NewTimer(max(0, endsAt.Sub(e.now())))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	if !lc.claimed.CompareAndSwap(false, true) {
		return
	}
	defer lc.cancel()
	e.resolve(ctx, lc, id)
}

func (e *Engine) resolve(ctx context.Context, lc *lifecycle, id int64) {
	started := time.Now()
	log := e.logger.With().Int64("giveaway_id", id).Logger()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		return
	}
	defer func() { <-e.sem }()

	// from here on the stored record refuses overrides, so g carries the last one
	g, err := e.repo.BeginResolution(ctx, id, e.now())
	switch {
	case errors.Is(err, repository.ErrGiveawayNotFound), errors.Is(err, repository.ErrNotCounting):
		log.Warn().Err(err).Msg("Giveaway cannot be resolved")
		e.forget(id, lc)
		return
	case err != nil:
		log.Warn().Err(err).Msg("Failed to mark giveaway as resolving")
		if g, err = e.repo.GetByID(ctx, id); err != nil {
			log.Error().Err(err).Msg("Giveaway vanished before resolution")
			e.forget(id, lc)
			return
		}
	}

	roster := e.settle(ctx, g)
	if ctx.Err() != nil {
		// shutting down: the record stays active and is resolved on resume
		log.Warn().Msg("Resolution interrupted")
		return
	}

	e.finalize(context.WithoutCancel(ctx), lc, g, roster, started)
}

// settle decides the outcome and records it on g. The open voice sessions are
// flushed before the roster is read.
func (e *Engine) settle(ctx context.Context, g *models.Giveaway) []models.Participant {
	log := e.logger.With().Int64("giveaway_id", g.ID).Logger()
	now := e.now()

	tracker := e.tracker(g)
	if present, err := e.chat.VoiceOccupants(ctx, g.GuildID); err != nil {
		log.Warn().Err(err).Msg("Failed to read voice occupants, crediting every open session")
		tracker.FlushAllSessions(now)
	} else {
		tracker.FlushOpenSessions(present, now)
	}

	reactors, err := e.fetchReactors(ctx, g)
	switch {
	case errors.Is(err, ErrReactionMissing), errors.Is(err, ErrMessageMissing):
		log.Info().Err(err).Msg("Entry target gone, aborting giveaway")
		markTerminal(g, models.StatusAborted, models.AbortReasonReactionMissing, now)
		return nil
	case err != nil:
		log.Error().Err(err).Msg("Failed to fetch reactors, aborting giveaway")
		markTerminal(g, models.StatusAborted, models.AbortReasonFetchFailed, now)
		return nil
	}

	roster := selection.BuildRoster(reactors, g.Requirements, tracker.Snapshot)
	eligible := selection.Eligible(roster)
	winners := selection.Draw(eligible, g.WinnerCount, g.ForcedWinner, e.src)

	log.Info().
		Int("reactors", len(roster)).
		Int("eligible", len(eligible)).
		Int("winners", len(winners)).
		Msg("Winners drawn")

	if len(winners) == 0 {
		markTerminal(g, models.StatusAborted, models.AbortReasonNoEligible, now)
		return roster
	}
	markTerminal(g, models.StatusCompleted, "", now)
	g.Winners = winners
	return roster
}

func markTerminal(g *models.Giveaway, status models.Status, reason string, at time.Time) {
	g.Status = status
	g.AbortReason = reason
	g.ResolvedAt = &at
	g.UpdatedAt = at
}

// fetchReactors retries transient failures with exponential backoff. A
// missing message or reaction is final.
func (e *Engine) fetchReactors(ctx context.Context, g *models.Giveaway) ([]snowflake.ID, error) {
	b := &backoff.Backoff{Min: e.retryMin, Max: e.retryMax, Factor: 2, Jitter: true}

	for attempt := 1; ; attempt++ {
		reactors, err := e.chat.FetchReactors(ctx, g.Message, e.emoji)
		if err == nil {
			return reactors, nil
		}
		if errors.Is(err, ErrReactionMissing) || errors.Is(err, ErrMessageMissing) || attempt >= e.resolveRetries {
			return nil, err
		}

		delay := b.Duration()
		e.logger.Warn().
			Err(err).
			Int64("giveaway_id", g.ID).
			Int("attempt", attempt).
			Dur("retry_in", delay).
			Msg("Failed to fetch reactors")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}

// finalize announces the outcome, moves the record to the archive and drops
// the per-giveaway state. roster is nil when no roster was read.
func (e *Engine) finalize(ctx context.Context, lc *lifecycle, g *models.Giveaway, roster []models.Participant, started time.Time) {
	log := e.logger.With().Int64("giveaway_id", g.ID).Str("status", string(g.Status)).Logger()

	var notice string
	if g.Status == models.StatusCompleted {
		notice = WinnersMessage(g)
	} else {
		notice = AbortMessage(g)
		log.Warn().Err(apperrors.NewResolutionAbortedError(g.ID, g.AbortReason)).Msg("Giveaway ended without winners")
	}
	if err := e.chat.SendNotification(ctx, g.Message.ChannelID, notice); err != nil {
		log.Error().Err(err).Msg("Failed to send giveaway result")
	}

	lc.displayMu.Lock()
	if err := e.chat.EditAnnouncement(ctx, g.Message, RenderEnded(g)); err != nil {
		log.Debug().Err(err).Msg("Failed to edit announcement to its final state")
	}
	lc.displayMu.Unlock()

	if err := e.repo.Archive(ctx, g); err != nil {
		log.Error().Err(err).Msg("Failed to archive giveaway")
	}
	if err := e.repo.Remove(ctx, g.ID); err != nil {
		log.Error().Err(err).Msg("Failed to remove giveaway")
	}
	e.trackers.Close(g.GuildID, g.ID)
	e.forget(g.ID, lc)

	participantCount := -1
	if roster != nil {
		participantCount = len(roster)
	}
	metrics.RecordGiveawayResolved(string(g.Status), participantCount, time.Since(started))

	outcome := models.Outcome{
		GiveawayID:   g.ID,
		GuildID:      g.GuildID,
		Status:       g.Status,
		Winners:      g.Winners,
		Participants: roster,
		Reason:       g.AbortReason,
		ResolvedAt:   *g.ResolvedAt,
	}
	for _, hook := range e.hooks {
		hook(outcome)
	}

	log.Info().Int("winners", len(g.Winners)).Str("reason", g.AbortReason).Msg("Giveaway resolved")
}
