package service

import (
	"context"
	"errors"
	"time"

	"github.com/disgoorg/snowflake/v2"

	apperrors "github.com/roblox669900-cpu/giveaway-bot/internal/common/errors"
	"github.com/roblox669900-cpu/giveaway-bot/internal/features/giveaway/models"
	"github.com/roblox669900-cpu/giveaway-bot/internal/features/giveaway/selection"
	"github.com/roblox669900-cpu/giveaway-bot/internal/metrics"
)

// activeInGuild loads an active giveaway, hiding other guilds' giveaways.
func (e *Engine) activeInGuild(ctx context.Context, guildID snowflake.ID, id int64) (*models.Giveaway, error) {
	g, err := e.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storeError("get giveaway", id, err)
	}
	if guildID != 0 && g.GuildID != guildID {
		return nil, apperrors.NewGiveawayNotFoundError(id)
	}
	return g, nil
}

// Cancel ends an active giveaway without drawing winners.
func (e *Engine) Cancel(ctx context.Context, guildID snowflake.ID, id int64) (*models.Giveaway, error) {
	g, err := e.activeInGuild(ctx, guildID, id)
	if err != nil {
		return nil, err
	}

	lc := e.lookup(id)
	if lc == nil {
		lc = &lifecycle{cancel: func() {}}
	}
	if !lc.claimed.CompareAndSwap(false, true) {
		return nil, apperrors.NewConflictError("giveaway", "it is already being resolved")
	}
	lc.cancel()

	// closes the record to overrides before it is finalized
	if fresh, err := e.repo.BeginResolution(ctx, id, e.now()); err == nil {
		g = fresh
	} else {
		e.logger.Warn().Err(err).Int64("giveaway_id", id).Msg("Failed to mark cancelled giveaway as resolving")
	}

	markTerminal(g, models.StatusCancelled, models.AbortReasonCancelled, e.now())
	e.finalize(ctx, lc, g, nil, time.Now())
	return g.Clone(), nil
}

// Reroll draws one new winner from the current reactors of a completed
// giveaway. Entry requirements are deliberately not applied: any current
// reactor can win a reroll.
func (e *Engine) Reroll(ctx context.Context, guildID snowflake.ID, id int64) (snowflake.ID, error) {
	g, err := e.repo.GetArchived(ctx, id)
	if err != nil {
		return 0, storeError("get archived giveaway", id, err)
	}
	if g.Status != models.StatusCompleted || (guildID != 0 && g.GuildID != guildID) {
		return 0, apperrors.NewGiveawayNotFoundError(id)
	}

	reactors, err := e.fetchReactors(ctx, g)
	switch {
	case errors.Is(err, ErrReactionMissing), errors.Is(err, ErrMessageMissing):
		return 0, apperrors.NewNoParticipantsError(id)
	case err != nil:
		return 0, apperrors.NewDiscordAPIError("fetch reactors", err)
	}

	winner, ok := selection.DrawOne(reactors, e.src)
	if !ok {
		return 0, apperrors.NewNoParticipantsError(id)
	}

	g.Rerolls = append(g.Rerolls, winner)
	g.UpdatedAt = e.now()
	if err := e.repo.Archive(ctx, g); err != nil {
		e.logger.Warn().Err(err).Int64("giveaway_id", id).Msg("Failed to record reroll")
	}
	metrics.RecordReroll()
	e.logger.Info().Int64("giveaway_id", id).Str("winner", winner.String()).Msg("Giveaway rerolled")
	return winner, nil
}

// SetForcedWinner sets the override winner of an active giveaway. The user
// must be a guild member; eligibility is only checked at resolution, where an
// ineligible override falls back to a random draw. Once resolution has begun
// the store refuses the override and a conflict is returned.
func (e *Engine) SetForcedWinner(ctx context.Context, guildID snowflake.ID, id int64, userID snowflake.ID) error {
	g, err := e.activeInGuild(ctx, guildID, id)
	if err != nil {
		return err
	}
	if g.Status.IsTerminal() || g.Status == models.StatusResolving {
		return apperrors.NewConflictError("giveaway", "it is already being resolved")
	}

	if _, err := e.chat.ResolveMember(ctx, g.GuildID, userID); err != nil {
		if errors.Is(err, ErrMemberNotFound) {
			return apperrors.NewNotFoundError("member", userID.String())
		}
		return apperrors.NewDiscordAPIError("resolve member", err)
	}

	if err := e.repo.SetForcedWinner(ctx, id, userID); err != nil {
		return storeError("set forced winner", id, err)
	}
	e.logger.Info().Int64("giveaway_id", id).Msg("Forced winner set")
	return nil
}
