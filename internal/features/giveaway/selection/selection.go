// Package selection decides who may win a giveaway and draws the winners.
package selection

import (
	"github.com/disgoorg/snowflake/v2"

	"github.com/roblox669900-cpu/giveaway-bot/internal/features/giveaway/models"
	"github.com/roblox669900-cpu/giveaway-bot/internal/utils/random"
)

// SnapshotFunc returns a user's message count and voice minutes.
type SnapshotFunc func(userID snowflake.ID) (int, float64)

// IsEligible applies the entry requirements. With no requirement set everyone
// qualifies; otherwise meeting either threshold is enough.
func IsEligible(th models.Thresholds, messages int, voiceMinutes float64) bool {
	if th.Unset() {
		return true
	}
	if th.Messages > 0 && messages >= th.Messages {
		return true
	}
	if th.VoiceMinutes > 0 && voiceMinutes >= th.VoiceMinutes {
		return true
	}
	return false
}

// BuildRoster evaluates every reactor. Duplicate reactor ids are collapsed.
func BuildRoster(reactors []snowflake.ID, th models.Thresholds, snapshot SnapshotFunc) []models.Participant {
	seen := make(map[snowflake.ID]struct{}, len(reactors))
	roster := make([]models.Participant, 0, len(reactors))
	for _, id := range reactors {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		m, v := snapshot(id)
		roster = append(roster, models.Participant{
			UserID:       id,
			Messages:     m,
			VoiceMinutes: v,
			Eligible:     IsEligible(th, m, v),
		})
	}
	return roster
}

// Eligible returns the ids of eligible participants, in roster order.
func Eligible(roster []models.Participant) []snowflake.ID {
	out := make([]snowflake.ID, 0, len(roster))
	for _, p := range roster {
		if p.Eligible {
			out = append(out, p.UserID)
		}
	}
	return out
}

// Draw picks the winners from the eligible pool. A forced winner found in the
// pool wins alone regardless of winnerCount; a forced winner outside the pool
// is ignored and the draw falls back to uniform sampling of
// min(winnerCount, len(eligible)) users without replacement.
func Draw(eligible []snowflake.ID, winnerCount int, forced *snowflake.ID, src random.Source) []snowflake.ID {
	if forced != nil {
		for _, id := range eligible {
			if id == *forced {
				return []snowflake.ID{id}
			}
		}
	}
	return random.Sample(src, eligible, winnerCount)
}

// DrawOne picks a single user from an unfiltered pool. Used by rerolls, which
// deliberately skip the entry requirements.
func DrawOne(pool []snowflake.ID, src random.Source) (snowflake.ID, bool) {
	return random.Pick(src, pool)
}
