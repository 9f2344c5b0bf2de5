package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/disgoorg/snowflake/v2"

	"github.com/roblox669900-cpu/giveaway-bot/internal/features/giveaway/models"
	"github.com/roblox669900-cpu/giveaway-bot/internal/utils/duration"
)

// Mention formats a user mention.
func Mention(id snowflake.ID) string {
	return "<@" + id.String() + ">"
}

func mentions(ids []snowflake.ID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = Mention(id)
	}
	return strings.Join(parts, ", ")
}

func formatMinutes(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func requirementsText(th models.Thresholds) string {
	if th.Unset() {
		return "None, everyone who reacts can win"
	}
	var b strings.Builder
	if th.Messages > 0 {
		fmt.Fprintf(&b, "💬 Messages: %d\n", th.Messages)
	}
	if th.VoiceMinutes > 0 {
		fmt.Fprintf(&b, "🎧 VC Minutes: %s\n", formatMinutes(th.VoiceMinutes))
	}
	if th.Messages > 0 && th.VoiceMinutes > 0 {
		b.WriteString("Meeting either one is enough.")
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderAnnouncement builds the announcement for a giveaway snapshot. It has
// no side effects; the countdown calls it on every refresh.
func RenderAnnouncement(g *models.Giveaway, now time.Time, emoji string) models.Announcement {
	remaining := duration.FormatRemaining(int64(g.Remaining(now) / time.Second))

	desc := fmt.Sprintf(`🆔 **Giveaway ID:** %d

🏆 **Prize:** %s
⏱ **Duration:** %s
⌛ **Time left:** %s
👥 **Winners:** %d
🎙 **Host:** %s

📋 **Requirements**
%s

React %s to enter!`,
		g.ID,
		g.Prize,
		duration.FormatRemaining(int64(g.Duration()/time.Second)),
		remaining,
		g.WinnerCount,
		Mention(g.HostID),
		requirementsText(g.Requirements),
		emoji,
	)

	return models.Announcement{
		Title:       "🎉 GIVEAWAY 🎉",
		Description: desc,
		Color:       announcementColor,
		ImageURL:    g.ImageURL,
		Footer:      "Ends at " + g.EndsAt.UTC().Format("2006-01-02 15:04 UTC"),
	}
}

// RenderEnded builds the final state of the announcement.
func RenderEnded(g *models.Giveaway) models.Announcement {
	var result string
	switch g.Status {
	case models.StatusCompleted:
		result = "🏆 **Winner(s):** " + mentions(g.Winners)
	case models.StatusCancelled:
		result = "❌ Cancelled"
	default:
		result = "❌ No winner: " + g.AbortReason
	}

	desc := fmt.Sprintf("🆔 **Giveaway ID:** %d\n\n🏆 **Prize:** %s\n\n%s", g.ID, g.Prize, result)
	return models.Announcement{
		Title:       "🎉 GIVEAWAY ENDED 🎉",
		Description: desc,
		Color:       endedColor,
		ImageURL:    g.ImageURL,
		Footer:      "Ended at " + g.EndsAt.UTC().Format("2006-01-02 15:04 UTC"),
	}
}

// WinnersMessage is posted to the channel when a giveaway completes.
func WinnersMessage(g *models.Giveaway) string {
	return fmt.Sprintf("🎉 **GIVEAWAY ENDED!** 🎉\n🆔 Giveaway ID: %d\n🏆 Winner(s): %s", g.ID, mentions(g.Winners))
}

// AbortMessage is posted when a giveaway ends without winners.
func AbortMessage(g *models.Giveaway) string {
	switch g.AbortReason {
	case models.AbortReasonNoEligible:
		return fmt.Sprintf("❌ **No one met the giveaway requirements.** (Giveaway ID: %d)", g.ID)
	case models.AbortReasonFetchFailed:
		return fmt.Sprintf("❌ Giveaway %d could not read its entries and was cancelled.", g.ID)
	}
	return fmt.Sprintf("❌ Giveaway %d cancelled.", g.ID)
}

// RerollMessage announces the winner of a reroll.
func RerollMessage(id int64, winner snowflake.ID) string {
	return fmt.Sprintf("🔁 **Rerolled Winner:** %s (Giveaway ID: %d)", Mention(winner), id)
}

// HelpText describes the commands and entry rules.
func HelpText(emoji string) string {
	return fmt.Sprintf(`**Commands**
`+"`/giveaway duration winners prize [messages] [voice] [image]`"+`
`+"`/reroll id`"+`
`+"`/setwinner id user`"+`
`+"`/gcancel id`"+`
`+"`/glist`"+`

**Rules**
• React %s to enter
• Message OR VC requirement (either one is enough)
• VC time counts even if you joined before the giveaway started
• Each giveaway counts activity separately
• Durations look like 10m, 2h or 1d`, emoji)
}
