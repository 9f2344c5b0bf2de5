// Package duration parses the short duration strings accepted by giveaway
// commands and formats countdowns for display.
package duration

import (
	"fmt"
	"strconv"
	"strings"

	apperrors "github.com/roblox669900-cpu/giveaway-bot/internal/common/errors"
)

const (
	minutesPerHour = 60
	minutesPerDay  = 1440
)

var unitMinutes = map[byte]int{
	'm': 1,
	'h': minutesPerHour,
	'd': minutesPerDay,
}

// ParseMinutes accepts a positive integer immediately followed by a single
// unit suffix (m, h or d). Composite forms like "1h30m" are rejected.
func ParseMinutes(text string) (int, error) {
	if len(text) < 2 {
		return 0, apperrors.NewInvalidDurationError(text)
	}

	mult, ok := unitMinutes[text[len(text)-1]]
	if !ok {
		return 0, apperrors.NewInvalidDurationError(text)
	}

	digits := text[:len(text)-1]
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return 0, apperrors.NewInvalidDurationError(text)
		}
	}

	n, err := strconv.Atoi(digits)
	if err != nil || n <= 0 {
		return 0, apperrors.NewInvalidDurationError(text)
	}
	if n > (1<<31-1)/mult {
		return 0, apperrors.NewInvalidDurationError(text)
	}
	return n * mult, nil
}

// FormatRemaining renders seconds as "1d 2h 3m", omitting zero units.
func FormatRemaining(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	totalMinutes := seconds / 60
	days := totalMinutes / minutesPerDay
	hours := (totalMinutes % minutesPerDay) / minutesPerHour
	minutes := totalMinutes % minutesPerHour

	parts := make([]string, 0, 3)
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	if len(parts) == 0 {
		return "0m"
	}
	return strings.Join(parts, " ")
}
