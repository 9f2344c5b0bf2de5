package service

import (
	"net/url"
	"strings"
	"time"

	"github.com/disgoorg/snowflake/v2"

	apperrors "github.com/roblox669900-cpu/giveaway-bot/internal/common/errors"
	"github.com/roblox669900-cpu/giveaway-bot/internal/features/giveaway/models"
	"github.com/roblox669900-cpu/giveaway-bot/internal/utils/duration"
)

const maxPrizeLength = 256

// CreateCommand is the raw giveaway command as typed by a user.
type CreateCommand struct {
	GuildID   snowflake.ID
	ChannelID snowflake.ID
	HostID    snowflake.ID
	Duration  string
	Winners   int
	Messages  int
	Voice     string // duration string, "0" or empty when not required
	Prize     string
	ImageURL  string
}

// CreateRequest is a validated giveaway creation request.
type CreateRequest struct {
	GuildID      snowflake.ID
	ChannelID    snowflake.ID
	HostID       snowflake.ID
	Duration     time.Duration
	WinnerCount  int
	Requirements models.Thresholds
	Prize        string
	ImageURL     string
}

// ParseCreateCommand validates a raw command. Nothing is created when it
// fails.
func ParseCreateCommand(cmd CreateCommand) (CreateRequest, error) {
	minutes, err := duration.ParseMinutes(cmd.Duration)
	if err != nil {
		return CreateRequest{}, err
	}

	var voice int
	if v := strings.TrimSpace(cmd.Voice); v != "" && v != "0" {
		voice, err = duration.ParseMinutes(v)
		if err != nil {
			return CreateRequest{}, err
		}
	}

	req := CreateRequest{
		GuildID:      cmd.GuildID,
		ChannelID:    cmd.ChannelID,
		HostID:       cmd.HostID,
		Duration:     time.Duration(minutes) * time.Minute,
		WinnerCount:  cmd.Winners,
		Requirements: models.Thresholds{Messages: cmd.Messages, VoiceMinutes: float64(voice)},
		Prize:        strings.TrimSpace(cmd.Prize),
		ImageURL:     strings.TrimSpace(cmd.ImageURL),
	}
	return req, req.Validate()
}

func (r CreateRequest) Validate() error {
	if r.Duration <= 0 {
		return apperrors.NewInvalidDurationError(r.Duration.String())
	}
	if r.WinnerCount <= 0 {
		return apperrors.NewInvalidWinnersError(r.WinnerCount)
	}
	if r.Requirements.Messages < 0 {
		return apperrors.NewValidationError("messages", "must not be negative")
	}
	if r.Requirements.VoiceMinutes < 0 {
		return apperrors.NewValidationError("voice", "must not be negative")
	}
	if r.Prize == "" {
		return apperrors.NewValidationError("prize", "is required")
	}
	if len(r.Prize) > maxPrizeLength {
		return apperrors.NewValidationError("prize", "is too long")
	}
	if r.ImageURL != "" {
		u, err := url.Parse(r.ImageURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return apperrors.NewValidationError("image", "must be an http(s) URL")
		}
	}
	if r.GuildID == 0 || r.ChannelID == 0 {
		return apperrors.NewValidationError("guild", "giveaways can only run inside a server channel")
	}
	return nil
}
