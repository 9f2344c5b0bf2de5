package service

import (
	"errors"

	apperrors "github.com/roblox669900-cpu/giveaway-bot/internal/common/errors"
	"github.com/roblox669900-cpu/giveaway-bot/internal/features/giveaway/repository"
)

// Returned by ChatClient implementations.
var (
	ErrReactionMissing = errors.New("entry reaction missing")
	ErrMessageMissing  = errors.New("announcement message missing")
	ErrMemberNotFound  = errors.New("guild member not found")
)

// storeError maps repository failures onto AppErrors.
func storeError(op string, id int64, err error) error {
	if errors.Is(err, repository.ErrGiveawayNotFound) {
		return apperrors.NewGiveawayNotFoundError(id)
	}
	if errors.Is(err, repository.ErrNotCounting) {
		return apperrors.NewConflictError("giveaway", "it is already being resolved")
	}
	return apperrors.NewStoreError(op, err).WithDetail("giveaway_id", id)
}
