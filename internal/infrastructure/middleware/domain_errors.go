package middleware

import (
	stderrors "errors"
	"net/http"

	"dancebattle/internal/core/domain"
	"dancebattle/pkg/errors"
)

// MapDomainError maps a domain sentinel (possibly wrapped) onto the API error taxonomy.
// Errors that already are AppErrors pass through; anything unknown becomes INTERNAL_ERROR.
func MapDomainError(err error) *errors.AppError {
	if err == nil {
		return nil
	}
	if appErr := errors.GetAppError(err); appErr != nil {
		return appErr
	}

	var mapped *errors.AppError
	switch {
	case stderrors.Is(err, domain.ErrRoomNotFound):
		mapped = errors.NewNotFoundError("room")
	case stderrors.Is(err, domain.ErrPlayerNotFound):
		mapped = errors.NewNotFoundError("player")
	case stderrors.Is(err, domain.ErrInvalidScore),
		stderrors.Is(err, domain.ErrInvalidSDP),
		stderrors.Is(err, domain.ErrInvalidICECandidate):
		mapped = errors.NewInvalidInputError(err.Error())
	case stderrors.Is(err, domain.ErrRoomCodeConflict):
		mapped = errors.NewConflictError(err.Error())
	case stderrors.Is(err, domain.ErrRoomFull),
		stderrors.Is(err, domain.ErrGameAlreadyStarted),
		stderrors.Is(err, domain.ErrGameNotStarted),
		stderrors.Is(err, domain.ErrGameCompleted),
		stderrors.Is(err, domain.ErrNotEnoughPlayers),
		stderrors.Is(err, domain.ErrAlreadySubmitted),
		stderrors.Is(err, domain.ErrNotRoomMember):
		mapped = errors.NewFailedPreconditionError(err.Error())
	default:
		return errors.WrapError(err, errors.ErrCodeInternal, "internal error", http.StatusInternalServerError)
	}
	mapped.Cause = err
	return mapped
}
