package repository

import (
	"context"
	"errors"

	apperrors "friend-connect-backend/internal/common/errors"
)

// ToAppError translates store errors into API errors. Unknown errors become
// database errors; the cause is kept for logging only.
func ToAppError(err error, operation string) error {
	if err == nil {
		return nil
	}
	if _, ok := apperrors.AsAppError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, ErrUserNotFound):
		return apperrors.New(apperrors.ErrCodeUserNotFound, "User not found")
	case errors.Is(err, ErrUsernameTaken):
		return apperrors.NewConflictError(apperrors.ErrCodeUsernameTaken, "Username is already taken")
	case errors.Is(err, ErrSelfRequest):
		return apperrors.NewValidationError("userId", "cannot send a friend request to yourself")
	case errors.Is(err, ErrRequestExists):
		return apperrors.NewConflictError(apperrors.ErrCodeRequestExists, "Friend request already pending")
	case errors.Is(err, ErrAlreadyFriends):
		return apperrors.NewConflictError(apperrors.ErrCodeAlreadyFriends, "You are already friends")
	case errors.Is(err, ErrRequestNotFound):
		return apperrors.New(apperrors.ErrCodeRequestNotFound, "Friend request not found")
	case errors.Is(err, ErrNotFriends):
		return apperrors.New(apperrors.ErrCodeNotFriends, "You are not friends with this user")
	case errors.Is(err, ErrNotificationNotFound):
		return apperrors.New(apperrors.ErrCodeNotificationNotFound, "Notification not found")
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewTimeoutError(operation, err)
	default:
		return apperrors.NewDatabaseError(operation, err)
	}
}
