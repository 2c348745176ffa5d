package repository

import (
	"context"
	"errors"
	"time"

	"friend-connect-backend/internal/features/graph/models"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrUsernameTaken        = errors.New("username already taken")
	ErrSelfRequest          = errors.New("cannot befriend yourself")
	ErrRequestExists        = errors.New("friend request already pending")
	ErrAlreadyFriends       = errors.New("users are already friends")
	ErrRequestNotFound      = errors.New("friend request not found")
	ErrNotFriends           = errors.New("users are not friends")
	ErrNotificationNotFound = errors.New("notification not found")
)

// GraphStore holds users and the friend graph. Every method that touches two
// users either commits both sides or neither.
type GraphStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	// GetUsers bulk-loads the given ids in one round trip. Unknown ids are skipped.
	GetUsers(ctx context.Context, ids []string) ([]*models.User, error)
	// ListUsers returns up to limit users ordered by id, starting after the
	// given id ("" for the beginning). limit <= 0 means no limit.
	ListUsers(ctx context.Context, after string, limit int) ([]*models.User, error)
	SetInterests(ctx context.Context, id string, interests []string) error

	AddRequest(ctx context.Context, from, to string, at time.Time) error
	AcceptRequest(ctx context.Context, from, to string) error
	RemoveRequest(ctx context.Context, from, to string) error
	RemoveFriend(ctx context.Context, a, b string) error

	AppendNotification(ctx context.Context, userID string, n models.Notification) error
	MarkNotificationRead(ctx context.Context, userID, notificationID string) error
	ClearNotifications(ctx context.Context, userID string) error

	Ping(ctx context.Context) error
}

// ApplySendRequest records a pending request from -> to on the loaded documents.
func ApplySendRequest(from, to *models.User, at time.Time) error {
	if from.ID == to.ID {
		return ErrSelfRequest
	}
	if from.IsFriend(to.ID) || to.IsFriend(from.ID) {
		return ErrAlreadyFriends
	}
	if to.HasRequestFrom(from.ID) || from.HasRequestFrom(to.ID) {
		return ErrRequestExists
	}
	to.Requests = append(to.Requests, models.FriendRequest{From: from.ID, CreatedAt: at})
	to.UpdatedAt = at
	return nil
}

// ApplyAccept turns the pending request requester -> target into a friend edge.
func ApplyAccept(requester, target *models.User, at time.Time) error {
	if !target.RemoveRequest(requester.ID) {
		return ErrRequestNotFound
	}
	target.AddFriend(requester.ID)
	requester.AddFriend(target.ID)
	target.UpdatedAt = at
	requester.UpdatedAt = at
	return nil
}

// ApplyUnfriend removes the edge between a and b.
func ApplyUnfriend(a, b *models.User, at time.Time) error {
	if a.ID == b.ID {
		return ErrNotFriends
	}
	removedA := a.RemoveFriend(b.ID)
	removedB := b.RemoveFriend(a.ID)
	if !removedA && !removedB {
		return ErrNotFriends
	}
	a.UpdatedAt = at
	b.UpdatedAt = at
	return nil
}
