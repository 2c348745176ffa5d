package service

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	apperrors "friend-connect-backend/internal/common/errors"
	graphmodels "friend-connect-backend/internal/features/graph/models"
	"friend-connect-backend/internal/features/graph/repository"
	"friend-connect-backend/internal/features/notification/models"
	"friend-connect-backend/internal/metrics"
)

// Notifier persists and pushes an event to a user.
type Notifier interface {
	Dispatch(ctx context.Context, userID string, event models.Event) (graphmodels.Notification, error)
}

// Service runs the friend-request state machine:
// none -> pending(a->b) -> friends | none.
type Service struct {
	store    repository.GraphStore
	notifier Notifier
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(store repository.GraphStore, notifier Notifier, logger zerolog.Logger) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		logger:   logger.With().Str("component", "friends").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SendRequest records a request from -> to and notifies the target.
func (s *Service) SendRequest(ctx context.Context, from, to string) error {
	if from == to {
		return apperrors.NewValidationError("userId", "cannot send a friend request to yourself")
	}
	sender, err := s.store.GetUser(ctx, from)
	if err != nil {
		return repository.ToAppError(err, "send friend request")
	}
	if err := s.store.AddRequest(ctx, from, to, s.now()); err != nil {
		s.record("send", err)
		return repository.ToAppError(err, "send friend request")
	}
	s.record("send", nil)
	s.logger.Info().Str("from", from).Str("to", to).Msg("Friend request sent")

	s.notify(ctx, to, models.RequestReceived{From: sender.Summary()})
	return nil
}

// AcceptRequest turns requesterID's pending request to userID into a friendship
// and notifies the requester.
func (s *Service) AcceptRequest(ctx context.Context, userID, requesterID string) error {
	accepter, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return repository.ToAppError(err, "accept friend request")
	}
	if err := s.store.AcceptRequest(ctx, requesterID, userID); err != nil {
		s.record("accept", err)
		return repository.ToAppError(err, "accept friend request")
	}
	s.record("accept", nil)
	s.logger.Info().Str("user_id", userID).Str("requester", requesterID).Msg("Friend request accepted")

	s.notify(ctx, requesterID, models.RequestAccepted{By: accepter.Summary()})
	return nil
}

// RejectRequest drops the pending request without telling the requester, who
// may send a new one right away.
func (s *Service) RejectRequest(ctx context.Context, userID, requesterID string) error {
	if err := s.store.RemoveRequest(ctx, requesterID, userID); err != nil {
		s.record("reject", err)
		return repository.ToAppError(err, "reject friend request")
	}
	s.record("reject", nil)
	s.logger.Info().Str("user_id", userID).Str("requester", requesterID).Msg("Friend request rejected")
	return nil
}

func (s *Service) Unfriend(ctx context.Context, userID, friendID string) error {
	if err := s.store.RemoveFriend(ctx, userID, friendID); err != nil {
		s.record("unfriend", err)
		return repository.ToAppError(err, "unfriend")
	}
	s.record("unfriend", nil)
	s.logger.Info().Str("user_id", userID).Str("friend", friendID).Msg("Friendship removed")
	return nil
}

// ListFriends returns the user's friends ordered by username.
func (s *Service) ListFriends(ctx context.Context, userID string) ([]graphmodels.UserResponse, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, repository.ToAppError(err, "list friends")
	}
	friends, err := s.store.GetUsers(ctx, user.Friends)
	if err != nil {
		return nil, repository.ToAppError(err, "list friends")
	}
	out := make([]graphmodels.UserResponse, 0, len(friends))
	for _, f := range friends {
		out = append(out, f.Response())
	}
	sortByUsername(out)
	return out, nil
}

// ListRequests returns incoming pending requests, oldest first.
func (s *Service) ListRequests(ctx context.Context, userID string) ([]graphmodels.PendingRequest, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, repository.ToAppError(err, "list friend requests")
	}
	pending, err := repository.ResolveRequests(ctx, s.store, user)
	if err != nil {
		return nil, repository.ToAppError(err, "list friend requests")
	}
	return pending, nil
}

// notify runs after the graph change committed, so a failure here is logged
// and the change stands.
func (s *Service) notify(ctx context.Context, userID string, event models.Event) {
	if _, err := s.notifier.Dispatch(ctx, userID, event); err != nil {
		s.logger.Error().Err(err).
			Str("user_id", userID).
			Str("kind", string(event.Kind())).
			Msg("Failed to record notification")
	}
}

func (s *Service) record(op string, err error) {
	result := "ok"
	if err != nil {
		result = string(apperrors.CodeOf(repository.ToAppError(err, op)))
	}
	metrics.FriendOps.WithLabelValues(op, result).Inc()
}

func sortByUsername(users []graphmodels.UserResponse) {
	slices.SortFunc(users, func(a, b graphmodels.UserResponse) int {
		return cmp.Or(
			cmp.Compare(strings.ToLower(a.Username), strings.ToLower(b.Username)),
			cmp.Compare(a.ID, b.ID),
		)
	})
}
