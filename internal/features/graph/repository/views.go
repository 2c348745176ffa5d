package repository

import (
	"context"

	"friend-connect-backend/internal/features/graph/models"
)

// ResolveRequests turns u's pending requests into requester summaries with a
// single bulk read. Requests from users that no longer exist are dropped.
func ResolveRequests(ctx context.Context, store GraphStore, u *models.User) ([]models.PendingRequest, error) {
	out := make([]models.PendingRequest, 0, len(u.Requests))
	if len(u.Requests) == 0 {
		return out, nil
	}
	ids := make([]string, len(u.Requests))
	for i, r := range u.Requests {
		ids[i] = r.From
	}
	summaries, err := Summaries(ctx, store, ids)
	if err != nil {
		return nil, err
	}
	for _, r := range u.Requests {
		if s, ok := summaries[r.From]; ok {
			out = append(out, models.PendingRequest{From: s, CreatedAt: r.CreatedAt})
		}
	}
	return out, nil
}

// Summaries bulk-loads ids and indexes their summaries by id.
func Summaries(ctx context.Context, store GraphStore, ids []string) (map[string]models.UserSummary, error) {
	users, err := store.GetUsers(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[string]models.UserSummary, len(users))
	for _, u := range users {
		out[u.ID] = u.Summary()
	}
	return out, nil
}
