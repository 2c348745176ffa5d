package service

import (
	"context"

	graphmodels "friend-connect-backend/internal/features/graph/models"
	"friend-connect-backend/internal/features/user/models"
)

type UserService interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error)
	GetProfile(ctx context.Context, userID string) (*graphmodels.UserResponse, error)
	// ListUsers returns users other than the caller and the caller's friends,
	// optionally filtered by a case-insensitive username substring.
	ListUsers(ctx context.Context, userID string, query models.ListQuery) ([]graphmodels.UserResponse, error)
	SetInterests(ctx context.Context, userID string, interests []string) ([]string, error)
}
