package models

import (
	"time"

	graphmodels "friend-connect-backend/internal/features/graph/models"
)

// RegisterRequest is the body of POST /auth/register.
// @Description Registration credentials
type RegisterRequest struct {
	Username  string   `json:"username" binding:"required,username" example:"johndoe"`
	Password  string   `json:"password" binding:"required,min=6,max=72" example:"secret123"`
	Interests []string `json:"interests" binding:"omitempty,max=15,dive,interest" example:"Music,Books"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Username string `json:"username" binding:"required" example:"johndoe"`
	Password string `json:"password" binding:"required" example:"secret123"`
}

// AuthResponse carries a session token and the signed-in user.
type AuthResponse struct {
	Token     string                   `json:"token"`
	ExpiresAt time.Time                `json:"expires_at"`
	User      graphmodels.UserResponse `json:"user"`
}

// InterestsRequest is the body of PUT /interests.
type InterestsRequest struct {
	Interests []string `json:"interests" binding:"required,max=15,dive,interest" example:"Music,Travel"`
}

type InterestsResponse struct {
	Message   string   `json:"message"`
	Interests []string `json:"interests"`
}

// ListQuery pages through the user directory.
type ListQuery struct {
	Query string `form:"q"`
	After string `form:"after"`
	Limit int    `form:"limit" binding:"omitempty,min=1,max=100"`
}
