package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"friend-connect-backend/internal/common/auth"
	apperrors "friend-connect-backend/internal/common/errors"
	"friend-connect-backend/internal/common/validation"
	graphmodels "friend-connect-backend/internal/features/graph/models"
	"friend-connect-backend/internal/features/graph/repository"
	"friend-connect-backend/internal/features/user/mapper"
	"friend-connect-backend/internal/features/user/models"
)

const (
	defaultListLimit = 50
	listPageSize     = 200
)

type userService struct {
	store      repository.GraphStore
	tokens     *auth.Tokens
	bcryptCost int
	logger     zerolog.Logger
	now        func() time.Time

	// dummyHash is compared against on unknown usernames so both login
	// failures take the same time.
	dummyHash []byte
}

func NewUserService(store repository.GraphStore, tokens *auth.Tokens, bcryptCost int, logger zerolog.Logger) UserService {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	dummy, _ := bcrypt.GenerateFromPassword([]byte("friend-connect"), bcryptCost)
	return &userService{
		store:      store,
		tokens:     tokens,
		bcryptCost: bcryptCost,
		logger:     logger.With().Str("component", "users").Logger(),
		now:        func() time.Time { return time.Now().UTC() },
		dummyHash:  dummy,
	}
}

func (s *userService) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	username := strings.TrimSpace(req.Username)
	if err := validation.ValidateUsername(username); err != nil {
		return nil, apperrors.NewValidationError("username", err.Error())
	}
	if len(req.Password) < validation.MinPasswordLength || len(req.Password) > validation.MaxPasswordLength {
		return nil, apperrors.NewValidationError("password", "must be between 6 and 72 characters")
	}
	interests, err := validation.NormalizeInterests(req.Interests)
	if err != nil {
		return nil, apperrors.NewValidationError("interests", err.Error())
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "Failed to hash password")
	}

	now := s.now()
	user := &graphmodels.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		Interests:    interests,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, repository.ToAppError(err, "create user")
	}
	s.logger.Info().Str("user_id", user.ID).Str("username", user.Username).Msg("User registered")
	return s.authResponse(user)
}

func (s *userService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	user, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(req.Username))
	if errors.Is(err, repository.ErrUserNotFound) {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(req.Password))
		return nil, badCredentials()
	}
	if err != nil {
		return nil, repository.ToAppError(err, "login")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.Info().Str("user_id", user.ID).Msg("Login failed: wrong password")
		return nil, badCredentials()
	}
	return s.authResponse(user)
}

func badCredentials() error {
	return apperrors.New(apperrors.ErrCodeBadCredentials, "Invalid username or password")
}

func (s *userService) authResponse(user *graphmodels.User) (*models.AuthResponse, error) {
	token, exp, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "Failed to issue token")
	}
	return &models.AuthResponse{Token: token, ExpiresAt: exp, User: user.Response()}, nil
}

func (s *userService) GetProfile(ctx context.Context, userID string) (*graphmodels.UserResponse, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, repository.ToAppError(err, "get profile")
	}
	resp := user.Response()
	return &resp, nil
}

// ListUsers walks the directory in id order from query.After until it has
// query.Limit matches.
func (s *userService) ListUsers(ctx context.Context, userID string, query models.ListQuery) ([]graphmodels.UserResponse, error) {
	me, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, repository.ToAppError(err, "list users")
	}
	limit := query.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	needle := strings.ToLower(strings.TrimSpace(query.Query))

	var matches []*graphmodels.User
	after := query.After
	for len(matches) < limit {
		page, err := s.store.ListUsers(ctx, after, listPageSize)
		if err != nil {
			return nil, repository.ToAppError(err, "list users")
		}
		for _, u := range page {
			if u.ID == me.ID || me.IsFriend(u.ID) {
				continue
			}
			if needle != "" && !strings.Contains(u.UsernameKey, needle) {
				continue
			}
			matches = append(matches, u)
			if len(matches) == limit {
				break
			}
		}
		if len(page) < listPageSize {
			break
		}
		after = page[len(page)-1].ID
	}
	return mapper.ToUserResponses(matches), nil
}

// SetInterests replaces the user's interests and returns the stored set.
func (s *userService) SetInterests(ctx context.Context, userID string, interests []string) ([]string, error) {
	normalized, err := validation.NormalizeInterests(interests)
	if err != nil {
		return nil, apperrors.NewValidationError("interests", err.Error())
	}
	if err := s.store.SetInterests(ctx, userID, normalized); err != nil {
		return nil, repository.ToAppError(err, "set interests")
	}
	return normalized, nil
}
