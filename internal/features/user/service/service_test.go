package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"friend-connect-backend/internal/common/auth"
	apperrors "friend-connect-backend/internal/common/errors"
	graphmodels "friend-connect-backend/internal/features/graph/models"
	"friend-connect-backend/internal/features/graph/repository"
	"friend-connect-backend/internal/features/graph/repository/memory"
	"friend-connect-backend/internal/features/graph/repository/storetest"
	"friend-connect-backend/internal/features/user/models"
)

func newTestService(t *testing.T) (UserService, repository.GraphStore, *auth.Tokens) {
	t.Helper()
	store := memory.NewGraphStore()
	tokens := auth.NewTokens("secret", time.Hour)
	return NewUserService(store, tokens, bcrypt.MinCost, zerolog.Nop()), store, tokens
}

func TestRegisterAndLogin(t *testing.T) {
	svc, store, tokens := newTestService(t)
	ctx := context.Background()

	resp, err := svc.Register(ctx, models.RegisterRequest{
		Username:  "Alice",
		Password:  "hunter22",
		Interests: []string{"Music", "Music", "Art"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice", resp.User.Username)
	assert.Equal(t, []string{"Music", "Art"}, resp.User.Interests)

	subject, err := tokens.Verify(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, subject)

	stored, err := store.GetUser(ctx, resp.User.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", stored.PasswordHash)

	login, err := svc.Login(ctx, models.LoginRequest{Username: "alice", Password: "hunter22"})
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, login.User.ID)
}

func TestRegisterErrors(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, models.RegisterRequest{Username: "alice", Password: "hunter22"})
	require.NoError(t, err)

	cases := map[string]struct {
		req  models.RegisterRequest
		code apperrors.ErrorCode
	}{
		"taken ignoring case": {models.RegisterRequest{Username: "ALICE", Password: "hunter22"}, apperrors.ErrCodeUsernameTaken},
		"bad username":        {models.RegisterRequest{Username: "a b", Password: "hunter22"}, apperrors.ErrCodeValidation},
		"short password":      {models.RegisterRequest{Username: "bob", Password: "123"}, apperrors.ErrCodeValidation},
		"unknown interest":    {models.RegisterRequest{Username: "bob", Password: "hunter22", Interests: []string{"Knitting"}}, apperrors.ErrCodeValidation},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Register(ctx, tc.req)
			assert.Equal(t, tc.code, apperrors.CodeOf(err))
		})
	}
}

func TestLoginFailures(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, models.RegisterRequest{Username: "alice", Password: "hunter22"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, models.LoginRequest{Username: "alice", Password: "wrong-one"})
	assert.Equal(t, apperrors.ErrCodeBadCredentials, apperrors.CodeOf(err))
	_, err = svc.Login(ctx, models.LoginRequest{Username: "nobody", Password: "hunter22"})
	assert.Equal(t, apperrors.ErrCodeBadCredentials, apperrors.CodeOf(err))
}

func responseIDs(users []graphmodels.UserResponse) []string {
	out := make([]string, len(users))
	for i, u := range users {
		out[i] = u.ID
	}
	return out
}

func TestListUsersExcludesSelfAndFriends(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	storetest.Seed(t, store, "a", "b", "c", "d")
	storetest.Befriend(t, store, "a", "b")
	require.NoError(t, store.AddRequest(ctx, "c", "a", time.Now()))

	users, err := svc.ListUsers(ctx, "a", models.ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "d"}, responseIDs(users))

	users, err = svc.ListUsers(ctx, "a", models.ListQuery{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, responseIDs(users))

	users, err = svc.ListUsers(ctx, "a", models.ListQuery{Limit: 1, After: "c"})
	require.NoError(t, err)
	assert.Equal(t, []string{"d"}, responseIDs(users))

	_, err = svc.ListUsers(ctx, "ghost", models.ListQuery{})
	assert.Equal(t, apperrors.ErrCodeUserNotFound, apperrors.CodeOf(err))
}

func TestSearchIsCaseInsensitiveSubstring(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	for id, name := range map[string]string{"1": "Alice", "2": "malice", "3": "Bob", "4": "ALIBABA"} {
		require.NoError(t, store.CreateUser(ctx, &graphmodels.User{ID: id, Username: name}))
	}
	storetest.Befriend(t, store, "3", "2")

	users, err := svc.ListUsers(ctx, "3", models.ListQuery{Query: "ALI"})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "4"}, responseIDs(users))

	users, err = svc.ListUsers(ctx, "1", models.ListQuery{Query: "lic"})
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, responseIDs(users))
}

func TestSetInterests(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	storetest.Seed(t, store, "a")

	got, err := svc.SetInterests(ctx, "a", []string{"Travel", "Food", "Travel"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Travel", "Food"}, got)

	profile, err := svc.GetProfile(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"Travel", "Food"}, profile.Interests)

	_, err = svc.SetInterests(ctx, "a", []string{"Knitting"})
	assert.Equal(t, apperrors.ErrCodeValidation, apperrors.CodeOf(err))
	_, err = svc.SetInterests(ctx, "ghost", []string{"Food"})
	assert.Equal(t, apperrors.ErrCodeUserNotFound, apperrors.CodeOf(err))
}
