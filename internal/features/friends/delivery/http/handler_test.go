package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"friend-connect-backend/internal/common/auth"
	"friend-connect-backend/internal/common/middleware"
	"friend-connect-backend/internal/features/friends/service"
	graphmodels "friend-connect-backend/internal/features/graph/models"
	"friend-connect-backend/internal/features/graph/repository/memory"
	"friend-connect-backend/internal/features/graph/repository/storetest"
	"friend-connect-backend/internal/features/notification/presence"
	notificationservice "friend-connect-backend/internal/features/notification/service"
)

type harness struct {
	router *gin.Engine
	tokens *auth.Tokens
}

func newHarness(t *testing.T, limiter *middleware.UserRateLimiter) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewGraphStore()
	storetest.Seed(t, store, "a", "b", "c", "d")
	dispatcher := notificationservice.NewDispatcher(store, presence.NewRegistry(), zerolog.Nop())
	svc := service.NewService(store, dispatcher, zerolog.Nop())
	tokens := auth.NewTokens("secret", time.Hour)

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.ErrorHandler(zerolog.Nop()))
	api := r.Group("/api", middleware.RequireAuth(tokens))
	NewFriendsHandler(svc, limiter).RegisterRoutes(api)
	return &harness{router: r, tokens: tokens}
}

func (h *harness) do(t *testing.T, userID, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	token, _, err := h.tokens.Issue(userID)
	require.NoError(t, err)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	h.router.ServeHTTP(w, req)
	return w
}

func TestFriendRequestFlow(t *testing.T) {
	h := newHarness(t, nil)

	w := h.do(t, "a", http.MethodPost, "/api/friends/request/b")
	require.Equal(t, http.StatusCreated, w.Code)

	w = h.do(t, "a", http.MethodPost, "/api/friends/request/b")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = h.do(t, "b", http.MethodGet, "/api/friends/requests")
	require.Equal(t, http.StatusOK, w.Code)
	var pending []graphmodels.PendingRequest
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pending))
	require.Len(t, pending, 1)
	assert.Equal(t, "user-a", pending[0].From.Username)

	w = h.do(t, "b", http.MethodPut, "/api/friends/accept/a")
	require.Equal(t, http.StatusOK, w.Code)

	w = h.do(t, "a", http.MethodGet, "/api/friends")
	require.Equal(t, http.StatusOK, w.Code)
	var friends []graphmodels.UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &friends))
	require.Len(t, friends, 1)
	assert.Equal(t, "b", friends[0].ID)

	w = h.do(t, "a", http.MethodDelete, "/api/friends/b")
	require.Equal(t, http.StatusOK, w.Code)
	w = h.do(t, "a", http.MethodDelete, "/api/friends/b")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRejectAndErrors(t *testing.T) {
	h := newHarness(t, nil)

	require.Equal(t, http.StatusCreated, h.do(t, "c", http.MethodPost, "/api/friends/request/d").Code)
	assert.Equal(t, http.StatusOK, h.do(t, "d", http.MethodPut, "/api/friends/reject/c").Code)
	assert.Equal(t, http.StatusNotFound, h.do(t, "d", http.MethodPut, "/api/friends/reject/c").Code)
	assert.Equal(t, http.StatusNotFound, h.do(t, "d", http.MethodPut, "/api/friends/accept/c").Code)

	assert.Equal(t, http.StatusBadRequest, h.do(t, "a", http.MethodPost, "/api/friends/request/a").Code)
	assert.Equal(t, http.StatusNotFound, h.do(t, "a", http.MethodPost, "/api/friends/request/ghost").Code)
}

func TestSendRequestIsRateLimited(t *testing.T) {
	h := newHarness(t, middleware.NewUserRateLimiter(1, 2))

	assert.Equal(t, http.StatusCreated, h.do(t, "a", http.MethodPost, "/api/friends/request/b").Code)
	assert.Equal(t, http.StatusCreated, h.do(t, "a", http.MethodPost, "/api/friends/request/c").Code)
	assert.Equal(t, http.StatusTooManyRequests, h.do(t, "a", http.MethodPost, "/api/friends/request/d").Code)
	// Other endpoints are not limited.
	assert.Equal(t, http.StatusOK, h.do(t, "a", http.MethodGet, "/api/friends").Code)
}
