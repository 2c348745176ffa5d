package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"friend-connect-backend/internal/common/auth"
	"friend-connect-backend/internal/common/middleware"
	graphmodels "friend-connect-backend/internal/features/graph/models"
	"friend-connect-backend/internal/features/graph/repository/memory"
	"friend-connect-backend/internal/features/graph/repository/storetest"
	"friend-connect-backend/internal/features/notification/models"
	"friend-connect-backend/internal/features/notification/presence"
	"friend-connect-backend/internal/features/notification/service"
)

type harness struct {
	server     *httptest.Server
	tokens     *auth.Tokens
	registry   *presence.Registry
	dispatcher *service.Dispatcher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewGraphStore()
	storetest.Seed(t, store, "a", "b")
	registry := presence.NewRegistry()
	dispatcher := service.NewDispatcher(store, registry, zerolog.Nop())
	tokens := auth.NewTokens("secret", time.Hour)

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.ErrorHandler(zerolog.Nop()))
	NewHandler(dispatcher, tokens, "*", 8, zerolog.Nop()).RegisterRoutes(r.Group("/api"))

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return &harness{server: server, tokens: tokens, registry: registry, dispatcher: dispatcher}
}

func (h *harness) dial(t *testing.T, userID string) *websocket.Conn {
	t.Helper()
	token, _, err := h.tokens.Issue(userID)
	require.NoError(t, err)
	url := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/api/ws?token=" + token
	socket, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = socket.Close() })
	return socket
}

type outbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func read(t *testing.T, socket *websocket.Conn) outbound {
	t.Helper()
	require.NoError(t, socket.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f outbound
	require.NoError(t, socket.ReadJSON(&f))
	return f
}

func announce(t *testing.T, socket *websocket.Conn, userID string) {
	t.Helper()
	require.NoError(t, socket.WriteJSON(map[string]string{"event": models.EventUserConnected, "data": userID}))
}

func TestAnnounceSendsSnapshotAndPushes(t *testing.T) {
	h := newHarness(t)
	socket := h.dial(t, "a")
	announce(t, socket, "a")

	assert.Equal(t, models.EventPendingRequests, read(t, socket).Event)
	snapshot := read(t, socket)
	assert.Equal(t, models.EventNotifications, snapshot.Event)
	assert.JSONEq(t, `[]`, string(snapshot.Data))
	require.Eventually(t, func() bool { return h.registry.Online("a") }, time.Second, 10*time.Millisecond)

	n, err := h.dispatcher.Dispatch(context.Background(), "a", models.RequestReceived{
		From: graphmodels.UserSummary{ID: "b", Username: "user-b"},
	})
	require.NoError(t, err)

	push := read(t, socket)
	assert.Equal(t, models.EventNewFriendRequest, push.Event)
	var got graphmodels.Notification
	require.NoError(t, json.Unmarshal(push.Data, &got))
	assert.Equal(t, n.ID, got.ID)
	assert.Equal(t, "user-b", got.From.Username)
}

func TestAnnounceMismatchClosesConnection(t *testing.T) {
	h := newHarness(t)
	socket := h.dial(t, "a")
	announce(t, socket, "b")

	f := read(t, socket)
	assert.Equal(t, models.EventError, f.Event)
	assert.False(t, h.registry.Online("b"))

	require.NoError(t, socket.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := socket.ReadMessage()
	assert.Error(t, err)
}

func TestUnknownEventGetsError(t *testing.T) {
	h := newHarness(t)
	socket := h.dial(t, "a")
	require.NoError(t, socket.WriteJSON(map[string]string{"event": "dance"}))

	f := read(t, socket)
	assert.Equal(t, models.EventError, f.Event)
}

func TestDisconnectRemovesPresence(t *testing.T) {
	h := newHarness(t)
	socket := h.dial(t, "a")
	announce(t, socket, "a")
	read(t, socket)
	read(t, socket)
	require.True(t, h.registry.Online("a"))

	require.NoError(t, socket.Close())
	assert.Eventually(t, func() bool { return !h.registry.Online("a") }, 2*time.Second, 10*time.Millisecond)
}

func TestReconnectKeepsNewestChannel(t *testing.T) {
	h := newHarness(t)
	first := h.dial(t, "a")
	announce(t, first, "a")
	read(t, first)
	read(t, first)

	second := h.dial(t, "a")
	announce(t, second, "a")
	read(t, second)
	read(t, second)

	require.NoError(t, first.Close())
	// Give the server time to process the stale close.
	time.Sleep(100 * time.Millisecond)
	assert.True(t, h.registry.Online("a"))

	_, err := h.dispatcher.Dispatch(context.Background(), "a", models.RequestAccepted{
		By: graphmodels.UserSummary{ID: "b", Username: "user-b"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.EventFriendRequestAccepted, read(t, second).Event)
}

func TestMissingTokenIsRejected(t *testing.T) {
	h := newHarness(t)
	url := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/api/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
