package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "friend-connect-backend/internal/common/errors"
	graphmodels "friend-connect-backend/internal/features/graph/models"
	"friend-connect-backend/internal/features/graph/repository"
	"friend-connect-backend/internal/features/graph/repository/memory"
	"friend-connect-backend/internal/features/graph/repository/storetest"
	"friend-connect-backend/internal/features/notification/models"
	"friend-connect-backend/internal/features/notification/presence"
	"friend-connect-backend/internal/features/notification/presence/presencetest"
)

type fixture struct {
	store      repository.GraphStore
	registry   *presence.Registry
	dispatcher *Dispatcher
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	store := memory.NewGraphStore()
	storetest.Seed(t, store, "a", "b", "c")
	registry := presence.NewRegistry()
	return &fixture{
		store:      store,
		registry:   registry,
		dispatcher: NewDispatcher(store, registry, zerolog.Nop(), opts...),
	}
}

func received(from string) models.Event {
	return models.RequestReceived{From: graphmodels.UserSummary{ID: from, Username: "user-" + from}}
}

func TestConnectSendsSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.AddRequest(ctx, "b", "a", time.Now()))
	_, err := f.dispatcher.Dispatch(ctx, "a", received("b"))
	require.NoError(t, err)

	ch := presencetest.NewRecorder()
	require.NoError(t, f.dispatcher.Connect(ctx, "a", ch))

	frames := ch.Frames()
	require.Len(t, frames, 2)
	assert.Equal(t, models.EventPendingRequests, frames[0].Event)
	pending, ok := frames[0].Data.([]graphmodels.PendingRequest)
	require.True(t, ok)
	require.Len(t, pending, 1)
	assert.Equal(t, "user-b", pending[0].From.Username)

	assert.Equal(t, models.EventNotifications, frames[1].Event)
	unread, ok := frames[1].Data.([]graphmodels.Notification)
	require.True(t, ok)
	require.Len(t, unread, 1)
	assert.Equal(t, graphmodels.KindRequestReceived, unread[0].Kind)
	assert.True(t, f.registry.Online("a"))
}

func TestConnectUnknownUser(t *testing.T) {
	f := newFixture(t)
	err := f.dispatcher.Connect(context.Background(), "ghost", presencetest.NewRecorder())

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeUserNotFound, appErr.Code)
	assert.False(t, f.registry.Online("ghost"))
}

func TestDispatchPushesToOnlineUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ch := presencetest.NewRecorder()
	require.NoError(t, f.dispatcher.Connect(ctx, "a", ch))

	n, err := f.dispatcher.Dispatch(ctx, "a", received("b"))
	require.NoError(t, err)

	frames := ch.Frames()
	require.Len(t, frames, 3)
	assert.Equal(t, models.EventNewFriendRequest, frames[2].Event)
	pushed, ok := frames[2].Data.(graphmodels.Notification)
	require.True(t, ok)
	assert.Equal(t, n.ID, pushed.ID)
	assert.Equal(t, "user-b sent you a friend request", pushed.Message)
}

func TestDispatchPersistsWhileOffline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.dispatcher.Dispatch(ctx, "a", models.RequestAccepted{
		By: graphmodels.UserSummary{ID: "c", Username: "user-c"},
	})
	require.NoError(t, err)

	list, err := f.dispatcher.List(ctx, "a")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, graphmodels.KindRequestAccepted, list[0].Kind)
	assert.False(t, list[0].Read)
}

func TestPushFailureDoesNotFailDispatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ch := presencetest.NewRecorder()
	require.NoError(t, f.dispatcher.Connect(ctx, "a", ch))
	ch.SetFailing(true)

	_, err := f.dispatcher.Dispatch(ctx, "a", received("b"))
	require.NoError(t, err)

	list, err := f.dispatcher.List(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestDispatchToUnknownUserFails(t *testing.T) {
	f := newFixture(t)
	_, err := f.dispatcher.Dispatch(context.Background(), "ghost", received("b"))

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeUserNotFound, appErr.Code)
}

func TestNotificationSurvivesReconnect(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := presencetest.NewRecorder()
	require.NoError(t, f.dispatcher.Connect(ctx, "a", first))
	f.dispatcher.Disconnect(first)
	first.Close()
	assert.False(t, f.registry.Online("a"))

	n, err := f.dispatcher.Dispatch(ctx, "a", received("b"))
	require.NoError(t, err)

	second := presencetest.NewRecorder()
	require.NoError(t, f.dispatcher.Connect(ctx, "a", second))
	frames := second.Frames()
	require.Len(t, frames, 2)
	unread := frames[1].Data.([]graphmodels.Notification)
	require.Len(t, unread, 1)
	assert.Equal(t, n.ID, unread[0].ID)
}

func TestStaleDisconnectAfterReconnect(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := presencetest.NewRecorder()
	second := presencetest.NewRecorder()
	require.NoError(t, f.dispatcher.Connect(ctx, "a", first))
	require.NoError(t, f.dispatcher.Connect(ctx, "a", second))
	f.dispatcher.Disconnect(first)

	assert.True(t, f.registry.Online("a"))
	_, err := f.dispatcher.Dispatch(ctx, "a", received("b"))
	require.NoError(t, err)
	assert.Equal(t, []string{
		models.EventPendingRequests, models.EventNotifications, models.EventNewFriendRequest,
	}, second.Events())
	assert.Len(t, first.Events(), 2)
}

func TestMarkReadAndClear(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n, err := f.dispatcher.Dispatch(ctx, "a", received("b"))
	require.NoError(t, err)

	require.NoError(t, f.dispatcher.MarkRead(ctx, "a", n.ID))
	err = f.dispatcher.MarkRead(ctx, "a", "missing")
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeNotificationNotFound, appErr.Code)

	list, err := f.dispatcher.List(ctx, "a")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].Read)

	require.NoError(t, f.dispatcher.Clear(ctx, "a"))
	list, err = f.dispatcher.List(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, list)
}

type recordingPublisher struct {
	published []string
	err       error
}

func (p *recordingPublisher) Publish(_ context.Context, userID string, _ graphmodels.Notification) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, userID)
	return nil
}

func TestDispatchUsesPublisher(t *testing.T) {
	pub := &recordingPublisher{}
	f := newFixture(t, WithPublisher(pub))
	ctx := context.Background()
	ch := presencetest.NewRecorder()
	require.NoError(t, f.dispatcher.Connect(ctx, "a", ch))

	_, err := f.dispatcher.Dispatch(ctx, "a", received("b"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, pub.published)
	// Local delivery waits for the subscriber.
	assert.Len(t, ch.Frames(), 2)
}

func TestPublishFailureKeepsNotification(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("redis down")}
	f := newFixture(t, WithPublisher(pub))
	ctx := context.Background()

	_, err := f.dispatcher.Dispatch(ctx, "a", received("b"))
	require.NoError(t, err)
	list, err := f.dispatcher.List(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestShutdownClearsRegistry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.dispatcher.Connect(ctx, "a", presencetest.NewRecorder()))
	require.NoError(t, f.dispatcher.Connect(ctx, "b", presencetest.NewRecorder()))

	assert.Len(t, f.dispatcher.Shutdown(), 2)
	assert.Equal(t, 0, f.registry.Count())
}
