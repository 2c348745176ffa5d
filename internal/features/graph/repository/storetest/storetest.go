// Package storetest holds behavioural tests shared by every GraphStore driver.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"friend-connect-backend/internal/features/graph/models"
	"friend-connect-backend/internal/features/graph/repository"
)

// Run exercises a fresh store returned by newStore for every subtest.
func Run(t *testing.T, newStore func(t *testing.T) repository.GraphStore) {
	tests := map[string]func(t *testing.T, s repository.GraphStore){
		"create and lookup":            testCreateAndLookup,
		"username is unique":           testUsernameUnique,
		"bulk get skips unknown":       testGetUsers,
		"list pages by id":             testListUsers,
		"request lifecycle":            testRequestLifecycle,
		"request conflicts":            testRequestConflicts,
		"reject removes request only":  testReject,
		"unfriend":                     testUnfriend,
		"notifications":                testNotifications,
		"interests":                    testInterests,
		"concurrent duplicate request": testConcurrentDuplicateRequest,
		"concurrent accept and append": testConcurrentAcceptAndAppend,
		"concurrent cross requests":    testConcurrentCrossRequests,
		"concurrent accept unfriend":   testConcurrentAcceptAndUnfriend,
		"timestamps are utc":           testTimestampsUTC,
	}
	for name, fn := range tests {
		t.Run(name, func(t *testing.T) {
			fn(t, newStore(t))
		})
	}
}

// Seed creates users with the given ids; usernames are "user-<id>".
func Seed(t *testing.T, s repository.GraphStore, ids ...string) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, s.CreateUser(context.Background(), &models.User{
			ID:        id,
			Username:  "user-" + id,
			CreatedAt: time.Now().UTC(),
		}))
	}
}

// Befriend makes a and b friends through the request workflow.
func Befriend(t *testing.T, s repository.GraphStore, a, b string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.AddRequest(ctx, a, b, time.Now().UTC()))
	require.NoError(t, s.AcceptRequest(ctx, a, b))
}

func testCreateAndLookup(t *testing.T, s repository.GraphStore) {
	ctx := context.Background()
	Seed(t, s, "a")

	u, err := s.GetUser(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "user-a", u.Username)

	u, err = s.GetUserByUsername(ctx, "USER-A")
	require.NoError(t, err)
	assert.Equal(t, "a", u.ID)

	_, err = s.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
	_, err = s.GetUserByUsername(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}

func testUsernameUnique(t *testing.T, s repository.GraphStore) {
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, &models.User{ID: "1", Username: "Alice"}))

	err := s.CreateUser(ctx, &models.User{ID: "2", Username: "alice"})
	assert.ErrorIs(t, err, repository.ErrUsernameTaken)
}

func testGetUsers(t *testing.T, s repository.GraphStore) {
	Seed(t, s, "a", "b")

	users, err := s.GetUsers(context.Background(), []string{"a", "zz", "b"})
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "a", users[0].ID)
	assert.Equal(t, "b", users[1].ID)
}

func testListUsers(t *testing.T, s repository.GraphStore) {
	ctx := context.Background()
	Seed(t, s, "c", "a", "d", "b")

	page, err := s.ListUsers(ctx, "", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(page))

	page, err = s.ListUsers(ctx, "b", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "d"}, ids(page))

	page, err = s.ListUsers(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, page, 4)
}

func testRequestLifecycle(t *testing.T, s repository.GraphStore) {
	ctx := context.Background()
	Seed(t, s, "a", "b")

	require.NoError(t, s.AddRequest(ctx, "a", "b", time.Now().UTC()))
	b, err := s.GetUser(ctx, "b")
	require.NoError(t, err)
	require.Len(t, b.Requests, 1)
	assert.Equal(t, "a", b.Requests[0].From)

	require.NoError(t, s.AcceptRequest(ctx, "a", "b"))

	a, err := s.GetUser(ctx, "a")
	require.NoError(t, err)
	b, err = s.GetUser(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, a.Friends)
	assert.Equal(t, []string{"a"}, b.Friends)
	assert.Empty(t, b.Requests)

	assert.ErrorIs(t, s.AcceptRequest(ctx, "a", "b"), repository.ErrRequestNotFound)
}

func testRequestConflicts(t *testing.T, s repository.GraphStore) {
	ctx := context.Background()
	now := time.Now().UTC()
	Seed(t, s, "a", "b", "c")

	require.NoError(t, s.AddRequest(ctx, "a", "b", now))
	assert.ErrorIs(t, s.AddRequest(ctx, "a", "b", now), repository.ErrRequestExists)
	assert.ErrorIs(t, s.AddRequest(ctx, "b", "a", now), repository.ErrRequestExists)
	assert.ErrorIs(t, s.AddRequest(ctx, "a", "a", now), repository.ErrSelfRequest)
	assert.ErrorIs(t, s.AddRequest(ctx, "a", "zz", now), repository.ErrUserNotFound)

	Befriend(t, s, "a", "c")
	assert.ErrorIs(t, s.AddRequest(ctx, "c", "a", now), repository.ErrAlreadyFriends)
}

func testReject(t *testing.T, s repository.GraphStore) {
	ctx := context.Background()
	Seed(t, s, "a", "b")

	require.NoError(t, s.AddRequest(ctx, "a", "b", time.Now().UTC()))
	require.NoError(t, s.RemoveRequest(ctx, "a", "b"))
	assert.ErrorIs(t, s.RemoveRequest(ctx, "a", "b"), repository.ErrRequestNotFound)

	a, err := s.GetUser(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, a.Friends)

	// Re-sending right after a rejection is allowed.
	assert.NoError(t, s.AddRequest(ctx, "a", "b", time.Now().UTC()))
}

func testUnfriend(t *testing.T, s repository.GraphStore) {
	ctx := context.Background()
	Seed(t, s, "a", "b")

	assert.ErrorIs(t, s.RemoveFriend(ctx, "a", "b"), repository.ErrNotFriends)

	Befriend(t, s, "a", "b")
	require.NoError(t, s.RemoveFriend(ctx, "b", "a"))

	a, _ := s.GetUser(ctx, "a")
	b, _ := s.GetUser(ctx, "b")
	assert.Empty(t, a.Friends)
	assert.Empty(t, b.Friends)
	assert.ErrorIs(t, s.RemoveFriend(ctx, "a", "b"), repository.ErrNotFriends)
}

func testNotifications(t *testing.T, s repository.GraphStore) {
	ctx := context.Background()
	Seed(t, s, "a")

	for i := 0; i < 3; i++ {
		require.NoError(t, s.AppendNotification(ctx, "a", models.Notification{
			ID:      fmt.Sprintf("n%d", i),
			Kind:    models.KindRequestReceived,
			Message: "hello",
		}))
	}
	require.NoError(t, s.MarkNotificationRead(ctx, "a", "n1"))
	assert.ErrorIs(t, s.MarkNotificationRead(ctx, "a", "nope"), repository.ErrNotificationNotFound)

	a, err := s.GetUser(ctx, "a")
	require.NoError(t, err)
	require.Len(t, a.Notifications, 3)
	assert.Equal(t, []string{"n0", "n1", "n2"}, []string{a.Notifications[0].ID, a.Notifications[1].ID, a.Notifications[2].ID})
	assert.True(t, a.Notifications[1].Read)
	assert.Len(t, a.UnreadNotifications(), 2)

	require.NoError(t, s.ClearNotifications(ctx, "a"))
	a, _ = s.GetUser(ctx, "a")
	assert.Empty(t, a.Notifications)

	assert.ErrorIs(t, s.AppendNotification(ctx, "zz", models.Notification{ID: "x"}), repository.ErrUserNotFound)
}

func testInterests(t *testing.T, s repository.GraphStore) {
	ctx := context.Background()
	Seed(t, s, "a")

	require.NoError(t, s.SetInterests(ctx, "a", []string{"Music", "Books"}))
	a, err := s.GetUser(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"Music", "Books"}, a.Interests)
	assert.ErrorIs(t, s.SetInterests(ctx, "zz", nil), repository.ErrUserNotFound)
}

func testConcurrentDuplicateRequest(t *testing.T, s repository.GraphStore) {
	ctx := context.Background()
	Seed(t, s, "a", "b")

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.AddRequest(ctx, "a", "b", time.Now().UTC())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case assert.ErrorIs(t, err, repository.ErrRequestExists):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, conflicts)
	b, _ := s.GetUser(ctx, "b")
	assert.Len(t, b.Requests, 1)
}

func testConcurrentAcceptAndAppend(t *testing.T, s repository.GraphStore) {
	ctx := context.Background()
	Seed(t, s, "a", "b")
	require.NoError(t, s.AddRequest(ctx, "a", "b", time.Now().UTC()))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		assert.NoError(t, s.AcceptRequest(ctx, "a", "b"))
	}()
	go func() {
		defer wg.Done()
		assert.NoError(t, s.AppendNotification(ctx, "b", models.Notification{ID: "n"}))
	}()
	wg.Wait()

	a, _ := s.GetUser(ctx, "a")
	b, _ := s.GetUser(ctx, "b")
	assert.Equal(t, []string{"b"}, a.Friends)
	assert.Equal(t, []string{"a"}, b.Friends)
	assert.Empty(t, b.Requests)
	assert.Len(t, b.Notifications, 1)
}

// Two users asking each other at once must end with exactly one pending
// request.
func testConcurrentCrossRequests(t *testing.T, s repository.GraphStore) {
	ctx := context.Background()
	const rounds = 20
	for i := 0; i < rounds; i++ {
		a, b := fmt.Sprintf("a%02d", i), fmt.Sprintf("b%02d", i)
		Seed(t, s, a, b)

		var (
			wg   sync.WaitGroup
			errs [2]error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			errs[0] = s.AddRequest(ctx, a, b, time.Now().UTC())
		}()
		go func() {
			defer wg.Done()
			errs[1] = s.AddRequest(ctx, b, a, time.Now().UTC())
		}()
		wg.Wait()

		wins := 0
		for _, err := range errs {
			if err == nil {
				wins++
				continue
			}
			assert.ErrorIs(t, err, repository.ErrRequestExists)
		}
		assert.Equal(t, 1, wins, "round %d", i)

		ua, err := s.GetUser(ctx, a)
		require.NoError(t, err)
		ub, err := s.GetUser(ctx, b)
		require.NoError(t, err)
		assert.Equal(t, 1, len(ua.Requests)+len(ub.Requests), "round %d", i)
	}
}

// Accepting a request while the pair is being unfriended must leave the
// friendship either on both sides or on neither.
func testConcurrentAcceptAndUnfriend(t *testing.T, s repository.GraphStore) {
	ctx := context.Background()
	const rounds = 20
	for i := 0; i < rounds; i++ {
		a, b := fmt.Sprintf("a%02d", i), fmt.Sprintf("b%02d", i)
		Seed(t, s, a, b)
		require.NoError(t, s.AddRequest(ctx, a, b, time.Now().UTC()))

		var (
			wg          sync.WaitGroup
			unfriendErr error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.AcceptRequest(ctx, a, b))
		}()
		go func() {
			defer wg.Done()
			unfriendErr = s.RemoveFriend(ctx, a, b)
		}()
		wg.Wait()

		ua, err := s.GetUser(ctx, a)
		require.NoError(t, err)
		ub, err := s.GetUser(ctx, b)
		require.NoError(t, err)
		assert.Equal(t, ua.IsFriend(b), ub.IsFriend(a), "round %d: one-sided edge", i)
		assert.Empty(t, ub.Requests, "round %d", i)
		if unfriendErr == nil {
			assert.False(t, ua.IsFriend(b), "round %d", i)
		} else {
			assert.ErrorIs(t, unfriendErr, repository.ErrNotFriends)
			assert.True(t, ua.IsFriend(b), "round %d", i)
		}
	}
}

func testTimestampsUTC(t *testing.T, s repository.GraphStore) {
	ctx := context.Background()
	Seed(t, s, "a", "b")
	require.NoError(t, s.SetInterests(ctx, "a", []string{"Music"}))
	Befriend(t, s, "b", "a")

	for _, id := range []string{"a", "b"} {
		u, err := s.GetUser(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, time.UTC, u.UpdatedAt.Location(), id)
	}
}

func ids(users []*models.User) []string {
	out := make([]string, len(users))
	for i, u := range users {
		out[i] = u.ID
	}
	return out
}
