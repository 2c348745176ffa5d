package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	graphmodels "friend-connect-backend/internal/features/graph/models"
)

func TestNotificationFrameNamesEachEvent(t *testing.T) {
	alice := graphmodels.UserSummary{ID: "u1", Username: "alice"}
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	cases := map[string]struct {
		event Event
		frame string
		text  string
	}{
		"request received": {RequestReceived{From: alice}, EventNewFriendRequest, "alice sent you a friend request"},
		"request accepted": {RequestAccepted{By: alice}, EventFriendRequestAccepted, "alice accepted your friend request"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			n := NewNotification(tc.event, "n1", at)
			assert.Equal(t, tc.event.Kind(), n.Kind)
			assert.Equal(t, alice, n.From)
			assert.Equal(t, tc.text, n.Message)

			f, err := NotificationFrame(n)
			require.NoError(t, err)
			assert.Equal(t, tc.frame, f.Event)
			assert.Equal(t, n, f.Data)
		})
	}
}

func TestNotificationFrameRejectsUnknownKind(t *testing.T) {
	_, err := NotificationFrame(graphmodels.Notification{Kind: "poke"})
	assert.Error(t, err)
}
