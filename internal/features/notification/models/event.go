package models

import (
	"encoding/json"
	"fmt"
	"time"

	graphmodels "friend-connect-backend/internal/features/graph/models"
)

// Live channel event names.
const (
	EventUserConnected         = "user_connected"
	EventPendingRequests       = "pending_requests"
	EventNotifications         = "notifications"
	EventNewFriendRequest      = "new_friend_request"
	EventFriendRequestAccepted = "friend_request_accepted"
	EventError                 = "error"
)

// Event is a graph change worth telling a user about. The set of
// implementations is closed; each fixes its payload shape.
type Event interface {
	Kind() graphmodels.NotificationKind
	Source() graphmodels.UserSummary
	Message() string
	isEvent()
}

// RequestReceived tells the target that From sent a friend request.
type RequestReceived struct {
	From graphmodels.UserSummary
}

func (RequestReceived) Kind() graphmodels.NotificationKind { return graphmodels.KindRequestReceived }
func (e RequestReceived) Source() graphmodels.UserSummary   { return e.From }
func (e RequestReceived) Message() string {
	return fmt.Sprintf("%s sent you a friend request", e.From.Username)
}
func (RequestReceived) isEvent() {}

// RequestAccepted tells the requester that By accepted the request.
type RequestAccepted struct {
	By graphmodels.UserSummary
}

func (RequestAccepted) Kind() graphmodels.NotificationKind { return graphmodels.KindRequestAccepted }
func (e RequestAccepted) Source() graphmodels.UserSummary   { return e.By }
func (e RequestAccepted) Message() string {
	return fmt.Sprintf("%s accepted your friend request", e.By.Username)
}
func (RequestAccepted) isEvent() {}

// NewNotification builds the log entry persisted for e.
func NewNotification(e Event, id string, at time.Time) graphmodels.Notification {
	return graphmodels.Notification{
		ID:        id,
		Kind:      e.Kind(),
		From:      e.Source(),
		Message:   e.Message(),
		CreatedAt: at,
	}
}

// LiveEventFor maps a persisted kind back to its frame name.
func LiveEventFor(kind graphmodels.NotificationKind) (string, error) {
	switch kind {
	case graphmodels.KindRequestReceived:
		return EventNewFriendRequest, nil
	case graphmodels.KindRequestAccepted:
		return EventFriendRequestAccepted, nil
	}
	return "", fmt.Errorf("unknown notification kind %q", kind)
}

// Frame is a server to client message on the live channel.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// InboundFrame is a client to server message on the live channel.
type InboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func NotificationFrame(n graphmodels.Notification) (Frame, error) {
	name, err := LiveEventFor(n.Kind)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Event: name, Data: n}, nil
}

func ErrorFrame(message string) Frame {
	return Frame{Event: EventError, Data: map[string]string{"message": message}}
}
