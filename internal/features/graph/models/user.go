package models

import (
	"slices"
	"time"
)

// User is the stored user document. Friend edges, incoming requests and the
// notification log are embedded so a single document read yields the user's
// whole neighbourhood.
type User struct {
	ID            string          `json:"id" bson:"_id"`
	Username      string          `json:"username" bson:"username"`
	UsernameKey   string          `json:"username_key" bson:"username_key"`
	PasswordHash  string          `json:"password_hash" bson:"password_hash"`
	Interests     []string        `json:"interests" bson:"interests"`
	Friends       []string        `json:"friends" bson:"friends"`
	Requests      []FriendRequest `json:"requests" bson:"requests"`
	Notifications []Notification  `json:"notifications" bson:"notifications"`
	CreatedAt     time.Time       `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" bson:"updated_at"`
}

// FriendRequest is a pending request embedded in the target user.
type FriendRequest struct {
	From      string    `json:"from" bson:"from"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// NotificationKind is the closed set of persisted notification kinds.
type NotificationKind string

const (
	KindRequestReceived NotificationKind = "request_received"
	KindRequestAccepted NotificationKind = "request_accepted"
)

// Notification is an entry of a user's notification log.
type Notification struct {
	ID        string           `json:"id" bson:"id"`
	Kind      NotificationKind `json:"kind" bson:"kind"`
	From      UserSummary      `json:"from" bson:"from"`
	Message   string           `json:"message" bson:"message"`
	Read      bool             `json:"read" bson:"read"`
	CreatedAt time.Time        `json:"created_at" bson:"created_at"`
}

// UserSummary is the minimal public view of a user.
type UserSummary struct {
	ID       string `json:"id" bson:"id"`
	Username string `json:"username" bson:"username"`
}

// UserResponse is the public view of a user returned by the API.
type UserResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Interests []string  `json:"interests"`
	Friends   int       `json:"friends_count"`
	CreatedAt time.Time `json:"created_at"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Username: u.Username}
}

func (u *User) Response() UserResponse {
	interests := u.Interests
	if interests == nil {
		interests = []string{}
	}
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Interests: interests,
		Friends:   len(u.Friends),
		CreatedAt: u.CreatedAt,
	}
}

func (u *User) IsFriend(id string) bool {
	return slices.Contains(u.Friends, id)
}

// HasRequestFrom reports whether u holds a pending request sent by id.
func (u *User) HasRequestFrom(id string) bool {
	return u.requestIndex(id) >= 0
}

func (u *User) requestIndex(from string) int {
	return slices.IndexFunc(u.Requests, func(r FriendRequest) bool { return r.From == from })
}

// AddFriend inserts id into the friend set, keeping it a set.
func (u *User) AddFriend(id string) {
	if !u.IsFriend(id) {
		u.Friends = append(u.Friends, id)
	}
}

// RemoveFriend reports whether id was present.
func (u *User) RemoveFriend(id string) bool {
	i := slices.Index(u.Friends, id)
	if i < 0 {
		return false
	}
	u.Friends = slices.Delete(u.Friends, i, i+1)
	return true
}

// RemoveRequest deletes the pending request from id and reports whether it existed.
func (u *User) RemoveRequest(from string) bool {
	i := u.requestIndex(from)
	if i < 0 {
		return false
	}
	u.Requests = slices.Delete(u.Requests, i, i+1)
	return true
}

// UnreadNotifications returns the unread part of the log in log order.
func (u *User) UnreadNotifications() []Notification {
	out := make([]Notification, 0, len(u.Notifications))
	for _, n := range u.Notifications {
		if !n.Read {
			out = append(out, n)
		}
	}
	return out
}

// MarkRead reports whether a notification with the given id exists.
func (u *User) MarkRead(notificationID string) bool {
	for i := range u.Notifications {
		if u.Notifications[i].ID == notificationID {
			u.Notifications[i].Read = true
			return true
		}
	}
	return false
}

// Clone returns a deep copy so stores can hand out snapshots safely.
func (u *User) Clone() *User {
	c := *u
	c.Interests = slices.Clone(u.Interests)
	c.Friends = slices.Clone(u.Friends)
	c.Requests = slices.Clone(u.Requests)
	c.Notifications = slices.Clone(u.Notifications)
	return &c
}

// PendingRequest is an incoming request resolved to the requester's summary.
type PendingRequest struct {
	From      UserSummary `json:"from"`
	CreatedAt time.Time   `json:"created_at"`
}
