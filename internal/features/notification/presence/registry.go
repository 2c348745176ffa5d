package presence

import (
	"errors"
	"sync"

	"friend-connect-backend/internal/features/notification/models"
)

// ErrChannelClosed is returned by Channel.Send once the connection is gone.
var ErrChannelClosed = errors.New("channel closed")

// ErrChannelFull is returned by Channel.Send when the outbound queue is full.
var ErrChannelFull = errors.New("channel send queue full")

// Channel is a live connection to one client. Send must not block.
type Channel interface {
	ID() string
	Send(frame models.Frame) error
}

// Registry maps online users to their live channel. A user has at most one
// channel; registering again replaces the previous one.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]Channel
	// owner is the reverse index channel id -> user id.
	owner map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[string]Channel),
		owner:  make(map[string]string),
	}
}

// Register binds ch to userID and returns the channel it replaced, if any.
func (r *Registry) Register(userID string, ch Channel) Channel {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.byUser[userID]
	if prev != nil {
		delete(r.owner, prev.ID())
	}
	// A channel may only serve one user.
	if other, ok := r.owner[ch.ID()]; ok && other != userID {
		delete(r.byUser, other)
	}
	r.byUser[userID] = ch
	r.owner[ch.ID()] = userID
	return prev
}

// Unregister removes ch and returns the user it served. A channel that was
// already replaced by a newer connection is ignored.
func (r *Registry) Unregister(ch Channel) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.owner[ch.ID()]
	if !ok {
		return "", false
	}
	delete(r.owner, ch.ID())
	if cur := r.byUser[userID]; cur != nil && cur.ID() == ch.ID() {
		delete(r.byUser, userID)
	}
	return userID, true
}

func (r *Registry) Lookup(userID string) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.byUser[userID]
	return ch, ok
}

func (r *Registry) Online(userID string) bool {
	_, ok := r.Lookup(userID)
	return ok
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}

// Clear drops every entry and returns the channels that were registered.
func (r *Registry) Clear() []Channel {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Channel, 0, len(r.byUser))
	for _, ch := range r.byUser {
		out = append(out, ch)
	}
	r.byUser = make(map[string]Channel)
	r.owner = make(map[string]string)
	return out
}
