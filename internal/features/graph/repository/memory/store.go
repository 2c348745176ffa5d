// Package memory is a process-local GraphStore used in tests and local runs.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"friend-connect-backend/internal/features/graph/models"
	"friend-connect-backend/internal/features/graph/repository"
)

type store struct {
	mu         sync.RWMutex
	users      map[string]*models.User
	byUsername map[string]string
	now        func() time.Time
}

func NewGraphStore() repository.GraphStore {
	return &store{
		users:      make(map[string]*models.User),
		byUsername: make(map[string]string),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *store) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(user.Username)
	if _, ok := s.byUsername[key]; ok {
		return repository.ErrUsernameTaken
	}
	user.UsernameKey = key
	s.users[user.ID] = user.Clone()
	s.byUsername[key] = user.ID
	return nil
}

func (s *store) GetUser(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return u.Clone(), nil
}

func (s *store) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUsername[strings.ToLower(username)]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return s.users[id].Clone(), nil
}

func (s *store) GetUsers(_ context.Context, ids []string) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out = append(out, u.Clone())
		}
	}
	return out, nil
}

func (s *store) ListUsers(_ context.Context, after string, limit int) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.users))
	for id := range s.users {
		if id > after {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]*models.User, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.users[id].Clone())
	}
	return out, nil
}

func (s *store) SetInterests(_ context.Context, id string, interests []string) error {
	return s.update(func(t *tx) error {
		u, err := t.get(id)
		if err != nil {
			return err
		}
		u.Interests = append([]string(nil), interests...)
		u.UpdatedAt = s.now()
		return nil
	})
}

func (s *store) AddRequest(_ context.Context, from, to string, at time.Time) error {
	return s.update(func(t *tx) error {
		a, b, err := t.pair(from, to)
		if err != nil {
			return err
		}
		return repository.ApplySendRequest(a, b, at)
	})
}

func (s *store) AcceptRequest(_ context.Context, from, to string) error {
	return s.update(func(t *tx) error {
		requester, target, err := t.pair(from, to)
		if err != nil {
			return err
		}
		return repository.ApplyAccept(requester, target, s.now())
	})
}

func (s *store) RemoveRequest(_ context.Context, from, to string) error {
	return s.update(func(t *tx) error {
		target, err := t.get(to)
		if err != nil {
			return err
		}
		if !target.RemoveRequest(from) {
			return repository.ErrRequestNotFound
		}
		target.UpdatedAt = s.now()
		return nil
	})
}

func (s *store) RemoveFriend(_ context.Context, a, b string) error {
	return s.update(func(t *tx) error {
		ua, ub, err := t.pair(a, b)
		if err != nil {
			return err
		}
		return repository.ApplyUnfriend(ua, ub, s.now())
	})
}

func (s *store) AppendNotification(_ context.Context, userID string, n models.Notification) error {
	return s.update(func(t *tx) error {
		u, err := t.get(userID)
		if err != nil {
			return err
		}
		u.Notifications = append(u.Notifications, n)
		return nil
	})
}

func (s *store) MarkNotificationRead(_ context.Context, userID, notificationID string) error {
	return s.update(func(t *tx) error {
		u, err := t.get(userID)
		if err != nil {
			return err
		}
		if !u.MarkRead(notificationID) {
			return repository.ErrNotificationNotFound
		}
		return nil
	})
}

func (s *store) ClearNotifications(_ context.Context, userID string) error {
	return s.update(func(t *tx) error {
		u, err := t.get(userID)
		if err != nil {
			return err
		}
		u.Notifications = nil
		return nil
	})
}

func (s *store) Ping(context.Context) error { return nil }

// update runs fn against copies of the documents it touches and publishes
// them only if fn succeeds.
func (s *store) update(fn func(*tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &tx{src: s.users, dirty: make(map[string]*models.User)}
	if err := fn(t); err != nil {
		return err
	}
	for id, u := range t.dirty {
		s.users[id] = u
	}
	return nil
}

type tx struct {
	src   map[string]*models.User
	dirty map[string]*models.User
}

func (t *tx) get(id string) (*models.User, error) {
	if u, ok := t.dirty[id]; ok {
		return u, nil
	}
	u, ok := t.src[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	c := u.Clone()
	t.dirty[id] = c
	return c, nil
}

func (t *tx) pair(a, b string) (*models.User, *models.User, error) {
	ua, err := t.get(a)
	if err != nil {
		return nil, nil, err
	}
	ub, err := t.get(b)
	if err != nil {
		return nil, nil, err
	}
	return ua, ub, nil
}
