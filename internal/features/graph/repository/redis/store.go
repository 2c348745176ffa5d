package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"friend-connect-backend/internal/features/graph/models"
	"friend-connect-backend/internal/features/graph/repository"
)

const (
	keyPrefixUser     = "user:"
	keyPrefixUsername = "username:"
	keyUsers          = "users"

	// Optimistic transactions are retried this many times when a watched
	// document changes between read and commit.
	maxTxRetries = 16
)

type graphStore struct {
	client *redis.Client
	now    func() time.Time
}

func NewGraphStore(client *redis.Client) repository.GraphStore {
	return &graphStore{client: client, now: func() time.Time { return time.Now().UTC() }}
}

func makeUserKey(id string) string {
	return keyPrefixUser + id
}

func makeUsernameKey(username string) string {
	return keyPrefixUsername + strings.ToLower(username)
}

func (r *graphStore) CreateUser(ctx context.Context, user *models.User) error {
	user.UsernameKey = strings.ToLower(user.Username)
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	usernameKey := makeUsernameKey(user.Username)
	return r.withRetry(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, usernameKey).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return repository.ErrUsernameTaken
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, usernameKey, user.ID, 0)
			pipe.Set(ctx, makeUserKey(user.ID), data, 0)
			pipe.ZAdd(ctx, keyUsers, redis.Z{Score: 0, Member: user.ID})
			return nil
		})
		return err
	}, usernameKey)
}

func (r *graphStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	data, err := r.client.Get(ctx, makeUserKey(id)).Bytes()
	if err == redis.Nil {
		return nil, repository.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeUser(data)
}

func (r *graphStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	id, err := r.client.Get(ctx, makeUsernameKey(username)).Result()
	if err == redis.Nil {
		return nil, repository.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return r.GetUser(ctx, id)
}

func (r *graphStore) GetUsers(ctx context.Context, ids []string) ([]*models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	users, err := mgetUsers(ctx, r.client, ids)
	if err != nil {
		return nil, err
	}
	out := make([]*models.User, 0, len(users))
	for _, u := range users {
		if u != nil {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *graphStore) ListUsers(ctx context.Context, after string, limit int) ([]*models.User, error) {
	lo := "-"
	if after != "" {
		lo = "(" + after
	}
	by := &redis.ZRangeBy{Min: lo, Max: "+"}
	if limit > 0 {
		by.Count = int64(limit)
	}
	ids, err := r.client.ZRangeByLex(ctx, keyUsers, by).Result()
	if err != nil {
		return nil, err
	}
	return r.GetUsers(ctx, ids)
}

func (r *graphStore) SetInterests(ctx context.Context, id string, interests []string) error {
	return r.update(ctx, []string{id}, func(docs []*models.User) error {
		docs[0].Interests = append([]string(nil), interests...)
		docs[0].UpdatedAt = r.now()
		return nil
	})
}

func (r *graphStore) AddRequest(ctx context.Context, from, to string, at time.Time) error {
	if from == to {
		return repository.ErrSelfRequest
	}
	return r.update(ctx, []string{from, to}, func(docs []*models.User) error {
		return repository.ApplySendRequest(docs[0], docs[1], at)
	})
}

func (r *graphStore) AcceptRequest(ctx context.Context, from, to string) error {
	if from == to {
		return repository.ErrRequestNotFound
	}
	return r.update(ctx, []string{from, to}, func(docs []*models.User) error {
		return repository.ApplyAccept(docs[0], docs[1], r.now())
	})
}

func (r *graphStore) RemoveRequest(ctx context.Context, from, to string) error {
	return r.update(ctx, []string{to}, func(docs []*models.User) error {
		if !docs[0].RemoveRequest(from) {
			return repository.ErrRequestNotFound
		}
		docs[0].UpdatedAt = r.now()
		return nil
	})
}

func (r *graphStore) RemoveFriend(ctx context.Context, a, b string) error {
	if a == b {
		return repository.ErrNotFriends
	}
	return r.update(ctx, []string{a, b}, func(docs []*models.User) error {
		return repository.ApplyUnfriend(docs[0], docs[1], r.now())
	})
}

func (r *graphStore) AppendNotification(ctx context.Context, userID string, n models.Notification) error {
	return r.update(ctx, []string{userID}, func(docs []*models.User) error {
		docs[0].Notifications = append(docs[0].Notifications, n)
		return nil
	})
}

func (r *graphStore) MarkNotificationRead(ctx context.Context, userID, notificationID string) error {
	return r.update(ctx, []string{userID}, func(docs []*models.User) error {
		if !docs[0].MarkRead(notificationID) {
			return repository.ErrNotificationNotFound
		}
		return nil
	})
}

func (r *graphStore) ClearNotifications(ctx context.Context, userID string) error {
	return r.update(ctx, []string{userID}, func(docs []*models.User) error {
		docs[0].Notifications = nil
		return nil
	})
}

func (r *graphStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// update loads the documents under WATCH, lets fn mutate them and writes them
// back in one MULTI/EXEC. A concurrent writer to any of the documents aborts
// the EXEC and the whole read-modify-write is retried, so either every
// document is written or none is.
func (r *graphStore) update(ctx context.Context, ids []string, fn func(docs []*models.User) error) error {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = makeUserKey(id)
	}

	return r.withRetry(ctx, func(tx *redis.Tx) error {
		docs, err := mgetUsers(ctx, tx, ids)
		if err != nil {
			return err
		}
		for _, d := range docs {
			if d == nil {
				return repository.ErrUserNotFound
			}
		}
		if err := fn(docs); err != nil {
			return err
		}

		payloads := make([][]byte, len(docs))
		for i, d := range docs {
			if payloads[i], err = json.Marshal(d); err != nil {
				return fmt.Errorf("failed to marshal user: %w", err)
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for i := range docs {
				pipe.Set(ctx, keys[i], payloads[i], 0)
			}
			return nil
		})
		return err
	}, keys...)
}

func (r *graphStore) withRetry(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	for i := 0; i < maxTxRetries; i++ {
		err := r.client.Watch(ctx, fn, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("transaction on %v: %w", keys, redis.TxFailedErr)
}

type mgetter interface {
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
}

// mgetUsers returns one entry per id, nil where the user does not exist.
func mgetUsers(ctx context.Context, c mgetter, ids []string) ([]*models.User, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = makeUserKey(id)
	}
	vals, err := c.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*models.User, len(vals))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		u, err := decodeUser([]byte(s))
		if err != nil {
			return nil, err
		}
		out[i] = u
	}
	return out, nil
}

func decodeUser(data []byte) (*models.User, error) {
	var u models.User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}
	return &u, nil
}
