package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"friend-connect-backend/internal/features/graph/models"
	"friend-connect-backend/internal/features/graph/repository"
)

const collectionUsers = "users"

// graphStore keeps one document per user. Changes to a friend edge touch two
// documents and run in a multi-document transaction, which needs a replica
// set (a single-node one is enough).
type graphStore struct {
	users *mongo.Collection
	now   func() time.Time
}

func NewGraphStore(db *mongo.Database) repository.GraphStore {
	return &graphStore{users: db.Collection(collectionUsers), now: func() time.Time { return time.Now().UTC() }}
}

// EnsureIndexes creates the unique username index.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(collectionUsers).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username_key", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (r *graphStore) CreateUser(ctx context.Context, user *models.User) error {
	user.UsernameKey = strings.ToLower(user.Username)
	doc := user.Clone()
	// Array operators refuse to work on null fields.
	if doc.Interests == nil {
		doc.Interests = []string{}
	}
	if doc.Friends == nil {
		doc.Friends = []string{}
	}
	if doc.Requests == nil {
		doc.Requests = []models.FriendRequest{}
	}
	if doc.Notifications == nil {
		doc.Notifications = []models.Notification{}
	}
	_, err := r.users.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return repository.ErrUsernameTaken
	}
	return err
}

func (r *graphStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *graphStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"username_key": strings.ToLower(username)})
}

func (r *graphStore) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var u models.User
	err := r.users.FindOne(ctx, filter).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repository.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *graphStore) GetUsers(ctx context.Context, ids []string) ([]*models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	users, err := r.find(ctx, bson.M{"_id": bson.M{"$in": ids}}, options.Find())
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	out := make([]*models.User, 0, len(users))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *graphStore) ListUsers(ctx context.Context, after string, limit int) ([]*models.User, error) {
	filter := bson.M{}
	if after != "" {
		filter["_id"] = bson.M{"$gt": after}
	}
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return r.find(ctx, filter, opts)
}

func (r *graphStore) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*models.User, error) {
	cur, err := r.users.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var users []*models.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *graphStore) SetInterests(ctx context.Context, id string, interests []string) error {
	if interests == nil {
		interests = []string{}
	}
	res, err := r.users.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"interests": interests, "updated_at": r.now()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repository.ErrUserNotFound
	}
	return nil
}

func (r *graphStore) AddRequest(ctx context.Context, from, to string, at time.Time) error {
	if from == to {
		return repository.ErrSelfRequest
	}
	return r.inTransaction(ctx, from, to, func(sender, target *models.User) error {
		if err := repository.ApplySendRequest(sender, target, at); err != nil {
			return err
		}
		// The sender document is written too, so a concurrent request in the
		// opposite direction hits a write conflict and is retried.
		sender.UpdatedAt = at
		return nil
	})
}

func (r *graphStore) AcceptRequest(ctx context.Context, from, to string) error {
	if from == to {
		return repository.ErrRequestNotFound
	}
	return r.inTransaction(ctx, from, to, func(requester, target *models.User) error {
		return repository.ApplyAccept(requester, target, r.now())
	})
}

func (r *graphStore) RemoveRequest(ctx context.Context, from, to string) error {
	res, err := r.users.UpdateOne(ctx,
		bson.M{"_id": to, "requests.from": from},
		bson.M{
			"$pull": bson.M{"requests": bson.M{"from": from}},
			"$set":  bson.M{"updated_at": r.now()},
		})
	if err != nil {
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}
	if _, err := r.GetUser(ctx, to); err != nil {
		return err
	}
	return repository.ErrRequestNotFound
}

func (r *graphStore) RemoveFriend(ctx context.Context, a, b string) error {
	if a == b {
		return repository.ErrNotFriends
	}
	return r.inTransaction(ctx, a, b, func(ua, ub *models.User) error {
		return repository.ApplyUnfriend(ua, ub, r.now())
	})
}

// inTransaction loads users a and b inside a snapshot transaction, lets fn
// apply an edge change and writes the edge fields of both documents back.
// Concurrent transactions touching either document conflict and are retried
// by the driver. Errors returned by fn abort the transaction unchanged.
func (r *graphStore) inTransaction(ctx context.Context, a, b string, fn func(ua, ub *models.User) error) error {
	session, err := r.users.Database().Client().StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	opts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())
	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		ua, err := r.findOne(sc, bson.M{"_id": a})
		if err != nil {
			return nil, err
		}
		ub, err := r.findOne(sc, bson.M{"_id": b})
		if err != nil {
			return nil, err
		}
		if err := fn(ua, ub); err != nil {
			return nil, err
		}
		for _, u := range []*models.User{ua, ub} {
			if err := r.saveEdges(sc, u); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}, opts)
	return err
}

// saveEdges writes the friend set and pending requests of u. The
// notification log is left alone so concurrent appends are kept.
func (r *graphStore) saveEdges(ctx context.Context, u *models.User) error {
	friends := u.Friends
	if friends == nil {
		friends = []string{}
	}
	requests := u.Requests
	if requests == nil {
		requests = []models.FriendRequest{}
	}
	_, err := r.users.UpdateByID(ctx, u.ID, bson.M{
		"$set": bson.M{"friends": friends, "requests": requests, "updated_at": u.UpdatedAt},
	})
	return err
}

func (r *graphStore) AppendNotification(ctx context.Context, userID string, n models.Notification) error {
	res, err := r.users.UpdateByID(ctx, userID, bson.M{"$push": bson.M{"notifications": n}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repository.ErrUserNotFound
	}
	return nil
}

func (r *graphStore) MarkNotificationRead(ctx context.Context, userID, notificationID string) error {
	res, err := r.users.UpdateOne(ctx,
		bson.M{"_id": userID, "notifications.id": notificationID},
		bson.M{"$set": bson.M{"notifications.$.read": true}})
	if err != nil {
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}
	if _, err := r.GetUser(ctx, userID); err != nil {
		return err
	}
	return repository.ErrNotificationNotFound
}

func (r *graphStore) ClearNotifications(ctx context.Context, userID string) error {
	res, err := r.users.UpdateByID(ctx, userID, bson.M{
		"$set": bson.M{"notifications": []models.Notification{}},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repository.ErrUserNotFound
	}
	return nil
}

func (r *graphStore) Ping(ctx context.Context) error {
	return r.users.Database().Client().Ping(ctx, readpref.Primary())
}
