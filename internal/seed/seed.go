// Package seed loads YAML fixtures of users, friendships and pending requests
// into a graph store.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"friend-connect-backend/internal/common/validation"
	"friend-connect-backend/internal/features/graph/models"
	"friend-connect-backend/internal/features/graph/repository"
)

// Fixture is the document read from a seed file.
//
//	password: secret123
//	users:
//	  - username: alice
//	    interests: [Music, Books]
//	friendships:
//	  - [alice, bob]
//	requests:
//	  - {from: carol, to: alice}
type Fixture struct {
	// Password is used for users that do not set their own.
	Password    string           `yaml:"password"`
	Users       []FixtureUser    `yaml:"users"`
	Friendships [][2]string      `yaml:"friendships"`
	Requests    []FixtureRequest `yaml:"requests"`
}

type FixtureUser struct {
	Username  string   `yaml:"username"`
	Password  string   `yaml:"password"`
	Interests []string `yaml:"interests"`
}

type FixtureRequest struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Result counts what a run created. Entries that already existed are skipped.
type Result struct {
	Users       int
	Friendships int
	Requests    int
	Skipped     int
}

// LoadFile parses the fixture at path.
func LoadFile(path string) (*Fixture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses and validates a fixture.
func Decode(r io.Reader) (*Fixture, error) {
	var fx Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&fx); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	if err := fx.validate(); err != nil {
		return nil, err
	}
	return &fx, nil
}

func (fx *Fixture) validate() error {
	known := make(map[string]bool, len(fx.Users))
	for i, u := range fx.Users {
		if err := validation.ValidateUsername(u.Username); err != nil {
			return fmt.Errorf("users[%d]: %w", i, err)
		}
		if fx.passwordFor(u) == "" {
			return fmt.Errorf("users[%d]: no password and no default password", i)
		}
		if _, err := validation.NormalizeInterests(u.Interests); err != nil {
			return fmt.Errorf("users[%d]: %w", i, err)
		}
		known[u.Username] = true
	}
	for i, pair := range fx.Friendships {
		if pair[0] == pair[1] {
			return fmt.Errorf("friendships[%d]: %s cannot befriend themselves", i, pair[0])
		}
		for _, name := range pair {
			if !known[name] {
				return fmt.Errorf("friendships[%d]: unknown user %q", i, name)
			}
		}
	}
	for i, req := range fx.Requests {
		if !known[req.From] || !known[req.To] {
			return fmt.Errorf("requests[%d]: unknown user in %s -> %s", i, req.From, req.To)
		}
	}
	return nil
}

func (fx *Fixture) passwordFor(u FixtureUser) string {
	if u.Password != "" {
		return u.Password
	}
	return fx.Password
}

// Seeder writes fixtures into a store.
type Seeder struct {
	store      repository.GraphStore
	bcryptCost int
	logger     zerolog.Logger
	now        func() time.Time
}

func NewSeeder(store repository.GraphStore, bcryptCost int, logger zerolog.Logger) *Seeder {
	return &Seeder{
		store:      store,
		bcryptCost: bcryptCost,
		logger:     logger.With().Str("component", "seed").Logger(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Apply creates the fixture's users and edges. Running it twice is harmless:
// existing usernames are reused and existing edges skipped.
func (s *Seeder) Apply(ctx context.Context, fx *Fixture) (Result, error) {
	var res Result
	ids := make(map[string]string, len(fx.Users))

	for _, u := range fx.Users {
		id, created, err := s.ensureUser(ctx, fx, u)
		if err != nil {
			return res, fmt.Errorf("user %s: %w", u.Username, err)
		}
		ids[u.Username] = id
		if created {
			res.Users++
		} else {
			res.Skipped++
		}
	}

	for _, pair := range fx.Friendships {
		created, err := s.befriend(ctx, ids[pair[0]], ids[pair[1]])
		switch {
		case err != nil:
			return res, fmt.Errorf("friendship %s-%s: %w", pair[0], pair[1], err)
		case created:
			res.Friendships++
		default:
			res.Skipped++
		}
	}

	for _, req := range fx.Requests {
		err := s.store.AddRequest(ctx, ids[req.From], ids[req.To], s.now())
		switch {
		case errors.Is(err, repository.ErrRequestExists), errors.Is(err, repository.ErrAlreadyFriends):
			res.Skipped++
		case err != nil:
			return res, fmt.Errorf("request %s -> %s: %w", req.From, req.To, err)
		default:
			res.Requests++
		}
	}

	s.logger.Info().
		Int("users", res.Users).
		Int("friendships", res.Friendships).
		Int("requests", res.Requests).
		Int("skipped", res.Skipped).
		Msg("Seed applied")
	return res, nil
}

func (s *Seeder) ensureUser(ctx context.Context, fx *Fixture, u FixtureUser) (string, bool, error) {
	existing, err := s.store.GetUserByUsername(ctx, u.Username)
	if err == nil {
		return existing.ID, false, nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return "", false, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(fx.passwordFor(u)), s.bcryptCost)
	if err != nil {
		return "", false, err
	}
	interests, _ := validation.NormalizeInterests(u.Interests)
	now := s.now()
	user := &models.User{
		ID:           uuid.NewString(),
		Username:     u.Username,
		PasswordHash: string(hash),
		Interests:    interests,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return "", false, err
	}
	return user.ID, true, nil
}

func (s *Seeder) befriend(ctx context.Context, a, b string) (bool, error) {
	err := s.store.AddRequest(ctx, a, b, s.now())
	switch {
	case errors.Is(err, repository.ErrAlreadyFriends):
		return false, nil
	case errors.Is(err, repository.ErrRequestExists):
		// Pending in one of the two directions.
		if err := s.store.AcceptRequest(ctx, b, a); !errors.Is(err, repository.ErrRequestNotFound) {
			return err == nil, err
		}
	case err != nil:
		return false, err
	}
	return true, s.store.AcceptRequest(ctx, a, b)
}
