package service

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	apperrors "friend-connect-backend/internal/common/errors"
	graphmodels "friend-connect-backend/internal/features/graph/models"
	"friend-connect-backend/internal/features/graph/repository"
	"friend-connect-backend/internal/metrics"
)

// scanPageSize bounds a single ListUsers call of the fill scan.
const scanPageSize = 200

// Recommendation is one ranked friend suggestion.
type Recommendation struct {
	User            graphmodels.UserResponse  `json:"user"`
	MutualFriends   []graphmodels.UserSummary `json:"mutual_friends"`
	MutualCount     int                       `json:"mutual_count"`
	CommonInterests []string                  `json:"common_interests"`
	Score           float64                   `json:"score"`
}

// MutualFriends is the overlap of two users' friend sets.
type MutualFriends struct {
	MutualFriends []graphmodels.UserSummary `json:"mutual_friends"`
	Count         int                       `json:"count"`
}

type Options struct {
	DefaultLimit int
	MaxLimit     int
	// MaxCandidates caps how many users the zero-mutual fill scan examines.
	MaxCandidates int
	// InterestWeight is added to the score per shared interest.
	InterestWeight float64
	Timeout        time.Duration
}

type Service struct {
	store  repository.GraphStore
	opts   Options
	logger zerolog.Logger
}

func NewService(store repository.GraphStore, opts Options, logger zerolog.Logger) *Service {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 10
	}
	if opts.MaxLimit < opts.DefaultLimit {
		opts.MaxLimit = opts.DefaultLimit
	}
	return &Service{
		store:  store,
		opts:   opts,
		logger: logger.With().Str("component", "recommendation").Logger(),
	}
}

// Limit clamps a requested limit into [1, MaxLimit]; 0 means the default.
func (s *Service) Limit(requested int) int {
	switch {
	case requested <= 0:
		return s.opts.DefaultLimit
	case requested > s.opts.MaxLimit:
		return s.opts.MaxLimit
	}
	return requested
}

// Recommend ranks users the caller is not connected to by mutual friends.
// The result is either complete or an error; a timeout never yields a
// partial ranking.
func (s *Service) Recommend(ctx context.Context, userID string, limit int) ([]Recommendation, error) {
	start := time.Now()
	defer func() { metrics.RecommendationDuration.Observe(time.Since(start).Seconds()) }()

	limit = s.Limit(limit)
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	recs, err := s.recommend(ctx, userID, limit)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			s.logger.Warn().Str("user_id", userID).Dur("timeout", s.opts.Timeout).Msg("Recommendation timed out")
			return nil, apperrors.NewTimeoutError("recommend", err)
		}
		return nil, repository.ToAppError(err, "recommend")
	}
	return recs, nil
}

type candidate struct {
	user   *graphmodels.User
	mutual []graphmodels.UserSummary
}

func (s *Service) recommend(ctx context.Context, userID string, limit int) ([]Recommendation, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(user.Friends) == 0 {
		return []Recommendation{}, nil
	}

	excluded := make(map[string]bool, len(user.Friends)+len(user.Requests)+1)
	excluded[user.ID] = true
	for _, f := range user.Friends {
		excluded[f] = true
	}
	for _, r := range user.Requests {
		excluded[r.From] = true
	}

	friends, err := s.store.GetUsers(ctx, user.Friends)
	if err != nil {
		return nil, err
	}
	mutual := make(map[string][]graphmodels.UserSummary)
	for _, f := range friends {
		for _, id := range f.Friends {
			if !excluded[id] {
				mutual[id] = append(mutual[id], f.Summary())
			}
		}
	}

	ids := make([]string, 0, len(mutual))
	for id := range mutual {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	docs, err := s.store.GetUsers(ctx, ids)
	if err != nil {
		return nil, err
	}

	candidates := make([]candidate, 0, len(docs))
	for _, doc := range docs {
		// Outgoing pending request.
		if doc.HasRequestFrom(user.ID) {
			continue
		}
		candidates = append(candidates, candidate{user: doc, mutual: mutual[doc.ID]})
	}

	// Any user can outrank a mutual-friend candidate on shared interests.
	if len(candidates) < limit || s.opts.InterestWeight > 0 {
		fill, err := s.scanZeroMutual(ctx, user, excluded, mutual, limit-len(candidates))
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, fill...)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	metrics.RecommendationCandidates.Observe(float64(len(candidates)))

	recs := make([]Recommendation, 0, len(candidates))
	for _, c := range candidates {
		recs = append(recs, s.score(user, c))
	}
	slices.SortFunc(recs, compareRecommendations)
	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

// scanZeroMutual walks users in id order looking for unconnected users with no
// mutual friends. With no interest weight all of them score zero and rank by
// id, so the scan stops once it has want of them.
func (s *Service) scanZeroMutual(ctx context.Context, user *graphmodels.User, excluded map[string]bool,
	mutual map[string][]graphmodels.UserSummary, want int) ([]candidate, error) {
	var out []candidate
	examined := 0
	after := ""
	for s.opts.MaxCandidates <= 0 || examined < s.opts.MaxCandidates {
		page := scanPageSize
		if s.opts.MaxCandidates > 0 {
			page = min(page, s.opts.MaxCandidates-examined)
		}
		users, err := s.store.ListUsers(ctx, after, page)
		if err != nil {
			return nil, err
		}
		if len(users) == 0 {
			break
		}
		for _, u := range users {
			examined++
			if excluded[u.ID] || mutual[u.ID] != nil || u.HasRequestFrom(user.ID) {
				continue
			}
			out = append(out, candidate{user: u})
			if s.opts.InterestWeight == 0 && len(out) >= want {
				return out, nil
			}
		}
		after = users[len(users)-1].ID
		if len(users) < page {
			break
		}
	}
	return out, nil
}

func (s *Service) score(user *graphmodels.User, c candidate) Recommendation {
	common := commonInterests(user.Interests, c.user.Interests)
	mutualFriends := slices.Clone(c.mutual)
	if mutualFriends == nil {
		mutualFriends = []graphmodels.UserSummary{}
	}
	slices.SortFunc(mutualFriends, func(a, b graphmodels.UserSummary) int {
		return cmp.Or(cmp.Compare(a.Username, b.Username), cmp.Compare(a.ID, b.ID))
	})
	return Recommendation{
		User:            c.user.Response(),
		MutualFriends:   mutualFriends,
		MutualCount:     len(mutualFriends),
		CommonInterests: common,
		Score:           float64(len(mutualFriends)) + s.opts.InterestWeight*float64(len(common)),
	}
}

// Score desc, mutual count desc, id asc.
func compareRecommendations(a, b Recommendation) int {
	return cmp.Or(
		cmp.Compare(b.Score, a.Score),
		cmp.Compare(b.MutualCount, a.MutualCount),
		cmp.Compare(a.User.ID, b.User.ID),
	)
}

func commonInterests(a, b []string) []string {
	out := []string{}
	for _, in := range a {
		if slices.Contains(b, in) && !slices.Contains(out, in) {
			out = append(out, in)
		}
	}
	slices.Sort(out)
	return out
}

// Mutual returns the friends userID and otherID have in common.
func (s *Service) Mutual(ctx context.Context, userID, otherID string) (*MutualFriends, error) {
	if userID == otherID {
		return nil, apperrors.NewValidationError("userId", "cannot compare a user with themselves")
	}
	var user, other *graphmodels.User
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		user, err = s.store.GetUser(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		other, err = s.store.GetUser(gctx, otherID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, repository.ToAppError(err, "mutual friends")
	}

	var ids []string
	for _, id := range user.Friends {
		if id != other.ID && other.IsFriend(id) {
			ids = append(ids, id)
		}
	}
	summaries, err := repository.Summaries(ctx, s.store, ids)
	if err != nil {
		return nil, repository.ToAppError(err, "mutual friends")
	}
	out := make([]graphmodels.UserSummary, 0, len(summaries))
	for _, id := range ids {
		if sum, ok := summaries[id]; ok {
			out = append(out, sum)
		}
	}
	slices.SortFunc(out, func(a, b graphmodels.UserSummary) int {
		return cmp.Or(cmp.Compare(a.Username, b.Username), cmp.Compare(a.ID, b.ID))
	})
	return &MutualFriends{MutualFriends: out, Count: len(out)}, nil
}
