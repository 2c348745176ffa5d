package mapper

import graphmodels "friend-connect-backend/internal/features/graph/models"

// ToUserResponses maps stored users to their public view.
func ToUserResponses(users []*graphmodels.User) []graphmodels.UserResponse {
	out := make([]graphmodels.UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, u.Response())
	}
	return out
}
