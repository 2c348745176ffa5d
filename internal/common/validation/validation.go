package validation

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const (
	MinUsernameLength = 3
	MaxUsernameLength = 32
	MinPasswordLength = 6
	MaxPasswordLength = 72 // bcrypt ignores anything longer
	MaxSearchLength   = 64
)

// Interests is the fixed vocabulary users pick their interests from.
var Interests = []string{
	"Technology",
	"Sports",
	"Music",
	"Movies",
	"Books",
	"Travel",
	"Food",
	"Art",
	"Photography",
	"Gaming",
	"Fitness",
	"Fashion",
	"Science",
	"Nature",
	"Cooking",
}

// Letters, digits, underscores and dots.
var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.]+$`)

func IsInterest(s string) bool {
	return slices.Contains(Interests, s)
}

// ValidateUsername checks length and charset of a username.
func ValidateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("username cannot be empty")
	}
	if len(username) < MinUsernameLength {
		return fmt.Errorf("username must be at least %d characters long", MinUsernameLength)
	}
	if len(username) > MaxUsernameLength {
		return fmt.Errorf("username cannot exceed %d characters", MaxUsernameLength)
	}
	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("username must contain only letters, numbers, dots and underscores")
	}
	return nil
}

// NormalizeInterests rejects unknown interests and drops duplicates,
// keeping first-seen order.
func NormalizeInterests(interests []string) ([]string, error) {
	out := make([]string, 0, len(interests))
	for _, in := range interests {
		in = strings.TrimSpace(in)
		if !IsInterest(in) {
			return nil, fmt.Errorf("unknown interest %q", in)
		}
		if !slices.Contains(out, in) {
			out = append(out, in)
		}
	}
	return out, nil
}

// ValidateSearchQuery trims q and checks it is usable as a search term.
func ValidateSearchQuery(q string) (string, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return "", fmt.Errorf("search query cannot be empty")
	}
	if len(q) > MaxSearchLength {
		return "", fmt.Errorf("search query cannot exceed %d characters", MaxSearchLength)
	}
	return q, nil
}

// RegisterBindings adds the "username" and "interest" tags to gin's validator.
func RegisterBindings() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected binding engine %T", binding.Validator.Engine())
	}
	return Register(v)
}

func Register(v *validator.Validate) error {
	if err := v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return ValidateUsername(fl.Field().String()) == nil
	}); err != nil {
		return err
	}
	return v.RegisterValidation("interest", func(fl validator.FieldLevel) bool {
		return IsInterest(fl.Field().String())
	})
}
