package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"friend-connect-backend/internal/common/auth"
	"friend-connect-backend/internal/common/errors"
)

// TokenHeader is the alternative to the Authorization header.
const TokenHeader = "x-auth-token"

// RequireAuth verifies the bearer token and stores its subject as the user id.
func RequireAuth(tokens *auth.Tokens) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := TokenFromRequest(c)
		if raw == "" {
			_ = c.Error(errors.NewUnauthorizedError("missing token"))
			c.Abort()
			return
		}
		userID, err := tokens.Verify(raw)
		if err != nil {
			_ = c.Error(errors.Wrap(err, errors.ErrCodeUnauthorized, "Unauthorized: invalid token"))
			c.Abort()
			return
		}
		setUserID(c, userID)
		c.Next()
	}
}

// TokenFromRequest reads "Authorization: Bearer <t>" or the x-auth-token header.
func TokenFromRequest(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if t, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(t)
		}
	}
	return strings.TrimSpace(c.GetHeader(TokenHeader))
}
