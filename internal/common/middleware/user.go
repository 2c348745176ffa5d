package middleware

import "github.com/gin-gonic/gin"

const userIDKey = "user_id"

func setUserID(c *gin.Context, userID string) {
	c.Set(userIDKey, userID)
}

// CurrentUserID returns the authenticated user id, or "" outside RequireAuth.
func CurrentUserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
