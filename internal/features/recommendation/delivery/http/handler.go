package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"friend-connect-backend/internal/common/errors"
	"friend-connect-backend/internal/common/middleware"
	"friend-connect-backend/internal/features/recommendation/service"
)

type RecommendationHandler struct {
	service *service.Service
}

func NewRecommendationHandler(service *service.Service) *RecommendationHandler {
	return &RecommendationHandler{service: service}
}

// RegisterRoutes expects router to already require authentication.
func (h *RecommendationHandler) RegisterRoutes(router *gin.RouterGroup) {
	recs := router.Group("/recommendations")
	{
		recs.GET("", h.getRecommendations)
		recs.GET("/mutual/:userId", h.getMutualFriends)
	}
}

// @Summary Friend recommendations
// @Description Users ranked by mutual friends, excluding friends and pending requests
// @Tags recommendations
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Maximum number of results"
// @Success 200 {array} service.Recommendation
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 504 {object} middleware.ErrorResponse
// @Router /recommendations [get]
func (h *RecommendationHandler) getRecommendations(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			_ = c.Error(errors.NewValidationError("limit", "must be a non-negative integer"))
			return
		}
		limit = n
	}

	recs, err := h.service.Recommend(c.Request.Context(), middleware.CurrentUserID(c), limit)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, recs)
}

// @Summary Mutual friends
// @Tags recommendations
// @Produce json
// @Security BearerAuth
// @Param userId path string true "Other user ID"
// @Success 200 {object} service.MutualFriends
// @Failure 404 {object} middleware.ErrorResponse
// @Router /recommendations/mutual/{userId} [get]
func (h *RecommendationHandler) getMutualFriends(c *gin.Context) {
	mutual, err := h.service.Mutual(c.Request.Context(), middleware.CurrentUserID(c), c.Param("userId"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, mutual)
}
