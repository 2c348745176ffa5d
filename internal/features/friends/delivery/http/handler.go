package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"friend-connect-backend/internal/common/middleware"
	"friend-connect-backend/internal/features/friends/service"
)

type FriendsHandler struct {
	service *service.Service
	// limiter guards request creation only.
	limiter *middleware.UserRateLimiter
}

func NewFriendsHandler(service *service.Service, limiter *middleware.UserRateLimiter) *FriendsHandler {
	return &FriendsHandler{service: service, limiter: limiter}
}

// RegisterRoutes expects router to already require authentication.
func (h *FriendsHandler) RegisterRoutes(router *gin.RouterGroup) {
	friends := router.Group("/friends")
	{
		friends.GET("", h.listFriends)
		friends.GET("/requests", h.listRequests)
		if h.limiter != nil {
			friends.POST("/request/:userId", h.limiter.Middleware(), h.sendRequest)
		} else {
			friends.POST("/request/:userId", h.sendRequest)
		}
		friends.PUT("/accept/:userId", h.acceptRequest)
		friends.PUT("/reject/:userId", h.rejectRequest)
		friends.DELETE("/:userId", h.unfriend)
	}
}

type messageResponse struct {
	Message string `json:"message"`
}

// @Summary List friends
// @Tags friends
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.UserResponse
// @Router /friends [get]
func (h *FriendsHandler) listFriends(c *gin.Context) {
	friends, err := h.service.ListFriends(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, friends)
}

// @Summary List incoming friend requests
// @Tags friends
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.PendingRequest
// @Router /friends/requests [get]
func (h *FriendsHandler) listRequests(c *gin.Context) {
	pending, err := h.service.ListRequests(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, pending)
}

// @Summary Send friend request
// @Tags friends
// @Produce json
// @Security BearerAuth
// @Param userId path string true "Target user ID"
// @Success 201 {object} messageResponse
// @Failure 400 {object} middleware.ErrorResponse "Request to self"
// @Failure 404 {object} middleware.ErrorResponse "Unknown user"
// @Failure 409 {object} middleware.ErrorResponse "Already pending or already friends"
// @Failure 429 {object} middleware.ErrorResponse "Too many requests"
// @Router /friends/request/{userId} [post]
func (h *FriendsHandler) sendRequest(c *gin.Context) {
	if err := h.service.SendRequest(c.Request.Context(), middleware.CurrentUserID(c), c.Param("userId")); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, messageResponse{Message: "Friend request sent"})
}

// @Summary Accept friend request
// @Tags friends
// @Produce json
// @Security BearerAuth
// @Param userId path string true "Requester user ID"
// @Success 200 {object} messageResponse
// @Failure 404 {object} middleware.ErrorResponse "No such pending request"
// @Router /friends/accept/{userId} [put]
func (h *FriendsHandler) acceptRequest(c *gin.Context) {
	if err := h.service.AcceptRequest(c.Request.Context(), middleware.CurrentUserID(c), c.Param("userId")); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "Friend request accepted"})
}

// @Summary Reject friend request
// @Tags friends
// @Produce json
// @Security BearerAuth
// @Param userId path string true "Requester user ID"
// @Success 200 {object} messageResponse
// @Failure 404 {object} middleware.ErrorResponse "No such pending request"
// @Router /friends/reject/{userId} [put]
func (h *FriendsHandler) rejectRequest(c *gin.Context) {
	if err := h.service.RejectRequest(c.Request.Context(), middleware.CurrentUserID(c), c.Param("userId")); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "Friend request rejected"})
}

// @Summary Remove friend
// @Tags friends
// @Produce json
// @Security BearerAuth
// @Param userId path string true "Friend user ID"
// @Success 200 {object} messageResponse
// @Failure 404 {object} middleware.ErrorResponse "Not friends"
// @Router /friends/{userId} [delete]
func (h *FriendsHandler) unfriend(c *gin.Context) {
	if err := h.service.Unfriend(c.Request.Context(), middleware.CurrentUserID(c), c.Param("userId")); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "Friend removed"})
}
