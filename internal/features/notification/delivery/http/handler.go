package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"friend-connect-backend/internal/common/middleware"
	"friend-connect-backend/internal/features/notification/service"
)

type NotificationHandler struct {
	dispatcher *service.Dispatcher
}

func NewNotificationHandler(dispatcher *service.Dispatcher) *NotificationHandler {
	return &NotificationHandler{dispatcher: dispatcher}
}

// RegisterRoutes expects router to already require authentication.
func (h *NotificationHandler) RegisterRoutes(router *gin.RouterGroup) {
	notifications := router.Group("/notifications")
	{
		notifications.GET("", h.list)
		notifications.PUT("/:id/read", h.markRead)
		notifications.DELETE("/clear", h.clear)
	}
}

// @Summary List notifications
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Notification
// @Router /notifications [get]
func (h *NotificationHandler) list(c *gin.Context) {
	list, err := h.dispatcher.List(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// @Summary Mark notification as read
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param id path string true "Notification ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} middleware.ErrorResponse
// @Router /notifications/{id}/read [put]
func (h *NotificationHandler) markRead(c *gin.Context) {
	if err := h.dispatcher.MarkRead(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id")); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification marked as read"})
}

// @Summary Clear all notifications
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]string
// @Router /notifications/clear [delete]
func (h *NotificationHandler) clear(c *gin.Context) {
	if err := h.dispatcher.Clear(c.Request.Context(), middleware.CurrentUserID(c)); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notifications cleared"})
}
