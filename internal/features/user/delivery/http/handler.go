package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	apperrors "friend-connect-backend/internal/common/errors"
	"friend-connect-backend/internal/common/middleware"
	"friend-connect-backend/internal/common/validation"
	"friend-connect-backend/internal/features/user/models"
	"friend-connect-backend/internal/features/user/service"
)

type UserHandler struct {
	service service.UserService
}

func NewUserHandler(service service.UserService) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

// RegisterPublicRoutes mounts routes that need no token.
func (h *UserHandler) RegisterPublicRoutes(router *gin.RouterGroup) {
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", h.register)
		authGroup.POST("/login", h.login)
	}
	router.GET("/interests", h.getInterests)
}

// RegisterRoutes expects router to already require authentication.
func (h *UserHandler) RegisterRoutes(router *gin.RouterGroup) {
	users := router.Group("/users")
	{
		users.GET("", h.listUsers)
		users.GET("/search", h.searchUsers)
		users.GET("/profile", h.getProfile)
	}
	router.PUT("/interests", h.setInterests)
}

// @Summary Register
// @Description Create an account and return a session token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.RegisterRequest true "Credentials"
// @Success 201 {object} models.AuthResponse
// @Failure 400 {object} middleware.ErrorResponse "Invalid body"
// @Failure 409 {object} middleware.ErrorResponse "Username taken"
// @Router /auth/register [post]
func (h *UserHandler) register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(bindError(err))
		return
	}
	resp, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// @Summary Login
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.LoginRequest true "Credentials"
// @Success 200 {object} models.AuthResponse
// @Failure 401 {object} middleware.ErrorResponse "Invalid credentials"
// @Router /auth/login [post]
func (h *UserHandler) login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(bindError(err))
		return
	}
	resp, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary Current user profile
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.UserResponse
// @Router /users/profile [get]
func (h *UserHandler) getProfile(c *gin.Context) {
	profile, err := h.service.GetProfile(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// @Summary List users
// @Description Users other than the caller and the caller's friends
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param after query string false "Return users with an id after this one"
// @Param limit query int false "Page size (max 100)"
// @Success 200 {array} models.UserResponse
// @Router /users [get]
func (h *UserHandler) listUsers(c *gin.Context) {
	var query models.ListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		_ = c.Error(bindError(err))
		return
	}
	query.Query = ""
	h.list(c, query)
}

// @Summary Search users
// @Description Case-insensitive username substring match with the same exclusions as /users
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param q query string true "Search term"
// @Success 200 {array} models.UserResponse
// @Failure 400 {object} middleware.ErrorResponse "Missing search term"
// @Router /users/search [get]
func (h *UserHandler) searchUsers(c *gin.Context) {
	var query models.ListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		_ = c.Error(bindError(err))
		return
	}
	q, err := validation.ValidateSearchQuery(query.Query)
	if err != nil {
		_ = c.Error(apperrors.NewValidationError("q", err.Error()))
		return
	}
	query.Query = q
	h.list(c, query)
}

func (h *UserHandler) list(c *gin.Context, query models.ListQuery) {
	users, err := h.service.ListUsers(c.Request.Context(), middleware.CurrentUserID(c), query)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// @Summary Interest vocabulary
// @Tags interests
// @Produce json
// @Success 200 {array} string
// @Router /interests [get]
func (h *UserHandler) getInterests(c *gin.Context) {
	c.JSON(http.StatusOK, validation.Interests)
}

// @Summary Set interests
// @Tags interests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.InterestsRequest true "Interests from the vocabulary"
// @Success 200 {object} models.InterestsResponse
// @Failure 400 {object} middleware.ErrorResponse "Unknown interest"
// @Router /interests [put]
func (h *UserHandler) setInterests(c *gin.Context) {
	var req models.InterestsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(bindError(err))
		return
	}
	interests, err := h.service.SetInterests(c.Request.Context(), middleware.CurrentUserID(c), req.Interests)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, models.InterestsResponse{
		Message:   "Interests updated successfully",
		Interests: interests,
	})
}

// bindError turns a binding failure into a validation error naming the
// offending fields.
func bindError(err error) *apperrors.AppError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.NewValidationError("body", "malformed request body")
	}
	first := verrs[0]
	appErr := apperrors.NewValidationError(first.Field(), "failed on '"+first.Tag()+"'")
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	return appErr.WithDetail("fields", fields)
}
