package http

import (
	"net/http"
	"strings"
	"time"

	"callplayer/internal/core/domain"
	"callplayer/internal/core/ports"
	"callplayer/internal/core/services"
	"callplayer/internal/infrastructure/middleware"
	"callplayer/pkg/errors"
	"callplayer/pkg/validation"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService services.AuthService
	gate        ports.AccessGate
	tokenTTL    time.Duration
}

func NewAuthHandler(authService services.AuthService, gate ports.AccessGate, tokenTTL time.Duration) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		gate:        gate,
		tokenTTL:    tokenTTL,
	}
}

// SetupRoutes mounts the auth routes on an authenticated group.
func (h *AuthHandler) SetupRoutes(api *gin.RouterGroup) {
	auth := api.Group("/auth")
	{
		auth.GET("/me", h.Me)
		auth.POST("/tokens", h.IssueToken)
	}
}

type IssueTokenRequest struct {
	UserID   int64  `json:"user_id" binding:"required"`
	Username string `json:"username"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	UserID      int64  `json:"user_id"`
	Role        string `json:"role"`
}

func (h *AuthHandler) Me(c *gin.Context) {
	caller, ok := middleware.UserIDFrom(c)
	if !ok {
		c.Error(errors.NewUnauthorizedError("caller unknown"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":  int64(caller),
		"username": c.GetString(middleware.ContextUsername),
		"role":     h.gate.RoleOf(caller),
	})
}

// IssueToken lets an owner mint a gateway token for another chat account.
func (h *AuthHandler) IssueToken(c *gin.Context) {
	caller, ok := middleware.UserIDFrom(c)
	if !ok {
		c.Error(errors.NewUnauthorizedError("caller unknown"))
		return
	}
	if !h.gate.RoleOf(caller).AtLeast(domain.RoleOwner) {
		c.Error(domain.ErrAccessDenied)
		return
	}

	var req IssueTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}
	if err := validation.ValidateUserID(req.UserID); err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}
	if err := validation.ValidateUsername(req.Username); err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}

	user := domain.UserID(req.UserID)
	token, err := h.authService.GenerateToken(user, strings.TrimPrefix(strings.TrimSpace(req.Username), "@"))
	if err != nil {
		c.Error(errors.NewInternalError("failed to generate token"))
		return
	}

	c.JSON(http.StatusCreated, TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(h.tokenTTL.Seconds()),
		UserID:      req.UserID,
		Role:        string(h.gate.RoleOf(user)),
	})
}
