package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sentinnell/analytics_api/internal/middleware"
	"github.com/sentinnell/analytics_api/internal/service"
	"github.com/sentinnell/analytics_api/internal/utils"
)

type AuthHandler struct {
	authService *service.AuthService
	rateLimiter *middleware.InvalidAuthRateLimiter
}

func NewAuthHandler(authService *service.AuthService, limiter *middleware.InvalidAuthRateLimiter) *AuthHandler {
	return &AuthHandler{authService: authService, rateLimiter: limiter}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	ip := c.ClientIP()
	if h.rateLimiter != nil && h.rateLimiter.Blocked(ip) {
		utils.Error(c, http.StatusTooManyRequests, "TOO_MANY_ATTEMPTS", "Too many invalid authentication attempts")
		return
	}

	token, err := h.authService.Login(req.Username, req.Password)
	if errors.Is(err, service.ErrLoginDisabled) {
		utils.Error(c, http.StatusServiceUnavailable, "AUTH_NOT_CONFIGURED", err.Error())
		return
	}
	if err != nil {
		if h.rateLimiter != nil {
			h.rateLimiter.Record(ip)
		}
		utils.Error(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", err.Error())
		return
	}

	utils.Success(c, http.StatusOK, "Login successful", gin.H{
		"token": token,
	})
}
