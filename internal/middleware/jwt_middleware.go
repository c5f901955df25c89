package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sentinnell/analytics_api/internal/utils"
)

// JWTMiddleware guards write routes with an HS256 bearer token. Without a
// secret the routes it guards are disabled.
type JWTMiddleware struct {
	secret      string
	rateLimiter *InvalidAuthRateLimiter
}

// NewJWTMiddleware constructs a JWTMiddleware. limiter may be nil.
func NewJWTMiddleware(secret string, limiter *InvalidAuthRateLimiter) *JWTMiddleware {
	return &JWTMiddleware{secret: secret, rateLimiter: limiter}
}

func (m *JWTMiddleware) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.secret == "" {
			utils.Error(c, http.StatusServiceUnavailable, "AUTH_NOT_CONFIGURED", "Write routes are disabled")
			c.Abort()
			return
		}

		ip := c.ClientIP()
		if m.rateLimiter != nil && m.rateLimiter.Blocked(ip) {
			utils.Error(c, http.StatusTooManyRequests, "TOO_MANY_ATTEMPTS", "Too many invalid authentication attempts")
			c.Abort()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			m.reject(c, ip, "UNAUTHORIZED", "Missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			m.reject(c, ip, "UNAUTHORIZED", "Invalid authorization header")
			return
		}

		claims, err := utils.ValidateJWT(m.secret, parts[1])
		if err != nil {
			m.reject(c, ip, "INVALID_TOKEN", "Invalid or expired token")
			return
		}

		c.Set("subject", claims.Subject)
		c.Next()
	}
}

func (m *JWTMiddleware) reject(c *gin.Context, ip, code, message string) {
	if m.rateLimiter != nil {
		m.rateLimiter.Record(ip)
	}
	utils.Error(c, http.StatusUnauthorized, code, message)
	c.Abort()
}
