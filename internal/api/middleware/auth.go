package middleware

import (
	"net/http"
	"strings"

	"github.com/frostdev-ops/telemetry-backend-go/internal/core/auth"
	"github.com/frostdev-ops/telemetry-backend-go/pkg/utils"
	"github.com/gin-gonic/gin"
)

const (
	contextUserID = "user_id"
	contextLogin  = "login"
)

// AuthMiddleware validates JWT tokens (strict auth)
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Header("WWW-Authenticate", "Bearer")
			utils.SendError(c, http.StatusUnauthorized, "Authorization header required")
			c.Abort()
			return
		}

		// Extract token from "Bearer <token>"
		tokenParts := strings.SplitN(authHeader, " ", 2)
		if len(tokenParts) != 2 || !strings.EqualFold(tokenParts[0], "Bearer") {
			c.Header("WWW-Authenticate", "Bearer")
			utils.SendError(c, http.StatusUnauthorized, "Invalid authorization header format")
			c.Abort()
			return
		}

		claims, err := auth.ParseToken(strings.TrimSpace(tokenParts[1]), jwtSecret)
		if err != nil {
			c.Header("WWW-Authenticate", "Bearer")
			utils.SendError(c, http.StatusUnauthorized, "Could not validate credentials")
			c.Abort()
			return
		}

		c.Set(contextUserID, claims.UserID)
		c.Set(contextLogin, claims.Login)

		c.Next()
	}
}

// CurrentUserID returns the id of the authenticated caller
func CurrentUserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(contextUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}
