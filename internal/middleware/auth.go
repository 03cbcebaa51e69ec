package middleware

import (
	"errors"
	"net/http"
	"strings"

	"safepath/internal/modules/auth"
	"safepath/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

// AccessVerifier resolves an access token to its user id.
type AccessVerifier interface {
	VerifyAccessToken(token string) (int64, error)
}

// JWTAuth accepts only access tokens and sets "user_id" (int64).
func JWTAuth(verifier AccessVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Error(c, http.StatusUnauthorized, "AUTH_HEADER_MISSING", "Authorization header is required")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || strings.TrimSpace(parts[1]) == "" {
			response.Error(c, http.StatusUnauthorized, "INVALID_AUTH_FORMAT", "Authorization header must be 'Bearer <token>'")
			c.Abort()
			return
		}

		userID, err := verifier.VerifyAccessToken(strings.TrimSpace(parts[1]))
		if err != nil {
			if errors.Is(err, auth.ErrTokenExpired) {
				response.Error(c, http.StatusUnauthorized, "TOKEN_EXPIRED", "Token has expired")
			} else {
				response.Error(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid token")
			}
			c.Abort()
			return
		}

		c.Set("user_id", userID)
		c.Next()
	}
}
