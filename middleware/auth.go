package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fitcircle/fitcircle/cache"
	"github.com/fitcircle/fitcircle/config"
	"github.com/gin-gonic/gin"
)

const (
	UserIDKey = "user_id"
	TokenKey  = "token"
)

// SessionKey is the cache key marking token as a live session.
func SessionKey(token string) string {
	return "session:" + token
}

// BannedKey marks a banned account. Auth rejects every session of that
// account while the key exists.
func BannedKey(userID int64) string {
	return "banned:" + strconv.FormatInt(userID, 10)
}

// Auth validates the Bearer JWT and checks that its session has not been
// logged out and its account is not banned.
func Auth(sec config.SecurityConfig, c cache.Cache) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		header := ctx.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		tokenStr := strings.TrimPrefix(header, "Bearer ")

		claims, err := ParseToken(tokenStr, sec.JWTSecret)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		cacheCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
		defer cancel()
		exists, err := c.Exists(cacheCtx, SessionKey(tokenStr))
		if err != nil || !exists {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
			return
		}
		banned, err := c.Exists(cacheCtx, BannedKey(claims.UserID))
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
			return
		}
		if banned {
			ctx.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "account banned"})
			return
		}

		ctx.Set(UserIDKey, claims.UserID)
		ctx.Set(TokenKey, tokenStr)
		ctx.Next()
	}
}

// GetUserID returns the authenticated user, or 0 outside Auth.
func GetUserID(c *gin.Context) int64 {
	if v, exists := c.Get(UserIDKey); exists {
		return v.(int64)
	}
	return 0
}

// GetToken returns the bearer token accepted by Auth.
func GetToken(c *gin.Context) string {
	return c.GetString(TokenKey)
}
