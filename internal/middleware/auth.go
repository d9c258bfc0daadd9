package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"schoolhouse/api/internal/config"
	"schoolhouse/api/internal/models"
	"schoolhouse/api/internal/security"
)

const (
	ctxClaims = "access_claims"
	ctxUser   = "current_user"
	ctxRoles  = "current_roles"
)

type SessionLookup interface {
	GetByID(ctx context.Context, id string) (models.Session, error)
	Touch(ctx context.Context, sessionID, ip, userAgent string) error
}

type UserLookup interface {
	GetByID(ctx context.Context, id string) (models.User, error)
}

type RoleLookup interface {
	NamesForUser(ctx context.Context, userID string) ([]string, error)
}

// Auth accepts a bearer access token backed by a live session. Roles are
// reloaded on every request so a revoked role stops working at once.
func Auth(sec config.SecurityConfig, users UserLookup, roles RoleLookup, sessions SessionLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_token"})
			return
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

		claims, err := security.ParseAccessToken(tokenStr, sec.JWTAccessSecret, sec.JWTIssuer)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
			return
		}

		ctx := c.Request.Context()
		session, err := sessions.GetByID(ctx, claims.SessionID)
		if err != nil || session.ExpiresAt.Before(time.Now()) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session_not_found"})
			return
		}

		if session.UserID != claims.UserID {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session_mismatch"})
			return
		}

		user, err := users.GetByID(ctx, claims.UserID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_not_found"})
			return
		}

		if user.Status != models.UserStatusActive {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "user_inactive"})
			return
		}

		names, err := roles.NamesForUser(ctx, user.ID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
			return
		}

		_ = sessions.Touch(ctx, session.ID, c.ClientIP(), c.GetHeader("User-Agent"))

		c.Set(ctxClaims, *claims)
		c.Set(ctxUser, user)
		c.Set(ctxRoles, names)

		c.Next()
	}
}

func CurrentUser(c *gin.Context) (models.User, bool) {
	v, ok := c.Get(ctxUser)
	if !ok {
		return models.User{}, false
	}
	user, ok := v.(models.User)
	return user, ok
}

func CurrentClaims(c *gin.Context) (security.AccessClaims, bool) {
	v, ok := c.Get(ctxClaims)
	if !ok {
		return security.AccessClaims{}, false
	}
	claims, ok := v.(security.AccessClaims)
	return claims, ok
}

func CurrentRoles(c *gin.Context) []string {
	v, _ := c.Get(ctxRoles)
	names, _ := v.([]string)
	return names
}

func HasRole(c *gin.Context, role string) bool {
	for _, name := range CurrentRoles(c) {
		if name == role {
			return true
		}
	}
	return false
}
