package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"docchat/internal/model"
	"docchat/internal/pkg/jwtutil"
	"docchat/internal/transport/http/response"
)

const (
	ContextUserIDKey    = "user_id"
	ContextUsernameKey  = "username"
	ContextWorkspaceKey = "workspace"
)

func AuthJWT(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if authHeader == "" {
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "missing authorization header")
			c.Abort()
			return
		}

		const prefix = "Bearer "
		if !strings.HasPrefix(authHeader, prefix) {
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid authorization scheme")
			c.Abort()
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, prefix))
		claims, err := jwtutil.ParseToken(secret, token)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid or expired token")
			c.Abort()
			return
		}

		c.Set(ContextUserIDKey, claims.UserID)
		c.Set(ContextUsernameKey, claims.Username)
		c.Set(ContextWorkspaceKey, model.WorkspaceForUser(claims.UserID))
		c.Next()
	}
}

// Workspace resolves the caller's workspace: from the JWT when auth is
// enabled, otherwise the shared workspace.
func Workspace(authEnabled bool, secret string) gin.HandlerFunc {
	if authEnabled {
		return AuthJWT(secret)
	}
	return func(c *gin.Context) {
		c.Set(ContextWorkspaceKey, model.SharedWorkspace)
		c.Next()
	}
}

// WorkspaceFrom returns the workspace set by Workspace or AuthJWT.
func WorkspaceFrom(c *gin.Context) string {
	if ws := c.GetString(ContextWorkspaceKey); ws != "" {
		return ws
	}
	return model.SharedWorkspace
}
