package delivery

import (
	"net/http"
	"strings"

	"crono-backend/internal/auth/usecase"

	"github.com/gin-gonic/gin"
)

// Context keys set by AuthMiddleware
const (
	ContextOwnerID   = "ownerID"
	ContextPrincipal = "principal"
)

func AuthMiddleware(tokens usecase.TokenUsecase) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			c.Abort()
			return
		}

		principal, err := tokens.ValidateToken(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			c.Abort()
			return
		}

		c.Set(ContextPrincipal, principal)
		c.Set(ContextOwnerID, principal.OwnerID)
		c.Next()
	}
}

// OwnerID returns the authenticated owner id set by AuthMiddleware
func OwnerID(c *gin.Context) string {
	return c.GetString(ContextOwnerID)
}
