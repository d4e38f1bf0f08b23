package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const authContextKey = "auth_context"

// AuthContext identifies the caller of an operation.
type AuthContext struct {
	UserID string
}

// Resolver derives the caller from a request.
type Resolver interface {
	Resolve(r *http.Request) (AuthContext, error)
}

// FixedUser resolves every request to the same user. It stands in until real authentication exists.
type FixedUser string

func (f FixedUser) Resolve(*http.Request) (AuthContext, error) {
	return AuthContext{UserID: string(f)}, nil
}

// Middleware resolves the caller and stores it in the gin context.
func Middleware(resolver Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, err := resolver.Resolve(c.Request)
		if err != nil || strings.TrimSpace(actor.UserID) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "authorization required"})
			return
		}
		c.Set(authContextKey, actor)
		c.Next()
	}
}

// FromContext retrieves the caller stored by Middleware.
func FromContext(c *gin.Context) (AuthContext, bool) {
	val, ok := c.Get(authContextKey)
	if !ok {
		return AuthContext{}, false
	}
	actor, ok := val.(AuthContext)
	return actor, ok
}
