package middleware

import (
	"strings"

	"github.com/anisha-singhal/Lumera-sub000/common/auth"
	apperrors "github.com/anisha-singhal/Lumera-sub000/common/errors"
	"github.com/gin-gonic/gin"
)

const AdminContextKey = "admin"

// AdminOnly accepts a bearer access token carrying role=admin. The subject is
// stored under AdminContextKey and recorded as the actor of admin changes.
func AdminOnly(parser *auth.TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(apperrors.ErrUnauthorized.Code, apperrors.ErrUnauthorized)
			return
		}

		claims, err := parser.ParseAndValidateToken(strings.TrimSpace(token), "access")
		if err != nil {
			c.AbortWithStatusJSON(apperrors.ErrUnauthorized.Code, apperrors.ErrUnauthorized)
			return
		}
		if role, _ := claims["role"].(string); role != "admin" {
			c.AbortWithStatusJSON(apperrors.ErrForbidden.Code, apperrors.ErrForbidden)
			return
		}

		actor, _ := claims["sub"].(string)
		if actor == "" {
			actor = "admin"
		}
		c.Set(AdminContextKey, actor)
		c.Next()
	}
}

// AdminActor returns the admin recorded by AdminOnly.
func AdminActor(c *gin.Context) string {
	if actor := c.GetString(AdminContextKey); actor != "" {
		return actor
	}
	return "admin"
}
