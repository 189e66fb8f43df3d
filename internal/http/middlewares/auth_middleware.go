package middlewares

import (
	"errors"
	"net/http"
	"strings"

	"github.com/geocoder89/authservice/internal/actorctx"
	"github.com/geocoder89/authservice/internal/auth"
	"github.com/geocoder89/authservice/internal/domain/user"
	"github.com/gin-gonic/gin"
)

// Keep this small interface so tests can fake it easily.
type TokenValidator interface {
	Validate(raw string) (auth.Claims, error)
}

type AuthMiddleware struct {
	tokens TokenValidator
}

func NewAuthMiddleware(tokens TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": gin.H{
			"code":      "unauthorized",
			"message":   message,
			"requestId": c.GetString(CtxRequestID),
		},
	})
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			abortUnauthorized(c, "Missing or invalid Authorization header")
			return
		}

		raw := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
		if raw == "" {
			abortUnauthorized(c, "Missing or invalid access token")
			return
		}

		claims, err := m.tokens.Validate(raw)
		if err != nil {
			if errors.Is(err, auth.ErrExpired) {
				abortUnauthorized(c, "Access token expired")
				return
			}
			abortUnauthorized(c, "Invalid access token")
			return
		}

		if claims.Subject == "" {
			abortUnauthorized(c, "Invalid access token")
			return
		}

		c.Set(CtxSubject, claims.Subject)
		c.Set(CtxRole, claims.Role)
		c.Set(CtxProvider, claims.Provider)

		c.Request = c.Request.WithContext(actorctx.WithSubject(c.Request.Context(), claims.Subject))

		c.Next()
	}
}

// SubjectFromContext returns the authenticated email set by RequireAuth.
func SubjectFromContext(c *gin.Context) (string, bool) {
	subject := c.GetString(CtxSubject)
	return subject, subject != ""
}

func RoleFromContext(c *gin.Context) (user.Role, bool) {
	v, ok := c.Get(CtxRole)
	if !ok {
		return "", false
	}
	role, ok := v.(user.Role)
	return role, ok
}
