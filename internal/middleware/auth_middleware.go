// internal/middleware/auth_middleware.go
package middleware

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	xerrors "medconnect-service/internal/pkg/errors"
	"medconnect-service/internal/pkg/jwt"
	"medconnect-service/internal/pkg/response"
	"medconnect-service/internal/pkg/session"
)

const identityKey = "identity"

// TokenVerifier validates bearer access tokens.
type TokenVerifier interface {
	VerifyAccessToken(token string) (*jwt.Claims, error)
}

// Revocations reports tokens revoked before their expiry.
type Revocations interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type AuthMiddleware struct {
	verifier    TokenVerifier
	revocations Revocations
	logger      *zap.Logger
}

// NewAuthMiddleware builds the middleware. revocations may be nil.
func NewAuthMiddleware(verifier TokenVerifier, revocations Revocations, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		verifier:    verifier,
		revocations: revocations,
		logger:      logger,
	}
}

// Auth is the base authentication middleware that validates JWT tokens
func (m *AuthMiddleware) Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c)
		if token == "" {
			response.Error(c, http.StatusUnauthorized, "missing authorization token", nil)
			return
		}

		claims, err := m.verifier.VerifyAccessToken(token)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, "invalid or expired token", err)
			return
		}

		if m.revocations != nil && claims.ID != "" {
			revoked, err := m.revocations.IsRevoked(c.Request.Context(), claims.ID)
			if err != nil {
				m.logger.Error("token revocation check failed", zap.String("jti", claims.ID), zap.Error(err))
				response.Error(c, http.StatusInternalServerError, "failed to validate session", nil)
				return
			}
			if revoked {
				response.Error(c, http.StatusUnauthorized, "session has been revoked", nil)
				return
			}
		}

		id := &session.Identity{
			UserID: claims.UserID,
			Email:  claims.Email,
			Name:   claims.Name,
			Roles:  claims.Roles,
			JTI:    claims.ID,
		}
		if claims.ExpiresAt != nil {
			id.ExpiresAt = claims.ExpiresAt.Time
		}
		SetIdentity(c, id)

		c.Next()
	}
}

// RequireRole middleware that requires user to have at least one of the specified roles
// MUST be used after Auth() middleware
func (m *AuthMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := GetIdentity(c)
		if !ok {
			response.Error(c, http.StatusForbidden, "no roles found - authentication required", nil)
			return
		}

		if !slices.ContainsFunc(roles, id.HasRole) {
			response.Error(c, http.StatusForbidden, "insufficient permissions", xerrors.ErrForbidden, map[string]interface{}{
				"required_roles": roles,
				"user_roles":     id.Roles,
			})
			return
		}

		c.Next()
	}
}

// AdminOnly returns middlewares for admin-only routes (Auth + RequireRole)
func (m *AuthMiddleware) AdminOnly() []gin.HandlerFunc {
	return []gin.HandlerFunc{
		m.Auth(),
		m.RequireRole(jwt.RoleAdmin),
	}
}

// BearerToken reads the token from the Authorization header, falling back to
// the token query parameter.
func BearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}

	// websocket clients cannot set headers
	return c.Query("token")
}
