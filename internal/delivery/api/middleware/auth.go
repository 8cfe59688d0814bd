// Package middleware holds the authentication middleware of the REST API.
package middleware

import (
	"strings"

	"beacon/internal/delivery/response"
	"beacon/internal/domain/entity"
	"beacon/internal/domain/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	userIDKey = "userID"
	rolesKey  = "roles"
)

// AuthMiddleware provides middleware for JWT authentication and authorization.
type AuthMiddleware struct {
	tokenSvc service.TokenService
}

// NewAuthMiddleware is the constructor for AuthMiddleware.
func NewAuthMiddleware(tokenSvc service.TokenService) *AuthMiddleware {
	return &AuthMiddleware{tokenSvc: tokenSvc}
}

// Authenticate validates the Bearer access token and stores the caller on the context.
func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			return response.Unauthorized(c, "MISSING_TOKEN", "Authorization header is missing")
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			return response.Unauthorized(c, "INVALID_TOKEN", "Invalid token format, must be Bearer token")
		}

		claims, err := m.tokenSvc.ValidateToken(tokenString)
		if err != nil {
			return response.Unauthorized(c, "INVALID_TOKEN", "Invalid or expired token")
		}

		if claims.Type != service.TokenTypeAccess {
			return response.Unauthorized(c, "INVALID_TOKEN", "Access token required")
		}

		if claims.UserID == uuid.Nil {
			return response.Unauthorized(c, "INVALID_TOKEN", "User ID missing from token")
		}

		// Set user info on the context for handlers to use
		c.Set(userIDKey, claims.UserID)
		c.Set(rolesKey, entity.RolesFromStrings(claims.Roles))

		return next(c)
	}
}

// RequireRole allows the request when the caller holds any of roles.
// It must be used AFTER the Authenticate middleware.
func (m *AuthMiddleware) RequireRole(roles ...entity.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			granted, ok := c.Get(rolesKey).(entity.Roles)
			if !ok {
				return response.Forbidden(c, "PERMISSION_DENIED", "Permission denied: role information missing")
			}

			if granted.HasAny(roles...) {
				return next(c)
			}

			return response.Forbidden(c, "PERMISSION_DENIED", "Permission denied: insufficient role")
		}
	}
}

// GetUserID returns the caller set by Authenticate.
func GetUserID(c echo.Context) (uuid.UUID, bool) {
	userID, ok := c.Get(userIDKey).(uuid.UUID)

	return userID, ok && userID != uuid.Nil
}

// SetUserID stores the caller on the context.
func SetUserID(c echo.Context, userID uuid.UUID) {
	c.Set(userIDKey, userID)
}

// GetRoles returns the caller's roles set by Authenticate.
func GetRoles(c echo.Context) (entity.Roles, bool) {
	roles, ok := c.Get(rolesKey).(entity.Roles)

	return roles, ok
}
