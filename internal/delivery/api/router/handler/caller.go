package handler

import (
	"beacon/internal/delivery/api/middleware"
	"beacon/internal/delivery/response"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// asCaller runs fn for the authenticated user, or answers 401 when the token carried none.
func asCaller(c echo.Context, fn func(userID uuid.UUID) error) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "INVALID_TOKEN", "Invalid user ID in token")
	}

	return fn(userID)
}

// pathUUID parses the :id route parameter.
func pathUUID(c echo.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))

	return id, err == nil
}
