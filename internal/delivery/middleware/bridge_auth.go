package middleware

import (
	"crypto/subtle"

	"beacon/internal/delivery/response"
	"beacon/internal/domain/constants"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
)

// BridgeAuth rejects bridge calls whose X-Bridge-Secret does not match secret.
// An empty secret disables the check.
func BridgeAuth(secret string) echo.MiddlewareFunc {
	return echomiddleware.KeyAuthWithConfig(echomiddleware.KeyAuthConfig{
		Skipper: func(echo.Context) bool {
			return secret == ""
		},
		KeyLookup: "header:" + constants.BridgeSecretHeader,
		Validator: func(key string, _ echo.Context) (bool, error) {
			return subtle.ConstantTimeCompare([]byte(key), []byte(secret)) == 1, nil
		},
		// Missing and wrong secrets answer the same way.
		ErrorHandler: func(_ error, c echo.Context) error {
			return response.Unauthorized(c, "BRIDGE_UNAUTHORIZED", "invalid bridge credentials")
		},
	})
}
