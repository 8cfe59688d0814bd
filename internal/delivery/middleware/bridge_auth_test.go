package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"beacon/internal/domain/constants"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestBridgeAuth(t *testing.T) {
	ok := func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }

	tests := []struct {
		name   string
		secret string
		header string
		status int
	}{
		{name: "disabled", secret: "", header: "", status: http.StatusNoContent},
		{name: "matching", secret: "s3cret", header: "s3cret", status: http.StatusNoContent},
		{name: "missing", secret: "s3cret", header: "", status: http.StatusUnauthorized},
		{name: "wrong", secret: "s3cret", header: "guess", status: http.StatusUnauthorized},
		{name: "prefix of secret", secret: "s3cret", header: "s3c", status: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodPost, "/emit", nil)
			if tt.header != "" {
				req.Header.Set(constants.BridgeSecretHeader, tt.header)
			}
			rec := httptest.NewRecorder()

			_ = BridgeAuth(tt.secret)(ok)(e.NewContext(req, rec))

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusUnauthorized {
				assert.Contains(t, rec.Body.String(), "BRIDGE_UNAUTHORIZED")
			}
		})
	}
}
