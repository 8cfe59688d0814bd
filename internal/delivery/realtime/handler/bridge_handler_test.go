package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"beacon/pkg/protocol"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postJSON(e *echo.Echo, path, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	return e.NewContext(req, rec), rec
}

func TestBridgeHandler_EmitNotification(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name      string
		body      string
		status    int
		delivered int
	}{
		{
			name:      "delivered to the connected user",
			body:      `{"userId":"` + userID.String() + `","notification":{"id":"n-1","title":"Hi"}}`,
			status:    http.StatusOK,
			delivered: 1,
		},
		{
			name:      "offline user still succeeds",
			body:      `{"userId":"` + uuid.NewString() + `","notification":{"id":"n-1","title":"Hi"}}`,
			status:    http.StatusOK,
			delivered: 0,
		},
		{
			name:   "missing user id",
			body:   `{"notification":{"id":"n-1"}}`,
			status: http.StatusBadRequest,
		},
		{
			name:   "notification without id",
			body:   `{"userId":"` + userID.String() + `","notification":{"title":"Hi"}}`,
			status: http.StatusBadRequest,
		},
		{
			name:   "notification not an object",
			body:   `{"userId":"` + userID.String() + `","notification":"Hi"}`,
			status: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dispatcher, _, transport := newTestDispatcher(userID)
			h := NewBridgeHandler(BridgeHandlerParams{Logger: discardLogger(), Dispatcher: dispatcher})

			c, rec := postJSON(newTestEcho(), "/emit-notification", tt.body)
			require.NoError(t, h.EmitNotification(c))
			assert.Equal(t, tt.status, rec.Code)

			if tt.status != http.StatusOK {
				assert.Empty(t, transport.Frames())

				return
			}

			var resp protocol.EmitResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.True(t, resp.Success)
			require.NotNil(t, resp.Delivered)
			assert.Equal(t, tt.delivered, *resp.Delivered)
			assert.Len(t, transport.Frames(), tt.delivered)
		})
	}
}

func TestBridgeHandler_Emit(t *testing.T) {
	userID := uuid.New()

	t.Run("forwards a known envelope", func(t *testing.T) {
		dispatcher, _, transport := newTestDispatcher(userID)
		h := NewBridgeHandler(BridgeHandlerParams{Logger: discardLogger(), Dispatcher: dispatcher})

		c, rec := postJSON(newTestEcho(), "/emit", `{"userId":"`+userID.String()+`","type":"unread_count","data":{"count":4}}`)
		require.NoError(t, h.Emit(c))
		assert.Equal(t, http.StatusOK, rec.Code)

		frames := transport.Frames()
		require.Len(t, frames, 1)
		env, err := protocol.Decode(frames[0])
		require.NoError(t, err)
		assert.Equal(t, protocol.TypeUnreadCount, env.Type)
		assert.JSONEq(t, `{"count":4}`, string(env.Data))
	})

	t.Run("rejects an unknown type", func(t *testing.T) {
		dispatcher, _, transport := newTestDispatcher(userID)
		h := NewBridgeHandler(BridgeHandlerParams{Logger: discardLogger(), Dispatcher: dispatcher})

		c, rec := postJSON(newTestEcho(), "/emit", `{"userId":"`+userID.String()+`","type":"reboot"}`)
		require.NoError(t, h.Emit(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, transport.Frames())
	})
}
