package api

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"beacon/config"
	apimiddleware "beacon/internal/delivery/api/middleware"
	"beacon/internal/delivery/api/router"
	"beacon/internal/delivery/api/router/handler"
	"beacon/internal/domain/entity"
	domainerrors "beacon/internal/domain/errors"
	"beacon/internal/domain/service"
	mockSvc "beacon/internal/mocks/service"
	mockUC "beacon/internal/mocks/usecase"
	"beacon/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type apiFixtures struct {
	echo           *echo.Echo
	tokenSvc       *mockSvc.MockTokenService
	notificationUC *mockUC.MockNotificationUsecase
	deviceUC       *mockUC.MockDeviceUsecase
	userID         uuid.UUID
}

func createTestAPI(t *testing.T) apiFixtures {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{}
	cfg.HTTP.MaxRequestBodySize = "100KB"

	tokenSvc := mockSvc.NewMockTokenService(t)
	notificationUC := mockUC.NewMockNotificationUsecase(t)
	deviceUC := mockUC.NewMockDeviceUsecase(t)

	e := NewEcho(ServerParams{
		Cfg:    cfg,
		Logger: logger,
		RouterParams: router.RouterParams{
			NotificationHandler: handler.NewNotificationHandler(handler.NotificationHandlerParams{NotificationUC: notificationUC, Logger: logger}),
			DeviceHandler:       handler.NewDeviceHandler(handler.DeviceHandlerParams{DeviceUC: deviceUC, Logger: logger}),
			AdminHandler:        handler.NewAdminHandler(handler.AdminHandlerParams{NotificationUC: notificationUC, Logger: logger}),
			AuthMiddleware:      apimiddleware.NewAuthMiddleware(tokenSvc),
		},
	})

	return apiFixtures{
		echo:           e,
		tokenSvc:       tokenSvc,
		notificationUC: notificationUC,
		deviceUC:       deviceUC,
		userID:         uuid.New(),
	}
}

func (fx apiFixtures) login(token string, roles ...string) {
	fx.tokenSvc.EXPECT().ValidateToken(token).
		Return(&service.Claims{UserID: fx.userID, Roles: roles, Type: service.TokenTypeAccess}, nil)
}

func (fx apiFixtures) do(method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	fx.echo.ServeHTTP(rec, req)

	return rec
}

func TestAPI_Health(t *testing.T) {
	fx := createTestAPI(t)

	rec := fx.do(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPI_RequiresToken(t *testing.T) {
	fx := createTestAPI(t)

	rec := fx.do(http.MethodGet, "/api/v1/notifications", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPI_UnreadCount(t *testing.T) {
	fx := createTestAPI(t)
	fx.login("tok", "user")
	fx.notificationUC.EXPECT().UnreadCount(mock.Anything, fx.userID).Return(int64(7), nil)

	rec := fx.do(http.MethodGet, "/api/v1/notifications/unread-count", "tok", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":7`)
}

func TestAPI_MarkAsReadNotFound(t *testing.T) {
	fx := createTestAPI(t)
	fx.login("tok", "user")
	id := uuid.New()
	fx.notificationUC.EXPECT().MarkAsRead(mock.Anything, fx.userID, id).Return(domainerrors.ErrNotificationNotFound)

	rec := fx.do(http.MethodPatch, "/api/v1/notifications/"+id.String()+"/read", "tok", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_AdminRouteRequiresAdminRole(t *testing.T) {
	fx := createTestAPI(t)
	fx.login("tok", "user")

	rec := fx.do(http.MethodPost, "/api/v1/admin/notifications", "tok",
		`{"userId":"`+uuid.NewString()+`","title":"Hi"}`)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAPI_AdminCreatesNotification(t *testing.T) {
	fx := createTestAPI(t)
	fx.login("tok", "admin")
	target := uuid.New()

	fx.notificationUC.EXPECT().
		Create(mock.Anything, mock.MatchedBy(func(in *usecase.CreateNotificationInput) bool {
			return in.UserID == target && in.Title == "Deploy finished" && in.Type == entity.NotificationTypeSuccess
		})).
		Return(&entity.Notification{ID: uuid.New(), UserID: target, Title: "Deploy finished", Type: entity.NotificationTypeSuccess}, nil)

	rec := fx.do(http.MethodPost, "/api/v1/admin/notifications", "tok",
		`{"userId":"`+target.String()+`","type":"success","title":"Deploy finished"}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"title":"Deploy finished"`)
}

func TestAPI_CORSExposesRequestID(t *testing.T) {
	fx := createTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(echo.HeaderOrigin, "https://inbox.example.com")
	rec := httptest.NewRecorder()
	fx.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.Equal(t, echo.HeaderXRequestID, rec.Header().Get(echo.HeaderAccessControlExposeHeaders))
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}
