// Package router contains routing and server setup for the REST API.
package router

import (
	"beacon/internal/delivery/api/middleware"
	"beacon/internal/delivery/api/router/handler"
	"beacon/internal/domain/entity"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

type RouterParams struct {
	fx.In

	NotificationHandler *handler.NotificationHandler
	DeviceHandler       *handler.DeviceHandler
	AdminHandler        *handler.AdminHandler
	AuthMiddleware      *middleware.AuthMiddleware
}

// router holds all the handlers that need to be registered.
type router struct {
	notificationHandler *handler.NotificationHandler
	deviceHandler       *handler.DeviceHandler
	adminHandler        *handler.AdminHandler
	authMiddleware      *middleware.AuthMiddleware
}

// NewRouter is the constructor for the Router.
// Fx will inject the required handlers here.
func NewRouter(params RouterParams) *router {
	return &router{
		notificationHandler: params.NotificationHandler,
		deviceHandler:       params.DeviceHandler,
		adminHandler:        params.AdminHandler,
		authMiddleware:      params.AuthMiddleware,
	}
}

// RegisterRoutes sets up all the API routes for the application.
func (r *router) RegisterRoutes(e *echo.Echo) {
	// Health check endpoint
	e.GET("/health", handler.HealthCheck)

	// API v1 routes
	apiV1 := e.Group("/api/v1")
	apiV1.Use(r.authMiddleware.Authenticate) // All API v1 routes require authentication

	// Inbox of the caller
	notificationsGroup := apiV1.Group("/notifications")
	{
		notificationsGroup.GET("", r.notificationHandler.ListNotifications)
		notificationsGroup.GET("/unread-count", r.notificationHandler.UnreadCount)
		notificationsGroup.PATCH("/:id/read", r.notificationHandler.MarkAsRead)
		notificationsGroup.POST("/read-all", r.notificationHandler.MarkAllAsRead)
		notificationsGroup.DELETE("/:id", r.notificationHandler.DeleteNotification)
	}

	// Device management routes
	devicesGroup := apiV1.Group("/devices")
	{
		devicesGroup.POST("", r.deviceHandler.RegisterDevice)
		devicesGroup.GET("", r.deviceHandler.GetUserDevices)
		devicesGroup.DELETE("/:id", r.deviceHandler.DeactivateDevice)
	}

	// Admin routes require the "admin" role
	adminGroup := apiV1.Group("/admin")
	adminGroup.Use(r.authMiddleware.RequireRole(entity.RoleAdmin))
	{
		adminGroup.POST("/notifications", r.adminHandler.CreateNotification)
	}
}
