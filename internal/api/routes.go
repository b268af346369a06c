package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vozcasa/vozcasa/internal/websocket"
	"github.com/vozcasa/vozcasa/repository"
	"github.com/vozcasa/vozcasa/usecase"
)

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, hub *websocket.Hub, registry *repository.DeviceRegistry, manager *usecase.Manager, logger *zap.Logger) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "vozcasa",
		})
	})

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// API v1 routes
	v1 := e.Group("/api/v1")

	// Device APIs
	v1.GET("/devices", func(c echo.Context) error {
		return listDevices(c, registry)
	})
	v1.POST("/devices/:id/power", func(c echo.Context) error {
		return setDevicePower(c, registry, logger)
	})
	v1.POST("/devices/:id/value", func(c echo.Context) error {
		return setDeviceValue(c, registry, logger)
	})

	// Voice session APIs
	v1.GET("/session", func(c echo.Context) error {
		return c.JSON(http.StatusOK, manager.Snapshot())
	})
	v1.POST("/session/connect", func(c echo.Context) error {
		return sessionConnect(c, manager, logger)
	})
	v1.POST("/session/disconnect", func(c echo.Context) error {
		manager.Disconnect()
		return c.JSON(http.StatusOK, manager.Snapshot())
	})

	// WebSocket endpoint for UI state events
	e.GET("/ws", func(c echo.Context) error {
		return websocket.HandleWebSocket(hub, c, logger)
	})
}

func listDevices(c echo.Context, registry *repository.DeviceRegistry) error {
	return c.JSON(http.StatusOK, DeviceListResponse{Devices: registry.List()})
}

func setDevicePower(c echo.Context, registry *repository.DeviceRegistry, logger *zap.Logger) error {
	var req SetPowerRequest
	if err := c.Bind(&req); err != nil {
		logger.Error("Failed to bind power request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	device, err := registry.SetPower(c.Param("id"), req.On)
	if err != nil {
		if errors.Is(err, repository.ErrDeviceNotFound) {
			return c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "device_not_found",
				Message: "No device with that id",
			})
		}
		logger.Error("Failed to set device power", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to update device",
		})
	}
	return c.JSON(http.StatusOK, DeviceResponse{Device: device})
}

func setDeviceValue(c echo.Context, registry *repository.DeviceRegistry, logger *zap.Logger) error {
	var req SetValueRequest
	if err := c.Bind(&req); err != nil {
		logger.Error("Failed to bind value request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	device, err := registry.SetValue(c.Param("id"), req.Value)
	if err != nil {
		if errors.Is(err, repository.ErrDeviceNotFound) {
			return c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "device_not_found",
				Message: "No device with that id",
			})
		}
		logger.Error("Failed to set device value", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to update device",
		})
	}
	return c.JSON(http.StatusOK, DeviceResponse{Device: device})
}

func sessionConnect(c echo.Context, manager *usecase.Manager, logger *zap.Logger) error {
	if err := manager.Connect(c.Request().Context()); err != nil {
		if errors.Is(err, usecase.ErrSessionActive) {
			return c.JSON(http.StatusConflict, ErrorResponse{
				Error:   "session_active",
				Message: "A voice session is already active",
			})
		}
		if errors.Is(err, usecase.ErrSuperseded) {
			return c.JSON(http.StatusConflict, ErrorResponse{
				Error:   "session_superseded",
				Message: "The session was disconnected before it finished connecting",
			})
		}
		logger.Error("Failed to connect voice session", zap.Error(err))
		return c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "connect_failed",
			Message: "Could not establish the voice session",
		})
	}
	return c.JSON(http.StatusOK, manager.Snapshot())
}
