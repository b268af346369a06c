package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	audioadapter "github.com/vozcasa/vozcasa/adapters/audio"
	"github.com/vozcasa/vozcasa/adapters/genlive"
	"github.com/vozcasa/vozcasa/domain/entities"
	"github.com/vozcasa/vozcasa/internal/api"
	"github.com/vozcasa/vozcasa/internal/config"
	"github.com/vozcasa/vozcasa/internal/devices"
	"github.com/vozcasa/vozcasa/internal/websocket"
	"github.com/vozcasa/vozcasa/repository"
	"github.com/vozcasa/vozcasa/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("Failed to load configuration", zap.Error(err))
	}

	logger := newLogger(cfg.LogLevel)
	defer logger.Sync()

	// Device inventory: a YAML file when configured, built-in defaults
	// otherwise.
	deviceSet, err := devices.Load(cfg.DevicesFile)
	if err != nil {
		logger.Fatal("Failed to load devices", zap.Error(err))
	}
	registry := repository.NewDeviceRegistry(deviceSet)
	logger.Info("Device registry ready", zap.Int("devices", len(deviceSet)))

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Initialize adapters
	connector := genlive.NewConnector(cfg.GeminiAPIKey, cfg.LiveHost, logger)
	capture := audioadapter.NewMicCapture(logger)
	playback := audioadapter.NewPlayerFactory(logger)

	// Initialize usecase services
	dispatcher := usecase.NewToolDispatcher(registry, logger)
	manager := usecase.NewManager(
		connector,
		capture,
		playback.NewSink,
		registry,
		dispatcher,
		usecase.SessionConfig{Model: cfg.LiveModel, Voice: cfg.LiveVoice},
		logger,
	)

	// Initialize WebSocket hub and feed it state changes
	hub := websocket.NewHub(logger)
	go hub.Run()
	registry.Subscribe(func(device entities.Device) {
		hub.Broadcast(websocket.DeviceStateEvent(device))
	})
	manager.SubscribePhase(func(phase entities.SessionPhase) {
		hub.Broadcast(websocket.SessionPhaseEvent(phase))
	})
	manager.SubscribeTurnComplete(func() {
		hub.Broadcast(websocket.TurnCompleteEvent())
	})

	// Initialize API routes
	api.InitRoutes(e, hub, registry, manager, logger)

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + cfg.HTTPPort); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Server started",
		zap.String("port", cfg.HTTPPort),
		zap.String("model", cfg.LiveModel))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	manager.Disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func newLogger(level string) *zap.Logger {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := cfg.Build()
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}
