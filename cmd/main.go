package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/mojokb/ha-custom-stt/adapters"
	mongoadapter "github.com/mojokb/ha-custom-stt/adapters/mongo"
	"github.com/mojokb/ha-custom-stt/adapters/stt"
	"github.com/mojokb/ha-custom-stt/domain/repositories"
	"github.com/mojokb/ha-custom-stt/internal/api"
	"github.com/mojokb/ha-custom-stt/internal/websocket"
	"github.com/mojokb/ha-custom-stt/usecase"
)

func main() {
	// .env is optional, env vars win
	_ = godotenv.Load()

	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Create Echo instance
	e := echo.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Recognition backend
	recognizer := newRecognizer(logger)

	// Transcription history: MongoDB when configured, in-memory otherwise
	var history repositories.TranscriptionRepository
	if os.Getenv("MONGODB_URI") != "" {
		mongoClient, err := mongoadapter.NewClient(logger)
		if err != nil {
			logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			mongoClient.Close(ctx)
		}()
		history = mongoadapter.NewTranscriptionRepository(mongoClient.Database, logger)
	} else {
		logger.Info("MONGODB_URI not set, keeping transcription history in memory")
		history = adapters.NewMemoryTranscriptionRepository()
	}

	// Device credentials
	deviceRepo := adapters.NewMemoryDeviceRepository()
	seedDevice(deviceRepo, logger)

	// Initialize usecase services
	transcriptions := usecase.NewTranscriptionService(recognizer, history, logger)

	// Initialize WebSocket hub
	hub := websocket.NewHub(recognizer, history, logger)
	go hub.Run()

	// Initialize API routes
	api.InitRoutes(e, hub, transcriptions, deviceRepo, logger)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	go func() {
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("STT gateway started", zap.String("port", port))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// newRecognizer selects the recognition backend from STT_BACKEND
func newRecognizer(logger *zap.Logger) repositories.SpeechToText {
	backend := os.Getenv("STT_BACKEND")

	switch backend {
	case "google":
		return &stt.GoogleSpeechToText{}

	case "whisper":
		recognizer, err := stt.NewWhisperSpeechToText(os.Getenv("OPENAI_API_KEY"), logger)
		if err != nil {
			logger.Fatal("Failed to create Whisper backend", zap.Error(err))
		}
		return recognizer

	case "router":
		recognizer, err := stt.NewRouterSpeechToText(stt.RouterConfig{
			APIKey:     os.Getenv("STT_ROUTER_API_KEY"),
			URL:        os.Getenv("STT_ROUTER_URL"),
			MacAddress: os.Getenv("STT_DEVICE_MAC"),
		}, logger)
		if err != nil {
			logger.Fatal("Failed to create audio router backend", zap.Error(err))
		}
		return recognizer

	case "", "mock":
		logger.Warn("Using mock recognition backend, set STT_BACKEND to google, whisper, or router")
		return stt.NewMockSpeechToText(logger)

	default:
		logger.Fatal("Unknown STT_BACKEND value", zap.String("backend", backend))
		return nil
	}
}

// seedDevice registers the device credentials from the environment so a
// single-host installation works without a provisioning step
func seedDevice(deviceRepo *adapters.MemoryDeviceRepository, logger *zap.Logger) {
	serial := os.Getenv("STT_DEVICE_SERIAL")
	secret := os.Getenv("STT_DEVICE_SECRET")
	if serial == "" || secret == "" {
		logger.Warn("STT_DEVICE_SERIAL or STT_DEVICE_SECRET not set, no device can authenticate")
		return
	}

	model := os.Getenv("STT_DEVICE_MODEL")
	if model == "" {
		model = "home-assistant"
	}

	device, err := deviceRepo.RegisterDevice(serial, secret, model, os.Getenv("STT_DEVICE_MAC"))
	if err != nil {
		logger.Fatal("Failed to register device", zap.Error(err))
	}

	logger.Info("Device registered",
		zap.String("device_id", device.ID),
		zap.String("serial_number", device.SerialNumber))
}
