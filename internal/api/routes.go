package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/mojokb/ha-custom-stt/domain/entities"
	"github.com/mojokb/ha-custom-stt/domain/repositories"
	"github.com/mojokb/ha-custom-stt/internal/auth"
	"github.com/mojokb/ha-custom-stt/internal/websocket"
	"github.com/mojokb/ha-custom-stt/usecase"
)

// maxAudioBytes caps a single recognition payload.
const maxAudioBytes = 10 << 20 // 10MB

// InitRoutes initializes all API routes
func InitRoutes(
	e *echo.Echo,
	hub *websocket.Hub,
	transcriptions *usecase.TranscriptionService,
	deviceRepo repositories.DeviceRepository,
	logger *zap.Logger,
) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":    "ok",
			"service":   "ha-custom-stt",
			"languages": entities.SupportedLanguages,
		})
	})

	// API v1 routes
	v1 := e.Group("/api/v1")

	v1.POST("/device/auth", func(c echo.Context) error {
		return deviceAuth(c, deviceRepo, logger)
	})

	v1.POST("/transcriptions", func(c echo.Context) error {
		return createTranscription(c, transcriptions, logger)
	})

	v1.GET("/transcriptions", func(c echo.Context) error {
		return listTranscriptions(c, transcriptions, logger)
	})

	// WebSocket endpoint with JWT validation
	e.GET("/ws", func(c echo.Context) error {
		return websocketWithAuth(hub, c, logger)
	})
}

func deviceAuth(c echo.Context, deviceRepo repositories.DeviceRepository, logger *zap.Logger) error {
	var req DeviceAuthRequest

	if err := c.Bind(&req); err != nil {
		logger.Error("Failed to bind device auth request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	if req.SerialNumber == "" || req.SecretKey == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "Serial number and secret key are required",
		})
	}

	device, err := deviceRepo.ValidateDevice(req.SerialNumber, req.SecretKey)
	if err != nil {
		logger.Warn("Device authentication failed",
			zap.String("serial_number", req.SerialNumber),
			zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "authentication_failed",
			Message: "Invalid device credentials",
		})
	}

	token, err := auth.GenerateDeviceToken(device.ID)
	if err != nil {
		logger.Error("Failed to generate device token",
			zap.String("device_id", device.ID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate authentication token",
		})
	}

	logger.Info("Device authenticated successfully",
		zap.String("device_id", device.ID),
		zap.String("serial_number", device.SerialNumber))

	return c.JSON(http.StatusOK, DeviceAuthResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(24 * time.Hour),
		DeviceID:  device.ID,
	})
}

// createTranscription accepts a WAV payload and returns the recognition
// result. The language is selected with the "language" query parameter.
func createTranscription(c echo.Context, transcriptions *usecase.TranscriptionService, logger *zap.Logger) error {
	claims, errResp := deviceClaims(c)
	if errResp != nil {
		return c.JSON(http.StatusUnauthorized, errResp)
	}

	language := c.QueryParam("language")
	if language == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_language",
			Message: "The language query parameter is required",
		})
	}

	audio, err := io.ReadAll(io.LimitReader(c.Request().Body, maxAudioBytes+1))
	if err != nil {
		logger.Error("Failed to read audio payload", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_payload",
			Message: "Failed to read audio payload",
		})
	}
	if len(audio) > maxAudioBytes {
		return c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
			Error:   "payload_too_large",
			Message: "Audio payload exceeds the 10MB limit",
		})
	}

	record, err := transcriptions.Transcribe(c.Request().Context(), claims.DeviceID, audio, language)
	if err != nil {
		switch {
		case errors.Is(err, entities.ErrUnsupportedLanguage):
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "unsupported_language",
				Message: "Language must be one of: en-US, ko-KR",
			})
		case errors.Is(err, entities.ErrDecodeFailure):
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "decode_failure",
				Message: "Audio payload is not a valid WAV container",
			})
		default:
			logger.Error("Transcription failed", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "internal_error",
				Message: "Transcription failed",
			})
		}
	}

	return c.JSON(http.StatusOK, TranscriptionResponse{
		ID:         record.ID,
		State:      string(record.State),
		Text:       record.Text,
		Reason:     record.Reason,
		Language:   record.Language,
		DurationMs: record.DurationMs,
	})
}

// listTranscriptions returns the recent recognition history for the calling
// device
func listTranscriptions(c echo.Context, transcriptions *usecase.TranscriptionService, logger *zap.Logger) error {
	claims, errResp := deviceClaims(c)
	if errResp != nil {
		return c.JSON(http.StatusUnauthorized, errResp)
	}

	limit := 20
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 100 {
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_limit",
				Message: "Limit must be between 1 and 100",
			})
		}
		limit = parsed
	}

	records, err := transcriptions.History(c.Request().Context(), claims.DeviceID, limit)
	if err != nil {
		logger.Error("Failed to list transcriptions",
			zap.String("device_id", claims.DeviceID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to load transcription history",
		})
	}

	return c.JSON(http.StatusOK, records)
}

// deviceClaims extracts and validates the bearer token from the request
func deviceClaims(c echo.Context) (*auth.JWTClaims, *ErrorResponse) {
	var token string
	authHeader := c.Request().Header.Get("Authorization")
	if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
		token = authHeader[7:]
	}

	if token == "" {
		return nil, &ErrorResponse{
			Error:   "missing_token",
			Message: "JWT token is required in Authorization header",
		}
	}

	claims, err := auth.ValidateToken(token)
	if err != nil {
		return nil, &ErrorResponse{
			Error:   "invalid_token",
			Message: "Invalid or expired JWT token",
		}
	}

	if claims.Role != "device" || claims.DeviceID == "" {
		return nil, &ErrorResponse{
			Error:   "invalid_token_claims",
			Message: "Only device tokens are allowed",
		}
	}

	return claims, nil
}

// websocketWithAuth handles WebSocket connections with JWT authentication
func websocketWithAuth(hub *websocket.Hub, c echo.Context, logger *zap.Logger) error {
	claims, errResp := deviceClaims(c)
	if errResp != nil {
		logger.Warn("WebSocket connection rejected",
			zap.String("reason", errResp.Error))
		return c.JSON(http.StatusUnauthorized, errResp)
	}

	logger.Info("WebSocket connection authenticated",
		zap.String("device_id", claims.DeviceID))

	return websocket.HandleWebSocket(hub, c, claims.DeviceID, logger)
}
