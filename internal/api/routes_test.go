package api

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap/zaptest"

	"github.com/mojokb/ha-custom-stt/adapters"
	"github.com/mojokb/ha-custom-stt/domain/repositories"
	"github.com/mojokb/ha-custom-stt/internal/wav"
	"github.com/mojokb/ha-custom-stt/internal/websocket"
	"github.com/mojokb/ha-custom-stt/usecase"
)

type stubRecognizer struct {
	text string
}

func (s *stubRecognizer) TranscribeAudio(ctx context.Context, audioData []byte, config repositories.AudioConfig) (string, error) {
	return s.text, nil
}

func (s *stubRecognizer) InitTranscribeStreaming(ctx context.Context, config repositories.AudioConfig) (repositories.SpeechToTextStreaming, error) {
	return nil, nil
}

func speechWAV(durationMs int) []byte {
	const sampleRate = 16000
	samples := sampleRate * durationMs / 1000
	pcm := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		v := 0.5 * math.Sin(2*math.Pi*440*float64(i)/sampleRate)
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(v*32767)))
	}
	return wav.Encode(pcm, wav.Format{Channels: 1, SampleRate: sampleRate, BitsPerSample: 16})
}

// newTestServer wires the routes with in-memory repositories and a stub
// recognizer, and returns the echo instance plus a valid device token
func newTestServer(t *testing.T, transcript string) (*echo.Echo, string) {
	t.Helper()
	logger := zaptest.NewLogger(t)

	deviceRepo := adapters.NewMemoryDeviceRepository()
	if _, err := deviceRepo.RegisterDevice("HA-TEST", "test-secret", "home-assistant", ""); err != nil {
		t.Fatalf("RegisterDevice() error = %v", err)
	}

	recognizer := &stubRecognizer{text: transcript}
	history := adapters.NewMemoryTranscriptionRepository()
	transcriptions := usecase.NewTranscriptionService(recognizer, history, logger)
	hub := websocket.NewHub(recognizer, history, logger)

	e := echo.New()
	InitRoutes(e, hub, transcriptions, deviceRepo, logger)

	// Authenticate to get a token
	body, _ := json.Marshal(DeviceAuthRequest{SerialNumber: "HA-TEST", SecretKey: "test-secret"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/device/auth", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Device auth failed with status %d: %s", rec.Code, rec.Body.String())
	}

	var authResp DeviceAuthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &authResp); err != nil {
		t.Fatalf("Failed to decode auth response: %v", err)
	}

	return e, authResp.Token
}

func TestHealthEndpoint(t *testing.T) {
	e, _ := newTestServer(t, "hello")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	if !strings.Contains(rec.Body.String(), "en-US") {
		t.Errorf("Expected supported languages in health response, got %s", rec.Body.String())
	}
}

func TestDeviceAuthRejectsBadCredentials(t *testing.T) {
	e, _ := newTestServer(t, "hello")

	body, _ := json.Marshal(DeviceAuthRequest{SerialNumber: "HA-TEST", SecretKey: "wrong"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/device/auth", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", rec.Code)
	}
}

func TestCreateTranscription(t *testing.T) {
	e, token := newTestServer(t, "turn on the lights")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/transcriptions?language=en-US", bytes.NewReader(speechWAV(800)))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp TranscriptionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if resp.State != "success" {
		t.Errorf("Expected success state, got %s", resp.State)
	}
	if resp.Text != "turn on the lights" {
		t.Errorf("Expected stub transcript, got %q", resp.Text)
	}
}

func TestCreateTranscriptionRequiresToken(t *testing.T) {
	e, _ := newTestServer(t, "hello")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/transcriptions?language=en-US", bytes.NewReader(speechWAV(200)))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", rec.Code)
	}
}

func TestCreateTranscriptionUnsupportedLanguage(t *testing.T) {
	e, token := newTestServer(t, "hello")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/transcriptions?language=de-DE", bytes.NewReader(speechWAV(200)))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "unsupported_language") {
		t.Errorf("Expected unsupported_language error, got %s", rec.Body.String())
	}
}

func TestCreateTranscriptionMissingLanguage(t *testing.T) {
	e, token := newTestServer(t, "hello")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/transcriptions", bytes.NewReader(speechWAV(200)))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing language, got %d", rec.Code)
	}
}

func TestCreateTranscriptionMalformedAudio(t *testing.T) {
	e, token := newTestServer(t, "hello")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/transcriptions?language=en-US", bytes.NewReader(make([]byte, 4096)))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "decode_failure") {
		t.Errorf("Expected decode_failure error, got %s", rec.Body.String())
	}
}

func TestListTranscriptions(t *testing.T) {
	e, token := newTestServer(t, "hello there")

	// Create two transcriptions first
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/transcriptions?language=en-US", bytes.NewReader(speechWAV(800)))
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("Transcription %d failed with status %d", i, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/transcriptions", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var records []json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
		t.Fatalf("Failed to decode history: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("Expected 2 history records, got %d", len(records))
	}

	// Invalid limit rejected
	req = httptest.NewRequest(http.MethodGet, "/api/v1/transcriptions?limit=0", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid limit, got %d", rec.Code)
	}
}
