package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/mojokb/ha-custom-stt/domain/entities"
	"github.com/mojokb/ha-custom-stt/domain/repositories"
	"github.com/mojokb/ha-custom-stt/internal/wav"
)

const defaultRouterURL = "https://rs-audio-router.azurewebsites.net/api/v1/audio-routing"

// RouterConfig holds configuration for the audio-router backend
type RouterConfig struct {
	// APIKey is sent as the x-functions-key header. Required.
	APIKey string
	// URL overrides the default audio-routing endpoint.
	URL string
	// MacAddress identifies the submitting device to the router.
	MacAddress string
}

// RouterSpeechToText implements SpeechToText against the RS audio-router
// HTTP API. The router accepts a multipart upload of the audio file and
// returns the recognized text as JSON.
type RouterSpeechToText struct {
	apiKey     string
	url        string
	macAddress string
	client     *http.Client
	logger     *zap.Logger
}

// NewRouterSpeechToText creates an audio-router backed recognizer
func NewRouterSpeechToText(config RouterConfig, logger *zap.Logger) (*RouterSpeechToText, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("audio router API key is required")
	}

	url := config.URL
	if url == "" {
		url = defaultRouterURL
	}

	return &RouterSpeechToText{
		apiKey:     config.APIKey,
		url:        url,
		macAddress: config.MacAddress,
		client:     &http.Client{},
		logger:     logger,
	}, nil
}

type routerResponse struct {
	Text  string `json:"text"`
	Error string `json:"error_message"`
}

// TranscribeAudio submits a complete audio payload for recognition
func (r *RouterSpeechToText) TranscribeAudio(ctx context.Context, audioData []byte, config repositories.AudioConfig) (string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("audio", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(audioData); err != nil {
		return "", fmt.Errorf("write audio part: %w", err)
	}

	timestamp := strconv.FormatInt(time.Now().UTC().Unix(), 10)
	_ = writer.WriteField("timestamp", timestamp)
	_ = writer.WriteField("macAddress", r.macAddress)
	_ = writer.WriteField("language", config.Language)
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("x-functions-key", r.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", entities.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		r.logger.Warn("Audio router returned non-OK status",
			zap.Int("status", resp.StatusCode),
			zap.Int("bodySize", len(raw)))
		return "", fmt.Errorf("%w: audio router http %d", entities.ErrBackendUnavailable, resp.StatusCode)
	}

	var parsed routerResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("%w: decode router response: %v", entities.ErrBackendUnavailable, err)
	}

	if parsed.Error != "" {
		return "", fmt.Errorf("%w: %s", entities.ErrBackendUnavailable, parsed.Error)
	}
	if parsed.Text == "" {
		return "", entities.ErrNoSpeech
	}

	return parsed.Text, nil
}

// InitTranscribeStreaming initializes a streaming transcription session. The
// router has no streaming API, chunks are buffered and submitted as one WAV
// payload on End.
func (r *RouterSpeechToText) InitTranscribeStreaming(ctx context.Context, config repositories.AudioConfig) (repositories.SpeechToTextStreaming, error) {
	return &routerStream{
		parent: r,
		ctx:    ctx,
		config: config,
	}, nil
}

type routerStream struct {
	parent *RouterSpeechToText
	ctx    context.Context
	config repositories.AudioConfig
	buffer bytes.Buffer
}

func (s *routerStream) Stream(data []byte) error {
	_, err := s.buffer.Write(data)
	return err
}

func (s *routerStream) End() (string, error) {
	if s.buffer.Len() == 0 {
		return "", fmt.Errorf("no audio data received")
	}

	channels := s.config.Channels
	if channels == 0 {
		channels = 1
	}

	payload := wav.Encode(s.buffer.Bytes(), wav.Format{
		Channels:      channels,
		SampleRate:    s.config.SampleRate,
		BitsPerSample: 16,
	})

	return s.parent.TranscribeAudio(s.ctx, payload, s.config)
}
