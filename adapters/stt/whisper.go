package stt

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/mojokb/ha-custom-stt/domain/entities"
	"github.com/mojokb/ha-custom-stt/domain/repositories"
	"github.com/mojokb/ha-custom-stt/internal/wav"
)

// WhisperSpeechToText implements SpeechToText using the OpenAI Whisper API
type WhisperSpeechToText struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewWhisperSpeechToText creates a Whisper-backed recognizer
func NewWhisperSpeechToText(apiKey string, logger *zap.Logger) (*WhisperSpeechToText, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	return &WhisperSpeechToText{
		client: openai.NewClient(apiKey),
		model:  openai.Whisper1,
		logger: logger,
	}, nil
}

// TranscribeAudio converts a complete audio payload to text
func (w *WhisperSpeechToText) TranscribeAudio(ctx context.Context, audioData []byte, config repositories.AudioConfig) (string, error) {
	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		Reader:   bytes.NewReader(audioData),
		FilePath: "audio.wav",
		Language: iso639(config.Language),
	})
	if err != nil {
		return "", fmt.Errorf("%w: whisper transcription: %v", entities.ErrBackendUnavailable, err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", entities.ErrNoSpeech
	}

	w.logger.Debug("Whisper transcription completed",
		zap.Int("audioSize", len(audioData)),
		zap.Int("textLength", len(text)))

	return text, nil
}

// InitTranscribeStreaming initializes a streaming transcription session.
// Whisper has no streaming endpoint, so chunks are buffered and submitted as
// one WAV payload when the session ends.
func (w *WhisperSpeechToText) InitTranscribeStreaming(ctx context.Context, config repositories.AudioConfig) (repositories.SpeechToTextStreaming, error) {
	return &whisperStream{
		parent: w,
		ctx:    ctx,
		config: config,
	}, nil
}

type whisperStream struct {
	parent *WhisperSpeechToText
	ctx    context.Context
	config repositories.AudioConfig
	buffer bytes.Buffer
}

func (s *whisperStream) Stream(data []byte) error {
	_, err := s.buffer.Write(data)
	return err
}

func (s *whisperStream) End() (string, error) {
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

// iso639 maps a BCP-47 language tag to the bare ISO-639-1 code Whisper
// expects
func iso639(language string) string {
	if idx := strings.Index(language, "-"); idx > 0 {
		return language[:idx]
	}
	return language
}
