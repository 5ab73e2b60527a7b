package stt

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mojokb/ha-custom-stt/domain/repositories"
)

// MockSpeechToText is a deterministic recognizer for development and tests
type MockSpeechToText struct {
	logger *zap.Logger
}

// NewMockSpeechToText creates a new mock speech-to-text service
func NewMockSpeechToText(logger *zap.Logger) repositories.SpeechToText {
	return &MockSpeechToText{
		logger: logger,
	}
}

// TranscribeAudio implements repositories.SpeechToText
func (s *MockSpeechToText) TranscribeAudio(ctx context.Context, audioData []byte, config repositories.AudioConfig) (string, error) {
	s.logger.Info("Processing mock speech-to-text",
		zap.Int("audioSize", len(audioData)),
		zap.Int("sampleRate", config.SampleRate),
		zap.String("language", config.Language))

	return mockTranscript(len(audioData), config.Language), nil
}

// InitTranscribeStreaming creates a new mock streaming session
func (s *MockSpeechToText) InitTranscribeStreaming(ctx context.Context, config repositories.AudioConfig) (repositories.SpeechToTextStreaming, error) {
	s.logger.Info("Initializing mock streaming transcription",
		zap.Int("sampleRate", config.SampleRate),
		zap.String("encoding", config.Encoding),
		zap.String("language", config.Language))

	return &mockStream{
		logger:   s.logger,
		language: config.Language,
	}, nil
}

type mockStream struct {
	logger   *zap.Logger
	language string
	received int
}

func (m *mockStream) Stream(data []byte) error {
	m.logger.Debug("Processing mock audio chunk", zap.Int("size", len(data)))
	m.received += len(data)
	return nil
}

func (m *mockStream) End() (string, error) {
	if m.received == 0 {
		return "", fmt.Errorf("no audio data received")
	}

	result := mockTranscript(m.received, m.language)
	m.logger.Info("Ending mock transcription stream", zap.String("result", result))
	return result, nil
}

// mockTranscript varies the canned response with payload size so callers can
// exercise short and long utterances
func mockTranscript(audioBytes int, language string) string {
	if language == "ko-KR" {
		switch {
		case audioBytes > 10000:
			return "거실 조명을 켜고 온도를 이십이도로 맞춰 줘."
		case audioBytes > 5000:
			return "거실 조명을 켜 줘."
		default:
			return "안녕하세요."
		}
	}

	switch {
	case audioBytes > 10000:
		return "turn on the living room lights and set the temperature to twenty two degrees"
	case audioBytes > 5000:
		return "turn on the living room lights"
	default:
		return "hello"
	}
}
