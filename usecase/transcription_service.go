package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mojokb/ha-custom-stt/domain/entities"
	"github.com/mojokb/ha-custom-stt/domain/repositories"
	"github.com/mojokb/ha-custom-stt/internal/vad"
	"github.com/mojokb/ha-custom-stt/internal/wav"
)

const (
	// minAudioBytes is the smallest payload worth sending to a backend.
	// Anything at or below this is treated as an empty capture.
	minAudioBytes = 1000

	// backendTimeout bounds a single recognition call.
	backendTimeout = 10 * time.Second
)

// TranscriptionService implements the recognition flow: validate the
// language, decode the WAV payload, gate on voice activity, call the
// backend, and map the outcome to a transcription record.
//
// Invalid requests (unsupported language, undecodable payload) are returned
// as errors. Operational outcomes (silence, backend faults) resolve to an
// error-state record so every accepted call produces a result.
type TranscriptionService struct {
	recognizer repositories.SpeechToText
	history    repositories.TranscriptionRepository
	vadConfig  vad.Config
	logger     *zap.Logger
}

// NewTranscriptionService creates a new transcription service
func NewTranscriptionService(
	recognizer repositories.SpeechToText,
	history repositories.TranscriptionRepository,
	logger *zap.Logger,
) *TranscriptionService {
	return &TranscriptionService{
		recognizer: recognizer,
		history:    history,
		vadConfig:  vad.DefaultConfig(),
		logger:     logger,
	}
}

// Transcribe runs one recognition call for a complete WAV payload
func (s *TranscriptionService) Transcribe(ctx context.Context, deviceID string, audio []byte, language string) (*entities.TranscriptionRecord, error) {
	if !entities.IsSupportedLanguage(language) {
		return nil, fmt.Errorf("%w: %q", entities.ErrUnsupportedLanguage, language)
	}

	record := entities.NewTranscriptionRecord(deviceID, language, len(audio))
	started := time.Now()

	if len(audio) <= minAudioBytes {
		s.logger.Debug("No audio data received",
			zap.String("deviceID", deviceID),
			zap.Int("audioSize", len(audio)))
		record.Fail("no audio data received", time.Since(started).Milliseconds())
		s.persist(ctx, record)
		return record, nil
	}

	format, pcm, err := wav.Decode(audio)
	if err != nil {
		return nil, err
	}

	if format.BitsPerSample == 16 && !vad.HasVoice(pcm, format.SampleRate, s.vadConfig) {
		s.logger.Debug("No voice activity detected",
			zap.String("deviceID", deviceID),
			zap.Int("pcmBytes", len(pcm)))
		record.Fail(entities.ErrNoSpeech.Error(), time.Since(started).Milliseconds())
		s.persist(ctx, record)
		return record, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, backendTimeout)
	defer cancel()

	text, err := s.recognizer.TranscribeAudio(callCtx, audio, repositories.AudioConfig{
		SampleRate: format.SampleRate,
		Channels:   format.Channels,
		Encoding:   "WAV",
		Language:   language,
	})
	if err != nil {
		s.logger.Error("Recognition backend call failed",
			zap.String("deviceID", deviceID),
			zap.String("language", language),
			zap.Error(err))
		record.Fail(failureReason(err), time.Since(started).Milliseconds())
		s.persist(ctx, record)
		return record, nil
	}

	record.Succeed(text, time.Since(started).Milliseconds())
	s.persist(ctx, record)

	s.logger.Info("Transcription completed",
		zap.String("deviceID", deviceID),
		zap.String("recordID", record.ID),
		zap.String("language", language),
		zap.Int64("durationMs", record.DurationMs))

	return record, nil
}

// History returns the most recent transcription records for a device
func (s *TranscriptionService) History(ctx context.Context, deviceID string, limit int) ([]*entities.TranscriptionRecord, error) {
	return s.history.ListByDeviceID(ctx, deviceID, limit)
}

// SaveRecord persists a record produced outside the batch path, e.g. by a
// streaming session. Persistence failures are logged, not surfaced.
func (s *TranscriptionService) SaveRecord(ctx context.Context, record *entities.TranscriptionRecord) {
	s.persist(ctx, record)
}

func (s *TranscriptionService) persist(ctx context.Context, record *entities.TranscriptionRecord) {
	if err := s.history.Create(ctx, record); err != nil {
		s.logger.Error("Failed to persist transcription record",
			zap.String("recordID", record.ID),
			zap.Error(err))
	}
}

// failureReason maps a backend error to an operator-facing reason string
func failureReason(err error) string {
	switch {
	case errors.Is(err, entities.ErrNoSpeech):
		return entities.ErrNoSpeech.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return "recognition backend timed out"
	case errors.Is(err, entities.ErrBackendUnavailable):
		return entities.ErrBackendUnavailable.Error()
	default:
		return "recognition failed"
	}
}
