package entities

import (
	"time"

	"github.com/google/uuid"
)

// SupportedLanguages lists the language tags the gateway accepts.
var SupportedLanguages = []string{
	"en-US",
	"ko-KR",
}

// IsSupportedLanguage reports whether the given tag is one of
// SupportedLanguages.
func IsSupportedLanguage(language string) bool {
	for _, l := range SupportedLanguages {
		if l == language {
			return true
		}
	}
	return false
}

// TranscriptionState represents the outcome of a recognition call
type TranscriptionState string

const (
	TranscriptionStateSuccess TranscriptionState = "success"
	TranscriptionStateError   TranscriptionState = "error"
)

// TranscriptionRecord is the result of one recognition call as persisted in
// the history store. Text is empty when State is error.
type TranscriptionRecord struct {
	ID         string             `json:"id" bson:"_id,omitempty"`
	DeviceID   string             `json:"device_id" bson:"device_id"`
	Language   string             `json:"language" bson:"language"`
	State      TranscriptionState `json:"state" bson:"state"`
	Text       string             `json:"text,omitempty" bson:"text,omitempty"`
	Reason     string             `json:"reason,omitempty" bson:"reason,omitempty"`
	AudioBytes int                `json:"audio_bytes" bson:"audio_bytes"`
	DurationMs int64              `json:"duration_ms" bson:"duration_ms"`
	CreatedAt  time.Time          `json:"created_at" bson:"created_at"`
}

// NewTranscriptionRecord creates a pending record for a recognition call
func NewTranscriptionRecord(deviceID, language string, audioBytes int) *TranscriptionRecord {
	return &TranscriptionRecord{
		ID:         uuid.NewString(),
		DeviceID:   deviceID,
		Language:   language,
		AudioBytes: audioBytes,
		CreatedAt:  time.Now(),
	}
}

// Succeed marks the record as a successful transcription
func (r *TranscriptionRecord) Succeed(text string, durationMs int64) {
	r.State = TranscriptionStateSuccess
	r.Text = text
	r.DurationMs = durationMs
}

// Fail marks the record as a failed transcription with an operator-facing
// reason
func (r *TranscriptionRecord) Fail(reason string, durationMs int64) {
	r.State = TranscriptionStateError
	r.Text = ""
	r.Reason = reason
	r.DurationMs = durationMs
}
