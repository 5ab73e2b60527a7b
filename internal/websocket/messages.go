package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mojokb/ha-custom-stt/domain/entities"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Supported message types
const (
	MessageTypeListeningStart MessageType = "listening_start"
	MessageTypeListeningEnd   MessageType = "listening_end"
	MessageTypeTranscription  MessageType = "transcription"
	MessageTypePing           MessageType = "ping"
	MessageTypePong           MessageType = "pong"
	MessageTypeError          MessageType = "error"
)

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp"`
	MessageID string      `json:"message_id,omitempty"`
}

// ListeningStartMessage opens a streaming recognition session. Binary
// frames that follow it carry raw PCM chunks until listening_end.
type ListeningStartMessage struct {
	BaseMessage
	Language   string `json:"language"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels,omitempty"`
	Encoding   string `json:"encoding"`
}

// ListeningEndMessage closes a streaming recognition session
type ListeningEndMessage struct {
	BaseMessage
}

// TranscriptionMessage carries the recognition result back to the device
type TranscriptionMessage struct {
	BaseMessage
	RecordID string `json:"record_id,omitempty"`
	State    string `json:"state"`
	Text     string `json:"text,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Language string `json:"language"`
}

// PingMessage represents a ping message for connection health check
type PingMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// PongMessage represents a pong response
type PongMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// ErrorMessage represents an error response
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// MessageValidator provides validation for WebSocket messages
type MessageValidator struct{}

// NewMessageValidator creates a new message validator
func NewMessageValidator() *MessageValidator {
	return &MessageValidator{}
}

// ValidateMessage validates an incoming message
func (v *MessageValidator) ValidateMessage(messageBytes []byte) (interface{}, error) {
	// First parse as base message to get type
	var base BaseMessage
	if err := json.Unmarshal(messageBytes, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	switch base.Type {
	case MessageTypeListeningStart:
		var msg ListeningStartMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid listening_start message: %w", err)
		}
		if err := v.validateListeningStart(&msg); err != nil {
			return nil, err
		}
		return &msg, nil

	case MessageTypeListeningEnd:
		var msg ListeningEndMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid listening_end message: %w", err)
		}
		return &msg, nil

	case MessageTypePing:
		var msg PingMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid ping message: %w", err)
		}
		return &msg, nil

	default:
		return nil, fmt.Errorf("unsupported message type: %s", base.Type)
	}
}

// validateListeningStart validates listening_start message fields
func (v *MessageValidator) validateListeningStart(msg *ListeningStartMessage) error {
	if msg.Language == "" {
		return fmt.Errorf("language is required")
	}
	if !entities.IsSupportedLanguage(msg.Language) {
		return fmt.Errorf("%w: %s", entities.ErrUnsupportedLanguage, msg.Language)
	}
	if msg.SampleRate < 8000 || msg.SampleRate > 48000 {
		return fmt.Errorf("sample_rate must be between 8000 and 48000")
	}
	if msg.Encoding == "" {
		return fmt.Errorf("encoding is required")
	}

	validEncodings := map[string]bool{
		"pcm": true, "wav": true,
	}
	if !validEncodings[msg.Encoding] {
		return fmt.Errorf("encoding must be one of: pcm, wav")
	}

	if msg.Channels < 0 || msg.Channels > 2 {
		return fmt.Errorf("channels must be mono or stereo")
	}

	return nil
}

// CreateTranscriptionMessage builds the result message for a finished
// recognition session
func CreateTranscriptionMessage(record *entities.TranscriptionRecord) *TranscriptionMessage {
	return &TranscriptionMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeTranscription,
			Timestamp: time.Now().Format(time.RFC3339),
		},
		RecordID: record.ID,
		State:    string(record.State),
		Text:     record.Text,
		Reason:   record.Reason,
		Language: record.Language,
	}
}

// CreateErrorMessage creates a standardized error message
func CreateErrorMessage(code, message, details string) *ErrorMessage {
	return &ErrorMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeError,
			Timestamp: time.Now().Format(time.RFC3339),
		},
		Code:    code,
		Message: message,
		Details: details,
	}
}

// CreatePongMessage creates a pong response message
func CreatePongMessage(data string) *PongMessage {
	return &PongMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypePong,
			Timestamp: time.Now().Format(time.RFC3339),
		},
		Data: data,
	}
}
