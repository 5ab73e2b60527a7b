package api

import "time"

// DeviceAuthRequest is the payload for device authentication
type DeviceAuthRequest struct {
	SerialNumber string `json:"serial_number"`
	SecretKey    string `json:"secret_key"`
}

// DeviceAuthResponse carries the issued device token
type DeviceAuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	DeviceID  string    `json:"device_id"`
}

// TranscriptionResponse is the result of one recognition call
type TranscriptionResponse struct {
	ID         string `json:"id"`
	State      string `json:"state"`
	Text       string `json:"text,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Language   string `json:"language"`
	DurationMs int64  `json:"duration_ms"`
}

// ErrorResponse is the standard error payload
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
