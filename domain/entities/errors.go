package entities

import "errors"

// Recognition error taxonomy. The API and WebSocket layers map these to
// status codes and error messages, everything else is wrapped as a generic
// backend fault.
var (
	// ErrUnsupportedLanguage is returned when the requested language tag is
	// not in SupportedLanguages.
	ErrUnsupportedLanguage = errors.New("unsupported language")

	// ErrDecodeFailure is returned when the payload is not a well-formed WAV
	// container.
	ErrDecodeFailure = errors.New("audio decode failure")

	// ErrBackendUnavailable is returned when the recognition backend cannot
	// be reached or does not answer within the call budget.
	ErrBackendUnavailable = errors.New("recognition backend unavailable")

	// ErrNoSpeech is returned when the payload contains no detectable voice
	// activity.
	ErrNoSpeech = errors.New("no speech detected in audio")
)
