package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/mojokb/ha-custom-stt/adapters"
	"github.com/mojokb/ha-custom-stt/domain/repositories"
)

// stubRecognizer hands out stubStreams with a fixed result
type stubRecognizer struct {
	text    string
	initErr error
	endErr  error
}

func (s *stubRecognizer) TranscribeAudio(ctx context.Context, audioData []byte, config repositories.AudioConfig) (string, error) {
	return s.text, nil
}

func (s *stubRecognizer) InitTranscribeStreaming(ctx context.Context, config repositories.AudioConfig) (repositories.SpeechToTextStreaming, error) {
	if s.initErr != nil {
		return nil, s.initErr
	}
	return &stubStream{text: s.text, endErr: s.endErr}, nil
}

type stubStream struct {
	text     string
	endErr   error
	received int
}

func (s *stubStream) Stream(data []byte) error {
	s.received += len(data)
	return nil
}

func (s *stubStream) End() (string, error) {
	if s.endErr != nil {
		return "", s.endErr
	}
	return s.text, nil
}

func newTestClient(t *testing.T, recognizer repositories.SpeechToText) (*Client, *adapters.MemoryTranscriptionRepository) {
	t.Helper()
	history := adapters.NewMemoryTranscriptionRepository()
	hub := NewHub(recognizer, history, zaptest.NewLogger(t))
	client := &Client{
		hub:      hub,
		send:     make(chan WriteData, 16),
		deviceID: "test-device",
		logger:   zaptest.NewLogger(t),
	}
	return client, history
}

// receiveJSON pops one outbound frame and decodes it into a map
func receiveJSON(t *testing.T, client *Client) map[string]interface{} {
	t.Helper()
	select {
	case frame := <-client.send:
		var decoded map[string]interface{}
		if err := json.Unmarshal(frame.Payload, &decoded); err != nil {
			t.Fatalf("Failed to decode outbound frame: %v", err)
		}
		return decoded
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for outbound frame")
		return nil
	}
}

func TestHubRegisterUnregister(t *testing.T) {
	client, _ := newTestClient(t, &stubRecognizer{})
	hub := client.hub
	go hub.Run()

	hub.register <- client

	deadline := time.After(time.Second)
	for {
		hub.mu.RLock()
		_, registered := hub.clients["test-device"]
		hub.mu.RUnlock()
		if registered {
			break
		}
		select {
		case <-deadline:
			t.Fatal("Client was not registered")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}

	hub.unregister <- client

	deadline = time.After(time.Second)
	for {
		hub.mu.RLock()
		_, registered := hub.clients["test-device"]
		hub.mu.RUnlock()
		if !registered {
			return
		}
		select {
		case <-deadline:
			t.Fatal("Client was not unregistered")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
}

func TestStreamingSessionRoundTrip(t *testing.T) {
	client, history := newTestClient(t, &stubRecognizer{text: "turn off the kitchen lights"})

	client.processMessage([]byte(`{
		"type": "listening_start",
		"language": "en-US",
		"sample_rate": 16000,
		"encoding": "pcm"
	}`))

	started := receiveJSON(t, client)
	if started["type"] != string(MessageTypeListeningStart) {
		t.Fatalf("Expected listening_start ack, got %v", started["type"])
	}

	for i := 0; i < 5; i++ {
		client.processAudioChunk(make([]byte, 1024))
	}

	client.processMessage([]byte(`{"type": "listening_end"}`))

	result := receiveJSON(t, client)
	if result["type"] != string(MessageTypeTranscription) {
		t.Fatalf("Expected transcription message, got %v", result["type"])
	}
	if result["state"] != "success" {
		t.Errorf("Expected success state, got %v", result["state"])
	}
	if result["text"] != "turn off the kitchen lights" {
		t.Errorf("Expected stub transcript, got %v", result["text"])
	}

	// Session state is reset
	if client.stream != nil {
		t.Error("Expected stream to be cleared after listening_end")
	}

	// Record is persisted
	records, err := history.ListByDeviceID(context.Background(), "test-device", 10)
	if err != nil {
		t.Fatalf("ListByDeviceID() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 persisted record, got %d", len(records))
	}
	if records[0].AudioBytes != 5*1024 {
		t.Errorf("Expected 5120 audio bytes recorded, got %d", records[0].AudioBytes)
	}
}

func TestStreamingSessionBackendFault(t *testing.T) {
	client, _ := newTestClient(t, &stubRecognizer{endErr: fmt.Errorf("engine down")})

	client.processMessage([]byte(`{
		"type": "listening_start",
		"language": "ko-KR",
		"sample_rate": 16000,
		"encoding": "pcm"
	}`))
	receiveJSON(t, client) // ack

	client.processAudioChunk(make([]byte, 2048))
	client.processMessage([]byte(`{"type": "listening_end"}`))

	result := receiveJSON(t, client)
	if result["type"] != string(MessageTypeTranscription) {
		t.Fatalf("Expected transcription message, got %v", result["type"])
	}
	if result["state"] != "error" {
		t.Errorf("Expected error state, got %v", result["state"])
	}
	if result["text"] != nil {
		t.Errorf("Expected no text on failure, got %v", result["text"])
	}
}

func TestUnsupportedLanguageRejected(t *testing.T) {
	client, _ := newTestClient(t, &stubRecognizer{text: "should not run"})

	client.processMessage([]byte(`{
		"type": "listening_start",
		"language": "ja-JP",
		"sample_rate": 16000,
		"encoding": "pcm"
	}`))

	response := receiveJSON(t, client)
	if response["type"] != string(MessageTypeError) {
		t.Fatalf("Expected error message, got %v", response["type"])
	}

	if client.stream != nil {
		t.Error("Expected no session for unsupported language")
	}
}

func TestListeningEndWithoutSession(t *testing.T) {
	client, _ := newTestClient(t, &stubRecognizer{})

	client.processMessage([]byte(`{"type": "listening_end"}`))

	response := receiveJSON(t, client)
	if response["type"] != string(MessageTypeError) {
		t.Fatalf("Expected error message, got %v", response["type"])
	}
	if response["error_code"] != "no_session" {
		t.Errorf("Expected no_session error code, got %v", response["error_code"])
	}
}

func TestAudioChunkWithoutSessionIgnored(t *testing.T) {
	client, _ := newTestClient(t, &stubRecognizer{})

	client.processAudioChunk(make([]byte, 512))

	select {
	case frame := <-client.send:
		t.Errorf("Expected no outbound frame, got %s", frame.Payload)
	default:
	}
}

func TestPingPong(t *testing.T) {
	client, _ := newTestClient(t, &stubRecognizer{})

	client.processMessage([]byte(`{"type": "ping", "data": "hello"}`))

	response := receiveJSON(t, client)
	if response["type"] != string(MessageTypePong) {
		t.Fatalf("Expected pong, got %v", response["type"])
	}
	if response["data"] != "hello" {
		t.Errorf("Expected pong data 'hello', got %v", response["data"])
	}
}
