package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/mojokb/ha-custom-stt/domain/entities"
	"github.com/mojokb/ha-custom-stt/domain/repositories"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio chunks

	// Upper bound for one streaming recognition session.
	sessionTimeout = 60 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Connections are gated by JWT before the upgrade
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Hub maintains the set of active clients
type Hub struct {
	// Registered clients.
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	recognizer repositories.SpeechToText
	history    repositories.TranscriptionRepository

	validator *MessageValidator

	logger *zap.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(
	recognizer repositories.SpeechToText,
	history repositories.TranscriptionRepository,
	logger *zap.Logger,
) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		recognizer: recognizer,
		history:    history,
		validator:  NewMessageValidator(),
		logger:     logger,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.deviceID] = client
			h.mu.Unlock()
			h.logger.Info("Client registered", zap.String("deviceID", client.deviceID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.deviceID]; ok {
				delete(h.clients, client.deviceID)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Info("Client unregistered", zap.String("deviceID", client.deviceID))
		}
	}
}

// WriteData is one outbound websocket frame.
// Type is websocket.TextMessage or websocket.BinaryMessage.
type WriteData struct {
	Type    int
	Payload []byte
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	// Device ID for this client
	deviceID string

	logger *zap.Logger

	// Streaming recognition session state
	stream         repositories.SpeechToTextStreaming
	streamCancel   context.CancelFunc
	language       string
	chunkCount     int
	chunkBytes     int
	listeningStart time.Time

	mutex sync.Mutex
}

// HandleWebSocket handles websocket requests with a pre-authenticated
// device ID
func HandleWebSocket(hub *Hub, c echo.Context, deviceID string, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan WriteData, 256),
		deviceID: deviceID,
		logger:   logger,
	}

	client.hub.register <- client

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}

// readPump pumps messages from the websocket connection to the hub.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		switch messageType {
		case websocket.TextMessage:
			// Control messages (listening_start, listening_end, ping)
			c.processMessage(message)
		case websocket.BinaryMessage:
			// Raw PCM audio chunks
			c.processAudioChunk(message)
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// processMessage processes incoming control messages from the device
func (c *Client) processMessage(message []byte) {
	parsed, err := c.hub.validator.ValidateMessage(message)
	if err != nil {
		c.logger.Warn("Rejected invalid message",
			zap.String("deviceID", c.deviceID),
			zap.Error(err))
		c.sendJSON(CreateErrorMessage("invalid_message", "Message validation failed", err.Error()))
		return
	}

	switch msg := parsed.(type) {
	case *ListeningStartMessage:
		c.handleListeningStart(msg)
	case *ListeningEndMessage:
		c.handleListeningEnd()
	case *PingMessage:
		c.sendJSON(CreatePongMessage(msg.Data))
	default:
		c.logger.Warn("Unhandled message", zap.String("deviceID", c.deviceID))
	}
}

// handleListeningStart opens a streaming recognition session
func (c *Client) handleListeningStart(msg *ListeningStartMessage) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.stream != nil {
		c.sendJSON(CreateErrorMessage("session_active", "A listening session is already active", ""))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), sessionTimeout)

	channels := msg.Channels
	if channels == 0 {
		channels = 1
	}

	stream, err := c.hub.recognizer.InitTranscribeStreaming(ctx, repositories.AudioConfig{
		SampleRate: msg.SampleRate,
		Channels:   channels,
		Encoding:   "LINEAR16",
		Language:   msg.Language,
	})
	if err != nil {
		cancel()
		c.logger.Error("Failed to initialize streaming transcription",
			zap.String("deviceID", c.deviceID),
			zap.Error(err))
		c.sendJSON(CreateErrorMessage("transcription_init_failed", "Failed to initialize transcription", ""))
		return
	}

	c.stream = stream
	c.streamCancel = cancel
	c.language = msg.Language
	c.chunkCount = 0
	c.chunkBytes = 0
	c.listeningStart = time.Now()

	c.logger.Info("Listening session started",
		zap.String("deviceID", c.deviceID),
		zap.String("language", msg.Language),
		zap.Int("sampleRate", msg.SampleRate))

	response, _ := json.Marshal(map[string]interface{}{
		"type":      MessageTypeListeningStart,
		"timestamp": c.listeningStart.Format(time.RFC3339),
		"message":   "listening started",
	})
	c.enqueue(WriteData{Type: websocket.TextMessage, Payload: response})
}

// processAudioChunk forwards binary audio data to the active session
func (c *Client) processAudioChunk(data []byte) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.stream == nil {
		c.logger.Warn("Received audio chunk without an active session",
			zap.String("deviceID", c.deviceID))
		return
	}

	c.chunkCount++
	c.chunkBytes += len(data)

	if err := c.stream.Stream(data); err != nil {
		c.logger.Error("Failed to stream audio data",
			zap.String("deviceID", c.deviceID),
			zap.Error(err))
		return
	}

	c.logger.Debug("Streamed audio chunk",
		zap.String("deviceID", c.deviceID),
		zap.Int("chunks", c.chunkCount),
		zap.Int("bytes", c.chunkBytes))
}

// handleListeningEnd closes the session and reports the result
func (c *Client) handleListeningEnd() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.stream == nil {
		c.sendJSON(CreateErrorMessage("no_session", "No active listening session", ""))
		return
	}

	record := entities.NewTranscriptionRecord(c.deviceID, c.language, c.chunkBytes)
	durationMs := time.Since(c.listeningStart).Milliseconds()

	text, err := c.stream.End()
	if err != nil {
		c.logger.Error("Failed to end transcription stream",
			zap.String("deviceID", c.deviceID),
			zap.Error(err))
		record.Fail(err.Error(), durationMs)
	} else {
		record.Succeed(text, durationMs)
		c.logger.Info("Transcription completed",
			zap.String("deviceID", c.deviceID),
			zap.String("recordID", record.ID),
			zap.Int("chunks", c.chunkCount))
	}

	c.streamCancel()
	c.stream = nil
	c.streamCancel = nil

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.hub.history.Create(ctx, record); err != nil {
		c.logger.Error("Failed to persist transcription record",
			zap.String("recordID", record.ID),
			zap.Error(err))
	}

	c.sendJSON(CreateTranscriptionMessage(record))
}

func (c *Client) sendJSON(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to marshal outbound message", zap.Error(err))
		return
	}
	c.enqueue(WriteData{Type: websocket.TextMessage, Payload: payload})
}

func (c *Client) enqueue(data WriteData) {
	select {
	case c.send <- data:
	default:
		c.logger.Warn("Outbound buffer full, dropping message",
			zap.String("deviceID", c.deviceID))
	}
}
