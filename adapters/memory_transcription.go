package adapters

import (
	"context"
	"errors"
	"sync"

	"github.com/mojokb/ha-custom-stt/domain/entities"
)

// MemoryTranscriptionRepository is an in-memory implementation of
// TranscriptionRepository, used when no MongoDB instance is configured
type MemoryTranscriptionRepository struct {
	mu       sync.RWMutex
	records  map[string]*entities.TranscriptionRecord
	byDevice map[string][]*entities.TranscriptionRecord
}

// NewMemoryTranscriptionRepository creates a new in-memory transcription
// repository
func NewMemoryTranscriptionRepository() *MemoryTranscriptionRepository {
	return &MemoryTranscriptionRepository{
		records:  make(map[string]*entities.TranscriptionRecord),
		byDevice: make(map[string][]*entities.TranscriptionRecord),
	}
}

// Create stores a transcription record
func (m *MemoryTranscriptionRepository) Create(ctx context.Context, record *entities.TranscriptionRecord) error {
	if record == nil {
		return errors.New("record cannot be nil")
	}
	if record.ID == "" {
		return errors.New("record ID cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *record
	m.records[record.ID] = &copied
	m.byDevice[record.DeviceID] = append(m.byDevice[record.DeviceID], &copied)
	return nil
}

// GetByID returns a stored record or nil when not found
func (m *MemoryTranscriptionRepository) GetByID(ctx context.Context, id string) (*entities.TranscriptionRecord, error) {
	if id == "" {
		return nil, errors.New("record ID cannot be empty")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	record, ok := m.records[id]
	if !ok {
		return nil, nil
	}
	copied := *record
	return &copied, nil
}

// ListByDeviceID returns the most recent records for a device, newest first
func (m *MemoryTranscriptionRepository) ListByDeviceID(ctx context.Context, deviceID string, limit int) ([]*entities.TranscriptionRecord, error) {
	if deviceID == "" {
		return nil, errors.New("device ID cannot be empty")
	}
	if limit <= 0 {
		limit = 20
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	stored := m.byDevice[deviceID]
	result := make([]*entities.TranscriptionRecord, 0, limit)
	for i := len(stored) - 1; i >= 0 && len(result) < limit; i-- {
		copied := *stored[i]
		result = append(result, &copied)
	}

	return result, nil
}
