package adapters

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mojokb/ha-custom-stt/domain/entities"
)

// MemoryDeviceRepository is an in-memory implementation of DeviceRepository,
// suitable as a simple credentials store for small installations
type MemoryDeviceRepository struct {
	mu      sync.RWMutex
	devices map[string]*entities.Device // id -> device
	secrets map[string]string           // serial_number -> secret_key
	serials map[string]*entities.Device // serial_number -> device
}

// NewMemoryDeviceRepository creates a new in-memory device repository
func NewMemoryDeviceRepository() *MemoryDeviceRepository {
	return &MemoryDeviceRepository{
		devices: make(map[string]*entities.Device),
		secrets: make(map[string]string),
		serials: make(map[string]*entities.Device),
	}
}

// RegisterDevice adds a device with its secret key. Used at startup to seed
// credentials from configuration.
func (m *MemoryDeviceRepository) RegisterDevice(serialNumber, secretKey, model, macAddress string) (*entities.Device, error) {
	device := &entities.Device{
		ID:           uuid.NewString(),
		SerialNumber: serialNumber,
		Model:        model,
		MacAddress:   macAddress,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := device.Validate(); err != nil {
		return nil, err
	}
	if secretKey == "" {
		return nil, errors.New("secret key is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.serials[serialNumber]; exists {
		return nil, errors.New("device already registered")
	}

	m.devices[device.ID] = device
	m.secrets[serialNumber] = secretKey
	m.serials[serialNumber] = device

	return device, nil
}

// ValidateDevice validates device credentials (serial number + secret)
func (m *MemoryDeviceRepository) ValidateDevice(serialNumber, secret string) (*entities.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	storedSecret, exists := m.secrets[serialNumber]
	if !exists {
		return nil, errors.New("device not found")
	}

	if storedSecret != secret {
		return nil, errors.New("invalid credentials")
	}

	return m.serials[serialNumber], nil
}

// Create implements repositories.DeviceRepository
func (m *MemoryDeviceRepository) Create(ctx context.Context, device *entities.Device) error {
	if err := device.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if device.ID == "" {
		device.ID = uuid.NewString()
	}
	if _, exists := m.serials[device.SerialNumber]; exists {
		return errors.New("device already registered")
	}

	m.devices[device.ID] = device
	m.serials[device.SerialNumber] = device
	return nil
}

// GetByID implements repositories.DeviceRepository
func (m *MemoryDeviceRepository) GetByID(ctx context.Context, id string) (*entities.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	device, exists := m.devices[id]
	if !exists {
		return nil, errors.New("device not found")
	}
	return device, nil
}

// GetBySerialNumber implements repositories.DeviceRepository
func (m *MemoryDeviceRepository) GetBySerialNumber(ctx context.Context, serialNumber string) (*entities.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	device, exists := m.serials[serialNumber]
	if !exists {
		return nil, errors.New("device not found")
	}
	return device, nil
}
